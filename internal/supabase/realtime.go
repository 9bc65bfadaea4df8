package supabase

import (
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"
)

const (
	EventTaskStarted   = "task_started"
	EventTaskCompleted = "task_completed"
	EventTaskFailed    = "task_failed"

	eventsTable = "generation_events"
)

// RealtimeClient inserts task events into generation_events. Subscribers
// receive them through Supabase Realtime on that table.
type RealtimeClient struct {
	client *supabase.Client
}

func NewRealtimeClient(client *supabase.Client) *RealtimeClient {
	return &RealtimeClient{
		client: client,
	}
}

type eventRow struct {
	TaskID    string                 `json:"task_id"`
	Channel   string                 `json:"channel"`
	Event     string                 `json:"event"`
	Payload   map[string]interface{} `json:"payload"`
	CreatedAt time.Time              `json:"created_at"`
}

func (r *RealtimeClient) PublishEvent(channel, taskID, event string, payload map[string]interface{}) error {
	row := eventRow{
		TaskID:    taskID,
		Channel:   channel,
		Event:     event,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
	if _, _, err := r.client.From(eventsTable).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

func (r *RealtimeClient) PublishTaskEvent(taskID, event string, payload map[string]interface{}) error {
	channel := fmt.Sprintf("task:%s", taskID)
	return r.PublishEvent(channel, taskID, event, payload)
}

// Event payloads
func TaskStartedPayload(taskID, prompt string, count int) map[string]interface{} {
	return map[string]interface{}{
		"task_id": taskID,
		"status":  "pending",
		"prompt":  prompt,
		"count":   count,
	}
}

func TaskCompletedPayload(taskID, taskDir string, imageCount int) map[string]interface{} {
	return map[string]interface{}{
		"task_id":     taskID,
		"status":      "succeeded",
		"task_dir":    taskDir,
		"image_count": imageCount,
	}
}

func TaskFailedPayload(taskID, status, errorMsg string) map[string]interface{} {
	return map[string]interface{}{
		"task_id": taskID,
		"status":  status,
		"error":   errorMsg,
	}
}
