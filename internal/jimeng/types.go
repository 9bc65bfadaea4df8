package jimeng

import (
	"encoding/json"
	"strings"

	"jimeng-image-generator/internal/models"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
	StatusTimeout   = "timeout"
)

// Result is the provider response for both the generation call and task polls.
type Result struct {
	ID     string             `json:"id,omitempty"`
	TaskID string             `json:"task_id,omitempty"`
	Status string             `json:"status,omitempty"`
	Data   []models.ImageData `json:"data,omitempty"`
	Error  json.RawMessage    `json:"error,omitempty"`
}

// PendingTaskID returns the id to poll when the response carries no images
// yet and has not reached a terminal status.
func (r *Result) PendingTaskID() string {
	if r == nil || len(r.Data) > 0 || r.Terminal() {
		return ""
	}
	if r.TaskID != "" {
		return r.TaskID
	}
	return r.ID
}

func (r *Result) Terminal() bool {
	switch r.Status {
	case StatusSucceeded, StatusFailed, StatusTimeout:
		return true
	}
	return false
}

// ErrorMessage flattens the error field, which is either a string or an
// object carrying a message.
func (r *Result) ErrorMessage() string {
	if r == nil || len(r.Error) == 0 || string(r.Error) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(r.Error, &s); err == nil {
		return s
	}
	var obj struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(r.Error, &obj); err == nil && obj.Message != "" {
		return strings.TrimSpace(obj.Code + " " + obj.Message)
	}
	return string(r.Error)
}

func timeoutResult() *Result {
	return &Result{Status: StatusTimeout, Error: json.RawMessage(`"Task timed out"`)}
}
