package models

import (
	"database/sql"
	"time"
)

const (
	TaskStatusPending   = "pending"
	TaskStatusSucceeded = "succeeded"
	TaskStatusFailed    = "failed"
	TaskStatusTimeout   = "timeout"
)

// OutputTask is one generation invocation and the directory it owns.
type OutputTask struct {
	TaskID    string
	Timestamp string
	Dir       string
	Files     []string
	CreatedAt time.Time
}

// DirName is the base name of the task directory, <timestamp>_<task id>.
func (t *OutputTask) DirName() string {
	return t.Timestamp + "_" + t.TaskID
}

// TaskRecord is a row of the generation_tasks history table.
type TaskRecord struct {
	ID           string
	TaskDir      string
	Prompt       string
	Size         string
	Count        int
	Seed         int64
	Scale        float64
	Watermark    bool
	Status       string
	ImageCount   int
	ErrorMessage sql.NullString
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// GenerationResult is what the orchestrator reports back to either entry point.
type GenerationResult struct {
	TaskID    string
	Timestamp string
	Dir       string
	Files     []string
	Images    []string
	Requested int
	Count     int
}
