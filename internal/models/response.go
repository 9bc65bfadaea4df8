package models

import "time"

type ErrorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

type GenerateResponse struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message"`
	Images    []string `json:"images"`
	Count     int      `json:"count"`
	Requested int      `json:"requested"`
	TaskID    string   `json:"task_id"`
	Timestamp string   `json:"timestamp"`
}

type TaskSummary struct {
	TaskDir   string   `json:"task_dir"`
	Timestamp string   `json:"timestamp"`
	TaskID    string   `json:"task_id"`
	Images    []string `json:"images"`
	Count     int      `json:"count"`
	Date      string   `json:"date"`
}

type OutputListResponse struct {
	Success    bool          `json:"success"`
	TotalTasks int           `json:"total_tasks"`
	Tasks      []TaskSummary `json:"tasks"`
}

type TaskRecordResponse struct {
	TaskID       string    `json:"task_id"`
	TaskDir      string    `json:"task_dir"`
	Prompt       string    `json:"prompt"`
	Size         string    `json:"size"`
	Count        int       `json:"count"`
	Seed         int64     `json:"seed"`
	Scale        float64   `json:"scale"`
	Watermark    bool      `json:"watermark"`
	Status       string    `json:"status"`
	ImageCount   int       `json:"image_count"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type TaskHistoryResponse struct {
	Success bool                 `json:"success"`
	Tasks   []TaskRecordResponse `json:"tasks"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
