package task

import "time"

// TaskResult is the durable result payload for a completed task.
// One-to-one with the task it belongs to.
type TaskResult struct {
	TaskID       string        `json:"task_id"`
	TaskMetadata *TaskMetadata `json:"task_metadata,omitempty"`
	Data         interface{}   `json:"data,omitempty"`
	ExpiresAt    *time.Time    `json:"expires_at,omitempty"`
	TTLSeconds   *int          `json:"ttl_seconds,omitempty"`
}
