package task

import "time"

// TaskMetadata holds lifecycle timestamps and caller-supplied key/value
// annotations. All timestamps are UTC. FinishedAt is set iff the task has
// reached a terminal state.
type TaskMetadata struct {
	CreatedAt  *time.Time             `json:"created_at,omitempty"`
	UpdatedAt  *time.Time             `json:"updated_at,omitempty"`
	StartedAt  *time.Time             `json:"started_at,omitempty"`
	FinishedAt *time.Time             `json:"finished_at,omitempty"`
	Custom     map[string]interface{} `json:"custom,omitempty"`
}

// Merge copies the non-nil fields of updates into the receiver.
func (m *TaskMetadata) Merge(updates TaskMetadata) {
	if updates.CreatedAt != nil {
		m.CreatedAt = updates.CreatedAt
	}
	if updates.UpdatedAt != nil {
		m.UpdatedAt = updates.UpdatedAt
	}
	if updates.StartedAt != nil {
		m.StartedAt = updates.StartedAt
	}
	if updates.FinishedAt != nil {
		m.FinishedAt = updates.FinishedAt
	}
	if updates.Custom != nil {
		m.Custom = updates.Custom
	}
}
