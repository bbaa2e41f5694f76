package persistence

import (
	"time"
)

// TaskModel represents the tasks table
type TaskModel struct {
	ID      string `gorm:"column:id;primaryKey;size:64"`
	OwnerID string `gorm:"column:owner_id;size:128;not null;index"`
	Type    string `gorm:"column:task_type;size:64;not null"`

	Payload  *TaskPayloadModel  `gorm:"foreignKey:TaskID;references:ID;constraint:OnDelete:CASCADE;"`
	Metadata *TaskMetadataModel `gorm:"foreignKey:TaskID;references:ID;constraint:OnDelete:CASCADE;"`
	Status   *TaskStatusModel   `gorm:"foreignKey:TaskID;references:ID;constraint:OnDelete:CASCADE;"`
	Result   *TaskResultModel   `gorm:"foreignKey:TaskID;references:ID;constraint:OnDelete:CASCADE;"`
}

func (TaskModel) TableName() string {
	return "tasks"
}

// TaskPayloadModel represents the task_payloads table. The payload is stored
// as JSON; the task type on the parent row acts as the discriminator.
type TaskPayloadModel struct {
	TaskID  string `gorm:"column:task_id;primaryKey;size:64"`
	Payload string `gorm:"column:payload;type:text;not null"`
}

func (TaskPayloadModel) TableName() string {
	return "task_payloads"
}

// TaskMetadataModel represents the task_metadata table
type TaskMetadataModel struct {
	TaskID     string     `gorm:"column:task_id;primaryKey;size:64"`
	CreatedAt  *time.Time `gorm:"column:created_at"`
	UpdatedAt  *time.Time `gorm:"column:updated_at"`
	StartedAt  *time.Time `gorm:"column:started_at"`
	FinishedAt *time.Time `gorm:"column:finished_at"`
	Custom     string     `gorm:"column:custom;type:text"` // JSON as text
}

func (TaskMetadataModel) TableName() string {
	return "task_metadata"
}

// TaskStatusModel represents the task_statuses table
type TaskStatusModel struct {
	TaskID             string   `gorm:"column:task_id;primaryKey;size:64"`
	State              string   `gorm:"column:state;size:32;not null"`
	ProgressCurrent    *int     `gorm:"column:progress_current"`
	ProgressTotal      *int     `gorm:"column:progress_total"`
	ProgressPercentage *float64 `gorm:"column:progress_percentage"`
	ProgressPhase      *string  `gorm:"column:progress_phase;size:128"`
	Message            *string  `gorm:"column:message;type:text"`
	Metrics            string   `gorm:"column:metrics;type:text"` // JSON as text
}

func (TaskStatusModel) TableName() string {
	return "task_statuses"
}

// TaskResultModel represents the task_results table
type TaskResultModel struct {
	TaskID     string     `gorm:"column:task_id;primaryKey;size:64"`
	Data       string     `gorm:"column:data;type:text"` // JSON as text
	FinishedAt *time.Time `gorm:"column:finished_at"`
	ExpiresAt  *time.Time `gorm:"column:expires_at"`
	TTLSeconds *int       `gorm:"column:ttl_seconds"`
}

func (TaskResultModel) TableName() string {
	return "task_results"
}
