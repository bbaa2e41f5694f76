package task

import (
	"context"
	"time"
)

// ListFilter narrows a task listing. Limit is capped by the storage layer.
type ListFilter struct {
	Type   *TaskType
	State  *TaskState
	Limit  int
	Offset int
}

// Storage is the durable store contract. Reads enforce ownership; writes are
// privileged upserts keyed by task id and are called only by the event
// handler and the task service.
type Storage interface {
	CreateTask(ctx context.Context, ownerID string, t *Task) (string, error)
	GetTask(ctx context.Context, ownerID, taskID string) (*Task, error)
	GetStatus(ctx context.Context, ownerID, taskID string) (*TaskStatus, error)
	GetResult(ctx context.Context, ownerID, taskID string) (*TaskResult, error)
	ListTasks(ctx context.Context, ownerID string, filter ListFilter) ([]TaskView, error)
	UpdateTaskStatus(ctx context.Context, taskID string, status TaskStatus, metadata *TaskMetadata) error
	SetTaskResult(ctx context.Context, taskID string, result TaskResult, finishedAt *time.Time) error
	DeleteTask(ctx context.Context, ownerID, taskID string) error
}

// EventPublisher appends serialized task events to the event log.
// Publishing is fire-and-forget from the producer's point of view; failures
// propagate to the caller, whose policy decides whether to retry.
type EventPublisher interface {
	Publish(ctx context.Context, events ...TaskEvent) error
}

// EventBroadcaster pushes an event to all live sessions subscribed to its
// task. Broadcasts are never throttled and must not block on slow sessions.
type EventBroadcaster interface {
	BroadcastEvent(ctx context.Context, event TaskEvent) error
}

// Queue enqueues an execution request for a task, routed by task type.
type Queue interface {
	Enqueue(ctx context.Context, t *Task) error
}

// LogEntry is one entry of a log stream: an opaque monotonic id assigned on
// append plus a field map.
type LogEntry struct {
	ID     string
	Fields map[string]string
}

// EventLog is the partitioned append-only stream with consumer groups that
// connects producers to consumers. Un-acked entries stay in a per-consumer
// pending set and become claimable by other group members once idle, which is
// what gives the pipeline its at-least-once guarantee.
type EventLog interface {
	// EnsureGroup creates the consumer group if it does not exist yet.
	// Creating an existing group is not an error.
	EnsureGroup(ctx context.Context, stream, group, startID string) error

	// Append adds an entry and returns its assigned id. A positive maxLen
	// trims the stream, approximately when approx is set.
	Append(ctx context.Context, stream string, fields map[string]string, maxLen int64, approx bool) (string, error)

	// ReadGroup fetches up to count new entries for the named group member,
	// blocking up to block when the stream is idle.
	ReadGroup(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]LogEntry, error)

	// ClaimPending transfers ownership of entries that have sat unacked in
	// another member's pending set for at least minIdle.
	ClaimPending(ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int64) ([]LogEntry, error)

	// Ack removes entries from the group's pending set.
	Ack(ctx context.Context, stream, group string, ids ...string) error

	Close() error
}
