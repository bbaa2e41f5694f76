package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
)

// Execution request field names on the wire.
const (
	fieldTaskID      = "task_id"
	fieldTaskType    = "task_type"
	fieldPayload     = "payload"
	fieldQueue       = "queue"
	fieldSubmittedTS = "submitted_ts"
)

// ExecutionRequest is a decoded work item read off an execution stream.
type ExecutionRequest struct {
	TaskID      string
	Type        task.TaskType
	Payload     task.TaskPayload
	Queue       string
	SubmittedAt time.Time
}

// StreamTaskQueue implements task.Queue by appending execution requests to
// per-type streams resolved through the routing table. Workers consume the
// streams with their own consumer group, so requests inherit the same
// at-least-once delivery as task events.
type StreamTaskQueue struct {
	log    task.EventLog
	routes RoutingTable
	logger *logrus.Logger
}

// NewStreamTaskQueue creates a queue over the shared event log client.
func NewStreamTaskQueue(log task.EventLog, routes RoutingTable, logger *logrus.Logger) *StreamTaskQueue {
	if routes == nil {
		routes = DefaultRoutes()
	}
	return &StreamTaskQueue{
		log:    log,
		routes: routes,
		logger: logger,
	}
}

// Enqueue appends an execution request for the task to its routed stream.
func (q *StreamTaskQueue) Enqueue(ctx context.Context, t *task.Task) error {
	route, err := q.routes.Resolve(t.Type)
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(t.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload for task %s: %w", t.ID, err)
	}

	fields := map[string]string{
		fieldTaskID:      t.ID,
		fieldTaskType:    string(t.Type),
		fieldPayload:     string(encoded),
		fieldQueue:       route.Queue,
		fieldSubmittedTS: time.Now().UTC().Format(time.RFC3339Nano),
	}

	id, err := q.log.Append(ctx, route.Stream, fields, 0, false)
	if err != nil {
		return fmt.Errorf("failed to enqueue task %s on %s: %w", t.ID, route.Stream, err)
	}

	q.logger.WithFields(logrus.Fields{
		"task_id":   t.ID,
		"task_type": t.Type,
		"stream":    route.Stream,
		"entry_id":  id,
	}).Debug("Enqueued execution request")
	return nil
}

// DecodeExecutionRequest parses a stream entry back into an execution
// request. Malformed entries yield an InvalidEventError so workers can ack
// and drop them.
func DecodeExecutionRequest(entry task.LogEntry) (ExecutionRequest, error) {
	taskID := entry.Fields[fieldTaskID]
	if taskID == "" {
		return ExecutionRequest{}, task.NewInvalidEventError("execution request is missing task_id")
	}

	taskType := task.TaskType(entry.Fields[fieldTaskType])
	payload, err := task.DecodePayload(taskType, []byte(entry.Fields[fieldPayload]))
	if err != nil {
		return ExecutionRequest{}, task.NewInvalidEventError(fmt.Sprintf("execution request for task %s: %v", taskID, err))
	}

	req := ExecutionRequest{
		TaskID:  taskID,
		Type:    taskType,
		Payload: payload,
		Queue:   entry.Fields[fieldQueue],
	}
	if raw := entry.Fields[fieldSubmittedTS]; raw != "" {
		if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			req.SubmittedAt = ts
		}
	}
	return req, nil
}
