package streams

import (
	"encoding/json"
	"time"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
)

// Wire field names for task events on the log.
const (
	fieldEventID = "event_id"
	fieldType    = "type"
	fieldTaskID  = "task_id"
	fieldTS      = "ts"
	fieldPayload = "payload"
)

// EncodeEvent serializes a task event into the per-entry field map. The
// payload is JSON-encoded; the timestamp is ISO-8601 UTC.
func EncodeEvent(event task.TaskEvent) (map[string]string, error) {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return nil, task.NewInvalidEventError("payload is not JSON-encodable")
	}
	return map[string]string{
		fieldEventID: event.EventID,
		fieldType:    string(event.Type),
		fieldTaskID:  event.TaskID,
		fieldTS:      event.TS.UTC().Format(time.RFC3339Nano),
		fieldPayload: string(payload),
	}, nil
}

// DecodeEvent parses the field map of a log entry back into a task event.
// Malformed entries yield an InvalidEventError, which the consumer treats as
// a poison pill.
func DecodeEvent(fields map[string]string) (task.TaskEvent, error) {
	eventType := task.EventType(fields[fieldType])
	switch eventType {
	case task.EventTaskStatus, task.EventTaskResult, task.EventTaskResultChunk:
	default:
		return task.TaskEvent{}, task.NewInvalidEventError("unknown event type " + fields[fieldType])
	}

	taskID := fields[fieldTaskID]
	if taskID == "" {
		return task.TaskEvent{}, task.NewInvalidEventError("missing task_id")
	}

	ts, err := time.Parse(time.RFC3339Nano, fields[fieldTS])
	if err != nil {
		return task.TaskEvent{}, task.NewInvalidEventError("invalid ts: " + fields[fieldTS])
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(fields[fieldPayload]), &payload); err != nil {
		return task.TaskEvent{}, task.NewInvalidEventError("invalid payload JSON")
	}

	return task.TaskEvent{
		EventID: fields[fieldEventID],
		Type:    eventType,
		TaskID:  taskID,
		TS:      ts.UTC(),
		Payload: payload,
	}, nil
}
