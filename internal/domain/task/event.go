package task

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType discriminates the wire unit carried on the event log.
type EventType string

const (
	EventTaskStatus      EventType = "TASK_STATUS"
	EventTaskResult      EventType = "TASK_RESULT"
	EventTaskResultChunk EventType = "TASK_RESULT_CHUNK"
)

// TaskEvent is the unit appended to the event log. Events are immutable once
// appended; the payload shape depends on the event type.
type TaskEvent struct {
	EventID string                 `json:"event_id"`
	Type    EventType              `json:"type"`
	TaskID  string                 `json:"task_id"`
	TS      time.Time              `json:"ts"`
	Payload map[string]interface{} `json:"payload"`
}

// NewStatusEvent builds a TASK_STATUS event for the given task.
func NewStatusEvent(taskID string, status TaskStatus) TaskEvent {
	return newEvent(EventTaskStatus, taskID, map[string]interface{}{
		"status": toPlain(status),
	})
}

// NewResultEvent builds a TASK_RESULT event carrying the result snapshot.
func NewResultEvent(taskID string, result interface{}) TaskEvent {
	return newEvent(EventTaskResult, taskID, map[string]interface{}{
		"result": toPlain(result),
	})
}

// NewResultChunkEvent builds a TASK_RESULT_CHUNK event. ChunkID is monotonic
// per task; isLast marks the final flush of a chunk emitter.
func NewResultChunkEvent(taskID, chunkID string, data interface{}, isLast bool) TaskEvent {
	return newEvent(EventTaskResultChunk, taskID, map[string]interface{}{
		"chunk_id": chunkID,
		"data":     toPlain(data),
		"is_last":  isLast,
	})
}

func newEvent(eventType EventType, taskID string, payload map[string]interface{}) TaskEvent {
	return TaskEvent{
		EventID: uuid.NewString(),
		Type:    eventType,
		TaskID:  taskID,
		TS:      time.Now().UTC(),
		Payload: payload,
	}
}

// toPlain normalizes a value to the shape JSON decoding would produce, so an
// event round-trips identically through the wire codec.
func toPlain(v interface{}) interface{} {
	if v == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var plain interface{}
	if err := json.Unmarshal(raw, &plain); err != nil {
		return v
	}
	return plain
}
