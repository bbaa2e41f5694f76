package tasks

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
)

// DefaultStatusDelta is the minimum percentage change persisted between
// terminal transitions.
const DefaultStatusDelta = 0.02

// TaskEventHandler applies task events to the durable store and pushes them
// to live subscribers.
//
// Progress events can arrive at tens of hertz per task; persisting each one
// would swamp the store without any observable difference to clients polling
// at ~1 Hz. A status write is issued only when the task has no recorded
// percentage yet, the percentage moved by at least the configured delta, or
// the state is terminal. Broadcasts are never throttled.
//
// The lastPct and cpuMillis maps are mutated only from the consumer loop, so
// no locking is needed.
type TaskEventHandler struct {
	storage     task.Storage
	broadcaster task.EventBroadcaster
	logger      *logrus.Logger
	validate    *validator.Validate

	statusDelta float64
	resultTTL   time.Duration

	lastPct   map[string]float64
	cpuMillis map[string]float64
}

// TaskEventHandlerOptions tune the handler policies.
type TaskEventHandlerOptions struct {
	// StatusDelta is the persistence threshold; zero means the default.
	StatusDelta float64

	// ResultTTL is applied to results that carry no TTL of their own;
	// zero disables the default.
	ResultTTL time.Duration
}

// NewTaskEventHandler creates a handler over the given store and broadcaster.
func NewTaskEventHandler(storage task.Storage, broadcaster task.EventBroadcaster, logger *logrus.Logger, opts TaskEventHandlerOptions) *TaskEventHandler {
	delta := opts.StatusDelta
	if delta <= 0 {
		delta = DefaultStatusDelta
	}
	return &TaskEventHandler{
		storage:     storage,
		broadcaster: broadcaster,
		logger:      logger,
		validate:    validator.New(),
		statusDelta: delta,
		resultTTL:   opts.ResultTTL,
		lastPct:     make(map[string]float64),
		cpuMillis:   make(map[string]float64),
	}
}

// HandleStatusEvent persists the status when the throttle allows it and
// broadcasts the annotated event to live subscribers.
func (h *TaskEventHandler) HandleStatusEvent(ctx context.Context, event task.TaskEvent) error {
	started := time.Now()

	status, err := h.decodeStatus(event)
	if err != nil {
		return err
	}

	pct := status.Pct()
	last, seen := h.lastPct[event.TaskID]
	terminal := status.State.IsTerminal()

	if !seen || math.Abs(pct-last) >= h.statusDelta || terminal {
		metadata := &task.TaskMetadata{UpdatedAt: timePtr(event.TS)}
		if terminal {
			metadata.FinishedAt = timePtr(event.TS)
		}
		if err := h.storage.UpdateTaskStatus(ctx, event.TaskID, status, metadata); err != nil {
			return err
		}
		h.lastPct[event.TaskID] = pct
		if terminal {
			delete(h.lastPct, event.TaskID)
		}
	}

	h.annotate(event, started, terminal)
	return h.broadcaster.BroadcastEvent(ctx, event)
}

// HandleResultEvent upserts the result row. A structured payload is decoded
// as a TaskResult, defaulting its task id to the event's; anything else is
// stored as opaque data.
func (h *TaskEventHandler) HandleResultEvent(ctx context.Context, event task.TaskEvent) error {
	raw, ok := event.Payload["result"]
	if !ok {
		return task.NewInvalidEventError("result payload is missing")
	}

	var result task.TaskResult
	if structured, isMap := raw.(map[string]interface{}); isMap {
		encoded, err := json.Marshal(structured)
		if err != nil {
			return task.NewInvalidEventError("result payload is not JSON-encodable")
		}
		if err := json.Unmarshal(encoded, &result); err != nil {
			return task.NewInvalidEventError("result payload has invalid shape")
		}
		if result.TaskID == "" {
			result.TaskID = event.TaskID
		}
	} else {
		result = task.TaskResult{TaskID: event.TaskID, Data: raw}
	}

	h.applyResultTTL(&result, event.TS)

	return h.storage.SetTaskResult(ctx, event.TaskID, result, nil)
}

// HandleResultChunkEvent broadcasts a result chunk to live subscribers.
// Chunks are not persisted; durable chunk history requires an independent
// appender outside this pipeline.
func (h *TaskEventHandler) HandleResultChunkEvent(ctx context.Context, event task.TaskEvent) error {
	if _, ok := event.Payload["chunk_id"]; !ok {
		return task.NewInvalidEventError("result chunk payload must include chunk_id")
	}
	if _, ok := event.Payload["data"]; !ok {
		return task.NewInvalidEventError("result chunk payload must include data")
	}
	return h.broadcaster.BroadcastEvent(ctx, event)
}

func (h *TaskEventHandler) decodeStatus(event task.TaskEvent) (task.TaskStatus, error) {
	raw, ok := event.Payload["status"].(map[string]interface{})
	if !ok {
		return task.TaskStatus{}, task.NewInvalidEventError("status payload is missing or invalid")
	}

	encoded, err := json.Marshal(raw)
	if err != nil {
		return task.TaskStatus{}, task.NewInvalidEventError("status payload is not JSON-encodable")
	}

	var status task.TaskStatus
	if err := json.Unmarshal(encoded, &status); err != nil {
		return task.TaskStatus{}, task.NewInvalidEventError("status payload has invalid shape")
	}
	if err := h.validate.Struct(status); err != nil {
		return task.TaskStatus{}, task.NewInvalidEventError("status payload failed validation: " + err.Error())
	}
	return status, nil
}

// annotate stamps server-side instrumentation onto the status metrics of the
// outgoing broadcast: the send timestamp and the cumulative handling time
// for this task in this process.
func (h *TaskEventHandler) annotate(event task.TaskEvent, started time.Time, terminal bool) {
	elapsed := float64(time.Since(started).Microseconds()) / 1000.0
	h.cpuMillis[event.TaskID] += elapsed
	cumulative := h.cpuMillis[event.TaskID]
	if terminal {
		delete(h.cpuMillis, event.TaskID)
	}

	statusMap, ok := event.Payload["status"].(map[string]interface{})
	if !ok {
		return
	}
	metrics, ok := statusMap["metrics"].(map[string]interface{})
	if !ok {
		metrics = make(map[string]interface{})
		statusMap["metrics"] = metrics
	}
	metrics["server_sent_ts"] = time.Now().UTC().Format(time.RFC3339Nano)
	metrics["server_cpu_ms_ws"] = cumulative
}

func (h *TaskEventHandler) applyResultTTL(result *task.TaskResult, ts time.Time) {
	if h.resultTTL <= 0 || result.TTLSeconds != nil {
		return
	}
	ttl := int(h.resultTTL.Seconds())
	result.TTLSeconds = &ttl
	if result.ExpiresAt == nil {
		expires := ts.Add(h.resultTTL).UTC()
		result.ExpiresAt = &expires
	}
}

func timePtr(t time.Time) *time.Time {
	utc := t.UTC()
	return &utc
}
