package streams

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
	"github.com/andrescamacho/taskstream-go/test/helpers"
)

type recordingDispatcher struct {
	mu     sync.Mutex
	events []task.TaskEvent
	err    error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, event task.TaskEvent) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.events = append(d.events, event)
	return nil
}

func (d *recordingDispatcher) Events() []task.TaskEvent {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]task.TaskEvent, len(d.events))
	copy(out, d.events)
	return out
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func publishStatus(t *testing.T, log task.EventLog, stream, taskID string) task.TaskEvent {
	t.Helper()
	event := task.NewStatusEvent(taskID, task.NewStatus(task.StateRunning))
	fields, err := EncodeEvent(event)
	require.NoError(t, err)
	_, err = log.Append(context.Background(), stream, fields, 0, false)
	require.NoError(t, err)
	return event
}

func TestConsumerDispatchesAndAcks(t *testing.T) {
	log := helpers.NewMemoryEventLog()
	dispatcher := &recordingDispatcher{}
	ctx := context.Background()

	require.NoError(t, log.EnsureGroup(ctx, "task_events", "api", "$"))
	published := publishStatus(t, log, "task_events", "task-1")

	consumer := NewConsumer(log, dispatcher, testLogger(), ConsumerOptions{
		Stream:   "task_events",
		Group:    "api",
		Consumer: "c1",
	})

	entries, err := log.ReadGroup(ctx, "task_events", "api", "c1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	consumer.processEntry(ctx, entries[0])

	events := dispatcher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, published.EventID, events[0].EventID)
	assert.Equal(t, 0, log.PendingCount("task_events", "api"))
}

func TestConsumerAcksPoisonPill(t *testing.T) {
	log := helpers.NewMemoryEventLog()
	dispatcher := &recordingDispatcher{}
	ctx := context.Background()

	require.NoError(t, log.EnsureGroup(ctx, "task_events", "api", "$"))
	_, err := log.Append(ctx, "task_events", map[string]string{
		"event_id": "e1",
		"type":     "TASK_STATUS",
		"task_id":  "task-1",
		"ts":       time.Now().UTC().Format(time.RFC3339Nano),
		"payload":  "{",
	}, 0, false)
	require.NoError(t, err)

	consumer := NewConsumer(log, dispatcher, testLogger(), ConsumerOptions{
		Stream:   "task_events",
		Group:    "api",
		Consumer: "c1",
	})

	entries, err := log.ReadGroup(ctx, "task_events", "api", "c1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	consumer.processEntry(ctx, entries[0])

	// Malformed entries are dropped and acked, never dispatched.
	assert.Empty(t, dispatcher.Events())
	assert.Equal(t, 0, log.PendingCount("task_events", "api"))
}

func TestConsumerLeavesFailedEntryPending(t *testing.T) {
	log := helpers.NewMemoryEventLog()
	dispatcher := &recordingDispatcher{err: errors.New("db unavailable")}
	ctx := context.Background()

	require.NoError(t, log.EnsureGroup(ctx, "task_events", "api", "$"))
	publishStatus(t, log, "task_events", "task-1")

	consumer := NewConsumer(log, dispatcher, testLogger(), ConsumerOptions{
		Stream:   "task_events",
		Group:    "api",
		Consumer: "c1",
	})

	entries, err := log.ReadGroup(ctx, "task_events", "api", "c1", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	consumer.processEntry(ctx, entries[0])
	assert.Equal(t, 1, log.PendingCount("task_events", "api"))
}

func TestConsumerReclaimsPendingFromDeadMember(t *testing.T) {
	log := helpers.NewMemoryEventLog()
	ctx := context.Background()

	require.NoError(t, log.EnsureGroup(ctx, "task_events", "api", "$"))
	published := publishStatus(t, log, "task_events", "task-1")

	// First member reads the entry and dies without acking.
	entries, err := log.ReadGroup(ctx, "task_events", "api", "dead", 10, 0)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	log.AgePending("task_events", "api", 2*time.Minute)

	dispatcher := &recordingDispatcher{}
	consumer := NewConsumer(log, dispatcher, testLogger(), ConsumerOptions{
		Stream:         "task_events",
		Group:          "api",
		Consumer:       "c2",
		ReclaimPending: true,
		ReclaimIdle:    time.Minute,
	})

	claimed, err := log.ClaimPending(ctx, "task_events", "api", "c2", time.Minute, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)

	consumer.processEntry(ctx, claimed[0])

	events := dispatcher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, published.EventID, events[0].EventID)
	assert.Equal(t, 0, log.PendingCount("task_events", "api"))
}

func TestConsumerStartStop(t *testing.T) {
	log := helpers.NewMemoryEventLog()
	dispatcher := &recordingDispatcher{}

	consumer := NewConsumer(log, dispatcher, testLogger(), ConsumerOptions{
		Stream: "task_events",
		Group:  "api",
		Block:  time.Millisecond,
	})

	ctx := context.Background()
	require.NoError(t, consumer.Start(ctx))
	assert.Error(t, consumer.Start(ctx), "second start must fail")

	publishStatus(t, log, "task_events", "task-1")

	assert.Eventually(t, func() bool {
		return len(dispatcher.Events()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	consumer.Stop()
	assert.Equal(t, 0, log.PendingCount("task_events", "api"))
}
