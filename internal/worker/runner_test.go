package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/taskstream-go/internal/adapters/queue"
	"github.com/andrescamacho/taskstream-go/internal/domain/task"
	"github.com/andrescamacho/taskstream-go/test/helpers"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func enqueue(t *testing.T, log task.EventLog, taskID string) {
	t.Helper()
	q := queue.NewStreamTaskQueue(log, nil, testLogger())
	err := q.Enqueue(context.Background(), &task.Task{
		ID:      taskID,
		Type:    task.TypeComputePi,
		Payload: task.ComputePiPayload{Digits: 5},
	})
	require.NoError(t, err)
}

func TestRunnerExecutesRegisteredTask(t *testing.T) {
	log := helpers.NewMemoryEventLog()
	publisher := helpers.NewMockPublisher()

	var mu sync.Mutex
	var executed []string

	runner := NewRunner(log, publisher, testLogger(), RunnerOptions{
		Queues: []string{"compute_pi"},
		Group:  "workers",
		Block:  time.Millisecond,
	})
	runner.Register(task.TypeComputePi, func(ctx context.Context, req queue.ExecutionRequest, reporter *TaskReporter) error {
		mu.Lock()
		executed = append(executed, req.TaskID)
		mu.Unlock()
		return nil
	})

	// Requests enqueued before the worker starts are still picked up.
	enqueue(t, log, "t1")

	require.NoError(t, runner.Start(context.Background()))
	defer runner.Stop()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(executed) == 1 && executed[0] == "t1"
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		return log.PendingCount("compute_pi", "workers") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunnerReportsFailedStatusOnTaskError(t *testing.T) {
	log := helpers.NewMemoryEventLog()
	publisher := helpers.NewMockPublisher()

	runner := NewRunner(log, publisher, testLogger(), RunnerOptions{
		Queues: []string{"compute_pi"},
		Group:  "workers",
		Block:  time.Millisecond,
	})
	runner.Register(task.TypeComputePi, func(ctx context.Context, req queue.ExecutionRequest, reporter *TaskReporter) error {
		return errors.New("digit factory jammed")
	})

	enqueue(t, log, "t1")

	require.NoError(t, runner.Start(context.Background()))
	defer runner.Stop()

	assert.Eventually(t, func() bool {
		return len(publisher.EventsOfType(task.EventTaskStatus)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	events := publisher.EventsOfType(task.EventTaskStatus)
	statusMap := events[0].Payload["status"].(map[string]interface{})
	assert.Equal(t, "FAILED", statusMap["state"])
	assert.Contains(t, statusMap["message"], "digit factory jammed")

	// Failed executions are still acked; failure is not retried.
	assert.Eventually(t, func() bool {
		return log.PendingCount("compute_pi", "workers") == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestRunnerReportsFailedForUnregisteredType(t *testing.T) {
	log := helpers.NewMemoryEventLog()
	publisher := helpers.NewMockPublisher()

	runner := NewRunner(log, publisher, testLogger(), RunnerOptions{
		Queues: []string{"compute_pi"},
		Group:  "workers",
		Block:  time.Millisecond,
	})

	enqueue(t, log, "t1")

	require.NoError(t, runner.Start(context.Background()))
	defer runner.Stop()

	assert.Eventually(t, func() bool {
		return len(publisher.EventsOfType(task.EventTaskStatus)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	statusMap := publisher.EventsOfType(task.EventTaskStatus)[0].Payload["status"].(map[string]interface{})
	assert.Equal(t, "FAILED", statusMap["state"])
}

func TestRunnerAcksMalformedRequest(t *testing.T) {
	log := helpers.NewMemoryEventLog()
	publisher := helpers.NewMockPublisher()

	runner := NewRunner(log, publisher, testLogger(), RunnerOptions{
		Queues: []string{"compute_pi"},
		Group:  "workers",
		Block:  time.Millisecond,
	})
	runner.Register(task.TypeComputePi, func(ctx context.Context, req queue.ExecutionRequest, reporter *TaskReporter) error {
		t.Error("malformed request must not reach the task function")
		return nil
	})

	_, err := log.Append(context.Background(), "compute_pi", map[string]string{"garbage": "yes"}, 0, false)
	require.NoError(t, err)

	require.NoError(t, runner.Start(context.Background()))
	defer runner.Stop()

	assert.Eventually(t, func() bool {
		return log.DeliveredCount("compute_pi", "workers") == 1 && log.PendingCount("compute_pi", "workers") == 0
	}, 2*time.Second, 10*time.Millisecond)
	assert.Empty(t, publisher.Events())
}

func TestRunnerRequiresQueues(t *testing.T) {
	runner := NewRunner(helpers.NewMemoryEventLog(), helpers.NewMockPublisher(), testLogger(), RunnerOptions{
		Group: "workers",
	})
	assert.Error(t, runner.Start(context.Background()))
}
