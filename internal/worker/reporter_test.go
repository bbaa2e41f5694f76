package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
	"github.com/andrescamacho/taskstream-go/test/helpers"
)

func TestReportStatusPublishesStatusEvent(t *testing.T) {
	publisher := helpers.NewMockPublisher()
	reporter := NewTaskReporter("t1", publisher)

	pct := 0.5
	status := task.TaskStatus{State: task.StateRunning, Progress: task.TaskProgress{Percentage: &pct}}
	require.NoError(t, reporter.ReportStatus(context.Background(), status))

	events := publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, task.EventTaskStatus, events[0].Type)
	assert.Equal(t, "t1", events[0].TaskID)

	statusMap := events[0].Payload["status"].(map[string]interface{})
	assert.Equal(t, "RUNNING", statusMap["state"])
}

func TestReportResultPublishesResultEvent(t *testing.T) {
	publisher := helpers.NewMockPublisher()
	reporter := NewTaskReporter("t1", publisher)

	require.NoError(t, reporter.ReportResult(context.Background(), map[string]interface{}{
		"task_id": "t1",
		"data":    "3.14",
	}))

	events := publisher.Events()
	require.Len(t, events, 1)
	assert.Equal(t, task.EventTaskResult, events[0].Type)
	result := events[0].Payload["result"].(map[string]interface{})
	assert.Equal(t, "3.14", result["data"])
}

func TestResultChunksRejectsNonPositiveBatchSize(t *testing.T) {
	reporter := NewTaskReporter("t1", helpers.NewMockPublisher())

	_, err := reporter.ResultChunks(0)
	assert.Error(t, err)
	_, err = reporter.ResultChunks(-3)
	assert.Error(t, err)
}

func TestChunkReporterBatchesWithMonotonicIDs(t *testing.T) {
	publisher := helpers.NewMockPublisher()
	reporter := NewTaskReporter("t1", publisher)
	ctx := context.Background()

	chunks, err := reporter.ResultChunks(2)
	require.NoError(t, err)

	for _, item := range []string{"a", "b", "c", "d", "e"} {
		require.NoError(t, chunks.Emit(ctx, item))
	}
	require.NoError(t, chunks.Close(ctx))

	events := publisher.EventsOfType(task.EventTaskResultChunk)
	require.Len(t, events, 3)

	assert.Equal(t, "0", events[0].Payload["chunk_id"])
	assert.Equal(t, []interface{}{"a", "b"}, events[0].Payload["data"])
	assert.Equal(t, false, events[0].Payload["is_last"])

	assert.Equal(t, "1", events[1].Payload["chunk_id"])
	assert.Equal(t, []interface{}{"c", "d"}, events[1].Payload["data"])
	assert.Equal(t, false, events[1].Payload["is_last"])

	// The final flush carries the remainder and the end-of-stream marker.
	assert.Equal(t, "2", events[2].Payload["chunk_id"])
	assert.Equal(t, []interface{}{"e"}, events[2].Payload["data"])
	assert.Equal(t, true, events[2].Payload["is_last"])
}

func TestChunkReporterCloseWithEmptyBatch(t *testing.T) {
	publisher := helpers.NewMockPublisher()
	reporter := NewTaskReporter("t1", publisher)
	ctx := context.Background()

	chunks, err := reporter.ResultChunks(1)
	require.NoError(t, err)
	require.NoError(t, chunks.Emit(ctx, "only"))
	require.NoError(t, chunks.Close(ctx))

	events := publisher.EventsOfType(task.EventTaskResultChunk)
	require.Len(t, events, 2)
	assert.Equal(t, false, events[0].Payload["is_last"])

	// Close always emits a final chunk, even when nothing is buffered.
	assert.Equal(t, true, events[1].Payload["is_last"])
	assert.Equal(t, []interface{}{}, events[1].Payload["data"])
}

func TestChunkReporterExtend(t *testing.T) {
	publisher := helpers.NewMockPublisher()
	reporter := NewTaskReporter("t1", publisher)
	ctx := context.Background()

	chunks, err := reporter.ResultChunks(3)
	require.NoError(t, err)
	require.NoError(t, chunks.Extend(ctx, []interface{}{"a", "b", "c", "d"}))
	require.NoError(t, chunks.Close(ctx))

	events := publisher.EventsOfType(task.EventTaskResultChunk)
	require.Len(t, events, 2)
	assert.Equal(t, []interface{}{"a", "b", "c"}, events[0].Payload["data"])
	assert.Equal(t, []interface{}{"d"}, events[1].Payload["data"])
}

func TestChunkReporterEmitAfterClose(t *testing.T) {
	reporter := NewTaskReporter("t1", helpers.NewMockPublisher())
	ctx := context.Background()

	chunks, err := reporter.ResultChunks(1)
	require.NoError(t, err)
	require.NoError(t, chunks.Close(ctx))

	assert.Error(t, chunks.Emit(ctx, "late"))
	assert.NoError(t, chunks.Close(ctx), "second close is a no-op")
}
