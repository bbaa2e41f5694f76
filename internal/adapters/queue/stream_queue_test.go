package queue

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
	"github.com/andrescamacho/taskstream-go/test/helpers"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestRoutingTableResolvesKnownTypes(t *testing.T) {
	routes := DefaultRoutes()

	route, err := routes.Resolve(task.TypeComputePi)
	require.NoError(t, err)
	assert.Equal(t, "compute_pi", route.Stream)
	assert.Equal(t, "default", route.Queue)

	route, err = routes.Resolve(task.TypeDocumentAnalysis)
	require.NoError(t, err)
	assert.Equal(t, "document_analysis", route.Stream)
	assert.Equal(t, "doc-tasks", route.Queue)
}

func TestRoutingTableRejectsUnknownType(t *testing.T) {
	_, err := DefaultRoutes().Resolve(task.TaskType("SORT_SOCKS"))
	var invalid *task.InvalidTaskTypeError
	assert.ErrorAs(t, err, &invalid)
}

func TestEnqueueAppendsToRoutedStream(t *testing.T) {
	log := helpers.NewMemoryEventLog()
	q := NewStreamTaskQueue(log, nil, testLogger())

	err := q.Enqueue(context.Background(), &task.Task{
		ID:      "t1",
		OwnerID: "alice",
		Type:    task.TypeComputePi,
		Payload: task.ComputePiPayload{Digits: 25},
	})
	require.NoError(t, err)

	entries := log.Entries("compute_pi")
	require.Len(t, entries, 1)
	assert.Equal(t, "t1", entries[0].Fields["task_id"])
	assert.Equal(t, "COMPUTE_PI", entries[0].Fields["task_type"])
	assert.Equal(t, "default", entries[0].Fields["queue"])
	assert.NotEmpty(t, entries[0].Fields["submitted_ts"])

	assert.Empty(t, log.Entries("document_analysis"))
}

func TestEnqueueUnknownTypeFails(t *testing.T) {
	log := helpers.NewMemoryEventLog()
	q := NewStreamTaskQueue(log, nil, testLogger())

	err := q.Enqueue(context.Background(), &task.Task{
		ID:   "t1",
		Type: task.TaskType("SORT_SOCKS"),
	})
	var invalid *task.InvalidTaskTypeError
	assert.ErrorAs(t, err, &invalid)
}

func TestDecodeExecutionRequestRoundTrip(t *testing.T) {
	log := helpers.NewMemoryEventLog()
	q := NewStreamTaskQueue(log, nil, testLogger())

	original := &task.Task{
		ID:      "t1",
		Type:    task.TypeDocumentAnalysis,
		Payload: task.DocumentAnalysisPayload{DocumentPath: "/tmp/x.txt", Keywords: []string{"whale", "ship"}},
	}
	require.NoError(t, q.Enqueue(context.Background(), original))

	entries := log.Entries("document_analysis")
	require.Len(t, entries, 1)

	req, err := DecodeExecutionRequest(entries[0])
	require.NoError(t, err)
	assert.Equal(t, "t1", req.TaskID)
	assert.Equal(t, task.TypeDocumentAnalysis, req.Type)
	assert.Equal(t, original.Payload, req.Payload)
	assert.Equal(t, "doc-tasks", req.Queue)
	assert.False(t, req.SubmittedAt.IsZero())
}

func TestDecodeExecutionRequestMalformed(t *testing.T) {
	var invalid *task.InvalidEventError

	_, err := DecodeExecutionRequest(task.LogEntry{ID: "1-0", Fields: map[string]string{}})
	assert.ErrorAs(t, err, &invalid)

	_, err = DecodeExecutionRequest(task.LogEntry{ID: "1-0", Fields: map[string]string{
		"task_id":   "t1",
		"task_type": "COMPUTE_PI",
		"payload":   "{",
	}})
	assert.ErrorAs(t, err, &invalid)
}
