package task

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskStateIsTerminal(t *testing.T) {
	assert.False(t, StateQueued.IsTerminal())
	assert.False(t, StateRunning.IsTerminal())
	assert.True(t, StateCompleted.IsTerminal())
	assert.True(t, StateFailed.IsTerminal())
	assert.True(t, StateCancelled.IsTerminal())
}

func TestStatusPctDefaultsToZero(t *testing.T) {
	status := NewStatus(StateRunning)
	assert.Equal(t, 0.0, status.Pct())

	pct := 0.42
	status.Progress.Percentage = &pct
	assert.Equal(t, 0.42, status.Pct())
}

func TestStatusWithMessage(t *testing.T) {
	status := NewStatus(StateFailed).WithMessage("boom")
	require.NotNil(t, status.Message)
	assert.Equal(t, "boom", *status.Message)
}

func TestMetadataMergeKeepsExistingFields(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	updated := created.Add(time.Minute)

	meta := TaskMetadata{CreatedAt: &created}
	meta.Merge(TaskMetadata{UpdatedAt: &updated})

	require.NotNil(t, meta.CreatedAt)
	assert.Equal(t, created, *meta.CreatedAt)
	require.NotNil(t, meta.UpdatedAt)
	assert.Equal(t, updated, *meta.UpdatedAt)
	assert.Nil(t, meta.FinishedAt)
}

func TestDecodePayloadByType(t *testing.T) {
	payload, err := DecodePayload(TypeComputePi, []byte(`{"digits": 10}`))
	require.NoError(t, err)
	pi, ok := payload.(ComputePiPayload)
	require.True(t, ok)
	assert.Equal(t, 10, pi.Digits)

	payload, err = DecodePayload(TypeDocumentAnalysis, []byte(`{"document_path": "/tmp/x.txt", "keywords": ["a"]}`))
	require.NoError(t, err)
	doc, ok := payload.(DocumentAnalysisPayload)
	require.True(t, ok)
	assert.Equal(t, []string{"a"}, doc.Keywords)
}

func TestDecodePayloadUnknownType(t *testing.T) {
	_, err := DecodePayload(TaskType("UNKNOWN"), []byte(`{}`))
	var invalidType *InvalidTaskTypeError
	assert.ErrorAs(t, err, &invalidType)
}

func TestNewStatusEventNormalizesPayload(t *testing.T) {
	pct := 0.5
	status := TaskStatus{
		State:    StateRunning,
		Progress: TaskProgress{Percentage: &pct},
		Metrics:  map[string]interface{}{"digits_sent": 5},
	}

	event := NewStatusEvent("abc", status)

	assert.NotEmpty(t, event.EventID)
	assert.Equal(t, EventTaskStatus, event.Type)
	assert.Equal(t, "abc", event.TaskID)
	assert.False(t, event.TS.IsZero())

	// Payload values must already be JSON-plain so the event survives the
	// wire codec unchanged.
	statusMap, ok := event.Payload["status"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "RUNNING", statusMap["state"])
	metrics, ok := statusMap["metrics"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(5), metrics["digits_sent"])
}

func TestNewResultChunkEvent(t *testing.T) {
	event := NewResultChunkEvent("abc", "3", []interface{}{"1", "4"}, true)

	assert.Equal(t, EventTaskResultChunk, event.Type)
	assert.Equal(t, "3", event.Payload["chunk_id"])
	assert.Equal(t, true, event.Payload["is_last"])
	data, ok := event.Payload["data"].([]interface{})
	require.True(t, ok)
	assert.Len(t, data, 2)
}
