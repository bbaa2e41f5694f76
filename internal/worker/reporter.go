package worker

import (
	"context"
	"fmt"
	"strconv"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
)

// TaskReporter publishes events for a single task execution. Every emission
// goes through the event log, so the API side sees worker progress with the
// same delivery guarantees as any other event.
type TaskReporter struct {
	taskID    string
	publisher task.EventPublisher
}

// NewTaskReporter creates a reporter scoped to one task.
func NewTaskReporter(taskID string, publisher task.EventPublisher) *TaskReporter {
	return &TaskReporter{taskID: taskID, publisher: publisher}
}

// TaskID returns the task this reporter is scoped to.
func (r *TaskReporter) TaskID() string {
	return r.taskID
}

// ReportStatus publishes a TASK_STATUS event.
func (r *TaskReporter) ReportStatus(ctx context.Context, status task.TaskStatus) error {
	return r.publisher.Publish(ctx, task.NewStatusEvent(r.taskID, status))
}

// ReportResult publishes a TASK_RESULT event carrying the result snapshot.
func (r *TaskReporter) ReportResult(ctx context.Context, snapshot interface{}) error {
	return r.publisher.Publish(ctx, task.NewResultEvent(r.taskID, snapshot))
}

// ResultChunks opens a chunk emitter that batches items into
// TASK_RESULT_CHUNK events. The caller must Close it; the final flush is
// marked is_last even when the batch is empty.
func (r *TaskReporter) ResultChunks(batchSize int) (*ChunkReporter, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be a positive integer, got %d", batchSize)
	}
	return &ChunkReporter{reporter: r, batchSize: batchSize}, nil
}

// ChunkReporter batches streamed result items into chunk events with a
// per-task monotonic chunk id. Not safe for concurrent use; a task execution
// emits from a single goroutine.
type ChunkReporter struct {
	reporter   *TaskReporter
	batchSize  int
	chunkIndex int
	batch      []interface{}
	closed     bool
}

// Emit queues one item, flushing a full batch as a chunk event.
func (c *ChunkReporter) Emit(ctx context.Context, item interface{}) error {
	if c.closed {
		return fmt.Errorf("chunk reporter for task %s is closed", c.reporter.taskID)
	}
	c.batch = append(c.batch, item)
	if len(c.batch) >= c.batchSize {
		return c.flush(ctx, false)
	}
	return nil
}

// Extend queues each item in order.
func (c *ChunkReporter) Extend(ctx context.Context, items []interface{}) error {
	for _, item := range items {
		if err := c.Emit(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes whatever remains as the final chunk, marked is_last. The
// last chunk is always sent so subscribers can detect end of stream.
func (c *ChunkReporter) Close(ctx context.Context) error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.flush(ctx, true)
}

func (c *ChunkReporter) flush(ctx context.Context, isLast bool) error {
	items := make([]interface{}, len(c.batch))
	copy(items, c.batch)

	event := task.NewResultChunkEvent(c.reporter.taskID, strconv.Itoa(c.chunkIndex), items, isLast)
	if err := c.reporter.publisher.Publish(ctx, event); err != nil {
		return err
	}
	if !isLast {
		c.chunkIndex++
		c.batch = c.batch[:0]
	}
	return nil
}
