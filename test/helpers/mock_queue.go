package helpers

import (
	"context"
	"sync"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
)

// MockQueue records enqueued tasks and can be configured to fail
type MockQueue struct {
	mu    sync.Mutex
	tasks []*task.Task
	err   error
}

// NewMockQueue creates a new mock queue
func NewMockQueue() *MockQueue {
	return &MockQueue{}
}

// SetError makes subsequent enqueues fail with the given error
func (m *MockQueue) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Enqueue records the task unless an error is configured
func (m *MockQueue) Enqueue(ctx context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.tasks = append(m.tasks, t)
	return nil
}

// Enqueued returns a copy of every enqueued task
func (m *MockQueue) Enqueued() []*task.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*task.Task, len(m.tasks))
	copy(out, m.tasks)
	return out
}
