package helpers

import (
	"context"
	"sync"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
)

// MockPublisher records published events for assertions
type MockPublisher struct {
	mu     sync.Mutex
	events []task.TaskEvent
	err    error
}

// NewMockPublisher creates a new mock publisher
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{}
}

// SetError makes subsequent publishes fail with the given error
func (m *MockPublisher) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Publish records the events unless an error is configured
func (m *MockPublisher) Publish(ctx context.Context, events ...task.TaskEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, events...)
	return nil
}

// Events returns a copy of everything published so far
func (m *MockPublisher) Events() []task.TaskEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]task.TaskEvent, len(m.events))
	copy(out, m.events)
	return out
}

// EventsOfType filters published events by type
func (m *MockPublisher) EventsOfType(eventType task.EventType) []task.TaskEvent {
	var out []task.TaskEvent
	for _, e := range m.Events() {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}
