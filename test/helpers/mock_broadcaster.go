package helpers

import (
	"context"
	"sync"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
)

// MockBroadcaster records broadcast events for assertions
type MockBroadcaster struct {
	mu     sync.Mutex
	events []task.TaskEvent
}

// NewMockBroadcaster creates a new mock broadcaster
func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{}
}

// BroadcastEvent records the event
func (m *MockBroadcaster) BroadcastEvent(ctx context.Context, event task.TaskEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

// Events returns a copy of everything broadcast so far
func (m *MockBroadcaster) Events() []task.TaskEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]task.TaskEvent, len(m.events))
	copy(out, m.events)
	return out
}
