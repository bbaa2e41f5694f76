package helpers

import (
	"errors"
	"sync"
)

// MockSession records messages sent to a broadcast subscriber
type MockSession struct {
	mu       sync.Mutex
	messages [][]byte
	failSend bool
	closed   bool
}

// NewMockSession creates a new mock session
func NewMockSession() *MockSession {
	return &MockSession{}
}

// FailNextSends makes every subsequent Send return an error
func (m *MockSession) FailNextSends() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failSend = true
}

// Send records the message unless configured to fail
func (m *MockSession) Send(message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failSend {
		return errors.New("send failed")
	}
	msg := make([]byte, len(message))
	copy(msg, message)
	m.messages = append(m.messages, msg)
	return nil
}

// Close marks the session closed
func (m *MockSession) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
}

// Closed reports whether Close was called
func (m *MockSession) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Messages returns a copy of everything received
func (m *MockSession) Messages() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.messages))
	copy(out, m.messages)
	return out
}
