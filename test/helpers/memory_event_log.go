package helpers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
)

// MemoryEventLog is an in-memory task.EventLog with consumer-group and
// pending-set semantics, close enough to the real stream backend to exercise
// delivery, ack and reclaim behavior in tests.
type MemoryEventLog struct {
	mu      sync.Mutex
	streams map[string]*memoryStream
	closed  bool
}

type memoryStream struct {
	entries []task.LogEntry
	nextSeq int64
	groups  map[string]*memoryGroup
}

type memoryGroup struct {
	cursor  int
	pending map[string]*pendingEntry
}

type pendingEntry struct {
	entry     task.LogEntry
	consumer  string
	delivered time.Time
}

// NewMemoryEventLog creates an empty in-memory log.
func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{streams: make(map[string]*memoryStream)}
}

func (m *MemoryEventLog) stream(name string) *memoryStream {
	s, ok := m.streams[name]
	if !ok {
		s = &memoryStream{groups: make(map[string]*memoryGroup)}
		m.streams[name] = s
	}
	return s
}

// EnsureGroup creates the group; an existing group is left untouched.
func (m *MemoryEventLog) EnsureGroup(ctx context.Context, stream, group, startID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stream(stream)
	if _, ok := s.groups[group]; ok {
		return nil
	}
	g := &memoryGroup{pending: make(map[string]*pendingEntry)}
	if startID == "$" {
		g.cursor = len(s.entries)
	}
	s.groups[group] = g
	return nil
}

// Append adds an entry and returns its id. MaxLen trimming keeps the newest
// entries, matching the real backend.
func (m *MemoryEventLog) Append(ctx context.Context, stream string, fields map[string]string, maxLen int64, approx bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stream(stream)
	s.nextSeq++
	entry := task.LogEntry{
		ID:     fmt.Sprintf("%d-0", s.nextSeq),
		Fields: copyFields(fields),
	}
	s.entries = append(s.entries, entry)

	if maxLen > 0 && int64(len(s.entries)) > maxLen {
		drop := len(s.entries) - int(maxLen)
		s.entries = s.entries[drop:]
		for _, g := range s.groups {
			if g.cursor > drop {
				g.cursor -= drop
			} else {
				g.cursor = 0
			}
		}
	}
	return entry.ID, nil
}

// ReadGroup delivers new entries past the group's cursor and records them in
// the consumer's pending set. It never blocks.
func (m *MemoryEventLog) ReadGroup(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]task.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stream(stream)
	g, ok := s.groups[group]
	if !ok {
		return nil, fmt.Errorf("no such group %s on stream %s", group, stream)
	}

	var out []task.LogEntry
	for g.cursor < len(s.entries) && int64(len(out)) < count {
		entry := s.entries[g.cursor]
		g.cursor++
		g.pending[entry.ID] = &pendingEntry{
			entry:     entry,
			consumer:  consumer,
			delivered: time.Now(),
		}
		out = append(out, entry)
	}
	return out, nil
}

// ClaimPending transfers entries idle for at least minIdle to the consumer.
func (m *MemoryEventLog) ClaimPending(ctx context.Context, stream, group, consumer string, minIdle time.Duration, count int64) ([]task.LogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stream(stream)
	g, ok := s.groups[group]
	if !ok {
		return nil, fmt.Errorf("no such group %s on stream %s", group, stream)
	}

	now := time.Now()
	var out []task.LogEntry
	for _, p := range g.pending {
		if int64(len(out)) >= count {
			break
		}
		if now.Sub(p.delivered) >= minIdle {
			p.consumer = consumer
			p.delivered = now
			out = append(out, p.entry)
		}
	}
	return out, nil
}

// Ack removes entries from the group's pending set.
func (m *MemoryEventLog) Ack(ctx context.Context, stream, group string, ids ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := m.stream(stream)
	g, ok := s.groups[group]
	if !ok {
		return fmt.Errorf("no such group %s on stream %s", group, stream)
	}
	for _, id := range ids {
		delete(g.pending, id)
	}
	return nil
}

// Close marks the log closed.
func (m *MemoryEventLog) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// DeliveredCount reports how many entries the group has read so far.
func (m *MemoryEventLog) DeliveredCount(stream, group string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.stream(stream).groups[group]; ok {
		return g.cursor
	}
	return 0
}

// PendingCount reports the group's pending set size.
func (m *MemoryEventLog) PendingCount(stream, group string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.stream(stream).groups[group]; ok {
		return len(g.pending)
	}
	return 0
}

// Entries returns a copy of the stream's entries.
func (m *MemoryEventLog) Entries(stream string) []task.LogEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.stream(stream)
	out := make([]task.LogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// AgePending backdates every pending delivery so reclaim tests do not sleep.
func (m *MemoryEventLog) AgePending(stream, group string, by time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if g, ok := m.stream(stream).groups[group]; ok {
		for _, p := range g.pending {
			p.delivered = p.delivered.Add(-by)
		}
	}
}

func copyFields(fields map[string]string) map[string]string {
	out := make(map[string]string, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
