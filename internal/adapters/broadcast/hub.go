package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
)

// Session is an open message channel to one live client. Send must not
// block: implementations buffer internally and fail fast on overflow.
type Session interface {
	Send(message []byte) error
	Close()
}

// Hub maintains per-task subscriber sets and fans events out to them.
// Messages to a single session are delivered in the order the hub received
// them; there is no cross-task ordering guarantee.
type Hub struct {
	mu     sync.Mutex
	subs   map[string]map[Session]struct{}
	logger *logrus.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		subs:   make(map[string]map[Session]struct{}),
		logger: logger,
	}
}

// Subscribe registers the session for events of the given task.
func (h *Hub) Subscribe(taskID string, session Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.subs[taskID]
	if !ok {
		set = make(map[Session]struct{})
		h.subs[taskID] = set
	}
	set[session] = struct{}{}
}

// Unsubscribe removes the session; empty subscriber sets are dropped.
func (h *Hub) Unsubscribe(taskID string, session Session) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(taskID, session)
}

// SubscriberCount reports the live subscriber count for a task.
func (h *Hub) SubscriberCount(taskID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[taskID])
}

// BroadcastEvent delivers the event to every subscriber of its task as a
// single framed JSON message. Iteration is over a snapshot so concurrent
// unsubscribes are safe; sessions that fail to send are unsubscribed and
// closed in place.
func (h *Hub) BroadcastEvent(ctx context.Context, event task.TaskEvent) error {
	frame, err := json.Marshal(map[string]interface{}{
		"type":    event.Type,
		"task_id": event.TaskID,
		"payload": event.Payload,
	})
	if err != nil {
		return fmt.Errorf("failed to encode broadcast frame: %w", err)
	}

	h.mu.Lock()
	snapshot := make([]Session, 0, len(h.subs[event.TaskID]))
	for session := range h.subs[event.TaskID] {
		snapshot = append(snapshot, session)
	}
	h.mu.Unlock()

	for _, session := range snapshot {
		if err := session.Send(frame); err != nil {
			h.logger.WithError(err).WithField("task_id", event.TaskID).Warn("Dropping slow or closed session")
			h.mu.Lock()
			h.removeLocked(event.TaskID, session)
			h.mu.Unlock()
			session.Close()
		}
	}
	return nil
}

func (h *Hub) removeLocked(taskID string, session Session) {
	set, ok := h.subs[taskID]
	if !ok {
		return
	}
	delete(set, session)
	if len(set) == 0 {
		delete(h.subs, taskID)
	}
}
