package tasks

import (
	"context"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
)

// HandlerFunc applies one event type to the system.
type HandlerFunc func(ctx context.Context, event task.TaskEvent) error

// EventRouter dispatches decoded events to the handler registered for their
// type. An event with no registered handler is invalid: the consumer acks
// and drops it rather than blocking the group.
type EventRouter struct {
	handlers map[task.EventType]HandlerFunc
}

// NewEventRouter creates an empty router.
func NewEventRouter() *EventRouter {
	return &EventRouter{
		handlers: make(map[task.EventType]HandlerFunc),
	}
}

// Register binds a handler to an event type, replacing any previous binding.
func (r *EventRouter) Register(eventType task.EventType, handler HandlerFunc) {
	r.handlers[eventType] = handler
}

// Dispatch routes the event to its handler.
func (r *EventRouter) Dispatch(ctx context.Context, event task.TaskEvent) error {
	handler, ok := r.handlers[event.Type]
	if !ok {
		return task.NewInvalidEventError("no handler registered for event type " + string(event.Type))
	}
	return handler(ctx, event)
}

// NewTaskEventRouter wires the standard task event pipeline: one handler per
// event type.
func NewTaskEventRouter(handler *TaskEventHandler) *EventRouter {
	router := NewEventRouter()
	router.Register(task.EventTaskStatus, handler.HandleStatusEvent)
	router.Register(task.EventTaskResult, handler.HandleResultEvent)
	router.Register(task.EventTaskResultChunk, handler.HandleResultChunkEvent)
	return router
}
