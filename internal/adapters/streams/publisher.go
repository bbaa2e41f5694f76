package streams

import (
	"context"
	"fmt"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
)

// Publisher appends serialized task events to a stream. It is used both by
// the service process and by workers; the two sides serialize identically so
// a consumer cannot distinguish the producer. Batches are published
// sequentially and failures propagate to the caller.
type Publisher struct {
	log    task.EventLog
	stream string
	maxLen int64
	approx bool
}

// NewPublisher creates a publisher for the given stream. A positive maxLen
// enables approximate trimming on append.
func NewPublisher(log task.EventLog, stream string, maxLen int64) *Publisher {
	return &Publisher{
		log:    log,
		stream: stream,
		maxLen: maxLen,
		approx: true,
	}
}

// Publish serializes and appends each event in order.
func (p *Publisher) Publish(ctx context.Context, events ...task.TaskEvent) error {
	for _, event := range events {
		fields, err := EncodeEvent(event)
		if err != nil {
			return err
		}
		if _, err := p.log.Append(ctx, p.stream, fields, p.maxLen, p.approx); err != nil {
			return fmt.Errorf("failed to publish %s event for task %s: %w", event.Type, event.TaskID, err)
		}
	}
	return nil
}
