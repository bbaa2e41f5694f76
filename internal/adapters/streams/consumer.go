package streams

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
)

// Dispatcher routes a decoded event to its handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, event task.TaskEvent) error
}

// ConsumerOptions tune the read loop.
type ConsumerOptions struct {
	Stream         string
	Group          string
	Consumer       string
	Count          int64
	Block          time.Duration
	ReclaimPending bool
	ReclaimIdle    time.Duration
}

// Consumer reads task events from the log as a consumer group member and
// dispatches them. Processing within one consumer is serial and in log
// order; parallelism comes from running more consumers in the group.
//
// Ack policy: handled entries are acked; malformed entries are acked and
// dropped so they never block the group; handler failures are left unacked
// and picked up again via pending reclaim.
type Consumer struct {
	log        task.EventLog
	dispatcher Dispatcher
	logger     *logrus.Logger
	opts       ConsumerOptions

	running int32
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// ConsumerName generates a process-unique consumer name.
func ConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "consumer"
	}
	return fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
}

// NewConsumer creates a consumer over the given log and dispatcher.
func NewConsumer(log task.EventLog, dispatcher Dispatcher, logger *logrus.Logger, opts ConsumerOptions) *Consumer {
	if opts.Consumer == "" {
		opts.Consumer = ConsumerName()
	}
	if opts.Count == 0 {
		opts.Count = 10
	}
	if opts.Block == 0 {
		opts.Block = 5 * time.Second
	}
	return &Consumer{
		log:        log,
		dispatcher: dispatcher,
		logger:     logger,
		opts:       opts,
	}
}

// Start ensures the consumer group exists and spawns the read loop.
func (c *Consumer) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&c.running, 0, 1) {
		return errors.New("consumer already running")
	}

	if err := c.log.EnsureGroup(ctx, c.opts.Stream, c.opts.Group, "$"); err != nil {
		atomic.StoreInt32(&c.running, 0)
		return err
	}

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.logger.WithFields(logrus.Fields{
		"stream":   c.opts.Stream,
		"group":    c.opts.Group,
		"consumer": c.opts.Consumer,
	}).Info("Starting stream consumer")

	c.wg.Add(1)
	go c.loop(loopCtx)
	return nil
}

// Stop cancels the loop and waits for the in-flight entry to finish.
// Entries being processed at cancellation stay unacked and will be
// reclaimed by another group member. The shared log client is owned by the
// caller and stays open.
func (c *Consumer) Stop() {
	if !atomic.CompareAndSwapInt32(&c.running, 1, 0) {
		return
	}
	c.cancel()
	c.wg.Wait()
	c.logger.WithField("consumer", c.opts.Consumer).Info("Stream consumer stopped")
}

func (c *Consumer) loop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if c.opts.ReclaimPending {
			claimed, err := c.log.ClaimPending(ctx, c.opts.Stream, c.opts.Group, c.opts.Consumer, c.opts.ReclaimIdle, c.opts.Count)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				c.logger.WithError(err).Warn("Failed to claim pending entries")
			}
			c.processEntries(ctx, claimed)
		}

		entries, err := c.log.ReadGroup(ctx, c.opts.Stream, c.opts.Group, c.opts.Consumer, c.opts.Count, c.opts.Block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.WithError(err).Error("Failed to read from stream")
			// Brief pause so a broken connection does not spin the loop.
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		c.processEntries(ctx, entries)
	}
}

func (c *Consumer) processEntries(ctx context.Context, entries []task.LogEntry) {
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		c.processEntry(ctx, entry)
	}
}

func (c *Consumer) processEntry(ctx context.Context, entry task.LogEntry) {
	event, err := DecodeEvent(entry.Fields)
	if err != nil {
		// Poison pill: ack and drop so the group is never blocked.
		c.logger.WithError(err).WithField("entry_id", entry.ID).Warn("Dropping malformed event")
		c.ack(ctx, entry.ID)
		return
	}

	err = c.dispatcher.Dispatch(ctx, event)
	if err == nil {
		c.ack(ctx, entry.ID)
		return
	}

	var invalid *task.InvalidEventError
	if errors.As(err, &invalid) {
		c.logger.WithError(err).WithFields(logrus.Fields{
			"entry_id": entry.ID,
			"event_id": event.EventID,
			"type":     event.Type,
		}).Warn("Dropping invalid event")
		c.ack(ctx, entry.ID)
		return
	}

	if ctx.Err() != nil {
		// Cancelled mid-handler; leave the entry pending for reclaim.
		return
	}

	// Transient or fatal handler failure: leave unacked so the entry is
	// redelivered once it goes idle.
	c.logger.WithError(err).WithFields(logrus.Fields{
		"entry_id": entry.ID,
		"event_id": event.EventID,
		"type":     event.Type,
		"task_id":  event.TaskID,
	}).Error("Event handler failed, leaving entry pending")
}

func (c *Consumer) ack(ctx context.Context, entryID string) {
	if err := c.log.Ack(ctx, c.opts.Stream, c.opts.Group, entryID); err != nil {
		c.logger.WithError(err).WithField("entry_id", entryID).Warn("Failed to ack entry")
	}
}
