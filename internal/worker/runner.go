package worker

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

	"github.com/andrescamacho/taskstream-go/internal/adapters/queue"
	"github.com/andrescamacho/taskstream-go/internal/domain/task"
)

// TaskFunc executes one task kind. Implementations stream progress and
// results through the reporter and return an error only for failures the
// runner should surface as a FAILED status.
type TaskFunc func(ctx context.Context, req queue.ExecutionRequest, reporter *TaskReporter) error

// RunnerOptions tune the worker pool.
type RunnerOptions struct {
	Queues      []string
	Group       string
	Consumer    string
	Concurrency int
	Count       int64
	Block       time.Duration
	ReclaimIdle time.Duration
}

// Runner consumes execution-request streams as a consumer group member and
// executes registered task functions. Concurrency is bounded by a shared
// slot pool across all subscribed streams.
//
// A request is acked once its execution finishes, success or failure; a
// worker crash leaves it pending so another group member reclaims it.
type Runner struct {
	log       task.EventLog
	publisher task.EventPublisher
	logger    *logrus.Logger
	opts      RunnerOptions

	registry map[task.TaskType]TaskFunc
	slots    chan struct{}

	running int32
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewRunner creates a runner over the shared event log and publisher.
func NewRunner(log task.EventLog, publisher task.EventPublisher, logger *logrus.Logger, opts RunnerOptions) *Runner {
	if opts.Consumer == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "worker"
		}
		opts.Consumer = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Count == 0 {
		opts.Count = 10
	}
	if opts.Block == 0 {
		opts.Block = 5 * time.Second
	}
	if opts.ReclaimIdle == 0 {
		opts.ReclaimIdle = time.Minute
	}
	return &Runner{
		log:       log,
		publisher: publisher,
		logger:    logger,
		opts:      opts,
		registry:  make(map[task.TaskType]TaskFunc),
		slots:     make(chan struct{}, opts.Concurrency),
	}
}

// Register binds a task function to a task type.
func (r *Runner) Register(taskType task.TaskType, fn TaskFunc) {
	r.registry[taskType] = fn
}

// Start joins the consumer group on every subscribed stream and spawns one
// read loop per stream. Groups start at "0" so requests enqueued before the
// first worker came up are still executed.
func (r *Runner) Start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&r.running, 0, 1) {
		return errors.New("runner already running")
	}
	if len(r.opts.Queues) == 0 {
		atomic.StoreInt32(&r.running, 0)
		return errors.New("runner has no queues to subscribe")
	}

	for _, stream := range r.opts.Queues {
		if err := r.log.EnsureGroup(ctx, stream, r.opts.Group, "0"); err != nil {
			atomic.StoreInt32(&r.running, 0)
			return err
		}
	}

	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.logger.WithFields(logrus.Fields{
		"queues":      r.opts.Queues,
		"group":       r.opts.Group,
		"consumer":    r.opts.Consumer,
		"concurrency": r.opts.Concurrency,
	}).Info("Starting worker runner")

	for _, stream := range r.opts.Queues {
		r.wg.Add(1)
		go r.loop(loopCtx, stream)
	}
	return nil
}

// Stop cancels the loops and waits for in-flight executions to finish.
func (r *Runner) Stop() {
	if !atomic.CompareAndSwapInt32(&r.running, 1, 0) {
		return
	}
	r.cancel()
	r.wg.Wait()
	r.logger.WithField("consumer", r.opts.Consumer).Info("Worker runner stopped")
}

func (r *Runner) loop(ctx context.Context, stream string) {
	defer r.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		claimed, err := r.log.ClaimPending(ctx, stream, r.opts.Group, r.opts.Consumer, r.opts.ReclaimIdle, r.opts.Count)
		if err != nil && ctx.Err() == nil {
			r.logger.WithError(err).WithField("stream", stream).Warn("Failed to claim pending requests")
		}
		r.dispatchEntries(ctx, stream, claimed)

		entries, err := r.log.ReadGroup(ctx, stream, r.opts.Group, r.opts.Consumer, r.opts.Count, r.opts.Block)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			r.logger.WithError(err).WithField("stream", stream).Error("Failed to read execution requests")
			select {
			case <-ctx.Done():
				return
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		r.dispatchEntries(ctx, stream, entries)
	}
}

func (r *Runner) dispatchEntries(ctx context.Context, stream string, entries []task.LogEntry) {
	for _, entry := range entries {
		if ctx.Err() != nil {
			return
		}
		select {
		case r.slots <- struct{}{}:
		case <-ctx.Done():
			return
		}

		r.wg.Add(1)
		go func(entry task.LogEntry) {
			defer r.wg.Done()
			defer func() { <-r.slots }()
			r.execute(ctx, stream, entry)
		}(entry)
	}
}

func (r *Runner) execute(ctx context.Context, stream string, entry task.LogEntry) {
	req, err := queue.DecodeExecutionRequest(entry)
	if err != nil {
		r.logger.WithError(err).WithField("entry_id", entry.ID).Warn("Dropping malformed execution request")
		r.ack(ctx, stream, entry.ID)
		return
	}

	fn, ok := r.registry[req.Type]
	if !ok {
		r.logger.WithFields(logrus.Fields{
			"task_id":   req.TaskID,
			"task_type": req.Type,
		}).Error("No task function registered")
		r.reportFailed(ctx, req.TaskID, fmt.Sprintf("no task function registered for type %s", req.Type))
		r.ack(ctx, stream, entry.ID)
		return
	}

	reporter := NewTaskReporter(req.TaskID, r.publisher)

	r.logger.WithFields(logrus.Fields{
		"task_id":   req.TaskID,
		"task_type": req.Type,
		"stream":    stream,
	}).Info("Executing task")

	if err := fn(ctx, req, reporter); err != nil {
		if ctx.Err() != nil {
			// Interrupted mid-execution; leave the request pending so
			// another worker reruns it.
			return
		}
		r.logger.WithError(err).WithField("task_id", req.TaskID).Error("Task execution failed")
		r.reportFailed(ctx, req.TaskID, err.Error())
	}
	r.ack(ctx, stream, entry.ID)
}

// reportFailed publishes a terminal FAILED status so the API side and any
// live subscribers observe the failure.
func (r *Runner) reportFailed(ctx context.Context, taskID, message string) {
	status := task.NewStatus(task.StateFailed).WithMessage(message)
	if err := r.publisher.Publish(ctx, task.NewStatusEvent(taskID, status)); err != nil {
		r.logger.WithError(err).WithField("task_id", taskID).Error("Failed to publish FAILED status")
	}
}

func (r *Runner) ack(ctx context.Context, stream, entryID string) {
	if err := r.log.Ack(ctx, stream, r.opts.Group, entryID); err != nil {
		r.logger.WithError(err).WithField("entry_id", entryID).Warn("Failed to ack execution request")
	}
}
