package steps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cucumber/godog"
	"github.com/sirupsen/logrus"

	"github.com/andrescamacho/taskstream-go/internal/adapters/persistence"
	"github.com/andrescamacho/taskstream-go/internal/adapters/queue"
	"github.com/andrescamacho/taskstream-go/internal/adapters/streams"
	apptasks "github.com/andrescamacho/taskstream-go/internal/application/tasks"
	"github.com/andrescamacho/taskstream-go/internal/domain/task"
	"github.com/andrescamacho/taskstream-go/internal/infrastructure/database"
	"github.com/andrescamacho/taskstream-go/internal/worker"
	workertasks "github.com/andrescamacho/taskstream-go/internal/worker/tasks"
	"github.com/andrescamacho/taskstream-go/test/helpers"
)

const (
	eventStream = "task_events"
	eventGroup  = "api"
	workerGroup = "workers"
)

// countingStorage counts status writes so scenarios can observe throttling.
type countingStorage struct {
	task.Storage
	statusWrites int
}

func (c *countingStorage) UpdateTaskStatus(ctx context.Context, taskID string, status task.TaskStatus, metadata *task.TaskMetadata) error {
	c.statusWrites++
	return c.Storage.UpdateTaskStatus(ctx, taskID, status, metadata)
}

// taskPipelineContext wires the whole pipeline in-process: a SQLite store,
// an in-memory event log standing in for the stream backend, the task
// service, a worker step and the consuming event handler.
type taskPipelineContext struct {
	log         *helpers.MemoryEventLog
	storage     *countingStorage
	service     *apptasks.TaskService
	publisher   *streams.Publisher
	broadcaster *helpers.MockBroadcaster
	router      *apptasks.EventRouter

	owner        string
	taskID       string
	documentPath string
	tempDir      string
	lastErr      error
}

func (c *taskPipelineContext) reset() error {
	if c.tempDir != "" {
		os.RemoveAll(c.tempDir)
		c.tempDir = ""
	}

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	db, err := database.NewTestConnection()
	if err != nil {
		return err
	}

	c.log = helpers.NewMemoryEventLog()
	c.storage = &countingStorage{Storage: persistence.NewGormTaskRepository(db)}
	c.service = apptasks.NewTaskService(c.storage, queue.NewStreamTaskQueue(c.log, nil, logger), logger)
	c.publisher = streams.NewPublisher(c.log, eventStream, 0)
	c.broadcaster = helpers.NewMockBroadcaster()

	handler := apptasks.NewTaskEventHandler(c.storage, c.broadcaster, logger, apptasks.TaskEventHandlerOptions{})
	c.router = apptasks.NewTaskEventRouter(handler)

	c.owner = ""
	c.taskID = ""
	c.documentPath = ""
	c.lastErr = nil

	return c.log.EnsureGroup(context.Background(), eventStream, eventGroup, "0")
}

func (c *taskPipelineContext) aRunningTaskPipeline() error {
	return nil // wiring happens in the scenario reset
}

func (c *taskPipelineContext) submitsComputePi(owner string, digits int) error {
	c.owner = owner
	created, err := c.service.CreateTask(context.Background(), owner, task.TypeComputePi, task.ComputePiPayload{Digits: digits})
	if err != nil {
		return err
	}
	c.taskID = created.ID
	return nil
}

func (c *taskPipelineContext) aDocumentContaining(word string, line int) error {
	dir, err := os.MkdirTemp("", "bdd-docs")
	if err != nil {
		return err
	}
	c.tempDir = dir

	var sb strings.Builder
	for i := 1; i <= line+2; i++ {
		if i == line {
			fmt.Fprintf(&sb, "this line mentions the %s right here\n", word)
		} else {
			sb.WriteString("an unremarkable line of prose\n")
		}
	}
	c.documentPath = filepath.Join(dir, "document.txt")
	return os.WriteFile(c.documentPath, []byte(sb.String()), 0o644)
}

func (c *taskPipelineContext) submitsDocumentAnalysis(owner, keyword string) error {
	c.owner = owner
	created, err := c.service.CreateTask(context.Background(), owner, task.TypeDocumentAnalysis, task.DocumentAnalysisPayload{
		DocumentPath: c.documentPath,
		Keywords:     []string{keyword},
	})
	if err != nil {
		return err
	}
	c.taskID = created.ID
	return nil
}

func (c *taskPipelineContext) theTaskStateIs(state string) error {
	status, err := c.storage.GetStatus(context.Background(), c.owner, c.taskID)
	if err != nil {
		return err
	}
	if string(status.State) != state {
		return fmt.Errorf("expected state %s, got %s", state, status.State)
	}
	return nil
}

func (c *taskPipelineContext) anExecutionRequestIsWaiting(stream string) error {
	if n := len(c.log.Entries(stream)); n != 1 {
		return fmt.Errorf("expected 1 request on %s, found %d", stream, n)
	}
	return nil
}

// pendingRequest claims the single outstanding execution request.
func (c *taskPipelineContext) pendingRequest() (queue.ExecutionRequest, string, string, error) {
	ctx := context.Background()
	for _, stream := range []string{"compute_pi", "document_analysis"} {
		if err := c.log.EnsureGroup(ctx, stream, workerGroup, "0"); err != nil {
			return queue.ExecutionRequest{}, "", "", err
		}
		entries, err := c.log.ReadGroup(ctx, stream, workerGroup, "bdd-worker", 1, 0)
		if err != nil {
			return queue.ExecutionRequest{}, "", "", err
		}
		if len(entries) == 0 {
			continue
		}
		req, err := queue.DecodeExecutionRequest(entries[0])
		if err != nil {
			return queue.ExecutionRequest{}, "", "", err
		}
		return req, stream, entries[0].ID, nil
	}
	return queue.ExecutionRequest{}, "", "", fmt.Errorf("no pending execution request")
}

func (c *taskPipelineContext) theWorkerExecutesThePendingRequest() error {
	ctx := context.Background()
	req, stream, entryID, err := c.pendingRequest()
	if err != nil {
		return err
	}

	var fn worker.TaskFunc
	switch req.Type {
	case task.TypeComputePi:
		fn = workertasks.ComputePi(0)
	case task.TypeDocumentAnalysis:
		fn = workertasks.DocumentAnalysis(c.tempDir, 0)
	default:
		return fmt.Errorf("no kernel for task type %s", req.Type)
	}

	if err := fn(ctx, req, worker.NewTaskReporter(req.TaskID, c.publisher)); err != nil {
		return err
	}
	return c.log.Ack(ctx, stream, workerGroup, entryID)
}

func (c *taskPipelineContext) theWorkerFailsThePendingRequest(message string) error {
	ctx := context.Background()
	req, stream, entryID, err := c.pendingRequest()
	if err != nil {
		return err
	}

	failed := task.NewStatus(task.StateFailed).WithMessage(message)
	if err := c.publisher.Publish(ctx, task.NewStatusEvent(req.TaskID, failed)); err != nil {
		return err
	}
	return c.log.Ack(ctx, stream, workerGroup, entryID)
}

// drainEvents replays the consumer's ack policy over the event stream:
// undecodable entries and invalid events are acked and dropped, handler
// failures leave the entry pending.
func (c *taskPipelineContext) drainEvents() error {
	ctx := context.Background()
	for {
		entries, err := c.log.ReadGroup(ctx, eventStream, eventGroup, "bdd-api", 100, 0)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		for _, entry := range entries {
			event, err := streams.DecodeEvent(entry.Fields)
			if err != nil {
				if ackErr := c.log.Ack(ctx, eventStream, eventGroup, entry.ID); ackErr != nil {
					return ackErr
				}
				continue
			}
			if err := c.router.Dispatch(ctx, event); err != nil {
				var invalid *task.InvalidEventError
				if !errors.As(err, &invalid) {
					continue // stays pending for redelivery
				}
			}
			if err := c.log.Ack(ctx, eventStream, eventGroup, entry.ID); err != nil {
				return err
			}
		}
	}
}

// replayEvents re-dispatches every entry of the event stream, simulating the
// redelivery an at-least-once consumer must tolerate.
func (c *taskPipelineContext) replayEvents() error {
	ctx := context.Background()
	for _, entry := range c.log.Entries(eventStream) {
		event, err := streams.DecodeEvent(entry.Fields)
		if err != nil {
			continue
		}
		if err := c.router.Dispatch(ctx, event); err != nil {
			var invalid *task.InvalidEventError
			if !errors.As(err, &invalid) {
				return err
			}
		}
	}
	return nil
}

func (c *taskPipelineContext) theStoredResultDataIsPi(digits int) error {
	result, err := c.storage.GetResult(context.Background(), c.owner, c.taskID)
	if err != nil {
		return err
	}
	want := workertasks.Pi(digits)
	if result.Data != want {
		return fmt.Errorf("expected result %q, got %v", want, result.Data)
	}
	return nil
}

// Result events are persisted only, so they are excluded from the tally.
func (c *taskPipelineContext) everyEventWasBroadcast() error {
	published := 0
	for _, entry := range c.log.Entries(eventStream) {
		if entry.Fields["type"] != string(task.EventTaskResult) {
			published++
		}
	}
	if broadcast := len(c.broadcaster.Events()); published != broadcast {
		return fmt.Errorf("published %d status/chunk events but broadcast %d", published, broadcast)
	}
	return nil
}

func (c *taskPipelineContext) fewerStatusRowsThanBroadcasts() error {
	if c.storage.statusWrites >= len(c.broadcaster.Events()) {
		return fmt.Errorf("wrote %d status rows against %d broadcasts", c.storage.statusWrites, len(c.broadcaster.Events()))
	}
	return nil
}

func (c *taskPipelineContext) aSnippetChunkWasBroadcast(keyword string) error {
	for _, event := range c.broadcaster.Events() {
		if event.Type != task.EventTaskResultChunk {
			continue
		}
		encoded, err := json.Marshal(event.Payload)
		if err != nil {
			return err
		}
		if strings.Contains(string(encoded), "snippet_found") && strings.Contains(strings.ToLower(string(encoded)), keyword) {
			return nil
		}
	}
	return fmt.Errorf("no snippet chunk for %q was broadcast", keyword)
}

func (c *taskPipelineContext) noResultChunkWasPersisted() error {
	result, err := c.storage.GetResult(context.Background(), c.owner, c.taskID)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(result.Data)
	if err != nil {
		return err
	}
	if strings.Contains(string(encoded), "snippet_found") {
		return fmt.Errorf("snippet chunks leaked into the durable result: %s", encoded)
	}
	return nil
}

func (c *taskPipelineContext) statusMessageContains(fragment string) error {
	status, err := c.storage.GetStatus(context.Background(), c.owner, c.taskID)
	if err != nil {
		return err
	}
	if status.Message == nil || !strings.Contains(*status.Message, fragment) {
		return fmt.Errorf("status message %v does not contain %q", status.Message, fragment)
	}
	return nil
}

func (c *taskPipelineContext) userIsDeniedAccess(owner string) error {
	ctx := context.Background()
	var denied *task.AccessDeniedError

	if _, err := c.storage.GetStatus(ctx, owner, c.taskID); !errors.As(err, &denied) {
		return fmt.Errorf("expected access denied reading status, got %v", err)
	}
	if _, err := c.storage.GetResult(ctx, owner, c.taskID); !errors.As(err, &denied) {
		return fmt.Errorf("expected access denied reading result, got %v", err)
	}
	if err := c.service.DeleteTask(ctx, owner, c.taskID); !errors.As(err, &denied) {
		return fmt.Errorf("expected access denied deleting, got %v", err)
	}
	return nil
}

func (c *taskPipelineContext) userCanReadStatus(owner string) error {
	_, err := c.storage.GetStatus(context.Background(), owner, c.taskID)
	return err
}

func (c *taskPipelineContext) userDeletesTheTask(owner string) error {
	return c.service.DeleteTask(context.Background(), owner, c.taskID)
}

func (c *taskPipelineContext) theTaskIsGone() error {
	var notFound *task.NotFoundError
	if _, err := c.storage.GetStatus(context.Background(), c.owner, c.taskID); !errors.As(err, &notFound) {
		return fmt.Errorf("expected not found, got %v", err)
	}
	return nil
}

func (c *taskPipelineContext) aMalformedEntryOnTheEventStream() error {
	c.owner = "alice"
	_, err := c.log.Append(context.Background(), eventStream, map[string]string{"type": "TASK_STATUS"}, 0, false)
	return err
}

func (c *taskPipelineContext) eventGroupHasNoPending() error {
	if n := c.log.PendingCount(eventStream, eventGroup); n != 0 {
		return fmt.Errorf("expected no pending entries, found %d", n)
	}
	return nil
}

func (c *taskPipelineContext) aStaleRunningEventIsPublished() error {
	half := 0.5
	status := task.TaskStatus{
		State:    task.StateRunning,
		Progress: task.TaskProgress{Percentage: &half},
	}
	return c.publisher.Publish(context.Background(), task.NewStatusEvent(c.taskID, status))
}

// InitializeTaskPipelineScenario registers the end-to-end pipeline steps.
func InitializeTaskPipelineScenario(sc *godog.ScenarioContext) {
	c := &taskPipelineContext{}

	sc.Before(func(ctx context.Context, scenario *godog.Scenario) (context.Context, error) {
		return ctx, c.reset()
	})
	sc.After(func(ctx context.Context, scenario *godog.Scenario, err error) (context.Context, error) {
		if c.tempDir != "" {
			os.RemoveAll(c.tempDir)
			c.tempDir = ""
		}
		return ctx, nil
	})

	sc.Step(`^a running task pipeline$`, c.aRunningTaskPipeline)
	sc.Step(`^user "([^"]*)" submits a COMPUTE_PI task with (\d+) digits$`, c.submitsComputePi)
	sc.Step(`^a document containing the word "([^"]*)" on line (\d+)$`, c.aDocumentContaining)
	sc.Step(`^user "([^"]*)" submits a DOCUMENT_ANALYSIS task for that document with keyword "([^"]*)"$`, c.submitsDocumentAnalysis)
	sc.Step(`^the task state is "([^"]*)"$`, c.theTaskStateIs)
	sc.Step(`^an execution request is waiting on queue "([^"]*)"$`, c.anExecutionRequestIsWaiting)
	sc.Step(`^the worker executes the pending request$`, c.theWorkerExecutesThePendingRequest)
	sc.Step(`^the worker fails the pending request with "([^"]*)"$`, c.theWorkerFailsThePendingRequest)
	sc.Step(`^the service consumes the published events$`, c.drainEvents)
	sc.Step(`^the service consumes the published events again$`, c.replayEvents)
	sc.Step(`^the stored result data is pi to (\d+) digits$`, c.theStoredResultDataIsPi)
	sc.Step(`^every status and chunk event was broadcast to subscribers$`, c.everyEventWasBroadcast)
	sc.Step(`^fewer status rows were written than events broadcast$`, c.fewerStatusRowsThanBroadcasts)
	sc.Step(`^a snippet chunk for keyword "([^"]*)" was broadcast$`, c.aSnippetChunkWasBroadcast)
	sc.Step(`^no result chunk was persisted$`, c.noResultChunkWasPersisted)
	sc.Step(`^the status message contains "([^"]*)"$`, c.statusMessageContains)
	sc.Step(`^user "([^"]*)" is denied access to the task$`, c.userIsDeniedAccess)
	sc.Step(`^user "([^"]*)" can read the task status$`, c.userCanReadStatus)
	sc.Step(`^user "([^"]*)" deletes the task$`, c.userDeletesTheTask)
	sc.Step(`^the task is gone$`, c.theTaskIsGone)
	sc.Step(`^a malformed entry on the event stream$`, c.aMalformedEntryOnTheEventStream)
	sc.Step(`^the event group has no pending entries$`, c.eventGroupHasNoPending)
	sc.Step(`^a stale RUNNING status event for the task is published$`, c.aStaleRunningEventIsPublished)
}
