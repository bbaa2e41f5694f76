package tasks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
)

// TaskService creates tasks and surfaces their status and result to callers.
type TaskService struct {
	storage task.Storage
	queue   task.Queue
	logger  *logrus.Logger
}

// NewTaskService creates a task service over the given store and queue.
func NewTaskService(storage task.Storage, queue task.Queue, logger *logrus.Logger) *TaskService {
	return &TaskService{
		storage: storage,
		queue:   queue,
		logger:  logger,
	}
}

// NewTaskID returns a 128-bit random hex-encoded task identifier.
func NewTaskID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// CreateTask persists a new QUEUED task and enqueues an execution request
// routed by task type. When enqueueing fails the task is marked FAILED with
// the error message and the failure is re-surfaced to the caller.
func (s *TaskService) CreateTask(ctx context.Context, ownerID string, taskType task.TaskType, payload task.TaskPayload) (*task.Task, error) {
	now := time.Now().UTC()
	t := &task.Task{
		ID:      NewTaskID(),
		OwnerID: ownerID,
		Type:    taskType,
		Payload: payload,
		Status:  task.NewStatus(task.StateQueued),
		Metadata: task.TaskMetadata{
			CreatedAt: &now,
		},
	}

	if _, err := s.storage.CreateTask(ctx, ownerID, t); err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(ctx, t); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"task_id":   t.ID,
			"task_type": taskType,
		}).Error("Failed to enqueue task")

		failedAt := time.Now().UTC()
		failed := task.NewStatus(task.StateFailed).WithMessage(err.Error())
		metadata := &task.TaskMetadata{UpdatedAt: &failedAt, FinishedAt: &failedAt}
		if updateErr := s.storage.UpdateTaskStatus(ctx, t.ID, failed, metadata); updateErr != nil {
			s.logger.WithError(updateErr).WithField("task_id", t.ID).Error("Failed to mark task as failed")
		}
		return nil, fmt.Errorf("failed to enqueue task %s: %w", t.ID, err)
	}

	return t, nil
}

// GetStatus returns the current status for the task.
func (s *TaskService) GetStatus(ctx context.Context, ownerID, taskID string) (*task.TaskStatus, error) {
	return s.storage.GetStatus(ctx, ownerID, taskID)
}

// GetResult returns the stored result payload for the task.
func (s *TaskService) GetResult(ctx context.Context, ownerID, taskID string) (*task.TaskResult, error) {
	return s.storage.GetResult(ctx, ownerID, taskID)
}

// GetTask returns the full task aggregate.
func (s *TaskService) GetTask(ctx context.Context, ownerID, taskID string) (*task.Task, error) {
	return s.storage.GetTask(ctx, ownerID, taskID)
}

// ListTasks returns compact views of the owner's tasks.
func (s *TaskService) ListTasks(ctx context.Context, ownerID string, filter task.ListFilter) ([]task.TaskView, error) {
	return s.storage.ListTasks(ctx, ownerID, filter)
}

// DeleteTask removes the task and all its rows. Used by demo cleanup.
func (s *TaskService) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	return s.storage.DeleteTask(ctx, ownerID, taskID)
}
