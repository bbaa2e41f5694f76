package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
)

// maxListLimit caps page sizes on task listings.
const maxListLimit = 500

// GormTaskRepository implements task.Storage using GORM. Every write is a
// single transaction; status and result writes are upserts keyed by task id
// so replays under at-least-once delivery are harmless.
type GormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository creates a new GORM task repository
func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

// CreateTask persists the task with its payload, status and metadata rows in
// one transaction. A duplicate id fails with a ConflictError.
func (r *GormTaskRepository) CreateTask(ctx context.Context, ownerID string, t *task.Task) (string, error) {
	model, err := toTaskModel(ownerID, t)
	if err != nil {
		return "", fmt.Errorf("failed to convert task to model: %w", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&TaskModel{}).Where("id = ?", t.ID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check for existing task: %w", err)
		}
		if count > 0 {
			return task.NewConflictError(t.ID)
		}
		// Create cascades to the child rows attached on the model.
		if err := tx.Create(model).Error; err != nil {
			return fmt.Errorf("failed to create task: %w", err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	return t.ID, nil
}

// GetTask fetches the task aggregate by id and enforces ownership.
func (r *GormTaskRepository) GetTask(ctx context.Context, ownerID, taskID string) (*task.Task, error) {
	model, err := r.findModel(ctx, taskID, true)
	if err != nil {
		return nil, err
	}
	if model.OwnerID != ownerID {
		return nil, task.NewAccessDeniedError(taskID, ownerID)
	}
	return toDomainTask(model)
}

// GetStatus fetches the current status of the task.
func (r *GormTaskRepository) GetStatus(ctx context.Context, ownerID, taskID string) (*task.TaskStatus, error) {
	t, err := r.GetTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	status := t.Status
	return &status, nil
}

// GetResult fetches the stored result of the task.
func (r *GormTaskRepository) GetResult(ctx context.Context, ownerID, taskID string) (*task.TaskResult, error) {
	t, err := r.GetTask(ctx, ownerID, taskID)
	if err != nil {
		return nil, err
	}
	if t.Result == nil {
		return &task.TaskResult{TaskID: taskID}, nil
	}
	return t.Result, nil
}

// ListTasks returns compact task views for the owner, ordered by task id
// ascending, with optional type and state filters.
func (r *GormTaskRepository) ListTasks(ctx context.Context, ownerID string, filter task.ListFilter) ([]task.TaskView, error) {
	limit := filter.Limit
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}

	query := r.db.WithContext(ctx).
		Preload("Status").
		Preload("Metadata").
		Where("owner_id = ?", ownerID)

	if filter.Type != nil {
		query = query.Where("task_type = ?", string(*filter.Type))
	}
	if filter.State != nil {
		query = query.
			Joins("JOIN task_statuses ON task_statuses.task_id = tasks.id").
			Where("task_statuses.state = ?", string(*filter.State))
	}

	var models []TaskModel
	result := query.Order("tasks.id ASC").Limit(limit).Offset(filter.Offset).Find(&models)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", result.Error)
	}

	views := make([]task.TaskView, 0, len(models))
	for i := range models {
		view, err := toTaskView(&models[i])
		if err != nil {
			return nil, fmt.Errorf("failed to convert task %s: %w", models[i].ID, err)
		}
		views = append(views, view)
	}
	return views, nil
}

// UpdateTaskStatus upserts the status row and merges the non-nil metadata
// fields. A terminal stored state is never regressed: a late non-terminal
// update against a finished task is a no-op.
func (r *GormTaskRepository) UpdateTaskStatus(ctx context.Context, taskID string, status task.TaskStatus, metadata *task.TaskMetadata) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&TaskModel{}).Where("id = ?", taskID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check for task: %w", err)
		}
		if count == 0 {
			return task.NewNotFoundError(taskID)
		}

		var current TaskStatusModel
		err := tx.Where("task_id = ?", taskID).First(&current).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("failed to load current status: %w", err)
		}
		if err == nil && task.TaskState(current.State).IsTerminal() && !status.State.IsTerminal() {
			return nil
		}

		statusModel, convErr := toStatusModel(taskID, status)
		if convErr != nil {
			return convErr
		}
		if err := tx.Save(statusModel).Error; err != nil {
			return fmt.Errorf("failed to upsert status: %w", err)
		}

		if metadata != nil {
			if err := r.mergeMetadata(tx, taskID, *metadata); err != nil {
				return err
			}
		}
		return nil
	})
}

// SetTaskResult upserts the result row. When finishedAt is provided it is
// also merged into the task metadata.
func (r *GormTaskRepository) SetTaskResult(ctx context.Context, taskID string, result task.TaskResult, finishedAt *time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&TaskModel{}).Where("id = ?", taskID).Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check for task: %w", err)
		}
		if count == 0 {
			return task.NewNotFoundError(taskID)
		}

		resultModel, err := toResultModel(taskID, result)
		if err != nil {
			return err
		}
		if finishedAt != nil {
			resultModel.FinishedAt = finishedAt
		}
		if err := tx.Save(resultModel).Error; err != nil {
			return fmt.Errorf("failed to upsert result: %w", err)
		}

		if finishedAt != nil {
			if err := r.mergeMetadata(tx, taskID, task.TaskMetadata{FinishedAt: finishedAt}); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteTask removes a task and its child rows. Ownership is enforced the
// same way as on reads.
func (r *GormTaskRepository) DeleteTask(ctx context.Context, ownerID, taskID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var model TaskModel
		err := tx.Where("id = ?", taskID).First(&model).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return task.NewNotFoundError(taskID)
		}
		if err != nil {
			return fmt.Errorf("failed to find task: %w", err)
		}
		if model.OwnerID != ownerID {
			return task.NewAccessDeniedError(taskID, ownerID)
		}

		// Child rows are deleted explicitly; sqlite does not always have
		// foreign key cascades enabled.
		for _, child := range []interface{}{
			&TaskPayloadModel{}, &TaskMetadataModel{}, &TaskStatusModel{}, &TaskResultModel{},
		} {
			if err := tx.Where("task_id = ?", taskID).Delete(child).Error; err != nil {
				return fmt.Errorf("failed to delete task child rows: %w", err)
			}
		}
		if err := tx.Delete(&TaskModel{}, "id = ?", taskID).Error; err != nil {
			return fmt.Errorf("failed to delete task: %w", err)
		}
		return nil
	})
}

func (r *GormTaskRepository) mergeMetadata(tx *gorm.DB, taskID string, updates task.TaskMetadata) error {
	var model TaskMetadataModel
	err := tx.Where("task_id = ?", taskID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		created, convErr := toMetadataModel(taskID, updates)
		if convErr != nil {
			return convErr
		}
		if err := tx.Create(created).Error; err != nil {
			return fmt.Errorf("failed to create metadata: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load metadata: %w", err)
	}

	current, err := toDomainMetadata(&model)
	if err != nil {
		return err
	}
	current.Merge(updates)

	merged, err := toMetadataModel(taskID, current)
	if err != nil {
		return err
	}
	if err := tx.Save(merged).Error; err != nil {
		return fmt.Errorf("failed to upsert metadata: %w", err)
	}
	return nil
}

func (r *GormTaskRepository) findModel(ctx context.Context, taskID string, withAll bool) (*TaskModel, error) {
	query := r.db.WithContext(ctx)
	if withAll {
		query = query.
			Preload("Payload").
			Preload("Metadata").
			Preload("Status").
			Preload("Result")
	}

	var model TaskModel
	err := query.Where("id = ?", taskID).First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, task.NewNotFoundError(taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find task: %w", err)
	}
	return &model, nil
}
