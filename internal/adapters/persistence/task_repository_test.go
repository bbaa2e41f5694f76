package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andrescamacho/taskstream-go/internal/adapters/persistence"
	"github.com/andrescamacho/taskstream-go/internal/domain/task"
	"github.com/andrescamacho/taskstream-go/test/helpers"
)

func newRepo(t *testing.T) *persistence.GormTaskRepository {
	return persistence.NewGormTaskRepository(helpers.NewTestDB(t))
}

func newTask(id, owner string) *task.Task {
	now := time.Now().UTC().Truncate(time.Second)
	return &task.Task{
		ID:      id,
		OwnerID: owner,
		Type:    task.TypeComputePi,
		Payload: task.ComputePiPayload{Digits: 10},
		Status:  task.NewStatus(task.StateQueued),
		Metadata: task.TaskMetadata{
			CreatedAt: &now,
		},
	}
}

func TestCreateAndGetTask(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	id, err := repo.CreateTask(ctx, "alice", newTask("t1", "alice"))
	require.NoError(t, err)
	assert.Equal(t, "t1", id)

	got, err := repo.GetTask(ctx, "alice", "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.ID)
	assert.Equal(t, task.StateQueued, got.Status.State)
	assert.Equal(t, task.TypeComputePi, got.Type)

	payload, ok := got.Payload.(task.ComputePiPayload)
	require.True(t, ok)
	assert.Equal(t, 10, payload.Digits)
}

func TestCreateTaskDuplicateIDConflicts(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.CreateTask(ctx, "alice", newTask("t1", "alice"))
	require.NoError(t, err)

	_, err = repo.CreateTask(ctx, "alice", newTask("t1", "alice"))
	var conflict *task.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestGetTaskNotFound(t *testing.T) {
	repo := newRepo(t)

	_, err := repo.GetTask(context.Background(), "alice", "missing")
	var notFound *task.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestGetTaskEnforcesOwnership(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.CreateTask(ctx, "alice", newTask("t1", "alice"))
	require.NoError(t, err)

	_, err = repo.GetTask(ctx, "bob", "t1")
	var denied *task.AccessDeniedError
	require.ErrorAs(t, err, &denied)
	assert.Equal(t, "t1", denied.TaskID)

	_, err = repo.GetStatus(ctx, "bob", "t1")
	assert.ErrorAs(t, err, &denied)

	_, err = repo.GetResult(ctx, "bob", "t1")
	assert.ErrorAs(t, err, &denied)
}

func TestUpdateTaskStatusUpserts(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.CreateTask(ctx, "alice", newTask("t1", "alice"))
	require.NoError(t, err)

	pct := 0.5
	running := task.TaskStatus{
		State:    task.StateRunning,
		Progress: task.TaskProgress{Percentage: &pct},
		Metrics:  map[string]interface{}{"digits_sent": 5},
	}
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, repo.UpdateTaskStatus(ctx, "t1", running, &task.TaskMetadata{UpdatedAt: &now}))

	status, err := repo.GetStatus(ctx, "alice", "t1")
	require.NoError(t, err)
	assert.Equal(t, task.StateRunning, status.State)
	assert.Equal(t, 0.5, status.Pct())

	// Replaying the identical update leaves the same stored state.
	require.NoError(t, repo.UpdateTaskStatus(ctx, "t1", running, &task.TaskMetadata{UpdatedAt: &now}))
	again, err := repo.GetStatus(ctx, "alice", "t1")
	require.NoError(t, err)
	assert.Equal(t, status, again)
}

func TestUpdateTaskStatusUnknownTask(t *testing.T) {
	repo := newRepo(t)

	err := repo.UpdateTaskStatus(context.Background(), "missing", task.NewStatus(task.StateRunning), nil)
	var notFound *task.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestTerminalStateNeverRegresses(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.CreateTask(ctx, "alice", newTask("t1", "alice"))
	require.NoError(t, err)

	require.NoError(t, repo.UpdateTaskStatus(ctx, "t1", task.NewStatus(task.StateCompleted), nil))

	// A late RUNNING update against a finished task is a no-op.
	pct := 0.7
	late := task.TaskStatus{State: task.StateRunning, Progress: task.TaskProgress{Percentage: &pct}}
	require.NoError(t, repo.UpdateTaskStatus(ctx, "t1", late, nil))

	status, err := repo.GetStatus(ctx, "alice", "t1")
	require.NoError(t, err)
	assert.Equal(t, task.StateCompleted, status.State)

	// A terminal overwrite of a terminal state is still applied.
	require.NoError(t, repo.UpdateTaskStatus(ctx, "t1", task.NewStatus(task.StateFailed), nil))
	status, err = repo.GetStatus(ctx, "alice", "t1")
	require.NoError(t, err)
	assert.Equal(t, task.StateFailed, status.State)
}

func TestSetTaskResultUpserts(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.CreateTask(ctx, "alice", newTask("t1", "alice"))
	require.NoError(t, err)

	result := task.TaskResult{TaskID: "t1", Data: "3.14159"}
	require.NoError(t, repo.SetTaskResult(ctx, "t1", result, nil))

	got, err := repo.GetResult(ctx, "alice", "t1")
	require.NoError(t, err)
	assert.Equal(t, "3.14159", got.Data)

	// Upsert replaces the previous snapshot.
	require.NoError(t, repo.SetTaskResult(ctx, "t1", task.TaskResult{TaskID: "t1", Data: "3.1415926"}, nil))
	got, err = repo.GetResult(ctx, "alice", "t1")
	require.NoError(t, err)
	assert.Equal(t, "3.1415926", got.Data)
}

func TestGetResultWithoutRowReturnsEmpty(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.CreateTask(ctx, "alice", newTask("t1", "alice"))
	require.NoError(t, err)

	got, err := repo.GetResult(ctx, "alice", "t1")
	require.NoError(t, err)
	assert.Equal(t, "t1", got.TaskID)
	assert.Nil(t, got.Data)
}

func TestListTasksFilters(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.CreateTask(ctx, "alice", newTask("t1", "alice"))
	require.NoError(t, err)

	doc := newTask("t2", "alice")
	doc.Type = task.TypeDocumentAnalysis
	doc.Payload = task.DocumentAnalysisPayload{DocumentPath: "/tmp/x.txt", Keywords: []string{"a"}}
	_, err = repo.CreateTask(ctx, "alice", doc)
	require.NoError(t, err)

	_, err = repo.CreateTask(ctx, "bob", newTask("t3", "bob"))
	require.NoError(t, err)

	require.NoError(t, repo.UpdateTaskStatus(ctx, "t2", task.NewStatus(task.StateCompleted), nil))

	// Owner scoping.
	views, err := repo.ListTasks(ctx, "alice", task.ListFilter{})
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "t1", views[0].ID)
	assert.Equal(t, "t2", views[1].ID)

	// Type filter.
	piType := task.TypeComputePi
	views, err = repo.ListTasks(ctx, "alice", task.ListFilter{Type: &piType})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "t1", views[0].ID)

	// State filter.
	completed := task.StateCompleted
	views, err = repo.ListTasks(ctx, "alice", task.ListFilter{State: &completed})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "t2", views[0].ID)

	// Paging.
	views, err = repo.ListTasks(ctx, "alice", task.ListFilter{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "t2", views[0].ID)
}

func TestDeleteTask(t *testing.T) {
	repo := newRepo(t)
	ctx := context.Background()

	_, err := repo.CreateTask(ctx, "alice", newTask("t1", "alice"))
	require.NoError(t, err)

	var denied *task.AccessDeniedError
	assert.ErrorAs(t, repo.DeleteTask(ctx, "bob", "t1"), &denied)

	require.NoError(t, repo.DeleteTask(ctx, "alice", "t1"))

	var notFound *task.NotFoundError
	_, err = repo.GetTask(ctx, "alice", "t1")
	assert.ErrorAs(t, err, &notFound)
}
