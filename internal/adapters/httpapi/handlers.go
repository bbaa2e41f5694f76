package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
)

// anonymousUser is the owner recorded when the caller sends no identity.
const anonymousUser = "anonymous"

// TaskService is the application surface the gateway needs.
type TaskService interface {
	CreateTask(ctx context.Context, ownerID string, taskType task.TaskType, payload task.TaskPayload) (*task.Task, error)
	GetStatus(ctx context.Context, ownerID, taskID string) (*task.TaskStatus, error)
	GetResult(ctx context.Context, ownerID, taskID string) (*task.TaskResult, error)
	ListTasks(ctx context.Context, ownerID string, filter task.ListFilter) ([]task.TaskView, error)
	DeleteTask(ctx context.Context, ownerID, taskID string) error
}

// TaskHandler implements the REST routes.
type TaskHandler struct {
	service  TaskService
	logger   *logrus.Logger
	validate *validator.Validate
}

// NewTaskHandler creates the handler set.
func NewTaskHandler(service TaskService, logger *logrus.Logger) *TaskHandler {
	return &TaskHandler{
		service:  service,
		logger:   logger,
		validate: validator.New(),
	}
}

type createTaskRequest struct {
	TaskType string          `json:"task_type" binding:"required"`
	Payload  json.RawMessage `json:"payload" binding:"required"`
}

// CreateTask submits a new task and returns its id.
func (h *TaskHandler) CreateTask(c *gin.Context) {
	var req createTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	payload, err := task.DecodePayload(task.TaskType(req.TaskType), req.Payload)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if err := h.validate.Struct(payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload: " + err.Error()})
		return
	}

	created, err := h.service.CreateTask(c.Request.Context(), ownerID(c), task.TaskType(req.TaskType), payload)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"task_id": created.ID,
		"state":   created.Status.State,
	})
}

// GetStatus returns the task's current status.
func (h *TaskHandler) GetStatus(c *gin.Context) {
	status, err := h.service.GetStatus(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// GetResult returns the stored result payload.
func (h *TaskHandler) GetResult(c *gin.Context) {
	result, err := h.service.GetResult(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListTasks returns compact task views filtered by query parameters.
func (h *TaskHandler) ListTasks(c *gin.Context) {
	filter := task.ListFilter{}
	if raw := c.Query("task_type"); raw != "" {
		t := task.TaskType(raw)
		filter.Type = &t
	}
	if raw := c.Query("state"); raw != "" {
		s := task.TaskState(raw)
		filter.State = &s
	}
	if raw := c.Query("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.Limit = v
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.Offset = v
		}
	}

	views, err := h.service.ListTasks(c.Request.Context(), ownerID(c), filter)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"tasks": views})
}

// DeleteTask removes the task and its child rows.
func (h *TaskHandler) DeleteTask(c *gin.Context) {
	if err := h.service.DeleteTask(c.Request.Context(), ownerID(c), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// writeError maps domain errors onto HTTP statuses. Unknown errors are
// logged with a correlation id and surface only the id.
func (h *TaskHandler) writeError(c *gin.Context, err error) {
	var notFound *task.NotFoundError
	var denied *task.AccessDeniedError
	var conflict *task.ConflictError
	var invalidType *task.InvalidTaskTypeError

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &denied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.As(err, &conflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.As(err, &invalidType):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		correlationID := uuid.NewString()
		h.logger.WithError(err).WithFields(logrus.Fields{
			"correlation_id": correlationID,
			"path":           c.Request.URL.Path,
		}).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":          "internal server error",
			"correlation_id": correlationID,
		})
	}
}

func ownerID(c *gin.Context) string {
	if owner := c.GetHeader("X-User-ID"); owner != "" {
		return owner
	}
	return anonymousUser
}
