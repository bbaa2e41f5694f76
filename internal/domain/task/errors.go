package task

import "fmt"

// NotFoundError indicates the task id does not exist in the store.
type NotFoundError struct {
	TaskID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("task with id %q was not found", e.TaskID)
}

func NewNotFoundError(taskID string) *NotFoundError {
	return &NotFoundError{TaskID: taskID}
}

// AccessDeniedError indicates a caller attempted to read a task they do not own.
type AccessDeniedError struct {
	TaskID  string
	OwnerID string
}

func (e *AccessDeniedError) Error() string {
	return fmt.Sprintf("owner %q has no access to task %q", e.OwnerID, e.TaskID)
}

func NewAccessDeniedError(taskID, ownerID string) *AccessDeniedError {
	return &AccessDeniedError{TaskID: taskID, OwnerID: ownerID}
}

// ConflictError indicates a create with a duplicate task id.
type ConflictError struct {
	TaskID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("task with id %q already exists", e.TaskID)
}

func NewConflictError(taskID string) *ConflictError {
	return &ConflictError{TaskID: taskID}
}

// InvalidEventError indicates a malformed event payload. The consumer treats
// these as poison pills: logged and acknowledged, never retried.
type InvalidEventError struct {
	Reason string
}

func (e *InvalidEventError) Error() string {
	return fmt.Sprintf("invalid event: %s", e.Reason)
}

func NewInvalidEventError(reason string) *InvalidEventError {
	return &InvalidEventError{Reason: reason}
}

// InvalidTaskTypeError indicates a task type with no routing entry.
type InvalidTaskTypeError struct {
	Type string
}

func (e *InvalidTaskTypeError) Error() string {
	return fmt.Sprintf("no route registered for task type %q", e.Type)
}

func NewInvalidTaskTypeError(taskType string) *InvalidTaskTypeError {
	return &InvalidTaskTypeError{Type: taskType}
}
