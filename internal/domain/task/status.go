package task

// TaskState enumerates the lifecycle states a task can be in.
type TaskState string

const (
	StateQueued    TaskState = "QUEUED"
	StateRunning   TaskState = "RUNNING"
	StateCompleted TaskState = "COMPLETED"
	StateFailed    TaskState = "FAILED"
	StateCancelled TaskState = "CANCELLED"
)

// IsTerminal reports whether the state is final. Terminal states are
// monotonic: once reached, the stored state never changes again.
func (s TaskState) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// TaskProgress captures optional progress counters for a running task.
// Percentage, when set, is in [0, 1].
type TaskProgress struct {
	Current    *int     `json:"current,omitempty"`
	Total      *int     `json:"total,omitempty"`
	Percentage *float64 `json:"percentage,omitempty" validate:"omitempty,gte=0,lte=1"`
	Phase      *string  `json:"phase,omitempty"`
}

// TaskStatus is the current status information for a task.
type TaskStatus struct {
	State    TaskState              `json:"state" validate:"required,oneof=QUEUED RUNNING COMPLETED FAILED CANCELLED"`
	Progress TaskProgress           `json:"progress"`
	Message  *string                `json:"message,omitempty"`
	Metrics  map[string]interface{} `json:"metrics,omitempty"`
}

// NewStatus creates a status with the given state and empty progress.
func NewStatus(state TaskState) TaskStatus {
	return TaskStatus{State: state}
}

// WithMessage returns a copy of the status carrying the given message.
func (s TaskStatus) WithMessage(message string) TaskStatus {
	s.Message = &message
	return s
}

// Pct returns the progress percentage, defaulting to zero when unset.
func (s TaskStatus) Pct() float64 {
	if s.Progress.Percentage == nil {
		return 0
	}
	return *s.Progress.Percentage
}
