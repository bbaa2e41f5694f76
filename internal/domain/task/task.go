package task

// Task is a client-submitted unit of asynchronous work. Tasks are created by
// the task service, mutated only through events applied by the event handler,
// and owned exclusively by the durable store.
type Task struct {
	ID       string       `json:"id"`
	OwnerID  string       `json:"owner_id"`
	Type     TaskType     `json:"task_type"`
	Payload  TaskPayload  `json:"payload"`
	Status   TaskStatus   `json:"status"`
	Metadata TaskMetadata `json:"metadata"`
	Result   *TaskResult  `json:"result,omitempty"`
}

// TaskView is the compact representation used for task listings.
type TaskView struct {
	ID       string       `json:"id"`
	Type     TaskType     `json:"task_type"`
	Status   TaskStatus   `json:"status"`
	Metadata TaskMetadata `json:"metadata"`
}
