package queue

import (
	"github.com/andrescamacho/taskstream-go/internal/domain/task"
)

// Route names the stream and logical queue an execution request lands on.
type Route struct {
	Stream string
	Queue  string
}

// RoutingTable maps task types to execution-request streams. The default
// table mirrors the deployed worker topology.
type RoutingTable map[task.TaskType]Route

// DefaultRoutes returns the standard routing table.
func DefaultRoutes() RoutingTable {
	return RoutingTable{
		task.TypeComputePi:        {Stream: "compute_pi", Queue: "default"},
		task.TypeDocumentAnalysis: {Stream: "document_analysis", Queue: "doc-tasks"},
	}
}

// Resolve returns the route for the task type, or an InvalidTaskTypeError
// when no route is registered.
func (t RoutingTable) Resolve(taskType task.TaskType) (Route, error) {
	route, ok := t[taskType]
	if !ok {
		return Route{}, task.NewInvalidTaskTypeError(string(taskType))
	}
	return route, nil
}
