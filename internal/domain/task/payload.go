package task

import (
	"encoding/json"
	"fmt"
)

// TaskType is the closed set of task kinds the system executes.
type TaskType string

const (
	TypeComputePi        TaskType = "COMPUTE_PI"
	TypeDocumentAnalysis TaskType = "DOCUMENT_ANALYSIS"
)

// TaskPayload is the type-discriminated input for a task. The concrete shape
// is selected by the task type; payloads are persisted as JSON with the task
// type acting as discriminator.
type TaskPayload interface {
	TaskType() TaskType
}

// ComputePiPayload asks for pi computed to a number of digits.
type ComputePiPayload struct {
	Digits int `json:"digits" validate:"required,min=1"`
}

func (ComputePiPayload) TaskType() TaskType { return TypeComputePi }

// DocumentAnalysisPayload asks for a keyword scan over a document. Either a
// local path or a URL to download must be provided.
type DocumentAnalysisPayload struct {
	DocumentPath string   `json:"document_path,omitempty"`
	DocumentURL  string   `json:"document_url,omitempty"`
	Keywords     []string `json:"keywords" validate:"required,min=1"`
}

func (DocumentAnalysisPayload) TaskType() TaskType { return TypeDocumentAnalysis }

// DecodePayload decodes raw JSON into the concrete payload shape for the
// given task type.
func DecodePayload(taskType TaskType, raw []byte) (TaskPayload, error) {
	switch taskType {
	case TypeComputePi:
		var p ComputePiPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode compute pi payload: %w", err)
		}
		return p, nil
	case TypeDocumentAnalysis:
		var p DocumentAnalysisPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("failed to decode document analysis payload: %w", err)
		}
		return p, nil
	default:
		return nil, NewInvalidTaskTypeError(string(taskType))
	}
}
