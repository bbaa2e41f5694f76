package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/andrescamacho/taskstream-go/internal/domain/task"
)

func toTaskModel(ownerID string, t *task.Task) (*TaskModel, error) {
	payloadJSON, err := json.Marshal(t.Payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}

	statusModel, err := toStatusModel(t.ID, t.Status)
	if err != nil {
		return nil, err
	}

	metadataModel, err := toMetadataModel(t.ID, t.Metadata)
	if err != nil {
		return nil, err
	}

	return &TaskModel{
		ID:      t.ID,
		OwnerID: ownerID,
		Type:    string(t.Type),
		Payload: &TaskPayloadModel{
			TaskID:  t.ID,
			Payload: string(payloadJSON),
		},
		Metadata: metadataModel,
		Status:   statusModel,
	}, nil
}

func toStatusModel(taskID string, status task.TaskStatus) (*TaskStatusModel, error) {
	metrics := ""
	if status.Metrics != nil {
		raw, err := json.Marshal(status.Metrics)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal status metrics: %w", err)
		}
		metrics = string(raw)
	}

	return &TaskStatusModel{
		TaskID:             taskID,
		State:              string(status.State),
		ProgressCurrent:    status.Progress.Current,
		ProgressTotal:      status.Progress.Total,
		ProgressPercentage: status.Progress.Percentage,
		ProgressPhase:      status.Progress.Phase,
		Message:            status.Message,
		Metrics:            metrics,
	}, nil
}

func toMetadataModel(taskID string, metadata task.TaskMetadata) (*TaskMetadataModel, error) {
	custom := ""
	if metadata.Custom != nil {
		raw, err := json.Marshal(metadata.Custom)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata custom fields: %w", err)
		}
		custom = string(raw)
	}

	return &TaskMetadataModel{
		TaskID:     taskID,
		CreatedAt:  metadata.CreatedAt,
		UpdatedAt:  metadata.UpdatedAt,
		StartedAt:  metadata.StartedAt,
		FinishedAt: metadata.FinishedAt,
		Custom:     custom,
	}, nil
}

func toResultModel(taskID string, result task.TaskResult) (*TaskResultModel, error) {
	data := ""
	if result.Data != nil {
		raw, err := json.Marshal(result.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal result data: %w", err)
		}
		data = string(raw)
	}

	return &TaskResultModel{
		TaskID:     taskID,
		Data:       data,
		ExpiresAt:  result.ExpiresAt,
		TTLSeconds: result.TTLSeconds,
	}, nil
}

func toDomainStatus(model *TaskStatusModel) (task.TaskStatus, error) {
	status := task.TaskStatus{
		State: task.TaskState(model.State),
		Progress: task.TaskProgress{
			Current:    model.ProgressCurrent,
			Total:      model.ProgressTotal,
			Percentage: model.ProgressPercentage,
			Phase:      model.ProgressPhase,
		},
		Message: model.Message,
	}
	if model.Metrics != "" {
		if err := json.Unmarshal([]byte(model.Metrics), &status.Metrics); err != nil {
			return task.TaskStatus{}, fmt.Errorf("failed to unmarshal status metrics: %w", err)
		}
	}
	return status, nil
}

func toDomainMetadata(model *TaskMetadataModel) (task.TaskMetadata, error) {
	metadata := task.TaskMetadata{
		CreatedAt:  model.CreatedAt,
		UpdatedAt:  model.UpdatedAt,
		StartedAt:  model.StartedAt,
		FinishedAt: model.FinishedAt,
	}
	if model.Custom != "" {
		if err := json.Unmarshal([]byte(model.Custom), &metadata.Custom); err != nil {
			return task.TaskMetadata{}, fmt.Errorf("failed to unmarshal metadata custom fields: %w", err)
		}
	}
	return metadata, nil
}

func toDomainResult(model *TaskResultModel) (*task.TaskResult, error) {
	result := &task.TaskResult{
		TaskID:     model.TaskID,
		ExpiresAt:  model.ExpiresAt,
		TTLSeconds: model.TTLSeconds,
	}
	if model.Data != "" {
		if err := json.Unmarshal([]byte(model.Data), &result.Data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal result data: %w", err)
		}
	}
	return result, nil
}

func toDomainTask(model *TaskModel) (*task.Task, error) {
	t := &task.Task{
		ID:      model.ID,
		OwnerID: model.OwnerID,
		Type:    task.TaskType(model.Type),
	}

	if model.Payload != nil {
		payload, err := task.DecodePayload(t.Type, []byte(model.Payload.Payload))
		if err != nil {
			return nil, fmt.Errorf("failed to decode payload for task %s: %w", model.ID, err)
		}
		t.Payload = payload
	}

	if model.Status != nil {
		status, err := toDomainStatus(model.Status)
		if err != nil {
			return nil, err
		}
		t.Status = status
	}

	if model.Metadata != nil {
		metadata, err := toDomainMetadata(model.Metadata)
		if err != nil {
			return nil, err
		}
		t.Metadata = metadata
	}

	if model.Result != nil {
		result, err := toDomainResult(model.Result)
		if err != nil {
			return nil, err
		}
		if model.Metadata != nil {
			meta := t.Metadata
			result.TaskMetadata = &meta
		}
		t.Result = result
	}

	return t, nil
}

func toTaskView(model *TaskModel) (task.TaskView, error) {
	view := task.TaskView{
		ID:   model.ID,
		Type: task.TaskType(model.Type),
	}
	if model.Status != nil {
		status, err := toDomainStatus(model.Status)
		if err != nil {
			return task.TaskView{}, err
		}
		view.Status = status
	}
	if model.Metadata != nil {
		metadata, err := toDomainMetadata(model.Metadata)
		if err != nil {
			return task.TaskView{}, err
		}
		view.Metadata = metadata
	}
	return view, nil
}
