package scheduler

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const TaskEmbeddingsInvalidate = "catalog.embeddings.invalidate"

// EmbeddingsInvalidatePayload identifies which tenant's embedding snapshot
// to drop. Exactly one of OrganizationID or UserID is set.
type EmbeddingsInvalidatePayload struct {
	OrganizationID string `json:"organizationId,omitempty"`
	UserID         string `json:"userId,omitempty"`
}

func NewEmbeddingsInvalidateTask(payload EmbeddingsInvalidatePayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskEmbeddingsInvalidate, data), nil
}

func ParseEmbeddingsInvalidatePayload(task *asynq.Task) (EmbeddingsInvalidatePayload, error) {
	var payload EmbeddingsInvalidatePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return EmbeddingsInvalidatePayload{}, err
	}
	return payload, nil
}
