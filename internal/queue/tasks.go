package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/framefit/framefit/internal/compose"
)

const TypeExportImage = "image:export"

// ExportImagePayload carries everything the worker needs to materialize a
// derived image: the compiled descriptor, the rendered processor URL, and
// where to report completion.
type ExportImagePayload struct {
	SessionID   string             `json:"session_id"`
	Descriptor  compose.Descriptor `json:"descriptor"`
	PreviewURL  string             `json:"preview_url"`
	WebhookURL  string             `json:"webhook_url,omitempty"`
	RequestedAt time.Time          `json:"requested_at"`
}

func NewExportImageTask(payload ExportImagePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal export payload: %w", err)
	}
	return asynq.NewTask(TypeExportImage, body), nil
}

func ParseExportImagePayload(task *asynq.Task) (ExportImagePayload, error) {
	var payload ExportImagePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return ExportImagePayload{}, fmt.Errorf("unmarshal export payload: %w", err)
	}
	return payload, nil
}
