package notification

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// TaskTypeDispatch is the asynq task type for dispatching a scheduled
// notification at its send time.
const TaskTypeDispatch = "notification:dispatch"

// DispatchPayload is the serialized payload for a dispatch task.
type DispatchPayload struct {
	NotificationID string `json:"notification_id"`
}

// NewDispatchTask creates a new asynq task for dispatching a notification.
func NewDispatchTask(notificationID string) (*asynq.Task, error) {
	payload, err := json.Marshal(DispatchPayload{NotificationID: notificationID})
	if err != nil {
		return nil, fmt.Errorf("marshaling task payload: %w", err)
	}
	return asynq.NewTask(TaskTypeDispatch, payload), nil
}

// ParseDispatchPayload deserializes the task payload.
func ParseDispatchPayload(data []byte) (*DispatchPayload, error) {
	var p DispatchPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshaling task payload: %w", err)
	}
	return &p, nil
}
