package notification

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"pushdesk/internal/common"
)

// ParseData parses the composer's raw data JSON. An empty or whitespace-only
// string is equivalent to no data and yields an empty map. A malformed value
// is InvalidPayload — caught locally, never sent upstream.
func ParseData(raw string) (map[string]any, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return map[string]any{}, nil
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(trimmed), &data); err != nil {
		return nil, common.NewInvalidPayloadError(fmt.Sprintf("data is not valid JSON: %v", err))
	}
	if data == nil {
		data = map[string]any{}
	}
	return data, nil
}

// ValidateContent checks the title/body/data guards shared by create and
// send: non-empty trimmed title and body, parseable data.
func ValidateContent(title, body, rawData string) (map[string]any, error) {
	if strings.TrimSpace(title) == "" {
		return nil, common.NewInvalidPayloadError("title is required")
	}
	if strings.TrimSpace(body) == "" {
		return nil, common.NewInvalidPayloadError("body is required")
	}
	return ParseData(rawData)
}

// ValidateSendAt rejects a send time strictly in the past at validation time.
func ValidateSendAt(sendAt, now time.Time) error {
	if sendAt.Before(now) {
		return common.NewInvalidScheduleError(sendAt)
	}
	return nil
}

// EnsurePending guards mutations against terminal statuses. No transition
// out of sent or cancelled is defined.
func EnsurePending(status Status, action string) error {
	if status.Terminal() {
		return common.NewInvalidTransitionError(string(status), action)
	}
	return nil
}
