package notification

import (
	"time"

	"pushdesk/internal/domain/audience"
)

// Status represents the lifecycle status of a notification.
type Status string

const (
	// StatusPending is a persisted notification that has not been sent.
	// A pending notification may carry a sendAt for scheduled dispatch.
	StatusPending Status = "pending"

	// StatusSent is terminal: the dispatch call succeeded.
	StatusSent Status = "sent"

	// StatusCancelled is terminal: the admin cancelled a pending notification.
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether no further transitions are defined from s.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusCancelled
}

// Notification is the persisted push notification entity. ID is assigned by
// the document store and immutable once created. A set sendAt on a sent
// notification is historical only.
type Notification struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Body         string         `json:"body"`
	Data         map[string]any `json:"data,omitempty"`
	CreatedAt    time.Time      `json:"createdAt,omitempty"`
	CreatedBy    string         `json:"createdBy,omitempty"`
	Status       Status         `json:"status"`
	SendAt       *time.Time     `json:"sendAt,omitempty"`
	TargetTokens []string       `json:"targetTokens,omitempty"`
	UserGroup    string         `json:"userGroup,omitempty"`
}

// TargetRequest is the console's audience selection. Both fields absent means
// "all users" — the sentinel is collapsed here at the serialization boundary
// and expanded to the explicit AllUsers selector internally.
type TargetRequest struct {
	Group     string          `json:"group,omitempty"`
	DeviceIDs []string        `json:"deviceIds,omitempty"`
	Devices   []audience.User `json:"devices,omitempty"`
}

// Empty reports whether the console supplied no selection at all.
func (t TargetRequest) Empty() bool {
	return t.Group == "" && len(t.DeviceIDs) == 0
}

// Selector expands the request into an explicit target selector.
func (t TargetRequest) Selector() audience.Selector {
	switch {
	case t.Group != "":
		return audience.ByGroup(t.Group)
	case len(t.DeviceIDs) > 0:
		return audience.ExplicitDevices(t.DeviceIDs, t.Devices)
	default:
		return audience.AllUsers()
	}
}

// CreateRequest is the API payload for composing a new notification.
// Data is the composer's raw JSON text; whitespace-only means no data.
type CreateRequest struct {
	Title     string        `json:"title" binding:"required"`
	Body      string        `json:"body" binding:"required"`
	Data      string        `json:"data"`
	SendAt    *time.Time    `json:"sendAt"`
	Target    TargetRequest `json:"target"`
	CreatedBy string        `json:"createdBy"`
}

// Snapshot is the field values of a notification as they existed when an
// edit session opened. It is captured once by the console and used as the
// diff baseline — never re-derived from re-fetched data.
type Snapshot struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Data  map[string]any `json:"data"`
}

// Edit is the in-flight edit session content. Data is raw JSON text.
type Edit struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Data  string `json:"data"`
}

// SaveRequest persists an edit session without dispatching.
type SaveRequest struct {
	Original Snapshot `json:"original"`
	Current  Edit     `json:"current"`
}

// SendRequest dispatches a notification, reconciling the edit session first.
// An empty Target falls back to the selector persisted on the entity.
type SendRequest struct {
	Original Snapshot      `json:"original"`
	Current  Edit          `json:"current"`
	Target   TargetRequest `json:"target"`
}

// RescheduleRequest changes a pending notification's schedule or group.
// A non-nil empty UserGroup clears the group, i.e. targets all users.
type RescheduleRequest struct {
	SendAt    *time.Time `json:"sendAt"`
	UserGroup *string    `json:"userGroup"`
}

// TestSendRequest pushes a preview to a single device token.
type TestSendRequest struct {
	Token string `json:"token" binding:"required"`
	Title string `json:"title" binding:"required"`
	Body  string `json:"body" binding:"required"`
	Data  string `json:"data"`
}
