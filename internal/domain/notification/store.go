package notification

import (
	"context"
	"time"

	"pushdesk/internal/domain/audience"
)

// Upstream defines the document-store operations the console depends on.
// Implementations live in infra/store/.
type Upstream interface {
	// FetchNotifications retrieves all notifications.
	FetchNotifications(ctx context.Context) ([]Notification, error)

	// FetchScheduled retrieves pending notifications with a sendAt set.
	FetchScheduled(ctx context.Context) ([]Notification, error)

	// FetchNotification retrieves one notification by id.
	// Returns nil, nil if no record is found.
	FetchNotification(ctx context.Context, id string) (*Notification, error)

	// CreateNotification persists a new notification and returns the
	// store-assigned id.
	CreateNotification(ctx context.Context, n *Notification) (string, error)

	// UpdateNotification applies a partial field update. Only the supplied
	// fields are written.
	UpdateNotification(ctx context.Context, id string, fields map[string]any) error

	// CancelOrReschedule applies a schedule/status partial update.
	CancelOrReschedule(ctx context.Context, id string, fields map[string]any) error

	// DeleteNotification removes a notification.
	DeleteNotification(ctx context.Context, id string) error

	// ListOverdue retrieves pending notifications whose sendAt passed before
	// olderThan. Used by the reaper to recover lost scheduled dispatches.
	ListOverdue(ctx context.Context, olderThan time.Time, limit int) ([]Notification, error)
}

// Dispatcher delivers a push to resolved tokens through the push gateway.
// Implementations live in infra/push/.
type Dispatcher interface {
	// Dispatch sends title/body/data to every token. notificationID is
	// optional and only used for gateway-side correlation.
	Dispatch(ctx context.Context, tokens []string, title, body string, data map[string]any, notificationID string) error
}

// Enqueuer schedules a dispatch task for a notification at a point in time.
// This decouples the service from the specific queue implementation.
type Enqueuer interface {
	EnqueueDispatch(notificationID string, at time.Time) error
}

// TestSendLimiter caps preview pushes per device token.
// Implementations live in infra/ratelimit/.
type TestSendLimiter interface {
	// Allow reports whether a test send to the given token may proceed.
	Allow(ctx context.Context, token string) (bool, error)
}

// AudienceResolver expands a target selector into delivery tokens.
type AudienceResolver interface {
	Resolve(ctx context.Context, sel audience.Selector) ([]string, error)
}
