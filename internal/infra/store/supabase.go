package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pushdesk/internal/domain/audience"
	"pushdesk/internal/domain/notification"
	"pushdesk/internal/infra/upstream"

	"github.com/supabase-community/postgrest-go"
	supa "github.com/supabase-community/supabase-go"
)

const (
	notificationsTable = "notifications"
	devicesTable       = "devices"
	groupsTable        = "user_groups"
)

var (
	_ notification.Upstream    = (*SupabaseStore)(nil)
	_ audience.DirectorySource = (*SupabaseStore)(nil)
)

// SupabaseStore implements the document-store contracts using the Supabase
// Go SDK. Tables use camelCase column names matching the console wire
// format, so list responses pass straight through the payload normalizer.
type SupabaseStore struct {
	client *supa.Client
}

// NewSupabaseStore creates a new Supabase-backed store.
func NewSupabaseStore(supabaseURL, serviceKey string) (*SupabaseStore, error) {
	client, err := supa.NewClient(supabaseURL, serviceKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating supabase client: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

// FetchNotifications retrieves all notifications, newest first.
func (s *SupabaseStore) FetchNotifications(ctx context.Context) ([]notification.Notification, error) {
	data, _, err := s.client.From(notificationsTable).
		Select("*", "exact", false).
		Order("createdAt", &postgrest.OrderOpts{Ascending: false}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching notifications: %w", err)
	}
	return upstream.Notifications(data), nil
}

// FetchScheduled retrieves pending notifications with a send time, soonest
// first.
func (s *SupabaseStore) FetchScheduled(ctx context.Context) ([]notification.Notification, error) {
	data, _, err := s.client.From(notificationsTable).
		Select("*", "exact", false).
		Eq("status", string(notification.StatusPending)).
		Not("sendAt", "is", "null").
		Order("sendAt", &postgrest.OrderOpts{Ascending: true}).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching scheduled notifications: %w", err)
	}
	return upstream.Notifications(data), nil
}

// FetchNotification retrieves one notification by id.
// Returns nil, nil if no record is found.
func (s *SupabaseStore) FetchNotification(ctx context.Context, id string) (*notification.Notification, error) {
	data, _, err := s.client.From(notificationsTable).
		Select("*", "exact", false).
		Eq("id", id).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching notification: %w", err)
	}

	notifications := upstream.Notifications(data)
	if len(notifications) == 0 {
		return nil, nil
	}
	return &notifications[0], nil
}

// CreateNotification inserts a new notification and returns the
// store-assigned id.
func (s *SupabaseStore) CreateNotification(ctx context.Context, n *notification.Notification) (string, error) {
	row := map[string]any{
		"title":     n.Title,
		"body":      n.Body,
		"data":      n.Data,
		"createdBy": n.CreatedBy,
		"status":    string(n.Status),
	}
	if n.SendAt != nil {
		row["sendAt"] = n.SendAt.UTC().Format(time.RFC3339Nano)
	}
	if len(n.TargetTokens) > 0 {
		row["targetTokens"] = n.TargetTokens
	}
	if n.UserGroup != "" {
		row["userGroup"] = n.UserGroup
	}

	data, _, err := s.client.From(notificationsTable).
		Insert(row, false, "", "representation", "").
		Execute()
	if err != nil {
		return "", fmt.Errorf("inserting notification: %w", err)
	}

	var results []struct {
		ID        string `json:"id"`
		CreatedAt string `json:"createdAt"`
	}
	if err := json.Unmarshal(data, &results); err != nil {
		return "", fmt.Errorf("parsing insert response: %w", err)
	}
	if len(results) == 0 {
		return "", fmt.Errorf("insert returned no rows")
	}

	if results[0].CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, results[0].CreatedAt); err == nil {
			n.CreatedAt = t
		}
	}

	return results[0].ID, nil
}

// UpdateNotification applies a partial field update to one notification.
func (s *SupabaseStore) UpdateNotification(ctx context.Context, id string, fields map[string]any) error {
	_, _, err := s.client.From(notificationsTable).
		Update(normalizeFields(fields), "", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("updating notification: %w", err)
	}
	return nil
}

// CancelOrReschedule applies a schedule/status partial update. Same table
// operation as UpdateNotification; kept separate because it is a distinct
// upstream capability with its own callers.
func (s *SupabaseStore) CancelOrReschedule(ctx context.Context, id string, fields map[string]any) error {
	_, _, err := s.client.From(notificationsTable).
		Update(normalizeFields(fields), "", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("rescheduling notification: %w", err)
	}
	return nil
}

// DeleteNotification removes a notification.
func (s *SupabaseStore) DeleteNotification(ctx context.Context, id string) error {
	_, _, err := s.client.From(notificationsTable).
		Delete("", "").
		Eq("id", id).
		Execute()
	if err != nil {
		return fmt.Errorf("deleting notification: %w", err)
	}
	return nil
}

// ListOverdue retrieves pending notifications whose sendAt passed before
// olderThan, oldest first.
func (s *SupabaseStore) ListOverdue(ctx context.Context, olderThan time.Time, limit int) ([]notification.Notification, error) {
	if limit <= 0 {
		limit = 50
	}

	threshold := olderThan.UTC().Format(time.RFC3339Nano)

	data, _, err := s.client.From(notificationsTable).
		Select("*", "exact", false).
		Eq("status", string(notification.StatusPending)).
		Lt("sendAt", threshold).
		Order("sendAt", &postgrest.OrderOpts{Ascending: true}).
		Range(0, limit-1, "").
		Execute()
	if err != nil {
		return nil, fmt.Errorf("listing overdue notifications: %w", err)
	}

	return upstream.Notifications(data), nil
}

// FetchDirectory retrieves the full device directory.
func (s *SupabaseStore) FetchDirectory(ctx context.Context) ([]audience.User, error) {
	data, _, err := s.client.From(devicesTable).
		Select("*", "exact", false).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching device directory: %w", err)
	}
	return upstream.Users(data), nil
}

// FetchGroups retrieves all user groups with their token sets.
func (s *SupabaseStore) FetchGroups(ctx context.Context) ([]audience.UserGroup, error) {
	data, _, err := s.client.From(groupsTable).
		Select("*", "exact", false).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("fetching user groups: %w", err)
	}
	return upstream.Groups(data), nil
}

// normalizeFields converts values PostgREST cannot take directly, in
// particular time.Time to RFC3339.
func normalizeFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if t, ok := v.(time.Time); ok {
			out[k] = t.UTC().Format(time.RFC3339Nano)
			continue
		}
		out[k] = v
	}
	return out
}
