package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pushdesk/internal/common"
	"pushdesk/internal/domain/audience"
)

// Service orchestrates the notification lifecycle: compose, save, schedule,
// cancel, and the send sequence of reconcile → resolve → dispatch → mark sent.
type Service struct {
	upstream   Upstream
	resolver   AudienceResolver
	dispatcher Dispatcher
	enqueuer   Enqueuer
	limiter    TestSendLimiter

	// strictReconcile aborts a send when the pre-dispatch partial update
	// fails. Default is best-effort: the failure is logged and the dispatch
	// proceeds with the content the admin is looking at.
	strictReconcile bool
}

// NewService creates a new notification service.
func NewService(upstream Upstream, resolver AudienceResolver, dispatcher Dispatcher, enqueuer Enqueuer, limiter TestSendLimiter, strictReconcile bool) *Service {
	return &Service{
		upstream:        upstream,
		resolver:        resolver,
		dispatcher:      dispatcher,
		enqueuer:        enqueuer,
		limiter:         limiter,
		strictReconcile: strictReconcile,
	}
}

// Create validates a draft and persists it as pending. A sendAt schedules
// dispatch; an explicit device selection is materialized into tokens now,
// since the console's device catalogue is not available later.
func (s *Service) Create(ctx context.Context, req *CreateRequest) (*Notification, error) {
	data, err := ValidateContent(req.Title, req.Body, req.Data)
	if err != nil {
		return nil, err
	}

	if req.SendAt != nil {
		if err := ValidateSendAt(*req.SendAt, time.Now()); err != nil {
			return nil, err
		}
	}

	createdBy := req.CreatedBy
	if createdBy == "" {
		createdBy = "system"
	}

	n := &Notification{
		Title:     trimmed(req.Title),
		Body:      trimmed(req.Body),
		Data:      data,
		CreatedBy: createdBy,
		Status:    StatusPending,
		SendAt:    req.SendAt,
	}

	sel := req.Target.Selector()
	switch sel.Kind {
	case audience.SelectGroup:
		n.UserGroup = sel.GroupID
	case audience.SelectDevices:
		tokens, err := s.resolver.Resolve(ctx, sel)
		if err != nil {
			return nil, err
		}
		n.TargetTokens = tokens
	}

	id, err := s.upstream.CreateNotification(ctx, n)
	if err != nil {
		return nil, common.NewUpstreamError("create notification", err)
	}
	n.ID = id

	if n.SendAt != nil {
		// The entity is already persisted; a lost task is recovered by the
		// overdue reaper, so an enqueue failure does not fail the create.
		if err := s.enqueuer.EnqueueDispatch(n.ID, *n.SendAt); err != nil {
			slog.Error("failed to enqueue scheduled dispatch", "id", n.ID, "send_at", n.SendAt, "error", err)
		}
	}

	slog.Info("notification created",
		"id", n.ID,
		"scheduled", n.SendAt != nil,
		"target", sel.String(),
	)

	return n, nil
}

// List retrieves all notifications.
func (s *Service) List(ctx context.Context) ([]Notification, error) {
	notifications, err := s.upstream.FetchNotifications(ctx)
	if err != nil {
		return nil, common.NewUpstreamError("fetch notifications", err)
	}
	return notifications, nil
}

// ListScheduled retrieves pending notifications with a send time.
func (s *Service) ListScheduled(ctx context.Context) ([]Notification, error) {
	notifications, err := s.upstream.FetchScheduled(ctx)
	if err != nil {
		return nil, common.NewUpstreamError("fetch scheduled notifications", err)
	}
	return notifications, nil
}

// Get retrieves one notification by id.
func (s *Service) Get(ctx context.Context, id string) (*Notification, error) {
	n, err := s.upstream.FetchNotification(ctx, id)
	if err != nil {
		return nil, common.NewUpstreamError("fetch notification", err)
	}
	if n == nil {
		return nil, common.NewNotFoundError("notification", id)
	}
	return n, nil
}

// Save reconciles an edit session against its opening snapshot and writes
// only the changed fields back. An unchanged session is a no-op success.
func (s *Service) Save(ctx context.Context, id string, req *SaveRequest) (*ChangeSet, error) {
	if _, err := s.fetchPending(ctx, id, "edit"); err != nil {
		return nil, err
	}

	cs, err := Diff(req.Original, req.Current)
	if err != nil {
		return nil, err
	}

	if cs.Empty() {
		return &cs, nil
	}

	if err := s.upstream.UpdateNotification(ctx, id, cs.Fields()); err != nil {
		return nil, common.NewUpstreamError("save notification", err)
	}

	slog.Info("notification saved", "id", id, "fields", fieldNames(cs))
	return &cs, nil
}

// Reschedule changes a pending notification's send time and/or group.
// The terminal guard runs before any write, so a sent or cancelled entity
// is left unchanged.
func (s *Service) Reschedule(ctx context.Context, id string, req *RescheduleRequest) error {
	if _, err := s.fetchPending(ctx, id, "reschedule"); err != nil {
		return err
	}

	fields := make(map[string]any, 2)
	if req.SendAt != nil {
		if err := ValidateSendAt(*req.SendAt, time.Now()); err != nil {
			return err
		}
		fields["sendAt"] = *req.SendAt
	}
	if req.UserGroup != nil {
		// Empty clears the group, collapsing back to the all-users sentinel
		// at the store boundary.
		fields["userGroup"] = *req.UserGroup
	}

	if len(fields) == 0 {
		return nil
	}

	if err := s.upstream.CancelOrReschedule(ctx, id, fields); err != nil {
		return common.NewUpstreamError("reschedule notification", err)
	}

	if req.SendAt != nil {
		if err := s.enqueuer.EnqueueDispatch(id, *req.SendAt); err != nil {
			slog.Error("failed to enqueue rescheduled dispatch", "id", id, "send_at", req.SendAt, "error", err)
		}
	}

	slog.Info("notification rescheduled", "id", id, "send_at", req.SendAt)
	return nil
}

// Cancel transitions a pending notification to cancelled. Cancelling an
// already-cancelled notification is a no-op success; cancelling a sent one
// is InvalidTransition.
func (s *Service) Cancel(ctx context.Context, id string) error {
	n, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if n.Status == StatusCancelled {
		return nil
	}
	if n.Status == StatusSent {
		return common.NewInvalidTransitionError(string(n.Status), "cancel")
	}

	fields := map[string]any{"status": string(StatusCancelled)}
	if err := s.upstream.CancelOrReschedule(ctx, id, fields); err != nil {
		return common.NewUpstreamError("cancel notification", err)
	}

	slog.Info("notification cancelled", "id", id)
	return nil
}

// Delete removes a notification from the store.
func (s *Service) Delete(ctx context.Context, id string) error {
	if id == "" {
		return common.NewInvalidPayloadError("notification id is required")
	}
	if err := s.upstream.DeleteNotification(ctx, id); err != nil {
		return common.NewUpstreamError("delete notification", err)
	}
	slog.Info("notification deleted", "id", id)
	return nil
}

// Send runs the dispatch sequence: reconcile the edit session, resolve the
// audience, dispatch with the current content, then mark sent. The entity is
// never marked sent speculatively — a dispatch failure leaves it pending.
func (s *Service) Send(ctx context.Context, id string, req *SendRequest) (*Notification, error) {
	n, err := s.fetchPending(ctx, id, "send")
	if err != nil {
		return nil, err
	}

	// Local validation first: the dispatch carries the current content, so
	// it must stand on its own.
	data, err := ValidateContent(req.Current.Title, req.Current.Body, req.Current.Data)
	if err != nil {
		return nil, err
	}
	title := trimmed(req.Current.Title)
	body := trimmed(req.Current.Body)

	cs, err := Diff(req.Original, req.Current)
	if err != nil {
		return nil, err
	}

	if !cs.Empty() {
		if err := s.upstream.UpdateNotification(ctx, id, cs.Fields()); err != nil {
			if s.strictReconcile {
				return nil, common.NewUpstreamError("pre-dispatch update", err)
			}
			// Best-effort: the dispatch carries the content the admin is
			// looking at either way, so a stale persisted copy is preferable
			// to aborting a user-initiated send.
			slog.Warn("pre-dispatch update failed, dispatching anyway", "id", id, "error", err)
		}
	}

	sel := req.Target.Selector()
	if req.Target.Empty() {
		sel = audience.FromPersisted(n.UserGroup, n.TargetTokens)
	}

	tokens, err := s.resolver.Resolve(ctx, sel)
	if err != nil {
		// EmptyAudience or ResolutionFailed: abort before any dispatch call.
		// Sending to nobody is never a silent success.
		return nil, err
	}

	if err := s.dispatcher.Dispatch(ctx, tokens, title, body, data, id); err != nil {
		return nil, common.NewUpstreamError("dispatch notification", err)
	}

	if err := s.upstream.UpdateNotification(ctx, id, map[string]any{"status": string(StatusSent)}); err != nil {
		// The push went out; surfacing this as a dispatch failure would
		// invite a duplicate send.
		slog.Error("dispatch succeeded but status update failed", "id", id, "error", err)
	}

	n.Title = title
	n.Body = body
	n.Data = data
	n.Status = StatusSent

	slog.Info("notification sent",
		"id", id,
		"recipients", len(tokens),
		"target", sel.String(),
	)

	return n, nil
}

// TestSend pushes a preview to a single device token, rate-limited per
// token so an admin cannot spam one device.
func (s *Service) TestSend(ctx context.Context, req *TestSendRequest) error {
	data, err := ValidateContent(req.Title, req.Body, req.Data)
	if err != nil {
		return err
	}

	if s.limiter != nil {
		allowed, err := s.limiter.Allow(ctx, req.Token)
		if err != nil {
			// Fail open — don't block a preview when Redis is down.
			slog.Error("test-send rate limit check failed, proceeding", "error", err)
		} else if !allowed {
			return common.NewInvalidPayloadError(fmt.Sprintf("test-send limit reached for token %s", req.Token))
		}
	}

	if err := s.dispatcher.Dispatch(ctx, []string{req.Token}, trimmed(req.Title), trimmed(req.Body), data, ""); err != nil {
		return common.NewUpstreamError("test send", err)
	}

	slog.Info("test notification sent", "token", req.Token)
	return nil
}

// fetchPending loads an entity and guards against terminal statuses.
func (s *Service) fetchPending(ctx context.Context, id, action string) (*Notification, error) {
	if id == "" {
		return nil, common.NewInvalidPayloadError("notification id is required")
	}
	n, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := EnsurePending(n.Status, action); err != nil {
		return nil, err
	}
	return n, nil
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}

// fieldNames lists the changed field names for logging.
func fieldNames(cs ChangeSet) []string {
	names := make([]string, 0, 3)
	if cs.TitleChanged {
		names = append(names, "title")
	}
	if cs.BodyChanged {
		names = append(names, "body")
	}
	if cs.DataChanged {
		names = append(names, "data")
	}
	return names
}
