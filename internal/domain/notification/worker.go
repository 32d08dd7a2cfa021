package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"pushdesk/internal/common"
	"pushdesk/internal/domain/audience"
)

// Worker processes scheduled dispatch tasks at their due time. It re-fetches
// the entity so cancellations and reschedules made after enqueueing win over
// the stale task.
type Worker struct {
	upstream   Upstream
	resolver   AudienceResolver
	dispatcher Dispatcher
	enqueuer   Enqueuer
}

// NewWorker creates a new scheduled dispatch worker.
func NewWorker(upstream Upstream, resolver AudienceResolver, dispatcher Dispatcher, enqueuer Enqueuer) *Worker {
	return &Worker{
		upstream:   upstream,
		resolver:   resolver,
		dispatcher: dispatcher,
		enqueuer:   enqueuer,
	}
}

// ProcessTask handles one dispatch task. A returned error makes the queue
// retry with backoff; dropping a task (nil return) is reserved for cases
// where retrying can never help.
func (w *Worker) ProcessTask(ctx context.Context, notificationID string) error {
	start := time.Now()

	n, err := w.upstream.FetchNotification(ctx, notificationID)
	if err != nil {
		return fmt.Errorf("fetching notification %s: %w", notificationID, err)
	}

	if n == nil {
		slog.Warn("scheduled notification no longer exists, dropping task", "id", notificationID)
		return nil
	}

	if n.Status != StatusPending {
		// Cancelled (or already sent by a console action) after scheduling.
		slog.Info("skipping scheduled dispatch", "id", n.ID, "status", n.Status)
		return nil
	}

	if n.SendAt == nil {
		slog.Warn("scheduled task for notification without send time, dropping", "id", n.ID)
		return nil
	}

	if remaining := time.Until(*n.SendAt); remaining > 0 {
		// Rescheduled to a later time after this task was enqueued.
		if err := w.enqueuer.EnqueueDispatch(n.ID, *n.SendAt); err != nil {
			return fmt.Errorf("re-enqueuing moved dispatch %s: %w", n.ID, err)
		}
		slog.Info("send time moved, task re-enqueued", "id", n.ID, "send_at", n.SendAt)
		return nil
	}

	sel := audience.FromPersisted(n.UserGroup, n.TargetTokens)

	tokens, err := w.resolver.Resolve(ctx, sel)
	if err != nil {
		var empty *common.EmptyAudienceError
		if errors.As(err, &empty) {
			// Retrying cannot conjure recipients; leave the entity pending
			// for the admin to inspect.
			slog.Error("scheduled dispatch has no recipients", "id", n.ID, "target", sel.String())
			return nil
		}
		return fmt.Errorf("resolving audience for %s: %w", n.ID, err)
	}

	if err := w.dispatcher.Dispatch(ctx, tokens, n.Title, n.Body, n.Data, n.ID); err != nil {
		slog.Error("scheduled dispatch failed",
			"id", n.ID,
			"recipients", len(tokens),
			"error", err,
			"duration", time.Since(start),
		)
		return common.NewUpstreamError("dispatch notification", err)
	}

	if err := w.upstream.UpdateNotification(ctx, n.ID, map[string]any{"status": string(StatusSent)}); err != nil {
		// The push went out; a retry here would send it again.
		slog.Error("scheduled dispatch succeeded but status update failed", "id", n.ID, "error", err)
	}

	slog.Info("scheduled notification sent",
		"id", n.ID,
		"recipients", len(tokens),
		"target", sel.String(),
		"duration", time.Since(start),
	)

	return nil
}
