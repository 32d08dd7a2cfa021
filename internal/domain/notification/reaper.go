package notification

import (
	"context"
	"log/slog"
	"time"
)

// ReaperConfig holds configuration for the overdue-dispatch reaper.
type ReaperConfig struct {
	// Interval is how often the reaper scans for overdue notifications.
	Interval time.Duration

	// OverdueThreshold is how far past its sendAt a pending notification may
	// be before the reaper considers its dispatch task lost.
	OverdueThreshold time.Duration

	// BatchSize is the maximum number of notifications to recover per cycle.
	BatchSize int
}

// Reaper periodically scans the document store for pending notifications
// whose send time has passed without a dispatch, and re-enqueues their
// tasks. The store is the source of truth; a wiped Redis or a crashed
// worker never permanently drops a scheduled send.
type Reaper struct {
	upstream Upstream
	enqueuer Enqueuer
	config   ReaperConfig
}

// NewReaper creates a new overdue-dispatch reaper.
func NewReaper(upstream Upstream, enqueuer Enqueuer, cfg ReaperConfig) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.OverdueThreshold <= 0 {
		cfg.OverdueThreshold = 2 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}

	return &Reaper{
		upstream: upstream,
		enqueuer: enqueuer,
		config:   cfg,
	}
}

// Run starts the reaper loop. It blocks until the context is cancelled.
// Should be called in a goroutine.
func (r *Reaper) Run(ctx context.Context) {
	slog.Info("reaper started",
		"interval", r.config.Interval,
		"overdue_threshold", r.config.OverdueThreshold,
		"batch_size", r.config.BatchSize,
	)

	ticker := time.NewTicker(r.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("reaper stopped")
			return
		case <-ticker.C:
			r.sweep(ctx)
		}
	}
}

// sweep performs one reaper cycle: find overdue notifications and re-enqueue
// their dispatch tasks for immediate processing.
func (r *Reaper) sweep(ctx context.Context) {
	olderThan := time.Now().Add(-r.config.OverdueThreshold)

	overdue, err := r.upstream.ListOverdue(ctx, olderThan, r.config.BatchSize)
	if err != nil {
		slog.Error("reaper: failed to list overdue notifications", "error", err)
		return
	}

	if len(overdue) == 0 {
		return
	}

	slog.Warn("reaper: found overdue notifications", "count", len(overdue))

	recovered := 0
	for _, n := range overdue {
		if err := r.enqueuer.EnqueueDispatch(n.ID, time.Now()); err != nil {
			slog.Error("reaper: failed to re-enqueue dispatch",
				"id", n.ID,
				"error", err,
			)
			continue
		}

		recovered++
		slog.Info("reaper: recovered overdue notification",
			"id", n.ID,
			"send_at", n.SendAt,
		)
	}

	if recovered > 0 {
		slog.Info("reaper: sweep complete", "recovered", recovered, "total_overdue", len(overdue))
	}
}
