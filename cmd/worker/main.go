package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pushdesk/internal/config"
	"pushdesk/internal/domain/audience"
	"pushdesk/internal/domain/notification"
	"pushdesk/internal/infra/push"
	"pushdesk/internal/infra/queue"
	"pushdesk/internal/infra/store"

	"github.com/hibiken/asynq"
)

// queueEnqueuer adapts the asynq client to the notification.Enqueuer
// interface. Used by the worker for moved send times and by the reaper for
// recovered notifications.
type queueEnqueuer struct {
	client   *asynq.Client
	maxRetry int
}

func (q *queueEnqueuer) EnqueueDispatch(notificationID string, at time.Time) error {
	return queue.EnqueueDispatch(q.client, notificationID, at, q.maxRetry)
}

func main() {
	// Initialize structured logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	slog.Info("worker configuration loaded")

	// ==========================================
	// Dependency Injection (Manual Wiring)
	// ==========================================

	// Document store
	docStore, err := store.NewSupabaseStore(cfg.Supabase.URL, cfg.Supabase.ServiceKey)
	if err != nil {
		slog.Error("failed to initialize document store", "error", err)
		os.Exit(1)
	}
	slog.Info("document store initialized")

	// Push gateway
	gateway := push.NewGateway(cfg.Push.GatewayURL, cfg.Push.APIKey)

	// Asynq client (for re-enqueuing moved/recovered dispatches)
	asynqClient := queue.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer asynqClient.Close()

	enqueuer := &queueEnqueuer{
		client:   asynqClient,
		maxRetry: cfg.Queue.MaxRetry,
	}

	// Audience resolution over the live directory
	resolver := audience.NewResolver(docStore)

	// Scheduled dispatch worker
	dispatchWorker := notification.NewWorker(docStore, resolver, gateway, enqueuer)

	// ==========================================
	// Asynq Server (task processing)
	// ==========================================

	asynqServer := queue.NewServer(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.Queue.Concurrency,
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(notification.TaskTypeDispatch, func(ctx context.Context, task *asynq.Task) error {
		payload, err := notification.ParseDispatchPayload(task.Payload())
		if err != nil {
			return err
		}
		return dispatchWorker.ProcessTask(ctx, payload.NotificationID)
	})

	go func() {
		slog.Info("worker starting",
			"concurrency", cfg.Queue.Concurrency,
			"redis", cfg.Redis.Address,
		)
		if err := asynqServer.Run(mux); err != nil {
			slog.Error("worker failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// ==========================================
	// Overdue Dispatch Reaper
	// ==========================================

	reaperCtx, reaperCancel := context.WithCancel(context.Background())
	defer reaperCancel()

	reaper := notification.NewReaper(docStore, enqueuer, notification.ReaperConfig{
		Interval:         time.Duration(cfg.Reaper.IntervalSec) * time.Second,
		OverdueThreshold: time.Duration(cfg.Reaper.OverdueThresholdSec) * time.Second,
		BatchSize:        cfg.Reaper.BatchSize,
	})

	go reaper.Run(reaperCtx)

	// ==========================================
	// Graceful Shutdown
	// ==========================================

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	reaperCancel() // Stop the reaper first
	asynqServer.Shutdown()
	slog.Info("worker exited gracefully")
}
