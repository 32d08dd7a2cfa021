package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"pushdesk/internal/config"
	"pushdesk/internal/domain/audience"
	"pushdesk/internal/domain/notification"
	"pushdesk/internal/infra/crm"
	"pushdesk/internal/infra/push"
	"pushdesk/internal/infra/queue"
	"pushdesk/internal/infra/ratelimit"
	"pushdesk/internal/infra/store"
	"pushdesk/internal/router"

	"github.com/hibiken/asynq"
)

// queueEnqueuer adapts the asynq client to the notification.Enqueuer
// interface.
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

	slog.Info("configuration loaded", "port", cfg.Server.Port, "mode", cfg.Server.Mode)

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

	// Asynq client (for scheduling dispatch tasks)
	asynqClient := queue.NewClient(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
	defer asynqClient.Close()
	slog.Info("asynq client initialized", "redis", cfg.Redis.Address)

	enqueuer := &queueEnqueuer{
		client:   asynqClient,
		maxRetry: cfg.Queue.MaxRetry,
	}

	// Test-send device limiter
	deviceLimiter := ratelimit.NewRedisDeviceLimiter(
		cfg.Redis.Address,
		cfg.Redis.Password,
		cfg.Redis.DB,
		cfg.TestSend.MaxPerHour,
	)
	defer deviceLimiter.Close()
	slog.Info("test-send limiter initialized", "max_per_hour", cfg.TestSend.MaxPerHour)

	// Push gateway
	gateway := push.NewGateway(cfg.Push.GatewayURL, cfg.Push.APIKey)

	// CRM segments
	segmentsClient := crm.NewClient(cfg.Segments.BaseURL, cfg.Segments.APIKey)

	// Audience resolution and listing
	resolver := audience.NewResolver(docStore)
	audienceService := audience.NewService(docStore, segmentsClient)
	audienceHandler := audience.NewHandler(audienceService)

	// Notification orchestration
	notificationService := notification.NewService(
		docStore,
		resolver,
		gateway,
		enqueuer,
		deviceLimiter,
		cfg.Dispatch.StrictReconcile,
	)
	notificationHandler := notification.NewHandler(notificationService)

	// Router
	r := router.New(cfg, notificationHandler, audienceHandler)

	// ==========================================
	// HTTP Server with Graceful Shutdown
	// ==========================================

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "address", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed to start", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server...")

	// Give outstanding requests 10 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server exited gracefully")
}
