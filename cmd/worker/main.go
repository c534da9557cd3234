// The worker runs the engine's continuous machinery: the outbox processor
// and periodic ticker-driven sweeps. Sweeps still acquire the distributed
// lock, so several workers can run side by side.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/felixgeelhaar/arrears/internal/app"
	"github.com/felixgeelhaar/arrears/internal/shared/application/sweep"
	"github.com/felixgeelhaar/arrears/internal/shared/infrastructure/redislock"
	"github.com/felixgeelhaar/arrears/pkg/config"
	"github.com/felixgeelhaar/arrears/pkg/observability"
)

func main() {
	logger := observability.LoggerFromEnv()
	logger.Info("starting arrears worker")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	container, err := app.NewContainer(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize container", "error", err)
		os.Exit(1)
	}
	defer container.Close()

	if err := container.OutboxProcessor.Start(ctx); err != nil {
		logger.Error("failed to start outbox processor", "error", err)
		os.Exit(1)
	}

	go runOutboxCleanup(ctx, container, logger)

	runSweepTicker(ctx, container, logger, "overdue", cfg.OverdueSweepInterval, container.EscalationSweeper.Sweep)
	runSweepTicker(ctx, container, logger, "liquidation", cfg.LiquidationSweepInterval, container.LiquidationSweeper.Sweep)
	runSweepTicker(ctx, container, logger, "settlement", cfg.LiquidationSweepInterval, container.Settlement.Sweep)
	runSweepTicker(ctx, container, logger, "retry", cfg.RetrySweepInterval, container.RetryManager.Sweep)
	runSweepTicker(ctx, container, logger, "reminders", cfg.ReminderSweepInterval, container.ReminderSweeper.Sweep)

	go serveHealth(ctx, container, cfg, logger)

	<-ctx.Done()
	logger.Info("arrears worker stopped")
}

func runSweepTicker(ctx context.Context, container *app.Container, logger *slog.Logger, kind string, interval time.Duration, run func(ctx context.Context) (*sweep.Report, error)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepCtx := observability.NewSweepContext(ctx, kind)
				err := container.Locker.WithLock(sweepCtx, "sweep:"+kind, func(ctx context.Context) error {
					_, err := run(ctx)
					return err
				})
				if errors.Is(err, redislock.ErrNotAcquired) {
					logger.Debug("sweep held elsewhere, skipped", "sweep", kind)
					continue
				}
				if err != nil {
					logger.Error("sweep failed", "sweep", kind, "error", err)
				}
			}
		}
	}()
}

func runOutboxCleanup(ctx context.Context, container *app.Container, logger *slog.Logger) {
	ticker := time.NewTicker(container.Config.OutboxCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := container.OutboxRepo.DeleteOld(ctx, container.Config.OutboxRetentionDays)
			if err != nil {
				logger.Error("outbox cleanup failed", "error", err)
				continue
			}
			if deleted > 0 {
				logger.Info("outbox cleanup done", "deleted", deleted)
			}
		}
	}
}

func serveHealth(ctx context.Context, container *app.Container, cfg *config.Config, logger *slog.Logger) {
	health := observability.NewHealthRegistry()
	health.Register("postgres", func(ctx context.Context) observability.HealthCheckResult {
		if err := container.Pool.Ping(ctx); err != nil {
			return observability.HealthCheckResult{
				Status:  observability.HealthStatusUnhealthy,
				Message: err.Error(),
			}
		}
		return observability.HealthCheckResult{Status: observability.HealthStatusHealthy}
	})
	health.Register("redis", func(ctx context.Context) observability.HealthCheckResult {
		if err := container.RedisClient.Ping(ctx).Err(); err != nil {
			return observability.HealthCheckResult{
				Status:  observability.HealthStatusDegraded,
				Message: err.Error(),
			}
		}
		return observability.HealthCheckResult{Status: observability.HealthStatusHealthy}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		results := health.RunChecks(r.Context())
		body, err := observability.MarshalResults(results)
		if err != nil {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		if observability.OverallStatus(results) == observability.HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_, _ = w.Write(body)
	})

	server := &http.Server{
		Addr:              cfg.WorkerHealthAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("health server failed", "error", err)
	}
}
