// Reconciler периодически сверяет IN_PROGRESS шаги с GitHub:
// смёрженные PR и завершённые workflow run закрывают шаги без участия
// пользователя. В кластере работает один лидер (pg_try_advisory_lock).
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/ReleaseTrain/internal/config"
	"github.com/shaiso/ReleaseTrain/internal/gateway"
	"github.com/shaiso/ReleaseTrain/internal/mq"
	"github.com/shaiso/ReleaseTrain/internal/orchestrator"
	"github.com/shaiso/ReleaseTrain/internal/repo"
	"github.com/shaiso/ReleaseTrain/internal/scheduler"
	"github.com/shaiso/ReleaseTrain/internal/telemetry"
)

func main() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format).With("component", "reconciler")
	if err := run(cfg, logger); err != nil {
		logger.Error("reconciler failed", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	if cfg.Database.DSN == "" {
		return errors.New("database dsn is required (RELEASETRAIN_DATABASE_DSN)")
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
	if err != nil {
		return fmt.Errorf("db connect: %w", err)
	}
	defer pool.Close()
	logger.Info("db connected")

	client := gateway.New(gateway.Config{
		BaseURL:       cfg.GitHub.BaseURL,
		WebURL:        cfg.GitHub.WebURL,
		Timeout:       cfg.GitHub.Timeout,
		MaxRetries:    cfg.GitHub.MaxRetries,
		RunLookupSkew: cfg.GitHub.RunLookupSkew,
		Logger:        logger,
	})

	svcCfg := orchestrator.Config{
		Releases:        repo.NewReleaseRepo(pool),
		Steps:           repo.NewStepRepo(pool),
		Projects:        repo.NewProjectRepo(pool),
		Gateway:         client,
		DefaultBuildRef: cfg.GitHub.DefaultBuildRef,
		ReconcileBatch:  cfg.Reconciler.Batch,
		RunWaitTimeout:  cfg.Reconciler.RunWaitTimeout,
		Logger:          logger,
	}

	// Изменения шагов доходят до watch подписчиков API через RabbitMQ
	if cfg.RabbitMQ.URL != "" {
		conn, err := mq.Dial(mq.ConnectionConfig{
			URL:    cfg.RabbitMQ.URL,
			Name:   "releasetrain-reconciler",
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		defer conn.Close()
		svcCfg.Events = mq.NewPublisher(conn, logger)
	}

	svc := orchestrator.New(svcCfg)

	schedCfg := scheduler.Config{
		Reconciler: svc,
		Schedule:   cfg.Reconciler.Schedule,
		Logger:     logger,
	}
	if cfg.Reconciler.LeaderElection {
		schedCfg.Leader = scheduler.NewAdvisoryLock(pool, scheduler.DefaultLockKey)
	}
	sched := scheduler.New(schedCfg)

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Reconciler.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sched.Run(ctx) })
	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Reconciler.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
