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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/ReleaseTrain/internal/api"
	"github.com/shaiso/ReleaseTrain/internal/config"
	"github.com/shaiso/ReleaseTrain/internal/gateway"
	"github.com/shaiso/ReleaseTrain/internal/mq"
	"github.com/shaiso/ReleaseTrain/internal/orchestrator"
	"github.com/shaiso/ReleaseTrain/internal/repo"
	"github.com/shaiso/ReleaseTrain/internal/scheduler"
	"github.com/shaiso/ReleaseTrain/internal/telemetry"
	"github.com/shaiso/ReleaseTrain/internal/watch"
)

var startTime = time.Now()

func main() {
	cfg, err := config.NewLoader().Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}

	// Инициализируем structured logging
	logger := telemetry.SetupLogger(cfg.Log.Level, cfg.Log.Format)
	logger.Info("starting releasetrain-api")

	if err := run(cfg, logger); err != nil {
		logger.Error("releasetrain-api failed", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Хранилище: PostgreSQL или память
	var pool *pgxpool.Pool
	svcCfg := orchestrator.Config{
		DefaultBuildRef: cfg.GitHub.DefaultBuildRef,
		ReconcileBatch:  cfg.Reconciler.Batch,
		RunWaitTimeout:  cfg.Reconciler.RunWaitTimeout,
		Logger:          logger,
	}
	if cfg.Database.DSN != "" {
		var err error
		pool, err = repo.NewPool(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer pool.Close()
		logger.Info("connected to database")

		if cfg.Database.Migrate {
			if err := repo.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			logger.Info("migrations applied")
		}

		svcCfg.Releases = repo.NewReleaseRepo(pool)
		svcCfg.Steps = repo.NewStepRepo(pool)
		svcCfg.Projects = repo.NewProjectRepo(pool)
	} else {
		logger.Warn("database dsn not set, using in-memory store")
		store := repo.NewMemory()
		svcCfg.Releases = store.Releases
		svcCfg.Steps = store.Steps
		svcCfg.Projects = store.Projects
	}

	// GitHub
	client := gateway.New(gateway.Config{
		BaseURL:       cfg.GitHub.BaseURL,
		WebURL:        cfg.GitHub.WebURL,
		Timeout:       cfg.GitHub.Timeout,
		MaxRetries:    cfg.GitHub.MaxRetries,
		RunLookupSkew: cfg.GitHub.RunLookupSkew,
		Logger:        logger,
	})
	svcCfg.Gateway = client
	svcCfg.Validator = gateway.NewValidationCache(client, cfg.GitHub.ValidationTTL)

	g, ctx := errgroup.WithContext(ctx)

	// События: RabbitMQ между экземплярами или только внутри процесса
	hub := watch.NewHub()
	var mqConn *mq.Connection
	if cfg.RabbitMQ.URL != "" {
		conn, err := mq.Dial(mq.ConnectionConfig{
			URL:    cfg.RabbitMQ.URL,
			Name:   "releasetrain-api",
			Logger: logger,
		})
		if err != nil {
			return fmt.Errorf("connect to rabbitmq: %w", err)
		}
		defer conn.Close()
		mqConn = conn
		logger.Info("rabbitmq topology ready", "topology", mq.TopologyInfo())

		svcCfg.Events = mq.NewPublisher(conn, logger)

		subscriber := mq.NewSubscriber(conn, mq.SubscriberConfig{
			Notify: hub.Notify,
			Logger: logger,
		})
		g.Go(func() error {
			if err := subscriber.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watch subscriber: %w", err)
			}
			return nil
		})
	} else {
		svcCfg.Events = watch.HubPublisher{Hub: hub}
	}

	svc := orchestrator.New(svcCfg)

	// Сверка в том же процессе (опционально)
	if cfg.Reconciler.Enabled {
		schedCfg := scheduler.Config{
			Reconciler: svc,
			Schedule:   cfg.Reconciler.Schedule,
			Logger:     logger,
		}
		if pool != nil && cfg.Reconciler.LeaderElection {
			schedCfg.Leader = scheduler.NewAdvisoryLock(pool, scheduler.DefaultLockKey)
		}
		sched := scheduler.New(schedCfg)
		g.Go(func() error { return sched.Run(ctx) })
	}

	// HTTP
	handler := api.NewHandler(api.Config{
		Service:       svc,
		Hub:           hub,
		WatchInterval: cfg.Watch.Interval,
		Logger:        logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if pool != nil {
			if err := pool.Ping(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime).Round(time.Second))
		// Без RabbitMQ watch работает на опросе, поэтому это не 503.
		if mqConn != nil && !mqConn.IsConnected() {
			fmt.Fprint(w, " (rabbitmq reconnecting)")
		}
	})
	mux.Handle("/metrics", promhttp.Handler())

	// Регистрируем API маршруты
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.API.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.API.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	// Ожидаем сигнал завершения
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.API.ShutdownTimeout)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
