package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/shaiso/ReleaseTrain/internal/orchestrator"
)

// Reconciler — один проход сверки (orchestrator.Service).
type Reconciler interface {
	ReconcileInProgress(ctx context.Context) (orchestrator.ReconcileResult, error)
}

// Config — конфигурация Scheduler.
type Config struct {
	Reconciler Reconciler

	// Schedule — cron-выражение или дескриптор (default: @every 1m).
	Schedule string

	// Leader — опционально; без него тик выполняется всегда.
	Leader Leader

	Logger *slog.Logger
}

// Scheduler запускает сверку IN_PROGRESS шагов по расписанию.
type Scheduler struct {
	reconciler Reconciler
	schedule   string
	leader     Leader
	logger     *slog.Logger

	mu      sync.Mutex
	leading bool
}

// New создаёт Scheduler. Расписание проверяется в Run.
func New(cfg Config) *Scheduler {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = DefaultSchedule
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		reconciler: cfg.Reconciler,
		schedule:   schedule,
		leader:     cfg.Leader,
		logger:     logger,
	}
}

// Tick выполняет один проход, если экземпляр лидер.
// Возвращает false, если тик пропущен.
func (s *Scheduler) Tick(ctx context.Context) (bool, error) {
	if s.leader != nil {
		ok, err := s.leader.TryAcquire(ctx)
		if err != nil {
			return false, fmt.Errorf("leader election: %w", err)
		}
		s.setLeading(ok)
		if !ok {
			return false, nil
		}
	}

	res, err := s.reconciler.ReconcileInProgress(ctx)
	if err != nil {
		return true, fmt.Errorf("reconcile: %w", err)
	}
	s.logger.Debug("reconcile tick completed",
		"checked", res.Checked,
		"changed", res.Changed,
		"errors", res.Errors,
	)
	return true, nil
}

func (s *Scheduler) setLeading(ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ok != s.leading {
		s.logger.Info("leadership changed", "leader", ok)
	}
	s.leading = ok
}

// Run запускает cron и блокируется до отмены ctx.
// Перекрывающиеся тики пропускаются.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := ValidateCronExpr(s.schedule); err != nil {
		return err
	}

	logger := cronLogger{s.logger}
	c := cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(s.schedule, func() {
		if _, err := s.Tick(ctx); err != nil {
			s.logger.Error("reconcile tick failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("schedule reconciler: %w", err)
	}

	s.logger.Info("reconciler scheduled", "schedule", s.schedule)
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()

	if s.leader != nil {
		s.leader.Release(context.Background())
	}
	return nil
}

// cronLogger направляет логи cron в slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
