package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/ReleaseTrain/internal/domain"
	"github.com/shaiso/ReleaseTrain/internal/engine"
	"github.com/shaiso/ReleaseTrain/internal/repo"
	"github.com/shaiso/ReleaseTrain/internal/telemetry"
)

// Default configuration values.
const (
	defaultBuildRef       = "release"
	defaultMergeMethod    = "merge"
	defaultReconcileBatch = 100
	defaultRunWaitTimeout = 30 * time.Minute
)

// Config — конфигурация Service.
type Config struct {
	// Stores
	Releases ReleaseStore
	Steps    StepStore
	Projects ProjectStore

	// Gateway — клиент GitHub.
	Gateway Gateway

	// Validator — проверка токена/репозитория (обычно кэш поверх Gateway).
	// По умолчанию используется Gateway.
	Validator Validator

	// Events — уведомления для watch feed (по умолчанию не отправляются).
	Events EventPublisher

	// DefaultBuildRef — git ref для workflow, если не задан branch (default: release).
	DefaultBuildRef string

	// ReconcileBatch — сколько шагов сверять за проход (default: 100).
	ReconcileBatch int

	// RunWaitTimeout — сколько ждать появления run после dispatch,
	// прежде чем перевести шаг в FAILED (default: 30m).
	RunWaitTimeout time.Duration

	// Logger
	Logger *slog.Logger

	// Now — источник времени (для тестов).
	Now func() time.Time
}

// Validator — проверка доступа к GitHub.
type Validator interface {
	ValidateCredential(ctx context.Context, credential string) (bool, error)
	ValidateRepository(ctx context.Context, repoRef, credential string) (bool, error)
}

// Service — оркестратор релизного pipeline.
type Service struct {
	releases  ReleaseStore
	steps     StepStore
	projects  ProjectStore
	gateway   Gateway
	validator Validator
	events    EventPublisher

	buildRef       string
	reconcileBatch int
	runWaitTimeout time.Duration

	logger *slog.Logger
	now    func() time.Time
}

// New создаёт новый Service.
func New(cfg Config) *Service {
	buildRef := cfg.DefaultBuildRef
	if buildRef == "" {
		buildRef = defaultBuildRef
	}

	batch := cfg.ReconcileBatch
	if batch <= 0 {
		batch = defaultReconcileBatch
	}

	runWait := cfg.RunWaitTimeout
	if runWait <= 0 {
		runWait = defaultRunWaitTimeout
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	events := cfg.Events
	if events == nil {
		events = noopPublisher{}
	}

	validator := cfg.Validator
	if validator == nil {
		validator = cfg.Gateway
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Service{
		releases:       cfg.Releases,
		steps:          cfg.Steps,
		projects:       cfg.Projects,
		gateway:        cfg.Gateway,
		validator:      validator,
		events:         events,
		buildRef:       buildRef,
		reconcileBatch: batch,
		runWaitTimeout: runWait,
		logger:         logger,
		now:            now,
	}
}

// StepContext — шаг вместе с релизом и GitHub конфигурацией проекта.
type StepContext struct {
	Step    *domain.WorkflowStep
	Release *domain.Release
	Config  *domain.GitHubConfig
}

// LoadStepContext загружает шаг, его релиз и конфигурацию проекта.
// Отсутствие конфигурации не ошибка: Config будет nil.
func (s *Service) LoadStepContext(ctx context.Context, stepID uuid.UUID) (*StepContext, error) {
	step, err := s.steps.GetByID(ctx, stepID)
	if err != nil {
		return nil, fmt.Errorf("get step: %w", err)
	}

	release, err := s.releases.GetByID(ctx, step.ReleaseID)
	if err != nil {
		return nil, fmt.Errorf("get release: %w", err)
	}

	cfg, err := s.projects.GetGitHubConfig(ctx, release.ProjectID)
	if err != nil && !errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("get github config: %w", err)
	}

	return &StepContext{Step: step, Release: release, Config: cfg}, nil
}

// prepareExternalAction проверяет, что для шага можно выполнить внешнее действие.
//
// PENDING/FAILED шаг должен иметь право перейти в IN_PROGRESS (в том
// числе по зависимостям). IN_PROGRESS допускается. Терминальные шаги
// отклоняются.
func (s *Service) prepareExternalAction(ctx context.Context, step *domain.WorkflowStep) error {
	if step.Status == domain.StepStatusInProgress {
		return nil
	}
	if err := step.CheckTransition(domain.StepStatusInProgress); err != nil {
		return stateError(err)
	}
	return s.checkEligible(ctx, step)
}

// checkEligible перечитывает шаги релиза и проверяет DependsOn.
func (s *Service) checkEligible(ctx context.Context, step *domain.WorkflowStep) error {
	if len(step.DependsOn) == 0 {
		return nil
	}
	siblings, err := s.steps.ListByRelease(ctx, step.ReleaseID)
	if err != nil {
		return fmt.Errorf("list release steps: %w", err)
	}
	if err := engine.CheckEligible(step, siblings); err != nil {
		return stateError(err)
	}
	return nil
}

// startForExternal переводит шаг в IN_PROGRESS после успешного внешнего вызова.
func (s *Service) startForExternal(ctx context.Context, step *domain.WorkflowStep, now time.Time) {
	if step.Status == domain.StepStatusInProgress {
		return
	}
	if err := step.Start(ActorFrom(ctx), now); err == nil {
		telemetry.StepTransitions.WithLabelValues(string(step.Status)).Inc()
	}
}

// persistAfterExternal сохраняет шаг после успешного вызова GitHub.
//
// Ошибка записи не возвращается: шаг уже отражает состояние GitHub,
// поэтому он отдаётся вызывающему, а ошибка логируется и считается.
func (s *Service) persistAfterExternal(ctx context.Context, action string, step *domain.WorkflowStep) *domain.WorkflowStep {
	if err := s.steps.Update(ctx, step); err != nil {
		telemetry.PersistFailures.WithLabelValues(action).Inc()
		s.stepLogger(ctx, step).Warn("failed to persist step after github call",
			"action", action,
			"error", err,
		)
		return step
	}
	s.publishStep(ctx, step)
	return step
}

// saveStep сохраняет шаг после ручного действия. Ошибка возвращается.
func (s *Service) saveStep(ctx context.Context, step *domain.WorkflowStep) error {
	if err := s.steps.Update(ctx, step); err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	telemetry.StepTransitions.WithLabelValues(string(step.Status)).Inc()
	s.publishStep(ctx, step)
	return nil
}

func (s *Service) publishStep(ctx context.Context, step *domain.WorkflowStep) {
	if err := s.events.PublishStepUpdated(ctx, step); err != nil {
		s.stepLogger(ctx, step).Warn("failed to publish step event", "error", err)
	}
}

func (s *Service) publishRelease(ctx context.Context, rel *domain.Release) {
	if err := s.events.PublishReleaseUpdated(ctx, rel); err != nil {
		telemetry.WithReleaseID(s.logger, rel.ID.String()).Warn("failed to publish release event", "error", err)
	}
}

func (s *Service) stepLogger(ctx context.Context, step *domain.WorkflowStep) *slog.Logger {
	logger := s.logger
	if l := telemetry.FromContext(ctx); l != slog.Default() {
		logger = l
	}
	logger = telemetry.WithReleaseID(logger, step.ReleaseID.String())
	return telemetry.WithStepID(logger, step.ID.String())
}

// observe считает результат действия оркестратора.
func observe(action string, err error) {
	telemetry.OrchestratorActions.WithLabelValues(action, telemetry.Outcome(err)).Inc()
}

func credential(cfg *domain.GitHubConfig) (string, error) {
	if cfg == nil {
		return "", ErrGitHubNotConfigured
	}
	if cfg.AccessToken == "" {
		return "", ErrCredentialNotConfigured
	}
	return cfg.AccessToken, nil
}

func cloneStep(step *domain.WorkflowStep) *domain.WorkflowStep {
	c := *step
	return &c
}
