package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/ReleaseTrain/internal/domain"
	"github.com/shaiso/ReleaseTrain/internal/engine"
	"github.com/shaiso/ReleaseTrain/internal/repo"
	"github.com/shaiso/ReleaseTrain/internal/telemetry"
)

// CreateReleaseInput — параметры нового релиза.
type CreateReleaseInput struct {
	ProjectID         uuid.UUID
	Version           string
	Title             string
	Description       string
	AssignedTo        string
	TargetReleaseDate *time.Time
	Notes             string
}

// CreateRelease создаёт релиз в статусе DRAFT вместе с шагами шаблона.
func (s *Service) CreateRelease(ctx context.Context, in CreateReleaseInput) (rel *domain.Release, steps []domain.WorkflowStep, err error) {
	defer func() { observe("create_release", err) }()

	in.Version = strings.TrimSpace(in.Version)
	if in.Version == "" {
		return nil, nil, ErrInvalidVersion
	}
	if _, err := s.projects.GetByID(ctx, in.ProjectID); err != nil {
		return nil, nil, fmt.Errorf("get project: %w", err)
	}

	now := s.now()
	rel = &domain.Release{
		ID:                uuid.New(),
		ProjectID:         in.ProjectID,
		Version:           in.Version,
		Title:             in.Title,
		Description:       in.Description,
		Status:            domain.ReleaseStatusDraft,
		CreatedBy:         ActorFrom(ctx),
		AssignedTo:        in.AssignedTo,
		TargetReleaseDate: in.TargetReleaseDate,
		Notes:             in.Notes,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if rel.Title == "" {
		rel.Title = "Release " + rel.VersionLabel()
	}

	steps = engine.InstantiatePipeline(rel.ID, now)
	if err := engine.ValidateDependencies(steps); err != nil {
		return nil, nil, err
	}

	if err := s.releases.CreateWithSteps(ctx, rel, steps); err != nil {
		return nil, nil, fmt.Errorf("create release: %w", err)
	}

	telemetry.WithReleaseID(s.logger, rel.ID.String()).Info("release created",
		"version", rel.Version,
		"project_id", rel.ProjectID,
		"steps", len(steps),
		"template_version", engine.PipelineTemplateVersion,
	)
	s.publishRelease(ctx, rel)
	return rel, steps, nil
}

// UpdateReleaseStatus переводит релиз в новый статус.
func (s *Service) UpdateReleaseStatus(ctx context.Context, releaseID uuid.UUID, status domain.ReleaseStatus) (rel *domain.Release, err error) {
	defer func() { observe("update_release_status", err) }()

	rel, err = s.releases.GetByID(ctx, releaseID)
	if err != nil {
		return nil, fmt.Errorf("get release: %w", err)
	}
	if err := rel.TransitionTo(status, s.now()); err != nil {
		return nil, stateError(err)
	}
	if err := s.releases.Update(ctx, rel); err != nil {
		return nil, fmt.Errorf("update release: %w", err)
	}

	telemetry.WithReleaseID(s.logger, rel.ID.String()).Info("release status changed", "status", rel.Status)
	s.publishRelease(ctx, rel)
	return rel, nil
}

// StartStep переводит шаг в IN_PROGRESS, если его зависимости выполнены.
// Первый начатый шаг переводит DRAFT релиз в IN_PROGRESS.
func (s *Service) StartStep(ctx context.Context, stepID uuid.UUID) (step *domain.WorkflowStep, err error) {
	defer func() { observe("start_step", err) }()
	return s.begin(ctx, stepID, domain.StepStatusPending)
}

// RetryStep повторно запускает FAILED шаг.
func (s *Service) RetryStep(ctx context.Context, stepID uuid.UUID) (step *domain.WorkflowStep, err error) {
	defer func() { observe("retry_step", err) }()
	return s.begin(ctx, stepID, domain.StepStatusFailed)
}

func (s *Service) begin(ctx context.Context, stepID uuid.UUID, from domain.StepStatus) (*domain.WorkflowStep, error) {
	step, err := s.steps.GetByID(ctx, stepID)
	if err != nil {
		return nil, fmt.Errorf("get step: %w", err)
	}
	if step.Status != from {
		return nil, stateError(&domain.TransitionError{
			Entity: "step",
			From:   string(step.Status),
			To:     string(domain.StepStatusInProgress),
		})
	}
	if err := s.checkEligible(ctx, step); err != nil {
		return nil, err
	}
	if err := step.Start(ActorFrom(ctx), s.now()); err != nil {
		return nil, stateError(err)
	}
	if err := s.saveStep(ctx, step); err != nil {
		return nil, err
	}

	s.stepLogger(ctx, step).Info("step started", "step_number", step.StepNumber, "retry", from == domain.StepStatusFailed)
	s.activateRelease(ctx, step.ReleaseID)
	return step, nil
}

// CompleteStep завершает IN_PROGRESS шаг от имени пользователя из контекста.
func (s *Service) CompleteStep(ctx context.Context, stepID uuid.UUID, note string) (step *domain.WorkflowStep, err error) {
	defer func() { observe("complete_step", err) }()

	return s.mutate(ctx, stepID, func(step *domain.WorkflowStep, now time.Time) error {
		if err := step.Complete(ActorFrom(ctx), now); err != nil {
			return err
		}
		step.AppendNote(note)
		return nil
	})
}

// FailStep переводит IN_PROGRESS шаг в FAILED с указанной причиной.
func (s *Service) FailStep(ctx context.Context, stepID uuid.UUID, reason string) (step *domain.WorkflowStep, err error) {
	defer func() { observe("fail_step", err) }()

	if strings.TrimSpace(reason) == "" {
		reason = "marked failed by " + ActorFrom(ctx)
	}
	return s.mutate(ctx, stepID, func(step *domain.WorkflowStep, now time.Time) error {
		return step.Fail(reason, now)
	})
}

// SkipStep пропускает PENDING шаг.
func (s *Service) SkipStep(ctx context.Context, stepID uuid.UUID, reason string) (step *domain.WorkflowStep, err error) {
	defer func() { observe("skip_step", err) }()

	return s.mutate(ctx, stepID, func(step *domain.WorkflowStep, now time.Time) error {
		return step.Skip(ActorFrom(ctx), reason, now)
	})
}

func (s *Service) mutate(ctx context.Context, stepID uuid.UUID, fn func(*domain.WorkflowStep, time.Time) error) (*domain.WorkflowStep, error) {
	step, err := s.steps.GetByID(ctx, stepID)
	if err != nil {
		return nil, fmt.Errorf("get step: %w", err)
	}
	if err := fn(step, s.now()); err != nil {
		return nil, stateError(err)
	}
	if err := s.saveStep(ctx, step); err != nil {
		return nil, err
	}
	s.stepLogger(ctx, step).Info("step updated", "status", step.Status)
	return step, nil
}

// activateRelease переводит DRAFT релиз в IN_PROGRESS. Ошибки логируются.
func (s *Service) activateRelease(ctx context.Context, releaseID uuid.UUID) {
	logger := telemetry.WithReleaseID(s.logger, releaseID.String())

	rel, err := s.releases.GetByID(ctx, releaseID)
	if err != nil {
		logger.Warn("failed to load release for activation", "error", err)
		return
	}
	if rel.Status != domain.ReleaseStatusDraft {
		return
	}
	if err := rel.TransitionTo(domain.ReleaseStatusInProgress, s.now()); err != nil {
		return
	}
	if err := s.releases.Update(ctx, rel); err != nil {
		logger.Warn("failed to activate release", "error", err)
		return
	}
	logger.Info("release activated")
	s.publishRelease(ctx, rel)
}

// --- Read models ---

// GetRelease возвращает релиз.
func (s *Service) GetRelease(ctx context.Context, id uuid.UUID) (*domain.Release, error) {
	return s.releases.GetByID(ctx, id)
}

// ListReleases возвращает релизы по фильтру.
func (s *Service) ListReleases(ctx context.Context, filter repo.ReleaseFilter) ([]domain.Release, error) {
	if filter.Status != "" {
		if _, ok := domain.ParseReleaseStatus(filter.Status); !ok {
			return nil, fmt.Errorf("%w: unknown release status %q", ErrValidation, filter.Status)
		}
	}
	return s.releases.List(ctx, filter)
}

// ListSteps возвращает шаги релиза по порядку StepNumber.
func (s *Service) ListSteps(ctx context.Context, releaseID uuid.UUID) ([]domain.WorkflowStep, error) {
	if _, err := s.releases.GetByID(ctx, releaseID); err != nil {
		return nil, err
	}
	return s.steps.ListByRelease(ctx, releaseID)
}

// GetStep возвращает шаг.
func (s *Service) GetStep(ctx context.Context, id uuid.UUID) (*domain.WorkflowStep, error) {
	return s.steps.GetByID(ctx, id)
}

// Progress — сводка по шагам релиза.
type Progress struct {
	ReleaseID uuid.UUID                 `json:"release_id" yaml:"release_id"`
	Total     int                       `json:"total" yaml:"total"`
	Counts    map[domain.StepStatus]int `json:"counts" yaml:"counts"`

	// Done — COMPLETED + SKIPPED.
	Done    int     `json:"done" yaml:"done"`
	Percent float64 `json:"percent" yaml:"percent"`

	// RemainingMin — оценка оставшихся минут по незавершённым шагам.
	RemainingMin int `json:"remaining_min" yaml:"remaining_min"`

	// Next — первый шаг, который можно начать.
	Next *domain.WorkflowStep `json:"next,omitempty" yaml:"next,omitempty"`
}

// ReleaseProgress считает прогресс релиза.
func (s *Service) ReleaseProgress(ctx context.Context, releaseID uuid.UUID) (*Progress, error) {
	steps, err := s.ListSteps(ctx, releaseID)
	if err != nil {
		return nil, err
	}
	return ComputeProgress(releaseID, steps), nil
}

// ComputeProgress считает прогресс по списку шагов.
func ComputeProgress(releaseID uuid.UUID, steps []domain.WorkflowStep) *Progress {
	p := &Progress{
		ReleaseID: releaseID,
		Total:     len(steps),
		Counts:    make(map[domain.StepStatus]int),
	}
	for i := range steps {
		st := &steps[i]
		p.Counts[st.Status]++
		if st.Status.SatisfiesDependency() {
			p.Done++
			continue
		}
		p.RemainingMin += st.EstimatedDurationMin
	}
	if p.Total > 0 {
		p.Percent = float64(p.Done) * 100 / float64(p.Total)
	}
	if next := engine.NextEligible(steps); next != nil {
		c := *next
		p.Next = &c
	}
	return p
}

// isNotFound — запись отсутствует в хранилище.
func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}
