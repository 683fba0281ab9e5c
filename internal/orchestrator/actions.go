package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/shaiso/ReleaseTrain/internal/domain"
)

// Действия по ID шага: загружают StepContext и вызывают операцию.

// CreatePullRequest создаёт PR для шага: develop → release для шагов 2 и 3,
// иначе обычный PR по веткам шага или проекта.
func (s *Service) CreatePullRequest(ctx context.Context, stepID uuid.UUID) (*domain.WorkflowStep, error) {
	sc, err := s.LoadStepContext(ctx, stepID)
	if err != nil {
		return nil, err
	}
	if IsDevelopToReleasePRStep(sc.Step) {
		return s.CreateDevelopToReleasePR(ctx, sc.Step, sc.Release, sc.Config)
	}
	return s.CreatePullRequestForStep(ctx, sc.Step, sc.Release, sc.Config)
}

// RefreshPullRequest перечитывает PR шага.
func (s *Service) RefreshPullRequest(ctx context.Context, stepID uuid.UUID) (*domain.WorkflowStep, error) {
	sc, err := s.LoadStepContext(ctx, stepID)
	if err != nil {
		return nil, err
	}
	return s.CheckPullRequestStatus(ctx, sc.Step, sc.Config)
}

// MergeStepPullRequest запрашивает слияние PR шага.
func (s *Service) MergeStepPullRequest(ctx context.Context, stepID uuid.UUID, method string) error {
	sc, err := s.LoadStepContext(ctx, stepID)
	if err != nil {
		return err
	}
	return s.MergePullRequest(ctx, sc.Step, sc.Config, method)
}

// TriggerBuild запускает workflow сборки шага.
func (s *Service) TriggerBuild(ctx context.Context, stepID uuid.UUID, ref string) (*domain.WorkflowStep, error) {
	sc, err := s.LoadStepContext(ctx, stepID)
	if err != nil {
		return nil, err
	}
	return s.TriggerBuildAction(ctx, sc.Step, sc.Release, sc.Config, ref)
}

// RefreshBuild перечитывает workflow run шага.
func (s *Service) RefreshBuild(ctx context.Context, stepID uuid.UUID) (*domain.WorkflowStep, error) {
	sc, err := s.LoadStepContext(ctx, stepID)
	if err != nil {
		return nil, err
	}
	return s.CheckActionStatus(ctx, sc.Step, sc.Config)
}
