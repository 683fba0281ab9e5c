package orchestrator

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/ReleaseTrain/internal/domain"
	"github.com/shaiso/ReleaseTrain/internal/telemetry"
)

// ReconcileResult — итог прохода сверки.
type ReconcileResult struct {
	// Checked — сколько шагов сверено с GitHub.
	Checked int
	// Changed — у скольких шагов сменился статус.
	Changed int
	// Errors — сколько шагов сверить не удалось.
	Errors int
}

// ReconcileStep сверяет один IN_PROGRESS шаг с GitHub: PR, если он есть,
// иначе workflow run.
func (s *Service) ReconcileStep(ctx context.Context, step *domain.WorkflowStep, cfg *domain.GitHubConfig) (*domain.WorkflowStep, error) {
	switch {
	case step == nil:
		return nil, ErrStepRequired
	case step.HasPullRequest():
		return s.CheckPullRequestStatus(ctx, step, cfg)
	case step.HasActionRun(), step.AwaitingActionRun():
		return s.CheckActionStatus(ctx, step, cfg)
	default:
		return step, nil
	}
}

// ReconcileInProgress сверяет пачку IN_PROGRESS шагов, у которых есть
// PR, workflow run или dispatch без найденного run. Ошибка отдельного шага не прерывает проход.
func (s *Service) ReconcileInProgress(ctx context.Context) (res ReconcileResult, err error) {
	defer func() {
		telemetry.ReconcileRuns.WithLabelValues(telemetry.Outcome(err)).Inc()
	}()

	steps, err := s.steps.ListInProgressLinked(ctx, s.reconcileBatch)
	if err != nil {
		return res, fmt.Errorf("list in-progress steps: %w", err)
	}

	configs := make(map[uuid.UUID]*domain.GitHubConfig)
	for i := range steps {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		step := &steps[i]
		logger := s.stepLogger(ctx, step)

		cfg, ok := configs[step.ReleaseID]
		if !ok {
			cfg, err = s.configForRelease(ctx, step.ReleaseID)
			if err != nil {
				logger.Warn("reconcile: failed to load config", "error", err)
				res.Errors++
				continue
			}
			configs[step.ReleaseID] = cfg
		}

		res.Checked++
		updated, err := s.ReconcileStep(ctx, step, cfg)
		if err != nil {
			logger.Warn("reconcile: step check failed", "error", err)
			res.Errors++
			continue
		}
		if updated.Status != step.Status {
			res.Changed++
		}
	}

	if res.Checked > 0 || res.Errors > 0 {
		s.logger.Info("reconcile pass finished",
			"checked", res.Checked,
			"changed", res.Changed,
			"errors", res.Errors,
		)
	}
	return res, nil
}

// configForRelease загружает GitHub конфигурацию проекта релиза.
// Отсутствие конфигурации возвращает nil без ошибки.
func (s *Service) configForRelease(ctx context.Context, releaseID uuid.UUID) (*domain.GitHubConfig, error) {
	rel, err := s.releases.GetByID(ctx, releaseID)
	if err != nil {
		return nil, fmt.Errorf("get release: %w", err)
	}
	cfg, err := s.projects.GetGitHubConfig(ctx, rel.ProjectID)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get github config: %w", err)
	}
	return cfg, nil
}
