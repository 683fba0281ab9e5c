package orchestrator

import (
	"context"
	"fmt"

	"github.com/shaiso/ReleaseTrain/internal/domain"
	"github.com/shaiso/ReleaseTrain/internal/engine"
	"github.com/shaiso/ReleaseTrain/internal/gateway"
)

// IsBuildStep возвращает true для шагов сборки (build-and-share и generic build).
func IsBuildStep(step *domain.WorkflowStep) bool {
	return step != nil && step.Type.IsBuild()
}

// ResolveWorkflowReference находит и разбирает ссылку на workflow
// для вида шага. Отсутствие ссылки или ошибка разбора дают false.
func ResolveWorkflowReference(step *domain.WorkflowStep, cfg *domain.GitHubConfig) (*engine.WorkflowReferenceInfo, bool) {
	if step == nil {
		return nil, false
	}
	raw, ok := cfg.WorkflowURL(step.Type)
	if !ok {
		return nil, false
	}
	return engine.ParseWorkflowReference(raw)
}

// IsConfigured — шаг сборки с настроенным workflow.
func IsConfigured(step *domain.WorkflowStep, cfg *domain.GitHubConfig) bool {
	if !IsBuildStep(step) {
		return false
	}
	_, ok := ResolveWorkflowReference(step, cfg)
	return ok
}

// TriggerBuildAction запускает workflow сборки для шага.
//
// Параметры ссылки проходят подстановку плейсхолдеров, затем параметр
// branch извлекается и становится ref (по умолчанию ref, а если он пуст,
// DefaultBuildRef). branch никогда не передаётся в inputs.
func (s *Service) TriggerBuildAction(ctx context.Context, step *domain.WorkflowStep, release *domain.Release, cfg *domain.GitHubConfig, ref string) (out *domain.WorkflowStep, err error) {
	defer func() { observe("trigger_build", err) }()

	if !IsBuildStep(step) {
		return nil, ErrNotBuildStep
	}
	if release == nil {
		return nil, ErrReleaseRequired
	}
	token, err := credential(cfg)
	if err != nil {
		return nil, err
	}
	info, ok := ResolveWorkflowReference(step, cfg)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotConfigured, step.Type)
	}
	if err := s.prepareExternalAction(ctx, step); err != nil {
		return nil, err
	}

	if ref == "" {
		ref = s.buildRef
	}
	params := engine.SubstitutePlaceholders(info.Params, engine.NewContext(step, release))
	ref, inputs := engine.ExtractBranch(params, ref)

	var previousRun int64
	if step.ActionRunID != nil {
		previousRun = *step.ActionRunID
	}
	dispatchedAt := s.now()
	run, err := s.gateway.DispatchWorkflow(ctx, info.RepositoryRef, token, gateway.DispatchInput{
		WorkflowID:    info.WorkflowID,
		Ref:           ref,
		Inputs:        inputs.Map(),
		PreviousRunID: previousRun,
	})
	if err != nil {
		return nil, fmt.Errorf("dispatch workflow: %w", err)
	}

	now := s.now()
	updated := cloneStep(step)
	s.startForExternal(ctx, updated, now)
	// Новый dispatch никогда не наследует run прошлой попытки.
	updated.ResetActionRun(ref, dispatchedAt)
	updated.ApplyActionRun(run, now)

	s.stepLogger(ctx, updated).Info("workflow dispatched",
		"repository", info.RepositoryRef,
		"workflow", info.WorkflowID,
		"ref", ref,
		"run_id", run.ID,
	)
	return s.persistAfterExternal(ctx, "trigger_build", updated), nil
}

// CheckActionStatus перечитывает workflow run шага. Завершённый run
// переводит IN_PROGRESS шаг в COMPLETED (success) или FAILED.
//
// Если run последнего dispatch ещё не был найден, он ищется по ref и
// моменту dispatch. Пока run не виден, у шага обновляется только
// UpdatedAt; не найденный за RunWaitTimeout run переводит шаг в FAILED.
func (s *Service) CheckActionStatus(ctx context.Context, step *domain.WorkflowStep, cfg *domain.GitHubConfig) (out *domain.WorkflowStep, err error) {
	defer func() { observe("check_action", err) }()

	if step == nil {
		return nil, ErrStepRequired
	}
	if !step.HasActionRun() && !step.AwaitingActionRun() {
		return nil, ErrNoActionRun
	}
	token, err := credential(cfg)
	if err != nil {
		return nil, err
	}
	info, ok := ResolveWorkflowReference(step, cfg)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrWorkflowNotConfigured, step.Type)
	}

	var run *domain.ActionRunRecord
	if step.HasActionRun() {
		run, err = s.gateway.GetWorkflowRun(ctx, info.RepositoryRef, token, *step.ActionRunID)
		if err != nil {
			return nil, fmt.Errorf("get workflow run: %w", err)
		}
	} else {
		run, err = s.gateway.FindDispatchedRun(ctx, info.RepositoryRef, token, gateway.RunLookup{
			WorkflowID: info.WorkflowID,
			Ref:        step.ActionRef,
			Since:      *step.ActionDispatchedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("find workflow run: %w", err)
		}
		if run == nil || run.ID == 0 {
			return s.awaitDispatchedRun(ctx, step), nil
		}
	}

	now := s.now()
	updated := cloneStep(step)
	updated.ApplyActionRun(run, now)

	if updated.Status == domain.StepStatusInProgress && run.IsCompleted() {
		if run.Succeeded() {
			_ = updated.Complete(SystemActor, now)
		} else {
			_ = updated.Fail(fmt.Sprintf("workflow run %d concluded %q", run.ID, run.Conclusion), now)
		}
		s.stepLogger(ctx, updated).Info("step reconciled from workflow run",
			"conclusion", run.Conclusion,
			"status", updated.Status,
		)
	}

	return s.persistAfterExternal(ctx, "check_action", updated), nil
}

// awaitDispatchedRun отмечает неудачный поиск run. Обновлённый UpdatedAt
// отодвигает шаг в конец очереди сверки.
func (s *Service) awaitDispatchedRun(ctx context.Context, step *domain.WorkflowStep) *domain.WorkflowStep {
	now := s.now()
	updated := cloneStep(step)
	updated.UpdatedAt = now
	logger := s.stepLogger(ctx, updated)

	waited := now.Sub(*step.ActionDispatchedAt)
	if updated.Status == domain.StepStatusInProgress && waited >= s.runWaitTimeout {
		_ = updated.Fail(fmt.Sprintf("workflow run for ref %q not found within %s", step.ActionRef, s.runWaitTimeout), now)
		logger.Warn("dispatched run never appeared", "ref", step.ActionRef, "waited", waited)
		return s.persistAfterExternal(ctx, "check_action", updated)
	}

	logger.Debug("dispatched run not visible yet", "ref", step.ActionRef, "waited", waited)
	if err := s.steps.Update(ctx, updated); err != nil {
		logger.Warn("failed to touch awaiting step", "error", err)
		return step
	}
	return updated
}
