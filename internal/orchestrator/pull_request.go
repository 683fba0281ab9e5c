package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/shaiso/ReleaseTrain/internal/domain"
	"github.com/shaiso/ReleaseTrain/internal/engine"
	"github.com/shaiso/ReleaseTrain/internal/gateway"
)

// Ветки develop → release.
const (
	branchDevelop = "develop"
	branchRelease = "release"
)

// IsDevelopToReleasePRStep — шаги 2 и 3 шаблона: develop → release
// в репозитории app или bff.
func IsDevelopToReleasePRStep(step *domain.WorkflowStep) bool {
	if step == nil {
		return false
	}
	return (step.StepNumber == 2 || step.StepNumber == 3) &&
		step.RepositoryType != "" &&
		step.SourceBranch == branchDevelop &&
		step.TargetBranch == branchRelease
}

// CreateDevelopToReleasePR создаёт PR develop → release для шагов 2 и 3.
//
// Если PR создан, а запись шага не удалась, шаг всё равно
// возвращается без ошибки (PR повторно не создаётся).
func (s *Service) CreateDevelopToReleasePR(ctx context.Context, step *domain.WorkflowStep, release *domain.Release, cfg *domain.GitHubConfig) (out *domain.WorkflowStep, err error) {
	defer func() { observe("create_develop_to_release_pr", err) }()

	if release == nil {
		return nil, ErrReleaseRequired
	}
	if !IsDevelopToReleasePRStep(step) {
		return nil, ErrNotDevelopToReleaseStep
	}

	title := fmt.Sprintf("Release %s: merge develop to release (%s)",
		release.VersionLabel(), strings.ToUpper(string(step.RepositoryType)))

	return s.createPullRequest(ctx, "create_develop_to_release_pr", step, release, cfg, gateway.PullRequestInput{
		Title: title,
		Body:  pullRequestBody(step, release, branchDevelop, branchRelease),
		Head:  branchDevelop,
		Base:  branchRelease,
	})
}

// CreatePullRequestForStep создаёт PR для любого шага с RepositoryType.
// Ветки берутся из шага, а при их отсутствии из конфигурации проекта.
func (s *Service) CreatePullRequestForStep(ctx context.Context, step *domain.WorkflowStep, release *domain.Release, cfg *domain.GitHubConfig) (out *domain.WorkflowStep, err error) {
	defer func() { observe("create_pull_request", err) }()

	switch {
	case step == nil:
		return nil, ErrStepRequired
	case release == nil:
		return nil, ErrReleaseRequired
	}
	if step.RepositoryType == "" {
		return nil, ErrNoRepositoryType
	}

	source, target := step.SourceBranch, step.TargetBranch
	if cfg != nil {
		if source == "" {
			source = cfg.DefaultBaseBranch
		}
		if target == "" {
			target = cfg.DefaultTargetBranch
		}
	}
	if source == "" || target == "" {
		return nil, ErrBranchesNotConfigured
	}

	title := fmt.Sprintf("Release %s: merge %s to %s (%s)",
		release.VersionLabel(), source, target, strings.ToUpper(string(step.RepositoryType)))

	return s.createPullRequest(ctx, "create_pull_request", step, release, cfg, gateway.PullRequestInput{
		Title: title,
		Body:  pullRequestBody(step, release, source, target),
		Head:  source,
		Base:  target,
	})
}

func (s *Service) createPullRequest(ctx context.Context, action string, step *domain.WorkflowStep, release *domain.Release, cfg *domain.GitHubConfig, in gateway.PullRequestInput) (*domain.WorkflowStep, error) {
	if cfg == nil {
		return nil, ErrGitHubNotConfigured
	}
	// Репозиторий проверяется раньше токена.
	repoRef, err := repositoryRef(cfg, step.RepositoryType)
	if err != nil {
		return nil, err
	}
	token, err := credential(cfg)
	if err != nil {
		return nil, err
	}
	if err := s.prepareExternalAction(ctx, step); err != nil {
		return nil, err
	}

	pr, err := s.gateway.CreatePullRequest(ctx, repoRef, token, in)
	if err != nil {
		return nil, fmt.Errorf("create pull request: %w", err)
	}

	now := s.now()
	updated := cloneStep(step)
	s.startForExternal(ctx, updated, now)
	updated.ApplyPullRequest(pr, now)
	if updated.SourceBranch == "" {
		updated.SourceBranch = in.Head
	}
	if updated.TargetBranch == "" {
		updated.TargetBranch = in.Base
	}

	s.stepLogger(ctx, updated).Info("pull request created",
		"number", pr.Number,
		"url", pr.HTMLURL,
		"head", in.Head,
		"base", in.Base,
	)
	return s.persistAfterExternal(ctx, action, updated), nil
}

// repositoryRef возвращает "owner/repo" репозитория вида repoType.
// Пустая или неразборчивая ссылка — ErrRepositoryNotConfigured.
func repositoryRef(cfg *domain.GitHubConfig, repoType domain.RepositoryType) (string, error) {
	raw := cfg.RepositoryURL(repoType)
	if raw == "" {
		return "", fmt.Errorf("%w: %s", ErrRepositoryNotConfigured, repoType)
	}
	ref, ok := engine.ParseRepositoryRef(raw)
	if !ok {
		return "", fmt.Errorf("%w: %s %q", ErrRepositoryNotConfigured, repoType, raw)
	}
	return ref, nil
}

// CheckPullRequestStatus перечитывает PR шага и сверяет статус шага:
// слитый PR завершает шаг, закрытый без слияния переводит в FAILED.
func (s *Service) CheckPullRequestStatus(ctx context.Context, step *domain.WorkflowStep, cfg *domain.GitHubConfig) (out *domain.WorkflowStep, err error) {
	defer func() { observe("check_pull_request", err) }()

	if step == nil {
		return nil, ErrStepRequired
	}
	if !step.HasPullRequest() {
		return nil, ErrNoPullRequest
	}
	if cfg == nil {
		return nil, ErrGitHubNotConfigured
	}
	// Репозиторий проверяется раньше токена.
	repoRef, err := repositoryRef(cfg, step.RepositoryType)
	if err != nil {
		return nil, err
	}
	token, err := credential(cfg)
	if err != nil {
		return nil, err
	}

	pr, err := s.gateway.GetPullRequest(ctx, repoRef, token, *step.GitHubPRNumber)
	if err != nil {
		return nil, fmt.Errorf("get pull request: %w", err)
	}

	now := s.now()
	updated := cloneStep(step)
	updated.ApplyPullRequest(pr, now)

	if updated.Status == domain.StepStatusInProgress {
		switch updated.GitHubPRState {
		case domain.PRStateMerged:
			_ = updated.Complete(SystemActor, now)
		case domain.PRStateClosed:
			_ = updated.Fail(fmt.Sprintf("pull request #%d closed without merge", pr.Number), now)
		}
		if updated.Status != step.Status {
			s.stepLogger(ctx, updated).Info("step reconciled from pull request",
				"pr_state", updated.GitHubPRState,
				"status", updated.Status,
			)
		}
	}

	return s.persistAfterExternal(ctx, "check_pull_request", updated), nil
}

// MergePullRequest передаёт запрос в Gateway. GitHub Gateway всегда
// отказывает (gateway.ErrMergeNotSupported): PR сливаются в интерфейсе GitHub.
func (s *Service) MergePullRequest(ctx context.Context, step *domain.WorkflowStep, cfg *domain.GitHubConfig, mergeMethod string) (err error) {
	defer func() { observe("merge_pull_request", err) }()

	if mergeMethod == "" {
		mergeMethod = defaultMergeMethod
	}

	var repoURL, token string
	number := 0
	if cfg != nil {
		token = cfg.AccessToken
	}
	if step != nil {
		if cfg != nil {
			repoURL, _ = repositoryRef(cfg, step.RepositoryType)
		}
		if step.GitHubPRNumber != nil {
			number = *step.GitHubPRNumber
		}
	}

	return s.gateway.MergePullRequest(ctx, repoURL, token, number, mergeMethod)
}

// pullRequestBody собирает описание PR из данных релиза и шага.
func pullRequestBody(step *domain.WorkflowStep, release *domain.Release, head, base string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Release %s", release.VersionLabel())
	if release.Title != "" {
		fmt.Fprintf(&b, ": %s", release.Title)
	}
	b.WriteString("\n\n")

	if release.Description != "" {
		b.WriteString(release.Description)
		b.WriteString("\n\n")
	}

	fmt.Fprintf(&b, "Merge `%s` into `%s`", head, base)
	if step.RepositoryType != "" {
		fmt.Fprintf(&b, " (%s)", strings.ToUpper(string(step.RepositoryType)))
	}
	b.WriteString(".\n")

	fmt.Fprintf(&b, "\n**Step %d:** %s\n", step.StepNumber, step.Title)
	if step.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", step.Description)
	}

	if release.Notes != "" {
		fmt.Fprintf(&b, "\n### Notes\n\n%s\n", release.Notes)
	}
	return b.String()
}
