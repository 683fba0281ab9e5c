package orchestrator

import (
	"context"

	"github.com/google/uuid"

	"github.com/shaiso/ReleaseTrain/internal/domain"
	"github.com/shaiso/ReleaseTrain/internal/gateway"
	"github.com/shaiso/ReleaseTrain/internal/repo"
)

// Gateway — операции GitHub, которые использует оркестратор.
// Реализация: *gateway.Client.
type Gateway interface {
	CreatePullRequest(ctx context.Context, repoRef, credential string, in gateway.PullRequestInput) (*domain.PullRequestRecord, error)
	GetPullRequest(ctx context.Context, repoRef, credential string, number int) (*domain.PullRequestRecord, error)
	MergePullRequest(ctx context.Context, repoRef, credential string, number int, method string) error
	DispatchWorkflow(ctx context.Context, repoRef, credential string, in gateway.DispatchInput) (*domain.ActionRunRecord, error)
	GetWorkflowRun(ctx context.Context, repoRef, credential string, runID int64) (*domain.ActionRunRecord, error)
	FindDispatchedRun(ctx context.Context, repoRef, credential string, lookup gateway.RunLookup) (*domain.ActionRunRecord, error)
	ValidateCredential(ctx context.Context, credential string) (bool, error)
	ValidateRepository(ctx context.Context, repoRef, credential string) (bool, error)
}

// ReleaseStore — хранилище релизов.
// Реализации: *repo.ReleaseRepo, *repo.MemoryReleaseRepo.
type ReleaseStore interface {
	Create(ctx context.Context, rel *domain.Release) error
	CreateWithSteps(ctx context.Context, rel *domain.Release, steps []domain.WorkflowStep) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Release, error)
	List(ctx context.Context, filter repo.ReleaseFilter) ([]domain.Release, error)
	Update(ctx context.Context, rel *domain.Release) error
}

// StepStore — хранилище шагов.
// Реализации: *repo.StepRepo, *repo.MemoryStepRepo.
type StepStore interface {
	CreateBatch(ctx context.Context, steps []domain.WorkflowStep) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowStep, error)
	ListByRelease(ctx context.Context, releaseID uuid.UUID) ([]domain.WorkflowStep, error)
	ListInProgressLinked(ctx context.Context, limit int) ([]domain.WorkflowStep, error)
	Update(ctx context.Context, step *domain.WorkflowStep) error
}

// ProjectStore — хранилище проектов и GitHub конфигураций.
// Реализации: *repo.ProjectRepo, *repo.MemoryProjectRepo.
type ProjectStore interface {
	Create(ctx context.Context, p *domain.Project) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error)
	List(ctx context.Context) ([]domain.Project, error)
	GetGitHubConfig(ctx context.Context, projectID uuid.UUID) (*domain.GitHubConfig, error)
	UpsertGitHubConfig(ctx context.Context, cfg *domain.GitHubConfig) error
}

// EventPublisher — уведомления об изменениях для watch feed.
// Реализации: *mq.Publisher, *watch.HubPublisher.
type EventPublisher interface {
	PublishStepUpdated(ctx context.Context, step *domain.WorkflowStep) error
	PublishReleaseUpdated(ctx context.Context, rel *domain.Release) error
}

type noopPublisher struct{}

func (noopPublisher) PublishStepUpdated(context.Context, *domain.WorkflowStep) error { return nil }
func (noopPublisher) PublishReleaseUpdated(context.Context, *domain.Release) error   { return nil }
