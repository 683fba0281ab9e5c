package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/ReleaseTrain/internal/domain"
	"github.com/shaiso/ReleaseTrain/internal/gateway"
	"github.com/shaiso/ReleaseTrain/internal/repo"
)

var testNow = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// fakeGateway записывает вызовы и возвращает заданные ответы.
type fakeGateway struct {
	mu sync.Mutex

	prInputs       []gateway.PullRequestInput
	prRepos        []string
	dispatches     []gateway.DispatchInput
	dispatchRepos  []string
	getPRCalls     int
	getRunCalls    int
	lookups        []gateway.RunLookup
	validateTokens []string

	pr      *domain.PullRequestRecord
	run     *domain.ActionRunRecord
	found   *domain.ActionRunRecord
	err     error
	tokenOK bool
	repoOK  map[string]bool
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		pr: &domain.PullRequestRecord{
			Number:  42,
			State:   domain.PRStateOpen,
			HTMLURL: "https://github.com/acme/app/pull/42",
		},
		run: &domain.ActionRunRecord{
			ID:      9001,
			Status:  domain.RunStatusQueued,
			HTMLURL: "https://github.com/acme/app/actions/runs/9001",
		},
		tokenOK: true,
		repoOK:  map[string]bool{},
	}
}

func (g *fakeGateway) CreatePullRequest(_ context.Context, repoRef, _ string, in gateway.PullRequestInput) (*domain.PullRequestRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prRepos = append(g.prRepos, repoRef)
	g.prInputs = append(g.prInputs, in)
	if g.err != nil {
		return nil, g.err
	}
	pr := *g.pr
	return &pr, nil
}

func (g *fakeGateway) GetPullRequest(context.Context, string, string, int) (*domain.PullRequestRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getPRCalls++
	if g.err != nil {
		return nil, g.err
	}
	pr := *g.pr
	return &pr, nil
}

func (g *fakeGateway) MergePullRequest(context.Context, string, string, int, string) error {
	return gateway.ErrMergeNotSupported
}

func (g *fakeGateway) DispatchWorkflow(_ context.Context, repoRef, _ string, in gateway.DispatchInput) (*domain.ActionRunRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dispatchRepos = append(g.dispatchRepos, repoRef)
	g.dispatches = append(g.dispatches, in)
	if g.err != nil {
		return nil, g.err
	}
	run := *g.run
	return &run, nil
}

func (g *fakeGateway) GetWorkflowRun(context.Context, string, string, int64) (*domain.ActionRunRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.getRunCalls++
	if g.err != nil {
		return nil, g.err
	}
	run := *g.run
	return &run, nil
}

func (g *fakeGateway) FindDispatchedRun(_ context.Context, _, _ string, lookup gateway.RunLookup) (*domain.ActionRunRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lookups = append(g.lookups, lookup)
	if g.err != nil {
		return nil, g.err
	}
	if g.found == nil {
		return nil, nil
	}
	run := *g.found
	return &run, nil
}

func (g *fakeGateway) ValidateCredential(_ context.Context, credential string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.validateTokens = append(g.validateTokens, credential)
	return g.tokenOK, g.err
}

func (g *fakeGateway) ValidateRepository(_ context.Context, repoRef, _ string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.repoOK[repoRef], g.err
}

// failingSteps — StepStore, у которого ломается Update.
type failingSteps struct {
	StepStore
}

func (failingSteps) Update(context.Context, *domain.WorkflowStep) error {
	return errors.New("connection reset")
}

// recordingEvents считает опубликованные события.
type recordingEvents struct {
	mu       sync.Mutex
	steps    int
	releases int
}

func (e *recordingEvents) PublishStepUpdated(context.Context, *domain.WorkflowStep) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.steps++
	return nil
}

func (e *recordingEvents) PublishReleaseUpdated(context.Context, *domain.Release) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.releases++
	return nil
}

type fixture struct {
	svc     *Service
	store   *repo.Memory
	gw      *fakeGateway
	events  *recordingEvents
	project *domain.Project
	release *domain.Release
	steps   []domain.WorkflowStep
	config  *domain.GitHubConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:  repo.NewMemory(),
		gw:     newFakeGateway(),
		events: &recordingEvents{},
	}
	f.svc = f.newService(f.store.Steps)

	ctx := context.Background()
	var err error
	f.project, err = f.svc.CreateProject(ctx, "acme", "")
	if err != nil {
		t.Fatalf("create project: %v", err)
	}

	f.config = &domain.GitHubConfig{
		ProjectID:           f.project.ID,
		AppRepositoryURL:    "acme/app",
		BFFRepositoryURL:    "https://github.com/acme/bff.git",
		AccessToken:         "ghp_test",
		DefaultBaseBranch:   "release",
		DefaultTargetBranch: "develop",
		WorkflowURLs: map[string]string{
			string(domain.StepTypeFunctionalBuildAndShare): "acme/app/build.yml?branch={{step.sourceBranch}}&version={{release.version}}&flavor=qa",
			string(domain.StepTypeRegressionBuildAndShare): "https://github.com/acme/app/actions/workflows/77/dispatches?version={{release.version}}",
		},
	}
	if _, err := f.svc.SetGitHubConfig(ctx, f.config); err != nil {
		t.Fatalf("set config: %v", err)
	}

	f.release, f.steps, err = f.svc.CreateRelease(ctx, CreateReleaseInput{
		ProjectID:   f.project.ID,
		Version:     "1.0.0",
		Description: "Spring release",
		Notes:       "Ship it",
	})
	if err != nil {
		t.Fatalf("create release: %v", err)
	}
	return f
}

func (f *fixture) newService(steps StepStore) *Service {
	return New(Config{
		Releases: f.store.Releases,
		Steps:    steps,
		Projects: f.store.Projects,
		Gateway:  f.gw,
		Events:   f.events,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Now:      func() time.Time { return testNow },
	})
}

// step возвращает шаг по номеру (1..29).
func (f *fixture) step(t *testing.T, number int) *domain.WorkflowStep {
	t.Helper()
	for _, s := range f.steps {
		if s.StepNumber == number {
			got, err := f.store.Steps.GetByID(context.Background(), s.ID)
			if err != nil {
				t.Fatalf("get step %d: %v", number, err)
			}
			return got
		}
	}
	t.Fatalf("step %d not found", number)
	return nil
}

func (f *fixture) stepByID(t *testing.T, id uuid.UUID) *domain.WorkflowStep {
	t.Helper()
	got, err := f.store.Steps.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("get step: %v", err)
	}
	return got
}
