package repo

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/ReleaseTrain/internal/domain"
)

func seedRelease(t *testing.T, m *Memory, version string, createdAt time.Time) *domain.Release {
	t.Helper()
	rel := &domain.Release{
		ID:        uuid.New(),
		ProjectID: uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Version:   version,
		Status:    domain.ReleaseStatusDraft,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
	steps := []domain.WorkflowStep{
		{ID: uuid.New(), ReleaseID: rel.ID, StepNumber: 2, Status: domain.StepStatusPending},
		{ID: uuid.New(), ReleaseID: rel.ID, StepNumber: 1, Status: domain.StepStatusPending},
	}
	require.NoError(t, m.Releases.CreateWithSteps(context.Background(), rel, steps))
	return rel
}

func TestMemory_ReleaseCRUD(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	older := seedRelease(t, m, "1.0.0", base)
	newer := seedRelease(t, m, "1.1.0", base.Add(time.Hour))

	list, err := m.Releases.List(ctx, ReleaseFilter{})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, newer.ID, list[0].ID, "newest first")

	got, err := m.Releases.GetByID(ctx, older.ID)
	require.NoError(t, err)
	got.Title = "changed"
	again, _ := m.Releases.GetByID(ctx, older.ID)
	assert.Empty(t, again.Title, "returned value must be a copy")

	got.Status = domain.ReleaseStatusInProgress
	require.NoError(t, m.Releases.Update(ctx, got))
	list, err = m.Releases.List(ctx, ReleaseFilter{Status: string(domain.ReleaseStatusInProgress)})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, older.ID, list[0].ID)

	_, err = m.Releases.GetByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemory_DuplicateVersion(t *testing.T) {
	m := NewMemory()
	seedRelease(t, m, "1.0.0", time.Now())

	rel := &domain.Release{
		ID:        uuid.New(),
		ProjectID: uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Version:   "1.0.0",
	}
	assert.ErrorIs(t, m.Releases.Create(context.Background(), rel), ErrAlreadyExists)
}

func TestMemory_StepsOrderedAndIsolated(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	rel := seedRelease(t, m, "1.0.0", time.Now())

	steps, err := m.Steps.ListByRelease(ctx, rel.ID)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, 1, steps[0].StepNumber)
	assert.Equal(t, 2, steps[1].StepNumber)

	step := steps[0]
	step.StepNumber = 99
	step.Status = domain.StepStatusInProgress
	pr := 7
	step.GitHubPRNumber = &pr
	require.NoError(t, m.Steps.Update(ctx, &step))

	stored, err := m.Steps.GetByID(ctx, step.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.StepNumber, "StepNumber is immutable")
	assert.Equal(t, domain.StepStatusInProgress, stored.Status)

	pr = 8
	assert.Equal(t, 7, *stored.GitHubPRNumber, "stored pointer fields must be copies")

	linked, err := m.Steps.ListInProgressLinked(ctx, 10)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, step.ID, linked[0].ID)
}

func TestMemory_ListInProgressLinked_IncludesAwaitingRun(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	rel := seedRelease(t, m, "1.0.0", time.Now())

	steps, err := m.Steps.ListByRelease(ctx, rel.ID)
	require.NoError(t, err)

	step := steps[1]
	step.Status = domain.StepStatusInProgress
	step.ResetActionRun("release", time.Now())
	require.NoError(t, m.Steps.Update(ctx, &step))

	linked, err := m.Steps.ListInProgressLinked(ctx, 10)
	require.NoError(t, err)
	require.Len(t, linked, 1)
	assert.Equal(t, step.ID, linked[0].ID)
	assert.True(t, linked[0].AwaitingActionRun())
	assert.Equal(t, "release", linked[0].ActionRef)
}

func TestMemory_CreateBatchRejectsDuplicateNumber(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	rel := seedRelease(t, m, "1.0.0", time.Now())

	err := m.Steps.CreateBatch(ctx, []domain.WorkflowStep{
		{ID: uuid.New(), ReleaseID: rel.ID, StepNumber: 3},
		{ID: uuid.New(), ReleaseID: rel.ID, StepNumber: 1},
	})
	assert.ErrorIs(t, err, ErrAlreadyExists)

	steps, _ := m.Steps.ListByRelease(ctx, rel.ID)
	assert.Len(t, steps, 2, "failed batch must not be partially applied")
}

func TestMemory_ProjectsAndConfig(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	p := &domain.Project{ID: uuid.New(), Name: "mobile"}
	require.NoError(t, m.Projects.Create(ctx, p))
	assert.ErrorIs(t, m.Projects.Create(ctx, &domain.Project{ID: uuid.New(), Name: "mobile"}), ErrAlreadyExists)

	_, err := m.Projects.GetGitHubConfig(ctx, p.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	cfg := &domain.GitHubConfig{
		ProjectID:    p.ID,
		AccessToken:  "t",
		WorkflowURLs: map[string]string{"BUILD_STAGING": "acme/app/1"},
	}
	require.NoError(t, m.Projects.UpsertGitHubConfig(ctx, cfg))
	cfg.WorkflowURLs["BUILD_STAGING"] = "mutated"

	got, err := m.Projects.GetGitHubConfig(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "acme/app/1", got.WorkflowURLs["BUILD_STAGING"])

	assert.ErrorIs(t, m.Projects.UpsertGitHubConfig(ctx, &domain.GitHubConfig{ProjectID: uuid.New()}), ErrNotFound)
}
