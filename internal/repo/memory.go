package repo

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shaiso/ReleaseTrain/internal/domain"
)

// Memory — хранилище в памяти с тем же контрактом, что и PostgreSQL
// репозитории. Используется в тестах и в режиме без БД.
//
// Наружу отдаются только копии записей.
type Memory struct {
	mu       sync.RWMutex
	projects map[uuid.UUID]domain.Project
	configs  map[uuid.UUID]domain.GitHubConfig
	releases map[uuid.UUID]domain.Release
	steps    map[uuid.UUID]domain.WorkflowStep

	Releases *MemoryReleaseRepo
	Steps    *MemoryStepRepo
	Projects *MemoryProjectRepo
}

// NewMemory создаёт пустое хранилище.
func NewMemory() *Memory {
	m := &Memory{
		projects: make(map[uuid.UUID]domain.Project),
		configs:  make(map[uuid.UUID]domain.GitHubConfig),
		releases: make(map[uuid.UUID]domain.Release),
		steps:    make(map[uuid.UUID]domain.WorkflowStep),
	}
	m.Releases = &MemoryReleaseRepo{m: m}
	m.Steps = &MemoryStepRepo{m: m}
	m.Projects = &MemoryProjectRepo{m: m}
	return m
}

// --- Releases ---

// MemoryReleaseRepo — релизы в памяти.
type MemoryReleaseRepo struct {
	m *Memory
}

// Create создаёт релиз.
func (r *MemoryReleaseRepo) Create(_ context.Context, rel *domain.Release) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()
	return r.m.insertRelease(rel)
}

// CreateWithSteps создаёт релиз и шаги атомарно.
func (r *MemoryReleaseRepo) CreateWithSteps(_ context.Context, rel *domain.Release, steps []domain.WorkflowStep) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if err := r.m.checkSteps(steps); err != nil {
		return err
	}
	if err := r.m.insertRelease(rel); err != nil {
		return err
	}
	for i := range steps {
		r.m.steps[steps[i].ID] = cloneStep(steps[i])
	}
	return nil
}

// GetByID возвращает релиз по ID.
func (r *MemoryReleaseRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Release, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	rel, ok := r.m.releases[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneRelease(rel)
	return &out, nil
}

// List возвращает релизы с фильтрацией, новые первыми.
func (r *MemoryReleaseRepo) List(_ context.Context, filter ReleaseFilter) ([]domain.Release, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var out []domain.Release
	for _, rel := range r.m.releases {
		if filter.ProjectID != nil && *filter.ProjectID != uuid.Nil && rel.ProjectID != *filter.ProjectID {
			continue
		}
		if filter.Status != "" && string(rel.Status) != filter.Status {
			continue
		}
		out = append(out, cloneRelease(rel))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset >= len(out) {
		return nil, nil
	}
	out = out[filter.Offset:]
	if limit := filter.limit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Update обновляет релиз.
func (r *MemoryReleaseRepo) Update(_ context.Context, rel *domain.Release) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.releases[rel.ID]; !ok {
		return ErrNotFound
	}
	r.m.releases[rel.ID] = cloneRelease(*rel)
	return nil
}

func (m *Memory) insertRelease(rel *domain.Release) error {
	if _, ok := m.releases[rel.ID]; ok {
		return ErrAlreadyExists
	}
	for _, existing := range m.releases {
		if existing.ProjectID == rel.ProjectID && existing.Version == rel.Version {
			return ErrAlreadyExists
		}
	}
	m.releases[rel.ID] = cloneRelease(*rel)
	return nil
}

// --- Steps ---

// MemoryStepRepo — шаги в памяти.
type MemoryStepRepo struct {
	m *Memory
}

// CreateBatch создаёт шаги атомарно.
func (r *MemoryStepRepo) CreateBatch(_ context.Context, steps []domain.WorkflowStep) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if err := r.m.checkSteps(steps); err != nil {
		return err
	}
	for i := range steps {
		r.m.steps[steps[i].ID] = cloneStep(steps[i])
	}
	return nil
}

// GetByID возвращает шаг по ID.
func (r *MemoryStepRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.WorkflowStep, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	s, ok := r.m.steps[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneStep(s)
	return &out, nil
}

// ListByRelease возвращает шаги релиза по возрастанию StepNumber.
func (r *MemoryStepRepo) ListByRelease(_ context.Context, releaseID uuid.UUID) ([]domain.WorkflowStep, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var out []domain.WorkflowStep
	for _, s := range r.m.steps {
		if s.ReleaseID == releaseID {
			out = append(out, cloneStep(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StepNumber < out[j].StepNumber
	})
	return out, nil
}

// ListInProgressLinked возвращает шаги IN_PROGRESS с PR, workflow run
// или dispatch без найденного run.
func (r *MemoryStepRepo) ListInProgressLinked(_ context.Context, limit int) ([]domain.WorkflowStep, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	var out []domain.WorkflowStep
	for _, s := range r.m.steps {
		if s.Status == domain.StepStatusInProgress && (s.HasPullRequest() || s.HasActionRun() || s.AwaitingActionRun()) {
			out = append(out, cloneStep(s))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.Before(out[j].UpdatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Update перезаписывает шаг.
func (r *MemoryStepRepo) Update(_ context.Context, s *domain.WorkflowStep) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	existing, ok := r.m.steps[s.ID]
	if !ok {
		return ErrNotFound
	}
	updated := cloneStep(*s)
	updated.ReleaseID = existing.ReleaseID
	updated.StepNumber = existing.StepNumber
	updated.CreatedAt = existing.CreatedAt
	r.m.steps[s.ID] = updated
	return nil
}

func (m *Memory) checkSteps(steps []domain.WorkflowStep) error {
	type key struct {
		release uuid.UUID
		number  int
	}
	taken := make(map[key]bool)
	for _, s := range m.steps {
		taken[key{s.ReleaseID, s.StepNumber}] = true
	}
	for _, s := range steps {
		k := key{s.ReleaseID, s.StepNumber}
		if _, ok := m.steps[s.ID]; ok || taken[k] {
			return ErrAlreadyExists
		}
		taken[k] = true
	}
	return nil
}

// --- Projects ---

// MemoryProjectRepo — проекты и GitHub конфигурации в памяти.
type MemoryProjectRepo struct {
	m *Memory
}

// Create создаёт проект.
func (r *MemoryProjectRepo) Create(_ context.Context, p *domain.Project) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	for _, existing := range r.m.projects {
		if existing.ID == p.ID || existing.Name == p.Name {
			return ErrAlreadyExists
		}
	}
	r.m.projects[p.ID] = *p
	return nil
}

// GetByID возвращает проект по ID.
func (r *MemoryProjectRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Project, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	p, ok := r.m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

// List возвращает проекты по имени.
func (r *MemoryProjectRepo) List(_ context.Context) ([]domain.Project, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	out := make([]domain.Project, 0, len(r.m.projects))
	for _, p := range r.m.projects {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// GetGitHubConfig возвращает GitHub конфигурацию проекта.
func (r *MemoryProjectRepo) GetGitHubConfig(_ context.Context, projectID uuid.UUID) (*domain.GitHubConfig, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	cfg, ok := r.m.configs[projectID]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneConfig(cfg)
	return &out, nil
}

// UpsertGitHubConfig создаёт или заменяет конфигурацию.
func (r *MemoryProjectRepo) UpsertGitHubConfig(_ context.Context, cfg *domain.GitHubConfig) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.projects[cfg.ProjectID]; !ok {
		return ErrNotFound
	}
	r.m.configs[cfg.ProjectID] = cloneConfig(*cfg)
	return nil
}

// --- Copies ---

func cloneRelease(r domain.Release) domain.Release {
	r.TargetReleaseDate = clonePtr(r.TargetReleaseDate)
	r.ActualReleaseDate = clonePtr(r.ActualReleaseDate)
	return r
}

func cloneStep(s domain.WorkflowStep) domain.WorkflowStep {
	if s.DependsOn != nil {
		s.DependsOn = append([]uuid.UUID(nil), s.DependsOn...)
	}
	s.StartedAt = clonePtr(s.StartedAt)
	s.CompletedAt = clonePtr(s.CompletedAt)
	if s.ActualDurationMin != nil {
		v := *s.ActualDurationMin
		s.ActualDurationMin = &v
	}
	if s.GitHubPRNumber != nil {
		v := *s.GitHubPRNumber
		s.GitHubPRNumber = &v
	}
	if s.ActionRunID != nil {
		v := *s.ActionRunID
		s.ActionRunID = &v
	}
	s.ActionDispatchedAt = clonePtr(s.ActionDispatchedAt)
	return s
}

func cloneConfig(c domain.GitHubConfig) domain.GitHubConfig {
	if c.WorkflowURLs != nil {
		urls := make(map[string]string, len(c.WorkflowURLs))
		for k, v := range c.WorkflowURLs {
			urls[k] = v
		}
		c.WorkflowURLs = urls
	}
	return c
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
