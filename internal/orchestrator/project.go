package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/shaiso/ReleaseTrain/internal/domain"
	"github.com/shaiso/ReleaseTrain/internal/engine"
	"github.com/shaiso/ReleaseTrain/internal/telemetry"
)

// CreateProject создаёт проект.
func (s *Service) CreateProject(ctx context.Context, name, description string) (p *domain.Project, err error) {
	defer func() { observe("create_project", err) }()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidProjectName
	}
	p = &domain.Project{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
		CreatedAt:   s.now(),
	}
	if err := s.projects.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create project: %w", err)
	}
	telemetry.WithProjectID(s.logger, p.ID.String()).Info("project created", "name", p.Name)
	return p, nil
}

// GetProject возвращает проект.
func (s *Service) GetProject(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	return s.projects.GetByID(ctx, id)
}

// ListProjects возвращает все проекты.
func (s *Service) ListProjects(ctx context.Context) ([]domain.Project, error) {
	return s.projects.List(ctx)
}

// GetGitHubConfig возвращает GitHub конфигурацию проекта.
func (s *Service) GetGitHubConfig(ctx context.Context, projectID uuid.UUID) (*domain.GitHubConfig, error) {
	return s.projects.GetGitHubConfig(ctx, projectID)
}

// SetGitHubConfig сохраняет конфигурацию проекта.
//
// Ключи WorkflowURLs должны быть известными видами шагов, значения
// должны разбираться как ссылки на workflow. Пустой AccessToken
// сохраняет ранее заданный токен.
func (s *Service) SetGitHubConfig(ctx context.Context, cfg *domain.GitHubConfig) (out *domain.GitHubConfig, err error) {
	defer func() { observe("set_github_config", err) }()

	if _, err := s.projects.GetByID(ctx, cfg.ProjectID); err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}

	for key, raw := range cfg.WorkflowURLs {
		if !domain.StepType(key).IsValid() {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStepType, key)
		}
		if _, ok := engine.ParseWorkflowReference(raw); !ok {
			return nil, fmt.Errorf("%w: %s: %q", ErrInvalidWorkflowURL, key, raw)
		}
	}
	for _, ref := range []string{cfg.AppRepositoryURL, cfg.BFFRepositoryURL} {
		if ref == "" {
			continue
		}
		if _, ok := engine.ParseRepositoryRef(ref); !ok {
			return nil, fmt.Errorf("%w: %q", ErrRepositoryNotConfigured, ref)
		}
	}

	updated := *cfg
	if updated.AccessToken == "" {
		existing, err := s.projects.GetGitHubConfig(ctx, cfg.ProjectID)
		switch {
		case err == nil:
			updated.AccessToken = existing.AccessToken
		case !isNotFound(err):
			return nil, fmt.Errorf("get github config: %w", err)
		}
	}
	updated.UpdatedAt = s.now()

	if err := s.projects.UpsertGitHubConfig(ctx, &updated); err != nil {
		return nil, fmt.Errorf("save github config: %w", err)
	}

	telemetry.WithProjectID(s.logger, cfg.ProjectID.String()).Info("github config saved",
		"workflows", len(updated.WorkflowURLs),
		"has_token", updated.AccessToken != "",
	)
	return &updated, nil
}

// ConfigValidation — результат проверки GitHub конфигурации.
// nil для репозитория означает, что он не задан.
type ConfigValidation struct {
	CredentialValid    bool  `json:"credential_valid" yaml:"credential_valid"`
	AppRepositoryValid *bool `json:"app_repository_valid,omitempty" yaml:"app_repository_valid,omitempty"`
	BFFRepositoryValid *bool `json:"bff_repository_valid,omitempty" yaml:"bff_repository_valid,omitempty"`
}

// Valid — токен и все заданные репозитории доступны.
func (v *ConfigValidation) Valid() bool {
	if !v.CredentialValid {
		return false
	}
	for _, r := range []*bool{v.AppRepositoryValid, v.BFFRepositoryValid} {
		if r != nil && !*r {
			return false
		}
	}
	return true
}

// ValidateGitHubConfig проверяет токен и репозитории проекта через Validator.
func (s *Service) ValidateGitHubConfig(ctx context.Context, projectID uuid.UUID) (res *ConfigValidation, err error) {
	defer func() { observe("validate_github_config", err) }()

	cfg, err := s.projects.GetGitHubConfig(ctx, projectID)
	if err != nil {
		if isNotFound(err) {
			return nil, ErrGitHubNotConfigured
		}
		return nil, fmt.Errorf("get github config: %w", err)
	}
	token, err := credential(cfg)
	if err != nil {
		return nil, err
	}

	res = &ConfigValidation{}
	res.CredentialValid, err = s.validator.ValidateCredential(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("validate credential: %w", err)
	}
	if !res.CredentialValid {
		return res, nil
	}

	check := func(ref string) (*bool, error) {
		if ref == "" {
			return nil, nil
		}
		ok, err := s.validator.ValidateRepository(ctx, ref, token)
		if err != nil {
			return nil, fmt.Errorf("validate repository %s: %w", ref, err)
		}
		return &ok, nil
	}
	if res.AppRepositoryValid, err = check(cfg.AppRepositoryURL); err != nil {
		return nil, err
	}
	if res.BFFRepositoryValid, err = check(cfg.BFFRepositoryURL); err != nil {
		return nil, err
	}
	return res, nil
}
