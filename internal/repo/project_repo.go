package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/ReleaseTrain/internal/domain"
)

// ProjectRepo — репозиторий проектов и их GitHub конфигурации.
type ProjectRepo struct {
	pool *pgxpool.Pool
}

// NewProjectRepo создаёт новый ProjectRepo.
func NewProjectRepo(pool *pgxpool.Pool) *ProjectRepo {
	return &ProjectRepo{pool: pool}
}

// Create создаёт проект.
func (r *ProjectRepo) Create(ctx context.Context, p *domain.Project) error {
	query := `
		INSERT INTO projects (id, name, description, created_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := r.pool.Exec(ctx, query, p.ID, p.Name, nullString(p.Description), p.CreatedAt)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

// GetByID возвращает проект по ID.
func (r *ProjectRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Project, error) {
	query := `SELECT id, name, description, created_at FROM projects WHERE id = $1`

	var p domain.Project
	var description *string
	err := r.pool.QueryRow(ctx, query, id).Scan(&p.ID, &p.Name, &description, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}
	p.Description = derefString(description)
	return &p, nil
}

// List возвращает все проекты по имени.
func (r *ProjectRepo) List(ctx context.Context) ([]domain.Project, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, description, created_at FROM projects ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []domain.Project
	for rows.Next() {
		var p domain.Project
		var description *string
		if err := rows.Scan(&p.ID, &p.Name, &description, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		p.Description = derefString(description)
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// GetGitHubConfig возвращает GitHub конфигурацию проекта.
func (r *ProjectRepo) GetGitHubConfig(ctx context.Context, projectID uuid.UUID) (*domain.GitHubConfig, error) {
	query := `
		SELECT project_id, app_repository_url, bff_repository_url, access_token,
		       default_base_branch, default_target_branch, workflow_urls, updated_at
		FROM github_configs
		WHERE project_id = $1
	`
	var cfg domain.GitHubConfig
	var appURL, bffURL, token, baseBranch, targetBranch *string
	var workflowsJSON []byte

	err := r.pool.QueryRow(ctx, query, projectID).Scan(
		&cfg.ProjectID,
		&appURL,
		&bffURL,
		&token,
		&baseBranch,
		&targetBranch,
		&workflowsJSON,
		&cfg.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan github config: %w", err)
	}

	if len(workflowsJSON) > 0 {
		if err := json.Unmarshal(workflowsJSON, &cfg.WorkflowURLs); err != nil {
			return nil, fmt.Errorf("unmarshal workflow_urls: %w", err)
		}
	}

	cfg.AppRepositoryURL = derefString(appURL)
	cfg.BFFRepositoryURL = derefString(bffURL)
	cfg.AccessToken = derefString(token)
	cfg.DefaultBaseBranch = derefString(baseBranch)
	cfg.DefaultTargetBranch = derefString(targetBranch)
	return &cfg, nil
}

// UpsertGitHubConfig создаёт или заменяет GitHub конфигурацию проекта.
func (r *ProjectRepo) UpsertGitHubConfig(ctx context.Context, cfg *domain.GitHubConfig) error {
	workflows := cfg.WorkflowURLs
	if workflows == nil {
		workflows = map[string]string{}
	}
	workflowsJSON, err := json.Marshal(workflows)
	if err != nil {
		return fmt.Errorf("marshal workflow_urls: %w", err)
	}

	query := `
		INSERT INTO github_configs (project_id, app_repository_url, bff_repository_url,
		    access_token, default_base_branch, default_target_branch, workflow_urls, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (project_id) DO UPDATE
		SET app_repository_url = EXCLUDED.app_repository_url,
		    bff_repository_url = EXCLUDED.bff_repository_url,
		    access_token = EXCLUDED.access_token,
		    default_base_branch = EXCLUDED.default_base_branch,
		    default_target_branch = EXCLUDED.default_target_branch,
		    workflow_urls = EXCLUDED.workflow_urls,
		    updated_at = EXCLUDED.updated_at
	`
	_, err = r.pool.Exec(ctx, query,
		cfg.ProjectID,
		nullString(cfg.AppRepositoryURL),
		nullString(cfg.BFFRepositoryURL),
		nullString(cfg.AccessToken),
		nullString(cfg.DefaultBaseBranch),
		nullString(cfg.DefaultTargetBranch),
		workflowsJSON,
		cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert github config: %w", err)
	}
	return nil
}
