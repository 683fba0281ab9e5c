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

// StepRepo — репозиторий для работы с шагами релиза.
type StepRepo struct {
	pool *pgxpool.Pool
}

// NewStepRepo создаёт новый StepRepo.
func NewStepRepo(pool *pgxpool.Pool) *StepRepo {
	return &StepRepo{pool: pool}
}

const stepColumns = `
	id, release_id, step_number, type, title, description, status, assigned_to,
	completed_by, started_at, completed_at, notes, is_required, depends_on,
	estimated_duration_min, actual_duration_min, github_pr_number, github_pr_url,
	github_pr_state, repository_type, source_branch, target_branch, action_run_id,
	action_url, action_status, action_conclusion, action_ref, action_dispatched_at,
	created_at, updated_at`

const insertStepQuery = `
	INSERT INTO workflow_steps (` + stepColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
	        $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28,
	        $29, $30)
`

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// CreateBatch создаёт шаги одним batch запросом.
func (r *StepRepo) CreateBatch(ctx context.Context, steps []domain.WorkflowStep) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertSteps(ctx, tx, steps); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertSteps(ctx context.Context, db batchSender, steps []domain.WorkflowStep) error {
	if len(steps) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i := range steps {
		args, err := stepArgs(&steps[i])
		if err != nil {
			return err
		}
		batch.Queue(insertStepQuery, args...)
	}

	results := db.SendBatch(ctx, batch)
	defer results.Close()

	for i := range steps {
		if _, err := results.Exec(); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("insert step %d: %w", steps[i].StepNumber, ErrAlreadyExists)
			}
			return fmt.Errorf("insert step %d: %w", steps[i].StepNumber, err)
		}
	}
	return nil
}

func stepArgs(s *domain.WorkflowStep) ([]any, error) {
	dependsOn := s.DependsOn
	if dependsOn == nil {
		dependsOn = []uuid.UUID{}
	}
	dependsJSON, err := json.Marshal(dependsOn)
	if err != nil {
		return nil, fmt.Errorf("marshal depends_on: %w", err)
	}

	return []any{
		s.ID,
		s.ReleaseID,
		s.StepNumber,
		s.Type,
		s.Title,
		nullString(s.Description),
		s.Status,
		nullString(s.AssignedTo),
		nullString(s.CompletedBy),
		s.StartedAt,
		s.CompletedAt,
		nullString(s.Notes),
		s.IsRequired,
		dependsJSON,
		s.EstimatedDurationMin,
		s.ActualDurationMin,
		s.GitHubPRNumber,
		nullString(s.GitHubPRURL),
		nullString(s.GitHubPRState),
		nullString(string(s.RepositoryType)),
		nullString(s.SourceBranch),
		nullString(s.TargetBranch),
		s.ActionRunID,
		nullString(s.ActionURL),
		nullString(s.ActionStatus),
		nullString(s.ActionConclusion),
		nullString(s.ActionRef),
		s.ActionDispatchedAt,
		s.CreatedAt,
		s.UpdatedAt,
	}, nil
}

// GetByID возвращает шаг по ID.
func (r *StepRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.WorkflowStep, error) {
	query := `SELECT ` + stepColumns + ` FROM workflow_steps WHERE id = $1`
	step, err := scanStep(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return step, err
}

// ListByRelease возвращает шаги релиза по возрастанию StepNumber.
func (r *StepRepo) ListByRelease(ctx context.Context, releaseID uuid.UUID) ([]domain.WorkflowStep, error) {
	query := `
		SELECT ` + stepColumns + `
		FROM workflow_steps
		WHERE release_id = $1
		ORDER BY step_number ASC
	`
	return r.list(ctx, query, releaseID)
}

// ListInProgressLinked возвращает шаги IN_PROGRESS, у которых есть PR,
// workflow run или dispatch без найденного run. Самые давно обновлённые первыми.
func (r *StepRepo) ListInProgressLinked(ctx context.Context, limit int) ([]domain.WorkflowStep, error) {
	query := `
		SELECT ` + stepColumns + `
		FROM workflow_steps
		WHERE status = 'IN_PROGRESS'
		  AND (github_pr_number IS NOT NULL OR action_run_id IS NOT NULL
		       OR action_dispatched_at IS NOT NULL)
		ORDER BY updated_at ASC
		LIMIT $1
	`
	return r.list(ctx, query, limit)
}

func (r *StepRepo) list(ctx context.Context, query string, args ...any) ([]domain.WorkflowStep, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	defer rows.Close()

	var steps []domain.WorkflowStep
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, *step)
	}
	return steps, rows.Err()
}

// Update перезаписывает изменяемые поля шага.
func (r *StepRepo) Update(ctx context.Context, s *domain.WorkflowStep) error {
	dependsOn := s.DependsOn
	if dependsOn == nil {
		dependsOn = []uuid.UUID{}
	}
	dependsJSON, err := json.Marshal(dependsOn)
	if err != nil {
		return fmt.Errorf("marshal depends_on: %w", err)
	}

	query := `
		UPDATE workflow_steps
		SET title = $2, description = $3, status = $4, assigned_to = $5,
		    completed_by = $6, started_at = $7, completed_at = $8, notes = $9,
		    is_required = $10, depends_on = $11, actual_duration_min = $12,
		    github_pr_number = $13, github_pr_url = $14, github_pr_state = $15,
		    repository_type = $16, source_branch = $17, target_branch = $18,
		    action_run_id = $19, action_url = $20, action_status = $21,
		    action_conclusion = $22, action_ref = $23, action_dispatched_at = $24,
		    updated_at = $25
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		s.ID,
		s.Title,
		nullString(s.Description),
		s.Status,
		nullString(s.AssignedTo),
		nullString(s.CompletedBy),
		s.StartedAt,
		s.CompletedAt,
		nullString(s.Notes),
		s.IsRequired,
		dependsJSON,
		s.ActualDurationMin,
		s.GitHubPRNumber,
		nullString(s.GitHubPRURL),
		nullString(s.GitHubPRState),
		nullString(string(s.RepositoryType)),
		nullString(s.SourceBranch),
		nullString(s.TargetBranch),
		s.ActionRunID,
		nullString(s.ActionURL),
		nullString(s.ActionStatus),
		nullString(s.ActionConclusion),
		nullString(s.ActionRef),
		s.ActionDispatchedAt,
		s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanStep сканирует строку в WorkflowStep.
func scanStep(row pgx.Row) (*domain.WorkflowStep, error) {
	var s domain.WorkflowStep
	var description, assignedTo, completedBy, notes *string
	var prURL, prState, repoType, sourceBranch, targetBranch *string
	var actionURL, actionStatus, actionConclusion, actionRef *string
	var dependsJSON []byte

	err := row.Scan(
		&s.ID,
		&s.ReleaseID,
		&s.StepNumber,
		&s.Type,
		&s.Title,
		&description,
		&s.Status,
		&assignedTo,
		&completedBy,
		&s.StartedAt,
		&s.CompletedAt,
		&notes,
		&s.IsRequired,
		&dependsJSON,
		&s.EstimatedDurationMin,
		&s.ActualDurationMin,
		&s.GitHubPRNumber,
		&prURL,
		&prState,
		&repoType,
		&sourceBranch,
		&targetBranch,
		&s.ActionRunID,
		&actionURL,
		&actionStatus,
		&actionConclusion,
		&actionRef,
		&s.ActionDispatchedAt,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan step: %w", err)
	}

	if len(dependsJSON) > 0 {
		if err := json.Unmarshal(dependsJSON, &s.DependsOn); err != nil {
			return nil, fmt.Errorf("unmarshal depends_on: %w", err)
		}
		if len(s.DependsOn) == 0 {
			s.DependsOn = nil
		}
	}

	s.Description = derefString(description)
	s.AssignedTo = derefString(assignedTo)
	s.CompletedBy = derefString(completedBy)
	s.Notes = derefString(notes)
	s.GitHubPRURL = derefString(prURL)
	s.GitHubPRState = derefString(prState)
	s.RepositoryType = domain.RepositoryType(derefString(repoType))
	s.SourceBranch = derefString(sourceBranch)
	s.TargetBranch = derefString(targetBranch)
	s.ActionURL = derefString(actionURL)
	s.ActionStatus = derefString(actionStatus)
	s.ActionConclusion = derefString(actionConclusion)
	s.ActionRef = derefString(actionRef)
	return &s, nil
}
