package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/ReleaseTrain/internal/domain"
)

// ReleaseRepo — репозиторий для работы с релизами.
type ReleaseRepo struct {
	pool *pgxpool.Pool
}

// NewReleaseRepo создаёт новый ReleaseRepo.
func NewReleaseRepo(pool *pgxpool.Pool) *ReleaseRepo {
	return &ReleaseRepo{pool: pool}
}

const releaseColumns = `
	id, project_id, version, title, description, status, created_by, assigned_to,
	target_release_date, actual_release_date, build_url, release_url, notes,
	created_at, updated_at`

// Create создаёт релиз.
func (r *ReleaseRepo) Create(ctx context.Context, rel *domain.Release) error {
	query := `
		INSERT INTO releases (` + releaseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := r.pool.Exec(ctx, query,
		rel.ID,
		rel.ProjectID,
		rel.Version,
		rel.Title,
		nullString(rel.Description),
		rel.Status,
		nullString(rel.CreatedBy),
		nullString(rel.AssignedTo),
		rel.TargetReleaseDate,
		rel.ActualReleaseDate,
		nullString(rel.BuildURL),
		nullString(rel.ReleaseURL),
		nullString(rel.Notes),
		rel.CreatedAt,
		rel.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return ErrAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("insert release: %w", err)
	}
	return nil
}

// CreateWithSteps создаёт релиз и его шаги в одной транзакции.
func (r *ReleaseRepo) CreateWithSteps(ctx context.Context, rel *domain.Release, steps []domain.WorkflowStep) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO releases (` + releaseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	if _, err := tx.Exec(ctx, query,
		rel.ID, rel.ProjectID, rel.Version, rel.Title, nullString(rel.Description),
		rel.Status, nullString(rel.CreatedBy), nullString(rel.AssignedTo),
		rel.TargetReleaseDate, rel.ActualReleaseDate, nullString(rel.BuildURL),
		nullString(rel.ReleaseURL), nullString(rel.Notes), rel.CreatedAt, rel.UpdatedAt,
	); err != nil {
		if isUniqueViolation(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("insert release: %w", err)
	}

	if err := insertSteps(ctx, tx, steps); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByID возвращает релиз по ID.
func (r *ReleaseRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Release, error) {
	query := `SELECT ` + releaseColumns + ` FROM releases WHERE id = $1`
	rel, err := scanRelease(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rel, err
}

// List возвращает релизы с фильтрацией, новые первыми.
func (r *ReleaseRepo) List(ctx context.Context, filter ReleaseFilter) ([]domain.Release, error) {
	query := `
		SELECT ` + releaseColumns + `
		FROM releases
		WHERE ($1::uuid IS NULL OR project_id = $1)
		  AND ($2::text IS NULL OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := r.pool.Query(ctx, query,
		nullUUID(filter.ProjectID),
		nullString(filter.Status),
		filter.limit(),
		filter.Offset,
	)
	if err != nil {
		return nil, fmt.Errorf("list releases: %w", err)
	}
	defer rows.Close()

	var releases []domain.Release
	for rows.Next() {
		rel, err := scanRelease(rows)
		if err != nil {
			return nil, err
		}
		releases = append(releases, *rel)
	}
	return releases, rows.Err()
}

// Update обновляет релиз.
func (r *ReleaseRepo) Update(ctx context.Context, rel *domain.Release) error {
	query := `
		UPDATE releases
		SET title = $2, description = $3, status = $4, assigned_to = $5,
		    target_release_date = $6, actual_release_date = $7, build_url = $8,
		    release_url = $9, notes = $10, updated_at = $11
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		rel.ID,
		rel.Title,
		nullString(rel.Description),
		rel.Status,
		nullString(rel.AssignedTo),
		rel.TargetReleaseDate,
		rel.ActualReleaseDate,
		nullString(rel.BuildURL),
		nullString(rel.ReleaseURL),
		nullString(rel.Notes),
		rel.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update release: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanRelease сканирует строку (pgx.Row или pgx.Rows) в Release.
func scanRelease(row pgx.Row) (*domain.Release, error) {
	var rel domain.Release
	var description, createdBy, assignedTo, buildURL, releaseURL, notes *string

	err := row.Scan(
		&rel.ID,
		&rel.ProjectID,
		&rel.Version,
		&rel.Title,
		&description,
		&rel.Status,
		&createdBy,
		&assignedTo,
		&rel.TargetReleaseDate,
		&rel.ActualReleaseDate,
		&buildURL,
		&releaseURL,
		&notes,
		&rel.CreatedAt,
		&rel.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan release: %w", err)
	}

	rel.Description = derefString(description)
	rel.CreatedBy = derefString(createdBy)
	rel.AssignedTo = derefString(assignedTo)
	rel.BuildURL = derefString(buildURL)
	rel.ReleaseURL = derefString(releaseURL)
	rel.Notes = derefString(notes)
	return &rel, nil
}
