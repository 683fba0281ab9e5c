package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Release — релиз мобильного приложения.
//
// Релиз принадлежит проекту и никогда не удаляется физически:
// жизненный цикл управляется статусом (COMPLETED / CANCELLED).
type Release struct {
	// ID — уникальный идентификатор релиза.
	ID uuid.UUID `json:"id"`

	// ProjectID — проект, которому принадлежит релиз.
	ProjectID uuid.UUID `json:"project_id"`

	// Version — строка версии, например "2.1.0".
	Version string `json:"version"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// Status — текущий статус релиза.
	Status ReleaseStatus `json:"status"`

	CreatedBy  string `json:"created_by,omitempty"`
	AssignedTo string `json:"assigned_to,omitempty"`

	// TargetReleaseDate — плановая дата выхода.
	TargetReleaseDate *time.Time `json:"target_release_date,omitempty"`

	// ActualReleaseDate — фактическая дата выхода (при COMPLETED).
	ActualReleaseDate *time.Time `json:"actual_release_date,omitempty"`

	BuildURL   string `json:"build_url,omitempty"`
	ReleaseURL string `json:"release_url,omitempty"`
	Notes      string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// VersionLabel возвращает версию с префиксом "v" ("2.1.0" → "v2.1.0").
func (r *Release) VersionLabel() string {
	if strings.HasPrefix(r.Version, "v") || strings.HasPrefix(r.Version, "V") {
		return "v" + r.Version[1:]
	}
	return "v" + r.Version
}

// TransitionTo переводит релиз в новый статус.
func (r *Release) TransitionTo(next ReleaseStatus, now time.Time) error {
	if !r.Status.CanTransitionTo(next) {
		return &TransitionError{Entity: "release", From: string(r.Status), To: string(next)}
	}
	r.Status = next
	r.UpdatedAt = now
	if next == ReleaseStatusCompleted {
		r.ActualReleaseDate = &now
	}
	return nil
}
