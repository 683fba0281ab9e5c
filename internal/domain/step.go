package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WorkflowStep — шаг релизного pipeline.
//
// Шаги создаются пачкой из шаблона при создании релиза и изменяются:
//   - вручную (start/complete/fail/retry/skip)
//   - оркестратором при каждом обращении к GitHub (PR, workflow dispatch)
//
// Удаляются только вместе с релизом.
type WorkflowStep struct {
	// ID — уникальный идентификатор шага.
	ID uuid.UUID `json:"id"`

	// ReleaseID — релиз, которому принадлежит шаг.
	ReleaseID uuid.UUID `json:"release_id"`

	// StepNumber — порядковый номер шага внутри релиза (уникален).
	StepNumber int `json:"step_number"`

	// Type — вид шага.
	Type StepType `json:"type"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`

	// Status — текущий статус шага.
	Status StepStatus `json:"status"`

	// AssignedTo — кто отвечает за шаг.
	AssignedTo string `json:"assigned_to,omitempty"`

	// CompletedBy — кто завершил шаг (пользователь или "github").
	CompletedBy string `json:"completed_by,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Notes — свободный текст; сюда же дописываются причины неудач.
	Notes string `json:"notes,omitempty"`

	// IsRequired — обязательный ли шаг для завершения релиза.
	IsRequired bool `json:"is_required"`

	// DependsOn — шаги того же релиза, которые должны быть
	// COMPLETED или SKIPPED, прежде чем этот шаг можно начать.
	DependsOn []uuid.UUID `json:"depends_on,omitempty"`

	// EstimatedDurationMin — оценка длительности в минутах.
	EstimatedDurationMin int `json:"estimated_duration_min,omitempty"`

	// ActualDurationMin — фактическая длительность (заполняется при завершении).
	ActualDurationMin *int `json:"actual_duration_min,omitempty"`

	// --- GitHub: pull request ---

	GitHubPRNumber *int   `json:"github_pr_number,omitempty"`
	GitHubPRURL    string `json:"github_pr_url,omitempty"`
	GitHubPRState  string `json:"github_pr_state,omitempty"`

	// RepositoryType — "app" или "bff"; пусто для шагов без репозитория.
	RepositoryType RepositoryType `json:"repository_type,omitempty"`
	SourceBranch   string         `json:"source_branch,omitempty"`
	TargetBranch   string         `json:"target_branch,omitempty"`

	// --- GitHub: workflow run ---

	ActionRunID      *int64 `json:"action_run_id,omitempty"`
	ActionURL        string `json:"action_url,omitempty"`
	ActionStatus     string `json:"action_status,omitempty"`
	ActionConclusion string `json:"action_conclusion,omitempty"`

	// ActionRef и ActionDispatchedAt — git ref и момент последнего dispatch.
	// Пока run не найден, по ним run ищется при сверке.
	ActionRef          string     `json:"action_ref,omitempty"`
	ActionDispatchedAt *time.Time `json:"action_dispatched_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasPullRequest возвращает true, если для шага уже создан PR.
func (s *WorkflowStep) HasPullRequest() bool {
	return s.GitHubPRNumber != nil
}

// HasActionRun возвращает true, если для шага уже запущен workflow.
func (s *WorkflowStep) HasActionRun() bool {
	return s.ActionRunID != nil
}

// AwaitingActionRun — workflow запущен, но его run ещё не найден.
func (s *WorkflowStep) AwaitingActionRun() bool {
	return s.ActionRunID == nil && s.ActionDispatchedAt != nil
}

// Duration возвращает продолжительность выполнения шага.
func (s *WorkflowStep) Duration() time.Duration {
	if s.StartedAt == nil || s.CompletedAt == nil {
		return 0
	}
	return s.CompletedAt.Sub(*s.StartedAt)
}

// transition проверяет и выполняет переход статуса.
func (s *WorkflowStep) transition(next StepStatus, now time.Time) error {
	if !s.Status.CanTransitionTo(next) {
		return &TransitionError{Entity: "step", From: string(s.Status), To: string(next)}
	}
	s.Status = next
	s.UpdatedAt = now
	return nil
}

// CheckTransition возвращает ошибку, если переход в next запрещён.
// Шаг не изменяется.
func (s *WorkflowStep) CheckTransition(next StepStatus) error {
	if !s.Status.CanTransitionTo(next) {
		return &TransitionError{Entity: "step", From: string(s.Status), To: string(next)}
	}
	return nil
}

// Start переводит шаг в IN_PROGRESS (из PENDING или FAILED).
// Зависимости здесь не проверяются — это делает вызывающий код.
func (s *WorkflowStep) Start(actor string, now time.Time) error {
	if err := s.transition(StepStatusInProgress, now); err != nil {
		return err
	}
	s.StartedAt = &now
	s.CompletedAt = nil
	s.CompletedBy = ""
	if actor != "" && s.AssignedTo == "" {
		s.AssignedTo = actor
	}
	return nil
}

// Complete переводит шаг в COMPLETED.
func (s *WorkflowStep) Complete(actor string, now time.Time) error {
	if err := s.transition(StepStatusCompleted, now); err != nil {
		return err
	}
	s.CompletedAt = &now
	s.CompletedBy = actor
	if s.StartedAt != nil {
		minutes := int(now.Sub(*s.StartedAt).Minutes())
		s.ActualDurationMin = &minutes
	}
	return nil
}

// Fail переводит шаг в FAILED и дописывает причину в Notes.
// DependsOn и StepNumber не изменяются.
func (s *WorkflowStep) Fail(reason string, now time.Time) error {
	if err := s.transition(StepStatusFailed, now); err != nil {
		return err
	}
	s.AppendNote(fmt.Sprintf("[%s] failed: %s", now.UTC().Format(time.RFC3339), reason))
	return nil
}

// Skip переводит шаг в SKIPPED.
func (s *WorkflowStep) Skip(actor, reason string, now time.Time) error {
	if err := s.transition(StepStatusSkipped, now); err != nil {
		return err
	}
	s.CompletedAt = &now
	s.CompletedBy = actor
	if reason != "" {
		s.AppendNote("skipped: " + reason)
	}
	return nil
}

// AppendNote добавляет строку в Notes.
func (s *WorkflowStep) AppendNote(line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	if s.Notes == "" {
		s.Notes = line
		return
	}
	s.Notes += "\n" + line
}

// ApplyPullRequest записывает в шаг данные PR.
func (s *WorkflowStep) ApplyPullRequest(pr *PullRequestRecord, now time.Time) {
	number := pr.Number
	s.GitHubPRNumber = &number
	if pr.HTMLURL != "" {
		s.GitHubPRURL = pr.HTMLURL
		s.ActionURL = pr.HTMLURL
	}
	s.GitHubPRState = pr.EffectiveState()
	s.UpdatedAt = now
}

// ResetActionRun забывает прошлый run перед новым dispatch, включая
// ссылку на него.
func (s *WorkflowStep) ResetActionRun(ref string, dispatchedAt time.Time) {
	s.ActionRunID = nil
	s.ActionURL = ""
	s.ActionStatus = ""
	s.ActionConclusion = ""
	s.ActionRef = ref
	at := dispatchedAt
	s.ActionDispatchedAt = &at
}

// ApplyActionRun записывает в шаг данные workflow run.
func (s *WorkflowStep) ApplyActionRun(run *ActionRunRecord, now time.Time) {
	if run.ID != 0 {
		id := run.ID
		s.ActionRunID = &id
	}
	if run.HTMLURL != "" {
		s.ActionURL = run.HTMLURL
	}
	s.ActionStatus = run.Status
	s.ActionConclusion = run.Conclusion
	s.UpdatedAt = now
}
