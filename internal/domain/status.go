package domain

import (
	"errors"
	"fmt"
)

// StepStatus — статус шага релизного pipeline.
//
// Жизненный цикл:
//
//	PENDING → IN_PROGRESS → COMPLETED
//	        ↘             ↘ FAILED → IN_PROGRESS (retry)
//	          SKIPPED (ручной пропуск)
type StepStatus string

const (
	// StepStatusPending — шаг создан и ждёт начала.
	StepStatusPending StepStatus = "PENDING"

	// StepStatusInProgress — шаг выполняется (вручную или во внешней системе).
	StepStatusInProgress StepStatus = "IN_PROGRESS"

	// StepStatusCompleted — шаг успешно завершён.
	StepStatusCompleted StepStatus = "COMPLETED"

	// StepStatusFailed — шаг завершился с ошибкой, можно повторить.
	StepStatusFailed StepStatus = "FAILED"

	// StepStatusSkipped — шаг пропущен вручную.
	StepStatusSkipped StepStatus = "SKIPPED"
)

// ErrInvalidTransition — переход между статусами не разрешён.
var ErrInvalidTransition = errors.New("invalid status transition")

// stepTransitions — разрешённые переходы шага (from → to).
var stepTransitions = map[StepStatus]map[StepStatus]bool{
	StepStatusPending: {
		StepStatusInProgress: true,
		StepStatusSkipped:    true,
	},
	StepStatusInProgress: {
		StepStatusCompleted: true,
		StepStatusFailed:    true,
	},
	StepStatusFailed: {
		StepStatusInProgress: true,
	},
}

// IsTerminal возвращает true для COMPLETED и SKIPPED.
func (s StepStatus) IsTerminal() bool {
	return s == StepStatusCompleted || s == StepStatusSkipped
}

// SatisfiesDependency возвращает true, если шаг в этом статусе
// не блокирует зависящие от него шаги.
func (s StepStatus) SatisfiesDependency() bool {
	return s == StepStatusCompleted || s == StepStatusSkipped
}

// CanTransitionTo проверяет, разрешён ли переход в статус next.
func (s StepStatus) CanTransitionTo(next StepStatus) bool {
	return stepTransitions[s][next]
}

// IsValid проверяет, что статус входит в известный набор.
func (s StepStatus) IsValid() bool {
	switch s {
	case StepStatusPending, StepStatusInProgress, StepStatusCompleted, StepStatusFailed, StepStatusSkipped:
		return true
	default:
		return false
	}
}

// ReleaseStatus — статус релиза.
//
// Жизненный цикл:
//
//	DRAFT → IN_PROGRESS → STAGING → PRODUCTION_PENDING → PRODUCTION → COMPLETED
//	(любой нефинальный) → CANCELLED
type ReleaseStatus string

const (
	ReleaseStatusDraft             ReleaseStatus = "DRAFT"
	ReleaseStatusInProgress        ReleaseStatus = "IN_PROGRESS"
	ReleaseStatusStaging           ReleaseStatus = "STAGING"
	ReleaseStatusProductionPending ReleaseStatus = "PRODUCTION_PENDING"
	ReleaseStatusProduction        ReleaseStatus = "PRODUCTION"
	ReleaseStatusCompleted         ReleaseStatus = "COMPLETED"
	ReleaseStatusCancelled         ReleaseStatus = "CANCELLED"
)

// releaseOrder — порядок «продвижения» релиза вперёд.
var releaseOrder = map[ReleaseStatus]int{
	ReleaseStatusDraft:             0,
	ReleaseStatusInProgress:        1,
	ReleaseStatusStaging:           2,
	ReleaseStatusProductionPending: 3,
	ReleaseStatusProduction:        4,
	ReleaseStatusCompleted:         5,
}

// IsTerminal возвращает true, если релиз завершён или отменён.
func (s ReleaseStatus) IsTerminal() bool {
	return s == ReleaseStatusCompleted || s == ReleaseStatusCancelled
}

// CanTransitionTo проверяет переход релиза.
// Релиз двигается только вперёд; отмена возможна из любого нефинального статуса.
func (s ReleaseStatus) CanTransitionTo(next ReleaseStatus) bool {
	if s.IsTerminal() || s == next {
		return false
	}
	if next == ReleaseStatusCancelled {
		return true
	}
	from, ok1 := releaseOrder[s]
	to, ok2 := releaseOrder[next]
	return ok1 && ok2 && to > from
}

// ParseReleaseStatus парсит строку в ReleaseStatus.
func ParseReleaseStatus(s string) (ReleaseStatus, bool) {
	status := ReleaseStatus(s)
	if _, ok := releaseOrder[status]; ok || status == ReleaseStatusCancelled {
		return status, true
	}
	return "", false
}

// TransitionError — запрещённый переход статуса.
type TransitionError struct {
	Entity string // "step" или "release"
	From   string
	To     string
}

// Error реализует интерфейс error.
func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot transition from %s to %s", e.Entity, e.From, e.To)
}

// Unwrap возвращает ErrInvalidTransition.
func (e *TransitionError) Unwrap() error {
	return ErrInvalidTransition
}
