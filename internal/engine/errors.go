package engine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Ошибки валидации зависимостей шагов.
var (
	// ErrDuplicateStepNumber — несколько шагов с одинаковым номером.
	ErrDuplicateStepNumber = errors.New("duplicate step number")

	// ErrForeignDependency — зависимость на шаг другого релиза или несуществующий шаг.
	ErrForeignDependency = errors.New("step depends on step outside its release")

	// ErrForwardDependency — зависимость на шаг с большим или равным номером.
	ErrForwardDependency = errors.New("step depends on a later step")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")

	// ErrSelfDependency — шаг зависит от самого себя.
	ErrSelfDependency = errors.New("step depends on itself")

	// ErrDependencyNotMet — зависимости шага ещё не выполнены.
	ErrDependencyNotMet = errors.New("step dependencies not met")
)

// ValidationError — ошибка валидации с контекстом.
type ValidationError struct {
	StepID  uuid.UUID // ID шага, где произошла ошибка
	Field   string    // поле, вызвавшее ошибку
	Message string    // описание ошибки
	Err     error     // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.StepID != uuid.Nil {
		return "step " + e.StepID.String() + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(stepID uuid.UUID, field, message string, err error) *ValidationError {
	return &ValidationError{
		StepID:  stepID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// DependencyError — шаг нельзя начать, пока не завершены Blocking.
type DependencyError struct {
	StepID   uuid.UUID
	Blocking []uuid.UUID
}

// Error реализует интерфейс error.
func (e *DependencyError) Error() string {
	ids := make([]string, len(e.Blocking))
	for i, id := range e.Blocking {
		ids[i] = id.String()
	}
	return fmt.Sprintf("step %s: waiting for %s", e.StepID, strings.Join(ids, ", "))
}

// Unwrap возвращает ErrDependencyNotMet.
func (e *DependencyError) Unwrap() error {
	return ErrDependencyNotMet
}
