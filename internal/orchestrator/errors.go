package orchestrator

import (
	"errors"
	"fmt"
)

// Классы ошибок оркестратора.
var (
	// ErrValidation — запрос некорректен для шага или конфигурации.
	// Повтор без изменения входных данных не поможет.
	ErrValidation = errors.New("validation error")

	// ErrState — переход статуса запрещён или зависимости не выполнены.
	ErrState = errors.New("state error")
)

// Ошибки валидации.
var (
	ErrStepRequired            = validation("step is required")
	ErrReleaseRequired         = validation("release is required")
	ErrRepositoryNotConfigured = validation("repository not configured")
	ErrCredentialNotConfigured = validation("github access token not configured")
	ErrGitHubNotConfigured     = validation("github integration not configured for project")
	ErrNotBuildStep            = validation("step is not a build step")
	ErrWorkflowNotConfigured   = validation("workflow not configured for step type")
	ErrNotDevelopToReleaseStep = validation("step is not a develop to release merge")
	ErrNoRepositoryType        = validation("step has no repository type")
	ErrBranchesNotConfigured   = validation("source or target branch not configured")
	ErrNoPullRequest           = validation("step has no pull request")
	ErrNoActionRun             = validation("step has no workflow run")
	ErrInvalidVersion          = validation("release version is required")
	ErrInvalidWorkflowURL      = validation("invalid workflow reference")
	ErrUnknownStepType         = validation("unknown step type")
	ErrInvalidProjectName      = validation("project name is required")
)

func validation(msg string) error {
	return fmt.Errorf("%w: %s", ErrValidation, msg)
}

// stateError помечает err как ErrState, сохраняя исходную цепочку.
func stateError(err error) error {
	return fmt.Errorf("%w: %w", ErrState, err)
}
