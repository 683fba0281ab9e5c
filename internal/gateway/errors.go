package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrMergeNotSupported — PR сливаются только через интерфейс GitHub.
	ErrMergeNotSupported = errors.New("merging pull requests is not supported: merge via the GitHub UI")

	// ErrMissingCredential — токен доступа не задан.
	ErrMissingCredential = errors.New("access token is not configured")

	// ErrInvalidRepository — ссылка на репозиторий не в формате owner/repo.
	ErrInvalidRepository = errors.New("invalid repository reference")
)

// APIError — неуспешный ответ GitHub.
type APIError struct {
	Op         string
	StatusCode int
	Body       string
}

// Error реализует интерфейс error.
func (e *APIError) Error() string {
	return fmt.Sprintf("github %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsStatus проверяет, что err — APIError с данным статусом.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}
