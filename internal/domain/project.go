package domain

import (
	"time"

	"github.com/google/uuid"
)

// Project — мобильное приложение, для которого ведутся релизы.
type Project struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// GitHubConfig — настройки интеграции с GitHub (одна на проект).
//
// Создаётся и изменяется администратором проекта,
// читается оркестратором при каждом действии над шагом.
type GitHubConfig struct {
	// ProjectID — проект, к которому относится конфигурация.
	ProjectID uuid.UUID `json:"project_id"`

	// AppRepositoryURL — репозиторий приложения ("owner/repo" или URL).
	AppRepositoryURL string `json:"app_repository_url,omitempty"`

	// BFFRepositoryURL — репозиторий BFF ("owner/repo" или URL).
	BFFRepositoryURL string `json:"bff_repository_url,omitempty"`

	// AccessToken — токен доступа к GitHub API.
	AccessToken string `json:"access_token,omitempty"`

	// DefaultBaseBranch — ветка-источник PR по умолчанию (head).
	DefaultBaseBranch string `json:"default_base_branch,omitempty"`

	// DefaultTargetBranch — целевая ветка PR по умолчанию (base).
	DefaultTargetBranch string `json:"default_target_branch,omitempty"`

	// WorkflowURLs — ссылка на CI workflow для каждого вида шага.
	// Ключ — имя StepType, значение — сырая строка ссылки:
	//   "owner/repo/build.yml?branch=release&version={{release.version}}"
	WorkflowURLs map[string]string `json:"workflow_urls,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// RepositoryURL возвращает настроенный репозиторий для типа.
func (c *GitHubConfig) RepositoryURL(repoType RepositoryType) string {
	if c == nil {
		return ""
	}
	switch repoType {
	case RepositoryApp:
		return c.AppRepositoryURL
	case RepositoryBFF:
		return c.BFFRepositoryURL
	default:
		return ""
	}
}

// WorkflowURL возвращает сырую ссылку на workflow для вида шага.
func (c *GitHubConfig) WorkflowURL(stepType StepType) (string, bool) {
	if c == nil || c.WorkflowURLs == nil {
		return "", false
	}
	raw, ok := c.WorkflowURLs[string(stepType)]
	return raw, ok && raw != ""
}
