package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/ReleaseTrain/internal/domain"
	"github.com/shaiso/ReleaseTrain/internal/engine"
)

// Project DTOs

// CreateProjectRequest — запрос на создание проекта.
type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// GitHubConfigRequest — запрос на сохранение GitHub конфигурации.
// Пустой access_token сохраняет текущий токен.
type GitHubConfigRequest struct {
	AppRepositoryURL    string            `json:"app_repository_url,omitempty"`
	BFFRepositoryURL    string            `json:"bff_repository_url,omitempty"`
	AccessToken         string            `json:"access_token,omitempty"`
	DefaultBaseBranch   string            `json:"default_base_branch,omitempty"`
	DefaultTargetBranch string            `json:"default_target_branch,omitempty"`
	WorkflowURLs        map[string]string `json:"workflow_urls,omitempty"`
}

// GitHubConfigResponse — конфигурация без токена.
type GitHubConfigResponse struct {
	ProjectID           uuid.UUID         `json:"project_id"`
	AppRepositoryURL    string            `json:"app_repository_url,omitempty"`
	BFFRepositoryURL    string            `json:"bff_repository_url,omitempty"`
	HasAccessToken      bool              `json:"has_access_token"`
	DefaultBaseBranch   string            `json:"default_base_branch,omitempty"`
	DefaultTargetBranch string            `json:"default_target_branch,omitempty"`
	WorkflowURLs        map[string]string `json:"workflow_urls,omitempty"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// GitHubConfigFromDomain конвертирует domain.GitHubConfig, скрывая токен.
func GitHubConfigFromDomain(c domain.GitHubConfig) GitHubConfigResponse {
	return GitHubConfigResponse{
		ProjectID:           c.ProjectID,
		AppRepositoryURL:    c.AppRepositoryURL,
		BFFRepositoryURL:    c.BFFRepositoryURL,
		HasAccessToken:      c.AccessToken != "",
		DefaultBaseBranch:   c.DefaultBaseBranch,
		DefaultTargetBranch: c.DefaultTargetBranch,
		WorkflowURLs:        c.WorkflowURLs,
		UpdatedAt:           c.UpdatedAt,
	}
}

// Release DTOs

// CreateReleaseRequest — запрос на создание релиза.
type CreateReleaseRequest struct {
	Version           string     `json:"version"`
	Title             string     `json:"title,omitempty"`
	Description       string     `json:"description,omitempty"`
	AssignedTo        string     `json:"assigned_to,omitempty"`
	TargetReleaseDate *time.Time `json:"target_release_date,omitempty"`
	Notes             string     `json:"notes,omitempty"`
}

// UpdateReleaseStatusRequest — запрос на смену статуса релиза.
type UpdateReleaseStatusRequest struct {
	Status string `json:"status"`
}

// ReleaseResponse — ответ с релизом.
type ReleaseResponse struct {
	domain.Release
	VersionLabel string `json:"version_label"`
}

// ReleaseFromDomain конвертирует domain.Release в ReleaseResponse.
func ReleaseFromDomain(r domain.Release) ReleaseResponse {
	return ReleaseResponse{Release: r, VersionLabel: r.VersionLabel()}
}

// CreateReleaseResponse — релиз вместе с созданными шагами.
type CreateReleaseResponse struct {
	Release ReleaseResponse `json:"release"`
	Steps   []StepResponse  `json:"steps"`
}

// Step DTOs

// StepActionRequest — тело для complete/fail/skip.
type StepActionRequest struct {
	// Note — комментарий (complete) или причина (fail, skip).
	Note string `json:"note,omitempty"`
}

// MergeRequest — тело для pull-request/merge.
type MergeRequest struct {
	Method string `json:"method,omitempty"`
}

// BuildRequest — тело для build.
type BuildRequest struct {
	// Ref — git ref, если в ссылке на workflow нет branch.
	Ref string `json:"ref,omitempty"`
}

// StepResponse — ответ с шагом.
type StepResponse struct {
	domain.WorkflowStep
	IsBuild bool `json:"is_build"`
}

// StepFromDomain конвертирует domain.WorkflowStep в StepResponse.
func StepFromDomain(s domain.WorkflowStep) StepResponse {
	return StepResponse{WorkflowStep: s, IsBuild: s.Type.IsBuild()}
}

// StepsFromDomain конвертирует список шагов.
func StepsFromDomain(steps []domain.WorkflowStep) []StepResponse {
	out := make([]StepResponse, len(steps))
	for i, s := range steps {
		out[i] = StepFromDomain(s)
	}
	return out
}

// Pipeline DTOs

// PipelineResponse — шаблон pipeline.
type PipelineResponse struct {
	Version              int                   `json:"version"`
	EstimatedDurationMin int                   `json:"estimated_duration_min"`
	Steps                []engine.StepTemplate `json:"steps"`
}
