package api

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/ReleaseTrain/internal/domain"
)

// ListProjects возвращает все проекты.
// GET /api/v1/projects
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	projects, err := h.svc.ListProjects(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}
	if projects == nil {
		projects = []domain.Project{}
	}
	List(w, projects, len(projects))
}

// CreateProject создаёт проект.
// POST /api/v1/projects
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	project, err := h.svc.CreateProject(r.Context(), req.Name, req.Description)
	if HandleServiceError(w, h.logger, err, "") {
		return
	}
	Created(w, project)
}

// GetProject возвращает проект по ID.
// GET /api/v1/projects/{id}
func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid project id")
	if !ok {
		return
	}

	project, err := h.svc.GetProject(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "project not found") {
		return
	}
	Success(w, project)
}

// GetGitHubConfig возвращает GitHub конфигурацию проекта без токена.
// GET /api/v1/projects/{id}/github
func (h *Handler) GetGitHubConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid project id")
	if !ok {
		return
	}

	cfg, err := h.svc.GetGitHubConfig(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "github config not found") {
		return
	}
	Success(w, GitHubConfigFromDomain(*cfg))
}

// PutGitHubConfig сохраняет GitHub конфигурацию проекта.
// PUT /api/v1/projects/{id}/github
func (h *Handler) PutGitHubConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid project id")
	if !ok {
		return
	}

	var req GitHubConfigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	saved, err := h.svc.SetGitHubConfig(r.Context(), &domain.GitHubConfig{
		ProjectID:           id,
		AppRepositoryURL:    req.AppRepositoryURL,
		BFFRepositoryURL:    req.BFFRepositoryURL,
		AccessToken:         req.AccessToken,
		DefaultBaseBranch:   req.DefaultBaseBranch,
		DefaultTargetBranch: req.DefaultTargetBranch,
		WorkflowURLs:        req.WorkflowURLs,
	})
	if HandleServiceError(w, h.logger, err, "project not found") {
		return
	}
	Success(w, GitHubConfigFromDomain(*saved))
}

// ValidateGitHubConfig проверяет токен и репозитории проекта.
// POST /api/v1/projects/{id}/github/validate
func (h *Handler) ValidateGitHubConfig(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid project id")
	if !ok {
		return
	}

	res, err := h.svc.ValidateGitHubConfig(r.Context(), id)
	if HandleServiceError(w, h.logger, err, "project not found") {
		return
	}
	Success(w, res)
}

// pathID парсит {id} из пути. При ошибке отвечает 400.
func pathID(w http.ResponseWriter, r *http.Request, msg string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, msg)
		return uuid.Nil, false
	}
	return id, true
}
