package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/ReleaseTrain/internal/domain"
	"github.com/shaiso/ReleaseTrain/internal/engine"
	"github.com/shaiso/ReleaseTrain/internal/orchestrator"
	"github.com/shaiso/ReleaseTrain/internal/repo"
)

// ListReleases возвращает список релизов с фильтрацией.
// GET /api/v1/releases?project_id=...&status=...&limit=...&offset=...
func (h *Handler) ListReleases(w http.ResponseWriter, r *http.Request) {
	filter := repo.ReleaseFilter{Limit: 50}

	q := r.URL.Query()
	if s := q.Get("project_id"); s != "" {
		projectID, err := uuid.Parse(s)
		if err != nil {
			BadRequest(w, "invalid project_id")
			return
		}
		filter.ProjectID = &projectID
	}
	filter.Status = q.Get("status")

	var ok bool
	if filter.Limit, ok = intParam(w, q.Get("limit"), "limit", 50); !ok {
		return
	}
	if filter.Offset, ok = intParam(w, q.Get("offset"), "offset", 0); !ok {
		return
	}

	releases, err := h.svc.ListReleases(r.Context(), filter)
	if HandleServiceError(w, h.logger, err, "") {
		return
	}

	result := make([]ReleaseResponse, len(releases))
	for i, rel := range releases {
		result[i] = ReleaseFromDomain(rel)
	}
	List(w, result, len(result))
}

// CreateRelease создаёт релиз проекта с шагами шаблона.
// POST /api/v1/projects/{id}/releases
func (h *Handler) CreateRelease(w http.ResponseWriter, r *http.Request) {
	projectID, ok := pathID(w, r, "invalid project id")
	if !ok {
		return
	}

	var req CreateReleaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	rel, steps, err := h.svc.CreateRelease(r.Context(), orchestrator.CreateReleaseInput{
		ProjectID:         projectID,
		Version:           req.Version,
		Title:             req.Title,
		Description:       req.Description,
		AssignedTo:        req.AssignedTo,
		TargetReleaseDate: req.TargetReleaseDate,
		Notes:             req.Notes,
	})
	if HandleServiceError(w, h.logger, err, "project not found") {
		return
	}

	Created(w, CreateReleaseResponse{
		Release: ReleaseFromDomain(*rel),
		Steps:   StepsFromDomain(steps),
	})
}

// GetRelease возвращает релиз по ID.
// GET /api/v1/releases/{id}
func (h *Handler) GetRelease(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid release id")
	if !ok {
		return
	}

	rel, err := h.svc.GetRelease(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "release not found") {
		return
	}
	Success(w, ReleaseFromDomain(*rel))
}

// UpdateReleaseStatus меняет статус релиза.
// PUT /api/v1/releases/{id}/status
func (h *Handler) UpdateReleaseStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid release id")
	if !ok {
		return
	}

	var req UpdateReleaseStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}
	status, valid := domain.ParseReleaseStatus(req.Status)
	if !valid {
		BadRequest(w, "invalid status: "+req.Status)
		return
	}

	rel, err := h.svc.UpdateReleaseStatus(r.Context(), id, status)
	if HandleServiceError(w, h.logger, err, "release not found") {
		return
	}
	Success(w, ReleaseFromDomain(*rel))
}

// ListReleaseSteps возвращает шаги релиза.
// GET /api/v1/releases/{id}/steps
func (h *Handler) ListReleaseSteps(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid release id")
	if !ok {
		return
	}

	steps, err := h.svc.ListSteps(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "release not found") {
		return
	}
	result := StepsFromDomain(steps)
	List(w, result, len(result))
}

// GetReleaseProgress возвращает прогресс релиза.
// GET /api/v1/releases/{id}/progress
func (h *Handler) GetReleaseProgress(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid release id")
	if !ok {
		return
	}

	progress, err := h.svc.ReleaseProgress(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "release not found") {
		return
	}
	Success(w, progress)
}

// GetPipeline возвращает шаблон pipeline.
// GET /api/v1/pipeline
func (h *Handler) GetPipeline(w http.ResponseWriter, _ *http.Request) {
	Success(w, PipelineResponse{
		Version:              engine.PipelineTemplateVersion,
		EstimatedDurationMin: int(engine.EstimatedPipelineDuration().Minutes()),
		Steps:                engine.DefaultPipeline(),
	})
}

// intParam парсит неотрицательное целое из query. При ошибке отвечает 400.
func intParam(w http.ResponseWriter, s, name string, def int) (int, bool) {
	if s == "" {
		return def, true
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		BadRequest(w, "invalid "+name)
		return 0, false
	}
	return n, true
}
