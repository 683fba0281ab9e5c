package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/ReleaseTrain/internal/domain"
)

// GetStep возвращает шаг по ID.
// GET /api/v1/steps/{id}
func (h *Handler) GetStep(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid step id")
	if !ok {
		return
	}

	step, err := h.svc.GetStep(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "step not found") {
		return
	}
	Success(w, StepFromDomain(*step))
}

// StartStep переводит шаг PENDING → IN_PROGRESS.
// POST /api/v1/steps/{id}/start
func (h *Handler) StartStep(w http.ResponseWriter, r *http.Request) {
	h.stepAction(w, r, func(ctx context.Context, id uuid.UUID, _ StepActionRequest) (*domain.WorkflowStep, error) {
		return h.svc.StartStep(ctx, id)
	})
}

// RetryStep переводит шаг FAILED → IN_PROGRESS.
// POST /api/v1/steps/{id}/retry
func (h *Handler) RetryStep(w http.ResponseWriter, r *http.Request) {
	h.stepAction(w, r, func(ctx context.Context, id uuid.UUID, _ StepActionRequest) (*domain.WorkflowStep, error) {
		return h.svc.RetryStep(ctx, id)
	})
}

// CompleteStep завершает шаг.
// POST /api/v1/steps/{id}/complete
func (h *Handler) CompleteStep(w http.ResponseWriter, r *http.Request) {
	h.stepAction(w, r, func(ctx context.Context, id uuid.UUID, req StepActionRequest) (*domain.WorkflowStep, error) {
		return h.svc.CompleteStep(ctx, id, req.Note)
	})
}

// FailStep помечает шаг упавшим.
// POST /api/v1/steps/{id}/fail
func (h *Handler) FailStep(w http.ResponseWriter, r *http.Request) {
	h.stepAction(w, r, func(ctx context.Context, id uuid.UUID, req StepActionRequest) (*domain.WorkflowStep, error) {
		return h.svc.FailStep(ctx, id, req.Note)
	})
}

// SkipStep пропускает шаг.
// POST /api/v1/steps/{id}/skip
func (h *Handler) SkipStep(w http.ResponseWriter, r *http.Request) {
	h.stepAction(w, r, func(ctx context.Context, id uuid.UUID, req StepActionRequest) (*domain.WorkflowStep, error) {
		return h.svc.SkipStep(ctx, id, req.Note)
	})
}

// CreatePullRequest открывает PR для шага.
// POST /api/v1/steps/{id}/pull-request
func (h *Handler) CreatePullRequest(w http.ResponseWriter, r *http.Request) {
	h.stepAction(w, r, func(ctx context.Context, id uuid.UUID, _ StepActionRequest) (*domain.WorkflowStep, error) {
		return h.svc.CreatePullRequest(ctx, id)
	})
}

// RefreshPullRequest сверяет состояние PR с GitHub.
// POST /api/v1/steps/{id}/pull-request/refresh
func (h *Handler) RefreshPullRequest(w http.ResponseWriter, r *http.Request) {
	h.stepAction(w, r, func(ctx context.Context, id uuid.UUID, _ StepActionRequest) (*domain.WorkflowStep, error) {
		return h.svc.RefreshPullRequest(ctx, id)
	})
}

// MergePullRequest всегда отвечает отказом: слияние выполняется в GitHub UI.
// POST /api/v1/steps/{id}/pull-request/merge
func (h *Handler) MergePullRequest(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid step id")
	if !ok {
		return
	}

	var req MergeRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	err := h.svc.MergeStepPullRequest(r.Context(), id, req.Method)
	if HandleServiceError(w, h.logger, err, "step not found") {
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TriggerBuild запускает CI workflow шага.
// POST /api/v1/steps/{id}/build
func (h *Handler) TriggerBuild(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "invalid step id")
	if !ok {
		return
	}

	var req BuildRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	step, err := h.svc.TriggerBuild(r.Context(), id, req.Ref)
	if HandleServiceError(w, h.logger, err, "step not found") {
		return
	}
	Success(w, StepFromDomain(*step))
}

// RefreshBuild сверяет состояние запуска workflow с GitHub.
// POST /api/v1/steps/{id}/build/refresh
func (h *Handler) RefreshBuild(w http.ResponseWriter, r *http.Request) {
	h.stepAction(w, r, func(ctx context.Context, id uuid.UUID, _ StepActionRequest) (*domain.WorkflowStep, error) {
		return h.svc.RefreshBuild(ctx, id)
	})
}

type stepActionFunc func(ctx context.Context, id uuid.UUID, req StepActionRequest) (*domain.WorkflowStep, error)

func (h *Handler) stepAction(w http.ResponseWriter, r *http.Request, fn stepActionFunc) {
	id, ok := pathID(w, r, "invalid step id")
	if !ok {
		return
	}

	var req StepActionRequest
	if !decodeOptional(w, r, &req) {
		return
	}

	step, err := fn(r.Context(), id, req)
	if HandleServiceError(w, h.logger, err, "step not found") {
		return
	}
	Success(w, StepFromDomain(*step))
}

// decodeOptional декодирует JSON тело, допуская пустое.
func decodeOptional(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil {
		return true
	}
	err := json.NewDecoder(r.Body).Decode(dst)
	if err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return false
	}
	return true
}
