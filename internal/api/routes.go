package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
		Actor(h.logger),
	)

	// Projects
	mux.Handle("GET /api/v1/projects", chain(http.HandlerFunc(h.ListProjects)))
	mux.Handle("POST /api/v1/projects", chain(http.HandlerFunc(h.CreateProject)))
	mux.Handle("GET /api/v1/projects/{id}", chain(http.HandlerFunc(h.GetProject)))
	mux.Handle("GET /api/v1/projects/{id}/github", chain(http.HandlerFunc(h.GetGitHubConfig)))
	mux.Handle("PUT /api/v1/projects/{id}/github", chain(http.HandlerFunc(h.PutGitHubConfig)))
	mux.Handle("POST /api/v1/projects/{id}/github/validate", chain(http.HandlerFunc(h.ValidateGitHubConfig)))

	// Releases
	mux.Handle("GET /api/v1/releases", chain(http.HandlerFunc(h.ListReleases)))
	mux.Handle("POST /api/v1/projects/{id}/releases", chain(http.HandlerFunc(h.CreateRelease)))
	mux.Handle("GET /api/v1/releases/{id}", chain(http.HandlerFunc(h.GetRelease)))
	mux.Handle("PUT /api/v1/releases/{id}/status", chain(http.HandlerFunc(h.UpdateReleaseStatus)))
	mux.Handle("GET /api/v1/releases/{id}/steps", chain(http.HandlerFunc(h.ListReleaseSteps)))
	mux.Handle("GET /api/v1/releases/{id}/progress", chain(http.HandlerFunc(h.GetReleaseProgress)))
	mux.Handle("GET /api/v1/releases/{id}/watch", chain(http.HandlerFunc(h.WatchRelease)))

	// Steps
	mux.Handle("GET /api/v1/steps/{id}", chain(http.HandlerFunc(h.GetStep)))
	mux.Handle("POST /api/v1/steps/{id}/start", chain(http.HandlerFunc(h.StartStep)))
	mux.Handle("POST /api/v1/steps/{id}/complete", chain(http.HandlerFunc(h.CompleteStep)))
	mux.Handle("POST /api/v1/steps/{id}/fail", chain(http.HandlerFunc(h.FailStep)))
	mux.Handle("POST /api/v1/steps/{id}/retry", chain(http.HandlerFunc(h.RetryStep)))
	mux.Handle("POST /api/v1/steps/{id}/skip", chain(http.HandlerFunc(h.SkipStep)))

	// GitHub actions
	mux.Handle("POST /api/v1/steps/{id}/pull-request", chain(http.HandlerFunc(h.CreatePullRequest)))
	mux.Handle("POST /api/v1/steps/{id}/pull-request/refresh", chain(http.HandlerFunc(h.RefreshPullRequest)))
	mux.Handle("POST /api/v1/steps/{id}/pull-request/merge", chain(http.HandlerFunc(h.MergePullRequest)))
	mux.Handle("POST /api/v1/steps/{id}/build", chain(http.HandlerFunc(h.TriggerBuild)))
	mux.Handle("POST /api/v1/steps/{id}/build/refresh", chain(http.HandlerFunc(h.RefreshBuild)))

	// Pipeline
	mux.Handle("GET /api/v1/pipeline", chain(http.HandlerFunc(h.GetPipeline)))
}
