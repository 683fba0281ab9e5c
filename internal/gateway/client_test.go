package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/ReleaseTrain/internal/domain"
)

func noBackoff(int) time.Duration { return 0 }

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return New(Config{
		BaseURL:    srv.URL,
		WebURL:     "https://github.example",
		MaxRetries: 2,
		Backoff:    noBackoff,
		Timeout:    5 * time.Second,
	})
}

func TestCreatePullRequest(t *testing.T) {
	var got PullRequestInput
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/app/pulls", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github+json", r.Header.Get("Accept"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id":9,"number":42,"title":"t","state":"open",
			"htmlUrl":"https://github.com/acme/app/pull/42",
			"head":{"ref":"develop"},"base":{"ref":"release"}}`)
	})

	c := newTestClient(t, mux)
	pr, err := c.CreatePullRequest(context.Background(), "https://github.com/acme/app.git", "secret", PullRequestInput{
		Title: "Release v1.0.0",
		Head:  "develop",
		Base:  "release",
	})
	require.NoError(t, err)

	assert.Equal(t, "develop", got.Head)
	assert.Equal(t, "release", got.Base)
	assert.Equal(t, 42, pr.Number)
	assert.Equal(t, "https://github.com/acme/app/pull/42", pr.HTMLURL, "htmlUrl should be accepted")
	assert.Equal(t, "develop", pr.HeadRef)
	assert.Equal(t, domain.PRStateOpen, pr.EffectiveState())
}

func TestCreatePullRequest_APIError(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/app/pulls", func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"message":"A pull request already exists"}`)
	})

	c := newTestClient(t, mux)
	_, err := c.CreatePullRequest(context.Background(), "acme/app", "secret", PullRequestInput{})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "already exists")
	assert.Equal(t, 1, calls, "POST must not be retried")
}

func TestGetPullRequest_Merged(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/app/pulls/42", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"number":42,"state":"closed","merged":true,"html_url":"https://github.com/acme/app/pull/42"}`)
	})

	c := newTestClient(t, mux)
	pr, err := c.GetPullRequest(context.Background(), "acme/app", "secret", 42)
	require.NoError(t, err)
	assert.Equal(t, domain.PRStateMerged, pr.EffectiveState())
}

func TestGetPullRequest_RetriesServerErrors(t *testing.T) {
	calls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/app/pulls/1", func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, `{"number":1,"state":"open"}`)
	})

	c := newTestClient(t, mux)
	pr, err := c.GetPullRequest(context.Background(), "acme/app", "secret", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, pr.Number)
	assert.Equal(t, 2, calls)
}

func TestMergePullRequest_AlwaysRefused(t *testing.T) {
	c := New(Config{})
	for _, method := range []string{"merge", "squash", "rebase", ""} {
		err := c.MergePullRequest(context.Background(), "acme/app", "secret", 1, method)
		assert.ErrorIs(t, err, ErrMergeNotSupported)
		assert.Contains(t, err.Error(), "GitHub UI")
	}
}

func TestDispatchWorkflow_FindsRun(t *testing.T) {
	var payload dispatchPayload
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/app/actions/workflows/build.yml/dispatches", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /repos/acme/app/actions/workflows/build.yml/runs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "workflow_dispatch", r.URL.Query().Get("event"))
		assert.Equal(t, "release", r.URL.Query().Get("branch"))
		json.NewEncoder(w).Encode(map[string]any{
			"total_count": 1,
			"workflow_runs": []map[string]any{{
				"id":         int64(777),
				"status":     "in_progress",
				"html_url":   "https://github.com/acme/app/actions/runs/777",
				"created_at": time.Now().UTC().Format(time.RFC3339),
			}},
		})
	})

	c := newTestClient(t, mux)
	run, err := c.DispatchWorkflow(context.Background(), "acme/app", "secret", DispatchInput{
		WorkflowID: "build.yml",
		Ref:        "release",
		Inputs:     map[string]string{"flavor": "qa"},
	})
	require.NoError(t, err)

	assert.Equal(t, "release", payload.Ref)
	assert.Equal(t, map[string]string{"flavor": "qa"}, payload.Inputs)
	assert.Equal(t, int64(777), run.ID)
	assert.Equal(t, domain.RunStatusInProgress, run.Status)
	assert.Empty(t, run.Conclusion)
}

func TestDispatchWorkflow_RunNotVisibleYet(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/app/actions/workflows/12/dispatches", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /repos/acme/app/actions/workflows/12/runs", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"total_count":0,"workflow_runs":[]}`)
	})

	c := newTestClient(t, mux)
	run, err := c.DispatchWorkflow(context.Background(), "acme/app", "secret", DispatchInput{WorkflowID: "12", Ref: "release"})
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusQueued, run.Status)
	assert.Equal(t, "https://github.example/acme/app/actions/workflows/12", run.HTMLURL)
	assert.Zero(t, run.ID)
}

func runsHandler(runs ...map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"total_count":   len(runs),
			"workflow_runs": runs,
		})
	}
}

func TestDispatchWorkflow_IgnoresOlderRuns(t *testing.T) {
	now := time.Now().UTC()
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/app/actions/workflows/build.yml/dispatches", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /repos/acme/app/actions/workflows/build.yml/runs", runsHandler(map[string]any{
		"id":         int64(111),
		"status":     "completed",
		"conclusion": "failure",
		"created_at": now.Add(-30 * time.Second).Format(time.RFC3339),
	}))

	c := newTestClient(t, mux)
	run, err := c.DispatchWorkflow(context.Background(), "acme/app", "secret", DispatchInput{WorkflowID: "build.yml", Ref: "release"})
	require.NoError(t, err)

	assert.Zero(t, run.ID, "a run created before the dispatch must not be taken as the new one")
	assert.Equal(t, domain.RunStatusQueued, run.Status)
	assert.Empty(t, run.Conclusion)
}

func TestDispatchWorkflow_SkipsPreviousAndCompletedRuns(t *testing.T) {
	created := time.Now().UTC().Add(time.Second).Format(time.RFC3339)
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/app/actions/workflows/build.yml/dispatches", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /repos/acme/app/actions/workflows/build.yml/runs", runsHandler(
		map[string]any{"id": int64(303), "status": "queued", "created_at": created},
		map[string]any{"id": int64(302), "status": "completed", "conclusion": "failure", "created_at": created},
		map[string]any{"id": int64(301), "status": "in_progress", "created_at": created},
	))

	c := newTestClient(t, mux)
	run, err := c.DispatchWorkflow(context.Background(), "acme/app", "secret", DispatchInput{
		WorkflowID:    "build.yml",
		Ref:           "release",
		PreviousRunID: 301,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(303), run.ID)
}

func TestFindDispatchedRun(t *testing.T) {
	since := time.Now().UTC().Add(-10 * time.Minute)
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/app/actions/workflows/build.yml/runs", runsHandler(
		map[string]any{"id": int64(12), "status": "completed", "conclusion": "success", "created_at": since.Add(2 * time.Minute).Format(time.RFC3339)},
		map[string]any{"id": int64(11), "status": "completed", "conclusion": "failure", "created_at": since.Add(-time.Hour).Format(time.RFC3339)},
	))
	c := newTestClient(t, mux)

	t.Run("completed run after dispatch", func(t *testing.T) {
		run, err := c.FindDispatchedRun(context.Background(), "acme/app", "secret", RunLookup{
			WorkflowID: "build.yml",
			Ref:        "release",
			Since:      since,
		})
		require.NoError(t, err)
		require.NotNil(t, run)
		assert.Equal(t, int64(12), run.ID)
		assert.True(t, run.Succeeded())
	})

	t.Run("nothing newer", func(t *testing.T) {
		run, err := c.FindDispatchedRun(context.Background(), "acme/app", "secret", RunLookup{
			WorkflowID: "build.yml",
			Ref:        "release",
			Since:      since.Add(5 * time.Minute),
		})
		require.NoError(t, err)
		assert.Nil(t, run)
	})

	t.Run("empty workflow", func(t *testing.T) {
		_, err := c.FindDispatchedRun(context.Background(), "acme/app", "secret", RunLookup{})
		assert.Error(t, err)
	})
}

func TestDispatchWorkflow_Rejected(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /repos/acme/app/actions/workflows/12/dispatches", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"message":"Not Found"}`)
	})

	c := newTestClient(t, mux)
	_, err := c.DispatchWorkflow(context.Background(), "acme/app", "secret", DispatchInput{WorkflowID: "12", Ref: "release"})
	assert.True(t, IsStatus(err, http.StatusNotFound))
}

func TestGetWorkflowRun(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/acme/app/actions/runs/5", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id":5,"status":"completed","conclusion":"success","html_url":"u"}`)
	})

	c := newTestClient(t, mux)
	run, err := c.GetWorkflowRun(context.Background(), "acme/app", "secret", 5)
	require.NoError(t, err)
	assert.True(t, run.Succeeded())
}

func TestValidate(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer good" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		io.WriteString(w, `{"login":"octocat"}`)
	})
	mux.HandleFunc("GET /repos/acme/app", func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"full_name":"acme/app"}`)
	})
	mux.HandleFunc("GET /repos/acme/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("GET /repos/acme/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	c := newTestClient(t, mux)
	ctx := context.Background()

	ok, err := c.ValidateCredential(ctx, "good")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.ValidateCredential(ctx, "bad")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.ValidateCredential(ctx, "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.ValidateRepository(ctx, "acme/app", "good")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = c.ValidateRepository(ctx, "acme/missing", "good")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = c.ValidateRepository(ctx, "not-a-repo", "good")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = c.ValidateRepository(ctx, "acme/broken", "good")
	assert.Error(t, err)
}

func TestDo_MissingCredential(t *testing.T) {
	c := New(Config{BaseURL: "http://127.0.0.1:1"})
	_, err := c.GetPullRequest(context.Background(), "acme/app", "", 1)
	assert.True(t, errors.Is(err, ErrMissingCredential))
}
