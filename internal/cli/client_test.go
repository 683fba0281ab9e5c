package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_ListReleases(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/releases", r.URL.Path)
		assert.Equal(t, "p1", r.URL.Query().Get("project_id"))
		assert.Equal(t, "DRAFT", r.URL.Query().Get("status"))
		assert.Equal(t, "bob", r.Header.Get(ActorHeader))
		io.WriteString(w, `{"data":[{"id":"r1","version":"1.0.0","version_label":"v1.0.0","status":"DRAFT"}],"total":1}`)
	}))
	defer srv.Close()

	releases, err := NewClient(srv.URL+"/", "bob").ListReleases(ListReleasesOpts{ProjectID: "p1", Status: "DRAFT"})
	require.NoError(t, err)
	require.Len(t, releases, 1)
	assert.Equal(t, "v1.0.0", releases[0].VersionLabel)
}

func TestClient_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"error":{"code":"MERGE_NOT_SUPPORTED","message":"merge via the GitHub UI"}}`)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "").MergePullRequest("s1", "squash")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "MERGE_NOT_SUPPORTED", apiErr.Code)
	assert.Equal(t, "MERGE_NOT_SUPPORTED: merge via the GitHub UI", err.Error())
}

func TestClient_StepAction(t *testing.T) {
	var body map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/steps/s1/skip", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		io.WriteString(w, `{"data":{"id":"s1","step_number":29,"status":"SKIPPED","notes":"not needed"}}`)
	}))
	defer srv.Close()

	step, err := NewClient(srv.URL, "").StepAction("s1", "skip", "not needed")
	require.NoError(t, err)
	assert.Equal(t, "not needed", body["note"])
	assert.Equal(t, "SKIPPED", step.Status)
}

func TestClient_WatchSteps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/releases/r1/watch", r.URL.Path)
		w.Header().Set("Content-Type", "text/event-stream")
		for _, status := range []string{"PENDING", "IN_PROGRESS"} {
			fmt.Fprintf(w, "event: steps\ndata: [{\"id\":\"s1\",\"step_number\":1,\"status\":%q}]\n\n", status)
		}
	}))
	defer srv.Close()

	var got []string
	err := NewClient(srv.URL, "").WatchSteps(context.Background(), "r1", func(steps []StepResponse) error {
		got = append(got, steps[0].Status)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"PENDING", "IN_PROGRESS"}, got)
}

func TestLoadGitHubConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "github.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
app_repository_url: acme/app
default_base_branch: release
workflow_urls:
  FUNCTIONAL_BUILD_AND_SHARE: acme/app/build.yml?branch=release
`), 0o600))

	req, err := LoadGitHubConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "acme/app", req.AppRepositoryURL)
	assert.Equal(t, "release", req.DefaultBaseBranch)
	assert.Equal(t, "acme/app/build.yml?branch=release", req.WorkflowURLs["FUNCTIONAL_BUILD_AND_SHARE"])

	_, err = LoadGitHubConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatTable, f)

	f, err = ParseFormat("yaml")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestOutput_Formats(t *testing.T) {
	step := StepResponse{ID: "s1", StepNumber: 1, Title: "Code freeze", Status: "COMPLETED"}

	var buf bytes.Buffer
	out := &Output{format: FormatYAML, w: &buf, errW: io.Discard}
	out.Print(stepHeaders, [][]string{stepRow(out, step)}, step)
	assert.Contains(t, buf.String(), "status: COMPLETED")

	buf.Reset()
	out = &Output{format: FormatJSON, w: &buf, errW: io.Discard}
	out.Print(stepHeaders, [][]string{stepRow(out, step)}, step)
	assert.Contains(t, buf.String(), `"status": "COMPLETED"`)

	buf.Reset()
	out = &Output{format: FormatTable, w: &buf, errW: io.Discard}
	printSteps(out, []StepResponse{step})
	assert.Contains(t, buf.String(), "Code freeze")
	assert.Contains(t, buf.String(), "TITLE")
}
