package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ProjectResponse — проект из API.
type ProjectResponse struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   string `json:"created_at" yaml:"created_at"`
}

// GitHubConfigResponse — GitHub конфигурация проекта (без токена).
type GitHubConfigResponse struct {
	ProjectID           string            `json:"project_id" yaml:"project_id"`
	AppRepositoryURL    string            `json:"app_repository_url,omitempty" yaml:"app_repository_url,omitempty"`
	BFFRepositoryURL    string            `json:"bff_repository_url,omitempty" yaml:"bff_repository_url,omitempty"`
	HasAccessToken      bool              `json:"has_access_token" yaml:"has_access_token"`
	DefaultBaseBranch   string            `json:"default_base_branch,omitempty" yaml:"default_base_branch,omitempty"`
	DefaultTargetBranch string            `json:"default_target_branch,omitempty" yaml:"default_target_branch,omitempty"`
	WorkflowURLs        map[string]string `json:"workflow_urls,omitempty" yaml:"workflow_urls,omitempty"`
	UpdatedAt           string            `json:"updated_at" yaml:"updated_at"`
}

// ConfigValidationResponse — результат проверки GitHub конфигурации.
type ConfigValidationResponse struct {
	CredentialValid    bool  `json:"credential_valid" yaml:"credential_valid"`
	AppRepositoryValid *bool `json:"app_repository_valid,omitempty" yaml:"app_repository_valid,omitempty"`
	BFFRepositoryValid *bool `json:"bff_repository_valid,omitempty" yaml:"bff_repository_valid,omitempty"`
}

// ReleaseResponse — релиз из API.
type ReleaseResponse struct {
	ID                string `json:"id" yaml:"id"`
	ProjectID         string `json:"project_id" yaml:"project_id"`
	Version           string `json:"version" yaml:"version"`
	VersionLabel      string `json:"version_label" yaml:"version_label"`
	Title             string `json:"title" yaml:"title"`
	Description       string `json:"description,omitempty" yaml:"description,omitempty"`
	Status            string `json:"status" yaml:"status"`
	CreatedBy         string `json:"created_by,omitempty" yaml:"created_by,omitempty"`
	AssignedTo        string `json:"assigned_to,omitempty" yaml:"assigned_to,omitempty"`
	TargetReleaseDate string `json:"target_release_date,omitempty" yaml:"target_release_date,omitempty"`
	Notes             string `json:"notes,omitempty" yaml:"notes,omitempty"`
	CreatedAt         string `json:"created_at" yaml:"created_at"`
}

// StepResponse — шаг релиза из API.
type StepResponse struct {
	ID                   string `json:"id" yaml:"id"`
	ReleaseID            string `json:"release_id" yaml:"release_id"`
	StepNumber           int    `json:"step_number" yaml:"step_number"`
	Type                 string `json:"type" yaml:"type"`
	Title                string `json:"title" yaml:"title"`
	Status               string `json:"status" yaml:"status"`
	IsRequired           bool   `json:"is_required" yaml:"is_required"`
	IsBuild              bool   `json:"is_build" yaml:"is_build"`
	CompletedBy          string `json:"completed_by,omitempty" yaml:"completed_by,omitempty"`
	Notes                string `json:"notes,omitempty" yaml:"notes,omitempty"`
	EstimatedDurationMin int    `json:"estimated_duration_min,omitempty" yaml:"estimated_duration_min,omitempty"`
	RepositoryType       string `json:"repository_type,omitempty" yaml:"repository_type,omitempty"`
	SourceBranch         string `json:"source_branch,omitempty" yaml:"source_branch,omitempty"`
	TargetBranch         string `json:"target_branch,omitempty" yaml:"target_branch,omitempty"`
	GitHubPRNumber       *int   `json:"github_pr_number,omitempty" yaml:"github_pr_number,omitempty"`
	GitHubPRURL          string `json:"github_pr_url,omitempty" yaml:"github_pr_url,omitempty"`
	GitHubPRState        string `json:"github_pr_state,omitempty" yaml:"github_pr_state,omitempty"`
	ActionRunID          *int64 `json:"action_run_id,omitempty" yaml:"action_run_id,omitempty"`
	ActionURL            string `json:"action_url,omitempty" yaml:"action_url,omitempty"`
	ActionStatus         string `json:"action_status,omitempty" yaml:"action_status,omitempty"`
	ActionConclusion     string `json:"action_conclusion,omitempty" yaml:"action_conclusion,omitempty"`
	ActionRef            string `json:"action_ref,omitempty" yaml:"action_ref,omitempty"`
}

// Link возвращает ссылку на PR или workflow run шага.
func (s StepResponse) Link() string {
	if s.GitHubPRURL != "" {
		return s.GitHubPRURL
	}
	return s.ActionURL
}

// CreateReleaseResponse — релиз вместе с шагами.
type CreateReleaseResponse struct {
	Release ReleaseResponse `json:"release" yaml:"release"`
	Steps   []StepResponse  `json:"steps" yaml:"steps"`
}

// ProgressResponse — прогресс релиза.
type ProgressResponse struct {
	ReleaseID    string         `json:"release_id" yaml:"release_id"`
	Total        int            `json:"total" yaml:"total"`
	Counts       map[string]int `json:"counts" yaml:"counts"`
	Done         int            `json:"done" yaml:"done"`
	Percent      float64        `json:"percent" yaml:"percent"`
	RemainingMin int            `json:"remaining_min" yaml:"remaining_min"`
	Next         *StepResponse  `json:"next,omitempty" yaml:"next,omitempty"`
}

// PipelineStep — запись шаблона pipeline.
type PipelineStep struct {
	StepNumber           int    `json:"step_number" yaml:"step_number"`
	Type                 string `json:"type" yaml:"type"`
	Title                string `json:"title" yaml:"title"`
	IsRequired           bool   `json:"is_required" yaml:"is_required"`
	EstimatedDurationMin int    `json:"estimated_duration_min" yaml:"estimated_duration_min"`
	RepositoryType       string `json:"repository_type,omitempty" yaml:"repository_type,omitempty"`
	SourceBranch         string `json:"source_branch,omitempty" yaml:"source_branch,omitempty"`
	TargetBranch         string `json:"target_branch,omitempty" yaml:"target_branch,omitempty"`
}

// PipelineResponse — шаблон pipeline.
type PipelineResponse struct {
	Version              int            `json:"version" yaml:"version"`
	EstimatedDurationMin int            `json:"estimated_duration_min" yaml:"estimated_duration_min"`
	Steps                []PipelineStep `json:"steps" yaml:"steps"`
}

// --- Request types ---

// GitHubConfigRequest — сохранение GitHub конфигурации.
// Этот же формат читается из YAML файла (config set --file).
type GitHubConfigRequest struct {
	AppRepositoryURL    string            `json:"app_repository_url,omitempty" yaml:"app_repository_url"`
	BFFRepositoryURL    string            `json:"bff_repository_url,omitempty" yaml:"bff_repository_url"`
	AccessToken         string            `json:"access_token,omitempty" yaml:"access_token"`
	DefaultBaseBranch   string            `json:"default_base_branch,omitempty" yaml:"default_base_branch"`
	DefaultTargetBranch string            `json:"default_target_branch,omitempty" yaml:"default_target_branch"`
	WorkflowURLs        map[string]string `json:"workflow_urls,omitempty" yaml:"workflow_urls"`
}

// CreateReleaseRequest — создание релиза.
type CreateReleaseRequest struct {
	Version           string `json:"version"`
	Title             string `json:"title,omitempty"`
	Description       string `json:"description,omitempty"`
	AssignedTo        string `json:"assigned_to,omitempty"`
	TargetReleaseDate string `json:"target_release_date,omitempty"`
	Notes             string `json:"notes,omitempty"`
}

// ListReleasesOpts — параметры фильтрации релизов.
type ListReleasesOpts struct {
	ProjectID string
	Status    string
	Limit     int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// ActorHeader — заголовок с именем пользователя.
const ActorHeader = "X-ReleaseTrain-Actor"

// Client — HTTP-клиент для ReleaseTrain API.
type Client struct {
	baseURL    string
	actor      string
	httpClient *http.Client
}

// NewClient создаёт клиент для API. actor передаётся в каждом запросе.
func NewClient(baseURL, actor string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		actor:   actor,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Projects ---

// ListProjects возвращает все проекты.
func (c *Client) ListProjects() ([]ProjectResponse, error) {
	var projects []ProjectResponse
	err := c.list("/api/v1/projects", nil, &projects)
	return projects, err
}

// CreateProject создаёт проект.
func (c *Client) CreateProject(name, description string) (*ProjectResponse, error) {
	body := map[string]string{"name": name, "description": description}
	var project ProjectResponse
	err := c.post("/api/v1/projects", body, &project)
	return &project, err
}

// GetProject возвращает проект по ID.
func (c *Client) GetProject(id string) (*ProjectResponse, error) {
	var project ProjectResponse
	err := c.get("/api/v1/projects/"+id, &project)
	return &project, err
}

// GetGitHubConfig возвращает GitHub конфигурацию проекта.
func (c *Client) GetGitHubConfig(projectID string) (*GitHubConfigResponse, error) {
	var cfg GitHubConfigResponse
	err := c.get("/api/v1/projects/"+projectID+"/github", &cfg)
	return &cfg, err
}

// SetGitHubConfig сохраняет GitHub конфигурацию проекта.
func (c *Client) SetGitHubConfig(projectID string, req GitHubConfigRequest) (*GitHubConfigResponse, error) {
	var cfg GitHubConfigResponse
	err := c.put("/api/v1/projects/"+projectID+"/github", req, &cfg)
	return &cfg, err
}

// ValidateGitHubConfig проверяет токен и репозитории проекта.
func (c *Client) ValidateGitHubConfig(projectID string) (*ConfigValidationResponse, error) {
	var res ConfigValidationResponse
	err := c.post("/api/v1/projects/"+projectID+"/github/validate", nil, &res)
	return &res, err
}

// --- Releases ---

// ListReleases возвращает релизы с фильтрацией.
func (c *Client) ListReleases(opts ListReleasesOpts) ([]ReleaseResponse, error) {
	params := url.Values{}
	if opts.ProjectID != "" {
		params.Set("project_id", opts.ProjectID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	var releases []ReleaseResponse
	err := c.list("/api/v1/releases", params, &releases)
	return releases, err
}

// CreateRelease создаёт релиз проекта.
func (c *Client) CreateRelease(projectID string, req CreateReleaseRequest) (*CreateReleaseResponse, error) {
	var created CreateReleaseResponse
	err := c.post("/api/v1/projects/"+projectID+"/releases", req, &created)
	return &created, err
}

// GetRelease возвращает релиз по ID.
func (c *Client) GetRelease(id string) (*ReleaseResponse, error) {
	var rel ReleaseResponse
	err := c.get("/api/v1/releases/"+id, &rel)
	return &rel, err
}

// UpdateReleaseStatus меняет статус релиза.
func (c *Client) UpdateReleaseStatus(id, status string) (*ReleaseResponse, error) {
	var rel ReleaseResponse
	err := c.put("/api/v1/releases/"+id+"/status", map[string]string{"status": status}, &rel)
	return &rel, err
}

// ReleaseProgress возвращает прогресс релиза.
func (c *Client) ReleaseProgress(id string) (*ProgressResponse, error) {
	var p ProgressResponse
	err := c.get("/api/v1/releases/"+id+"/progress", &p)
	return &p, err
}

// ListSteps возвращает шаги релиза.
func (c *Client) ListSteps(releaseID string) ([]StepResponse, error) {
	var steps []StepResponse
	err := c.list("/api/v1/releases/"+releaseID+"/steps", nil, &steps)
	return steps, err
}

// WatchSteps читает SSE ленту релиза и вызывает fn для каждого снимка.
// Возвращает nil при отмене ctx.
func (c *Client) WatchSteps(ctx context.Context, releaseID string, fn func([]StepResponse) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/releases/"+releaseID+"/watch", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// Без таймаута: поток живёт до отмены ctx
	resp, err := (&http.Client{Transport: c.httpClient.Transport}).Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64<<10), 4<<20)
	for scanner.Scan() {
		line := scanner.Text()
		data, ok := strings.CutPrefix(line, "data: ")
		if !ok {
			continue
		}
		var steps []StepResponse
		if err := json.Unmarshal([]byte(data), &steps); err != nil {
			return fmt.Errorf("failed to decode event: %w", err)
		}
		if err := fn(steps); err != nil {
			return err
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	return scanner.Err()
}

// --- Steps ---

// GetStep возвращает шаг по ID.
func (c *Client) GetStep(id string) (*StepResponse, error) {
	var step StepResponse
	err := c.get("/api/v1/steps/"+id, &step)
	return &step, err
}

// StepAction выполняет действие над шагом (start, complete, fail, retry, skip,
// pull-request, pull-request/refresh, build/refresh).
func (c *Client) StepAction(id, action, note string) (*StepResponse, error) {
	var body any
	if note != "" {
		body = map[string]string{"note": note}
	}
	var step StepResponse
	err := c.post("/api/v1/steps/"+id+"/"+action, body, &step)
	return &step, err
}

// TriggerBuild запускает CI workflow шага.
func (c *Client) TriggerBuild(id, ref string) (*StepResponse, error) {
	var body any
	if ref != "" {
		body = map[string]string{"ref": ref}
	}
	var step StepResponse
	err := c.post("/api/v1/steps/"+id+"/build", body, &step)
	return &step, err
}

// MergePullRequest запрашивает слияние PR шага.
func (c *Client) MergePullRequest(id, method string) error {
	return c.post("/api/v1/steps/"+id+"/pull-request/merge", map[string]string{"method": method}, nil)
}

// --- Pipeline ---

// GetPipeline возвращает шаблон pipeline.
func (c *Client) GetPipeline() (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.get("/api/v1/pipeline", &p)
	return &p, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.actor != "" {
		req.Header.Set(ActorHeader, c.actor)
	}

	return c.httpClient.Do(req)
}

// APIError — ошибка, которую вернул API.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return &APIError{StatusCode: resp.StatusCode}
	}

	return &APIError{StatusCode: resp.StatusCode, Code: er.Error.Code, Message: er.Error.Message}
}
