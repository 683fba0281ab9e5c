package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethgrid/pester"
	"golang.org/x/oauth2"

	"github.com/shaiso/ReleaseTrain/internal/domain"
	"github.com/shaiso/ReleaseTrain/internal/engine"
	"github.com/shaiso/ReleaseTrain/internal/telemetry"
)

const (
	defaultBaseURL    = "https://api.github.com"
	defaultWebURL     = "https://github.com"
	defaultTimeout    = 15 * time.Second
	defaultMaxRetries = 3
	defaultRunSkew    = 5 * time.Second
	apiVersion        = "2022-11-28"
	maxErrorBody      = 4 << 10
)

// Config — конфигурация клиента GitHub.
type Config struct {
	// BaseURL — адрес REST API (по умолчанию https://api.github.com).
	BaseURL string

	// WebURL — адрес веб-интерфейса для ссылок (по умолчанию https://github.com).
	WebURL string

	// Timeout — таймаут одного запроса.
	Timeout time.Duration

	// MaxRetries — число попыток для GET запросов. POST не повторяется.
	MaxRetries int

	// Backoff — стратегия задержки между попытками.
	Backoff pester.BackoffStrategy

	// Transport — базовый транспорт (для тестов).
	Transport http.RoundTripper

	// RunLookupSkew — допустимое расхождение часов при поиске
	// только что запущенного workflow run.
	RunLookupSkew time.Duration

	Logger *slog.Logger
}

// Client — клиент GitHub REST API.
type Client struct {
	baseURL    string
	webURL     string
	timeout    time.Duration
	maxRetries int
	backoff    pester.BackoffStrategy
	transport  http.RoundTripper
	runSkew    time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

// New создаёт клиент с defaults для незаданных полей.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.WebURL == "" {
		cfg.WebURL = defaultWebURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.Backoff == nil {
		cfg.Backoff = pester.ExponentialJitterBackoff
	}
	if cfg.RunLookupSkew == 0 {
		cfg.RunLookupSkew = defaultRunSkew
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		webURL:     strings.TrimSuffix(cfg.WebURL, "/"),
		timeout:    cfg.Timeout,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.Backoff,
		transport:  cfg.Transport,
		runSkew:    cfg.RunLookupSkew,
		logger:     cfg.Logger.With("component", "github"),
		now:        time.Now,
	}
}

// CreatePullRequest создаёт PR head → base.
func (c *Client) CreatePullRequest(ctx context.Context, repoRef, credential string, in PullRequestInput) (*domain.PullRequestRecord, error) {
	repo, err := normalizeRepo(repoRef)
	if err != nil {
		return nil, err
	}

	var pr pullRequestPayload
	if err := c.do(ctx, "create_pull_request", http.MethodPost, "/repos/"+repo+"/pulls", credential, in, &pr); err != nil {
		return nil, err
	}

	c.logger.Info("pull request created", "repo", repo, "number", pr.Number, "head", in.Head, "base", in.Base)
	return pr.record(), nil
}

// GetPullRequest возвращает текущее состояние PR.
func (c *Client) GetPullRequest(ctx context.Context, repoRef, credential string, number int) (*domain.PullRequestRecord, error) {
	repo, err := normalizeRepo(repoRef)
	if err != nil {
		return nil, err
	}

	var pr pullRequestPayload
	path := "/repos/" + repo + "/pulls/" + strconv.Itoa(number)
	if err := c.do(ctx, "get_pull_request", http.MethodGet, path, credential, nil, &pr); err != nil {
		return nil, err
	}
	return pr.record(), nil
}

// MergePullRequest всегда возвращает ErrMergeNotSupported.
// Слияние выполняется человеком в интерфейсе GitHub.
func (c *Client) MergePullRequest(_ context.Context, repoRef, _ string, number int, method string) error {
	c.logger.Info("merge refused", "repo", repoRef, "number", number, "method", method)
	telemetry.GatewayRequests.WithLabelValues("merge_pull_request", "refused").Inc()
	return ErrMergeNotSupported
}

// DispatchWorkflow запускает workflow и пытается найти созданный run.
//
// GitHub отвечает на dispatch 204 без тела, поэтому run ищется
// отдельным запросом. Если run ещё не виден, возвращается запись
// со статусом queued и ссылкой на страницу workflow.
func (c *Client) DispatchWorkflow(ctx context.Context, repoRef, credential string, in DispatchInput) (*domain.ActionRunRecord, error) {
	repo, err := normalizeRepo(repoRef)
	if err != nil {
		return nil, err
	}
	if in.WorkflowID == "" {
		return nil, fmt.Errorf("dispatch workflow: empty workflow id")
	}

	dispatchedAt := c.now()
	path := "/repos/" + repo + "/actions/workflows/" + url.PathEscape(in.WorkflowID) + "/dispatches"
	body := dispatchPayload{Ref: in.Ref, Inputs: in.Inputs}

	if err := c.do(ctx, "dispatch_workflow", http.MethodPost, path, credential, body, nil); err != nil {
		return nil, err
	}

	c.logger.Info("workflow dispatched", "repo", repo, "workflow", in.WorkflowID, "ref", in.Ref)

	run, err := c.findRun(ctx, repo, credential, RunLookup{
		WorkflowID:    in.WorkflowID,
		Ref:           in.Ref,
		Since:         dispatchedAt,
		ExcludeRunID:  in.PreviousRunID,
		SkipCompleted: true,
	})
	if err != nil {
		c.logger.Warn("dispatched run lookup failed", "repo", repo, "workflow", in.WorkflowID, "error", err)
	}
	if run != nil {
		return run, nil
	}

	return &domain.ActionRunRecord{
		Name:       in.WorkflowID,
		Status:     domain.RunStatusQueued,
		HTMLURL:    c.webURL + "/" + repo + "/actions/workflows/" + url.PathEscape(in.WorkflowID),
		HeadBranch: in.Ref,
		Event:      "workflow_dispatch",
		CreatedAt:  dispatchedAt,
		UpdatedAt:  dispatchedAt,
	}, nil
}

// FindDispatchedRun ищет run, созданный dispatch'ем после lookup.Since.
// nil без ошибки означает, что run ещё не виден.
func (c *Client) FindDispatchedRun(ctx context.Context, repoRef, credential string, lookup RunLookup) (*domain.ActionRunRecord, error) {
	repo, err := normalizeRepo(repoRef)
	if err != nil {
		return nil, err
	}
	if lookup.WorkflowID == "" {
		return nil, fmt.Errorf("find workflow run: empty workflow id")
	}
	return c.findRun(ctx, repo, credential, lookup)
}

func (c *Client) findRun(ctx context.Context, repo, credential string, lookup RunLookup) (*domain.ActionRunRecord, error) {
	q := url.Values{}
	q.Set("event", "workflow_dispatch")
	if lookup.Ref != "" {
		q.Set("branch", lookup.Ref)
	}
	q.Set("per_page", "10")

	path := "/repos/" + repo + "/actions/workflows/" + url.PathEscape(lookup.WorkflowID) + "/runs?" + q.Encode()
	var runs workflowRunsPayload
	if err := c.do(ctx, "list_workflow_runs", http.MethodGet, path, credential, nil, &runs); err != nil {
		return nil, err
	}

	// GitHub отдаёт run от новых к старым; берём самый ранний подходящий,
	// ближайший к моменту dispatch.
	threshold := lookup.Since.Add(-c.runSkew)
	var found *domain.ActionRunRecord
	for i := range runs.WorkflowRuns {
		run := &runs.WorkflowRuns[i]
		switch {
		case run.CreatedAt.Before(threshold):
			continue
		case lookup.ExcludeRunID != 0 && run.ID == lookup.ExcludeRunID:
			continue
		case lookup.SkipCompleted && run.Status == domain.RunStatusCompleted:
			continue
		}
		found = run.record()
	}
	return found, nil
}

// GetWorkflowRun возвращает состояние workflow run.
func (c *Client) GetWorkflowRun(ctx context.Context, repoRef, credential string, runID int64) (*domain.ActionRunRecord, error) {
	repo, err := normalizeRepo(repoRef)
	if err != nil {
		return nil, err
	}

	var run workflowRunPayload
	path := "/repos/" + repo + "/actions/runs/" + strconv.FormatInt(runID, 10)
	if err := c.do(ctx, "get_workflow_run", http.MethodGet, path, credential, nil, &run); err != nil {
		return nil, err
	}
	return run.record(), nil
}

// ValidateCredential проверяет токен. false без ошибки — токен отклонён.
func (c *Client) ValidateCredential(ctx context.Context, credential string) (bool, error) {
	if credential == "" {
		return false, nil
	}
	err := c.do(ctx, "validate_credential", http.MethodGet, "/user", credential, nil, nil)
	return classifyValidation(err)
}

// ValidateRepository проверяет, что репозиторий доступен с данным токеном.
func (c *Client) ValidateRepository(ctx context.Context, repoRef, credential string) (bool, error) {
	repo, err := normalizeRepo(repoRef)
	if err != nil {
		return false, nil
	}
	if credential == "" {
		return false, nil
	}
	err = c.do(ctx, "validate_repository", http.MethodGet, "/repos/"+repo, credential, nil, nil)
	return classifyValidation(err)
}

func classifyValidation(err error) (bool, error) {
	switch {
	case err == nil:
		return true, nil
	case IsStatus(err, http.StatusUnauthorized),
		IsStatus(err, http.StatusForbidden),
		IsStatus(err, http.StatusNotFound):
		return false, nil
	default:
		return false, err
	}
}

// httpClient собирает pester клиент с oauth2 транспортом для токена.
func (c *Client) httpClient(credential string, retries int) *pester.Client {
	base := &http.Client{
		Timeout: c.timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: credential}),
			Base:   c.transport,
		},
	}

	client := pester.NewExtendedClient(base)
	client.MaxRetries = retries
	client.Backoff = c.backoff
	client.KeepLog = true
	client.Timeout = c.timeout
	return client
}

// do выполняет запрос и декодирует ответ в out (если не nil).
// Ответы вне 2xx превращаются в *APIError.
func (c *Client) do(ctx context.Context, op, method, path, credential string, body, out any) (err error) {
	if credential == "" {
		return ErrMissingCredential
	}

	start := time.Now()
	defer func() {
		telemetry.GatewayDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		telemetry.GatewayRequests.WithLabelValues(op, telemetry.Outcome(err)).Inc()
	}()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal body: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	retries := 1
	if method == http.MethodGet {
		retries = c.maxRetries
	}
	client := c.httpClient(credential, retries)

	resp, err := client.Do(req)
	if err != nil {
		c.logger.Debug("github request failed", "op", op, "pester", client.LogString())
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

func normalizeRepo(repoRef string) (string, error) {
	repo, ok := engine.ParseRepositoryRef(repoRef)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidRepository, repoRef)
	}
	return repo, nil
}
