package gateway

import (
	"time"

	"github.com/shaiso/ReleaseTrain/internal/domain"
)

// PullRequestInput — параметры создания PR.
type PullRequestInput struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Head  string `json:"head"`
	Base  string `json:"base"`
}

// DispatchInput — параметры запуска workflow.
type DispatchInput struct {
	WorkflowID string
	Ref        string
	Inputs     map[string]string

	// PreviousRunID — run прошлого запуска шага; никогда не считается новым.
	PreviousRunID int64
}

// RunLookup — поиск run, созданного dispatch'ем.
type RunLookup struct {
	WorkflowID string
	Ref        string

	// Since — момент dispatch; более ранние run отбрасываются
	// (с учётом допуска на расхождение часов).
	Since time.Time

	// ExcludeRunID — run, который заведомо не подходит.
	ExcludeRunID int64

	// SkipCompleted — отбрасывать завершённые run. Сразу после dispatch
	// новый run не может быть завершён.
	SkipCompleted bool
}

type branchRef struct {
	Ref string `json:"ref"`
}

// pullRequestPayload — PR в схеме GitHub. html_url и htmlUrl равноправны.
type pullRequestPayload struct {
	ID           int64     `json:"id"`
	Number       int       `json:"number"`
	Title        string    `json:"title"`
	State        string    `json:"state"`
	Merged       bool      `json:"merged"`
	MergedAt     *string   `json:"merged_at"`
	HTMLURL      string    `json:"html_url"`
	HTMLURLCamel string    `json:"htmlUrl"`
	Head         branchRef `json:"head"`
	Base         branchRef `json:"base"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (p *pullRequestPayload) record() *domain.PullRequestRecord {
	url := p.HTMLURL
	if url == "" {
		url = p.HTMLURLCamel
	}
	return &domain.PullRequestRecord{
		ID:        p.ID,
		Number:    p.Number,
		Title:     p.Title,
		State:     p.State,
		Merged:    p.Merged || (p.MergedAt != nil && *p.MergedAt != ""),
		HTMLURL:   url,
		HeadRef:   p.Head.Ref,
		BaseRef:   p.Base.Ref,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

type workflowRunPayload struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Status       string    `json:"status"`
	Conclusion   *string   `json:"conclusion"`
	HTMLURL      string    `json:"html_url"`
	HTMLURLCamel string    `json:"htmlUrl"`
	HeadBranch   string    `json:"head_branch"`
	Event        string    `json:"event"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (r *workflowRunPayload) record() *domain.ActionRunRecord {
	url := r.HTMLURL
	if url == "" {
		url = r.HTMLURLCamel
	}
	rec := &domain.ActionRunRecord{
		ID:         r.ID,
		Name:       r.Name,
		Status:     r.Status,
		HTMLURL:    url,
		HeadBranch: r.HeadBranch,
		Event:      r.Event,
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
	}
	if r.Conclusion != nil {
		rec.Conclusion = *r.Conclusion
	}
	return rec
}

type workflowRunsPayload struct {
	TotalCount   int                  `json:"total_count"`
	WorkflowRuns []workflowRunPayload `json:"workflow_runs"`
}

type dispatchPayload struct {
	Ref    string            `json:"ref"`
	Inputs map[string]string `json:"inputs,omitempty"`
}
