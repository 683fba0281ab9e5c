package domain

import "time"

// PR states, как их хранит шаг.
const (
	PRStateOpen   = "open"
	PRStateClosed = "closed"
	PRStateMerged = "merged"
)

// PullRequestRecord — нормализованный PR из ответа GitHub.
// Не сохраняется, используется для обновления WorkflowStep.
type PullRequestRecord struct {
	ID        int64     `json:"id"`
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	Merged    bool      `json:"merged"`
	HTMLURL   string    `json:"html_url"`
	HeadRef   string    `json:"head_ref"`
	BaseRef   string    `json:"base_ref"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EffectiveState возвращает "merged" для слитых PR, иначе State.
func (p *PullRequestRecord) EffectiveState() string {
	if p.Merged {
		return PRStateMerged
	}
	return p.State
}

// Workflow run statuses/conclusions (GitHub Actions).
const (
	RunStatusQueued     = "queued"
	RunStatusInProgress = "in_progress"
	RunStatusCompleted  = "completed"

	RunConclusionSuccess = "success"
)

// ActionRunRecord — нормализованный workflow run из ответа GitHub.
type ActionRunRecord struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"`
	Conclusion string    `json:"conclusion"`
	HTMLURL    string    `json:"html_url"`
	HeadBranch string    `json:"head_branch"`
	Event      string    `json:"event"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// IsCompleted возвращает true, если run завершился (успешно или нет).
func (r *ActionRunRecord) IsCompleted() bool {
	return r.Status == RunStatusCompleted
}

// Succeeded возвращает true, если run завершился успешно.
func (r *ActionRunRecord) Succeeded() bool {
	return r.IsCompleted() && r.Conclusion == RunConclusionSuccess
}
