package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Run represents one pipeline invocation: story in, report out. Phase
// outputs (analysis, crawl, summaries) are attached as they are produced
// so a run record is a complete account of what happened.
type Run struct {
	ID            uuid.UUID          `json:"id" db:"id"`
	Story         string             `json:"story" db:"story"`
	Feature       string             `json:"feature" db:"feature"`
	UserRole      string             `json:"user_role" db:"user_role"`
	StartURL      string             `json:"start_url" db:"start_url"`
	Depth         int                `json:"depth" db:"depth"`
	Status        RunStatus          `json:"status" db:"status"`
	WorkflowID    string             `json:"workflow_id,omitempty" db:"workflow_id"`
	WorkflowRunID string             `json:"workflow_run_id,omitempty" db:"workflow_run_id"`
	Analysis      *StoryAnalysis     `json:"analysis,omitempty" db:"analysis"`
	Crawl         *CrawlResult       `json:"crawl,omitempty" db:"crawl"`
	Generation    *GenerationSummary `json:"generation,omitempty" db:"generation"`
	Execution     *ExecutionSummary  `json:"execution,omitempty" db:"execution"`
	ReportURI     string             `json:"report_uri,omitempty" db:"report_uri"`
	Error         string             `json:"error,omitempty" db:"error"`
	StartedAt     *time.Time         `json:"started_at,omitempty" db:"started_at"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty" db:"completed_at"`
	Timestamps
}

// NewRun creates a pending run for a story against a start URL.
func NewRun(story, startURL string, depth int) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:       uuid.New(),
		Story:    story,
		StartURL: startURL,
		Depth:    depth,
		Status:   RunStatusPending,
		Timestamps: Timestamps{
			CreatedAt: now,
			UpdatedAt: now,
		},
	}
}

// SetWorkflowInfo updates workflow tracking info
func (r *Run) SetWorkflowInfo(workflowID, runID string) {
	r.WorkflowID = workflowID
	r.WorkflowRunID = runID
	r.UpdatedAt = time.Now().UTC()
}

// Start marks the run as started
func (r *Run) Start() {
	now := time.Now().UTC()
	r.StartedAt = &now
	r.UpdatedAt = now
}

// Complete marks the run as completed with its final summaries.
func (r *Run) Complete(gen *GenerationSummary, exec *ExecutionSummary, reportURI string) {
	now := time.Now().UTC()
	r.Status = RunStatusCompleted
	r.Generation = gen
	r.Execution = exec
	r.ReportURI = reportURI
	r.CompletedAt = &now
	r.UpdatedAt = now
}

// Fail marks the run as failed, keeping the reason for the API surface.
func (r *Run) Fail(reason string) {
	now := time.Now().UTC()
	r.Status = RunStatusFailed
	r.Error = reason
	r.CompletedAt = &now
	r.UpdatedAt = now
}

// RunRepository defines data access for runs
type RunRepository interface {
	Create(ctx context.Context, run *Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*Run, error)
	GetByWorkflowID(ctx context.Context, workflowID string) (*Run, error)
	List(ctx context.Context, limit, offset int) ([]*Run, int, error)
	Update(ctx context.Context, run *Run) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status RunStatus) error
	Delete(ctx context.Context, id uuid.UUID) error
}
