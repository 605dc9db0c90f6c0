package workflows

import (
	"time"

	"github.com/google/uuid"

	"github.com/storyqa/storyqa/internal/domain"
)

// PipelineInput starts one persisted run through the pipeline. The run
// row already exists; the workflow writes to it only through activities.
type PipelineInput struct {
	RunID    uuid.UUID `json:"run_id"`
	Story    string    `json:"story"`
	StartURL string    `json:"start_url"`
	Depth    int       `json:"depth"`
	Headless bool      `json:"headless"`
}

// PipelineOutput is the workflow result. Status is "completed" or
// "failed"; a failed pipeline still returns normally so callers can
// read what happened.
type PipelineOutput struct {
	RunID         uuid.UUID                 `json:"run_id"`
	Status        string                    `json:"status"`
	Generation    *domain.GenerationSummary `json:"generation,omitempty"`
	Execution     *domain.ExecutionSummary  `json:"execution,omitempty"`
	ReportURI     string                    `json:"report_uri,omitempty"`
	Error         string                    `json:"error,omitempty"`
	CompletedAt   time.Time                 `json:"completed_at"`
	TotalDuration time.Duration             `json:"total_duration"`
}

// AnalyzeInput feeds the story analysis activity.
type AnalyzeInput struct {
	RunID uuid.UUID `json:"run_id"`
	Story string    `json:"story"`
}

// AnalyzeOutput carries the structured story analysis.
type AnalyzeOutput struct {
	Analysis *domain.StoryAnalysis `json:"analysis"`
}

// ExploreInput feeds the site exploration activity.
type ExploreInput struct {
	RunID    uuid.UUID `json:"run_id"`
	StartURL string    `json:"start_url"`
	Depth    int       `json:"depth"`
}

// ExploreOutput carries the crawl result, start page first.
type ExploreOutput struct {
	Crawl domain.CrawlResult `json:"crawl"`
}

// GenerateInput feeds the test case generation activity.
type GenerateInput struct {
	RunID    uuid.UUID             `json:"run_id"`
	Analysis *domain.StoryAnalysis `json:"analysis"`
	Crawl    domain.CrawlResult    `json:"crawl"`
}

// GenerateOutput carries the generated batch and its tallies.
type GenerateOutput struct {
	Cases   []domain.TestCase        `json:"cases"`
	Summary domain.GenerationSummary `json:"summary"`
}

// ExecuteInput feeds the browser execution activity.
type ExecuteInput struct {
	RunID    uuid.UUID         `json:"run_id"`
	Cases    []domain.TestCase `json:"cases"`
	Headless bool              `json:"headless"`
}

// ExecuteOutput carries per-case results and the batch summary.
type ExecuteOutput struct {
	Results []domain.ExecutionResult `json:"results"`
	Summary domain.ExecutionSummary  `json:"summary"`
}

// ReportInput feeds the report publication activity. Pages are the
// crawled pages, used to diagnose selector failures in the report's
// recommendations.
type ReportInput struct {
	RunID   uuid.UUID                `json:"run_id"`
	Results []domain.ExecutionResult `json:"results"`
	Summary domain.ExecutionSummary  `json:"summary"`
	Pages   []domain.Page            `json:"pages,omitempty"`
}

// ReportOutput names the published artifact.
type ReportOutput struct {
	ReportURI string `json:"report_uri"`
	PassRate  int    `json:"pass_rate"`
}

// MarkPhaseInput moves a run to the status of the phase about to start.
type MarkPhaseInput struct {
	RunID  uuid.UUID        `json:"run_id"`
	Status domain.RunStatus `json:"status"`
}

// FinalizeInput closes a run out, completed or failed. Duration is the
// workflow's own clock so replay stays deterministic.
type FinalizeInput struct {
	RunID      uuid.UUID                 `json:"run_id"`
	Status     domain.RunStatus          `json:"status"`
	Error      string                    `json:"error,omitempty"`
	Generation *domain.GenerationSummary `json:"generation,omitempty"`
	Execution  *domain.ExecutionSummary  `json:"execution,omitempty"`
	ReportURI  string                    `json:"report_uri,omitempty"`
	Duration   time.Duration             `json:"duration"`
}
