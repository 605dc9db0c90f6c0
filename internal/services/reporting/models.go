package reporting

import (
	"html/template"
	"time"

	"github.com/storyqa/storyqa/internal/domain"
)

// Input is the raw material a report is assembled from. A zero Summary
// is recomputed from Results; Suggestions (selector-healing proposals)
// are appended to the recommended next steps.
type Input struct {
	Results     []domain.ExecutionResult
	Summary     domain.ExecutionSummary
	Suggestions []string
}

// RunReport is the assembled report model. The HTML template and the
// JSON export both render exactly this struct.
type RunReport struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Summary     Summary          `json:"summary"`
	Comment     string           `json:"comment"`
	Executive   string           `json:"executive_summary,omitempty"`
	Features    []FeatureSection `json:"features"`
	Patterns    []string         `json:"failure_patterns"`
	NextSteps   []string         `json:"next_steps"`
}

// Summary is the card row at the top of the report.
type Summary struct {
	Total    int `json:"total"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Errored  int `json:"errored"`
	PassRate int `json:"pass_rate"`
}

// FeatureSection groups the results of one feature. Sections appear in
// the report sorted by feature name.
type FeatureSection struct {
	Feature string     `json:"feature"`
	Cases   []CaseView `json:"cases"`
}

// CaseView is one execution result prepared for rendering.
type CaseView struct {
	domain.ExecutionResult
	Screenshot *Screenshot `json:"screenshot,omitempty"`
}

// Screenshot is a resolved failure capture. Exactly one field is set:
// DataURI when the file was readable, MissingPath when the result
// references a file that no longer exists.
type Screenshot struct {
	DataURI     template.URL `json:"data_uri,omitempty"`
	MissingPath string       `json:"missing_path,omitempty"`
}
