package domain

import (
	"context"
	"math"

	"github.com/google/uuid"
)

// ExecutionResult is the outcome of running one test case. Created once
// per execution and immutable afterwards.
type ExecutionResult struct {
	TCID            string     `json:"tc_id"`
	Feature         string     `json:"feature"`
	UserRole        string     `json:"user_role"`
	Condition       string     `json:"condition"`
	PageURL         string     `json:"page_url"`
	Status          ExecStatus `json:"status"`
	DurationSeconds float64    `json:"duration_seconds"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	ScreenshotPath  string     `json:"screenshot_path,omitempty"`
	Log             string     `json:"log"`
}

// RoundDuration rounds a duration in seconds to two decimals, the
// precision execution results carry on the wire.
func RoundDuration(seconds float64) float64 {
	return math.Round(seconds*100) / 100
}

// ResultRepository persists execution outcomes keyed by run, replacing
// any previous batch for the run.
type ResultRepository interface {
	ReplaceForRun(ctx context.Context, runID uuid.UUID, results []ExecutionResult) error
	GetByRunID(ctx context.Context, runID uuid.UUID) ([]ExecutionResult, error)
}

// ExecutionSummary aggregates one execution batch.
type ExecutionSummary struct {
	Total   int `json:"total"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
}

// NewExecutionSummary tallies batch results by status.
func NewExecutionSummary(results []ExecutionResult) ExecutionSummary {
	s := ExecutionSummary{Total: len(results)}
	for _, r := range results {
		switch r.Status {
		case ExecStatusPass:
			s.Passed++
		case ExecStatusFail:
			s.Failed++
		case ExecStatusError:
			s.Errored++
		}
	}
	return s
}

// PassRate returns the whole-percent pass rate, 0 for an empty batch.
func (s ExecutionSummary) PassRate() int {
	if s.Total == 0 {
		return 0
	}
	return int(math.Round(float64(s.Passed) / float64(s.Total) * 100))
}
