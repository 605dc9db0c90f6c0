// Package sandbox runs exported Playwright suites in isolation. The
// Kubernetes manager stages a suite archive from object storage into a
// pod and waits it out; the mock manager stands in on machines without
// a cluster.
package sandbox

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/storyqa/storyqa/internal/domain"
)

// Status of one sandboxed suite run.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusTimeout   Status = "timeout"
	StatusError     Status = "error"
)

// Manager runs an exported suite to completion.
type Manager interface {
	Run(ctx context.Context, req Request) (*Result, error)
}

// Config holds the settings shared by every manager.
type Config struct {
	Namespace      string
	Image          string // Playwright image for the main container
	InitImage      string // mc image that stages the suite archive
	SecretName     string // secret carrying the object storage credentials
	Bucket         string // bucket holding suites and results
	ResultsPrefix  string // key prefix for uploaded result documents
	DefaultTimeout time.Duration
	Resources      ResourceLimits
	LocalWorkDir   string // mock manager scratch space
}

// DefaultConfig returns the settings used when nothing overrides them.
func DefaultConfig() Config {
	return Config{
		Namespace:      "storyqa-sandboxes",
		Image:          "mcr.microsoft.com/playwright:v1.52.0-jammy",
		InitImage:      "minio/mc:latest",
		SecretName:     "storyqa-minio",
		Bucket:         "storyqa",
		ResultsPrefix:  "results",
		DefaultTimeout: 15 * time.Minute,
		Resources: ResourceLimits{
			RequestCPU:    "500m",
			RequestMemory: "1Gi",
			LimitCPU:      "1",
			LimitMemory:   "2Gi",
		},
		LocalWorkDir: "/tmp/storyqa-sandboxes",
	}
}

// ResourceLimits bounds the Playwright container.
type ResourceLimits struct {
	RequestCPU    string
	RequestMemory string
	LimitCPU      string
	LimitMemory   string
}

// Request names the suite to run and where to point it.
type Request struct {
	RunID     uuid.UUID
	SuiteURI  string // archive produced by the script generator
	TargetURL string
	Timeout   time.Duration
	Workers   int
}

// Result is the outcome of one sandboxed run. Specs carry per-test
// outcomes when a JSON report could be recovered; the counters are
// always filled, from the report or from the log summary line.
type Result struct {
	RunID      uuid.UUID
	Status     Status
	ExitCode   int
	Duration   time.Duration
	Passed     int
	Failed     int
	Skipped    int
	Total      int
	Specs      []SpecResult
	Logs       string
	ResultsURI string
	Error      string
}

// SpecResult is one test() outcome from the Playwright JSON report.
// TCID is recovered from the "[TC-nnn]" title prefix the script
// generator writes; it is empty for tests named some other way.
type SpecResult struct {
	TCID            string
	Title           string
	Status          string // passed, failed, timedOut, skipped, interrupted
	DurationSeconds float64
	Error           string
}

// Summary maps the sandbox tallies onto the execution summary shape.
// Skipped tests never ran, which is what the Error status means here.
func (r *Result) Summary() domain.ExecutionSummary {
	return domain.ExecutionSummary{
		Total:   r.Total,
		Passed:  r.Passed,
		Failed:  r.Failed,
		Errored: r.Skipped,
	}
}
