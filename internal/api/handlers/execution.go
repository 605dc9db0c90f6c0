package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/observability"
	"github.com/storyqa/storyqa/internal/services/execution"
	"github.com/storyqa/storyqa/internal/services/healing"
	"github.com/storyqa/storyqa/internal/workflows"
	"github.com/storyqa/storyqa/pkg/httputil"
)

// ExecutionHandler handles test case execution requests
type ExecutionHandler struct {
	sessionCfg     execution.SessionConfig
	screenshotDir  string
	runs           domain.RunRepository
	temporalClient client.Client
	taskQueue      string
	metrics        *observability.Metrics
	logger         *zap.Logger
}

// NewExecutionHandler creates a new execution handler. runs and
// temporalClient may be nil; the async path then degrades (503 without
// persistence, a pending run without Temporal).
func NewExecutionHandler(
	sessionCfg execution.SessionConfig,
	screenshotDir string,
	runs domain.RunRepository,
	temporalClient client.Client,
	taskQueue string,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *ExecutionHandler {
	return &ExecutionHandler{
		sessionCfg:     sessionCfg,
		screenshotDir:  screenshotDir,
		runs:           runs,
		temporalClient: temporalClient,
		taskQueue:      taskQueue,
		metrics:        metrics,
		logger:         logger,
	}
}

// ExecuteRequest is the request body for POST /api/v1/executions.
// Synchronous calls carry test_cases; async=true instead names a story
// and start URL for the durable pipeline.
type ExecuteRequest struct {
	TestCases []domain.TestCase `json:"test_cases,omitempty"`
	Headless  *bool             `json:"headless,omitempty"`
	Async     bool              `json:"async,omitempty"`
	Story     string            `json:"story,omitempty"`
	URL       string            `json:"url,omitempty"`
	Depth     *int              `json:"depth,omitempty"`
}

// ExecuteResponse is the synchronous execution result
type ExecuteResponse struct {
	Results []domain.ExecutionResult `json:"results"`
	Summary domain.ExecutionSummary  `json:"summary"`
}

// Create handles POST /api/v1/executions. The synchronous path drives
// a browser inside the request and is bounded by the router's request
// timeout; long batches belong on the async path.
func (h *ExecutionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ExecuteRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	if req.Async {
		h.createAsync(w, r, req)
		return
	}

	if len(req.TestCases) == 0 {
		httputil.ErrorFromDomain(w, domain.ValidationError("test_cases", "No test cases provided."))
		return
	}

	sessionCfg := h.sessionCfg
	if req.Headless != nil {
		sessionCfg.Headless = *req.Headless
	}

	sess, err := execution.NewSession(sessionCfg, h.logger)
	if err != nil {
		h.logger.Error("Browser session failed to start", zap.Error(err))
		httputil.ErrorFromDomain(w, domain.ErrExecutionFailed("starting browser session", err))
		return
	}
	defer sess.Close()

	runner := execution.NewRunner(sess, h.screenshotDir, h.logger)
	results, summary := runner.Run(r.Context(), req.TestCases, nil)

	h.recordResults(results)

	h.logger.Info("Batch executed",
		zap.Int("total", summary.Total),
		zap.Int("passed", summary.Passed),
		zap.Int("failed", summary.Failed),
		zap.Int("errored", summary.Errored),
	)

	httputil.JSON(w, http.StatusOK, ExecuteResponse{
		Results: results,
		Summary: summary,
	})
}

// createAsync creates a persisted run and hands it to the pipeline
// workflow. A workflow start failure leaves the run pending rather
// than failing the request; starting can be retried out of band.
func (h *ExecutionHandler) createAsync(w http.ResponseWriter, r *http.Request, req ExecuteRequest) {
	story := strings.TrimSpace(req.Story)
	if story == "" {
		httputil.ErrorFromDomain(w, domain.ValidationError("story", "No user story provided."))
		return
	}
	startURL := strings.TrimSpace(req.URL)
	if startURL == "" {
		httputil.ErrorFromDomain(w, domain.ValidationError("url", "No website URL provided."))
		return
	}
	if err := validateURL(startURL); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	if h.runs == nil {
		httputil.ErrorFromDomain(w, domain.ErrServiceUnavailable("run persistence"))
		return
	}

	depth := 1
	if req.Depth != nil {
		depth = *req.Depth
	}
	headless := h.sessionCfg.Headless
	if req.Headless != nil {
		headless = *req.Headless
	}

	run := domain.NewRun(story, startURL, depth)
	if err := h.runs.Create(r.Context(), run); err != nil {
		h.logger.Error("Failed to create run", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}

	if h.temporalClient != nil {
		workflowID := fmt.Sprintf("pipeline-%s", run.ID)

		input := workflows.PipelineInput{
			RunID:    run.ID,
			Story:    story,
			StartURL: startURL,
			Depth:    depth,
			Headless: headless,
		}

		workflowOptions := client.StartWorkflowOptions{
			ID:        workflowID,
			TaskQueue: h.taskQueue,
		}

		workflowRun, err := h.temporalClient.ExecuteWorkflow(r.Context(), workflowOptions, workflows.PipelineWorkflow, input)
		if err != nil {
			h.logger.Error("Failed to start pipeline workflow", zap.Error(err),
				zap.String("run_id", run.ID.String()))
		} else {
			run.SetWorkflowInfo(workflowID, workflowRun.GetRunID())
			run.Status = domain.RunStatusAnalyzing
			run.Start()

			if err := h.runs.Update(r.Context(), run); err != nil {
				h.logger.Error("Failed to update run with workflow info", zap.Error(err))
			}

			h.logger.Info("Pipeline workflow started",
				zap.String("workflow_id", workflowID),
				zap.String("run_id", run.ID.String()),
			)
		}
	}

	httputil.JSON(w, http.StatusAccepted, map[string]any{"run_id": run.ID})
}

// recordResults feeds the execution counters, classifying each failure
// by the shape of its error message.
func (h *ExecutionHandler) recordResults(results []domain.ExecutionResult) {
	if h.metrics == nil {
		return
	}
	for _, res := range results {
		h.metrics.RecordExecution(string(res.Status), res.DurationSeconds)
		if res.Status != domain.ExecStatusPass && res.ErrorMessage != "" {
			h.metrics.RecordStepFailure(string(healing.Classify(res.ErrorMessage)))
		}
	}
}

func validateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return domain.ValidationError("url", "invalid URL: "+err.Error())
	}

	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return domain.ValidationError("url", "URL must use http or https scheme")
	}

	if parsed.Host == "" {
		return domain.ValidationError("url", "URL must have a host")
	}

	return nil
}
