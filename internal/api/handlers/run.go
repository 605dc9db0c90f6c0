package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/repository/redis"
	"github.com/storyqa/storyqa/internal/services/healing"
	"github.com/storyqa/storyqa/pkg/httputil"
)

// ProgressWatcher delivers live execution progress events for a run.
type ProgressWatcher interface {
	WatchRunProgress(ctx context.Context, runID uuid.UUID) (<-chan redis.ProgressEvent, func() error)
}

// RunHandler handles persisted run queries
type RunHandler struct {
	runs           domain.RunRepository
	cases          domain.TestCaseRepository
	results        domain.ResultRepository
	progress       ProgressWatcher
	temporalClient client.Client
	healingEnabled bool
	logger         *zap.Logger
}

// NewRunHandler creates a new run handler
func NewRunHandler(
	runs domain.RunRepository,
	cases domain.TestCaseRepository,
	results domain.ResultRepository,
	progress ProgressWatcher,
	temporalClient client.Client,
	healingEnabled bool,
	logger *zap.Logger,
) *RunHandler {
	return &RunHandler{
		runs:           runs,
		cases:          cases,
		results:        results,
		progress:       progress,
		temporalClient: temporalClient,
		healingEnabled: healingEnabled,
		logger:         logger,
	}
}

// RunItem is one run in a listing, enriched with live workflow state
type RunItem struct {
	*domain.Run
	WorkflowStatus string `json:"workflow_status,omitempty"`
}

// RunDetail is a single run with its stored batches and, for failed
// cases, the selector-healing diagnoses computed against the crawl.
type RunDetail struct {
	*domain.Run
	WorkflowStatus string                   `json:"workflow_status,omitempty"`
	TestCases      []domain.TestCase        `json:"test_cases,omitempty"`
	Results        []domain.ExecutionResult `json:"results,omitempty"`
	Diagnoses      []healing.Diagnosis      `json:"diagnoses,omitempty"`
}

// List handles GET /api/v1/runs
func (h *RunHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		httputil.ErrorFromDomain(w, domain.ErrServiceUnavailable("run persistence"))
		return
	}

	pagination := httputil.GetPagination(r, 20, 100)

	runs, total, err := h.runs.List(r.Context(), pagination.PerPage, pagination.Offset)
	if err != nil {
		h.logger.Error("Failed to list runs", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}

	items := make([]RunItem, len(runs))
	for i, run := range runs {
		items[i] = RunItem{Run: run}
		if run.WorkflowID != "" && !run.Status.IsTerminal() {
			items[i].WorkflowStatus = h.getWorkflowStatus(r.Context(), run.WorkflowID, run.WorkflowRunID)
		}
	}

	httputil.JSONWithMeta(w, http.StatusOK, items, &httputil.Meta{
		Page:       pagination.Page,
		PerPage:    pagination.PerPage,
		Total:      total,
		TotalPages: httputil.CalculateTotalPages(total, pagination.PerPage),
	})
}

// Get handles GET /api/v1/runs/{id}
func (h *RunHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		httputil.ErrorFromDomain(w, domain.ErrServiceUnavailable("run persistence"))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "INVALID_ID", "Invalid run ID format", nil)
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	detail := RunDetail{Run: run}

	if run.WorkflowID != "" && !run.Status.IsTerminal() {
		detail.WorkflowStatus = h.getWorkflowStatus(r.Context(), run.WorkflowID, run.WorkflowRunID)
	}

	if h.cases != nil {
		cases, err := h.cases.GetByRunID(r.Context(), id)
		if err != nil {
			h.logger.Warn("Failed to load test cases", zap.Error(err), zap.String("run_id", id.String()))
		} else {
			detail.TestCases = cases
		}
	}

	if h.results != nil {
		results, err := h.results.GetByRunID(r.Context(), id)
		if err != nil {
			h.logger.Warn("Failed to load results", zap.Error(err), zap.String("run_id", id.String()))
		} else {
			detail.Results = results
		}
	}

	if h.healingEnabled && len(detail.Results) > 0 {
		var pages []domain.Page
		if run.Crawl != nil {
			pages = run.Crawl.Pages
		}
		if diags := healing.Analyze(detail.Results, pages); len(diags) > 0 {
			detail.Diagnoses = diags
		}
	}

	httputil.JSON(w, http.StatusOK, detail)
}

// Cancel handles POST /api/v1/runs/{id}/cancel
func (h *RunHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		httputil.ErrorFromDomain(w, domain.ErrServiceUnavailable("run persistence"))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "INVALID_ID", "Invalid run ID format", nil)
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	if run.Status.IsTerminal() {
		httputil.JSONError(w, http.StatusConflict, "INVALID_STATE",
			"Run is already in terminal state", map[string]any{
				"status": string(run.Status),
			})
		return
	}

	if run.WorkflowID != "" && h.temporalClient != nil {
		if err := h.temporalClient.CancelWorkflow(r.Context(), run.WorkflowID, run.WorkflowRunID); err != nil {
			h.logger.Warn("Failed to cancel workflow", zap.Error(err), zap.String("workflow_id", run.WorkflowID))
		}
	}

	if err := h.runs.UpdateStatus(r.Context(), id, domain.RunStatusCancelled); err != nil {
		h.logger.Error("Failed to cancel run", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}

	h.logger.Info("Run cancelled", zap.String("run_id", id.String()))

	run.Status = domain.RunStatusCancelled
	httputil.JSON(w, http.StatusOK, RunItem{Run: run})
}

// Progress handles GET /api/v1/runs/{id}/progress. Execution progress
// is streamed as server-sent events until the batch finishes, the
// client goes away, or the request timeout fires; EventSource clients
// reconnect on their own.
func (h *RunHandler) Progress(w http.ResponseWriter, r *http.Request) {
	if h.progress == nil {
		httputil.ErrorFromDomain(w, domain.ErrServiceUnavailable("progress events"))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "INVALID_ID", "Invalid run ID format", nil)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		httputil.JSONError(w, http.StatusInternalServerError, domain.ErrCodeInternal, "Streaming unsupported", nil)
		return
	}

	// A finished run publishes nothing more; answer instead of hanging.
	if h.runs != nil {
		if run, err := h.runs.GetByID(r.Context(), id); err == nil && run.Status.IsTerminal() {
			httputil.JSONError(w, http.StatusConflict, "INVALID_STATE",
				"Run is already in terminal state", map[string]any{
					"status": string(run.Status),
				})
			return
		}
	}

	events, stop := h.progress.WatchRunProgress(r.Context(), id)
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
			if ev.Total > 0 && ev.Done >= ev.Total {
				return
			}
		}
	}
}

// Delete handles DELETE /api/v1/runs/{id}
func (h *RunHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		httputil.ErrorFromDomain(w, domain.ErrServiceUnavailable("run persistence"))
		return
	}

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.JSONError(w, http.StatusBadRequest, "INVALID_ID", "Invalid run ID format", nil)
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	if !run.Status.IsTerminal() {
		httputil.JSONError(w, http.StatusConflict, "INVALID_STATE",
			"Cannot delete an active run. Cancel it first.", map[string]any{
				"status": string(run.Status),
			})
		return
	}

	if err := h.runs.Delete(r.Context(), id); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	h.logger.Info("Run deleted", zap.String("run_id", id.String()))

	httputil.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// getWorkflowStatus fetches the current workflow status from Temporal
func (h *RunHandler) getWorkflowStatus(ctx context.Context, workflowID, runID string) string {
	if h.temporalClient == nil {
		return ""
	}

	desc, err := h.temporalClient.DescribeWorkflowExecution(ctx, workflowID, runID)
	if err != nil {
		h.logger.Debug("Failed to describe workflow", zap.Error(err), zap.String("workflow_id", workflowID))
		return "unknown"
	}

	return desc.WorkflowExecutionInfo.Status.String()
}
