package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/services/reporting"
	"github.com/storyqa/storyqa/internal/storage"
	"github.com/storyqa/storyqa/pkg/httputil"
)

const reportFilename = "test_report.html"

// ReportCache holds the most recent rendered report between requests.
// A miss is (nil, nil), not an error.
type ReportCache interface {
	SetLatestReport(ctx context.Context, data []byte) error
	LatestReport(ctx context.Context) ([]byte, error)
}

// ReportHandler handles report rendering and download
type ReportHandler struct {
	generator *reporting.Generator
	cache     ReportCache
	reports   domain.ReportRepository
	store     storage.ArtifactStore
	logger    *zap.Logger
}

// NewReportHandler creates a new report handler. cache, reports and
// store may be nil; the download falls through whatever is missing.
func NewReportHandler(
	generator *reporting.Generator,
	cache ReportCache,
	reports domain.ReportRepository,
	store storage.ArtifactStore,
	logger *zap.Logger,
) *ReportHandler {
	return &ReportHandler{
		generator: generator,
		cache:     cache,
		reports:   reports,
		store:     store,
		logger:    logger,
	}
}

// CreateReportRequest is the request body for report generation. A
// missing summary is recomputed from the results.
type CreateReportRequest struct {
	Results []domain.ExecutionResult `json:"results"`
	Summary *domain.ExecutionSummary `json:"summary,omitempty"`
}

// Create handles POST /api/v1/reports. The rendered HTML is returned
// directly and cached for the download endpoint.
func (h *ReportHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateReportRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	if len(req.Results) == 0 {
		httputil.ErrorFromDomain(w, domain.ValidationError("results", "No execution results provided."))
		return
	}

	in := reporting.Input{Results: req.Results}
	if req.Summary != nil {
		in.Summary = *req.Summary
	}

	rep := h.generator.Build(r.Context(), in)

	html, err := h.generator.RenderHTML(rep)
	if err != nil {
		h.logger.Error("Report rendering failed", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}

	if h.cache != nil {
		if err := h.cache.SetLatestReport(r.Context(), []byte(html)); err != nil {
			h.logger.Warn("Caching latest report failed", zap.Error(err))
		}
	}

	h.logger.Info("Report generated",
		zap.Int("results", len(req.Results)),
		zap.Int("pass_rate", rep.Summary.PassRate),
		zap.Int("size_bytes", len(html)),
	)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(html))
}

// DownloadLatest handles GET /api/v1/reports/latest/download. The
// cached copy is preferred; when it has expired the newest persisted
// report is reloaded from the artifact store.
func (h *ReportHandler) DownloadLatest(w http.ResponseWriter, r *http.Request) {
	if h.cache != nil {
		data, err := h.cache.LatestReport(r.Context())
		if err != nil {
			h.logger.Warn("Latest report cache lookup failed", zap.Error(err))
		} else if data != nil {
			serveAttachment(w, data)
			return
		}
	}

	if h.reports != nil && h.store != nil {
		report, err := h.reports.GetLatest(r.Context())
		if err == nil {
			data, loadErr := h.store.Load(r.Context(), report.URI)
			if loadErr != nil {
				h.logger.Error("Loading stored report failed", zap.Error(loadErr),
					zap.String("uri", report.URI))
			} else {
				serveAttachment(w, data)
				return
			}
		} else if !domain.IsNotFoundError(err) {
			h.logger.Error("Latest report lookup failed", zap.Error(err))
		}
	}

	httputil.ErrorFromDomain(w, domain.NotFoundError("report", "latest"))
}

func serveAttachment(w http.ResponseWriter, data []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename="+reportFilename)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
