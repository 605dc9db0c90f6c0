package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/observability"
	"github.com/storyqa/storyqa/internal/services/explorer"
	"github.com/storyqa/storyqa/pkg/httputil"
)

// ExploreHandler handles site exploration requests
type ExploreHandler struct {
	cfg     explorer.Config
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewExploreHandler creates a new explore handler. cfg carries the page
// budget and fetch timeout; the depth comes from each request.
func NewExploreHandler(cfg explorer.Config, metrics *observability.Metrics, logger *zap.Logger) *ExploreHandler {
	return &ExploreHandler{cfg: cfg, metrics: metrics, logger: logger}
}

// ExploreRequest is the request body for site exploration. A missing
// depth means 1; the crawler clamps whatever arrives to its hard limit.
type ExploreRequest struct {
	URL   string `json:"url"`
	Depth *int   `json:"depth,omitempty"`
}

// Explore handles POST /api/v1/explore
func (h *ExploreHandler) Explore(w http.ResponseWriter, r *http.Request) {
	var req ExploreRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	startURL := strings.TrimSpace(req.URL)
	if startURL == "" {
		httputil.ErrorFromDomain(w, domain.ValidationError("url", "No URL provided."))
		return
	}

	depth := 1
	if req.Depth != nil {
		depth = *req.Depth
	}

	crawler := explorer.New(explorer.Config{
		MaxDepth: depth,
		MaxPages: h.cfg.MaxPages,
		Timeout:  h.cfg.Timeout,
	}, h.logger)

	result, err := crawler.Explore(r.Context(), startURL)
	if err != nil {
		h.logger.Error("Exploration failed", zap.Error(err), zap.String("url", startURL))
		httputil.ErrorFromDomain(w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.RecordCrawl(len(result.Pages))
	}

	h.logger.Info("Site explored",
		zap.String("url", startURL),
		zap.Int("depth", depth),
		zap.Int("pages", len(result.Pages)),
	)

	httputil.JSON(w, http.StatusOK, result)
}
