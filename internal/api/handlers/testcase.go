package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/observability"
	"github.com/storyqa/storyqa/internal/services/analysis"
	"github.com/storyqa/storyqa/internal/services/explorer"
	"github.com/storyqa/storyqa/internal/services/generation"
	"github.com/storyqa/storyqa/pkg/httputil"
)

// TestCaseHandler handles combined story-to-test-case generation
type TestCaseHandler struct {
	analysis    *analysis.Service
	explorerCfg explorer.Config
	generator   *generation.Generator
	metrics     *observability.Metrics
	logger      *zap.Logger
}

// NewTestCaseHandler creates a new test case handler
func NewTestCaseHandler(svc *analysis.Service, explorerCfg explorer.Config, metrics *observability.Metrics, logger *zap.Logger) *TestCaseHandler {
	return &TestCaseHandler{
		analysis:    svc,
		explorerCfg: explorerCfg,
		generator:   generation.NewGenerator(logger),
		metrics:     metrics,
		logger:      logger,
	}
}

// GenerateRequest is the request body for combined generation
type GenerateRequest struct {
	Story string `json:"story"`
	URL   string `json:"url"`
	Depth *int   `json:"depth,omitempty"`
}

// GenerateResponse carries everything the generation produced: the
// analyzed story, the crawled site model, the cases and their tally.
type GenerateResponse struct {
	StoryData *domain.StoryAnalysis    `json:"story_data"`
	PageData  domain.CrawlResult       `json:"page_data"`
	TestCases []domain.TestCase        `json:"test_cases"`
	Summary   domain.GenerationSummary `json:"summary"`
}

// Generate handles POST /api/v1/testcases/generate
func (h *TestCaseHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

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

	depth := 1
	if req.Depth != nil {
		depth = *req.Depth
	}

	analysisResult, err := h.analysis.Analyze(r.Context(), story)
	if err != nil {
		h.logger.Error("Story analysis failed", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}

	crawler := explorer.New(explorer.Config{
		MaxDepth: depth,
		MaxPages: h.explorerCfg.MaxPages,
		Timeout:  h.explorerCfg.Timeout,
	}, h.logger)

	crawl, err := crawler.Explore(r.Context(), startURL)
	if err != nil {
		h.logger.Error("Exploration failed", zap.Error(err), zap.String("url", startURL))
		httputil.ErrorFromDomain(w, err)
		return
	}

	cases := h.generator.Generate(*analysisResult, crawl)
	summary := domain.NewGenerationSummary(cases)

	if h.metrics != nil {
		h.metrics.RecordCrawl(len(crawl.Pages))
		for _, tc := range cases {
			h.metrics.RecordTestCase(string(tc.Type), tc.Mapped)
		}
	}

	h.logger.Info("Test cases generated",
		zap.String("feature", analysisResult.Feature),
		zap.Int("total", summary.Total),
		zap.Int("mapped", summary.Mapped),
	)

	httputil.JSON(w, http.StatusOK, GenerateResponse{
		StoryData: analysisResult,
		PageData:  crawl,
		TestCases: cases,
		Summary:   summary,
	})
}
