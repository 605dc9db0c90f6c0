package handlers

import (
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/services/analysis"
	"github.com/storyqa/storyqa/pkg/httputil"
)

// StoryHandler handles user story analysis requests
type StoryHandler struct {
	analysis *analysis.Service
	logger   *zap.Logger
}

// NewStoryHandler creates a new story handler
func NewStoryHandler(svc *analysis.Service, logger *zap.Logger) *StoryHandler {
	return &StoryHandler{analysis: svc, logger: logger}
}

// AnalyzeStoryRequest is the request body for story analysis
type AnalyzeStoryRequest struct {
	Story string `json:"story"`
}

// AnalyzeStoryResponse pairs the analysis with the designed suite
type AnalyzeStoryResponse struct {
	Analysis  *domain.StoryAnalysis `json:"analysis"`
	TestSuite *domain.TestSuite     `json:"test_suite"`
}

// Analyze handles POST /api/v1/stories/analyze
func (h *StoryHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeStoryRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	story := strings.TrimSpace(req.Story)
	if story == "" {
		httputil.ErrorFromDomain(w, domain.ValidationError("story", "No user story provided."))
		return
	}

	result, suite, err := h.analysis.AnalyzeAndGenerate(r.Context(), story)
	if err != nil {
		h.logger.Error("Story analysis failed", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}

	h.logger.Info("Story analyzed",
		zap.String("feature", result.Feature),
		zap.Int("conditions", len(result.Conditions)),
		zap.Int("suite_cases", suite.Total()),
	)

	httputil.JSON(w, http.StatusOK, AnalyzeStoryResponse{
		Analysis:  result,
		TestSuite: suite,
	})
}
