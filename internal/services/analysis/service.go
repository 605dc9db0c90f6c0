package analysis

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/llm"
)

// defaultRetryBackoff is the pause before the single service-level retry
// after a rate-limited model call.
const defaultRetryBackoff = 3 * time.Second

var errNoConditions = errors.New("model returned no testable conditions")

// Service couples the model-backed analysts with their rule-based
// fallbacks so story analysis always produces a result. With a nil client
// the model path is skipped entirely.
type Service struct {
	llmAnalyst   *LLMAnalyst
	llmSuite     *LLMSuiteGenerator
	ruleAnalyst  *RuleAnalyst
	ruleSuite    *RuleSuiteBuilder
	retryBackoff time.Duration
	logger       *zap.Logger
}

// NewService creates the analysis service. client may be nil, in which
// case only the rule-based engines run.
func NewService(client *llm.ClaudeClient, logger *zap.Logger) *Service {
	s := &Service{
		ruleAnalyst:  NewRuleAnalyst(),
		ruleSuite:    NewRuleSuiteBuilder(),
		retryBackoff: defaultRetryBackoff,
		logger:       logger,
	}
	if client != nil {
		s.llmAnalyst = NewLLMAnalyst(client)
		s.llmSuite = NewLLMSuiteGenerator(client)
	}
	return s
}

// Analyze interprets a user story. The model path is tried first when a
// client is configured; a rate-limited call gets one retry after a short
// backoff, and any failure hands over to the rule-based analyst. The
// returned analysis always has a feature, a role, and a non-nil condition
// list.
func (s *Service) Analyze(ctx context.Context, story string) (*domain.StoryAnalysis, error) {
	if s.llmAnalyst != nil {
		analysis, err := s.analyzeLLM(ctx, story)
		if err == nil {
			return analysis, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("model analysis failed, using rule-based analyst", zap.Error(err))
	}
	return s.ruleAnalyst.Analyze(story), nil
}

// GenerateSuite builds the classic test suite for an analysis. Model
// output is preferred; the rule-built suite covers every failure mode.
func (s *Service) GenerateSuite(ctx context.Context, analysis *domain.StoryAnalysis) (*domain.TestSuite, error) {
	if s.llmSuite != nil {
		suite, err := s.suiteLLM(ctx, analysis)
		if err == nil {
			return suite, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.logger.Warn("model suite generation failed, using rule-based generator", zap.Error(err))
	}
	return s.ruleSuite.Build(analysis), nil
}

// AnalyzeAndGenerate runs analysis and suite generation as one step.
func (s *Service) AnalyzeAndGenerate(ctx context.Context, story string) (*domain.StoryAnalysis, *domain.TestSuite, error) {
	analysis, err := s.Analyze(ctx, story)
	if err != nil {
		return nil, nil, err
	}
	suite, err := s.GenerateSuite(ctx, analysis)
	if err != nil {
		return nil, nil, err
	}
	return analysis, suite, nil
}

func (s *Service) analyzeLLM(ctx context.Context, story string) (*domain.StoryAnalysis, error) {
	var analysis *domain.StoryAnalysis
	err := s.withRateLimitRetry(ctx, func() error {
		var err error
		analysis, err = s.llmAnalyst.Analyze(ctx, story)
		return err
	})
	if err != nil {
		return nil, err
	}
	if len(analysis.Conditions) == 0 {
		return nil, errNoConditions
	}
	return analysis, nil
}

func (s *Service) suiteLLM(ctx context.Context, analysis *domain.StoryAnalysis) (*domain.TestSuite, error) {
	var suite *domain.TestSuite
	err := s.withRateLimitRetry(ctx, func() error {
		var err error
		suite, err = s.llmSuite.Generate(ctx, analysis)
		return err
	})
	if err != nil {
		return nil, err
	}
	return suite, nil
}

// withRateLimitRetry runs fn and repeats it once when the failure was a
// 429. The client already retries transport-level failures internally;
// this second layer waits out the longer quota windows.
func (s *Service) withRateLimitRetry(ctx context.Context, fn func() error) error {
	err := fn()
	if err == nil || !llm.IsRateLimited(err) {
		return err
	}
	select {
	case <-time.After(s.retryBackoff):
	case <-ctx.Done():
		return ctx.Err()
	}
	return fn()
}
