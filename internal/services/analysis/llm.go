package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/llm"
)

// LLMAnalyst asks the model for the structured interpretation of a story.
type LLMAnalyst struct {
	client *llm.ClaudeClient
}

func NewLLMAnalyst(client *llm.ClaudeClient) *LLMAnalyst {
	return &LLMAnalyst{client: client}
}

// Analyze requests a strict-JSON analysis of the story. The result is
// normalized but not validated; callers decide whether an empty condition
// list is acceptable.
func (a *LLMAnalyst) Analyze(ctx context.Context, story string) (*domain.StoryAnalysis, error) {
	var analysis domain.StoryAnalysis
	if _, err := a.client.CompleteJSON(ctx, AnalystSystemPrompt(), AnalystPrompt(story), &analysis); err != nil {
		return nil, fmt.Errorf("story analysis: %w", err)
	}
	analysis.OriginalStory = story
	analysis.Normalize()
	return &analysis, nil
}

// LLMSuiteGenerator expands an analysis into a classic test suite via the
// model. Responses are parsed tolerantly: some models fence the JSON or
// wrap the array in an envelope object despite instructions.
type LLMSuiteGenerator struct {
	client *llm.ClaudeClient
}

func NewLLMSuiteGenerator(client *llm.ClaudeClient) *LLMSuiteGenerator {
	return &LLMSuiteGenerator{client: client}
}

var errNoSuiteCases = errors.New("no test cases in model response")

// Generate requests one test case per analysis condition.
func (g *LLMSuiteGenerator) Generate(ctx context.Context, analysis *domain.StoryAnalysis) (*domain.TestSuite, error) {
	text, _, err := g.client.Complete(ctx, SuiteSystemPrompt(), SuitePrompt(analysis))
	if err != nil {
		return nil, fmt.Errorf("suite generation: %w", err)
	}

	items := parseSuiteCases(text)
	if len(items) == 0 {
		return nil, fmt.Errorf("suite generation: %w", errNoSuiteCases)
	}

	suite := &domain.TestSuite{
		Feature:   analysis.Feature,
		UserRole:  analysis.UserRole,
		TestCases: make([]domain.SuiteCase, 0, len(items)),
	}
	for i, item := range items {
		suite.TestCases = append(suite.TestCases, item.toSuiteCase(i+1))
	}
	return suite, nil
}

// suiteCaseJSON is the wire shape of one model-produced test case. Fields
// the model omits are filled by toSuiteCase.
type suiteCaseJSON struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Type           string   `json:"type"`
	Priority       string   `json:"priority"`
	Preconditions  []string `json:"preconditions"`
	Steps          []string `json:"steps"`
	ExpectedResult string   `json:"expected_result"`
}

func (c suiteCaseJSON) toSuiteCase(n int) domain.SuiteCase {
	out := domain.SuiteCase{
		ID:             c.ID,
		Title:          c.Title,
		Type:           domain.TestCategory(c.Type),
		Priority:       domain.Priority(c.Priority),
		Preconditions:  c.Preconditions,
		Steps:          c.Steps,
		ExpectedResult: c.ExpectedResult,
	}
	if out.ID == "" {
		out.ID = domain.TestCaseID(n)
	}
	if out.Title == "" {
		out.Title = domain.TestCaseID(n)
	}
	if out.Type == "" {
		out.Type = domain.CategoryPositive
	}
	if out.Priority == "" {
		out.Priority = domain.PriorityMedium
	}
	if out.Preconditions == nil {
		out.Preconditions = []string{}
	}
	if out.Steps == nil {
		out.Steps = []string{}
	}
	return out
}

// suiteWrapperKeys are the envelope keys models are known to wrap the
// case array in.
var suiteWrapperKeys = []string{"test_cases", "cases", "testCases"}

// parseSuiteCases extracts the case array from a raw completion. Returns
// nil when no array can be recovered.
func parseSuiteCases(raw string) []suiteCaseJSON {
	text := llm.ExtractJSON(raw)
	if text == "" {
		return nil
	}

	var items []suiteCaseJSON
	if err := json.Unmarshal([]byte(text), &items); err == nil {
		return items
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &wrapper); err != nil {
		return nil
	}
	for _, key := range suiteWrapperKeys {
		inner, ok := wrapper[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(inner, &items); err == nil {
			return items
		}
	}
	return nil
}
