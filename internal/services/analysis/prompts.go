package analysis

import (
	"fmt"
	"strings"

	"github.com/storyqa/storyqa/internal/domain"
)

// AnalystSystemPrompt instructs the model to return a bare JSON analysis
// object. The JSON-only rule is repeated by the client layer, but models
// behave better when the system prompt states it up front.
func AnalystSystemPrompt() string {
	return `You are a senior QA engineer and story analyst.
Your job is to read a user story and extract structured testing information.

Given a user story, return a JSON object with exactly these keys:
{
  "feature": "<one short phrase — the main feature being described>",
  "user_role": "<the role of the user in the story, e.g. user, admin, recruiter>",
  "conditions": [
    "<condition 1>",
    "<condition 2>",
    ...
  ]
}

The "conditions" list must be COMPREHENSIVE and include ALL of:
  1. Valid / happy-path scenarios
  2. Invalid input scenarios (wrong format, wrong values)
  3. Missing / empty field scenarios (one at a time for each required field)
  4. Boundary conditions (min value, max value, exactly at limits)
  5. Edge cases (special characters, SQL injection, XSS, whitespace-only, very long strings)
  6. Security scenarios (unauthorized access, session expiry, locked accounts)
  7. Error message / validation rule scenarios
  8. Any domain-specific conditions implied by the story

Rules:
- Do NOT invent features not mentioned in the story.
- Keep each condition SHORT, CLEAR, and focused on ONE behavior.
- Format: "<input description> → <expected outcome>" where the outcome is clear.
- Return ONLY valid JSON — no markdown, no explanation, no code fences.`
}

// AnalystPrompt wraps the raw story for the analysis request.
func AnalystPrompt(story string) string {
	return fmt.Sprintf("Analyze the following user story and return the JSON object as instructed.\n\nUSER STORY:\n\"\"\"%s\"\"\"", story)
}

// SuiteSystemPrompt instructs the model to expand conditions into full
// test case objects, one per condition, as a bare JSON array.
func SuiteSystemPrompt() string {
	return `You are a senior QA automation engineer.
Your job is to generate detailed, structured test cases from a feature name, user role, and a list of testable conditions.

For each condition, produce one test case object with these exact keys:
{
  "id": "TC-001",
  "title": "<Feature>: <short descriptive title>",
  "type": "<one of: Positive | Negative | Boundary | Edge Case>",
  "priority": "<one of: High | Medium | Low>",
  "preconditions": ["<precondition 1>", ...],
  "steps": ["<step 1>", "<step 2>", ...],
  "expected_result": "<clear expected outcome>"
}

Classification rules:
- Positive  → valid/happy-path scenarios          → High priority
- Negative  → invalid input, error, rejection     → High priority
- Boundary  → min/max values, exact limits        → Medium priority
- Edge Case → special chars, injection, whitespace, concurrent, timeout → Medium priority

Return a JSON array of test case objects — one per condition.
Return ONLY valid JSON — no markdown fences, no explanation.`
}

// SuitePrompt renders the analysis into the suite generation request.
func SuitePrompt(analysis *domain.StoryAnalysis) string {
	var sb strings.Builder
	sb.WriteString("Generate detailed test cases for the following:\n\n")
	sb.WriteString(fmt.Sprintf("Feature: %s\n", analysis.Feature))
	sb.WriteString(fmt.Sprintf("User Role: %s\n\n", analysis.UserRole))
	sb.WriteString("Testable Conditions:\n")
	for i, c := range analysis.Conditions {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, c))
	}
	sb.WriteString("\nReturn a JSON array of test case objects as instructed.")
	return sb.String()
}
