package reporting

import (
	"fmt"
	"sort"
	"strings"

	"github.com/storyqa/storyqa/internal/domain"
)

// fallbackFeature buckets results that carry no feature name.
const fallbackFeature = "General"

// overallComment is the one-line verdict under the summary cards.
// Thresholds: 100 stable, >=80 mostly fine, >=50 shaky, else critical.
func overallComment(rate, failed, errored int) string {
	switch {
	case rate == 100:
		return "All test cases passed. The feature appears stable and ready for review."
	case rate >= 80:
		return fmt.Sprintf("Most tests passed (%d%%). %d case(s) need attention before release.", rate, failed+errored)
	case rate >= 50:
		return fmt.Sprintf("Only %d%% of tests passed. Several failures detected — investigate before proceeding.", rate)
	default:
		return fmt.Sprintf("Critical failure rate detected (%d%% failures). The feature requires immediate fixes.", 100-rate)
	}
}

// failurePatterns derives the conclusion bullets from failed and errored
// results: affected features, the dominant failure URL, and hints keyed
// off well-known error message fragments.
func failurePatterns(results []domain.ExecutionResult) []string {
	failures := collectFailures(results)
	if len(failures) == 0 {
		return []string{"No failures detected — all test cases passed."}
	}

	seen := make(map[string]bool)
	var features []string
	for _, r := range failures {
		f := r.Feature
		if f == "" {
			f = fallbackFeature
		}
		if !seen[f] {
			seen[f] = true
			features = append(features, f)
		}
	}
	sort.Strings(features)

	patterns := []string{
		fmt.Sprintf("Failures observed in feature(s): %s.", strings.Join(features, ", ")),
	}

	// First URL to reach the top count wins ties.
	counts := make(map[string]int)
	var topURL string
	var topCount int
	for _, r := range failures {
		u := r.PageURL
		if u == "" {
			u = "unknown"
		}
		counts[u]++
		if counts[u] > topCount {
			topCount, topURL = counts[u], u
		}
	}
	if topCount > 1 {
		patterns = append(patterns, fmt.Sprintf("Most failures originate from: %s (%d cases).", topURL, topCount))
	}

	if anyErrorContains(failures, "not found") {
		patterns = append(patterns, "Several steps failed because expected UI elements were not found — possible selector mismatch or page structure change.")
	}
	if anyErrorContains(failures, "url mismatch") {
		patterns = append(patterns, "URL assertion failures detected — redirect or navigation behaviour may have changed.")
	}
	if anyErrorContains(failures, "timeout") {
		patterns = append(patterns, "Timeout errors present — page may be slow or elements not rendering in time.")
	}

	return patterns
}

// nextSteps builds the recommended actions list.
func nextSteps(results []domain.ExecutionResult) []string {
	failures := collectFailures(results)
	if len(failures) == 0 {
		return []string{"No action required — all tests pass. Consider expanding the test suite with more edge cases."}
	}

	steps := []string{
		"Review failure screenshots and logs to pinpoint the root cause for each failing test.",
		"Fix identified bugs in the application and re-run the failing test cases.",
		"Check that all form selectors (name, id) in automation_steps match the current page HTML.",
	}
	for _, r := range failures {
		if r.Status == domain.ExecStatusError {
			steps = append(steps, "Investigate 'Error' status cases — these indicate unexpected exceptions that may need a browser or driver update.")
			break
		}
	}
	steps = append(steps, "Once fixes are applied, regenerate the test cases and run the full execution again.")
	return steps
}

func collectFailures(results []domain.ExecutionResult) []domain.ExecutionResult {
	var failures []domain.ExecutionResult
	for _, r := range results {
		if r.Status == domain.ExecStatusFail || r.Status == domain.ExecStatusError {
			failures = append(failures, r)
		}
	}
	return failures
}

func anyErrorContains(failures []domain.ExecutionResult, fragment string) bool {
	for _, r := range failures {
		if r.ErrorMessage != "" && strings.Contains(strings.ToLower(r.ErrorMessage), fragment) {
			return true
		}
	}
	return false
}

// rateColor picks the accent for the pass-rate card.
func rateColor(rate int) string {
	switch {
	case rate >= 80:
		return "#22c55e"
	case rate >= 50:
		return "#f59e0b"
	default:
		return "#ef4444"
	}
}

// statusClass maps an execution status onto the template's CSS classes.
func statusClass(s domain.ExecStatus) string {
	switch s {
	case domain.ExecStatusPass:
		return "pass"
	case domain.ExecStatusFail:
		return "fail"
	default:
		return "error"
	}
}
