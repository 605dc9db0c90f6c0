package execution

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
)

func passingCase(id string) domain.TestCase {
	return domain.TestCase{
		TCID:    id,
		Feature: "login",
		PageURL: "https://x.test/login",
		AutomationSteps: []string{
			"Find element by name/id 'username' and send_keys('testuser').",
			"Find button with text 'Login' and click().",
			"Assert that the page/response reflects: 'dashboard'.",
		},
	}
}

func TestRunner_AllStepsPass(t *testing.T) {
	d := &fakeDriver{source: "welcome to the dashboard"}
	r := NewRunner(d, t.TempDir(), zap.NewNop())

	results, summary := r.Run(context.Background(), []domain.TestCase{passingCase("TC-001")}, nil)
	require.Len(t, results, 1)
	res := results[0]

	assert.Equal(t, domain.ExecStatusPass, res.Status)
	assert.Empty(t, res.ErrorMessage)
	assert.Empty(t, res.ScreenshotPath)
	lines := strings.Split(res.Log, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "✔ Navigated to https://x.test/login", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "✔ Step 1: "))
	assert.Equal(t, "✅ All steps passed.", lines[4])
	assert.Equal(t, domain.ExecutionSummary{Total: 1, Passed: 1}, summary)
}

func TestRunner_ShortCircuitOnStepFailure(t *testing.T) {
	d := &fakeDriver{clickErr: &StepError{Kind: FailureNotFound, Msg: "Button 'Login' not found via text or submit selector"}}
	r := NewRunner(d, t.TempDir(), zap.NewNop())

	tc := domain.TestCase{
		TCID:    "TC-001",
		PageURL: "https://x.test/login",
		AutomationSteps: []string{
			"Locate element related to 'login' feature.",
			"Find element by name/id 'username' and send_keys('testuser').",
			"Find button with text 'Login' and click().",
			"Find button with text 'Continue' and click().",
			"Assert that the page/response reflects: 'dashboard'.",
		},
	}
	results, summary := r.Run(context.Background(), []domain.TestCase{tc}, nil)
	res := results[0]

	assert.Equal(t, domain.ExecStatusFail, res.Status)
	assert.Equal(t, "Button 'Login' not found via text or submit selector", res.ErrorMessage)

	// nav + two passed steps + the failed step + its reason, nothing for
	// steps 4 and 5.
	lines := strings.Split(res.Log, "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "✘ Step 3 FAILED: Find button with text 'Login' and click().", lines[3])
	assert.Equal(t, "   Reason: Button 'Login' not found via text or submit selector", lines[4])
	assert.Len(t, d.clicks, 1)

	require.Len(t, d.screenshots, 1)
	assert.True(t, strings.HasPrefix(res.ScreenshotPath, "screenshots/001_TC-001_"))
	assert.True(t, strings.HasSuffix(res.ScreenshotPath, "_failure.png"))
	assert.Equal(t, domain.ExecutionSummary{Total: 1, Failed: 1}, summary)
}

func TestRunner_NavigationFailureIsError(t *testing.T) {
	d := &fakeDriver{navErr: errors.New("net::ERR_NAME_NOT_RESOLVED")}
	r := NewRunner(d, t.TempDir(), zap.NewNop())

	results, summary := r.Run(context.Background(), []domain.TestCase{passingCase("TC-001")}, nil)
	res := results[0]

	assert.Equal(t, domain.ExecStatusError, res.Status)
	assert.Equal(t, "net::ERR_NAME_NOT_RESOLVED", res.ErrorMessage)
	assert.True(t, strings.HasPrefix(res.Log, "💥 Unexpected error: "))
	assert.Len(t, d.screenshots, 1)
	assert.Equal(t, domain.ExecutionSummary{Total: 1, Errored: 1}, summary)
}

func TestRunner_BatchIsolationAndDistinctScreenshots(t *testing.T) {
	d := &fakeDriver{clickErr: &StepError{Kind: FailureNotFound, Msg: "Button 'Go' not found via text or submit selector"}}
	r := NewRunner(d, t.TempDir(), zap.NewNop())

	var cases []domain.TestCase
	for i := 1; i <= 5; i++ {
		cases = append(cases, domain.TestCase{
			TCID:            fmt.Sprintf("TC-%03d", i),
			PageURL:         "https://x.test",
			AutomationSteps: []string{"Find button with text 'Go' and click()."},
		})
	}

	results, summary := r.Run(context.Background(), cases, nil)
	require.Len(t, results, 5)
	assert.Equal(t, domain.ExecutionSummary{Total: 5, Failed: 5}, summary)

	seen := make(map[string]bool)
	for i, res := range results {
		assert.Equal(t, domain.ExecStatusFail, res.Status)
		require.NotEmpty(t, res.ScreenshotPath)
		assert.False(t, seen[res.ScreenshotPath], "duplicate screenshot %s", res.ScreenshotPath)
		seen[res.ScreenshotPath] = true
		assert.True(t, strings.HasPrefix(res.ScreenshotPath, fmt.Sprintf("screenshots/%03d_", i+1)))
	}
}

func TestRunner_ScreenshotFailureSwallowed(t *testing.T) {
	d := &fakeDriver{
		clickErr:      &StepError{Kind: FailureNotFound, Msg: "Button 'Go' not found via text or submit selector"},
		screenshotErr: errors.New("page closed"),
	}
	r := NewRunner(d, t.TempDir(), zap.NewNop())

	tc := domain.TestCase{
		TCID:            "TC-001",
		PageURL:         "https://x.test",
		AutomationSteps: []string{"Find button with text 'Go' and click()."},
	}
	results, _ := r.Run(context.Background(), []domain.TestCase{tc}, nil)

	assert.Equal(t, domain.ExecStatusFail, results[0].Status)
	assert.Empty(t, results[0].ScreenshotPath)
}

func TestRunner_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := &fakeDriver{}
	r := NewRunner(d, t.TempDir(), zap.NewNop())
	results, summary := r.Run(ctx, []domain.TestCase{passingCase("TC-001"), passingCase("TC-002")}, nil)

	require.Len(t, results, 2)
	for _, res := range results {
		assert.Equal(t, domain.ExecStatusError, res.Status)
		assert.Equal(t, context.Canceled.Error(), res.ErrorMessage)
	}
	assert.Equal(t, domain.ExecutionSummary{Total: 2, Errored: 2}, summary)
	assert.Empty(t, d.navigated)
}

func TestRunner_ProgressCallback(t *testing.T) {
	d := &fakeDriver{source: "dashboard"}
	r := NewRunner(d, t.TempDir(), zap.NewNop())

	var calls [][2]int
	_, _ = r.Run(context.Background(), []domain.TestCase{passingCase("TC-001"), passingCase("TC-002")},
		func(done, total int, _ domain.ExecutionResult) {
			calls = append(calls, [2]int{done, total})
		})

	assert.Equal(t, [][2]int{{1, 2}, {2, 2}}, calls)
}

func TestRunner_DurationRounded(t *testing.T) {
	d := &fakeDriver{source: "dashboard"}
	r := NewRunner(d, t.TempDir(), zap.NewNop())

	results, _ := r.Run(context.Background(), []domain.TestCase{passingCase("TC-001")}, nil)
	res := results[0]

	assert.GreaterOrEqual(t, res.DurationSeconds, 0.0)
	assert.Equal(t, domain.RoundDuration(res.DurationSeconds), res.DurationSeconds)
}

func TestScreenshotName(t *testing.T) {
	at := time.UnixMilli(1755800000000)
	assert.Equal(t, "003_TC_001_x_1755800000000_failure.png", screenshotName(3, "TC 001/x", at))
	assert.Equal(t, "001_TC-001_1755800000000_failure.png", screenshotName(1, "TC-001", at))
}
