package execution

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
)

// Progress is invoked after each test case completes.
type Progress func(done, total int, result domain.ExecutionResult)

// Runner executes test case batches against one shared browser
// session. The screenshot counter is batch-scoped, reset on each Run.
type Runner struct {
	driver        Driver
	interp        *Interpreter
	screenshotDir string
	logger        *zap.Logger
}

func NewRunner(driver Driver, screenshotDir string, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{
		driver:        driver,
		interp:        NewInterpreter(),
		screenshotDir: screenshotDir,
		logger:        logger,
	}
}

// Run executes every test case in order. One case failing never stops
// the batch; cancellation marks the remaining cases as errored.
func (r *Runner) Run(ctx context.Context, cases []domain.TestCase, onProgress Progress) ([]domain.ExecutionResult, domain.ExecutionSummary) {
	if r.screenshotDir != "" {
		if err := os.MkdirAll(r.screenshotDir, 0o755); err != nil {
			r.logger.Warn("creating screenshot directory", zap.Error(err))
		}
	}

	results := make([]domain.ExecutionResult, 0, len(cases))
	shots := 0
	for i, tc := range cases {
		var res domain.ExecutionResult
		if err := ctx.Err(); err != nil {
			res = domain.ExecutionResult{
				TCID:         tc.TCID,
				Feature:      tc.Feature,
				UserRole:     tc.UserRole,
				Condition:    tc.Condition,
				PageURL:      tc.PageURL,
				Status:       domain.ExecStatusError,
				ErrorMessage: err.Error(),
			}
		} else {
			res = r.executeCase(tc, &shots)
		}
		results = append(results, res)
		r.logger.Info("test case executed",
			zap.String("tc_id", res.TCID),
			zap.String("status", string(res.Status)),
			zap.Float64("duration_s", res.DurationSeconds))
		if onProgress != nil {
			onProgress(i+1, len(cases), res)
		}
	}
	return results, domain.NewExecutionSummary(results)
}

func (r *Runner) executeCase(tc domain.TestCase, shots *int) (res domain.ExecutionResult) {
	start := time.Now()
	res = domain.ExecutionResult{
		TCID:      tc.TCID,
		Feature:   tc.Feature,
		UserRole:  tc.UserRole,
		Condition: tc.Condition,
		PageURL:   tc.PageURL,
		Status:    domain.ExecStatusPass,
	}
	log := make([]string, 0, len(tc.AutomationSteps)+2)

	defer func() {
		if rec := recover(); rec != nil {
			res.Status = domain.ExecStatusError
			res.ErrorMessage = fmt.Sprint(rec)
			log = append(log, fmt.Sprintf("💥 Unexpected error: %v", rec))
			res.ScreenshotPath = r.capture(tc.TCID, shots)
		}
		res.Log = strings.Join(log, "\n")
		res.DurationSeconds = domain.RoundDuration(time.Since(start).Seconds())
	}()

	if tc.PageURL != "" {
		if err := r.driver.Navigate(tc.PageURL); err != nil {
			res.Status = domain.ExecStatusError
			res.ErrorMessage = err.Error()
			log = append(log, fmt.Sprintf("💥 Unexpected error: %v", err))
			res.ScreenshotPath = r.capture(tc.TCID, shots)
			return res
		}
		log = append(log, fmt.Sprintf("✔ Navigated to %s", tc.PageURL))
	}

	for i, step := range tc.AutomationSteps {
		if _, err := r.interp.Execute(r.driver, step); err != nil {
			var se *StepError
			if errors.As(err, &se) {
				res.Status = domain.ExecStatusFail
				res.ErrorMessage = se.Msg
				log = append(log,
					fmt.Sprintf("✘ Step %d FAILED: %s", i+1, truncateStep(step)),
					fmt.Sprintf("   Reason: %s", se.Msg))
			} else {
				res.Status = domain.ExecStatusError
				res.ErrorMessage = err.Error()
				log = append(log, fmt.Sprintf("💥 Unexpected error: %v", err))
			}
			res.ScreenshotPath = r.capture(tc.TCID, shots)
			return res
		}
		log = append(log, fmt.Sprintf("✔ Step %d: %s", i+1, truncateStep(step)))
	}

	log = append(log, "✅ All steps passed.")
	return res
}

// capture grabs a best-effort failure screenshot; a capture failure
// yields no artifact.
func (r *Runner) capture(tcID string, shots *int) string {
	time.Sleep(settleDelay)
	*shots++
	name := screenshotName(*shots, tcID, time.Now())
	if err := r.driver.Screenshot(filepath.Join(r.screenshotDir, name)); err != nil {
		r.logger.Debug("screenshot capture failed", zap.String("tc_id", tcID), zap.Error(err))
		return ""
	}
	return "screenshots/" + name
}

func truncateStep(step string) string {
	runes := []rune(step)
	if len(runes) > 90 {
		return string(runes[:90])
	}
	return step
}
