package activities

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/repository/redis"
	"github.com/storyqa/storyqa/internal/sandbox"
	"github.com/storyqa/storyqa/internal/services/execution"
	"github.com/storyqa/storyqa/internal/services/healing"
	"github.com/storyqa/storyqa/internal/services/scriptgen"
	"github.com/storyqa/storyqa/internal/workflows"
)

// ExecuteCases runs the batch and persists per-case results. With a
// sandbox manager configured the suite is exported and run in an
// isolated pod; otherwise a local browser session interprets the cases
// directly. Assertion failures are data inside the results, never
// activity errors.
func (a *Activities) ExecuteCases(ctx context.Context, in workflows.ExecuteInput) (workflows.ExecuteOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Executing test cases",
		"run_id", in.RunID.String(),
		"cases", len(in.Cases),
		"headless", in.Headless,
	)

	if len(in.Cases) == 0 {
		a.record(workflows.ExecuteActivityName, "completed")
		return workflows.ExecuteOutput{Results: []domain.ExecutionResult{}}, nil
	}

	if a.sandboxes != nil {
		return a.executeSandboxed(ctx, in)
	}
	return a.executeLocal(ctx, in)
}

func (a *Activities) executeLocal(ctx context.Context, in workflows.ExecuteInput) (workflows.ExecuteOutput, error) {
	sessionCfg := a.cfg.Session
	sessionCfg.Headless = in.Headless

	driver, closeSession, err := a.newSession(sessionCfg, a.logger)
	if err != nil {
		a.record(workflows.ExecuteActivityName, "failed")
		return workflows.ExecuteOutput{}, fmt.Errorf("starting browser session: %w", err)
	}
	defer func() {
		if err := closeSession(); err != nil {
			a.logger.Warn("Failed to close browser session", zap.Error(err))
		}
	}()

	runner := execution.NewRunner(driver, a.cfg.ScreenshotDir, a.logger)
	results, summary := runner.Run(ctx, in.Cases, a.progress(ctx, in.RunID))

	if err := a.results.ReplaceForRun(ctx, in.RunID, results); err != nil {
		a.record(workflows.ExecuteActivityName, "failed")
		return workflows.ExecuteOutput{}, fmt.Errorf("saving results: %w", err)
	}

	a.record(workflows.ExecuteActivityName, "completed")
	return workflows.ExecuteOutput{Results: results, Summary: summary}, nil
}

// progress turns runner callbacks into heartbeats, metrics and live
// progress events for subscribed watchers.
func (a *Activities) progress(ctx context.Context, runID uuid.UUID) execution.Progress {
	return func(done, total int, result domain.ExecutionResult) {
		activity.RecordHeartbeat(ctx, fmt.Sprintf("%d/%d %s", done, total, result.TCID))

		if a.metrics != nil {
			a.metrics.RecordExecution(string(result.Status), result.DurationSeconds)
			if result.Status != domain.ExecStatusPass && result.ErrorMessage != "" {
				a.metrics.RecordStepFailure(string(healing.Classify(result.ErrorMessage)))
			}
		}
		if a.cache != nil {
			ev := redis.ProgressEvent{
				RunID:  runID,
				Done:   done,
				Total:  total,
				TCID:   result.TCID,
				Status: result.Status,
			}
			if err := a.cache.PublishRunProgress(ctx, ev); err != nil {
				a.logger.Warn("Failed to publish run progress", zap.Error(err))
			}
		}
	}
}

func (a *Activities) executeSandboxed(ctx context.Context, in workflows.ExecuteInput) (workflows.ExecuteOutput, error) {
	if a.store == nil {
		a.record(workflows.ExecuteActivityName, "failed")
		return workflows.ExecuteOutput{}, fmt.Errorf("sandbox execution needs an artifact store")
	}

	run, err := a.runs.GetByID(ctx, in.RunID)
	if err != nil {
		a.record(workflows.ExecuteActivityName, "failed")
		return workflows.ExecuteOutput{}, fmt.Errorf("loading run: %w", err)
	}

	suite := scriptgen.NewGenerator(run.StartURL).Generate(suiteName(run), in.Cases)
	archive, err := suite.Zip()
	if err != nil {
		a.record(workflows.ExecuteActivityName, "failed")
		return workflows.ExecuteOutput{}, fmt.Errorf("archiving suite: %w", err)
	}

	key := fmt.Sprintf("%s/%s.zip", a.cfg.SuitePrefix, in.RunID)
	uri, err := a.store.Save(ctx, key, archive, "application/zip")
	if err != nil {
		a.record(workflows.ExecuteActivityName, "failed")
		return workflows.ExecuteOutput{}, fmt.Errorf("staging suite: %w", err)
	}

	activity.RecordHeartbeat(ctx, "Suite staged, starting sandbox run...")
	res, err := a.sandboxes.Run(ctx, sandbox.Request{
		RunID:     in.RunID,
		SuiteURI:  uri,
		TargetURL: run.StartURL,
	})
	if err != nil {
		a.record(workflows.ExecuteActivityName, "failed")
		return workflows.ExecuteOutput{}, fmt.Errorf("running sandbox: %w", err)
	}
	// Succeeded and failed are both accounts of the suite running to
	// the end; anything else is infrastructure and worth a retry.
	if res.Status != sandbox.StatusSucceeded && res.Status != sandbox.StatusFailed {
		a.record(workflows.ExecuteActivityName, "failed")
		return workflows.ExecuteOutput{}, fmt.Errorf("sandbox run ended %s: %s", res.Status, res.Error)
	}

	results := sandboxResults(in.Cases, res)
	summary := res.Summary()

	if err := a.results.ReplaceForRun(ctx, in.RunID, results); err != nil {
		a.record(workflows.ExecuteActivityName, "failed")
		return workflows.ExecuteOutput{}, fmt.Errorf("saving results: %w", err)
	}

	if a.metrics != nil {
		for _, r := range results {
			a.metrics.RecordExecution(string(r.Status), r.DurationSeconds)
		}
	}

	a.record(workflows.ExecuteActivityName, "completed")
	return workflows.ExecuteOutput{Results: results, Summary: summary}, nil
}

func suiteName(run *domain.Run) string {
	if run.Feature != "" {
		return run.Feature
	}
	return "storyqa"
}

// sandboxResults projects the pod's per-spec outcomes back onto the
// batch. Cases absent from the recovered report are errored; the
// summary still carries the pod's own tallies, which stay authoritative
// when only log counts could be recovered.
func sandboxResults(cases []domain.TestCase, res *sandbox.Result) []domain.ExecutionResult {
	byID := make(map[string]sandbox.SpecResult, len(res.Specs))
	for _, spec := range res.Specs {
		if spec.TCID != "" {
			byID[spec.TCID] = spec
		}
	}

	results := make([]domain.ExecutionResult, 0, len(cases))
	for _, tc := range cases {
		r := domain.ExecutionResult{
			TCID:         tc.TCID,
			Feature:      tc.Feature,
			UserRole:     tc.UserRole,
			Condition:    tc.Condition,
			PageURL:      tc.PageURL,
			Status:       domain.ExecStatusError,
			ErrorMessage: "not present in sandbox report",
			Log:          "executed in sandbox",
		}
		if spec, ok := byID[tc.TCID]; ok {
			r.Status = specStatus(spec.Status)
			r.DurationSeconds = domain.RoundDuration(spec.DurationSeconds)
			r.ErrorMessage = spec.Error
			r.Log = fmt.Sprintf("sandbox: %s", spec.Status)
		}
		results = append(results, r)
	}
	return results
}

// specStatus maps Playwright result statuses onto execution statuses.
// Skipped tests never ran, so they count as errored.
func specStatus(s string) domain.ExecStatus {
	switch s {
	case "passed":
		return domain.ExecStatusPass
	case "failed", "timedOut", "interrupted":
		return domain.ExecStatusFail
	default:
		return domain.ExecStatusError
	}
}
