package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/workflows"
)

// MarkRunPhase moves the run to the status of the phase about to start.
func (a *Activities) MarkRunPhase(ctx context.Context, in workflows.MarkPhaseInput) error {
	activity.GetLogger(ctx).Info("Updating run status",
		"run_id", in.RunID.String(),
		"status", string(in.Status),
	)
	if err := a.runs.UpdateStatus(ctx, in.RunID, in.Status); err != nil {
		return fmt.Errorf("updating run status: %w", err)
	}
	return nil
}

// FinalizeRun closes a run out and fires the completion side effects:
// run metrics and, for completed runs, the webhook notification. Phase
// summaries already persisted on the run are kept unless the workflow
// carried newer ones.
func (a *Activities) FinalizeRun(ctx context.Context, in workflows.FinalizeInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("Finalizing run",
		"run_id", in.RunID.String(),
		"status", string(in.Status),
	)

	run, err := a.runs.GetByID(ctx, in.RunID)
	if err != nil {
		return fmt.Errorf("loading run: %w", err)
	}

	if in.Status == domain.RunStatusCompleted {
		run.Complete(in.Generation, in.Execution, in.ReportURI)
	} else {
		run.Fail(in.Error)
		if in.Generation != nil {
			run.Generation = in.Generation
		}
		if in.Execution != nil {
			run.Execution = in.Execution
		}
	}

	if err := a.runs.Update(ctx, run); err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	if a.metrics != nil {
		a.metrics.RecordRun(string(run.Status))
		a.metrics.RecordWorkflowComplete("pipeline", string(run.Status), in.Duration)
	}

	if run.Status == domain.RunStatusCompleted && a.notifier.Enabled() {
		summary := domain.ExecutionSummary{}
		if run.Execution != nil {
			summary = *run.Execution
		}
		if err := a.notifier.RunCompleted(ctx, run.ID, run.Feature, summary, run.ReportURI); err != nil {
			a.logger.Warn("Completion webhook failed", zap.Error(err))
		}
	}

	return nil
}
