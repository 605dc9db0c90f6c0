package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/workflows"
)

// GenerateCases builds the run's test case batch, replacing any
// previous batch, and saves the generation summary on the run row.
func (a *Activities) GenerateCases(ctx context.Context, in workflows.GenerateInput) (workflows.GenerateOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Generating test cases", "run_id", in.RunID.String())

	if in.Analysis == nil {
		a.record(workflows.GenerateActivityName, "failed")
		return workflows.GenerateOutput{}, phaseError(domain.ValidationError("analysis", "no analysis to generate from"))
	}

	cases := a.generator.Generate(*in.Analysis, in.Crawl)
	summary := domain.NewGenerationSummary(cases)

	if err := a.cases.ReplaceForRun(ctx, in.RunID, cases); err != nil {
		a.record(workflows.GenerateActivityName, "failed")
		return workflows.GenerateOutput{}, fmt.Errorf("saving test cases: %w", err)
	}

	run, err := a.runs.GetByID(ctx, in.RunID)
	if err != nil {
		a.record(workflows.GenerateActivityName, "failed")
		return workflows.GenerateOutput{}, fmt.Errorf("loading run: %w", err)
	}
	run.Generation = &summary
	if err := a.runs.Update(ctx, run); err != nil {
		a.record(workflows.GenerateActivityName, "failed")
		return workflows.GenerateOutput{}, fmt.Errorf("saving generation summary: %w", err)
	}

	if a.metrics != nil {
		for _, tc := range cases {
			a.metrics.RecordTestCase(string(tc.Type), tc.Mapped)
		}
	}

	logger.Info("Test cases generated",
		"total", summary.Total,
		"mapped", summary.Mapped,
		"unmapped", summary.Unmapped,
	)
	a.record(workflows.GenerateActivityName, "completed")
	return workflows.GenerateOutput{Cases: cases, Summary: summary}, nil
}
