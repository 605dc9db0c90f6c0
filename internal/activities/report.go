package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/storyqa/storyqa/internal/services/healing"
	"github.com/storyqa/storyqa/internal/services/reporting"
	"github.com/storyqa/storyqa/internal/workflows"
)

// PublishReport assembles the run report, stores the rendered HTML and
// records the artifact. Failures diagnosed against the crawled page
// model feed the report's recommendations.
func (a *Activities) PublishReport(ctx context.Context, in workflows.ReportInput) (workflows.ReportOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Publishing report",
		"run_id", in.RunID.String(),
		"results", len(in.Results),
	)

	suggestions := healing.Suggestions(healing.Analyze(in.Results, in.Pages))

	rep := a.reporter.Build(ctx, reporting.Input{
		Results:     in.Results,
		Summary:     in.Summary,
		Suggestions: suggestions,
	})

	saved, err := a.reporter.Publish(ctx, in.RunID, rep)
	if err != nil {
		a.record(workflows.ReportActivityName, "failed")
		return workflows.ReportOutput{}, fmt.Errorf("publishing report: %w", err)
	}
	if err := a.reports.Create(ctx, saved); err != nil {
		a.record(workflows.ReportActivityName, "failed")
		return workflows.ReportOutput{}, fmt.Errorf("recording report: %w", err)
	}

	logger.Info("Report published", "uri", saved.URI, "pass_rate", saved.PassRate)
	a.record(workflows.ReportActivityName, "completed")
	return workflows.ReportOutput{ReportURI: saved.URI, PassRate: saved.PassRate}, nil
}
