package activities

import (
	"context"
	"fmt"
	"strings"

	"go.temporal.io/sdk/activity"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/workflows"
)

// AnalyzeStory interprets the run's user story and saves the analysis
// on the run row. An empty story is rejected for good; retrying does
// not grow a story.
func (a *Activities) AnalyzeStory(ctx context.Context, in workflows.AnalyzeInput) (workflows.AnalyzeOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Analyzing story", "run_id", in.RunID.String())

	if strings.TrimSpace(in.Story) == "" {
		a.record(workflows.AnalyzeActivityName, "failed")
		return workflows.AnalyzeOutput{}, phaseError(domain.ValidationError("story", "story must not be empty"))
	}

	storyAnalysis, err := a.analyzer.Analyze(ctx, in.Story)
	if err != nil {
		a.record(workflows.AnalyzeActivityName, "failed")
		return workflows.AnalyzeOutput{}, phaseError(fmt.Errorf("analyzing story: %w", err))
	}

	run, err := a.runs.GetByID(ctx, in.RunID)
	if err != nil {
		a.record(workflows.AnalyzeActivityName, "failed")
		return workflows.AnalyzeOutput{}, fmt.Errorf("loading run: %w", err)
	}
	run.Analysis = storyAnalysis
	run.Feature = storyAnalysis.Feature
	run.UserRole = storyAnalysis.UserRole
	if err := a.runs.Update(ctx, run); err != nil {
		a.record(workflows.AnalyzeActivityName, "failed")
		return workflows.AnalyzeOutput{}, fmt.Errorf("saving analysis: %w", err)
	}

	logger.Info("Story analyzed",
		"feature", storyAnalysis.Feature,
		"user_role", storyAnalysis.UserRole,
		"conditions", len(storyAnalysis.Conditions),
	)
	a.record(workflows.AnalyzeActivityName, "completed")
	return workflows.AnalyzeOutput{Analysis: storyAnalysis}, nil
}
