// Package workflows holds the durable pipeline definition. The workflow
// only sequences activities; every side effect (services, persistence,
// metrics) lives in the activities package.
package workflows

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/storyqa/storyqa/internal/domain"
)

// Activity names - must match registered activity names
const (
	AnalyzeActivityName  = "AnalyzeStoryActivity"
	ExploreActivityName  = "ExploreSiteActivity"
	GenerateActivityName = "GenerateCasesActivity"
	ExecuteActivityName  = "ExecuteCasesActivity"
	ReportActivityName   = "PublishReportActivity"

	MarkPhaseActivityName = "MarkRunPhaseActivity"
	FinalizeActivityName  = "FinalizeRunActivity"
)

// validationErrorType marks activity failures that no retry can fix. It
// matches the code carried by rejected inputs end to end.
const validationErrorType = "VALIDATION_ERROR"

// PipelineWorkflow drives one run through analyze, explore, generate,
// execute and report. Phase failures mark the run failed and return the
// output normally; the workflow itself never fails, so callers always
// get an account of how far the run got.
func PipelineWorkflow(ctx workflow.Context, input PipelineInput) (*PipelineOutput, error) {
	logger := workflow.GetLogger(ctx)
	startedAt := workflow.Now(ctx)

	logger.Info("Starting pipeline",
		"run_id", input.RunID.String(),
		"start_url", input.StartURL,
		"depth", input.Depth,
	)

	output := &PipelineOutput{
		RunID:  input.RunID,
		Status: "running",
	}

	// Phase 1: story analysis
	markPhase(ctx, input.RunID, domain.RunStatusAnalyzing)
	analyzeOut, err := executeAnalyze(ctx, input)
	if err != nil {
		return failPipeline(ctx, output, startedAt, "analyzing story", err)
	}
	logger.Info("Analysis completed",
		"feature", analyzeOut.Analysis.Feature,
		"conditions", len(analyzeOut.Analysis.Conditions),
	)

	// Phase 2: site exploration
	markPhase(ctx, input.RunID, domain.RunStatusExploring)
	exploreOut, err := executeExplore(ctx, input)
	if err != nil {
		return failPipeline(ctx, output, startedAt, "exploring site", err)
	}
	logger.Info("Exploration completed", "pages", len(exploreOut.Crawl.Pages))

	// Phase 3: test case generation
	markPhase(ctx, input.RunID, domain.RunStatusGenerating)
	generateOut, err := executeGenerate(ctx, input, analyzeOut, exploreOut)
	if err != nil {
		return failPipeline(ctx, output, startedAt, "generating test cases", err)
	}
	output.Generation = &generateOut.Summary
	logger.Info("Generation completed",
		"total", generateOut.Summary.Total,
		"mapped", generateOut.Summary.Mapped,
	)

	// Phase 4: browser execution
	markPhase(ctx, input.RunID, domain.RunStatusExecuting)
	executeOut, err := executeCases(ctx, input, generateOut)
	if err != nil {
		return failPipeline(ctx, output, startedAt, "executing test cases", err)
	}
	output.Execution = &executeOut.Summary
	logger.Info("Execution completed",
		"total", executeOut.Summary.Total,
		"passed", executeOut.Summary.Passed,
		"failed", executeOut.Summary.Failed,
		"errored", executeOut.Summary.Errored,
	)

	// Phase 5: report publication. Results already exist by now, so a
	// report failure downgrades the run rather than failing it.
	markPhase(ctx, input.RunID, domain.RunStatusReporting)
	reportOut, err := executeReport(ctx, input, exploreOut, executeOut)
	if err != nil {
		logger.Warn("Report publication failed", "error", err)
	} else {
		output.ReportURI = reportOut.ReportURI
	}

	output.Status = string(domain.RunStatusCompleted)
	output.CompletedAt = workflow.Now(ctx)
	output.TotalDuration = output.CompletedAt.Sub(startedAt)

	finalizeRun(ctx, FinalizeInput{
		RunID:      input.RunID,
		Status:     domain.RunStatusCompleted,
		Generation: output.Generation,
		Execution:  output.Execution,
		ReportURI:  output.ReportURI,
		Duration:   output.TotalDuration,
	})

	logger.Info("Pipeline completed",
		"run_id", input.RunID.String(),
		"status", output.Status,
		"duration", output.TotalDuration,
		"report_uri", output.ReportURI,
	)

	return output, nil
}

// executeAnalyze runs the story analysis activity.
func executeAnalyze(ctx workflow.Context, input PipelineInput) (*AnalyzeOutput, error) {
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        30 * time.Second,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{validationErrorType},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	analyzeInput := AnalyzeInput{
		RunID: input.RunID,
		Story: input.Story,
	}

	var output AnalyzeOutput
	err := workflow.ExecuteActivity(ctx, AnalyzeActivityName, analyzeInput).Get(ctx, &output)
	return &output, err
}

// executeExplore runs the site exploration activity.
func executeExplore(ctx workflow.Context, input PipelineInput) (*ExploreOutput, error) {
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			BackoffCoefficient:     2.0,
			MaximumInterval:        time.Minute,
			MaximumAttempts:        3,
			NonRetryableErrorTypes: []string{validationErrorType},
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	exploreInput := ExploreInput{
		RunID:    input.RunID,
		StartURL: input.StartURL,
		Depth:    input.Depth,
	}

	var output ExploreOutput
	err := workflow.ExecuteActivity(ctx, ExploreActivityName, exploreInput).Get(ctx, &output)
	return &output, err
}

// executeGenerate runs the test case generation activity.
func executeGenerate(ctx workflow.Context, input PipelineInput, analyze *AnalyzeOutput, explore *ExploreOutput) (*GenerateOutput, error) {
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	generateInput := GenerateInput{
		RunID:    input.RunID,
		Analysis: analyze.Analysis,
		Crawl:    explore.Crawl,
	}

	var output GenerateOutput
	err := workflow.ExecuteActivity(ctx, GenerateActivityName, generateInput).Get(ctx, &output)
	return &output, err
}

// executeCases runs the browser execution activity. Assertion failures
// come back as Fail results inside the output, never as activity
// errors, so a retry here only reruns sessions that could not start.
func executeCases(ctx workflow.Context, input PipelineInput, generate *GenerateOutput) (*ExecuteOutput, error) {
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 15 * time.Minute,
		HeartbeatTimeout:    30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    2,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	executeInput := ExecuteInput{
		RunID:    input.RunID,
		Cases:    generate.Cases,
		Headless: input.Headless,
	}

	var output ExecuteOutput
	err := workflow.ExecuteActivity(ctx, ExecuteActivityName, executeInput).Get(ctx, &output)
	return &output, err
}

// executeReport runs the report publication activity.
func executeReport(ctx workflow.Context, input PipelineInput, explore *ExploreOutput, execute *ExecuteOutput) (*ReportOutput, error) {
	activityOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    30 * time.Second,
			MaximumAttempts:    3,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, activityOptions)

	reportInput := ReportInput{
		RunID:   input.RunID,
		Results: execute.Results,
		Summary: execute.Summary,
		Pages:   explore.Crawl.Pages,
	}

	var output ReportOutput
	err := workflow.ExecuteActivity(ctx, ReportActivityName, reportInput).Get(ctx, &output)
	return &output, err
}

// failPipeline records the phase that broke, closes the run out as
// failed and returns the output as the workflow result.
func failPipeline(ctx workflow.Context, output *PipelineOutput, startedAt time.Time, phase string, err error) (*PipelineOutput, error) {
	output.Status = string(domain.RunStatusFailed)
	output.Error = fmt.Sprintf("%s: %v", phase, err)
	output.CompletedAt = workflow.Now(ctx)
	output.TotalDuration = output.CompletedAt.Sub(startedAt)

	workflow.GetLogger(ctx).Error("Pipeline failed", "phase", phase, "error", err)

	finalizeRun(ctx, FinalizeInput{
		RunID:      output.RunID,
		Status:     domain.RunStatusFailed,
		Error:      output.Error,
		Generation: output.Generation,
		Execution:  output.Execution,
		Duration:   output.TotalDuration,
	})

	// A nil error keeps the workflow green; the failure lives in the output.
	return output, nil
}

// markPhase updates the run's status before a phase starts. Status rows
// are advisory; a failed update is logged, not fatal.
func markPhase(ctx workflow.Context, runID uuid.UUID, status domain.RunStatus) {
	ctx = workflow.WithActivityOptions(ctx, statusActivityOptions())

	in := MarkPhaseInput{RunID: runID, Status: status}
	if err := workflow.ExecuteActivity(ctx, MarkPhaseActivityName, in).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("Failed to update run status",
			"status", string(status), "error", err)
	}
}

// finalizeRun persists the run's terminal state.
func finalizeRun(ctx workflow.Context, in FinalizeInput) {
	ctx = workflow.WithActivityOptions(ctx, statusActivityOptions())

	if err := workflow.ExecuteActivity(ctx, FinalizeActivityName, in).Get(ctx, nil); err != nil {
		workflow.GetLogger(ctx).Warn("Failed to finalize run",
			"run_id", in.RunID.String(), "error", err)
	}
}

func statusActivityOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    3,
		},
	}
}
