package activities

import (
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"

	"github.com/storyqa/storyqa/internal/workflows"
)

// Register wires every pipeline activity under the name the workflow
// calls it by.
func (a *Activities) Register(w worker.Worker) {
	w.RegisterActivityWithOptions(a.AnalyzeStory, activity.RegisterOptions{Name: workflows.AnalyzeActivityName})
	w.RegisterActivityWithOptions(a.ExploreSite, activity.RegisterOptions{Name: workflows.ExploreActivityName})
	w.RegisterActivityWithOptions(a.GenerateCases, activity.RegisterOptions{Name: workflows.GenerateActivityName})
	w.RegisterActivityWithOptions(a.ExecuteCases, activity.RegisterOptions{Name: workflows.ExecuteActivityName})
	w.RegisterActivityWithOptions(a.PublishReport, activity.RegisterOptions{Name: workflows.ReportActivityName})
	w.RegisterActivityWithOptions(a.MarkRunPhase, activity.RegisterOptions{Name: workflows.MarkPhaseActivityName})
	w.RegisterActivityWithOptions(a.FinalizeRun, activity.RegisterOptions{Name: workflows.FinalizeActivityName})
}
