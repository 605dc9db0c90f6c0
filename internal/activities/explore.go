package activities

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/activity"

	"github.com/storyqa/storyqa/internal/services/explorer"
	"github.com/storyqa/storyqa/internal/workflows"
)

// ExploreSite crawls the target site and saves the crawl on the run
// row. The run's requested depth overrides the configured default.
func (a *Activities) ExploreSite(ctx context.Context, in workflows.ExploreInput) (workflows.ExploreOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Exploring site",
		"run_id", in.RunID.String(),
		"start_url", in.StartURL,
		"depth", in.Depth,
	)

	cfg := a.cfg.Explorer
	if in.Depth > 0 {
		cfg.MaxDepth = in.Depth
	}

	activity.RecordHeartbeat(ctx, "Crawling pages...")
	crawl, err := explorer.New(cfg, a.logger).Explore(ctx, in.StartURL)
	if err != nil {
		a.record(workflows.ExploreActivityName, "failed")
		return workflows.ExploreOutput{}, phaseError(err)
	}

	run, err := a.runs.GetByID(ctx, in.RunID)
	if err != nil {
		a.record(workflows.ExploreActivityName, "failed")
		return workflows.ExploreOutput{}, fmt.Errorf("loading run: %w", err)
	}
	run.Crawl = &crawl
	if err := a.runs.Update(ctx, run); err != nil {
		a.record(workflows.ExploreActivityName, "failed")
		return workflows.ExploreOutput{}, fmt.Errorf("saving crawl: %w", err)
	}

	if a.metrics != nil {
		a.metrics.RecordCrawl(len(crawl.Pages))
	}

	logger.Info("Site explored", "pages", len(crawl.Pages))
	a.record(workflows.ExploreActivityName, "completed")
	return workflows.ExploreOutput{Crawl: crawl}, nil
}
