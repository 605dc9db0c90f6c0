// Package activities implements the pipeline's Temporal activities.
// The workflow only sequences; everything that touches a service, the
// database, object storage or the network happens here, once per
// activity, so retries replay a whole phase.
package activities

import (
	"go.temporal.io/sdk/temporal"
	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/observability"
	"github.com/storyqa/storyqa/internal/repository/redis"
	"github.com/storyqa/storyqa/internal/sandbox"
	"github.com/storyqa/storyqa/internal/services/analysis"
	"github.com/storyqa/storyqa/internal/services/execution"
	"github.com/storyqa/storyqa/internal/services/explorer"
	"github.com/storyqa/storyqa/internal/services/generation"
	"github.com/storyqa/storyqa/internal/services/reporting"
	"github.com/storyqa/storyqa/internal/storage"
)

// Config carries the per-phase settings activities run with.
type Config struct {
	Explorer      explorer.Config
	Session       execution.SessionConfig
	ScreenshotDir string
	SuitePrefix   string // object storage prefix for exported suites
}

// Deps wires the repositories and services activities call into. The
// repositories, analyzer, generator and reporter are required; Store,
// Sandboxes, Cache, Notifier and Metrics may be nil, and the matching
// behavior is skipped.
type Deps struct {
	Runs      domain.RunRepository
	Cases     domain.TestCaseRepository
	Results   domain.ResultRepository
	Reports   domain.ReportRepository
	Analyzer  *analysis.Service
	Generator *generation.Generator
	Reporter  *reporting.Generator
	Store     storage.ArtifactStore
	Sandboxes sandbox.Manager
	Cache     *redis.Cache
	Notifier  *reporting.Notifier
	Metrics   *observability.Metrics
	Logger    *zap.Logger
}

// Activities is the worker-side implementation of every pipeline
// activity. One instance serves all task slots; it holds no per-run
// state.
type Activities struct {
	cfg       Config
	runs      domain.RunRepository
	cases     domain.TestCaseRepository
	results   domain.ResultRepository
	reports   domain.ReportRepository
	analyzer  *analysis.Service
	generator *generation.Generator
	reporter  *reporting.Generator
	store     storage.ArtifactStore
	sandboxes sandbox.Manager
	cache     *redis.Cache
	notifier  *reporting.Notifier
	metrics   *observability.Metrics
	logger    *zap.Logger

	// newSession is swapped out in tests to avoid real browsers.
	newSession func(execution.SessionConfig, *zap.Logger) (execution.Driver, func() error, error)
}

// New builds the activity set.
func New(cfg Config, deps Deps) *Activities {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SuitePrefix == "" {
		cfg.SuitePrefix = "suites"
	}
	return &Activities{
		cfg:        cfg,
		runs:       deps.Runs,
		cases:      deps.Cases,
		results:    deps.Results,
		reports:    deps.Reports,
		analyzer:   deps.Analyzer,
		generator:  deps.Generator,
		reporter:   deps.Reporter,
		store:      deps.Store,
		sandboxes:  deps.Sandboxes,
		cache:      deps.Cache,
		notifier:   deps.Notifier,
		metrics:    deps.Metrics,
		logger:     logger,
		newSession: defaultSession,
	}
}

// record reports an activity completion when metrics are wired.
func (a *Activities) record(activityType, status string) {
	if a.metrics != nil {
		a.metrics.RecordActivityExecution(activityType, status)
	}
}

// phaseError converts validation failures into non-retryable
// application errors. Everything else stays retryable.
func phaseError(err error) error {
	if domain.IsSentinelError(err, domain.ErrInvalidInputVal) {
		return temporal.NewApplicationError(err.Error(), domain.ErrCodeValidation)
	}
	return err
}

func defaultSession(cfg execution.SessionConfig, logger *zap.Logger) (execution.Driver, func() error, error) {
	session, err := execution.NewSession(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return session, session.Close, nil
}
