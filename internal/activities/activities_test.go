package activities

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"
	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/sandbox"
	"github.com/storyqa/storyqa/internal/services/analysis"
	"github.com/storyqa/storyqa/internal/services/execution"
	"github.com/storyqa/storyqa/internal/services/generation"
	"github.com/storyqa/storyqa/internal/services/reporting"
	"github.com/storyqa/storyqa/internal/storage"
	"github.com/storyqa/storyqa/internal/workflows"
)

// In-memory repositories. Each fake covers exactly what the activities
// exercise; unused lookups return not-found.

type fakeRuns struct {
	runs     map[uuid.UUID]*domain.Run
	statuses []domain.RunStatus
}

func newFakeRuns(runs ...*domain.Run) *fakeRuns {
	f := &fakeRuns{runs: make(map[uuid.UUID]*domain.Run)}
	for _, r := range runs {
		f.runs[r.ID] = r
	}
	return f
}

func (f *fakeRuns) Create(ctx context.Context, run *domain.Run) error {
	f.runs[run.ID] = run
	return nil
}

func (f *fakeRuns) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	run, ok := f.runs[id]
	if !ok {
		return nil, domain.NotFoundError("run", id)
	}
	return run, nil
}

func (f *fakeRuns) GetByWorkflowID(ctx context.Context, workflowID string) (*domain.Run, error) {
	for _, run := range f.runs {
		if run.WorkflowID == workflowID {
			return run, nil
		}
	}
	return nil, domain.NotFoundError("run", workflowID)
}

func (f *fakeRuns) List(ctx context.Context, limit, offset int) ([]*domain.Run, int, error) {
	out := make([]*domain.Run, 0, len(f.runs))
	for _, run := range f.runs {
		out = append(out, run)
	}
	return out, len(out), nil
}

func (f *fakeRuns) Update(ctx context.Context, run *domain.Run) error {
	f.runs[run.ID] = run
	return nil
}

func (f *fakeRuns) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.RunStatus) error {
	f.statuses = append(f.statuses, status)
	if run, ok := f.runs[id]; ok {
		run.Status = status
	}
	return nil
}

func (f *fakeRuns) Delete(ctx context.Context, id uuid.UUID) error {
	delete(f.runs, id)
	return nil
}

type fakeCases struct {
	byRun map[uuid.UUID][]domain.TestCase
}

func (f *fakeCases) ReplaceForRun(ctx context.Context, runID uuid.UUID, cases []domain.TestCase) error {
	f.byRun[runID] = cases
	return nil
}

func (f *fakeCases) GetByRunID(ctx context.Context, runID uuid.UUID) ([]domain.TestCase, error) {
	return f.byRun[runID], nil
}

type fakeResults struct {
	byRun map[uuid.UUID][]domain.ExecutionResult
}

func (f *fakeResults) ReplaceForRun(ctx context.Context, runID uuid.UUID, results []domain.ExecutionResult) error {
	f.byRun[runID] = results
	return nil
}

func (f *fakeResults) GetByRunID(ctx context.Context, runID uuid.UUID) ([]domain.ExecutionResult, error) {
	return f.byRun[runID], nil
}

type fakeReports struct {
	reports []*domain.Report
}

func (f *fakeReports) Create(ctx context.Context, report *domain.Report) error {
	f.reports = append(f.reports, report)
	return nil
}

func (f *fakeReports) GetByID(ctx context.Context, id uuid.UUID) (*domain.Report, error) {
	for _, rep := range f.reports {
		if rep.ID == id {
			return rep, nil
		}
	}
	return nil, domain.NotFoundError("report", id)
}

func (f *fakeReports) GetByRunID(ctx context.Context, runID uuid.UUID) ([]*domain.Report, error) {
	var out []*domain.Report
	for _, rep := range f.reports {
		if rep.RunID == runID {
			out = append(out, rep)
		}
	}
	return out, nil
}

func (f *fakeReports) GetLatest(ctx context.Context) (*domain.Report, error) {
	if len(f.reports) == 0 {
		return nil, domain.NotFoundError("report", "latest")
	}
	return f.reports[len(f.reports)-1], nil
}

func (f *fakeReports) Delete(ctx context.Context, id uuid.UUID) error {
	return nil
}

// stubDriver satisfies every step without a browser.
type stubDriver struct {
	source string
}

func (d *stubDriver) Navigate(string) error { return nil }

func (d *stubDriver) Fill(string, string) error { return nil }

func (d *stubDriver) ClickButton(string) error { return nil }

func (d *stubDriver) CurrentURL() (string, error) { return "https://x.test/login", nil }

func (d *stubDriver) PageSource() (string, error) { return d.source, nil }

func (d *stubDriver) SelectOption(string) error { return nil }

func (d *stubDriver) CheckFirstCheckbox() error { return nil }

func (d *stubDriver) Screenshot(string) error { return nil }

type fakeSandbox struct {
	req sandbox.Request
	res *sandbox.Result
	err error
}

func (f *fakeSandbox) Run(ctx context.Context, req sandbox.Request) (*sandbox.Result, error) {
	f.req = req
	if f.err != nil {
		return nil, f.err
	}
	f.res.RunID = req.RunID
	return f.res, nil
}

type testDeps struct {
	runs    *fakeRuns
	cases   *fakeCases
	results *fakeResults
	reports *fakeReports
	store   *storage.LocalStore
}

func newTestActivities(t *testing.T, runs *fakeRuns) (*Activities, *testDeps) {
	t.Helper()

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)
	reporter, err := reporting.NewGenerator(nil, store, nil, t.TempDir(), zap.NewNop())
	require.NoError(t, err)

	deps := &testDeps{
		runs:    runs,
		cases:   &fakeCases{byRun: make(map[uuid.UUID][]domain.TestCase)},
		results: &fakeResults{byRun: make(map[uuid.UUID][]domain.ExecutionResult)},
		reports: &fakeReports{},
		store:   store,
	}

	a := New(Config{ScreenshotDir: t.TempDir()}, Deps{
		Runs:      deps.runs,
		Cases:     deps.cases,
		Results:   deps.results,
		Reports:   deps.reports,
		Analyzer:  analysis.NewService(nil, zap.NewNop()),
		Generator: generation.NewGenerator(zap.NewNop()),
		Reporter:  reporter,
		Store:     store,
		Logger:    zap.NewNop(),
	})
	return a, deps
}

func newActivityEnv(t *testing.T, a *Activities) *testsuite.TestActivityEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()
	env.RegisterActivityWithOptions(a.AnalyzeStory, activity.RegisterOptions{Name: workflows.AnalyzeActivityName})
	env.RegisterActivityWithOptions(a.ExploreSite, activity.RegisterOptions{Name: workflows.ExploreActivityName})
	env.RegisterActivityWithOptions(a.GenerateCases, activity.RegisterOptions{Name: workflows.GenerateActivityName})
	env.RegisterActivityWithOptions(a.ExecuteCases, activity.RegisterOptions{Name: workflows.ExecuteActivityName})
	env.RegisterActivityWithOptions(a.PublishReport, activity.RegisterOptions{Name: workflows.ReportActivityName})
	env.RegisterActivityWithOptions(a.MarkRunPhase, activity.RegisterOptions{Name: workflows.MarkPhaseActivityName})
	env.RegisterActivityWithOptions(a.FinalizeRun, activity.RegisterOptions{Name: workflows.FinalizeActivityName})
	return env
}

func TestAnalyzeStoryActivity(t *testing.T) {
	run := domain.NewRun("As an admin, I want to log in so that I can manage users", "https://x.test", 2)
	runs := newFakeRuns(run)
	a, _ := newTestActivities(t, runs)
	env := newActivityEnv(t, a)

	val, err := env.ExecuteActivity(a.AnalyzeStory, workflows.AnalyzeInput{RunID: run.ID, Story: run.Story})
	require.NoError(t, err)

	var out workflows.AnalyzeOutput
	require.NoError(t, val.Get(&out))
	require.NotNil(t, out.Analysis)
	assert.NotEmpty(t, out.Analysis.Feature)
	assert.NotEmpty(t, out.Analysis.Conditions)

	saved := runs.runs[run.ID]
	require.NotNil(t, saved.Analysis)
	assert.Equal(t, out.Analysis.Feature, saved.Feature)
	assert.Equal(t, out.Analysis.UserRole, saved.UserRole)
}

func TestAnalyzeStoryActivityEmptyStory(t *testing.T) {
	run := domain.NewRun("  ", "https://x.test", 2)
	a, _ := newTestActivities(t, newFakeRuns(run))
	env := newActivityEnv(t, a)

	_, err := env.ExecuteActivity(a.AnalyzeStory, workflows.AnalyzeInput{RunID: run.ID, Story: "  "})
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, domain.ErrCodeValidation, appErr.Type())
}

func TestGenerateCasesActivity(t *testing.T) {
	run := domain.NewRun("As a user, I want to log in", "https://x.test", 2)
	runs := newFakeRuns(run)
	a, deps := newTestActivities(t, runs)
	env := newActivityEnv(t, a)

	in := workflows.GenerateInput{
		RunID: run.ID,
		Analysis: &domain.StoryAnalysis{
			Feature:  "Login",
			UserRole: "user",
			Conditions: []string{
				"User can log in with valid credentials",
				"User cannot log in with an invalid password",
			},
		},
		Crawl: domain.CrawlResult{
			StartURL: "https://x.test",
			Pages: []domain.Page{
				{
					URL:   "https://x.test/login",
					Title: "Login",
					Forms: []domain.Form{
						{
							Name: "login",
							Fields: []domain.Field{
								{Name: "username", Type: "text", Required: true},
								{Name: "password", Type: "password", Required: true},
							},
							Buttons: []domain.Button{{Text: "Login", Type: "submit"}},
						},
					},
				},
			},
		},
	}

	val, err := env.ExecuteActivity(a.GenerateCases, in)
	require.NoError(t, err)

	var out workflows.GenerateOutput
	require.NoError(t, val.Get(&out))
	require.Len(t, out.Cases, 2)
	assert.Equal(t, "TC-001", out.Cases[0].TCID)
	assert.Equal(t, 2, out.Summary.Total)

	assert.Len(t, deps.cases.byRun[run.ID], 2)
	require.NotNil(t, runs.runs[run.ID].Generation)
	assert.Equal(t, out.Summary, *runs.runs[run.ID].Generation)
}

func TestExecuteCasesActivityLocal(t *testing.T) {
	run := domain.NewRun("story", "https://x.test", 1)
	runs := newFakeRuns(run)
	a, deps := newTestActivities(t, runs)

	sessionClosed := false
	a.newSession = func(cfg execution.SessionConfig, logger *zap.Logger) (execution.Driver, func() error, error) {
		assert.True(t, cfg.Headless)
		return &stubDriver{source: "welcome to the dashboard"}, func() error {
			sessionClosed = true
			return nil
		}, nil
	}
	env := newActivityEnv(t, a)

	cases := []domain.TestCase{
		{TCID: "TC-001", Feature: "Login", Condition: "User can log in", PageURL: "https://x.test/login"},
		{TCID: "TC-002", Feature: "Login", Condition: "Dashboard is shown", PageURL: "https://x.test/dash",
			AutomationSteps: []string{"Assert that the page/response reflects: 'dashboard'."}},
	}

	val, err := env.ExecuteActivity(a.ExecuteCases, workflows.ExecuteInput{RunID: run.ID, Cases: cases, Headless: true})
	require.NoError(t, err)

	var out workflows.ExecuteOutput
	require.NoError(t, val.Get(&out))
	assert.Equal(t, domain.ExecutionSummary{Total: 2, Passed: 2}, out.Summary)
	require.Len(t, out.Results, 2)
	assert.Equal(t, domain.ExecStatusPass, out.Results[0].Status)

	assert.True(t, sessionClosed)
	assert.Len(t, deps.results.byRun[run.ID], 2)
}

func TestExecuteCasesActivitySessionFailure(t *testing.T) {
	run := domain.NewRun("story", "https://x.test", 1)
	a, _ := newTestActivities(t, newFakeRuns(run))
	a.newSession = func(execution.SessionConfig, *zap.Logger) (execution.Driver, func() error, error) {
		return nil, nil, errors.New("browser missing")
	}
	env := newActivityEnv(t, a)

	_, err := env.ExecuteActivity(a.ExecuteCases, workflows.ExecuteInput{
		RunID: run.ID,
		Cases: []domain.TestCase{{TCID: "TC-001"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "starting browser session")
}

func TestExecuteCasesActivityEmptyBatch(t *testing.T) {
	run := domain.NewRun("story", "https://x.test", 1)
	a, _ := newTestActivities(t, newFakeRuns(run))
	env := newActivityEnv(t, a)

	val, err := env.ExecuteActivity(a.ExecuteCases, workflows.ExecuteInput{RunID: run.ID})
	require.NoError(t, err)

	var out workflows.ExecuteOutput
	require.NoError(t, val.Get(&out))
	assert.Equal(t, domain.ExecutionSummary{}, out.Summary)
	assert.Empty(t, out.Results)
}

func TestExecuteCasesActivitySandboxed(t *testing.T) {
	run := domain.NewRun("story", "https://shop.example.com", 1)
	run.Feature = "Checkout"
	runs := newFakeRuns(run)
	a, deps := newTestActivities(t, runs)

	sb := &fakeSandbox{res: &sandbox.Result{
		Status:   sandbox.StatusSucceeded,
		Passed:   1,
		Failed:   1,
		Total:    2,
		Duration: 40 * time.Second,
		Specs: []sandbox.SpecResult{
			{TCID: "TC-001", Title: "Cart updates", Status: "passed", DurationSeconds: 1.5},
			{TCID: "TC-002", Title: "Checkout rejects empty cart", Status: "failed", DurationSeconds: 30, Error: "Timed out waiting for locator"},
		},
	}}
	a.sandboxes = sb
	env := newActivityEnv(t, a)

	cases := []domain.TestCase{
		{TCID: "TC-001", Feature: "Checkout", Condition: "Cart updates"},
		{TCID: "TC-002", Feature: "Checkout", Condition: "Checkout rejects empty cart"},
	}

	val, err := env.ExecuteActivity(a.ExecuteCases, workflows.ExecuteInput{RunID: run.ID, Cases: cases})
	require.NoError(t, err)

	var out workflows.ExecuteOutput
	require.NoError(t, val.Get(&out))
	assert.Equal(t, domain.ExecutionSummary{Total: 2, Passed: 1, Failed: 1}, out.Summary)
	require.Len(t, out.Results, 2)
	assert.Equal(t, domain.ExecStatusPass, out.Results[0].Status)
	assert.Equal(t, domain.ExecStatusFail, out.Results[1].Status)
	assert.Contains(t, out.Results[1].ErrorMessage, "Timed out")

	// The suite archive went through the store and into the request.
	assert.Equal(t, run.StartURL, sb.req.TargetURL)
	suiteKey := fmt.Sprintf("suites/%s.zip", run.ID)
	archive, err := deps.store.Load(context.Background(), suiteKey)
	require.NoError(t, err)
	assert.NotEmpty(t, archive)
	assert.Equal(t, sb.req.SuiteURI, mustURL(t, deps.store, suiteKey))

	assert.Len(t, deps.results.byRun[run.ID], 2)
}

func mustURL(t *testing.T, store *storage.LocalStore, key string) string {
	t.Helper()
	uri, err := store.URL(context.Background(), key)
	require.NoError(t, err)
	return uri
}

func TestPublishReportActivity(t *testing.T) {
	run := domain.NewRun("story", "https://x.test", 1)
	runs := newFakeRuns(run)
	a, deps := newTestActivities(t, runs)
	env := newActivityEnv(t, a)

	results := []domain.ExecutionResult{
		{TCID: "TC-001", Feature: "Login", Condition: "User can log in", Status: domain.ExecStatusPass},
		{TCID: "TC-002", Feature: "Login", Condition: "Bad password rejected", Status: domain.ExecStatusFail,
			ErrorMessage: "Field 'username' not found by name, id or placeholder"},
	}
	in := workflows.ReportInput{
		RunID:   run.ID,
		Results: results,
		Summary: domain.ExecutionSummary{Total: 2, Passed: 1, Failed: 1},
		Pages: []domain.Page{
			{URL: "https://x.test/login", Forms: []domain.Form{{Name: "login", Fields: []domain.Field{{Name: "user_name", Type: "text"}}}}},
		},
	}

	val, err := env.ExecuteActivity(a.PublishReport, in)
	require.NoError(t, err)

	var out workflows.ReportOutput
	require.NoError(t, val.Get(&out))
	assert.Contains(t, out.ReportURI, "reports/")
	assert.Equal(t, 50, out.PassRate)

	require.Len(t, deps.reports.reports, 1)
	assert.Equal(t, run.ID, deps.reports.reports[0].RunID)
	assert.Equal(t, 50, deps.reports.reports[0].PassRate)
}

func TestMarkRunPhaseActivity(t *testing.T) {
	run := domain.NewRun("story", "https://x.test", 1)
	runs := newFakeRuns(run)
	a, _ := newTestActivities(t, runs)
	env := newActivityEnv(t, a)

	_, err := env.ExecuteActivity(a.MarkRunPhase, workflows.MarkPhaseInput{RunID: run.ID, Status: domain.RunStatusExploring})
	require.NoError(t, err)

	assert.Equal(t, domain.RunStatusExploring, runs.runs[run.ID].Status)
	assert.Equal(t, []domain.RunStatus{domain.RunStatusExploring}, runs.statuses)
}

func TestFinalizeRunActivityCompleted(t *testing.T) {
	run := domain.NewRun("story", "https://x.test", 1)
	runs := newFakeRuns(run)
	a, _ := newTestActivities(t, runs)
	env := newActivityEnv(t, a)

	gen := &domain.GenerationSummary{Total: 3, Mapped: 2, Unmapped: 1}
	exec := &domain.ExecutionSummary{Total: 3, Passed: 3}
	in := workflows.FinalizeInput{
		RunID:      run.ID,
		Status:     domain.RunStatusCompleted,
		Generation: gen,
		Execution:  exec,
		ReportURI:  "reports/x.html",
		Duration:   90 * time.Second,
	}

	_, err := env.ExecuteActivity(a.FinalizeRun, in)
	require.NoError(t, err)

	saved := runs.runs[run.ID]
	assert.Equal(t, domain.RunStatusCompleted, saved.Status)
	assert.Equal(t, gen, saved.Generation)
	assert.Equal(t, exec, saved.Execution)
	assert.Equal(t, "reports/x.html", saved.ReportURI)
	require.NotNil(t, saved.CompletedAt)
}

func TestFinalizeRunActivityFailed(t *testing.T) {
	run := domain.NewRun("story", "https://x.test", 1)
	run.Generation = &domain.GenerationSummary{Total: 3}
	runs := newFakeRuns(run)
	a, _ := newTestActivities(t, runs)
	env := newActivityEnv(t, a)

	in := workflows.FinalizeInput{
		RunID:  run.ID,
		Status: domain.RunStatusFailed,
		Error:  "executing test cases: browser missing",
	}

	_, err := env.ExecuteActivity(a.FinalizeRun, in)
	require.NoError(t, err)

	saved := runs.runs[run.ID]
	assert.Equal(t, domain.RunStatusFailed, saved.Status)
	assert.Equal(t, "executing test cases: browser missing", saved.Error)
	// A summary persisted by an earlier phase survives the failure.
	require.NotNil(t, saved.Generation)
	assert.Equal(t, 3, saved.Generation.Total)
	require.NotNil(t, saved.CompletedAt)
}
