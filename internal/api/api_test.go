package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/repository/postgres"
	"github.com/storyqa/storyqa/internal/services/analysis"
	"github.com/storyqa/storyqa/internal/services/explorer"
	"github.com/storyqa/storyqa/internal/services/reporting"
	"github.com/storyqa/storyqa/internal/storage"
	"github.com/storyqa/storyqa/pkg/httputil"
)

// TestDB holds the test database connection and container
type TestDB struct {
	Container testcontainers.Container
	DB        *sql.DB
	ConnStr   string
}

// SetupTestDB creates a PostgreSQL container for testing
func SetupTestDB(t *testing.T) *TestDB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("storyqa_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("Failed to start postgres container: %v", err)
	}

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to get connection string: %v", err)
	}

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to connect to database: %v", err)
	}

	// Wait for DB to be ready
	for i := 0; i < 30; i++ {
		if err := db.Ping(); err == nil {
			break
		}
		time.Sleep(time.Second)
	}

	testDB := &TestDB{
		Container: container,
		DB:        db,
		ConnStr:   connStr,
	}

	// Run migrations
	if err := testDB.RunMigrations(t); err != nil {
		testDB.Cleanup(t)
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return testDB
}

// RunMigrations applies all SQL migrations
func (td *TestDB) RunMigrations(t *testing.T) error {
	t.Helper()

	// Find migrations directory
	migrationsDir := findMigrationsDir()
	if migrationsDir == "" {
		return fmt.Errorf("migrations directory not found")
	}

	// Get all migration files
	files, err := filepath.Glob(filepath.Join(migrationsDir, "*.sql"))
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}

	// Sort to ensure order
	sort.Strings(files)

	// Apply each migration
	for _, file := range files {
		content, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file, err)
		}

		_, err = td.DB.Exec(string(content))
		if err != nil {
			// Log but continue - some statements may fail if already applied
			t.Logf("Warning applying %s: %v", filepath.Base(file), err)
		}
	}

	return nil
}

// findMigrationsDir locates the migrations directory
func findMigrationsDir() string {
	candidates := []string{
		"../../migrations",
		"../../../migrations",
		"../../../../migrations",
		"migrations",
	}

	for _, dir := range candidates {
		if _, err := os.Stat(dir); err == nil {
			return dir
		}
	}

	return ""
}

// Cleanup terminates the container and closes connections
func (td *TestDB) Cleanup(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	if td.DB != nil {
		td.DB.Close()
	}
	if td.Container != nil {
		td.Container.Terminate(ctx)
	}
}

// TruncateTables clears all data from tables for test isolation
func (td *TestDB) TruncateTables(t *testing.T) {
	t.Helper()

	tables := []string{
		"execution_results",
		"test_cases",
		"reports",
		"runs",
	}

	for _, table := range tables {
		_, err := td.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table))
		if err != nil {
			t.Logf("Warning truncating %s: %v", table, err)
		}
	}
}

// testRepos builds a repository set over the test database
func testRepos(td *TestDB) *postgres.Repositories {
	return postgres.NewRepositories(&postgres.DB{DB: sqlx.NewDb(td.DB, "postgres")})
}

// setupTestRouter creates a router with test database. Analysis and
// reporting run without a model client, so they fall back to rules;
// Temporal and Redis stay unconfigured.
func setupTestRouter(t *testing.T, testDB *TestDB) *Router {
	t.Helper()

	db := &postgres.DB{DB: sqlx.NewDb(testDB.DB, "postgres")}
	repos := postgres.NewRepositories(db)
	logger := zap.NewNop()

	store, err := storage.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	reporter, err := reporting.NewGenerator(nil, store, nil, "", logger)
	require.NoError(t, err)

	return NewRouter(RouterConfig{
		DB:             db,
		Repos:          repos,
		Store:          store,
		Analysis:       analysis.NewService(nil, logger),
		Reporter:       reporter,
		Explorer:       explorer.Config{MaxDepth: 2, MaxPages: 6, Timeout: 5 * time.Second},
		HealingEnabled: true,
		Logger:         logger,
	})
}

// fixtureSite serves a two page site with a login form for the crawl
// driven endpoints.
func fixtureSite() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, `<!DOCTYPE html>
<html><head><title>Login</title></head><body>
<form id="login-form" action="/login" method="post">
  <input type="text" name="username" required>
  <input type="password" name="password" required>
  <button type="submit">Sign in</button>
</form>
<a href="/pricing">Pricing</a>
</body></html>`)
	})
	mux.HandleFunc("/pricing", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><head><title>Pricing</title></head><body><h1>Plans</h1></body></html>`)
	})
	return httptest.NewServer(mux)
}

func postJSON(t *testing.T, router *Router, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func get(t *testing.T, router *Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestAPIIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	router := setupTestRouter(t, testDB)

	t.Run("HealthEndpoint", func(t *testing.T) {
		rec := get(t, router, "/health")

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp httputil.Response
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.True(t, resp.Success)

		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "healthy", data["status"])
		assert.Equal(t, "storyqa-api", data["service"])
	})

	t.Run("ReadyEndpoint", func(t *testing.T) {
		rec := get(t, router, "/ready")

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp httputil.Response
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.True(t, resp.Success)

		data := resp.Data.(map[string]interface{})
		assert.Equal(t, "ready", data["status"])

		checks := data["checks"].(map[string]interface{})
		assert.Equal(t, "healthy", checks["database"])
		assert.Equal(t, "not configured", checks["redis"])
	})

	t.Run("AnalyzeStory", func(t *testing.T) {
		body := `{"story": "As a user, I want to log in so that I can access my account."}`
		rec := postJSON(t, router, "/api/v1/stories/analyze", body)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp httputil.Response
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.True(t, resp.Success)

		data := resp.Data.(map[string]interface{})
		stAnalysis := data["analysis"].(map[string]interface{})
		assert.Equal(t, "Login", stAnalysis["feature"])
		assert.Equal(t, "user", stAnalysis["user_role"])
		assert.NotEmpty(t, stAnalysis["conditions"])

		suite := data["test_suite"].(map[string]interface{})
		assert.Equal(t, "Login", suite["feature"])
		assert.NotEmpty(t, suite["test_cases"])
	})

	t.Run("AnalyzeStoryMissing", func(t *testing.T) {
		rec := postJSON(t, router, "/api/v1/stories/analyze", `{"story": "   "}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp httputil.Response
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.False(t, resp.Success)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
		assert.Equal(t, "No user story provided.", resp.Error.Message)
	})

	t.Run("ExploreSite", func(t *testing.T) {
		srv := fixtureSite()
		defer srv.Close()

		rec := postJSON(t, router, "/api/v1/explore", fmt.Sprintf(`{"url": %q, "depth": 1}`, srv.URL))

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp httputil.Response
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.True(t, resp.Success)

		data := resp.Data.(map[string]interface{})
		assert.Equal(t, srv.URL, data["start_url"])

		pages := data["pages"].([]interface{})
		require.Len(t, pages, 2)

		first := pages[0].(map[string]interface{})
		assert.Equal(t, "Login", first["title"])
		assert.NotEmpty(t, first["forms"])
	})

	t.Run("ExploreMissingURL", func(t *testing.T) {
		rec := postJSON(t, router, "/api/v1/explore", `{"depth": 1}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp httputil.Response
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
		assert.Equal(t, "No URL provided.", resp.Error.Message)
	})

	t.Run("GenerateTestCases", func(t *testing.T) {
		srv := fixtureSite()
		defer srv.Close()

		body := fmt.Sprintf(`{"story": "As a user, I want to log in so that I can access my account.", "url": %q, "depth": 1}`, srv.URL)
		rec := postJSON(t, router, "/api/v1/testcases/generate", body)

		assert.Equal(t, http.StatusOK, rec.Code)

		var resp httputil.Response
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.True(t, resp.Success)

		data := resp.Data.(map[string]interface{})
		storyData := data["story_data"].(map[string]interface{})
		assert.Equal(t, "Login", storyData["feature"])

		pageData := data["page_data"].(map[string]interface{})
		assert.NotEmpty(t, pageData["pages"])

		cases := data["test_cases"].([]interface{})
		require.NotEmpty(t, cases)
		firstCase := cases[0].(map[string]interface{})
		assert.NotEmpty(t, firstCase["tc_id"])
		assert.Equal(t, "Login", firstCase["feature"])

		summary := data["summary"].(map[string]interface{})
		assert.Equal(t, float64(len(cases)), summary["total"])
	})

	t.Run("GenerateMissingURL", func(t *testing.T) {
		rec := postJSON(t, router, "/api/v1/testcases/generate", `{"story": "As a user, I want to log in"}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp httputil.Response
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
		assert.Equal(t, "No website URL provided.", resp.Error.Message)
	})

	t.Run("ExecuteWithoutCases", func(t *testing.T) {
		rec := postJSON(t, router, "/api/v1/executions", `{"test_cases": []}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp httputil.Response
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
		assert.Equal(t, "No test cases provided.", resp.Error.Message)
	})

	t.Run("RunLifecycle", func(t *testing.T) {
		testDB.TruncateTables(t)

		// Without a Temporal client the run is accepted and stays pending
		body := `{"async": true, "story": "As a user, I want to log in", "url": "https://shop.example.com", "depth": 1}`
		rec := postJSON(t, router, "/api/v1/executions", body)

		assert.Equal(t, http.StatusAccepted, rec.Code)

		var createResp httputil.Response
		err := json.Unmarshal(rec.Body.Bytes(), &createResp)
		require.NoError(t, err)
		assert.True(t, createResp.Success)

		runID := createResp.Data.(map[string]interface{})["run_id"].(string)
		require.NotEmpty(t, runID)

		// List runs
		rec = get(t, router, "/api/v1/runs?page=1&per_page=10")
		assert.Equal(t, http.StatusOK, rec.Code)

		var listResp httputil.Response
		err = json.Unmarshal(rec.Body.Bytes(), &listResp)
		require.NoError(t, err)
		assert.NotNil(t, listResp.Meta)
		assert.Equal(t, 1, listResp.Meta.Total)

		// Get run detail
		rec = get(t, router, "/api/v1/runs/"+runID)
		assert.Equal(t, http.StatusOK, rec.Code)

		var getResp httputil.Response
		err = json.Unmarshal(rec.Body.Bytes(), &getResp)
		require.NoError(t, err)
		data := getResp.Data.(map[string]interface{})
		assert.Equal(t, "pending", data["status"])
		assert.Equal(t, "https://shop.example.com", data["start_url"])

		// Active runs cannot be deleted
		req := httptest.NewRequest(http.MethodDelete, "/api/v1/runs/"+runID, nil)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)

		var conflictResp httputil.Response
		err = json.Unmarshal(rec.Body.Bytes(), &conflictResp)
		require.NoError(t, err)
		assert.Equal(t, "INVALID_STATE", conflictResp.Error.Code)

		// Cancel
		rec = postJSON(t, router, "/api/v1/runs/"+runID+"/cancel", "")
		assert.Equal(t, http.StatusOK, rec.Code)

		var cancelResp httputil.Response
		err = json.Unmarshal(rec.Body.Bytes(), &cancelResp)
		require.NoError(t, err)
		data = cancelResp.Data.(map[string]interface{})
		assert.Equal(t, "cancelled", data["status"])

		// Delete now that the run is terminal
		req = httptest.NewRequest(http.MethodDelete, "/api/v1/runs/"+runID, nil)
		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)

		// Verify deleted
		rec = get(t, router, "/api/v1/runs/"+runID)
		assert.Equal(t, http.StatusNotFound, rec.Code)

		var notFoundResp httputil.Response
		err = json.Unmarshal(rec.Body.Bytes(), &notFoundResp)
		require.NoError(t, err)
		assert.Equal(t, "NOT_FOUND", notFoundResp.Error.Code)
	})

	t.Run("InvalidRunID", func(t *testing.T) {
		rec := get(t, router, "/api/v1/runs/invalid-uuid")

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp httputil.Response
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "INVALID_ID", resp.Error.Code)
	})

	t.Run("ProgressWithoutRedis", func(t *testing.T) {
		rec := get(t, router, "/api/v1/runs/7b1f8f64-2c5d-4f44-9e63-0a7e28cf4f11/progress")

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var resp httputil.Response
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "SERVICE_UNAVAILABLE", resp.Error.Code)
	})

	t.Run("CreateReport", func(t *testing.T) {
		testDB.TruncateTables(t)

		body := `{"results": [
			{"tc_id": "TC-001", "feature": "Login", "condition": "valid credentials", "status": "Pass", "duration_seconds": 1.2},
			{"tc_id": "TC-002", "feature": "Login", "condition": "wrong password", "status": "Fail", "duration_seconds": 2.4, "error_message": "element not found: #submit"}
		]}`
		rec := postJSON(t, router, "/api/v1/reports", body)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

		html := rec.Body.String()
		assert.Contains(t, html, "Test Execution Report")
		assert.Contains(t, html, "TC-001")
		assert.Contains(t, html, "TC-002")
	})

	t.Run("ReportValidation", func(t *testing.T) {
		rec := postJSON(t, router, "/api/v1/reports", `{"results": []}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp httputil.Response
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
		assert.Equal(t, "No execution results provided.", resp.Error.Message)
	})

	t.Run("DownloadWithoutReport", func(t *testing.T) {
		testDB.TruncateTables(t)

		rec := get(t, router, "/api/v1/reports/latest/download")

		assert.Equal(t, http.StatusNotFound, rec.Code)

		var resp httputil.Response
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "NOT_FOUND", resp.Error.Code)
	})

	t.Run("DownloadPersistedReport", func(t *testing.T) {
		testDB.TruncateTables(t)
		ctx := context.Background()
		repos := testRepos(testDB)

		run := domain.NewRun("As a user, I want to log in", "https://shop.example.com", 1)
		require.NoError(t, repos.Runs.Create(ctx, run))

		// The store resolves absolute URIs directly, so a file written
		// anywhere on disk stands in for a published artifact
		html := "<html><body>Test Execution Report</body></html>"
		path := filepath.Join(t.TempDir(), "report.html")
		require.NoError(t, os.WriteFile(path, []byte(html), 0o644))

		report := domain.NewReport(run.ID, domain.ReportFormatHTML, path, int64(len(html)), 50)
		require.NoError(t, repos.Reports.Create(ctx, report))

		rec := get(t, router, "/api/v1/reports/latest/download")

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, `attachment; filename=test_report.html`, rec.Header().Get("Content-Disposition"))
		assert.Equal(t, html, rec.Body.String())
	})

	t.Run("UnknownFieldRejected", func(t *testing.T) {
		rec := postJSON(t, router, "/api/v1/stories/analyze", `{"story": "x", "bogus": true}`)

		assert.Equal(t, http.StatusBadRequest, rec.Code)

		var resp httputil.Response
		err := json.Unmarshal(rec.Body.Bytes(), &resp)
		require.NoError(t, err)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
		assert.True(t, strings.Contains(resp.Error.Message, "invalid JSON"))
	})
}
