package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/storyqa/storyqa/internal/api/handlers"
	"github.com/storyqa/storyqa/internal/api/middleware"
	"github.com/storyqa/storyqa/internal/domain"
	"github.com/storyqa/storyqa/internal/observability"
	"github.com/storyqa/storyqa/internal/repository/postgres"
	rediscache "github.com/storyqa/storyqa/internal/repository/redis"
	"github.com/storyqa/storyqa/internal/services/analysis"
	"github.com/storyqa/storyqa/internal/services/execution"
	"github.com/storyqa/storyqa/internal/services/explorer"
	"github.com/storyqa/storyqa/internal/services/reporting"
	"github.com/storyqa/storyqa/internal/storage"
	"github.com/storyqa/storyqa/pkg/httputil"
)

// Router holds the HTTP router and its dependencies
type Router struct {
	chi.Router
	logger *zap.Logger
}

// RouterConfig contains configuration for the router. DB, Repos, Cache,
// Store, TemporalClient and Metrics are all optional; endpoints that
// need a missing dependency degrade rather than panic.
type RouterConfig struct {
	DB             *postgres.DB
	Repos          *postgres.Repositories
	Cache          *rediscache.Cache
	Store          storage.ArtifactStore
	Analysis       *analysis.Service
	Reporter       *reporting.Generator
	TemporalClient client.Client
	TaskQueue      string
	Metrics        *observability.Metrics
	Explorer       explorer.Config
	Execution      execution.SessionConfig
	ScreenshotDir  string
	HealingEnabled bool
	Logger         *zap.Logger
	EnableCORS     bool
	CORSOrigins    []string
	RateLimit      int
}

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Base middleware stack
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Recoverer(cfg.Logger))
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(chimw.Timeout(60 * time.Second))

	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.HTTPMiddleware)
	}

	// CORS configuration
	if cfg.EnableCORS {
		origins := cfg.CORSOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	// Rate limiting (if Redis is available)
	if cfg.Cache != nil && cfg.RateLimit > 0 {
		r.Use(middleware.NewRateLimitMiddleware(cfg.Cache, cfg.RateLimit, true).Handler)
	}

	// Health and metrics endpoints
	r.Get("/health", healthHandler)
	r.Get("/ready", readyHandler(cfg.DB, cfg.Cache, cfg.TemporalClient))
	if cfg.Metrics != nil {
		r.Get("/metrics", cfg.Metrics.Handler().ServeHTTP)
	}

	// Interface-typed handler dependencies stay nil unless the concrete
	// backends exist
	var (
		runsRepo    domain.RunRepository
		casesRepo   domain.TestCaseRepository
		resultsRepo domain.ResultRepository
		reportsRepo domain.ReportRepository
		reportCache handlers.ReportCache
		progress    handlers.ProgressWatcher
	)
	if cfg.Repos != nil {
		runsRepo = cfg.Repos.Runs
		casesRepo = cfg.Repos.TestCases
		resultsRepo = cfg.Repos.Results
		reportsRepo = cfg.Repos.Reports
	}
	if cfg.Cache != nil {
		reportCache = cfg.Cache
		progress = cfg.Cache
	}

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		storyHandler := handlers.NewStoryHandler(cfg.Analysis, cfg.Logger)
		exploreHandler := handlers.NewExploreHandler(cfg.Explorer, cfg.Metrics, cfg.Logger)
		testCaseHandler := handlers.NewTestCaseHandler(cfg.Analysis, cfg.Explorer, cfg.Metrics, cfg.Logger)
		executionHandler := handlers.NewExecutionHandler(
			cfg.Execution,
			cfg.ScreenshotDir,
			runsRepo,
			cfg.TemporalClient,
			cfg.TaskQueue,
			cfg.Metrics,
			cfg.Logger,
		)
		runHandler := handlers.NewRunHandler(
			runsRepo,
			casesRepo,
			resultsRepo,
			progress,
			cfg.TemporalClient,
			cfg.HealingEnabled,
			cfg.Logger,
		)
		reportHandler := handlers.NewReportHandler(cfg.Reporter, reportCache, reportsRepo, cfg.Store, cfg.Logger)

		r.Route("/stories", func(r chi.Router) {
			r.Post("/analyze", storyHandler.Analyze)
		})

		r.Post("/explore", exploreHandler.Explore)

		r.Route("/testcases", func(r chi.Router) {
			r.Post("/generate", testCaseHandler.Generate)
		})

		r.Post("/executions", executionHandler.Create)

		r.Route("/runs", func(r chi.Router) {
			r.Get("/", runHandler.List)
			r.Get("/{id}", runHandler.Get)
			r.Get("/{id}/progress", runHandler.Progress)
			r.Post("/{id}/cancel", runHandler.Cancel)
			r.Delete("/{id}", runHandler.Delete)
		})

		r.Route("/reports", func(r chi.Router) {
			r.Post("/", reportHandler.Create)
			r.Get("/latest/download", reportHandler.DownloadLatest)
		})
	})

	// Failure screenshots are written to a local directory by the
	// executor and served as-is
	if cfg.ScreenshotDir != "" {
		fs := http.StripPrefix("/screenshots/", http.FileServer(http.Dir(cfg.ScreenshotDir)))
		r.Get("/screenshots/*", fs.ServeHTTP)
	}

	return &Router{
		Router: r,
		logger: cfg.Logger,
	}
}

// healthHandler returns basic health status
func healthHandler(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": "storyqa-api",
	})
}

// readyHandler checks if all dependencies are ready
func readyHandler(db *postgres.DB, cache *rediscache.Cache, temporalClient client.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := make(map[string]string)
		allHealthy := true

		if db != nil {
			if err := db.Health(r.Context()); err != nil {
				checks["database"] = "unhealthy: " + err.Error()
				allHealthy = false
			} else {
				checks["database"] = "healthy"
			}
		} else {
			checks["database"] = "not configured"
		}

		if cache != nil {
			if err := cache.Health(r.Context()); err != nil {
				checks["redis"] = "unhealthy: " + err.Error()
				allHealthy = false
			} else {
				checks["redis"] = "healthy"
			}
		} else {
			checks["redis"] = "not configured"
		}

		if temporalClient != nil {
			checks["temporal"] = "healthy"
		} else {
			checks["temporal"] = "not configured"
		}

		status := http.StatusOK
		statusText := "ready"
		if !allHealthy {
			status = http.StatusServiceUnavailable
			statusText = "not ready"
		}

		httputil.JSON(w, status, map[string]any{
			"status": statusText,
			"checks": checks,
		})
	}
}
