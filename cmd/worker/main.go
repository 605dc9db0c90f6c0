package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/storyqa/storyqa/internal/activities"
	"github.com/storyqa/storyqa/internal/config"
	"github.com/storyqa/storyqa/internal/llm"
	"github.com/storyqa/storyqa/internal/observability"
	"github.com/storyqa/storyqa/internal/repository/postgres"
	rediscache "github.com/storyqa/storyqa/internal/repository/redis"
	"github.com/storyqa/storyqa/internal/sandbox"
	"github.com/storyqa/storyqa/internal/services/analysis"
	"github.com/storyqa/storyqa/internal/services/execution"
	"github.com/storyqa/storyqa/internal/services/explorer"
	"github.com/storyqa/storyqa/internal/services/generation"
	"github.com/storyqa/storyqa/internal/services/reporting"
	"github.com/storyqa/storyqa/internal/storage"
	temporalclient "github.com/storyqa/storyqa/internal/temporal"
	"github.com/storyqa/storyqa/internal/workflows"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(string(cfg.Env))
	defer logger.Sync()

	logger.Info("Starting StoryQA Worker",
		zap.String("version", cfg.App.Version),
		zap.String("environment", string(cfg.Env)),
		zap.String("temporal_address", cfg.Temporal.Addr()),
		zap.String("namespace", cfg.Temporal.Namespace),
		zap.String("task_queue", cfg.Temporal.TaskQueue),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Create Temporal client
	c, err := temporalclient.NewClient(cfg.Temporal, logger)
	if err != nil {
		logger.Fatal("Failed to create Temporal client", zap.Error(err))
	}
	defer c.Close()

	logger.Info("Connected to Temporal server")

	// The activities persist every phase, so the database is required
	db, err := postgres.New(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	repos := postgres.NewRepositories(db)
	logger.Info("Connected to PostgreSQL",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
	)

	// Connect to Redis (optional, used for progress events and LLM cache)
	cache, err := rediscache.New(cfg.Redis)
	if err != nil {
		logger.Warn("Failed to connect to Redis, progress events disabled", zap.Error(err))
		cache = nil
	} else {
		defer cache.Close()
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr()))
	}

	// Artifact storage for reports, screenshots and staged suites
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Warn("Failed to initialize artifact storage, report publication disabled", zap.Error(err))
		store = nil
	} else {
		logger.Info("Artifact storage ready", zap.String("type", cfg.Storage.Type))
	}

	metrics := observability.NewMetrics(cfg.App.Name)

	// Claude client; without an API key the rule-based analysts take over
	var claude *llm.ClaudeClient
	if cfg.Claude.Enabled() {
		claude, err = newClaudeClient(cfg, cache, logger)
		if err != nil {
			logger.Warn("Failed to initialize Claude client, using rule-based analysis", zap.Error(err))
			claude = nil
		} else {
			observability.RegisterLLMCollector(cfg.App.Name, claude.GetMetrics)
			logger.Info("Claude client initialized", zap.String("model", claude.GetModel()))
		}
	}

	var latest reporting.LatestCache
	if cache != nil {
		latest = cache
	}
	reporter, err := reporting.NewGenerator(claude, store, latest, cfg.Execution.ScreenshotDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize report generator", zap.Error(err))
	}

	var notifier *reporting.Notifier
	if cfg.Notifications.WebhookURL != "" {
		notifier = reporting.NewNotifier(
			cfg.Notifications.WebhookURL,
			cfg.Notifications.WebhookSecret,
			cfg.Notifications.Timeout,
			logger,
		)
		logger.Info("Completion webhooks enabled")
	}

	// Sandboxed execution runs suites in pods when a cluster is
	// configured; otherwise cases run in-process through Playwright
	var sandboxes sandbox.Manager
	if cfg.K8s.InCluster || cfg.K8s.Kubeconfig != "" || cfg.Features.SandboxExecution {
		sandboxes, err = sandbox.New(cfg.K8s, sandbox.FromConfig(cfg.K8s, cfg.Storage), store, logger)
		if err != nil {
			logger.Warn("Failed to initialize sandbox manager, executing in-process", zap.Error(err))
			sandboxes = nil
		} else {
			logger.Info("Sandboxed execution enabled", zap.String("namespace", cfg.K8s.Namespace+"-sandboxes"))
		}
	}

	acts := activities.New(activities.Config{
		Explorer: explorer.Config{
			MaxDepth: cfg.Explorer.MaxDepth,
			MaxPages: cfg.Explorer.MaxPages,
			Timeout:  cfg.Explorer.Timeout,
		},
		Session: execution.SessionConfig{
			Headless:    cfg.Execution.Headless,
			StepTimeout: cfg.Execution.StepTimeout,
			NavTimeout:  cfg.Execution.NavTimeout,
		},
		ScreenshotDir: cfg.Execution.ScreenshotDir,
		SuitePrefix:   cfg.Storage.SuitePath,
	}, activities.Deps{
		Runs:      repos.Runs,
		Cases:     repos.TestCases,
		Results:   repos.Results,
		Reports:   repos.Reports,
		Analyzer:  analysis.NewService(claude, logger),
		Generator: generation.NewGenerator(logger),
		Reporter:  reporter,
		Store:     store,
		Sandboxes: sandboxes,
		Cache:     cache,
		Notifier:  notifier,
		Metrics:   metrics,
		Logger:    logger,
	})

	// Create worker
	w := worker.New(c, c.TaskQueue(), worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.Features.MaxConcurrentRuns,
		MaxConcurrentWorkflowTaskExecutionSize: cfg.Temporal.WorkerCount,
	})

	w.RegisterWorkflow(workflows.PipelineWorkflow)
	acts.Register(w)

	logger.Info("Registered pipeline workflow and activities",
		zap.Int("max_concurrent_runs", cfg.Features.MaxConcurrentRuns),
	)

	// Expose Prometheus metrics next to the worker
	go serveMetrics(cfg.App.MetricsPort, metrics, logger)

	// Start worker in goroutine
	workerErrors := make(chan error, 1)
	go func() {
		workerErrors <- w.Run(worker.InterruptCh())
	}()

	logger.Info("Worker started successfully",
		zap.String("task_queue", cfg.Temporal.TaskQueue),
	)

	// Wait for shutdown signal or worker error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-workerErrors:
		if err != nil {
			logger.Fatal("Worker error", zap.Error(err))
		}

	case sig := <-shutdown:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
		w.Stop()
		logger.Info("Worker stopped gracefully")
	}
}

// newClaudeClient builds the completion client, layering the shared Redis
// response cache over the in-memory one when Redis is up.
func newClaudeClient(cfg *config.Config, cache *rediscache.Cache, logger *zap.Logger) (*llm.ClaudeClient, error) {
	llmCfg := llm.Config{
		APIKey:       cfg.Claude.APIKey,
		Model:        cfg.Claude.Model,
		MaxTokens:    cfg.Claude.MaxTokens,
		Timeout:      cfg.Claude.Timeout,
		RateLimitRPM: cfg.Claude.RateLimitRPM,
		MaxRetries:   cfg.Claude.MaxRetries,
		CacheTTL:     cfg.Claude.CacheTTL,
	}

	if cfg.Claude.EnableCaching && cache != nil {
		tiered := llm.NewTieredCache(
			llm.NewLRUCache(0, cfg.Claude.CacheTTL),
			llm.NewRedisCache(cache.Client(), logger),
		)
		return llm.NewClaudeClientWithCache(llmCfg, tiered)
	}
	return llm.NewClaudeClient(llmCfg)
}

func serveMetrics(port int, metrics *observability.Metrics, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Metrics server listening", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("Metrics server stopped", zap.Error(err))
	}
}

func initLogger(env string) *zap.Logger {
	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := config.Build()
	if err != nil {
		logger, _ = zap.NewProduction()
	}

	return logger
}
