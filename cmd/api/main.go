package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"go.temporal.io/sdk/client"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/storyqa/storyqa/internal/api"
	"github.com/storyqa/storyqa/internal/config"
	"github.com/storyqa/storyqa/internal/llm"
	"github.com/storyqa/storyqa/internal/observability"
	"github.com/storyqa/storyqa/internal/repository/postgres"
	rediscache "github.com/storyqa/storyqa/internal/repository/redis"
	"github.com/storyqa/storyqa/internal/services/analysis"
	"github.com/storyqa/storyqa/internal/services/execution"
	"github.com/storyqa/storyqa/internal/services/explorer"
	"github.com/storyqa/storyqa/internal/services/reporting"
	"github.com/storyqa/storyqa/internal/storage"
	temporalclient "github.com/storyqa/storyqa/internal/temporal"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(string(cfg.Env), cfg.GetLogLevel())
	defer logger.Sync()

	logger.Info("Starting StoryQA API",
		zap.String("version", cfg.App.Version),
		zap.String("environment", string(cfg.Env)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to PostgreSQL (optional; the API degrades to the stateless
	// endpoints without it)
	var repos *postgres.Repositories
	db, err := postgres.New(cfg.Database)
	if err != nil {
		logger.Warn("Failed to connect to database, running without persistence", zap.Error(err))
		db = nil
	} else {
		defer db.Close()
		repos = postgres.NewRepositories(db)
		logger.Info("Connected to PostgreSQL",
			zap.String("host", cfg.Database.Host),
			zap.Int("port", cfg.Database.Port),
		)
	}

	// Connect to Redis (optional)
	cache, err := rediscache.New(cfg.Redis)
	if err != nil {
		logger.Warn("Failed to connect to Redis, caching disabled", zap.Error(err))
		cache = nil
	} else {
		defer cache.Close()
		logger.Info("Connected to Redis", zap.String("addr", cfg.Redis.Addr()))
	}

	// Connect to Temporal (optional but recommended)
	var temporalClient client.Client
	tc, err := temporalclient.NewClient(cfg.Temporal, logger)
	if err != nil {
		logger.Warn("Failed to connect to Temporal, pipeline execution disabled", zap.Error(err))
	} else {
		defer tc.Close()
		temporalClient = tc
		logger.Info("Connected to Temporal",
			zap.String("address", cfg.Temporal.Addr()),
			zap.String("namespace", cfg.Temporal.Namespace),
		)
	}

	// Artifact storage (optional)
	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Warn("Failed to initialize artifact storage, report downloads disabled", zap.Error(err))
		store = nil
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
	} else {
		logger.Info("No ANTHROPIC_API_KEY set, using rule-based analysis")
	}

	analyzer := analysis.NewService(claude, logger)

	var latest reporting.LatestCache
	if cache != nil {
		latest = cache
	}
	reporter, err := reporting.NewGenerator(claude, store, latest, cfg.Execution.ScreenshotDir, logger)
	if err != nil {
		logger.Fatal("Failed to initialize report generator", zap.Error(err))
	}

	rateLimit := 0
	if cfg.RateLimits.Enabled {
		rateLimit = cfg.RateLimits.RequestsPerMin
	}

	router := api.NewRouter(api.RouterConfig{
		DB:             db,
		Repos:          repos,
		Cache:          cache,
		Store:          store,
		Analysis:       analyzer,
		Reporter:       reporter,
		TemporalClient: temporalClient,
		TaskQueue:      cfg.Temporal.TaskQueue,
		Metrics:        metrics,
		Explorer: explorer.Config{
			MaxDepth: cfg.Explorer.MaxDepth,
			MaxPages: cfg.Explorer.MaxPages,
			Timeout:  cfg.Explorer.Timeout,
		},
		Execution: execution.SessionConfig{
			Headless:    cfg.Execution.Headless,
			StepTimeout: cfg.Execution.StepTimeout,
			NavTimeout:  cfg.Execution.NavTimeout,
		},
		ScreenshotDir:  cfg.Execution.ScreenshotDir,
		HealingEnabled: cfg.Features.EnableSelfHealing,
		Logger:         logger,
		EnableCORS:     true,
		CORSOrigins:    cfg.Server.CORSAllowedOrigins,
		RateLimit:      rateLimit,
	})

	go sampleSystemStats(ctx, db, metrics)

	server := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API server listening", zap.String("addr", server.Addr))
		serverErrors <- server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Fatal("Server error", zap.Error(err))

	case sig := <-shutdown:
		logger.Info("Shutdown signal received", zap.String("signal", sig.String()))

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("Graceful shutdown failed, forcing close", zap.Error(err))
			server.Close()
		}

		logger.Info("Server stopped gracefully")
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

// sampleSystemStats feeds the system gauges until ctx is cancelled.
func sampleSystemStats(ctx context.Context, db *postgres.DB, metrics *observability.Metrics) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			active, idle := 0, 0
			if db != nil {
				stats := db.Stats()
				active, idle = stats.InUse, stats.Idle
			}
			metrics.SetSystemStats(active, idle, runtime.NumGoroutine())
		}
	}
}

// initLogger creates a configured zap logger
func initLogger(env, level string) *zap.Logger {
	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	var config zap.Config
	if env == "production" {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	config.Level = zap.NewAtomicLevelAt(zapLevel)

	logger, err := config.Build()
	if err != nil {
		// Fall back to basic logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
