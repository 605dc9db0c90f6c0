package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Environment represents the deployment environment
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvStaging     Environment = "staging"
	EnvProduction  Environment = "production"
)

// Config holds all application configuration
type Config struct {
	// Environment
	Env      Environment `envconfig:"ENV" default:"development"`
	LogLevel string      `envconfig:"LOG_LEVEL" default:"info"`
	Debug    bool        `envconfig:"DEBUG" default:"false"`

	// Application
	App AppConfig

	// Server
	Server ServerConfig

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// Temporal
	Temporal TemporalConfig

	// Claude AI
	Claude ClaudeConfig

	// Site exploration
	Explorer ExplorerConfig

	// Browser execution
	Execution ExecutionConfig

	// Storage
	Storage StorageConfig

	// Kubernetes sandbox
	K8s K8sConfig

	// Features (feature flags)
	Features FeatureFlags

	// Rate Limits
	RateLimits RateLimitConfig

	// Run-completion webhooks
	Notifications NotificationConfig
}

// AppConfig holds application metadata
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"storyqa"`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"APP_LOG_LEVEL" default:"info"`
	// MetricsPort is where the worker exposes Prometheus metrics; the
	// API serves them on its own port.
	MetricsPort int `envconfig:"METRICS_PORT" default:"9090"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	MaxRequestSize  int64         `envconfig:"SERVER_MAX_REQUEST_SIZE" default:"10485760"` // 10MB

	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`
}

// Addr returns the listen address
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	Host            string        `envconfig:"DB_HOST" default:"localhost"`
	Port            int           `envconfig:"DB_PORT" default:"5432"`
	User            string        `envconfig:"DB_USER" default:"storyqa"`
	Password        string        `envconfig:"DB_PASSWORD" default:""`
	Database        string        `envconfig:"DB_NAME" default:"storyqa"`
	SSLMode         string        `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxOpenConns    int           `envconfig:"DB_MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"DB_MAX_IDLE_CONNS" default:"5"`
	ConnMaxLifetime time.Duration `envconfig:"DB_CONN_MAX_LIFETIME" default:"5m"`
	ConnMaxIdleTime time.Duration `envconfig:"DB_CONN_MAX_IDLE_TIME" default:"1m"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisConfig holds Redis settings
type RedisConfig struct {
	Host         string        `envconfig:"REDIS_HOST" default:"localhost"`
	Port         int           `envconfig:"REDIS_PORT" default:"6379"`
	Password     string        `envconfig:"REDIS_PASSWORD" default:""`
	DB           int           `envconfig:"REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"REDIS_MIN_IDLE_CONNS" default:"5"`
	DialTimeout  time.Duration `envconfig:"REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"REDIS_WRITE_TIMEOUT" default:"3s"`
}

// Addr returns Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// TemporalConfig holds Temporal settings
type TemporalConfig struct {
	Host        string `envconfig:"TEMPORAL_HOST" default:"localhost"`
	Port        int    `envconfig:"TEMPORAL_PORT" default:"7233"`
	Namespace   string `envconfig:"TEMPORAL_NAMESPACE" default:"storyqa"`
	TaskQueue   string `envconfig:"TEMPORAL_TASK_QUEUE" default:"storyqa-pipeline"`
	WorkerCount int    `envconfig:"TEMPORAL_WORKER_COUNT" default:"4"`
}

// Addr returns Temporal address
func (c TemporalConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// ClaudeConfig holds Claude AI settings. An empty API key disables the
// LLM analysts; the rule-based ones take over.
type ClaudeConfig struct {
	APIKey        string        `envconfig:"ANTHROPIC_API_KEY" default:""`
	Model         string        `envconfig:"CLAUDE_MODEL" default:"claude-sonnet-4-20250514"`
	MaxTokens     int           `envconfig:"CLAUDE_MAX_TOKENS" default:"4096"`
	Timeout       time.Duration `envconfig:"CLAUDE_TIMEOUT" default:"120s"`
	RateLimitRPM  int           `envconfig:"CLAUDE_RATE_LIMIT_RPM" default:"50"`
	CacheTTL      time.Duration `envconfig:"CLAUDE_CACHE_TTL" default:"24h"`
	MaxRetries    int           `envconfig:"CLAUDE_MAX_RETRIES" default:"3"`
	EnableCaching bool          `envconfig:"CLAUDE_ENABLE_CACHING" default:"true"`
}

// Enabled reports whether an API key is configured
func (c ClaudeConfig) Enabled() bool {
	return c.APIKey != ""
}

// ExplorerConfig holds site exploration settings
type ExplorerConfig struct {
	MaxDepth int           `envconfig:"EXPLORER_MAX_DEPTH" default:"2"`
	MaxPages int           `envconfig:"EXPLORER_MAX_PAGES" default:"6"`
	Timeout  time.Duration `envconfig:"EXPLORER_TIMEOUT" default:"10s"`
}

// ExecutionConfig holds browser execution settings
type ExecutionConfig struct {
	Headless      bool          `envconfig:"EXECUTION_HEADLESS" default:"true"`
	StepTimeout   time.Duration `envconfig:"EXECUTION_STEP_TIMEOUT" default:"8s"`
	NavTimeout    time.Duration `envconfig:"EXECUTION_NAV_TIMEOUT" default:"30s"`
	ScreenshotDir string        `envconfig:"EXECUTION_SCREENSHOT_DIR" default:"screenshots"`
}

// StorageConfig holds artifact storage settings
type StorageConfig struct {
	Type           string `envconfig:"STORAGE_TYPE" default:"local"` // local, minio
	LocalRoot      string `envconfig:"STORAGE_LOCAL_ROOT" default:"artifacts"`
	Endpoint       string `envconfig:"STORAGE_ENDPOINT" default:"localhost:9000"`
	AccessKey      string `envconfig:"STORAGE_ACCESS_KEY" default:"minioadmin"`
	SecretKey      string `envconfig:"STORAGE_SECRET_KEY" default:"minioadmin"`
	Bucket         string `envconfig:"STORAGE_BUCKET" default:"storyqa"`
	Region         string `envconfig:"STORAGE_REGION" default:"us-east-1"`
	UseSSL         bool   `envconfig:"STORAGE_USE_SSL" default:"false"`
	ScreenshotPath string `envconfig:"STORAGE_SCREENSHOT_PATH" default:"screenshots"`
	ReportPath     string `envconfig:"STORAGE_REPORT_PATH" default:"reports"`
	SuitePath      string `envconfig:"STORAGE_SUITE_PATH" default:"suites"`
}

// K8sConfig holds Kubernetes sandbox settings
type K8sConfig struct {
	InCluster      bool          `envconfig:"K8S_IN_CLUSTER" default:"false"`
	Kubeconfig     string        `envconfig:"KUBECONFIG" default:""`
	Namespace      string        `envconfig:"K8S_NAMESPACE" default:"storyqa"`
	SandboxImage   string        `envconfig:"K8S_SANDBOX_IMAGE" default:"mcr.microsoft.com/playwright:v1.52.0-jammy"`
	SandboxTimeout time.Duration `envconfig:"K8S_SANDBOX_TIMEOUT" default:"5m"`
}

// FeatureFlags holds feature toggles
type FeatureFlags struct {
	EnableSelfHealing bool `envconfig:"FEATURE_SELF_HEALING" default:"true"`
	EnableAIInsights  bool `envconfig:"FEATURE_AI_INSIGHTS" default:"true"`
	// SandboxExecution routes test execution through pod sandboxes even
	// without a cluster, using the local stand-in runner.
	SandboxExecution  bool `envconfig:"FEATURE_SANDBOX_EXECUTION" default:"false"`
	MaxConcurrentRuns int  `envconfig:"FEATURE_MAX_CONCURRENT_RUNS" default:"5"`
}

// RateLimitConfig holds API rate limiting settings
type RateLimitConfig struct {
	Enabled        bool          `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
	RequestsPerMin int           `envconfig:"RATE_LIMIT_REQUESTS_PER_MIN" default:"60"`
	Window         time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`
}

// NotificationConfig holds run-completion webhook settings. An empty
// URL disables notifications.
type NotificationConfig struct {
	WebhookURL    string        `envconfig:"NOTIFY_WEBHOOK_URL"`
	WebhookSecret string        `envconfig:"NOTIFY_WEBHOOK_SECRET"`
	Timeout       time.Duration `envconfig:"NOTIFY_TIMEOUT" default:"30s"`
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// LoadWithDefaults loads configuration for CLI tools, filling development
// defaults where the environment is incomplete instead of failing.
func LoadWithDefaults() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("processing config: %w", err)
	}

	if cfg.Database.Password == "" {
		cfg.Database.Password = "storyqa"
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	var errors []string

	if c.Env != EnvDevelopment && c.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required in non-development mode")
	}
	if c.Explorer.MaxDepth < 0 {
		errors = append(errors, "EXPLORER_MAX_DEPTH must not be negative")
	}
	if c.Storage.Type != "" && c.Storage.Type != "local" && c.Storage.Type != "minio" {
		errors = append(errors, fmt.Sprintf("unknown STORAGE_TYPE %q", c.Storage.Type))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errors, "; "))
	}

	return nil
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// GetLogLevel returns the appropriate zap log level
func (c *Config) GetLogLevel() string {
	if c.Debug {
		return "debug"
	}
	return c.LogLevel
}
