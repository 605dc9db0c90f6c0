package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/storyqa/storyqa/internal/resilience"
)

// ClaudeClient provides access to the Claude Messages API with rate
// limiting, retries, response caching, and a circuit breaker.
type ClaudeClient struct {
	apiKey     string
	baseURL    string
	model      string
	maxTokens  int
	httpClient *http.Client

	rateLimiter *rate.Limiter
	breaker     *resilience.Breaker
	maxRetries  int

	cache    Cache
	cacheTTL time.Duration

	metrics *Metrics
	mu      sync.RWMutex
}

// Config for Claude client
type Config struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	Timeout      time.Duration
	RateLimitRPM int // Requests per minute
	MaxRetries   int

	CacheSize int
	CacheTTL  time.Duration

	CircuitBreakerEnabled  bool
	CircuitBreakerTimeout  time.Duration
	CircuitBreakerInterval time.Duration
	CircuitBreakerMinReqs  uint32
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:                "https://api.anthropic.com",
		Model:                  "claude-sonnet-4-20250514",
		MaxTokens:              8192,
		Timeout:                120 * time.Second,
		RateLimitRPM:           50,
		MaxRetries:             3,
		CacheSize:              1000,
		CacheTTL:               24 * time.Hour,
		CircuitBreakerEnabled:  true,
		CircuitBreakerTimeout:  30 * time.Second,
		CircuitBreakerInterval: 60 * time.Second,
		CircuitBreakerMinReqs:  5,
	}
}

// Metrics tracks API usage
type Metrics struct {
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	TotalTokensIn   int64
	TotalTokensOut  int64
	TotalCost       float64
	TotalLatencyMs  int64
	CacheHits       int64
	CacheMisses     int64
}

// APIError is a non-2xx response from the Claude API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request is worth retrying.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// IsRateLimited reports whether err is a 429 from the API.
func IsRateLimited(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests
}

// NewClaudeClient creates a new Claude API client with an in-memory
// response cache.
func NewClaudeClient(cfg Config) (*ClaudeClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	defaults := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaults.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaults.Model
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.RateLimitRPM == 0 {
		cfg.RateLimitRPM = defaults.RateLimitRPM
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = defaults.CacheSize
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = defaults.CacheTTL
	}

	// Tokens per second = RPM / 60
	limiter := rate.NewLimiter(rate.Limit(float64(cfg.RateLimitRPM)/60.0), 1)

	var breaker *resilience.Breaker
	if cfg.CircuitBreakerEnabled {
		breaker = resilience.NewBreaker(breakerConfig(cfg))
	}

	return &ClaudeClient{
		apiKey:    cfg.APIKey,
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		maxTokens: cfg.MaxTokens,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: limiter,
		breaker:     breaker,
		maxRetries:  cfg.MaxRetries,
		cache:       NewLRUCache(cfg.CacheSize, cfg.CacheTTL),
		cacheTTL:    cfg.CacheTTL,
		metrics:     &Metrics{},
	}, nil
}

// NewClaudeClientWithCache creates a client with an injected cache, such
// as a TieredCache backed by Redis.
func NewClaudeClientWithCache(cfg Config, cache Cache) (*ClaudeClient, error) {
	client, err := NewClaudeClient(cfg)
	if err != nil {
		return nil, err
	}
	if cache != nil {
		client.cache = cache
	}
	return client, nil
}

func breakerConfig(cfg Config) resilience.BreakerConfig {
	cbCfg := resilience.DefaultBreakerConfig("claude")
	if cfg.CircuitBreakerTimeout > 0 {
		cbCfg.Timeout = cfg.CircuitBreakerTimeout
	}
	if cfg.CircuitBreakerInterval > 0 {
		cbCfg.Interval = cfg.CircuitBreakerInterval
	}
	if cfg.CircuitBreakerMinReqs > 0 {
		minReqs := cfg.CircuitBreakerMinReqs
		cbCfg.ReadyToTrip = func(counts resilience.Counts) bool {
			if counts.Requests < minReqs {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		}
	}
	// Only transport failures and retryable statuses count against the
	// breaker. A 400 is a malformed request, not a service outage.
	cbCfg.IsSuccessful = func(err error) bool {
		if err == nil {
			return true
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return !apiErr.Temporary()
		}
		return false
	}
	return cbCfg
}

// Request represents a Claude API request
type Request struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	System      string    `json:"system,omitempty"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature,omitempty"`
}

// Message represents a conversation message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response represents a Claude API response
type Response struct {
	ID           string         `json:"id"`
	Type         string         `json:"type"`
	Role         string         `json:"role"`
	Content      []ContentBlock `json:"content"`
	Model        string         `json:"model"`
	StopReason   string         `json:"stop_reason"`
	StopSequence string         `json:"stop_sequence,omitempty"`
	Usage        Usage          `json:"usage"`
}

// ContentBlock represents a content block in the response
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Usage contains token usage information
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Complete sends a completion request to Claude
func (c *ClaudeClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, *Usage, error) {
	return c.CompleteWithOptions(ctx, systemPrompt, userPrompt, 0.3, true)
}

// CompleteWithOptions sends a completion request with an explicit
// temperature and cache preference. Cache hits return a nil Usage.
func (c *ClaudeClient) CompleteWithOptions(ctx context.Context, systemPrompt, userPrompt string, temperature float64, useCache bool) (string, *Usage, error) {
	atomic.AddInt64(&c.metrics.TotalRequests, 1)

	cacheKey := responseCacheKey(c.model, systemPrompt, userPrompt, temperature)
	if useCache {
		if cached, ok := c.cache.Get(ctx, cacheKey); ok {
			atomic.AddInt64(&c.metrics.CacheHits, 1)
			return string(cached), nil, nil
		}
		atomic.AddInt64(&c.metrics.CacheMisses, 1)
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		atomic.AddInt64(&c.metrics.FailedRequests, 1)
		return "", nil, fmt.Errorf("rate limit: %w", err)
	}

	start := time.Now()

	req := Request{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    systemPrompt,
		Messages: []Message{
			{Role: "user", Content: userPrompt},
		},
		Temperature: temperature,
	}

	resp, err := c.send(ctx, req)
	if err != nil {
		atomic.AddInt64(&c.metrics.FailedRequests, 1)
		return "", nil, err
	}

	atomic.AddInt64(&c.metrics.SuccessRequests, 1)
	atomic.AddInt64(&c.metrics.TotalTokensIn, int64(resp.Usage.InputTokens))
	atomic.AddInt64(&c.metrics.TotalTokensOut, int64(resp.Usage.OutputTokens))
	atomic.AddInt64(&c.metrics.TotalLatencyMs, time.Since(start).Milliseconds())

	c.mu.Lock()
	c.metrics.TotalCost += c.calculateCost(resp.Usage)
	c.mu.Unlock()

	if len(resp.Content) == 0 {
		return "", &resp.Usage, fmt.Errorf("empty response")
	}

	text := resp.Content[0].Text

	if useCache {
		c.cache.Set(ctx, cacheKey, []byte(text), c.cacheTTL)
	}

	return text, &resp.Usage, nil
}

// CompleteJSON sends a completion request and parses the JSON response.
// Retries bypass the cache so a malformed cached completion cannot wedge
// the caller.
func (c *ClaudeClient) CompleteJSON(ctx context.Context, systemPrompt, userPrompt string, result interface{}) (*Usage, error) {
	jsonSystemPrompt := systemPrompt + "\n\nIMPORTANT: Return ONLY valid JSON. No markdown, no code blocks, no explanations."

	var lastErr error
	var totalUsage Usage

	for attempt := 0; attempt < 3; attempt++ {
		text, usage, err := c.CompleteWithOptions(ctx, jsonSystemPrompt, userPrompt, 0.3, attempt == 0)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}

		if usage != nil {
			totalUsage.InputTokens += usage.InputTokens
			totalUsage.OutputTokens += usage.OutputTokens
		}

		jsonStr := ExtractJSON(text)
		if jsonStr == "" {
			lastErr = fmt.Errorf("no JSON found in response")
			continue
		}

		if err := json.Unmarshal([]byte(jsonStr), result); err != nil {
			lastErr = fmt.Errorf("invalid JSON: %w", err)
			continue
		}

		return &totalUsage, nil
	}

	return &totalUsage, fmt.Errorf("failed after 3 attempts: %w", lastErr)
}

// send performs the request with bounded backoff retries on retryable
// failures. An open circuit fails fast.
func (c *ClaudeClient) send(ctx context.Context, req Request) (*Response, error) {
	var lastErr error

	for attempt := 0; attempt < c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * time.Second
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := c.callAPI(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
			return nil, err
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return nil, err
		}
	}

	return nil, fmt.Errorf("request failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *ClaudeClient) callAPI(ctx context.Context, req Request) (*Response, error) {
	if c.breaker == nil {
		return c.doRequest(ctx, req)
	}

	result, err := c.breaker.ExecuteWithContext(ctx, func(ctx context.Context) (interface{}, error) {
		return c.doRequest(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Response), nil
}

// doRequest performs the HTTP request
func (c *ClaudeClient) doRequest(ctx context.Context, req Request) (*Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Body:       truncateString(string(respBody), 512),
		}
	}

	var apiResp Response
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}

	return &apiResp, nil
}

// calculateCost calculates the cost of a request
func (c *ClaudeClient) calculateCost(usage Usage) float64 {
	inputPrice, outputPrice := GetModelPricing(c.model)
	inputCost := float64(usage.InputTokens) / 1000000 * inputPrice
	outputCost := float64(usage.OutputTokens) / 1000000 * outputPrice
	return inputCost + outputCost
}

// GetModelPricing returns per-million-token pricing for Claude models
func GetModelPricing(model string) (inputCost, outputCost float64) {
	pricing := map[string][2]float64{
		"claude-3-opus-20240229":     {15.0, 75.0},
		"claude-3-sonnet-20240229":   {3.0, 15.0},
		"claude-3-haiku-20240307":    {0.25, 1.25},
		"claude-sonnet-4-20250514":   {3.0, 15.0},
		"claude-3-5-sonnet-20241022": {3.0, 15.0},
	}

	if p, ok := pricing[model]; ok {
		return p[0], p[1]
	}

	// Default to Sonnet pricing
	return 3.0, 15.0
}

// GetMetrics returns current metrics
func (c *ClaudeClient) GetMetrics() Metrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return Metrics{
		TotalRequests:   atomic.LoadInt64(&c.metrics.TotalRequests),
		SuccessRequests: atomic.LoadInt64(&c.metrics.SuccessRequests),
		FailedRequests:  atomic.LoadInt64(&c.metrics.FailedRequests),
		TotalTokensIn:   atomic.LoadInt64(&c.metrics.TotalTokensIn),
		TotalTokensOut:  atomic.LoadInt64(&c.metrics.TotalTokensOut),
		TotalCost:       c.metrics.TotalCost,
		TotalLatencyMs:  atomic.LoadInt64(&c.metrics.TotalLatencyMs),
		CacheHits:       atomic.LoadInt64(&c.metrics.CacheHits),
		CacheMisses:     atomic.LoadInt64(&c.metrics.CacheMisses),
	}
}

// GetModel returns the model being used
func (c *ClaudeClient) GetModel() string {
	return c.model
}

// GetCacheSize returns the number of cached responses
func (c *ClaudeClient) GetCacheSize() int {
	return c.cache.Size()
}

// GetCircuitBreakerState returns the breaker state, or "disabled"
func (c *ClaudeClient) GetCircuitBreakerState() string {
	if c.breaker == nil {
		return "disabled"
	}
	return c.breaker.State().String()
}

// IsHealthy reports whether the client can reach the API
func (c *ClaudeClient) IsHealthy() bool {
	if c.breaker == nil {
		return true
	}
	return c.breaker.State() != resilience.StateOpen
}

// ExtractJSON extracts JSON from a string that might contain markdown or
// other surrounding text
func ExtractJSON(text string) string {
	// First, try to find JSON in code blocks
	codeBlockPattern := regexp.MustCompile("```(?:json)?\\s*([\\s\\S]*?)```")
	matches := codeBlockPattern.FindStringSubmatch(text)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}

	// Try to find JSON object or array directly
	text = strings.TrimSpace(text)

	// Find the first { or [
	startObj := strings.Index(text, "{")
	startArr := strings.Index(text, "[")

	start := -1
	isArray := false

	if startObj >= 0 && (startArr < 0 || startObj < startArr) {
		start = startObj
	} else if startArr >= 0 {
		start = startArr
		isArray = true
	}

	if start < 0 {
		return ""
	}

	// Find matching closing bracket
	text = text[start:]
	depth := 0
	inString := false
	escaped := false

	openBracket := byte('{')
	closeBracket := byte('}')
	if isArray {
		openBracket = '['
		closeBracket = ']'
	}

	for i := 0; i < len(text); i++ {
		c := text[i]

		if escaped {
			escaped = false
			continue
		}

		if c == '\\' && inString {
			escaped = true
			continue
		}

		if c == '"' {
			inString = !inString
			continue
		}

		if inString {
			continue
		}

		if c == openBracket {
			depth++
		} else if c == closeBracket {
			depth--
			if depth == 0 {
				return text[:i+1]
			}
		}
	}

	return ""
}

func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
