package core

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every configuration key recognized by the core. Three-layer
// priority, lowest to highest: defaults from DefaultConfig, environment
// variables via LoadFromEnv, functional options passed to NewConfig.
type Config struct {
	Port    int    `json:"port" env:"PORT" default:"8080"`
	Address string `json:"address" env:"ADDRESS"`

	HTTP         HTTPConfig         `json:"http"`
	Enrichment   EnrichmentConfig   `json:"enrichment"`
	Operations   OperationsConfig   `json:"operations"`
	Resiliency   ResiliencyConfig   `json:"resiliency"`
	Quality      QualityConfig      `json:"quality"`
	Lineage      LineageConfig      `json:"lineage"`
	Orchestration OrchestrationConfig `json:"orchestration"`
	Logging      LoggingConfig      `json:"logging"`
	Development  DevelopmentConfig  `json:"development"`

	logger Logger `json:"-"`
}

type HTTPConfig struct {
	ReadTimeout     time.Duration `json:"read_timeout" default:"30s"`
	WriteTimeout    time.Duration `json:"write_timeout" default:"30s"`
	IdleTimeout     time.Duration `json:"idle_timeout" default:"120s"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" default:"10s"`
}

// EnrichmentConfig controls the enrichment pipeline and dispatcher.
type EnrichmentConfig struct {
	Enabled              bool          `json:"enabled" env:"FIREFLY_ENRICHMENT_ENABLED" default:"true"`
	PublishEvents        bool          `json:"publish_events" env:"FIREFLY_PUBLISH_EVENTS" default:"true"`
	CacheEnabled         bool          `json:"cache_enabled" env:"FIREFLY_CACHE_ENABLED" default:"false"`
	CacheTTLSeconds      int           `json:"cache_ttl_seconds" env:"FIREFLY_CACHE_TTL_SECONDS" default:"3600"`
	DefaultTimeoutSecond int           `json:"default_timeout_seconds" env:"FIREFLY_DEFAULT_TIMEOUT_SECONDS" default:"30"`
	MaxBatchSize         int           `json:"max_batch_size" env:"FIREFLY_MAX_BATCH_SIZE" default:"100"`
	BatchParallelism     int           `json:"batch_parallelism" env:"FIREFLY_BATCH_PARALLELISM" default:"10"`
	BatchFailFast        bool          `json:"batch_fail_fast" env:"FIREFLY_BATCH_FAIL_FAST" default:"false"`
	DiscoveryEnabled     bool          `json:"discovery_enabled" env:"FIREFLY_DISCOVERY_ENABLED" default:"true"`
	CacheTTL             time.Duration `json:"-"`
	DefaultTimeout       time.Duration `json:"-"`
}

// OperationsConfig controls the per-enricher operation dispatcher (§4.12).
type OperationsConfig struct {
	ObservabilityEnabled bool          `json:"observability_enabled" default:"true"`
	ResiliencyEnabled    bool          `json:"resiliency_enabled" default:"true"`
	CacheEnabled         bool          `json:"cache_enabled" default:"true"`
	ValidationEnabled    bool          `json:"validation_enabled" default:"true"`
	PublishEvents        bool          `json:"publish_events" default:"true"`
	DefaultTimeoutSecond int           `json:"default_timeout_seconds" default:"15"`
	CacheTTLSeconds      int           `json:"cache_ttl_seconds" default:"1800"`
	DefaultTimeout       time.Duration `json:"-"`
	CacheTTL             time.Duration `json:"-"`
}

// ResiliencyConfig groups the four decorator policies (§4.1).
type ResiliencyConfig struct {
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
	Retry          RetryPolicyConfig    `json:"retry"`
	RateLimiter    RateLimiterConfig    `json:"rate_limiter"`
	Bulkhead       BulkheadConfig       `json:"bulkhead"`
}

type CircuitBreakerConfig struct {
	FailureRateThreshold      int           `json:"failure_rate_threshold" default:"50"`
	SlowCallRateThreshold     int           `json:"slow_call_rate_threshold" default:"100"`
	SlowCallDurationThreshold time.Duration `json:"slow_call_duration_threshold" default:"60s"`
	WaitDurationInOpenState   time.Duration `json:"wait_duration_in_open_state" default:"60s"`
	PermittedInHalfOpen       int           `json:"permitted_in_half_open" default:"10"`
	SlidingWindowSize         int           `json:"sliding_window_size" default:"100"`
	MinimumNumberOfCalls      int           `json:"minimum_number_of_calls" default:"10"`
}

type RetryPolicyConfig struct {
	MaxAttempts  int           `json:"max_attempts" default:"3"`
	WaitDuration time.Duration `json:"wait_duration" default:"5s"`
	// ExponentialMultiplier, when > 1, switches from fixed delay to
	// exponential backoff (WaitDuration * multiplier^(attempt-1), so the
	// first retry waits WaitDuration).
	ExponentialMultiplier float64 `json:"exponential_multiplier" default:"0"`
}

type RateLimiterConfig struct {
	LimitForPeriod     int           `json:"limit_for_period" default:"100"`
	LimitRefreshPeriod time.Duration `json:"limit_refresh_period" default:"1s"`
	TimeoutDuration    time.Duration `json:"timeout_duration" default:"5s"`
}

type BulkheadConfig struct {
	MaxConcurrentCalls int           `json:"max_concurrent_calls" default:"25"`
	MaxWaitDuration    time.Duration `json:"max_wait_duration" default:"500ms"`
}

type QualityConfig struct {
	Enabled bool `json:"enabled" default:"true"`
}

type LineageConfig struct {
	Enabled bool `json:"enabled" default:"false"`
}

type OrchestrationConfig struct {
	Observability OrchestrationObservabilityConfig `json:"observability"`
	Persistence   OrchestrationPersistenceConfig   `json:"persistence"`
}

type OrchestrationObservabilityConfig struct {
	TracingEnabled bool   `json:"tracing_enabled" default:"true"`
	MetricsEnabled bool   `json:"metrics_enabled" default:"true"`
	MetricPrefix   string `json:"metric_prefix" default:"firefly.data.job"`
}

type OrchestrationPersistenceConfig struct {
	AuditEnabled              bool     `json:"audit_enabled" default:"true"`
	ResultPersistenceEnabled  bool     `json:"result_persistence_enabled" default:"true"`
	AuditRetentionDays        int      `json:"audit_retention_days" default:"90"`
	ResultRetentionDays       int      `json:"result_retention_days" default:"30"`
	EnableResultCaching       bool     `json:"enable_result_caching" default:"true"`
	ResultCacheTTLSeconds     int      `json:"result_cache_ttl_seconds" default:"3600"`
	MaxDataSizeBytes          int64    `json:"max_data_size_bytes" default:"10485760"`
	SanitizeSensitiveData     bool     `json:"sanitize_sensitive_data" default:"true"`
	ExcludedParameterKeys     []string `json:"excluded_parameter_keys"`
}

type LoggingConfig struct {
	Level  string `json:"level" env:"LOG_LEVEL" default:"info"`
	Format string `json:"format" env:"LOG_FORMAT" default:"json"`
	Output string `json:"output" env:"LOG_OUTPUT" default:"stdout"`
}

type DevelopmentConfig struct {
	Enabled      bool `json:"enabled" env:"DEV_MODE" default:"false"`
	DebugLogging bool `json:"debug_logging" default:"false"`
	PrettyLogs   bool `json:"pretty_logs" default:"false"`
}

// Option is a functional option applied after environment loading.
type Option func(*Config) error

// DefaultConfig returns the configuration table from §6 with every default
// value populated.
func DefaultConfig() *Config {
	cfg := &Config{
		Port:    8080,
		Address: "localhost",
		HTTP: HTTPConfig{
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Enrichment: EnrichmentConfig{
			Enabled:              true,
			PublishEvents:        true,
			CacheEnabled:         false,
			CacheTTLSeconds:      3600,
			DefaultTimeoutSecond: 30,
			MaxBatchSize:         100,
			BatchParallelism:     10,
			BatchFailFast:        false,
			DiscoveryEnabled:     true,
		},
		Operations: OperationsConfig{
			ObservabilityEnabled: true,
			ResiliencyEnabled:    true,
			CacheEnabled:         true,
			ValidationEnabled:    true,
			PublishEvents:        true,
			DefaultTimeoutSecond: 15,
			CacheTTLSeconds:      1800,
		},
		Resiliency: ResiliencyConfig{
			CircuitBreaker: CircuitBreakerConfig{
				FailureRateThreshold:      50,
				SlowCallRateThreshold:     100,
				SlowCallDurationThreshold: 60 * time.Second,
				WaitDurationInOpenState:   60 * time.Second,
				PermittedInHalfOpen:       10,
				SlidingWindowSize:         100,
				MinimumNumberOfCalls:      10,
			},
			Retry: RetryPolicyConfig{
				MaxAttempts:  3,
				WaitDuration: 5 * time.Second,
			},
			RateLimiter: RateLimiterConfig{
				LimitForPeriod:     100,
				LimitRefreshPeriod: 1 * time.Second,
				TimeoutDuration:    5 * time.Second,
			},
			Bulkhead: BulkheadConfig{
				MaxConcurrentCalls: 25,
				MaxWaitDuration:    500 * time.Millisecond,
			},
		},
		Quality: QualityConfig{Enabled: true},
		Lineage: LineageConfig{Enabled: false},
		Orchestration: OrchestrationConfig{
			Observability: OrchestrationObservabilityConfig{
				TracingEnabled: true,
				MetricsEnabled: true,
				MetricPrefix:   DefaultMetricPrefix,
			},
			Persistence: OrchestrationPersistenceConfig{
				AuditEnabled:             true,
				ResultPersistenceEnabled: true,
				AuditRetentionDays:       90,
				ResultRetentionDays:      30,
				EnableResultCaching:      true,
				ResultCacheTTLSeconds:    3600,
				MaxDataSizeBytes:         10 * 1024 * 1024,
				SanitizeSensitiveData:    true,
				ExcludedParameterKeys:    append([]string{}, DefaultExcludedParameterKeys...),
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Development: DevelopmentConfig{},
	}

	if os.Getenv("DEV_MODE") != "" || os.Getenv("KUBERNETES_SERVICE_HOST") == "" {
		// Local development convenience: human-readable logs unless overridden.
		if os.Getenv("LOG_FORMAT") == "" {
			cfg.Logging.Format = "text"
		}
	}

	cfg.deriveDurations()
	return cfg
}

// deriveDurations converts the *Seconds integer fields into time.Duration
// fields for internal use, keeping the env/JSON surface in whole seconds.
func (c *Config) deriveDurations() {
	c.Enrichment.CacheTTL = time.Duration(c.Enrichment.CacheTTLSeconds) * time.Second
	c.Enrichment.DefaultTimeout = time.Duration(c.Enrichment.DefaultTimeoutSecond) * time.Second
	c.Operations.CacheTTL = time.Duration(c.Operations.CacheTTLSeconds) * time.Second
	c.Operations.DefaultTimeout = time.Duration(c.Operations.DefaultTimeoutSecond) * time.Second
}

// LoadFromEnv overlays process environment variables onto the config.
func (c *Config) LoadFromEnv() error {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			c.Port = p
		}
	}
	if v := os.Getenv("ADDRESS"); v != "" {
		c.Address = v
	}
	if v := os.Getenv(EnvEnrichmentEnabled); v != "" {
		c.Enrichment.Enabled = parseBool(v)
	}
	if v := os.Getenv(EnvPublishEvents); v != "" {
		c.Enrichment.PublishEvents = parseBool(v)
	}
	if v := os.Getenv(EnvCacheEnabled); v != "" {
		c.Enrichment.CacheEnabled = parseBool(v)
	}
	if v := os.Getenv(EnvCacheTTLSeconds); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Enrichment.CacheTTLSeconds = n
		}
	}
	if v := os.Getenv(EnvDefaultTimeoutSecond); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Enrichment.DefaultTimeoutSecond = n
		}
	}
	if v := os.Getenv(EnvMaxBatchSize); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Enrichment.MaxBatchSize = n
		}
	}
	if v := os.Getenv(EnvBatchParallelism); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Enrichment.BatchParallelism = n
		}
	}
	if v := os.Getenv(EnvBatchFailFast); v != "" {
		c.Enrichment.BatchFailFast = parseBool(v)
	}
	if v := os.Getenv(EnvDiscoveryEnabled); v != "" {
		c.Enrichment.DiscoveryEnabled = parseBool(v)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("DEV_MODE"); v != "" {
		c.Development.Enabled = parseBool(v)
		if c.Development.Enabled {
			c.Development.PrettyLogs = true
			c.Logging.Level = "debug"
		}
	}

	c.deriveDurations()
	return c.Validate()
}

// Validate checks invariants that would otherwise surface as confusing
// runtime errors deep in the dispatcher.
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return &FrameworkError{Op: "Config.Validate", Kind: KindValidation,
			Message: fmt.Sprintf("invalid port: %d", c.Port), Err: ErrInvalidConfiguration}
	}
	if c.Enrichment.MaxBatchSize < 1 {
		return &FrameworkError{Op: "Config.Validate", Kind: KindValidation,
			Message: "max-batch-size must be positive", Err: ErrInvalidConfiguration}
	}
	if c.Resiliency.CircuitBreaker.FailureRateThreshold < 0 || c.Resiliency.CircuitBreaker.FailureRateThreshold > 100 {
		return &FrameworkError{Op: "Config.Validate", Kind: KindValidation,
			Message: "failure-rate-threshold must be 0..100", Err: ErrInvalidConfiguration}
	}
	return nil
}

func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WithPort overrides the HTTP listen port.
func WithPort(port int) Option {
	return func(c *Config) error {
		if port < 1 || port > 65535 {
			return &FrameworkError{Op: "WithPort", Kind: KindValidation,
				Message: fmt.Sprintf("invalid port: %d", port), Err: ErrInvalidConfiguration}
		}
		c.Port = port
		return nil
	}
}

// WithCacheEnabled toggles the enrichment-level cache.
func WithCacheEnabled(enabled bool) Option {
	return func(c *Config) error {
		c.Enrichment.CacheEnabled = enabled
		return nil
	}
}

// WithMaxBatchSize overrides the smart-dispatcher batch ceiling.
func WithMaxBatchSize(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return &FrameworkError{Op: "WithMaxBatchSize", Kind: KindValidation,
				Message: "max batch size must be positive", Err: ErrInvalidConfiguration}
		}
		c.Enrichment.MaxBatchSize = n
		return nil
	}
}

// WithLogLevel overrides the logging level.
func WithLogLevel(level string) Option {
	return func(c *Config) error {
		c.Logging.Level = level
		return nil
	}
}

// WithLogger injects a logger used during config loading.
func WithLogger(logger Logger) Option {
	return func(c *Config) error {
		c.logger = logger
		return nil
	}
}

// NewConfig assembles a Config: defaults, then environment, then options,
// then validation.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.LoadFromEnv(); err != nil {
		return nil, fmt.Errorf("failed to load env config: %w", err)
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	cfg.deriveDurations()

	if cfg.logger == nil {
		logger := NewProductionLogger(cfg.Logging, cfg.Development, "firefly-data-job")
		if prodLogger, ok := logger.(*ProductionLogger); ok {
			trackLogger(prodLogger)
		}
		cfg.logger = logger
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// ============================================================================
// ProductionLogger - layered observability (structured log + optional metric)
// ============================================================================

type ProductionLogger struct {
	level       string
	debug       bool
	serviceName string
	format      string
	output      io.Writer

	metricsEnabled bool
	component      string
}

// NewProductionLogger builds a Logger from LoggingConfig.
func NewProductionLogger(logging LoggingConfig, dev DevelopmentConfig, serviceName string) Logger {
	var output io.Writer = os.Stdout
	if logging.Output == "stderr" {
		output = os.Stderr
	}
	return &ProductionLogger{
		level:       strings.ToLower(logging.Level),
		debug:       dev.DebugLogging || logging.Level == "debug",
		serviceName: serviceName,
		format:      logging.Format,
		output:      output,
		component:   "core",
	}
}

func (p *ProductionLogger) EnableMetrics() { p.metricsEnabled = true }

// WithComponent returns a logger tagged with the given component, sharing
// this logger's configuration.
func (p *ProductionLogger) WithComponent(component string) Logger {
	clone := *p
	clone.component = component
	return &clone
}

func (p *ProductionLogger) Info(msg string, fields map[string]interface{})  { p.logEvent("INFO", msg, fields, nil) }
func (p *ProductionLogger) Error(msg string, fields map[string]interface{}) { p.logEvent("ERROR", msg, fields, nil) }
func (p *ProductionLogger) Warn(msg string, fields map[string]interface{})  { p.logEvent("WARN", msg, fields, nil) }
func (p *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, nil)
	}
}

func (p *ProductionLogger) InfoWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("INFO", msg, fields, ctx)
}
func (p *ProductionLogger) ErrorWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("ERROR", msg, fields, ctx)
}
func (p *ProductionLogger) WarnWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	p.logEvent("WARN", msg, fields, ctx)
}
func (p *ProductionLogger) DebugWithContext(ctx context.Context, msg string, fields map[string]interface{}) {
	if p.debug {
		p.logEvent("DEBUG", msg, fields, ctx)
	}
}

func (p *ProductionLogger) logEvent(level, msg string, fields map[string]interface{}, ctx context.Context) {
	timestamp := time.Now().Format(time.RFC3339)

	if p.format == "json" {
		entry := map[string]interface{}{
			"timestamp": timestamp,
			"level":     level,
			"service":   p.serviceName,
			"component": p.component,
			"message":   msg,
		}
		if ctx != nil && p.metricsEnabled {
			for k, v := range getContextBaggage(ctx) {
				entry["trace."+k] = v
			}
		}
		for k, v := range fields {
			entry[k] = v
		}
		if data, err := json.Marshal(entry); err == nil {
			fmt.Fprintln(p.output, string(data))
		}
		return
	}

	var fieldStr strings.Builder
	if len(fields) > 0 {
		fieldStr.WriteString(" ")
		for k, v := range fields {
			fieldStr.WriteString(fmt.Sprintf("%s=%v ", k, v))
		}
	}
	fmt.Fprintf(p.output, "%s [%s] [%s/%s] %s%s\n", timestamp, level, p.serviceName, p.component, msg, fieldStr.String())

	if p.metricsEnabled {
		p.emitFrameworkMetric(level, ctx)
	}
}

func (p *ProductionLogger) emitFrameworkMetric(level string, ctx context.Context) {
	labels := []string{"level", level, "service", p.serviceName, "component", p.component}
	if ctx != nil {
		emitMetricWithContext(ctx, "firefly.framework.log_events", 1.0, labels...)
	} else {
		emitMetric("firefly.framework.log_events", 1.0, labels...)
	}
}

func emitMetric(name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.Counter(name, labels...)
	}
}

func emitMetricWithContext(ctx context.Context, name string, value float64, labels ...string) {
	if globalMetricsRegistry != nil {
		globalMetricsRegistry.EmitWithContext(ctx, name, value, labels...)
	}
}

func getContextBaggage(ctx context.Context) map[string]string {
	if globalMetricsRegistry != nil {
		return globalMetricsRegistry.GetBaggage(ctx)
	}
	return make(map[string]string)
}
