// Command server boots the enrichment and job platform: it wires the
// core.Config-driven resiliency decorator, the enricher registry, the
// smart/operation dispatchers, the job stage service, and the httpapi
// handlers onto one *http.Server, the same way the teacher's tool/agent
// examples assemble a framework around a *http.ServeMux.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/cache"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/cost"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/enrichment"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/events"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/httpapi"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/jobs"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/lineage"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/resilience"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/telemetry"
	"github.com/go-redis/redis/v8"
)

func main() {
	cfg, err := core.NewConfig()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := core.NewProductionLogger(cfg.Logging, cfg.Development, "firefly-data-job")

	tel := setupTelemetry(logger)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown error", map[string]interface{}{"error": err.Error()})
		}
	}()

	decorator, err := resilience.NewDecoratorFromConfigWithTelemetry(
		"enrichment", cfg.Resiliency, cfg.Enrichment.DefaultTimeout, logger, tel, nil)
	if err != nil {
		log.Fatalf("resilience decorator: %v", err)
	}

	cacheAdapter := buildCache(cfg, logger)
	lineageTracker := lineage.NewInMemoryTracker()
	costTracker := cost.NewTracker()
	eventPublisher := events.NewLoggingPublisher(logger)

	// No built-in enrichers ship with the platform; hosts register their
	// own providers against the Registry before calling NewRegistry.
	registry, err := enrichment.NewRegistry(nil)
	if err != nil {
		log.Fatalf("enrichment registry: %v", err)
	}

	// Each cache switch decides whether its dispatcher gets the adapter; a
	// nil adapter turns caching off for that dispatcher.
	enrichmentCache, operationCache := cacheAdapter, cacheAdapter
	if !cfg.Enrichment.CacheEnabled {
		enrichmentCache = nil
	}
	if !cfg.Operations.CacheEnabled {
		operationCache = nil
	}

	pipeline := enrichment.NewPipeline(decorator,
		enrichment.WithCache(enrichmentCache, cfg.Enrichment.CacheTTL),
		enrichment.WithLineage(lineageTracker),
		enrichment.WithCost(costTracker),
		enrichment.WithEvents(eventPublisher, cfg.Enrichment.PublishEvents),
		enrichment.WithTelemetry(tel),
		enrichment.WithPipelineLogger(logger),
	)
	fallbackChain := enrichment.NewFallbackChain(registry, pipeline, 0)
	dispatcher := enrichment.NewDispatcher(registry, fallbackChain, cfg.Enrichment.BatchParallelism, cfg.Enrichment.BatchFailFast)
	operationDispatcher := enrichment.NewOperationDispatcher(registry, decorator).
		WithOperationCache(operationCache, cfg.Operations.CacheTTL).
		WithOperationEvents(eventPublisher, cfg.Operations.PublishEvents)
	discovery := enrichment.NewDiscovery(registry, costTracker, 2*time.Second)

	jobDecorator, err := resilience.NewDecoratorFromConfigWithTelemetry(
		"jobs", cfg.Resiliency, cfg.Operations.DefaultTimeout, logger, tel, nil)
	if err != nil {
		log.Fatalf("job resilience decorator: %v", err)
	}

	orchestrator := jobs.NewInMemoryOrchestrator(logger)
	auditRepo := jobs.NewInMemoryAuditRepository()
	resultRepo := jobs.NewInMemoryResultRepository()
	mapperRegistry, err := jobs.NewMapperRegistry(nil)
	if err != nil {
		log.Fatalf("mapper registry: %v", err)
	}

	stageService := jobs.NewStageService(jobs.StageServiceConfig{
		Orchestrator:  orchestrator,
		Audit:         auditRepo,
		Results:       resultRepo,
		Mappers:       mapperRegistry,
		Decorator:     jobDecorator,
		Events:        eventPublisher,
		PublishEvents: cfg.Enrichment.PublishEvents,
		Telemetry:     tel,
		Logger:        logger,
		ResultCacheTTL: time.Duration(cfg.Orchestration.Persistence.ResultCacheTTLSeconds) * time.Second,
	})

	handler := httpapi.NewHandler(dispatcher, operationDispatcher, discovery, stageService, cfg.Enrichment.MaxBatchSize, logger)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"UP"}`))
	})
	mux.HandleFunc("/telemetry/health", telemetry.HealthHandler)

	var h http.Handler = mux
	h = httpapi.RecoveryMiddleware(logger)(h)
	h = httpapi.LoggingMiddleware(logger, cfg.Development.Enabled)(h)

	addr := cfg.Address + ":" + strconv.Itoa(cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go runBackgroundRetention(auditRepo, resultRepo, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting HTTP server", map[string]interface{}{"address": addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", map[string]interface{}{"error": err.Error()})
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", map[string]interface{}{"error": err.Error()})
	}
}

// setupTelemetry builds a core.Telemetry from OTEL_EXPORTER_OTLP_ENDPOINT
// when set, falling back to the no-op default for local development (the
// teacher's examples make the same opt-in distinction).
func setupTelemetry(logger core.Logger) core.Telemetry {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return &core.NoOpTelemetry{}
	}

	profile := telemetry.UseProfile(telemetry.ProfileDevelopment)
	if env := os.Getenv("APP_ENV"); env == "production" || env == "prod" {
		profile = telemetry.UseProfile(telemetry.ProfileProduction)
	}
	profile.ServiceName = "firefly-data-job"
	profile.Endpoint = endpoint
	if err := telemetry.Initialize(profile); err != nil {
		logger.Warn("telemetry initialization failed, continuing without it", map[string]interface{}{"error": err.Error()})
	}

	tel, err := telemetry.EnableTelemetry(profile.ServiceName, endpoint, logger)
	if err != nil {
		logger.Warn("telemetry provider creation failed, continuing without it", map[string]interface{}{"error": err.Error()})
		return &core.NoOpTelemetry{}
	}
	return tel
}

// buildCache wires a Redis-backed cache when REDIS_URL is configured and
// caching is enabled, otherwise the in-memory default.
func buildCache(cfg *core.Config, logger core.Logger) core.CacheAdapter {
	if !cfg.Enrichment.CacheEnabled {
		return cache.NewInMemoryAdapter()
	}
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return cache.NewInMemoryAdapter()
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, falling back to in-memory cache", map[string]interface{}{"error": err.Error()})
		return cache.NewInMemoryAdapter()
	}
	return cache.NewRedisAdapter(redis.NewClient(opts), "firefly:cache")
}

// runBackgroundRetention periodically applies the audit/result retention
// policy (§6), matching the teacher's ticker-goroutine cleanup pattern in
// core/discovery.go's heartbeat loop.
func runBackgroundRetention(audit *jobs.InMemoryAuditRepository, results *jobs.InMemoryResultRepository, cfg *core.Config, logger core.Logger) {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()
	for range ticker.C {
		ctx := context.Background()
		auditCutoff := time.Now().AddDate(0, 0, -cfg.Orchestration.Persistence.AuditRetentionDays)
		if n, err := audit.DeleteBefore(ctx, auditCutoff); err == nil && n > 0 {
			logger.Info("pruned expired audit entries", map[string]interface{}{"count": n})
		}
		resultCutoff := time.Now().AddDate(0, 0, -cfg.Orchestration.Persistence.ResultRetentionDays)
		if n, err := results.DeleteBefore(ctx, resultCutoff); err == nil && n > 0 {
			logger.Info("pruned expired job results", map[string]interface{}{"count": n})
		}
		if n, err := results.DeleteExpired(ctx, time.Now()); err == nil && n > 0 {
			logger.Info("pruned cache-expired job results", map[string]interface{}{"count": n})
		}
	}
}
