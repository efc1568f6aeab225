package enrichment

import (
	"context"
	"time"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/cache"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/cost"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/lineage"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/resilience"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/telemetry"
	"github.com/google/uuid"
)

// Pipeline is the §4.9 enricher base: it wraps a single Enricher's
// FetchProviderData/MapToTarget calls with resiliency, caching, lineage,
// cost tracking, and event publication. One Pipeline is shared across every
// enricher invocation; the resiliency Decorator it holds is itself
// per-pipeline rather than per-enricher, since the spec's resiliency table
// is a single global policy, not a per-provider one (§6).
type Pipeline struct {
	decorator *resilience.Decorator
	cache     core.CacheAdapter
	cacheTTL  time.Duration
	lineage   core.LineageTracker
	cost      *cost.Tracker
	events    core.EventPublisher
	logger    core.Logger
	telemetry core.Telemetry
	publish   bool
}

// PipelineOption configures optional Pipeline side effects. A nil argument
// to any With* option disables that side effect rather than panicking,
// since caching/lineage/cost/events are all optional per spec.md §5.
type PipelineOption func(*Pipeline)

func WithCache(adapter core.CacheAdapter, ttl time.Duration) PipelineOption {
	return func(p *Pipeline) { p.cache = adapter; p.cacheTTL = ttl }
}

func WithLineage(tracker core.LineageTracker) PipelineOption {
	return func(p *Pipeline) { p.lineage = tracker }
}

func WithCost(tracker *cost.Tracker) PipelineOption {
	return func(p *Pipeline) { p.cost = tracker }
}

func WithEvents(publisher core.EventPublisher, enabled bool) PipelineOption {
	return func(p *Pipeline) { p.events = publisher; p.publish = enabled }
}

func WithTelemetry(t core.Telemetry) PipelineOption {
	return func(p *Pipeline) {
		if t != nil {
			p.telemetry = t
		}
	}
}

func WithPipelineLogger(logger core.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline builds a Pipeline around decorator, the shared resiliency
// wrapper every enrichment execution runs through.
func NewPipeline(decorator *resilience.Decorator, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		decorator: decorator,
		logger:    &core.NoOpLogger{},
		telemetry: &core.NoOpTelemetry{},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Execute runs the full §4.9 sequence for one enricher against one request:
// cache lookup, resiliency-wrapped fetch+map, strategy merge, then lineage,
// cost, and event side effects. It never returns an error; failures are
// reported through EnrichmentResponse.Success/Error so callers (the smart
// dispatcher, the fallback chain) can make routing decisions without a type
// switch on error kinds.
func (p *Pipeline) Execute(ctx context.Context, e Enricher, req core.EnrichmentRequest) core.EnrichmentResponse {
	start := time.Now()
	ctx = telemetry.WithBaggage(ctx, "tenant_id", req.TenantID, "provider", e.Metadata().ProviderName)
	ctx, span := p.telemetry.StartSpan(ctx, "enrichment.execute")
	defer span.End()

	meta := e.Metadata()
	span.SetAttribute("enricher.provider", meta.ProviderName)
	span.SetAttribute("enricher.type", meta.Type)
	span.SetAttribute("tenant.id", req.TenantID)

	p.publishEvent(ctx, core.TopicEnrichmentStarted, map[string]interface{}{
		"type": req.Type, "tenantId": req.TenantID, "provider": meta.ProviderName,
	})

	cacheable := true
	if ce, ok := e.(CacheableEnricher); ok {
		cacheable = ce.Cacheable()
	}

	var cacheKey string
	if p.cache != nil && cacheable {
		cacheKey = cache.EnrichmentKey(req)
		if raw, found, err := p.cache.Get(ctx, cacheKey); err == nil && found {
			if resp, ok := decodeCachedResponse(raw); ok {
				resp.DurationMillis = time.Since(start).Milliseconds()
				p.publishEvent(ctx, core.TopicCacheHit, map[string]interface{}{
					"type": req.Type, "tenantId": req.TenantID, "provider": meta.ProviderName,
				})
				return resp
			}
		}
	}

	var target map[string]interface{}
	var fetchedBytes int
	work := func(ctx context.Context) error {
		raw, err := e.FetchProviderData(ctx, req)
		if err != nil {
			return err
		}
		fetchedBytes = len(cache.Canonical(raw))
		mapped, err := e.MapToTarget(ctx, raw)
		if err != nil {
			return err
		}
		target = mapped
		return nil
	}

	execErr := p.decorator.Execute(ctx, work)
	if execErr != nil {
		span.RecordError(execErr)
		kind := core.KindOf(execErr)
		p.publishEvent(ctx, core.TopicEnrichmentFailed, map[string]interface{}{
			"type": req.Type, "tenantId": req.TenantID, "provider": meta.ProviderName,
			"kind": string(kind), "error": execErr.Error(),
		})
		return core.EnrichmentResponse{
			Success:        false,
			ProviderName:   meta.ProviderName,
			Type:           req.Type,
			Strategy:       req.Strategy,
			Error:          execErr.Error(),
			CorrelationID:  req.CorrelationID,
			DurationMillis: time.Since(start).Milliseconds(),
		}
	}

	merged, fieldsEnriched := ApplyStrategy(req.Strategy, req.SourceData, target)

	if p.cost != nil {
		p.cost.RecordCall(meta.ProviderName, meta.Type, fetchedBytes)
	}

	if p.lineage != nil {
		_ = p.lineage.Record(ctx, core.LineageRecord{
			RecordID:     uuid.NewString(),
			EntityID:     req.RequestID,
			SourceSystem: meta.ProviderName,
			Operation:    core.LineageEnrichment,
			OperatorID:   meta.ProviderName,
			Timestamp:    time.Now(),
			InputHash:    lineage.Hash(req.SourceData),
			OutputHash:   lineage.Hash(merged),
			TraceID:      traceID(ctx, req.CorrelationID),
		})
	}

	resp := core.EnrichmentResponse{
		Success:        true,
		EnrichedData:   merged,
		ProviderName:   meta.ProviderName,
		Type:           req.Type,
		Strategy:       req.Strategy,
		FieldsEnriched: fieldsEnriched,
		CorrelationID:  req.CorrelationID,
		DurationMillis: time.Since(start).Milliseconds(),
	}

	if p.cache != nil && cacheable && cacheKey != "" {
		if raw, ok := encodeCachedResponse(resp); ok {
			_ = p.cache.Put(ctx, cacheKey, raw, p.cacheTTL)
		}
	}

	p.publishEvent(ctx, core.TopicEnrichmentCompleted, map[string]interface{}{
		"type": req.Type, "tenantId": req.TenantID, "provider": meta.ProviderName,
		"fieldsEnriched": fieldsEnriched,
	})

	return resp
}

func (p *Pipeline) publishEvent(ctx context.Context, topic string, payload interface{}) {
	if p.events == nil || !p.publish {
		return
	}
	p.events.Publish(ctx, topic, payload)
}

// traceID prefers the request's live OTel trace ID (extracted from the span
// p.telemetry.StartSpan attached to ctx) so lineage records correlate with
// the same trace Jaeger/Tempo show for this request; it falls back to the
// caller-supplied correlation ID when no span context is present (e.g. the
// NoOpTelemetry default).
func traceID(ctx context.Context, fallback string) string {
	if tc := telemetry.GetTraceContext(ctx); tc.TraceID != "" {
		return tc.TraceID
	}
	return fallback
}
