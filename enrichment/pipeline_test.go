package enrichment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/cache"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/cost"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/events"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/lineage"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/resilience"
	"github.com/stretchr/testify/require"
)

type stubEnricher struct {
	meta      core.EnricherMetadata
	raw       map[string]interface{}
	mapped    map[string]interface{}
	fetchErr  error
	fetchCalls int
}

func (s *stubEnricher) Metadata() core.EnricherMetadata { return s.meta }

func (s *stubEnricher) FetchProviderData(ctx context.Context, req core.EnrichmentRequest) (map[string]interface{}, error) {
	s.fetchCalls++
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return s.raw, nil
}

func (s *stubEnricher) MapToTarget(ctx context.Context, raw map[string]interface{}) (map[string]interface{}, error) {
	return s.mapped, nil
}

func testDecorator(t *testing.T) *resilience.Decorator {
	t.Helper()
	d, err := resilience.NewDecorator(resilience.DecoratorConfig{
		Name:   "pipeline-test",
		Retry:  core.RetryPolicyConfig{MaxAttempts: 1, WaitDuration: time.Millisecond},
		RateLimiter: core.RateLimiterConfig{LimitForPeriod: 1000, LimitRefreshPeriod: time.Second, TimeoutDuration: time.Second},
		Bulkhead:    core.BulkheadConfig{MaxConcurrentCalls: 10, MaxWaitDuration: time.Second},
		Timeout:     time.Second,
	})
	require.NoError(t, err)
	return d
}

func TestPipeline_ExecuteSuccess_RecordsLineageCostAndCache(t *testing.T) {
	enricher := &stubEnricher{
		meta:   core.EnricherMetadata{ProviderName: "acme-credit", Type: "CREDIT_REPORT"},
		raw:    map[string]interface{}{"creditScore": 750},
		mapped: map[string]interface{}{"creditScore": 750, "rating": "A"},
	}

	tracker := cost.NewTracker()
	lin := lineage.NewInMemoryTracker()
	memCache := cache.NewInMemoryAdapter()
	pub := events.NewLoggingPublisher(&core.NoOpLogger{})

	p := NewPipeline(testDecorator(t),
		WithCache(memCache, time.Minute),
		WithLineage(lin),
		WithCost(tracker),
		WithEvents(pub, true),
	)

	req := core.EnrichmentRequest{
		Type:       "CREDIT_REPORT",
		TenantID:   core.GlobalTenantID,
		SourceData: map[string]interface{}{"companyId": "12345"},
		Strategy:   core.StrategyEnhance,
		RequestID:  "req-1",
	}

	resp := p.Execute(context.Background(), enricher, req)
	require.True(t, resp.Success)
	require.Equal(t, "acme-credit", resp.ProviderName)
	require.Equal(t, 750, resp.EnrichedData["creditScore"])
	require.Equal(t, "A", resp.EnrichedData["rating"])
	require.Equal(t, 2, resp.FieldsEnriched)

	snap := tracker.Snapshot()
	require.Equal(t, uint64(1), snap.PerProvider["acme-credit"].Calls)

	records, err := lin.GetLineage(context.Background(), "req-1")
	require.NoError(t, err)
	require.Len(t, records, 1)

	// Second call hits the cache; fetch must not be invoked again.
	resp2 := p.Execute(context.Background(), enricher, req)
	require.True(t, resp2.Success)
	require.Equal(t, 1, enricher.fetchCalls)
}

func TestPipeline_ExecuteFailure_ReturnsUnsuccessfulResponse(t *testing.T) {
	enricher := &stubEnricher{
		meta:     core.EnricherMetadata{ProviderName: "flaky", Type: "IDENTITY"},
		fetchErr: core.NewFrameworkError("stub.Fetch", core.KindFatal, errors.New("boom")),
	}

	p := NewPipeline(testDecorator(t))
	req := core.EnrichmentRequest{Type: "IDENTITY", Strategy: core.StrategyEnhance}

	resp := p.Execute(context.Background(), enricher, req)
	require.False(t, resp.Success)
	require.NotEmpty(t, resp.Error)
}
