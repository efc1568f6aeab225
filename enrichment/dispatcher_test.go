package enrichment

import (
	"context"
	"testing"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
	"github.com/stretchr/testify/require"
)

func TestDispatcher_RoutesToHighestPriorityEnricher(t *testing.T) {
	low := &stubEnricher{
		meta:   core.EnricherMetadata{ProviderName: "low-priority", TenantID: core.GlobalTenantID, Type: "CREDIT_REPORT", Priority: 10},
		mapped: map[string]interface{}{"source": "low"},
	}
	high := &stubEnricher{
		meta:   core.EnricherMetadata{ProviderName: "high-priority", TenantID: core.GlobalTenantID, Type: "CREDIT_REPORT", Priority: 90},
		mapped: map[string]interface{}{"source": "high"},
	}

	registry, err := NewRegistry([]Enricher{low, high})
	require.NoError(t, err)

	pipeline := NewPipeline(testDecorator(t))
	chain := NewFallbackChain(registry, pipeline, 0)
	dispatcher := NewDispatcher(registry, chain, 4, false)

	resp, err := dispatcher.Dispatch(context.Background(), core.EnrichmentRequest{
		Type: "CREDIT_REPORT", TenantID: core.GlobalTenantID, Strategy: core.StrategyEnhance,
	})
	require.NoError(t, err)
	require.Equal(t, "high-priority", resp.ProviderName)
}

func TestDispatcher_NoEligibleEnricherReturnsNotFound(t *testing.T) {
	registry, err := NewRegistry(nil)
	require.NoError(t, err)
	pipeline := NewPipeline(testDecorator(t))
	chain := NewFallbackChain(registry, pipeline, 0)
	dispatcher := NewDispatcher(registry, chain, 4, false)

	_, err = dispatcher.Dispatch(context.Background(), core.EnrichmentRequest{Type: "UNKNOWN", Strategy: core.StrategyEnhance})
	require.Error(t, err)
	require.Equal(t, core.KindNotFound, core.KindOf(err))
}

func TestDispatcher_BatchPreservesInputOrder(t *testing.T) {
	enricher := &stubEnricher{
		meta:   core.EnricherMetadata{ProviderName: "p", TenantID: core.GlobalTenantID, Type: "T", Priority: 50},
		mapped: map[string]interface{}{"ok": true},
	}
	registry, err := NewRegistry([]Enricher{enricher})
	require.NoError(t, err)
	pipeline := NewPipeline(testDecorator(t))
	chain := NewFallbackChain(registry, pipeline, 0)
	dispatcher := NewDispatcher(registry, chain, 8, false)

	reqs := make([]core.EnrichmentRequest, 20)
	for i := range reqs {
		reqs[i] = core.EnrichmentRequest{Type: "T", TenantID: core.GlobalTenantID, Strategy: core.StrategyEnhance, RequestID: string(rune('a' + i))}
	}

	results := dispatcher.DispatchBatch(context.Background(), reqs)
	require.Len(t, results, 20)
	for i, r := range results {
		require.Equal(t, i, r.Index)
		require.NoError(t, r.Err)
		require.Equal(t, "p", r.Response.ProviderName)
	}
}

func TestDispatcher_BatchFailFastAbortsRemaining(t *testing.T) {
	failing := &stubEnricher{
		meta:     core.EnricherMetadata{ProviderName: "p", TenantID: core.GlobalTenantID, Type: "T", Priority: 50},
		fetchErr: core.NewFrameworkError("stub", core.KindFatal, core.ErrValidationFailed),
	}
	registry, err := NewRegistry([]Enricher{failing})
	require.NoError(t, err)
	pipeline := NewPipeline(testDecorator(t))
	chain := NewFallbackChain(registry, pipeline, 0)
	dispatcher := NewDispatcher(registry, chain, 1, true)

	reqs := []core.EnrichmentRequest{
		{Type: "T", TenantID: core.GlobalTenantID, Strategy: core.StrategyEnhance},
		{Type: "T", TenantID: core.GlobalTenantID, Strategy: core.StrategyEnhance},
		{Type: "T", TenantID: core.GlobalTenantID, Strategy: core.StrategyEnhance},
	}
	results := dispatcher.DispatchBatch(context.Background(), reqs)
	require.Len(t, results, 3)
	require.Error(t, results[0].Err)
}
