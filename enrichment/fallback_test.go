package enrichment

import (
	"context"
	"errors"
	"testing"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
	"github.com/stretchr/testify/require"
)

type fallbackEnricher struct {
	stubEnricher
	spec    FallbackSpec
	hasSpec bool
}

func (f *fallbackEnricher) FallbackTo() (FallbackSpec, bool) { return f.spec, f.hasSpec }

func TestFallbackChain_FallsBackOnError(t *testing.T) {
	primary := &fallbackEnricher{
		stubEnricher: stubEnricher{
			meta:     core.EnricherMetadata{ProviderName: "primary", TenantID: core.GlobalTenantID, Type: "CREDIT_REPORT"},
			fetchErr: errors.New("primary down"),
		},
		spec:    FallbackSpec{TargetProvider: "secondary", Strategy: FallbackOnError, MaxFallbacks: 3},
		hasSpec: true,
	}
	secondary := &stubEnricher{
		meta:   core.EnricherMetadata{ProviderName: "secondary", TenantID: core.GlobalTenantID, Type: "CREDIT_REPORT"},
		raw:    map[string]interface{}{"creditScore": 700},
		mapped: map[string]interface{}{"creditScore": 700},
	}

	registry, err := NewRegistry([]Enricher{primary, secondary})
	require.NoError(t, err)

	pipeline := NewPipeline(testDecorator(t))
	chain := NewFallbackChain(registry, pipeline, 0)

	req := core.EnrichmentRequest{Type: "CREDIT_REPORT", TenantID: core.GlobalTenantID, Strategy: core.StrategyEnhance}
	resp, path, err := chain.Execute(context.Background(), primary, req)

	require.NoError(t, err)
	require.True(t, resp.Success)
	require.Equal(t, "secondary", resp.ProviderName)
	require.Equal(t, []string{"primary", "secondary"}, path)
}

func TestFallbackChain_DetectsLoop(t *testing.T) {
	a := &fallbackEnricher{
		stubEnricher: stubEnricher{meta: core.EnricherMetadata{ProviderName: "a", TenantID: core.GlobalTenantID, Type: "X"}, fetchErr: errors.New("down")},
		spec:         FallbackSpec{TargetProvider: "b", Strategy: FallbackOnError, MaxFallbacks: 5},
		hasSpec:      true,
	}
	b := &fallbackEnricher{
		stubEnricher: stubEnricher{meta: core.EnricherMetadata{ProviderName: "b", TenantID: core.GlobalTenantID, Type: "X"}, fetchErr: errors.New("down")},
		spec:         FallbackSpec{TargetProvider: "a", Strategy: FallbackOnError, MaxFallbacks: 5},
		hasSpec:      true,
	}

	registry, err := NewRegistry([]Enricher{a, b})
	require.NoError(t, err)
	pipeline := NewPipeline(testDecorator(t))
	chain := NewFallbackChain(registry, pipeline, 0)

	req := core.EnrichmentRequest{Type: "X", TenantID: core.GlobalTenantID, Strategy: core.StrategyEnhance}
	_, _, err = chain.Execute(context.Background(), a, req)
	require.Error(t, err)
	require.Equal(t, core.KindFallbackLoop, core.KindOf(err))
}
