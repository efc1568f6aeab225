package enrichment

import (
	"context"
	"testing"
	"time"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/cost"
	"github.com/stretchr/testify/require"
)

type healthCheckingEnricher struct {
	stubEnricher
	status core.HealthStatus
	delay  time.Duration
}

func (h *healthCheckingEnricher) HealthCheck(ctx context.Context) core.HealthStatus {
	if h.delay > 0 {
		select {
		case <-time.After(h.delay):
		case <-ctx.Done():
			return core.HealthDown
		}
	}
	return h.status
}

func TestDiscovery_ListProvidersFiltersByType(t *testing.T) {
	a := &stubEnricher{meta: core.EnricherMetadata{ProviderName: "a", TenantID: core.GlobalTenantID, Type: "CREDIT_REPORT"}}
	b := &stubEnricher{meta: core.EnricherMetadata{ProviderName: "b", TenantID: core.GlobalTenantID, Type: "IDENTITY"}}
	registry, err := NewRegistry([]Enricher{a, b})
	require.NoError(t, err)

	disc := NewDiscovery(registry, cost.NewTracker(), 0)
	providers := disc.ListProviders("credit_report")
	require.Len(t, providers, 1)
	require.Equal(t, "a", providers[0].ProviderName)
}

func TestDiscovery_HealthReportsUpByDefault(t *testing.T) {
	a := &stubEnricher{meta: core.EnricherMetadata{ProviderName: "a", TenantID: core.GlobalTenantID, Type: "T"}}
	registry, err := NewRegistry([]Enricher{a})
	require.NoError(t, err)
	disc := NewDiscovery(registry, nil, 0)

	entries := disc.Health(context.Background(), "")
	require.Len(t, entries, 1)
	require.Equal(t, core.HealthUp, entries[0].Status)
}

func TestDiscovery_HealthProbeTimeoutReportsDown(t *testing.T) {
	slow := &healthCheckingEnricher{
		stubEnricher: stubEnricher{meta: core.EnricherMetadata{ProviderName: "slow", TenantID: core.GlobalTenantID, Type: "T"}},
		status:       core.HealthUp,
		delay:        50 * time.Millisecond,
	}
	registry, err := NewRegistry([]Enricher{slow})
	require.NoError(t, err)
	disc := NewDiscovery(registry, nil, 5*time.Millisecond)

	entries := disc.Health(context.Background(), "")
	require.Equal(t, core.HealthDown, entries[0].Status)
}

func TestDiscovery_CostReportDelegatesToTracker(t *testing.T) {
	tracker := cost.NewTracker()
	tracker.RecordCall("a", "T", 10)
	registry, err := NewRegistry(nil)
	require.NoError(t, err)
	disc := NewDiscovery(registry, tracker, 0)

	report := disc.CostReport()
	require.Equal(t, uint64(1), report.Totals.Calls)
}
