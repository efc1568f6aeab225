package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

var (
	_ core.CacheAdapter = (*InMemoryAdapter)(nil)
	_ core.CacheAdapter = (*RedisAdapter)(nil)
)

func TestCanonical_KeyOrderIndependent(t *testing.T) {
	a := map[string]interface{}{"b": 1, "a": 2}
	b := map[string]interface{}{"a": 2, "b": 1}
	require.Equal(t, Canonical(a), Canonical(b))
}

func TestEnrichmentKey_TenantIsolation(t *testing.T) {
	base := core.EnrichmentRequest{
		Type:       "credit-report",
		SourceData: map[string]interface{}{"companyId": "12345"},
		Strategy:   core.StrategyEnhance,
	}
	a := base
	a.TenantID = "11111111-1111-1111-1111-111111111111"
	b := base
	b.TenantID = "22222222-2222-2222-2222-222222222222"

	require.NotEqual(t, EnrichmentKey(a), EnrichmentKey(b))
}

func TestEnrichmentKey_StrategyScoped(t *testing.T) {
	base := core.EnrichmentRequest{Type: "credit-report", TenantID: core.GlobalTenantID}
	enhance := base
	enhance.Strategy = core.StrategyEnhance
	merge := base
	merge.Strategy = core.StrategyMerge

	require.NotEqual(t, EnrichmentKey(enhance), EnrichmentKey(merge))
}

func TestInMemoryAdapter_PutGetDelete(t *testing.T) {
	c := NewInMemoryAdapter()
	ctx := context.Background()

	_, found, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, c.Put(ctx, "k", []byte("v"), time.Hour))
	val, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, []byte("v"), val)

	require.NoError(t, c.Delete(ctx, "k"))
	_, found, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)
}

func TestInMemoryAdapter_TTLExpiry(t *testing.T) {
	c := NewInMemoryAdapter()
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "k", []byte("v"), time.Millisecond))
	time.Sleep(5 * time.Millisecond)

	_, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.False(t, found)
}
