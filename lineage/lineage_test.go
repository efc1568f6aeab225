package lineage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

func TestInMemoryTracker_RecordAndQuery(t *testing.T) {
	tr := NewInMemoryTracker()
	ctx := context.Background()

	r1 := core.LineageRecord{RecordID: "1", EntityID: "e1", OperatorID: "provA", Timestamp: time.Now(), Operation: core.LineageEnrichment}
	r2 := core.LineageRecord{RecordID: "2", EntityID: "e1", OperatorID: "provB", Timestamp: time.Now(), Operation: core.LineageEnrichment}
	r3 := core.LineageRecord{RecordID: "3", EntityID: "e2", OperatorID: "provA", Timestamp: time.Now(), Operation: core.LineageEnrichment}

	require.NoError(t, tr.Record(ctx, r1))
	require.NoError(t, tr.Record(ctx, r2))
	require.NoError(t, tr.Record(ctx, r3))

	byEntity, err := tr.GetLineage(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, byEntity, 2)

	byOperator, err := tr.GetLineageByOperator(ctx, "provA")
	require.NoError(t, err)
	require.Len(t, byOperator, 2)
}

func TestInMemoryTracker_SnapshotIsolation(t *testing.T) {
	tr := NewInMemoryTracker()
	ctx := context.Background()
	require.NoError(t, tr.Record(ctx, core.LineageRecord{EntityID: "e1", OperatorID: "p"}))

	snap, err := tr.GetLineage(ctx, "e1")
	require.NoError(t, err)

	require.NoError(t, tr.Record(ctx, core.LineageRecord{EntityID: "e1", OperatorID: "p"}))
	require.Len(t, snap, 1, "prior snapshot must not observe later writes")
}

func TestHash_Deterministic(t *testing.T) {
	a := map[string]interface{}{"x": 1, "y": 2}
	b := map[string]interface{}{"y": 2, "x": 1}
	require.Equal(t, Hash(a), Hash(b))
}
