// Package lineage implements the core.LineageTracker port (§4.6): an
// append-only provenance log, queryable by entity or operator.
package lineage

import (
	"context"
	"sync"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

// InMemoryTracker is the development-default LineageTracker. Writers append
// under one tracker-wide lock (there is no per-entity locking, so appends
// for different entities also wait on each other); readers receive a copied
// snapshot slice so
// concurrent appends never race with an in-flight range over a prior read
// (§4.6, §5).
type InMemoryTracker struct {
	mu         sync.RWMutex
	byEntity   map[string][]core.LineageRecord
	byOperator map[string][]core.LineageRecord
}

// NewInMemoryTracker builds an empty tracker.
func NewInMemoryTracker() *InMemoryTracker {
	return &InMemoryTracker{
		byEntity:   make(map[string][]core.LineageRecord),
		byOperator: make(map[string][]core.LineageRecord),
	}
}

// Record implements core.LineageTracker.
func (t *InMemoryTracker) Record(ctx context.Context, r core.LineageRecord) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byEntity[r.EntityID] = append(t.byEntity[r.EntityID], r)
	t.byOperator[r.OperatorID] = append(t.byOperator[r.OperatorID], r)
	return nil
}

// GetLineage implements core.LineageTracker, returning a snapshot copy.
func (t *InMemoryTracker) GetLineage(ctx context.Context, entityID string) ([]core.LineageRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return snapshot(t.byEntity[entityID]), nil
}

// GetLineageByOperator implements core.LineageTracker, returning a snapshot
// copy.
func (t *InMemoryTracker) GetLineageByOperator(ctx context.Context, operatorID string) ([]core.LineageRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return snapshot(t.byOperator[operatorID]), nil
}

func snapshot(records []core.LineageRecord) []core.LineageRecord {
	out := make([]core.LineageRecord, len(records))
	copy(out, records)
	return out
}

var _ core.LineageTracker = (*InMemoryTracker)(nil)
