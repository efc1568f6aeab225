// Package cost implements the thread-safe per-provider call/byte counters
// (§4.7) exposed through the discovery/health/cost handlers (§4.13).
package cost

import (
	"sync"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/telemetry"
)

// Counts holds the call/byte totals for one dimension (a provider or a
// type).
type Counts struct {
	Calls uint64 `json:"calls"`
	Bytes uint64 `json:"bytes"`
}

// Report is an immutable snapshot produced by Tracker.Snapshot.
type Report struct {
	PerProvider map[string]Counts `json:"perProvider"`
	PerType     map[string]Counts `json:"perType"`
	Totals      Counts            `json:"totals"`
}

// Tracker accumulates call/byte counters, keyed by provider and by type.
type Tracker struct {
	mu          sync.Mutex
	perProvider map[string]Counts
	perType     map[string]Counts
	totals      Counts
}

// NewTracker builds an empty cost Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		perProvider: make(map[string]Counts),
		perType:     make(map[string]Counts),
	}
}

// RecordCall accounts one call of the given byte size against provider and
// type.
func (t *Tracker) RecordCall(provider, enricherType string, bytes int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	pc := t.perProvider[provider]
	pc.Calls++
	pc.Bytes += uint64(bytes)
	t.perProvider[provider] = pc

	tc := t.perType[enricherType]
	tc.Calls++
	tc.Bytes += uint64(bytes)
	t.perType[enricherType] = tc

	t.totals.Calls++
	t.totals.Bytes += uint64(bytes)

	telemetry.Counter("cost.calls", "provider", provider, "type", enricherType)
	telemetry.Histogram(telemetry.MetricCostBytesTransferred, float64(bytes),
		"provider", provider, "type", enricherType)
}

// Snapshot returns a point-in-time, independently-consistent copy of the
// counters. Concurrent RecordCall calls between two Snapshot invocations
// are not reflected in an already-returned Report (§4.7).
func (t *Tracker) Snapshot() Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	report := Report{
		PerProvider: make(map[string]Counts, len(t.perProvider)),
		PerType:     make(map[string]Counts, len(t.perType)),
		Totals:      t.totals,
	}
	for k, v := range t.perProvider {
		report.PerProvider[k] = v
	}
	for k, v := range t.perType {
		report.PerType[k] = v
	}
	return report
}
