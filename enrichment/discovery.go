package enrichment

import (
	"context"
	"strings"
	"time"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/cost"
)

// ProviderInfo is one row of the discovery handler's listProviders view.
type ProviderInfo struct {
	ProviderName string                 `json:"providerName"`
	TenantID     string                 `json:"tenantId"`
	Type         string                 `json:"type"`
	Version      string                 `json:"version"`
	Priority     int                    `json:"priority"`
	Tags         []string               `json:"tags"`
	Endpoints    []EndpointDescriptor   `json:"endpoints,omitempty"`
}

// HealthEntry is one row of the discovery handler's health view.
type HealthEntry struct {
	ProviderName string            `json:"providerName"`
	Type         string            `json:"type"`
	Status       core.HealthStatus `json:"status"`
}

// Discovery implements the read-only views fronting the registry and cost
// tracker (§4.13): listProviders, health, costReport.
type Discovery struct {
	registry     *Registry
	cost         *cost.Tracker
	healthProbe  time.Duration
}

// NewDiscovery builds a Discovery view over registry. probeTimeout bounds
// how long each enricher's HealthCheck (if it implements HealthChecker) is
// allowed to run before being counted DOWN.
func NewDiscovery(registry *Registry, tracker *cost.Tracker, probeTimeout time.Duration) *Discovery {
	if probeTimeout <= 0 {
		probeTimeout = 2 * time.Second
	}
	return &Discovery{registry: registry, cost: tracker, healthProbe: probeTimeout}
}

// ListProviders returns every registered enricher, optionally filtered by
// type (case-insensitive).
func (d *Discovery) ListProviders(typeFilter string) []ProviderInfo {
	all := d.registry.All()
	out := make([]ProviderInfo, 0, len(all))
	for _, e := range all {
		meta := core.NewEnricherMetadata(e.Metadata())
		if typeFilter != "" && !strings.EqualFold(meta.Type, typeFilter) {
			continue
		}
		info := ProviderInfo{
			ProviderName: meta.ProviderName,
			TenantID:     meta.TenantID,
			Type:         meta.Type,
			Version:      meta.Version,
			Priority:     meta.Priority,
			Tags:         meta.Tags,
		}
		if de, ok := e.(DescribesEndpoints); ok {
			info.Endpoints = de.Endpoints()
		}
		out = append(out, info)
	}
	return out
}

// Health aggregates per-enricher health, optionally filtered by type.
// Enrichers without a HealthChecker are reported UP (registered and
// enabled is the only signal available).
func (d *Discovery) Health(ctx context.Context, typeFilter string) []HealthEntry {
	all := d.registry.All()
	out := make([]HealthEntry, 0, len(all))
	for _, e := range all {
		meta := e.Metadata()
		if typeFilter != "" && !strings.EqualFold(meta.Type, typeFilter) {
			continue
		}
		out = append(out, HealthEntry{
			ProviderName: meta.ProviderName,
			Type:         meta.Type,
			Status:       d.probe(ctx, e),
		})
	}
	return out
}

func (d *Discovery) probe(ctx context.Context, e Enricher) core.HealthStatus {
	hc, ok := e.(HealthChecker)
	if !ok {
		return core.HealthUp
	}

	probeCtx, cancel := context.WithTimeout(ctx, d.healthProbe)
	defer cancel()

	result := make(chan core.HealthStatus, 1)
	go func() { result <- hc.HealthCheck(probeCtx) }()

	select {
	case status := <-result:
		return status
	case <-probeCtx.Done():
		return core.HealthDown
	}
}

// CostReport delegates to the cost tracker's snapshot, returning a zero
// report when no tracker is configured.
func (d *Discovery) CostReport() cost.Report {
	if d.cost == nil {
		return cost.Report{PerProvider: map[string]cost.Counts{}, PerType: map[string]cost.Counts{}}
	}
	return d.cost.Snapshot()
}
