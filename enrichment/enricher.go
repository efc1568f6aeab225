// Package enrichment implements the enricher registry, strategy-merge
// execution pipeline, fallback chain, and smart/operation dispatchers
// (spec.md §4.8-4.13).
package enrichment

import (
	"context"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

// Enricher is a provider-specific adapter: it fetches external data for a
// request and maps the provider's raw shape onto a target map, which the
// pipeline then merges with the caller's source data per the request's
// Strategy.
type Enricher interface {
	// Metadata returns this enricher's registration info. Must be stable
	// across calls; the registry reads it once at startup.
	Metadata() core.EnricherMetadata

	// FetchProviderData calls out to the external provider and returns its
	// raw response.
	FetchProviderData(ctx context.Context, req core.EnrichmentRequest) (map[string]interface{}, error)

	// MapToTarget converts a provider's raw response into the common target
	// shape that strategy application merges against source data.
	MapToTarget(ctx context.Context, raw map[string]interface{}) (map[string]interface{}, error)
}

// FallbackStrategy selects when a fallback hop is taken (§4.10).
type FallbackStrategy string

const (
	FallbackOnError        FallbackStrategy = "ON_ERROR"
	FallbackOnEmpty        FallbackStrategy = "ON_EMPTY"
	FallbackOnErrorOrEmpty FallbackStrategy = "ON_ERROR_OR_EMPTY"
)

// FallbackSpec describes an enricher's single declared fallback target.
type FallbackSpec struct {
	TargetProvider string
	Strategy       FallbackStrategy
	MaxFallbacks   int
}

// FallbackAware is implemented by enrichers that declare a fallback chain.
type FallbackAware interface {
	FallbackTo() (FallbackSpec, bool)
}

// HealthChecker is implemented by enrichers exposing a liveness probe
// beyond "registered and enabled" (§4.13).
type HealthChecker interface {
	HealthCheck(ctx context.Context) core.HealthStatus
}

// CacheableEnricher lets an enricher opt out of caching even when the
// pipeline has it enabled (default: cacheable).
type CacheableEnricher interface {
	Cacheable() bool
}

// EndpointDescriptor documents an HTTP-equivalent surface an enricher
// exposes, used by the discovery handler's listProviders view (§4.13).
type EndpointDescriptor struct {
	Method string
	Path   string
}

// DescribesEndpoints is implemented by enrichers that want to surface their
// own endpoints in discovery output, beyond the fixed smart/operation
// routes every enricher gets for free.
type DescribesEndpoints interface {
	Endpoints() []EndpointDescriptor
}
