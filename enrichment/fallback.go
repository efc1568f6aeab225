package enrichment

import (
	"context"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

// FallbackChain walks an enricher's declared FallbackSpec links, invoking
// pipeline.Execute at each hop until a response satisfies the hop's trigger
// condition or the chain is exhausted (§4.10).
type FallbackChain struct {
	registry *Registry
	pipeline *Pipeline
	maxHops  int
}

// NewFallbackChain builds a FallbackChain resolving fallback targets from
// registry and executing each hop through pipeline. maxHops caps the number
// of fallback hops taken regardless of individual FallbackSpec.MaxFallbacks
// values; 0 means "use each hop's own MaxFallbacks, default 3".
func NewFallbackChain(registry *Registry, pipeline *Pipeline, maxHops int) *FallbackChain {
	return &FallbackChain{registry: registry, pipeline: pipeline, maxHops: maxHops}
}

// Execute runs the primary enricher, then follows its fallback chain (if
// any) while the response's trigger condition (ON_ERROR / ON_EMPTY /
// ON_ERROR_OR_EMPTY) is met. Returns the last response produced and the
// ordered list of provider names visited, primary first.
func (c *FallbackChain) Execute(ctx context.Context, primary Enricher, req core.EnrichmentRequest) (core.EnrichmentResponse, []string, error) {
	visited := make(map[string]bool)
	current := primary
	path := make([]string, 0, 4)

	for hop := 0; ; hop++ {
		meta := current.Metadata()
		providerKey := meta.ProviderName + "/" + meta.TenantID
		if visited[providerKey] {
			return core.EnrichmentResponse{}, path, core.NewFrameworkError("FallbackChain.Execute", core.KindFallbackLoop,
				&core.FrameworkError{ID: meta.ProviderName, Message: "fallback chain revisited " + meta.ProviderName, Err: core.ErrFallbackLoop})
		}
		visited[providerKey] = true
		path = append(path, meta.ProviderName)

		resp := c.pipeline.Execute(ctx, current, req)

		fa, ok := current.(FallbackAware)
		if !ok {
			return resp, path, nil
		}
		spec, has := fa.FallbackTo()
		if !has {
			return resp, path, nil
		}

		if !triggers(spec.Strategy, resp) {
			return resp, path, nil
		}

		limit := spec.MaxFallbacks
		if limit <= 0 {
			limit = 3
		}
		if c.maxHops > 0 && c.maxHops < limit {
			limit = c.maxHops
		}
		if hop+1 > limit {
			return resp, path, core.NewFrameworkError("FallbackChain.Execute", core.KindFatal,
				&core.FrameworkError{ID: meta.ProviderName, Message: "fallback chain exhausted", Err: core.ErrFallbackExhausted})
		}

		next, found := c.registry.ByProviderAndTenant(spec.TargetProvider, meta.TenantID)
		if !found {
			next, found = c.registry.ByProviderAndTenant(spec.TargetProvider, core.GlobalTenantID)
		}
		if !found {
			return resp, path, core.NewFrameworkError("FallbackChain.Execute", core.KindNotFound,
				&core.FrameworkError{ID: spec.TargetProvider, Message: "fallback target not registered: " + spec.TargetProvider, Err: core.ErrEnricherNotFound})
		}
		current = next
	}
}

// triggers reports whether resp's outcome satisfies strategy's fallback
// condition.
func triggers(strategy FallbackStrategy, resp core.EnrichmentResponse) bool {
	isError := !resp.Success
	isEmpty := resp.Success && len(resp.EnrichedData) == 0

	switch strategy {
	case FallbackOnError:
		return isError
	case FallbackOnEmpty:
		return isEmpty
	case FallbackOnErrorOrEmpty:
		return isError || isEmpty
	default:
		return false
	}
}
