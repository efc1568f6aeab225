package enrichment

import (
	"context"
	"sync"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

// Dispatcher is the §4.11 smart dispatcher: it resolves the
// highest-priority enricher registered for a request's (type, tenantId),
// runs it through the fallback chain, and exposes a batch variant that
// preserves input order regardless of completion order.
type Dispatcher struct {
	registry    *Registry
	chain       *FallbackChain
	parallelism int
	failFast    bool
}

// NewDispatcher builds a Dispatcher. parallelism bounds concurrent batch
// work; failFast, when true, aborts the remaining batch items the moment
// one fails (§4.11 batch error policy).
func NewDispatcher(registry *Registry, chain *FallbackChain, parallelism int, failFast bool) *Dispatcher {
	if parallelism < 1 {
		parallelism = 1
	}
	return &Dispatcher{registry: registry, chain: chain, parallelism: parallelism, failFast: failFast}
}

// Dispatch resolves and executes the best enricher for req.Type/req.TenantID.
func (d *Dispatcher) Dispatch(ctx context.Context, req core.EnrichmentRequest) (core.EnrichmentResponse, error) {
	candidates := d.registry.ByTypeAndTenant(req.Type, req.TenantID)
	if len(candidates) == 0 {
		return core.EnrichmentResponse{}, core.NewFrameworkError("Dispatcher.Dispatch", core.KindNotFound,
			&core.FrameworkError{ID: req.Type, Message: "no enricher registered for type: " + req.Type, Err: core.ErrNoEligibleEnricher})
	}
	resp, _, err := d.chain.Execute(ctx, candidates[0], req)
	return resp, err
}

// BatchResult pairs one batch input's index with its outcome, so callers
// can recover the original ordering without re-deriving it.
type BatchResult struct {
	Index    int
	Response core.EnrichmentResponse
	Err      error
}

// DispatchBatch runs reqs concurrently (bounded by d.parallelism) and
// returns results in input order regardless of which completed first
// (§4.11, §8). An item whose response has Success=false gets a
// PROVIDER_ERROR FrameworkError carrying the response's error text in Err.
// When d.failFast is true and any item fails, the remaining not-yet-started
// items are skipped with a FATAL FrameworkError wrapping
// core.ErrContextCanceled as their error; items already in flight are
// allowed to finish.
func (d *Dispatcher) DispatchBatch(ctx context.Context, reqs []core.EnrichmentRequest) []BatchResult {
	results := make([]BatchResult, len(reqs))
	sem := make(chan struct{}, d.parallelism)
	var wg sync.WaitGroup

	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	for i, req := range reqs {
		select {
		case <-cctx.Done():
			results[i] = BatchResult{Index: i, Err: core.NewFrameworkError("Dispatcher.DispatchBatch", core.KindFatal,
				&core.FrameworkError{Message: "skipped: batch aborted by an earlier failure (failFast)", Err: core.ErrContextCanceled})}
			continue
		default:
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, req core.EnrichmentRequest) {
			defer wg.Done()
			defer func() { <-sem }()

			resp, err := d.Dispatch(cctx, req)
			if err == nil && !resp.Success {
				err = core.NewFrameworkError("Dispatcher.DispatchBatch", core.KindProvider,
					&core.FrameworkError{ID: resp.ProviderName, Message: resp.Error})
			}
			results[i] = BatchResult{Index: i, Response: resp, Err: err}

			if err != nil && d.failFast {
				cancel()
			}
		}(i, req)
	}

	wg.Wait()
	return results
}
