package enrichment

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/cache"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/resilience"
)

// OperationHandler executes one named operation against a validated request
// body.
type OperationHandler func(ctx context.Context, request map[string]interface{}) (map[string]interface{}, error)

// Operation describes one named, independently-dispatchable action an
// enricher exposes beyond its default fetch/map flow (§4.12) — e.g.
// "validateAddress" on a geocoding enricher, "refreshToken" on an auth
// enricher.
type Operation struct {
	ID          string
	Description string
	// RequiredKeys lists the request keys that must be present; a minimal stand-in
	// for full JSON Schema validation (§4.12 "schema description"). Nil means
	// no required-keys check.
	RequiredKeys []string
	// Validate is an optional custom hook run after the required-keys check.
	Validate func(request map[string]interface{}) error
	Handler  OperationHandler
}

// OperationProvider is implemented by enrichers that expose named
// operations.
type OperationProvider interface {
	Operations() []Operation
}

// OperationDispatcher resolves (enricherType, tenantId, operationId) to a
// concrete Operation and executes it through the shared resiliency
// decorator, with an optional result cache (§4.12).
type OperationDispatcher struct {
	registry  *Registry
	decorator *resilience.Decorator
	cache     core.CacheAdapter
	cacheTTL  time.Duration
	events    core.EventPublisher
	publish   bool
}

// NewOperationDispatcher builds an OperationDispatcher.
func NewOperationDispatcher(registry *Registry, decorator *resilience.Decorator) *OperationDispatcher {
	return &OperationDispatcher{registry: registry, decorator: decorator}
}

// WithOperationCache enables the optional result cache.
func (d *OperationDispatcher) WithOperationCache(adapter core.CacheAdapter, ttl time.Duration) *OperationDispatcher {
	d.cache = adapter
	d.cacheTTL = ttl
	return d
}

// WithOperationEvents enables event publication for operation execution.
func (d *OperationDispatcher) WithOperationEvents(publisher core.EventPublisher, enabled bool) *OperationDispatcher {
	d.events = publisher
	d.publish = enabled
	return d
}

// Describe lists the operations exposed by the highest-priority enricher
// registered for (enricherType, tenantId), for discovery output (§4.13).
func (d *OperationDispatcher) Describe(enricherType, tenantID string) ([]Operation, error) {
	e, err := d.resolve(enricherType, tenantID)
	if err != nil {
		return nil, err
	}
	provider, ok := e.(OperationProvider)
	if !ok {
		return nil, nil
	}
	return provider.Operations(), nil
}

// Execute resolves the enricher and operation, validates the request, and
// runs the handler through the shared resiliency decorator.
func (d *OperationDispatcher) Execute(ctx context.Context, enricherType, tenantID, operationID string, request map[string]interface{}) (map[string]interface{}, error) {
	e, err := d.resolve(enricherType, tenantID)
	if err != nil {
		return nil, err
	}

	provider, ok := e.(OperationProvider)
	if !ok {
		return nil, core.NewFrameworkError("OperationDispatcher.Execute", core.KindNotFound,
			&core.FrameworkError{ID: operationID, Message: "enricher exposes no operations: " + enricherType, Err: core.ErrOperationNotFound})
	}

	var op *Operation
	for _, candidate := range provider.Operations() {
		if candidate.ID == operationID {
			c := candidate
			op = &c
			break
		}
	}
	if op == nil {
		return nil, core.NewFrameworkError("OperationDispatcher.Execute", core.KindNotFound,
			&core.FrameworkError{ID: operationID, Message: "operation not found: " + operationID, Err: core.ErrOperationNotFound})
	}

	if err := validateOperationRequest(*op, request); err != nil {
		return nil, err
	}

	var cacheKey string
	if d.cache != nil {
		cacheKey = cache.OperationKey(enricherType, tenantID, operationID, request)
		if raw, found, err := d.cache.Get(ctx, cacheKey); err == nil && found {
			var cached map[string]interface{}
			if json.Unmarshal(raw, &cached) == nil {
				return cached, nil
			}
		}
	}

	var result map[string]interface{}
	execErr := d.decorator.Execute(ctx, func(ctx context.Context) error {
		out, err := op.Handler(ctx, request)
		if err != nil {
			return err
		}
		result = out
		return nil
	})

	d.publishResult(ctx, enricherType, operationID, execErr)

	if execErr != nil {
		return nil, execErr
	}

	if d.cache != nil && cacheKey != "" {
		if raw, err := json.Marshal(result); err == nil {
			_ = d.cache.Put(ctx, cacheKey, raw, d.cacheTTL)
		}
	}
	return result, nil
}

func (d *OperationDispatcher) resolve(enricherType, tenantID string) (Enricher, error) {
	candidates := d.registry.ByTypeAndTenant(enricherType, tenantID)
	if len(candidates) == 0 {
		return nil, core.NewFrameworkError("OperationDispatcher.resolve", core.KindNotFound,
			&core.FrameworkError{ID: enricherType, Message: "no enricher registered for type: " + enricherType, Err: core.ErrEnricherNotFound})
	}
	return candidates[0], nil
}

func (d *OperationDispatcher) publishResult(ctx context.Context, enricherType, operationID string, err error) {
	if d.events == nil || !d.publish {
		return
	}
	topic := core.TopicEnrichmentCompleted
	if err != nil {
		topic = core.TopicEnrichmentFailed
	}
	d.events.Publish(ctx, topic, map[string]interface{}{"type": enricherType, "operationId": operationID})
}

func validateOperationRequest(op Operation, request map[string]interface{}) error {
	for _, key := range op.RequiredKeys {
		if _, ok := request[key]; !ok {
			return core.NewFrameworkError("OperationDispatcher.Execute", core.KindValidation,
				&core.FrameworkError{ID: op.ID, Message: "missing required field: " + key, Err: core.ErrValidationFailed})
		}
	}
	if op.Validate != nil {
		if err := op.Validate(request); err != nil {
			return core.NewFrameworkError("OperationDispatcher.Execute", core.KindValidation,
				&core.FrameworkError{ID: op.ID, Message: err.Error(), Err: core.ErrValidationFailed})
		}
	}
	return nil
}
