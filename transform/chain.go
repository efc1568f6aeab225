// Package transform implements the sequential, synchronous transformation chain
// (§4.5): an ordered list of Transformer steps folded over a source map.
package transform

import (
	"context"
	"time"
)

// Context carries request-scoped metadata through a Chain's steps.
type Context struct {
	RequestID string
	TenantID  string
	Metadata  map[string]interface{}
	StartTime time.Time
}

// Transformer maps one value to another, given a Context. Implementations
// must not mutate the input map.
type Transformer interface {
	Transform(ctx context.Context, value map[string]interface{}, tctx Context) (map[string]interface{}, error)
}

// TransformerFunc adapts a function to the Transformer interface.
type TransformerFunc func(ctx context.Context, value map[string]interface{}, tctx Context) (map[string]interface{}, error)

func (f TransformerFunc) Transform(ctx context.Context, value map[string]interface{}, tctx Context) (map[string]interface{}, error) {
	return f(ctx, value, tctx)
}

// Chain is an ordered, sequential pipeline of Transformer steps.
type Chain struct {
	steps []Transformer
}

// NewChain builds a Chain from the given steps, executed in order.
func NewChain(steps ...Transformer) *Chain {
	return &Chain{steps: steps}
}

// Execute folds source through every step in order. An empty chain returns
// source unchanged (as a shallow copy, so callers never observe aliasing).
func (c *Chain) Execute(ctx context.Context, source map[string]interface{}, tctx Context) (map[string]interface{}, error) {
	current := copyMap(source)
	for _, step := range c.steps {
		next, err := step.Transform(ctx, current, tctx)
		if err != nil {
			return nil, err
		}
		current = next
	}
	return current, nil
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
