package resilience

import (
	"context"
	"time"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

// Bulkhead bounds concurrent executions with a counting semaphore. A caller
// that cannot acquire a slot within MaxWaitDuration fails with BulkheadFull
// rather than queuing indefinitely (§4.1).
type Bulkhead struct {
	slots   chan struct{}
	maxWait time.Duration
	name    string
	logger  core.Logger
}

// BulkheadOpts configures a Bulkhead.
type BulkheadOpts struct {
	MaxConcurrentCalls int
	MaxWaitDuration    time.Duration
	Name               string
	Logger             core.Logger
}

// NewBulkhead creates a Bulkhead with the given capacity and wait bound.
func NewBulkhead(opts BulkheadOpts) *Bulkhead {
	if opts.MaxConcurrentCalls <= 0 {
		opts.MaxConcurrentCalls = 25
	}
	if opts.Logger == nil {
		opts.Logger = &core.NoOpLogger{}
	}
	return &Bulkhead{
		slots:   make(chan struct{}, opts.MaxConcurrentCalls),
		maxWait: opts.MaxWaitDuration,
		name:    opts.Name,
		logger:  opts.Logger,
	}
}

// Acquire reserves a slot, blocking up to MaxWaitDuration (or ctx
// cancellation, whichever comes first). The returned release func must be
// called exactly once to free the slot.
func (b *Bulkhead) Acquire(ctx context.Context) (release func(), err error) {
	waitCtx := ctx
	var cancel context.CancelFunc
	if b.maxWait > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, b.maxWait)
		defer cancel()
	}

	select {
	case b.slots <- struct{}{}:
		return func() { <-b.slots }, nil
	case <-waitCtx.Done():
		b.logger.Warn("bulkhead capacity exceeded", map[string]interface{}{"name": b.name})
		return nil, core.NewFrameworkError("Bulkhead.Acquire", core.KindBulkheadFull,
			&core.FrameworkError{Message: "bulkhead capacity exceeded", Err: core.ErrBulkheadFull})
	}
}

// InFlight reports the number of slots currently occupied.
func (b *Bulkhead) InFlight() int {
	return len(b.slots)
}
