package resilience

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

// RateLimiter is a token-bucket limiter (§4.1): limitForPeriod tokens are
// refreshed every limitRefreshPeriod. On exhaustion the caller waits up to
// timeoutDuration for a token before failing with RateLimited.
type RateLimiter struct {
	limiter *rate.Limiter
	timeout time.Duration
	name    string
	logger  core.Logger
}

// RateLimiterOpts configures a RateLimiter.
type RateLimiterOpts struct {
	LimitForPeriod     int
	LimitRefreshPeriod time.Duration
	TimeoutDuration    time.Duration
	Name               string
	Logger             core.Logger
}

// NewRateLimiter builds a token-bucket limiter equivalent to "limitForPeriod
// permits per limitRefreshPeriod", with burst sized to a full period's
// allowance.
func NewRateLimiter(opts RateLimiterOpts) *RateLimiter {
	if opts.LimitForPeriod <= 0 {
		opts.LimitForPeriod = 100
	}
	if opts.LimitRefreshPeriod <= 0 {
		opts.LimitRefreshPeriod = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = &core.NoOpLogger{}
	}
	ratePerSecond := float64(opts.LimitForPeriod) / opts.LimitRefreshPeriod.Seconds()
	return &RateLimiter{
		limiter: rate.NewLimiter(rate.Limit(ratePerSecond), opts.LimitForPeriod),
		timeout: opts.TimeoutDuration,
		name:    opts.Name,
		logger:  opts.Logger,
	}
}

// Wait blocks until a token is available or the configured timeout (or ctx)
// expires, in which case it returns a RateLimited FrameworkError.
func (r *RateLimiter) Wait(ctx context.Context) error {
	waitCtx := ctx
	var cancel context.CancelFunc
	if r.timeout > 0 {
		waitCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	if err := r.limiter.Wait(waitCtx); err != nil {
		r.logger.Warn("rate limit exceeded", map[string]interface{}{"name": r.name})
		return core.NewFrameworkError("RateLimiter.Wait", core.KindRateLimited,
			&core.FrameworkError{Message: "rate limit exceeded", Err: core.ErrRateLimited})
	}
	return nil
}
