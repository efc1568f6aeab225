package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

func testDecoratorConfig(t *testing.T) DecoratorConfig {
	t.Helper()
	return DecoratorConfig{
		Name: "test",
		Retry: core.RetryPolicyConfig{
			MaxAttempts:  3,
			WaitDuration: time.Millisecond,
		},
		RateLimiter: core.RateLimiterConfig{
			LimitForPeriod:     1000,
			LimitRefreshPeriod: time.Second,
			TimeoutDuration:    time.Second,
		},
		Bulkhead: core.BulkheadConfig{
			MaxConcurrentCalls: 10,
			MaxWaitDuration:    time.Second,
		},
		Timeout: time.Second,
	}
}

func TestDecorator_SucceedsOnFirstAttempt(t *testing.T) {
	d, err := NewDecorator(testDecoratorConfig(t))
	require.NoError(t, err)

	calls := 0
	err = d.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 1, calls)
}

func TestDecorator_RetriesTransientThenSucceeds(t *testing.T) {
	d, err := NewDecorator(testDecoratorConfig(t))
	require.NoError(t, err)

	var retries []int
	d2 := *d
	d2.onRetry = func(attempt int, err error) { retries = append(retries, attempt) }

	calls := 0
	err = d2.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return core.NewFrameworkError("work", core.KindTransient,
				&core.FrameworkError{Message: "flaky", Err: errors.New("boom")})
		}
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, 3, calls)
	require.Equal(t, []int{1, 2}, retries)
}

func TestDecorator_ValidationErrorsNotRetried(t *testing.T) {
	d, err := NewDecorator(testDecoratorConfig(t))
	require.NoError(t, err)

	calls := 0
	err = d.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return core.NewFrameworkError("work", core.KindValidation,
			&core.FrameworkError{Message: "bad input", Err: core.ErrValidationFailed})
	})
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestDecorator_TimeoutOnSlowWork(t *testing.T) {
	cfg := testDecoratorConfig(t)
	cfg.Timeout = 10 * time.Millisecond
	cfg.Retry.MaxAttempts = 1
	d, err := NewDecorator(cfg)
	require.NoError(t, err)

	err = d.Execute(context.Background(), func(ctx context.Context) error {
		select {
		case <-time.After(200 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	require.Error(t, err)
	require.Equal(t, core.KindTimeout, core.KindOf(err))
}

func TestDecorator_BulkheadRejectsWhenFull(t *testing.T) {
	cfg := testDecoratorConfig(t)
	cfg.Bulkhead.MaxConcurrentCalls = 1
	cfg.Bulkhead.MaxWaitDuration = 10 * time.Millisecond
	cfg.Retry.MaxAttempts = 1
	d, err := NewDecorator(cfg)
	require.NoError(t, err)

	block := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = d.Execute(context.Background(), func(ctx context.Context) error {
			close(started)
			<-block
			return nil
		})
	}()
	<-started

	err = d.Execute(context.Background(), func(ctx context.Context) error { return nil })
	require.Error(t, err)
	require.Equal(t, core.KindBulkheadFull, core.KindOf(err))
	close(block)
}
