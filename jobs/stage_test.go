package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
	"github.com/fireflyframework/fireflyframework-starter-data-sub000/resilience"
	"github.com/stretchr/testify/require"
)

func testStageDecorator(t *testing.T) *resilience.Decorator {
	t.Helper()
	d, err := resilience.NewDecorator(resilience.DecoratorConfig{
		Name:        "jobs-test",
		Retry:       core.RetryPolicyConfig{MaxAttempts: 1, WaitDuration: time.Millisecond},
		RateLimiter: core.RateLimiterConfig{LimitForPeriod: 1000, LimitRefreshPeriod: time.Second, TimeoutDuration: time.Second},
		Bulkhead:    core.BulkheadConfig{MaxConcurrentCalls: 10, MaxWaitDuration: time.Second},
		Timeout:     5 * time.Second,
	})
	require.NoError(t, err)
	return d
}

// TestJobLifecycle_StartCheckCollectResultWithMapperRename reproduces spec.md
// scenario S6: a job's raw output field is renamed by the configured mapper
// when fetched through the RESULT stage.
func TestJobLifecycle_StartCheckCollectResultWithMapperRename(t *testing.T) {
	orchestrator := NewInMemoryOrchestrator(nil)
	orchestrator.RegisterHandler("creditCheckJob", func(ctx context.Context, input map[string]interface{}, progress func(int)) (map[string]interface{}, error) {
		progress(50)
		return map[string]interface{}{"credit_score": 750}, nil
	})

	mappers, err := NewMapperRegistry([]Mapper{
		FuncMapper{Class: "CreditCheckResult", Fn: func(ctx context.Context, raw map[string]interface{}) (map[string]interface{}, error) {
			return map[string]interface{}{"creditScore": raw["credit_score"]}, nil
		}},
	})
	require.NoError(t, err)

	svc := NewStageService(StageServiceConfig{
		Orchestrator: orchestrator,
		Audit:        NewInMemoryAuditRepository(),
		Results:      NewInMemoryResultRepository(),
		Mappers:      mappers,
		Decorator:    testStageDecorator(t),
		PollInterval: 5 * time.Millisecond,
	})

	startResp := svc.Execute(context.Background(), core.JobStageRequest{
		Stage: core.StageStart, JobType: "creditCheckJob", Parameters: map[string]interface{}{"companyId": "12345"},
	})
	require.True(t, startResp.Success)
	executionID := startResp.ExecutionID
	require.NotEmpty(t, executionID)

	require.Eventually(t, func() bool {
		checkResp := svc.Execute(context.Background(), core.JobStageRequest{Stage: core.StageCheck, ExecutionID: executionID})
		return checkResp.Status.IsTerminal()
	}, time.Second, 5*time.Millisecond)

	collectResp := svc.Execute(context.Background(), core.JobStageRequest{Stage: core.StageCollect, ExecutionID: executionID})
	require.True(t, collectResp.Success)
	require.Equal(t, 750, collectResp.Data["credit_score"])

	resultResp := svc.Execute(context.Background(), core.JobStageRequest{
		Stage: core.StageResult, ExecutionID: executionID, TargetDTOClass: "CreditCheckResult",
	})
	require.True(t, resultResp.Success)
	require.Equal(t, 750, resultResp.Data["creditScore"])
	require.NotContains(t, resultResp.Data, "credit_score")
}

func TestJobLifecycle_StopIsIdempotentOnTerminalJob(t *testing.T) {
	orchestrator := NewInMemoryOrchestrator(nil)
	orchestrator.RegisterHandler("fast", func(ctx context.Context, input map[string]interface{}, progress func(int)) (map[string]interface{}, error) {
		return map[string]interface{}{"done": true}, nil
	})

	svc := NewStageService(StageServiceConfig{
		Orchestrator: orchestrator,
		Audit:        NewInMemoryAuditRepository(),
		Results:      NewInMemoryResultRepository(),
		Decorator:    testStageDecorator(t),
	})

	startResp := svc.Execute(context.Background(), core.JobStageRequest{Stage: core.StageStart, JobType: "fast", Parameters: map[string]interface{}{}})
	executionID := startResp.ExecutionID

	require.Eventually(t, func() bool {
		checkResp := svc.Execute(context.Background(), core.JobStageRequest{Stage: core.StageCheck, ExecutionID: executionID})
		return checkResp.Status.IsTerminal()
	}, time.Second, 5*time.Millisecond)

	stopResp := svc.Execute(context.Background(), core.JobStageRequest{Stage: core.StageStop, ExecutionID: executionID})
	require.True(t, stopResp.Success)
}

func TestJobLifecycle_ValidationErrorOnMissingFields(t *testing.T) {
	svc := NewStageService(StageServiceConfig{
		Orchestrator: NewInMemoryOrchestrator(nil),
		Decorator:    testStageDecorator(t),
	})
	resp := svc.Execute(context.Background(), core.JobStageRequest{Stage: core.StageStart})
	require.False(t, resp.Success)
	require.NotEmpty(t, resp.Error)
}
