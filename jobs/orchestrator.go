package jobs

import (
	"context"
	"sync"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
	"github.com/google/uuid"
)

// JobHandler runs one job definition's work to completion, reporting
// progress through progress. It must respect ctx cancellation (used by
// StopJob).
type JobHandler func(ctx context.Context, input map[string]interface{}, progress func(percent int)) (map[string]interface{}, error)

type jobRecord struct {
	execution  core.JobExecution
	cancel     context.CancelFunc
	jobType    string
}

// InMemoryOrchestrator is the development-default core.JobOrchestrator: it
// runs registered JobHandlers on goroutines and tracks their state in
// memory: a queue-free, single-process model.
// Hosts that need durability or cross-instance visibility supply their own
// JobOrchestrator.
type InMemoryOrchestrator struct {
	mu       sync.RWMutex
	handlers map[string]JobHandler
	jobs     map[string]*jobRecord
	logger   core.Logger
}

// NewInMemoryOrchestrator builds an empty InMemoryOrchestrator.
func NewInMemoryOrchestrator(logger core.Logger) *InMemoryOrchestrator {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &InMemoryOrchestrator{
		handlers: make(map[string]JobHandler),
		jobs:     make(map[string]*jobRecord),
		logger:   logger,
	}
}

// RegisterHandler associates a JobHandler with a job definition name. Must
// be called before any StartJob referencing that name.
func (o *InMemoryOrchestrator) RegisterHandler(jobDefinition string, handler JobHandler) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.handlers[jobDefinition] = handler
}

// StartJob implements core.JobOrchestrator.
func (o *InMemoryOrchestrator) StartJob(ctx context.Context, req core.JobExecutionRequest) (string, error) {
	o.mu.RLock()
	handler, ok := o.handlers[req.JobDefinition]
	o.mu.RUnlock()
	if !ok {
		return "", core.NewFrameworkError("InMemoryOrchestrator.StartJob", core.KindNotFound,
			&core.FrameworkError{ID: req.JobDefinition, Message: "no handler registered for job definition: " + req.JobDefinition, Err: core.ErrJobNotFound})
	}

	executionID := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.Background())

	rec := &jobRecord{
		execution: core.JobExecution{ExecutionID: executionID, Status: core.JobRunning},
		cancel:    cancel,
		jobType:   req.JobDefinition,
	}
	o.mu.Lock()
	o.jobs[executionID] = rec
	o.mu.Unlock()

	go o.run(runCtx, executionID, handler, req.Input)

	return executionID, nil
}

func (o *InMemoryOrchestrator) run(ctx context.Context, executionID string, handler JobHandler, input map[string]interface{}) {
	progress := func(percent int) {
		o.mu.Lock()
		defer o.mu.Unlock()
		if rec, ok := o.jobs[executionID]; ok {
			p := percent
			rec.execution.ProgressPercentage = &p
		}
	}

	output, err := handler(ctx, input, progress)

	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.jobs[executionID]
	if !ok {
		return
	}
	if rec.execution.Status == core.JobAborted {
		return // StopJob already finalized this execution.
	}
	switch {
	case err != nil && ctx.Err() != nil:
		rec.execution.Status = core.JobTimedOut
	case err != nil:
		rec.execution.Status = core.JobFailed
	default:
		rec.execution.Status = core.JobSucceeded
		rec.execution.RawOutput = output
	}
}

// CheckJobStatus implements core.JobOrchestrator.
func (o *InMemoryOrchestrator) CheckJobStatus(ctx context.Context, executionID string) (*core.JobExecution, error) {
	return o.get(executionID)
}

// GetJobExecution implements core.JobOrchestrator.
func (o *InMemoryOrchestrator) GetJobExecution(ctx context.Context, executionID string) (*core.JobExecution, error) {
	return o.get(executionID)
}

func (o *InMemoryOrchestrator) get(executionID string) (*core.JobExecution, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	rec, ok := o.jobs[executionID]
	if !ok {
		return nil, core.NewFrameworkError("InMemoryOrchestrator.get", core.KindNotFound,
			&core.FrameworkError{ID: executionID, Message: "job execution not found: " + executionID, Err: core.ErrJobNotFound})
	}
	exec := rec.execution
	return &exec, nil
}

// StopJob implements core.JobOrchestrator. A STOP request against a
// terminal execution is a no-op success, not an error (§4.14 STOP is
// idempotent) and leaves its status unchanged. Stopping a running execution
// always sets ABORTED; the spec's distinct
// "STOPPED" notion collapses onto JobAborted (documented decision: the
// terminal-status enum names only ABORTED, so a caller-initiated stop and
// an orchestrator-initiated abort are indistinguishable after the fact).
func (o *InMemoryOrchestrator) StopJob(ctx context.Context, executionID string, reason string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	rec, ok := o.jobs[executionID]
	if !ok {
		return core.NewFrameworkError("InMemoryOrchestrator.StopJob", core.KindNotFound,
			&core.FrameworkError{ID: executionID, Message: "job execution not found: " + executionID, Err: core.ErrJobNotFound})
	}
	if rec.execution.Status.IsTerminal() {
		return nil
	}
	rec.cancel()
	rec.execution.Status = core.JobAborted
	return nil
}

// GetOrchestratorType implements core.JobOrchestrator.
func (o *InMemoryOrchestrator) GetOrchestratorType() string { return "in-memory" }

var _ core.JobOrchestrator = (*InMemoryOrchestrator)(nil)
