package core

import (
	"context"
	"time"
)

// JobExecutionRequest is passed to JobOrchestrator.StartJob.
type JobExecutionRequest struct {
	JobDefinition string
	Input         map[string]interface{}
	RequestID     string
	Initiator     string
	Metadata      map[string]interface{}
}

// JobExecution is the orchestrator's view of a running or finished job.
type JobExecution struct {
	ExecutionID        string
	Status             JobExecutionStatus
	ProgressPercentage *int
	RawOutput          map[string]interface{}
}

// JobOrchestrator is the external workflow engine the Job Stage Service
// fronts. The core ships no concrete adapter; hosts provide one.
type JobOrchestrator interface {
	StartJob(ctx context.Context, req JobExecutionRequest) (executionID string, err error)
	CheckJobStatus(ctx context.Context, executionID string) (*JobExecution, error)
	GetJobExecution(ctx context.Context, executionID string) (*JobExecution, error)
	StopJob(ctx context.Context, executionID string, reason string) error
	GetOrchestratorType() string
}

// CacheAdapter is the optional cache port (§4.3). A nil CacheAdapter means
// caching is disabled.
type CacheAdapter interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// EventPublisher fire-and-forgets lifecycle events; delivery guarantees are
// the host's responsibility.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, payload interface{})
}

// JobAuditRepository persists JobAuditEntry rows.
type JobAuditRepository interface {
	Append(ctx context.Context, entry JobAuditEntry) error
	ListByExecution(ctx context.Context, executionID string) ([]JobAuditEntry, error)
	DeleteBefore(ctx context.Context, ts time.Time) (deleted int, err error)
}

// JobExecutionResultRepository persists one row per executionId.
type JobExecutionResultRepository interface {
	Upsert(ctx context.Context, result JobExecutionResult) error
	Get(ctx context.Context, executionID string) (*JobExecutionResult, bool, error)
	DeleteBefore(ctx context.Context, ts time.Time) (deleted int, err error)
	DeleteExpired(ctx context.Context, now time.Time) (deleted int, err error)
}

// LineageTracker records and queries provenance entries (§4.6).
type LineageTracker interface {
	Record(ctx context.Context, r LineageRecord) error
	GetLineage(ctx context.Context, entityID string) ([]LineageRecord, error)
	GetLineageByOperator(ctx context.Context, operatorID string) ([]LineageRecord, error)
}
