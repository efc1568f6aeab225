package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
	"github.com/google/uuid"
)

// InMemoryAuditRepository is the development-default core.JobAuditRepository:
// an append-only log kept in process memory, queryable by executionId.
type InMemoryAuditRepository struct {
	mu      sync.RWMutex
	entries []core.JobAuditEntry
}

// NewInMemoryAuditRepository builds an empty audit log.
func NewInMemoryAuditRepository() *InMemoryAuditRepository {
	return &InMemoryAuditRepository{}
}

// Append implements core.JobAuditRepository.
func (r *InMemoryAuditRepository) Append(ctx context.Context, entry core.JobAuditEntry) error {
	if entry.AuditID == "" {
		entry.AuditID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}
	entry.InputParameters = redact(entry.InputParameters)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return nil
}

// ListByExecution implements core.JobAuditRepository.
func (r *InMemoryAuditRepository) ListByExecution(ctx context.Context, executionID string) ([]core.JobAuditEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]core.JobAuditEntry, 0)
	for _, e := range r.entries {
		if e.ExecutionID == executionID {
			out = append(out, e)
		}
	}
	return out, nil
}

// DeleteBefore implements core.JobAuditRepository, applying the
// audit-retention-days policy (§6).
func (r *InMemoryAuditRepository) DeleteBefore(ctx context.Context, ts time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	kept := r.entries[:0]
	deleted := 0
	for _, e := range r.entries {
		if e.Timestamp.Before(ts) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.entries = kept
	return deleted, nil
}

// redact replaces the value of every key listed in
// core.DefaultExcludedParameterKeys with "[REDACTED]" before persistence. It
// always redacts and always uses that fixed list: the configured
// SanitizeSensitiveData switch and ExcludedParameterKeys list are not
// consulted. A copy is returned; the caller's map is never mutated.
func redact(params map[string]interface{}) map[string]interface{} {
	if params == nil {
		return nil
	}
	excluded := make(map[string]bool, len(core.DefaultExcludedParameterKeys))
	for _, k := range core.DefaultExcludedParameterKeys {
		excluded[k] = true
	}
	out := make(map[string]interface{}, len(params))
	for k, v := range params {
		if excluded[k] {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = v
	}
	return out
}

var _ core.JobAuditRepository = (*InMemoryAuditRepository)(nil)
