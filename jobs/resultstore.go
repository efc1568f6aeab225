package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

// InMemoryResultRepository is the development-default
// core.JobExecutionResultRepository: one row per executionId, kept in
// process memory.
type InMemoryResultRepository struct {
	mu      sync.RWMutex
	results map[string]core.JobExecutionResult
}

// NewInMemoryResultRepository builds an empty result store.
func NewInMemoryResultRepository() *InMemoryResultRepository {
	return &InMemoryResultRepository{results: make(map[string]core.JobExecutionResult)}
}

// Upsert implements core.JobExecutionResultRepository.
func (r *InMemoryResultRepository) Upsert(ctx context.Context, result core.JobExecutionResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[result.ExecutionID] = result
	return nil
}

// Get implements core.JobExecutionResultRepository.
func (r *InMemoryResultRepository) Get(ctx context.Context, executionID string) (*core.JobExecutionResult, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res, ok := r.results[executionID]
	if !ok {
		return nil, false, nil
	}
	return &res, true, nil
}

// DeleteBefore implements core.JobExecutionResultRepository, applying the
// result-retention-days policy (§6).
func (r *InMemoryResultRepository) DeleteBefore(ctx context.Context, ts time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := 0
	for id, res := range r.results {
		if res.StartTime.Before(ts) {
			delete(r.results, id)
			deleted++
		}
	}
	return deleted, nil
}

// DeleteExpired implements core.JobExecutionResultRepository, applying the
// per-result cache TTL (§4.16).
func (r *InMemoryResultRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := 0
	for id, res := range r.results {
		if res.ExpiresAt != nil && res.ExpiresAt.Before(now) {
			delete(r.results, id)
			deleted++
		}
	}
	return deleted, nil
}

var _ core.JobExecutionResultRepository = (*InMemoryResultRepository)(nil)
