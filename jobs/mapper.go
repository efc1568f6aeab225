// Package jobs implements the asynchronous job lifecycle fronting an
// external core.JobOrchestrator: the stage service, the target-DTO mapper
// registry, and the in-memory audit/result repositories (spec.md
// §4.14-§4.16).
package jobs

import (
	"context"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

// Mapper converts a job's raw orchestrator output into the shape a caller
// requested via JobStageRequest.TargetDTOClass (§4.15).
type Mapper interface {
	// TargetDTOClass is the identifier callers pass as
	// JobStageRequest.TargetDTOClass to select this mapper.
	TargetDTOClass() string
	Map(ctx context.Context, raw map[string]interface{}) (map[string]interface{}, error)
}

// MapperRegistry indexes a fixed set of Mappers by target class id, built
// once at startup. A duplicate TargetDTOClass is a startup error.
type MapperRegistry struct {
	byClass map[string]Mapper
}

// NewMapperRegistry builds an immutable MapperRegistry.
func NewMapperRegistry(mappers []Mapper) (*MapperRegistry, error) {
	r := &MapperRegistry{byClass: make(map[string]Mapper, len(mappers))}
	for _, m := range mappers {
		id := m.TargetDTOClass()
		if _, exists := r.byClass[id]; exists {
			return nil, core.NewFrameworkError("NewMapperRegistry", core.KindFatal,
				&core.FrameworkError{ID: id, Message: "duplicate mapper for target class: " + id, Err: core.ErrAlreadyRegistered})
		}
		r.byClass[id] = m
	}
	return r, nil
}

// Get resolves a Mapper by target class id.
func (r *MapperRegistry) Get(targetDTOClass string) (Mapper, error) {
	m, ok := r.byClass[targetDTOClass]
	if !ok {
		return nil, core.NewFrameworkError("MapperRegistry.Get", core.KindNotFound,
			&core.FrameworkError{ID: targetDTOClass, Message: "mapper not found for target class: " + targetDTOClass, Err: core.ErrMapperNotFound})
	}
	return m, nil
}

// FuncMapper adapts a plain function into a Mapper, for simple field-rename
// style mappers registered inline rather than as their own type.
type FuncMapper struct {
	Class string
	Fn    func(ctx context.Context, raw map[string]interface{}) (map[string]interface{}, error)
}

func (f FuncMapper) TargetDTOClass() string { return f.Class }
func (f FuncMapper) Map(ctx context.Context, raw map[string]interface{}) (map[string]interface{}, error) {
	return f.Fn(ctx, raw)
}
