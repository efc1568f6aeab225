package enrichment

import (
	"sort"
	"strings"
	"sync"

	"github.com/fireflyframework/fireflyframework-starter-data-sub000/core"
)

// Registry indexes a fixed set of Enrichers built once at startup (§4.8).
// It is immutable after NewRegistry returns; lookups take no lock and are
// safe for concurrent use from any number of goroutines (§5: "Registry is
// immutable after startup; lookups are lock-free").
type Registry struct {
	byProvider map[string][]Enricher            // providerName (lower) -> enrichers
	byTenant   map[string][]Enricher             // tenantId -> enrichers
	byType     map[string][]Enricher             // type (lower) -> priority-sorted enrichers
	byTypeTenant map[typeTenantKey][]Enricher    // (type, tenantId) -> priority-sorted enrichers
	byProviderTenant map[providerTenantKey]Enricher
	byTag      map[string]map[string]Enricher   // tag (lower) -> providerName -> enricher

	mu sync.Mutex // guards nothing after construction; kept for future hot-reload
}

type typeTenantKey struct {
	typ    string
	tenant string
}

type providerTenantKey struct {
	provider string
	tenant   string
}

// NewRegistry builds an immutable Registry from enrichers. Disabled
// enrichers (Metadata().Enabled == false) are skipped entirely. A duplicate
// (providerName, tenantId) pair is an error.
func NewRegistry(enrichers []Enricher) (*Registry, error) {
	r := &Registry{
		byProvider:       make(map[string][]Enricher),
		byTenant:         make(map[string][]Enricher),
		byType:           make(map[string][]Enricher),
		byTypeTenant:     make(map[typeTenantKey][]Enricher),
		byProviderTenant: make(map[providerTenantKey]Enricher),
		byTag:            make(map[string]map[string]Enricher),
	}

	for _, e := range enrichers {
		meta := core.NewEnricherMetadata(e.Metadata())
		if !meta.Enabled {
			continue
		}

		providerKey := strings.ToLower(meta.ProviderName)
		typeKey := strings.ToLower(meta.Type)
		ptKey := providerTenantKey{provider: providerKey, tenant: meta.TenantID}

		if _, exists := r.byProviderTenant[ptKey]; exists {
			return nil, core.NewFrameworkError("NewRegistry", core.KindFatal,
				&core.FrameworkError{
					ID:      meta.ProviderName,
					Message: "duplicate enricher for provider+tenant: " + meta.ProviderName + "/" + meta.TenantID,
					Err:     core.ErrEnricherAlreadyExists,
				})
		}
		r.byProviderTenant[ptKey] = e

		r.byProvider[providerKey] = append(r.byProvider[providerKey], e)
		r.byTenant[meta.TenantID] = append(r.byTenant[meta.TenantID], e)
		r.byType[typeKey] = append(r.byType[typeKey], e)
		ttKey := typeTenantKey{typ: typeKey, tenant: meta.TenantID}
		r.byTypeTenant[ttKey] = append(r.byTypeTenant[ttKey], e)

		for _, tag := range meta.Tags {
			tagKey := strings.ToLower(tag)
			if r.byTag[tagKey] == nil {
				r.byTag[tagKey] = make(map[string]Enricher)
			}
			r.byTag[tagKey][providerKey] = e
		}
	}

	for k, list := range r.byType {
		r.byType[k] = sortByPriority(list)
	}
	for k, list := range r.byTypeTenant {
		r.byTypeTenant[k] = sortByPriority(list)
	}

	return r, nil
}

// sortByPriority orders enrichers by descending priority, breaking ties by
// provider name ascending for deterministic, stable output (§4.8, §8:
// "Registry lookups are stable").
func sortByPriority(list []Enricher) []Enricher {
	out := make([]Enricher, len(list))
	copy(out, list)
	sort.SliceStable(out, func(i, j int) bool {
		mi, mj := core.NewEnricherMetadata(out[i].Metadata()), core.NewEnricherMetadata(out[j].Metadata())
		if mi.Priority != mj.Priority {
			return mi.Priority > mj.Priority
		}
		return strings.ToLower(mi.ProviderName) < strings.ToLower(mj.ProviderName)
	})
	return out
}

// ByType returns the priority-sorted enrichers registered for type,
// independent of tenant.
func (r *Registry) ByType(enricherType string) []Enricher {
	return append([]Enricher(nil), r.byType[strings.ToLower(enricherType)]...)
}

// ByTypeAndTenant returns the priority-sorted enrichers for (type, tenantId).
// When tenantId has no results, falls back to (type, globalTenant) per §4.8.
func (r *Registry) ByTypeAndTenant(enricherType, tenantID string) []Enricher {
	typeKey := strings.ToLower(enricherType)
	if tenantID == "" {
		tenantID = core.GlobalTenantID
	}
	if list, ok := r.byTypeTenant[typeTenantKey{typ: typeKey, tenant: tenantID}]; ok && len(list) > 0 {
		return append([]Enricher(nil), list...)
	}
	if tenantID != core.GlobalTenantID {
		if list, ok := r.byTypeTenant[typeTenantKey{typ: typeKey, tenant: core.GlobalTenantID}]; ok {
			return append([]Enricher(nil), list...)
		}
	}
	return nil
}

// ByProviderAndTenant returns the single enricher registered for
// (providerName, tenantId), or false if none exists.
func (r *Registry) ByProviderAndTenant(providerName, tenantID string) (Enricher, bool) {
	if tenantID == "" {
		tenantID = core.GlobalTenantID
	}
	e, ok := r.byProviderTenant[providerTenantKey{provider: strings.ToLower(providerName), tenant: tenantID}]
	return e, ok
}

// ByProvider returns every registered instance of providerName, across
// tenants.
func (r *Registry) ByProvider(providerName string) []Enricher {
	return append([]Enricher(nil), r.byProvider[strings.ToLower(providerName)]...)
}

// ByTenant returns every enricher registered for tenantID.
func (r *Registry) ByTenant(tenantID string) []Enricher {
	return append([]Enricher(nil), r.byTenant[tenantID]...)
}

// ByTag returns the enrichers tagged with tag, in no particular order.
func (r *Registry) ByTag(tag string) []Enricher {
	set := r.byTag[strings.ToLower(tag)]
	out := make([]Enricher, 0, len(set))
	for _, e := range set {
		out = append(out, e)
	}
	return out
}

// All returns every registered enricher, deduplicated, in no particular
// order. Used by discovery listing and health aggregation (§4.13).
func (r *Registry) All() []Enricher {
	seen := make(map[providerTenantKey]struct{})
	out := make([]Enricher, 0)
	for _, list := range r.byType {
		for _, e := range list {
			meta := e.Metadata()
			key := providerTenantKey{provider: strings.ToLower(meta.ProviderName), tenant: meta.TenantID}
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, e)
		}
	}
	return out
}
