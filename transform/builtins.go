package transform

import "context"

// FieldMapping renames keys per Mapping (oldKey -> newKey). Source keys
// absent from Mapping are preserved unchanged; keys named in Mapping but
// absent from the source are ignored. The input is never mutated.
type FieldMapping struct {
	Mapping map[string]string
}

// NewFieldMapping builds a FieldMapping transformer.
func NewFieldMapping(mapping map[string]string) *FieldMapping {
	return &FieldMapping{Mapping: mapping}
}

func (f *FieldMapping) Transform(ctx context.Context, value map[string]interface{}, tctx Context) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(value))
	for k, v := range value {
		if renamed, ok := f.Mapping[k]; ok {
			out[renamed] = v
			continue
		}
		out[k] = v
	}
	return out, nil
}

// Inverse returns the FieldMapping that undoes this one, for round-trip
// testing (spec.md §8: "transformation round trip").
func (f *FieldMapping) Inverse() *FieldMapping {
	inv := make(map[string]string, len(f.Mapping))
	for k, v := range f.Mapping {
		inv[v] = k
	}
	return NewFieldMapping(inv)
}

// ComputeFunc derives a new value from an unmodifiable view of the current
// map. The result is stored under Key, overwriting any existing value.
type ComputeFunc func(value map[string]interface{}) (interface{}, error)

// ComputedField applies Fn to a read-only view of the map and stores the
// result under Key, overwriting any prior value there.
type ComputedField struct {
	Key string
	Fn  ComputeFunc
}

// NewComputedField builds a ComputedField transformer.
func NewComputedField(key string, fn ComputeFunc) *ComputedField {
	return &ComputedField{Key: key, Fn: fn}
}

func (c *ComputedField) Transform(ctx context.Context, value map[string]interface{}, tctx Context) (map[string]interface{}, error) {
	view := make(map[string]interface{}, len(value))
	for k, v := range value {
		view[k] = v
	}
	result, err := c.Fn(view)
	if err != nil {
		return nil, err
	}
	out := make(map[string]interface{}, len(value)+1)
	for k, v := range value {
		out[k] = v
	}
	out[c.Key] = result
	return out, nil
}
