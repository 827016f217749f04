package objectdata

import (
	"context"
	"errors"
	"maps"
	"slices"
)

// Resolved is an immutable, fully materialized EngineObjectData.
type Resolved struct {
	typeName string
	keys     []string
	values   map[string]any
}

var _ Sync = (*Resolved)(nil)

func (r *Resolved) TypeName() string { return r.typeName }

func (r *Resolved) Get(key string) (any, error) {
	v, ok := r.values[key]
	if !ok {
		return nil, &UnsetSelectionError{TypeName: r.typeName, Key: key}
	}
	return v, nil
}

func (r *Resolved) GetOrNull(key string) any { return r.values[key] }

func (r *Resolved) GetSelections() []string { return slices.Clone(r.keys) }

func (r *Resolved) Fetch(_ context.Context, key string) (any, error) { return r.Get(key) }

func (r *Resolved) FetchOrNull(_ context.Context, key string) (any, error) {
	return r.GetOrNull(key), nil
}

func (r *Resolved) FetchSelections(context.Context) ([]string, error) {
	return r.GetSelections(), nil
}

// Builder accumulates values for a Resolved. It is not safe for concurrent use.
type Builder struct {
	typeName string
	keys     []string
	values   map[string]any
}

func NewBuilder(typeName string) *Builder {
	return &Builder{typeName: typeName, values: make(map[string]any)}
}

// Put records value under key, replacing any earlier value.
func (b *Builder) Put(key string, value any) *Builder {
	if _, ok := b.values[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.values[key] = value
	return b
}

// Build snapshots the builder. Later puts do not affect the result.
func (b *Builder) Build() *Resolved {
	return &Resolved{
		typeName: b.typeName,
		keys:     slices.Clone(b.keys),
		values:   maps.Clone(b.values),
	}
}

// FromMap converts m into a Resolved. Nested maps become Resolved values typed
// by their __typename entry when one is present; lists are converted
// element-wise.
func FromMap(typeName string, m map[string]any) *Resolved {
	b := NewBuilder(typeName)
	keys := slices.Sorted(maps.Keys(m))
	for _, k := range keys {
		b.Put(k, fromValue(m[k]))
	}
	return b.Build()
}

// FromOrderedMap is like FromMap but keeps the given key order.
func FromOrderedMap(typeName string, keys []string, m map[string]any) *Resolved {
	b := NewBuilder(typeName)
	for _, k := range keys {
		if v, ok := m[k]; ok {
			b.Put(k, fromValue(v))
		}
	}
	return b.Build()
}

func fromValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		name, _ := v["__typename"].(string)
		return FromMap(name, v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = fromValue(e)
		}
		return out
	}
	return v
}

// ToMap materializes data into plain maps and slices, fetching every key.
func ToMap(ctx context.Context, data EngineObjectData) (map[string]any, error) {
	keys, err := data.FetchSelections(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any, len(keys))
	for _, k := range keys {
		v, err := data.Fetch(ctx, k)
		if err != nil {
			var unset *UnsetSelectionError
			if errors.As(err, &unset) {
				continue
			}
			return nil, err
		}
		plain, err := toValue(ctx, v)
		if err != nil {
			return nil, err
		}
		out[k] = plain
	}
	return out, nil
}

func toValue(ctx context.Context, v any) (any, error) {
	switch v := v.(type) {
	case EngineObjectData:
		return ToMap(ctx, v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			pv, err := toValue(ctx, e)
			if err != nil {
				return nil, err
			}
			out[i] = pv
		}
		return out, nil
	}
	return v, nil
}
