package objectdata

import (
	"context"
	"maps"
	"slices"
)

// mapView is a read-only EngineObjectData over a plain map. Values are
// converted when they are read, so wrapping costs nothing up front.
type mapView struct {
	typeName string
	m        map[string]any
}

var _ Sync = (*mapView)(nil)

// Wrap views m as object data without copying it. Nested maps and lists are
// converted as they are read, the way FromMap converts them. m must not be
// modified while the view is in use.
func Wrap(typeName string, m map[string]any) EngineObjectData {
	return &mapView{typeName: typeName, m: m}
}

func (v *mapView) TypeName() string { return v.typeName }

func (v *mapView) Get(key string) (any, error) {
	val, ok := v.m[key]
	if !ok {
		return nil, &UnsetSelectionError{TypeName: v.typeName, Key: key}
	}
	return wrapValue(val), nil
}

func (v *mapView) GetOrNull(key string) any { return wrapValue(v.m[key]) }

func (v *mapView) GetSelections() []string { return slices.Sorted(maps.Keys(v.m)) }

func (v *mapView) Fetch(_ context.Context, key string) (any, error) { return v.Get(key) }

func (v *mapView) FetchOrNull(_ context.Context, key string) (any, error) {
	return v.GetOrNull(key), nil
}

func (v *mapView) FetchSelections(context.Context) ([]string, error) {
	return v.GetSelections(), nil
}

func wrapValue(v any) any {
	switch v := v.(type) {
	case map[string]any:
		name, _ := v["__typename"].(string)
		return Wrap(name, v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = wrapValue(e)
		}
		return out
	}
	return v
}
