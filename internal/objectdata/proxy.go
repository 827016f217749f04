package objectdata

import (
	"context"
	"errors"

	"github.com/hanpama/rsgate/internal/selection"
)

type proxy struct {
	data       EngineObjectData
	selections selection.RawSelectionSet
	message    string
}

// Proxy restricts data to the keys selected by selections. Reading any other
// key fails with an *UnsetSelectionError carrying message. Nested objects are
// restricted to the corresponding sub-selections.
func Proxy(data EngineObjectData, selections selection.RawSelectionSet, message string) EngineObjectData {
	return &proxy{data: data, selections: selections, message: message}
}

func (p *proxy) TypeName() string { return p.data.TypeName() }

func (p *proxy) typeName() string {
	if name := p.data.TypeName(); name != "" {
		return name
	}
	return p.selections.TypeName()
}

func (p *proxy) Fetch(ctx context.Context, key string) (any, error) {
	typeName := p.typeName()
	if !p.selections.ContainsSelection(typeName, key) {
		return nil, &UnsetSelectionError{TypeName: typeName, Key: key, Message: p.message}
	}
	v, err := p.data.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	return p.wrap(typeName, key, v)
}

func (p *proxy) wrap(typeName, key string, v any) (any, error) {
	switch v := v.(type) {
	case EngineObjectData:
		sub, err := p.selections.SelectionSetForSelection(typeName, key)
		if err != nil {
			return nil, err
		}
		if name := v.TypeName(); name != "" && name != sub.TypeName() && !sub.IsEmpty() {
			if sub, err = sub.SelectionSetForType(name); err != nil {
				return nil, err
			}
		}
		return Proxy(v, sub, p.message), nil
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			w, err := p.wrap(typeName, key, e)
			if err != nil {
				return nil, err
			}
			out[i] = w
		}
		return out, nil
	}
	return v, nil
}

func (p *proxy) FetchOrNull(ctx context.Context, key string) (any, error) {
	v, err := p.Fetch(ctx, key)
	var unset *UnsetSelectionError
	if errors.As(err, &unset) {
		return nil, nil
	}
	return v, err
}

func (p *proxy) FetchSelections(ctx context.Context) ([]string, error) {
	keys, err := p.data.FetchSelections(ctx)
	if err != nil {
		return nil, err
	}
	typeName := p.typeName()
	out := keys[:0:0]
	for _, k := range keys {
		if p.selections.ContainsSelection(typeName, k) {
			out = append(out, k)
		}
	}
	return out, nil
}
