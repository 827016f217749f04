package objectdata

import (
	"context"
	"errors"
	"slices"
)

type overlay struct {
	top  EngineObjectData
	base EngineObjectData
}

// Overlay layers top over base. A key present in top wins even when its value
// is nil; only keys absent from top fall through to base.
func Overlay(top, base EngineObjectData) EngineObjectData {
	return &overlay{top: top, base: base}
}

func (o *overlay) TypeName() string {
	if name := o.top.TypeName(); name != "" {
		return name
	}
	return o.base.TypeName()
}

func (o *overlay) Fetch(ctx context.Context, key string) (any, error) {
	v, err := o.top.Fetch(ctx, key)
	if err == nil {
		return v, nil
	}
	var unset *UnsetSelectionError
	if !errors.As(err, &unset) {
		return nil, err
	}
	return o.base.Fetch(ctx, key)
}

func (o *overlay) FetchOrNull(ctx context.Context, key string) (any, error) {
	v, err := o.Fetch(ctx, key)
	var unset *UnsetSelectionError
	if errors.As(err, &unset) {
		return nil, nil
	}
	return v, err
}

func (o *overlay) FetchSelections(ctx context.Context) ([]string, error) {
	top, err := o.top.FetchSelections(ctx)
	if err != nil {
		return nil, err
	}
	base, err := o.base.FetchSelections(ctx)
	if err != nil {
		return nil, err
	}
	out := slices.Clone(top)
	for _, k := range base {
		if !slices.Contains(top, k) {
			out = append(out, k)
		}
	}
	return out, nil
}
