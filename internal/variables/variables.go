// Package variables computes the values bound to the $variables used inside
// required selection sets.
package variables

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hanpama/rsgate/internal/attribution"
	"github.com/hanpama/rsgate/internal/objectdata"
	"github.com/hanpama/rsgate/internal/selection"
)

// ErrNoQuerySelections is returned when a query-field variable is resolved
// but no query selections were declared.
var ErrNoQuerySelections = errors.New("no query selections declared")

// ResolveContext carries what a Resolver may read from.
type ResolveContext struct {
	// Arguments are the coerced arguments of the field being resolved.
	Arguments map[string]any
	// ObjectData is the parent object, fetched with the resolver's Dependency
	// when it has one.
	ObjectData objectdata.EngineObjectData
	// QueryData is the query root, fetched with the resolver's Dependency
	// when it is on the query.
	QueryData objectdata.EngineObjectData
}

// Resolver produces values for a fixed set of variable names.
type Resolver interface {
	VariableNames() []string
	// Dependency returns the selections that must be fetched before Resolve
	// can read its values, or nil.
	Dependency() *Dependency
	Resolve(ctx context.Context, rc ResolveContext) (map[string]any, error)
}

// Dependency is a selection set a resolver reads from, together with the
// resolvers for the variables it uses in turn.
type Dependency struct {
	Selections  *selection.ParsedSelections
	Resolvers   []Resolver
	OnQuery     bool
	Attribution *attribution.ExecutionAttribution
}

type emptyResolver struct{}

// Empty resolves no variables.
var Empty Resolver = emptyResolver{}

func (emptyResolver) VariableNames() []string { return nil }
func (emptyResolver) Dependency() *Dependency { return nil }
func (emptyResolver) Resolve(context.Context, ResolveContext) (map[string]any, error) {
	return map[string]any{}, nil
}

type constResolver struct {
	values map[string]any
}

// Const binds fixed values. An empty map yields Empty.
func Const(values map[string]any) Resolver {
	if len(values) == 0 {
		return Empty
	}
	return constResolver{values: maps.Clone(values)}
}

func (c constResolver) VariableNames() []string { return slices.Sorted(maps.Keys(c.values)) }
func (c constResolver) Dependency() *Dependency { return nil }
func (c constResolver) Resolve(context.Context, ResolveContext) (map[string]any, error) {
	return maps.Clone(c.values), nil
}

type argumentResolver struct {
	name   string
	reader *objectdata.InputValueReader
}

// FromArgument binds name to the value at a dotted path in the field arguments.
func FromArgument(name, path string) (Resolver, error) {
	reader, err := objectdata.NewInputValueReader(objectdata.SplitPath(path))
	if err != nil {
		return nil, fmt.Errorf("argument path for variable %q: %w", name, err)
	}
	return &argumentResolver{name: name, reader: reader}, nil
}

func (r *argumentResolver) VariableNames() []string { return []string{r.name} }
func (r *argumentResolver) Dependency() *Dependency { return nil }
func (r *argumentResolver) Resolve(_ context.Context, rc ResolveContext) (map[string]any, error) {
	v, err := r.reader.Read(rc.Arguments)
	if err != nil {
		return nil, err
	}
	return map[string]any{r.name: v}, nil
}

type fieldResolver struct {
	name       string
	reader     *objectdata.EngineDataReader
	dependency *Dependency
	onQuery    bool
}

// FromObjectField binds name to the value at a dotted path of the parent
// object. The path must be selected by objectSelections.
func FromObjectField(name, path string, objectSelections *selection.ParsedSelections) (Resolver, error) {
	return newFieldResolver(name, path, objectSelections, false)
}

// FromQueryField binds name to the value at a dotted path of the query root.
// When querySelections is nil the resolver is built but fails to resolve with
// ErrNoQuerySelections.
func FromQueryField(name, path string, querySelections *selection.ParsedSelections) (Resolver, error) {
	return newFieldResolver(name, path, querySelections, true)
}

func newFieldResolver(name, path string, selections *selection.ParsedSelections, onQuery bool) (*fieldResolver, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("path for variable %q is empty", name)
	}
	segments := objectdata.SplitPath(path)
	reader, err := objectdata.NewEngineDataReader(segments)
	if err != nil {
		return nil, fmt.Errorf("path for variable %q: %w", name, err)
	}
	r := &fieldResolver{name: name, reader: reader, onQuery: onQuery}
	if selections == nil {
		if !onQuery {
			return nil, fmt.Errorf("no object selections provided, can't resolve variable %q from object field %q", name, path)
		}
		return r, nil
	}
	view := selections.FilterToPath(segments)
	if view == nil {
		return nil, fmt.Errorf("no selections found for path %q of variable %q in selection set on %s", path, name, selections.TypeName)
	}
	r.dependency = &Dependency{Selections: view, OnQuery: onQuery}
	return r, nil
}

func (r *fieldResolver) VariableNames() []string { return []string{r.name} }
func (r *fieldResolver) Dependency() *Dependency { return r.dependency }

func (r *fieldResolver) Resolve(ctx context.Context, rc ResolveContext) (map[string]any, error) {
	data := rc.ObjectData
	if r.onQuery {
		if r.dependency == nil {
			return nil, fmt.Errorf("variable %q: %w", r.name, ErrNoQuerySelections)
		}
		data = rc.QueryData
	}
	if data == nil {
		return nil, fmt.Errorf("variable %q: no object data to read %s from", r.name, strings.Join(r.reader.Path(), "."))
	}
	v, err := r.reader.Read(ctx, data)
	if err != nil {
		return nil, fmt.Errorf("variable %q: %w", r.name, err)
	}
	return map[string]any{r.name: v}, nil
}

// Names returns the union of the variable names of rs, sorted.
func Names(rs []Resolver) []string {
	set := map[string]struct{}{}
	for _, r := range rs {
		for _, n := range r.VariableNames() {
			set[n] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(set))
}

// CheckDisjoint fails when two resolvers declare the same name, including
// when the same resolver appears twice.
func CheckDisjoint(rs []Resolver) error {
	seen := map[string]bool{}
	for _, r := range rs {
		for _, n := range r.VariableNames() {
			if seen[n] {
				return fmt.Errorf("Multiple variable resolvers provide a value for variable $%s", n)
			}
			seen[n] = true
		}
	}
	return nil
}

// ResolveAll resolves every resolver with the same context and merges the
// results.
func ResolveAll(ctx context.Context, rs []Resolver, rc ResolveContext) (map[string]any, error) {
	out := map[string]any{}
	for _, r := range rs {
		vals, err := r.Resolve(ctx, rc)
		if err != nil {
			return nil, err
		}
		maps.Copy(out, vals)
	}
	return out, nil
}
