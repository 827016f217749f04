package rss

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/hanpama/rsgate/internal/attribution"
	"github.com/hanpama/rsgate/internal/selection"
	"github.com/hanpama/rsgate/internal/variables"
)

// Spec describes the required selections of one resolver or checker.
type Spec struct {
	// ObjectFragment is selected on the type the resolver or checker is bound to.
	ObjectFragment string
	// QueryFragment is selected on the query root.
	QueryFragment string
	Variables     []variables.Declaration
	Consts        map[string]any
	ForChecker    bool
	Attribution   *attribution.ExecutionAttribution
}

// Sets holds the object and query required selection sets built from a Spec.
// Either may be nil.
type Sets struct {
	Object *RequiredSelectionSet
	Query  *RequiredSelectionSet
}

// All returns the non-nil sets, object first.
func (s Sets) All() []*RequiredSelectionSet {
	var out []*RequiredSelectionSet
	if s.Object != nil {
		out = append(out, s.Object)
	}
	if s.Query != nil {
		out = append(out, s.Query)
	}
	return out
}

// Build parses spec and returns its required selection sets. Declared
// variables that no selection uses are rejected, as are overlapping ones.
// The resulting resolvers are wrapped with variables.Validated.
func Build(typeName, queryTypeName string, spec Spec) (Sets, error) {
	if strings.TrimSpace(spec.ObjectFragment) == "" && strings.TrimSpace(spec.QueryFragment) == "" {
		if len(spec.Variables) > 0 || len(spec.Consts) > 0 {
			return Sets{}, errors.New("cannot declare variables without an object or query fragment")
		}
		return Sets{}, nil
	}

	var objectSelections, querySelections *selection.ParsedSelections
	var err error
	if strings.TrimSpace(spec.ObjectFragment) != "" {
		if objectSelections, err = selection.Parse(typeName, spec.ObjectFragment); err != nil {
			return Sets{}, err
		}
	}
	if strings.TrimSpace(spec.QueryFragment) != "" {
		if querySelections, err = selection.Parse(queryTypeName, spec.QueryFragment); err != nil {
			return Sets{}, err
		}
	}

	consumers := map[string]bool{}
	for _, p := range []*selection.ParsedSelections{objectSelections, querySelections} {
		if p == nil {
			continue
		}
		for _, ref := range p.VariableReferences() {
			consumers[ref] = true
		}
	}
	var unused []string
	for _, d := range spec.Variables {
		if !consumers[d.Name] {
			unused = append(unused, d.Name)
		}
	}
	for _, name := range slices.Sorted(maps.Keys(spec.Consts)) {
		if !consumers[name] {
			unused = append(unused, name)
		}
	}
	if len(unused) > 0 {
		return Sets{}, fmt.Errorf("cannot build required selection sets: found declarations for unused variables: %s", strings.Join(unused, ", "))
	}

	b := &variables.Builder{
		ObjectSelections: objectSelections,
		QuerySelections:  querySelections,
		Attribution:      spec.Attribution,
	}
	built, err := b.Build(spec.Variables)
	if err != nil {
		return Sets{}, err
	}
	all := append([]variables.Resolver{variables.Const(spec.Consts)}, built...)
	if err := variables.CheckDisjoint(all); err != nil {
		return Sets{}, err
	}
	resolvers := make([]variables.Resolver, 0, len(all))
	for _, r := range all {
		if r == variables.Empty {
			continue
		}
		resolvers = append(resolvers, variables.Validated(r))
	}

	var sets Sets
	if objectSelections != nil {
		if sets.Object, err = New(objectSelections, resolvers, spec.ForChecker, spec.Attribution); err != nil {
			return Sets{}, err
		}
	}
	if querySelections != nil {
		if sets.Query, err = New(querySelections, resolvers, spec.ForChecker, spec.Attribution); err != nil {
			return Sets{}, err
		}
	}
	return sets, nil
}
