package variables

import (
	"fmt"
	"strings"

	"github.com/hanpama/rsgate/internal/attribution"
	"github.com/hanpama/rsgate/internal/selection"
)

// SourceKind says where a declared variable takes its value from.
type SourceKind string

const (
	SourceArgument    SourceKind = "from_argument"
	SourceObjectField SourceKind = "from_object_field"
	SourceQueryField  SourceKind = "from_query_field"
)

// Declaration names a variable and the path its value is read from.
type Declaration struct {
	Name   string
	Source SourceKind
	Path   string
}

// CycleError reports a field variable whose selections depend on itself,
// for example "x(a: $a)" where $a is read from x.
type CycleError struct {
	Variable   string
	Selections *selection.ParsedSelections
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("detected cycle for variable %q in selection set:\n%s", e.Variable, e.Selections)
}

// Builder turns declarations into resolvers. Field variables whose selected
// path uses other variables get resolvers for those variables attached to
// their Dependency.
type Builder struct {
	ObjectSelections *selection.ParsedSelections
	QuerySelections  *selection.ParsedSelections
	Attribution      *attribution.ExecutionAttribution

	byName   map[string]Declaration
	bindings map[string]Resolver
	order    []Resolver
}

// Build returns one resolver per declaration, in declaration order.
func (b *Builder) Build(decls []Declaration) ([]Resolver, error) {
	b.byName = make(map[string]Declaration, len(decls))
	b.bindings = make(map[string]Resolver, len(decls))
	b.order = nil
	for _, d := range decls {
		if _, dup := b.byName[d.Name]; dup {
			return nil, fmt.Errorf("found duplicate bindings for variable %q", d.Name)
		}
		b.byName[d.Name] = d
	}
	for _, d := range decls {
		if _, err := b.buildOne(nil, d); err != nil {
			return nil, err
		}
	}
	return b.order, nil
}

func (b *Builder) buildOne(building []string, d Declaration) (Resolver, error) {
	if r, ok := b.bindings[d.Name]; ok {
		return r, nil
	}
	var (
		r   Resolver
		err error
	)
	switch d.Source {
	case SourceArgument:
		r, err = FromArgument(d.Name, d.Path)
	case SourceObjectField:
		if b.ObjectSelections == nil {
			return nil, fmt.Errorf("no object selections provided, can't resolve variable %q from object field %q", d.Name, d.Path)
		}
		r, err = b.buildField(building, d, b.ObjectSelections, false)
	case SourceQueryField:
		if b.QuerySelections == nil {
			return nil, fmt.Errorf("no query selections provided, can't resolve variable %q from query field %q", d.Name, d.Path)
		}
		r, err = b.buildField(building, d, b.QuerySelections, true)
	default:
		return nil, fmt.Errorf("variable %q: unknown source %q", d.Name, d.Source)
	}
	if err != nil {
		return nil, err
	}
	b.bindings[d.Name] = r
	b.order = append(b.order, r)
	return r, nil
}

func (b *Builder) buildField(building []string, d Declaration, selections *selection.ParsedSelections, onQuery bool) (Resolver, error) {
	if strings.TrimSpace(d.Path) == "" {
		return nil, fmt.Errorf("path for variable %q is empty", d.Name)
	}
	r, err := newFieldResolver(d.Name, d.Path, selections, onQuery)
	if err != nil {
		return nil, err
	}
	for _, n := range building {
		if n == d.Name {
			return nil, &CycleError{Variable: d.Name, Selections: selections}
		}
	}
	next := append(building[:len(building):len(building)], d.Name)
	for _, ref := range r.dependency.Selections.VariableReferences() {
		nested, ok := b.byName[ref]
		if !ok {
			return nil, fmt.Errorf("unknown variable %q used by the selections of variable %q", ref, d.Name)
		}
		nr, err := b.buildOne(next, nested)
		if err != nil {
			return nil, err
		}
		r.dependency.Resolvers = append(r.dependency.Resolvers, nr)
	}
	if b.Attribution != nil {
		r.dependency.Attribution = attribution.FromVariablesResolver(b.Attribution.ToTagString())
	}
	return r, nil
}
