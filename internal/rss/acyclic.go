package rss

import (
	"fmt"
	"strings"

	schema "github.com/hanpama/rsgate/internal/schema"
	"github.com/hanpama/rsgate/internal/selection"
	"github.com/hanpama/rsgate/internal/variables"
)

// CycleError reports required selections that depend on themselves.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "cyclic required selections detected in path: " + strings.Join(e.Path, " -> ")
}

type rssNode struct {
	set     *RequiredSelectionSet
	coord   Coordinate
	checker bool
}

// ValidateAcyclic checks that no required selection set transitively selects
// a coordinate whose own required selections lead back to it. There is an
// edge from V to W when W is registered for a coordinate that V selects, and
// from V to the type-level resolver sets of every type whose fields V selects.
// Checker sets depend only on resolver sets. Abstract types are expanded to
// all their object types, so some topologies that are acyclic at runtime are
// still rejected.
func ValidateAcyclic(sch *schema.Schema, reg *MapRegistry) error {
	v := &acyclicValidator{
		schema:   sch,
		registry: reg,
		coords:   map[*RequiredSelectionSet][]Coordinate{},
	}
	for _, c := range reg.Coordinates() {
		var roots []rssNode
		if c.FieldName != "" {
			for _, s := range reg.FieldResolverRSS(c.TypeName, c.FieldName) {
				roots = append(roots, rssNode{set: s, coord: c})
			}
		} else {
			for _, s := range reg.TypeResolverRSS(c.TypeName) {
				roots = append(roots, rssNode{set: s, coord: c})
			}
		}
		for _, s := range reg.entries[entryKey{coord: c, forChecker: true}] {
			roots = append(roots, rssNode{set: s, coord: c, checker: true})
		}
		for _, root := range roots {
			cycle, err := v.dfs(root, nil, map[rssNode]bool{}, map[rssNode]bool{})
			if err != nil {
				return err
			}
			if cycle != nil {
				path := make([]string, len(cycle))
				for i, n := range cycle {
					path[i] = n.coord.String()
				}
				return &CycleError{Path: path}
			}
		}
	}
	return nil
}

type acyclicValidator struct {
	schema   *schema.Schema
	registry *MapRegistry
	coords   map[*RequiredSelectionSet][]Coordinate
}

func (v *acyclicValidator) dfs(node rssNode, path []rssNode, visiting, visited map[rssNode]bool) ([]rssNode, error) {
	if visiting[node] {
		for i, n := range path {
			if n == node {
				return append(append([]rssNode{}, path[i:]...), node), nil
			}
		}
	}
	path = append(path, node)
	visiting[node] = true

	edges, err := v.edges(node)
	if err != nil {
		return nil, err
	}
	for _, e := range edges {
		if visited[e] {
			continue
		}
		cycle, err := v.dfs(e, path, visiting, visited)
		if err != nil || cycle != nil {
			return cycle, err
		}
	}

	delete(visiting, node)
	visited[node] = true
	return nil, nil
}

func (v *acyclicValidator) edges(node rssNode) ([]rssNode, error) {
	coords, err := v.objectCoords(node.set)
	if err != nil {
		return nil, err
	}
	var out []rssNode
	for _, c := range coords {
		if c.FieldName == "" {
			if !node.checker {
				for _, s := range v.registry.TypeCheckerRSS(c.TypeName) {
					out = append(out, rssNode{set: s, coord: c, checker: true})
				}
			}
			continue
		}
		// Every field of an object is resolved over its type-level
		// resolver selections, whichever runtime fetches it. A type-level
		// set is not applied again while it is being fetched.
		typeCoord := Coordinate{TypeName: c.TypeName}
		if node.checker || node.coord != typeCoord {
			for _, s := range v.registry.TypeResolverRSS(c.TypeName) {
				out = append(out, rssNode{set: s, coord: typeCoord})
			}
		}
		for _, s := range v.registry.FieldResolverRSS(c.TypeName, c.FieldName) {
			out = append(out, rssNode{set: s, coord: c})
		}
		if !node.checker {
			for _, s := range v.registry.FieldCheckerRSS(c.TypeName, c.FieldName) {
				out = append(out, rssNode{set: s, coord: c, checker: true})
			}
		}
	}
	return out, nil
}

// objectCoords returns the object field and type coordinates selected by set
// and by the dependencies of its variable resolvers.
func (v *acyclicValidator) objectCoords(set *RequiredSelectionSet) ([]Coordinate, error) {
	if cached, ok := v.coords[set]; ok {
		return cached, nil
	}
	seen := map[Coordinate]bool{}
	var out []Coordinate
	add := func(c Coordinate) {
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	if err := v.collect(set.Selections, add); err != nil {
		return nil, err
	}
	if err := v.collectResolvers(set.VariablesResolvers, add); err != nil {
		return nil, err
	}
	v.coords[set] = out
	return out, nil
}

func (v *acyclicValidator) collectResolvers(rs []variables.Resolver, add func(Coordinate)) error {
	for _, r := range rs {
		dep := r.Dependency()
		if dep == nil {
			continue
		}
		if err := v.collect(dep.Selections, add); err != nil {
			return err
		}
		if err := v.collectResolvers(dep.Resolvers, add); err != nil {
			return err
		}
	}
	return nil
}

func (v *acyclicValidator) collect(parsed *selection.ParsedSelections, add func(Coordinate)) error {
	raw, err := selection.NewRawSelectionSet(v.schema, parsed, nil)
	if err != nil {
		return fmt.Errorf("required selections on %s: %w", parsed.TypeName, err)
	}
	return v.collectRaw(raw, add)
}

func (v *acyclicValidator) collectRaw(raw selection.RawSelectionSet, add func(Coordinate)) error {
	for sel := range raw.Selections() {
		if strings.HasPrefix(sel.FieldName, "__") {
			continue
		}
		for _, obj := range v.schema.PossibleTypes(sel.TypeCondition) {
			add(Coordinate{TypeName: obj, FieldName: sel.FieldName})
		}
	}
	for sel := range raw.TraversableSelections() {
		nested, err := raw.SelectionSetForField(sel.TypeCondition, sel.FieldName)
		if err != nil {
			return err
		}
		for _, obj := range v.schema.PossibleTypes(nested.TypeName()) {
			add(Coordinate{TypeName: obj})
		}
		if err := v.collectRaw(nested, add); err != nil {
			return err
		}
	}
	return nil
}
