package rss

import (
	"cmp"
	"slices"
)

// Registry looks up required selection sets by coordinate. Lookups never
// return nil; a coordinate with nothing registered yields an empty slice.
type Registry interface {
	FieldResolverRSS(typeName, fieldName string) []*RequiredSelectionSet
	FieldCheckerRSS(typeName, fieldName string) []*RequiredSelectionSet
	TypeResolverRSS(typeName string) []*RequiredSelectionSet
	TypeCheckerRSS(typeName string) []*RequiredSelectionSet
}

// Coordinate is a field coordinate, or a type coordinate when FieldName is empty.
type Coordinate struct {
	TypeName  string
	FieldName string
}

func (c Coordinate) String() string {
	if c.FieldName == "" {
		return c.TypeName
	}
	return c.TypeName + "." + c.FieldName
}

type emptyRegistry struct{}

// Empty is a Registry with no entries.
var Empty Registry = emptyRegistry{}

func (emptyRegistry) FieldResolverRSS(string, string) []*RequiredSelectionSet { return []*RequiredSelectionSet{} }
func (emptyRegistry) FieldCheckerRSS(string, string) []*RequiredSelectionSet  { return []*RequiredSelectionSet{} }
func (emptyRegistry) TypeResolverRSS(string) []*RequiredSelectionSet          { return []*RequiredSelectionSet{} }
func (emptyRegistry) TypeCheckerRSS(string) []*RequiredSelectionSet           { return []*RequiredSelectionSet{} }

type entryKey struct {
	coord      Coordinate
	forChecker bool
}

// MapRegistry is an immutable Registry built by RegistryBuilder.
type MapRegistry struct {
	entries map[entryKey][]*RequiredSelectionSet
}

func (m *MapRegistry) get(c Coordinate, forChecker bool) []*RequiredSelectionSet {
	if list, ok := m.entries[entryKey{coord: c, forChecker: forChecker}]; ok {
		return slices.Clone(list)
	}
	return []*RequiredSelectionSet{}
}

func (m *MapRegistry) FieldResolverRSS(typeName, fieldName string) []*RequiredSelectionSet {
	return m.get(Coordinate{typeName, fieldName}, false)
}

func (m *MapRegistry) FieldCheckerRSS(typeName, fieldName string) []*RequiredSelectionSet {
	return m.get(Coordinate{typeName, fieldName}, true)
}

func (m *MapRegistry) TypeResolverRSS(typeName string) []*RequiredSelectionSet {
	return m.get(Coordinate{TypeName: typeName}, false)
}

func (m *MapRegistry) TypeCheckerRSS(typeName string) []*RequiredSelectionSet {
	return m.get(Coordinate{TypeName: typeName}, true)
}

// Coordinates returns every coordinate with at least one entry, sorted.
func (m *MapRegistry) Coordinates() []Coordinate {
	seen := map[Coordinate]bool{}
	var out []Coordinate
	for k := range m.entries {
		if !seen[k.coord] {
			seen[k.coord] = true
			out = append(out, k.coord)
		}
	}
	slices.SortFunc(out, func(a, b Coordinate) int {
		return cmp.Or(cmp.Compare(a.TypeName, b.TypeName), cmp.Compare(a.FieldName, b.FieldName))
	})
	return out
}

// RegistryBuilder accumulates registrations. It is not safe for concurrent use.
type RegistryBuilder struct {
	entries map[entryKey][]*RequiredSelectionSet
}

func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{entries: make(map[entryKey][]*RequiredSelectionSet)}
}

func (b *RegistryBuilder) add(c Coordinate, forChecker bool, sets []*RequiredSelectionSet) *RegistryBuilder {
	k := entryKey{coord: c, forChecker: forChecker}
	for _, s := range sets {
		if s != nil {
			b.entries[k] = append(b.entries[k], s)
		}
	}
	return b
}

func (b *RegistryBuilder) FieldResolver(typeName, fieldName string, sets ...*RequiredSelectionSet) *RegistryBuilder {
	return b.add(Coordinate{typeName, fieldName}, false, sets)
}

func (b *RegistryBuilder) FieldChecker(typeName, fieldName string, sets ...*RequiredSelectionSet) *RegistryBuilder {
	return b.add(Coordinate{typeName, fieldName}, true, sets)
}

func (b *RegistryBuilder) TypeResolver(typeName string, sets ...*RequiredSelectionSet) *RegistryBuilder {
	return b.add(Coordinate{TypeName: typeName}, false, sets)
}

func (b *RegistryBuilder) TypeChecker(typeName string, sets ...*RequiredSelectionSet) *RegistryBuilder {
	return b.add(Coordinate{TypeName: typeName}, true, sets)
}

// Build returns a MapRegistry holding a copy of the registrations so far.
func (b *RegistryBuilder) Build() *MapRegistry {
	entries := make(map[entryKey][]*RequiredSelectionSet, len(b.entries))
	for k, v := range b.entries {
		entries[k] = slices.Clone(v)
	}
	return &MapRegistry{entries: entries}
}
