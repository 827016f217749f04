package schema

import "slices"

// TypeRelation describes how two composite types relate for fragment spreading.
type TypeRelation int

const (
	Unrelated TypeRelation = iota
	Same
	// WiderThan: every possible type of the right operand is a possible type of the left.
	WiderThan
	// NarrowerThan: every possible type of the left operand is a possible type of the right.
	NarrowerThan
)

var typenameField = NewField("__typename", "", NonNullType(NamedType("String")))

// IsComposite reports whether name is an object, interface or union type.
func (s *Schema) IsComposite(name string) bool {
	t := s.Types[name]
	if t == nil {
		return false
	}
	switch t.Kind {
	case TypeKindObject, TypeKindInterface, TypeKindUnion:
		return true
	}
	return false
}

// PossibleTypes returns the concrete object types a value of the named type may have.
func (s *Schema) PossibleTypes(name string) []string {
	t := s.Types[name]
	if t == nil {
		return nil
	}
	switch t.Kind {
	case TypeKindObject:
		return []string{t.Name}
	case TypeKindUnion:
		return t.PossibleTypes
	case TypeKindInterface:
		if len(t.PossibleTypes) > 0 {
			return t.PossibleTypes
		}
		var out []string
		for _, candidate := range s.Types {
			if candidate.Kind == TypeKindObject && slices.Contains(candidate.Interfaces, name) {
				out = append(out, candidate.Name)
			}
		}
		slices.Sort(out)
		return out
	}
	return nil
}

// IsPossibleType reports whether concrete is a possible runtime type of abstract.
// An object type is a possible type of itself.
func (s *Schema) IsPossibleType(abstract, concrete string) bool {
	return slices.Contains(s.PossibleTypes(abstract), concrete)
}

// Implements reports whether the named type is, or implements, the interface.
func (s *Schema) Implements(name, iface string) bool {
	if name == iface {
		return true
	}
	t := s.Types[name]
	if t == nil {
		return false
	}
	return slices.Contains(t.Interfaces, iface)
}

// Relation returns the relation of a to b. Unknown types are Unrelated.
func (s *Schema) Relation(a, b string) TypeRelation {
	if a == b {
		if s.Types[a] == nil {
			return Unrelated
		}
		return Same
	}
	pa, pb := s.PossibleTypes(a), s.PossibleTypes(b)
	if len(pa) == 0 || len(pb) == 0 {
		return Unrelated
	}
	if containsAll(pa, pb) {
		return WiderThan
	}
	if containsAll(pb, pa) {
		return NarrowerThan
	}
	return Unrelated
}

// IsSpreadable reports whether a fragment on type b may be spread inside a
// selection on type a: their possible types intersect.
func (s *Schema) IsSpreadable(a, b string) bool {
	pb := s.PossibleTypes(b)
	for _, t := range s.PossibleTypes(a) {
		if slices.Contains(pb, t) {
			return true
		}
	}
	return false
}

// FieldDefinition returns the field named fieldName on the object or interface
// typeName, including the __typename meta field. It returns nil when absent.
func (s *Schema) FieldDefinition(typeName, fieldName string) *Field {
	t := s.Types[typeName]
	if t == nil {
		return nil
	}
	if fieldName == "__typename" {
		return typenameField
	}
	for _, f := range t.Fields {
		if f.Name == fieldName {
			return f
		}
	}
	return nil
}

func containsAll(set, subset []string) bool {
	for _, v := range subset {
		if !slices.Contains(set, v) {
			return false
		}
	}
	return true
}
