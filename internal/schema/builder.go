package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

// NewSchema returns an empty schema carrying the builtin scalars and the
// include/skip directives.
func NewSchema(description string) *Schema {
	s := &Schema{
		Types:       make(map[string]*Type),
		Directives:  make(map[string]*Directive),
		Description: description,
	}
	p := mustPrelude()
	for _, name := range builtinScalars {
		s.AddType(p.scalars[name])
	}
	for _, name := range builtinDirectives {
		s.AddDirective(p.directives[name])
	}
	return s
}

func (s *Schema) SetQueryType(name string) *Schema {
	s.QueryType = name
	return s
}

func (s *Schema) SetMutationType(name string) *Schema {
	s.MutationType = name
	return s
}

func (s *Schema) SetSubscriptionType(name string) *Schema {
	s.SubscriptionType = name
	return s
}

func (s *Schema) AddType(t *Type) *Schema {
	if s.Types == nil {
		s.Types = make(map[string]*Type)
	}
	s.Types[t.Name] = t
	return s
}

func (s *Schema) AddDirective(d *Directive) *Schema {
	if s.Directives == nil {
		s.Directives = make(map[string]*Directive)
	}
	s.Directives[d.Name] = d
	return s
}

func NewType(name string, kind TypeKind, description string) *Type {
	return &Type{Name: name, Kind: kind, Description: description}
}

func (t *Type) AddField(f *Field) *Type {
	t.Fields = append(t.Fields, f)
	return t
}

func (t *Type) AddInterface(name string) *Type {
	t.Interfaces = append(t.Interfaces, name)
	return t
}

func (t *Type) AddPossibleType(name string) *Type {
	t.PossibleTypes = append(t.PossibleTypes, name)
	return t
}

func (t *Type) AddEnumValue(v *EnumValue) *Type {
	t.EnumValues = append(t.EnumValues, v)
	return t
}

func (t *Type) AddInputField(v *InputValue) *Type {
	t.InputFields = append(t.InputFields, v)
	return t
}

func (t *Type) SetOneOf(oneOf bool) *Type {
	t.OneOf = oneOf
	return t
}

func (t *Type) SetSpecifiedByURL(url string) *Type {
	t.SpecifiedByURL = &url
	return t
}

// NewFieldMap collects fields in declaration order.
func NewFieldMap(fields ...*Field) []*Field { return append([]*Field(nil), fields...) }

func NewField(name, description string, typ *TypeRef) *Field {
	return &Field{Name: name, Description: description, Type: typ}
}

func (f *Field) SetAsync(async bool) *Field {
	f.Async = async
	return f
}

func (f *Field) AddArgument(arg *InputValue) *Field {
	f.Arguments = append(f.Arguments, arg)
	return f
}

func (f *Field) Deprecate(reason string) *Field {
	f.IsDeprecated = true
	f.DeprecationReason = reason
	return f
}

func NewEnumValue(name, description string) *EnumValue {
	return &EnumValue{Name: name, Description: description}
}

func (v *EnumValue) Deprecate(reason string) *EnumValue {
	v.IsDeprecated = true
	v.DeprecationReason = reason
	return v
}

func NewInputValue(name, description string, typ *TypeRef) *InputValue {
	return &InputValue{Name: name, Description: description, Type: typ}
}

func (v *InputValue) SetDefault(value any) *InputValue {
	v.DefaultValue = value
	return v
}

func (v *InputValue) Deprecate(reason string) *InputValue {
	v.IsDeprecated = true
	v.DeprecationReason = reason
	return v
}

func NewDirective(name, description string) *Directive {
	return &Directive{Name: name, Description: description}
}

func (d *Directive) SetRepeatable(r bool) *Directive {
	d.IsRepeatable = r
	return d
}

func (d *Directive) AddArgument(arg *InputValue) *Directive {
	d.Arguments = append(d.Arguments, arg)
	return d
}

// asyncDirective marks fields resolved through Runtime.BatchResolveAsync.
const asyncDirective = "async"

const asyncDirectiveSDL = "directive @async on FIELD_DEFINITION\n"

// BuildFromSDL parses and validates SDL and returns the executable Schema.
//
// Fields on the root operation types, and fields annotated with @async, are
// marked Async; every other field is resolved synchronously.
func BuildFromSDL(sdl string) (*Schema, error) {
	if !strings.Contains(sdl, "directive @"+asyncDirective) {
		sdl = asyncDirectiveSDL + sdl
	}
	doc, err := gqlparser.LoadSchema(&ast.Source{Name: "schema.graphql", Input: sdl})
	if err != nil {
		return nil, err
	}
	return buildFromAST(doc)
}

func buildFromAST(doc *ast.Schema) (*Schema, error) {
	s := NewSchema(doc.Description)
	roots := map[string]bool{}
	if doc.Query != nil {
		s.SetQueryType(doc.Query.Name)
		roots[doc.Query.Name] = true
	}
	if doc.Mutation != nil {
		s.SetMutationType(doc.Mutation.Name)
		roots[doc.Mutation.Name] = true
	}
	if doc.Subscription != nil {
		s.SetSubscriptionType(doc.Subscription.Name)
		roots[doc.Subscription.Name] = true
	}

	names := make([]string, 0, len(doc.Types))
	for name := range doc.Types {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		def := doc.Types[name]
		if strings.HasPrefix(name, "__") {
			continue
		}
		if _, builtin := s.Types[name]; builtin && def.BuiltIn {
			continue
		}
		t, err := buildType(doc, def, roots[name])
		if err != nil {
			return nil, err
		}
		s.AddType(t)
	}

	for name, dir := range doc.Directives {
		if _, builtin := s.Directives[name]; builtin {
			continue
		}
		if dir.Position != nil && dir.Position.Src != nil && dir.Position.Src.BuiltIn {
			continue
		}
		if name == asyncDirective {
			continue
		}
		s.AddDirective(buildDirective(dir))
	}
	return s, nil
}

func buildDirective(dir *ast.DirectiveDefinition) *Directive {
	d := NewDirective(dir.Name, dir.Description).SetRepeatable(dir.IsRepeatable)
	for _, loc := range dir.Locations {
		d.Locations = append(d.Locations, string(loc))
	}
	for _, arg := range dir.Arguments {
		d.AddArgument(buildArgument(arg))
	}
	return d
}

func buildType(doc *ast.Schema, def *ast.Definition, root bool) (*Type, error) {
	switch def.Kind {
	case ast.Scalar:
		t := NewType(def.Name, TypeKindScalar, def.Description)
		if d := def.Directives.ForName("specifiedBy"); d != nil {
			if arg := d.Arguments.ForName("url"); arg != nil {
				t.SetSpecifiedByURL(arg.Value.Raw)
			}
		}
		return t, nil
	case ast.Enum:
		t := NewType(def.Name, TypeKindEnum, def.Description)
		for _, v := range def.EnumValues {
			ev := NewEnumValue(v.Name, v.Description)
			if reason, ok := deprecation(v.Directives); ok {
				ev.Deprecate(reason)
			}
			t.AddEnumValue(ev)
		}
		return t, nil
	case ast.InputObject:
		t := NewType(def.Name, TypeKindInputObject, def.Description).
			SetOneOf(def.Directives.ForName("oneOf") != nil)
		for _, f := range def.Fields {
			in := NewInputValue(f.Name, f.Description, typeRefFromAST(f.Type))
			if f.DefaultValue != nil {
				v, err := f.DefaultValue.Value(nil)
				if err != nil {
					return nil, fmt.Errorf("default value of %s.%s: %w", def.Name, f.Name, err)
				}
				in.SetDefault(v)
			}
			t.AddInputField(in)
		}
		return t, nil
	case ast.Object, ast.Interface:
		kind := TypeKindObject
		if def.Kind == ast.Interface {
			kind = TypeKindInterface
		}
		t := NewType(def.Name, kind, def.Description)
		for _, iface := range def.Interfaces {
			t.AddInterface(iface)
		}
		for _, f := range def.Fields {
			if strings.HasPrefix(f.Name, "__") {
				continue
			}
			field := NewField(f.Name, f.Description, typeRefFromAST(f.Type)).
				SetAsync(root || f.Directives.ForName(asyncDirective) != nil)
			if reason, ok := deprecation(f.Directives); ok {
				field.Deprecate(reason)
			}
			for _, arg := range f.Arguments {
				field.AddArgument(buildArgument(arg))
			}
			t.AddField(field)
		}
		if kind == TypeKindInterface {
			possible := make([]string, 0, len(doc.PossibleTypes[def.Name]))
			for _, p := range doc.PossibleTypes[def.Name] {
				possible = append(possible, p.Name)
			}
			sort.Strings(possible)
			t.PossibleTypes = possible
		}
		return t, nil
	case ast.Union:
		t := NewType(def.Name, TypeKindUnion, def.Description)
		for _, member := range def.Types {
			t.AddPossibleType(member)
		}
		return t, nil
	}
	return nil, fmt.Errorf("unsupported definition kind %s for %s", def.Kind, def.Name)
}

func buildArgument(arg *ast.ArgumentDefinition) *InputValue {
	in := NewInputValue(arg.Name, arg.Description, typeRefFromAST(arg.Type))
	if arg.DefaultValue != nil {
		if v, err := arg.DefaultValue.Value(nil); err == nil {
			in.SetDefault(v)
		}
	}
	if reason, ok := deprecation(arg.Directives); ok {
		in.Deprecate(reason)
	}
	return in
}

func deprecation(directives ast.DirectiveList) (string, bool) {
	d := directives.ForName("deprecated")
	if d == nil {
		return "", false
	}
	reason := "No longer supported"
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		reason = arg.Value.Raw
	}
	return reason, true
}

func typeRefFromAST(t *ast.Type) *TypeRef {
	if t == nil {
		return nil
	}
	if t.NonNull {
		return NonNullType(typeRefFromAST(&ast.Type{NamedType: t.NamedType, Elem: t.Elem}))
	}
	if t.NamedType != "" {
		return NamedType(t.NamedType)
	}
	return ListType(typeRefFromAST(t.Elem))
}
