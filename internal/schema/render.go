package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

// Render prints s as SDL. Types and directives are sorted by name; builtin
// scalars and directives are left out. Async fields outside the root types
// carry @async so the output builds back into the same schema.
func Render(s *Schema) string {
	if s == nil {
		return ""
	}
	r := renderer{schema: s}
	doc := &ast.SchemaDocument{}

	for _, name := range sortedKeys(s.Types) {
		if t := s.Types[name]; !isBuiltinType(t) {
			doc.Definitions = append(doc.Definitions, r.definition(t))
		}
	}
	for _, name := range sortedKeys(s.Directives) {
		if d := s.Directives[name]; !isBuiltinDirective(d) {
			doc.Directives = append(doc.Directives, r.directive(d))
		}
	}

	var b strings.Builder
	formatter.NewFormatter(&b).FormatSchemaDocument(doc)
	return strings.TrimRight(b.String(), "\n") + "\n"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

type renderer struct {
	schema *Schema
}

func (r renderer) isRoot(name string) bool {
	return name != "" && (name == r.schema.QueryType || name == r.schema.MutationType || name == r.schema.SubscriptionType)
}

func (r renderer) definition(t *Type) *ast.Definition {
	def := &ast.Definition{
		Name:        t.Name,
		Description: t.Description,
		Interfaces:  t.Interfaces,
	}
	switch t.Kind {
	case TypeKindScalar:
		def.Kind = ast.Scalar
		if t.SpecifiedByURL != nil {
			def.Directives = append(def.Directives, directiveWithArg("specifiedBy", "url", *t.SpecifiedByURL))
		}
	case TypeKindEnum:
		def.Kind = ast.Enum
		for _, v := range t.EnumValues {
			def.EnumValues = append(def.EnumValues, &ast.EnumValueDefinition{
				Name:        v.Name,
				Description: v.Description,
				Directives:  deprecated(v.IsDeprecated, v.DeprecationReason),
			})
		}
	case TypeKindInputObject:
		def.Kind = ast.InputObject
		if t.OneOf {
			def.Directives = append(def.Directives, &ast.Directive{Name: "oneOf"})
		}
		for _, in := range t.InputFields {
			def.Fields = append(def.Fields, &ast.FieldDefinition{
				Name:         in.Name,
				Description:  in.Description,
				Type:         astType(in.Type),
				DefaultValue: r.defaultValue(in),
				Directives:   deprecated(in.IsDeprecated, in.DeprecationReason),
			})
		}
	case TypeKindObject, TypeKindInterface:
		def.Kind = ast.Object
		if t.Kind == TypeKindInterface {
			def.Kind = ast.Interface
		}
		root := r.isRoot(t.Name)
		for _, f := range t.Fields {
			fd := &ast.FieldDefinition{
				Name:        f.Name,
				Description: f.Description,
				Type:        astType(f.Type),
				Arguments:   r.arguments(f.Arguments),
				Directives:  deprecated(f.IsDeprecated, f.DeprecationReason),
			}
			if f.Async && !root {
				fd.Directives = append(fd.Directives, &ast.Directive{Name: asyncDirective})
			}
			def.Fields = append(def.Fields, fd)
		}
	case TypeKindUnion:
		def.Kind = ast.Union
		def.Types = t.PossibleTypes
	}
	return def
}

func (r renderer) directive(d *Directive) *ast.DirectiveDefinition {
	out := &ast.DirectiveDefinition{
		Name:         d.Name,
		Description:  d.Description,
		Arguments:    r.arguments(d.Arguments),
		IsRepeatable: d.IsRepeatable,
	}
	for _, loc := range d.Locations {
		out.Locations = append(out.Locations, ast.DirectiveLocation(loc))
	}
	return out
}

func (r renderer) arguments(args []*InputValue) ast.ArgumentDefinitionList {
	var out ast.ArgumentDefinitionList
	for _, a := range args {
		out = append(out, &ast.ArgumentDefinition{
			Name:         a.Name,
			Description:  a.Description,
			Type:         astType(a.Type),
			DefaultValue: r.defaultValue(a),
			Directives:   deprecated(a.IsDeprecated, a.DeprecationReason),
		})
	}
	return out
}

func (r renderer) defaultValue(in *InputValue) *ast.Value {
	if in.DefaultValue == nil {
		return nil
	}
	return r.value(in.Type, in.DefaultValue)
}

// value converts a Go value to an AST literal of type t. Strings become enum
// literals where t names an enum.
func (r renderer) value(t *TypeRef, v any) *ast.Value {
	if t != nil && t.Kind == TypeRefKindNonNull {
		return r.value(t.OfType, v)
	}
	switch v := v.(type) {
	case nil:
		return &ast.Value{Kind: ast.NullValue, Raw: "null"}
	case string:
		if named := r.namedType(t); named != nil && named.Kind == TypeKindEnum {
			return &ast.Value{Kind: ast.EnumValue, Raw: v}
		}
		return &ast.Value{Kind: ast.StringValue, Raw: v}
	case bool:
		return &ast.Value{Kind: ast.BooleanValue, Raw: strconv.FormatBool(v)}
	case int, int32, int64:
		return &ast.Value{Kind: ast.IntValue, Raw: fmt.Sprint(v)}
	case float32:
		return &ast.Value{Kind: ast.FloatValue, Raw: strconv.FormatFloat(float64(v), 'g', -1, 32)}
	case float64:
		return &ast.Value{Kind: ast.FloatValue, Raw: strconv.FormatFloat(v, 'g', -1, 64)}
	case []any:
		var item *TypeRef
		if t != nil && t.Kind == TypeRefKindList {
			item = t.OfType
		}
		out := &ast.Value{Kind: ast.ListValue}
		for _, e := range v {
			out.Children = append(out.Children, &ast.ChildValue{Value: r.value(item, e)})
		}
		return out
	case map[string]any:
		fields := map[string]*TypeRef{}
		if named := r.namedType(t); named != nil {
			for _, f := range named.InputFields {
				fields[f.Name] = f.Type
			}
		}
		out := &ast.Value{Kind: ast.ObjectValue}
		for _, k := range sortedKeys(v) {
			out.Children = append(out.Children, &ast.ChildValue{Name: k, Value: r.value(fields[k], v[k])})
		}
		return out
	default:
		return &ast.Value{Kind: ast.EnumValue, Raw: fmt.Sprint(v)}
	}
}

func (r renderer) namedType(t *TypeRef) *Type {
	if t == nil || t.Kind != TypeRefKindNamed {
		return nil
	}
	return r.schema.Types[t.Named]
}

func astType(t *TypeRef) *ast.Type {
	switch t.Kind {
	case TypeRefKindNonNull:
		inner := astType(t.OfType)
		inner.NonNull = true
		return inner
	case TypeRefKindList:
		return ast.ListType(astType(t.OfType), nil)
	default:
		return ast.NamedType(t.Named, nil)
	}
}

func deprecated(is bool, reason string) ast.DirectiveList {
	if !is {
		return nil
	}
	if reason == "" {
		return ast.DirectiveList{{Name: "deprecated"}}
	}
	return ast.DirectiveList{directiveWithArg("deprecated", "reason", reason)}
}

func directiveWithArg(name, arg, value string) *ast.Directive {
	return &ast.Directive{
		Name:      name,
		Arguments: ast.ArgumentList{{Name: arg, Value: &ast.Value{Kind: ast.StringValue, Raw: value}}},
	}
}
