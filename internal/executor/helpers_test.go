package executor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	language "github.com/hanpama/rsgate/internal/language"
	schema "github.com/hanpama/rsgate/internal/schema"
)

func mustParseQuery(t *testing.T, q string) *language.QueryDocument {
	t.Helper()
	doc, err := language.ParseQuery(q)
	require.NoError(t, err)
	return doc
}

// testSchema returns a schema with the builtin scalars and Query as its
// query type.
func testSchema(types ...*schema.Type) *schema.Schema {
	sch := schema.NewSchema("").SetQueryType("Query")
	for _, t := range types {
		sch.AddType(t)
	}
	return sch
}

// object builds an object type from field definitions written as
// "name(arg: Type, ...): Type", optionally followed by " @async".
func object(name string, defs ...string) *schema.Type {
	t := schema.NewType(name, schema.TypeKindObject, "")
	for _, def := range defs {
		t.AddField(fieldDef(def))
	}
	return t
}

func iface(name string, possible ...string) *schema.Type {
	t := schema.NewType(name, schema.TypeKindInterface, "")
	for _, p := range possible {
		t.AddPossibleType(p)
	}
	return t
}

func implements(t *schema.Type, ifaces ...string) *schema.Type {
	for _, i := range ifaces {
		t.AddInterface(i)
	}
	return t
}

func fieldDef(def string) *schema.Field {
	def, async := strings.CutSuffix(strings.TrimSpace(def), " @async")
	colon := strings.LastIndex(def, ":")
	head, typ := strings.TrimSpace(def[:colon]), strings.TrimSpace(def[colon+1:])

	name, args, hasArgs := strings.Cut(head, "(")
	f := schema.NewField(name, "", typeRef(typ)).SetAsync(async)
	if hasArgs {
		for _, arg := range strings.Split(strings.TrimSuffix(args, ")"), ",") {
			argName, argType, _ := strings.Cut(arg, ":")
			f.AddArgument(schema.NewInputValue(strings.TrimSpace(argName), "", typeRef(strings.TrimSpace(argType))))
		}
	}
	return f
}

// typeRef parses a type reference such as "[String!]!".
func typeRef(s string) *schema.TypeRef {
	if inner, ok := strings.CutSuffix(s, "!"); ok {
		return schema.NonNullType(typeRef(inner))
	}
	if strings.HasPrefix(s, "[") {
		return schema.ListType(typeRef(s[1 : len(s)-1]))
	}
	return schema.NamedType(s)
}
