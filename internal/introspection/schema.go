package introspection

import (
	"fmt"
	"maps"
	"slices"

	schema "github.com/hanpama/rsgate/internal/schema"
)

// extend returns a copy of original carrying the introspection types, with
// __schema and __type added to its query type. original is not modified.
func extend(original *schema.Schema) (*schema.Schema, error) {
	types, err := schema.IntrospectionTypes()
	if err != nil {
		return nil, fmt.Errorf("load introspection types: %w", err)
	}

	extended := *original
	extended.Types = maps.Clone(original.Types)
	if extended.Types == nil {
		extended.Types = map[string]*schema.Type{}
	}
	for _, t := range types {
		extended.Types[t.Name] = t
	}

	queryType := original.GetQueryType()
	if queryType == nil {
		return &extended, nil
	}
	qt := *queryType
	qt.Fields = append(slices.Clone(queryType.Fields),
		schema.NewField("__schema", "Access the current type schema of this server.",
			schema.NonNullType(schema.NamedType("__Schema"))),
		schema.NewField("__type", "Request the type information of a single type.",
			schema.NamedType("__Type")).
			AddArgument(schema.NewInputValue("name", "", schema.NonNullType(schema.NamedType("String")))),
	)
	extended.Types[qt.Name] = &qt
	return &extended, nil
}
