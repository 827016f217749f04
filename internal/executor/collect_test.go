package executor

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCollectFields(t *testing.T) {
	sch := testSchema(object("Query", "a: String", "b: String", "c: String"))

	tests := []struct {
		name      string
		query     string
		variables map[string]any
		// response name and the number of merged field nodes
		want []string
	}{
		{
			name: "fragments merge into first occurrence",
			query: `{ a ...F1 ...F2 }
				fragment F1 on Query { a __typename }
				fragment F2 on Query { __typename }`,
			want: []string{"a/2", "__typename/2"},
		},
		{
			name:  "skip and include on fields",
			query: `{ a b @skip(if: true) c @include(if: false) }`,
			want:  []string{"a/1"},
		},
		{
			name: "skip and include on spreads",
			query: `{ a ...B @include(if: true) ...C @skip(if: true) }
				fragment B on Query { b }
				fragment C on Query { c }`,
			want: []string{"a/1", "b/1"},
		},
		{
			name:  "typed inline fragments",
			query: `{ a ... on Query @include(if: true) { b } ... on Query @skip(if: true) { c } }`,
			want:  []string{"a/1", "b/1"},
		},
		{
			name:  "untyped inline fragments",
			query: `{ a ... @include(if: true) { b } ... @skip(if: true) { c } }`,
			want:  []string{"a/1", "b/1"},
		},
		{
			name:      "directive arguments from variables",
			query:     `query($skip: Boolean!) { a b @skip(if: $skip) c @include(if: $skip) }`,
			variables: map[string]any{"skip": true},
			want:      []string{"a/1", "c/1"},
		},
		{
			name:  "aliases group by response name",
			query: `{ x: a x: a y: a }`,
			want:  []string{"x/2", "y/1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc := mustParseQuery(t, tt.query)
			vars := tt.variables
			if vars == nil {
				vars = map[string]any{}
			}
			state := &executionState{schema: sch, document: doc, variableValues: vars}

			var got []string
			for _, cf := range collectFields(state, sch.Types["Query"], doc.Operations[0].SelectionSet).orderedFields() {
				got = append(got, fmt.Sprintf("%s/%d", cf.ResponseName, len(cf.Fields)))
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("collected fields mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
