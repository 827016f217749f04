package datart

import (
	"context"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/rsgate/internal/executor"
	"github.com/hanpama/rsgate/internal/language"
	"github.com/hanpama/rsgate/internal/schema"
)

const testSDL = `
type Query {
  user(id: ID!): User
  users(role: String): [User!]!
  search: [Result!]!
  count: Int
}

type User {
  id: ID!
  name: String
  role: String
  score: Float
}

type Group {
  name: String
}

union Result = User | Group
`

const testData = `
Query:
  users: &users
    - {id: u1, name: Ann, role: admin, score: 3}
    - {id: u2, name: Bob, role: member, score: 1.5}
    - {id: 3, name: Cid, role: member}
  user: *users
  search:
    - {__typename: Group, name: staff}
    - {__typename: User, id: u1, name: Ann}
  count: 3
`

func run(t *testing.T, query string) *executor.ExecutionResult {
	t.Helper()
	sch, err := schema.BuildFromSDL(testSDL)
	require.NoError(t, err)
	rt, err := Load(sch, strings.NewReader(testData))
	require.NoError(t, err)
	doc, err := language.ParseQuery(query)
	require.NoError(t, err)
	return executor.NewExecutor(rt, sch).ExecuteRequest(context.Background(), doc, "", nil, nil)
}

func TestProjection(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  map[string]any
	}{
		{
			name:  "lookup by argument",
			query: `{ user(id: "u2") { id name } }`,
			want:  map[string]any{"user": map[string]any{"id": "u2", "name": "Bob"}},
		},
		{
			name:  "numeric ids compare as strings",
			query: `{ user(id: "3") { id } }`,
			want:  map[string]any{"user": map[string]any{"id": "3"}},
		},
		{
			name:  "no match",
			query: `{ user(id: "u9") { id } }`,
			want:  map[string]any{"user": nil},
		},
		{
			name:  "list filter",
			query: `{ users(role: "member") { name } }`,
			want: map[string]any{"users": []any{
				map[string]any{"name": "Bob"},
				map[string]any{"name": "Cid"},
			}},
		},
		{
			name:  "null arguments do not filter",
			query: `{ users { id } }`,
			want: map[string]any{"users": []any{
				map[string]any{"id": "u1"},
				map[string]any{"id": "u2"},
				map[string]any{"id": "3"},
			}},
		},
		{
			name:  "scalars",
			query: `{ count user(id: "u1") { score } }`,
			want:  map[string]any{"count": 3, "user": map[string]any{"score": float64(3)}},
		},
		{
			name:  "union by typename",
			query: `{ search { ... on Group { name } ... on User { id } } }`,
			want: map[string]any{"search": []any{
				map[string]any{"name": "staff"},
				map[string]any{"id": "u1"},
			}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, tt.query)
			require.Empty(t, res.Errors)
			if diff := cmp.Diff(tt.want, res.Data); diff != "" {
				t.Errorf("data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadRejectsUnknownRoots(t *testing.T) {
	sch, err := schema.BuildFromSDL(testSDL)
	require.NoError(t, err)
	_, err = Load(sch, strings.NewReader("Mutation:\n  x: 1\n"))
	require.ErrorContains(t, err, "Mutation is not a root type")
}

func TestSerializeLeafValue(t *testing.T) {
	rt := New(nil, nil)
	ctx := context.Background()

	v, err := rt.SerializeLeafValue(ctx, "Int", int64(7))
	require.NoError(t, err)
	require.Equal(t, 7, v)

	_, err = rt.SerializeLeafValue(ctx, "Int", 1<<40)
	require.ErrorContains(t, err, "overflows Int")

	_, err = rt.SerializeLeafValue(ctx, "Int", 1.5)
	require.Error(t, err)

	v, err = rt.SerializeLeafValue(ctx, "ID", 42)
	require.NoError(t, err)
	require.Equal(t, "42", v)

	_, err = rt.SerializeLeafValue(ctx, "Boolean", "yes")
	require.Error(t, err)

	v, err = rt.SerializeLeafValue(ctx, "Role", "ADMIN")
	require.NoError(t, err)
	require.Equal(t, "ADMIN", v)
}
