package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hanpama/rsgate/internal/language"
)

func TestInspectIntrospections(t *testing.T) {
	tests := []struct {
		name      string
		query     string
		operation string
		want      *Introspections
	}{
		{name: "plain", query: `{ user(id: 1) { id } }`, want: &Introspections{HasNonIntrospection: true}},
		{name: "case insensitive", query: `{ __SCHEMA { types { name } } }`, want: &Introspections{HasIntrospection: true}},
		{name: "typename", query: `{ __typename }`, want: &Introspections{HasNonIntrospection: true}},
		{
			name:  "inline fragment",
			query: `{ ... on Query { __type(name: "User") { name } } }`,
			want:  &Introspections{HasIntrospection: true},
		},
		{
			name:  "recursive fragments",
			query: `{ ...A } fragment A on Query { __schema { types { name } } ...A }`,
			want:  &Introspections{HasIntrospection: true},
		},
		{
			name:      "named operation",
			query:     `query A { user(id: 1) { id } } query B { __schema { types { name } } }`,
			operation: "B",
			want:      &Introspections{HasIntrospection: true},
		},
		{name: "unknown operation", query: `query A { __typename }`, operation: "B"},
		{name: "unknown fragment", query: `{ ...Missing }`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := language.ParseQuery(tt.query)
			require.NoError(t, err)
			got := InspectIntrospections(doc, tt.operation)
			if tt.want == nil {
				require.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			require.Equal(t, tt.want.HasIntrospection, got.HasIntrospection)
			require.Equal(t, tt.want.HasNonIntrospection, got.HasNonIntrospection)
		})
	}
}

func TestCheckIntrospectionDisabled(t *testing.T) {
	doc, err := language.ParseQuery(`{ __schema { types { name } } }`)
	require.NoError(t, err)
	err = checkIntrospection(doc, "", false)
	require.ErrorIs(t, err, ErrIntrospectionDisabled)
	require.Nil(t, checkIntrospection(doc, "", true))
}
