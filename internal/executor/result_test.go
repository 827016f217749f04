package executor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCountCode(t *testing.T) {
	res := &ExecutionResult{Errors: []GraphQLError{
		{Message: "a", Extensions: map[string]any{"code": "FORBIDDEN"}},
		{Message: "b"},
		{Message: "c", Extensions: map[string]any{"code": "FORBIDDEN"}},
		{Message: "d", Extensions: map[string]any{"code": 7}},
	}}
	require.Equal(t, 2, res.CountCode("FORBIDDEN"))
	require.Equal(t, "", res.Errors[3].Code())

	var empty *ExecutionResult
	require.Zero(t, empty.CountCode("FORBIDDEN"))
}
