package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/gqlerror"

	schema "github.com/hanpama/rsgate/internal/schema"
)

func userSchema() *schema.Schema {
	return testSchema(
		object("Query", "viewer: User @async", "node: Node"),
		iface("Node", "Group", "User"),
		implements(object("User", "id: ID!", "name: String", "greeting(lang: String): String", "manager: User @async"), "Node"),
		implements(object("Group", "id: ID!"), "Node"),
	)
}

func sourceField(key string) MockResolver {
	return func(_ context.Context, source any, _ map[string]any) (any, error) {
		return source.(map[string]any)[key], nil
	}
}

func TestExecuteSelections(t *testing.T) {
	greeting := func(_ context.Context, source any, args map[string]any) (any, error) {
		return args["lang"].(string) + ":" + source.(map[string]any)["name"].(string), nil
	}
	rt := NewMockRuntime(map[string]MockResolver{
		"User.id":       sourceField("id"),
		"User.name":     sourceField("name"),
		"User.greeting": greeting,
		"User.manager":  NewMockValueResolver(map[string]any{"id": "m1", "name": "Mo"}),
	})
	exec := NewExecutor(rt, userSchema())
	doc := mustParseQuery(t, `{ id hello: greeting(lang: $lang) ...M }
		fragment M on User { manager { name } }`)

	source := map[string]any{"id": "u1", "name": "Ann"}
	got, errs := exec.ExecuteSelections(context.Background(), "User", source, doc.Operations[0].SelectionSet, doc.Fragments, map[string]any{"lang": "ko"})
	require.Empty(t, errs)

	want := map[string]any{
		"__typename": "User",
		"id":         "u1",
		"hello":      "ko:Ann",
		"manager":    map[string]any{"__typename": "User", "name": "Mo"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("selections mismatch (-want +got):\n%s", diff)
	}

	t.Run("rejects non-object types", func(t *testing.T) {
		_, errs := exec.ExecuteSelections(context.Background(), "Node", nil, doc.Operations[0].SelectionSet, nil, nil)
		require.Len(t, errs, 1)
	})
}

func TestAbstractTypeConditions(t *testing.T) {
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.node": NewMockValueResolver(map[string]any{"__typename": "User", "id": "u1", "name": "Ann"}),
		"User.id":    sourceField("id"),
		"User.name":  sourceField("name"),
	})
	exec := NewExecutor(rt, userSchema())
	doc := mustParseQuery(t, `{ node { ... on Node { id } ...F ... on Group { id } } }
		fragment F on Node { ... on User { name } }`)

	res := exec.ExecuteRequest(context.Background(), doc, "", nil, nil)
	want := &ExecutionResult{
		Data:   map[string]any{"node": map[string]any{"id": "u1", "name": "Ann"}},
		Errors: []GraphQLError{},
	}
	if diff := cmp.Diff(want, res); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
}

type codedError struct{ code string }

func (e codedError) Error() string              { return "coded " + e.code }
func (e codedError) Extensions() map[string]any { return map[string]any{"code": e.code} }

func TestErrorExtensions(t *testing.T) {
	late := errors.Join(errors.New("wrapped"), &gqlerror.Error{Message: "late", Extensions: map[string]any{"code": "LATE"}})
	rt := NewMockRuntime(map[string]MockResolver{
		"User.id":      NewMockErrorResolver(&gqlerror.Error{Message: "denied", Extensions: map[string]any{"code": "FORBIDDEN"}}),
		"User.name":    NewMockErrorResolver(codedError{code: "X"}),
		"User.manager": NewMockErrorResolver(late),
	})
	exec := NewExecutor(rt, userSchema())
	doc := mustParseQuery(t, `{ name manager { name } }`)

	_, errs := exec.ExecuteSelections(context.Background(), "User", map[string]any{}, doc.Operations[0].SelectionSet, nil, nil)
	want := []GraphQLError{
		{Message: "coded X", Path: Path{"name"}, Extensions: map[string]any{"code": "X"}},
		{Message: "late", Path: Path{"manager"}, Extensions: map[string]any{"code": "LATE"}},
	}
	if diff := cmp.Diff(want, errs); diff != "" {
		t.Fatalf("errors mismatch (-want +got):\n%s", diff)
	}

	t.Run("gqlerror message is kept without location noise", func(t *testing.T) {
		doc := mustParseQuery(t, `{ id }`)
		_, errs := exec.ExecuteSelections(context.Background(), "User", map[string]any{}, doc.Operations[0].SelectionSet, nil, nil)
		require.Equal(t, "denied", errs[0].Message)
		require.Equal(t, "FORBIDDEN", errs[0].Extensions["code"])
	})
}

func TestFieldInfo(t *testing.T) {
	var syncInfo FieldInfo
	var asyncTask AsyncResolveTask
	name := func(ctx context.Context, _ any, _ map[string]any) (any, error) {
		syncInfo, _ = FieldInfoFromContext(ctx)
		return "Ann", nil
	}
	rt := &fieldInfoRuntime{
		MockRuntime: NewMockRuntime(map[string]MockResolver{
			"User.name":    name,
			"User.manager": NewMockValueResolver(nil),
		}),
		onBatch: func(tasks []AsyncResolveTask) { asyncTask = tasks[0] },
	}
	exec := NewExecutor(rt, userSchema())
	doc := mustParseQuery(t, `{ n: name boss: manager { id } }`)

	_, errs := exec.ExecuteSelections(context.Background(), "User", map[string]any{}, doc.Operations[0].SelectionSet, nil, nil)
	require.Empty(t, errs)

	require.Equal(t, Path{"n"}, syncInfo.Path)
	require.Equal(t, "name", syncInfo.Selection.Name)
	require.Equal(t, Path{"boss"}, asyncTask.Path)
	require.Equal(t, "boss", asyncTask.Selection.Alias)
}

type fieldInfoRuntime struct {
	*MockRuntime
	onBatch func([]AsyncResolveTask)
}

func (r *fieldInfoRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	r.onBatch(tasks)
	return r.MockRuntime.BatchResolveAsync(ctx, tasks)
}
