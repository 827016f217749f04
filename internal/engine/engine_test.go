package engine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/hanpama/rsgate/internal/attribution"
	"github.com/hanpama/rsgate/internal/checker"
	"github.com/hanpama/rsgate/internal/executor"
	"github.com/hanpama/rsgate/internal/objectdata"
	"github.com/hanpama/rsgate/internal/rss"
	"github.com/hanpama/rsgate/internal/schema"
	"github.com/hanpama/rsgate/internal/selection"
)

const testSDL = `
type Query {
  user(id: ID!): User
  users: [User!]
  settings: Settings
}

type Mutation {
  rename(id: ID!, name: String!): User
}

type Settings {
  adminIds: [ID!]!
}

type User {
  id: ID!
  name: String
  email: String
  ownerId: ID
  greeting: String
  isAdmin: Boolean
}
`

var testUsers = map[string]map[string]any{
	"u1": {"id": "u1", "name": "Ann", "email": "ann@example.com", "ownerId": "u1"},
	"u2": {"id": "u2", "name": "Bob", "email": "bob@example.com", "ownerId": "u9"},
}

func fromSource(key string) executor.MockResolver {
	return func(_ context.Context, source any, _ map[string]any) (any, error) {
		return source.(map[string]any)[key], nil
	}
}

func testRuntime() *executor.MockRuntime {
	return executor.NewMockRuntime(map[string]executor.MockResolver{
		"Query.user": func(_ context.Context, _ any, args map[string]any) (any, error) {
			if u, ok := testUsers[args["id"].(string)]; ok {
				return u, nil
			}
			return nil, nil
		},
		"Query.users": executor.NewMockValueResolver([]any{testUsers["u1"], testUsers["u2"]}),
		"Query.settings": executor.NewMockValueResolver(map[string]any{
			"adminIds": []any{"u1"},
		}),
		"Settings.adminIds": fromSource("adminIds"),
		"User.id":           fromSource("id"),
		"User.name":         fromSource("name"),
		"User.email":        fromSource("email"),
		"User.ownerId":      fromSource("ownerId"),
		"User.greeting": func(ctx context.Context, _ any, _ map[string]any) (any, error) {
			data, ok := ObjectDataFromContext(ctx)
			if !ok {
				return nil, errors.New("no object data")
			}
			name, err := data.Fetch(ctx, "name")
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("Hello, %s", name), nil
		},
		"User.isAdmin": func(ctx context.Context, _ any, _ map[string]any) (any, error) {
			data, _ := ObjectDataFromContext(ctx)
			settings, err := data.Fetch(ctx, "settings")
			if err != nil {
				return nil, err
			}
			admins, err := settings.(objectdata.EngineObjectData).Fetch(ctx, "adminIds")
			if err != nil {
				return nil, err
			}
			id, err := data.Fetch(ctx, "id")
			if err != nil {
				return nil, err
			}
			return slices.Contains(admins.([]any), id), nil
		},
	})
}

func testSchema(t *testing.T) *schema.Schema {
	t.Helper()
	sch, err := schema.BuildFromSDL(testSDL)
	require.NoError(t, err)
	return sch
}

func execute(t *testing.T, rt executor.Runtime, query string, opts ...Option) *executor.ExecutionResult {
	t.Helper()
	e, err := New(testSchema(t), rt, opts...)
	require.NoError(t, err)
	return e.Execute(context.Background(), Request{Query: query})
}

func checkerSet(t *testing.T, typeName, text string) *rss.RequiredSelectionSet {
	t.Helper()
	set, err := rss.New(selection.MustParse(typeName, text), nil, true, attribution.FromPolicyCheck("test"))
	require.NoError(t, err)
	return set
}

// ownerOnly denies unless the object's ownerId equals its id.
func ownerOnly(t *testing.T, name, typeName, fieldName string) checker.Executor {
	meta := attribution.CheckerMetadata{CheckerName: name, TypeName: typeName, FieldName: fieldName}
	sets := map[string]*rss.RequiredSelectionSet{"self": checkerSet(t, "User", "id ownerId")}
	return checker.Func(meta, sets, func(ctx context.Context, _ map[string]any, data map[string]objectdata.EngineObjectData, _ checker.Kind) checker.Result {
		id, err := data["self"].Fetch(ctx, "id")
		if err != nil {
			return checker.Deny(err)
		}
		owner, err := data["self"].Fetch(ctx, "ownerId")
		if err != nil {
			return checker.Deny(err)
		}
		if id != owner {
			return checker.Denyf("%v is not the owner", id)
		}
		return checker.Success
	})
}

func TestFieldChecker(t *testing.T) {
	checkers := checker.NewRegistryBuilder().
		FieldChecker("User", "email", ownerOnly(t, "owner", "User", "email")).
		Build()

	t.Run("allowed", func(t *testing.T) {
		res := execute(t, testRuntime(), `{ user(id: "u1") { id email } }`, WithCheckers(checkers))
		require.Empty(t, res.Errors)
		want := map[string]any{"user": map[string]any{"id": "u1", "email": "ann@example.com"}}
		if diff := cmp.Diff(want, res.Data); diff != "" {
			t.Errorf("data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("denied", func(t *testing.T) {
		rt := testRuntime()
		res := execute(t, rt, `{ user(id: "u2") { id email } }`, WithCheckers(checkers))
		require.Len(t, res.Errors, 1)
		require.Equal(t, "u2 is not the owner", res.Errors[0].Message)
		require.Equal(t, executor.Path{"user", "email"}, res.Errors[0].Path)
		require.Equal(t, CodeForbidden, res.Errors[0].Extensions["code"])
		want := map[string]any{"user": map[string]any{"id": "u2", "email": nil}}
		if diff := cmp.Diff(want, res.Data); diff != "" {
			t.Errorf("data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("bypassed", func(t *testing.T) {
		res := execute(t, testRuntime(), `{ user(id: "u2") { email } }`, WithCheckers(checkers), WithBypassChecks(true))
		require.Empty(t, res.Errors)
		require.Equal(t, map[string]any{"user": map[string]any{"email": "bob@example.com"}}, res.Data)
	})
}

func TestCheckerReadsOutsideItsSelections(t *testing.T) {
	meta := attribution.CheckerMetadata{CheckerName: "greedy", TypeName: "User", FieldName: "name"}
	sets := map[string]*rss.RequiredSelectionSet{"self": checkerSet(t, "User", "id")}
	greedy := checker.Func(meta, sets, func(ctx context.Context, _ map[string]any, data map[string]objectdata.EngineObjectData, _ checker.Kind) checker.Result {
		if _, err := data["self"].Fetch(ctx, "email"); err != nil {
			return checker.Deny(err)
		}
		return checker.Success
	})
	checkers := checker.NewRegistryBuilder().FieldChecker("User", "name", greedy).Build()

	res := execute(t, testRuntime(), `{ user(id: "u1") { name } }`, WithCheckers(checkers))
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0].Message, missingFromCheckerRSS)
}

func TestPanickingChecker(t *testing.T) {
	meta := attribution.CheckerMetadata{CheckerName: "broken", TypeName: "User", FieldName: "email"}
	broken := checker.Func(meta, nil, func(context.Context, map[string]any, map[string]objectdata.EngineObjectData, checker.Kind) checker.Result {
		panic("nil policy")
	})
	checkers := checker.NewRegistryBuilder().FieldChecker("User", "email", broken).Build()

	res := execute(t, testRuntime(), `{ user(id: "u1") { id email } }`, WithCheckers(checkers))
	require.Len(t, res.Errors, 1)
	require.Equal(t, executor.Path{"user", "email"}, res.Errors[0].Path)
	require.Contains(t, res.Errors[0].Message, "panicked: nil policy")
	want := map[string]any{"user": map[string]any{"id": "u1", "email": nil}}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestTypeChecker(t *testing.T) {
	checkers := checker.NewRegistryBuilder().
		TypeChecker("User", ownerOnly(t, "visible", "User", "")).
		Build()

	t.Run("object", func(t *testing.T) {
		res := execute(t, testRuntime(), `{ a: user(id: "u1") { id } b: user(id: "u2") { id } }`, WithCheckers(checkers))
		require.Len(t, res.Errors, 1)
		require.Equal(t, executor.Path{"b"}, res.Errors[0].Path)
		want := map[string]any{"a": map[string]any{"id": "u1"}, "b": nil}
		if diff := cmp.Diff(want, res.Data); diff != "" {
			t.Errorf("data mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("one denied element fails the list", func(t *testing.T) {
		res := execute(t, testRuntime(), `{ users { id } }`, WithCheckers(checkers))
		require.Len(t, res.Errors, 1)
		require.Equal(t, executor.Path{"users"}, res.Errors[0].Path)
		require.Equal(t, map[string]any{"users": nil}, res.Data)
	})

	t.Run("field error takes priority", func(t *testing.T) {
		meta := attribution.CheckerMetadata{CheckerName: "closed", TypeName: "Query", FieldName: "user"}
		closed := checker.Func(meta, nil, func(context.Context, map[string]any, map[string]objectdata.EngineObjectData, checker.Kind) checker.Result {
			return checker.Denyf("closed")
		})
		both := checker.NewRegistryBuilder().
			TypeChecker("User", ownerOnly(t, "visible", "User", "")).
			FieldChecker("Query", "user", closed).
			Build()
		res := execute(t, testRuntime(), `{ user(id: "u2") { id } }`, WithCheckers(both))
		require.Len(t, res.Errors, 1)
		require.Equal(t, "closed", res.Errors[0].Message)
	})
}

func TestResolverRequiredSelections(t *testing.T) {
	sch := testSchema(t)
	greeting, err := rss.Build("User", sch.QueryType, rss.Spec{
		ObjectFragment: "name",
		Attribution:    attribution.FromResolver("greeting"),
	})
	require.NoError(t, err)
	isAdmin, err := rss.Build("User", sch.QueryType, rss.Spec{
		QueryFragment: "settings { adminIds }",
		Attribution:   attribution.FromResolver("isAdmin"),
	})
	require.NoError(t, err)
	registry := rss.NewRegistryBuilder().
		FieldResolver("User", "greeting", greeting.All()...).
		FieldResolver("User", "isAdmin", isAdmin.All()...).
		Build()

	e, err := New(sch, testRuntime(), WithRequiredSelectionSets(registry))
	require.NoError(t, err)
	res := e.Execute(context.Background(), Request{Query: `{ a: user(id: "u1") { greeting isAdmin } b: user(id: "u2") { isAdmin } }`})
	require.Empty(t, res.Errors)
	want := map[string]any{
		"a": map[string]any{"greeting": "Hello, Ann", "isAdmin": true},
		"b": map[string]any{"isAdmin": false},
	}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}

func TestTypeResolverRequiredSelections(t *testing.T) {
	sch := testSchema(t)
	sets, err := rss.Build("User", sch.QueryType, rss.Spec{
		ObjectFragment: "name",
		Attribution:    attribution.FromResolver("User"),
	})
	require.NoError(t, err)
	registry := rss.NewRegistryBuilder().TypeResolver("User", sets.All()...).Build()
	require.NoError(t, rss.ValidateAcyclic(sch, registry))

	rt := testRuntime()
	var mu sync.Mutex
	nameCalls := 0
	rt.SetResolver("User", "name", func(_ context.Context, source any, _ map[string]any) (any, error) {
		mu.Lock()
		nameCalls++
		mu.Unlock()
		return source.(map[string]any)["name"], nil
	})

	e, err := New(sch, rt, WithRequiredSelectionSets(registry))
	require.NoError(t, err)
	res := e.Execute(context.Background(), Request{Query: `{ user(id: "u1") { id greeting } }`})
	require.Empty(t, res.Errors)
	want := map[string]any{"user": map[string]any{"id": "u1", "greeting": "Hello, Ann"}}
	if diff := cmp.Diff(want, res.Data); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
	// once per selected field; the fetch itself does not apply the type set again
	require.Equal(t, 2, nameCalls)
}

func TestResolverSelectionsAreChecked(t *testing.T) {
	sch := testSchema(t)
	greeting, err := rss.Build("User", sch.QueryType, rss.Spec{
		ObjectFragment: "email",
		Attribution:    attribution.FromResolver("greeting"),
	})
	require.NoError(t, err)
	registry := rss.NewRegistryBuilder().FieldResolver("User", "greeting", greeting.All()...).Build()
	checkers := checker.NewRegistryBuilder().
		FieldChecker("User", "email", ownerOnly(t, "owner", "User", "email")).
		Build()

	res := execute(t, testRuntime(), `{ user(id: "u2") { greeting } }`,
		WithRequiredSelectionSets(registry), WithCheckers(checkers))
	require.Len(t, res.Errors, 1)
	require.Equal(t, executor.Path{"user", "greeting"}, res.Errors[0].Path)
	require.Contains(t, res.Errors[0].Message, "is not the owner")
}

// taskRecorder captures the object data prepared for async tasks.
type taskRecorder struct {
	*executor.MockRuntime
	mu   sync.Mutex
	seen map[string]objectdata.EngineObjectData
}

func (r *taskRecorder) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	r.mu.Lock()
	for _, task := range tasks {
		if data, ok := TaskObjectData(ctx, task); ok {
			r.seen[task.Field] = data
		}
	}
	r.mu.Unlock()
	return r.MockRuntime.BatchResolveAsync(ctx, tasks)
}

func TestTaskObjectData(t *testing.T) {
	sch := testSchema(t)
	sets, err := rss.Build(sch.QueryType, sch.QueryType, rss.Spec{
		QueryFragment: "settings { adminIds }",
		Attribution:   attribution.FromResolver("user"),
	})
	require.NoError(t, err)
	registry := rss.NewRegistryBuilder().FieldResolver(sch.QueryType, "user", sets.All()...).Build()

	rt := &taskRecorder{MockRuntime: testRuntime(), seen: map[string]objectdata.EngineObjectData{}}
	e, err := New(sch, rt, WithRequiredSelectionSets(registry))
	require.NoError(t, err)
	res := e.Execute(context.Background(), Request{Query: `{ user(id: "u1") { id } }`})
	require.Empty(t, res.Errors)

	data := rt.seen["user"]
	require.NotNil(t, data)
	got, err := objectdata.ToMap(context.Background(), data)
	require.NoError(t, err)
	require.Equal(t, map[string]any{"adminIds": []any{"u1"}, "__typename": "Settings"}, got["settings"])
}

func TestFetchErrorFailsField(t *testing.T) {
	sch := testSchema(t)
	sets, err := rss.Build("User", sch.QueryType, rss.Spec{
		ObjectFragment: "ownerId",
		Attribution:    attribution.FromResolver("greeting"),
	})
	require.NoError(t, err)
	registry := rss.NewRegistryBuilder().FieldResolver("User", "greeting", sets.All()...).Build()
	rt := testRuntime()
	rt.SetResolver("User", "ownerId", executor.NewMockErrorResolver(errors.New("owner lookup failed")))

	res := execute(t, rt, `{ user(id: "u1") { greeting } }`, WithRequiredSelectionSets(registry))
	require.Len(t, res.Errors, 1)
	require.Contains(t, res.Errors[0].Message, "owner lookup failed")
	require.Contains(t, res.Errors[0].Message, "RESOLVER:greeting")
}

func TestIntrospectionPolicy(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		opts    []Option
		wantErr string
	}{
		{name: "introspection only", query: `{ __schema { queryType { name } } }`},
		{name: "typename is not introspection", query: `{ __typename user(id: "u1") { id } }`},
		{
			name:    "mixed selections",
			query:   `{ __schema { queryType { name } } user(id: "u1") { id } }`,
			wantErr: "Introspective queries cannot select non-introspective fields.",
		},
		{
			name:    "mixed through a fragment",
			query:   `query { ...F } fragment F on Query { __type(name: "User") { name } users { id } }`,
			wantErr: "Introspective queries cannot select non-introspective fields.",
		},
		{
			name:    "mutation",
			query:   `mutation { __typename __schema { queryType { name } } }`,
			wantErr: "MUTATION operations cannot introspect the schema.",
		},
		{
			name:    "disabled",
			query:   `{ __type(name: "User") { name } }`,
			opts:    []Option{WithIntrospection(false)},
			wantErr: "Introspection is disabled.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := execute(t, testRuntime(), tt.query, tt.opts...)
			if tt.wantErr == "" {
				require.Empty(t, res.Errors)
				return
			}
			require.Len(t, res.Errors, 1)
			require.Equal(t, tt.wantErr, res.Errors[0].Message)
			require.Equal(t, CodeIntrospectionNotAllowed, res.Errors[0].Extensions["code"])
			require.Nil(t, res.Data)
		})
	}
}

func TestParseError(t *testing.T) {
	res := execute(t, testRuntime(), `{ user(id: "u1") { id }`)
	require.Nil(t, res.Data)
	require.Len(t, res.Errors, 1)
	require.Equal(t, CodeParseFailed, res.Errors[0].Extensions["code"])
}

func TestMutationRunsSerially(t *testing.T) {
	var (
		mu    sync.Mutex
		order []string
	)
	rt := testRuntime()
	rt.SetResolver("Mutation", "rename", func(_ context.Context, _ any, args map[string]any) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		order = append(order, args["name"].(string))
		return map[string]any{"id": args["id"], "name": args["name"]}, nil
	})

	res := execute(t, rt, `mutation { a: rename(id: "u1", name: "A") { name } b: rename(id: "u1", name: "B") { name } }`)
	require.Empty(t, res.Errors)
	require.Equal(t, []string{"A", "B"}, order)
}
