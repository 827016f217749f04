package executor

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	schema "github.com/hanpama/rsgate/internal/schema"
)

type executeCase struct {
	name      string
	schema    *schema.Schema
	resolvers map[string]MockResolver
	setup     func(*MockRuntime)
	query     string
	operation string
	variables map[string]any
	want      *ExecutionResult
	// checked only when set
	wantCalls []Call
}

func runExecuteCases(t *testing.T, cases []executeCase) {
	t.Helper()
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rt := NewMockRuntime(tc.resolvers)
			if tc.setup != nil {
				tc.setup(rt)
			}
			got := NewExecutor(rt, tc.schema).ExecuteRequest(context.Background(), mustParseQuery(t, tc.query), tc.operation, tc.variables, nil)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
			}
			if tc.wantCalls == nil {
				return
			}
			if diff := cmp.Diff(tc.wantCalls, rt.Calls()); diff != "" {
				t.Fatalf("runtime calls mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func data(d map[string]any, errs ...GraphQLError) *ExecutionResult {
	if errs == nil {
		errs = []GraphQLError{}
	}
	return &ExecutionResult{Data: d, Errors: errs}
}

func requestError(msg string) *ExecutionResult {
	return &ExecutionResult{Errors: []GraphQLError{{Message: msg}}}
}

func syncCall(objectType, field string, source any) Call {
	return Call{Kind: CallKindSync, ObjectType: objectType, Field: field, Source: source, Args: map[string]any{}}
}

func asyncCall(objectType, field string, source any, batch int) Call {
	return Call{Kind: CallKindAsync, ObjectType: objectType, Field: field, Source: source, Args: map[string]any{}, BatchID: batch}
}

var errBoom = errors.New("boom")

func echoArg(name string) MockResolver {
	return func(_ context.Context, _ any, args map[string]any) (any, error) { return args[name], nil }
}

func TestOperationSelection(t *testing.T) {
	ab := testSchema(object("Query", "a: String", "b: String"))
	resolvers := map[string]MockResolver{
		"Query.a": NewMockValueResolver("A"),
		"Query.b": NewMockValueResolver("B"),
	}
	runExecuteCases(t, []executeCase{
		{name: "anonymous", schema: ab, resolvers: resolvers, query: "{ a }", want: data(map[string]any{"a": "A"})},
		{name: "single named without name", schema: ab, resolvers: resolvers, query: "query Foo { a }", want: data(map[string]any{"a": "A"})},
		{name: "by name", schema: ab, resolvers: resolvers, query: "query Foo { a } query Bar { b }", operation: "Bar", want: data(map[string]any{"b": "B"})},
		{name: "no operation", schema: ab, query: "fragment F on Query { a }", want: requestError("operation not found")},
		{name: "ambiguous", schema: ab, query: "query Foo { a } query Bar { b }", want: requestError("operation not found")},
		{name: "unknown name", schema: ab, query: "query Foo { a } query Bar { b }", operation: "Baz", want: requestError("operation not found")},
		{name: "missing root type", schema: ab, query: "mutation { a }", want: requestError("root type not found for mutation operation")},
	})
}

func TestVariables(t *testing.T) {
	sch := testSchema(
		object("Query", "echo(v: Int): Int", "list(v: [Int]): [Int]", "find(filter: Filter): String"),
		schema.NewType("Filter", schema.TypeKindInputObject, "").
			AddInputField(schema.NewInputValue("name", "", typeRef("String!"))).
			AddInputField(schema.NewInputValue("limit", "", typeRef("Int")).SetDefault(10)),
	)
	resolvers := map[string]MockResolver{
		"Query.echo": echoArg("v"),
		"Query.list": echoArg("v"),
		"Query.find": func(_ context.Context, _ any, args map[string]any) (any, error) {
			return fmt.Sprint(args["filter"]), nil
		},
	}
	runExecuteCases(t, []executeCase{
		{
			name:      "provided",
			schema:    sch,
			resolvers: resolvers,
			query:     "query($v: Int!) { echo(v: $v) }",
			variables: map[string]any{"v": 3},
			want:      data(map[string]any{"echo": 3}),
		},
		{
			name:      "variable default",
			schema:    sch,
			resolvers: resolvers,
			query:     "query($v: Int = 5) { echo(v: $v) }",
			want:      data(map[string]any{"echo": 5}),
		},
		{
			name:      "json numbers",
			schema:    sch,
			resolvers: resolvers,
			query:     "query($v: Int) { echo(v: $v) }",
			variables: map[string]any{"v": float64(7)},
			want:      data(map[string]any{"echo": 7}),
		},
		{
			name:      "single value wrapped in list",
			schema:    sch,
			resolvers: resolvers,
			query:     "query($v: Int) { list(v: $v) }",
			variables: map[string]any{"v": 1},
			want:      data(map[string]any{"list": []any{1}}),
		},
		{
			name:      "input object defaults",
			schema:    sch,
			resolvers: resolvers,
			query:     `{ find(filter: {name: "x"}) }`,
			want:      data(map[string]any{"find": "map[limit:10 name:x]"}),
		},
		{
			name:   "missing required",
			schema: sch,
			query:  "query($v: Int!) { echo(v: $v) }",
			want:   requestError("variable $v of required type Int! was not provided"),
		},
		{
			name:      "null for non-null",
			schema:    sch,
			query:     "query($v: Int!) { echo(v: $v) }",
			variables: map[string]any{"v": nil},
			want:      requestError("variable $v of type Int! cannot be null"),
		},
		{
			name:      "string for Int",
			schema:    sch,
			query:     "query($v: Int) { echo(v: $v) }",
			variables: map[string]any{"v": "42"},
			want:      requestError("variable $v of type Int cannot be coerced: cannot coerce 42 (string) to Int"),
		},
		{
			name:      "bad literal argument",
			schema:    sch,
			resolvers: resolvers,
			query:     `{ echo(v: 1.5) }`,
			want: data(map[string]any{"echo": nil}, GraphQLError{
				Message: "argument 'v' cannot be coerced: cannot coerce non-integer 1.5 to Int",
				Path:    Path{"echo"},
			}),
		},
	})
}

func TestCompleteValue(t *testing.T) {
	nonNullObj := testSchema(
		object("Query", "obj: Obj!"),
		object("Obj", "a: String!", "b: String! @async"),
	)
	lists := testSchema(object("Query", "list: [String]", "strict: [String!]"))
	nodes := testSchema(
		object("Query", "iface: Node"),
		iface("Node", "Obj"),
		implements(object("Obj", "a: String"), "Node"),
	)

	runExecuteCases(t, []executeCase{
		{
			name:   "error in non-null field nulls the parent",
			schema: nonNullObj,
			resolvers: map[string]MockResolver{
				"Query.obj": NewMockValueResolver(map[string]any{}),
				"Obj.a":     NewMockErrorResolver(errBoom),
				"Obj.b":     NewMockValueResolver("B"),
			},
			query: "{ obj { a b } }",
			want:  data(map[string]any{"obj": nil}, GraphQLError{Message: "boom", Path: Path{"obj", "a"}}),
			wantCalls: []Call{
				syncCall("Query", "obj", nil),
				syncCall("Obj", "a", map[string]any{}),
			},
		},
		{
			name:   "null in non-null field nulls the parent",
			schema: nonNullObj,
			resolvers: map[string]MockResolver{
				"Query.obj": NewMockValueResolver(map[string]any{}),
				"Obj.b":     NewMockValueResolver("B"),
			},
			query: "{ obj { a b } }",
			want: data(map[string]any{"obj": nil}, GraphQLError{
				Message: "Cannot return null for non-nullable field obj.a",
				Path:    Path{"obj", "a"},
			}),
			wantCalls: []Call{
				syncCall("Query", "obj", nil),
				syncCall("Obj", "a", map[string]any{}),
			},
		},
		{
			name:      "list values",
			schema:    lists,
			resolvers: map[string]MockResolver{"Query.list": NewMockValueResolver([]any{"A", nil, "B"})},
			query:     "{ list }",
			want:      data(map[string]any{"list": []any{"A", nil, "B"}}),
		},
		{
			name:   "null list",
			schema: lists,
			query:  "{ list }",
			want:   data(map[string]any{"list": nil}),
		},
		{
			name:      "null item in non-null list",
			schema:    lists,
			resolvers: map[string]MockResolver{"Query.strict": NewMockValueResolver([]any{"A", nil, "B"})},
			query:     "{ strict }",
			want: data(map[string]any{"strict": nil}, GraphQLError{
				Message: "Cannot return null for non-nullable field strict.[1]",
				Path:    Path{"strict", 1},
			}),
		},
		{
			name:      "leaf serializer",
			schema:    lists,
			resolvers: map[string]MockResolver{"Query.list": NewMockValueResolver([]any{"ok"})},
			setup: func(rt *MockRuntime) {
				rt.SetSerializer(func(typeName string, v any) (any, error) { return fmt.Sprintf("%s:%v", typeName, v), nil })
			},
			query: "{ list }",
			want:  data(map[string]any{"list": []any{"String:ok"}}),
		},
		{
			name:      "leaf serializer error",
			schema:    lists,
			resolvers: map[string]MockResolver{"Query.list": NewMockValueResolver([]any{"bad"})},
			setup: func(rt *MockRuntime) {
				rt.SetSerializer(func(string, any) (any, error) { return nil, errors.New("serialize error") })
			},
			query: "{ list }",
			want:  data(map[string]any{"list": []any{nil}}, GraphQLError{Message: "serialize error", Path: Path{"list", 0}}),
		},
		{
			name:   "abstract type resolved",
			schema: nodes,
			resolvers: map[string]MockResolver{
				"Query.iface": NewMockValueResolver(map[string]any{"val": "A"}),
				"Obj.a":       NewMockValueResolver("A"),
			},
			setup: func(rt *MockRuntime) {
				rt.SetTypeResolver(func(any) (string, error) { return "Obj", nil })
			},
			query: "{ iface { a } }",
			want:  data(map[string]any{"iface": map[string]any{"a": "A"}}),
			wantCalls: []Call{
				syncCall("Query", "iface", nil),
				syncCall("Obj", "a", map[string]any{"val": "A"}),
			},
		},
		{
			name:      "abstract type resolution error",
			schema:    nodes,
			resolvers: map[string]MockResolver{"Query.iface": NewMockValueResolver(map[string]any{})},
			setup: func(rt *MockRuntime) {
				rt.SetTypeResolver(func(any) (string, error) { return "", errBoom })
			},
			query:     "{ iface { a } }",
			want:      data(map[string]any{"iface": nil}, GraphQLError{Message: "boom", Path: Path{"iface"}}),
			wantCalls: []Call{syncCall("Query", "iface", nil)},
		},
		{
			name:      "abstract type resolved to unknown type",
			schema:    nodes,
			resolvers: map[string]MockResolver{"Query.iface": NewMockValueResolver(map[string]any{"__typename": "Unknown"})},
			query:     "{ iface { a } }",
			want: data(map[string]any{"iface": nil}, GraphQLError{
				Message: "Abstract type Node must resolve to an Object type at runtime. Got: Unknown",
				Path:    Path{"iface"},
			}),
			wantCalls: []Call{syncCall("Query", "iface", nil)},
		},
	})
}

func TestErrorPaths(t *testing.T) {
	sch := testSchema(
		object("Query", "a: String", "obj: Obj", "objs: [Obj]"),
		object("Obj", "a: String"),
	)
	failSecond := func(_ context.Context, src any, _ map[string]any) (any, error) {
		if src.(map[string]any)["idx"] == 1 {
			return nil, errBoom
		}
		return "A", nil
	}
	runExecuteCases(t, []executeCase{
		{
			name:      "root",
			schema:    sch,
			resolvers: map[string]MockResolver{"Query.a": NewMockErrorResolver(errBoom)},
			query:     "{ a }",
			want:      data(map[string]any{"a": nil}, GraphQLError{Message: "boom", Path: Path{"a"}}),
		},
		{
			name:   "nested",
			schema: sch,
			resolvers: map[string]MockResolver{
				"Query.obj": NewMockValueResolver(map[string]any{}),
				"Obj.a":     NewMockErrorResolver(errBoom),
			},
			query: "{ obj { a } }",
			want:  data(map[string]any{"obj": map[string]any{"a": nil}}, GraphQLError{Message: "boom", Path: Path{"obj", "a"}}),
		},
		{
			name:   "list index",
			schema: sch,
			resolvers: map[string]MockResolver{
				"Query.objs": NewMockValueResolver([]any{map[string]any{"idx": 0}, map[string]any{"idx": 1}}),
				"Obj.a":      failSecond,
			},
			query: "{ objs { a } }",
			want: data(
				map[string]any{"objs": []any{map[string]any{"a": "A"}, map[string]any{"a": nil}}},
				GraphQLError{Message: "boom", Path: Path{"objs", 1, "a"}},
			),
		},
		{
			name:   "aliases",
			schema: sch,
			resolvers: map[string]MockResolver{
				"Query.obj": NewMockValueResolver(map[string]any{}),
				"Obj.a":     NewMockErrorResolver(errBoom),
			},
			query: "{ o: obj { x: a } }",
			want:  data(map[string]any{"o": map[string]any{"x": nil}}, GraphQLError{Message: "boom", Path: Path{"o", "x"}}),
		},
	})
}

func TestAsyncBatching(t *testing.T) {
	abc := map[string]MockResolver{
		"Query.a": NewMockValueResolver("A"),
		"Query.b": NewMockValueResolver("B"),
		"Query.c": NewMockValueResolver("C"),
	}
	node := func(id string) MockResolver { return NewMockValueResolver(map[string]any{"id": id}) }

	runExecuteCases(t, []executeCase{
		{
			name:      "sync fields resolve before the first batch",
			schema:    testSchema(object("Query", "a: String", "b: String @async", "c: String")),
			resolvers: abc,
			query:     "{ a b c }",
			want:      data(map[string]any{"a": "A", "b": "B", "c": "C"}),
			wantCalls: []Call{
				syncCall("Query", "a", nil),
				syncCall("Query", "c", nil),
				asyncCall("Query", "b", nil, 1),
			},
		},
		{
			name:      "same depth shares a batch",
			schema:    testSchema(object("Query", "a: String @async", "b: String @async")),
			resolvers: abc,
			query:     "{ a b }",
			want:      data(map[string]any{"a": "A", "b": "B"}),
			wantCalls: []Call{asyncCall("Query", "a", nil, 1), asyncCall("Query", "b", nil, 1)},
		},
		{
			name: "one batch per async depth",
			schema: testSchema(
				object("Query", "root: Node @async"),
				object("Node", "child: Node @async", "x: String @async"),
			),
			resolvers: map[string]MockResolver{
				"Query.root": node("r"),
				"Node.child": node("c"),
				"Node.x":     NewMockValueResolver("X"),
			},
			query: "{ root { child { x } } }",
			want:  data(map[string]any{"root": map[string]any{"child": map[string]any{"x": "X"}}}),
			wantCalls: []Call{
				asyncCall("Query", "root", nil, 1),
				asyncCall("Node", "child", map[string]any{"id": "r"}, 2),
				asyncCall("Node", "x", map[string]any{"id": "c"}, 3),
			},
		},
		{
			name: "async below sync",
			schema: testSchema(
				object("Query", "obj: Obj"),
				object("Obj", "a: String", "b: String @async"),
			),
			resolvers: map[string]MockResolver{
				"Query.obj": NewMockValueResolver(map[string]any{}),
				"Obj.a":     NewMockValueResolver("A"),
				"Obj.b":     NewMockValueResolver("B"),
			},
			query: "{ obj { a b } }",
			want:  data(map[string]any{"obj": map[string]any{"a": "A", "b": "B"}}),
			wantCalls: []Call{
				syncCall("Query", "obj", nil),
				syncCall("Obj", "a", map[string]any{}),
				asyncCall("Obj", "b", map[string]any{}, 1),
			},
		},
		{
			name:   "failed task leaves its batch intact",
			schema: testSchema(object("Query", "a: String @async", "b: String @async")),
			resolvers: map[string]MockResolver{
				"Query.a": NewMockErrorResolver(errBoom),
				"Query.b": NewMockValueResolver("B"),
			},
			query:     "{ a b }",
			want:      data(map[string]any{"a": nil, "b": "B"}, GraphQLError{Message: "boom", Path: Path{"a"}}),
			wantCalls: []Call{asyncCall("Query", "a", nil, 1), asyncCall("Query", "b", nil, 1)},
		},
		{
			name: "non-null async failure nulls the nearest nullable ancestor",
			schema: testSchema(
				object("Query", "viewer: User @async"),
				object("User", "manager: User @async", "name: String! @async"),
			),
			resolvers: map[string]MockResolver{
				"Query.viewer": node("v"),
				"User.manager": node("m"),
				"User.name":    NewMockErrorResolver(errBoom),
			},
			query: "{ viewer { manager { name } } }",
			want: data(
				map[string]any{"viewer": map[string]any{"manager": nil}},
				GraphQLError{Message: "boom", Path: Path{"viewer", "manager", "name"}},
			),
			wantCalls: []Call{
				asyncCall("Query", "viewer", nil, 1),
				asyncCall("User", "manager", map[string]any{"id": "v"}, 2),
				asyncCall("User", "name", map[string]any{"id": "m"}, 3),
			},
		},
		{
			name: "tasks under a nulled object are dropped",
			schema: testSchema(
				object("Query", "obj: Obj"),
				object("Obj", "b: String @async", "a: String!"),
			),
			resolvers: map[string]MockResolver{
				"Query.obj": NewMockValueResolver(map[string]any{}),
				"Obj.b":     NewMockValueResolver("B"),
			},
			query: "{ obj { b a } }",
			want: data(map[string]any{"obj": nil}, GraphQLError{
				Message: "Cannot return null for non-nullable field obj.a",
				Path:    Path{"obj", "a"},
			}),
			wantCalls: []Call{
				syncCall("Query", "obj", nil),
				syncCall("Obj", "a", map[string]any{}),
			},
		},
	})
}

func TestResponseOrder(t *testing.T) {
	runExecuteCases(t, []executeCase{
		{
			name: "repeated selections merge",
			schema: testSchema(
				object("Query", "obj: Obj"),
				object("Obj", "a: Sub"),
				object("Sub", "x: String", "y: String"),
			),
			resolvers: map[string]MockResolver{
				"Query.obj": NewMockValueResolver(map[string]any{}),
				"Obj.a":     NewMockValueResolver(map[string]any{}),
				"Sub.x":     NewMockValueResolver("X"),
				"Sub.y":     NewMockValueResolver("Y"),
			},
			query: "{ obj { a { x } a { y } } }",
			want:  data(map[string]any{"obj": map[string]any{"a": map[string]any{"x": "X", "y": "Y"}}}),
			wantCalls: []Call{
				syncCall("Query", "obj", nil),
				syncCall("Obj", "a", map[string]any{}),
				syncCall("Sub", "x", map[string]any{}),
				syncCall("Sub", "y", map[string]any{}),
			},
		},
	})
}

func TestMutationsRunSerially(t *testing.T) {
	sch := testSchema(
		object("Query"),
		object("Mutation", "m1: String", "m2: String", "m3: String"),
	).SetMutationType("Mutation")

	runExecuteCases(t, []executeCase{
		{
			name:   "error does not stop later fields",
			schema: sch,
			resolvers: map[string]MockResolver{
				"Mutation.m1": NewMockValueResolver("1"),
				"Mutation.m2": NewMockErrorResolver(errBoom),
				"Mutation.m3": NewMockValueResolver("3"),
			},
			query: "mutation { m1 m2 m3 }",
			want:  data(map[string]any{"m1": "1", "m2": nil, "m3": "3"}, GraphQLError{Message: "boom", Path: Path{"m2"}}),
			wantCalls: []Call{
				syncCall("Mutation", "m1", nil),
				syncCall("Mutation", "m2", nil),
				syncCall("Mutation", "m3", nil),
			},
		},
	})
}

func TestCancelledContextSkipsBatches(t *testing.T) {
	sch := testSchema(object("Query", "a: String", "b: String @async"))
	rt := NewMockRuntime(map[string]MockResolver{
		"Query.a": NewMockValueResolver("A"),
		"Query.b": NewMockValueResolver("B"),
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := NewExecutor(rt, sch).ExecuteRequest(ctx, mustParseQuery(t, "{ a b }"), "", nil, nil)
	want := data(map[string]any{"a": "A", "b": nil}, GraphQLError{Message: context.Canceled.Error()})
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ExecutionResult mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]Call{syncCall("Query", "a", nil)}, rt.Calls()); diff != "" {
		t.Fatalf("runtime calls mismatch (-want +got):\n%s", diff)
	}
}
