package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MockResolver resolves one field for one source value.
type MockResolver func(ctx context.Context, source any, args map[string]any) (any, error)

// Call kinds recorded by MockRuntime.
const (
	CallKindSync  = "sync"
	CallKindAsync = "async"
)

func NewMockValueResolver(val any) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return val, nil }
}

func NewMockErrorResolver(err error) MockResolver {
	return func(context.Context, any, map[string]any) (any, error) { return nil, err }
}

// Call records one field resolution. Async calls resolved in the same flush
// share a BatchID starting at 1; sync calls have BatchID 0.
type Call struct {
	Kind       string
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
	BatchID    int
}

// MockRuntime is an in-memory Runtime driven by resolvers keyed by
// "Type.field". Fields without a resolver resolve to nil. Abstract values
// are typed by their "__typename" entry unless SetTypeResolver overrides it.
type MockRuntime struct {
	mu        sync.Mutex
	resolvers map[string]MockResolver
	calls     []Call
	batches   int

	resolveType func(value any) (string, error)
	serialize   func(typeName string, value any) (any, error)
}

func NewMockRuntime(resolvers map[string]MockResolver) *MockRuntime {
	m := &MockRuntime{resolvers: make(map[string]MockResolver, len(resolvers))}
	for k, r := range resolvers {
		m.resolvers[k] = r
	}
	return m
}

func (m *MockRuntime) SetResolver(objectType, field string, resolver MockResolver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolvers[objectType+"."+field] = resolver
}

// SetTypeResolver replaces the __typename lookup used for abstract types.
func (m *MockRuntime) SetTypeResolver(f func(value any) (string, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolveType = f
}

// SetSerializer installs a leaf serializer. Without one, leaf values pass
// through unchanged.
func (m *MockRuntime) SetSerializer(f func(typeName string, value any) (any, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.serialize = f
}

func (m *MockRuntime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	r := m.invoke(ctx, CallKindSync, 0, objectType, field, source, args)
	return r.Value, r.Error
}

// BatchResolveAsync resolves tasks grouped by coordinate, in the order each
// coordinate first appears. Results keep the order of tasks.
func (m *MockRuntime) BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult {
	if len(tasks) == 0 {
		return nil
	}
	m.mu.Lock()
	m.batches++
	batchID := m.batches
	m.mu.Unlock()

	first := make(map[string]int, len(tasks))
	order := make([]int, len(tasks))
	for i, t := range tasks {
		key := t.ObjectType + "." + t.Field
		if _, ok := first[key]; !ok {
			first[key] = i
		}
		order[i] = i
	}
	groupOf := func(i int) int { return first[tasks[i].ObjectType+"."+tasks[i].Field] }
	sort.SliceStable(order, func(a, b int) bool { return groupOf(order[a]) < groupOf(order[b]) })

	results := make([]AsyncResolveResult, len(tasks))
	for _, i := range order {
		t := tasks[i]
		results[i] = m.invoke(ctx, CallKindAsync, batchID, t.ObjectType, t.Field, t.Source, t.Args)
	}
	return results
}

func (m *MockRuntime) invoke(ctx context.Context, kind string, batchID int, objectType, field string, source any, args map[string]any) AsyncResolveResult {
	m.mu.Lock()
	r := m.resolvers[objectType+"."+field]
	m.mu.Unlock()

	var out AsyncResolveResult
	if r != nil {
		out.Value, out.Error = r(ctx, source, args)
	}

	m.mu.Lock()
	m.calls = append(m.calls, Call{
		Kind:       kind,
		ObjectType: objectType,
		Field:      field,
		Source:     source,
		Args:       args,
		BatchID:    batchID,
	})
	m.mu.Unlock()
	return out
}

func (m *MockRuntime) ResolveType(_ context.Context, _ string, value any) (string, error) {
	m.mu.Lock()
	f := m.resolveType
	m.mu.Unlock()
	if f != nil {
		return f(value)
	}
	if obj, ok := value.(map[string]any); ok {
		if name, ok := obj["__typename"].(string); ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("cannot resolve type")
}

func (m *MockRuntime) ResolveUnionConcreteValue(_ context.Context, _ string, value any) (any, error) {
	return value, nil
}

func (m *MockRuntime) ResolveInterfaceConcreteValue(_ context.Context, _ string, value any) (any, error) {
	return value, nil
}

func (m *MockRuntime) SerializeLeafValue(_ context.Context, typeName string, value any) (any, error) {
	m.mu.Lock()
	f := m.serialize
	m.mu.Unlock()
	if f == nil {
		return value, nil
	}
	return f(typeName, value)
}

// Calls returns the recorded calls in order.
func (m *MockRuntime) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

// Reset forgets recorded calls and restarts batch numbering.
func (m *MockRuntime) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.batches = 0
}
