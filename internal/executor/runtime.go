package executor

import (
	"context"

	language "github.com/hanpama/rsgate/internal/language"
)

// Runtime is what the executor needs from its host: field values, concrete
// types for abstract values and leaf serialization.
//
// At each depth the executor resolves sync fields first, then calls
// BatchResolveAsync once with every live async task of that depth. Tasks under
// a path already nulled by Non-Null propagation are never sent. Errors from
// any method become located errors on the field being resolved.
//
// One Runtime serves concurrent operations, so implementations must be safe
// for concurrent use. They must not mutate source or args.
type Runtime interface {
	// ResolveSync returns the raw value of a field with Async == false.
	// (nil, nil) is a GraphQL null.
	ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error)

	// BatchResolveAsync returns one result per task, in task order. A failed
	// element does not affect its neighbours.
	BatchResolveAsync(ctx context.Context, tasks []AsyncResolveTask) []AsyncResolveResult

	// ResolveType names the object type of value, which must be a possible
	// type of abstractType.
	ResolveType(ctx context.Context, abstractType string, value any) (string, error)

	// ResolveUnionConcreteValue and ResolveInterfaceConcreteValue unwrap an
	// envelope value before it is completed as its concrete type.
	ResolveUnionConcreteValue(ctx context.Context, unionTypeName string, value any) (any, error)
	ResolveInterfaceConcreteValue(ctx context.Context, interfaceTypeName string, value any) (any, error)

	// SerializeLeafValue turns a scalar or enum value into a JSON-safe value.
	// Enums serialize to their name.
	SerializeLeafValue(ctx context.Context, scalarOrEnumTypeName string, value any) (any, error)
}

// AsyncResolveTask is one async field queued for the current depth. Source
// is nil for root fields and Selection is the first node of the merged field
// group.
type AsyncResolveTask struct {
	ObjectType string
	Field      string
	Source     any
	Args       map[string]any
	Path       Path
	Selection  *language.Field
}

// FieldInfo describes the field a ResolveSync call is resolving.
type FieldInfo struct {
	Path      Path
	Selection *language.Field
}

type fieldInfoKey struct{}

// WithFieldInfo returns a context carrying info.
func WithFieldInfo(ctx context.Context, info FieldInfo) context.Context {
	return context.WithValue(ctx, fieldInfoKey{}, info)
}

// FieldInfoFromContext returns the FieldInfo set by the executor for the
// current ResolveSync call.
func FieldInfoFromContext(ctx context.Context) (FieldInfo, bool) {
	info, ok := ctx.Value(fieldInfoKey{}).(FieldInfo)
	return info, ok
}

type AsyncResolveResult struct {
	Value any
	Error error
}
