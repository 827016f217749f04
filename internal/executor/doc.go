// Package executor runs GraphQL operations level by level so that every
// asynchronous field at one depth of the response is resolved through a
// single Runtime.BatchResolveAsync call.
//
// # Depths
//
// Fields are sync or async according to schema.Field.Async. Sync fields are
// resolved on the spot with Runtime.ResolveSync and their object values are
// expanded immediately, so a chain of sync fields never adds a depth. Async
// fields found while expanding a depth are queued and handed to the runtime
// together once the depth is exhausted. Their object values seed the next
// depth. A response whose deepest async chain has length d therefore costs
// exactly d batch calls.
//
// Before a batch is sent, tasks whose path sits under a value already nulled
// by Non-Null propagation are dropped.
//
// # Completion
//
// Values are completed as usual for GraphQL: Non-Null wrappers turn a null
// into an error that nulls the nearest nullable ancestor, lists complete
// element by element with the index in the path, leaves go through
// Runtime.SerializeLeafValue and abstract values are narrowed with
// Runtime.ResolveType before being completed as objects. Errors are located
// by response path and never abort sibling fields.
//
// A runtime error that is a *gqlerror.Error, or has an Extensions() map, keeps
// its extensions in the response. This is how access-check denials surface
// their FORBIDDEN code.
//
// # Detached selections
//
// ExecuteSelections runs a selection set that is not part of any request
// against a given source object. Every object in its result carries
// __typename. Required selection sets for resolvers and checkers are fetched
// this way.
package executor
