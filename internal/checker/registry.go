package checker

import (
	"github.com/hanpama/rsgate/internal/language"
	"github.com/hanpama/rsgate/internal/rss"
)

// FieldDispatcherRegistry returns the checker guarding a field, or nil.
type FieldDispatcherRegistry interface {
	FieldCheckerExecutor(typeName, fieldName string) Executor
}

// TypeDispatcherRegistry returns the checker guarding an object type, or nil.
type TypeDispatcherRegistry interface {
	TypeCheckerExecutor(typeName string) Executor
}

// Dispatcher looks up both field and type checkers.
type Dispatcher interface {
	FieldDispatcherRegistry
	TypeDispatcherRegistry
}

type emptyRegistry struct{}

func (emptyRegistry) FieldCheckerExecutor(string, string) Executor { return nil }
func (emptyRegistry) TypeCheckerExecutor(string) Executor          { return nil }

// Empty has no checkers.
var Empty Dispatcher = emptyRegistry{}

// Registry is an immutable Dispatcher built by RegistryBuilder.
type Registry struct {
	executors map[rss.Coordinate]Executor
}

func (r *Registry) FieldCheckerExecutor(typeName, fieldName string) Executor {
	return r.executors[rss.Coordinate{TypeName: typeName, FieldName: fieldName}]
}

func (r *Registry) TypeCheckerExecutor(typeName string) Executor {
	return r.executors[rss.Coordinate{TypeName: typeName}]
}

// Each calls fn for every registered coordinate.
func (r *Registry) Each(fn func(rss.Coordinate, Executor)) {
	for c, e := range r.executors {
		fn(c, e)
	}
}

// RegistryBuilder collects checkers by coordinate. Several checkers on one
// coordinate are combined with Chain in registration order.
type RegistryBuilder struct {
	order     []rss.Coordinate
	executors map[rss.Coordinate][]Executor
}

func NewRegistryBuilder() *RegistryBuilder {
	return &RegistryBuilder{executors: make(map[rss.Coordinate][]Executor)}
}

func (b *RegistryBuilder) add(c rss.Coordinate, e Executor) *RegistryBuilder {
	if _, ok := b.executors[c]; !ok {
		b.order = append(b.order, c)
	}
	b.executors[c] = append(b.executors[c], e)
	return b
}

func (b *RegistryBuilder) FieldChecker(typeName, fieldName string, e Executor) *RegistryBuilder {
	return b.add(rss.Coordinate{TypeName: typeName, FieldName: fieldName}, e)
}

func (b *RegistryBuilder) TypeChecker(typeName string, e Executor) *RegistryBuilder {
	return b.add(rss.Coordinate{TypeName: typeName}, e)
}

func (b *RegistryBuilder) Build() *Registry {
	r := &Registry{executors: make(map[rss.Coordinate]Executor, len(b.order))}
	for _, c := range b.order {
		r.executors[c] = Chain(b.executors[c]...)
	}
	return r
}

// ShouldBypassCheck reports whether checks should be skipped for field. Only
// the explicit flag supplied by the caller counts; directives on the field
// itself are ignored so that a document cannot disable its own checks.
func ShouldBypassCheck(field *language.Field, explicit bool) bool {
	return explicit
}
