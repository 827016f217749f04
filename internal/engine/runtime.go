package engine

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/hanpama/rsgate/internal/checker"
	"github.com/hanpama/rsgate/internal/executor"
	"github.com/hanpama/rsgate/internal/language"
	"github.com/hanpama/rsgate/internal/objectdata"
	"github.com/hanpama/rsgate/internal/rss"
	"github.com/hanpama/rsgate/internal/schema"
)

// CodeForbidden is the extensions code of errors raised by failed access
// checks.
const CodeForbidden = "FORBIDDEN"

type objectDataKey struct{}

type taskObjectDataKey struct{}

// ObjectDataFromContext returns the object data prepared for the field a
// ResolveSync call is resolving: the fetched required selections layered over
// the parent object.
func ObjectDataFromContext(ctx context.Context) (objectdata.EngineObjectData, bool) {
	data, ok := ctx.Value(objectDataKey{}).(objectdata.EngineObjectData)
	return data, ok
}

// TaskObjectData returns the object data prepared for task inside a
// BatchResolveAsync call.
func TaskObjectData(ctx context.Context, task executor.AsyncResolveTask) (objectdata.EngineObjectData, bool) {
	store, _ := ctx.Value(taskObjectDataKey{}).(map[string]objectdata.EngineObjectData)
	data, ok := store[pathKey(task.Path)]
	return data, ok
}

func pathKey(p executor.Path) string { return fmt.Sprint([]executor.PathElement(p)) }

// checkedRuntime wraps a Runtime with required selection fetches and access
// checks. One is built per operation.
type checkedRuntime struct {
	base     executor.Runtime
	schema   *schema.Schema
	registry rss.Registry
	checkers checker.Dispatcher
	runner   *AccessCheckRunner
	fetcher  *Fetcher
	strategy ExecutionStrategy
	// bypass skips every access check.
	bypass bool
}

// prepared is the outcome of the work done before a field resolves.
type prepared struct {
	data        objectdata.EngineObjectData
	fieldResult checker.Result
	err         error
}

type fieldTarget struct {
	typeName  string
	fieldName string
	source    any
	args      map[string]any
	selection *language.Field
}

func (r *checkedRuntime) ResolveSync(ctx context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	info, _ := executor.FieldInfoFromContext(ctx)
	t := fieldTarget{typeName: objectType, fieldName: field, source: source, args: args, selection: info.Selection}
	p := r.prepare(ctx, t)
	if p.err != nil {
		return nil, p.err
	}
	value, err := r.base.ResolveSync(context.WithValue(ctx, objectDataKey{}, p.data), objectType, field, source, args)
	if err != nil {
		return nil, err
	}
	return r.complete(ctx, t, value, p.fieldResult)
}

func (r *checkedRuntime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	preps := make([]prepared, len(tasks))
	targets := make([]fieldTarget, len(tasks))
	for i, task := range tasks {
		targets[i] = fieldTarget{
			typeName:  task.ObjectType,
			fieldName: task.Field,
			source:    task.Source,
			args:      task.Args,
			selection: task.Selection,
		}
	}
	r.strategy.Run(ctx, len(tasks), func(ctx context.Context, i int) {
		preps[i] = r.prepare(ctx, targets[i])
	})

	var allowed []executor.AsyncResolveTask
	var index []int
	store := make(map[string]objectdata.EngineObjectData, len(tasks))
	for i, p := range preps {
		if p.err != nil {
			results[i].Error = p.err
			continue
		}
		allowed = append(allowed, tasks[i])
		index = append(index, i)
		store[pathKey(tasks[i].Path)] = p.data
	}
	if len(allowed) == 0 {
		return results
	}

	resolved := r.base.BatchResolveAsync(context.WithValue(ctx, taskObjectDataKey{}, store), allowed)
	for j, i := range index {
		if j < len(resolved) {
			results[i] = resolved[j]
		} else {
			results[i].Error = fmt.Errorf("runtime returned no result for %s.%s", tasks[i].ObjectType, tasks[i].Field)
		}
	}

	r.strategy.Run(ctx, len(index), func(ctx context.Context, j int) {
		i := index[j]
		if results[i].Error != nil {
			return
		}
		value, err := r.complete(ctx, targets[i], results[i].Value, preps[i].fieldResult)
		results[i] = executor.AsyncResolveResult{Value: value, Error: err}
	})
	return results
}

// prepare fetches the resolver's required selections and runs the field
// check. p.err is set when the field must not resolve.
func (r *checkedRuntime) prepare(ctx context.Context, t fieldTarget) prepared {
	data, err := r.objectData(ctx, t)
	if err != nil {
		return prepared{err: err}
	}
	fieldResult := checker.Success
	if !checker.ShouldBypassCheck(t.selection, r.bypass) {
		fieldResult = r.runner.FieldCheck(ctx, r.checkers.FieldCheckerExecutor(t.typeName, t.fieldName), CheckTarget{
			TypeName:  t.typeName,
			FieldName: t.fieldName,
			Source:    t.source,
			Arguments: t.args,
		})
		if err := forResolver(fieldResult, t); err != nil {
			return prepared{err: err}
		}
	}
	return prepared{data: data, fieldResult: fieldResult}
}

// typeFetchKey marks a context that is fetching the type-level resolver
// selections of typeName. Fields resolved inside that fetch do not apply
// them again.
type typeFetchKey struct{ typeName string }

// objectData layers the type-level and field-level resolver selections over
// the parent object.
func (r *checkedRuntime) objectData(ctx context.Context, t fieldTarget) (objectdata.EngineObjectData, error) {
	data := project(t.typeName, t.source)
	target := FetchTarget{TypeName: t.typeName, Source: t.source, Arguments: t.args}
	if ctx.Value(typeFetchKey{typeName: t.typeName}) == nil {
		typeCtx := context.WithValue(ctx, typeFetchKey{typeName: t.typeName}, true)
		for _, set := range r.registry.TypeResolverRSS(t.typeName) {
			fetched, err := r.fetcher.Fetch(typeCtx, set, target)
			if err != nil {
				return nil, err
			}
			data = objectdata.Overlay(fetched.Data, data)
		}
	}
	for _, set := range r.registry.FieldResolverRSS(t.typeName, t.fieldName) {
		fetched, err := r.fetcher.Fetch(ctx, set, target)
		if err != nil {
			return nil, err
		}
		data = objectdata.Overlay(fetched.Data, data)
	}
	return data, nil
}

// complete runs type checks on the object values in value and combines them
// with the field check. In a list, one denied element fails the field.
func (r *checkedRuntime) complete(ctx context.Context, t fieldTarget, value any, fieldResult checker.Result) (any, error) {
	if r.bypass {
		return value, nil
	}
	def := r.schema.FieldDefinition(t.typeName, t.fieldName)
	if def == nil {
		return value, nil
	}
	named := r.schema.Types[def.Type.GetNamedType()]
	if named == nil || !r.schema.IsComposite(named.Name) {
		return value, nil
	}

	typeResult := checker.Success
	var walk func(v any) error
	walk = func(v any) error {
		if v == nil {
			return nil
		}
		if items, ok := listItems(v); ok {
			for _, item := range items {
				if err := walk(item); err != nil {
					return err
				}
			}
			return nil
		}
		typeName := named.Name
		if named.Kind != schema.TypeKindObject {
			resolved, err := r.base.ResolveType(ctx, named.Name, v)
			if err != nil {
				return err
			}
			typeName = resolved
		}
		exec := r.checkers.TypeCheckerExecutor(typeName)
		if exec == nil {
			return nil
		}
		typeResult = checker.Combine(typeResult, r.runner.TypeCheck(ctx, exec, CheckTarget{
			TypeName:  typeName,
			Source:    v,
			Arguments: t.args,
		}))
		return nil
	}
	if err := walk(value); err != nil {
		return nil, err
	}
	if err := forResolver(CombineWithTypeCheck(typeResult, fieldResult), t); err != nil {
		return nil, err
	}
	return value, nil
}

func (r *checkedRuntime) ResolveType(ctx context.Context, abstractType string, value any) (string, error) {
	return r.base.ResolveType(ctx, abstractType, value)
}

func (r *checkedRuntime) ResolveUnionConcreteValue(ctx context.Context, unionTypeName string, value any) (any, error) {
	return r.base.ResolveUnionConcreteValue(ctx, unionTypeName, value)
}

func (r *checkedRuntime) ResolveInterfaceConcreteValue(ctx context.Context, interfaceTypeName string, value any) (any, error) {
	return r.base.ResolveInterfaceConcreteValue(ctx, interfaceTypeName, value)
}

func (r *checkedRuntime) SerializeLeafValue(ctx context.Context, typeName string, value any) (any, error) {
	return r.base.SerializeLeafValue(ctx, typeName, value)
}

// forResolver converts res into a FORBIDDEN error when it fails the field in
// t.
func forResolver(res checker.Result, t fieldTarget) error {
	e := checker.AsError(res)
	if e == nil || !e.IsErrorForResolver(checker.ResultContext{TypeName: t.typeName, FieldName: t.fieldName}) {
		return nil
	}
	return &gqlerror.Error{
		Err:        e,
		Message:    e.Error(),
		Extensions: map[string]any{"code": CodeForbidden},
	}
}

// project views a parent value as object data.
func project(typeName string, source any) objectdata.EngineObjectData {
	switch s := source.(type) {
	case objectdata.EngineObjectData:
		return s
	case map[string]any:
		return objectdata.Wrap(typeName, s)
	}
	return objectdata.NewBuilder(typeName).Build()
}

func listItems(v any) ([]any, bool) {
	if items, ok := v.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil, false
	}
	items := make([]any, rv.Len())
	for i := range items {
		items[i] = rv.Index(i).Interface()
	}
	return items, true
}
