package executor

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"reflect"

	language "github.com/hanpama/rsgate/internal/language"
	schema "github.com/hanpama/rsgate/internal/schema"
)

type Executor struct {
	runtime Runtime
	schema  *schema.Schema
}

func NewExecutor(runtime Runtime, schema *schema.Schema) *Executor {
	return &Executor{runtime: runtime, schema: schema}
}

// executionState is the per-operation state shared by the field, completion
// and batching code.
type executionState struct {
	context        context.Context
	runtime        Runtime
	schema         *schema.Schema
	document       *language.QueryDocument
	variableValues map[string]any
	errors         []GraphQLError

	// async fields discovered at the current depth
	pending []asyncTask
	nulled  tombstones

	// set for detached selections
	includeTypename bool
}

func (e *Executor) newState(ctx context.Context, document *language.QueryDocument, variables map[string]any) *executionState {
	return &executionState{
		context:        ctx,
		runtime:        e.runtime,
		schema:         e.schema,
		document:       document,
		variableValues: variables,
		errors:         []GraphQLError{},
		nulled:         tombstones{},
	}
}

// asyncTask is a queued async field. bubble is the path nulled when the
// field is Non-Null and fails; nil means the enclosing root field.
type asyncTask struct {
	task      AsyncResolveTask
	fieldType *schema.TypeRef
	fields    []*language.Field
	bubble    Path
}

// asyncPending stands in the response tree for a queued async field until its
// batch completes.
type asyncPending struct{}

// ExecuteRequest runs the named operation of document, or its only operation
// when operationName is empty. Operation selection and variable coercion
// failures are reported without data.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *language.QueryDocument,
	operationName string,
	variableValues map[string]any,
	initialValue any,
) *ExecutionResult {
	operation := selectOperation(document, operationName)
	if operation == nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: "operation not found"}}}
	}

	variables, err := coerceVariableValues(e.schema, operation, variableValues)
	if err != nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: err.Error()}}}
	}

	var rootType *schema.Type
	switch operation.Operation {
	case language.Query:
		rootType = e.schema.GetQueryType()
	case language.Mutation:
		rootType = e.schema.GetMutationType()
	case language.Subscription:
		rootType = e.schema.GetSubscriptionType()
	default:
		return &ExecutionResult{Errors: []GraphQLError{{Message: fmt.Sprintf("unsupported operation type: %s", operation.Operation)}}}
	}
	if rootType == nil {
		return &ExecutionResult{Errors: []GraphQLError{{Message: fmt.Sprintf("root type not found for %s operation", operation.Operation)}}}
	}

	state := e.newState(ctx, document, variables)
	data := state.run(rootType, operation.SelectionSet, initialValue)
	return &ExecutionResult{Data: data, Errors: state.errors}
}

// ExecuteSelections executes selectionSet against source as a value of
// typeName, outside of any operation. Fragment spreads are looked up in
// fragments and variables are used as given, without coercion. Every object
// in the returned data carries its __typename.
func (e *Executor) ExecuteSelections(
	ctx context.Context,
	typeName string,
	source any,
	selectionSet language.SelectionSet,
	fragments language.FragmentDefinitionList,
	variables map[string]any,
) (map[string]any, []GraphQLError) {
	objectType := e.schema.Types[typeName]
	if objectType == nil || objectType.Kind != schema.TypeKindObject {
		return nil, []GraphQLError{{Message: fmt.Sprintf("cannot execute selections on %s: not an object type", typeName)}}
	}
	if variables == nil {
		variables = map[string]any{}
	}
	state := e.newState(ctx, &language.QueryDocument{Fragments: fragments}, variables)
	state.includeTypename = true

	data := state.run(objectType, selectionSet, source)
	if _, ok := data["__typename"]; !ok {
		data["__typename"] = typeName
	}
	return data, state.errors
}

// run expands the root selection set, then resolves one batch per async
// depth until nothing is pending.
func (state *executionState) run(rootType *schema.Type, selectionSet language.SelectionSet, initialValue any) map[string]any {
	data := map[string]any{}
	maps.Copy(data, executeSelectionSet(state, rootType, selectionSet, initialValue, Path{}, nil))

	for len(state.pending) > 0 {
		if err := state.context.Err(); err != nil {
			state.addError(err.Error(), nil)
			for _, at := range state.pending {
				setValueAtPath(data, at.task.Path, nil)
			}
			break
		}
		batch := state.takeBatch()
		if len(batch) == 0 {
			continue
		}
		tasks := make([]AsyncResolveTask, len(batch))
		for i, at := range batch {
			tasks[i] = at.task
		}
		results := state.runtime.BatchResolveAsync(state.context, tasks)
		for i, at := range batch {
			var res AsyncResolveResult
			if i < len(results) {
				res = results[i]
			} else {
				res.Error = fmt.Errorf("no batch result for %s", at.task.Path)
			}
			state.completeAsync(data, at, res)
		}
	}
	return data
}

// takeBatch empties the pending queue, dropping tasks under nulled paths.
func (state *executionState) takeBatch() []asyncTask {
	batch := make([]asyncTask, 0, len(state.pending))
	for _, at := range state.pending {
		if !state.nulled.covers(at.task.Path) {
			batch = append(batch, at)
		}
	}
	state.pending = nil
	return batch
}

func (state *executionState) completeAsync(data map[string]any, at asyncTask, res AsyncResolveResult) {
	path := at.task.Path
	if state.nulled.covers(path) {
		return
	}

	var completed any
	if res.Error != nil {
		state.addCause(res.Error, path)
	} else {
		completed = completeValue(state, at.fieldType, at.fields, res.Value, path, at.bubble)
	}

	if isNullish(completed) && schema.IsNonNull(at.fieldType) {
		target := at.bubble
		if target == nil {
			target = path.topLevelField()
		}
		setValueAtPath(data, target, nil)
		state.nulled.mark(target)
		return
	}
	if isNullish(completed) {
		completed = nil
	}
	setValueAtPath(data, path, completed)
}

// executeSelectionSet resolves the fields of one object. Sync fields are
// completed in place; async ones are queued and left as placeholders. A
// Non-Null field that ends up null makes the whole object null, except at
// the root where only that field is nulled.
func executeSelectionSet(state *executionState, objectType *schema.Type, selectionSet language.SelectionSet, objectValue any, path Path, bubble Path) map[string]any {
	out := make(map[string]any)

	for _, group := range collectFields(state, objectType, selectionSet).orderedFields() {
		name := group.ResponseName
		fieldName := group.Fields[0].Name

		if fieldName == "__typename" {
			out[name] = objectType.Name
			continue
		}
		fieldDef := getFieldDefinition(objectType, fieldName)
		if fieldDef == nil {
			state.addError(fmt.Sprintf("Cannot query field '%s' on type '%s'", fieldName, objectType.Name), path.with(name))
			continue
		}

		value := executeField(state, objectType, fieldDef, objectValue, group.Fields, path.with(name), bubble)
		if isNullish(value) {
			if schema.IsNonNull(fieldDef.Type) && len(path) > 0 {
				state.nulled.mark(path)
				return nil
			}
			value = nil
		}
		out[name] = value
	}

	if state.includeTypename {
		if _, ok := out["__typename"]; !ok {
			out["__typename"] = objectType.Name
		}
	}
	return out
}

// executeField resolves a sync field or queues an async one. Fields whose
// arguments fail coercion are not resolved.
func executeField(state *executionState, objectType *schema.Type, fieldDef *schema.Field, objectValue any, fields []*language.Field, path Path, bubble Path) any {
	field := fields[0]
	args, ok := coerceArgumentValues(fieldDef, field.Arguments, state.variableValues, state, path)
	if !ok {
		return nil
	}

	if fieldDef.Async {
		state.pending = append(state.pending, asyncTask{
			task: AsyncResolveTask{
				ObjectType: objectType.Name,
				Field:      fieldDef.Name,
				Source:     objectValue,
				Args:       args,
				Path:       path,
				Selection:  field,
			},
			fieldType: fieldDef.Type,
			fields:    fields,
			bubble:    bubble,
		})
		return asyncPending{}
	}

	ctx := WithFieldInfo(state.context, FieldInfo{Path: path, Selection: field})
	value, err := state.runtime.ResolveSync(ctx, objectType.Name, fieldDef.Name, objectValue, args)
	if err != nil {
		state.addCause(err, path)
		value = nil
	}
	return completeValue(state, fieldDef.Type, fields, value, path, bubble)
}

// selectOperation returns the operation called name, or the only operation of
// document when name is empty.
func selectOperation(document *language.QueryDocument, name string) *language.OperationDefinition {
	if name == "" {
		if len(document.Operations) == 1 {
			return document.Operations[0]
		}
		return nil
	}
	return document.Operations.ForName(name)
}

func (state *executionState) addError(message string, path Path) {
	state.errors = append(state.errors, GraphQLError{Message: message, Path: path})
}

// addCause records err at path, keeping the extensions of errors that carry
// them.
func (state *executionState) addCause(err error, path Path) {
	ge := GraphQLError{Message: err.Error(), Path: path}
	var located *language.Error
	var withExt interface{ Extensions() map[string]any }
	switch {
	case errors.As(err, &located) && located.Extensions != nil:
		ge.Message = located.Message
		ge.Extensions = maps.Clone(located.Extensions)
	case errors.As(err, &withExt):
		ge.Extensions = maps.Clone(withExt.Extensions())
	}
	state.errors = append(state.errors, ge)
}

func (state *executionState) hasErrorAtPath(path Path) bool {
	for _, err := range state.errors {
		if reflect.DeepEqual(err.Path, path) {
			return true
		}
	}
	return false
}
