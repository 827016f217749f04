package executor

import (
	"fmt"
	"reflect"

	language "github.com/hanpama/rsgate/internal/language"
	schema "github.com/hanpama/rsgate/internal/schema"
)

// completeValue shapes a resolved value by fieldType. bubble is the path that
// becomes null when a Non-Null position below a non-nullable value fails; a
// nullable value is its own bubble target.
func completeValue(state *executionState, fieldType *schema.TypeRef, fields []*language.Field, result any, path Path, bubble Path) any {
	if !schema.IsNonNull(fieldType) {
		completed := completeNullable(state, fieldType, fields, result, path, path)
		if isNullish(completed) && !isNullish(result) {
			state.nulled.mark(path)
		}
		return completed
	}

	if isNullish(result) {
		if !state.hasErrorAtPath(path) {
			state.addError(fmt.Sprintf("Cannot return null for non-nullable field %s", path), path)
		}
		return nil
	}
	completed := completeNullable(state, fieldType.Unwrap(), fields, result, path, bubble)
	if isNullish(completed) {
		return nil
	}
	return completed
}

func completeNullable(state *executionState, t *schema.TypeRef, fields []*language.Field, result any, path Path, bubble Path) any {
	if isNullish(result) {
		return nil
	}
	if t.Kind == schema.TypeRefKindList {
		return completeListValue(state, t, fields, result, path, bubble)
	}

	name := t.GetNamedType()
	typ := state.schema.Types[name]
	if typ == nil {
		state.addError(fmt.Sprintf("Unknown type: %s", name), path)
		return nil
	}

	switch typ.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		v, err := state.runtime.SerializeLeafValue(state.context, name, result)
		if err != nil {
			state.addError(err.Error(), path)
			return nil
		}
		return v
	case schema.TypeKindObject:
		return executeSelectionSet(state, typ, mergeSelectionSets(fields), result, path, bubble)
	case schema.TypeKindInterface, schema.TypeKindUnion:
		typeName, err := state.runtime.ResolveType(state.context, name, result)
		if err != nil {
			state.addError(err.Error(), path)
			return nil
		}
		concrete := state.schema.Types[typeName]
		if concrete == nil || concrete.Kind != schema.TypeKindObject {
			state.addError(fmt.Sprintf("Abstract type %s must resolve to an Object type at runtime. Got: %s", name, typeName), path)
			return nil
		}
		return executeSelectionSet(state, concrete, mergeSelectionSets(fields), result, path, bubble)
	}
	state.addError(fmt.Sprintf("Cannot complete value of unexpected type: %s", typ.Kind), path)
	return nil
}

// completeListValue completes every item. A null in a Non-Null item position
// nulls the whole list.
func completeListValue(state *executionState, listType *schema.TypeRef, fields []*language.Field, result any, path Path, bubble Path) any {
	items, ok := result.([]any)
	if !ok {
		rv := reflect.ValueOf(result)
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			state.addError(fmt.Sprintf("Expected list value, got %T", result), path)
			return nil
		}
		items = make([]any, rv.Len())
		for i := range items {
			items[i] = rv.Index(i).Interface()
		}
	}

	itemType := listType.Unwrap()
	out := make([]any, len(items))
	for i, item := range items {
		v := completeValue(state, itemType, fields, item, path.with(i), bubble)
		if isNullish(v) {
			if schema.IsNonNull(itemType) {
				return nil
			}
			v = nil
		}
		out[i] = v
	}
	return out
}

func mergeSelectionSets(fields []*language.Field) language.SelectionSet {
	var merged language.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

// isNullish treats typed nil pointers, maps and slices as null.
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	switch rv := reflect.ValueOf(v); rv.Kind() {
	case reflect.Interface, reflect.Pointer, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}
