package executor

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	language "github.com/hanpama/rsgate/internal/language"
	schema "github.com/hanpama/rsgate/internal/schema"
)

// coerceVariableValues coerces the request variables against the operation's
// variable definitions. Missing variables take their default; variables with
// neither a value nor a default are left out.
func coerceVariableValues(
	sch *schema.Schema,
	operation *language.OperationDefinition,
	variableValues map[string]any,
) (map[string]any, error) {
	coerced := make(map[string]any, len(operation.VariableDefinitions))
	for _, varDef := range operation.VariableDefinitions {
		name := varDef.Variable
		t := varDef.Type
		val, ok := variableValues[name]
		if !ok {
			val, ok = variableValues[strings.TrimPrefix(name, "$")]
		}
		if !ok {
			switch {
			case varDef.DefaultValue != nil:
				val = astValueToGo(varDef.DefaultValue)
			case t.NonNull:
				return nil, fmt.Errorf("variable $%s of required type %s was not provided", name, t.String())
			default:
				continue
			}
		}
		if val == nil && t.NonNull {
			return nil, fmt.Errorf("variable $%s of type %s cannot be null", name, t.String())
		}
		cv, err := coerceValue(sch, val, typeRefFromAST(t))
		if err != nil {
			return nil, fmt.Errorf("variable $%s of type %s cannot be coerced: %v", name, t.String(), err)
		}
		coerced[name] = cv
	}
	return coerced, nil
}

// coerceArgumentValues coerces the arguments of one field. Failures are
// recorded on state at path and reported through ok.
func coerceArgumentValues(
	fieldDef *schema.Field,
	arguments language.ArgumentList,
	variableValues map[string]any,
	state *executionState,
	path Path,
) (coerced map[string]any, ok bool) {
	coerced = make(map[string]any, len(fieldDef.Arguments))
	ok = true
	for _, argDef := range fieldDef.Arguments {
		name := argDef.Name
		arg := arguments.ForName(name)
		if arg != nil && arg.Value.Kind == language.Variable {
			if _, bound := variableValues[arg.Value.Raw]; !bound {
				arg = nil
			}
		}
		if arg == nil {
			switch {
			case argDef.DefaultValue != nil:
				coerced[name] = argDef.DefaultValue
			case schema.IsNonNull(argDef.Type):
				state.addError(fmt.Sprintf("argument '%s' of required type was not provided", name), path)
				ok = false
			}
			continue
		}
		cv, err := coerceValue(state.schema, valueFromASTWithVars(arg.Value, variableValues), argDef.Type)
		if err != nil {
			state.addError(fmt.Sprintf("argument '%s' cannot be coerced: %v", name, err), path)
			ok = false
			continue
		}
		coerced[name] = cv
	}
	return coerced, ok
}

// valueFromASTWithVars converts an AST value to a Go value, substituting
// variables at any depth. Unbound variables become nil.
func valueFromASTWithVars(value *language.Value, variableValues map[string]any) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.Variable:
		if v, ok := variableValues[value.Raw]; ok {
			return v
		}
		return variableValues[strings.TrimPrefix(value.Raw, "$")]
	case language.ListValue:
		out := make([]any, len(value.Children))
		for i, c := range value.Children {
			out[i] = valueFromASTWithVars(c.Value, variableValues)
		}
		return out
	case language.ObjectValue:
		out := make(map[string]any, len(value.Children))
		for _, c := range value.Children {
			out[c.Name] = valueFromASTWithVars(c.Value, variableValues)
		}
		return out
	default:
		return astValueToGo(value)
	}
}

// astValueToGo converts a constant AST value to a Go value.
func astValueToGo(value *language.Value) any {
	if value == nil {
		return nil
	}
	switch value.Kind {
	case language.IntValue:
		if iv, err := strconv.Atoi(value.Raw); err == nil {
			return iv
		}
		fv, _ := strconv.ParseFloat(value.Raw, 64)
		return fv
	case language.FloatValue:
		fv, _ := strconv.ParseFloat(value.Raw, 64)
		return fv
	case language.StringValue, language.BlockValue, language.EnumValue:
		return value.Raw
	case language.BooleanValue:
		return value.Raw == "true"
	case language.ListValue, language.ObjectValue:
		return valueFromASTWithVars(value, nil)
	default:
		return nil
	}
}

// coerceValue coerces value to t. Named types missing from sch are
// coerced by name when built in and passed through otherwise.
func coerceValue(sch *schema.Schema, value any, t *schema.TypeRef) (any, error) {
	if schema.IsNonNull(t) {
		if value == nil {
			return nil, fmt.Errorf("cannot provide null for non-null type")
		}
		return coerceValue(sch, value, schema.Unwrap(t))
	}
	if value == nil {
		return nil, nil
	}
	if schema.IsList(t) {
		return coerceListValue(sch, value, t)
	}

	name := schema.GetNamedType(t)
	switch name {
	case "Int":
		return coerceToInt(value)
	case "Float":
		return coerceToFloat(value)
	case "String":
		return coerceToString(value)
	case "Boolean":
		return coerceToBoolean(value)
	case "ID":
		return coerceToID(value)
	}

	var named *schema.Type
	if sch != nil {
		named = sch.Types[name]
	}
	if named == nil {
		return value, nil
	}
	switch named.Kind {
	case schema.TypeKindEnum:
		return coerceEnum(named, value)
	case schema.TypeKindInputObject:
		return coerceInputObject(sch, named, value)
	default:
		return value, nil
	}
}

// coerceListValue coerces each item of a list. A single value becomes a list
// of one.
func coerceListValue(sch *schema.Schema, value any, listType *schema.TypeRef) (any, error) {
	inner := schema.Unwrap(listType)
	items, ok := value.([]any)
	if !ok {
		item, err := coerceValue(sch, value, inner)
		if err != nil {
			return nil, err
		}
		return []any{item}, nil
	}
	out := make([]any, len(items))
	for i, item := range items {
		cv, err := coerceValue(sch, item, inner)
		if err != nil {
			return nil, fmt.Errorf("at index %d: %w", i, err)
		}
		out[i] = cv
	}
	return out, nil
}

func coerceEnum(t *schema.Type, value any) (any, error) {
	s, ok := value.(string)
	if ok {
		for _, ev := range t.EnumValues {
			if ev.Name == s {
				return s, nil
			}
		}
	}
	return nil, fmt.Errorf("value %v is not a member of enum %s", value, t.Name)
}

func coerceInputObject(sch *schema.Schema, t *schema.Type, value any) (any, error) {
	obj, ok := value.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("cannot coerce %v (%T) to input object %s", value, value, t.Name)
	}

	known := make(map[string]bool, len(t.InputFields))
	out := make(map[string]any, len(t.InputFields))
	for _, f := range t.InputFields {
		known[f.Name] = true
		v, present := obj[f.Name]
		if !present {
			switch {
			case f.DefaultValue != nil:
				out[f.Name] = f.DefaultValue
			case schema.IsNonNull(f.Type):
				return nil, fmt.Errorf("required field '%s' of type %s was not provided", f.Name, t.Name)
			}
			continue
		}
		cv, err := coerceValue(sch, v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field '%s' of type %s: %w", f.Name, t.Name, err)
		}
		out[f.Name] = cv
	}

	var unknown []string
	for k := range obj {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("unknown fields %s on input type %s", strings.Join(unknown, ", "), t.Name)
	}

	if t.OneOf {
		set := 0
		for _, v := range out {
			if v != nil {
				set++
			}
		}
		if set != 1 || len(out) != 1 {
			return nil, fmt.Errorf("exactly one field must be set on oneOf input type %s", t.Name)
		}
	}
	return out, nil
}

// coerceToInt accepts integers and integral floats within the 32-bit range.
// Strings are rejected.
func coerceToInt(value any) (any, error) {
	var n int64
	switch v := value.(type) {
	case int:
		n = int64(v)
	case int32:
		n = int64(v)
	case int64:
		n = v
	case float32:
		if float32(int64(v)) != v {
			return nil, fmt.Errorf("cannot coerce non-integer %v to Int", v)
		}
		n = int64(v)
	case float64:
		if math.Trunc(v) != v {
			return nil, fmt.Errorf("cannot coerce non-integer %v to Int", v)
		}
		n = int64(v)
	default:
		return nil, fmt.Errorf("cannot coerce %v (%T) to Int", value, value)
	}
	if n < math.MinInt32 || n > math.MaxInt32 {
		return nil, fmt.Errorf("cannot coerce %d to Int: out of 32-bit range", n)
	}
	return int(n), nil
}

func coerceToFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Float", value, value)
}

func coerceToString(value any) (any, error) {
	if v, ok := value.(string); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to String", value, value)
}

func coerceToBoolean(value any) (any, error) {
	if v, ok := value.(bool); ok {
		return v, nil
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to Boolean", value, value)
}

// coerceToID accepts strings and integers; integers are rendered in base 10.
func coerceToID(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return strconv.Itoa(v), nil
	case int32:
		return strconv.FormatInt(int64(v), 10), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case float64:
		if math.Trunc(v) == v {
			return strconv.FormatFloat(v, 'f', -1, 64), nil
		}
	}
	return nil, fmt.Errorf("cannot coerce %v (%T) to ID", value, value)
}

func typeRefFromAST(t *language.Type) *schema.TypeRef {
	var ref *schema.TypeRef
	if t.Elem != nil {
		ref = schema.ListType(typeRefFromAST(t.Elem))
	} else {
		ref = schema.NamedType(t.NamedType)
	}
	if t.NonNull {
		ref = schema.NonNullType(ref)
	}
	return ref
}
