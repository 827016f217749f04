// Package datart resolves fields by projecting them out of a static data
// document, such as a YAML fixture.
//
// The document maps each root type name to the root object:
//
//	Query:
//	  users: &users
//	    - {id: u1, name: Ann}
//	  user: *users
//
// An object field resolves to the value stored under its name. When the field
// has arguments and the stored value is a list, the list is filtered to the
// objects whose entries equal every non-null argument; a field that does not
// return a list then takes the first match. Abstract values name their type
// in a "__typename" entry.
package datart

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/hanpama/rsgate/internal/executor"
	"github.com/hanpama/rsgate/internal/schema"
)

// Runtime implements executor.Runtime over a data document. It is read-only
// and safe for concurrent use.
type Runtime struct {
	schema *schema.Schema
	roots  map[string]any
}

var _ executor.Runtime = (*Runtime)(nil)

// New returns a runtime serving roots, keyed by root type name.
func New(sch *schema.Schema, roots map[string]any) *Runtime {
	return &Runtime{schema: sch, roots: roots}
}

// Load decodes a YAML or JSON document from r.
func Load(sch *schema.Schema, r io.Reader) (*Runtime, error) {
	var roots map[string]any
	if err := yaml.NewDecoder(r).Decode(&roots); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "decode data document")
	}
	for name := range roots {
		if name != sch.QueryType && name != sch.MutationType {
			return nil, errors.Errorf("data document: %s is not a root type", name)
		}
	}
	return New(sch, roots), nil
}

// LoadFile reads the document at path.
func LoadFile(sch *schema.Schema, path string) (*Runtime, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open data document %s", path)
	}
	defer f.Close()
	rt, err := Load(sch, f)
	if err != nil {
		return nil, errors.Wrap(err, path)
	}
	return rt, nil
}

// ResolveSync reads field from source, or from the root object for root
// fields.
func (r *Runtime) ResolveSync(_ context.Context, objectType string, field string, source any, args map[string]any) (any, error) {
	if source == nil {
		source = r.roots[objectType]
	}
	if source == nil {
		return nil, nil
	}
	obj, ok := source.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%s.%s: source is %T, not an object", objectType, field, source)
	}
	value := obj[field]

	def := r.schema.FieldDefinition(objectType, field)
	if def == nil || len(args) == 0 {
		return value, nil
	}
	items, ok := value.([]any)
	if !ok {
		return value, nil
	}
	matches := filter(items, args)
	if schema.IsList(def.Type) {
		return matches, nil
	}
	if len(matches) == 0 {
		return nil, nil
	}
	return matches[0], nil
}

func filter(items []any, args map[string]any) []any {
	out := []any{}
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		if matches(obj, args) {
			out = append(out, item)
		}
	}
	return out
}

func matches(obj map[string]any, args map[string]any) bool {
	for name, want := range args {
		if want == nil {
			continue
		}
		got, ok := obj[name]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

// BatchResolveAsync resolves each task as ResolveSync does. Groups of tasks
// on different fields run in parallel.
func (r *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))
	if len(tasks) == 0 {
		return results
	}
	type groupKey struct {
		objectType string
		field      string
	}
	var order []groupKey
	groups := map[groupKey][]int{}
	for i, t := range tasks {
		k := groupKey{objectType: t.ObjectType, field: t.Field}
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	var wg sync.WaitGroup
	for _, k := range order {
		wg.Add(1)
		go func(idxs []int) {
			defer wg.Done()
			for _, i := range idxs {
				t := tasks[i]
				v, err := r.ResolveSync(ctx, t.ObjectType, t.Field, t.Source, t.Args)
				results[i] = executor.AsyncResolveResult{Value: v, Error: err}
			}
		}(groups[k])
	}
	wg.Wait()
	return results
}

// ResolveType reads "__typename", falling back to the only possible type.
func (r *Runtime) ResolveType(_ context.Context, abstractType string, value any) (string, error) {
	if obj, ok := value.(map[string]any); ok {
		if name, ok := obj["__typename"].(string); ok {
			return name, nil
		}
	}
	if possible := r.schema.PossibleTypes(abstractType); len(possible) == 1 {
		return possible[0], nil
	}
	return "", fmt.Errorf("cannot resolve the type of %T for %s without __typename", value, abstractType)
}

func (r *Runtime) ResolveUnionConcreteValue(_ context.Context, _ string, value any) (any, error) {
	return value, nil
}

func (r *Runtime) ResolveInterfaceConcreteValue(_ context.Context, _ string, value any) (any, error) {
	return value, nil
}

// SerializeLeafValue coerces document values to the built-in scalars.
// Enums and custom scalars pass through.
func (r *Runtime) SerializeLeafValue(_ context.Context, typeName string, value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	switch typeName {
	case "Int":
		return toInt(value)
	case "Float":
		return toFloat(value)
	case "String", "ID":
		if b, ok := value.([]byte); ok {
			return base64.StdEncoding.EncodeToString(b), nil
		}
		return fmt.Sprint(value), nil
	case "Boolean":
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("cannot serialize %T as Boolean", value)
		}
		return b, nil
	}
	return value, nil
}

func toInt(value any) (any, error) {
	switch v := value.(type) {
	case int:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, fmt.Errorf("%d overflows Int", v)
		}
		return v, nil
	case int64:
		if v < math.MinInt32 || v > math.MaxInt32 {
			return nil, fmt.Errorf("%d overflows Int", v)
		}
		return int(v), nil
	case int32:
		return int(v), nil
	case float64:
		if v != math.Trunc(v) || v < math.MinInt32 || v > math.MaxInt32 {
			return nil, fmt.Errorf("%v is not an Int", v)
		}
		return int(v), nil
	}
	return nil, fmt.Errorf("cannot serialize %T as Int", value)
}

func toFloat(value any) (any, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case int32:
		return float64(v), nil
	}
	return nil, fmt.Errorf("cannot serialize %T as Float", value)
}
