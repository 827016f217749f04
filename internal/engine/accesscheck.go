package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/hanpama/rsgate/internal/checker"
	"github.com/hanpama/rsgate/internal/objectdata"
	"github.com/hanpama/rsgate/internal/schema"
	"github.com/hanpama/rsgate/internal/selection"
)

// missingFromCheckerRSS is attached to reads of keys a checker did not
// declare.
const missingFromCheckerRSS = "missing from checker RSS"

// CheckTarget is the field or object an access check runs against. FieldName
// is empty for type checks.
type CheckTarget struct {
	TypeName  string
	FieldName string
	Source    any
	Arguments map[string]any
}

// AccessCheckRunner fetches the data a checker declares and executes it.
type AccessCheckRunner struct {
	schema  *schema.Schema
	fetcher *Fetcher
	instr   Instrumentation
}

// FieldCheck runs exec as a field check. A nil exec passes.
func (r *AccessCheckRunner) FieldCheck(ctx context.Context, exec checker.Executor, target CheckTarget) checker.Result {
	return r.run(ctx, exec, target, checker.KindField)
}

// TypeCheck runs exec as a type check on the object in target. A nil exec
// passes.
func (r *AccessCheckRunner) TypeCheck(ctx context.Context, exec checker.Executor, target CheckTarget) checker.Result {
	return r.run(ctx, exec, target, checker.KindType)
}

// CombineWithTypeCheck merges the result of a type check with the result of
// the field check guarding the same value. A field error takes priority.
func CombineWithTypeCheck(typeResult, fieldResult checker.Result) checker.Result {
	return checker.Combine(typeResult, fieldResult)
}

func (r *AccessCheckRunner) run(ctx context.Context, exec checker.Executor, target CheckTarget, kind checker.Kind) checker.Result {
	if exec == nil {
		return checker.Success
	}
	exec = r.instr.InstrumentAccessCheck(exec.Metadata(), exec)

	sets := exec.RequiredSelectionSets()
	data := make(map[string]objectdata.EngineObjectData, len(sets))
	for _, key := range slices.Sorted(maps.Keys(sets)) {
		set := sets[key]
		if set == nil {
			continue
		}
		fetched, err := r.fetcher.Fetch(ctx, set, FetchTarget{
			TypeName:  target.TypeName,
			Source:    target.Source,
			Arguments: target.Arguments,
		})
		if err != nil {
			return checker.Deny(fmt.Errorf("checker %s: %w", exec.Metadata(), err))
		}
		raw, err := selection.NewRawSelectionSet(r.schema, set.Selections, fetched.Variables)
		if err != nil {
			return checker.Deny(fmt.Errorf("checker %s: %w", exec.Metadata(), err))
		}
		data[key] = objectdata.Proxy(fetched.Data, raw, missingFromCheckerRSS)
	}
	return runChecker(ctx, exec, target.Arguments, data, kind)
}

// runChecker runs exec and turns a panic into a deny.
func runChecker(ctx context.Context, exec checker.Executor, args map[string]any, data map[string]objectdata.EngineObjectData, kind checker.Kind) (res checker.Result) {
	defer func() {
		if r := recover(); r != nil {
			res = checker.Denyf("checker %s panicked: %v", exec.Metadata(), r)
		}
	}()
	return exec.Execute(ctx, args, data, kind)
}
