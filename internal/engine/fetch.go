package engine

import (
	"context"
	"fmt"
	"maps"
	"strings"

	"github.com/hanpama/rsgate/internal/attribution"
	"github.com/hanpama/rsgate/internal/executor"
	"github.com/hanpama/rsgate/internal/objectdata"
	"github.com/hanpama/rsgate/internal/rss"
	"github.com/hanpama/rsgate/internal/schema"
	"github.com/hanpama/rsgate/internal/selection"
	"github.com/hanpama/rsgate/internal/variables"
)

// FetchError reports that executing required selections failed.
type FetchError struct {
	TypeName    string
	Attribution *attribution.ExecutionAttribution
	Errors      []executor.GraphQLError
}

func (e *FetchError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, ge := range e.Errors {
		msgs[i] = ge.Message
	}
	if e.Attribution != nil {
		return fmt.Sprintf("fetch %s selections on %s: %s", e.Attribution, e.TypeName, strings.Join(msgs, "; "))
	}
	return fmt.Sprintf("fetch selections on %s: %s", e.TypeName, strings.Join(msgs, "; "))
}

// FetchTarget is the object a required selection set is fetched against.
type FetchTarget struct {
	TypeName string
	Source   any
	// Arguments of the field being resolved or checked, read by
	// argument-bound variables.
	Arguments map[string]any
}

// Fetched is the data of one required selection set together with the
// variable values it was fetched with.
type Fetched struct {
	Data      *objectdata.Resolved
	Variables map[string]any
}

// Fetcher executes required selection sets. Resolver sets run through
// resolverRuntime, so they are checked like any other field. Checker sets run
// through checkerRuntime.
type Fetcher struct {
	schema          *schema.Schema
	instr           Instrumentation
	resolverRuntime executor.Runtime
	checkerRuntime  executor.Runtime
}

// Fetch resolves the variables of set and executes its selections against
// target, or against the query root for sets on the query type.
func (f *Fetcher) Fetch(ctx context.Context, set *rss.RequiredSelectionSet, target FetchTarget) (*Fetched, error) {
	typeName := set.Selections.TypeName
	if typeName != f.schema.QueryType {
		typeName = target.TypeName
	}
	ctx, done := f.instr.InstrumentFetch(ctx, FetchInfo{
		TypeName:    typeName,
		Attribution: set.Attribution,
		ForChecker:  set.ForChecker,
	})
	rt := f.resolverRuntime
	if set.ForChecker {
		rt = f.checkerRuntime
	}
	fetched, err := f.fetch(ctx, rt, set.Selections, set.VariablesResolvers, typeName == f.schema.QueryType, set.Attribution, target)
	done(err)
	return fetched, err
}

func (f *Fetcher) fetch(
	ctx context.Context,
	rt executor.Runtime,
	parsed *selection.ParsedSelections,
	resolvers []variables.Resolver,
	onQuery bool,
	attr *attribution.ExecutionAttribution,
	target FetchTarget,
) (*Fetched, error) {
	vars, err := f.resolveVariables(ctx, rt, resolvers, target)
	if err != nil {
		return nil, err
	}

	typeName, source := target.TypeName, target.Source
	if onQuery {
		typeName, source = f.schema.QueryType, nil
	}
	if parsed == nil || len(parsed.SelectionSet) == 0 {
		return &Fetched{Data: objectdata.NewBuilder(typeName).Build(), Variables: vars}, nil
	}

	data, errs := executor.NewExecutor(rt, f.schema).ExecuteSelections(ctx, typeName, source, parsed.SelectionSet, parsed.Fragments, vars)
	if len(errs) > 0 {
		return nil, &FetchError{TypeName: typeName, Attribution: attr, Errors: errs}
	}
	return &Fetched{Data: objectdata.FromMap(typeName, data), Variables: vars}, nil
}

// resolveVariables runs resolvers in order, fetching each one's dependency
// first.
func (f *Fetcher) resolveVariables(ctx context.Context, rt executor.Runtime, resolvers []variables.Resolver, target FetchTarget) (map[string]any, error) {
	out := map[string]any{}
	for _, r := range resolvers {
		rc := variables.ResolveContext{Arguments: target.Arguments}
		if dep := r.Dependency(); dep != nil {
			fetched, err := f.fetch(ctx, rt, dep.Selections, dep.Resolvers, dep.OnQuery, dep.Attribution, target)
			if err != nil {
				return nil, fmt.Errorf("variables %s: %w", strings.Join(r.VariableNames(), ", "), err)
			}
			if dep.OnQuery {
				rc.QueryData = fetched.Data
			} else {
				rc.ObjectData = fetched.Data
			}
		}
		vals, err := r.Resolve(ctx, rc)
		if err != nil {
			return nil, err
		}
		maps.Copy(out, vals)
	}
	return out, nil
}
