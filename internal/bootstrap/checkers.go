package bootstrap

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/hanpama/rsgate/internal/attribution"
	"github.com/hanpama/rsgate/internal/checker"
	"github.com/hanpama/rsgate/internal/objectdata"
	"github.com/hanpama/rsgate/internal/rss"
)

// Keys of the object and query selections in the data passed to built-in
// checkers.
const (
	ObjectKey = "object"
	QueryKey  = "query"
)

// RemoteFactory builds checkers that run in another service.
type RemoteFactory interface {
	Checker(service string, metadata attribution.CheckerMetadata, sets map[string]*rss.RequiredSelectionSet) (checker.Executor, error)
}

func checkerSets(sets rss.Sets) map[string]*rss.RequiredSelectionSet {
	out := map[string]*rss.RequiredSelectionSet{}
	if sets.Object != nil {
		out[ObjectKey] = sets.Object
	}
	if sets.Query != nil {
		out[QueryKey] = sets.Query
	}
	return out
}

// checkerName is the name used in metadata when a registration has none.
func checkerName(spec *CheckerSpec) string {
	switch {
	case spec.Allow != nil:
		return "allow"
	case spec.Deny != nil:
		return "deny"
	case spec.Equals != nil:
		return "equals"
	case spec.RequiresArgument != nil:
		return "requires_argument"
	case spec.Remote != nil:
		return "remote:" + spec.Remote.Service
	}
	return ""
}

func countSet(spec *CheckerSpec) int {
	n := 0
	for _, set := range []bool{
		spec.Allow != nil,
		spec.Deny != nil,
		spec.Equals != nil,
		spec.RequiresArgument != nil,
		spec.Remote != nil,
	} {
		if set {
			n++
		}
	}
	return n
}

func buildChecker(spec *CheckerSpec, meta attribution.CheckerMetadata, sets rss.Sets, remote RemoteFactory) (checker.Executor, error) {
	if spec == nil {
		return nil, errors.New("checker registration has no checker")
	}
	if n := countSet(spec); n != 1 {
		return nil, errors.Errorf("checker must set exactly one of allow, deny, equals, requires_argument or remote, found %d", n)
	}
	keyed := checkerSets(sets)

	switch {
	case spec.Allow != nil:
		return checker.Func(meta, keyed, func(context.Context, map[string]any, map[string]objectdata.EngineObjectData, checker.Kind) checker.Result {
			return checker.Success
		}), nil

	case spec.Deny != nil:
		msg := spec.Deny.Message
		if msg == "" {
			msg = "access denied"
		}
		return checker.Func(meta, keyed, func(context.Context, map[string]any, map[string]objectdata.EngineObjectData, checker.Kind) checker.Result {
			return checker.Deny(errors.New(msg))
		}), nil

	case spec.RequiresArgument != nil:
		name := spec.RequiresArgument.Name
		if name == "" {
			return nil, errors.New("requires_argument needs a name")
		}
		return checker.Func(meta, keyed, func(_ context.Context, args map[string]any, _ map[string]objectdata.EngineObjectData, _ checker.Kind) checker.Result {
			if args[name] == nil {
				return checker.Denyf("argument %q is required", name)
			}
			return checker.Success
		}), nil

	case spec.Equals != nil:
		return buildEquals(spec.Equals, meta, sets, keyed)

	default:
		if remote == nil {
			return nil, errors.Errorf("remote checker %q configured but no remote transport is available", spec.Remote.Service)
		}
		if spec.Remote.Service == "" {
			return nil, errors.New("remote checker needs a service")
		}
		exec, err := remote.Checker(spec.Remote.Service, meta, keyed)
		if err != nil {
			return nil, errors.Wrapf(err, "remote checker %q", spec.Remote.Service)
		}
		return exec, nil
	}
}

func buildEquals(spec *EqualsSpec, meta attribution.CheckerMetadata, sets rss.Sets, keyed map[string]*rss.RequiredSelectionSet) (checker.Executor, error) {
	if sets.Object == nil {
		return nil, errors.New("equals needs object_selections")
	}
	left, err := objectdata.NewEngineDataReader(objectdata.SplitPath(spec.Path))
	if err != nil {
		return nil, errors.Wrap(err, "equals path")
	}

	n := 0
	if spec.QueryPath != "" {
		n++
	}
	if spec.Argument != "" {
		n++
	}
	if spec.Value != nil {
		n++
	}
	if n != 1 {
		return nil, errors.New("equals must set exactly one of query_path, argument or value")
	}

	var right func(ctx context.Context, args map[string]any, data map[string]objectdata.EngineObjectData) (any, error)
	switch {
	case spec.QueryPath != "":
		if sets.Query == nil {
			return nil, errors.New("equals query_path needs query_selections")
		}
		reader, err := objectdata.NewEngineDataReader(objectdata.SplitPath(spec.QueryPath))
		if err != nil {
			return nil, errors.Wrap(err, "equals query_path")
		}
		right = func(ctx context.Context, _ map[string]any, data map[string]objectdata.EngineObjectData) (any, error) {
			return reader.Read(ctx, data[QueryKey])
		}
	case spec.Argument != "":
		reader, err := objectdata.NewInputValueReader(objectdata.SplitPath(spec.Argument))
		if err != nil {
			return nil, errors.Wrap(err, "equals argument")
		}
		right = func(_ context.Context, args map[string]any, _ map[string]objectdata.EngineObjectData) (any, error) {
			return reader.Read(args)
		}
	default:
		value := spec.Value
		right = func(context.Context, map[string]any, map[string]objectdata.EngineObjectData) (any, error) {
			return value, nil
		}
	}

	message := spec.Message
	return checker.Func(meta, keyed, func(ctx context.Context, args map[string]any, data map[string]objectdata.EngineObjectData, _ checker.Kind) checker.Result {
		got, err := left.Read(ctx, data[ObjectKey])
		if err != nil {
			return checker.Deny(err)
		}
		want, err := right(ctx, args, data)
		if err != nil {
			return checker.Deny(err)
		}
		if got == nil || want == nil || fmt.Sprint(got) != fmt.Sprint(want) {
			if message != "" {
				return checker.Deny(errors.New(message))
			}
			return checker.Denyf("%s: %v does not match %v", spec.Path, got, want)
		}
		return checker.Success
	}), nil
}
