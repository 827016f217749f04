package checker

import (
	"context"
	"maps"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hanpama/rsgate/internal/attribution"
	"github.com/hanpama/rsgate/internal/objectdata"
	"github.com/hanpama/rsgate/internal/rss"
)

// Kind says whether a check guards a field or an object type.
type Kind string

const (
	KindField Kind = "FIELD"
	KindType  Kind = "TYPE"
)

// Executor runs one authorization check.
//
// RequiredSelectionSets declares, by key, the selections the check reads. The
// engine fetches each one before Execute and passes the results in objectData
// under the same key. A nil set means the key has no selections and is
// omitted from objectData.
type Executor interface {
	Metadata() attribution.CheckerMetadata
	RequiredSelectionSets() map[string]*rss.RequiredSelectionSet
	Execute(ctx context.Context, args map[string]any, objectData map[string]objectdata.EngineObjectData, kind Kind) Result
}

type noOp struct {
	metadata attribution.CheckerMetadata
}

// NoOp returns an executor that always succeeds.
func NoOp(metadata attribution.CheckerMetadata) Executor {
	return noOp{metadata: metadata}
}

func (n noOp) Metadata() attribution.CheckerMetadata                     { return n.metadata }
func (noOp) RequiredSelectionSets() map[string]*rss.RequiredSelectionSet { return nil }
func (noOp) Execute(context.Context, map[string]any, map[string]objectdata.EngineObjectData, Kind) Result {
	return Success
}

// CheckFunc is the body of a Func executor.
type CheckFunc func(ctx context.Context, args map[string]any, objectData map[string]objectdata.EngineObjectData, kind Kind) Result

type funcExecutor struct {
	metadata attribution.CheckerMetadata
	sets     map[string]*rss.RequiredSelectionSet
	fn       CheckFunc
}

// Func adapts fn to an Executor that requires sets.
func Func(metadata attribution.CheckerMetadata, sets map[string]*rss.RequiredSelectionSet, fn CheckFunc) Executor {
	return &funcExecutor{metadata: metadata, sets: maps.Clone(sets), fn: fn}
}

func (f *funcExecutor) Metadata() attribution.CheckerMetadata { return f.metadata }

func (f *funcExecutor) RequiredSelectionSets() map[string]*rss.RequiredSelectionSet {
	return maps.Clone(f.sets)
}

func (f *funcExecutor) Execute(ctx context.Context, args map[string]any, objectData map[string]objectdata.EngineObjectData, kind Kind) Result {
	return f.fn(ctx, args, objectData, kind)
}

type chain struct {
	metadata  attribution.CheckerMetadata
	executors []Executor
}

// Chain returns an executor that runs executors concurrently and folds their
// results in the order given. Each executor's required selection sets are
// exposed under the key "<index>/<key>".
func Chain(executors ...Executor) Executor {
	switch len(executors) {
	case 0:
		return NoOp(attribution.CheckerMetadata{})
	case 1:
		return executors[0]
	}
	names := make([]string, len(executors))
	for i, e := range executors {
		names[i] = e.Metadata().CheckerName
	}
	md := executors[0].Metadata()
	md.CheckerName = strings.Join(names, "+")
	return &chain{metadata: md, executors: slices.Clone(executors)}
}

func (c *chain) Metadata() attribution.CheckerMetadata { return c.metadata }

func (c *chain) RequiredSelectionSets() map[string]*rss.RequiredSelectionSet {
	out := map[string]*rss.RequiredSelectionSet{}
	for i, e := range c.executors {
		for k, s := range e.RequiredSelectionSets() {
			out[chainKey(i, k)] = s
		}
	}
	return out
}

func (c *chain) Execute(ctx context.Context, args map[string]any, objectData map[string]objectdata.EngineObjectData, kind Kind) Result {
	results := make([]Result, len(c.executors))
	g, gctx := errgroup.WithContext(ctx)
	for i, e := range c.executors {
		data := map[string]objectdata.EngineObjectData{}
		for k := range e.RequiredSelectionSets() {
			if d, ok := objectData[chainKey(i, k)]; ok {
				data[k] = d
			}
		}
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					results[i] = Denyf("checker %s panicked: %v", e.Metadata(), r)
				}
			}()
			results[i] = e.Execute(gctx, args, data, kind)
			return nil
		})
	}
	_ = g.Wait()
	return Fold(results...)
}

func chainKey(i int, key string) string {
	return strconv.Itoa(i) + "/" + key
}

