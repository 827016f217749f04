package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hanpama/rsgate/internal/language"
)

// ExecutionStrategy runs the per-task work of one async batch: required
// selection fetches, field checks and type checks.
type ExecutionStrategy interface {
	Run(ctx context.Context, n int, fn func(ctx context.Context, i int))
}

type concurrentStrategy struct {
	limit int
}

// Concurrent runs tasks in parallel, at most limit at a time. A limit of zero
// or less means no limit.
func Concurrent(limit int) ExecutionStrategy {
	return concurrentStrategy{limit: limit}
}

func (s concurrentStrategy) Run(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	if n == 1 {
		fn(ctx, 0)
		return
	}
	var g errgroup.Group
	if s.limit > 0 {
		g.SetLimit(s.limit)
	}
	for i := range n {
		g.Go(func() error {
			fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
}

type serialStrategy struct{}

// Serial runs tasks one after another in order.
func Serial() ExecutionStrategy { return serialStrategy{} }

func (serialStrategy) Run(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	for i := range n {
		fn(ctx, i)
	}
}

// strategyFor picks the strategy for an operation type: queries run
// concurrently, mutations and subscriptions serially.
func strategyFor(op language.Operation, limit int) ExecutionStrategy {
	if op == language.Query {
		return Concurrent(limit)
	}
	return Serial()
}
