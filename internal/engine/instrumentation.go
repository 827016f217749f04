package engine

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hanpama/rsgate/internal/attribution"
	"github.com/hanpama/rsgate/internal/checker"
	"github.com/hanpama/rsgate/internal/eventbus"
	"github.com/hanpama/rsgate/internal/events"
	"github.com/hanpama/rsgate/internal/executor"
	"github.com/hanpama/rsgate/internal/metrics"
	"github.com/hanpama/rsgate/internal/objectdata"
)

// OperationInfo describes an operation about to execute.
type OperationInfo struct {
	Query         string
	OperationName string
	OperationType string
}

// FetchInfo describes a required selection set fetch.
type FetchInfo struct {
	TypeName    string
	Attribution *attribution.ExecutionAttribution
	ForChecker  bool
}

// Instrumentation observes operations, access checks and fetches.
//
// BeginOperation and InstrumentFetch return the context to continue with and
// a function to call once the work is done. InstrumentAccessCheck returns an
// executor to run in place of exec.
type Instrumentation interface {
	BeginOperation(ctx context.Context, info OperationInfo) (context.Context, func(*executor.ExecutionResult))
	InstrumentAccessCheck(metadata attribution.CheckerMetadata, exec checker.Executor) checker.Executor
	InstrumentFetch(ctx context.Context, info FetchInfo) (context.Context, func(error))
}

type noopInstrumentation struct{}

func (noopInstrumentation) BeginOperation(ctx context.Context, _ OperationInfo) (context.Context, func(*executor.ExecutionResult)) {
	return ctx, func(*executor.ExecutionResult) {}
}

func (noopInstrumentation) InstrumentAccessCheck(_ attribution.CheckerMetadata, exec checker.Executor) checker.Executor {
	return exec
}

func (noopInstrumentation) InstrumentFetch(ctx context.Context, _ FetchInfo) (context.Context, func(error)) {
	return ctx, func(error) {}
}

type chainInstrumentation []Instrumentation

// Chain composes instrumentations. Begin hooks run in order and end hooks in
// reverse; access check wrappers nest with the first outermost.
func Chain(instrumentations ...Instrumentation) Instrumentation {
	var flat chainInstrumentation
	for _, in := range instrumentations {
		switch in := in.(type) {
		case nil, noopInstrumentation:
		case chainInstrumentation:
			flat = append(flat, in...)
		default:
			flat = append(flat, in)
		}
	}
	switch len(flat) {
	case 0:
		return noopInstrumentation{}
	case 1:
		return flat[0]
	}
	return flat
}

func (c chainInstrumentation) BeginOperation(ctx context.Context, info OperationInfo) (context.Context, func(*executor.ExecutionResult)) {
	ends := make([]func(*executor.ExecutionResult), len(c))
	for i, in := range c {
		ctx, ends[i] = in.BeginOperation(ctx, info)
	}
	return ctx, func(res *executor.ExecutionResult) {
		for i := len(ends) - 1; i >= 0; i-- {
			ends[i](res)
		}
	}
}

func (c chainInstrumentation) InstrumentAccessCheck(metadata attribution.CheckerMetadata, exec checker.Executor) checker.Executor {
	for i := len(c) - 1; i >= 0; i-- {
		exec = c[i].InstrumentAccessCheck(metadata, exec)
	}
	return exec
}

func (c chainInstrumentation) InstrumentFetch(ctx context.Context, info FetchInfo) (context.Context, func(error)) {
	ends := make([]func(error), len(c))
	for i, in := range c {
		ctx, ends[i] = in.InstrumentFetch(ctx, info)
	}
	return ctx, func(err error) {
		for i := len(ends) - 1; i >= 0; i-- {
			ends[i](err)
		}
	}
}

// observedExecutor calls done with the result and duration of every Execute.
type observedExecutor struct {
	checker.Executor
	// begin, when set, runs before Execute and may replace the context.
	begin func(ctx context.Context, kind checker.Kind) context.Context
	done  func(ctx context.Context, kind checker.Kind, res checker.Result, d time.Duration)
}

func (o *observedExecutor) Execute(ctx context.Context, args map[string]any, data map[string]objectdata.EngineObjectData, kind checker.Kind) checker.Result {
	if o.begin != nil {
		ctx = o.begin(ctx, kind)
	}
	start := time.Now()
	res := o.Executor.Execute(ctx, args, data, kind)
	o.done(ctx, kind, res, time.Since(start))
	return res
}

type metricsInstrumentation struct {
	metrics *metrics.Metrics
}

// NewMetricsInstrumentation records operation, check and fetch metrics on m.
func NewMetricsInstrumentation(m *metrics.Metrics) Instrumentation {
	return &metricsInstrumentation{metrics: m}
}

func (mi *metricsInstrumentation) BeginOperation(ctx context.Context, info OperationInfo) (context.Context, func(*executor.ExecutionResult)) {
	start := time.Now()
	return ctx, func(res *executor.ExecutionResult) {
		mi.metrics.RecordOperation(ctx, info.OperationType, res != nil && len(res.Errors) > 0, time.Since(start))
	}
}

func (mi *metricsInstrumentation) InstrumentAccessCheck(metadata attribution.CheckerMetadata, exec checker.Executor) checker.Executor {
	tag := metadata.ToTagString()
	return &observedExecutor{
		Executor: exec,
		done: func(ctx context.Context, kind checker.Kind, res checker.Result, d time.Duration) {
			mi.metrics.RecordAccessCheck(ctx, tag, string(kind), checker.AsError(res) == nil, d)
		},
	}
}

func (mi *metricsInstrumentation) InstrumentFetch(ctx context.Context, info FetchInfo) (context.Context, func(error)) {
	start := time.Now()
	return ctx, func(err error) {
		mi.metrics.RecordFetch(ctx, info.Attribution.ToTagString(), info.TypeName, info.ForChecker, err != nil, time.Since(start))
	}
}

type eventsInstrumentation struct {
	nextID atomic.Uint64
}

// NewEventsInstrumentation publishes operation, check and fetch events on the
// global event bus.
func NewEventsInstrumentation() Instrumentation {
	return &eventsInstrumentation{}
}

func (ei *eventsInstrumentation) BeginOperation(ctx context.Context, info OperationInfo) (context.Context, func(*executor.ExecutionResult)) {
	start := time.Now()
	eventbus.Publish(ctx, events.OperationStart{
		OperationName: info.OperationName,
		OperationType: info.OperationType,
		Query:         info.Query,
	})
	return ctx, func(res *executor.ExecutionResult) {
		var errs []error
		if res != nil {
			for _, e := range res.Errors {
				errs = append(errs, e)
			}
		}
		eventbus.Publish(ctx, events.OperationFinish{
			OperationName: info.OperationName,
			OperationType: info.OperationType,
			Query:         info.Query,
			Errors:        errs,
			Denied:        res.CountCode(CodeForbidden),
			Duration:      time.Since(start),
		})
	}
}

func (ei *eventsInstrumentation) InstrumentAccessCheck(metadata attribution.CheckerMetadata, exec checker.Executor) checker.Executor {
	tag := metadata.ToTagString()
	return &observedExecutor{
		Executor: exec,
		begin: func(ctx context.Context, kind checker.Kind) context.Context {
			id := ei.nextID.Add(1)
			eventbus.Publish(ctx, events.AccessCheckStart{ID: id, Checker: tag, Kind: string(kind)})
			return context.WithValue(ctx, checkIDKey{}, id)
		},
		done: func(ctx context.Context, kind checker.Kind, res checker.Result, d time.Duration) {
			var err error
			if e := checker.AsError(res); e != nil {
				err = e
			}
			id, _ := ctx.Value(checkIDKey{}).(uint64)
			eventbus.Publish(ctx, events.AccessCheckFinish{ID: id, Checker: tag, Kind: string(kind), Err: err, Duration: d})
		},
	}
}

type checkIDKey struct{}

func (ei *eventsInstrumentation) InstrumentFetch(ctx context.Context, info FetchInfo) (context.Context, func(error)) {
	id := ei.nextID.Add(1)
	attr := info.Attribution.ToTagString()
	start := time.Now()
	eventbus.Publish(ctx, events.RSSFetchStart{ID: id, TypeName: info.TypeName, Attribution: attr, ForChecker: info.ForChecker})
	return ctx, func(err error) {
		eventbus.Publish(ctx, events.RSSFetchFinish{
			ID:          id,
			TypeName:    info.TypeName,
			Attribution: attr,
			ForChecker:  info.ForChecker,
			Err:         err,
			Duration:    time.Since(start),
		})
	}
}

type loggingInstrumentation struct {
	logger *slog.Logger
}

// NewLoggingInstrumentation logs denials and failed fetches at debug level.
func NewLoggingInstrumentation(logger *slog.Logger) Instrumentation {
	return &loggingInstrumentation{logger: logger}
}

func (li *loggingInstrumentation) BeginOperation(ctx context.Context, info OperationInfo) (context.Context, func(*executor.ExecutionResult)) {
	return ctx, func(res *executor.ExecutionResult) {
		if res != nil && len(res.Errors) > 0 {
			li.logger.DebugContext(ctx, "operation finished with errors",
				slog.String("operation", info.OperationName),
				slog.String("operation_type", info.OperationType),
				slog.Int("error_count", len(res.Errors)),
			)
		}
	}
}

func (li *loggingInstrumentation) InstrumentAccessCheck(metadata attribution.CheckerMetadata, exec checker.Executor) checker.Executor {
	tag := metadata.ToTagString()
	return &observedExecutor{
		Executor: exec,
		done: func(ctx context.Context, kind checker.Kind, res checker.Result, d time.Duration) {
			if e := checker.AsError(res); e != nil {
				li.logger.DebugContext(ctx, "access check denied",
					slog.String("checker", tag),
					slog.String("kind", string(kind)),
					slog.String("error", e.Error()),
					slog.Duration("duration", d),
				)
			}
		},
	}
}

func (li *loggingInstrumentation) InstrumentFetch(ctx context.Context, info FetchInfo) (context.Context, func(error)) {
	return ctx, func(err error) {
		if err != nil {
			li.logger.DebugContext(ctx, "required selection fetch failed",
				slog.String("attribution", info.Attribution.ToTagString()),
				slog.String("type", info.TypeName),
				slog.Bool("for_checker", info.ForChecker),
				slog.String("error", err.Error()),
			)
		}
	}
}
