// Package engine executes GraphQL operations with required selection sets
// and access checks applied to every field.
//
// For each field the engine fetches the selections its resolver declared,
// runs the field's checker, resolves the field and then runs the type checker
// of the object it returned. Resolvers read the fetched data with
// ObjectDataFromContext or TaskObjectData.
package engine

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hanpama/rsgate/internal/checker"
	"github.com/hanpama/rsgate/internal/executor"
	"github.com/hanpama/rsgate/internal/introspection"
	"github.com/hanpama/rsgate/internal/language"
	"github.com/hanpama/rsgate/internal/rss"
	"github.com/hanpama/rsgate/internal/schema"
)

// CodeParseFailed is the extensions code of documents that do not parse.
const CodeParseFailed = "GRAPHQL_PARSE_FAILED"

// Engine executes operations against one schema.
type Engine struct {
	schema        *schema.Schema
	runtime       executor.Runtime
	checkers      checker.Dispatcher
	registry      rss.Registry
	instr         Instrumentation
	bypass        bool
	introspection bool
	concurrency   int
	logger        *slog.Logger
}

type Option func(*Engine)

func WithCheckers(d checker.Dispatcher) Option        { return func(e *Engine) { e.checkers = d } }
func WithRequiredSelectionSets(r rss.Registry) Option { return func(e *Engine) { e.registry = r } }
func WithBypassChecks(bypass bool) Option             { return func(e *Engine) { e.bypass = bypass } }
func WithIntrospection(enabled bool) Option           { return func(e *Engine) { e.introspection = enabled } }
func WithLogger(logger *slog.Logger) Option           { return func(e *Engine) { e.logger = logger } }

// WithInstrumentation adds instrumentations. Repeated calls accumulate.
func WithInstrumentation(instrumentations ...Instrumentation) Option {
	return func(e *Engine) { e.instr = Chain(append([]Instrumentation{e.instr}, instrumentations...)...) }
}

// WithConcurrency bounds the number of tasks of one async batch that are
// checked at the same time. Zero means no bound.
func WithConcurrency(n int) Option { return func(e *Engine) { e.concurrency = n } }

// New returns an engine resolving fields through runtime. Without options it
// has no checkers, no required selections and introspection enabled.
func New(sch *schema.Schema, runtime executor.Runtime, opts ...Option) (*Engine, error) {
	e := &Engine{
		schema:        sch,
		runtime:       runtime,
		checkers:      checker.Empty,
		registry:      rss.Empty,
		instr:         noopInstrumentation{},
		introspection: true,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.introspection {
		w, err := introspection.Wrap(runtime, sch)
		if err != nil {
			return nil, err
		}
		e.schema, e.runtime = w.Schema, w.Runtime
	}
	return e, nil
}

// Schema returns the executable schema, including introspection types when
// introspection is enabled.
func (e *Engine) Schema() *schema.Schema { return e.schema }

// Request is one operation to execute. When Document is set, Query is not
// parsed and is only reported to instrumentation.
type Request struct {
	Query         string
	OperationName string
	Variables     map[string]any
	Document      *language.QueryDocument
	InitialValue  any
}

// Execute runs req. Parse and policy failures are returned as a result with
// errors and no data.
func (e *Engine) Execute(ctx context.Context, req Request) *executor.ExecutionResult {
	doc := req.Document
	if doc == nil {
		parsed, err := language.ParseQuery(req.Query)
		if err != nil {
			return errorResult(err, CodeParseFailed)
		}
		doc = parsed
	}

	if err := checkIntrospection(doc, req.OperationName, e.introspection); err != nil {
		e.logger.DebugContext(ctx, "operation rejected by introspection policy",
			slog.String("operation", req.OperationName),
			slog.String("error", err.Message),
		)
		return errorResult(err, "")
	}

	op := findOperation(doc, req.OperationName)
	info := OperationInfo{Query: req.Query, OperationName: req.OperationName}
	strategy := Serial()
	if op != nil {
		info.OperationType = string(op.Operation)
		strategy = strategyFor(op.Operation, e.concurrency)
	}

	ctx, end := e.instr.BeginOperation(ctx, info)
	rt := e.checkedRuntime(strategy)
	result := executor.NewExecutor(rt, e.schema).ExecuteRequest(ctx, doc, req.OperationName, req.Variables, req.InitialValue)
	end(result)
	return result
}

// checkedRuntime builds the runtime for one operation. Checker selections are
// fetched through a sibling runtime with checks bypassed.
func (e *Engine) checkedRuntime(strategy ExecutionStrategy) *checkedRuntime {
	fetcher := &Fetcher{schema: e.schema, instr: e.instr}
	runner := &AccessCheckRunner{schema: e.schema, fetcher: fetcher, instr: e.instr}
	checked := &checkedRuntime{
		base:     e.runtime,
		schema:   e.schema,
		registry: e.registry,
		checkers: e.checkers,
		runner:   runner,
		fetcher:  fetcher,
		strategy: strategy,
		bypass:   e.bypass,
	}
	unchecked := *checked
	unchecked.bypass = true
	fetcher.resolverRuntime = checked
	fetcher.checkerRuntime = &unchecked
	return checked
}

// errorResult wraps err as a single-error result. code is used when err does
// not carry one of its own.
func errorResult(err error, code string) *executor.ExecutionResult {
	ge := executor.GraphQLError{Message: err.Error()}
	var located *language.Error
	if errors.As(err, &located) {
		ge.Message = located.Message
		ge.Extensions = located.Extensions
	}
	if ge.Extensions == nil && code != "" {
		ge.Extensions = map[string]any{"code": code}
	}
	return &executor.ExecutionResult{Errors: []executor.GraphQLError{ge}}
}
