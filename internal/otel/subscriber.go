package otel

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	eventbus "github.com/hanpama/rsgate/internal/eventbus"
	events "github.com/hanpama/rsgate/internal/events"
	reqid "github.com/hanpama/rsgate/internal/reqid"
)

type subscriber struct {
	tracer     trace.Tracer
	httpSpans  sync.Map // request id -> trace.Span
	gqlSpans   sync.Map // request id -> trace.Span
	checkSpans sync.Map // check id -> trace.Span
	fetchSpans sync.Map // fetch id -> trace.Span
	grpcSpans  sync.Map // call id -> trace.Span
}

func newSubscriber(tracer trace.Tracer) *subscriber {
	return &subscriber{tracer: tracer}
}

// parent returns ctx with the innermost open request span attached.
func (s *subscriber) parent(ctx context.Context) context.Context {
	if trace.SpanFromContext(ctx).SpanContext().IsValid() {
		return ctx
	}
	rid, _ := reqid.FromContext(ctx)
	if v, ok := s.gqlSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	if v, ok := s.httpSpans.Load(rid); ok {
		return trace.ContextWithSpan(ctx, v.(trace.Span))
	}
	return ctx
}

func end(spans *sync.Map, key any, err error, attrs ...attribute.KeyValue) {
	v, ok := spans.LoadAndDelete(key)
	if !ok {
		return
	}
	span := v.(trace.Span)
	span.SetAttributes(attrs...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// register subscribes to the bus and returns a function removing every
// subscription.
func (s *subscriber) register() func() {
	unsubscribers := []func(){
		eventbus.Subscribe(func(ctx context.Context, e events.HTTPStart) {
			rid := e.RequestID
			_, span := s.tracer.Start(ctx, "http.request", trace.WithSpanKind(trace.SpanKindServer))
			span.SetAttributes(
				attribute.String("http.request.method", e.Request.Method),
				attribute.String("url.path", e.Request.URL.Path),
				attribute.String("request.id", rid),
			)
			s.httpSpans.Store(rid, span)
		}),
		eventbus.Subscribe(func(_ context.Context, e events.HTTPFinish) {
			end(&s.httpSpans, e.RequestID, nil, attribute.Int("http.response.status_code", e.Status))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.OperationStart) {
			rid, _ := reqid.FromContext(ctx)
			_, span := s.tracer.Start(s.parent(ctx), "graphql.operation")
			span.SetAttributes(
				attribute.String("graphql.operation.name", e.OperationName),
				attribute.String("graphql.operation.type", e.OperationType),
			)
			s.gqlSpans.Store(rid, span)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.OperationFinish) {
			rid, _ := reqid.FromContext(ctx)
			end(&s.gqlSpans, rid, nil,
				attribute.Int("graphql.error_count", len(e.Errors)),
				attribute.Int("rsgate.denied_count", e.Denied),
			)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.AccessCheckStart) {
			_, span := s.tracer.Start(s.parent(ctx), "rsgate.access_check")
			span.SetAttributes(
				attribute.String("rsgate.checker", e.Checker),
				attribute.String("rsgate.check.kind", e.Kind),
			)
			s.checkSpans.Store(e.ID, span)
		}),
		eventbus.Subscribe(func(_ context.Context, e events.AccessCheckFinish) {
			end(&s.checkSpans, e.ID, e.Err, attribute.Bool("rsgate.check.allowed", e.Err == nil))
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.RSSFetchStart) {
			_, span := s.tracer.Start(s.parent(ctx), "rsgate.rss_fetch")
			span.SetAttributes(
				attribute.String("rsgate.attribution", e.Attribution),
				attribute.String("graphql.type", e.TypeName),
				attribute.Bool("rsgate.for_checker", e.ForChecker),
			)
			s.fetchSpans.Store(e.ID, span)
		}),
		eventbus.Subscribe(func(_ context.Context, e events.RSSFetchFinish) {
			end(&s.fetchSpans, e.ID, e.Err)
		}),
		eventbus.Subscribe(func(ctx context.Context, e events.GRPCClientStart) {
			_, span := s.tracer.Start(s.parent(ctx), "grpc.client", trace.WithSpanKind(trace.SpanKindClient))
			span.SetAttributes(
				attribute.String("rpc.service", e.Service),
				attribute.String("rpc.method", e.Method),
				attribute.String("server.address", e.Target),
			)
			s.grpcSpans.Store(e.ID, span)
		}),
		eventbus.Subscribe(func(_ context.Context, e events.GRPCClientFinish) {
			end(&s.grpcSpans, e.ID, e.Err, attribute.String("rpc.grpc.status_code", e.Code.String()))
		}),
	}
	return func() {
		for _, u := range unsubscribers {
			u()
		}
	}
}
