// Package server exposes an engine over GraphQL-over-HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/grpc/metadata"

	engine "github.com/hanpama/rsgate/internal/engine"
	eventbus "github.com/hanpama/rsgate/internal/eventbus"
	events "github.com/hanpama/rsgate/internal/events"
	executor "github.com/hanpama/rsgate/internal/executor"
	logging "github.com/hanpama/rsgate/internal/logging"
	reqid "github.com/hanpama/rsgate/internal/reqid"
)

// RequestIDHeader carries the request ID. An incoming value is kept, otherwise
// a new one is generated. The ID is echoed on the response.
const RequestIDHeader = "X-Request-ID"

// Handler is an http.Handler serving one engine.
type Handler struct {
	engine  *engine.Engine
	opt     Options
	cors    corsPolicy
	forward map[string]struct{}
}

type Options struct {
	// Timeout bounds requests whose context has no deadline. 0 disables it.
	Timeout time.Duration

	Pretty bool

	// MaxBodyBytes limits the request body. 0 means unlimited.
	MaxBodyBytes int64

	// AllowedOrigins enables CORS for the listed origins; "*" allows any.
	AllowedOrigins []string

	// MetadataHeaders are copied into outgoing gRPC metadata, where remote
	// checkers read them. Names are case-insensitive.
	MetadataHeaders []string

	GraphiQL bool

	Logger *logging.Logger
}

type Option func(*Options)

func WithTimeout(d time.Duration) Option           { return func(o *Options) { o.Timeout = d } }
func WithPretty() Option                           { return func(o *Options) { o.Pretty = true } }
func WithMaxBodyBytes(n int64) Option              { return func(o *Options) { o.MaxBodyBytes = n } }
func WithGraphiQL(enable bool) Option              { return func(o *Options) { o.GraphiQL = enable } }
func WithLogger(logger *logging.Logger) Option     { return func(o *Options) { o.Logger = logger } }
func WithCORS(origins ...string) Option            { return func(o *Options) { o.AllowedOrigins = origins } }
func WithMetadataHeaders(headers ...string) Option { return func(o *Options) { o.MetadataHeaders = headers } }

func New(e *engine.Engine, opts ...Option) *Handler {
	op := Options{Timeout: 10 * time.Second, GraphiQL: true}
	for _, f := range opts {
		f(&op)
	}
	if op.Logger == nil {
		op.Logger = &logging.Logger{Logger: slog.Default()}
	}
	forward := make(map[string]struct{}, len(op.MetadataHeaders))
	for _, hdr := range op.MetadataHeaders {
		forward[strings.ToLower(hdr)] = struct{}{}
	}
	return &Handler{engine: e, opt: op, cors: newCORSPolicy(op.AllowedOrigins), forward: forward}
}

// requestContext derives the context a request executes under: the default
// timeout, the request ID (kept from RequestIDHeader when present) and a
// logger tagged with it.
func (h *Handler) requestContext(r *http.Request) (context.Context, context.CancelFunc, string) {
	ctx, cancel := r.Context(), context.CancelFunc(func() {})
	if _, ok := ctx.Deadline(); !ok && h.opt.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, h.opt.Timeout)
	}
	rid := r.Header.Get(RequestIDHeader)
	if rid != "" {
		ctx = reqid.WithID(ctx, rid)
	} else {
		ctx, rid = reqid.NewContext(ctx)
	}
	ctx = logging.WithLogger(ctx, h.opt.Logger.WithRequestID(rid))
	return ctx, cancel, rid
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel, rid := h.requestContext(r)
	defer cancel()
	logger := logging.FromContext(ctx)
	w.Header().Set(RequestIDHeader, rid)
	h.cors.apply(w, r)

	status := http.StatusOK
	start := time.Now()
	eventbus.Publish(ctx, events.HTTPStart{Request: r, RequestID: rid})
	defer func() {
		d := time.Since(start)
		eventbus.Publish(ctx, events.HTTPFinish{Request: r, RequestID: rid, Status: status, Duration: d})
		logger.DebugContext(ctx, "request served",
			slog.String("method", r.Method),
			slog.Int("status", status),
			slog.Duration("duration", d),
		)
	}()

	switch {
	case r.Method == http.MethodOptions:
		status = http.StatusNoContent
		w.WriteHeader(status)
		return
	case r.Method != http.MethodPost && r.Method != http.MethodGet:
		status = http.StatusMethodNotAllowed
		writeJSON(w, status, requestError("method not allowed"), h.opt.Pretty)
		return
	case r.Method == http.MethodGet && h.opt.GraphiQL && r.URL.Query().Get("query") == "" && acceptsHTML(r.Header.Get("Accept")):
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(graphiqlPage)
		return
	}

	req, batch, err := parseRequest(r, h.opt.MaxBodyBytes)
	if err != nil {
		status = err.status
		logger.InfoContext(ctx, "rejected request", slog.String("error", err.message))
		writeJSON(w, status, requestError(err.message), h.opt.Pretty)
		return
	}

	ctx = metadata.NewOutgoingContext(ctx, h.outgoingMetadata(r.Header))
	if batch == nil {
		writeJSON(w, status, h.execute(ctx, req), h.opt.Pretty)
		return
	}
	results := make([]*executor.ExecutionResult, len(batch))
	for i, req := range batch {
		results[i] = h.execute(ctx, req)
	}
	writeJSON(w, status, results, h.opt.Pretty)
}

func (h *Handler) execute(ctx context.Context, req GraphQLRequest) *executor.ExecutionResult {
	if req.Variables == nil {
		req.Variables = map[string]any{}
	}
	return h.engine.Execute(ctx, engine.Request{
		Query:         req.Query,
		OperationName: req.OperationName,
		Variables:     req.Variables,
	})
}

func (h *Handler) outgoingMetadata(header http.Header) metadata.MD {
	md := metadata.MD{}
	for k, v := range header {
		if _, ok := h.forward[strings.ToLower(k)]; ok {
			md[strings.ToLower(k)] = v
		}
	}
	return md
}

func acceptsHTML(accept string) bool {
	for part := range strings.SplitSeq(accept, ",") {
		mt, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if mt == "text/html" || mt == "*/*" {
			return true
		}
	}
	return false
}
