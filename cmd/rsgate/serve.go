package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hanpama/rsgate/internal/bootstrap"
	"github.com/hanpama/rsgate/internal/config"
	"github.com/hanpama/rsgate/internal/datart"
	"github.com/hanpama/rsgate/internal/engine"
	"github.com/hanpama/rsgate/internal/eventbus"
	"github.com/hanpama/rsgate/internal/logging"
	"github.com/hanpama/rsgate/internal/metrics"
	"github.com/hanpama/rsgate/internal/otel"
	"github.com/hanpama/rsgate/internal/remote"
	"github.com/hanpama/rsgate/internal/schema"
	"github.com/hanpama/rsgate/internal/server"
)

const shutdownTimeout = 10 * time.Second

// app is a fully wired gateway: telemetry, the remote transport, the engine
// and the HTTP routes.
type app struct {
	handler http.Handler
	logger  *logging.Logger
	closers []func(context.Context) error
}

func newApp(ctx context.Context, cfg *config.Config, stderr io.Writer) (_ *app, err error) {
	a := &app{}
	defer func() {
		if err != nil {
			_ = a.close(context.Background())
		}
	}()

	eventbus.Use(eventbus.New())
	a.closers = append(a.closers, func(context.Context) error {
		eventbus.Use(nil)
		return nil
	})

	obs := cfg.Observability
	tel, err := otel.Setup(ctx, otel.Config{
		Endpoint:    obs.OTLPEndpoint,
		ServiceName: obs.ServiceName,
		Insecure:    obs.OTLPInsecure,
		SampleRatio: obs.TraceSampleRatio,
		ExportLogs:  obs.ExportLogs,
	})
	if err != nil {
		return nil, fmt.Errorf("otel setup: %w", err)
	}
	a.closers = append(a.closers, tel.Shutdown)

	a.logger = logging.NewLogger(logging.Config{
		Level:          obs.Logging.Level,
		Format:         obs.Logging.Format,
		Output:         stderr,
		LoggerProvider: tel.LoggerProvider(),
	})

	sch, err := loadSchema(cfg.GraphQL.SchemaFile)
	if err != nil {
		return nil, err
	}
	rt := datart.New(sch, nil)
	if cfg.GraphQL.DataFile != "" {
		if rt, err = datart.LoadFile(sch, cfg.GraphQL.DataFile); err != nil {
			return nil, fmt.Errorf("load data: %w", err)
		}
	}

	transport := newTransport(cfg.Remote)
	a.closers = append(a.closers, func(context.Context) error { return transport.Close() })

	instrumentations := []engine.Instrumentation{
		engine.NewEventsInstrumentation(),
		engine.NewLoggingInstrumentation(a.logger.Logger),
	}
	mux := http.NewServeMux()
	if obs.MetricsEnabled {
		mp, err := metrics.InitMeterProvider(obs.ServiceName)
		if err != nil {
			return nil, fmt.Errorf("metrics setup: %w", err)
		}
		a.closers = append(a.closers, func(ctx context.Context) error { return mp.Shutdown(ctx, a.logger.Logger) })
		m, err := metrics.New(mp.Meter())
		if err != nil {
			return nil, fmt.Errorf("metrics setup: %w", err)
		}
		instrumentations = append(instrumentations, engine.NewMetricsInstrumentation(m))
		mux.Handle("/metrics", mp.Handler())
	}

	opts := []engine.Option{
		engine.WithIntrospection(cfg.GraphQL.Introspection),
		engine.WithBypassChecks(cfg.GraphQL.BypassChecks),
		engine.WithConcurrency(cfg.GraphQL.Concurrency),
		engine.WithLogger(a.logger.Logger),
		engine.WithInstrumentation(instrumentations...),
	}
	if path := cfg.GraphQL.RegistrationsFile; path != "" {
		regs, err := bootstrap.LoadFile(ctx, sch, path, bootstrap.Options{Logger: a.logger.Logger, Remote: transport})
		if err != nil {
			return nil, err
		}
		opts = append(opts, engine.WithCheckers(regs.Checkers), engine.WithRequiredSelectionSets(regs.Selections))
	}
	if cfg.GraphQL.BypassChecks {
		a.logger.Warn("access checks are bypassed")
	}

	e, err := engine.New(sch, rt, opts...)
	if err != nil {
		return nil, fmt.Errorf("engine init: %w", err)
	}

	srv := cfg.Server
	sopts := []server.Option{
		server.WithTimeout(srv.Timeout),
		server.WithMaxBodyBytes(srv.MaxBodyBytes),
		server.WithGraphiQL(srv.GraphiQL),
		server.WithMetadataHeaders(srv.MetadataHeaders...),
		server.WithCORS(srv.CORSAllowedOrigins...),
		server.WithLogger(a.logger),
	}
	if srv.Pretty {
		sopts = append(sopts, server.WithPretty())
	}
	mux.Handle("/graphql", server.New(e, sopts...))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok\n")
	})
	a.handler = mux
	return a, nil
}

// close runs the closers in reverse order and joins their errors.
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i](ctx))
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newTransport(cfg config.RemoteConfig) *remote.Transport {
	return remote.New(
		remote.WithProvider(remote.SingleEndpoints(cfg.Endpoints)),
		remote.WithMaxConnsPerEndpoint(cfg.MaxConnsPerEndpoint),
		remote.WithRPCTimeout(cfg.RPCTimeout),
	)
}

func loadSchema(path string) (*schema.Schema, error) {
	sdl, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema: %w", err)
	}
	sch, err := schema.BuildFromSDL(string(sdl))
	if err != nil {
		return nil, fmt.Errorf("build schema: %w", err)
	}
	return sch, nil
}

func cmdServe(ctx context.Context, cfg *config.Config, stderr io.Writer) error {
	a, err := newApp(ctx, cfg, stderr)
	if err != nil {
		return err
	}
	defer func() { _ = a.close(context.Background()) }()

	lis, err := net.Listen("tcp", cfg.Server.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return serve(ctx, a, lis)
}

// serve handles requests on lis until ctx is done, then drains in-flight
// requests.
func serve(ctx context.Context, a *app, lis net.Listener) error {
	hs := &http.Server{Handler: a.handler, ReadHeaderTimeout: 10 * time.Second}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("GraphQL server listening", slog.String("addr", lis.Addr().String()))
		if err := hs.Serve(lis); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return hs.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
