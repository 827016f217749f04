package engine

import (
	"bytes"
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/hanpama/rsgate/internal/attribution"
	"github.com/hanpama/rsgate/internal/checker"
	"github.com/hanpama/rsgate/internal/eventbus"
	"github.com/hanpama/rsgate/internal/events"
	"github.com/hanpama/rsgate/internal/executor"
	"github.com/hanpama/rsgate/internal/metrics"
	"github.com/hanpama/rsgate/internal/objectdata"
)

type recorder struct {
	name string
	mu   *sync.Mutex
	log  *[]string
}

func (r recorder) add(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	*r.log = append(*r.log, r.name+" "+s)
}

func (r recorder) BeginOperation(ctx context.Context, _ OperationInfo) (context.Context, func(*executor.ExecutionResult)) {
	r.add("begin")
	return ctx, func(*executor.ExecutionResult) { r.add("end") }
}

func (r recorder) InstrumentAccessCheck(_ attribution.CheckerMetadata, exec checker.Executor) checker.Executor {
	return &observedExecutor{
		Executor: exec,
		begin: func(ctx context.Context, _ checker.Kind) context.Context {
			r.add("check")
			return ctx
		},
		done: func(context.Context, checker.Kind, checker.Result, time.Duration) {},
	}
}

func (r recorder) InstrumentFetch(ctx context.Context, _ FetchInfo) (context.Context, func(error)) {
	return ctx, func(error) {}
}

func TestChainOrder(t *testing.T) {
	var (
		mu  sync.Mutex
		log []string
	)
	a := recorder{name: "a", mu: &mu, log: &log}
	b := recorder{name: "b", mu: &mu, log: &log}
	checkers := checker.NewRegistryBuilder().
		FieldChecker("User", "email", ownerOnly(t, "owner", "User", "email")).
		Build()

	res := execute(t, testRuntime(), `{ user(id: "u1") { email } }`,
		WithCheckers(checkers), WithInstrumentation(a), WithInstrumentation(b))
	require.Empty(t, res.Errors)
	require.Equal(t, []string{"a begin", "b begin", "a check", "b check", "b end", "a end"}, log)
}

func TestChainFlattens(t *testing.T) {
	a := recorder{name: "a", mu: &sync.Mutex{}, log: &[]string{}}
	require.Equal(t, noopInstrumentation{}, Chain())
	require.Equal(t, a, Chain(nil, noopInstrumentation{}, a))
	require.Len(t, Chain(Chain(a, a), a), 3)
}

func TestEventsInstrumentation(t *testing.T) {
	eventbus.Use(eventbus.New())
	t.Cleanup(func() { eventbus.Use(nil) })

	var (
		mu       sync.Mutex
		starts   []events.AccessCheckStart
		finishes []events.AccessCheckFinish
		fetches  []events.RSSFetchFinish
		ops      []events.OperationFinish
	)
	defer eventbus.Subscribe(func(_ context.Context, e events.AccessCheckStart) {
		mu.Lock()
		defer mu.Unlock()
		starts = append(starts, e)
	})()
	defer eventbus.Subscribe(func(_ context.Context, e events.AccessCheckFinish) {
		mu.Lock()
		defer mu.Unlock()
		finishes = append(finishes, e)
	})()
	defer eventbus.Subscribe(func(_ context.Context, e events.RSSFetchFinish) {
		mu.Lock()
		defer mu.Unlock()
		fetches = append(fetches, e)
	})()
	defer eventbus.Subscribe(func(_ context.Context, e events.OperationFinish) {
		mu.Lock()
		defer mu.Unlock()
		ops = append(ops, e)
	})()

	checkers := checker.NewRegistryBuilder().
		FieldChecker("User", "email", ownerOnly(t, "owner", "User", "email")).
		Build()
	res := execute(t, testRuntime(), `{ user(id: "u2") { email } }`,
		WithCheckers(checkers), WithInstrumentation(NewEventsInstrumentation()))
	require.Len(t, res.Errors, 1)

	require.Len(t, starts, 1)
	require.Len(t, finishes, 1)
	require.Equal(t, starts[0].ID, finishes[0].ID)
	require.Equal(t, "owner:User.email", finishes[0].Checker)
	require.Equal(t, "FIELD", finishes[0].Kind)
	require.ErrorContains(t, finishes[0].Err, "not the owner")

	require.Len(t, fetches, 1)
	require.True(t, fetches[0].ForChecker)
	require.Equal(t, "POLICY_CHECK:test", fetches[0].Attribution)
	require.NoError(t, fetches[0].Err)

	require.Len(t, ops, 1)
	require.Equal(t, "query", ops[0].OperationType)
	require.Len(t, ops[0].Errors, 1)
	require.Equal(t, 1, ops[0].Denied)
}

func TestMetricsInstrumentation(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := metrics.New(provider.Meter("test"))
	require.NoError(t, err)

	checkers := checker.NewRegistryBuilder().
		FieldChecker("User", "email", ownerOnly(t, "owner", "User", "email")).
		Build()
	res := execute(t, testRuntime(), `{ a: user(id: "u1") { email } b: user(id: "u2") { email } }`,
		WithCheckers(checkers), WithInstrumentation(NewMetricsInstrumentation(m)))
	require.Len(t, res.Errors, 1)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	outcomes := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, metric := range sm.Metrics {
			if metric.Name != "rsgate.access_check.total" {
				continue
			}
			for _, dp := range metric.Data.(metricdata.Sum[int64]).DataPoints {
				outcome, _ := dp.Attributes.Value("outcome")
				outcomes[outcome.AsString()] += dp.Value
			}
		}
	}
	require.Equal(t, map[string]int64{"allowed": 1, "denied": 1}, outcomes)
}

func TestLoggingInstrumentation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	meta := attribution.CheckerMetadata{CheckerName: "never", TypeName: "User", FieldName: "name"}
	never := checker.Func(meta, nil, func(context.Context, map[string]any, map[string]objectdata.EngineObjectData, checker.Kind) checker.Result {
		return checker.Denyf("nope")
	})
	checkers := checker.NewRegistryBuilder().FieldChecker("User", "name", never).Build()

	res := execute(t, testRuntime(), `{ user(id: "u1") { name } }`,
		WithCheckers(checkers), WithInstrumentation(NewLoggingInstrumentation(logger)))
	require.Len(t, res.Errors, 1)
	require.Contains(t, buf.String(), "access check denied")
	require.Contains(t, buf.String(), "checker=never:User.name")
	require.Contains(t, buf.String(), "operation finished with errors")
}
