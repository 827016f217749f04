package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestRecord(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := New(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	m.RecordOperation(ctx, "query", false, 3*time.Millisecond)
	m.RecordAccessCheck(ctx, "owner:User.email", "FIELD", false, time.Millisecond)
	m.RecordAccessCheck(ctx, "owner:User.email", "FIELD", false, time.Millisecond)
	m.RecordFetch(ctx, "RESOLVER:User.displayName", "User", false, false, time.Millisecond)

	got := collect(t, reader)
	require.Contains(t, got, "rsgate.operation.duration")
	require.Contains(t, got, "rsgate.rss_fetch.total")

	checks, ok := got["rsgate.access_check.total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, checks.DataPoints, 1)
	require.Equal(t, int64(2), checks.DataPoints[0].Value)

	checker, _ := checks.DataPoints[0].Attributes.Value("checker")
	require.Equal(t, "owner:User.email", checker.AsString())
	outcome, _ := checks.DataPoints[0].Attributes.Value("outcome")
	require.Equal(t, "denied", outcome.AsString())
}
