// Package metrics records operation, access check and required selection
// fetch metrics through OpenTelemetry and exposes them to Prometheus.
package metrics

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "rsgate"

// Metrics holds the instruments used by the engine.
type Metrics struct {
	operationDuration metric.Float64Histogram
	operationCounter  metric.Int64Counter
	checkDuration     metric.Float64Histogram
	checkCounter      metric.Int64Counter
	fetchDuration     metric.Float64Histogram
	fetchCounter      metric.Int64Counter
}

// New creates the instruments on meter. A nil meter uses the global meter
// provider.
func New(meter metric.Meter) (*Metrics, error) {
	if meter == nil {
		meter = otel.Meter(meterName)
	}

	operationDuration, err := meter.Float64Histogram(
		"rsgate.operation.duration",
		metric.WithDescription("Duration of GraphQL operations in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation duration histogram: %w", err)
	}

	operationCounter, err := meter.Int64Counter(
		"rsgate.operation.total",
		metric.WithDescription("Total number of GraphQL operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	checkDuration, err := meter.Float64Histogram(
		"rsgate.access_check.duration",
		metric.WithDescription("Duration of access checks in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create access check duration histogram: %w", err)
	}

	checkCounter, err := meter.Int64Counter(
		"rsgate.access_check.total",
		metric.WithDescription("Total number of access checks by checker and outcome"),
		metric.WithUnit("{check}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create access check counter: %w", err)
	}

	fetchDuration, err := meter.Float64Histogram(
		"rsgate.rss_fetch.duration",
		metric.WithDescription("Duration of required selection set fetches in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch duration histogram: %w", err)
	}

	fetchCounter, err := meter.Int64Counter(
		"rsgate.rss_fetch.total",
		metric.WithDescription("Total number of required selection set fetches"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create fetch counter: %w", err)
	}

	return &Metrics{
		operationDuration: operationDuration,
		operationCounter:  operationCounter,
		checkDuration:     checkDuration,
		checkCounter:      checkCounter,
		fetchDuration:     fetchDuration,
		fetchCounter:      fetchCounter,
	}, nil
}

// RecordOperation records one executed operation.
func (m *Metrics) RecordOperation(ctx context.Context, operationType string, hasErrors bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("operation_type", operationType),
		attribute.Bool("has_errors", hasErrors),
	)
	m.operationDuration.Record(ctx, milliseconds(duration), attrs)
	m.operationCounter.Add(ctx, 1, attrs)
}

// RecordAccessCheck records one checker execution. checker is the
// "checker:Type.field" tag string.
func (m *Metrics) RecordAccessCheck(ctx context.Context, checker, kind string, allowed bool, duration time.Duration) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	attrs := metric.WithAttributes(
		attribute.String("checker", checker),
		attribute.String("kind", kind),
		attribute.String("outcome", outcome),
	)
	m.checkDuration.Record(ctx, milliseconds(duration), attrs)
	m.checkCounter.Add(ctx, 1, attrs)
}

// RecordFetch records one required selection set fetch. attribution is the
// "KIND:name" tag string of the set.
func (m *Metrics) RecordFetch(ctx context.Context, attribution, typeName string, forChecker, failed bool, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String("attribution", attribution),
		attribute.String("type", typeName),
		attribute.Bool("for_checker", forChecker),
		attribute.Bool("failed", failed),
	)
	m.fetchDuration.Record(ctx, milliseconds(duration), attrs)
	m.fetchCounter.Add(ctx, 1, attrs)
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
