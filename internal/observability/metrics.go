// Package observability wires service metrics through OpenTelemetry with a
// Prometheus exporter backing the meter provider.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ServiceMetrics holds the record service operation metrics.
type ServiceMetrics struct {
	operationDuration metric.Float64Histogram
	operationCounter  metric.Int64Counter
	errorCounter      metric.Int64Counter
	resultsCount      metric.Int64Histogram
}

// InitServiceMetrics initializes the record service metrics.
func InitServiceMetrics() (*ServiceMetrics, error) {
	meter := otel.Meter("recordql")

	operationDuration, err := meter.Float64Histogram(
		"record.operation.duration",
		metric.WithDescription("Duration of record service operations in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation duration histogram: %w", err)
	}

	operationCounter, err := meter.Int64Counter(
		"record.operations.total",
		metric.WithDescription("Total number of record service operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create operation counter: %w", err)
	}

	errorCounter, err := meter.Int64Counter(
		"record.errors.total",
		metric.WithDescription("Total number of failed record service operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create error counter: %w", err)
	}

	resultsCount, err := meter.Int64Histogram(
		"record.results.count",
		metric.WithDescription("Number of records returned by read operations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create results count histogram: %w", err)
	}

	return &ServiceMetrics{
		operationDuration: operationDuration,
		operationCounter:  operationCounter,
		errorCounter:      errorCounter,
		resultsCount:      resultsCount,
	}, nil
}

// RecordOperation records one service operation with its duration and outcome.
func (m *ServiceMetrics) RecordOperation(ctx context.Context, operation, entity string, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("operation", operation),
		attribute.String("entity", entity),
		attribute.Bool("failed", failed),
	}
	m.operationDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	m.operationCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
	if failed {
		m.errorCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("operation", operation),
			attribute.String("entity", entity),
		))
	}
}

// RecordResultsCount records how many records a read operation returned.
func (m *ServiceMetrics) RecordResultsCount(ctx context.Context, operation, entity string, count int64) {
	if m == nil {
		return
	}
	m.resultsCount.Record(ctx, count, metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("entity", entity),
	))
}
