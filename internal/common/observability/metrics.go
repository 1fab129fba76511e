// internal/common/observability/metrics.go
package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

func (o *Observability) initMetrics(serviceName string) error {
	exporter, err := prometheus.New()
	if err != nil {
		return err
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	otel.SetMeterProvider(provider)
	meter := provider.Meter(serviceName)

	opCounter, err := meter.Int64Counter(
		"operations.processed",
		otelmetric.WithDescription("Number of domain operations processed"),
	)
	if err != nil {
		return err
	}

	opDuration, err := meter.Float64Histogram(
		"operations.duration",
		otelmetric.WithDescription("Domain operation duration"),
		otelmetric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	o.meterProvider = provider
	o.opCounter = opCounter
	o.opDuration = opDuration
	return nil
}

// RecordOperation counts one operation of a component and records its duration.
func (o *Observability) RecordOperation(ctx context.Context, component, operation, status string, d time.Duration) {
	if o == nil || o.opCounter == nil {
		return
	}
	attrs := otelmetric.WithAttributes(
		attribute.String("component", component),
		attribute.String("operation", operation),
		attribute.String("status", status),
	)
	o.opCounter.Add(ctx, 1, attrs)
	o.opDuration.Record(ctx, float64(d.Milliseconds()), attrs)
}
