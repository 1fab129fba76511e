// internal/common/observability/observability.go
package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
	tracer         trace.Tracer
	opCounter      otelmetric.Int64Counter
	opDuration     otelmetric.Float64Histogram
}

// New wires the OpenTelemetry meter provider to the Prometheus exporter and,
// when jaegerEndpoint is set, a tracer provider exporting to Jaeger. Failures
// degrade to no-op instruments and are returned for logging.
func New(serviceName, jaegerEndpoint string) (*Observability, error) {
	o := &Observability{tracer: otel.Tracer(serviceName)}

	var errs []error
	if err := o.initMetrics(serviceName); err != nil {
		errs = append(errs, err)
	}
	if jaegerEndpoint != "" {
		if err := o.initTracing(serviceName, jaegerEndpoint); err != nil {
			errs = append(errs, err)
		}
	}
	return o, errors.Join(errs...)
}

// NewNoop returns an instance whose methods do nothing. Used in tests.
func NewNoop() *Observability {
	return &Observability{tracer: otel.Tracer("noop")}
}

// StartSpan starts a span on the service tracer.
func (o *Observability) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := otel.Tracer("loan-origination")
	if o != nil && o.tracer != nil {
		tracer = o.tracer
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (o *Observability) Shutdown() {
	if o == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if o.tracerProvider != nil {
		_ = o.tracerProvider.Shutdown(ctx)
	}
	if o.meterProvider != nil {
		_ = o.meterProvider.Shutdown(ctx)
	}
}
