package worker

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jdziat/simple-pg-queue/pkg/core"
)

// Claim outcomes recorded on the pgqueue.claims counter.
const (
	outcomeEmpty     = "empty"
	outcomeCompleted = "completed"
	outcomeFailed    = "failed"
	outcomeError     = "error"
)

type telemetry struct {
	tracer   trace.Tracer
	claims   metric.Int64Counter
	duration metric.Float64Histogram
	inflight metric.Int64UpDownCounter
}

func newTelemetry(tracer trace.Tracer, meter metric.Meter) *telemetry {
	if meter == nil {
		meter = otel.Meter(core.InstrumentationName)
	}

	// On error the API returns noop instruments.
	claims, _ := meter.Int64Counter(
		"pgqueue.claims",
		metric.WithDescription("Claim transactions by outcome"),
		metric.WithUnit("{claim}"),
	)
	duration, _ := meter.Float64Histogram(
		"pgqueue.handler.duration",
		metric.WithDescription("Handler execution time in seconds"),
		metric.WithUnit("s"),
	)
	inflight, _ := meter.Int64UpDownCounter(
		"pgqueue.inflight",
		metric.WithDescription("Claim transactions currently open"),
		metric.WithUnit("{claim}"),
	)

	return &telemetry{
		tracer:   tracer,
		claims:   claims,
		duration: duration,
		inflight: inflight,
	}
}
