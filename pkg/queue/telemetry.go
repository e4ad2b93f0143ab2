package queue

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jdziat/simple-pg-queue/pkg/core"
)

type telemetry struct {
	tracer   trace.Tracer
	enqueued metric.Int64Counter
}

func newTelemetry(o *Options) *telemetry {
	tracer := o.Tracer
	if tracer == nil {
		tracer = otel.Tracer(core.InstrumentationName)
	}
	meter := o.Meter
	if meter == nil {
		meter = otel.Meter(core.InstrumentationName)
	}

	// On error the API returns a noop instrument.
	enqueued, _ := meter.Int64Counter(
		"pgqueue.enqueued",
		metric.WithDescription("Items committed to a queue"),
		metric.WithUnit("{item}"),
	)

	return &telemetry{tracer: tracer, enqueued: enqueued}
}
