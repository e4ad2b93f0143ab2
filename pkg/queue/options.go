package queue

import (
	"log/slog"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jdziat/simple-pg-queue/pkg/core"
	"github.com/jdziat/simple-pg-queue/pkg/schema"
)

// Options holds configuration for a Queue.
type Options struct {
	Table       string
	LedgerTable string
	// Migrations run after the default migrations, in order.
	Migrations []schema.Migration
	Logger     *slog.Logger
	Tracer     trace.Tracer
	Meter      metric.Meter
}

// NewOptions creates Options with defaults.
func NewOptions() *Options {
	return &Options{
		Table:       core.DefaultTable,
		LedgerTable: core.DefaultLedgerTable,
	}
}

// Option modifies Options.
type Option interface {
	Apply(*Options)
}

type optionFunc func(*Options)

func (f optionFunc) Apply(o *Options) { f(o) }

// Table sets the job table name. A schema-qualified name such as
// "jobs.queue" is accepted on PostgreSQL.
func Table(name string) Option {
	return optionFunc(func(o *Options) {
		o.Table = name
	})
}

// LedgerTable sets the migration ledger table name.
func LedgerTable(name string) Option {
	return optionFunc(func(o *Options) {
		o.LedgerTable = name
	})
}

// WithMigrations appends application migrations to the default ones.
// Names must not collide with the defaults.
func WithMigrations(ms ...schema.Migration) Option {
	return optionFunc(func(o *Options) {
		o.Migrations = append(o.Migrations, ms...)
	})
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return optionFunc(func(o *Options) {
		o.Logger = l
	})
}

// WithTracer sets the OpenTelemetry tracer. Defaults to the global provider.
func WithTracer(t trace.Tracer) Option {
	return optionFunc(func(o *Options) {
		o.Tracer = t
	})
}

// WithMeter sets the OpenTelemetry meter. Defaults to the global provider.
func WithMeter(m metric.Meter) Option {
	return optionFunc(func(o *Options) {
		o.Meter = m
	})
}
