package worker

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jdziat/simple-pg-queue/pkg/core"
	"github.com/jdziat/simple-pg-queue/pkg/security"
)

// Default values.
const (
	DefaultConcurrency      = 10
	DefaultPollInterval     = 100 * time.Millisecond
	DefaultDrainPause       = 10 * time.Millisecond
	DefaultEstimateInterval = 100 * time.Millisecond
)

// WorkerOption configures a Worker.
type WorkerOption interface {
	ApplyWorker(*WorkerConfig)
}

type workerOptionFunc func(*WorkerConfig)

func (f workerOptionFunc) ApplyWorker(c *WorkerConfig) { f(c) }

// WorkerConfig holds worker configuration.
type WorkerConfig struct {
	// Queue is the queue name this worker claims from.
	Queue string
	// Concurrency is the maximum number of claim transactions in flight.
	Concurrency int
	// PollInterval is the pause after the queue is found empty.
	PollInterval time.Duration
	// DrainPause is the pause between claim bursts while items remain.
	DrainPause time.Duration
	// EstimateInterval bounds how often the queue size is counted.
	EstimateInterval time.Duration
	// FIFO claims the lowest id first.
	FIFO     bool
	WorkerID string
	// OwnsDB makes Stop close the connection pool.
	OwnsDB bool
	Logger *slog.Logger
	Tracer trace.Tracer
	Meter  metric.Meter
}

// DefaultWorkerConfig returns the defaults applied before options.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		Queue:            core.DefaultQueue,
		Concurrency:      DefaultConcurrency,
		PollInterval:     DefaultPollInterval,
		DrainPause:       DefaultDrainPause,
		EstimateInterval: DefaultEstimateInterval,
	}
}

// WorkerQueue sets the queue name to process.
func WorkerQueue(name string) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.Queue = name
	})
}

// Concurrency sets the maximum number of in-flight claims.
// Values are clamped to [1, MaxConcurrency].
func Concurrency(n int) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.Concurrency = security.ClampConcurrency(n)
	})
}

// PollInterval sets the idle poll interval. Values below
// security.MinPollInterval make NewWorker fail.
func PollInterval(d time.Duration) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.PollInterval = d
	})
}

// DrainPause sets the short pause used while the queue is non-empty.
func DrainPause(d time.Duration) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.DrainPause = d
	})
}

// EstimateInterval sets how often the queue size estimate may be refreshed.
func EstimateInterval(d time.Duration) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.EstimateInterval = d
	})
}

// FIFO enables lowest-id-first claiming.
func FIFO(enabled bool) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.FIFO = enabled
	})
}

// WithWorkerID sets the worker id reported in logs and events.
func WithWorkerID(id string) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.WorkerID = id
	})
}

// OwnsDB makes Stop close the queue's connection pool once in-flight claims
// have finished.
func OwnsDB(owns bool) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.OwnsDB = owns
	})
}

// WithLogger sets the worker logger. Defaults to the queue's logger.
func WithLogger(l *slog.Logger) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.Logger = l
	})
}

// WithTracer sets the tracer. Defaults to the queue's tracer.
func WithTracer(t trace.Tracer) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.Tracer = t
	})
}

// WithMeter sets the meter. Defaults to the global provider.
func WithMeter(m metric.Meter) WorkerOption {
	return workerOptionFunc(func(c *WorkerConfig) {
		c.Meter = m
	})
}
