// Package pgqueue provides a durable job queue on a transactional SQL
// database, with no broker in between.
//
// Items live as rows in one table. A worker claims an item by deleting its
// row inside a transaction and runs the handler on that same transaction,
// so the claim commits only if the handler succeeds. On PostgreSQL claims
// use FOR UPDATE SKIP LOCKED and any number of processes may consume one
// queue; SQLite is supported for single-host use and tests.
//
// This is the main package users should import. It re-exports the public
// types from the pkg/ packages for a clean API surface.
//
// Basic usage:
//
//	db, _ := pgqueue.Open("postgres://localhost/app")
//	q, _ := pgqueue.New(db)
//
//	w, _ := pgqueue.NewWorker(q, func(ctx context.Context, tx *gorm.DB, email Email) error {
//	    return send(ctx, email)
//	}, pgqueue.WorkerQueue("emails"), pgqueue.Concurrency(20))
//	w.Start(ctx)
//	defer w.Stop(ctx)
//
//	q.Enqueue(ctx, "emails", Email{To: "user@example.com"})
package pgqueue

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/jdziat/simple-pg-queue/pkg/core"
	"github.com/jdziat/simple-pg-queue/pkg/jobctx"
	"github.com/jdziat/simple-pg-queue/pkg/queue"
	"github.com/jdziat/simple-pg-queue/pkg/schema"
	"github.com/jdziat/simple-pg-queue/pkg/security"
	"github.com/jdziat/simple-pg-queue/pkg/storage"
	"github.com/jdziat/simple-pg-queue/pkg/worker"
)

type (
	// Job is a queued row.
	Job = core.Job

	// Payload is a serialized JSON document.
	Payload = core.Payload

	// TxHook computes a payload inside the enqueue transaction.
	TxHook = core.TxHook

	// Performer is implemented by handlers that want the raw payload.
	Performer = core.Performer

	// Event is the interface for all queue events.
	Event = core.Event

	// JobEnqueued is emitted after an enqueue commits.
	JobEnqueued = core.JobEnqueued

	// JobCompleted is emitted after a claim commits.
	JobCompleted = core.JobCompleted

	// JobFailed is emitted when a handler fails and the item is redelivered.
	JobFailed = core.JobFailed

	// StorageFailed is emitted when a background store operation fails.
	StorageFailed = core.StorageFailed

	// WorkerStarted is emitted when a worker starts.
	WorkerStarted = core.WorkerStarted

	// WorkerStopped is emitted when a worker stops.
	WorkerStopped = core.WorkerStopped

	// HandlerError wraps a handler failure.
	HandlerError = core.HandlerError

	// OpError reports a failed background store operation.
	OpError = core.OpError

	// Queue enqueues items and owns the schema.
	Queue = queue.Queue

	// Option configures a Queue.
	Option = queue.Option

	// Worker claims and processes items of one queue.
	Worker = worker.Worker

	// WorkerOption configures a Worker.
	WorkerOption = worker.WorkerOption

	// WorkerConfig holds worker configuration.
	WorkerConfig = worker.WorkerConfig

	// Migration is one named schema change.
	Migration = schema.Migration

	// MigrationStatus reports whether a migration is applied.
	MigrationStatus = schema.Status

	// OpenOption configures Open.
	OpenOption = storage.OpenOption

	// PoolOption configures the connection pool.
	PoolOption = storage.PoolOption

	// PoolConfig holds connection pool configuration.
	PoolConfig = storage.PoolConfig
)

// Default names
const (
	DefaultTable       = core.DefaultTable
	DefaultLedgerTable = core.DefaultLedgerTable
	DefaultQueue       = core.DefaultQueue
)

// Security limits
const (
	MaxQueueNameLength = security.MaxQueueNameLength
	MaxPayloadSize     = security.MaxPayloadSize
	MaxConcurrency     = security.MaxConcurrency
	MinPollInterval    = security.MinPollInterval
)

// Error variables
var (
	ErrInvalidQueueName     = core.ErrInvalidQueueName
	ErrQueueNameTooLong     = core.ErrQueueNameTooLong
	ErrInvalidTableName     = core.ErrInvalidTableName
	ErrPollIntervalTooShort = core.ErrPollIntervalTooShort
	ErrPayloadTooLarge      = core.ErrPayloadTooLarge
	ErrNullPayload          = core.ErrNullPayload
	ErrNilHandler           = core.ErrNilHandler
	ErrNilDB                = core.ErrNilDB
	ErrNilQueue             = core.ErrNilQueue
	ErrUnknownMigration     = core.ErrUnknownMigration
	ErrDuplicateMigration   = core.ErrDuplicateMigration
	ErrWorkerRunning        = core.ErrWorkerRunning
	ErrWorkerStopped        = core.ErrWorkerStopped
	ErrUnsupportedDSN       = core.ErrUnsupportedDSN
)

// Open connects to a PostgreSQL or SQLite database.
func Open(dsn string, opts ...OpenOption) (*gorm.DB, error) {
	return storage.Open(dsn, opts...)
}

// Close closes the connection pool behind db.
func Close(db *gorm.DB) error {
	return storage.Close(db)
}

// New creates a Queue over db.
func New(db *gorm.DB, opts ...Option) (*Queue, error) {
	return queue.New(db, opts...)
}

// NewWorker creates a worker for q that runs fn for each item.
func NewWorker(q *Queue, fn any, opts ...WorkerOption) (*Worker, error) {
	return worker.NewWorker(q, fn, opts...)
}

// ValidateQueueName validates a queue name.
func ValidateQueueName(name string) error {
	return security.ValidateQueueName(name)
}

// Open options

// WithDriver selects the PostgreSQL driver: "pgx" (default) or "postgres" (lib/pq).
func WithDriver(name string) OpenOption {
	return storage.WithDriver(name)
}

// WithPool applies pool options to the opened connection.
func WithPool(opts ...PoolOption) OpenOption {
	return storage.WithPool(opts...)
}

// MaxOpenConns sets the transaction concurrency ceiling.
func MaxOpenConns(n int) PoolOption {
	return storage.MaxOpenConns(n)
}

// MaxIdleConns sets the maximum number of idle connections.
func MaxIdleConns(n int) PoolOption {
	return storage.MaxIdleConns(n)
}

// Queue options

// Table sets the job table name.
func Table(name string) Option {
	return queue.Table(name)
}

// LedgerTable sets the migration ledger table name.
func LedgerTable(name string) Option {
	return queue.LedgerTable(name)
}

// WithMigrations appends application migrations after the built-in ones.
func WithMigrations(ms ...Migration) Option {
	return queue.WithMigrations(ms...)
}

// WithLogger sets the queue logger.
func WithLogger(l *slog.Logger) Option {
	return queue.WithLogger(l)
}

// WithTracer sets the queue tracer.
func WithTracer(t trace.Tracer) Option {
	return queue.WithTracer(t)
}

// WithMeter sets the queue meter.
func WithMeter(m metric.Meter) Option {
	return queue.WithMeter(m)
}

// Worker option functions

// WorkerQueue sets the queue a worker processes.
func WorkerQueue(name string) WorkerOption {
	return worker.WorkerQueue(name)
}

// Concurrency sets the maximum number of in-flight claims.
func Concurrency(n int) WorkerOption {
	return worker.Concurrency(n)
}

// PollInterval sets the idle poll interval.
func PollInterval(d time.Duration) WorkerOption {
	return worker.PollInterval(d)
}

// DrainPause sets the pause between claim bursts while items remain.
func DrainPause(d time.Duration) WorkerOption {
	return worker.DrainPause(d)
}

// FIFO enables lowest-id-first claiming.
func FIFO(enabled bool) WorkerOption {
	return worker.FIFO(enabled)
}

// WithWorkerID sets the worker id.
func WithWorkerID(id string) WorkerOption {
	return worker.WithWorkerID(id)
}

// OwnsDB makes Stop close the connection pool.
func OwnsDB(owns bool) WorkerOption {
	return worker.OwnsDB(owns)
}

// Context accessors

// TxFromContext returns the claim transaction inside a handler.
func TxFromContext(ctx context.Context) *gorm.DB {
	return jobctx.TxFromContext(ctx)
}

// QueueFromContext returns the queue name inside a handler.
func QueueFromContext(ctx context.Context) string {
	return jobctx.QueueFromContext(ctx)
}
