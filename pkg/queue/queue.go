package queue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/jdziat/simple-pg-queue/pkg/core"
	"github.com/jdziat/simple-pg-queue/pkg/schema"
	"github.com/jdziat/simple-pg-queue/pkg/security"
	"github.com/jdziat/simple-pg-queue/pkg/storage"
)

// Queue enqueues items, owns the job table schema and fans out events and
// errors to subscribers. It is safe for concurrent use.
type Queue struct {
	store     *storage.Store
	migrator  *schema.Manager
	logger    *slog.Logger
	telemetry *telemetry

	mu        sync.RWMutex
	eventSubs []chan core.Event
	onError   []func(context.Context, error)
}

// New creates a Queue over db. Table names are validated here; nothing is
// sent to the database until Migrate or Enqueue is called.
func New(db *gorm.DB, opts ...Option) (*Queue, error) {
	o := NewOptions()
	for _, opt := range opts {
		opt.Apply(o)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}

	store, err := storage.New(db, o.Table)
	if err != nil {
		return nil, err
	}

	migrations := append(schema.DefaultMigrations(o.Table), o.Migrations...)
	migrator, err := schema.NewManager(db, o.LedgerTable, migrations, schema.WithLogger(o.Logger))
	if err != nil {
		return nil, err
	}

	return &Queue{
		store:     store,
		migrator:  migrator,
		logger:    o.Logger,
		telemetry: newTelemetry(o),
	}, nil
}

// Migrate creates the job table and applies pending migrations.
func (q *Queue) Migrate(ctx context.Context) error {
	return q.migrator.Ensure(ctx)
}

// MigrationStatus reports every known migration and whether it is applied.
func (q *Queue) MigrationStatus(ctx context.Context) ([]schema.Status, error) {
	return q.migrator.Status(ctx)
}

// Enqueue inserts one item into queueName. v is either the payload or a
// core.TxHook; a hook runs first in the same transaction and returns the
// payload, so its writes and the insert commit together. Any failure rolls
// the transaction back and is returned.
func (q *Queue) Enqueue(ctx context.Context, queueName string, v any) (err error) {
	ctx, span := q.telemetry.tracer.Start(ctx, "pgqueue.enqueue",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attribute.String("pgqueue.queue", queueName)),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := security.ValidateQueueName(queueName); err != nil {
		return fmt.Errorf("pgqueue: enqueue: %w", err)
	}

	err = q.store.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payload := v
		if hook, ok := asTxHook(v); ok {
			var err error
			if payload, err = hook(tx); err != nil {
				return err
			}
		}

		data, err := encode(payload)
		if err != nil {
			return err
		}
		return q.store.Insert(tx, queueName, data)
	})
	if err != nil {
		return fmt.Errorf("pgqueue: enqueue: %w", err)
	}

	q.telemetry.enqueued.Add(ctx, 1, metric.WithAttributes(attribute.String("queue", queueName)))
	q.Emit(&core.JobEnqueued{Queue: queueName, Timestamp: time.Now()})
	return nil
}

func asTxHook(v any) (core.TxHook, bool) {
	switch fn := v.(type) {
	case core.TxHook:
		return fn, fn != nil
	case func(*gorm.DB) (any, error):
		return fn, fn != nil
	}
	return nil, false
}

// encode serializes a payload. Raw JSON is passed through after validation.
func encode(v any) (core.Payload, error) {
	var data []byte
	switch p := v.(type) {
	case json.RawMessage:
		data = p
	case core.Payload:
		data = p
	default:
		var err error
		if data, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || !json.Valid(trimmed) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}
	if bytes.Equal(trimmed, []byte("null")) {
		return nil, core.ErrNullPayload
	}
	if err := security.ValidatePayloadSize(data); err != nil {
		return nil, err
	}
	return core.Payload(data), nil
}

// Size returns the exact number of items waiting in queueName.
func (q *Queue) Size(ctx context.Context, queueName string) (int64, error) {
	if err := security.ValidateQueueName(queueName); err != nil {
		return 0, err
	}
	return q.store.Count(ctx, queueName)
}

// Store returns the underlying job store.
func (q *Queue) Store() *storage.Store {
	return q.store
}

// DB returns the underlying connection.
func (q *Queue) DB() *gorm.DB {
	return q.store.DB()
}

// Logger returns the queue's logger.
func (q *Queue) Logger() *slog.Logger {
	return q.logger
}

// Tracer returns the queue's tracer.
func (q *Queue) Tracer() trace.Tracer {
	return q.telemetry.tracer
}

// OnError registers a callback for asynchronous failures: handler errors,
// claim statement errors and connection errors seen by workers. Callbacks
// run synchronously on the worker goroutine that saw the failure.
func (q *Queue) OnError(fn func(context.Context, error)) {
	q.mu.Lock()
	q.onError = append(q.onError, fn)
	q.mu.Unlock()
}

// ReportError calls all registered error callbacks.
func (q *Queue) ReportError(ctx context.Context, err error) {
	q.mu.RLock()
	hooks := make([]func(context.Context, error), len(q.onError))
	copy(hooks, q.onError)
	q.mu.RUnlock()

	for _, fn := range hooks {
		fn(ctx, err)
	}
}

// Events returns a channel for receiving queue events.
// The caller must call Unsubscribe when done to prevent resource leaks.
func (q *Queue) Events() <-chan core.Event {
	ch := make(chan core.Event, 100)
	q.mu.Lock()
	q.eventSubs = append(q.eventSubs, ch)
	q.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel created by Events().
// The channel is not closed; callers must stop reading before calling Unsubscribe.
// After Unsubscribe returns, no further events will be sent to the channel.
func (q *Queue) Unsubscribe(ch <-chan core.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, sub := range q.eventSubs {
		if sub == ch {
			q.eventSubs = append(q.eventSubs[:i], q.eventSubs[i+1:]...)
			return
		}
	}
}

// Emit emits an event to all subscribers.
func (q *Queue) Emit(e core.Event) {
	q.mu.RLock()
	// Copy so Events() can run while we iterate
	subs := make([]chan core.Event, len(q.eventSubs))
	copy(subs, q.eventSubs)
	q.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- e:
		default:
			// Drop if full so a slow consumer never blocks a worker
		}
	}
}
