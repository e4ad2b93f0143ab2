package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/jdziat/simple-pg-queue/pkg/core"
	intctx "github.com/jdziat/simple-pg-queue/pkg/internal/context"
)

// dequeueOne runs one claim transaction. The row is deleted and the handler
// runs on the same transaction; the delete commits only if the handler
// succeeds. Failures are reported to the queue's observers, and the error
// is also returned to the poll loop so it does not zero the estimate.
func (w *Worker) dequeueOne(ctx context.Context) (claimed int, err error) {
	ctx, span := w.telemetry.tracer.Start(ctx, "pgqueue.claim",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("pgqueue.queue", w.config.Queue),
			attribute.String("pgqueue.worker_id", w.config.WorkerID),
		),
	)
	outcome := outcomeEmpty
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("pgqueue.outcome", outcome))
		span.End()
		w.telemetry.claims.Add(ctx, 1, metric.WithAttributes(
			attribute.String("queue", w.config.Queue),
			attribute.String("outcome", outcome),
		))
	}()

	var (
		handlerErr error
		started    time.Time
	)
	txErr := w.queue.DB().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := w.queue.Store().Claim(tx, w.config.Queue, w.config.FIFO)
		if err != nil {
			return &core.OpError{Op: "claim", Queue: w.config.Queue, Err: err}
		}
		if job == nil {
			return nil
		}
		claimed = 1
		span.SetAttributes(attribute.Int64("pgqueue.job_id", job.ID))

		started = time.Now()
		handlerErr = w.execute(ctx, tx, job, started)
		w.telemetry.duration.Record(ctx, time.Since(started).Seconds(),
			metric.WithAttributes(attribute.String("queue", w.config.Queue)))
		return handlerErr
	})

	switch {
	case txErr == nil:
		if claimed == 1 {
			outcome = outcomeCompleted
			w.queue.Emit(&core.JobCompleted{
				Queue:     w.config.Queue,
				WorkerID:  w.config.WorkerID,
				Duration:  time.Since(started),
				Timestamp: time.Now(),
			})
		}
		return claimed, nil

	case handlerErr != nil:
		outcome = outcomeFailed
		herr := &core.HandlerError{Queue: w.config.Queue, Err: handlerErr}
		w.logger.Warn("handler failed, item will be redelivered", "error", handlerErr)
		w.queue.Emit(&core.JobFailed{Queue: w.config.Queue, WorkerID: w.config.WorkerID, Error: herr, Timestamp: time.Now()})
		w.queue.ReportError(ctx, herr)
		return claimed, herr

	default:
		outcome = outcomeError
		var opErr *core.OpError
		if !errors.As(txErr, &opErr) {
			// Transaction begin or commit failed.
			op := "commit"
			if claimed == 0 {
				op = "begin"
			}
			opErr = &core.OpError{Op: op, Queue: w.config.Queue, Err: txErr}
		}
		w.report(ctx, opErr)
		return 0, opErr
	}
}

func (w *Worker) execute(ctx context.Context, tx *gorm.DB, job *core.Job, claimedAt time.Time) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()

	jobCtx := intctx.WithJobContext(ctx, &intctx.JobContext{
		Tx:        tx,
		Queue:     w.config.Queue,
		WorkerID:  w.config.WorkerID,
		ClaimedAt: claimedAt,
	})
	return w.handler.Execute(jobCtx, tx, job.Data)
}

// storageFailed reports a failed store operation to observers.
func (w *Worker) storageFailed(ctx context.Context, op string, err error) {
	w.report(ctx, &core.OpError{Op: op, Queue: w.config.Queue, Err: err})
}

func (w *Worker) report(ctx context.Context, opErr *core.OpError) {
	w.logger.Error("store operation failed", "op", opErr.Op, "error", opErr.Err)
	w.queue.Emit(&core.StorageFailed{
		Op:        opErr.Op,
		Queue:     opErr.Queue,
		WorkerID:  w.config.WorkerID,
		Error:     opErr.Err,
		Timestamp: time.Now(),
	})
	w.queue.ReportError(ctx, opErr)
}
