// Package jobctx provides public access to job context for handlers.
package jobctx

import (
	"context"
	"time"

	"gorm.io/gorm"

	intctx "github.com/jdziat/simple-pg-queue/pkg/internal/context"
)

// TxFromContext returns the claim transaction, or nil if not in a job handler.
// Writes made through it are atomic with the claim: they commit only if the
// handler succeeds.
func TxFromContext(ctx context.Context) *gorm.DB {
	jc := intctx.GetJobContext(ctx)
	if jc == nil {
		return nil
	}
	return jc.Tx
}

// QueueFromContext returns the queue the current job was claimed from, or
// empty string if not in a job handler.
func QueueFromContext(ctx context.Context) string {
	jc := intctx.GetJobContext(ctx)
	if jc == nil {
		return ""
	}
	return jc.Queue
}

// WorkerIDFromContext returns the id of the worker running the handler.
func WorkerIDFromContext(ctx context.Context) string {
	jc := intctx.GetJobContext(ctx)
	if jc == nil {
		return ""
	}
	return jc.WorkerID
}

// ClaimedAtFromContext returns when the current job was claimed.
func ClaimedAtFromContext(ctx context.Context) (time.Time, bool) {
	jc := intctx.GetJobContext(ctx)
	if jc == nil {
		return time.Time{}, false
	}
	return jc.ClaimedAt, true
}
