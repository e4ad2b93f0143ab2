package context

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// JobContextKey is the key for storing job context in context.Context.
type JobContextKey struct{}

// JobContext describes the claim a handler is running inside.
type JobContext struct {
	// Tx is the claim transaction. Writes through it commit or roll back
	// together with the claim.
	Tx       *gorm.DB
	Queue    string
	WorkerID string
	// ClaimedAt is when the row was deleted by the claim statement.
	ClaimedAt time.Time
}

// GetJobContext retrieves the job context from a context.Context.
func GetJobContext(ctx context.Context) *JobContext {
	if jc, ok := ctx.Value(JobContextKey{}).(*JobContext); ok {
		return jc
	}
	return nil
}

// WithJobContext adds job context to a context.Context.
func WithJobContext(ctx context.Context, jc *JobContext) context.Context {
	return context.WithValue(ctx, JobContextKey{}, jc)
}
