package core

import (
	"errors"
	"fmt"
)

// Validation errors
var (
	ErrInvalidQueueName     = errors.New("pgqueue: invalid queue name")
	ErrQueueNameTooLong     = errors.New("pgqueue: queue name too long")
	ErrInvalidTableName     = errors.New("pgqueue: invalid table name")
	ErrPollIntervalTooShort = errors.New("pgqueue: poll interval below minimum")
	ErrPayloadTooLarge      = errors.New("pgqueue: payload exceeds size limit")
	ErrNullPayload          = errors.New("pgqueue: payload is null")
	ErrNilHandler           = errors.New("pgqueue: handler is nil")
	ErrNilDB                = errors.New("pgqueue: database is nil")
	ErrNilQueue             = errors.New("pgqueue: queue is nil")
)

// Schema errors
var (
	ErrUnknownMigration   = errors.New("pgqueue: ledger contains a migration with no known definition")
	ErrDuplicateMigration = errors.New("pgqueue: duplicate migration name")
)

// Lifecycle errors
var (
	ErrWorkerRunning = errors.New("pgqueue: worker already running")
	ErrWorkerStopped = errors.New("pgqueue: worker has been stopped")
)

// ErrUnsupportedDSN is returned by storage.Open when no dialect matches.
var ErrUnsupportedDSN = errors.New("pgqueue: unsupported connection string")

// HandlerError wraps an error returned (or a panic raised) by a handler.
// The claim transaction was rolled back, so the item is visible again.
type HandlerError struct {
	Queue string
	Err   error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("pgqueue: handler for queue %q: %v", e.Queue, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// OpError reports a failed store operation (estimate, claim, commit) that
// happened outside the caller's control flow.
type OpError struct {
	Op    string
	Queue string
	Err   error
}

func (e *OpError) Error() string {
	return fmt.Sprintf("pgqueue: %s on queue %q: %v", e.Op, e.Queue, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}
