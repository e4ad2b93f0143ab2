// Package context provides internal context helpers for job execution.
//
// This package is internal and should not be imported directly.
// It carries the claim transaction, queue name and worker id into handlers.
package context
