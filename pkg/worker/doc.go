// Package worker provides the Worker type, the polling consumer of one queue.
//
// This package includes:
//   - Worker: claims items and runs a handler inside each claim transaction
//   - WorkerOption: configuration options for workers
//   - a throttled queue size estimate that drives dispatch
//
// Most users should import the root package github.com/jdziat/simple-pg-queue
// which re-exports NewWorker and its options.
package worker
