// Package queue provides the Queue type: the enqueue side of the job queue.
//
// This package includes:
//   - Queue: enqueues payloads or transactional hooks and owns the schema
//   - Option: configuration for table names, logging and telemetry
//   - Error callbacks and event subscription for monitoring
//
// Most users should import the root package github.com/jdziat/simple-pg-queue
// which re-exports Queue and all option functions.
package queue
