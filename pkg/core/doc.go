// Package core provides the fundamental types and interfaces for the queue.
//
// This package contains:
//   - Job and MigrationRecord row models with GORM annotations
//   - Payload, the JSON column type shared by every dialect
//   - Event types for queue monitoring
//   - Error types reported by enqueue, claim and schema bootstrap
//
// Most users should import the root package github.com/jdziat/simple-pg-queue
// instead of this package directly.
package core
