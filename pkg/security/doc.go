// Package security provides validation and limits for the queue package.
//
// This package includes:
//   - Input validation for queue names and table names
//   - The poll interval floor and payload size limit
//   - Clamping of worker concurrency to safe bounds
//
// Most users should import the root package github.com/jdziat/simple-pg-queue
// which re-exports these limits.
package security
