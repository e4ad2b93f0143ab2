// Package storage provides the relational store behind the queue.
//
// This package includes:
//   - Open: connects to PostgreSQL (pgx or lib/pq) or SQLite from a DSN
//   - Pool options bounding the number of concurrent transactions
//   - Store: the enqueue insert, the locking-skip claim and the size count
//   - Error classification across the supported drivers
//
// Most users should import the root package github.com/jdziat/simple-pg-queue
// which re-exports Open and the pool options.
package storage
