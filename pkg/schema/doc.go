// Package schema bootstraps the job table through an append-only migration
// ledger.
//
// Each migration has a unique name and runs at most once per database: the
// ledger row is inserted in the same transaction as the migration's
// statements, before them, so a concurrent bootstrapper either waits on the
// ledger's primary key or finds the row already committed. Migrations run in
// declared order and a failure aborts the bootstrap.
package schema
