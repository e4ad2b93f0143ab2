package storage

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/jdziat/simple-pg-queue/pkg/core"
	"github.com/jdziat/simple-pg-queue/pkg/security"
)

// Dialect identifies the SQL flavour of a connection.
type Dialect string

// Supported dialects. Values match gorm.Dialector.Name().
const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// DialectOf returns the dialect of db.
func DialectOf(db *gorm.DB) Dialect {
	return Dialect(db.Dialector.Name())
}

// SupportsSkipLocked reports whether the dialect has row-level locking reads.
// SQLite serializes writers instead, which gives the same exclusivity.
func (d Dialect) SupportsSkipLocked() bool {
	return d == Postgres
}

// Store runs the job table statements. Statement text is built once from the
// quoted table name; queue names and payloads are always bound parameters.
type Store struct {
	db      *gorm.DB
	table   string
	dialect Dialect

	claimAny  string
	claimFIFO string
}

// New creates a Store for the job table named table.
func New(db *gorm.DB, table string) (*Store, error) {
	if db == nil {
		return nil, core.ErrNilDB
	}
	if err := security.ValidateTableName(table); err != nil {
		return nil, err
	}

	s := &Store{
		db:      db,
		table:   table,
		dialect: DialectOf(db),
	}
	quoted := QuoteIdent(db, table)
	s.claimAny = claimStatement(quoted, s.dialect, false)
	s.claimFIFO = claimStatement(quoted, s.dialect, true)
	return s, nil
}

// claimStatement selects at most one row for the queue, skipping rows locked
// by other claimants, and deletes it in the same statement.
func claimStatement(table string, d Dialect, fifo bool) string {
	sub := "SELECT id FROM " + table + " WHERE queue = ?"
	if fifo {
		sub += " ORDER BY id"
	}
	sub += " LIMIT 1"
	if d.SupportsSkipLocked() {
		sub += " FOR UPDATE SKIP LOCKED"
	}
	return "DELETE FROM " + table + " WHERE id = (" + sub + ") RETURNING id, queue, data"
}

// QuoteIdent quotes a possibly schema-qualified identifier for db's dialect.
func QuoteIdent(db *gorm.DB, name string) string {
	stmt := &gorm.Statement{DB: db}
	return stmt.Quote(name)
}

// DB returns the underlying connection.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Table returns the job table name.
func (s *Store) Table() string {
	return s.table
}

// Dialect returns the connection dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Insert adds one row to the job table inside tx.
func (s *Store) Insert(tx *gorm.DB, queue string, payload core.Payload) error {
	return tx.Table(s.table).Create(&core.Job{Queue: queue, Data: payload}).Error
}

// Claim removes and returns one row of queue inside tx, or nil when no
// unlocked row exists. The row stays deleted only if tx commits.
func (s *Store) Claim(tx *gorm.DB, queue string, fifo bool) (*core.Job, error) {
	sql := s.claimAny
	if fifo {
		sql = s.claimFIFO
	}

	var job core.Job
	result := tx.Raw(sql, queue).Scan(&job)
	if result.Error != nil {
		return nil, result.Error
	}
	if result.RowsAffected == 0 {
		return nil, nil
	}
	return &job, nil
}

// Count returns the exact number of rows waiting in queue.
func (s *Store) Count(ctx context.Context, queue string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Table(s.table).Where("queue = ?", queue).Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", s.table, err)
	}
	return n, nil
}

// Depths returns the number of waiting rows per queue name. Queues with no
// rows are absent.
func (s *Store) Depths(ctx context.Context) (map[string]int64, error) {
	var rows []struct {
		Queue string
		N     int64
	}
	err := s.db.WithContext(ctx).Table(s.table).
		Select("queue, COUNT(*) AS n").
		Group("queue").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("depths %s: %w", s.table, err)
	}

	depths := make(map[string]int64, len(rows))
	for _, r := range rows {
		depths[r.Queue] = r.N
	}
	return depths, nil
}

// Ping verifies that a connection can be acquired.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
