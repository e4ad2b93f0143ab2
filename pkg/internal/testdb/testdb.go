// Package testdb opens databases for tests.
//
// Tests run against a SQLite file in t.TempDir() by default. When
// TEST_DATABASE_URL is set they run against that PostgreSQL database instead,
// each test using its own uniquely named tables.
package testdb

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/simple-pg-queue/pkg/storage"
)

// EnvURL names the variable holding a PostgreSQL test DSN.
const EnvURL = "TEST_DATABASE_URL"

// IsPostgres reports whether tests target PostgreSQL.
func IsPostgres() bool {
	return os.Getenv(EnvURL) != ""
}

// SkipIfNotPostgres skips the test when TEST_DATABASE_URL is not set.
func SkipIfNotPostgres(t testing.TB) {
	t.Helper()
	if !IsPostgres() {
		t.Skip("TEST_DATABASE_URL not set, skipping PostgreSQL-specific test")
	}
}

// DSN returns a connection string for a fresh test database.
func DSN(t testing.TB) string {
	t.Helper()
	if dsn := os.Getenv(EnvURL); dsn != "" {
		return dsn
	}
	path := filepath.Join(t.TempDir(), "queue.db")
	return "file:" + path + "?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate"
}

// Open returns a connection closed on test cleanup.
func Open(t testing.TB, opts ...storage.PoolOption) *gorm.DB {
	t.Helper()
	db, err := storage.Open(DSN(t),
		storage.WithPool(opts...),
		storage.WithGormLogger(logger.Default.LogMode(logger.Silent)),
	)
	require.NoError(t, err, "open test db")
	t.Cleanup(func() {
		_ = storage.Close(db)
	})
	return db
}

// Tables returns unique job and ledger table names for one test. On
// PostgreSQL the tables are dropped when the test finishes.
func Tables(t testing.TB, db *gorm.DB) (jobs, ledger string) {
	t.Helper()
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	jobs = "jobs_" + suffix
	ledger = "migrations_" + suffix
	if IsPostgres() {
		t.Cleanup(func() {
			db.Exec("DROP TABLE IF EXISTS " + storage.QuoteIdent(db, jobs))
			db.Exec("DROP TABLE IF EXISTS " + storage.QuoteIdent(db, ledger))
		})
	}
	return jobs, ledger
}
