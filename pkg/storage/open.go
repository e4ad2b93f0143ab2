package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq" // registers the "postgres" database/sql driver
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/jdziat/simple-pg-queue/pkg/core"
)

// Driver names accepted by WithDriver.
const (
	DriverPgx = "pgx"
	DriverPq  = "postgres"
)

type openConfig struct {
	driver      string
	pool        []PoolOption
	logger      logger.Interface
	pingTimeout time.Duration
}

// OpenOption configures Open.
type OpenOption interface {
	applyOpen(*openConfig)
}

type openOptionFunc func(*openConfig)

func (f openOptionFunc) applyOpen(c *openConfig) { f(c) }

// WithDriver selects the database/sql driver for PostgreSQL DSNs:
// DriverPgx (default) or DriverPq.
func WithDriver(name string) OpenOption {
	return openOptionFunc(func(c *openConfig) {
		c.driver = name
	})
}

// WithPool applies pool options to the opened connection.
func WithPool(opts ...PoolOption) OpenOption {
	return openOptionFunc(func(c *openConfig) {
		c.pool = append(c.pool, opts...)
	})
}

// WithGormLogger replaces the GORM statement logger.
func WithGormLogger(l logger.Interface) OpenOption {
	return openOptionFunc(func(c *openConfig) {
		c.logger = l
	})
}

// WithPingTimeout bounds the connectivity check done by Open.
// Zero skips the check.
func WithPingTimeout(d time.Duration) OpenOption {
	return openOptionFunc(func(c *openConfig) {
		c.pingTimeout = d
	})
}

// DetectDialect infers the dialect from a connection string.
func DetectDialect(dsn string) (Dialect, error) {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return Postgres, nil
	case strings.Contains(lower, "host=") || strings.Contains(lower, "dbname="):
		return Postgres, nil
	case strings.HasPrefix(lower, "file:"), strings.HasPrefix(lower, ":memory:"):
		return SQLite, nil
	}

	path := lower
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	for _, ext := range []string{".db", ".sqlite", ".sqlite3"} {
		if strings.HasSuffix(path, ext) {
			return SQLite, nil
		}
	}
	return "", fmt.Errorf("%w: %q", core.ErrUnsupportedDSN, redact(dsn))
}

// Open connects to the database named by dsn, applies pool settings and
// verifies connectivity. A private in-memory SQLite database is pinned to a
// single connection, since each new connection would see an empty database.
func Open(dsn string, opts ...OpenOption) (*gorm.DB, error) {
	cfg := openConfig{
		driver:      DriverPgx,
		logger:      logger.Default.LogMode(logger.Silent),
		pingTimeout: 5 * time.Second,
	}
	for _, opt := range opts {
		opt.applyOpen(&cfg)
	}
	if cfg.driver == "" {
		cfg.driver = DriverPgx
	}

	dialect, err := DetectDialect(dsn)
	if err != nil {
		return nil, err
	}

	var dialector gorm.Dialector
	switch dialect {
	case Postgres:
		if cfg.driver != DriverPgx && cfg.driver != DriverPq {
			return nil, fmt.Errorf("pgqueue: unknown postgres driver %q", cfg.driver)
		}
		dialector = postgres.New(postgres.Config{DriverName: cfg.driver, DSN: dsn})
	case SQLite:
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: cfg.logger})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	pool := cfg.pool
	if dialect == SQLite && privateMemory(dsn) {
		pool = append(pool, singleConn())
	}
	if err := ConfigurePool(db, pool...); err != nil {
		closeDB(db)
		return nil, err
	}

	if cfg.pingTimeout > 0 {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), cfg.pingTimeout)
		defer cancel()
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to ping %s database: %w", dialect, err)
		}
	}

	return db, nil
}

// privateMemory reports whether dsn names an in-memory SQLite database that
// is private to the connection that opened it.
func privateMemory(dsn string) bool {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	path, query, _ := strings.Cut(lower, "?")
	path = strings.TrimPrefix(path, "file:")
	if path != ":memory:" && !strings.Contains(query, "mode=memory") {
		return false
	}
	return !strings.Contains(query, "cache=shared")
}

// singleConn pins the pool to one connection that is never recycled, so
// every transaction sees the same private database.
func singleConn() PoolOption {
	return poolOptionFunc(func(c *PoolConfig) {
		c.MaxOpenConns = 1
		c.MaxIdleConns = 1
		c.ConnMaxLifetime = 0
		c.ConnMaxIdleTime = 0
	})
}

// Close closes the pool behind db.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func closeDB(db *gorm.DB) {
	_ = Close(db)
}

// redact hides the password of a URL-style DSN.
func redact(dsn string) string {
	at := strings.LastIndexByte(dsn, '@')
	scheme := strings.Index(dsn, "://")
	if at < 0 || scheme < 0 || at < scheme {
		return dsn
	}
	userinfo := dsn[scheme+3 : at]
	if i := strings.IndexByte(userinfo, ':'); i >= 0 {
		return dsn[:scheme+3] + userinfo[:i] + ":***" + dsn[at:]
	}
	return dsn
}
