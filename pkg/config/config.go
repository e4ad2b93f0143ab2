// Package config loads the YAML configuration used by the pgqueue command.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jdziat/simple-pg-queue/pkg/core"
	"github.com/jdziat/simple-pg-queue/pkg/security"
	"github.com/jdziat/simple-pg-queue/pkg/storage"
)

// EnvDatabaseURL overrides Database.URL when set.
const EnvDatabaseURL = "PGQUEUE_DATABASE_URL"

// Config represents the complete command configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Queue    QueueConfig    `yaml:"queue"`
	Worker   WorkerConfig   `yaml:"worker"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DatabaseConfig holds the connection string and pool limits.
type DatabaseConfig struct {
	URL string `yaml:"url"`
	// Driver selects the PostgreSQL driver: "pgx" (default) or "postgres" (lib/pq).
	Driver          string        `yaml:"driver"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
}

// QueueConfig names the tables and the queue.
type QueueConfig struct {
	Name        string `yaml:"name"`
	Table       string `yaml:"table"`
	LedgerTable string `yaml:"ledger_table"`
}

// WorkerConfig holds poller settings.
type WorkerConfig struct {
	Concurrency     int           `yaml:"concurrency"`
	PollInterval    time.Duration `yaml:"poll_interval"`
	DrainPause      time.Duration `yaml:"drain_pause"`
	FIFO            bool          `yaml:"fifo"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// Report is a cron spec for logging the queue depth, e.g. "@every 30s".
	Report string `yaml:"report"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	Output     string `yaml:"output"`
	TimeFormat string `yaml:"time_format"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	pool := storage.DefaultPoolConfig()
	return &Config{
		Database: DatabaseConfig{
			Driver:          storage.DriverPgx,
			MaxOpenConns:    pool.MaxOpenConns,
			MaxIdleConns:    pool.MaxIdleConns,
			ConnMaxLifetime: pool.ConnMaxLifetime,
			ConnMaxIdleTime: pool.ConnMaxIdleTime,
		},
		Queue: QueueConfig{
			Name:        core.DefaultQueue,
			Table:       core.DefaultTable,
			LedgerTable: core.DefaultLedgerTable,
		},
		Worker: WorkerConfig{
			Concurrency:     10,
			PollInterval:    100 * time.Millisecond,
			DrainPause:      10 * time.Millisecond,
			ShutdownTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: "stderr",
		},
	}
}

// Load reads and parses the configuration file. Fields missing from the
// file keep their defaults. An empty path loads the defaults only.
// PGQUEUE_DATABASE_URL overrides database.url in both cases.
func Load(configPath string) (*Config, error) {
	config := Default()

	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if url := os.Getenv(EnvDatabaseURL); url != "" {
		config.Database.URL = url
	}
	return config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database url is required (set database.url or %s)", EnvDatabaseURL)
	}
	if _, err := storage.DetectDialect(c.Database.URL); err != nil {
		return err
	}
	switch c.Database.Driver {
	case "", storage.DriverPgx, storage.DriverPq:
	default:
		return fmt.Errorf("unknown database driver %q", c.Database.Driver)
	}
	if c.Database.MaxOpenConns < 0 || c.Database.MaxIdleConns < 0 {
		return errors.New("database connection limits must not be negative")
	}

	if err := security.ValidateQueueName(c.Queue.Name); err != nil {
		return err
	}
	if err := security.ValidateTableName(c.Queue.Table); err != nil {
		return err
	}
	if err := security.ValidateTableName(c.Queue.LedgerTable); err != nil {
		return err
	}

	if c.Worker.Concurrency <= 0 {
		return errors.New("worker concurrency must be greater than 0")
	}
	if err := security.ValidatePollInterval(c.Worker.PollInterval); err != nil {
		return err
	}
	if c.Worker.DrainPause < 0 {
		return errors.New("worker drain_pause must not be negative")
	}
	if c.Worker.ShutdownTimeout <= 0 {
		return errors.New("worker shutdown_timeout must be greater than 0")
	}

	switch c.Logging.Format {
	case "", "console", "json":
	default:
		return fmt.Errorf("unknown logging format %q", c.Logging.Format)
	}
	return nil
}

// Pool returns the pool settings for storage.Open.
func (c *Config) Pool() storage.PoolConfig {
	return storage.PoolConfig{
		MaxOpenConns:    c.Database.MaxOpenConns,
		MaxIdleConns:    c.Database.MaxIdleConns,
		ConnMaxLifetime: c.Database.ConnMaxLifetime,
		ConnMaxIdleTime: c.Database.ConnMaxIdleTime,
	}
}
