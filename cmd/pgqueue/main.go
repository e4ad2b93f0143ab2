// Command pgqueue operates a pgqueue job table: it applies migrations,
// enqueues items, runs a worker that prints claimed payloads and reports
// queue depths.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	pgqueue "github.com/jdziat/simple-pg-queue"
	"github.com/jdziat/simple-pg-queue/pkg/config"
	"github.com/jdziat/simple-pg-queue/pkg/storage"
)

// Globals are flags shared by every command.
type Globals struct {
	Config   string `name:"config" short:"c" env:"PGQUEUE_CONFIG" help:"Path to YAML configuration file"`
	Database string `name:"database" short:"d" env:"PGQUEUE_DATABASE_URL" help:"Database connection string (overrides config)"`
	Debug    bool   `name:"debug" help:"Enable debug logging"`

	ctx    context.Context
	cancel context.CancelFunc
}

// CLI is the command tree.
type CLI struct {
	Globals

	Migrate MigrateCommand `cmd:"" help:"Create the job table and apply pending migrations."`
	Enqueue EnqueueCommand `cmd:"" help:"Enqueue JSON payloads."`
	Work    WorkCommand    `cmd:"" help:"Claim items and print their payloads until interrupted."`
	Stats   StatsCommand   `cmd:"" help:"Print the number of waiting items per queue."`
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	cli := new(CLI)
	parser, err := kong.New(cli,
		kong.Name("pgqueue"),
		kong.Description("Durable job queue on PostgreSQL or SQLite"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	cli.Globals.ctx, cli.Globals.cancel = signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cli.Globals.cancel()

	return kctx.Run(&cli.Globals)
}

// load reads and validates the configuration and builds the logger.
func (g *Globals) load() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	if g.Database != "" {
		cfg.Database.URL = g.Database
	}
	if g.Debug {
		cfg.Logging.Level = "debug"
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}

	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, logger, nil
}

// open connects to the configured database and builds the queue.
func (g *Globals) open(cfg *config.Config, logger *slog.Logger) (*gorm.DB, *pgqueue.Queue, error) {
	db, err := storage.Open(cfg.Database.URL,
		storage.WithDriver(cfg.Database.Driver),
		storage.WithPool(storage.FromConfig(cfg.Pool())),
	)
	if err != nil {
		return nil, nil, err
	}

	q, err := pgqueue.New(db,
		pgqueue.Table(cfg.Queue.Table),
		pgqueue.LedgerTable(cfg.Queue.LedgerTable),
		pgqueue.WithLogger(logger),
	)
	if err != nil {
		_ = storage.Close(db)
		return nil, nil, err
	}
	return db, q, nil
}
