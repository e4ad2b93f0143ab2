package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"

	pgqueue "github.com/jdziat/simple-pg-queue"
)

// WorkCommand runs a worker that writes each claimed payload to stdout as
// one JSON line.
type WorkCommand struct {
	Queue       string `name:"queue" short:"q" help:"Queue name (defaults to the configured queue)"`
	Concurrency int    `name:"concurrency" help:"Maximum in-flight claims (defaults to the configured value)"`
	FIFO        bool   `name:"fifo" help:"Claim lowest id first (or set worker.fifo)"`
	Report      string `name:"report" help:"Cron spec for logging the queue depth, e.g. '@every 30s'"`
}

func (cmd *WorkCommand) Run(g *Globals) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	if cmd.Queue != "" {
		cfg.Queue.Name = cmd.Queue
	}
	if cmd.Concurrency > 0 {
		cfg.Worker.Concurrency = cmd.Concurrency
	}
	if cmd.FIFO {
		cfg.Worker.FIFO = true
	}
	if cmd.Report != "" {
		cfg.Worker.Report = cmd.Report
	}

	_, q, err := g.open(cfg, logger)
	if err != nil {
		return err
	}

	w, err := pgqueue.NewWorker(q, newPrinter(os.Stdout),
		pgqueue.WorkerQueue(cfg.Queue.Name),
		pgqueue.Concurrency(cfg.Worker.Concurrency),
		pgqueue.PollInterval(cfg.Worker.PollInterval),
		pgqueue.DrainPause(cfg.Worker.DrainPause),
		pgqueue.FIFO(cfg.Worker.FIFO),
		pgqueue.OwnsDB(true),
	)
	if err != nil {
		_ = pgqueue.Close(q.DB())
		return err
	}

	if cfg.Worker.Report != "" {
		reporter, err := newReporter(cfg.Worker.Report, q, cfg.Queue.Name, logger)
		if err != nil {
			_ = pgqueue.Close(q.DB())
			return err
		}
		reporter.Start()
		defer func() { <-reporter.Stop().Done() }()
	}

	if err := w.Start(g.ctx); err != nil {
		_ = pgqueue.Close(q.DB())
		return err
	}
	<-g.ctx.Done()

	logger.Info("shutting down", "timeout", cfg.Worker.ShutdownTimeout)
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer cancel()
	return w.Stop(ctx)
}

// printer is a handler that writes payloads as JSON lines.
type printer struct {
	mu sync.Mutex
	w  io.Writer
}

func newPrinter(w io.Writer) *printer {
	return &printer{w: w}
}

func (p *printer) Perform(_ context.Context, _ *gorm.DB, payload json.RawMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.w, "%s\n", payload)
	return err
}

// newReporter returns a cron runner that logs the depth of queueName on spec.
func newReporter(spec string, q *pgqueue.Queue, queueName string, logger *slog.Logger) (*cron.Cron, error) {
	c := cron.New()
	_, err := c.AddFunc(spec, func() {
		n, err := q.Size(context.Background(), queueName)
		if err != nil {
			logger.Warn("queue depth unavailable", "queue", queueName, "error", err)
			return
		}
		logger.Info("queue depth", "queue", queueName, "waiting", n)
	})
	if err != nil {
		return nil, fmt.Errorf("invalid report schedule %q: %w", spec, err)
	}
	return c, nil
}
