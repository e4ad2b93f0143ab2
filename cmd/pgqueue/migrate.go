package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/jdziat/simple-pg-queue/pkg/schema"
	"github.com/jdziat/simple-pg-queue/pkg/storage"
)

// MigrateCommand applies pending migrations or prints their status.
type MigrateCommand struct {
	Status bool `name:"status" help:"Print migration status instead of applying"`
}

func (cmd *MigrateCommand) Run(g *Globals) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	db, q, err := g.open(cfg, logger)
	if err != nil {
		return err
	}
	defer storage.Close(db)

	if !cmd.Status {
		if err := q.Migrate(g.ctx); err != nil {
			return err
		}
		logger.Info("migrations applied", "table", cfg.Queue.Table, "ledger", cfg.Queue.LedgerTable)
		return nil
	}

	status, err := q.MigrationStatus(g.ctx)
	if err != nil {
		return err
	}
	return printStatus(os.Stdout, status)
}

func printStatus(w io.Writer, status []schema.Status) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MIGRATION\tSTATE")
	for _, s := range status {
		state := "pending"
		if s.Applied {
			state = "applied"
		}
		fmt.Fprintf(tw, "%s\t%s\n", s.Name, state)
	}
	return tw.Flush()
}
