package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/jdziat/simple-pg-queue/pkg/storage"
)

// StatsCommand prints waiting items per queue.
type StatsCommand struct {
	Queues []string `arg:"" optional:"" name:"queue" help:"Queues to report (default all non-empty queues)"`
}

func (cmd *StatsCommand) Run(g *Globals) error {
	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	db, q, err := g.open(cfg, logger)
	if err != nil {
		return err
	}
	defer storage.Close(db)

	depths, err := q.Store().Depths(g.ctx)
	if err != nil {
		return err
	}
	if len(cmd.Queues) > 0 {
		selected := make(map[string]int64, len(cmd.Queues))
		for _, name := range cmd.Queues {
			selected[name] = depths[name]
		}
		depths = selected
	}
	return printDepths(os.Stdout, depths)
}

func printDepths(w io.Writer, depths map[string]int64) error {
	names := make([]string, 0, len(depths))
	for name := range depths {
		names = append(names, name)
	}
	sort.Strings(names)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "QUEUE\tWAITING")
	for _, name := range names {
		fmt.Fprintf(tw, "%s\t%d\n", name, depths[name])
	}
	return tw.Flush()
}
