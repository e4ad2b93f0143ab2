package main

import (
	"encoding/json"
	"fmt"

	"github.com/jdziat/simple-pg-queue/pkg/storage"
)

// EnqueueCommand inserts one item per payload argument.
type EnqueueCommand struct {
	Queue    string   `name:"queue" short:"q" help:"Queue name (defaults to the configured queue)"`
	Payloads []string `arg:"" name:"payload" help:"JSON payloads"`
}

func (cmd *EnqueueCommand) Run(g *Globals) error {
	payloads, err := parsePayloads(cmd.Payloads)
	if err != nil {
		return err
	}

	cfg, logger, err := g.load()
	if err != nil {
		return err
	}
	queueName := cmd.Queue
	if queueName == "" {
		queueName = cfg.Queue.Name
	}

	db, q, err := g.open(cfg, logger)
	if err != nil {
		return err
	}
	defer storage.Close(db)

	if err := q.Migrate(g.ctx); err != nil {
		return err
	}
	for _, p := range payloads {
		if err := q.Enqueue(g.ctx, queueName, p); err != nil {
			return err
		}
	}
	logger.Info("enqueued", "queue", queueName, "count", len(payloads))
	return nil
}

func parsePayloads(args []string) ([]json.RawMessage, error) {
	payloads := make([]json.RawMessage, 0, len(args))
	for i, arg := range args {
		if !json.Valid([]byte(arg)) {
			return nil, fmt.Errorf("payload %d is not valid JSON: %s", i+1, arg)
		}
		payloads = append(payloads, json.RawMessage(arg))
	}
	return payloads, nil
}
