package core

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"fmt"

	"gorm.io/gorm"
)

// Default table and queue names. The job table name matches the one used by
// earlier releases so existing tables are adopted by the first migration.
const (
	DefaultTable       = "__pg_queue_jobs"
	DefaultLedgerTable = "__pg_queue_migrations"
	DefaultQueue       = "default"
)

// InstrumentationName is the OpenTelemetry scope used for spans and metrics.
const InstrumentationName = "github.com/jdziat/simple-pg-queue"

// Job is a queued row. A row exists from enqueue commit until the commit of
// the transaction that claimed it; claiming deletes it.
type Job struct {
	ID    int64   `gorm:"primaryKey;autoIncrement"`
	Queue string  `gorm:"size:255;not null"`
	Data  Payload `gorm:"not null"`
}

// MigrationRecord is a row of the append-only migration ledger.
type MigrationRecord struct {
	Name string `gorm:"primaryKey"`
}

// Payload is a serialized JSON document stored in the data column.
// It is written as text so that PostgreSQL json columns and SQLite TEXT
// columns both receive the document unchanged.
type Payload []byte

// Value implements driver.Valuer.
func (p Payload) Value() (driver.Value, error) {
	if len(p) == 0 {
		return nil, nil
	}
	return string(p), nil
}

// Scan implements sql.Scanner.
func (p *Payload) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = nil
	case []byte:
		*p = bytes.Clone(v)
	case string:
		*p = Payload(v)
	default:
		return fmt.Errorf("pgqueue: cannot scan %T into Payload", src)
	}
	return nil
}

// MarshalJSON returns the payload as raw JSON.
func (p Payload) MarshalJSON() ([]byte, error) {
	if len(p) == 0 {
		return []byte("null"), nil
	}
	return p, nil
}

// UnmarshalJSON stores a copy of data.
func (p *Payload) UnmarshalJSON(data []byte) error {
	*p = bytes.Clone(data)
	return nil
}

// Raw returns the payload as a json.RawMessage.
func (p Payload) Raw() json.RawMessage {
	return json.RawMessage(p)
}

// TxHook computes a payload inside the enqueue transaction. Writes made
// through tx commit or roll back together with the enqueued row.
type TxHook func(tx *gorm.DB) (any, error)

// Performer is implemented by handlers that want the raw payload.
type Performer interface {
	Perform(ctx context.Context, tx *gorm.DB, payload json.RawMessage) error
}
