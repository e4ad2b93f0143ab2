package schema

import (
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/jdziat/simple-pg-queue/pkg/storage"
)

// Migration is one named schema change.
type Migration struct {
	Name string
	Up   func(tx *gorm.DB) error
}

// Names of the default migrations, in the order they are applied.
const (
	CreateJobsTable  = "create_jobs_table"
	CreateQueueIndex = "create_jobs_queue_index"
	QueueNotNull     = "jobs_queue_not_null"
	DataNotNull      = "jobs_data_not_null"
)

// Pending returns the migrations of known whose name is not in applied,
// keeping the order of known.
func Pending(applied []string, known []Migration) []Migration {
	done := make(map[string]struct{}, len(applied))
	for _, name := range applied {
		done[name] = struct{}{}
	}

	var pending []Migration
	for _, m := range known {
		if _, ok := done[m.Name]; !ok {
			pending = append(pending, m)
		}
	}
	return pending
}

// DefaultMigrations returns the migrations creating the job table named
// table. Statements are chosen from the dialect of the migrating transaction.
func DefaultMigrations(table string) []Migration {
	return []Migration{
		{Name: CreateJobsTable, Up: func(tx *gorm.DB) error {
			q := storage.QuoteIdent(tx, table)
			if storage.DialectOf(tx) == storage.SQLite {
				return tx.Exec("CREATE TABLE IF NOT EXISTS " + q +
					" (id INTEGER PRIMARY KEY AUTOINCREMENT, queue varchar(255), data TEXT)").Error
			}
			return tx.Exec("CREATE TABLE IF NOT EXISTS " + q +
				" (id bigserial PRIMARY KEY, queue varchar(255), data json)").Error
		}},
		{Name: CreateQueueIndex, Up: func(tx *gorm.DB) error {
			schemaName, name := splitQualified(table)
			index := name + "_queue_idx"
			if storage.DialectOf(tx) == storage.SQLite {
				return tx.Exec("CREATE INDEX IF NOT EXISTS " + qualify(tx, schemaName, index) +
					" ON " + storage.QuoteIdent(tx, name) + " (queue, id)").Error
			}
			return tx.Exec("CREATE INDEX IF NOT EXISTS " + storage.QuoteIdent(tx, index) +
				" ON " + storage.QuoteIdent(tx, table) + " (queue, id)").Error
		}},
		{Name: QueueNotNull, Up: notNull(table, "queue")},
		{Name: DataNotNull, Up: notNull(table, "data")},
	}
}

// notNull enforces NOT NULL on an existing column. SQLite cannot alter a
// column constraint, so it gets insert and update triggers instead.
func notNull(table, column string) func(tx *gorm.DB) error {
	return func(tx *gorm.DB) error {
		if storage.DialectOf(tx) != storage.SQLite {
			return tx.Exec("ALTER TABLE " + storage.QuoteIdent(tx, table) +
				" ALTER COLUMN " + storage.QuoteIdent(tx, column) + " SET NOT NULL").Error
		}

		schemaName, name := splitQualified(table)
		for _, event := range []string{"INSERT", "UPDATE"} {
			trigger := fmt.Sprintf("%s_%s_not_null_%s", name, column, strings.ToLower(event))
			sql := fmt.Sprintf(
				"CREATE TRIGGER IF NOT EXISTS %s BEFORE %s ON %s FOR EACH ROW WHEN NEW.%s IS NULL "+
					"BEGIN SELECT RAISE(ABORT, 'NOT NULL constraint failed: %s.%s'); END",
				qualify(tx, schemaName, trigger), event, storage.QuoteIdent(tx, name),
				column, name, column,
			)
			if err := tx.Exec(sql).Error; err != nil {
				return err
			}
		}
		return nil
	}
}

func splitQualified(table string) (schemaName, name string) {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		return table[:i], table[i+1:]
	}
	return "", table
}

func qualify(tx *gorm.DB, schemaName, name string) string {
	if schemaName == "" {
		return storage.QuoteIdent(tx, name)
	}
	return storage.QuoteIdent(tx, schemaName) + "." + storage.QuoteIdent(tx, name)
}
