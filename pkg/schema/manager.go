package schema

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"gorm.io/gorm"

	"github.com/jdziat/simple-pg-queue/pkg/core"
	"github.com/jdziat/simple-pg-queue/pkg/security"
	"github.com/jdziat/simple-pg-queue/pkg/storage"
)

// errAlreadyApplied marks a migration committed by a concurrent bootstrapper.
var errAlreadyApplied = errors.New("migration already applied")

// Status describes one known migration.
type Status struct {
	Name    string
	Applied bool
}

// Manager applies migrations and records them in the ledger table.
type Manager struct {
	db         *gorm.DB
	ledger     string
	migrations []Migration
	logger     *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the logger used to report applied migrations.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = l
	}
}

// NewManager creates a Manager for the ledger table named ledger.
func NewManager(db *gorm.DB, ledger string, migrations []Migration, opts ...ManagerOption) (*Manager, error) {
	if db == nil {
		return nil, core.ErrNilDB
	}
	if err := security.ValidateTableName(ledger); err != nil {
		return nil, err
	}
	m := &Manager{
		db:         db,
		ledger:     ledger,
		migrations: migrations,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Ensure creates the ledger if needed and applies every pending migration
// in order. It is idempotent and safe to run from several processes at once.
// The first failure aborts the bootstrap; nothing is retried.
func (m *Manager) Ensure(ctx context.Context) error {
	if err := checkDuplicates(m.migrations); err != nil {
		return err
	}

	db := m.db.WithContext(ctx)
	if err := m.createLedger(db); err != nil {
		return fmt.Errorf("pgqueue: create migration ledger: %w", err)
	}

	applied, err := m.appliedNames(db)
	if err != nil {
		return fmt.Errorf("pgqueue: read migration ledger: %w", err)
	}
	if err := checkKnown(applied, m.migrations); err != nil {
		return err
	}

	for _, mig := range Pending(applied, m.migrations) {
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Table(m.ledger).Create(&core.MigrationRecord{Name: mig.Name}).Error; err != nil {
				if storage.IsUniqueViolation(err) {
					return errAlreadyApplied
				}
				return err
			}
			return mig.Up(tx)
		})
		if errors.Is(err, errAlreadyApplied) {
			m.logger.Debug("migration applied concurrently", "migration", mig.Name, "ledger", m.ledger)
			continue
		}
		if err != nil {
			return fmt.Errorf("pgqueue: migration %q: %w", mig.Name, err)
		}
		m.logger.Info("applied migration", "migration", mig.Name, "ledger", m.ledger)
	}
	return nil
}

// Applied returns the names recorded in the ledger, sorted.
func (m *Manager) Applied(ctx context.Context) ([]string, error) {
	db := m.db.WithContext(ctx)
	if !db.Migrator().HasTable(m.ledger) {
		return nil, nil
	}
	names, err := m.appliedNames(db)
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Status reports every known migration in declared order.
func (m *Manager) Status(ctx context.Context) ([]Status, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	out := make([]Status, 0, len(m.migrations))
	for _, mig := range m.migrations {
		out = append(out, Status{Name: mig.Name, Applied: done[mig.Name]})
	}
	return out, nil
}

func (m *Manager) createLedger(db *gorm.DB) error {
	err := db.Exec("CREATE TABLE IF NOT EXISTS " + storage.QuoteIdent(db, m.ledger) +
		" (name text PRIMARY KEY)").Error
	if err != nil && !storage.IsDuplicateObject(err) {
		return err
	}
	return nil
}

func (m *Manager) appliedNames(db *gorm.DB) ([]string, error) {
	var names []string
	err := db.Table(m.ledger).Pluck("name", &names).Error
	return names, err
}

func checkDuplicates(known []Migration) error {
	seen := make(map[string]struct{}, len(known))
	for _, mig := range known {
		if _, ok := seen[mig.Name]; ok {
			return fmt.Errorf("%w: %q", core.ErrDuplicateMigration, mig.Name)
		}
		seen[mig.Name] = struct{}{}
	}
	return nil
}

func checkKnown(applied []string, known []Migration) error {
	names := make(map[string]struct{}, len(known))
	for _, mig := range known {
		names[mig.Name] = struct{}{}
	}
	for _, name := range applied {
		if _, ok := names[name]; !ok {
			return fmt.Errorf("%w: %q", core.ErrUnknownMigration, name)
		}
	}
	return nil
}
