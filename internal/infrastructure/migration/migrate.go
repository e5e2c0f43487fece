// Package migration applies the SQL files under migrations/ with golang-migrate.
package migration

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"go.uber.org/zap"
)

// Migrator runs schema migrations against PostgreSQL
type Migrator struct {
	m      *migrate.Migrate
	logger *zap.Logger
}

// New creates a Migrator on an open connection
func New(db *sql.DB, migrationsPath string, logger *zap.Logger) (*Migrator, error) {
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+migrationsPath, "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return &Migrator{m: m, logger: logger}, nil
}

// Status is the schema version currently recorded in the database
type Status struct {
	Version uint
	Dirty   bool
}

// Up applies every pending migration
func (mg *Migrator) Up() error {
	return mg.apply("up", mg.m.Up)
}

// Down rolls back every applied migration
func (mg *Migrator) Down() error {
	return mg.apply("down", mg.m.Down)
}

// Steps applies n migrations; negative n rolls back
func (mg *Migrator) Steps(n int) error {
	return mg.apply(fmt.Sprintf("steps %d", n), func() error { return mg.m.Steps(n) })
}

// GoTo migrates up or down to version
func (mg *Migrator) GoTo(version uint) error {
	return mg.apply(fmt.Sprintf("goto %d", version), func() error { return mg.m.Migrate(version) })
}

// Force records version without running anything, clearing the dirty flag
func (mg *Migrator) Force(version int) error {
	mg.logger.Warn("Forcing migration version", zap.Int("version", version))
	if err := mg.m.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Status returns the current version. An empty database reports version 0.
func (mg *Migrator) Status() (Status, error) {
	version, dirty, err := mg.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return Status{}, nil
	}
	if err != nil {
		return Status{}, fmt.Errorf("failed to get migration version: %w", err)
	}
	return Status{Version: version, Dirty: dirty}, nil
}

// Close releases the source and database handles
func (mg *Migrator) Close() error {
	srcErr, dbErr := mg.m.Close()
	return errors.Join(srcErr, dbErr)
}

// apply runs op and treats ErrNoChange as success
func (mg *Migrator) apply(name string, op func() error) error {
	mg.logger.Info("Running migrations", zap.String("operation", name))

	err := op()
	if errors.Is(err, migrate.ErrNoChange) {
		mg.logger.Info("Schema already up to date", zap.String("operation", name))
		return nil
	}
	if err != nil {
		return fmt.Errorf("migration %s failed: %w", name, err)
	}

	status, err := mg.Status()
	if err != nil {
		return err
	}
	mg.logger.Info("Migrations completed",
		zap.String("operation", name),
		zap.Uint("version", status.Version),
		zap.Bool("dirty", status.Dirty))
	return nil
}
