// Package migrations holds the run history schema and applies it with
// golang-migrate from the embedded SQL files.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/slok/luabox/internal/log"
)

//go:embed sql/*.sql
var schemaFiles embed.FS

const (
	schemaDir       = "sql"
	migrationsTable = "luabox_schema_migrations"
)

// Migrator applies the embedded run history schema migrations.
type Migrator struct {
	db     *sql.DB
	logger log.Logger
}

// NewMigrator returns a migrator for an open history database.
func NewMigrator(db *sql.DB, logger log.Logger) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	if logger == nil {
		logger = log.Noop
	}

	return &Migrator{
		db:     db,
		logger: logger.WithValues(log.Kv{"svc": "storage.sqlite.Migrator"}),
	}, nil
}

// Up migrates the schema to the latest embedded version.
func (m *Migrator) Up(ctx context.Context) error {
	return m.withMigrate(ctx, func(mg *migrate.Migrate) error {
		if err := ignoreNoChange(mg.Up()); err != nil {
			return fmt.Errorf("could not apply schema: %w", err)
		}
		v, _, _ := mg.Version()
		m.logger.Debugf("History schema at version %d", v)
		return nil
	})
}

// Down drops the whole schema, the run history is lost.
func (m *Migrator) Down(ctx context.Context) error {
	return m.withMigrate(ctx, func(mg *migrate.Migrate) error {
		if err := ignoreNoChange(mg.Down()); err != nil {
			return fmt.Errorf("could not drop schema: %w", err)
		}
		m.logger.Debugf("History schema dropped")
		return nil
	})
}

// Version returns the applied schema version, 0 when nothing is applied. dirty
// is true when a migration failed halfway.
func (m *Migrator) Version(ctx context.Context) (version uint, dirty bool, err error) {
	err = m.withMigrate(ctx, func(mg *migrate.Migrate) error {
		version, dirty, err = mg.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			version, dirty = 0, false
			return nil
		}
		if err != nil {
			return fmt.Errorf("could not get schema version: %w", err)
		}
		return nil
	})
	return version, dirty, err
}

func (m *Migrator) withMigrate(_ context.Context, fn func(*migrate.Migrate) error) error {
	driver, err := sqlite3.WithInstance(m.db, &sqlite3.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("could not create migrate driver: %w", err)
	}

	src, err := iofs.New(schemaFiles, schemaDir)
	if err != nil {
		return fmt.Errorf("could not load embedded schema: %w", err)
	}
	defer func() {
		if err := src.Close(); err != nil {
			m.logger.Warningf("could not close embedded schema source: %s", err)
		}
	}()

	mg, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	return fn(mg)
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
