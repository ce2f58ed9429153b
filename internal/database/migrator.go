package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	tern "github.com/jackc/tern/v2/migrate"
	"github.com/rs/zerolog"
)

// PostgreSQL migrations use tern's format, SQLite ones golang-migrate's
// NNNNNN_name.up.sql / .down.sql pairs. Both create the same demo schema.
//
//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrations embed.FS

// Migrate brings the schema up to date on the open database.
func (db *Database) Migrate(ctx context.Context) error {
	if db.Pool != nil {
		return db.migratePostgres(ctx)
	}
	return db.migrateSQLite()
}

func (db *Database) migratePostgres(ctx context.Context) error {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquiring migration connection: %w", err)
	}
	defer conn.Release()

	m, err := tern.NewMigrator(ctx, conn.Conn(), "schema_version")
	if err != nil {
		return fmt.Errorf("constructing database migrator: %w", err)
	}

	subtree, err := fs.Sub(migrations, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("retrieving database migrations subtree: %w", err)
	}
	if err := m.LoadMigrations(subtree); err != nil {
		return fmt.Errorf("loading database migrations: %w", err)
	}

	from, err := m.GetCurrentVersion(ctx)
	if err != nil {
		return fmt.Errorf("retrieving current database migration version: %w", err)
	}
	if err := m.Migrate(ctx); err != nil {
		return err
	}

	logMigration(db.log, int(from), len(m.Migrations))
	return nil
}

func (db *Database) migrateSQLite() error {
	src, err := iofs.New(migrations, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("loading database migrations: %w", err)
	}
	driver, err := migratesqlite.WithInstance(db.SQL, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("constructing sqlite migration driver: %w", err)
	}
	// m is not closed: that would close db.SQL as well.
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("constructing database migrator: %w", err)
	}
	m.Log = migrateLogger{log: db.log}

	from, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("retrieving current database migration version: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	to, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("retrieving database migration version: %w", err)
	}

	logMigration(db.log, int(from), int(to))
	return nil
}

func logMigration(log *zerolog.Logger, from, to int) {
	if from == to {
		log.Info().Msgf("database schema up to date, version %d", to)
		return
	}
	log.Info().Msgf("migrated database schema, from %d to %d", from, to)
}

// migrateLogger sends golang-migrate output to zerolog.
type migrateLogger struct {
	log *zerolog.Logger
}

func (l migrateLogger) Printf(format string, v ...any) {
	l.log.Debug().Str("component", "migrate").Msgf(format, v...)
}

func (l migrateLogger) Verbose() bool {
	return false
}
