// Package migration runs the embedded SQL migrations with golang-migrate.
// Postgres is the production dialect; the sqlite mirror backs local
// development and tests.
package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratedb "github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"go.uber.org/zap"
)

//go:embed migrations/postgres/*.sql
var postgresFS embed.FS

//go:embed migrations/sqlite/*.sql
var sqliteFS embed.FS

// Dialect selects the migration set and database driver.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

// Config drives a Migrator.
type Config struct {
	Dialect Dialect
	// URL is a postgres connection string, or a sqlite file path.
	URL         string
	LockTimeout time.Duration
}

// Migrator applies the embedded migrations.
type Migrator struct {
	config  Config
	db      *sql.DB
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New opens the database and prepares the migration source.
func New(config Config, logger *zap.Logger) (*Migrator, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("migration: database URL is required")
	}
	if config.Dialect == "" {
		config.Dialect = DialectPostgres
	}
	if config.LockTimeout <= 0 {
		config.LockTimeout = 15 * time.Second
	}

	m := &Migrator{
		config: config,
		logger: logger.With(zap.String("component", "migration")),
	}
	if err := m.init(); err != nil {
		m.Close()
		return nil, err
	}
	return m, nil
}

func (m *Migrator) init() error {
	var (
		driverName string
		fsys       embed.FS
		dir        string
	)
	switch m.config.Dialect {
	case DialectPostgres:
		driverName, fsys, dir = "pgx", postgresFS, "migrations/postgres"
	case DialectSQLite:
		driverName, fsys, dir = "sqlite", sqliteFS, "migrations/sqlite"
	default:
		return fmt.Errorf("migration: unsupported dialect %q", m.config.Dialect)
	}

	db, err := sql.Open(driverName, m.config.URL)
	if err != nil {
		return fmt.Errorf("migration: open database: %w", err)
	}
	m.db = db

	var dbDriver migratedb.Driver
	switch m.config.Dialect {
	case DialectPostgres:
		dbDriver, err = postgres.WithInstance(db, &postgres.Config{})
	case DialectSQLite:
		dbDriver, err = sqlite.WithInstance(db, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("migration: database driver: %w", err)
	}

	src, err := iofs.New(fsys, dir)
	if err != nil {
		return fmt.Errorf("migration: source: %w", err)
	}

	m.migrate, err = migrate.NewWithInstance("iofs", src, string(m.config.Dialect), dbDriver)
	if err != nil {
		return fmt.Errorf("migration: instance: %w", err)
	}
	m.migrate.LockTimeout = m.config.LockTimeout
	return nil
}

// Up applies every pending migration. No pending migrations is not an error.
func (m *Migrator) Up() error {
	err := m.migrate.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration: up: %w", err)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		m.logger.Info("schema already current")
		return nil
	}
	version, _, _ := m.migrate.Version()
	m.logger.Info("migrations applied", zap.Uint("version", version))
	return nil
}

// Down rolls back one migration.
func (m *Migrator) Down() error {
	if err := m.migrate.Steps(-1); err != nil {
		return fmt.Errorf("migration: down: %w", err)
	}
	return nil
}

// Version reports the current schema version and dirty flag. A never-migrated
// database reports (0, false, nil).
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("migration: version: %w", err)
	}
	return version, dirty, nil
}

// Force pins the schema version without running migrations. Recovery tool for
// a dirty state.
func (m *Migrator) Force(version int) error {
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("migration: force: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (m *Migrator) Close() {
	if m.migrate != nil {
		_, _ = m.migrate.Close()
		return
	}
	if m.db != nil {
		_ = m.db.Close()
	}
}
