// Package database opens the blog and key stores and applies their schema.
// Each store has its own embedded migration history so the two databases
// can live in separate files (or servers) and evolve independently.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"
)

//go:embed migrations
var migrationsFS embed.FS

// Store names, also used as migration directory names
const (
	StoreBlog = "blog"
	StoreKeys = "keys"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"
)

// Database wraps one store's connection pool
type Database struct {
	db     *sqlx.DB
	name   string
	driver string
}

// Open connects to a store. SQLite gets a single writer connection
// with a busy timeout and enforced foreign keys.
func Open(ctx context.Context, name, driver, dsn string) (*Database, error) {
	if name != StoreBlog && name != StoreKeys {
		return nil, fmt.Errorf("unknown store %q", name)
	}

	switch driver {
	case DriverSQLite:
		dsn = sqliteDSN(dsn)
	case DriverPostgres:
	default:
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", name, err)
	}

	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
		db.SetConnMaxIdleTime(1 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", name, err)
	}

	return &Database{db: db, name: name, driver: driver}, nil
}

// sqliteDSN adds the pragmas every connection needs unless the caller set them
func sqliteDSN(dsn string) string {
	params := []string{}
	if !strings.Contains(dsn, "_busy_timeout") {
		params = append(params, "_busy_timeout=5000")
	}
	if !strings.Contains(dsn, "_foreign_keys") {
		params = append(params, "_foreign_keys=on")
	}
	if len(params) == 0 {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + strings.Join(params, "&")
}

// NewDatabaseFromDB wraps an existing handle.
// This is useful for testing with sqlmock.
func NewDatabaseFromDB(db *sqlx.DB, name, driver string) *Database {
	return &Database{db: db, name: name, driver: driver}
}

// DB returns the underlying handle
func (d *Database) DB() *sqlx.DB {
	return d.db
}

// Name returns the store name
func (d *Database) Name() string {
	return d.name
}

// Driver returns the driver name
func (d *Database) Driver() string {
	return d.driver
}

// Close closes the connection pool
func (d *Database) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// Health checks if the database is healthy
func (d *Database) Health(ctx context.Context) error {
	if d == nil || d.db == nil {
		return fmt.Errorf("database connection not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return d.db.PingContext(ctx)
}

func (d *Database) migrator() (*migrate.Migrate, error) {
	dir := "migrations/sqlite/" + d.name
	if d.driver == DriverPostgres {
		dir = "migrations/postgres/" + d.name
	}

	sourceDriver, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create migration source: %w", err)
	}

	table := "schema_migrations_" + d.name
	var m *migrate.Migrate
	switch d.driver {
	case DriverPostgres:
		driver, err := migratepgx.WithInstance(d.db.DB, &migratepgx.Config{MigrationsTable: table})
		if err != nil {
			return nil, fmt.Errorf("failed to create migration driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", sourceDriver, "pgx5", driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create migration instance: %w", err)
		}
	default:
		driver, err := migratesqlite.WithInstance(d.db.DB, &migratesqlite.Config{MigrationsTable: table})
		if err != nil {
			return nil, fmt.Errorf("failed to create migration driver: %w", err)
		}
		m, err = migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
		if err != nil {
			return nil, fmt.Errorf("failed to create migration instance: %w", err)
		}
	}
	return m, nil
}

// Migrate applies migrations in the given direction ("up" or "down").
// The migrate instance is not closed because that would close the pool.
func (d *Database) Migrate(direction string) error {
	m, err := d.migrator()
	if err != nil {
		return err
	}

	switch direction {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to run %s migrations: %w", d.name, err)
		}
	case "down":
		if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return fmt.Errorf("failed to rollback %s migrations: %w", d.name, err)
		}
	default:
		return fmt.Errorf("invalid migration direction: %s (must be 'up' or 'down')", direction)
	}

	version, dirty, _ := m.Version()
	log.Info().
		Str("store", d.name).
		Str("direction", direction).
		Uint("version", version).
		Bool("dirty", dirty).
		Msg("migrations applied")
	return nil
}

// MigrationVersion returns the current migration version
func (d *Database) MigrationVersion() (uint, bool, error) {
	m, err := d.migrator()
	if err != nil {
		return 0, false, err
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Stores groups the two independent databases.
// Writes that touch both are never covered by one transaction.
type Stores struct {
	Blog *Database
	Keys *Database
}

// Health checks both stores
func (s *Stores) Health(ctx context.Context) error {
	if err := s.Blog.Health(ctx); err != nil {
		return fmt.Errorf("blog store: %w", err)
	}
	if err := s.Keys.Health(ctx); err != nil {
		return fmt.Errorf("keys store: %w", err)
	}
	return nil
}

// Close closes both stores
func (s *Stores) Close() error {
	return errors.Join(s.Blog.Close(), s.Keys.Close())
}
