package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// LatestSchemaVersion is the highest migration bundled with the binary.
const LatestSchemaVersion = 2

// DefaultBusyTimeoutMs is how long a writer waits on a locked database.
const DefaultBusyTimeoutMs = 5000

// DSN builds the modernc sqlite connection string for path.
// Transactions begin IMMEDIATE so concurrent writers queue on the busy
// timeout instead of failing on lock upgrade.
func DSN(path string) string {
	pragmas := []string{
		"_pragma=foreign_keys(1)",
		fmt.Sprintf("_pragma=busy_timeout(%d)", DefaultBusyTimeoutMs),
		"_pragma=journal_mode(WAL)",
		"_pragma=synchronous(NORMAL)",
		"_txlock=immediate",
	}
	return filepath.Clean(path) + "?" + strings.Join(pragmas, "&")
}

// Open opens the database at path and verifies the connection.
// PRE: path is non-empty
// POST: Returns a pinged *sql.DB; migrations are not applied
func Open(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("database path is required")
	}
	db, err := sql.Open("sqlite", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	return db, nil
}

// MigrateDB applies every bundled migration that has not run yet.
// PRE: db is a valid database connection
// POST: Schema is at LatestSchemaVersion; db stays open
func MigrateDB(db *sql.DB) error {
	m, src, err := newMigrator(db)
	if err != nil {
		return err
	}
	// m.Close would close db through the driver, so only the source is released.
	defer src.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// SchemaVersion returns the applied migration version, or 0 for an empty database.
// POST: Returns an error when the last migration left the schema dirty
func SchemaVersion(db *sql.DB) (uint, error) {
	m, src, err := newMigrator(db)
	if err != nil {
		return 0, err
	}
	defer src.Close()
	version, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read schema version: %w", err)
	}
	if dirty {
		return version, fmt.Errorf("schema version %d is dirty", version)
	}
	return version, nil
}

// openMigrations returns the embedded migration source.
var openMigrations = func() (source.Driver, error) {
	return iofs.New(migrationsFS, "migrations")
}

// newMigrator builds a migrator over db. The caller closes the returned
// source; closing the migrator itself would also close db.
func newMigrator(db *sql.DB) (*migrate.Migrate, source.Driver, error) {
	src, err := openMigrations()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create migration source: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		_ = src.Close()
		return nil, nil, fmt.Errorf("failed to create migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		_ = src.Close()
		return nil, nil, fmt.Errorf("failed to create migrator: %w", err)
	}
	return m, src, nil
}
