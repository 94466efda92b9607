package storage

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrDirtySchema means an earlier migration stopped part way and the schema
// needs manual repair before the repository can use it.
var ErrDirtySchema = errors.New("dirty schema")

// SchemaVersion is the migration the database last applied.
type SchemaVersion struct {
	Version uint
	Dirty   bool
}

// RunMigrations applies pending migrations to the database at dbPath and
// reports the resulting version. It refuses to touch a dirty schema.
func RunMigrations(dbPath string) (SchemaVersion, error) {
	m, err := openMigrator(dbPath)
	if err != nil {
		return SchemaVersion{}, err
	}
	defer m.Close()

	if v, dirty, err := m.Version(); err == nil && dirty {
		return SchemaVersion{Version: v, Dirty: true}, fmt.Errorf("%w at version %d", ErrDirtySchema, v)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return SchemaVersion{}, fmt.Errorf("apply migrations: %w", err)
	}

	v, dirty, err := m.Version()
	if err != nil {
		return SchemaVersion{}, fmt.Errorf("read schema version: %w", err)
	}
	return SchemaVersion{Version: v, Dirty: dirty}, nil
}

// openMigrator uses its own connection because the sqlite driver closes
// the handle it is given.
func openMigrator(dbPath string) (*migrate.Migrate, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open migration database: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite migration driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("embedded migrations: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		driver.Close()
		return nil, fmt.Errorf("migrator: %w", err)
	}
	return m, nil
}
