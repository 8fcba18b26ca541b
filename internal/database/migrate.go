package database

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/HammerMeetNail/memeboard/migrations"
)

// Migrator applies the embedded schema for one driver.
type Migrator struct {
	m *migrate.Migrate
}

var newMigrate = func(src source.Driver, databaseURL string) (*migrate.Migrate, error) {
	return migrate.NewWithSourceInstance("iofs", src, databaseURL)
}

// NewMigrator loads migrations/<driver> and connects to databaseURL.
func NewMigrator(databaseURL, driver string) (*Migrator, error) {
	if driver != DriverPostgres && driver != DriverSQLite {
		return nil, fmt.Errorf("unsupported migration driver %q", driver)
	}

	src, err := iofs.New(migrations.FS, driver)
	if err != nil {
		return nil, fmt.Errorf("loading migrations: %w", err)
	}

	m, err := newMigrate(src, databaseURL)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("initializing migrate: %w", err)
	}
	return &Migrator{m: m}, nil
}

// Up applies all pending migrations. An up-to-date schema is not an error.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func (m *Migrator) Version() (uint, bool, error) {
	v, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	return errors.Join(srcErr, dbErr)
}
