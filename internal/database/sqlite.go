package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	// Registers the pure-Go "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SQLiteDB is the default single-file backend.
type SQLiteDB struct {
	DB   *sql.DB
	Path string
}

var (
	openSQLite = sql.Open
	pingSQLite = func(ctx context.Context, db *sql.DB) error {
		return db.PingContext(ctx)
	}
)

// SQLiteDSN enables WAL, foreign keys (reaction cascade depends on it) and a
// busy timeout on every pooled connection.
func SQLiteDSN(path string) string {
	return "file:" + path +
		"?_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(1)" +
		"&_pragma=journal_mode(WAL)"
}

// SQLiteMigrationURL is the golang-migrate URL for the same file.
func SQLiteMigrationURL(path string) string {
	return "sqlite://" + path
}

func NewSQLiteDB(ctx context.Context, path string) (*SQLiteDB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := openSQLite(DriverSQLite, SQLiteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// One writer at a time; the uniqueness constraint still arbitrates races
	// between interleaved statements.
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := pingSQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &SQLiteDB{DB: db, Path: path}, nil
}

func (s *SQLiteDB) Driver() string {
	return DriverSQLite
}

func (s *SQLiteDB) Close() {
	if s.DB != nil {
		_ = s.DB.Close()
	}
}

func (s *SQLiteDB) Health(ctx context.Context) error {
	return pingSQLite(ctx, s.DB)
}
