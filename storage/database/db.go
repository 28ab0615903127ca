package database

import (
	"context"
	"embed"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // postgres
	_ "github.com/mattn/go-sqlite3" // sqlite3
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/barakah/core"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Open connects to the session database configured in `conf.Session`.
// A sqlite3 database without DSN lives next to the session file.
func Open(conf *core.Config) (*sqlx.DB, error) {
	driver := conf.Session.Driver
	dsn := conf.Session.DSN
	switch driver {
	case DriverPostgres:
		if dsn == "" {
			return nil, errors.New("session.dsn is required for postgres")
		}
	case DriverSQLite:
		if dsn == "" {
			dsn = strings.TrimSuffix(conf.Session.Path, filepath.Ext(conf.Session.Path)) + ".db"
		}
	default:
		return nil, errors.Errorf("unsupported session driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(db, 30); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "pinging database")
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB, maxAttempts int) error {
	var err error
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// Migrate applies the pending migrations; an up to date database is left untouched.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	provider, err := migrator(db)
	if err != nil {
		return errors.Wrap(err, "migrating database")
	}
	if _, err := provider.Up(ctx); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

func migrator(db *sqlx.DB) (*goose.Provider, error) {
	var dialect goose.Dialect
	switch db.DriverName() {
	case DriverPostgres:
		dialect = goose.DialectPostgres
	case DriverSQLite:
		dialect = goose.DialectSQLite3
	default:
		return nil, errors.Errorf("no migration dialect for driver %q", db.DriverName())
	}
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return nil, err
	}
	return goose.NewProvider(dialect, db.DB, fsys)
}
