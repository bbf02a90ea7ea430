package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const SQLiteScheme = "sqlite://"

// Whether dsn points to sqlite database (sqlite://path or sqlite://:memory:)
func IsSQLite(dsn string) bool {
	return strings.HasPrefix(dsn, SQLiteScheme)
}

// Open sqlite database and apply embedded migrations
// In-memory database lives as long as the only connection, so pool is limited to one connection
func OpenSQLite(ctx context.Context, dsn string) (*sqlx.DB, error) {
	path := strings.TrimPrefix(dsn, SQLiteScheme)
	if path == "" {
		return nil, errors.New("sqlite database path must not be empty")
	}

	conn, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("cant open sqlite database. Err: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("cant reach sqlite database. Err: %w", err)
	}

	if err := migrateSQLite(conn); err != nil {
		_ = conn.Close()
		return nil, err
	}

	return conn, nil
}

func migrateSQLite(conn *sqlx.DB) error {
	source, err := iofs.New(migrations, "migrations/sqlite")
	if err != nil {
		return err
	}

	driver, err := sqlite.WithInstance(conn.DB, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("error while preparing sqlite driver. Err: %w", err)
	}

	// Migrator is not closed: it would close the shared connection
	migrator, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("error while preparing migrator. Err: %w", err)
	}

	err = migrator.Up()
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("error while applying migrations. Err: %w", err)
	}

	return nil
}
