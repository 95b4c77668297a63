package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"hinan-bknd/internal/config"
	"hinan-bknd/internal/models"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/extra/bundebug"
	_ "modernc.org/sqlite" // pure go sqlite driver
)

// New connects to the configured database and returns a Bun DB handle.
func New(cfg *config.Config) (*bun.DB, error) {
	var (
		db  *bun.DB
		err error
	)
	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		db, err = openSQLite(cfg.DatabaseURL)
	case config.DriverPostgres, "":
		db = openPostgres(cfg.DatabaseURL)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.DatabaseDriver)
	}
	if err != nil {
		return nil, err
	}

	// Optional query logging
	if cfg.BunDebug {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Verify connection first
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.DatabaseDriver != config.DriverSQLite {
		if _, err := db.ExecContext(ctx, `SET statement_timeout = '120s'`); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set database configuration: %w", err)
		}
	}

	return db, nil
}

func openPostgres(dsn string) *bun.DB {
	connector := pgdriver.NewConnector(
		pgdriver.WithDSN(dsn),
		pgdriver.WithTimeout(120*time.Second),
		pgdriver.WithDialTimeout(15*time.Second),
		pgdriver.WithReadTimeout(120*time.Second),
		pgdriver.WithWriteTimeout(30*time.Second),
	)

	sqldb := sql.OpenDB(connector)
	sqldb.SetMaxOpenConns(25)
	sqldb.SetMaxIdleConns(10)
	sqldb.SetConnMaxLifetime(5 * time.Minute)
	sqldb.SetConnMaxIdleTime(10 * time.Minute)

	return bun.NewDB(sqldb, pgdialect.New())
}

// OpenSQLite opens a SQLite database. A single connection keeps ":memory:"
// databases shared across queries.
func OpenSQLite(dsn string) (*bun.DB, error) {
	return openSQLite(dsn)
}

func openSQLite(dsn string) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	sqldb.SetMaxOpenConns(1)
	return bun.NewDB(sqldb, sqlitedialect.New()), nil
}

// Migrate creates the tables and indexes the service needs if they are missing.
func Migrate(ctx context.Context, db *bun.DB) error {
	tables := []any{
		(*models.Place)(nil),
		(*models.Operator)(nil),
		(*models.RefreshToken)(nil),
	}
	for _, model := range tables {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}

	indexes := []struct {
		name   string
		column string
	}{
		{"places_category_idx", "category"},
		{"places_name_idx", "name"},
		{"places_source_idx", "source"},
	}
	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model((*models.Place)(nil)).
			Index(idx.name).
			Column(idx.column).
			IfNotExists().
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("create index %s: %w", idx.name, err)
		}
	}
	return nil
}
