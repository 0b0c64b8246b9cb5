package postgresql

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/Megho-git/ParkEase/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

//go:embed schema.sql
var schema string

// NewDB opens a pooled connection with the configured driver and pings it.
// "pgx" goes through pgx's stdlib adapter, "postgres" through lib/pq.
func NewDB(cfg *config.Config) (*sql.DB, error) {
	var db *sql.DB
	switch cfg.DBDriver {
	case "pgx":
		pgxCfg, err := pgx.ParseConfig(cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("parse database config: %w", err)
		}
		db = stdlib.OpenDB(*pgxCfg)
	default:
		var err error
		db, err = sql.Open(cfg.DBDriver, cfg.DSN())
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
	}

	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxOpenConns / 2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
