package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"rsiscalper/config"

	"github.com/lib/pq"
)

// CreateDatabase creates cfg.DBName on the server unless it already exists.
// It reports whether the database was created.
func CreateDatabase(ctx context.Context, cfg config.PostgresConfig) (bool, error) {
	db, err := sql.Open("postgres", cfg.AdminDSN())
	if err != nil {
		return false, fmt.Errorf("connect failed: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return false, fmt.Errorf("admin ping failed: %w", err)
	}

	var exists bool
	const query = `SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)`
	if err := db.QueryRowContext(ctx, query, cfg.DBName).Scan(&exists); err != nil {
		return false, fmt.Errorf("check db exists failed: %w", err)
	}
	if exists {
		return false, nil
	}

	// CREATE DATABASE takes no bind parameters
	stmt := "CREATE DATABASE " + pq.QuoteIdentifier(cfg.DBName)
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return false, fmt.Errorf("create db %s failed: %w", cfg.DBName, err)
	}
	return true, nil
}
