package services

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// PostgresChecker checks PostgreSQL through a lib/pq connection that is
// independent of the application's pgx pool.
type PostgresChecker struct {
	BaseChecker
	db *sql.DB
}

// NewPostgresChecker opens a small lib/pq pool for health checks
func NewPostgresChecker(dsn string) (*PostgresChecker, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	return &PostgresChecker{
		BaseChecker: BaseChecker{checkerType: "postgres"},
		db:          db,
	}, nil
}

// HealthCheck pings the database and runs a trivial query
func (p *PostgresChecker) HealthCheck(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres ping failed: %w", err)
	}

	var one int
	if err := p.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("postgres query failed: %w", err)
	}

	return nil
}

// Close releases the connection
func (p *PostgresChecker) Close() error {
	return p.db.Close()
}
