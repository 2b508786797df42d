package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository is a PostgreSQL implementation of Repository.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL run repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Connect creates a connection pool from a PostgreSQL URL and verifies it.
func Connect(ctx context.Context, url string) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// SaveRun records a completed run.
func (r *PostgresRepository) SaveRun(ctx context.Context, run Run) error {
	query := `
		INSERT INTO provisioning_runs (
			run_id, account, application, tier, mode,
			succeeded, failed, started_at, finished_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Account,
		run.Application,
		run.Tier,
		run.Mode,
		run.Succeeded,
		run.Failed,
		run.StartedAt,
		run.FinishedAt,
	)
	return err
}

// SaveEntries records the per-resource outcomes of a run.
func (r *PostgresRepository) SaveEntries(ctx context.Context, entries []Entry) error {
	query := `
		INSERT INTO provisioning_run_entries (
			run_id, kind, name, success, status, message, recorded_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	for _, e := range entries {
		_, err := r.pool.Exec(ctx, query,
			e.RunID,
			e.Kind,
			e.Name,
			e.Success,
			e.Status,
			e.Message,
			e.RecordedAt,
		)
		if err != nil {
			return err
		}
	}
	return nil
}

// LastRun retrieves the most recent run for an application.
func (r *PostgresRepository) LastRun(ctx context.Context, application string) (Run, error) {
	query := `
		SELECT
			run_id, account, application, tier, mode,
			succeeded, failed, started_at, finished_at
		FROM provisioning_runs
		WHERE application = $1
		ORDER BY started_at DESC
		LIMIT 1
	`

	var run Run
	err := r.pool.QueryRow(ctx, query, application).Scan(
		&run.ID,
		&run.Account,
		&run.Application,
		&run.Tier,
		&run.Mode,
		&run.Succeeded,
		&run.Failed,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Run{}, ErrRunNotFound
		}
		return Run{}, err
	}
	return run, nil
}
