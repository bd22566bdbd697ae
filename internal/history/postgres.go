package history

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/csvcompare/internal/config"
	"github.com/JonMunkholm/csvcompare/internal/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS comparison_runs (
	id           UUID PRIMARY KEY,
	source       TEXT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL,
	duration_ns  BIGINT NOT NULL,
	all_okay     BOOLEAN NOT NULL,
	rule_count   INTEGER NOT NULL,
	file_count   INTEGER NOT NULL,
	failed_count INTEGER NOT NULL,
	report       JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS comparison_runs_started_at_idx ON comparison_runs (started_at DESC);
`

// PostgresStore keeps runs in the comparison_runs table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool. Call Migrate before first use.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Connect opens and pings a pool sized from cfg.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// Migrate creates the history table if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate history schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Save(ctx context.Context, run *report.Run) error {
	data, err := report.Marshal(run)
	if err != nil {
		return err
	}
	sum := Summarize(run)

	_, err = s.pool.Exec(ctx, `
		INSERT INTO comparison_runs
			(id, source, started_at, duration_ns, all_okay, rule_count, file_count, failed_count, report)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			duration_ns = EXCLUDED.duration_ns,
			all_okay = EXCLUDED.all_okay,
			rule_count = EXCLUDED.rule_count,
			file_count = EXCLUDED.file_count,
			failed_count = EXCLUDED.failed_count,
			report = EXCLUDED.report`,
		sum.ID, sum.Source, sum.StartedAt, int64(sum.Duration), sum.AllOkay,
		sum.Rules, sum.Files, sum.FailedFiles, data,
	)
	if err != nil {
		return fmt.Errorf("save run %s: %w", run.ID, err)
	}
	return nil
}

const summaryColumns = `id, source, started_at, duration_ns, all_okay, rule_count, file_count, failed_count`

func (s *PostgresStore) List(ctx context.Context, limit int) ([]Summary, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+summaryColumns+` FROM comparison_runs ORDER BY started_at DESC LIMIT $1`,
		normalizeLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (Summary, error) {
		var sum Summary
		err := scanSummary(row, &sum)
		return sum, err
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	var rec Record
	row := s.pool.QueryRow(ctx,
		`SELECT `+summaryColumns+`, report FROM comparison_runs WHERE id = $1`, id)

	var durationNS int64
	err := row.Scan(&rec.ID, &rec.Source, &rec.StartedAt, &durationNS, &rec.AllOkay,
		&rec.Rules, &rec.Files, &rec.FailedFiles, &rec.Report)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", id, err)
	}
	rec.Duration = time.Duration(durationNS)
	return &rec, nil
}

func (s *PostgresStore) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM comparison_runs WHERE started_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanSummary(row pgx.Row, sum *Summary) error {
	var durationNS int64
	if err := row.Scan(&sum.ID, &sum.Source, &sum.StartedAt, &durationNS, &sum.AllOkay,
		&sum.Rules, &sum.Files, &sum.FailedFiles); err != nil {
		return err
	}
	sum.Duration = time.Duration(durationNS)
	return nil
}
