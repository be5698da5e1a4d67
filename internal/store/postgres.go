package store

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/gemba-ops/shopsync/internal/db"
	"github.com/gemba-ops/shopsync/internal/resilience"
)

// PostgresStore implements Store on a pgx pool.
type PostgresStore struct {
	pool  db.Pool
	retry resilience.RetryConfig
}

// NewPostgres wraps an existing pool. The pool may be a pgxmock pool in
// tests.
func NewPostgres(pool db.Pool, retry resilience.RetryConfig) *PostgresStore {
	return &PostgresStore{pool: pool, retry: retry}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS run_log (
	id             TEXT PRIMARY KEY,
	kind           TEXT NOT NULL,
	report_date    TEXT NOT NULL,
	run_label      TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'running',
	financial_rows INTEGER NOT NULL DEFAULT 0,
	marketing_rows INTEGER NOT NULL DEFAULT 0,
	issues         TEXT,
	error          TEXT,
	started_at     TIMESTAMPTZ NOT NULL,
	finished_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_run_log_report_date ON run_log(report_date);
CREATE INDEX IF NOT EXISTS idx_run_log_status ON run_log(status)`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// UpsertReport runs schema evolution and the row transaction, retrying the
// whole unit on transient failures. A retried batch is safe: the key-based
// upsert converges to the same rows.
func (s *PostgresStore) UpsertReport(ctx context.Context, rep Report) (db.UpsertStats, error) {
	spec := db.TableSpec{Table: rep.Table, Headers: rep.Headers, Keys: rep.Keys}

	cfg := s.retry
	cfg.OnRetry = resilience.RetryLogger("store", "upsert "+rep.Table)

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (db.UpsertStats, error) {
		valid, err := db.EnsureSchema(ctx, s.pool, spec.Table, spec.Headers)
		if err != nil {
			return db.UpsertStats{}, err
		}
		return db.UpsertRows(ctx, s.pool, spec, valid, rep.Rows)
	})
}

func (s *PostgresStore) StartRun(ctx context.Context, kind, reportDate, runLabel string) (*RunRecord, error) {
	rec := &RunRecord{
		ID:         uuid.New().String(),
		Kind:       kind,
		ReportDate: reportDate,
		RunLabel:   runLabel,
		Status:     RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO run_log (id, kind, report_date, run_label, status, started_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.ID, rec.Kind, rec.ReportDate, rec.RunLabel, string(rec.Status), rec.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return rec, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, outcome RunOutcome) error {
	issuesJSON, err := json.Marshal(outcome.Issues)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal issues")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE run_log SET status = $1, financial_rows = $2, marketing_rows = $3, issues = $4, error = $5, finished_at = $6 WHERE id = $7`,
		string(outcome.Status), outcome.FinancialRows, outcome.MarketingRows,
		string(issuesJSON), outcome.Error, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	query := `SELECT id, kind, report_date, run_label, status, financial_rows, marketing_rows, issues, error, started_at, finished_at FROM run_log WHERE 1=1`
	var args []any

	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` AND status = $1`
	}
	if filter.ReportDate != "" {
		args = append(args, filter.ReportDate)
		query += ` AND report_date = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)
	query += ` LIMIT $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		rec, err := scanRunRecord(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *rec)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func scanRunRecord(rows pgx.Rows) (*RunRecord, error) {
	var rec RunRecord
	var status string
	var issuesJSON, errMsg *string
	var finished *time.Time

	if err := rows.Scan(&rec.ID, &rec.Kind, &rec.ReportDate, &rec.RunLabel, &status,
		&rec.FinancialRows, &rec.MarketingRows, &issuesJSON, &errMsg,
		&rec.StartedAt, &finished); err != nil {
		return nil, err
	}
	rec.Status = RunStatus(status)
	rec.FinishedAt = finished
	if errMsg != nil {
		rec.Error = *errMsg
	}
	if issuesJSON != nil && *issuesJSON != "" {
		if err := json.Unmarshal([]byte(*issuesJSON), &rec.Issues); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}
