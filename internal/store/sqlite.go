package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/gemba-ops/shopsync/internal/db"
	"github.com/gemba-ops/shopsync/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite. It mirrors the
// postgres semantics with sqlite's dialect: PRAGMA table_info for column
// discovery and IS for null-safe key comparison.
type SQLiteStore struct {
	db    *sql.DB
	retry resilience.RetryConfig
}

// NewSQLite opens a database at the given path and configures WAL mode.
func NewSQLite(dsn string, retry resilience.RetryConfig) (*SQLiteStore, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: conn, retry: retry}, nil
}

const sqliteMigration = `
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
	started_at     DATETIME NOT NULL,
	finished_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_run_log_report_date ON run_log(report_date);
CREATE INDEX IF NOT EXISTS idx_run_log_status ON run_log(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertReport evolves the table schema and writes the rows in one
// transaction, retrying the whole unit on transient failures.
func (s *SQLiteStore) UpsertReport(ctx context.Context, rep Report) (db.UpsertStats, error) {
	cfg := s.retry
	cfg.OnRetry = resilience.RetryLogger("store", "upsert "+rep.Table)

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (db.UpsertStats, error) {
		valid, err := s.ensureSchema(ctx, rep.Table, rep.Headers)
		if err != nil {
			return db.UpsertStats{}, err
		}
		return s.upsertRows(ctx, rep, valid)
	})
}

func (s *SQLiteStore) ensureSchema(ctx context.Context, table string, headers []string) ([]string, error) {
	log := zap.L().With(zap.String("component", "store"), zap.String("table", table))

	if len(headers) == 0 {
		return nil, eris.Errorf("sqlite: ensure schema for %s: no headers", table)
	}

	cols := make([]string, len(headers))
	for i, h := range headers {
		cols[i] = quoteIdent(h) + " TEXT"
	}
	createSQL := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", quoteIdent(table), strings.Join(cols, ", "))
	if _, err := s.db.ExecContext(ctx, createSQL); err != nil {
		return nil, eris.Wrapf(err, "sqlite: create table %s", table)
	}

	existing, err := s.tableColumns(ctx, table)
	if err != nil {
		return nil, err
	}

	for _, h := range headers {
		if existing[h] {
			continue
		}
		alterSQL := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s TEXT", quoteIdent(table), quoteIdent(h))
		if _, err := s.db.ExecContext(ctx, alterSQL); err != nil {
			log.Warn("could not add column", zap.String("column", h), zap.Error(err))
			continue
		}
		existing[h] = true
	}

	var valid []string
	for _, h := range headers {
		if existing[h] {
			valid = append(valid, h)
		}
	}
	if len(valid) == 0 {
		return nil, eris.Errorf("sqlite: no usable columns for %s", table)
	}
	return valid, nil
}

func (s *SQLiteStore) tableColumns(ctx context.Context, table string) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: table_info %s", table)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, colType string
		var notNull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan table_info %s", table)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

func (s *SQLiteStore) upsertRows(ctx context.Context, rep Report, valid []string) (db.UpsertStats, error) {
	stats := db.UpsertStats{SkippedColumns: len(rep.Headers) - len(valid)}
	if len(rep.Rows) == 0 {
		return stats, nil
	}

	validSet := make(map[string]bool, len(valid))
	for _, h := range valid {
		validSet[h] = true
	}
	for _, k := range rep.Keys {
		if !validSet[k] {
			return stats, eris.Errorf("sqlite: upsert into %s: key column %s is not available", rep.Table, k)
		}
	}

	// IS compares null to null as equal in sqlite.
	preds := make([]string, len(rep.Keys))
	for i, k := range rep.Keys {
		preds[i] = quoteIdent(k) + " IS ?"
	}
	existsSQL := fmt.Sprintf("SELECT count(*) FROM %s WHERE %s",
		quoteIdent(rep.Table), strings.Join(preds, " AND "))

	var sets []string
	var nonKeys []string
	for _, h := range valid {
		if !containsKey(rep.Keys, h) {
			sets = append(sets, quoteIdent(h)+" = ?")
			nonKeys = append(nonKeys, h)
		}
	}
	updateSQL := fmt.Sprintf("UPDATE %s SET %s WHERE %s",
		quoteIdent(rep.Table), strings.Join(sets, ", "), strings.Join(preds, " AND "))

	quoted := make([]string, len(valid))
	params := make([]string, len(valid))
	for i, h := range valid {
		quoted[i] = quoteIdent(h)
		params[i] = "?"
	}
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(rep.Table), strings.Join(quoted, ", "), strings.Join(params, ", "))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return stats, eris.Wrapf(err, "sqlite: upsert into %s: begin", rep.Table)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, src := range rep.Rows {
		values := cellMap(rep.Headers, src)

		keyArgs := make([]any, len(rep.Keys))
		for i, k := range rep.Keys {
			keyArgs[i] = values[k]
		}

		var count int
		if err := tx.QueryRowContext(ctx, existsSQL, keyArgs...).Scan(&count); err != nil {
			return stats, eris.Wrapf(err, "sqlite: upsert into %s: existence check", rep.Table)
		}

		if count > 0 {
			if len(nonKeys) > 0 {
				args := make([]any, 0, len(nonKeys)+len(rep.Keys))
				for _, h := range nonKeys {
					args = append(args, values[h])
				}
				args = append(args, keyArgs...)
				if _, err := tx.ExecContext(ctx, updateSQL, args...); err != nil {
					return stats, eris.Wrapf(err, "sqlite: upsert into %s: update", rep.Table)
				}
			}
			stats.Updated++
			continue
		}

		args := make([]any, len(valid))
		for i, h := range valid {
			args[i] = values[h]
		}
		if _, err := tx.ExecContext(ctx, insertSQL, args...); err != nil {
			return stats, eris.Wrapf(err, "sqlite: upsert into %s: insert", rep.Table)
		}
		stats.Inserted++
	}

	if err := tx.Commit(); err != nil {
		return stats, eris.Wrapf(err, "sqlite: upsert into %s: commit", rep.Table)
	}
	return stats, nil
}

func (s *SQLiteStore) StartRun(ctx context.Context, kind, reportDate, runLabel string) (*RunRecord, error) {
	rec := &RunRecord{
		ID:         uuid.New().String(),
		Kind:       kind,
		ReportDate: reportDate,
		RunLabel:   runLabel,
		Status:     RunStatusRunning,
		StartedAt:  time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO run_log (id, kind, report_date, run_label, status, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.Kind, rec.ReportDate, rec.RunLabel, string(rec.Status), rec.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}
	return rec, nil
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, outcome RunOutcome) error {
	issuesJSON, err := json.Marshal(outcome.Issues)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal issues")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE run_log SET status = ?, financial_rows = ?, marketing_rows = ?, issues = ?, error = ?, finished_at = ? WHERE id = ?`,
		string(outcome.Status), outcome.FinancialRows, outcome.MarketingRows,
		string(issuesJSON), outcome.Error, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run not found: %s", runID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error) {
	query := `SELECT id, kind, report_date, run_label, status, financial_rows, marketing_rows, issues, error, started_at, finished_at FROM run_log WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.ReportDate != "" {
		query += ` AND report_date = ?`
		args = append(args, filter.ReportDate)
	}
	query += ` ORDER BY started_at DESC LIMIT ?`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var status string
		var issuesJSON, errMsg sql.NullString
		var finished sql.NullTime

		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.ReportDate, &rec.RunLabel, &status,
			&rec.FinancialRows, &rec.MarketingRows, &issuesJSON, &errMsg,
			&rec.StartedAt, &finished); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		rec.Status = RunStatus(status)
		if errMsg.Valid {
			rec.Error = errMsg.String
		}
		if finished.Valid {
			t := finished.Time
			rec.FinishedAt = &t
		}
		if issuesJSON.Valid && issuesJSON.String != "" {
			if err := json.Unmarshal([]byte(issuesJSON.String), &rec.Issues); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal issues")
			}
		}
		runs = append(runs, rec)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// quoteIdent double-quotes an identifier, escaping embedded quotes.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func containsKey(keys []string, h string) bool {
	for _, k := range keys {
		if k == h {
			return true
		}
	}
	return false
}

// cellMap maps headers to cells, padding short rows with empty strings.
func cellMap(headers []string, row []string) map[string]string {
	values := make(map[string]string, len(headers))
	for i, h := range headers {
		if i < len(row) {
			values[h] = row[i]
		} else {
			values[h] = ""
		}
	}
	return values
}
