// Package store persists transposed reports and the run audit log behind a
// driver-agnostic interface with postgres and sqlite backends.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/gemba-ops/shopsync/internal/config"
	"github.com/gemba-ops/shopsync/internal/db"
	"github.com/gemba-ops/shopsync/internal/resilience"
)

// Report is one upsert payload: a destination table, the sanitized headers
// in upload order, the key columns, and the data rows.
type Report struct {
	Table   string
	Headers []string
	Keys    []string
	Rows    [][]string
}

// RunStatus tracks a run through the audit log.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusFailed  RunStatus = "failed"
)

// RunRecord is one row of the run audit log.
type RunRecord struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	ReportDate    string     `json:"report_date"`
	RunLabel      string     `json:"run_label"`
	Status        RunStatus  `json:"status"`
	FinancialRows int        `json:"financial_rows"`
	MarketingRows int        `json:"marketing_rows"`
	Issues        []string   `json:"issues,omitempty"`
	Error         string     `json:"error,omitempty"`
	StartedAt     time.Time  `json:"started_at"`
	FinishedAt    *time.Time `json:"finished_at,omitempty"`
}

// RunOutcome finalizes a run record.
type RunOutcome struct {
	Status        RunStatus
	FinancialRows int
	MarketingRows int
	Issues        []string
	Error         string
}

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status     RunStatus
	ReportDate string
	Limit      int
}

// Store defines the persistence interface for the sync pipeline.
type Store interface {
	// UpsertReport evolves the destination schema to cover the report's
	// headers, then inserts or updates each row on its key columns.
	UpsertReport(ctx context.Context, rep Report) (db.UpsertStats, error)

	// Run audit log
	StartRun(ctx context.Context, kind, reportDate, runLabel string) (*RunRecord, error)
	CompleteRun(ctx context.Context, runID string, outcome RunOutcome) error
	ListRuns(ctx context.Context, filter RunFilter) ([]RunRecord, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs the configured backend and runs migrations.
func Open(ctx context.Context, cfg config.StoreConfig, retry resilience.RetryConfig) (Store, error) {
	var s Store
	switch cfg.Driver {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "store: connect postgres")
		}
		s = NewPostgres(pool, retry)
	case "sqlite":
		sq, err := NewSQLite(cfg.DatabaseURL, retry)
		if err != nil {
			return nil, err
		}
		s = sq
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}

	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// RetryFromConfig translates the configured retry bounds into resilience
// settings, keeping defaults for anything unset.
func RetryFromConfig(cfg config.RetryConfig) resilience.RetryConfig {
	rc := resilience.DefaultRetryConfig()
	if cfg.MaxAttempts > 0 {
		rc.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialBackoffMS > 0 {
		rc.InitialBackoff = time.Duration(cfg.InitialBackoffMS) * time.Millisecond
	}
	if cfg.MaxBackoffMS > 0 {
		rc.MaxBackoff = time.Duration(cfg.MaxBackoffMS) * time.Millisecond
	}
	return rc
}
