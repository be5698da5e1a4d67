package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gemba-ops/shopsync/internal/db"
	"github.com/gemba-ops/shopsync/internal/resilience"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shopsync.db")
	s, err := NewSQLite(path, resilience.RetryConfig{MaxAttempts: 1})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func countRows(t *testing.T, s *SQLiteStore, table string) int {
	t.Helper()
	var n int
	require.NoError(t, s.db.QueryRow("SELECT count(*) FROM "+quoteIdent(table)).Scan(&n))
	return n
}

func financialReport(rows [][]string) Report {
	return Report{
		Table:   "custom_financials",
		Headers: []string{"Location", "Tempe", "Phoenix", "Report_Date", "Created_At"},
		Keys:    []string{"Location", "Report_Date"},
		Rows:    rows,
	}
}

func TestSQLiteUpsertReport_InsertsRows(t *testing.T) {
	s := newSQLiteStore(t)

	stats, err := s.UpsertReport(context.Background(), financialReport([][]string{
		{"Car Count", "7", "5", "06/01/2024", "7 AM"},
		{"Net Sales", "1200", "900", "06/01/2024", "7 AM"},
	}))
	require.NoError(t, err)

	assert.Equal(t, db.UpsertStats{Inserted: 2}, stats)
	assert.Equal(t, 2, countRows(t, s, "custom_financials"))
}

func TestSQLiteUpsertReport_Idempotent(t *testing.T) {
	s := newSQLiteStore(t)
	rep := financialReport([][]string{
		{"Car Count", "7", "5", "06/01/2024", "7 AM"},
		{"Net Sales", "1200", "900", "06/01/2024", "7 AM"},
	})

	_, err := s.UpsertReport(context.Background(), rep)
	require.NoError(t, err)
	stats, err := s.UpsertReport(context.Background(), rep)
	require.NoError(t, err)

	assert.Equal(t, db.UpsertStats{Updated: 2}, stats)
	assert.Equal(t, 2, countRows(t, s, "custom_financials"), "replaying a report must not grow the table")
}

func TestSQLiteUpsertReport_LaterRunOverwrites(t *testing.T) {
	s := newSQLiteStore(t)

	_, err := s.UpsertReport(context.Background(), financialReport([][]string{
		{"Car Count", "7", "5", "06/01/2024", "7 AM"},
	}))
	require.NoError(t, err)

	// Same report date, later hour: the row is replaced in place.
	_, err = s.UpsertReport(context.Background(), financialReport([][]string{
		{"Car Count", "9", "6", "06/01/2024", "8 AM"},
	}))
	require.NoError(t, err)

	assert.Equal(t, 1, countRows(t, s, "custom_financials"))
	var tempe, createdAt string
	require.NoError(t, s.db.QueryRow(
		`SELECT "Tempe", "Created_At" FROM "custom_financials" WHERE "Location" = 'Car Count'`,
	).Scan(&tempe, &createdAt))
	assert.Equal(t, "9", tempe)
	assert.Equal(t, "8 AM", createdAt)
}

func TestSQLiteUpsertReport_DistinctDatesCoexist(t *testing.T) {
	s := newSQLiteStore(t)

	for _, date := range []string{"06/01/2024", "06/02/2024"} {
		_, err := s.UpsertReport(context.Background(), financialReport([][]string{
			{"Car Count", "7", "5", date, "7 AM"},
		}))
		require.NoError(t, err)
	}

	assert.Equal(t, 2, countRows(t, s, "custom_financials"))
}

func TestSQLiteUpsertReport_EvolvesSchema(t *testing.T) {
	s := newSQLiteStore(t)

	_, err := s.UpsertReport(context.Background(), financialReport([][]string{
		{"Car Count", "7", "5", "06/01/2024", "7 AM"},
	}))
	require.NoError(t, err)

	// A seventh shop opens: the export grows a column mid-stream.
	wider := Report{
		Table:   "custom_financials",
		Headers: []string{"Location", "Tempe", "Phoenix", "Surprise", "Report_Date", "Created_At"},
		Keys:    []string{"Location", "Report_Date"},
		Rows: [][]string{
			{"Car Count", "8", "6", "3", "06/02/2024", "7 AM"},
		},
	}
	stats, err := s.UpsertReport(context.Background(), wider)
	require.NoError(t, err)
	assert.Equal(t, db.UpsertStats{Inserted: 1}, stats)

	cols, err := s.tableColumns(context.Background(), "custom_financials")
	require.NoError(t, err)
	assert.True(t, cols["Surprise"])
}

func TestSQLiteUpsertReport_PadsShortRows(t *testing.T) {
	s := newSQLiteStore(t)

	_, err := s.UpsertReport(context.Background(), financialReport([][]string{
		{"Car Count", "7"},
	}))
	require.NoError(t, err)

	var phoenix string
	require.NoError(t, s.db.QueryRow(
		`SELECT "Phoenix" FROM "custom_financials"`,
	).Scan(&phoenix))
	assert.Equal(t, "", phoenix)
}

func TestSQLiteRunLog_RoundTrip(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	rec, err := s.StartRun(ctx, "hourly", "06/01/2024", "7 AM")
	require.NoError(t, err)
	require.NotEmpty(t, rec.ID)
	assert.Equal(t, RunStatusRunning, rec.Status)

	err = s.CompleteRun(ctx, rec.ID, RunOutcome{
		Status:        RunStatusSuccess,
		FinancialRows: 18,
		MarketingRows: 12,
		Issues:        []string{"missing 1 of 6 locations"},
	})
	require.NoError(t, err)

	runs, err := s.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	require.Len(t, runs, 1)

	got := runs[0]
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, "hourly", got.Kind)
	assert.Equal(t, RunStatusSuccess, got.Status)
	assert.Equal(t, 18, got.FinancialRows)
	assert.Equal(t, 12, got.MarketingRows)
	assert.Equal(t, []string{"missing 1 of 6 locations"}, got.Issues)
	require.NotNil(t, got.FinishedAt)
}

func TestSQLiteRunLog_Filters(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	a, err := s.StartRun(ctx, "hourly", "06/01/2024", "7 AM")
	require.NoError(t, err)
	require.NoError(t, s.CompleteRun(ctx, a.ID, RunOutcome{Status: RunStatusFailed, Error: "boom"}))

	_, err = s.StartRun(ctx, "fix", "06/02/2024", "11:59 PM")
	require.NoError(t, err)

	failed, err := s.ListRuns(ctx, RunFilter{Status: RunStatusFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "boom", failed[0].Error)

	byDate, err := s.ListRuns(ctx, RunFilter{ReportDate: "06/02/2024"})
	require.NoError(t, err)
	require.Len(t, byDate, 1)
	assert.Equal(t, "fix", byDate[0].Kind)
}

func TestSQLiteCompleteRun_UnknownID(t *testing.T) {
	s := newSQLiteStore(t)
	err := s.CompleteRun(context.Background(), "nope", RunOutcome{Status: RunStatusSuccess})
	require.Error(t, err)
}
