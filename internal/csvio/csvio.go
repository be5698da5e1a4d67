// Package csvio provides fail-soft reading and writing of delimited exports.
//
// Vendor exports are frequently missing, zero-byte, or header-only; all three
// are the same "no data" condition and are reported as an absence signal
// rather than an error, so every caller has a defined placeholder branch.
package csvio

import (
	"encoding/csv"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Rows is an ordered table: row 0 is the header, the rest are data rows.
type Rows [][]string

// Header returns the header row, or nil for an empty table.
func (r Rows) Header() []string {
	if len(r) == 0 {
		return nil
	}
	return r[0]
}

// Data returns the data rows (everything after the header).
func (r Rows) Data() [][]string {
	if len(r) <= 1 {
		return nil
	}
	return r[1:]
}

// Store reads and writes CSV files under run-scoped paths.
type Store struct {
	log *zap.Logger
}

// NewStore creates a Store.
func NewStore() *Store {
	return &Store{log: zap.L().With(zap.String("component", "csvio"))}
}

// Read loads a CSV file. It returns ok=false, with no error, when the file
// is missing, zero bytes, unreadable, or contains no data rows; the reason
// is logged. Callers must treat absence as a normal branch.
func (s *Store) Read(path string) (Rows, bool) {
	info, err := os.Stat(path)
	if err != nil {
		s.log.Info("export absent", zap.String("path", path))
		return nil, false
	}
	if info.Size() == 0 {
		s.log.Info("export empty", zap.String("path", path))
		return nil, false
	}

	f, err := os.Open(path)
	if err != nil {
		s.log.Warn("export unreadable", zap.String("path", path), zap.Error(err))
		return nil, false
	}
	defer f.Close() //nolint:errcheck

	reader := csv.NewReader(f)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1 // exports have ragged rows

	records, err := reader.ReadAll()
	if err != nil {
		s.log.Warn("export parse failed", zap.String("path", path), zap.Error(err))
		return nil, false
	}
	if len(records) <= 1 {
		s.log.Info("export has no data rows", zap.String("path", path))
		return nil, false
	}

	return Rows(records), true
}

// Write serializes a full row set, overwriting any existing file.
func (s *Store) Write(path string, rows Rows) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "csvio: create %s", path)
	}

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "csvio: write %s", path)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close() //nolint:errcheck
		return eris.Wrapf(err, "csvio: flush %s", path)
	}

	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "csvio: close %s", path)
	}
	return nil
}

// Remove deletes a run-scoped temp file. Cleanup is best-effort: failures
// are logged and never abort the run.
func (s *Store) Remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.Warn("could not delete temp file", zap.String("path", path), zap.Error(err))
	}
}
