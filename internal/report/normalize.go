package report

import (
	"github.com/gemba-ops/shopsync/internal/csvio"
)

// placeholderHeader is the fixed 14-column schema of a synthesized
// per-location marketing record.
var placeholderHeader = []string{
	ColMarketingSource, "Total Sales", "RO Count", "New Sales", "New RO Count",
	"Repeat Sales", "Repeat RO Count", "Average RO", "GP $", "GP %", "Close Ratio",
	ColLocation, ColReportDate, ColCreatedAt,
}

// PlaceholderLocation synthesizes the stand-in record set for a location
// whose export is absent: one row with the "No Data" sentinel source,
// zero-filled numeric fields, and the run metadata. Output depends only on
// (location, rc), so repeated calls are byte-identical.
func PlaceholderLocation(location string, rc RunContext) csvio.Rows {
	row := []string{
		NoDataSentinel, "0", "0", "0", "0", "0", "0", "0", "0", "0", "0",
		location, rc.DateUS(), rc.RunLabel,
	}
	return csvio.Rows{append([]string(nil), placeholderHeader...), row}
}

// NormalizeLocation stamps a per-location marketing export with run
// metadata. A nil input yields the placeholder record set. Otherwise the
// Location, Report_Date, and Created_At header columns are appended if
// absent, short rows are padded to header length, and the three metadata
// cells are overwritten on every data row: they describe the current run,
// not whatever the export happened to contain.
func NormalizeLocation(raw csvio.Rows, location string, rc RunContext) csvio.Rows {
	if len(raw) == 0 {
		return PlaceholderLocation(location, rc)
	}

	header := append([]string(nil), raw.Header()...)
	for _, col := range []string{ColLocation, ColReportDate, ColCreatedAt} {
		if indexOf(header, col) < 0 {
			header = append(header, col)
		}
	}
	locIdx := indexOf(header, ColLocation)
	dateIdx := indexOf(header, ColReportDate)
	createdIdx := indexOf(header, ColCreatedAt)

	out := csvio.Rows{header}

	data := raw.Data()
	if len(data) == 0 {
		// Header-only export: one synthesized empty row carries the metadata.
		data = [][]string{make([]string, len(header))}
	}

	for _, src := range data {
		row := append([]string(nil), src...)
		for len(row) < len(header) {
			row = append(row, "")
		}
		row[locIdx] = location
		row[dateIdx] = rc.DateUS()
		row[createdIdx] = rc.RunLabel
		out = append(out, row)
	}

	return out
}

func indexOf(cols []string, name string) int {
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}
