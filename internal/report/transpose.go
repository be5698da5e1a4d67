package report

import (
	"github.com/rotisserie/eris"

	"github.com/gemba-ops/shopsync/internal/csvio"
)

// fallbackMetrics is the fixed metric set used when the financial export is
// absent and an all-zero record set has to stand in for it.
var fallbackMetrics = []string{
	"Car Count", "Hours Presented", "Hours Sold", "AWRO", "Close Ratio",
	"Effective Labor Rate", "ARO Sales", "ARO Profit", "ARO Profit Margin",
	"Gross Sales/Hr", "Gross Profit/Hr", "Total Written Sales", "Net Sales",
	"Total Fees", "Total Discounts", "Total Cost", "Total GP $", "Total GP %",
}

// TransposeFinancial reshapes the wide financial export. The input has one
// location per data row and one metric per column (the first two header
// cells are non-data labels). The output has one row per source column
// index >= 2: the original column header, then that metric's value for
// every data row in order, then the report date and run label.
//
// The output header is Location, the first cell of every data row, then
// Report_Date and Created_At; its location set is exactly the locations
// present as data rows, order preserved. Ragged data rows contribute empty
// cells, not errors.
func TransposeFinancial(raw csvio.Rows, rc RunContext) (csvio.Rows, error) {
	header := raw.Header()
	data := raw.Data()
	if len(header) == 0 || len(data) == 0 {
		return nil, eris.New("report: transpose: export has no data rows")
	}

	outHeader := make([]string, 0, len(data)+3)
	outHeader = append(outHeader, ColLocation)
	for _, row := range data {
		if len(row) > 0 {
			outHeader = append(outHeader, row[0])
		}
	}
	outHeader = append(outHeader, ColReportDate, ColCreatedAt)

	out := csvio.Rows{outHeader}
	for col := 2; col < len(header); col++ {
		row := make([]string, 0, len(data)+3)
		row = append(row, header[col])
		for _, src := range data {
			if col < len(src) {
				row = append(row, src[col])
			} else {
				row = append(row, "")
			}
		}
		row = append(row, rc.DateUS(), rc.RunLabel)
		out = append(out, row)
	}

	if len(out) == 1 {
		return nil, eris.New("report: transpose: export has no metric columns")
	}
	return out, nil
}

// EmptyFinancial synthesizes the all-zero transposed record set used when
// the financial export cannot be read: one row per fallback metric, a zero
// for every configured location, still carrying the run metadata.
func EmptyFinancial(locations []string, rc RunContext) csvio.Rows {
	header := make([]string, 0, len(locations)+3)
	header = append(header, ColLocation)
	header = append(header, locations...)
	header = append(header, ColReportDate, ColCreatedAt)

	out := csvio.Rows{header}
	for _, metric := range fallbackMetrics {
		row := make([]string, 0, len(locations)+3)
		row = append(row, metric)
		for range locations {
			row = append(row, "0")
		}
		row = append(row, rc.DateUS(), rc.RunLabel)
		out = append(out, row)
	}
	return out
}
