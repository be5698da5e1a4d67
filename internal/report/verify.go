package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/gemba-ops/shopsync/internal/csvio"
)

// CountColumns declares which source labels carry the reconciliation
// counts. Labels are matched exactly against raw headers and metric names;
// a label that resolves to nothing becomes an issue, never a silent skip.
type CountColumns struct {
	// FinancialMetric names the transposed metric row whose location cells
	// sum to the financial-side count ("Car Count").
	FinancialMetric string
	// MarketingColumn names the combined-report column whose data cells
	// sum to the marketing-side count ("RO Count", and only that column,
	// not "New RO Count" or "Repeat RO Count").
	MarketingColumn string
	// LocationColumn names the combined-report location column.
	LocationColumn string
}

// VerifyReport holds the advisory reconciliation signals for one run. None
// of them block the upload; mismatches travel to the outbound notification
// as issue strings.
type VerifyReport struct {
	FinancialTotal int
	MarketingTotal int
	LocationsFound int
	LocationNames  []string
	Match          bool
	Issues         []string
}

// Verify cross-checks two independently derived aggregate counts: the
// designated metric row of the transposed financial report against the
// designated count column of the combined marketing report. It also counts
// distinct locations present in the combined report against the expected
// full set.
func Verify(financial, combined csvio.Rows, cols CountColumns, expectedLocations int) VerifyReport {
	log := zap.L().With(zap.String("component", "verify"))
	var rep VerifyReport

	finTotal, finFound := financialTotal(financial, cols.FinancialMetric)
	rep.FinancialTotal = finTotal
	if !finFound {
		rep.Issues = append(rep.Issues,
			fmt.Sprintf("financial metric row %q not found", cols.FinancialMetric))
	}

	mktTotal, locs, colFound := marketingTotals(combined, cols)
	rep.MarketingTotal = mktTotal
	rep.LocationsFound = len(locs)
	rep.LocationNames = locs
	if !colFound {
		rep.Issues = append(rep.Issues,
			fmt.Sprintf("marketing count column %q not found", cols.MarketingColumn))
	}

	if rep.LocationsFound < expectedLocations {
		rep.Issues = append(rep.Issues,
			fmt.Sprintf("missing %d of %d locations", expectedLocations-rep.LocationsFound, expectedLocations))
	}

	rep.Match = finFound && colFound && rep.FinancialTotal == rep.MarketingTotal
	if finFound && colFound && rep.FinancialTotal != rep.MarketingTotal {
		rep.Issues = append(rep.Issues,
			fmt.Sprintf("count mismatch: financial %s (%d) != marketing %s (%d)",
				cols.FinancialMetric, rep.FinancialTotal, cols.MarketingColumn, rep.MarketingTotal))
	}

	if finFound && rep.FinancialTotal == 0 {
		rep.Issues = append(rep.Issues,
			fmt.Sprintf("financial %s total is 0", cols.FinancialMetric))
	}
	// A total of exactly one across all locations means most exports were
	// placeholders, not a quiet day.
	if colFound && rep.MarketingTotal <= 1 {
		rep.Issues = append(rep.Issues,
			fmt.Sprintf("marketing %s total is suspiciously low (%d)", cols.MarketingColumn, rep.MarketingTotal))
	}

	log.Info("verification complete",
		zap.Int("financial_total", rep.FinancialTotal),
		zap.Int("marketing_total", rep.MarketingTotal),
		zap.Int("locations_found", rep.LocationsFound),
		zap.Bool("match", rep.Match),
		zap.Int("issues", len(rep.Issues)),
	)

	return rep
}

// financialTotal sums the location-value cells of the metric row named by
// label. The transposed layout puts the metric name first and the two
// metadata columns last; blank and non-numeric cells count as zero.
func financialTotal(rows csvio.Rows, label string) (int, bool) {
	for _, row := range rows.Data() {
		if len(row) == 0 || strings.TrimSpace(row[0]) != label {
			continue
		}
		total := 0
		for i := 1; i < len(row)-2; i++ {
			total += parseCount(row[i])
		}
		return total, true
	}
	return 0, false
}

// marketingTotals sums the designated count column across all data rows and
// collects the distinct non-empty location values. Synthesized placeholder
// rows are skipped: a location whose export was absent must not count as
// covered.
func marketingTotals(rows csvio.Rows, cols CountColumns) (int, []string, bool) {
	countIdx := -1
	locIdx := -1
	srcIdx := -1
	for i, h := range rows.Header() {
		switch strings.TrimSpace(h) {
		case cols.MarketingColumn:
			countIdx = i
		case cols.LocationColumn:
			locIdx = i
		case ColMarketingSource:
			srcIdx = i
		}
	}
	if countIdx < 0 {
		return 0, nil, false
	}

	total := 0
	locSet := make(map[string]bool)
	for _, row := range rows.Data() {
		if srcIdx >= 0 && srcIdx < len(row) && strings.TrimSpace(row[srcIdx]) == NoDataSentinel {
			continue
		}
		if countIdx < len(row) {
			total += parseCount(row[countIdx])
		}
		if locIdx >= 0 && locIdx < len(row) {
			if loc := strings.TrimSpace(row[locIdx]); loc != "" {
				locSet[loc] = true
			}
		}
	}

	locs := make([]string, 0, len(locSet))
	for loc := range locSet {
		locs = append(locs, loc)
	}
	sort.Strings(locs)

	return total, locs, true
}

// parseCount reads an integer count cell, tolerating float formatting.
// Unparsable cells are zero.
func parseCount(cell string) int {
	s := strings.TrimSpace(cell)
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return int(f)
}
