package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gemba-ops/shopsync/internal/csvio"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

var testCols = CountColumns{
	FinancialMetric: "Car Count",
	MarketingColumn: "RO Count",
	LocationColumn:  "Location",
}

func financialRows(carCounts ...string) csvio.Rows {
	header := []string{"Location"}
	carRow := []string{"Car Count"}
	salesRow := []string{"Net Sales"}
	for i, c := range carCounts {
		header = append(header, "Loc"+string(rune('A'+i)))
		carRow = append(carRow, c)
		salesRow = append(salesRow, "100")
	}
	header = append(header, "Report_Date", "Created_At")
	carRow = append(carRow, "06/01/2024", "7 AM")
	salesRow = append(salesRow, "06/01/2024", "7 AM")
	return csvio.Rows{header, salesRow, carRow}
}

func marketingRows(counts map[string][]string) csvio.Rows {
	rows := csvio.Rows{{"Marketing Source", "RO Count", "New RO Count", "Location"}}
	for loc, vals := range counts {
		for _, v := range vals {
			rows = append(rows, []string{"Google", v, "99", loc})
		}
	}
	return rows
}

func TestVerify_Match(t *testing.T) {
	fin := financialRows("20", "22")
	mkt := marketingRows(map[string][]string{"LocA": {"20"}, "LocB": {"22"}})

	rep := Verify(fin, mkt, testCols, 2)

	assert.Equal(t, 42, rep.FinancialTotal)
	assert.Equal(t, 42, rep.MarketingTotal)
	assert.True(t, rep.Match)
	assert.Equal(t, 2, rep.LocationsFound)
	assert.Empty(t, rep.Issues)
}

func TestVerify_Mismatch(t *testing.T) {
	fin := financialRows("20", "22")
	mkt := marketingRows(map[string][]string{"LocA": {"18"}, "LocB": {"22"}})

	rep := Verify(fin, mkt, testCols, 2)

	assert.False(t, rep.Match)
	require.Len(t, rep.Issues, 1)
	assert.Contains(t, rep.Issues[0], "42")
	assert.Contains(t, rep.Issues[0], "40")
}

func TestVerify_ExactColumnName(t *testing.T) {
	// Only the exact "RO Count" column participates; "New RO Count" and
	// "Repeat RO Count" must not inflate the total.
	rows := csvio.Rows{
		{"Marketing Source", "New RO Count", "RO Count", "Repeat RO Count", "Location"},
		{"Google", "50", "3", "70", "Tempe"},
		{"Referral", "60", "4", "80", "Tempe"},
	}

	rep := Verify(financialRows("7"), rows, testCols, 1)
	assert.Equal(t, 7, rep.MarketingTotal)
	assert.True(t, rep.Match)
}

func TestVerify_UnderCoverage(t *testing.T) {
	fin := financialRows("10")
	mkt := marketingRows(map[string][]string{"LocA": {"10"}})

	rep := Verify(fin, mkt, testCols, 6)

	assert.Equal(t, 1, rep.LocationsFound)
	found := false
	for _, iss := range rep.Issues {
		if strings.Contains(iss, "missing 5 of 6 locations") {
			found = true
		}
	}
	assert.True(t, found, "issues: %v", rep.Issues)
}

func TestVerify_ZeroTotalsFlagged(t *testing.T) {
	fin := financialRows("0", "0")
	mkt := marketingRows(map[string][]string{"LocA": {"0"}, "LocB": {"0"}})

	rep := Verify(fin, mkt, testCols, 2)

	assert.True(t, rep.Match, "0 == 0 still matches")
	var hasFinZero, hasMktLow bool
	for _, iss := range rep.Issues {
		if strings.Contains(iss, "financial Car Count total is 0") {
			hasFinZero = true
		}
		if strings.Contains(iss, "suspiciously low") {
			hasMktLow = true
		}
	}
	assert.True(t, hasFinZero)
	assert.True(t, hasMktLow)
}

func TestVerify_MissingColumnsSurfaced(t *testing.T) {
	fin := csvio.Rows{
		{"Location", "LocA", "Report_Date", "Created_At"},
		{"Net Sales", "100", "06/01/2024", "7 AM"},
	}
	mkt := csvio.Rows{
		{"Marketing Source", "Location"},
		{"Google", "LocA"},
	}

	rep := Verify(fin, mkt, testCols, 1)

	assert.False(t, rep.Match)
	joined := strings.Join(rep.Issues, "; ")
	assert.Contains(t, joined, `financial metric row "Car Count" not found`)
	assert.Contains(t, joined, `marketing count column "RO Count" not found`)
}

func TestVerify_PlaceholderRowsDoNotCover(t *testing.T) {
	fin := financialRows("5")
	mkt := csvio.Rows{
		{"Marketing Source", "RO Count", "Location"},
		{"Google", "5", "LocA"},
		{NoDataSentinel, "0", "LocB"},
	}

	rep := Verify(fin, mkt, testCols, 2)

	assert.Equal(t, 1, rep.LocationsFound, "a placeholder location is not covered")
	assert.Equal(t, []string{"LocA"}, rep.LocationNames)
}

func TestVerify_PlaceholderDetectedInReorderedHeader(t *testing.T) {
	// The combined header comes from the first readable export, which may
	// order its columns however it likes; the sentinel is found by the
	// "Marketing Source" column, not by position.
	fin := financialRows("5")
	mkt := csvio.Rows{
		{"Location", "RO Count", "Marketing Source"},
		{"LocA", "5", "Google"},
		{"LocB", "0", NoDataSentinel},
	}

	rep := Verify(fin, mkt, testCols, 2)

	assert.Equal(t, 1, rep.LocationsFound, "a placeholder location is not covered")
	assert.Equal(t, []string{"LocA"}, rep.LocationNames)
	found := false
	for _, iss := range rep.Issues {
		if strings.Contains(iss, "missing 1 of 2 locations") {
			found = true
		}
	}
	assert.True(t, found, "issues: %v", rep.Issues)
}

func TestVerify_UnparsableCells(t *testing.T) {
	fin := financialRows("20", "n/a", "22.0")
	mkt := marketingRows(map[string][]string{"LocA": {"42", "", "x"}})

	rep := Verify(fin, mkt, testCols, 1)

	assert.Equal(t, 42, rep.FinancialTotal, "blank and non-numeric cells count as zero")
	assert.Equal(t, 42, rep.MarketingTotal)
	assert.True(t, rep.Match)
}
