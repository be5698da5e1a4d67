package report

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemba-ops/shopsync/internal/csvio"
)

func testCtx(t *testing.T) RunContext {
	t.Helper()
	return NewRunContext(time.Date(2024, 6, 1, 7, 0, 0, 0, phoenix(t)), phoenix(t))
}

func TestTransposeFinancial_Shape(t *testing.T) {
	rc := testCtx(t)
	// 3 location rows, 2 non-data label columns, 4 metric columns.
	raw := csvio.Rows{
		{"Shop", "ID", "Car Count", "Net Sales", "GP $", "GP %"},
		{"Tempe", "001", "5", "1000", "400", "40"},
		{"Phoenix", "002", "7", "2000", "900", "45"},
		{"Surprise", "006", "2", "500", "150", "30"},
	}

	out, err := TransposeFinancial(raw, rc)
	require.NoError(t, err)

	// One output row per metric column, each with one cell per location
	// plus the two metadata cells.
	assert.Len(t, out.Data(), 4)
	assert.Equal(t, []string{"Location", "Tempe", "Phoenix", "Surprise", "Report_Date", "Created_At"}, out.Header())
	assert.Equal(t, []string{"Car Count", "5", "7", "2", "06/01/2024", "7 AM"}, out.Data()[0])
	assert.Equal(t, []string{"GP %", "40", "45", "30", "06/01/2024", "7 AM"}, out.Data()[3])
}

func TestTransposeFinancial_RoundTripProperty(t *testing.T) {
	rc := testCtx(t)
	const nLocations, mMetrics = 6, 18

	raw := csvio.Rows{make([]string, 0, mMetrics+2)}
	raw[0] = append(raw[0], "Shop", "ID")
	for j := 0; j < mMetrics; j++ {
		raw[0] = append(raw[0], "Metric")
	}
	for i := 0; i < nLocations; i++ {
		row := []string{"Loc", "00"}
		for j := 0; j < mMetrics; j++ {
			row = append(row, "1")
		}
		raw = append(raw, row)
	}

	out, err := TransposeFinancial(raw, rc)
	require.NoError(t, err)

	assert.Len(t, out.Data(), mMetrics, "one row per source metric column")
	for _, row := range out.Data() {
		assert.Len(t, row, 1+nLocations+2, "metric name + one value per location + metadata")
	}
}

func TestTransposeFinancial_RaggedRows(t *testing.T) {
	rc := testCtx(t)
	raw := csvio.Rows{
		{"Shop", "ID", "Car Count", "Net Sales"},
		{"Tempe", "001", "5"}, // short row
		{"Phoenix", "002", "7", "2000"},
	}

	out, err := TransposeFinancial(raw, rc)
	require.NoError(t, err)

	assert.Equal(t, []string{"Net Sales", "", "2000", "06/01/2024", "7 AM"}, out.Data()[1],
		"missing cells become empty strings")
}

func TestTransposeFinancial_NoData(t *testing.T) {
	rc := testCtx(t)

	_, err := TransposeFinancial(nil, rc)
	assert.Error(t, err)

	_, err = TransposeFinancial(csvio.Rows{{"Shop", "ID", "Car Count"}}, rc)
	assert.Error(t, err, "header-only export is no data")

	_, err = TransposeFinancial(csvio.Rows{{"Shop", "ID"}, {"Tempe", "001"}}, rc)
	assert.Error(t, err, "no metric columns past the label columns")
}

func TestTransposeFinancial_EndToEndScenario(t *testing.T) {
	rc := testCtx(t)
	raw := csvio.Rows{
		{"Shop", "ID", "Car Count"},
		{"Tempe", "001", "2"},
		{"Phoenix", "002", "3"},
	}

	out, err := TransposeFinancial(raw, rc)
	require.NoError(t, err)

	require.Len(t, out.Data(), 1)
	assert.Equal(t, []string{"Car Count", "2", "3", "06/01/2024", "7 AM"}, out.Data()[0])
}

func TestEmptyFinancial(t *testing.T) {
	rc := testCtx(t)
	locs := []string{"Tempe", "Phoenix"}

	out := EmptyFinancial(locs, rc)

	assert.Equal(t, []string{"Location", "Tempe", "Phoenix", "Report_Date", "Created_At"}, out.Header())
	assert.Len(t, out.Data(), len(fallbackMetrics))
	for _, row := range out.Data() {
		assert.Equal(t, "0", row[1])
		assert.Equal(t, "0", row[2])
		assert.Equal(t, "06/01/2024", row[3])
		assert.Equal(t, "7 AM", row[4])
	}
	assert.Equal(t, "Car Count", out.Data()[0][0])
}
