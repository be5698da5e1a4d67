package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gemba-ops/shopsync/internal/csvio"
)

func normalized(t *testing.T, loc string, sources ...string) csvio.Rows {
	t.Helper()
	rc := testCtx(t)
	raw := csvio.Rows{{"Marketing Source", "RO Count"}}
	for _, src := range sources {
		raw = append(raw, []string{src, "1"})
	}
	return NormalizeLocation(raw, loc, rc)
}

func TestCombine_AllPresent(t *testing.T) {
	rc := testCtx(t)
	groups := []LocationGroup{
		{Location: "Tempe", Rows: normalized(t, "Tempe", "Google", "Referral")},
		{Location: "Phoenix", Rows: normalized(t, "Phoenix", "Google")},
	}

	out, contributed, err := Combine(groups, rc)
	require.NoError(t, err)

	assert.Equal(t, 2, contributed)
	assert.Equal(t, groups[0].Rows.Header(), out.Header())
	assert.Len(t, out.Data(), 3)
}

func TestCombine_MissingLocationsGetPlaceholders(t *testing.T) {
	rc := testCtx(t)
	// Six configured locations; indices 1 and 3 unreadable.
	locs := []string{"Mesa Broadway", "Mesa Guadalupe", "Phoenix", "Tempe", "Sun City West", "Surprise"}
	groups := make([]LocationGroup, len(locs))
	for i, loc := range locs {
		groups[i] = LocationGroup{Location: loc}
		if i != 1 && i != 3 {
			groups[i].Rows = normalized(t, loc, "Google")
		}
	}

	out, contributed, err := Combine(groups, rc)
	require.NoError(t, err)

	assert.Equal(t, 4, contributed)
	// One logical group per configured location, single shared header.
	assert.Len(t, out.Data(), 6)

	header := out.Header()
	srcIdx := indexOf(header, "Marketing Source")
	locIdx := indexOf(header, ColLocation)
	require.GreaterOrEqual(t, srcIdx, 0)
	require.GreaterOrEqual(t, locIdx, 0)

	assert.Equal(t, NoDataSentinel, out.Data()[1][srcIdx])
	assert.Equal(t, "Mesa Guadalupe", out.Data()[1][locIdx])
	assert.Equal(t, NoDataSentinel, out.Data()[3][srcIdx])
	assert.Equal(t, "Tempe", out.Data()[3][locIdx])
}

func TestCombine_HeaderFromFirstReadable(t *testing.T) {
	rc := testCtx(t)
	groups := []LocationGroup{
		{Location: "Mesa Broadway"}, // absent
		{Location: "Phoenix", Rows: normalized(t, "Phoenix", "Google")},
	}

	out, contributed, err := Combine(groups, rc)
	require.NoError(t, err)

	assert.Equal(t, 1, contributed)
	// The first group is a placeholder, so the shared header is the
	// placeholder schema; the readable group's rows follow it.
	assert.Len(t, out.Header(), 14)
	assert.Len(t, out.Data(), 2)
}

func TestCombine_AlignsMismatchedSchemas(t *testing.T) {
	rc := testCtx(t)
	// One shop's dashboard export carries an extra column and a different
	// column order; its rows are realigned onto the shared header.
	odd := NormalizeLocation(csvio.Rows{
		{"RO Count", "Loyalty Tier", "Marketing Source"},
		{"3", "Gold", "Referral"},
	}, "Phoenix", rc)

	groups := []LocationGroup{
		{Location: "Tempe", Rows: normalized(t, "Tempe", "Google")},
		{Location: "Phoenix", Rows: odd},
	}

	out, contributed, err := Combine(groups, rc)
	require.NoError(t, err)
	assert.Equal(t, 2, contributed)

	header := out.Header()
	srcIdx := indexOf(header, "Marketing Source")
	roIdx := indexOf(header, "RO Count")
	require.GreaterOrEqual(t, srcIdx, 0)

	phoenixRow := out.Data()[1]
	assert.Equal(t, "Referral", phoenixRow[srcIdx])
	assert.Equal(t, "3", phoenixRow[roIdx])
	assert.Equal(t, -1, indexOf(header, "Loyalty Tier"), "columns outside the shared schema are dropped")
}

func TestCombine_AllAbsentFails(t *testing.T) {
	rc := testCtx(t)
	groups := []LocationGroup{
		{Location: "Tempe"},
		{Location: "Phoenix"},
	}

	_, _, err := Combine(groups, rc)
	require.Error(t, err, "every location unreadable signals an upstream failure")
}
