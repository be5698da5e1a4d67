package report

import (
	"github.com/rotisserie/eris"

	"github.com/gemba-ops/shopsync/internal/csvio"
)

// LocationGroup pairs a location name with its normalized report rows.
// Rows is nil when the location's export could not be read.
type LocationGroup struct {
	Location string
	Rows     csvio.Rows
}

// Combine merges the per-location marketing reports, in the canonical
// location order of the input slice, into one table sharing a single
// header row. The header is taken from the first readable input;
// unreadable locations contribute a placeholder group so the combined
// report always holds one group per configured location. Groups whose
// own schema differs from the shared header are realigned by column
// name, with unknown columns dropped and missing ones left blank. It
// fails only when every location is unreadable, which signals an
// upstream fetch problem rather than empty data.
func Combine(groups []LocationGroup, rc RunContext) (csvio.Rows, int, error) {
	contributed := 0
	for _, g := range groups {
		if len(g.Rows) > 0 {
			contributed++
		}
	}
	if contributed == 0 {
		return nil, 0, eris.New("report: combine: no location reports to combine")
	}

	var out csvio.Rows
	var header []string
	for _, g := range groups {
		rows := g.Rows
		if len(rows) == 0 {
			rows = PlaceholderLocation(g.Location, rc)
		}
		if header == nil {
			header = rows.Header()
			out = append(out, header)
		}
		out = append(out, alignRows(header, rows)...)
	}

	return out, contributed, nil
}

// alignRows reshapes a group's data rows onto the shared header.
func alignRows(header []string, rows csvio.Rows) [][]string {
	if sameHeader(header, rows.Header()) {
		return rows.Data()
	}

	srcIdx := make(map[string]int, len(rows.Header()))
	for i, col := range rows.Header() {
		if _, dup := srcIdx[col]; !dup {
			srcIdx[col] = i
		}
	}

	aligned := make([][]string, 0, len(rows.Data()))
	for _, src := range rows.Data() {
		row := make([]string, len(header))
		for i, col := range header {
			if j, ok := srcIdx[col]; ok && j < len(src) {
				row[i] = src[j]
			}
		}
		aligned = append(aligned, row)
	}
	return aligned
}

func sameHeader(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
