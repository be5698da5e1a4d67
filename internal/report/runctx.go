// Package report normalizes, reshapes, combines, and reconciles the raw
// dashboard exports into the canonical upload schema.
package report

import (
	"fmt"
	"time"
)

// Metadata column labels stamped onto every processed row. They are run
// metadata, not export content, and always reflect the current run.
const (
	ColLocation   = "Location"
	ColReportDate = "Report_Date"
	ColCreatedAt  = "Created_At"
)

// ColMarketingSource is the raw-export column that names a marketing source.
// Placeholder rows carry NoDataSentinel in this column.
const ColMarketingSource = "Marketing Source"

// NoDataSentinel is the marketing-source value of a synthesized placeholder row.
const NoDataSentinel = "No Data"

// FixRunLabel tags rows rewritten by the daily self-correction job.
const FixRunLabel = "11:59 PM"

// RunContext carries the per-invocation values stamped onto every record.
// It is immutable for the duration of a run. All derivations are anchored
// to the configured named zone, never system-local time.
type RunContext struct {
	// ReportDate is the calendar date the data pertains to, which is not
	// necessarily the wall-clock run date (the fix job targets yesterday).
	ReportDate time.Time
	// RunLabel identifies when within the day the run executed ("7 AM").
	RunLabel string
	// Hour is the 24-hour wall-clock hour encoded into run-scoped filenames.
	Hour int
}

// NewRunContext builds the context for an hourly run at the given instant.
func NewRunContext(now time.Time, zone *time.Location) RunContext {
	local := now.In(zone)
	return RunContext{
		ReportDate: local,
		RunLabel:   hourLabel(local),
		Hour:       local.Hour(),
	}
}

// NewFixContext builds the context for the daily fix job: it re-processes
// the prior day's data under the fixed correction label.
func NewFixContext(now time.Time, zone *time.Location) RunContext {
	local := now.In(zone)
	return RunContext{
		ReportDate: local.AddDate(0, 0, -1),
		RunLabel:   FixRunLabel,
		Hour:       local.Hour(),
	}
}

// hourLabel formats the 12-hour run label, e.g. "7 AM", "12 PM".
func hourLabel(t time.Time) string {
	return t.Format("3 PM")
}

// DateUS returns the report date as MM/DD/YYYY, the form stored in Report_Date.
func (rc RunContext) DateUS() string {
	return rc.ReportDate.Format("01/02/2006")
}

// DateDotted returns the report date as M.D.YYYY, used in financial filenames.
func (rc RunContext) DateDotted() string {
	return fmt.Sprintf("%d.%d.%d", rc.ReportDate.Month(), rc.ReportDate.Day(), rc.ReportDate.Year())
}

// DateShort returns the report date as MM.DD.YY, used in marketing filenames.
func (rc RunContext) DateShort() string {
	return fmt.Sprintf("%02d.%02d.%02d", rc.ReportDate.Month(), rc.ReportDate.Day(), rc.ReportDate.Year()%100)
}

// HourTag returns the run-hour filename suffix, e.g. "H07".
func (rc RunContext) HourTag() string {
	return fmt.Sprintf("H%02d", rc.Hour)
}

// FinancialFilename names the financial export for this run.
func (rc RunContext) FinancialFilename() string {
	return fmt.Sprintf("%s_%s.csv", rc.DateDotted(), rc.HourTag())
}

// LocationFilename names one per-location marketing export for this run.
func (rc RunContext) LocationFilename(fileTag string) string {
	return fmt.Sprintf("%s-%s_%s.csv", fileTag, rc.DateShort(), rc.HourTag())
}

// CombinedFilename names the combined marketing report for this run.
func (rc RunContext) CombinedFilename(prefix string) string {
	return fmt.Sprintf("%s_RO_%s_%s.csv", prefix, rc.DateShort(), rc.HourTag())
}
