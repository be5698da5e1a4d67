// Package runner orchestrates one sync run: locate exports, reshape them,
// reconcile the counts, upload, and report the outcome.
package runner

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/gemba-ops/shopsync/internal/config"
	"github.com/gemba-ops/shopsync/internal/csvio"
	"github.com/gemba-ops/shopsync/internal/fetcher"
	"github.com/gemba-ops/shopsync/internal/notify"
	"github.com/gemba-ops/shopsync/internal/report"
	"github.com/gemba-ops/shopsync/internal/store"
)

// Run kinds recorded in the audit log.
const (
	KindHourly = "hourly"
	KindFix    = "fix"
)

// Upsert identity columns. The run label is deliberately not part of either
// key: within one report date, later runs overwrite earlier rows.
var (
	financialKeys = []string{"Location", "Report_Date"}
	marketingKeys = []string{"Marketing_Source", "Location", "Report_Date"}
)

// Result summarizes one completed (or failed) run.
type Result struct {
	Kind          string
	ReportDate    string
	RunLabel      string
	Success       bool
	FinancialRows int
	MarketingRows int
	Verify        report.VerifyReport
	Issues        []string
}

// Runner wires the pipeline stages together.
type Runner struct {
	cfg      *config.Config
	zone     *time.Location
	csv      *csvio.Store
	fetch    fetcher.Fetcher
	store    store.Store
	notifier notify.Notifier
	log      *zap.Logger
}

// New builds a Runner over the given collaborators.
func New(cfg *config.Config, zone *time.Location, fetch fetcher.Fetcher, st store.Store, n notify.Notifier) *Runner {
	return &Runner{
		cfg:      cfg,
		zone:     zone,
		csv:      csvio.NewStore(),
		fetch:    fetch,
		store:    st,
		notifier: n,
		log:      zap.L().With(zap.String("component", "runner")),
	}
}

// RunHourly executes the hourly sync anchored at the given instant.
func (r *Runner) RunHourly(ctx context.Context, now time.Time) (*Result, error) {
	return r.run(ctx, report.NewRunContext(now, r.zone), KindHourly)
}

// RunFix executes the end-of-day correction pass: it re-processes yesterday's
// exports under the fixed correction label, overwriting the day's rows with
// final numbers.
func (r *Runner) RunFix(ctx context.Context, now time.Time) (*Result, error) {
	return r.run(ctx, report.NewFixContext(now, r.zone), KindFix)
}

func (r *Runner) run(ctx context.Context, rc report.RunContext, kind string) (*Result, error) {
	res := &Result{Kind: kind, ReportDate: rc.DateUS(), RunLabel: rc.RunLabel}
	log := r.log.With(
		zap.String("kind", kind),
		zap.String("report_date", res.ReportDate),
		zap.String("run_label", res.RunLabel),
	)
	log.Info("run started")

	// The audit row is best-effort: a run must not die because its log
	// entry could not be written.
	var runID string
	if rec, err := r.store.StartRun(ctx, kind, res.ReportDate, res.RunLabel); err != nil {
		log.Warn("could not record run start", zap.Error(err))
	} else {
		runID = rec.ID
	}

	transposed, finPath, finPresent := r.loadFinancial(rc, res)

	groups, presentPaths := r.loadLocations(rc)
	combined, contributed, combineErr := report.Combine(groups, rc)
	if combineErr != nil {
		// Every location export unreadable at once points at an upstream
		// outage, not six quiet shops. If the financial export was also
		// unreadable nothing is uploaded; otherwise the financial rows are
		// still good and only the marketing side is dropped.
		if !finPresent {
			return r.fail(ctx, res, runID, eris.Wrap(combineErr, "runner: no export of either kind was readable"))
		}
		log.Warn("no location exports readable; skipping marketing upload", zap.Error(combineErr))
		res.Issues = append(res.Issues, "no location exports were readable; marketing upload skipped")
	} else {
		if contributed < len(groups) {
			res.Issues = append(res.Issues,
				fmt.Sprintf("synthesized placeholders for %d of %d locations", len(groups)-contributed, len(groups)))
		}

		combinedPath := filepath.Join(r.cfg.Dirs.Marketing, rc.CombinedFilename(r.cfg.Dirs.CombinedPrefix))
		if err := r.csv.Write(combinedPath, combined); err != nil {
			return r.fail(ctx, res, runID, err)
		}
		// The per-location exports are folded into the combined report; they
		// are run-scoped temp files from here on.
		for _, p := range presentPaths {
			r.csv.Remove(p)
		}

		res.Verify = report.Verify(transposed, combined, report.CountColumns{
			FinancialMetric: r.cfg.Verify.FinancialMetric,
			MarketingColumn: r.cfg.Verify.MarketingColumn,
			LocationColumn:  r.cfg.Verify.LocationColumn,
		}, len(r.cfg.Locations))
		res.Issues = append(res.Issues, res.Verify.Issues...)
	}

	// The two uploads are independent: a financial failure must not block
	// the marketing rows, and vice versa.
	var uploadErrs []error

	finStats, err := r.store.UpsertReport(ctx, store.Report{
		Table:   r.cfg.Store.FinancialTable,
		Headers: report.SanitizeHeaders(transposed.Header()),
		Keys:    financialKeys,
		Rows:    transposed.Data(),
	})
	if err != nil {
		uploadErrs = append(uploadErrs, eris.Wrap(err, "runner: financial upload"))
	} else {
		res.FinancialRows = finStats.Inserted + finStats.Updated
		if finPresent {
			r.csv.Remove(finPath)
		}
		log.Info("financial report uploaded",
			zap.Int("inserted", finStats.Inserted),
			zap.Int("updated", finStats.Updated),
			zap.Int("skipped_columns", finStats.SkippedColumns),
		)
	}

	if combineErr == nil {
		mktStats, err := r.store.UpsertReport(ctx, store.Report{
			Table:   r.cfg.Store.MarketingTable,
			Headers: report.SanitizeHeaders(combined.Header()),
			Keys:    marketingKeys,
			Rows:    combined.Data(),
		})
		if err != nil {
			uploadErrs = append(uploadErrs, eris.Wrap(err, "runner: marketing upload"))
		} else {
			res.MarketingRows = mktStats.Inserted + mktStats.Updated
			log.Info("marketing report uploaded",
				zap.Int("inserted", mktStats.Inserted),
				zap.Int("updated", mktStats.Updated),
				zap.Int("skipped_columns", mktStats.SkippedColumns),
			)
		}
	}

	if len(uploadErrs) > 0 {
		err := uploadErrs[0]
		if len(uploadErrs) == 2 {
			err = eris.Wrap(uploadErrs[1], uploadErrs[0].Error())
		}
		return r.fail(ctx, res, runID, err)
	}

	res.Success = true
	r.completeRun(ctx, runID, res, "")
	r.sendSummary(ctx, res, "")
	log.Info("run complete",
		zap.Int("financial_rows", res.FinancialRows),
		zap.Int("marketing_rows", res.MarketingRows),
		zap.Int("issues", len(res.Issues)),
	)
	return res, nil
}

// loadFinancial reads and transposes the financial export, falling back to
// the all-zero record set when it is absent or malformed.
func (r *Runner) loadFinancial(rc report.RunContext, res *Result) (csvio.Rows, string, bool) {
	path, present := r.fetch.Financial(rc)
	if present {
		if raw, ok := r.csv.Read(path); ok {
			if transposed, err := report.TransposeFinancial(raw, rc); err == nil {
				return transposed, path, true
			} else {
				r.log.Warn("financial export not transposable", zap.String("path", path), zap.Error(err))
				res.Issues = append(res.Issues, "financial export was malformed; uploaded zero fallback")
				return report.EmptyFinancial(r.locationNames(), rc), path, true
			}
		}
	}
	res.Issues = append(res.Issues, "financial export absent; uploaded zero fallback")
	return report.EmptyFinancial(r.locationNames(), rc), path, false
}

// loadLocations reads every configured location's export in combine order.
// Absent exports become nil groups; the combiner synthesizes their
// placeholders.
func (r *Runner) loadLocations(rc report.RunContext) ([]report.LocationGroup, []string) {
	groups := make([]report.LocationGroup, len(r.cfg.Locations))
	var presentPaths []string
	for i, loc := range r.cfg.Locations {
		groups[i] = report.LocationGroup{Location: loc.Name}
		path, present := r.fetch.Location(loc, rc)
		if !present {
			continue
		}
		raw, ok := r.csv.Read(path)
		if !ok {
			continue
		}
		groups[i].Rows = report.NormalizeLocation(raw, loc.Name, rc)
		presentPaths = append(presentPaths, path)
	}
	return groups, presentPaths
}

func (r *Runner) locationNames() []string {
	names := make([]string, len(r.cfg.Locations))
	for i, loc := range r.cfg.Locations {
		names[i] = loc.Name
	}
	return names
}

func (r *Runner) fail(ctx context.Context, res *Result, runID string, err error) (*Result, error) {
	r.log.Error("run failed", zap.String("kind", res.Kind), zap.Error(err))
	r.completeRun(ctx, runID, res, err.Error())
	r.sendSummary(ctx, res, err.Error())
	return res, err
}

func (r *Runner) completeRun(ctx context.Context, runID string, res *Result, errMsg string) {
	if runID == "" {
		return
	}
	status := store.RunStatusSuccess
	if !res.Success {
		status = store.RunStatusFailed
	}
	if err := r.store.CompleteRun(ctx, runID, store.RunOutcome{
		Status:        status,
		FinancialRows: res.FinancialRows,
		MarketingRows: res.MarketingRows,
		Issues:        res.Issues,
		Error:         errMsg,
	}); err != nil {
		r.log.Warn("could not record run completion", zap.Error(err))
	}
}

func (r *Runner) sendSummary(ctx context.Context, res *Result, errMsg string) {
	err := r.notifier.Notify(ctx, notify.Summary{
		Kind:          res.Kind,
		ReportDate:    res.ReportDate,
		RunLabel:      res.RunLabel,
		Success:       res.Success,
		FinancialRows: res.FinancialRows,
		MarketingRows: res.MarketingRows,
		Issues:        res.Issues,
		Error:         errMsg,
	})
	if err != nil {
		r.log.Warn("could not deliver run summary", zap.Error(err))
	}
}
