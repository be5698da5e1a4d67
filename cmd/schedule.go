package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gemba-ops/shopsync/internal/runner"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the sync on its hourly schedule",
	Long:  "Triggers an hourly run at the top of each hour inside the configured window, and the correction pass at 23:59 every day. Stops cleanly on SIGINT/SIGTERM.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signalContext(cmd.Context())
		defer stop()

		r, zone, closer, err := buildRunner(ctx)
		if err != nil {
			return err
		}
		defer closer()

		log := zap.L().With(zap.String("component", "schedule"))
		log.Info("scheduler started",
			zap.Int("start_hour", cfg.Schedule.StartHour),
			zap.Int("end_hour", cfg.Schedule.EndHour),
			zap.String("timezone", cfg.Timezone),
		)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error { return hourlyLoop(ctx, r, zone, log) })
		g.Go(func() error { return fixLoop(ctx, r, zone, log) })

		err = g.Wait()
		if err == context.Canceled {
			log.Info("scheduler stopped")
			return nil
		}
		return err
	},
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// hourlyLoop fires at the top of each hour and runs the sync when the hour
// falls inside the configured window. One wall-clock hour triggers at most
// one run; a failed run is logged and the loop keeps going.
func hourlyLoop(ctx context.Context, r *runner.Runner, zone *time.Location, log *zap.Logger) error {
	var lastFired string
	for {
		now := time.Now().In(zone)
		next := now.Truncate(time.Hour).Add(time.Hour)

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		fired := time.Now().In(zone)
		if fired.Hour() < cfg.Schedule.StartHour || fired.Hour() > cfg.Schedule.EndHour {
			continue
		}
		key := fired.Format("2006-01-02T15")
		if key == lastFired {
			continue
		}
		lastFired = key

		if _, err := r.RunHourly(ctx, fired); err != nil {
			log.Error("scheduled hourly run failed", zap.Error(err))
		}
	}
}

// fixLoop fires once per day at 23:59 local time.
func fixLoop(ctx context.Context, r *runner.Runner, zone *time.Location, log *zap.Logger) error {
	for {
		now := time.Now().In(zone)
		next := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 0, 0, zone)
		if !next.After(now) {
			next = next.AddDate(0, 0, 1)
		}

		timer := time.NewTimer(next.Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		// The pass targets the day that is about to end. NewFixContext
		// subtracts a day from the instant it is given, so shift forward to
		// land on today's date with tonight's export hour.
		fireAt := time.Now().In(zone).AddDate(0, 0, 1)
		if _, err := r.RunFix(ctx, fireAt); err != nil {
			log.Error("scheduled fix run failed", zap.Error(err))
		}
	}
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}
