package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gemba-ops/shopsync/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one hourly sync now",
	Long:  "Locates this hour's exports, reshapes and reconciles them, and upserts both reports keyed on the report date.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		r, _, closer, err := buildRunner(ctx)
		if err != nil {
			return err
		}
		defer closer()

		res, err := r.RunHourly(ctx, time.Now())
		printResult(res)
		return err
	},
}

var fixCmd = &cobra.Command{
	Use:   "fix",
	Short: "Re-process yesterday's reports with final numbers",
	Long:  "Runs the end-of-day correction pass: yesterday's exports are reshaped again and overwrite the day's rows under the 11:59 PM label.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		r, _, closer, err := buildRunner(ctx)
		if err != nil {
			return err
		}
		defer closer()

		res, err := r.RunFix(ctx, time.Now())
		printResult(res)
		return err
	},
}

func printResult(res *runner.Result) {
	if res == nil {
		return
	}
	status := "SUCCESS"
	if !res.Success {
		status = "FAILED"
	}
	fmt.Printf("%s %s %s %s\n", status, res.Kind, res.ReportDate, res.RunLabel)
	fmt.Printf("  financial rows: %d\n", res.FinancialRows)
	fmt.Printf("  marketing rows: %d\n", res.MarketingRows)
	for _, iss := range res.Issues {
		fmt.Fprintf(os.Stderr, "  issue: %s\n", iss)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(fixCmd)
}
