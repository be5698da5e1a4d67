package main

import (
	"fmt"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/gemba-ops/shopsync/internal/csvio"
	"github.com/gemba-ops/shopsync/internal/report"
	"github.com/gemba-ops/shopsync/internal/store"
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file.csv>",
	Short: "Upsert one CSV file into a table",
	Long:  "Sanitizes the file's headers and upserts its rows on the given key columns. Useful for replaying a report the pipeline already reshaped.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		table, _ := cmd.Flags().GetString("table")
		keys, _ := cmd.Flags().GetStringSlice("keys")
		if table == "" {
			return eris.New("upload: --table is required")
		}
		if len(keys) == 0 {
			return eris.New("upload: at least one --keys column is required")
		}

		rows, ok := csvio.NewStore().Read(args[0])
		if !ok {
			return eris.Errorf("upload: %s has no data rows", args[0])
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		stats, err := st.UpsertReport(ctx, store.Report{
			Table:   table,
			Headers: report.SanitizeHeaders(rows.Header()),
			Keys:    keys,
			Rows:    rows.Data(),
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s: %d inserted, %d updated", table, stats.Inserted, stats.Updated)
		if stats.SkippedColumns > 0 {
			fmt.Printf(", %d columns skipped", stats.SkippedColumns)
		}
		fmt.Println()
		return nil
	},
}

func init() {
	uploadCmd.Flags().String("table", "", "destination table")
	uploadCmd.Flags().StringSlice("keys", []string{"Location", "Report_Date"}, "sanitized key columns forming the upsert identity")
	rootCmd.AddCommand(uploadCmd)
}
