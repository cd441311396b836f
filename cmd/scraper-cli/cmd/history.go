package cmd

import (
	"errors"
	"fmt"
	"time"

	"nrega-scraper/internal/model"
	"nrega-scraper/internal/notify"
	"nrega-scraper/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historyLimit   int
	historyBatches bool
)

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Number of rows to show.")
	historyCmd.Flags().BoolVar(&historyBatches, "batches", false, "List whole runs instead of job rows.")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Shows the most recent job outcomes recorded in the local history database.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := serviceutil.SignalContext()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.History == nil {
			return errors.New("history is not configured (set history.file or history.url)")
		}

		last, ok, err := a.History.Last(ctx)
		if err != nil {
			return err
		}
		if ok {
			cmd.Printf(
				"last run %s: %s, %d/%d passed at %s\n",
				last.RunID,
				last.Status,
				last.Passed,
				last.Total,
				model.FormatTimestamp(last.FinishedAt),
			)
		}

		if historyBatches {
			batches, err := a.History.Batches(ctx, historyLimit)
			if err != nil {
				return err
			}
			t := notify.NewTable(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Run", "Status", "Passed", "Duration", "PID", "Started", "Finished"})
			for _, b := range batches {
				t.AppendRow(table.Row{
					b.RunID,
					string(b.Status),
					fmt.Sprintf("%d/%d", b.Passed, b.Total),
					b.Duration.Round(time.Millisecond).String(),
					b.PID,
					model.FormatTimestamp(b.StartedAt),
					model.FormatTimestamp(b.FinishedAt),
				})
			}
			t.Render()
			return nil
		}

		entries, err := a.History.Recent(ctx, historyLimit)
		if err != nil {
			return err
		}
		t := notify.NewTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Timestamp", "Job", "Status", "Duration", "Attempts", "Note"})
		for _, e := range entries {
			t.AppendRow(table.Row{
				model.FormatTimestamp(e.Record.Timestamp),
				e.Record.JobName,
				string(e.Record.Status),
				e.Record.Duration.Round(time.Millisecond).String(),
				e.Attempts,
				model.Truncate(e.Record.Note, 80),
			})
		}
		t.Render()
		return nil
	},
}
