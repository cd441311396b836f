package cmd

import (
	"os"
	"strings"

	"nrega-scraper/internal/jobs"
	"nrega-scraper/internal/notify"
	"nrega-scraper/lib/serviceutil"

	"github.com/spf13/cobra"
)

var runJobs []string

func init() {
	runCmd.Flags().StringSliceVar(
		&runJobs, "job", nil,
		"Only run the given jobs (name or alias), may be repeated. One of: "+strings.Join(jobs.Names(), ", "),
	)
	rootCmd.AddCommand(runCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Runs every job once in order, exits 1 if any of them failed.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := serviceutil.SignalContext()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		summary, err := a.RunOnce(ctx, runJobs)
		if err != nil {
			return err
		}
		notify.SummaryTable(cmd.OutOrStdout(), summary).Render()

		code := summary.ExitCode()
		if code != 0 {
			a.Close()
			os.Exit(code)
		}
		return nil
	},
}
