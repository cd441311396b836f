package cmd

import (
	"os"

	"nrega-scraper/internal/notify"
	"nrega-scraper/lib/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var autoRun bool

func init() {
	diagCmd.Flags().BoolVar(&autoRun, "auto-run", false, "Run every job when diagnostics pass (or partially pass, see diagnostics.auto_run).")
	rootCmd.AddCommand(diagCmd)
}

var diagCmd = &cobra.Command{
	Use:   "diag",
	Short: "Checks credentials, source reachability and sheet write access. Exits 0, 2 on partial failure or 1.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := serviceutil.SignalContext()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if !autoRun {
			a.Config.Diagnostics.AutoRun = "never"
		} else if a.Config.Diagnostics.AutoRun == "" || a.Config.Diagnostics.AutoRun == "never" {
			a.Config.Diagnostics.AutoRun = "pass"
		}
		coordinator, err := a.Coordinator(ctx)
		if err != nil {
			return err
		}

		report, started := coordinator.Diagnose(ctx)

		t := notify.NewTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"Check", "Result", "Detail"})
		for _, check := range report.Checks {
			result := "PASS"
			if !check.OK {
				result = "FAIL"
			}
			t.AppendRow(table.Row{check.Name, result, check.Detail})
		}
		t.Render()

		if started {
			coordinator.Wait()
			state := coordinator.Status()
			cmd.Printf("run finished: %s\n", state.LastStatus)
		}

		code := report.ExitCode()
		if code != 0 {
			a.Close()
			os.Exit(code)
		}
		return nil
	},
}
