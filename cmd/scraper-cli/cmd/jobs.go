package cmd

import (
	"strings"

	"nrega-scraper/internal/jobs"
	"nrega-scraper/internal/notify"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(jobsCmd)
}

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Lists the job catalog in run order.",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		t := notify.NewTable(cmd.OutOrStdout())
		t.AppendHeader(table.Row{"#", "Job", "Aliases", "Default tab", "Source", "Timeout", "Retries"})
		for i, spec := range jobs.Catalog() {
			t.AppendRow(table.Row{
				i + 1,
				spec.Name(),
				strings.Join(spec.Target.Aliases, ", "),
				spec.Target.DefaultTab,
				truncate(spec.Descriptor.Source.String(), 60),
				spec.Timeout.String(),
				spec.MaxRetries,
			})
		}
		t.Render()
	},
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
