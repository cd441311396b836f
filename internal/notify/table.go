package notify

import (
	"io"
	"strconv"

	"nrega-scraper/internal/model"

	"github.com/jedib0t/go-pretty/v6/table"
)

func NewTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	if out != nil {
		t.SetOutputMirror(out)
	}
	return t
}

// SummaryTable lays out one row per job outcome followed by the totals.
func SummaryTable(out io.Writer, summary model.RunSummary) table.Writer {
	t := NewTable(out)
	t.AppendHeader(table.Row{"Job", "Status", "Attempts", "Duration(ms)", "Note"})
	for _, o := range summary.Outcomes {
		t.AppendRow(table.Row{
			o.Name,
			string(o.Status()),
			o.Attempts,
			o.Duration.Milliseconds(),
			model.Truncate(o.Output, 120),
		})
	}
	t.AppendFooter(table.Row{
		"SUMMARY",
		string(summary.Status()),
		"",
		strconv.FormatInt(summary.TotalDuration.Milliseconds(), 10),
		summary.Note(),
	})
	return t
}
