package model

import (
	"fmt"
	"strconv"
	"time"
)

// Grid is a rectangular-ish block of cell values as they are written to or
// read from a sheet. Rows may have differing lengths.
type Grid = [][]string

// Destination is a spreadsheet + tab pair a job writes to. ReadTab is only
// meaningful for jobs that discover their source URLs from the sheet.
type Destination struct {
	SpreadsheetID string
	Tab           string
	ReadTab       string
}

func (d Destination) String() string {
	return fmt.Sprintf("%s/%s", d.SpreadsheetID, d.Tab)
}

// JobDescriptor identifies one job in a run. It is built once when the
// orchestrator is assembled and never mutated afterwards.
type JobDescriptor struct {
	Name       string
	Timeout    time.Duration
	MaxRetries int
	// Heartbeat, if set, receives a short status row after every run of the job.
	Heartbeat *Destination
}

// JobOutcome is the result of the last attempt of a job within a run.
type JobOutcome struct {
	Name     string
	OK       bool
	Kind     Kind
	ExitCode int
	Duration time.Duration
	// Output is the success note or the error text, truncated.
	Output   string
	TimedOut bool
	Attempts int
}

func (o JobOutcome) Status() RecordStatus {
	switch {
	case o.OK:
		return StatusOK
	case o.TimedOut:
		return StatusTimeout
	default:
		return StatusFail
	}
}

// RunRecord is one row of the central ledger.
type RunRecord struct {
	Timestamp time.Time
	JobName   string
	Status    RecordStatus
	Duration  time.Duration
	Note      string
}

// LedgerHeader is appended before the first record of every run.
var LedgerHeader = []string{"Timestamp", "Script", "Status", "Duration(ms)", "Note"}

func (r RunRecord) Row() []string {
	return []string{
		FormatTimestamp(r.Timestamp),
		r.JobName,
		string(r.Status),
		strconv.FormatInt(r.Duration.Milliseconds(), 10),
		r.Note,
	}
}

// RunSummary aggregates every outcome of a single orchestrator pass.
type RunSummary struct {
	RunID         string
	StartedAt     time.Time
	FinishedAt    time.Time
	AllOK         bool
	TotalDuration time.Duration
	Passed        int
	Total         int
	Outcomes      []JobOutcome
}

func (s RunSummary) Status() BatchStatus {
	if s.AllOK {
		return BatchAllOK
	}
	return BatchHasFail
}

func (s RunSummary) Note() string {
	return fmt.Sprintf("%d/%d passed", s.Passed, s.Total)
}

// Row renders the SUMMARY ledger row.
func (s RunSummary) Row() []string {
	return []string{
		FormatTimestamp(s.FinishedAt),
		"SUMMARY",
		string(s.Status()),
		strconv.FormatInt(s.TotalDuration.Milliseconds(), 10),
		s.Note(),
	}
}

// ExitCode maps the summary to the process exit code.
func (s RunSummary) ExitCode() int {
	if s.AllOK {
		return ExitOK
	}
	return ExitFailure
}

// Summarize computes a RunSummary out of outcomes. AllOK is false for an
// empty run so that a misconfigured catalog is never reported as healthy.
func Summarize(runID string, startedAt, finishedAt time.Time, outcomes []JobOutcome) RunSummary {
	summary := RunSummary{
		RunID:      runID,
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		Total:      len(outcomes),
		Outcomes:   outcomes,
	}
	for _, o := range outcomes {
		summary.TotalDuration += o.Duration
		if o.OK {
			summary.Passed++
		}
	}
	summary.AllOK = summary.Total > 0 && summary.Passed == summary.Total
	return summary
}

// FormatTimestamp renders times the same way across ledger rows,
// placeholders and diagnostics probes.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

// Truncate bounds s to at most n bytes without splitting a utf-8 sequence.
func Truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
