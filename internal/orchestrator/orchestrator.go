package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"nrega-scraper/internal/chrono"
	"nrega-scraper/internal/model"
	"nrega-scraper/internal/sheets"
	"nrega-scraper/internal/telemetry"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

var (
	tracer = otel.Tracer("nrega.orchestrator")
	meter  = otel.Meter("nrega.orchestrator")
)

const (
	report_ledger_append    = "ledger-append"
	report_heartbeat_append = "heartbeat-append"
	report_history_record   = "history-record"
	report_notify           = "notify"
	report_job_retry        = "job-retry"
	report_job_abandoned    = "job-abandoned"
	report_job_panic        = "job-panic"
)

// OutputLimit bounds the note stored for every outcome.
const OutputLimit = 1000

// Job is one runnable unit. A non-nil error marks the attempt as failed, the
// note is what ends up in the ledger on success.
type Job interface {
	Run(ctx context.Context) (string, error)
}

// JobFunc adapts a function to Job.
type JobFunc func(ctx context.Context) (string, error)

func (f JobFunc) Run(ctx context.Context) (string, error) {
	return f(ctx)
}

type Task struct {
	Descriptor model.JobDescriptor
	Job        Job
}

// Recorder mirrors ledger rows into local storage.
type Recorder interface {
	RecordJob(ctx context.Context, runID string, record model.RunRecord, attempts int) error
	RecordSummary(ctx context.Context, summary model.RunSummary) error
}

// Notifier is told about every finished run.
type Notifier interface {
	Notify(ctx context.Context, summary model.RunSummary) error
}

type Options struct {
	Sheets sheets.API
	// Ledger receives one row per job plus the header and the SUMMARY row.
	// Nothing is logged when nil.
	Ledger   *model.Destination
	History  Recorder
	Notifier Notifier
	Tel      telemetry.API
	Time     chrono.TimeAPI
	Sleep    chrono.SleepFunc
	// Backoff is the base of the quadratic retry delay, 1.5s by default.
	Backoff time.Duration
	// Grace is how long a job that ignores its deadline is waited for
	// before it is abandoned.
	Grace    time.Duration
	NewRunID func() string
}

type Orchestrator struct {
	opts Options
	tel  telemetry.API

	mu       sync.Mutex
	lastTime time.Time

	attempts metric.Int64Counter
	outcomes metric.Int64Counter
	duration metric.Float64Histogram
}

func New(opts Options) (*Orchestrator, error) {
	if opts.Tel == nil {
		opts.Tel = telemetry.SlogAPI{}
	}
	if opts.Time == nil {
		opts.Time = chrono.NewStandardTime()
	}
	if opts.Sleep == nil {
		opts.Sleep = chrono.Sleep
	}
	if opts.Backoff == 0 {
		opts.Backoff = 1500 * time.Millisecond
	}
	if opts.Grace == 0 {
		opts.Grace = 5 * time.Second
	}
	if opts.NewRunID == nil {
		opts.NewRunID = uuid.NewString
	}

	attempts, err := meter.Int64Counter(
		"orchestrator_job_attempts_total",
		metric.WithDescription("Job attempts, retries included."),
	)
	if err != nil {
		return nil, err
	}
	outcomes, err := meter.Int64Counter(
		"orchestrator_job_outcomes_total",
		metric.WithDescription("Final job outcomes by status."),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"orchestrator_job_duration_ms",
		metric.WithDescription("Wall clock time of a job including retries."),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		opts:     opts,
		tel:      telemetry.NewScopedAPI("orchestrator", opts.Tel),
		attempts: attempts,
		outcomes: outcomes,
		duration: duration,
	}, nil
}

// now never goes backwards within the lifetime of the orchestrator so ledger
// rows stay ordered even if the wall clock is adjusted mid run.
func (o *Orchestrator) now() time.Time {
	o.mu.Lock()
	defer o.mu.Unlock()
	t := o.opts.Time.Now()
	if t.Before(o.lastTime) {
		t = o.lastTime
	}
	o.lastTime = t
	return t
}

// Run executes every task in order and returns the summary. It never panics
// and never returns early: a cancelled ctx turns the remaining tasks into
// failures without running them.
func (o *Orchestrator) Run(ctx context.Context, tasks []Task) model.RunSummary {
	runID := o.opts.NewRunID()
	ctx, span := tracer.Start(ctx, "orchestrator:run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run_id", runID),
		attribute.Int("jobs", len(tasks)),
	)

	// bookkeeping must still happen after ctx is cancelled
	logCtx := context.WithoutCancel(ctx)

	startedAt := o.now()
	o.appendLedger(logCtx, model.Grid{model.LedgerHeader})

	outcomes := make([]model.JobOutcome, 0, len(tasks))
	for _, task := range tasks {
		var outcome model.JobOutcome
		if ctx.Err() != nil {
			outcome = model.JobOutcome{
				Name:     task.Descriptor.Name,
				Kind:     model.KindCancelled,
				ExitCode: model.ExitFailure,
				Output:   "not started: " + ctx.Err().Error(),
			}
		} else {
			outcome = o.runTask(ctx, task)
		}
		outcomes = append(outcomes, outcome)
		o.record(logCtx, runID, task, outcome)
	}

	summary := model.Summarize(runID, startedAt, o.now(), outcomes)
	o.appendLedger(logCtx, model.Grid{summary.Row()})
	if o.opts.History != nil {
		err := o.opts.History.RecordSummary(logCtx, summary)
		if err != nil {
			o.tel.ReportBroken(report_history_record, "summary", err)
		}
	}
	if o.opts.Notifier != nil {
		err := o.opts.Notifier.Notify(logCtx, summary)
		if err != nil {
			o.tel.ReportBroken(report_notify, err)
		}
	}

	span.SetAttributes(attribute.String("status", string(summary.Status())))
	if !summary.AllOK {
		span.SetStatus(codes.Error, summary.Note())
	}
	return summary
}

func (o *Orchestrator) runTask(ctx context.Context, task Task) model.JobOutcome {
	desc := task.Descriptor
	ctx, span := tracer.Start(ctx, "orchestrator:job")
	defer span.End()
	span.SetAttributes(attribute.String("job", desc.Name))

	start := time.Now()
	outcome := model.JobOutcome{Name: desc.Name}

	var (
		note string
		err  error
	)
	for attempt := 1; ; attempt++ {
		outcome.Attempts = attempt
		o.attempts.Add(ctx, 1, metric.WithAttributes(attribute.String("job", desc.Name)))

		note, err = o.attempt(ctx, task)
		if err == nil || attempt > desc.MaxRetries || ctx.Err() != nil || !Retryable(err) {
			break
		}

		delay := Backoff(o.opts.Backoff, attempt)
		o.tel.ReportWarning(
			report_job_retry,
			fmt.Sprintf("%s attempt %d/%d failed, retrying in %s", desc.Name, attempt, desc.MaxRetries+1, delay),
			err,
		)
		if o.opts.Sleep(ctx, delay) != nil {
			break
		}
	}

	outcome.Duration = time.Since(start)
	if err == nil {
		outcome.OK = true
		outcome.ExitCode = model.ExitOK
		outcome.Output = model.Truncate(note, OutputLimit)
	} else {
		outcome.Kind = model.KindOf(err)
		outcome.TimedOut = outcome.Kind == model.KindTimeout
		outcome.ExitCode = model.ExitFailure
		outcome.Output = model.Truncate(err.Error(), OutputLimit)
		span.RecordError(err)
		span.SetStatus(codes.Error, string(outcome.Kind))
	}

	span.SetAttributes(
		attribute.Int("attempts", outcome.Attempts),
		attribute.String("status", string(outcome.Status())),
	)
	o.outcomes.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job", desc.Name),
		attribute.String("status", string(outcome.Status())),
	))
	o.duration.Record(ctx, float64(outcome.Duration.Milliseconds()), metric.WithAttributes(
		attribute.String("job", desc.Name),
	))
	return outcome
}

type attemptResult struct {
	note string
	err  error
}

// attempt runs the job once under its deadline. A job that overruns its
// deadline and ignores cancellation is left behind after the grace period.
func (o *Orchestrator) attempt(ctx context.Context, task Task) (string, error) {
	desc := task.Descriptor
	attemptCtx := ctx
	cancel := context.CancelFunc(func() {})
	if desc.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, desc.Timeout)
	}
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		defer func() {
			r := recover()
			if r != nil {
				o.tel.ReportBroken(report_job_panic, desc.Name, r, string(debug.Stack()))
				done <- attemptResult{err: fmt.Errorf("job %s panicked: %v", desc.Name, r)}
			}
		}()
		note, err := task.Job.Run(attemptCtx)
		done <- attemptResult{note: note, err: err}
	}()

	var res attemptResult
	select {
	case res = <-done:
	case <-attemptCtx.Done():
		grace := time.NewTimer(o.opts.Grace)
		defer grace.Stop()
		select {
		case res = <-done:
		case <-grace.C:
			o.tel.ReportWarning(report_job_abandoned, desc.Name, o.opts.Grace)
			res = attemptResult{err: attemptCtx.Err()}
		}
	}

	if res.err != nil && ctx.Err() == nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		return res.note, model.TimeoutError{Job: desc.Name, Budget: desc.Timeout.String()}
	}
	return res.note, res.err
}

func (o *Orchestrator) record(ctx context.Context, runID string, task Task, outcome model.JobOutcome) {
	record := model.RunRecord{
		Timestamp: o.now(),
		JobName:   outcome.Name,
		Status:    outcome.Status(),
		Duration:  outcome.Duration,
		Note:      outcome.Output,
	}
	o.appendLedger(ctx, model.Grid{record.Row()})

	if hb := task.Descriptor.Heartbeat; hb != nil && o.opts.Sheets != nil {
		row := model.Grid{{model.FormatTimestamp(record.Timestamp), string(record.Status), record.Note}}
		err := o.opts.Sheets.Append(ctx, hb.SpreadsheetID, sheets.Range(hb.Tab, "A:C"), row)
		if err != nil {
			o.tel.ReportBroken(report_heartbeat_append, hb.String(), err)
		}
	}

	if o.opts.History != nil {
		err := o.opts.History.RecordJob(ctx, runID, record, outcome.Attempts)
		if err != nil {
			o.tel.ReportBroken(report_history_record, outcome.Name, err)
		}
	}
}

func (o *Orchestrator) appendLedger(ctx context.Context, rows model.Grid) {
	ledger := o.opts.Ledger
	if ledger == nil || o.opts.Sheets == nil {
		return
	}
	err := o.opts.Sheets.Append(ctx, ledger.SpreadsheetID, sheets.Range(ledger.Tab, "A:E"), rows)
	if err != nil {
		o.tel.ReportBroken(report_ledger_append, ledger.String(), err)
	}
}
