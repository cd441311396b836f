package coordinator

import (
	"context"
	"os"
	"sync"
	"time"

	"nrega-scraper/internal/chrono"
	"nrega-scraper/internal/model"
	"nrega-scraper/internal/telemetry"
)

const (
	report_after_run     = "after-run"
	report_run_panic     = "run-panic"
	report_autorun       = "autorun"
	report_diag_finished = "diag-finished"
)

// State is a snapshot of the coordinator, safe to hand out.
type State struct {
	IsRunning  bool              `json:"isRunning"`
	LastRun    *time.Time        `json:"lastRun"`
	LastStatus model.BatchStatus `json:"lastStatus"`
	LastPID    int               `json:"lastPid"`
	LastRunID  string            `json:"lastRunId,omitempty"`
}

// RunFunc performs one full orchestrator pass.
type RunFunc func(ctx context.Context) model.RunSummary

// AfterRunFunc is called once a run has finished, its error is only logged.
type AfterRunFunc func(ctx context.Context, summary model.RunSummary) error

type Options struct {
	Run      RunFunc
	AfterRun AfterRunFunc
	// Diagnostics backs Diagnose, nil disables it.
	Diagnostics *Diagnostics
	AutoRun     AutoRunPolicy
	Tel         telemetry.API
	Time        chrono.TimeAPI
}

// Coordinator owns the run state of the process and makes sure at most one
// orchestrator pass is active at any time.
type Coordinator struct {
	ctx  context.Context
	opts Options
	tel  telemetry.API
	pid  int

	mu    sync.Mutex
	state State
	wg    sync.WaitGroup
}

// New creates a coordinator whose runs live as long as ctx.
func New(ctx context.Context, opts Options) *Coordinator {
	if opts.Tel == nil {
		opts.Tel = telemetry.SlogAPI{}
	}
	if opts.Time == nil {
		opts.Time = chrono.NewStandardTime()
	}
	if opts.AutoRun == "" {
		opts.AutoRun = AutoRunNever
	}
	return &Coordinator{
		ctx:   ctx,
		opts:  opts,
		tel:   telemetry.NewScopedAPI("coordinator", opts.Tel),
		pid:   os.Getpid(),
		state: State{LastStatus: model.BatchNeverRun},
	}
}

// Restore seeds the last run fields, it is a no-op while a run is active.
func (c *Coordinator) Restore(previous State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.IsRunning {
		return
	}
	c.state.LastRun = previous.LastRun
	c.state.LastStatus = previous.LastStatus
	c.state.LastPID = previous.LastPID
	c.state.LastRunID = previous.LastRunID
}

func (c *Coordinator) Status() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	state := c.state
	if state.LastRun != nil {
		t := *state.LastRun
		state.LastRun = &t
	}
	return state
}

// Start launches a run in the background. It returns false without doing
// anything when a run is already active.
func (c *Coordinator) Start() bool {
	c.mu.Lock()
	if c.state.IsRunning {
		c.mu.Unlock()
		c.tel.ReportDebug("start rejected, already running")
		return false
	}
	c.state.IsRunning = true
	c.state.LastStatus = model.BatchRunning
	c.state.LastPID = c.pid
	c.wg.Add(1)
	c.mu.Unlock()

	go c.run()
	return true
}

func (c *Coordinator) run() {
	defer c.wg.Done()

	summary := model.RunSummary{}
	func() {
		defer func() {
			r := recover()
			if r != nil {
				c.tel.ReportBroken(report_run_panic, r)
			}
		}()
		summary = c.opts.Run(c.ctx)
	}()

	finishedAt := c.opts.Time.Now()
	c.mu.Lock()
	c.state.IsRunning = false
	c.state.LastRun = &finishedAt
	c.state.LastStatus = summary.Status()
	c.state.LastRunID = summary.RunID
	c.mu.Unlock()

	if c.opts.AfterRun != nil {
		err := c.opts.AfterRun(context.WithoutCancel(c.ctx), summary)
		if err != nil {
			c.tel.ReportWarning(report_after_run, err)
		}
	}
}

// Wait blocks until every started run has finished.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// Diagnose runs the diagnostics synchronously and starts a run when the
// auto-run policy allows it. started reports whether that happened.
func (c *Coordinator) Diagnose(ctx context.Context) (report Report, started bool) {
	if c.opts.Diagnostics == nil {
		return Report{Checks: []Check{{Name: "diagnostics", Fatal: true, Detail: "not configured"}}}, false
	}
	report = c.opts.Diagnostics.Run(ctx)
	c.tel.ReportDebug("diagnostics finished", report.ExitCode(), report.Failed())

	if c.opts.AutoRun.Allows(report.ExitCode()) {
		started = c.Start()
		if !started {
			c.tel.ReportWarning(report_autorun, "run already active")
		}
	}
	return report, started
}

// DiagnoseAsync runs Diagnose in the background and returns immediately.
func (c *Coordinator) DiagnoseAsync() {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		report, _ := c.Diagnose(c.ctx)
		if report.ExitCode() != model.ExitOK {
			c.tel.ReportWarning(report_diag_finished, report.ExitCode(), report.Failed())
		}
	}()
}
