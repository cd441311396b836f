package app

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"nrega-scraper/internal/chrono"
	"nrega-scraper/internal/coordinator"
	"nrega-scraper/internal/credentials"
	"nrega-scraper/internal/extract"
	"nrega-scraper/internal/history"
	"nrega-scraper/internal/hosting"
	"nrega-scraper/internal/httpclient"
	"nrega-scraper/internal/jobs"
	"nrega-scraper/internal/model"
	"nrega-scraper/internal/notify"
	"nrega-scraper/internal/orchestrator"
	"nrega-scraper/internal/sheets"
	"nrega-scraper/internal/targets"
	"nrega-scraper/internal/telemetry"
	"nrega-scraper/lib/restyutil"
)

const (
	report_history_open = "history-open"
	report_ledger       = "ledger"
	report_suspend      = "suspend"
)

// App wires configuration into the components of a run.
type App struct {
	Config  Config
	Tel     telemetry.API
	Time    chrono.TimeAPI
	History *history.Store

	output restyutil.InstrumentOutput
	// overridable in tests
	credentials func() (credentials.Credentials, error)
	sheets      func(ctx context.Context, creds credentials.Credentials) (sheets.API, error)
	fetcher     func(spec jobs.Spec) (extract.Fetcher, error)
}

// New builds the app. verbose enables request dumps into Config.DumpDir.
func New(ctx context.Context, cfg Config, tel telemetry.API, verbose bool) (*App, error) {
	if tel == nil {
		tel = telemetry.SlogAPI{}
	}
	a := &App{
		Config:      cfg,
		Tel:         telemetry.NewScopedAPI("app", tel),
		Time:        chrono.NewStandardTime(),
		credentials: credentials.FromEnv,
	}
	a.sheets = a.newSheets
	a.fetcher = a.newFetcher

	if verbose && cfg.DumpDir != "" {
		output, err := restyutil.NewFilesystemOutput(cfg.DumpDir)
		if err != nil {
			return nil, err
		}
		a.output = output
	}

	if cfg.History.Enabled() {
		store, err := history.Open(ctx, cfg.History)
		if err != nil {
			// a broken history database only costs the local mirror
			a.Tel.ReportBroken(report_history_open, err)
		} else {
			a.History = store
		}
	}
	return a, nil
}

func (a *App) Close() {
	if a.History != nil {
		err := a.History.Close()
		if err != nil {
			slog.Warn("close history", "err", err)
		}
	}
}

func (a *App) Credentials() (credentials.Credentials, error) {
	return a.credentials()
}

func (a *App) Targets() (*targets.Resolver, error) {
	return targets.Load(a.Config.TargetsFile)
}

func (a *App) newSheets(ctx context.Context, creds credentials.Credentials) (sheets.API, error) {
	client, err := creds.HTTPClient(ctx, credentials.SheetsScope)
	if err != nil {
		return nil, err
	}
	cfg := a.Config.Sheets
	return sheets.New(sheets.Options{
		BaseURL:    cfg.BaseURL,
		HTTPClient: client,
		Timeout:    seconds(cfg.TimeoutSeconds),
		Attempts:   cfg.Attempts,
		Backoff:    millis(cfg.BackoffMs),
		Output:     a.output,
		Tel:        a.Tel,
	}), nil
}

// fetchOptions layers the job's own fetch settings over the shared ones.
func (a *App) fetchOptions(spec jobs.Spec) httpclient.Options {
	shared := a.Config.HTTP
	opts := httpclient.Options{
		Timeout:      seconds(shared.TimeoutSeconds),
		Attempts:     shared.Attempts,
		Backoff:      millis(shared.BackoffMs),
		MaxRedirects: shared.MaxRedirects,
		UserAgent:    shared.UserAgent,
		Proxy:        shared.Proxy,
		Cloudflare:   shared.Cloudflare,
		Output:       a.output,
		Tel:          a.Tel,
	}
	own := spec.Fetch
	if own.Timeout > 0 {
		opts.Timeout = own.Timeout
	}
	if own.Attempts > 0 {
		opts.Attempts = own.Attempts
	}
	if own.Backoff > 0 {
		opts.Backoff = own.Backoff
	}
	if own.MaxRedirects > 0 {
		opts.MaxRedirects = own.MaxRedirects
	}
	return opts
}

func (a *App) newFetcher(spec jobs.Spec) (extract.Fetcher, error) {
	return httpclient.New(a.fetchOptions(spec))
}

// failingJob stands in for a job that could not be assembled so that the
// problem shows up in the ledger like any other failure.
func failingJob(err error) orchestrator.Job {
	return orchestrator.JobFunc(func(context.Context) (string, error) {
		return "", err
	})
}

// Select returns the catalog filtered by name (or alias), in catalog order.
// Disabled jobs are left out unless asked for by name.
func (a *App) Select(only []string) ([]jobs.Spec, error) {
	var wanted []string
	for _, name := range only {
		spec, ok := jobs.Lookup(name)
		if !ok {
			return nil, model.ConfigError{Reason: "unknown job", Subject: name}
		}
		wanted = append(wanted, spec.Name())
	}

	var out []jobs.Spec
	for _, spec := range jobs.Catalog() {
		if len(wanted) > 0 {
			if slices.Contains(wanted, spec.Name()) {
				out = append(out, spec)
			}
			continue
		}
		if !a.Config.job(spec.Name()).Disabled {
			out = append(out, spec)
		}
	}
	return out, nil
}

// Tasks assembles the orchestrator tasks of specs. A job whose destination
// or client cannot be built still gets a task that fails with the reason.
func (a *App) Tasks(api sheets.API, resolver *targets.Resolver, specs []jobs.Spec) []orchestrator.Task {
	tasks := make([]orchestrator.Task, 0, len(specs))
	for _, spec := range specs {
		override := a.Config.job(spec.Name())
		desc := model.JobDescriptor{
			Name:       spec.Name(),
			Timeout:    spec.Timeout,
			MaxRetries: spec.MaxRetries,
		}
		if override.TimeoutSeconds > 0 {
			desc.Timeout = seconds(override.TimeoutSeconds)
		}
		if override.MaxRetries != nil {
			desc.MaxRetries = *override.MaxRetries
		}
		if override.Heartbeat != nil {
			hb, err := override.Heartbeat.destination()
			if err != nil {
				a.Tel.ReportWarning("heartbeat", spec.Name(), err)
			} else {
				desc.Heartbeat = hb
			}
		}

		dest, err := resolver.Resolve(spec.Target)
		if err != nil {
			tasks = append(tasks, orchestrator.Task{Descriptor: desc, Job: failingJob(err)})
			continue
		}
		fetcher, err := a.fetcher(spec)
		if err != nil {
			tasks = append(tasks, orchestrator.Task{Descriptor: desc, Job: failingJob(err)})
			continue
		}
		job := extract.NewJob(spec.Descriptor, extract.Env{
			Fetcher: fetcher,
			Sheets:  api,
			Dest:    dest,
		}, a.Tel, a.Time.Now)
		tasks = append(tasks, orchestrator.Task{Descriptor: desc, Job: job})
	}
	return tasks
}

// RunOnce performs a full pass over the selected jobs. Only configuration
// problems that make every job impossible are returned as errors.
func (a *App) RunOnce(ctx context.Context, only []string) (model.RunSummary, error) {
	specs, err := a.Select(only)
	if err != nil {
		return model.RunSummary{}, err
	}
	creds, err := a.Credentials()
	if err != nil {
		return model.RunSummary{}, err
	}
	resolver, err := a.Targets()
	if err != nil {
		return model.RunSummary{}, err
	}
	api, err := a.sheets(ctx, creds)
	if err != nil {
		return model.RunSummary{}, err
	}

	opts := orchestrator.Options{
		Sheets: api,
		Tel:    a.Tel,
		Time:   a.Time,
	}
	ledger, err := resolver.Log()
	if err != nil {
		a.Tel.ReportWarning(report_ledger, "run ledger disabled", err)
	} else {
		opts.Ledger = &ledger
	}
	if a.History != nil {
		opts.History = a.History
	}
	if a.Config.Email.Enabled() {
		opts.Notifier = notify.NewEmail(a.Config.Email, nil)
	}

	orch, err := orchestrator.New(opts)
	if err != nil {
		return model.RunSummary{}, err
	}
	return orch.Run(ctx, a.Tasks(api, resolver, specs)), nil
}

// Diagnostics builds the connectivity and credential checks.
func (a *App) Diagnostics() (*coordinator.Diagnostics, error) {
	prober, err := httpclient.New(httpclient.Options{
		Timeout:      seconds(15),
		Attempts:     1,
		MaxRedirects: 2,
		Proxy:        a.Config.HTTP.Proxy,
		Cloudflare:   a.Config.HTTP.Cloudflare,
		Output:       a.output,
		Tel:          a.Tel,
	})
	if err != nil {
		return nil, err
	}

	var targetsList []targets.Target
	for _, spec := range jobs.Catalog() {
		if !a.Config.job(spec.Name()).Disabled {
			targetsList = append(targetsList, spec.Target)
		}
	}

	return &coordinator.Diagnostics{
		Credentials: a.Credentials,
		Targets:     a.Targets,
		Sheets:      a.sheets,
		Prober:      prober,
		ProbeURLs:   a.Config.Diagnostics.ProbeURLs,
		Jobs:        targetsList,
		ProbeCell:   a.Config.Diagnostics.ProbeCell,
		Time:        a.Time,
	}, nil
}

// Coordinator builds the long lived coordinator with its state restored
// from the history store.
func (a *App) Coordinator(ctx context.Context) (*coordinator.Coordinator, error) {
	diag, err := a.Diagnostics()
	if err != nil {
		return nil, err
	}
	policy, err := coordinator.ParseAutoRunPolicy(a.Config.Diagnostics.AutoRun)
	if err != nil {
		return nil, err
	}

	c := coordinator.New(ctx, coordinator.Options{
		Run: func(ctx context.Context) model.RunSummary {
			summary, err := a.RunOnce(ctx, nil)
			if err != nil {
				a.Tel.ReportBroken("run", err)
			}
			return summary
		},
		AfterRun:    a.afterRun,
		Diagnostics: diag,
		AutoRun:     policy,
		Tel:         a.Tel,
		Time:        a.Time,
	})

	if a.History != nil {
		last, ok, err := a.History.Last(ctx)
		if err != nil {
			a.Tel.ReportWarning("restore", err)
		} else if ok {
			finished := last.FinishedAt.In(chrono.IST())
			c.Restore(coordinator.State{
				LastRun:    &finished,
				LastStatus: last.Status,
				LastPID:    last.PID,
				LastRunID:  last.RunID,
			})
		}
	}
	return c, nil
}

// Render is the control plane client of the service this app is deployed
// as. ok is false when no render service is configured.
func (a *App) Render() (render hosting.Render, ok bool) {
	if !a.Config.Render.Enabled() {
		return hosting.Render{}, false
	}
	return hosting.NewRender(a.Config.Render, a.output), true
}

func (a *App) afterRun(ctx context.Context, summary model.RunSummary) error {
	render, ok := a.Render()
	if !ok || !a.Config.Render.SuspendAfterRun {
		return nil
	}
	err := render.Suspend(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", report_suspend, err)
	}
	return nil
}
