package coordinator

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nrega-scraper/internal/chrono"
	"nrega-scraper/internal/credentials"
	"nrega-scraper/internal/model"
	"nrega-scraper/internal/sheets"
	"nrega-scraper/internal/targets"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/mem"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("nrega.coordinator")

type AutoRunPolicy string

const (
	AutoRunNever AutoRunPolicy = "never"
	// AutoRunPass starts a run only when every check passed.
	AutoRunPass AutoRunPolicy = "pass"
	// AutoRunPartial also starts a run when only non fatal checks failed.
	AutoRunPartial AutoRunPolicy = "partial"
)

func ParseAutoRunPolicy(value string) (AutoRunPolicy, error) {
	switch p := AutoRunPolicy(strings.ToLower(strings.TrimSpace(value))); p {
	case "", AutoRunNever:
		return AutoRunNever, nil
	case AutoRunPass, AutoRunPartial:
		return p, nil
	}
	return "", fmt.Errorf("unknown auto-run policy %q (never, pass, partial)", value)
}

func (p AutoRunPolicy) Allows(exitCode int) bool {
	switch p {
	case AutoRunPass:
		return exitCode == model.ExitOK
	case AutoRunPartial:
		return exitCode == model.ExitOK || exitCode == model.ExitDiagPartial
	}
	return false
}

type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Fatal  bool   `json:"fatal,omitempty"`
	Detail string `json:"detail,omitempty"`
}

type Report struct {
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
	Checks     []Check   `json:"checks"`
}

// ExitCode is 0 when everything passed, 1 when a fatal check failed and 2
// when only non fatal checks failed.
func (r Report) ExitCode() int {
	code := model.ExitOK
	for _, c := range r.Checks {
		if c.OK {
			continue
		}
		if c.Fatal {
			return model.ExitFailure
		}
		code = model.ExitDiagPartial
	}
	return code
}

// Failed lists the names of the failed checks.
func (r Report) Failed() []string {
	var out []string
	for _, c := range r.Checks {
		if !c.OK {
			out = append(out, c.Name)
		}
	}
	return out
}

// Prober checks that a url answers with a 2xx or 3xx status.
type Prober interface {
	Status(ctx context.Context, url string) (int, error)
}

// Diagnostics checks credentials, reachability of the source hosts and
// write access to every destination.
type Diagnostics struct {
	Credentials func() (credentials.Credentials, error)
	Targets     func() (*targets.Resolver, error)
	// Sheets builds the gateway the write probes go through.
	Sheets    func(ctx context.Context, creds credentials.Credentials) (sheets.API, error)
	Prober    Prober
	ProbeURLs []string
	Jobs      []targets.Target
	// ProbeCell receives the "DIAG ok" note on every write tab, A1 when empty.
	ProbeCell string
	// SkipHost leaves out the host resource check.
	SkipHost bool
	Time     chrono.TimeAPI
}

func (d Diagnostics) now() time.Time {
	if d.Time == nil {
		return time.Now()
	}
	return d.Time.Now()
}

func (d Diagnostics) Run(ctx context.Context) Report {
	ctx, span := tracer.Start(ctx, "coordinator:diagnostics")
	defer span.End()

	report := Report{StartedAt: d.now()}
	add := func(c Check) {
		report.Checks = append(report.Checks, c)
	}

	creds, credsErr := d.Credentials()
	if credsErr == nil {
		credsErr = creds.Validate()
	}
	if credsErr != nil {
		add(Check{Name: "credentials", Fatal: true, Detail: credsErr.Error()})
	} else {
		add(Check{Name: "credentials", OK: true, Detail: creds.Account.ClientEmail})
	}

	resolver, targetsErr := d.Targets()
	if targetsErr != nil {
		add(Check{Name: "targets", Fatal: true, Detail: targetsErr.Error()})
	} else {
		detail := "env fallback"
		if resolver.HasFile() {
			detail = fmt.Sprintf("%d targets", len(resolver.Targets()))
		}
		add(Check{Name: "targets", OK: true, Detail: detail})
	}

	for _, url := range d.ProbeURLs {
		add(d.probe(ctx, url))
	}

	if credsErr == nil && targetsErr == nil {
		for _, check := range d.writeProbes(ctx, creds, resolver) {
			add(check)
		}
	}

	if !d.SkipHost {
		add(hostCheck(ctx))
	}

	report.FinishedAt = d.now()
	span.SetAttributes(attribute.Int("exit_code", report.ExitCode()))
	if report.ExitCode() != model.ExitOK {
		span.SetStatus(codes.Error, strings.Join(report.Failed(), ", "))
	}
	return report
}

func (d Diagnostics) probe(ctx context.Context, url string) Check {
	name := "probe " + url
	if d.Prober == nil {
		return Check{Name: name, Detail: "no prober configured"}
	}
	status, err := d.Prober.Status(ctx, url)
	if err != nil {
		return Check{Name: name, Detail: err.Error()}
	}
	return Check{Name: name, OK: true, Detail: fmt.Sprintf("status %d", status)}
}

func (d Diagnostics) writeProbes(ctx context.Context, creds credentials.Credentials, resolver *targets.Resolver) []Check {
	api, err := d.Sheets(ctx, creds)
	if err != nil {
		return []Check{{Name: "sheets", Detail: err.Error()}}
	}
	cell := d.ProbeCell
	if cell == "" {
		cell = "A1"
	}

	var out []Check
	for _, target := range d.Jobs {
		name := "write " + target.Name
		dest, err := resolver.Resolve(target)
		if err != nil {
			out = append(out, Check{Name: name, Detail: err.Error()})
			continue
		}
		note := model.Grid{{fmt.Sprintf("DIAG ok %s @ %s", target.Name, model.FormatTimestamp(d.now()))}}
		err = api.Update(ctx, dest.SpreadsheetID, sheets.Range(dest.Tab, cell), note, sheets.Raw)
		if err != nil {
			out = append(out, Check{Name: name, Detail: err.Error()})
			continue
		}
		out = append(out, Check{Name: name, OK: true, Detail: dest.String()})
	}
	return out
}

func hostCheck(ctx context.Context) Check {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return Check{Name: "host", Detail: err.Error()}
	}
	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return Check{Name: "host", Detail: err.Error()}
	}
	return Check{
		Name: "host",
		OK:   true,
		Detail: fmt.Sprintf(
			"%s %s, uptime %s, memory %.1f%% of %d MB used",
			info.Hostname,
			info.Platform,
			(time.Duration(info.Uptime) * time.Second).String(),
			vmem.UsedPercent,
			vmem.Total/1024/1024,
		),
	}
}
