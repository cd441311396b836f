package extract

import (
	"context"
	"errors"
	"fmt"
	"time"

	"nrega-scraper/internal/model"
	"nrega-scraper/internal/sheets"
	"nrega-scraper/internal/telemetry"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_document_failed = "document-failed"
	report_rows_written    = "rows-written"
)

// Output says where extracted data lands on the destination tab. Cells are
// relative to the tab, e.g. "A4".
type Output struct {
	// Clear is emptied before writing.
	Clear string
	// ClearBeforeFetch clears (and writes Header) before anything is
	// fetched, so stale data never survives a failed run.
	ClearBeforeFetch bool
	Header           []string
	HeaderCell       string
	// InfoCell receives the info row. When empty the info row is written
	// as the first row of the data block instead.
	InfoCell string
	DataCell string
	// Placeholder is written as [timestamp, Placeholder] when there are no
	// data rows. Without it an empty result writes nothing.
	Placeholder string
	// NoSourcePlaceholder is written when the source found no urls.
	NoSourcePlaceholder string
	Mode                sheets.Mode
}

// Descriptor declares everything a job does. The same Job implementation
// runs every descriptor.
type Descriptor struct {
	Name   string
	Source Source
	// MinTables skips pages with fewer tables.
	MinTables int
	Info      *InfoRow
	// Regions are extracted in order and concatenated.
	Regions []Region
	// Meta prefixes every data row with per-page fields.
	Meta *MetaRule
	// Links emits every anchor href of the page as its own row.
	Links  bool
	Output Output
}

// Job is a runnable extraction.
type Job struct {
	desc Descriptor
	env  Env
	tel  telemetry.API
	now  func() time.Time
}

func NewJob(desc Descriptor, env Env, tel telemetry.API, now func() time.Time) *Job {
	if tel == nil {
		tel = telemetry.SlogAPI{}
	}
	if now == nil {
		now = time.Now
	}
	if desc.Output.Mode == "" {
		desc.Output.Mode = sheets.Raw
	}
	return &Job{
		desc: desc,
		env:  env,
		tel:  telemetry.NewScopedAPI(desc.Name, tel),
		now:  now,
	}
}

func (j *Job) Name() string {
	return j.desc.Name
}

func (j *Job) Descriptor() Descriptor {
	return j.desc
}

// Result is what a page yielded.
type Result struct {
	Info string
	Rows model.Grid
}

// Extract applies the descriptor to a single page.
func (d Descriptor) Extract(page *Page) (Result, error) {
	var res Result

	if d.MinTables > 0 && len(page.Tables) < d.MinTables {
		return res, model.ParseError{
			URL:    page.URL,
			Reason: fmt.Sprintf("not enough tables (%d < %d)", len(page.Tables), d.MinTables),
		}
	}

	if d.Info != nil {
		info, err := d.Info.Extract(page)
		if err != nil {
			return res, err
		}
		res.Info = info
	}

	var prefix []string
	if d.Meta != nil {
		prefix = d.Meta.Values(page)
	}

	var rows model.Grid
	for _, region := range d.Regions {
		grid, err := region.Extract(page, "data table")
		if err != nil {
			return res, err
		}
		rows = append(rows, grid...)
	}
	if d.Links {
		for _, href := range page.Hrefs {
			rows = append(rows, []string{href})
		}
	}

	if len(prefix) > 0 {
		for i, row := range rows {
			prefixed := make([]string, 0, len(prefix)+len(row))
			prefixed = append(prefixed, prefix...)
			rows[i] = append(prefixed, row...)
		}
	}
	res.Rows = rows
	return res, nil
}

func (j *Job) rng(cell string) string {
	return sheets.Range(j.env.Dest.Tab, cell)
}

func (j *Job) placeholder(ctx context.Context, note string) error {
	row := model.Grid{{model.FormatTimestamp(j.now()), note}}
	return j.env.Sheets.Update(ctx, j.env.Dest.SpreadsheetID, j.rng(j.desc.Output.DataCell), row, j.desc.Output.Mode)
}

func (j *Job) prepare(ctx context.Context) error {
	out := j.desc.Output
	if len(out.Header) > 0 && out.HeaderCell != "" {
		err := j.env.Sheets.Update(ctx, j.env.Dest.SpreadsheetID, j.rng(out.HeaderCell), model.Grid{out.Header}, out.Mode)
		if err != nil {
			return err
		}
	}
	if out.Clear != "" {
		return j.env.Sheets.Clear(ctx, j.env.Dest.SpreadsheetID, j.rng(out.Clear))
	}
	return nil
}

// Run fetches, extracts and writes. The returned note summarizes what was
// written.
func (j *Job) Run(ctx context.Context) (string, error) {
	ctx, span := tracer.Start(ctx, "job:"+j.desc.Name)
	defer span.End()
	span.SetAttributes(
		attribute.String("source", j.desc.Source.String()),
		attribute.String("destination", j.env.Dest.String()),
	)

	note, err := j.run(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return note, err
}

func (j *Job) run(ctx context.Context) (string, error) {
	out := j.desc.Output

	if out.ClearBeforeFetch {
		err := j.prepare(ctx)
		if err != nil {
			return "", err
		}
	}

	docs, err := j.desc.Source.Fetch(ctx, j.env)
	if errors.Is(err, ErrNoSource) {
		if !out.ClearBeforeFetch {
			err = j.prepare(ctx)
			if err != nil {
				return "", err
			}
		}
		note := out.NoSourcePlaceholder
		if note == "" {
			return "", fmt.Errorf("%s: %w", j.desc.Source, ErrNoSource)
		}
		return note, j.placeholder(ctx, note)
	}
	if err != nil {
		return "", err
	}

	multi := j.desc.Source.Multi()
	var (
		info     string
		rows     model.Grid
		hasInfo  bool
		failures int
	)
	for _, doc := range docs {
		res, err := j.extract(ctx, doc)
		if err != nil {
			if !multi {
				return "", err
			}
			failures++
			j.tel.ReportWarning(report_document_failed, doc.URL, err)
			continue
		}
		if !hasInfo && j.desc.Info != nil {
			info, hasInfo = res.Info, true
		}
		rows = append(rows, res.Rows...)
	}

	if !out.ClearBeforeFetch {
		err = j.prepare(ctx)
		if err != nil {
			return "", err
		}
	}

	if hasInfo {
		if out.InfoCell != "" {
			err = j.env.Sheets.Update(ctx, j.env.Dest.SpreadsheetID, j.rng(out.InfoCell), model.Grid{{info}}, out.Mode)
			if err != nil {
				return "", err
			}
		} else {
			rows = append(model.Grid{{info}}, rows...)
		}
	}

	if len(rows) == 0 {
		if out.Placeholder == "" {
			return "no data rows", nil
		}
		return out.Placeholder, j.placeholder(ctx, out.Placeholder)
	}

	err = j.env.Sheets.Update(ctx, j.env.Dest.SpreadsheetID, j.rng(out.DataCell), rows, out.Mode)
	if err != nil {
		return "", err
	}
	j.tel.ReportCount(report_rows_written, int64(len(rows)))

	note := fmt.Sprintf("%d rows -> %s", len(rows), j.rng(out.DataCell))
	if failures > 0 {
		note += fmt.Sprintf(" (%d/%d pages failed)", failures, len(docs))
	}
	return note, nil
}

func (j *Job) extract(ctx context.Context, doc Document) (Result, error) {
	if doc.Err != nil {
		return Result{}, doc.Err
	}
	page, err := ParsePage(ctx, doc.URL, doc.Body)
	if err != nil {
		return Result{}, err
	}
	res, err := j.desc.Extract(page)
	if err != nil {
		return Result{}, err
	}
	j.tel.ReportDebug("extracted page", doc.URL, len(res.Rows))
	return res, nil
}
