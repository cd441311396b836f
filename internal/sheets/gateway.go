package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"nrega-scraper/internal/chrono"
	"nrega-scraper/internal/model"
	"nrega-scraper/internal/telemetry"
	"nrega-scraper/lib/restyutil"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("nrega.sheets")

const (
	report_sheets_retry  = "retry"
	report_tab_created   = "tab-created"
	report_tab_duplicate = "tab-duplicate"
)

const DefaultBaseURL = "https://sheets.googleapis.com"

type Options struct {
	// BaseURL of the sheets api, DefaultBaseURL when empty.
	BaseURL string
	// HTTPClient carries the authorization, usually built from the service
	// account credentials.
	HTTPClient *http.Client
	Timeout    time.Duration
	// Attempts for throttled or 5xx calls, 5 when zero.
	Attempts int
	// Backoff base, the delay before retry n (0-based) is Backoff * 2^n.
	// 500ms when zero.
	Backoff time.Duration
	Output  restyutil.InstrumentOutput
	Tel     telemetry.API
	Sleep   chrono.SleepFunc
}

// Gateway talks to the Google Sheets v4 REST api.
type Gateway struct {
	http     *resty.Client
	attempts int
	backoff  time.Duration
	tel      telemetry.API
	sleep    chrono.SleepFunc

	tabsLock sync.Mutex
	tabs     map[string]bool
}

var _ API = (*Gateway)(nil)

func New(opts Options) *Gateway {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 5
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}
	if opts.Tel == nil {
		opts.Tel = telemetry.SlogAPI{}
	}
	if opts.Sleep == nil {
		opts.Sleep = chrono.Sleep
	}

	var client *resty.Client
	if opts.HTTPClient != nil {
		client = resty.NewWithClient(opts.HTTPClient)
	} else {
		client = resty.New()
	}
	client.SetBaseURL(strings.TrimSuffix(opts.BaseURL, "/"))
	client.SetTimeout(opts.Timeout)
	client.SetHeader("Content-Type", "application/json")
	restyutil.InstrumentClient(client, otel.Tracer("nrega.sheets/resty"), opts.Output)

	return &Gateway{
		http:     client,
		attempts: opts.Attempts,
		backoff:  opts.Backoff,
		tel:      telemetry.NewScopedAPI("sheets", opts.Tel),
		sleep:    opts.Sleep,
		tabs:     map[string]bool{},
	}
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func errorMessage(res *resty.Response) string {
	var body apiError
	err := json.Unmarshal(res.Body(), &body)
	if err == nil && body.Error.Message != "" {
		return body.Error.Message
	}
	return strings.TrimSpace(res.String())
}

// call runs one api request with the throttling retry policy. build is
// invoked for every attempt since resty requests are not reusable.
func (g *Gateway) call(ctx context.Context, op, rng string, build func(req *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	var lastErr error
	for attempt := 0; attempt < g.attempts; attempt++ {
		res, err := build(g.http.R().SetContext(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return nil, model.PersistenceError{Op: op, Range: rng, Err: ctx.Err()}
			}
			return nil, model.PersistenceError{Op: op, Range: rng, Err: err}
		}
		if !res.IsError() {
			return res, nil
		}

		perr := model.PersistenceError{
			Op:         op,
			Range:      rng,
			StatusCode: res.StatusCode(),
			Message:    errorMessage(res),
		}
		lastErr = perr
		if !perr.Retryable() || attempt == g.attempts-1 {
			break
		}

		delay := g.backoff * time.Duration(1<<attempt)
		g.tel.ReportWarning(
			report_sheets_retry,
			fmt.Sprintf("%s %s returned %d, retrying after %s", op, rng, res.StatusCode(), delay),
		)
		err = g.sleep(ctx, delay)
		if err != nil {
			return nil, model.PersistenceError{Op: op, Range: rng, Err: err}
		}
	}
	return nil, lastErr
}

type valueRange struct {
	Range          string  `json:"range,omitempty"`
	MajorDimension string  `json:"majorDimension,omitempty"`
	Values         [][]any `json:"values"`
}

func toValues(rows model.Grid) [][]any {
	out := make([][]any, len(rows))
	for i, row := range rows {
		out[i] = make([]any, len(row))
		for j, cell := range row {
			out[i][j] = cell
		}
	}
	return out
}

func fromValues(values [][]any) model.Grid {
	out := make(model.Grid, len(values))
	for i, row := range values {
		out[i] = make([]string, len(row))
		for j, cell := range row {
			if cell == nil {
				continue
			}
			if s, ok := cell.(string); ok {
				out[i][j] = s
				continue
			}
			out[i][j] = fmt.Sprint(cell)
		}
	}
	return out
}

func (g *Gateway) Append(ctx context.Context, spreadsheetID, rng string, rows model.Grid) error {
	ctx, span := tracer.Start(ctx, "append")
	defer span.End()
	span.SetAttributes(attribute.String("range", rng), attribute.Int("rows", len(rows)))

	err := g.EnsureTab(ctx, spreadsheetID, TabOf(rng))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ensure tab")
		return err
	}

	_, err = g.call(ctx, "append", rng, func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetPathParams(map[string]string{"id": spreadsheetID, "range": rng}).
			SetQueryParam("valueInputOption", string(UserEntered)).
			SetQueryParam("insertDataOption", "INSERT_ROWS").
			SetBody(valueRange{MajorDimension: "ROWS", Values: toValues(rows)}).
			Post("/v4/spreadsheets/{id}/values/{range}:append")
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append")
	}
	return err
}

func (g *Gateway) Update(ctx context.Context, spreadsheetID, rng string, rows model.Grid, mode Mode) error {
	ctx, span := tracer.Start(ctx, "update")
	defer span.End()
	span.SetAttributes(attribute.String("range", rng), attribute.Int("rows", len(rows)))

	if mode == "" {
		mode = UserEntered
	}

	err := g.EnsureTab(ctx, spreadsheetID, TabOf(rng))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ensure tab")
		return err
	}

	_, err = g.call(ctx, "update", rng, func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetPathParams(map[string]string{"id": spreadsheetID, "range": rng}).
			SetQueryParam("valueInputOption", string(mode)).
			SetBody(valueRange{Range: rng, MajorDimension: "ROWS", Values: toValues(rows)}).
			Put("/v4/spreadsheets/{id}/values/{range}")
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update")
	}
	return err
}

func (g *Gateway) Clear(ctx context.Context, spreadsheetID, rng string) error {
	ctx, span := tracer.Start(ctx, "clear")
	defer span.End()
	span.SetAttributes(attribute.String("range", rng))

	err := g.EnsureTab(ctx, spreadsheetID, TabOf(rng))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "ensure tab")
		return err
	}

	_, err = g.call(ctx, "clear", rng, func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetPathParams(map[string]string{"id": spreadsheetID, "range": rng}).
			SetBody(map[string]any{}).
			Post("/v4/spreadsheets/{id}/values/{range}:clear")
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "clear")
	}
	return err
}

func (g *Gateway) Read(ctx context.Context, spreadsheetID, rng string) (model.Grid, error) {
	ctx, span := tracer.Start(ctx, "read")
	defer span.End()
	span.SetAttributes(attribute.String("range", rng))

	res, err := g.call(ctx, "read", rng, func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetPathParams(map[string]string{"id": spreadsheetID, "range": rng}).
			Get("/v4/spreadsheets/{id}/values/{range}")
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read")
		return nil, err
	}

	var body valueRange
	err = json.Unmarshal(res.Body(), &body)
	if err != nil {
		err = model.PersistenceError{Op: "read", Range: rng, Message: "malformed response", Err: err}
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode")
		return nil, err
	}
	return fromValues(body.Values), nil
}

type spreadsheetMeta struct {
	Sheets []struct {
		Properties struct {
			Title string `json:"title"`
		} `json:"properties"`
	} `json:"sheets"`
}

func tabKey(spreadsheetID, tab string) string {
	return spreadsheetID + "\x00" + tab
}

// Tabs lists the tab titles of a spreadsheet.
func (g *Gateway) Tabs(ctx context.Context, spreadsheetID string) ([]string, error) {
	res, err := g.call(ctx, "metadata", spreadsheetID, func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetPathParam("id", spreadsheetID).
			SetQueryParam("fields", "sheets.properties.title").
			Get("/v4/spreadsheets/{id}")
	})
	if err != nil {
		return nil, err
	}
	var meta spreadsheetMeta
	err = json.Unmarshal(res.Body(), &meta)
	if err != nil {
		return nil, model.PersistenceError{Op: "metadata", Range: spreadsheetID, Message: "malformed response", Err: err}
	}
	titles := make([]string, len(meta.Sheets))
	for i, s := range meta.Sheets {
		titles[i] = s.Properties.Title
	}
	return titles, nil
}

// EnsureTab creates the tab if the spreadsheet does not have it yet. Tabs
// known to exist are remembered for the lifetime of the gateway.
func (g *Gateway) EnsureTab(ctx context.Context, spreadsheetID, tab string) error {
	if tab == "" {
		return nil
	}

	// held across the network calls so that concurrent writers to a new tab
	// never both try to create it
	g.tabsLock.Lock()
	defer g.tabsLock.Unlock()

	if g.tabs[tabKey(spreadsheetID, tab)] {
		return nil
	}

	titles, err := g.Tabs(ctx, spreadsheetID)
	if err != nil {
		return err
	}
	for _, title := range titles {
		g.tabs[tabKey(spreadsheetID, title)] = true
	}
	if g.tabs[tabKey(spreadsheetID, tab)] {
		return nil
	}

	_, err = g.call(ctx, "add_tab", tab, func(req *resty.Request) (*resty.Response, error) {
		return req.
			SetPathParam("id", spreadsheetID).
			SetBody(map[string]any{
				"requests": []any{
					map[string]any{
						"addSheet": map[string]any{
							"properties": map[string]any{"title": tab},
						},
					},
				},
			}).
			Post("/v4/spreadsheets/{id}:batchUpdate")
	})
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return err
	}
	if err != nil {
		g.tel.ReportDebug("tab already existed", spreadsheetID, tab)
		g.tel.ReportCount(report_tab_duplicate, 1)
	} else {
		g.tel.ReportDebug("tab created", spreadsheetID, tab)
		g.tel.ReportCount(report_tab_created, 1)
	}

	g.tabs[tabKey(spreadsheetID, tab)] = true
	return nil
}
