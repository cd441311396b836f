package app

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nrega-scraper/internal/credentials"
	"nrega-scraper/internal/extract"
	"nrega-scraper/internal/hosting"
	"nrega-scraper/internal/jobs"
	"nrega-scraper/internal/model"
	"nrega-scraper/internal/sheets"
	"nrega-scraper/internal/telemetry"

	"github.com/stretchr/testify/require"
)

type staticFetcher struct {
	body []byte
	gets []string
}

func (f *staticFetcher) Get(ctx context.Context, u string) ([]byte, error) {
	f.gets = append(f.gets, u)
	return f.body, nil
}

func (f *staticFetcher) PostForm(ctx context.Context, u string, form url.Values) ([]byte, error) {
	return f.body, nil
}

// reportPage renders count tables with two rows each.
func reportPage(count int) []byte {
	var b strings.Builder
	b.WriteString("<html><body>")
	for i := 0; i < count; i++ {
		fmt.Fprintf(&b, "<table><tr><th>SNo</th><th>Panchayat %d</th></tr><tr><td>1</td><td>KHAIRLANJI</td></tr></table>", i)
	}
	b.WriteString("</body></html>")
	return []byte(b.String())
}

func writeTargets(t *testing.T, contents string) string {
	path := filepath.Join(t.TempDir(), "targets.json5")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0600))
	return path
}

func testApp(t *testing.T, targetsFile string, api sheets.API, fetcher extract.Fetcher) *App {
	cfg := Config{TargetsFile: targetsFile}.withDefaults()
	a, err := New(context.Background(), cfg, &telemetry.MemoryAPI{}, false)
	require.NoError(t, err)
	t.Cleanup(a.Close)

	a.credentials = func() (credentials.Credentials, error) {
		return credentials.Credentials{Account: credentials.ServiceAccount{ClientEmail: "bot@example.com"}}, nil
	}
	a.sheets = func(ctx context.Context, creds credentials.Credentials) (sheets.API, error) {
		return api, nil
	}
	a.fetcher = func(spec jobs.Spec) (extract.Fetcher, error) {
		return fetcher, nil
	}
	return a
}

func TestRunOnce(t *testing.T) {
	path := writeTargets(t, `{
		// keyed by the old script name
		targets: {"A1.cjs": {spreadsheetId: "sid-a1", tab: "R1.1"}},
		log: {spreadsheetId: "sid-log"},
	}`)
	api := sheets.NewMemory()
	fetcher := &staticFetcher{body: reportPage(8)}
	a := testApp(t, path, api, fetcher)

	summary, err := a.RunOnce(context.Background(), []string{"labour", "a1"})
	require.NoError(t, err)
	require.Len(t, summary.Outcomes, 2)

	// catalog order wins over argument order
	require.Equal(t, "a1", summary.Outcomes[0].Name)
	require.True(t, summary.Outcomes[0].OK, summary.Outcomes[0].Output)
	require.Equal(t, "labour", summary.Outcomes[1].Name)
	require.False(t, summary.Outcomes[1].OK)
	require.Equal(t, model.KindConfig, summary.Outcomes[1].Kind)
	require.Equal(t, 1, summary.Outcomes[1].Attempts)

	ledger := api.Appended("sid-log", "Runs!A:E")
	require.Len(t, ledger, 4)
	require.Equal(t, model.LedgerHeader, ledger[0])
	require.Equal(t, "OK", ledger[1][2])
	require.Equal(t, "FAIL", ledger[2][2])
	require.Equal(t, "SUMMARY", ledger[3][1])

	var ranges []string
	for _, call := range api.Ops("update") {
		require.Equal(t, "sid-a1", call.SpreadsheetID)
		ranges = append(ranges, call.Range)
	}
	require.Equal(t, []string{"'R1.1'!A3", "'R1.1'!A4"}, ranges)
	require.Len(t, fetcher.gets, 1)
}

func TestRunOnceUnknownJob(t *testing.T) {
	a := testApp(t, writeTargets(t, `{targets: {}}`), sheets.NewMemory(), &staticFetcher{})
	_, err := a.RunOnce(context.Background(), []string{"runall"})
	require.Equal(t, model.KindConfig, model.KindOf(err))
}

func TestRunOnceMalformedTargets(t *testing.T) {
	a := testApp(t, writeTargets(t, `{targets: [`), sheets.NewMemory(), &staticFetcher{})
	_, err := a.RunOnce(context.Background(), nil)
	require.Equal(t, model.KindConfig, model.KindOf(err))
}

func TestSelectSkipsDisabled(t *testing.T) {
	cfg := Config{Jobs: map[string]JobConfig{"tracking": {Disabled: true}}}.withDefaults()
	a := &App{Config: cfg}

	specs, err := a.Select(nil)
	require.NoError(t, err)
	require.Len(t, specs, len(jobs.Catalog())-1)
	require.Equal(t, "a1", specs[0].Name())

	// asking by name still runs a disabled job
	specs, err = a.Select([]string{"trakingfile.cjs"})
	require.NoError(t, err)
	require.Len(t, specs, 1)
	require.Equal(t, "tracking", specs[0].Name())
}

func TestTaskOverrides(t *testing.T) {
	retries := 0
	cfg := Config{Jobs: map[string]JobConfig{
		"a1": {
			TimeoutSeconds: 30,
			MaxRetries:     &retries,
			Heartbeat:      &HeartbeatConfig{SpreadsheetID: "sid-hb", Tab: "beat"},
		},
	}}.withDefaults()
	a := testApp(t, writeTargets(t, `{targets: {a1: {spreadsheetId: "sid"}}}`), sheets.NewMemory(), &staticFetcher{})
	cfg.TargetsFile = a.Config.TargetsFile
	a.Config = cfg

	resolver, err := a.Targets()
	require.NoError(t, err)
	spec, _ := jobs.Lookup("a1")
	tasks := a.Tasks(sheets.NewMemory(), resolver, []jobs.Spec{spec})

	desc := tasks[0].Descriptor
	require.Equal(t, 30*time.Second, desc.Timeout)
	require.Zero(t, desc.MaxRetries)
	require.Equal(t, &model.Destination{SpreadsheetID: "sid-hb", Tab: "beat"}, desc.Heartbeat)
}

func TestFetchOptionsLayering(t *testing.T) {
	a := &App{Config: Config{HTTP: HTTPConfig{TimeoutSeconds: 20, Attempts: 2, Proxy: "http://proxy:3128"}}}

	a1, _ := jobs.Lookup("a1")
	opts := a.fetchOptions(a1)
	require.Equal(t, 20*time.Second, opts.Timeout)
	require.Equal(t, 2, opts.Attempts)
	require.Equal(t, 3, opts.MaxRedirects)
	require.Equal(t, 1500*time.Millisecond, opts.Backoff)
	require.Equal(t, "http://proxy:3128", opts.Proxy)

	tracking, _ := jobs.Lookup("tracking")
	opts = a.fetchOptions(tracking)
	require.Equal(t, 120*time.Second, opts.Timeout)

	labour, _ := jobs.Lookup("labour")
	require.Equal(t, 5, a.fetchOptions(labour).Attempts)
}

func TestAfterRunSuspendsRender(t *testing.T) {
	var calls []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	a := testApp(t, writeTargets(t, `{targets: {}}`), sheets.NewMemory(), &staticFetcher{})
	_, ok := a.Render()
	require.False(t, ok)
	require.NoError(t, a.afterRun(context.Background(), model.RunSummary{}))

	a.Config.Render = hosting.RenderConfig{BaseURL: srv.URL, ServiceID: "srv-1", ApiKey: "key"}
	_, ok = a.Render()
	require.True(t, ok)
	require.NoError(t, a.afterRun(context.Background(), model.RunSummary{}))
	require.Empty(t, calls)

	a.Config.Render.SuspendAfterRun = true
	require.NoError(t, a.afterRun(context.Background(), model.RunSummary{}))
	require.Equal(t, []string{"POST /services/srv-1/suspend"}, calls)
}
