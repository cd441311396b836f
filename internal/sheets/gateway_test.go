package sheets

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"nrega-scraper/internal/chrono"
	"nrega-scraper/internal/model"
	"nrega-scraper/internal/telemetry"

	"github.com/stretchr/testify/require"
)

type fakeSheets struct {
	mu sync.Mutex
	t  *testing.T

	tabs     map[string]bool
	values   map[string][][]any
	requests []string
	creates  int
	// pending statuses returned before handling, consumed in order
	throttle []int
	// createStatus overrides the batchUpdate response
	createStatus  int
	createMessage string
	queries       map[string]string
}

func newFakeSheets(t *testing.T, tabs ...string) *fakeSheets {
	f := &fakeSheets{
		t:       t,
		tabs:    map[string]bool{},
		values:  map[string][][]any{},
		queries: map[string]string{},
	}
	for _, tab := range tabs {
		f.tabs[tab] = true
	}
	return f
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": status, "message": message},
	})
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/")
	f.requests = append(f.requests, r.Method+" "+path)

	if len(f.throttle) > 0 {
		status := f.throttle[0]
		f.throttle = f.throttle[1:]
		writeError(w, status, "slow down")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(path, ":batchUpdate"):
		f.creates++
		if f.createStatus != 0 {
			writeError(w, f.createStatus, f.createMessage)
			return
		}
		var body struct {
			Requests []struct {
				AddSheet struct {
					Properties struct {
						Title string `json:"title"`
					} `json:"properties"`
				} `json:"addSheet"`
			} `json:"requests"`
		}
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
		f.tabs[body.Requests[0].AddSheet.Properties.Title] = true
		w.Write([]byte(`{}`))
	case strings.Contains(path, "/values/"):
		rng := strings.SplitN(path, "/values/", 2)[1]
		switch {
		case strings.HasSuffix(rng, ":append"):
			rng = strings.TrimSuffix(rng, ":append")
			f.queries["append"] = r.URL.RawQuery
			var body valueRange
			require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
			f.values[rng] = append(f.values[rng], body.Values...)
		case strings.HasSuffix(rng, ":clear"):
			delete(f.values, strings.TrimSuffix(rng, ":clear"))
		case r.Method == http.MethodPut:
			f.queries["update"] = r.URL.RawQuery
			var body valueRange
			require.NoError(f.t, json.NewDecoder(r.Body).Decode(&body))
			f.values[rng] = body.Values
		case r.Method == http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": f.values[rng]})
			return
		}
		w.Write([]byte(`{}`))
	default:
		var sheets []any
		for tab := range f.tabs {
			sheets = append(sheets, map[string]any{"properties": map[string]any{"title": tab}})
		}
		json.NewEncoder(w).Encode(map[string]any{"sheets": sheets})
	}
}

func (f *fakeSheets) count(prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}
	return n
}

func newTestGateway(t *testing.T, fake *fakeSheets) (*Gateway, *chrono.RecordingSleeper, *telemetry.MemoryAPI) {
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)
	sleeper := &chrono.RecordingSleeper{}
	tel := &telemetry.MemoryAPI{}
	g := New(Options{BaseURL: srv.URL, Sleep: sleeper.Sleep, Tel: tel})
	return g, sleeper, tel
}

func TestEnsureTabCreatesOnce(t *testing.T) {
	fake := newFakeSheets(t, "Sheet1")
	g, _, tel := newTestGateway(t, fake)
	ctx := context.Background()

	err := g.Update(ctx, "sid", Range("R1.1", "A3"), model.Grid{{"info"}}, Raw)
	require.NoError(t, err)
	err = g.Update(ctx, "sid", Range("R1.1", "A4"), model.Grid{{"1", "a"}}, Raw)
	require.NoError(t, err)
	err = g.Clear(ctx, "sid", Range("R1.1", "A4:Z"))
	require.NoError(t, err)

	require.Equal(t, 1, fake.creates)
	require.Equal(t, 1, fake.count("GET sid"))
	require.True(t, fake.tabs["R1.1"])
	require.Len(t, tel.Find("count", "sheets:"+report_tab_created), 1)
}

func TestEnsureTabExistingSkipsCreate(t *testing.T) {
	fake := newFakeSheets(t, "Runs")
	g, _, _ := newTestGateway(t, fake)

	err := g.Append(context.Background(), "sid", Range("Runs", "A:Z"), model.Grid{{"ts", "a1", "OK", "10", ""}})
	require.NoError(t, err)
	require.Equal(t, 0, fake.creates)
	require.Equal(t, [][]any{{"ts", "a1", "OK", "10", ""}}, fake.values["Runs!A:Z"])
	require.Contains(t, fake.queries["append"], "valueInputOption=USER_ENTERED")
	require.Contains(t, fake.queries["append"], "insertDataOption=INSERT_ROWS")
}

func TestEnsureTabAlreadyExistsIsSuccess(t *testing.T) {
	fake := newFakeSheets(t)
	fake.createStatus = http.StatusBadRequest
	fake.createMessage = `Invalid requests[0].addSheet: A sheet with the name "Runs" already exists. Please enter another name.`
	g, _, _ := newTestGateway(t, fake)

	err := g.Append(context.Background(), "sid", Range("Runs", "A:Z"), model.Grid{{"x"}})
	require.NoError(t, err)
	err = g.Append(context.Background(), "sid", Range("Runs", "A:Z"), model.Grid{{"y"}})
	require.NoError(t, err)
	require.Equal(t, 1, fake.creates)
}

func TestRetryOnThrottle(t *testing.T) {
	fake := newFakeSheets(t, "Runs")
	fake.throttle = []int{http.StatusTooManyRequests, http.StatusServiceUnavailable}
	g, sleeper, _ := newTestGateway(t, fake)

	_, err := g.Read(context.Background(), "sid", Range("Runs", "A1"))
	require.NoError(t, err)
	require.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, sleeper.Delays())
}

func TestRetryGivesUp(t *testing.T) {
	fake := newFakeSheets(t, "Runs")
	fake.throttle = []int{429, 429, 429, 429, 429, 429}
	g, sleeper, _ := newTestGateway(t, fake)

	_, err := g.Read(context.Background(), "sid", "Runs!A1")
	var perr model.PersistenceError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 429, perr.StatusCode)
	require.Len(t, sleeper.Delays(), 4)
}

func TestNonRetryableError(t *testing.T) {
	fake := newFakeSheets(t, "Runs")
	fake.throttle = []int{http.StatusForbidden}
	g, sleeper, _ := newTestGateway(t, fake)

	_, err := g.Read(context.Background(), "sid", "Runs!A1")
	var perr model.PersistenceError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 403, perr.StatusCode)
	require.Equal(t, "slow down", perr.Message)
	require.Empty(t, sleeper.Delays())
	require.Equal(t, model.KindPersistence, model.KindOf(err))
}

func TestReadConvertsValues(t *testing.T) {
	fake := newFakeSheets(t, "Sheet3")
	fake.values["Sheet3!B3:B"] = [][]any{{"https://a"}, {}, {12.5}}
	g, _, _ := newTestGateway(t, fake)

	grid, err := g.Read(context.Background(), "sid", "Sheet3!B3:B")
	require.NoError(t, err)
	require.Equal(t, model.Grid{{"https://a"}, {}, {"12.5"}}, grid)

	empty, err := g.Read(context.Background(), "sid", "Sheet3!Z1")
	require.NoError(t, err)
	require.Empty(t, empty)
	// reads never create tabs
	require.NotContains(t, fake.requests, "GET sid")
	require.Equal(t, 0, fake.creates)
}

func TestUpdateMode(t *testing.T) {
	fake := newFakeSheets(t, "Sheet5")
	g, _, _ := newTestGateway(t, fake)

	err := g.Update(context.Background(), "sid", "Sheet5!C2", model.Grid{{"STATE"}}, "")
	require.NoError(t, err)
	require.Contains(t, fake.queries["update"], "valueInputOption=USER_ENTERED")

	err = g.Update(context.Background(), "sid", "Sheet5!C2", model.Grid{{"STATE"}}, Raw)
	require.NoError(t, err)
	require.Contains(t, fake.queries["update"], "valueInputOption=RAW")
}
