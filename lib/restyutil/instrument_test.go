package restyutil

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
)

type memoryOutput struct {
	mu       sync.Mutex
	messages map[string]string
}

func (m *memoryOutput) Write(id string, contents string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages[id] = contents
}

func TestInstrumentClientDumps(t *testing.T) {
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Report", "R1.1")
		w.Write([]byte("<table></table>"))
	}))
	defer srv.Close()

	out := &memoryOutput{messages: map[string]string{}}
	client := resty.New()
	InstrumentClient(client, nil, out)

	_, err := client.R().SetFormData(map[string]string{"state": "17"}).Post(srv.URL)
	require.NoError(t, err)

	require.Len(t, out.messages, 1)
	dump := out.messages["1"]
	require.True(t, strings.Contains(dump, "---- RESPONSE ----"))
	require.True(t, strings.Contains(dump, "X-Report: R1.1"))
	require.True(t, strings.Contains(dump, "state=17"))
	require.True(t, strings.Contains(dump, "<table></table>"))
}

func TestInstrumentClientNoOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := resty.New()
	InstrumentClient(client, nil, nil)

	res, err := client.R().Get(srv.URL)
	require.NoError(t, err)
	require.Equal(t, "ok", res.String())
}

func TestFormatHeadersRedacts(t *testing.T) {
	out := formatHeaders(http.Header{
		"Authorization": {"Bearer secret"},
		"Accept":        {"text/html"},
	})
	require.Equal(t, "Accept: text/html\nAuthorization: <redacted>", out)
}

func TestFormatFormBody(t *testing.T) {
	req, err := http.NewRequest(http.MethodPost, "http://example.com", strings.NewReader(""))
	require.NoError(t, err)
	body := "__VIEWSTATE=" + strings.Repeat("a", 500) + "&ddl_state=17"
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(body)), nil
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	out := formatRequestBody(req)
	require.Contains(t, out, "(500 bytes)")
	require.Contains(t, out, "\nddl_state=17")
}

func TestClampBody(t *testing.T) {
	require.Equal(t, "short", clampBody("short"))
	long := strings.Repeat("x", maxDumpBody+10)
	require.Contains(t, clampBody(long), "(10 bytes omitted)")
}
