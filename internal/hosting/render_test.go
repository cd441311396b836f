package hosting

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeRender struct {
	mu       sync.Mutex
	requests []string
	status   int
}

func (f *fakeRender) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path+" "+r.Header.Get("Authorization"))
	status := f.status
	f.mu.Unlock()

	if status != 0 {
		w.WriteHeader(status)
		w.Write([]byte(`{"message":"nope"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if r.Method == http.MethodGet {
		w.Write([]byte(`{"id":"srv-1","name":"nrega-scraper","suspended":"not_suspended"}`))
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func setup(t *testing.T) (*fakeRender, Render) {
	fake := &fakeRender{}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)
	render := NewRender(RenderConfig{BaseURL: server.URL, ServiceID: "srv-1", ApiKey: "key"}, nil)
	return fake, render
}

func TestSuspendAndResume(t *testing.T) {
	fake, render := setup(t)
	ctx := context.Background()

	require.NoError(t, render.Suspend(ctx))
	require.NoError(t, render.Resume(ctx))
	service, err := render.Get(ctx)
	require.NoError(t, err)
	require.Equal(t, "not_suspended", service.Suspended)

	require.Equal(t, []string{
		"POST /services/srv-1/suspend Bearer key",
		"POST /services/srv-1/resume Bearer key",
		"GET /services/srv-1 Bearer key",
	}, fake.requests)
}

func TestSuspendError(t *testing.T) {
	fake, render := setup(t)
	fake.status = http.StatusUnauthorized

	err := render.Suspend(context.Background())
	require.ErrorContains(t, err, "status 401")
}

func TestEnabled(t *testing.T) {
	require.False(t, RenderConfig{ServiceID: "srv-1"}.Enabled())
	require.True(t, RenderConfig{ServiceID: "srv-1", ApiKey: "k"}.Enabled())
}
