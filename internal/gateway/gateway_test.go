package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/flemzord/presenced/internal/core"
	"github.com/flemzord/presenced/internal/history"
	"github.com/flemzord/presenced/internal/scheduler"
	"github.com/flemzord/presenced/internal/security"
	"github.com/flemzord/presenced/internal/security/securitytest"
	"github.com/flemzord/presenced/internal/status"
)

type fakeRunner struct {
	status status.RunStatus
	err    error
	calls  int
}

func (f *fakeRunner) RunNow(context.Context) (status.RunStatus, error) {
	f.calls++
	return f.status, f.err
}

func (f *fakeRunner) Descriptor() scheduler.TaskDescriptor {
	return scheduler.TaskDescriptor{ID: "always_online", Name: "Always Online", InitialDelay: 30 * time.Second, Interval: 5 * time.Minute}
}

// newTestGateway builds a gateway around in-memory collaborators,
// bypassing Provision and Start. opts run before the router is built.
func newTestGateway(t *testing.T, auth AuthConfig, opts ...func(*Gateway)) (*Gateway, *httptest.Server) {
	t.Helper()

	cfg := Config{Auth: auth}
	cfg.defaults()
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	g := &Gateway{
		config:    cfg,
		appCtx:    core.NewAppContext(slog.New(slog.DiscardHandler), t.TempDir()),
		logger:    slog.New(slog.DiscardHandler),
		counters:  &Metrics{},
		limiter:   security.NewRateLimiter(cfg.AuthFailuresPerMin, time.Minute),
		startedAt: start,
		now:       func() time.Time { return start.Add(90 * time.Second) },
		tracker:   status.NewTracker(nil),
		runner:    &fakeRunner{},
		history:   history.NewMemory(history.DefaultRetention),
		metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("presenced_runs_total 0\n"))
		}),
	}
	for _, opt := range opts {
		opt(g)
	}
	srv := httptest.NewServer(g.buildRouter())
	t.Cleanup(srv.Close)
	return g, srv
}

func get(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return v
}

func recordRun(tr *status.Tracker, err error) status.RunStatus {
	run := tr.Begin()
	return tr.Record(status.Outcome{Run: run, Err: err})
}

func TestHealth(t *testing.T) {
	t.Parallel()

	_, srv := newTestGateway(t, AuthConfig{BearerToken: "tok"})

	resp := get(t, srv.URL+"/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	body := decode[HealthResponse](t, resp)
	if body.Status != "ok" || body.Uptime != 90 {
		t.Errorf("health = %+v", body)
	}

	_, bare := newTestGateway(t, AuthConfig{}, func(g *Gateway) { g.tracker = nil })
	resp = get(t, bare.URL+"/health", "")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status without tracker = %d, want 503", resp.StatusCode)
	}
}

func TestMetricsIsPublic(t *testing.T) {
	t.Parallel()

	_, srv := newTestGateway(t, AuthConfig{BearerToken: "tok"})
	resp := get(t, srv.URL+"/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	g, srv := newTestGateway(t, AuthConfig{BearerToken: "tok"})

	if resp := get(t, srv.URL+"/status", ""); resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("unauthenticated status = %d, want 401", resp.StatusCode)
	}

	before := decode[StatusResponse](t, get(t, srv.URL+"/status", "tok"))
	if before.Status.RunCount != 0 || before.Status.LastError != nil || !before.Status.LastRunTime.IsZero() {
		t.Errorf("never-run status = %+v", before.Status)
	}
	if before.Task == nil || before.Task.ID != "always_online" || before.Task.Interval != 300 {
		t.Errorf("task = %+v", before.Task)
	}

	recordRun(g.tracker, errors.New("Location object is null. Check location permissions."))

	after := decode[StatusResponse](t, get(t, srv.URL+"/status", "tok"))
	if after.Status.RunCount != 1 || after.Attempts != 1 || after.Status.LastRunSuccess {
		t.Errorf("status after failed run = %+v", after)
	}
	if after.Status.LastError == nil || !strings.Contains(*after.Status.LastError, "Location object is null") {
		t.Errorf("last_error = %v", after.Status.LastError)
	}
	if after.Gateway.Requests == 0 {
		t.Error("gateway request counter not advancing")
	}
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	g, srv := newTestGateway(t, AuthConfig{})
	for i := range 3 {
		_ = g.history.Append(t.Context(), history.Record{RunID: string(rune('a' + i)), RunNumber: uint64(i + 1)})
	}

	runs := decode[[]history.Record](t, get(t, srv.URL+"/api/runs?limit=2", ""))
	if len(runs) != 2 || runs[0].RunNumber != 3 || runs[1].RunNumber != 2 {
		t.Errorf("runs = %+v", runs)
	}

	all := decode[[]history.Record](t, get(t, srv.URL+"/api/runs", ""))
	if len(all) != 3 {
		t.Errorf("default listing = %d runs, want 3", len(all))
	}

	for _, q := range []string{"0", "-1", "abc"} {
		if resp := get(t, srv.URL+"/api/runs?limit="+q, ""); resp.StatusCode != http.StatusBadRequest {
			t.Errorf("limit=%s: status = %d, want 400", q, resp.StatusCode)
		}
	}
}

func TestListRuns_LimitFollowsStoreRetention(t *testing.T) {
	t.Parallel()

	store := history.NewMemory(250)
	_, srv := newTestGateway(t, AuthConfig{}, func(g *Gateway) { g.history = store })
	for i := range 180 {
		_ = store.Append(t.Context(), history.Record{RunNumber: uint64(i + 1)})
	}

	runs := decode[[]history.Record](t, get(t, srv.URL+"/api/runs?limit=150", ""))
	if len(runs) != 150 {
		t.Fatalf("limit=150: got %d runs, want 150", len(runs))
	}
	if runs[0].RunNumber != 180 {
		t.Errorf("first run = #%d, want #180", runs[0].RunNumber)
	}

	runs = decode[[]history.Record](t, get(t, srv.URL+"/api/runs?limit=1000", ""))
	if len(runs) != 180 {
		t.Errorf("limit=1000: got %d runs, want all 180", len(runs))
	}
}

func TestListRuns_Empty(t *testing.T) {
	t.Parallel()

	_, srv := newTestGateway(t, AuthConfig{})
	resp := get(t, srv.URL+"/api/runs", "")
	runs := decode[[]history.Record](t, resp)
	if runs == nil || len(runs) != 0 {
		t.Errorf("runs = %#v, want empty array", runs)
	}
}

func TestRunNow(t *testing.T) {
	t.Parallel()

	audit, events := securitytest.NewTestAuditLogger()
	msg := "Unexpected result: Failure(503)"
	runner := &fakeRunner{status: status.RunStatus{RunID: "r-1", RunCount: 4, LastError: &msg}}
	g, srv := newTestGateway(t, AuthConfig{BearerToken: "tok"}, func(g *Gateway) {
		g.audit = audit
		g.runner = runner
	})

	post := func() *http.Response {
		req, _ := http.NewRequestWithContext(t.Context(), http.MethodPost, srv.URL+"/api/run", nil)
		req.Header.Set("Authorization", "Bearer tok")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = resp.Body.Close() })
		return resp
	}

	resp := post()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	got := decode[status.RunStatus](t, resp)
	if got.RunID != "r-1" || got.RunCount != 4 {
		t.Errorf("run status = %+v", got)
	}

	runner.err = scheduler.ErrRunInProgress
	if resp := post(); resp.StatusCode != http.StatusConflict {
		t.Errorf("busy status = %d, want 409", resp.StatusCode)
	}

	var manual int
	for _, e := range events() {
		if e.Type == security.EventManualRun {
			manual++
			if e.RunID != "r-1" {
				t.Errorf("manual run event = %+v", e)
			}
		}
	}
	if manual != 1 {
		t.Errorf("manual run events = %d, want 1", manual)
	}
	if g.counters.Snapshot().ManualRuns != 1 {
		t.Errorf("manual run counter = %d", g.counters.Snapshot().ManualRuns)
	}
}

func TestRunNow_DisabledWithoutAuth(t *testing.T) {
	t.Parallel()

	g, srv := newTestGateway(t, AuthConfig{})
	resp, err := http.Post(srv.URL+"/api/run", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		t.Fatal("POST /api/run must not be served without auth")
	}
	if g.runner.(*fakeRunner).calls != 0 {
		t.Error("runner was invoked")
	}
}

func TestListModules(t *testing.T) {
	t.Parallel()

	g, srv := newTestGateway(t, AuthConfig{})
	g.appCtx.RegisterService("keepalive.status", g.tracker)

	body := decode[ModulesResponse](t, get(t, srv.URL+"/api/modules", ""))
	var found bool
	for _, id := range body.Compiled {
		if id == "gateway.http" {
			found = true
		}
	}
	if !found {
		t.Errorf("compiled modules %v missing gateway.http", body.Compiled)
	}
	if len(body.Services) != 1 || body.Services[0] != "keepalive.status" {
		t.Errorf("services = %v", body.Services)
	}
}

func TestStatusStream(t *testing.T) {
	t.Parallel()

	g, srv := newTestGateway(t, AuthConfig{BearerToken: "tok"})

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/status"
	if _, _, err := websocket.Dial(ctx, url, nil); err == nil {
		t.Fatal("expected unauthenticated dial to fail")
	}

	conn, _, err := websocket.Dial(ctx, url, &websocket.DialOptions{
		HTTPHeader: http.Header{"Authorization": []string{"Bearer tok"}},
	})
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	read := func() status.RunStatus {
		t.Helper()
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var s status.RunStatus
		if err := json.Unmarshal(data, &s); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		return s
	}

	if first := read(); first.RunCount != 0 {
		t.Errorf("initial snapshot = %+v", first)
	}

	// The subscription is registered before the initial snapshot is
	// written, so this update cannot be missed.
	want := recordRun(g.tracker, nil)
	got := read()
	if got.RunID != want.RunID || !got.LastRunSuccess || got.RunCount != 1 {
		t.Errorf("streamed = %+v, want %+v", got, want)
	}

	if n := g.counters.Snapshot().StreamClients; n != 1 {
		t.Errorf("stream clients = %d, want 1", n)
	}
	_ = conn.Close(websocket.StatusNormalClosure, "")
}
