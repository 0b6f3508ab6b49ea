package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/flemzord/presenced/internal/capability"
	"github.com/flemzord/presenced/internal/completion"
	"github.com/flemzord/presenced/internal/core"
	"github.com/flemzord/presenced/internal/keepalive"
	"github.com/flemzord/presenced/internal/security"
)

func provisionAgainst(t *testing.T, srv *httptest.Server, cfg Config) (*Module, *core.AppContext) {
	t.Helper()

	ctx := core.NewAppContext(slog.New(slog.DiscardHandler), t.TempDir())
	ctx.RegisterService(security.RedactorService, security.NewRedactor())

	cfg.BaseURL = srv.URL
	m := &Module{config: cfg, httpClient: srv.Client()}
	if err := m.Provision(ctx); err != nil {
		t.Fatalf("Provision: %v", err)
	}
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	t.Cleanup(func() { _ = m.Close(context.Background()) })
	return m, ctx
}

func cascadeArgs(geohash string) []any {
	return keepalive.NewCascadeParams(geohash).Args()
}

// fetch resolves the cascade capability on p and calls it with args.
func fetch(p capability.Provider, args []any) (any, error) {
	h, err := capability.Resolve(p, keepalive.CascadeOperation, args)
	if err != nil {
		return nil, err
	}
	return h.Call(args)
}

func TestFetchCascadePage_Success(t *testing.T) {
	t.Parallel()

	var gotQuery, gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery.Store(r.URL.RawQuery)
		gotAuth.Store(r.Header.Get("Authorization"))
		if r.URL.Path != "/v3/cascade" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer srv.Close()

	m, ctx := provisionAgainst(t, srv, Config{Token: "tok-123"})

	svc, ok := ctx.Service(keepalive.CascadeRepository)
	if !ok {
		t.Fatal("cascade repository not registered")
	}
	provider, ok := svc.(capability.Provider)
	if !ok {
		t.Fatalf("service is %T, want capability.Provider", svc)
	}
	if svc != m.Registry() {
		t.Error("registered service should be the module registry")
	}

	got, err := fetch(provider, cascadeArgs("u09tvw0f6szy"))
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !keepalive.IsSuccess(got) || got != "Success(200)" {
		t.Errorf("result = %v, want Success(200)", got)
	}
	if q := gotQuery.Load().(string); !strings.Contains(q, "nearbyGeoHash=u09tvw0f6szy") || !strings.Contains(q, "pageNumber=1") {
		t.Errorf("query = %q", q)
	}
	if auth := gotAuth.Load().(string); auth != "Bearer tok-123" {
		t.Errorf("Authorization = %q", auth)
	}
}

func TestFetchCascadePage_HTTPError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	m, _ := provisionAgainst(t, srv, Config{})

	_, err := fetch(m.Registry(), cascadeArgs("u09"))
	if err == nil || !strings.Contains(err.Error(), "HTTP 503") {
		t.Errorf("error = %v, want HTTP 503", err)
	}
}

func TestFetchCascadePage_BadArgs(t *testing.T) {
	t.Parallel()

	c := newClient(context.Background(), Config{BaseURL: "http://x", Path: "/", Arity: 32}, nil)

	args := cascadeArgs("")
	_, err := completion.Await(func(h completion.Handle) error { return c.fetchCascadePage(args, h) })
	if !errors.Is(err, errBadArgs) || !errors.Is(err, completion.ErrStart) {
		t.Errorf("error = %v, want start failure wrapping errBadArgs", err)
	}

	_, err = completion.Await(func(h completion.Handle) error { return c.fetchCascadePage([]any{"u09"}, h) })
	if !errors.Is(err, errBadArgs) {
		t.Errorf("short args: error = %v, want errBadArgs", err)
	}
}

func TestClose_AbortsInFlight(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	unblock := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		select {
		case <-r.Context().Done():
		case <-unblock:
		}
	}))
	defer srv.Close()
	defer close(unblock)

	m, _ := provisionAgainst(t, srv, Config{})

	errc := make(chan error, 1)
	go func() {
		_, err := fetch(m.Registry(), cascadeArgs("u09"))
		errc <- err
	}()

	<-entered
	_ = m.Close(context.Background())

	if err := <-errc; err == nil || !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestProvision_RegistersTokenForRedaction(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	_, ctx := provisionAgainst(t, srv, Config{Token: "very-secret-token"})

	svc, _ := ctx.Service(security.RedactorService)
	r := svc.(*security.Redactor)
	if got := r.Redact("auth=very-secret-token"); strings.Contains(got, "very-secret-token") {
		t.Errorf("token not redacted: %q", got)
	}
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	c := Config{}
	c.defaults()
	if err := c.validate(); err == nil || !strings.Contains(err.Error(), "base_url is required") {
		t.Errorf("error = %v, want base_url required", err)
	}

	c = Config{BaseURL: "not a url"}
	c.defaults()
	if err := c.validate(); err == nil {
		t.Error("expected error for invalid base_url")
	}

	c = Config{BaseURL: "https://api.example.com"}
	c.defaults()
	if err := c.validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
	if c.Arity != keepalive.CascadeArity || c.Path != defaultPath || c.Timeout != defaultTimeout {
		t.Errorf("defaults = %+v", c)
	}
}
