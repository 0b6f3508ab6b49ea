package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/flemzord/presenced/modules/cascade/httpapi"
	_ "github.com/flemzord/presenced/modules/location/static"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "presenced.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestResolveConfigPath_XDGConfigHome(t *testing.T) {
	dir := t.TempDir()
	cfgDir := filepath.Join(dir, "presenced")
	if err := os.MkdirAll(cfgDir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	cfgPath := filepath.Join(cfgDir, "presenced.yaml")
	if err := os.WriteFile(cfgPath, []byte(`version: "1"`), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	t.Setenv("XDG_CONFIG_HOME", dir)

	got, err := ResolveConfigPath()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != cfgPath {
		t.Errorf("got %q, want %q", got, cfgPath)
	}
}

func TestResolveConfigPath_NotFound(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/nonexistent/path")
	t.Setenv("HOME", t.TempDir())
	t.Chdir(t.TempDir())

	if _, err := ResolveConfigPath(); err == nil {
		t.Error("expected error when no config file found")
	}
}

func TestDefaultDataDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")
	if got := DefaultDataDir(); got != "/custom/data/presenced" {
		t.Errorf("got %q", got)
	}

	home := t.TempDir()
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", home)
	if got, want := DefaultDataDir(), filepath.Join(home, ".local", "share", "presenced"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{"missing file", "/nonexistent/presenced.yaml"},
		{"invalid yaml", writeConfig(t, "not: valid: yaml: [")},
		{"no version", writeConfig(t, "modules:\n  keepalive: {}\n")},
		{"no keepalive", writeConfig(t, "version: \"1\"\nmodules:\n  location.static:\n    latitude: 1\n    longitude: 2\n")},
		{"bad module config", writeConfig(t, "version: \"1\"\nmodules:\n  keepalive:\n    interval: 10ms\n")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(RunParams{ConfigPath: tt.path, DataDir: t.TempDir()}); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRunOnce_Success(t *testing.T) {
	var (
		hits    atomic.Int32
		geohash atomic.Value
	)
	cascade := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		geohash.Store(r.URL.Query().Get("nearbyGeoHash"))
		w.WriteHeader(http.StatusOK)
	}))
	defer cascade.Close()

	path := writeConfig(t, `version: "1"
log:
  level: error
modules:
  location.static:
    latitude: 48.8566
    longitude: 2.3522
  cascade.http:
    base_url: `+cascade.URL+`
    token: test-token
  keepalive:
    interval: 5m
`)

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()

	s, err := RunOnce(ctx, RunParams{ConfigPath: path, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !s.LastRunSuccess || s.LastError != nil {
		t.Fatalf("status = %+v, want success", s)
	}
	if s.RunCount != 1 {
		t.Errorf("run count = %d, want 1", s.RunCount)
	}
	if hits.Load() != 1 {
		t.Errorf("cascade hits = %d, want 1", hits.Load())
	}
	if gh, _ := geohash.Load().(string); !strings.HasPrefix(gh, "u09tv") || len(gh) != 12 {
		t.Errorf("geohash = %q", gh)
	}
}

func TestRunOnce_MissingLocationIsRunFailure(t *testing.T) {
	path := writeConfig(t, `version: "1"
log:
  level: error
modules:
  keepalive: {}
`)

	s, err := RunOnce(t.Context(), RunParams{ConfigPath: path, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if s.LastRunSuccess || s.LastError == nil {
		t.Fatalf("status = %+v, want failure", s)
	}
	if !strings.Contains(*s.LastError, "Failed to get the location provider instance") {
		t.Errorf("last error = %q", *s.LastError)
	}
}

func TestLoad_TraceFileRegistersSink(t *testing.T) {
	traceFile := filepath.Join(t.TempDir(), "traces.jsonl")
	path := writeConfig(t, `version: "1"
log:
  level: error
  trace_file: `+traceFile+`
modules:
  keepalive: {}
`)

	inst, err := Load(RunParams{ConfigPath: path, DataDir: t.TempDir()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defer inst.Close()

	if _, ok := inst.Context.Service("trace.sink"); !ok {
		t.Error("trace sink not registered")
	}
	if _, err := os.Stat(traceFile); err != nil {
		t.Errorf("trace file not created: %v", err)
	}
	if _, err := inst.Keepalive(); err != nil {
		t.Errorf("Keepalive: %v", err)
	}
}

func TestRestart(t *testing.T) {
	path := writeConfig(t, `version: "1"
log:
  level: error
modules:
  keepalive: {}
`)
	params := RunParams{ConfigPath: path, DataDir: t.TempDir()}

	inst, err := Load(params)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := inst.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	if err := os.WriteFile(path, []byte("version: \"2\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	same, err := restart(inst, params)
	if err != nil || same != inst {
		t.Fatalf("restart with broken config = %p, %v; want current instance", same, err)
	}

	if err := os.WriteFile(path, []byte("version: \"1\"\nlog:\n  level: error\nmodules:\n  keepalive:\n    interval: 1m\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	next, err := restart(inst, params)
	if err != nil {
		t.Fatalf("restart: %v", err)
	}
	defer next.Stop()
	if next == inst {
		t.Fatal("expected a new instance")
	}
	if _, err := next.Keepalive(); err != nil {
		t.Errorf("Keepalive: %v", err)
	}
}
