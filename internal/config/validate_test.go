package config

import (
	"strings"
	"testing"

	"github.com/flemzord/presenced/internal/core"
	"gopkg.in/yaml.v3"
)

// stubModule is a bare module used to populate the core registry.
type stubModule struct {
	id string
}

func (m *stubModule) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  core.ModuleID(m.id),
		New: func() core.Module { return &stubModule{id: m.id} },
	}
}

func registerStub(t *testing.T, id string) {
	t.Helper()
	if _, ok := core.GetModule(id); ok {
		return
	}
	core.RegisterModule(&stubModule{id: id})
}

func init() {
	core.RegisterModule(&stubModule{id: KeepaliveModule})
}

func TestValidate_Valid(t *testing.T) {
	cfg := &Config{
		Version: "1",
		Modules: map[string]yaml.Node{KeepaliveModule: {}},
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	registerStub(t, "history.one")
	registerStub(t, "history.two")

	tests := []struct {
		name string
		cfg  Config
		want []string
	}{
		{
			name: "missing version",
			cfg:  Config{Modules: map[string]yaml.Node{KeepaliveModule: {}}},
			want: []string{"version field is required"},
		},
		{
			name: "unsupported version",
			cfg:  Config{Version: "99", Modules: map[string]yaml.Node{KeepaliveModule: {}}},
			want: []string{"unsupported version"},
		},
		{
			name: "no modules",
			cfg:  Config{Version: "1"},
			want: []string{"at least one module"},
		},
		{
			name: "unknown modules",
			cfg: Config{Version: "1", Modules: map[string]yaml.Node{
				KeepaliveModule: {}, "bad.one": {}, "bad.two": {},
			}},
			want: []string{`"bad.one"`, `"bad.two"`},
		},
		{
			name: "keepalive missing",
			cfg:  Config{Version: "1", Modules: map[string]yaml.Node{"history.one": {}}},
			want: []string{`module "keepalive" is required`},
		},
		{
			name: "two history backends",
			cfg: Config{Version: "1", Modules: map[string]yaml.Node{
				KeepaliveModule: {}, "history.one": {}, "history.two": {},
			}},
			want: []string{"at most one history backend"},
		},
		{
			name: "bad log level",
			cfg:  Config{Version: "1", Log: LogConfig{Level: "loud"}, Modules: map[string]yaml.Node{KeepaliveModule: {}}},
			want: []string{"log.level"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate(&tt.cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			for _, w := range tt.want {
				if !strings.Contains(err.Error(), w) {
					t.Errorf("error %q should contain %q", err, w)
				}
			}
		})
	}
}

func TestResolve_KeepaliveLast(t *testing.T) {
	t.Parallel()

	cfg := &Config{Modules: map[string]yaml.Node{
		KeepaliveModule:   {},
		"location.static": {},
		"cascade.http":    {},
		"history.sqlite":  {},
	}}

	got := Resolve(cfg)
	want := []string{"cascade.http", "history.sqlite", "location.static", KeepaliveModule}
	if len(got) != len(want) {
		t.Fatalf("Resolve = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Resolve[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
