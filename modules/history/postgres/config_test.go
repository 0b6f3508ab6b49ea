package postgres

import (
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestConfig_DefaultsAndValidate(t *testing.T) {
	t.Parallel()

	c := Config{DSN: "postgres://localhost/presenced"}
	c.defaults()
	if c.Table != defaultTable || c.Retention != 100 || c.ConnectTimeout != defaultConnectTimeout {
		t.Errorf("defaults = %+v", c)
	}
	if err := c.validate(); err != nil {
		t.Errorf("validate: %v", err)
	}
}

func TestConfig_ValidateErrors(t *testing.T) {
	t.Parallel()

	c := Config{Table: "runs; DROP TABLE x", Retention: -1}
	err := c.validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"dsn is required", "invalid table name", "retention"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestModule_Configure(t *testing.T) {
	t.Parallel()

	var doc yaml.Node
	if err := yaml.Unmarshal([]byte("dsn: postgres://u@h/db\ntable: runs\nretention: 20\n"), &doc); err != nil {
		t.Fatal(err)
	}

	m := &Module{}
	if err := m.Configure(doc.Content[0]); err != nil {
		t.Fatalf("Configure: %v", err)
	}
	if m.config.DSN != "postgres://u@h/db" || m.config.Table != "runs" || m.config.Retention != 20 {
		t.Errorf("config = %+v", m.config)
	}
}
