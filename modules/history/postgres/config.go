package postgres

import (
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/flemzord/presenced/internal/history"
)

const (
	defaultTable          = "presenced_runs"
	defaultConnectTimeout = 10 * time.Second
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Config holds the PostgreSQL history module configuration.
type Config struct {
	// DSN is a libpq connection string or URL. Usually "${DATABASE_URL}".
	DSN string `yaml:"dsn"`

	// Table is the table runs are written to. Defaults to presenced_runs.
	Table string `yaml:"table"`

	// Retention is the number of runs kept. Defaults to 100.
	Retention int `yaml:"retention"`

	// ConnectTimeout bounds pool creation and the initial ping.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

func (c *Config) defaults() {
	if c.Table == "" {
		c.Table = defaultTable
	}
	if c.Retention == 0 {
		c.Retention = history.DefaultRetention
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.DSN == "" {
		errs = append(errs, errors.New("postgres: dsn is required"))
	}
	if !tableName.MatchString(c.Table) {
		errs = append(errs, fmt.Errorf("postgres: invalid table name %q", c.Table))
	}
	if c.Retention < 1 {
		errs = append(errs, fmt.Errorf("postgres: retention must be at least 1, got %d", c.Retention))
	}
	return errors.Join(errs...)
}
