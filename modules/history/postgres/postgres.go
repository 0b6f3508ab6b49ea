// Package postgres implements the history.postgres module: run history in
// a PostgreSQL table, accessed through a pgx connection pool.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/presenced/internal/core"
	"github.com/flemzord/presenced/internal/history"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Closer       = (*Module)(nil)
)

// Module registers a PostgreSQL-backed history.Store.
type Module struct {
	config Config
	pool   *pgxpool.Pool
	store  *Store
	logger *slog.Logger
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "history.postgres",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("postgres: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner. It connects, pings and creates
// the table, so a bad DSN fails at startup rather than on the first run.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger
	if err := m.config.validate(); err != nil {
		return err
	}

	cctx, cancel := context.WithTimeout(context.Background(), m.config.ConnectTimeout)
	defer cancel()

	pool, err := pgxpool.New(cctx, m.config.DSN)
	if err != nil {
		return fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(cctx); err != nil {
		pool.Close()
		return fmt.Errorf("postgres: ping: %w", err)
	}

	store := NewStore(pool, m.config.Table, m.config.Retention)
	if err := store.EnsureTable(cctx); err != nil {
		pool.Close()
		return err
	}

	m.pool = pool
	m.store = store
	ctx.RegisterService(history.ServiceName, store)

	m.logger.Info("postgres history provisioned", "table", m.config.Table, "retention", m.config.Retention)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Close implements core.Closer.
func (m *Module) Close(context.Context) error {
	if m.pool != nil {
		m.logger.Info("postgres history closing")
		m.pool.Close()
	}
	return nil
}
