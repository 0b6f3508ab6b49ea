// Package httpapi implements the cascade.http module: a cascade repository
// whose fetchCascadePage capability calls a remote HTTP endpoint and
// completes asynchronously.
package httpapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/presenced/internal/capability"
	"github.com/flemzord/presenced/internal/core"
	"github.com/flemzord/presenced/internal/keepalive"
	"github.com/flemzord/presenced/internal/security"
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

// Module exposes the remote cascade endpoint as keepalive.CascadeRepository.
type Module struct {
	config   Config
	client   *Client
	registry *capability.Registry
	cancel   context.CancelFunc
	logger   *slog.Logger

	// httpClient overrides the transport in tests.
	httpClient *http.Client
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "cascade.http",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("cascade.http: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger

	if svc, ok := ctx.Service(security.RedactorService); ok {
		if r, ok := svc.(*security.Redactor); ok {
			r.AddLiteral(m.config.Token)
		}
	}

	base, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.client = newClient(base, m.config, m.httpClient)

	m.registry = capability.NewRegistry()
	if err := m.registry.Register(capability.Handle{
		Name:  keepalive.CascadeOperation,
		Arity: m.config.Arity,
		Fn:    m.client.fetchCascadePage,
	}); err != nil {
		cancel()
		return err
	}
	ctx.RegisterService(keepalive.CascadeRepository, m.registry)

	m.logger.Info("cascade endpoint provisioned",
		"url", m.config.BaseURL+m.config.Path,
		"arity", m.config.Arity,
		"auth", m.config.Token != "",
	)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Close implements core.Closer. In-flight requests are aborted and their
// completions rejected.
func (m *Module) Close(context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}
	return nil
}

// Registry returns the capability registry exposed as the cascade
// repository.
func (m *Module) Registry() *capability.Registry { return m.registry }
