// Package gateway serves the keep-alive status over HTTP: liveness,
// Prometheus metrics, the current RunStatus, run history, a manual
// trigger and a live WebSocket stream of status updates.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/presenced/internal/core"
	"github.com/flemzord/presenced/internal/history"
	"github.com/flemzord/presenced/internal/keepalive"
	"github.com/flemzord/presenced/internal/scheduler"
	"github.com/flemzord/presenced/internal/security"
	"github.com/flemzord/presenced/internal/status"
)

func init() {
	core.RegisterModule(&Gateway{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Gateway)(nil)
	_ core.Provisioner  = (*Gateway)(nil)
	_ core.Validator    = (*Gateway)(nil)
	_ core.Starter      = (*Gateway)(nil)
	_ core.Stopper      = (*Gateway)(nil)
)

// Runner triggers a run outside the schedule.
type Runner interface {
	RunNow(ctx context.Context) (status.RunStatus, error)
	Descriptor() scheduler.TaskDescriptor
}

// Gateway is the HTTP gateway module. Nothing depends on it.
type Gateway struct {
	config    Config
	appCtx    *core.AppContext
	logger    *slog.Logger
	server    *http.Server
	counters  *Metrics
	limiter   *security.RateLimiter
	audit     *security.AuditLogger
	startedAt time.Time
	now       func() time.Time

	// Parent of every request context; cancelled on Stop so status
	// streams end even though Shutdown does not wait for them.
	baseCtx    context.Context
	cancelBase context.CancelFunc

	// Resolved at Start from the service registry; any may be nil.
	tracker *status.Tracker
	runner  Runner
	history history.Store
	metrics http.Handler
}

// ModuleInfo implements core.Module.
func (g *Gateway) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "gateway.http",
		New: func() core.Module { return &Gateway{} },
	}
}

// Configure implements core.Configurable.
func (g *Gateway) Configure(node *yaml.Node) error {
	if err := node.Decode(&g.config); err != nil {
		return fmt.Errorf("gateway: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (g *Gateway) Provision(ctx *core.AppContext) error {
	g.config.defaults()
	g.appCtx = ctx
	g.logger = ctx.Logger
	g.now = time.Now
	g.counters = &Metrics{}
	g.limiter = security.NewRateLimiter(g.config.AuthFailuresPerMin, time.Minute)

	if svc, ok := ctx.Service(security.AuditService); ok {
		g.audit, _ = svc.(*security.AuditLogger)
	}
	if svc, ok := ctx.Service(security.RedactorService); ok {
		if r, ok := svc.(*security.Redactor); ok {
			r.AddLiteral(g.config.Auth.BearerToken)
			r.AddLiteral(g.config.Auth.BasicPass)
		}
	}
	return nil
}

// Validate implements core.Validator.
func (g *Gateway) Validate() error {
	return g.config.validate()
}

// Start implements core.Starter. Collaborators are resolved here rather
// than in Provision so module order in the config does not matter.
func (g *Gateway) Start() error {
	g.resolveServices()
	if !g.config.Auth.IsConfigured() {
		g.logger.Warn("gateway: no auth configured, status endpoints are open and POST /api/run is disabled")
	}

	ln, err := (&net.ListenConfig{}).Listen(context.Background(), "tcp", g.config.Bind)
	if err != nil {
		return fmt.Errorf("gateway: listen on %s: %w", g.config.Bind, err)
	}

	g.startedAt = g.now()
	g.baseCtx, g.cancelBase = context.WithCancel(context.Background())
	g.server = &http.Server{
		Handler:      g.buildRouter(),
		BaseContext:  func(net.Listener) context.Context { return g.baseCtx },
		ReadTimeout:  g.config.ReadTimeout,
		WriteTimeout: g.config.WriteTimeout,
		ErrorLog:     slog.NewLogLogger(g.logger.Handler(), slog.LevelWarn),
	}

	go func() {
		g.logger.Info("gateway: listening", "addr", ln.Addr().String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway: serve failed", "error", err)
		}
	}()
	return nil
}

func (g *Gateway) resolveServices() {
	if svc, ok := g.appCtx.Service(keepalive.StatusService); ok {
		g.tracker, _ = svc.(*status.Tracker)
	}
	if svc, ok := g.appCtx.Service(keepalive.SchedulerService); ok {
		g.runner, _ = svc.(Runner)
	}
	if svc, ok := g.appCtx.Service(history.ServiceName); ok {
		g.history, _ = svc.(history.Store)
	}
	if svc, ok := g.appCtx.Service(keepalive.MetricsService); ok {
		if h, ok := svc.(interface{ Handler() http.Handler }); ok {
			g.metrics = h.Handler()
		}
	}
}

// Stop implements core.Stopper.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}
	g.cancelBase()

	shutdownCtx, cancel := context.WithTimeout(ctx, g.config.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway: shutting down")
	if err := g.server.Shutdown(shutdownCtx); err != nil {
		_ = g.server.Close()
		return fmt.Errorf("gateway: shutdown: %w", err)
	}
	return nil
}
