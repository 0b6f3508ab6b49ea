package keepalive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/presenced/internal/core"
	"github.com/flemzord/presenced/internal/history"
	"github.com/flemzord/presenced/internal/scheduler"
	"github.com/flemzord/presenced/internal/status"
	"github.com/flemzord/presenced/internal/telemetry"
)

// Services registered by the module.
const (
	StatusService    = "keepalive.status"
	SchedulerService = "keepalive.scheduler"
	MetricsService   = "telemetry.metrics"
)

const historyWriteTimeout = 5 * time.Second

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable = (*Module)(nil)
	_ core.Provisioner  = (*Module)(nil)
	_ core.Validator    = (*Module)(nil)
	_ core.Starter      = (*Module)(nil)
	_ core.Stopper      = (*Module)(nil)
	_ core.Closer       = (*Module)(nil)
)

// Module wires the keep-alive task to its scheduler, status tracker,
// history store, metrics and tracing.
type Module struct {
	config Config
	logger *slog.Logger

	tracker   *status.Tracker
	scheduler *scheduler.Scheduler
	metrics   *telemetry.Metrics
	history   history.Store
	tracer    *sdktrace.TracerProvider
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "keepalive",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("keepalive: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner. Instances named LocationProvider
// and CascadeRepository are looked up on every run rather than here, so
// they may come and go while the daemon runs.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.config.defaults()
	m.logger = ctx.Logger
	if err := m.config.validate(); err != nil {
		return err
	}

	var cfg scheduler.Config
	cfg.Logger = m.logger
	if m.config.QuietHours != "" {
		qh, _ := scheduler.ParseQuietHours(m.config.QuietHours)
		cfg.QuietHours = &qh
	}
	if m.config.Timezone != "" {
		cfg.Timezone, _ = time.LoadLocation(m.config.Timezone)
	}

	traces := status.MultiSink{status.LogSink{Logger: m.logger}}
	if svc, ok := ctx.Service(status.TraceSinkService); ok {
		if sink, ok := svc.(status.TraceSink); ok {
			traces = append(traces, sink)
		}
	}
	cfg.Traces = traces

	m.history = history.NewMemory(history.DefaultRetention)
	if svc, ok := ctx.Service(history.ServiceName); ok {
		if store, ok := svc.(history.Store); ok {
			m.history = store
		}
	} else {
		ctx.RegisterService(history.ServiceName, m.history)
	}

	tp, err := telemetry.NewTracerProvider(context.Background(), m.config.Tracing)
	if err != nil {
		return err
	}
	m.tracer = tp
	m.metrics = telemetry.NewMetrics()
	m.tracker = status.NewTracker(nil)

	task, err := NewTask(ctx, TaskConfig{
		Interval:  m.config.Interval,
		Precision: m.config.GeohashPrecision,
		Logger:    m.logger,
		Traces:    traces,
	})
	if err != nil {
		return err
	}

	cfg.Observers = []scheduler.Observer{scheduler.ObserverFunc(m.observe)}
	desc := m.config.descriptor()
	m.scheduler, err = scheduler.New(desc, telemetry.Traced(tp, desc.ID, task.Run), m.tracker, cfg)
	if err != nil {
		return err
	}

	ctx.RegisterService(StatusService, m.tracker)
	ctx.RegisterService(SchedulerService, m.scheduler)
	ctx.RegisterService(MetricsService, m.metrics)

	m.logger.Info("keepalive task provisioned",
		"task", desc.ID,
		"initial_delay", desc.InitialDelay,
		"interval", desc.Interval,
		"enabled", m.config.enabled(),
		"tracing", m.config.Tracing.Endpoint != "",
	)
	return nil
}

// observe feeds every finished run to metrics and history.
func (m *Module) observe(ctx context.Context, o status.Outcome, s status.RunStatus) {
	outcome := Classify(o.Err)
	m.metrics.Observe(outcome, s)

	hctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), historyWriteTimeout)
	defer cancel()
	if err := m.history.Append(hctx, history.NewRecord(o, s, outcome)); err != nil {
		m.logger.Warn("keepalive: recording run history failed", "run", o.Run.Number, "error", err)
	}
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}

// Start implements core.Starter.
func (m *Module) Start() error {
	if !m.config.enabled() {
		m.logger.Warn("keepalive: task disabled, not scheduling", "task", m.config.ID)
		return nil
	}
	return m.scheduler.Start()
}

// Stop implements core.Stopper.
func (m *Module) Stop(ctx context.Context) error {
	if err := m.scheduler.Stop(ctx); err != nil && !errors.Is(err, scheduler.ErrNotStarted) {
		return err
	}
	return nil
}

// Close implements core.Closer. It flushes pending spans.
func (m *Module) Close(ctx context.Context) error {
	if m.tracer == nil {
		return nil
	}
	return m.tracer.Shutdown(ctx)
}

// RunNow executes one run immediately. See scheduler.Scheduler.RunNow.
func (m *Module) RunNow(ctx context.Context) (status.RunStatus, error) {
	return m.scheduler.RunNow(ctx)
}

// Tracker returns the status tracker.
func (m *Module) Tracker() *status.Tracker { return m.tracker }
