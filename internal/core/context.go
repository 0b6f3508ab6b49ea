package core

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"gopkg.in/yaml.v3"
)

// AppContext carries the resources shared by modules: a scoped logger,
// the data directory, per-module YAML and the named service registry.
type AppContext struct {
	// Logger for the current module scope.
	Logger *slog.Logger

	// DataDir is the root directory for persistent module data.
	DataDir string

	parentLogger  *slog.Logger
	moduleConfigs map[string]yaml.Node
	services      *services
}

type services struct {
	mu    sync.RWMutex
	byKey map[string]any
}

// NewAppContext creates an AppContext. A nil logger falls back to slog.Default.
func NewAppContext(logger *slog.Logger, dataDir string) *AppContext {
	if logger == nil {
		logger = slog.Default()
	}
	return &AppContext{
		Logger:       logger,
		DataDir:      dataDir,
		parentLogger: logger,
		services:     &services{byKey: make(map[string]any)},
	}
}

// WithModuleConfigs returns a copy of ctx carrying the given per-module YAML.
func (ctx *AppContext) WithModuleConfigs(configs map[string]yaml.Node) *AppContext {
	cp := *ctx
	cp.moduleConfigs = configs
	return &cp
}

// ForModule returns a copy of ctx whose logger is tagged with the module ID.
// The service registry is shared with the parent.
func (ctx *AppContext) ForModule(id ModuleID) *AppContext {
	return &AppContext{
		Logger:        ctx.parentLogger.With("module", string(id)),
		DataDir:       ctx.DataDir,
		parentLogger:  ctx.parentLogger,
		moduleConfigs: ctx.moduleConfigs,
		services:      ctx.services,
	}
}

// RegisterService publishes svc under name, replacing any previous value.
// A nil svc removes the entry, which is how a module signals that the
// instance it exposed has been torn down.
func (ctx *AppContext) RegisterService(name string, svc any) {
	ctx.services.mu.Lock()
	defer ctx.services.mu.Unlock()
	if svc == nil {
		delete(ctx.services.byKey, name)
		return
	}
	ctx.services.byKey[name] = svc
}

// Service returns the instance registered under name. It reports false
// rather than failing when nothing is registered.
func (ctx *AppContext) Service(name string) (any, bool) {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	svc, ok := ctx.services.byKey[name]
	return svc, ok
}

// ServiceNames returns the names of every registered service, sorted.
func (ctx *AppContext) ServiceNames() []string {
	ctx.services.mu.RLock()
	defer ctx.services.mu.RUnlock()
	return slices.Sorted(maps.Keys(ctx.services.byKey))
}

// LoadModule instantiates a registered module and runs
// Configure → Provision → Validate on it, skipping steps the module
// does not implement.
func (ctx *AppContext) LoadModule(id string) (Module, error) {
	info, ok := GetModule(id)
	if !ok {
		return nil, fmt.Errorf("unknown module: %s", id)
	}

	mod := info.New()

	if c, ok := mod.(Configurable); ok {
		if node, exists := ctx.moduleConfigs[id]; exists {
			if err := c.Configure(&node); err != nil {
				return nil, fmt.Errorf("configuring module %s: %w", id, err)
			}
		}
	}

	if p, ok := mod.(Provisioner); ok {
		if err := p.Provision(ctx.ForModule(info.ID)); err != nil {
			return nil, fmt.Errorf("provisioning module %s: %w", id, err)
		}
	}

	if v, ok := mod.(Validator); ok {
		if err := v.Validate(); err != nil {
			// Provision may have opened resources; the caller never sees mod.
			if c, ok := mod.(Closer); ok {
				closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				_ = c.Close(closeCtx)
				cancel()
			}
			return nil, fmt.Errorf("validating module %s: %w", id, err)
		}
	}

	return mod, nil
}
