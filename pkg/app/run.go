// Package app is the shared entry point of the presenced binary: it turns
// a configuration file into a running set of modules.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/flemzord/presenced/internal/config"
	"github.com/flemzord/presenced/internal/core"
	"github.com/flemzord/presenced/internal/keepalive"
	"github.com/flemzord/presenced/internal/reload"
	"github.com/flemzord/presenced/internal/status"
)

// RunParams configures an Instance.
type RunParams struct {
	// ConfigPath is the YAML configuration file. Empty means
	// ResolveConfigPath.
	ConfigPath string

	// DataDir overrides DefaultDataDir.
	DataDir string

	// LogLevel overrides the config's log.level when non-nil.
	LogLevel *slog.Level
}

// Instance is a provisioned application.
type Instance struct {
	App        *core.App
	Context    *core.AppContext
	Logger     *slog.Logger
	ConfigPath string

	closers []func() error
}

// Load resolves and validates the configuration, then loads every
// configured module. Nothing is started.
func Load(params RunParams) (*Instance, error) {
	cfgPath := params.ConfigPath
	if cfgPath == "" {
		resolved, err := ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		cfgPath = resolved
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	dataDir := params.DataDir
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	level := cfg.Log.SlogLevel()
	if params.LogLevel != nil {
		level = *params.LogLevel
	}

	inst := &Instance{ConfigPath: cfgPath}
	appCtx, err := inst.wire(cfg, dataDir, level)
	if err != nil {
		inst.release()
		return nil, err
	}
	inst.Context = appCtx

	inst.App = core.NewApp(appCtx)
	if err := inst.App.LoadModules(config.Resolve(cfg)); err != nil {
		inst.release()
		return nil, err
	}
	return inst, nil
}

// Start starts every module.
func (i *Instance) Start() error {
	if err := i.App.Start(); err != nil {
		i.Close()
		return err
	}
	return nil
}

// Stop stops every module and releases the instance's resources.
func (i *Instance) Stop() {
	i.App.Stop()
	i.release()
}

// Close releases resources of an instance that was never started.
func (i *Instance) Close() {
	i.App.Close()
	i.release()
}

func (i *Instance) release() {
	for _, c := range i.closers {
		_ = c()
	}
	i.closers = nil
}

// Keepalive returns the loaded keep-alive module.
func (i *Instance) Keepalive() (*keepalive.Module, error) {
	mod, ok := i.App.Module("keepalive")
	if !ok {
		return nil, errors.New("keepalive module not loaded")
	}
	ka, ok := mod.(*keepalive.Module)
	if !ok {
		return nil, fmt.Errorf("keepalive module has unexpected type %T", mod)
	}
	return ka, nil
}

// Run starts the application and blocks until SIGINT or SIGTERM. SIGHUP
// or a change to the configuration file restarts every module with the
// new configuration; a configuration that fails to load leaves the
// running instance untouched.
func Run(params RunParams) error {
	inst, err := Load(params)
	if err != nil {
		return err
	}
	if err := inst.Start(); err != nil {
		return err
	}
	params.ConfigPath = inst.ConfigPath

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	watchCtx, cancelWatch := context.WithCancel(context.Background())
	defer cancelWatch()
	watcher := reload.NewWatcher(inst.ConfigPath, 0)
	go watcher.Run(watchCtx)

	for {
		select {
		case sig := <-sigCh:
			if sig == syscall.SIGHUP {
				inst.Logger.Info("SIGHUP received, reloading configuration")
				if inst, err = restart(inst, params); err != nil {
					return err
				}
				continue
			}
			inst.Logger.Info("shutdown signal received", "signal", sig.String())
			inst.Stop()
			inst.Logger.Info("shutdown complete")
			return nil
		case path := <-watcher.Changes():
			inst.Logger.Info("config file changed, reloading", "path", path)
			if inst, err = restart(inst, params); err != nil {
				return err
			}
		}
	}
}

// restart provisions a new instance before stopping the current one. It
// returns the instance that is running afterwards, and an error only when
// the new instance loaded but could not start.
func restart(current *Instance, params RunParams) (*Instance, error) {
	next, err := Load(params)
	if err != nil {
		current.Logger.Error("reload failed, keeping current configuration", "error", err)
		return current, nil
	}
	current.Stop()
	if err := next.Start(); err != nil {
		return nil, fmt.Errorf("starting reloaded configuration: %w", err)
	}
	next.Logger.Info("configuration reloaded")
	return next, nil
}

// RunOnce loads the application, executes a single keep-alive run
// without starting the schedule and returns the resulting status. The
// run's own failure is reported in the status, not as an error.
func RunOnce(ctx context.Context, params RunParams) (status.RunStatus, error) {
	inst, err := Load(params)
	if err != nil {
		return status.RunStatus{}, err
	}
	defer inst.Close()

	ka, err := inst.Keepalive()
	if err != nil {
		return status.RunStatus{}, err
	}
	return ka.RunNow(ctx)
}

// ResolveConfigPath searches the standard locations:
// $XDG_CONFIG_HOME/presenced/presenced.yaml (or ~/.config/presenced/presenced.yaml),
// then ./presenced.yaml.
func ResolveConfigPath() (string, error) {
	var candidates []string

	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		candidates = append(candidates, filepath.Join(xdg, "presenced", "presenced.yaml"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "presenced", "presenced.yaml"))
	}
	candidates = append(candidates, "presenced.yaml")

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no configuration file found (searched: %v)", candidates)
}

// DefaultDataDir is $XDG_DATA_HOME/presenced, or ~/.local/share/presenced.
func DefaultDataDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok && dir != "" {
		return filepath.Join(dir, "presenced")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "presenced")
}
