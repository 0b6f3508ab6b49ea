package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/presenced/internal/core"
)

// KeepaliveModule is the ID of the module that owns the periodic task.
const KeepaliveModule = "keepalive"

// Validate checks the structure of cfg against the compiled-in modules.
// All problems are reported together.
func Validate(cfg *Config) error {
	var errs []error

	switch cfg.Version {
	case "":
		errs = append(errs, errors.New("config: version field is required"))
	case "1":
	default:
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	var historyBackends []string
	for id := range cfg.Modules {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
		if strings.HasPrefix(id, "history.") {
			historyBackends = append(historyBackends, id)
		}
	}

	if len(cfg.Modules) > 0 {
		if _, ok := cfg.Modules[KeepaliveModule]; !ok {
			errs = append(errs, fmt.Errorf("config: module %q is required", KeepaliveModule))
		}
	}

	if len(historyBackends) > 1 {
		errs = append(errs, fmt.Errorf("config: at most one history backend may be configured, got %d", len(historyBackends)))
	}

	switch strings.ToLower(cfg.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("config: log.level %q is not one of debug, info, warn, error", cfg.Log.Level))
	}

	return errors.Join(errs...)
}
