package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/flemzord/presenced/internal/config"
	"github.com/flemzord/presenced/internal/core"
	"github.com/flemzord/presenced/internal/security"
	"github.com/flemzord/presenced/internal/status"
)

// wire builds the root logger and registers the process-wide security
// services every module may look up during Provision.
func (i *Instance) wire(cfg *config.Config, dataDir string, level slog.Level) (*core.AppContext, error) {
	redactor := security.NewRedactor()
	inner := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	logger := slog.New(security.NewRedactingHandler(inner, redactor))
	i.Logger = logger

	auditCfg := security.AuditLoggerConfig{
		Redactor: redactor,
		OnEvent: func(e security.AuditEvent) {
			logger.Debug("audit: event", "type", e.Type, "remote", e.Remote, "path", e.Path, "detail", e.Detail)
		},
	}
	if cfg.Log.TraceFile != "" {
		f, err := os.OpenFile(cfg.Log.TraceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return nil, fmt.Errorf("opening trace file: %w", err)
		}
		i.closers = append(i.closers, f.Close)
		auditCfg.Writer = f
	}
	audit := security.NewAuditLogger(auditCfg)

	appCtx := core.NewAppContext(logger, dataDir).WithModuleConfigs(cfg.Modules)
	appCtx.RegisterService(security.RedactorService, redactor)
	appCtx.RegisterService(security.AuditService, audit)
	if cfg.Log.TraceFile != "" {
		appCtx.RegisterService(status.TraceSinkService, audit)
	}
	appCtx.RegisterService("config.path", i.ConfigPath)
	return appCtx, nil
}
