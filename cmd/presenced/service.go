package main

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/flemzord/presenced/pkg/app"
)

// program adapts an app.Instance to the service manager's Start/Stop.
type program struct {
	params app.RunParams

	mu   sync.Mutex
	inst *app.Instance
}

// Start must not block.
func (p *program) Start(service.Service) error {
	inst, err := app.Load(p.params)
	if err != nil {
		return err
	}
	if err := inst.Start(); err != nil {
		return err
	}
	p.mu.Lock()
	p.inst = inst
	p.mu.Unlock()
	return nil
}

func (p *program) Stop(service.Service) error {
	p.mu.Lock()
	inst := p.inst
	p.inst = nil
	p.mu.Unlock()
	if inst != nil {
		inst.Stop()
	}
	return nil
}

// newService builds the service definition. The config path is made
// absolute because service managers do not run in the caller's directory.
func newService(params app.RunParams) (service.Service, error) {
	if params.ConfigPath == "" {
		resolved, err := app.ResolveConfigPath()
		if err != nil {
			return nil, err
		}
		params.ConfigPath = resolved
	}
	abs, err := filepath.Abs(params.ConfigPath)
	if err != nil {
		return nil, err
	}
	params.ConfigPath = abs

	args := []string{"service", "run", "--config", abs}
	if params.DataDir != "" {
		args = append(args, "--data-dir", params.DataDir)
	}
	cfg := &service.Config{
		Name:        "presenced",
		DisplayName: "presenced keep-alive daemon",
		Description: "Keeps the device's nearby presence fresh.",
		Arguments:   args,
	}
	return service.New(&program{params: params}, cfg)
}

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Manage presenced as an OS service",
	}

	for _, action := range []string{"install", "uninstall", "start", "stop", "restart"} {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the presenced service", action),
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := newService(runParams(cmd))
				if err != nil {
					return err
				}
				if err := service.Control(s, action); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: ok\n", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show whether the service is running",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newService(runParams(cmd))
			if err != nil {
				return err
			}
			st, err := s.Status()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), serviceStatusText(st))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:    "run",
		Short:  "Run under the service manager",
		Hidden: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := newService(runParams(cmd))
			if err != nil {
				return err
			}
			return s.Run()
		},
	})
	return cmd
}

func serviceStatusText(st service.Status) string {
	switch st {
	case service.StatusRunning:
		return "running"
	case service.StatusStopped:
		return "stopped"
	default:
		return "unknown"
	}
}
