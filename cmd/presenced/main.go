// Package main is the entry point for the presenced CLI.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/flemzord/presenced/internal/core"
	"github.com/flemzord/presenced/pkg/app"

	// Compiled-in modules.
	_ "github.com/flemzord/presenced/internal/gateway"
	_ "github.com/flemzord/presenced/internal/keepalive"
	_ "github.com/flemzord/presenced/modules/cascade/httpapi"
	_ "github.com/flemzord/presenced/modules/history/postgres"
	_ "github.com/flemzord/presenced/modules/history/sqlite"
	_ "github.com/flemzord/presenced/modules/location/static"
)

// Set by goreleaser ldflags.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "presenced",
		Short:         "Keeps a device's nearby presence fresh by calling the cascade service on a schedule",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "Path to configuration file")
	root.PersistentFlags().String("data-dir", "", "Directory for persistent data")
	root.AddCommand(versionCmd(), startCmd(), runOnceCmd(), configCmd(), initCmd(), serviceCmd(), mcpCmd())
	return root
}

// runParams reads the persistent flags.
func runParams(cmd *cobra.Command) app.RunParams {
	cfgPath, _ := cmd.Flags().GetString("config")
	dataDir, _ := cmd.Flags().GetString("data-dir")
	return app.RunParams{ConfigPath: cfgPath, DataDir: dataDir}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and compiled modules",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "presenced %s (commit: %s, built: %s)\n", version, commit, date)
			fmt.Fprintln(out, "\nCompiled modules:")
			for _, mod := range core.GetModules() {
				fmt.Fprintf(out, "  %s\n", mod.ID)
			}
		},
	}
}

func startCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Run the keep-alive daemon in the foreground",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(runParams(cmd))
		},
	}
}

func runOnceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run-once",
		Short: "Execute a single keep-alive run and print its status as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := app.RunOnce(cmd.Context(), runParams(cmd))
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(s); err != nil {
				return err
			}
			if !s.LastRunSuccess {
				return fmt.Errorf("run #%d failed", s.RunCount)
			}
			return nil
		},
	}
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate a configuration file and provision its modules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			params := runParams(cmd)
			params.ConfigPath = args[0]
			quiet := slog.LevelWarn
			params.LogLevel = &quiet

			inst, err := app.Load(params)
			if err != nil {
				return err
			}
			defer inst.Close()

			out := cmd.OutOrStdout()
			services := inst.Context.ServiceNames()
			fmt.Fprintf(out, "Configuration OK: %s\n", inst.ConfigPath)
			fmt.Fprintf(out, "Services (%d):\n", len(services))
			for _, name := range services {
				fmt.Fprintf(out, "  %s\n", name)
			}
			return nil
		},
	})
	return cmd
}
