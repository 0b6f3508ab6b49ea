package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/presenced/internal/config"
	"github.com/flemzord/presenced/internal/geo"
)

// wizardAnswers holds what the init wizard collects.
type wizardAnswers struct {
	Latitude    string
	Longitude   string
	CascadeURL  string
	TokenEnv    string
	Interval    string
	History     string // memory, sqlite or postgres
	PostgresEnv string
	Gateway     bool
	Bind        string
}

func defaultAnswers() wizardAnswers {
	return wizardAnswers{
		TokenEnv:    "PRESENCED_CASCADE_TOKEN",
		Interval:    "5m",
		History:     "sqlite",
		PostgresEnv: "PRESENCED_POSTGRES_DSN",
		Gateway:     true,
		Bind:        "127.0.0.1:8470",
	}
}

func initCmd() *cobra.Command {
	var (
		output string
		force  bool
	)
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" {
				output = defaultConfigPath()
			}
			if _, err := os.Stat(output); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", output)
			}

			answers := defaultAnswers()
			if err := wizardForm(&answers).Run(); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					return nil
				}
				return err
			}

			data, err := renderConfig(answers)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(output), 0o700); err != nil {
				return err
			}
			if err := os.WriteFile(output, data, 0o600); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Where to write the configuration")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func wizardForm(a *wizardAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().Title("Latitude").Value(&a.Latitude).Validate(validateCoord(-90, 90)),
			huh.NewInput().Title("Longitude").Value(&a.Longitude).Validate(validateCoord(-180, 180)),
		).Title("Device location"),
		huh.NewGroup(
			huh.NewInput().Title("Cascade base URL").Value(&a.CascadeURL).Validate(requireValue),
			huh.NewInput().Title("Environment variable holding the API token").Value(&a.TokenEnv),
			huh.NewInput().Title("Run interval").Value(&a.Interval).Validate(validateInterval),
		).Title("Cascade service"),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Run history").
				Options(
					huh.NewOption("In memory", "memory"),
					huh.NewOption("SQLite file", "sqlite"),
					huh.NewOption("PostgreSQL", "postgres"),
				).
				Value(&a.History),
			huh.NewConfirm().Title("Serve status over HTTP?").Value(&a.Gateway),
		).Title("Observability"),
		huh.NewGroup(
			huh.NewInput().Title("Environment variable holding the PostgreSQL DSN").Value(&a.PostgresEnv).Validate(requireValue),
		).WithHideFunc(func() bool { return a.History != "postgres" }),
		huh.NewGroup(
			huh.NewInput().Title("Gateway listen address").Value(&a.Bind).Validate(requireValue),
		).WithHideFunc(func() bool { return !a.Gateway }),
	)
}

func requireValue(s string) error {
	if s == "" {
		return errors.New("required")
	}
	return nil
}

func validateCoord(lo, hi float64) func(string) error {
	return func(s string) error {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return errors.New("must be a number")
		}
		if v < lo || v > hi {
			return fmt.Errorf("must be between %g and %g", lo, hi)
		}
		return nil
	}
}

func validateInterval(s string) error {
	d, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	if d < time.Second {
		return errors.New("must be at least 1s")
	}
	return nil
}

// renderConfig turns wizard answers into a YAML document and checks it
// the same way `config check` would before anything is written.
func renderConfig(a wizardAnswers) ([]byte, error) {
	lat, err := strconv.ParseFloat(a.Latitude, 64)
	if err != nil {
		return nil, fmt.Errorf("latitude: %w", err)
	}
	lng, err := strconv.ParseFloat(a.Longitude, 64)
	if err != nil {
		return nil, fmt.Errorf("longitude: %w", err)
	}
	if err := geo.Validate(lat, lng); err != nil {
		return nil, err
	}
	if err := validateInterval(a.Interval); err != nil {
		return nil, fmt.Errorf("interval: %w", err)
	}

	cascade := map[string]any{"base_url": a.CascadeURL}
	if a.TokenEnv != "" {
		cascade["token"] = "${" + a.TokenEnv + ":-}"
	}

	modules := map[string]any{
		"location.static": map[string]any{"latitude": lat, "longitude": lng},
		"cascade.http":    cascade,
		"keepalive":       map[string]any{"interval": a.Interval},
	}
	switch a.History {
	case "sqlite":
		modules["history.sqlite"] = map[string]any{}
	case "postgres":
		modules["history.postgres"] = map[string]any{"dsn": "${" + a.PostgresEnv + "}"}
	}
	if a.Gateway {
		modules["gateway.http"] = map[string]any{"bind": a.Bind}
	}

	doc := map[string]any{
		"version": "1",
		"log":     map[string]any{"level": "info"},
		"modules": modules,
	}
	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, err
	}

	// The postgres DSN variable may legitimately be unset while writing.
	if a.History != "postgres" {
		cfg, err := config.Parse(data)
		if err != nil {
			return nil, err
		}
		if err := config.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return data, nil
}

// defaultConfigPath is the first location ResolveConfigPath searches.
func defaultConfigPath() string {
	if xdg, ok := os.LookupEnv("XDG_CONFIG_HOME"); ok && xdg != "" {
		return filepath.Join(xdg, "presenced", "presenced.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "presenced.yaml"
	}
	return filepath.Join(home, ".config", "presenced", "presenced.yaml")
}
