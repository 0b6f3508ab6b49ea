// Package static implements the location.static module: a location source
// backed by fixed coordinates or by a small JSON file that another process
// keeps up to date.
package static

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/flemzord/presenced/internal/core"
	"github.com/flemzord/presenced/internal/geo"
	"github.com/flemzord/presenced/internal/keepalive"
)

func init() {
	core.RegisterModule(&Module{})
}

// Compile-time interface guards.
var (
	_ core.Configurable        = (*Module)(nil)
	_ core.Provisioner         = (*Module)(nil)
	_ core.Validator           = (*Module)(nil)
	_ keepalive.LocationSource = (*Source)(nil)
)

// Config holds the location source configuration. Exactly one of the
// coordinate pair and File must be set.
type Config struct {
	Latitude  *float64 `yaml:"latitude"`
	Longitude *float64 `yaml:"longitude"`

	// File is a JSON document {"latitude": .., "longitude": ..} read on
	// every run. A missing or unreadable file means no location.
	File string `yaml:"file"`
}

func (c *Config) validate() error {
	hasCoords := c.Latitude != nil || c.Longitude != nil
	switch {
	case hasCoords && c.File != "":
		return errors.New("location.static: set either latitude/longitude or file, not both")
	case !hasCoords && c.File == "":
		return errors.New("location.static: latitude/longitude or file is required")
	case hasCoords && (c.Latitude == nil || c.Longitude == nil):
		return errors.New("location.static: latitude and longitude must both be set")
	case hasCoords:
		return geo.Validate(*c.Latitude, *c.Longitude)
	}
	return nil
}

// Source implements keepalive.LocationSource.
type Source struct {
	fixed  geo.Location
	file   string
	logger *slog.Logger
}

type fileLocation struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

// CurrentLocation returns the configured point, or the one in the file.
// It returns nil when the file is missing or does not hold both fields.
func (s *Source) CurrentLocation() geo.Location {
	if s.fixed != nil {
		return s.fixed
	}

	raw, err := os.ReadFile(s.file)
	if err != nil {
		s.logger.Debug("location.static: reading location file", "path", s.file, "error", err)
		return nil
	}
	var fl fileLocation
	if err := json.Unmarshal(raw, &fl); err != nil || fl.Latitude == nil || fl.Longitude == nil {
		s.logger.Debug("location.static: location file has no usable point", "path", s.file)
		return nil
	}
	return geo.Point{Lat: *fl.Latitude, Lng: *fl.Longitude}
}

// Module registers a Source as keepalive.LocationProvider.
type Module struct {
	config Config
	source *Source
}

// ModuleInfo implements core.Module.
func (m *Module) ModuleInfo() core.ModuleInfo {
	return core.ModuleInfo{
		ID:  "location.static",
		New: func() core.Module { return &Module{} },
	}
}

// Configure implements core.Configurable.
func (m *Module) Configure(node *yaml.Node) error {
	if err := node.Decode(&m.config); err != nil {
		return fmt.Errorf("location.static: decode config: %w", err)
	}
	return nil
}

// Provision implements core.Provisioner.
func (m *Module) Provision(ctx *core.AppContext) error {
	m.source = &Source{file: m.config.File, logger: ctx.Logger}
	if m.config.Latitude != nil && m.config.Longitude != nil {
		m.source.fixed = geo.Point{Lat: *m.config.Latitude, Lng: *m.config.Longitude}
	}
	ctx.RegisterService(keepalive.LocationProvider, m.source)
	return nil
}

// Validate implements core.Validator.
func (m *Module) Validate() error {
	return m.config.validate()
}
