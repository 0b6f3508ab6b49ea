package keepalive

import (
	"errors"
	"fmt"
	"time"

	"github.com/flemzord/presenced/internal/geo"
	"github.com/flemzord/presenced/internal/scheduler"
	"github.com/flemzord/presenced/internal/telemetry"
)

const (
	defaultID           = "always_online"
	defaultName         = "Always Online"
	defaultDescription  = "Keeps you online by periodically fetching cascade"
	defaultInitialDelay = 30 * time.Second
	defaultInterval     = 5 * time.Minute
)

// DefaultDescriptor is the task descriptor used when nothing is configured.
func DefaultDescriptor() scheduler.TaskDescriptor {
	return scheduler.TaskDescriptor{
		ID:           defaultID,
		Name:         defaultName,
		Description:  defaultDescription,
		InitialDelay: defaultInitialDelay,
		Interval:     defaultInterval,
	}
}

// Config holds the keepalive module configuration.
type Config struct {
	// Enabled turns scheduling on. A disabled task can still be run by hand.
	Enabled *bool `yaml:"enabled"`

	ID          string `yaml:"id"`
	Description string `yaml:"description"`

	// InitialDelay precedes the first run. Unset means 30s; an explicit
	// 0s runs immediately.
	InitialDelay *time.Duration `yaml:"initial_delay"`
	Interval     time.Duration  `yaml:"interval"`

	// GeohashPrecision is the number of geohash characters sent. Defaults to 12.
	GeohashPrecision uint `yaml:"geohash_precision"`

	// QuietHours is an optional "HH:MM-HH:MM" window with no scheduled runs.
	QuietHours string `yaml:"quiet_hours"`

	// Timezone applies to QuietHours. Defaults to UTC.
	Timezone string `yaml:"timezone"`

	Tracing telemetry.TracingConfig `yaml:"tracing"`
}

func (c *Config) defaults() {
	if c.Enabled == nil {
		t := true
		c.Enabled = &t
	}
	d := DefaultDescriptor()
	if c.ID == "" {
		c.ID = d.ID
	}
	if c.Description == "" {
		c.Description = d.Description
	}
	if c.InitialDelay == nil {
		delay := d.InitialDelay
		c.InitialDelay = &delay
	}
	if c.Interval == 0 {
		c.Interval = d.Interval
	}
	if c.GeohashPrecision == 0 {
		c.GeohashPrecision = geo.DefaultPrecision
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.InitialDelay != nil && *c.InitialDelay < 0 {
		errs = append(errs, fmt.Errorf("keepalive: initial_delay must not be negative, got %s", *c.InitialDelay))
	}
	if c.Interval < time.Second {
		errs = append(errs, fmt.Errorf("keepalive: interval must be at least 1s, got %s", c.Interval))
	}
	if c.GeohashPrecision > geo.DefaultPrecision {
		errs = append(errs, fmt.Errorf("keepalive: geohash_precision must be 1..%d, got %d", geo.DefaultPrecision, c.GeohashPrecision))
	}
	if c.QuietHours != "" {
		if _, err := scheduler.ParseQuietHours(c.QuietHours); err != nil {
			errs = append(errs, err)
		}
	}
	if c.Timezone != "" {
		if _, err := time.LoadLocation(c.Timezone); err != nil {
			errs = append(errs, fmt.Errorf("keepalive: invalid timezone %q: %w", c.Timezone, err))
		}
	}
	return errors.Join(errs...)
}

func (c *Config) enabled() bool {
	return c.Enabled == nil || *c.Enabled
}

func (c *Config) descriptor() scheduler.TaskDescriptor {
	d := scheduler.TaskDescriptor{
		ID:          c.ID,
		Name:        defaultName,
		Description: c.Description,
		Interval:    c.Interval,
	}
	if c.InitialDelay != nil {
		d.InitialDelay = *c.InitialDelay
	}
	return d
}
