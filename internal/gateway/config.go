package gateway

import (
	"errors"
	"fmt"
	"net"
	"time"
)

// DefaultBind is the listen address used when none is configured.
const DefaultBind = "127.0.0.1:8470"

// Config holds HTTP gateway configuration.
type Config struct {
	Bind            string        `yaml:"bind"`
	Auth            AuthConfig    `yaml:"auth"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// AuthFailuresPerMin caps failed authentications per client address.
	// Zero disables the limit.
	AuthFailuresPerMin int `yaml:"auth_failures_per_min"`

	// StreamWriteTimeout bounds each frame written to /ws/status.
	StreamWriteTimeout time.Duration `yaml:"stream_write_timeout"`
}

func (c *Config) defaults() {
	if c.Bind == "" {
		c.Bind = DefaultBind
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 5 * time.Second
	}
	if c.AuthFailuresPerMin == 0 {
		c.AuthFailuresPerMin = 10
	}
	if c.StreamWriteTimeout <= 0 {
		c.StreamWriteTimeout = 5 * time.Second
	}
}

func (c *Config) validate() error {
	var errs []error
	if _, err := net.ResolveTCPAddr("tcp", c.Bind); err != nil {
		errs = append(errs, fmt.Errorf("gateway: invalid bind address %q: %w", c.Bind, err))
	}
	if (c.Auth.BasicUser == "") != (c.Auth.BasicPass == "") {
		errs = append(errs, errors.New("gateway: basic_user and basic_pass must be set together"))
	}
	if c.AuthFailuresPerMin < 0 {
		errs = append(errs, errors.New("gateway: auth_failures_per_min must not be negative"))
	}
	return errors.Join(errs...)
}

// AuthConfig configures authentication for everything but /health and /metrics.
type AuthConfig struct {
	BearerToken string `yaml:"bearer_token"`
	BasicUser   string `yaml:"basic_user"`
	BasicPass   string `yaml:"basic_pass"`
}

// IsConfigured reports whether any auth method is configured.
func (a AuthConfig) IsConfigured() bool {
	return a.BearerToken != "" || (a.BasicUser != "" && a.BasicPass != "")
}
