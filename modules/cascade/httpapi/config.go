package httpapi

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/flemzord/presenced/internal/keepalive"
)

const (
	defaultPath    = "/v3/cascade"
	defaultTimeout = 30 * time.Second
	maxBodySnippet = 512
)

// Config holds the cascade endpoint configuration.
type Config struct {
	// BaseURL is the scheme and host of the API, e.g. https://api.example.com.
	BaseURL string `yaml:"base_url"`

	// Path is appended to BaseURL. Defaults to /v3/cascade.
	Path string `yaml:"path"`

	// Token is sent as a bearer token when set.
	Token string `yaml:"token"`

	// Timeout bounds each request. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout"`

	// Arity is the arity declared for fetchCascadePage. It only needs
	// changing to mirror an upstream signature change.
	Arity int `yaml:"arity"`

	UserAgent string `yaml:"user_agent"`
}

func (c *Config) defaults() {
	if c.Path == "" {
		c.Path = defaultPath
	}
	if c.Timeout == 0 {
		c.Timeout = defaultTimeout
	}
	if c.Arity == 0 {
		c.Arity = keepalive.CascadeArity
	}
	if c.UserAgent == "" {
		c.UserAgent = "presenced"
	}
}

func (c *Config) validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("cascade.http: base_url is required"))
	} else if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("cascade.http: invalid base_url %q", c.BaseURL))
	}
	if c.Timeout < 0 {
		errs = append(errs, fmt.Errorf("cascade.http: timeout must not be negative, got %s", c.Timeout))
	}
	if c.Arity < 1 {
		errs = append(errs, fmt.Errorf("cascade.http: arity must be at least 1, got %d", c.Arity))
	}
	return errors.Join(errs...)
}
