// Package config loads and validates the presenced YAML configuration.
package config

import (
	"log/slog"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document.
type Config struct {
	// Version is the config format version. Only "1" is supported.
	Version string `yaml:"version"`

	// Log controls the root logger.
	Log LogConfig `yaml:"log"`

	// Modules maps module IDs to their raw YAML section.
	Modules map[string]yaml.Node `yaml:"modules"`
}

// LogConfig configures the root logger and the diagnostic trace sink.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Defaults to info.
	Level string `yaml:"level"`

	// TraceFile, when set, receives one JSON line per captured fault trace.
	TraceFile string `yaml:"trace_file"`
}

// SlogLevel maps Level onto a slog.Level.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
