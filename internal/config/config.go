// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads and validates the strand configuration.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	stranderrors "github.com/tombee/strand/pkg/errors"
)

// Export modes supported by the export section.
const (
	ExportModeConsole  = "console"
	ExportModeOTLPGRPC = "otlp-grpc"
	ExportModeOTLPHTTP = "otlp-http"
)

// Config represents the complete strand configuration.
type Config struct {
	Log     LogConfig     `yaml:"log"`
	Store   StoreConfig   `yaml:"store"`
	Export  ExportConfig  `yaml:"export"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	Level string `yaml:"level"`

	// Format sets the output format (json, text).
	Format string `yaml:"format"`
}

// StoreConfig configures the SQLite trace store.
type StoreConfig struct {
	// Path is the filesystem path to the SQLite database file.
	// Special value ":memory:" creates an in-memory database.
	Path string `yaml:"path"`

	// RetentionDays controls how long completed traces are kept.
	// Zero disables retention cleanup.
	RetentionDays int `yaml:"retention_days"`
}

// ExportConfig configures trace export.
type ExportConfig struct {
	// Mode selects the exporter: console, otlp-grpc, or otlp-http.
	Mode string `yaml:"mode"`

	// Endpoint is the OTLP collector endpoint (host:port for gRPC,
	// URL for HTTP). Ignored in console mode.
	Endpoint string `yaml:"endpoint"`

	// Insecure disables TLS for OTLP connections.
	Insecure bool `yaml:"insecure"`
}

// MetricsConfig configures the Prometheus metrics endpoint.
type MetricsConfig struct {
	// Enabled controls whether metrics are collected and served.
	Enabled bool `yaml:"enabled"`

	// Addr is the listen address for the /metrics endpoint.
	Addr string `yaml:"addr"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			// Path is resolved to the XDG data directory by Load when no
			// file, env, or flag sets it.
			Path:          "",
			RetentionDays: 30,
		},
		Export: ExportConfig{
			Mode: ExportModeConsole,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    "127.0.0.1:9464",
		},
	}
}

// Load reads the configuration file at path, merges environment overrides on
// top, and validates the result. A missing file is not an error; defaults
// apply. An empty path falls back to the XDG config file
// (~/.config/strand/config.yaml), and a store path left unset by file, env,
// and flags resolves to the XDG data directory.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if p, err := ConfigPath(); err == nil {
			path = p
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, &stranderrors.ConfigError{Reason: "cannot read config file", Cause: err}
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &stranderrors.ConfigError{Reason: "cannot parse config file", Cause: err}
		}
	}

	applyEnv(cfg)

	if cfg.Store.Path == "" {
		p, err := DefaultStorePath()
		if err != nil {
			return nil, &stranderrors.ConfigError{
				Key:    "store.path",
				Reason: "cannot resolve default store path",
				Cause:  err,
			}
		}
		cfg.Store.Path = p
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnv merges STRAND_* environment overrides into cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("STRAND_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("STRAND_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("STRAND_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("STRAND_EXPORT_MODE"); v != "" {
		cfg.Export.Mode = v
	}
	if v := os.Getenv("STRAND_EXPORT_ENDPOINT"); v != "" {
		cfg.Export.Endpoint = v
	}
	if v := os.Getenv("STRAND_METRICS_ADDR"); v != "" {
		cfg.Metrics.Addr = v
		cfg.Metrics.Enabled = true
	}
	if v := os.Getenv("STRAND_STORE_RETENTION_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			cfg.Store.RetentionDays = days
		}
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "", "trace", "debug", "info", "warn", "warning", "error":
	default:
		return &stranderrors.ConfigError{
			Key:    "log.level",
			Reason: fmt.Sprintf("unknown level %q", c.Log.Level),
		}
	}

	switch c.Log.Format {
	case "", "json", "text":
	default:
		return &stranderrors.ConfigError{
			Key:    "log.format",
			Reason: fmt.Sprintf("unknown format %q", c.Log.Format),
		}
	}

	switch c.Export.Mode {
	case "", ExportModeConsole:
	case ExportModeOTLPGRPC, ExportModeOTLPHTTP:
		if c.Export.Endpoint == "" {
			return &stranderrors.ConfigError{
				Key:    "export.endpoint",
				Reason: fmt.Sprintf("required for mode %q", c.Export.Mode),
			}
		}
	default:
		return &stranderrors.ConfigError{
			Key:    "export.mode",
			Reason: fmt.Sprintf("unknown mode %q", c.Export.Mode),
		}
	}

	if c.Store.RetentionDays < 0 {
		return &stranderrors.ConfigError{
			Key:    "store.retention_days",
			Reason: "must not be negative",
		}
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return &stranderrors.ConfigError{
			Key:    "metrics.addr",
			Reason: "required when metrics are enabled",
		}
	}

	return nil
}
