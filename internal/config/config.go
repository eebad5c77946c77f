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

// Package config loads the pica CLI configuration from
// ~/.config/pica/config.yaml, layered with environment variables.
// Command-line flags are applied last by the commands themselves, so the
// effective precedence is flags > environment > file > defaults.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	picaerrors "github.com/picahq/pica-go/pkg/errors"
	"github.com/picahq/pica-go/pkg/pica"
)

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// serverNameRegex validates MCP server names. Names must start with a
// letter and contain only letters, numbers, hyphens, and underscores.
var serverNameRegex = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9_-]{0,63}$`)

// Config represents the complete pica CLI configuration.
type Config struct {
	API APIConfig `yaml:"api"`
	Log LogConfig `yaml:"log"`

	// Connectors limits the client to these connection keys. Glob patterns
	// (doublestar syntax) are allowed; "*" exposes every connection.
	// Environment: PICA_CONNECTORS (comma-separated)
	Connectors []string `yaml:"connectors,omitempty"`

	// Identity filters the connections fetch to one identity ID.
	// Environment: PICA_IDENTITY
	Identity string `yaml:"identity,omitempty"`

	// IdentityType filters connections by owner type.
	// Valid values: user, team, organization, project.
	// Environment: PICA_IDENTITY_TYPE
	IdentityType string `yaml:"identity_type,omitempty"`

	// Permissions is the execution permission tier (read, write, admin).
	// Environment: PICA_PERMISSIONS
	// Default: admin
	Permissions string `yaml:"permissions,omitempty"`

	// AuthKit exposes the platform connection prompt surface.
	// Environment: PICA_AUTHKIT
	AuthKit bool `yaml:"authkit,omitempty"`

	// MCP configures external MCP servers whose tools are merged with the
	// built-in pica tools.
	MCP MCPConfig `yaml:"mcp,omitempty"`

	// Audit configures the execution audit store.
	Audit AuditConfig `yaml:"audit,omitempty"`

	// Observability configures tracing and metrics.
	Observability ObservabilityConfig `yaml:"observability,omitempty"`
}

// APIConfig configures the Pica API client.
type APIConfig struct {
	// BaseURL is the Pica API endpoint.
	// Environment: PICA_BASE_URL
	// Default: https://api.picaos.com
	BaseURL string `yaml:"base_url,omitempty"`

	// SecretEnv names the environment variable consulted for the API
	// secret before the keychain and encrypted-file backends.
	// Default: PICA_SECRET
	SecretEnv string `yaml:"secret_env,omitempty"`

	// Timeout is the maximum duration for API requests.
	// Environment: PICA_TIMEOUT
	// Default: 30s
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	// Level sets the minimum log level (debug, info, warn, error).
	// Environment: LOG_LEVEL
	// Default: info
	Level string `yaml:"level"`

	// Format sets the output format (json, text).
	// Environment: LOG_FORMAT
	// Default: json
	Format string `yaml:"format"`

	// AddSource adds source file and line information to logs.
	// Environment: LOG_SOURCE
	// Default: false
	AddSource bool `yaml:"add_source"`
}

// MCPConfig configures external MCP servers.
type MCPConfig struct {
	// Servers is a map of server name to configuration. Tools contributed
	// by a server are namespaced as "<server>.<tool>".
	Servers map[string]*MCPServerConfig `yaml:"servers,omitempty"`
}

// MCPServerConfig defines one external MCP server.
type MCPServerConfig struct {
	// Transport selects how the server is reached: "stdio" or "sse".
	// Defaults to "sse" when only URL is set, "stdio" otherwise.
	Transport string `yaml:"transport,omitempty"`

	// Command is the executable to run (stdio transport).
	Command string `yaml:"command,omitempty"`

	// Args are command-line arguments (stdio transport).
	Args []string `yaml:"args,omitempty"`

	// Env are extra environment variables in KEY=VALUE format.
	// Values support ${VAR} substitution at launch time.
	Env []string `yaml:"env,omitempty"`

	// URL is the endpoint (sse transport).
	URL string `yaml:"url,omitempty"`

	// Headers are additional HTTP headers (sse transport).
	Headers map[string]string `yaml:"headers,omitempty"`

	// Tools limits which tools the server contributes. Glob patterns are
	// allowed. Empty means every tool.
	Tools []string `yaml:"tools,omitempty"`

	// Timeout is the per-call timeout in seconds.
	// Default: 30
	Timeout int `yaml:"timeout,omitempty"`

	// Disabled skips this server without deleting its entry.
	Disabled bool `yaml:"disabled,omitempty"`
}

// AuditConfig configures the execution audit store.
type AuditConfig struct {
	// Enabled turns on execution auditing.
	// Environment: PICA_AUDIT_ENABLED
	Enabled bool `yaml:"enabled"`

	// Path is the SQLite database path.
	// Environment: PICA_AUDIT_PATH
	// Default: <data dir>/audit.db
	Path string `yaml:"path,omitempty"`
}

// ObservabilityConfig configures tracing and metrics.
type ObservabilityConfig struct {
	// Enabled controls whether tracing and metrics are active.
	// Environment: PICA_OBSERVABILITY_ENABLED
	Enabled bool `yaml:"enabled"`

	// ServiceName identifies this service in traces.
	ServiceName string `yaml:"service_name,omitempty"`

	// ServiceVersion is the application version. Empty means the build
	// version is used.
	ServiceVersion string `yaml:"service_version,omitempty"`

	// MetricsAddr is the listen address for the Prometheus scrape endpoint.
	// Only long-running commands (mcp serve) bind it. Empty disables the
	// endpoint.
	// Environment: PICA_METRICS_ADDR
	MetricsAddr string `yaml:"metrics_addr,omitempty"`

	// Sampling configures trace sampling.
	Sampling SamplingConfig `yaml:"sampling,omitempty"`

	// Exporters configures span export destinations.
	Exporters []ExporterConfig `yaml:"exporters,omitempty"`
}

// SamplingConfig controls which traces are recorded.
type SamplingConfig struct {
	// Enabled activates sampling (default: false - sample all).
	Enabled bool `yaml:"enabled"`

	// Rate is the fraction of traces to sample (0.0 - 1.0).
	Rate float64 `yaml:"rate,omitempty"`

	// AlwaysSampleErrors samples all traces with errors.
	AlwaysSampleErrors bool `yaml:"always_sample_errors"`
}

// ExporterConfig defines a span export destination.
type ExporterConfig struct {
	// Type is the exporter type: "otlp", "otlp-grpc", "otlp-http", or "console".
	Type string `yaml:"type"`

	// Endpoint is the OTLP receiver address. Ignored for console.
	Endpoint string `yaml:"endpoint,omitempty"`

	// Headers are additional headers for authentication.
	Headers map[string]string `yaml:"headers,omitempty"`

	// TLS configures secure connections.
	TLS TLSConfig `yaml:"tls,omitempty"`

	// TimeoutSeconds is the export timeout in seconds.
	TimeoutSeconds int `yaml:"timeout_seconds,omitempty"`
}

// TLSConfig configures TLS for exporters.
type TLSConfig struct {
	// Enabled activates TLS.
	Enabled bool `yaml:"enabled"`

	// VerifyCertificate controls certificate validation.
	VerifyCertificate bool `yaml:"verify_certificate"`

	// CACertPath is the path to the CA certificate.
	CACertPath string `yaml:"ca_cert_path,omitempty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:   pica.DefaultBaseURL,
			SecretEnv: "PICA_SECRET",
			Timeout:   30 * time.Second,
		},
		Log: LogConfig{
			Level:     "info",
			Format:    "json",
			AddSource: false,
		},
		Permissions: "admin",
		Audit: AuditConfig{
			Enabled: false,
			Path:    "", // Resolved to <data dir>/audit.db on first use.
		},
		Observability: ObservabilityConfig{
			Enabled:        false, // Opt-in
			ServiceName:    "pica",
			ServiceVersion: "",
			Sampling: SamplingConfig{
				Enabled:            false,
				Rate:               1.0, // Sample all by default
				AlwaysSampleErrors: true,
			},
			Exporters: nil, // No exporters by default
		},
	}
}

// Load loads configuration from a YAML file and environment variables.
// Environment variables take precedence over file values. If configPath is
// empty, the default path is used when the file exists; a missing default
// file is not an error.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	path := configPath
	explicit := path != ""
	if !explicit {
		if p, err := ConfigPath(); err == nil {
			path = p
		}
	}

	if path != "" {
		err := cfg.loadFromFile(path)
		switch {
		case err == nil:
		case !explicit && os.IsNotExist(err):
			// No config file; defaults plus environment apply.
		default:
			return nil, &picaerrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", path),
				Cause:  err,
			}
		}
	}

	// Fill zero values so minimal configs work without every field.
	cfg.applyDefaults()

	// Override with environment variables.
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, &picaerrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// applyDefaults fills in zero values with sensible defaults. This allows
// minimal configs (e.g., just connectors) to omit the rest.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.API.BaseURL == "" {
		c.API.BaseURL = defaults.API.BaseURL
	}
	if c.API.SecretEnv == "" {
		c.API.SecretEnv = defaults.API.SecretEnv
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = defaults.API.Timeout
	}

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}

	if c.Permissions == "" {
		c.Permissions = defaults.Permissions
	}

	if c.Observability.ServiceName == "" {
		c.Observability.ServiceName = defaults.Observability.ServiceName
	}
	if c.Observability.Sampling.Rate == 0 {
		c.Observability.Sampling.Rate = defaults.Observability.Sampling.Rate
	}

	for _, entry := range c.MCP.Servers {
		if entry == nil {
			continue
		}
		if entry.Transport == "" {
			if entry.URL != "" && entry.Command == "" {
				entry.Transport = "sse"
			} else {
				entry.Transport = "stdio"
			}
		}
		if entry.Timeout == 0 {
			entry.Timeout = 30
		}
	}
}

// loadFromFile loads configuration from a YAML file. Missing-file errors
// are returned unwrapped so callers can tolerate an absent default config.
func (c *Config) loadFromFile(path string) error {
	// Expand home directory if present
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, path[2:])
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables.
func (c *Config) loadFromEnv() {
	if val := os.Getenv("PICA_BASE_URL"); val != "" {
		c.API.BaseURL = val
	}
	if val := os.Getenv("PICA_TIMEOUT"); val != "" {
		if duration, err := time.ParseDuration(val); err == nil {
			c.API.Timeout = duration
		}
	}
	if val := os.Getenv("PICA_CONNECTORS"); val != "" {
		keys := strings.Split(val, ",")
		for i, k := range keys {
			keys[i] = strings.TrimSpace(k)
		}
		c.Connectors = keys
	}
	if val := os.Getenv("PICA_IDENTITY"); val != "" {
		c.Identity = val
	}
	if val := os.Getenv("PICA_IDENTITY_TYPE"); val != "" {
		c.IdentityType = strings.ToLower(val)
	}
	if val := os.Getenv("PICA_PERMISSIONS"); val != "" {
		c.Permissions = strings.ToLower(val)
	}
	if val := os.Getenv("PICA_AUTHKIT"); val != "" {
		c.AuthKit = val == "1" || strings.ToLower(val) == "true"
	}

	// Log configuration
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = strings.ToLower(val)
	}
	if val := os.Getenv("LOG_SOURCE"); val != "" {
		c.Log.AddSource = val == "1" || strings.ToLower(val) == "true"
	}

	// Audit configuration
	if val := os.Getenv("PICA_AUDIT_ENABLED"); val != "" {
		c.Audit.Enabled = val == "1" || strings.ToLower(val) == "true"
	}
	if val := os.Getenv("PICA_AUDIT_PATH"); val != "" {
		c.Audit.Path = val
	}

	// Observability configuration
	if val := os.Getenv("PICA_OBSERVABILITY_ENABLED"); val != "" {
		c.Observability.Enabled = val == "1" || strings.ToLower(val) == "true"
	}
	if val := os.Getenv("PICA_METRICS_ADDR"); val != "" {
		c.Observability.MetricsAddr = val
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	var errs []string

	// Validate API configuration
	if u, err := url.Parse(c.API.BaseURL); err != nil {
		errs = append(errs, fmt.Sprintf("api.base_url is not a valid URL: %v", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		errs = append(errs, fmt.Sprintf("api.base_url must use http or https, got %q", c.API.BaseURL))
	} else if u.Host == "" {
		errs = append(errs, fmt.Sprintf("api.base_url has no host, got %q", c.API.BaseURL))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Sprintf("api.timeout must be positive, got %v", c.API.Timeout))
	}

	// Validate log configuration
	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("log.level must be one of [trace, debug, info, warn, warning, error], got %q", c.Log.Level))
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("log.format must be one of [json, text], got %q", c.Log.Format))
	}

	// Validate execution settings
	validPermissions := map[string]bool{"": true, "read": true, "write": true, "admin": true}
	if !validPermissions[c.Permissions] {
		errs = append(errs, fmt.Sprintf("permissions must be one of [read, write, admin], got %q", c.Permissions))
	}
	validIdentityTypes := map[string]bool{"": true, "user": true, "team": true, "organization": true, "project": true}
	if !validIdentityTypes[c.IdentityType] {
		errs = append(errs, fmt.Sprintf("identity_type must be one of [user, team, organization, project], got %q", c.IdentityType))
	}

	// Validate MCP server entries
	for name, entry := range c.MCP.Servers {
		if err := ValidateServerName(name); err != nil {
			errs = append(errs, fmt.Sprintf("mcp.servers[%q]: %v", name, err))
			continue
		}
		if entry == nil {
			errs = append(errs, fmt.Sprintf("mcp.servers[%q]: entry is empty", name))
			continue
		}
		if err := entry.Validate(); err != nil {
			errs = append(errs, fmt.Sprintf("mcp.servers[%q]: %v", name, err))
		}
	}

	// Validate observability configuration
	if c.Observability.Enabled {
		rate := c.Observability.Sampling.Rate
		if rate < 0 || rate > 1 {
			errs = append(errs, fmt.Sprintf("observability.sampling.rate must be between 0.0 and 1.0, got %v", rate))
		}
		validExporters := map[string]bool{"otlp": true, "otlp-grpc": true, "otlp-http": true, "console": true}
		for i, exp := range c.Observability.Exporters {
			if !validExporters[exp.Type] {
				errs = append(errs, fmt.Sprintf("observability.exporters[%d].type must be one of [otlp, otlp-grpc, otlp-http, console], got %q", i, exp.Type))
			}
			if exp.Type != "console" && exp.Endpoint == "" {
				errs = append(errs, fmt.Sprintf("observability.exporters[%d].endpoint is required for type %q", i, exp.Type))
			}
			if exp.TimeoutSeconds < 0 {
				errs = append(errs, fmt.Sprintf("observability.exporters[%d].timeout_seconds must be non-negative, got %d", i, exp.TimeoutSeconds))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w:\n  - %s", ErrInvalidConfig, strings.Join(errs, "\n  - "))
	}

	return nil
}

// Validate validates a single MCP server entry.
func (e *MCPServerConfig) Validate() error {
	switch e.Transport {
	case "", "stdio":
		if e.Command == "" {
			return fmt.Errorf("command is required for stdio transport")
		}
	case "sse":
		if e.URL == "" {
			return fmt.Errorf("url is required for sse transport")
		}
		u, err := url.Parse(e.URL)
		if err != nil {
			return fmt.Errorf("invalid url: %v", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("url must use http or https, got %q", e.URL)
		}
	default:
		return fmt.Errorf("invalid transport: %s (must be 'stdio' or 'sse')", e.Transport)
	}

	if e.Timeout < 0 {
		return fmt.Errorf("timeout must be non-negative")
	}

	for i, env := range e.Env {
		if err := validateEnvEntry(env); err != nil {
			return fmt.Errorf("env[%d]: %w", i, err)
		}
	}

	return nil
}

// validateEnvEntry checks that an environment entry is KEY=VALUE with a
// valid identifier key.
func validateEnvEntry(env string) error {
	parts := strings.SplitN(env, "=", 2)
	if len(parts) != 2 {
		return fmt.Errorf("environment variable must be in KEY=VALUE format")
	}
	key := parts[0]
	if key == "" {
		return fmt.Errorf("environment variable key is required")
	}
	for i, r := range key {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return fmt.Errorf("invalid environment variable key: %s", key)
			}
		default:
			return fmt.Errorf("invalid environment variable key: %s", key)
		}
	}
	return nil
}

// ValidateServerName validates an MCP server name. Names must start with a
// letter, contain only letters, numbers, hyphens, and underscores, and be
// at most 64 characters. The name becomes the tool namespace prefix, so
// dots are not allowed.
func ValidateServerName(name string) error {
	if name == "" {
		return fmt.Errorf("server name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("server name exceeds 64 character limit")
	}
	if !serverNameRegex.MatchString(name) {
		return fmt.Errorf("invalid server name: must start with a letter and contain only letters, numbers, hyphens, and underscores")
	}
	return nil
}

// EnabledServers returns the MCP server entries that are not disabled,
// keyed by name.
func (c *MCPConfig) EnabledServers() map[string]*MCPServerConfig {
	out := make(map[string]*MCPServerConfig, len(c.Servers))
	for name, entry := range c.Servers {
		if entry == nil || entry.Disabled {
			continue
		}
		out[name] = entry
	}
	return out
}
