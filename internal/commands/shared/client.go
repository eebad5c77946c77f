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

package shared

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/picahq/pica-go/internal/audit"
	"github.com/picahq/pica-go/internal/config"
	"github.com/picahq/pica-go/internal/log"
	"github.com/picahq/pica-go/internal/observe"
	"github.com/picahq/pica-go/internal/secrets"
	"github.com/picahq/pica-go/pkg/pica"
)

// ClientHandle bundles a constructed pica client with the configuration it
// was built from and the resources (audit store, observability provider)
// that must be released when the command finishes.
type ClientHandle struct {
	Client  *pica.Client
	Config  *config.Config
	Logger  *slog.Logger
	Observe *observe.Provider

	closers []func(context.Context) error
}

// Close releases every resource the handle owns, in reverse acquisition
// order. Safe to call on a partially-built handle.
func (h *ClientHandle) Close(ctx context.Context) error {
	var firstErr error
	for i := len(h.closers) - 1; i >= 0; i-- {
		if err := h.closers[i](ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	h.closers = nil
	return firstErr
}

// LoadConfig loads the CLI configuration honoring the global --config flag.
func LoadConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigPath())
	if err != nil {
		return nil, NewConfigError("failed to load configuration", err)
	}
	return cfg, nil
}

// NewLogger builds the command logger from config and global flags.
// --verbose forces debug, --quiet raises the floor to error.
func NewLogger(cfg *config.Config) *slog.Logger {
	logCfg := &log.Config{
		Level:     cfg.Log.Level,
		Format:    log.Format(cfg.Log.Format),
		Output:    os.Stderr,
		AddSource: cfg.Log.AddSource,
	}
	if GetVerbose() {
		logCfg.Level = "debug"
	}
	if GetQuiet() {
		logCfg.Level = "error"
	}
	return log.New(logCfg)
}

// BuildClient constructs a pica.Client from configuration, the stored
// secret, and global flags. Extra options are applied last so
// command-specific options win over config-derived ones. The caller must
// Close the returned handle.
func BuildClient(ctx context.Context, extra ...pica.Option) (*ClientHandle, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	return BuildClientWithConfig(ctx, cfg, extra...)
}

// BuildClientWithConfig is BuildClient for callers that already loaded (or
// modified) the configuration.
func BuildClientWithConfig(ctx context.Context, cfg *config.Config, extra ...pica.Option) (*ClientHandle, error) {
	handle := &ClientHandle{Config: cfg}
	handle.Logger = NewLogger(cfg)

	secret, source, err := resolveSecret(ctx, cfg)
	if err != nil {
		return nil, NewConfigError(
			"no API secret found; set PICA_SECRET or run 'pica secret set'", err)
	}
	handle.Logger.Debug("resolved API secret", "source", source)

	opts := []pica.Option{
		pica.WithBaseURL(cfg.API.BaseURL),
		pica.WithLogger(handle.Logger),
	}
	if len(cfg.Connectors) > 0 {
		opts = append(opts, pica.WithConnectors(cfg.Connectors...))
	}
	if cfg.Identity != "" {
		opts = append(opts, pica.WithIdentity(cfg.Identity))
	}
	if cfg.IdentityType != "" {
		opts = append(opts, pica.WithIdentityType(cfg.IdentityType))
	}
	if cfg.AuthKit {
		opts = append(opts, pica.WithAuthKit())
	}
	if cfg.Permissions != "" {
		opts = append(opts, pica.WithPermissions(pica.Permissions(cfg.Permissions)))
	}

	if cfg.Audit.Enabled {
		path, err := cfg.AuditPath()
		if err != nil {
			handle.Close(ctx)
			return nil, NewConfigError("cannot resolve audit database path", err)
		}
		store, err := audit.New(audit.Config{Path: path})
		if err != nil {
			handle.Close(ctx)
			return nil, NewConfigError("cannot open audit database", err)
		}
		handle.closers = append(handle.closers, func(context.Context) error {
			return store.Close()
		})
		opts = append(opts, pica.WithAuditSink(store))
	}

	if cfg.Observability.Enabled {
		provider, err := observe.New(ctx, observeConfig(cfg))
		if err != nil {
			handle.Close(ctx)
			return nil, NewConfigError("cannot start observability provider", err)
		}
		handle.Observe = provider
		handle.closers = append(handle.closers, provider.Shutdown)
		opts = append(opts,
			pica.WithTracer(provider.Tracer("pica")),
			pica.WithMetrics(provider.Metrics()),
		)
	}

	opts = append(opts, extra...)

	client, err := pica.New(secret, opts...)
	if err != nil {
		handle.Close(ctx)
		return nil, NewConfigError("failed to construct pica client", err)
	}
	handle.Client = client
	return handle, nil
}

// resolveSecret returns the API secret, trying the --secret flag, then the
// configured environment variable, then the secret store chain (env,
// keychain, encrypted file).
func resolveSecret(ctx context.Context, cfg *config.Config) (string, string, error) {
	if s := GetSecret(); s != "" {
		return s, "flag", nil
	}
	if cfg.API.SecretEnv != "" && cfg.API.SecretEnv != pica.EnvSecret {
		if s := os.Getenv(cfg.API.SecretEnv); s != "" {
			return s, "env:" + cfg.API.SecretEnv, nil
		}
	}
	return secrets.Open("").Get(ctx)
}

// observeConfig maps the YAML observability section onto the provider
// configuration. The CLI owns this conversion so internal/observe stays
// independent of the config file format.
func observeConfig(cfg *config.Config) observe.Config {
	oc := observe.DefaultConfig()
	oc.Enabled = cfg.Observability.Enabled
	if cfg.Observability.ServiceName != "" {
		oc.ServiceName = cfg.Observability.ServiceName
	}
	oc.ServiceVersion = cfg.Observability.ServiceVersion
	if oc.ServiceVersion == "" {
		oc.ServiceVersion, _, _ = GetVersion()
	}
	oc.Sampling = observe.SamplingConfig{
		Enabled:            cfg.Observability.Sampling.Enabled,
		Rate:               cfg.Observability.Sampling.Rate,
		AlwaysSampleErrors: cfg.Observability.Sampling.AlwaysSampleErrors,
	}
	for _, e := range cfg.Observability.Exporters {
		oc.Exporters = append(oc.Exporters, observe.ExporterConfig{
			Type:     e.Type,
			Endpoint: e.Endpoint,
			Headers:  e.Headers,
			TLS: observe.TLSConfig{
				Enabled:           e.TLS.Enabled,
				VerifyCertificate: e.TLS.VerifyCertificate,
				CACertPath:        e.TLS.CACertPath,
			},
			Timeout: time.Duration(e.TimeoutSeconds) * time.Second,
		})
	}
	return oc
}

// InitializeClient runs Initialize with a bounded context and converts the
// error to a CLI exit error.
func InitializeClient(ctx context.Context, handle *ClientHandle) error {
	initCtx, cancel := context.WithTimeout(ctx, handle.Config.API.Timeout)
	defer cancel()
	if err := handle.Client.Initialize(initCtx); err != nil {
		return NewAPIError(fmt.Sprintf("failed to initialize against %s", handle.Config.API.BaseURL), err)
	}
	return nil
}
