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

// Package mcp implements 'pica mcp'.
package mcp

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/picahq/pica-go/internal/commands/shared"
	"github.com/picahq/pica-go/internal/config"
	"github.com/picahq/pica-go/internal/log"
	picamcp "github.com/picahq/pica-go/internal/mcp"
	"github.com/picahq/pica-go/internal/mcp/server"
	"github.com/picahq/pica-go/pkg/tools"
)

// NewCommand creates the mcp command group.
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the pica tools over the Model Context Protocol",
	}

	cmd.AddCommand(newServeCommand())

	return cmd
}

func newServeCommand() *cobra.Command {
	var (
		watch     bool
		rateLimit int
		callLimit int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server on stdio",
		Long: `Start an MCP server that exposes the pica tools on stdio.

AI assistants connect to it through their MCP configuration, e.g. for
Claude Code (~/.config/claude/config.json):

  {
    "mcpServers": {
      "pica": {
        "command": "pica",
        "args": ["mcp", "serve"]
      }
    }
  }

The server exposes these tools:
  - pica.get_available_actions: list a platform's supported actions
  - pica.get_action_knowledge:  fetch one action's documentation
  - pica.execute:               run an action via the passthrough endpoint
  - pica.prompt_to_connect_platform: AuthKit connect prompt (authkit mode)

External MCP servers from the config file are bridged in alongside,
namespaced as "<server>.<tool>". With --watch, edits to the config file
reload the bridged servers without restarting.

Logs go to stderr; stdout carries the protocol.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), watch, rateLimit, callLimit)
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "Reload external MCP servers when the config file changes")
	cmd.Flags().IntVar(&rateLimit, "rate-limit", 10, "Maximum pica.execute calls per minute")
	cmd.Flags().IntVar(&callLimit, "call-limit", 100, "Maximum total tool calls per minute")

	return cmd
}

func runServe(ctx context.Context, watch bool, rateLimit, callLimit int) error {
	handle, err := shared.BuildClient(ctx)
	if err != nil {
		return err
	}
	defer handle.Close(context.Background())

	logger := log.WithComponent(handle.Logger, "mcp")

	if err := shared.InitializeClient(ctx, handle); err != nil {
		return err
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterPicaTools(registry, handle.Client); err != nil {
		return shared.NewConfigError("failed to register pica tools", err)
	}
	// No approver here: stdio serving is unattended and the rate limiter is
	// the execution gate. The interceptor still logs redacted outcomes.
	registry.SetInterceptor(tools.NewApprovalInterceptor(nil, logger))

	versionStr, _, _ := shared.GetVersion()

	// Bridge external MCP servers before the stdio loop starts so their
	// tools appear in the initial tool list.
	loader, err := picamcp.NewLoader(picamcp.LoaderConfig{
		Registry:      registry,
		ClientVersion: versionStr,
		Logger:        logger,
	})
	if err != nil {
		return shared.NewConfigError("failed to create MCP loader", err)
	}
	defer loader.Close()

	if servers := handle.Config.MCP.EnabledServers(); len(servers) > 0 {
		if err := loader.LoadServers(ctx, servers); err != nil {
			logger.Warn("no external MCP server could be loaded", "error", err)
		}
	}

	var watcher *picamcp.Watcher
	if watch {
		configPath := shared.GetConfigPath()
		if configPath == "" {
			if configPath, err = config.ConfigPath(); err != nil {
				return shared.NewConfigError("cannot resolve config path for --watch", err)
			}
		}
		watcher, err = picamcp.NewWatcher(picamcp.WatcherConfig{
			Path:   configPath,
			Logger: logger,
			OnChange: func() {
				reloaded, err := config.Load(configPath)
				if err != nil {
					logger.Error("config reload failed", "error", err)
					return
				}
				if err := loader.Reload(context.Background(), reloaded.MCP.EnabledServers()); err != nil {
					logger.Error("MCP server reload failed", "error", err)
				}
			},
		})
		if err != nil {
			return shared.NewConfigError("failed to watch config file", err)
		}
		defer watcher.Close()
	}

	srv, err := server.NewServer(server.Config{
		Name:                "pica",
		Version:             versionStr,
		Registry:            registry,
		Logger:              logger,
		ExecutionsPerMinute: rateLimit,
		CallsPerMinute:      callLimit,
	})
	if err != nil {
		return shared.NewConfigError("failed to create MCP server", err)
	}

	serveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// The Prometheus endpoint only makes sense on a long-running command,
	// so it binds here rather than in the client builder.
	if handle.Observe != nil && handle.Config.Observability.MetricsAddr != "" {
		metricsSrv := &http.Server{
			Addr:              handle.Config.Observability.MetricsAddr,
			Handler:           handle.Observe.MetricsHandler(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("metrics endpoint listening", "addr", metricsSrv.Addr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics endpoint failed", "error", err)
			}
		}()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer shutdownCancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case <-sigChan:
			fmt.Fprintln(os.Stderr, "shutting down...")
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Error("shutdown error", "error", err)
			}
			cancel()
		case <-serveCtx.Done():
		}
	}()

	if err := srv.Run(serveCtx); err != nil {
		return shared.NewExecutionError("MCP server error", err)
	}
	return nil
}
