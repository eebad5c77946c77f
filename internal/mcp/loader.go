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

package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/picahq/pica-go/internal/config"
	"github.com/picahq/pica-go/pkg/tools"
)

// Dialer establishes a connection to an MCP server. It exists so tests can
// substitute fake clients.
type Dialer func(ctx context.Context, cfg ClientConfig) (ClientProvider, error)

// loadedServer tracks a connected MCP server and the tools it registered.
type loadedServer struct {
	// client is the active MCP client connection
	client ClientProvider

	// toolNames are the namespaced tool names registered for this server
	toolNames []string
}

// Loader connects to configured MCP servers and bridges their tools into a
// tool registry. Each tool is registered under "<server>.<tool>" so tools
// from different servers never collide.
type Loader struct {
	// registry receives the bridged tools
	registry *tools.Registry

	// dial establishes client connections (overridable in tests)
	dial Dialer

	// clientVersion is reported to servers during the MCP handshake
	clientVersion string

	// logger is used for structured logging
	logger *slog.Logger

	// servers tracks connected servers by name
	servers map[string]*loadedServer

	// mu protects the servers map
	mu sync.Mutex
}

// LoaderConfig configures the MCP loader.
type LoaderConfig struct {
	// Registry receives the bridged tools (required)
	Registry *tools.Registry

	// ClientVersion is reported to servers during the MCP handshake (optional)
	ClientVersion string

	// Logger is used for structured logging (optional)
	Logger *slog.Logger

	// Dial establishes client connections (optional, for testing)
	Dial Dialer
}

// NewLoader creates a new MCP loader.
func NewLoader(cfg LoaderConfig) (*Loader, error) {
	if cfg.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dial := cfg.Dial
	if dial == nil {
		dial = func(ctx context.Context, clientCfg ClientConfig) (ClientProvider, error) {
			return NewClient(ctx, clientCfg)
		}
	}

	return &Loader{
		registry:      cfg.Registry,
		dial:          dial,
		clientVersion: cfg.ClientVersion,
		logger:        logger,
		servers:       make(map[string]*loadedServer),
	}, nil
}

// LoadServers connects to every enabled server and registers its tools.
// Servers that fail to connect are logged and skipped so one broken server
// does not take down the rest. The returned error is non-nil only when no
// configured server could be loaded.
func (l *Loader) LoadServers(ctx context.Context, servers map[string]*config.MCPServerConfig) error {
	// Sort names for deterministic connection order
	names := make([]string, 0, len(servers))
	for name, serverCfg := range servers {
		if serverCfg == nil || serverCfg.Disabled {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)

	if len(names) == 0 {
		return nil
	}

	var loaded int
	var firstErr error
	for _, name := range names {
		if err := l.loadServer(ctx, name, servers[name]); err != nil {
			l.logger.Warn("failed to load MCP server",
				"server", name,
				"error", err)
			if firstErr == nil {
				firstErr = fmt.Errorf("server %q: %w", name, err)
			}
			continue
		}
		loaded++
	}

	if loaded == 0 {
		return fmt.Errorf("no MCP servers loaded: %w", firstErr)
	}
	return nil
}

// loadServer connects a single server and registers its tools.
func (l *Loader) loadServer(ctx context.Context, name string, serverCfg *config.MCPServerConfig) error {
	if err := config.ValidateServerName(name); err != nil {
		return err
	}

	client, err := l.dial(ctx, ClientConfig{
		ServerName:    name,
		Transport:     serverCfg.Transport,
		Command:       serverCfg.Command,
		Args:          serverCfg.Args,
		Env:           serverCfg.Env,
		URL:           serverCfg.URL,
		Headers:       serverCfg.Headers,
		Timeout:       time.Duration(serverCfg.Timeout) * time.Second,
		ClientVersion: l.clientVersion,
	})
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	toolDefs, err := client.ListTools(ctx)
	if err != nil {
		client.Close()
		return fmt.Errorf("failed to list tools: %w", err)
	}

	registered := make([]string, 0, len(toolDefs))
	for _, toolDef := range toolDefs {
		if !toolAllowed(toolDef.Name, serverCfg.Tools) {
			l.logger.Debug("skipping MCP tool not in allow-list",
				"server", name,
				"tool", toolDef.Name)
			continue
		}

		adapter := NewMCPTool(name, toolDef, client)
		if err := l.registry.Register(adapter); err != nil {
			l.logger.Warn("failed to register MCP tool",
				"server", name,
				"tool", toolDef.Name,
				"error", err)
			continue
		}
		registered = append(registered, adapter.Name())
	}

	l.mu.Lock()
	l.servers[name] = &loadedServer{
		client:    client,
		toolNames: registered,
	}
	l.mu.Unlock()

	l.logger.Info("loaded MCP server",
		"server", name,
		"transport", serverCfg.Transport,
		"tools", len(registered))
	return nil
}

// toolAllowed reports whether a tool name matches the server's allow-list.
// An empty allow-list admits every tool. Patterns use glob syntax, so
// "list_*" matches "list_repos".
func toolAllowed(name string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, pattern := range patterns {
		if ok, err := doublestar.Match(pattern, name); err == nil && ok {
			return true
		}
	}
	return false
}

// Reload tears down every connected server and reconnects from the given
// configuration. Tools registered by the previous generation are removed
// before the new servers register theirs.
func (l *Loader) Reload(ctx context.Context, servers map[string]*config.MCPServerConfig) error {
	l.unloadAll()
	return l.LoadServers(ctx, servers)
}

// ServerNames returns the names of all connected servers, sorted.
func (l *Loader) ServerNames() []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	names := make([]string, 0, len(l.servers))
	for name := range l.servers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ToolNames returns the namespaced tool names registered for a server.
func (l *Loader) ToolNames(server string) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, ok := l.servers[server]
	if !ok {
		return nil
	}
	names := make([]string, len(state.toolNames))
	copy(names, state.toolNames)
	return names
}

// Ping checks that a connected server is still responsive.
func (l *Loader) Ping(ctx context.Context, server string) error {
	l.mu.Lock()
	state, ok := l.servers[server]
	l.mu.Unlock()

	if !ok {
		return fmt.Errorf("server not loaded: %s", server)
	}
	return state.client.Ping(ctx)
}

// unloadAll unregisters every bridged tool and closes every client.
func (l *Loader) unloadAll() {
	l.mu.Lock()
	servers := l.servers
	l.servers = make(map[string]*loadedServer)
	l.mu.Unlock()

	for name, state := range servers {
		for _, toolName := range state.toolNames {
			if err := l.registry.Unregister(toolName); err != nil {
				l.logger.Debug("failed to unregister MCP tool",
					"tool", toolName,
					"error", err)
			}
		}
		if err := state.client.Close(); err != nil {
			l.logger.Debug("failed to close MCP client",
				"server", name,
				"error", err)
		}
	}
}

// Close disconnects every server and removes their tools from the registry.
func (l *Loader) Close() error {
	l.unloadAll()
	return nil
}
