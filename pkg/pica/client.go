// Package pica is a client for the Pica integration platform. It loads the
// caller's connection registry, discovers the actions each platform exposes,
// executes actions through the passthrough endpoint, and composes the system
// prompt an LLM agent needs to drive those actions.
//
// The tool-facing operations (GetAvailableActions, GetActionKnowledge,
// ExecuteAction) never return Go errors for remote or user failures: they
// return envelopes with Success=false so an agent can read the failure and
// react. Construction and initialization errors are real errors.
package pica

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/picahq/pica-go/internal/jq"
	pkgerrors "github.com/picahq/pica-go/pkg/errors"
	"github.com/picahq/pica-go/pkg/httpclient"
	"github.com/picahq/pica-go/pkg/observability"
	"github.com/picahq/pica-go/pkg/tools/approval"
)

// DefaultBaseURL is the production Pica API endpoint.
const DefaultBaseURL = "https://api.picaos.com"

// EnvSecret is the environment variable consulted when New is called with an
// empty secret.
const EnvSecret = "PICA_SECRET"

// Client talks to the Pica platform. Construct with New, then call
// Initialize once before using the registry accessors or the prompt
// composer; the action catalog and execution engine fetch on demand and work
// either way. Configuration is immutable after New.
type Client struct {
	secret  string
	baseURL string

	connectors       []string
	identity         string
	identityType     string
	authkit          bool
	authkitPlatforms []string
	permissions      Permissions

	hc          *http.Client
	logger      *slog.Logger
	approver    approval.Approver
	transform   string
	transformer *jq.Transformer
	limiter     *rate.Limiter
	tracer      observability.Tracer
	metrics     MetricsRecorder
	audit       AuditSink

	// initialized is a flag, not a lock: Initialize is idempotent but
	// concurrent FIRST calls are the caller's problem to serialize. Reads
	// of the registry fields below are safe once Initialize has returned.
	initialized atomic.Bool

	connections           []Connection
	connectionDefinitions []ConnectionDefinition
	systemPrompt          string
}

// New builds a Client. secret falls back to the PICA_SECRET environment
// variable; if both are empty New returns a ConfigError. No network traffic
// happens here — call Initialize to load the registry.
func New(secret string, opts ...Option) (*Client, error) {
	if secret == "" {
		secret = os.Getenv(EnvSecret)
	}
	if secret == "" {
		return nil, &pkgerrors.ConfigError{
			Key:    "secret",
			Reason: "Pica API secret is required (set PICA_SECRET or pass it to New)",
		}
	}

	c := &Client{
		secret:      secret,
		baseURL:     DefaultBaseURL,
		permissions: PermissionsAdmin,
		logger:      slog.Default(),
		transformer: jq.New(0, 0),
		tracer:      observability.NewNoopTracer(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	if c.hc == nil {
		hc, err := httpclient.NewWithLogger(httpclient.DefaultConfig(), c.logger)
		if err != nil {
			return nil, &pkgerrors.ConfigError{Key: "http_client", Reason: "failed to build HTTP client", Cause: err}
		}
		c.hc = hc
	}

	c.systemPrompt = c.composeSystemSection("Loading connections...", "")
	return c, nil
}

// Initialize loads the connection registry and connection definitions, then
// composes the system prompt from them. It is idempotent: after the first
// completed call every later call returns nil immediately. The guard is an
// atomic flag, not a lock — callers that might race the FIRST call must
// serialize it themselves.
//
// Both fetches degrade rather than fail: a fetch error is logged and leaves
// the corresponding list empty, and Initialize still completes. The only
// error returned is ctx.Err() when the context is already done, in which
// case the client stays uninitialized.
func (c *Client) Initialize(ctx context.Context) error {
	if c.initialized.Load() {
		c.logger.Debug("client already initialized, skipping")
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.logger.Info("initializing pica client", "base_url", c.baseURL)

	connectors := c.connectors
	switch {
	case containsWildcard(connectors):
		c.logger.Debug("loading all available connections")
		c.connections = c.loadConnections(ctx)
		connectors = nil
	case len(connectors) > 0:
		c.logger.Debug("loading connections", "filter", connectors)
		c.connections = c.loadConnections(ctx)
	default:
		c.logger.Debug("no connector filter configured, loading no connections")
		c.connections = nil
	}

	c.connectionDefinitions = c.loadConnectionDefinitions(ctx)

	active := filterConnections(c.connections, connectors)
	c.logger.Debug("active connections resolved", "count", len(active))

	definitions := c.promptDefinitions()

	c.systemPrompt = c.composeSystemSection(
		connectionsBanner(active, c.authkit),
		definitionsBanner(definitions),
	)

	c.initialized.Store(true)
	c.logger.Info("pica client initialization complete",
		"connections", len(active),
		"definitions", len(definitions))
	return nil
}

// Initialized reports whether Initialize has completed.
func (c *Client) Initialized() bool {
	return c.initialized.Load()
}

// Connections returns a copy of the loaded connection registry.
func (c *Client) Connections() []Connection {
	out := make([]Connection, len(c.connections))
	copy(out, c.connections)
	return out
}

// ConnectionDefinitions returns a copy of the loaded definitions.
func (c *Client) ConnectionDefinitions() []ConnectionDefinition {
	out := make([]ConnectionDefinition, len(c.connectionDefinitions))
	copy(out, c.connectionDefinitions)
	return out
}

// SystemPrompt returns the current system section. Before Initialize it is
// the template over a loading placeholder.
func (c *Client) SystemPrompt() string {
	return c.systemPrompt
}

// BaseURL returns the API base URL the client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// AuthKit reports whether the client runs in AuthKit mode.
func (c *Client) AuthKit() bool {
	return c.authkit
}

// containsWildcard reports whether the connector filter asks for everything.
func containsWildcard(connectors []string) bool {
	for _, k := range connectors {
		if k == "*" {
			return true
		}
	}
	return false
}

// composeSystemSection renders the default or authkit template over the
// given summary blocks.
func (c *Client) composeSystemSection(connectionsInfo, platformsInfo string) string {
	if c.authkit {
		return authkitSystemSection(connectionsInfo, platformsInfo)
	}
	return defaultSystemSection(connectionsInfo, platformsInfo)
}

// promptDefinitions returns the definitions the system prompt may list:
// active, not deprecated, not hidden, and narrowed to the AuthKit platform
// allow-list when one is configured.
func (c *Client) promptDefinitions() []ConnectionDefinition {
	var out []ConnectionDefinition
	for _, def := range c.connectionDefinitions {
		if !def.Active || def.Deprecated || def.Hidden {
			continue
		}
		if c.authkit && len(c.authkitPlatforms) > 0 && !containsString(c.authkitPlatforms, def.Platform) {
			continue
		}
		out = append(out, def)
	}
	return out
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
