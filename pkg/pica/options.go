package pica

import (
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	pkgerrors "github.com/picahq/pica-go/pkg/errors"
	"github.com/picahq/pica-go/pkg/observability"
	"github.com/picahq/pica-go/pkg/tools/approval"
)

// Option is a functional option for Client construction. Options are applied
// once by New; the resulting configuration is immutable for the lifetime of
// the client.
type Option func(*Client) error

// identityTypes are the vault identity filter values the API accepts.
var identityTypes = map[string]struct{}{
	"user":         {},
	"team":         {},
	"organization": {},
	"project":      {},
}

// WithBaseURL overrides the default API base URL
// (https://api.picaos.com). A trailing slash is trimmed.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) error {
		if baseURL == "" {
			return &pkgerrors.ConfigError{Key: "base_url", Reason: "base URL cannot be empty"}
		}
		c.baseURL = strings.TrimSuffix(baseURL, "/")
		return nil
	}
}

// WithConnectors sets the connector-key filter. Only connections whose key
// appears in the list survive initialization. The wildcard "*" anywhere in
// the list loads every connection and disables key filtering. Entries
// containing glob metacharacters match as doublestar patterns. An empty list
// (the default) loads no connections at all.
func WithConnectors(keys ...string) Option {
	return func(c *Client) error {
		seen := make(map[string]struct{}, len(keys))
		filtered := make([]string, 0, len(keys))
		for _, k := range keys {
			if _, dup := seen[k]; dup {
				continue
			}
			seen[k] = struct{}{}
			filtered = append(filtered, k)
		}
		c.connectors = filtered
		return nil
	}
}

// WithIdentity filters the connections fetch to one identity ID.
func WithIdentity(identity string) Option {
	return func(c *Client) error {
		c.identity = identity
		return nil
	}
}

// WithIdentityType filters the connections fetch by identity type. Valid
// types are user, team, organization, and project.
func WithIdentityType(identityType string) Option {
	return func(c *Client) error {
		if _, ok := identityTypes[identityType]; !ok {
			return &pkgerrors.ConfigError{
				Key:    "identity_type",
				Reason: "must be one of: user, team, organization, project",
			}
		}
		c.identityType = identityType
		return nil
	}
}

// WithAuthKit enables AuthKit mode: the client exposes the
// promptToConnectPlatform surface and the system prompt lists the platforms
// users may connect. When platforms are given they narrow the displayed
// connection definitions to that allow-list; with none, every active
// definition is listed.
func WithAuthKit(platforms ...string) Option {
	return func(c *Client) error {
		c.authkit = true
		c.authkitPlatforms = append([]string(nil), platforms...)
		return nil
	}
}

// WithPermissions sets the execution permission level. Read permits only
// GET, write permits everything but DELETE, admin (the default) permits all.
// Denials surface as failure envelopes from ExecuteAction, never as errors.
func WithPermissions(p Permissions) Option {
	return func(c *Client) error {
		switch p {
		case PermissionsRead, PermissionsWrite, PermissionsAdmin:
			c.permissions = p
			return nil
		default:
			return &pkgerrors.ConfigError{
				Key:    "permissions",
				Reason: "must be one of: read, write, admin",
			}
		}
	}
}

// WithHTTPClient replaces the default HTTP client. Tests use this together
// with WithBaseURL to point the client at an httptest server.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		if hc == nil {
			return &pkgerrors.ConfigError{Key: "http_client", Reason: "http client cannot be nil"}
		}
		c.hc = hc
		return nil
	}
}

// WithLogger sets the structured logger. The default discards nothing: it is
// slog.Default.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		if logger == nil {
			return &pkgerrors.ConfigError{Key: "logger", Reason: "logger cannot be nil"}
		}
		c.logger = logger
		return nil
	}
}

// WithApprover installs a confirmation hook consulted before every
// passthrough dispatch. A denial turns into a failure envelope before any
// network traffic for that execution.
func WithApprover(a approval.Approver) Option {
	return func(c *Client) error {
		c.approver = a
		return nil
	}
}

// WithTransform applies a jq expression to the decoded passthrough response
// before it is enveloped. The expression is validated at construction time.
func WithTransform(expression string) Option {
	return func(c *Client) error {
		if err := c.transformer.Validate(expression); err != nil {
			return &pkgerrors.ConfigError{Key: "transform", Reason: "invalid jq expression", Cause: err}
		}
		c.transform = expression
		return nil
	}
}

// WithRateLimit installs a client-side token bucket in front of passthrough
// dispatch. Off by default; listing and knowledge fetches are never limited.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		if rps <= 0 || burst <= 0 {
			return &pkgerrors.ConfigError{Key: "rate_limit", Reason: "rps and burst must be positive"}
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithTracer sets the tracer used to wrap each execution in a span. The
// default is a no-op.
func WithTracer(tracer observability.Tracer) Option {
	return func(c *Client) error {
		if tracer == nil {
			return &pkgerrors.ConfigError{Key: "tracer", Reason: "tracer cannot be nil"}
		}
		c.tracer = tracer
		return nil
	}
}

// WithMetrics sets the execution metrics recorder. The default records
// nothing.
func WithMetrics(rec MetricsRecorder) Option {
	return func(c *Client) error {
		c.metrics = rec
		return nil
	}
}

// WithAuditSink sets the sink that receives one audit record per execution.
// The default persists nothing.
func WithAuditSink(sink AuditSink) Option {
	return func(c *Client) error {
		c.audit = sink
		return nil
	}
}
