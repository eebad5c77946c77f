package pica

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// API paths. Every request carries x-pica-secret; passthrough adds the
// connection key and action id headers (see execute.go).
const (
	connectionsPath           = "/v1/vault/connections"
	connectionDefinitionsPath = "/v1/public/connection-definitions"
	knowledgePath             = "/v1/knowledge"
	passthroughPath           = "/v1/passthrough"
)

const (
	headerSecret        = "x-pica-secret"
	headerConnectionKey = "x-pica-connection-key"
	headerActionID      = "x-pica-action-id"
)

// Page sizes the API expects on the two registry endpoints.
const (
	connectionsPageLimit = 300
	definitionsPageLimit = 500
)

// globChars marks a connector filter entry as a pattern rather than a
// literal key.
const globChars = "*?[{"

// apiHeaders returns the headers carried by registry and catalog requests.
func (c *Client) apiHeaders() http.Header {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set(headerSecret, c.secret)
	return h
}

// loadConnections fetches the caller's vault connections. A fetch failure
// degrades: the error is logged and an empty registry returned, so
// initialization completes either way.
func (c *Client) loadConnections(ctx context.Context) []Connection {
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", connectionsPageLimit))
	if c.identity != "" {
		params.Set("identity", c.identity)
	}
	if c.identityType != "" {
		params.Set("identityType", c.identityType)
	}

	page, err := fetchPage[Connection](ctx, c.hc, c.baseURL+connectionsPath, params, c.apiHeaders())
	if err != nil {
		c.logger.Warn("failed to load connections", "error", err)
		return nil
	}
	c.logger.Debug("loaded connections", "count", len(page.Rows), "total", page.Total)
	return page.Rows
}

// loadConnectionDefinitions fetches the public connection definitions.
// AuthKit mode tells the API so it can include AuthKit-only platforms.
// Failures degrade the same way as loadConnections.
func (c *Client) loadConnectionDefinitions(ctx context.Context) []ConnectionDefinition {
	params := url.Values{}
	params.Set("limit", fmt.Sprintf("%d", definitionsPageLimit))
	if c.authkit {
		params.Set("authkit", "true")
	}

	page, err := fetchPage[ConnectionDefinition](ctx, c.hc, c.baseURL+connectionDefinitionsPath, params, c.apiHeaders())
	if err != nil {
		c.logger.Warn("failed to load connection definitions", "error", err)
		return nil
	}
	c.logger.Debug("loaded connection definitions", "count", len(page.Rows))
	return page.Rows
}

// filterConnections keeps active connections matching the connector filter.
// An empty filter keeps every active connection (the wildcard case clears
// the filter before this runs).
func filterConnections(conns []Connection, connectors []string) []Connection {
	var out []Connection
	for _, conn := range conns {
		if !conn.Active {
			continue
		}
		if len(connectors) > 0 && !matchesConnector(conn.Key, connectors) {
			continue
		}
		out = append(out, conn)
	}
	return out
}

// matchesConnector reports whether key satisfies any filter entry. Entries
// containing glob metacharacters match as doublestar patterns (connection
// keys have no slashes, so patterns stay single-segment); anything else must
// match exactly.
func matchesConnector(key string, connectors []string) bool {
	for _, entry := range connectors {
		if strings.ContainsAny(entry, globChars) {
			if ok, err := doublestar.Match(entry, key); err == nil && ok {
				return true
			}
			continue
		}
		if entry == key {
			return true
		}
	}
	return false
}

// connectionsBanner renders the active-connections summary block fed to the
// system templates. Connections sort by platform then key so the prompt is
// stable across runs.
func connectionsBanner(conns []Connection, authkit bool) string {
	if len(conns) == 0 {
		if authkit {
			return "No connections available. Prompt the user to connect the platform they need (pica.prompt_to_connect_platform) before executing any actions."
		}
		return "No connections available"
	}

	sorted := make([]Connection, len(conns))
	copy(sorted, conns)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Platform != sorted[j].Platform {
			return sorted[i].Platform < sorted[j].Platform
		}
		return sorted[i].Key < sorted[j].Key
	})

	lines := make([]string, 0, len(sorted))
	for _, conn := range sorted {
		lines = append(lines, fmt.Sprintf("\t* %s - Key: %s", conn.Platform, conn.Key))
	}
	return strings.Join(lines, "\n")
}

// definitionsBanner renders the available-platforms summary block.
func definitionsBanner(defs []ConnectionDefinition) string {
	if len(defs) == 0 {
		return "No platforms available"
	}

	sorted := make([]ConnectionDefinition, len(defs))
	copy(sorted, defs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Platform < sorted[j].Platform
	})

	lines := make([]string, 0, len(sorted))
	for _, def := range sorted {
		lines = append(lines, fmt.Sprintf("\t* %s (%s)", def.Platform, def.Frontend.Spec.Title))
	}
	return strings.Join(lines, "\n")
}

// connectionForKey looks up an active connection by exact key among the
// loaded registry entries. The connector filter narrows the prompt listing,
// not this lookup, but inactive connections are never eligible to execute.
func (c *Client) connectionForKey(key string) (Connection, bool) {
	for _, conn := range c.connections {
		if conn.Key == key && conn.Active {
			return conn, true
		}
	}
	return Connection{}, false
}

// activePlatforms lists the distinct platforms of active connections, sorted.
func (c *Client) activePlatforms() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, conn := range c.connections {
		if !conn.Active {
			continue
		}
		if _, dup := seen[conn.Platform]; dup {
			continue
		}
		seen[conn.Platform] = struct{}{}
		out = append(out, conn.Platform)
	}
	sort.Strings(out)
	return out
}
