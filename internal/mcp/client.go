package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"
)

// Client wraps an MCP server connection and provides methods to interact with it.
type Client struct {
	// serverName is the unique identifier for this MCP server
	serverName string

	// client is the underlying MCP protocol client
	client *client.Client

	// capabilities tracks what features the server supports
	capabilities *ServerCapabilities

	// timeout is the default timeout for tool calls
	timeout time.Duration
}

// ClientConfig configures an MCP client connection.
type ClientConfig struct {
	// ServerName is the unique identifier for this server
	ServerName string

	// Transport selects the connection type: "stdio" (default) or "sse"
	Transport string

	// Command is the executable to run (stdio)
	Command string

	// Args are the command-line arguments (stdio)
	Args []string

	// Env are environment variables to pass to the server in KEY=VALUE
	// form. Values may reference the parent environment as ${VAR}.
	Env []string

	// URL is the server endpoint (sse)
	URL string

	// Headers are additional HTTP headers (sse)
	Headers map[string]string

	// Timeout is the default timeout for tool calls (defaults to 30s)
	Timeout time.Duration

	// ClientVersion is reported to the server during initialization
	ClientVersion string
}

// NewClient creates a new MCP client and establishes the connection. For
// stdio transports this starts the server process.
func NewClient(ctx context.Context, config ClientConfig) (*Client, error) {
	if config.ServerName == "" {
		return nil, fmt.Errorf("server name is required")
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	var mcpClient *client.Client
	switch config.Transport {
	case "", "stdio":
		if config.Command == "" {
			return nil, fmt.Errorf("command is required for stdio transport")
		}
		if err := validateCommand(config.Command); err != nil {
			return nil, err
		}
		for i, arg := range config.Args {
			if err := validateArg(arg); err != nil {
				return nil, fmt.Errorf("args[%d]: %w", i, err)
			}
		}

		c, err := client.NewStdioMCPClient(config.Command, expandEnv(config.Env), config.Args...)
		if err != nil {
			return nil, fmt.Errorf("failed to create MCP client: %w", err)
		}
		mcpClient = c
	case "sse":
		if config.URL == "" {
			return nil, fmt.Errorf("url is required for sse transport")
		}
		var opts []transport.ClientOption
		if len(config.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(config.Headers))
		}
		c, err := client.NewSSEMCPClient(config.URL, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create MCP client: %w", err)
		}
		mcpClient = c
	default:
		return nil, fmt.Errorf("invalid transport: %s (must be 'stdio' or 'sse')", config.Transport)
	}

	// Start the connection
	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	c := &Client{
		serverName: config.ServerName,
		client:     mcpClient,
		timeout:    timeout,
	}

	// Initialize the server (sends initialize request)
	if err := c.initialize(ctx, config.ClientVersion); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize MCP server: %w", err)
	}

	return c, nil
}

// initialize sends the initialize request to the MCP server.
func (c *Client) initialize(ctx context.Context, clientVersion string) error {
	if clientVersion == "" {
		clientVersion = "dev"
	}

	initReq := mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{
				// Minimal capabilities for tool usage
			},
			ClientInfo: mcp.Implementation{
				Name:    "pica",
				Version: clientVersion,
			},
		},
	}

	_, err := c.client.Initialize(ctx, initReq)
	if err != nil {
		return fmt.Errorf("initialize request failed: %w", err)
	}

	serverCaps := c.client.GetServerCapabilities()
	c.capabilities = &ServerCapabilities{}
	if serverCaps.Tools != nil {
		c.capabilities.Tools = &ToolsCapability{
			ListChanged: serverCaps.Tools.ListChanged,
		}
	}

	return nil
}

// ListTools retrieves the list of available tools from the MCP server.
func (c *Client) ListTools(ctx context.Context) ([]ToolDefinition, error) {
	result, err := c.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	tools := make([]ToolDefinition, len(result.Tools))
	for i, tool := range result.Tools {
		// Use RawInputSchema if available, otherwise marshal InputSchema
		var schemaBytes []byte
		if len(tool.RawInputSchema) > 0 {
			schemaBytes = tool.RawInputSchema
		} else {
			toolBytes, err := tool.MarshalJSON()
			if err != nil {
				return nil, fmt.Errorf("failed to marshal tool %s: %w", tool.Name, err)
			}
			var toolMap map[string]interface{}
			if err := json.Unmarshal(toolBytes, &toolMap); err != nil {
				return nil, fmt.Errorf("failed to unmarshal tool %s: %w", tool.Name, err)
			}
			if inputSchema, ok := toolMap["inputSchema"]; ok {
				schemaBytes, err = json.Marshal(inputSchema)
				if err != nil {
					return nil, fmt.Errorf("failed to marshal input schema for %s: %w", tool.Name, err)
				}
			}
		}

		tools[i] = ToolDefinition{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schemaBytes,
		}
	}

	return tools, nil
}

// CallTool executes an MCP tool with the given arguments.
func (c *Client) CallTool(ctx context.Context, req ToolCallRequest) (*ToolCallResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	mcpReq := mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      req.Name,
			Arguments: req.Arguments,
		},
	}

	result, err := c.client.CallTool(ctx, mcpReq)
	if err != nil {
		return nil, fmt.Errorf("tool call failed: %w", err)
	}

	response := &ToolCallResponse{
		IsError: result.IsError,
		Content: make([]ContentItem, len(result.Content)),
	}

	for i, content := range result.Content {
		response.Content[i] = convertContent(content)
	}

	return response, nil
}

// convertContent maps one MCP content value onto a ContentItem.
func convertContent(content mcp.Content) ContentItem {
	item := ContentItem{}

	if textContent, ok := mcp.AsTextContent(content); ok {
		item.Type = textContent.Type
		item.Text = textContent.Text
		return item
	}
	if imageContent, ok := mcp.AsImageContent(content); ok {
		item.Type = imageContent.Type
		item.Data = imageContent.Data
		item.MimeType = imageContent.MIMEType
		return item
	}

	// Fallback: marshal to JSON to extract fields
	contentBytes, err := json.Marshal(content)
	if err != nil {
		return item
	}
	var contentMap map[string]interface{}
	if err := json.Unmarshal(contentBytes, &contentMap); err != nil {
		return item
	}

	if contentType, ok := contentMap["type"].(string); ok {
		item.Type = contentType
	}
	if text, ok := contentMap["text"].(string); ok {
		item.Text = text
	}
	if data, ok := contentMap["data"].(string); ok {
		item.Data = data
	}
	if mimeType, ok := contentMap["mimeType"].(string); ok {
		item.MimeType = mimeType
	}

	return item
}

// Capabilities returns the server's capabilities.
func (c *Client) Capabilities() *ServerCapabilities {
	return c.capabilities
}

// ServerName returns the unique identifier for this server.
func (c *Client) ServerName() string {
	return c.serverName
}

// Close closes the connection to the MCP server and stops the process.
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}

	if err := c.client.Close(); err != nil {
		return fmt.Errorf("failed to close MCP client: %w", err)
	}

	return nil
}

// Ping checks if the server is still responsive.
func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx); err != nil {
		if err == io.EOF {
			return fmt.Errorf("server connection closed")
		}
		return fmt.Errorf("ping failed: %w", err)
	}

	return nil
}

// expandEnv resolves ${VAR} references in environment values against the
// parent process environment. Keys are never expanded.
func expandEnv(env []string) []string {
	if len(env) == 0 {
		return nil
	}

	out := make([]string, len(env))
	for i, entry := range env {
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 {
			out[i] = entry
			continue
		}
		out[i] = parts[0] + "=" + os.Expand(parts[1], os.Getenv)
	}
	return out
}

// shellInjectionPatterns are patterns that could indicate shell injection attempts.
var shellInjectionPatterns = []string{
	";", "&&", "||", "|", "`", "$(", "\n", "\r",
}

// validateArg validates a command argument for shell injection.
func validateArg(arg string) error {
	for _, pattern := range shellInjectionPatterns {
		if strings.Contains(arg, pattern) {
			return fmt.Errorf("argument contains potentially unsafe pattern %q", pattern)
		}
	}
	return nil
}

// validateCommand validates a command is safe to execute.
func validateCommand(cmd string) error {
	if cmd == "" {
		return fmt.Errorf("command is required")
	}

	if filepath.IsAbs(cmd) {
		info, err := os.Stat(cmd)
		if err != nil {
			if os.IsNotExist(err) {
				return fmt.Errorf("command not found: %s", cmd)
			}
			return fmt.Errorf("cannot access command: %w", err)
		}
		if info.IsDir() {
			return fmt.Errorf("command is a directory: %s", cmd)
		}
		if info.Mode()&0111 == 0 {
			return fmt.Errorf("command is not executable: %s", cmd)
		}
		return nil
	}

	if _, err := exec.LookPath(cmd); err != nil {
		return fmt.Errorf("command not found in PATH: %s", cmd)
	}

	return nil
}
