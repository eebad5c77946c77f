// Package mcp connects pica to external Model Context Protocol servers.
//
// MCP defines a standard way for LLMs to interact with external tools. This
// package dials the servers declared in the CLI configuration (stdio or
// SSE), lists their tools, and bridges each one into the pica tool registry
// under a "<server>.<tool>" name, next to the built-in pica tools.
package mcp

import (
	"context"
	"encoding/json"
)

// ToolDefinition represents an MCP tool definition.
// Maps to the MCP protocol's Tool schema.
type ToolDefinition struct {
	// Name is the unique identifier for this tool
	Name string `json:"name"`

	// Description explains what the tool does
	Description string `json:"description"`

	// InputSchema defines the expected input parameters using JSON Schema
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolCallRequest represents a request to execute an MCP tool.
type ToolCallRequest struct {
	// Name is the tool to execute
	Name string `json:"name"`

	// Arguments contains the input parameters for the tool
	Arguments map[string]interface{} `json:"arguments"`
}

// ToolCallResponse represents the result of an MCP tool execution.
type ToolCallResponse struct {
	// Content contains the tool's output
	Content []ContentItem `json:"content"`

	// IsError indicates if the tool execution failed
	IsError bool `json:"isError,omitempty"`
}

// ContentItem represents a piece of content in an MCP response.
type ContentItem struct {
	// Type is the content type (text, image, resource)
	Type string `json:"type"`

	// Text is the text content (for type="text")
	Text string `json:"text,omitempty"`

	// Data is the base64-encoded data (for type="image")
	Data string `json:"data,omitempty"`

	// MimeType is the MIME type for binary content
	MimeType string `json:"mimeType,omitempty"`
}

// ServerCapabilities describes what features an MCP server supports.
// Only tool support matters to the loader; servers without it contribute
// nothing to the registry.
type ServerCapabilities struct {
	// Tools indicates if the server provides tools
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability describes tool-related capabilities.
type ToolsCapability struct {
	// ListChanged indicates if the server sends notifications when tools change
	ListChanged bool `json:"listChanged,omitempty"`
}

// ClientProvider defines the interface for interacting with an MCP client.
// This interface enables dependency injection and testing with mock implementations.
type ClientProvider interface {
	// ListTools retrieves the list of available tools from the MCP server.
	ListTools(ctx context.Context) ([]ToolDefinition, error)

	// CallTool executes an MCP tool with the given arguments.
	CallTool(ctx context.Context, req ToolCallRequest) (*ToolCallResponse, error)

	// Close closes the connection to the MCP server.
	Close() error

	// Ping checks if the server is still responsive.
	Ping(ctx context.Context) error

	// ServerName returns the unique identifier for this server.
	ServerName() string

	// Capabilities returns the server's capabilities.
	Capabilities() *ServerCapabilities
}
