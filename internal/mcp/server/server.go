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

// Package server exposes the pica tool registry to MCP clients over stdio.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/picahq/pica-go/pkg/tools"
)

// Server wraps the MCP server and exposes registry tools
type Server struct {
	mcpServer   *server.MCPServer
	registry    *tools.Registry
	name        string
	version     string
	rateLimiter *RateLimiter
	logger      *slog.Logger
}

// Config configures the MCP server
type Config struct {
	// Name is the server name (default: "pica")
	Name string

	// Version is the pica version reported to clients
	Version string

	// Registry provides the tools to expose (required)
	Registry *tools.Registry

	// Logger is used for structured logging. It must not write to stdout,
	// which carries the MCP stdio protocol. Defaults to a stderr handler.
	Logger *slog.Logger

	// ExecutionsPerMinute caps pica.execute calls (default: 10)
	ExecutionsPerMinute int

	// CallsPerMinute caps total tool calls (default: 100)
	CallsPerMinute int
}

// NewServer creates a new MCP server instance
func NewServer(config Config) (*Server, error) {
	if config.Registry == nil {
		return nil, fmt.Errorf("registry is required")
	}
	if config.Name == "" {
		config.Name = "pica"
	}
	if config.Version == "" {
		config.Version = "dev"
	}
	if config.ExecutionsPerMinute == 0 {
		config.ExecutionsPerMinute = 10
	}
	if config.CallsPerMinute == 0 {
		config.CallsPerMinute = 100
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}

	// Create the underlying MCP server
	mcpServer := server.NewMCPServer(config.Name, config.Version)

	s := &Server{
		mcpServer:   mcpServer,
		registry:    config.Registry,
		name:        config.Name,
		version:     config.Version,
		rateLimiter: NewRateLimiter(config.ExecutionsPerMinute, config.CallsPerMinute),
		logger:      logger,
	}

	s.registerTools()

	return s, nil
}

// registerTools exposes every registry tool through the MCP server.
func (s *Server) registerTools() {
	for _, descriptor := range s.registry.GetToolDescriptors() {
		tool := mcp.Tool{
			Name:        descriptor.Name,
			Description: descriptor.Description,
			InputSchema: toInputSchema(descriptor.Schema),
		}
		s.mcpServer.AddTool(tool, s.createToolHandler(descriptor.Name))
	}
}

// toInputSchema converts a registry schema to the MCP input schema format.
func toInputSchema(schema *tools.Schema) mcp.ToolInputSchema {
	inputSchema := mcp.ToolInputSchema{
		Type:       "object",
		Properties: map[string]interface{}{},
	}

	if schema == nil || schema.Inputs == nil {
		return inputSchema
	}

	for name, prop := range schema.Inputs.Properties {
		propMap := map[string]interface{}{
			"type": prop.Type,
		}
		if prop.Description != "" {
			propMap["description"] = prop.Description
		}
		if len(prop.Enum) > 0 {
			propMap["enum"] = prop.Enum
		}
		if prop.Default != nil {
			propMap["default"] = prop.Default
		}
		if prop.Format != "" {
			propMap["format"] = prop.Format
		}
		inputSchema.Properties[name] = propMap
	}

	if len(schema.Inputs.Required) > 0 {
		inputSchema.Required = schema.Inputs.Required
	}

	return inputSchema
}

// createToolHandler creates an MCP tool handler that routes to the registry.
func (s *Server) createToolHandler(toolName string) func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !s.rateLimiter.AllowCall() {
			return errorResponse("Rate limit exceeded. Please try again later."), nil
		}

		// Executions draw from a tighter bucket than read-only calls
		if toolName == tools.ToolExecute {
			if !s.rateLimiter.AllowExecute() {
				return errorResponse("Rate limit exceeded for action execution. Please try again later."), nil
			}
		}

		args := request.GetArguments()
		if args == nil {
			args = map[string]interface{}{}
		}

		s.logger.Debug("executing tool",
			"tool", toolName,
			"args", len(args))

		result, err := s.registry.Execute(ctx, toolName, args)
		if err != nil {
			s.logger.Error("tool execution failed",
				"tool", toolName,
				"error", err)
			return errorResponse(fmt.Sprintf("Tool failed: %v", err)), nil
		}

		// A bare text result passes through unwrapped
		if len(result) == 1 {
			if text, ok := result["result"].(string); ok {
				return textResponse(text), nil
			}
		}

		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return errorResponse(fmt.Sprintf("Failed to encode result: %v", err)), nil
		}
		return textResponse(string(data)), nil
	}
}

// Run starts the MCP server using stdio transport
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("starting pica MCP server",
		slog.String("version", s.version),
		slog.Int("tools", len(s.registry.List())))

	// Serve via stdio
	if err := server.ServeStdio(s.mcpServer); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down pica MCP server")
	// The mcp-go server has no explicit shutdown method.
	// Returning from ServeStdio() is sufficient.
	return nil
}

// Helper function to create error response
func errorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

// Helper function to create success response
func textResponse(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(text),
		},
	}
}
