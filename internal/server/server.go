// Package server exposes SmartThings device control as MCP tools over stdio.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/asleep-ai/smartthings-mcp/internal/oauth"
	"github.com/asleep-ai/smartthings-mcp/internal/smartthings"
)

// API is the subset of the SmartThings client the tool handlers need.
// Narrowing it keeps the handlers testable against a fake.
type API interface {
	ListDevices(ctx context.Context, capability string) ([]smartthings.Device, error)
	GetDeviceStatus(ctx context.Context, deviceID string) (*smartthings.DeviceStatus, error)
	ExecuteCommand(ctx context.Context, deviceID, capability, command string, arguments []interface{}) ([]smartthings.CommandResult, error)
	ListLocations(ctx context.Context) ([]smartthings.Location, error)
	ListRooms(ctx context.Context, locationID string) ([]smartthings.Room, error)
	ListScenes(ctx context.Context) ([]smartthings.Scene, error)
	ExecuteScene(ctx context.Context, sceneID string) error
}

// Server is the MCP server wrapping a SmartThings API client.
type Server struct {
	mcpServer *server.MCPServer
	api       API
}

// New creates the MCP server and registers all tools.
func New(api API, version string) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"smartthings-mcp",
			version,
			server.WithToolCapabilities(true),
		),
		api: api,
	}
	s.registerTools()
	return s
}

// ServeStdio runs the MCP protocol over stdin/stdout until the transport
// closes.
func (s *Server) ServeStdio() error {
	slog.Info("Starting MCP server on stdio")
	return server.ServeStdio(s.mcpServer)
}

// jsonResult marshals v as an indented JSON tool result.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// toolError turns client errors into messages an operator can act on. Tool
// failures are reported in-band so the MCP session stays alive.
func toolError(err error) (*mcp.CallToolResult, error) {
	if errors.Is(err, oauth.ErrReauthRequired) {
		return mcp.NewToolResultError("Not authorized with SmartThings. Run 'smartthings-mcp login' and try again."), nil
	}

	var apiErr *smartthings.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Kind {
		case smartthings.KindAuth:
			return mcp.NewToolResultError("SmartThings rejected the credential. Run 'smartthings-mcp login' and try again."), nil
		case smartthings.KindForbidden:
			return mcp.NewToolResultError(fmt.Sprintf("Access denied: %v. Check the granted scopes for this device.", apiErr)), nil
		case smartthings.KindNotFound:
			return mcp.NewToolResultError(fmt.Sprintf("Not found: %v. Check the device or scene ID with list_devices or list_scenes.", apiErr)), nil
		case smartthings.KindRateLimited:
			return mcp.NewToolResultError("SmartThings rate limit reached. Wait a moment and try again."), nil
		case smartthings.KindValidation:
			return mcp.NewToolResultError(fmt.Sprintf("SmartThings rejected the request: %v. The device may not support this capability or command.", apiErr)), nil
		}
	}
	return mcp.NewToolResultError(err.Error()), nil
}
