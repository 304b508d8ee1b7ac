// Package mcp exposes the bus to MCP clients. Tools, resources and
// prompts all route into the same core façade as the REST surface;
// the package serves them over SSE and over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"os"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"agentbus/pkg/config"
	"agentbus/pkg/core"
	"agentbus/pkg/logger"
	"agentbus/pkg/model"
	"agentbus/pkg/version"
)

// Server wraps the MCP server with both transports.
type Server struct {
	mcp    *server.MCPServer
	api    *core.API
	config *config.Config
	logger *logger.Logger
}

// New creates the MCP server with every tool, resource and prompt
// registered.
func New(api *core.API, cfg *config.Config, log *logger.Logger) *Server {
	s := &Server{
		api:    api,
		config: cfg,
		logger: log,
	}

	m := server.NewMCPServer(
		"agentbus",
		version.GetVersion(),
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions),
	)
	s.mcp = m

	s.registerTools()
	s.registerResources()
	s.registerPrompts()
	return s
}

// SSEHandler returns the handler serving MCP over SSE. It is mounted on
// the shared HTTP listener.
func (s *Server) SSEHandler() http.Handler {
	return server.NewSSEServer(s.mcp,
		server.WithBaseURL(s.config.Server.BaseURL()),
	)
}

// ServeStdio runs the stdio transport until the client closes the pipe
// or ctx is cancelled.
func (s *Server) ServeStdio(ctx context.Context) error {
	return server.NewStdioServer(s.mcp).Listen(ctx, os.Stdin, os.Stdout)
}

const serverInstructions = `agentbus is a shared message bus for coding agents.
Threads hold ordered conversations; use msg_wait with your last seen seq
to long-poll for replies instead of polling msg_list. Register with
agent_register, keep your token, and heartbeat every few seconds to
stay visible to other agents.`

// jsonResult marshals v into a text tool result.
func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError("encoding result: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

// errResult renders a core error as a tool error carrying the kind.
func errResult(err error) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultError(string(model.KindOf(err)) + ": " + model.ReasonOf(err)), nil
}
