package mcp

import (
	"go.uber.org/fx"
)

// Module is the fx module for the MCP surface. The SSE transport is
// mounted by the HTTP server; stdio is driven by the stdio command.
var Module = fx.Module("mcp",
	fx.Provide(New),
)
