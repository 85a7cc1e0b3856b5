// Package server exposes the lowering pipeline as MCP tools.
package server

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lhaig/flowgraph/internal/compiler"
	"github.com/lhaig/flowgraph/internal/logging"
	"github.com/lhaig/flowgraph/internal/query"
)

// Name is the implementation name reported to clients.
const Name = "flowgraph"

// Server serves lowering requests over MCP.
type Server struct {
	mcpServer *mcp.Server
	pipeline  *compiler.Pipeline
	query     *query.Engine
	log       *slog.Logger
	guide     string
}

// New builds a server around pipeline.
func New(pipeline *compiler.Pipeline, version string, log *slog.Logger) *Server {
	if log == nil {
		log = logging.Discard()
	}
	s := &Server{
		pipeline: pipeline,
		query:    query.New(),
		log:      log,
		guide:    usageGuide,
	}
	s.mcpServer = mcp.NewServer(&mcp.Implementation{Name: Name, Version: version}, nil)
	s.registerTools()
	s.registerResources()
	return s
}

// Run serves on stdin and stdout until ctx is done or the client leaves.
func (s *Server) Run(ctx context.Context) error {
	s.log.Info("serving on stdio")
	return s.mcpServer.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session on t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.mcpServer.Connect(ctx, t, nil)
}

const usageGuide = `# flowgraph

Lowers source files into flow graphs: one START-rooted node list per
function, method and resource, plus the module and service level
connections.

Tools:

- lower_source: lower source text passed inline.
- lower_file: lower a file on disk.
- lower_project: lower every source file under a directory.

Every tool accepts an optional jq expression in "query" that is applied
to the JSON result, for example ".functions[].name" or
"[.. | objects | select(.codedata?.node == \"REMOTE_ACTION_CALL\")]".
`
