package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/lhaig/flowgraph/internal/logging"
)

// Arguments structs

type LowerSourceArgs struct {
	FileName string `json:"file_name,omitempty" jsonschema:"Name the source is reported under in line ranges"`
	Source   string `json:"source" jsonschema:"The source text to lower"`
	Query    string `json:"query,omitempty" jsonschema:"Optional jq expression applied to the result"`
}

type LowerFileArgs struct {
	Path  string `json:"path" jsonschema:"Path of the file to lower"`
	Query string `json:"query,omitempty" jsonschema:"Optional jq expression applied to the result"`
}

type LowerProjectArgs struct {
	Root  string `json:"root" jsonschema:"Directory whose source files are lowered"`
	Query string `json:"query,omitempty" jsonschema:"Optional jq expression applied to the result"`
}

func (s *Server) registerTools() {
	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "lower_source",
		Description: "Lowers source text into flow graphs",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args LowerSourceArgs) (*mcp.CallToolResult, any, error) {
		name := args.FileName
		if name == "" {
			name = "main.bal"
		}
		ctx = logging.WithFile(ctx, name)
		doc, err := s.pipeline.LowerSource(ctx, name, args.Source)
		if err != nil {
			logging.LogWith(ctx, s.log).Warn("lower_source failed", "error", err)
			return errorResult(fmt.Sprintf("Lowering failed: %v", err)), nil, nil
		}
		return s.render(ctx, doc, args.Query), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "lower_file",
		Description: "Lowers a source file into flow graphs",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args LowerFileArgs) (*mcp.CallToolResult, any, error) {
		if args.Path == "" {
			return errorResult("path is required"), nil, nil
		}
		ctx = logging.WithFile(ctx, args.Path)
		doc, err := s.pipeline.LowerFile(ctx, args.Path)
		if err != nil {
			logging.LogWith(ctx, s.log).Warn("lower_file failed", "error", err)
			return errorResult(fmt.Sprintf("Lowering failed: %v", err)), nil, nil
		}
		return s.render(ctx, doc, args.Query), nil, nil
	})

	mcp.AddTool(s.mcpServer, &mcp.Tool{
		Name:        "lower_project",
		Description: "Lowers every source file under a directory",
	}, func(ctx context.Context, req *mcp.CallToolRequest, args LowerProjectArgs) (*mcp.CallToolResult, any, error) {
		if args.Root == "" {
			return errorResult("root is required"), nil, nil
		}
		docs, err := s.pipeline.LowerProject(ctx, args.Root)
		if err != nil {
			s.log.Warn("lower_project failed", "root", args.Root, "error", err)
			return errorResult(fmt.Sprintf("Lowering failed: %v", err)), nil, nil
		}
		return s.render(ctx, docs, args.Query), nil, nil
	})
}

// render encodes v, applying the jq expression when one is given.
func (s *Server) render(ctx context.Context, v any, expression string) *mcp.CallToolResult {
	if expression != "" {
		out, err := s.query.Run(ctx, expression, v)
		if err != nil {
			return errorResult(fmt.Sprintf("Query failed: %v", err))
		}
		v = out
	}
	jsonBytes, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("Encoding failed: %v", err))
	}
	return textResult(string(jsonBytes))
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}
}
