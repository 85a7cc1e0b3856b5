package server

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	guideURI     = "flowgraph://usage-guidelines"
	schemaPrefix = "flowgraph://schemas/"
	schemaMIME   = "application/schema+json"
	markdownMIME = "text/markdown"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(&mcp.Resource{
		URI:         guideURI,
		Name:        "Usage Guidelines",
		Description: "How to call the flowgraph tools",
		MIMEType:    markdownMIME,
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: guideURI, MIMEType: markdownMIME, Text: s.guide},
			},
		}, nil
	})

	schemaMap := buildSchemaMap()

	s.mcpServer.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: schemaPrefix + "{tool_name}",
		Name:        "Tool Schema",
		Description: "JSON schema for the named tool's arguments",
		MIMEType:    schemaMIME,
	}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
		uri := req.Params.URI
		toolName := strings.TrimPrefix(uri, schemaPrefix)
		schemaJSON, ok := schemaMap[toolName]
		if !ok {
			return nil, fmt.Errorf("unknown tool schema: %q", toolName)
		}
		return &mcp.ReadResourceResult{
			Contents: []*mcp.ResourceContents{
				{URI: uri, MIMEType: schemaMIME, Text: schemaJSON},
			},
		}, nil
	})
}

// buildSchemaMap maps tool names to the JSON schema of their arguments.
func buildSchemaMap() map[string]string {
	m := make(map[string]string)
	addSchema[LowerSourceArgs](m, "lower_source")
	addSchema[LowerFileArgs](m, "lower_file")
	addSchema[LowerProjectArgs](m, "lower_project")
	return m
}

func addSchema[T any](m map[string]string, name string) {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		return
	}
	schemaJSON, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return
	}
	m[name] = string(schemaJSON)
}
