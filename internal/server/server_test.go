package server

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhaig/flowgraph/internal/compiler"
)

const source = `function main() {
    int x = 1;
    if x > 0 {
        x = 2;
    }
}
`

func connect(t *testing.T) *mcp.ClientSession {
	t.Helper()
	ctx := context.Background()
	p, err := compiler.New(compiler.Options{})
	require.NoError(t, err)
	srv := New(p, "test", nil)

	ct, st := mcp.NewInMemoryTransports()
	_, err = srv.Connect(ctx, st)
	require.NoError(t, err)

	client := mcp.NewClient(&mcp.Implementation{Name: "client", Version: "test"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *mcp.ClientSession, name string, args map[string]any) (string, bool) {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok)
	return text.Text, res.IsError
}

func TestLowerSourceTool(t *testing.T) {
	cs := connect(t)
	out, isErr := callTool(t, cs, "lower_source", map[string]any{"file_name": "main.bal", "source": source})
	require.False(t, isErr, out)

	var doc struct {
		File      string `json:"file"`
		Functions []struct {
			Name string `json:"name"`
		} `json:"functions"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, "main.bal", doc.File)
	require.Len(t, doc.Functions, 1)
	assert.Equal(t, "main", doc.Functions[0].Name)
}

func TestLowerSourceToolQuery(t *testing.T) {
	cs := connect(t)
	out, isErr := callTool(t, cs, "lower_source", map[string]any{
		"source": source,
		"query":  "[.functions[0].nodes[].codedata.node]",
	})
	require.False(t, isErr, out)

	var kinds []string
	require.NoError(t, json.Unmarshal([]byte(out), &kinds))
	assert.Equal(t, []string{"START", "VARIABLE", "IF"}, kinds)
}

func TestLowerSourceToolErrors(t *testing.T) {
	cs := connect(t)

	out, isErr := callTool(t, cs, "lower_source", map[string]any{"source": "function main( {"})
	assert.True(t, isErr)
	assert.Contains(t, out, "Lowering failed")

	out, isErr = callTool(t, cs, "lower_source", map[string]any{"source": source, "query": ".["})
	assert.True(t, isErr)
	assert.Contains(t, out, "Query failed")
}

func TestLowerFileAndProjectTools(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.bal")
	require.NoError(t, os.WriteFile(path, []byte(source), 0o644))
	cs := connect(t)

	out, isErr := callTool(t, cs, "lower_file", map[string]any{"path": path, "query": ".functions | length"})
	require.False(t, isErr, out)
	assert.Equal(t, "1", out)

	out, isErr = callTool(t, cs, "lower_project", map[string]any{"root": dir, "query": "[.[].file]"})
	require.False(t, isErr, out)
	var files []string
	require.NoError(t, json.Unmarshal([]byte(out), &files))
	assert.Equal(t, []string{"main.bal"}, files)

	out, isErr = callTool(t, cs, "lower_file", map[string]any{"path": filepath.Join(dir, "missing.bal")})
	assert.True(t, isErr)
	assert.Contains(t, out, "Lowering failed")
}

func TestResources(t *testing.T) {
	cs := connect(t)
	ctx := context.Background()

	guide, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: guideURI})
	require.NoError(t, err)
	require.Len(t, guide.Contents, 1)
	assert.Contains(t, guide.Contents[0].Text, "lower_source")

	schema, err := cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: schemaPrefix + "lower_file"})
	require.NoError(t, err)
	require.Len(t, schema.Contents, 1)
	assert.Contains(t, schema.Contents[0].Text, `"path"`)

	_, err = cs.ReadResource(ctx, &mcp.ReadResourceParams{URI: schemaPrefix + "nope"})
	assert.Error(t, err)
}

func TestBuildSchemaMap(t *testing.T) {
	m := buildSchemaMap()
	assert.Len(t, m, 3)
	for name, schema := range m {
		var v map[string]any
		require.NoError(t, json.Unmarshal([]byte(schema), &v), name)
		assert.Equal(t, "object", v["type"], name)
	}
}
