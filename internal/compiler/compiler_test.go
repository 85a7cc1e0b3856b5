package compiler

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhaig/flowgraph/internal/flow"
)

const service = `import ballerina/http;

final int MAX = 4;

listener http:Listener ep = new (9090);

final http:Client api = check new ("https://example.com");

function double(int x) returns int => x * 2;

function summarize(string s) returns string = @np:NaturalFunction external;

function main() returns error? {
    int y = double(2);
    string t = summarize("text");
    retry(MAX) {
        json r = check api->/users.get();
    }
}

service /api on ep {
    final http:Client backend = check new ("https://backend.example.com");

    resource function get users/[string id]() returns string {
        return id;
    }
}
`

func newPipeline(t *testing.T) *Pipeline {
	t.Helper()
	p, err := New(Options{})
	require.NoError(t, err)
	return p
}

func nodeKinds(nodes []*flow.FlowNode) []flow.NodeKind {
	out := make([]flow.NodeKind, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, n.Kind())
	}
	return out
}

func TestLowerSource(t *testing.T) {
	p := newPipeline(t)
	doc, err := p.LowerSource(context.Background(), "main.bal", service)
	require.NoError(t, err)
	assert.Equal(t, "main.bal", doc.File)

	assert.Equal(t, []flow.NodeKind{flow.Variable, flow.NewConnection, flow.NewConnection, flow.NewConnection},
		nodeKinds(doc.Connections))
	backend := doc.Connections[3]
	scope, ok := backend.Property(flow.KeyScope)
	require.True(t, ok)
	assert.Equal(t, "Service", scope.Value)

	require.Len(t, doc.Functions, 2)
	main := doc.Functions[0]
	assert.Equal(t, "main", main.Name)
	assert.Equal(t, "function", main.Kind)
	assert.Equal(t, []flow.NodeKind{flow.Start, flow.DataMapperCall, flow.NPFunctionCall, flow.Retry},
		nodeKinds(main.Nodes))

	retry := main.Nodes[3]
	count, ok := retry.Property(flow.KeyRetryCount)
	require.True(t, ok)
	assert.Equal(t, 4, count.Value)

	res := doc.Functions[1]
	assert.Equal(t, "service /api.get users/[id]", res.Name)
	assert.Equal(t, "resource", res.Kind)
	assert.Equal(t, []flow.NodeKind{flow.Start, flow.Return}, nodeKinds(res.Nodes))

	for _, fn := range doc.Functions {
		assert.Empty(t, flow.Validate(fn.Nodes), fn.Name)
		assert.Empty(t, flow.ValidateSource(fn.Nodes, service), fn.Name)
	}
	assert.Positive(t, p.LibrariesLoaded())
}

func TestLowerSourceSyntaxError(t *testing.T) {
	p := newPipeline(t)
	_, err := p.LowerSource(context.Background(), "bad.bal", "function main( {")
	require.ErrorIs(t, err, ErrSyntax)
	assert.Contains(t, err.Error(), "bad.bal")
}

func TestLowerSourceKeepsDiagnostics(t *testing.T) {
	p := newPipeline(t)
	doc, err := p.LowerSource(context.Background(), "main.bal", `function main() {
    int z = missing;
}
`)
	require.NoError(t, err)
	assert.NotEmpty(t, doc.Diagnostics)
	require.Len(t, doc.Functions, 1)
	require.Len(t, doc.Functions[0].Nodes, 2)
	assert.NotEmpty(t, doc.Functions[0].Nodes[1].Diagnostics)
}

func TestLowerSourceClassMethods(t *testing.T) {
	p := newPipeline(t)
	doc, err := p.LowerSource(context.Background(), "counter.bal", `class Counter {
    int n = 0;

    function init() {
        self.n = 1;
    }

    function inc() {
        self.n = self.n + 1;
    }
}
`)
	require.NoError(t, err)
	require.Len(t, doc.Functions, 2)
	assert.Equal(t, "Counter.init", doc.Functions[0].Name)
	assert.Equal(t, "init", doc.Functions[0].Kind)
	assert.Equal(t, "Counter.inc", doc.Functions[1].Name)
	assert.Equal(t, "method", doc.Functions[1].Kind)
	assert.Equal(t, []flow.NodeKind{flow.Start, flow.Assign}, nodeKinds(doc.Functions[1].Nodes))
}

func TestLowerFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "main.bal")
	require.NoError(t, os.WriteFile(path, []byte("function main() {\n    int x = 1;\n}\n"), 0o644))

	p := newPipeline(t)
	doc, err := p.LowerFile(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, path, doc.File)
	require.Len(t, doc.Functions, 1)

	_, err = p.LowerFile(context.Background(), filepath.Join(dir, "missing.bal"))
	assert.Error(t, err)
}

func TestLowerProject(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("main.bal", "function main() {\n    int x = 1;\n}\n")
	write("modules/util/util.bal", "function helper() {\n    int y = 2;\n}\n")
	write("target/gen.bal", "function gen( {")

	p, err := New(Options{Workers: 2})
	require.NoError(t, err)
	docs, err := p.LowerProject(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, "main.bal", docs[0].File)
	assert.Equal(t, filepath.Join("modules", "util", "util.bal"), docs[1].File)
	assert.Equal(t, "helper", docs[1].Functions[0].Name)

	write("broken.bal", "function broken( {")
	_, err = p.LowerProject(context.Background(), dir)
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestLowerProjectCancelled(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.bal"), []byte("function main() {\n}\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := newPipeline(t)
	_, err := p.LowerProject(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
}
