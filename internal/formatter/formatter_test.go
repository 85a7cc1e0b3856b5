package formatter

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhaig/flowgraph/internal/compiler"
	"github.com/lhaig/flowgraph/internal/flow"
)

func lowerSource(t *testing.T, src string) *compiler.Document {
	t.Helper()
	p, err := compiler.New(compiler.Options{})
	require.NoError(t, err)
	doc, err := p.LowerSource(context.Background(), "main.bal", src)
	require.NoError(t, err)
	return doc
}

func TestOutline(t *testing.T) {
	doc := lowerSource(t, `import ballerina/http;

final http:Client api = check new ("https://example.com");

function main(int n) returns error? {
    if n > 0 {
        json r = check api->get("/users");
    } else {
        // nothing
    }
}
`)
	out := Outline(doc, Options{})
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")

	assert.Equal(t, "main.bal", lines[0])
	assert.Contains(t, out, "\nconnections\n    NEW_CONNECTION http:Client.init {checked,final} [")
	assert.Contains(t, out, "\nfunction main\n    START [")
	assert.Contains(t, out, "\n    IF [")
	assert.Contains(t, out, "\n        Then (CONDITIONAL)\n            REMOTE_ACTION_CALL http:Client.get {checked} [")
	assert.Contains(t, out, "\n        Else (BLOCK)\n            COMMENT [")
	assert.NotContains(t, out, " = ")
}

func TestOutlineProperties(t *testing.T) {
	doc := lowerSource(t, `function main() {
    int[] xs = [1, 2];
    worker A {
    }
    worker B {
    }
    wait {a: A, b: B};
}
`)
	out := Outline(doc, Options{Properties: true})
	assert.Contains(t, out, "variable = xs")
	assert.Contains(t, out, "expression = [1, 2]")
	assert.Contains(t, out, "futures:\n")
	assert.Contains(t, out, "a = A")
	assert.Contains(t, out, "waitAll = true")
	assert.Contains(t, out, "A (WORKER)")
}

func TestOutlineHiddenProperties(t *testing.T) {
	doc := lowerSource(t, `import ballerina/http;

final http:Client api = check new ("https://example.com");
`)
	assert.NotContains(t, Outline(doc, Options{Properties: true}), "scope = Global")
	assert.Contains(t, Outline(doc, Options{Properties: true, Hidden: true}), "scope = Global")
}

func TestOutlineDiagnostics(t *testing.T) {
	doc := lowerSource(t, `function main() {
    int z = missing;
}
`)
	out := Outline(doc, Options{})
	assert.Contains(t, out, "diagnostics (")
	assert.Contains(t, out, "undefined symbol 'missing'")
	assert.Contains(t, out, "VARIABLE [")
	assert.Contains(t, out, " !")
}

func TestFormatValue(t *testing.T) {
	m := flow.NewMapping()
	m.Set("b", "2")
	m.Set("a", "1")

	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "<none>"},
		{"string", "x + 1", "x + 1"},
		{"list", []string{"1", "2"}, "[1, 2]"},
		{"empty list", []string{}, "[]"},
		{"mapping keeps order", m, "{b: 2, a: 1}"},
		{"number", 3, "3"},
		{"flag", true, "true"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, formatValue(tt.in))
		})
	}
}

func TestNodes(t *testing.T) {
	doc := lowerSource(t, "function main() {\n    int x = 1;\n}\n")
	out := Nodes(doc.Functions[0].Nodes, Options{})
	assert.True(t, strings.HasPrefix(out, "START ["))
	assert.Contains(t, out, "\nVARIABLE [")
}
