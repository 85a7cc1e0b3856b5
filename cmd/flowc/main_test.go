package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, root, rel, content string) string {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// isolate points the settings directory at an empty temp dir and clears
// the environment layer.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("FLOWC_HOME", t.TempDir())
	for _, k := range []string{"FLOWC_LOG_LEVEL", "FLOWC_CATALOG_DIR", "FLOWC_CATALOG_DB", "FLOWC_WORKERS", "FLOWC_FORCE_ASSIGN"} {
		t.Setenv(k, "")
	}
}

func runCmd(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), stderr.String(), err
}

const mainSource = `function main() {
    int x = 1;
    // done
}
`

func TestRunLower(t *testing.T) {
	isolate(t)
	path := writeTestFile(t, t.TempDir(), "main.bal", mainSource)

	out, stderr, err := runCmd(t, "lower", path)
	require.NoError(t, err, stderr)

	var doc struct {
		File      string `json:"file"`
		Functions []struct {
			Name  string            `json:"name"`
			Nodes []json.RawMessage `json:"nodes"`
		} `json:"functions"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	assert.Equal(t, path, doc.File)
	require.Len(t, doc.Functions, 1)
	assert.Len(t, doc.Functions[0].Nodes, 3)
}

func TestRunLowerQuery(t *testing.T) {
	isolate(t)
	path := writeTestFile(t, t.TempDir(), "main.bal", mainSource)

	out, stderr, err := runCmd(t, "lower", "--query", "[.functions[0].nodes[].codedata.node]", path)
	require.NoError(t, err, stderr)
	var kinds []string
	require.NoError(t, json.Unmarshal([]byte(out), &kinds))
	assert.Equal(t, []string{"START", "VARIABLE", "COMMENT"}, kinds)
}

func TestRunLowerDir(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	writeTestFile(t, dir, "main.bal", mainSource)
	writeTestFile(t, dir, "modules/util/util.bal", "function helper() {\n}\n")

	out, stderr, err := runCmd(t, "lower-dir", "--workers", "2", "--query", "[.[].functions[].name]", dir)
	require.NoError(t, err, stderr)
	var names []string
	require.NoError(t, json.Unmarshal([]byte(out), &names))
	assert.Equal(t, []string{"main", "helper"}, names)
}

func TestRunCheck(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	good := writeTestFile(t, dir, "good.bal", mainSource)
	bad := writeTestFile(t, dir, "bad.bal", "function main() {\n    int z = missing;\n}\n")

	out, _, err := runCmd(t, "check", good)
	require.NoError(t, err)
	assert.Contains(t, out, "OK")

	out, _, err = runCmd(t, "check", "--ast", good)
	require.NoError(t, err)
	assert.Contains(t, out, "Function: main")
	assert.Contains(t, out, "VarDecl: int x")

	out, _, err = runCmd(t, "check", bad)
	require.Error(t, err)
	assert.Contains(t, out, "undefined symbol 'missing'")
}

func TestRunCatalogAdd(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	db := filepath.Join(dir, "catalog.db")
	doc := writeTestFile(t, dir, "greet.json", `{
  "org": "acme",
  "name": "greet",
  "version": "1.0.0",
  "functions": [
    { "name": "hello", "params": [ { "name": "who", "kind": "REQUIRED", "type": "string" } ], "returns": "string" }
  ]
}`)
	src := writeTestFile(t, dir, "main.bal", `import acme/greet;

function main() {
    string s = greet:hello("you");
}
`)

	out, stderr, err := runCmd(t, "catalog", "add", "--catalog-db", db, doc)
	require.NoError(t, err, stderr)
	assert.Equal(t, "Stored acme/greet 1.0.0\n", out)

	t.Setenv("FLOWC_CATALOG_DB", db)
	out, stderr, err = runCmd(t, "lower", "--query", ".functions[0].nodes[1].codedata | [.node, .org, .module, .symbol]", src)
	require.NoError(t, err, stderr)
	var got []string
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"FUNCTION_CALL", "acme", "greet", "hello"}, got)

	_, _, err = runCmd(t, "catalog", "add", "--catalog-db", db, src)
	assert.Error(t, err)
}

func TestRunUsage(t *testing.T) {
	isolate(t)

	_, stderr, err := runCmd(t)
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, "Usage:")

	_, stderr, err = runCmd(t, "frobnicate")
	assert.ErrorIs(t, err, errUsage)
	assert.Contains(t, stderr, "Unknown command: frobnicate")

	out, _, err := runCmd(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "flowc "))

	_, _, err = runCmd(t, "lower")
	assert.Error(t, err)
}

func TestLoadConfigLayers(t *testing.T) {
	isolate(t)
	home := os.Getenv("FLOWC_HOME")
	writeTestFile(t, home, "settings.json", `{"log_level": "debug", "workers": 3, "catalog_dir": "/srv/catalog"}`)

	cfg, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "/srv/catalog", cfg.CatalogDir)
	assert.False(t, cfg.ForceAssign)

	t.Setenv("FLOWC_WORKERS", "5")
	t.Setenv("FLOWC_FORCE_ASSIGN", "1")
	cfg, err = loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Workers)
	assert.True(t, cfg.ForceAssign)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfigMalformed(t *testing.T) {
	isolate(t)
	writeTestFile(t, os.Getenv("FLOWC_HOME"), "settings.json", `{"workers": "many"}`)
	_, err := loadConfig()
	assert.Error(t, err)
}

func TestRunLowerOutline(t *testing.T) {
	isolate(t)
	path := writeTestFile(t, t.TempDir(), "main.bal", mainSource)

	out, stderr, err := runCmd(t, "lower", "--format", "outline", "--properties", path)
	require.NoError(t, err, stderr)
	assert.Contains(t, out, "function main\n    START [")
	assert.Contains(t, out, "variable = x")

	_, _, err = runCmd(t, "lower", "--format", "outline", "--query", ".", path)
	assert.Error(t, err)

	_, _, err = runCmd(t, "lower", "--format", "yaml", path)
	assert.Error(t, err)
}
