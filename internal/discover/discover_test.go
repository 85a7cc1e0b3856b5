package discover

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "main.bal", "function main() {}")
	writeFile(t, dir, "modules/db/db.bal", "function q() {}")
	writeFile(t, dir, "Ballerina.toml", "[package]")
	writeFile(t, dir, ".hidden.bal", "")

	files, err := Files(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.bal", filepath.Join("modules", "db", "db.bal")}, files)
}

func TestFilesSkipDirs(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, "main.bal", "")
	writeFile(t, dir, "target/gen.bal", "")
	writeFile(t, dir, "tests/main_test.bal", "")
	writeFile(t, dir, ".cache/x.bal", "")

	files, err := Files(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.bal"}, files)
}

func TestFilesGitignore(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	writeFile(t, dir, ".gitignore", "generated/\nscratch.bal\n")
	writeFile(t, dir, "main.bal", "")
	writeFile(t, dir, "scratch.bal", "")
	writeFile(t, dir, "generated/client.bal", "")

	files, err := Files(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"main.bal"}, files)
}
