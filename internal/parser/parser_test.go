package parser

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/track.go/internal/fs"
)

const agentOutput = "Here is the new helper.\n\n" +
	"`util/strings.go`\n\n" +
	"```go\npackage util\n\nfunc Upper(s string) string { return s }\n```\n\n" +
	"### `README.md`\n" +
	"```markdown\n# Title\n```\n\n" +
	"Run `go test ./...` afterwards.\n\n" +
	"```sh\ngo test ./...\n```\n\n" +
	"```diff\n--- a/main.go\n+++ b/main.go\n@@ -1,1 +1,1 @@\n-package main\n+package app\n```\n"

func TestExtractCodeBlocks(t *testing.T) {
	blocks, err := ExtractCodeBlocks([]byte(agentOutput))
	require.NoError(t, err)
	require.Len(t, blocks, 4)

	assert.Equal(t, "`util/strings.go`", blocks[0].Hint)
	assert.Equal(t, "go", blocks[0].Lang)
	assert.Equal(t, "package util\n\nfunc Upper(s string) string { return s }\n", blocks[0].Content)

	assert.Contains(t, blocks[1].Hint, "`README.md`")
	assert.Equal(t, "markdown", blocks[1].Lang)

	assert.Equal(t, "sh", blocks[2].Lang)
	assert.Equal(t, "diff", blocks[3].Lang)
}

func TestExtractPathFromHint(t *testing.T) {
	assert.Equal(t, "a/b.go", extractPathFromHint("Update `a/b.go` like so:"))
	assert.Equal(t, "", extractPathFromHint("Run `go test ./...`"))
	assert.Equal(t, "", extractPathFromHint("no path here"))
}

func TestHasAllowedExtension(t *testing.T) {
	assert.True(t, hasAllowedExtension("x.go", nil))
	assert.True(t, hasAllowedExtension("x.go", []string{".md", ".go"}))
	assert.False(t, hasAllowedExtension("x.py", []string{".go"}))
}

func TestCreatePlan(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))
	resolver, err := fs.NewPathResolver([]string{dir})
	require.NoError(t, err)

	plan, err := CreatePlan(agentOutput, resolver, nil)
	require.NoError(t, err)
	require.Len(t, plan.Changes, 3)

	byPath := map[string]string{}
	for _, c := range plan.Changes {
		byPath[c.Path] = c.Content
	}
	assert.Equal(t, "package app\n", byPath[filepath.Join(dir, "main.go")])
	assert.Equal(t, "# Title\n", byPath[filepath.Join(dir, "README.md")])
	assert.Contains(t, byPath[filepath.Join(dir, "util", "strings.go")], "func Upper")

	assert.Equal(t, "modify", plan.FileActions[filepath.Join(dir, "main.go")])
	assert.Equal(t, "create", plan.FileActions[filepath.Join(dir, "README.md")])
	assert.Contains(t, plan.DirsToCreate, filepath.Join(dir, "util"))
}

func TestCreatePlan_DiffOnly(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n"), 0o644))
	resolver, err := fs.NewPathResolver([]string{dir})
	require.NoError(t, err)

	plan, err := CreatePlan(agentOutput, resolver, []string{".diff"})
	require.NoError(t, err)
	require.Len(t, plan.Changes, 1)
	assert.Equal(t, "diff", plan.Changes[0].Source)
}

func TestExtractDiffBlocks(t *testing.T) {
	diffs, err := ExtractDiffBlocks(agentOutput)
	require.NoError(t, err)
	require.Len(t, diffs, 1)
	assert.Equal(t, "main.go", diffs[0].FilePath)
}
