package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestDiffCommand(t *testing.T) {
	color.NoColor = true
	chdir(t, t.TempDir())
	require.NoError(t, os.WriteFile("base.txt", []byte("Hello world, test"), 0o644))
	require.NoError(t, os.WriteFile("work.txt", []byte("HELLO WORLD, test"), 0o644))

	out, err := execute(t, "diff", "base.txt", "work.txt")
	require.NoError(t, err)
	assert.Contains(t, out, `"Hello" -> "HELLO"`)
	assert.Contains(t, out, `"world" -> "WORLD"`)
}

func TestDiffCommandNeedsTwoFiles(t *testing.T) {
	_, err := execute(t, "diff", "only-one.txt")
	assert.Error(t, err)
}

func TestConfigFileIsRead(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".track.yaml"), []byte("diff_timeout: nonsense\n"), 0o644))

	_, err := execute(t, "diff", "a", "b")
	assert.ErrorContains(t, err, "diff_timeout")
}

// chdir changes the working directory for the rest of the test and restores
// it on cleanup, like testing.T.Chdir (Go 1.24+).
func chdir(t *testing.T, dir string) {
	t.Helper()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(old); err != nil {
			t.Fatal(err)
		}
	})
}
