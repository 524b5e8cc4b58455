package source

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetContent_PipedInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stdin")
	require.NoError(t, os.WriteFile(path, []byte("agent output"), 0o644))
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	sp := &SourceProvider{stdin: f, clipboard: func() (string, error) {
		t.Fatal("clipboard must not be read when input is piped")
		return "", nil
	}}
	content, err := sp.GetContent()
	require.NoError(t, err)
	assert.Equal(t, "agent output", content)
}

func TestGetContent_Clipboard(t *testing.T) {
	sp := &SourceProvider{clipboard: func() (string, error) { return "copied", nil }}
	content, err := sp.GetContent()
	require.NoError(t, err)
	assert.Equal(t, "copied", content)

	sp.clipboard = func() (string, error) { return "  \n", nil }
	content, err = sp.GetContent()
	require.NoError(t, err)
	assert.Empty(t, content)

	sp.clipboard = func() (string, error) { return "", errors.New("no xclip") }
	_, err = sp.GetContent()
	assert.ErrorContains(t, err, "no xclip")
}
