package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlagSet(cfg *Config) *pflag.FlagSet {
	fs := pflag.NewFlagSet("track", pflag.ContinueOnError)
	BindFlags(fs, cfg)
	BindNvimFlags(fs, cfg)
	BindReviewFlags(fs, cfg)
	return fs
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadLayersFileUnderFlags(t *testing.T) {
	path := writeConfig(t, `
extensions: [go, ".py"]
buffer: true
word_snap: false
diff_timeout: 2s
watch_debounce: 50ms
log_file: /tmp/track.log
highlights:
  added: TrackAdd
`)
	cfg := Default()
	fs := newFlagSet(cfg)
	require.NoError(t, fs.Parse([]string{"--config", path, "--extension", "js", "--log-file", "other.log"}))

	require.NoError(t, Load(cfg, fs))
	cfg.Normalize()

	assert.Equal(t, []string{".js"}, cfg.Extensions, "flag wins over file")
	assert.Equal(t, "other.log", cfg.LogFile)
	assert.True(t, cfg.Buffer)
	assert.True(t, cfg.NoWordSnap)
	assert.Equal(t, 2*time.Second, cfg.DiffTimeout)
	assert.Equal(t, 50*time.Millisecond, cfg.WatchDebounce)
	assert.Equal(t, Highlights{Added: "TrackAdd", Changed: "DiffChange", Deleted: "DiffDelete"}, cfg.Highlights)
}

func TestLoadFileOnly(t *testing.T) {
	path := writeConfig(t, "extensions: [go, \".py\"]\nyes: true\n")
	cfg := Default()
	cfg.ConfigFile = path

	require.NoError(t, Load(cfg, nil))
	cfg.Normalize()

	assert.Equal(t, []string{".go", ".py"}, cfg.Extensions)
	assert.True(t, cfg.Yes)
	assert.False(t, cfg.Buffer)
}

func TestLoadMissingDefaultFile(t *testing.T) {
	chdir(t, t.TempDir())
	cfg := Default()
	require.NoError(t, Load(cfg, nil))
	assert.Equal(t, Default(), cfg)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	cfg := Default()
	cfg.ConfigFile = filepath.Join(t.TempDir(), "absent.yaml")
	require.Error(t, Load(cfg, nil))
}

func TestLoadRejectsBadDuration(t *testing.T) {
	cfg := Default()
	cfg.ConfigFile = writeConfig(t, "diff_timeout: soon\n")
	require.ErrorContains(t, Load(cfg, nil), "diff_timeout")
}

func TestLoggerWithoutFileIsNop(t *testing.T) {
	logger, err := Default().Logger()
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(-1))
}

func TestLoggerWritesToFile(t *testing.T) {
	cfg := Default()
	cfg.LogFile = filepath.Join(t.TempDir(), "track.log")
	cfg.Verbose = true

	logger, err := cfg.Logger()
	require.NoError(t, err)
	logger.Debug("opened")
	_ = logger.Sync()

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"opened"`)
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
