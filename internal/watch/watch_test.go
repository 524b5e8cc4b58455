package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type recorder struct {
	mu     sync.Mutex
	events map[string][]string
}

func (r *recorder) handle(path, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events[path] = append(r.events[path], text)
}

func (r *recorder) get(path string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.events[path]...)
}

func TestWatcher_ReportsSettledContent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "main.go")
	other := filepath.Join(dir, "other.go")
	require.NoError(t, os.WriteFile(target, []byte("v0"), 0o644))

	rec := &recorder{events: map[string][]string{}}
	w, err := New(rec.handle, 30*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, w.Add(target, "v0"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w.Start(ctx)
	defer w.Stop()

	for _, v := range []string{"v1", "v2", "v3"} {
		require.NoError(t, os.WriteFile(target, []byte(v), 0o644))
	}
	require.NoError(t, os.WriteFile(other, []byte("ignored"), 0o644))

	require.Eventually(t, func() bool { return len(rec.get(target)) > 0 }, 3*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{"v3"}, rec.get(target), "rapid writes collapse into one event")
	assert.Empty(t, rec.get(other))
}

func TestWatcher_SkipsUnchangedContent(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "notes.txt")
	require.NoError(t, os.WriteFile(target, []byte("same"), 0o644))

	rec := &recorder{events: map[string][]string{}}
	w, err := New(rec.handle, 20*time.Millisecond, nil)
	require.NoError(t, err)
	require.NoError(t, w.Add(target, "same"))
	w.Start(context.Background())

	require.NoError(t, os.WriteFile(target, []byte("same"), 0o644))
	time.Sleep(150 * time.Millisecond)
	w.Stop()

	assert.Empty(t, rec.get(target))
}

func TestWatcher_StopWithoutStart(t *testing.T) {
	w, err := New(func(string, string) {}, 0, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.debounceDur)
	w.Stop()
}
