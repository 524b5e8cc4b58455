package nvim

import (
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/neovim/go-client/nvim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sokinpui/track.go/internal/engine"
)

const (
	waitFor = 5 * time.Second
	tick    = 20 * time.Millisecond
)

type harness struct {
	m    *Manager
	b    *Bridge
	e    *engine.Engine
	logs *observer.ObservedLogs
	doc  string
	buf  nvim.Buffer
}

// newHarness tracks a file in a headless Neovim against baseline.
func newHarness(t *testing.T, baseline, working string) *harness {
	t.Helper()
	if _, err := exec.LookPath("nvim"); err != nil {
		t.Skip("nvim not on PATH")
	}
	t.Setenv("NVIM", "")
	t.Setenv("NVIM_LISTEN_ADDRESS", "")

	// Handlers run on the client's goroutines, which may outlive the test
	// by a moment; an observer never writes through t.
	core, logs := observer.New(zap.DebugLevel)
	log := zap.New(core)

	m, err := New("", log)
	require.NoError(t, err)
	t.Cleanup(m.Close)
	require.False(t, m.Interactive())

	b, err := NewBridge(m, DefaultHighlights)
	require.NoError(t, err)
	t.Cleanup(b.Close)

	e := engine.New(b, engine.WithLogger(log))
	b.SetTarget(e)

	doc := filepath.Join(t.TempDir(), "doc.txt")
	text, err := b.Open(doc, working+"\n")
	require.NoError(t, err)
	require.Equal(t, working, text)

	e.OnWorkingTextChanged(doc, text)
	require.NoError(t, e.SetBaselineText(doc, baseline))
	require.NoError(t, e.OpenTracking(doc))

	b.mu.Lock()
	buf := b.buffers[doc]
	b.mu.Unlock()
	return &harness{m: m, b: b, e: e, logs: logs, doc: doc, buf: buf}
}

func (h *harness) text(t *testing.T) string {
	t.Helper()
	text, err := h.m.bufferText(h.buf)
	require.NoError(t, err)
	return text
}

func (h *harness) marks(t *testing.T) int {
	t.Helper()
	marks, err := h.m.nvim.BufferExtmarks(h.buf, h.b.ns, 0, -1, map[string]interface{}{})
	require.NoError(t, err)
	return len(marks)
}

// typeText rewrites the buffer the way a user would and waits for the engine
// to see it.
func (h *harness) typeText(t *testing.T, text string) {
	t.Helper()
	require.NoError(t, h.m.nvim.SetBufferLines(h.buf, 0, -1, true, toLines(text)))
	require.Eventually(t, func() bool {
		st, err := h.e.GetDocumentState(h.doc)
		return err == nil && st.WorkingText == text
	}, waitFor, tick)
}

func TestBridge_RenderDecoratesSpans(t *testing.T) {
	h := newHarness(t, "Hello world", "Hi world")

	assert.NotZero(t, h.marks(t))
	assert.ElementsMatch(t, []string{h.doc}, h.b.Documents())

	require.NoError(t, h.e.AcceptAll(h.doc))
	assert.Zero(t, h.marks(t))
}

func TestBridge_BufferEditsReachEngine(t *testing.T) {
	h := newHarness(t, "Hello world", "Hello world")
	assert.Empty(t, h.e.Spans(h.doc))

	h.typeText(t, "Hello world\nagain")

	spans := h.e.Spans(h.doc)
	require.Len(t, spans, 1)
	assert.Equal(t, "\nagain", spans[0].WorkingText)
	assert.NotZero(t, h.marks(t))
}

func TestBridge_RevertAndAcceptAtCursor(t *testing.T) {
	h := newHarness(t, "Hello world", "Hi world")
	h.typeText(t, "Hi world!")
	require.Len(t, h.e.Spans(h.doc), 2)

	h.b.onRevert(int(h.buf), 0, 0)
	assert.Equal(t, "Hello world!", h.text(t))
	st, err := h.e.GetDocumentState(h.doc)
	require.NoError(t, err)
	assert.Equal(t, "Hello world!", st.WorkingText)
	require.Len(t, st.Spans, 1)

	h.b.onAccept(int(h.buf), 0, 11)
	st, err = h.e.GetDocumentState(h.doc)
	require.NoError(t, err)
	assert.Equal(t, "Hello world!", st.BaselineText)
	assert.Empty(t, st.Spans)
	assert.Zero(t, h.marks(t))

	// Nothing under the cursor: reported in the editor, state untouched.
	h.b.onRevert(int(h.buf), 0, 3)
	assert.Equal(t, "Hello world!", h.text(t))
	failed := h.logs.FilterMessage("command failed").All()
	require.Len(t, failed, 1)
	assert.Equal(t, "revert", failed[0].ContextMap()["op"])
}

func TestBridge_WholeDocumentCommands(t *testing.T) {
	h := newHarness(t, "one two three", "ONE two THREE")

	h.b.onClear(int(h.buf), 0, 0)
	assert.Equal(t, "one two three", h.text(t))
	assert.Empty(t, h.e.Spans(h.doc))

	h.typeText(t, "one 2 three")
	h.b.onAcceptAll(int(h.buf), 0, 0)
	st, err := h.e.GetDocumentState(h.doc)
	require.NoError(t, err)
	assert.Equal(t, "one 2 three", st.BaselineText)
	assert.Empty(t, st.Spans)
}

func TestBridge_Done(t *testing.T) {
	h := newHarness(t, "a", "a")

	select {
	case <-h.b.Done():
		t.Fatal("done before the command ran")
	default:
	}
	h.b.onDone(0, 0, 0)
	h.b.onDone(0, 0, 0)
	select {
	case <-h.b.Done():
	case <-time.After(waitFor):
		t.Fatal("done not signalled")
	}
}

func TestBridge_ApplyPatchRejectsBadRange(t *testing.T) {
	h := newHarness(t, "abc", "abc")

	assert.Error(t, h.b.ApplyPatch(h.doc, 2, 9, "x"))
	assert.Error(t, h.b.ApplyPatch("missing.txt", 0, 0, "x"))

	require.NoError(t, h.b.ApplyPatch(h.doc, 1, 2, "é\nz"))
	assert.Equal(t, "aé\nzc", h.text(t))
}
