package nvim

import (
	"errors"
	"fmt"
	"sync"

	"github.com/neovim/go-client/nvim"
	"go.uber.org/zap"

	"github.com/sokinpui/track.go/internal/engine"
	"github.com/sokinpui/track.go/internal/runes"
	"github.com/sokinpui/track.go/model"
)

const namespace = "track"

// Target receives buffer changes and resolves the commands run in Neovim.
// *engine.Engine satisfies it.
type Target interface {
	OnWorkingTextChanged(docID, text string)
	SpanAt(docID string, offset int) (model.Span, bool)
	Accept(docID, spanID string) error
	Revert(docID, spanID string) error
	AcceptAll(docID string) error
	ClearAll(docID string) error
}

// Bridge is an engine.Bridge over Neovim buffers. Document ids are absolute
// file paths.
type Bridge struct {
	m   *Manager
	ns  int
	hl  Highlights
	log *zap.Logger

	mu      sync.Mutex
	target  Target
	buffers map[string]nvim.Buffer
	docs    map[nvim.Buffer]string
	texts   map[string]string

	done     chan struct{}
	doneOnce sync.Once
}

var _ engine.Bridge = (*Bridge)(nil)

// command is a user command that notifies this process with the cursor
// position.
type command struct {
	name   string
	method string
}

var commands = []command{
	{"TrackAccept", "track_accept"},
	{"TrackRevert", "track_revert"},
	{"TrackAcceptAll", "track_accept_all"},
	{"TrackClear", "track_clear"},
	{"TrackDone", "track_done"},
}

// NewBridge registers the bridge's handlers and user commands on m.
func NewBridge(m *Manager, hl Highlights) (*Bridge, error) {
	b := &Bridge{
		m:       m,
		hl:      hl,
		log:     m.log,
		buffers: make(map[string]nvim.Buffer),
		docs:    make(map[nvim.Buffer]string),
		texts:   make(map[string]string),
		done:    make(chan struct{}),
	}

	ns, err := m.nvim.CreateNamespace(namespace)
	if err != nil {
		return nil, fmt.Errorf("create namespace: %w", err)
	}
	b.ns = ns

	handlers := map[string]interface{}{
		"nvim_buf_lines_event":  b.onLines,
		"nvim_buf_detach_event": b.onDetach,
		"track_accept":          b.onAccept,
		"track_revert":          b.onRevert,
		"track_accept_all":      b.onAcceptAll,
		"track_clear":           b.onClear,
		"track_done":            b.onDone,
	}
	for method, fn := range handlers {
		if err := m.nvim.RegisterHandler(method, fn); err != nil {
			return nil, fmt.Errorf("register %s: %w", method, err)
		}
	}

	ch := m.nvim.ChannelID()
	batch := m.nvim.NewBatch()
	for _, c := range commands {
		batch.Command(fmt.Sprintf("command! %s call rpcnotify(%d, '%s', bufnr('%%'), line('.') - 1, col('.') - 1)", c.name, ch, c.method))
	}
	if err := batch.Execute(); err != nil {
		return nil, fmt.Errorf("define commands: %w", err)
	}
	return b, nil
}

// SetTarget registers where buffer changes and commands go.
func (b *Bridge) SetTarget(t Target) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.target = t
}

// Done is closed when the user runs :TrackDone.
func (b *Bridge) Done() <-chan struct{} {
	return b.done
}

// Open loads the file content text into the buffer for docID and subscribes
// to its changes. It returns the text as the buffer holds it.
func (b *Bridge) Open(docID, text string) (string, error) {
	buf, err := b.m.loadBuffer(docID, Normalize(text))
	if err != nil {
		return "", err
	}
	current, err := b.m.bufferText(buf)
	if err != nil {
		return "", err
	}

	b.mu.Lock()
	_, attached := b.docs[buf]
	b.buffers[docID] = buf
	b.docs[buf] = docID
	b.texts[docID] = current
	b.mu.Unlock()

	if !attached {
		ok, err := b.m.nvim.AttachBuffer(buf, false, map[string]interface{}{})
		if err != nil {
			return "", fmt.Errorf("attach %s: %w", docID, err)
		}
		if !ok {
			return "", fmt.Errorf("attach %s: refused", docID)
		}
	}
	b.log.Debug("buffer opened", zap.String("doc", docID), zap.Int("buffer", int(buf)))
	return current, nil
}

// Documents returns the ids of every open document.
func (b *Bridge) Documents() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]string, 0, len(b.buffers))
	for id := range b.buffers {
		ids = append(ids, id)
	}
	return ids
}

// ApplyPatch implements engine.Bridge.
func (b *Bridge) ApplyPatch(docID string, from, to int, text string) error {
	b.mu.Lock()
	buf, ok := b.buffers[docID]
	current := b.texts[docID]
	b.mu.Unlock()
	if !ok {
		return fmt.Errorf("no buffer for %s", docID)
	}
	if from < 0 || to < from || to > runes.Len(current) {
		return fmt.Errorf("patch [%d,%d) out of range for %s", from, to, docID)
	}

	start := runes.ToPosition(current, from)
	end := runes.ToPosition(current, to)
	if err := b.m.nvim.SetBufferText(buf, start.Line, start.Col, end.Line, end.Col, toLines(text)); err != nil {
		return fmt.Errorf("set text in %s: %w", docID, err)
	}

	b.mu.Lock()
	b.texts[docID] = runes.Splice(current, from, to, text)
	b.mu.Unlock()
	return nil
}

// Render implements engine.Bridge. Commands resolve spans through the
// Target, so actions are not kept.
func (b *Bridge) Render(docID string, spans []model.Span, _ engine.Actions) {
	b.mu.Lock()
	buf, ok := b.buffers[docID]
	text := b.texts[docID]
	b.mu.Unlock()
	if !ok {
		return
	}

	batch := b.m.nvim.NewBatch()
	batch.ClearBufferNamespace(buf, b.ns, 0, -1)
	marks := buildMarks(spans, text, b.hl)
	ids := make([]int, len(marks))
	for i, mk := range marks {
		batch.SetBufferExtmark(buf, b.ns, mk.Line, mk.Col, mk.Opts, &ids[i])
	}
	if err := batch.Execute(); err != nil {
		b.log.Warn("render failed", zap.String("doc", docID), zap.Int("spans", len(spans)), zap.Error(err))
	}
}

func (b *Bridge) doc(buf nvim.Buffer) (string, Target, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.docs[buf]
	return id, b.target, ok && b.target != nil
}

func (b *Bridge) onLines(args ...interface{}) {
	if len(args) == 0 {
		return
	}
	buf, ok := args[0].(nvim.Buffer)
	if !ok {
		return
	}
	docID, target, ok := b.doc(buf)
	if !ok {
		return
	}
	text, err := b.m.bufferText(buf)
	if err != nil {
		b.log.Warn("reading buffer failed", zap.String("doc", docID), zap.Error(err))
		return
	}
	b.mu.Lock()
	b.texts[docID] = text
	b.mu.Unlock()
	target.OnWorkingTextChanged(docID, text)
}

func (b *Bridge) onDetach(args ...interface{}) {
	if len(args) == 0 {
		return
	}
	if buf, ok := args[0].(nvim.Buffer); ok {
		b.mu.Lock()
		if id, ok := b.docs[buf]; ok {
			delete(b.buffers, id)
			delete(b.docs, buf)
		}
		b.mu.Unlock()
	}
}

// spanUnderCursor asks the target for the span at the cursor.
func (b *Bridge) spanUnderCursor(buf, line, col int) (string, Target, model.Span, error) {
	b.mu.Lock()
	docID, ok := b.docs[nvim.Buffer(buf)]
	text := b.texts[docID]
	target := b.target
	b.mu.Unlock()
	if !ok || target == nil {
		return docID, nil, model.Span{}, errors.New("buffer is not tracked")
	}
	offset := runes.FromPosition(text, runes.Position{Line: line, Col: col})
	s, ok := target.SpanAt(docID, offset)
	if !ok {
		return docID, nil, model.Span{}, errors.New("no change under cursor")
	}
	return docID, target, s, nil
}

func (b *Bridge) onAccept(buf, line, col int) {
	docID, target, s, err := b.spanUnderCursor(buf, line, col)
	if err == nil {
		err = target.Accept(docID, s.ID)
	}
	b.report("accept", docID, err)
}

func (b *Bridge) onRevert(buf, line, col int) {
	docID, target, s, err := b.spanUnderCursor(buf, line, col)
	if err == nil {
		err = target.Revert(docID, s.ID)
	}
	b.report("revert", docID, err)
}

func (b *Bridge) onAcceptAll(buf, _, _ int) {
	docID, target, ok := b.doc(nvim.Buffer(buf))
	if !ok {
		b.report("accept all", docID, errors.New("buffer is not tracked"))
		return
	}
	b.report("accept all", docID, target.AcceptAll(docID))
}

func (b *Bridge) onClear(buf, _, _ int) {
	docID, target, ok := b.doc(nvim.Buffer(buf))
	if !ok {
		b.report("clear", docID, errors.New("buffer is not tracked"))
		return
	}
	b.report("clear", docID, target.ClearAll(docID))
}

func (b *Bridge) onDone(_, _, _ int) {
	b.doneOnce.Do(func() { close(b.done) })
}

// report echoes a failed command in the editor.
func (b *Bridge) report(op, docID string, err error) {
	if err == nil {
		return
	}
	b.log.Info("command failed", zap.String("op", op), zap.String("doc", docID), zap.Error(err))
	msg := fmt.Sprintf("track: %s: %v", op, err)
	if err := b.m.nvim.WriteErr(msg + "\n"); err != nil {
		b.log.Warn("echo failed", zap.Error(err))
	}
}

// Close clears every decoration and detaches from the buffers.
func (b *Bridge) Close() {
	b.mu.Lock()
	bufs := make([]nvim.Buffer, 0, len(b.docs))
	for buf := range b.docs {
		bufs = append(bufs, buf)
	}
	b.mu.Unlock()

	batch := b.m.nvim.NewBatch()
	detached := make([]bool, len(bufs))
	for i, buf := range bufs {
		batch.ClearBufferNamespace(buf, b.ns, 0, -1)
		batch.DetachBuffer(buf, &detached[i])
	}
	for _, c := range commands {
		batch.Command("silent! delcommand " + c.name)
	}
	if err := batch.Execute(); err != nil {
		b.log.Warn("bridge cleanup failed", zap.Error(err))
	}
}
