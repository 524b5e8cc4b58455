// Package bridge provides an in-memory editor bridge: buffers held as strings,
// renders recorded instead of drawn. The library facade uses it when no editor
// is attached, and tests use it to drive the engine.
package bridge

import (
	"fmt"
	"sync"

	"github.com/sokinpui/track.go/internal/engine"
	"github.com/sokinpui/track.go/internal/runes"
	"github.com/sokinpui/track.go/model"
)

// Listener receives the full buffer text after every change.
type Listener func(docID, text string)

// Rendering is the last span list rendered for a document.
type Rendering struct {
	Spans   []model.Span
	Actions engine.Actions
	Count   int // number of renders so far
}

// Memory is an engine.Bridge over in-memory buffers.
type Memory struct {
	mu        sync.Mutex
	buffers   map[string]string
	renders   map[string]Rendering
	listener  Listener
	patchErr  error
	patchLogs []string
}

// NewMemory returns an empty Memory bridge.
func NewMemory() *Memory {
	return &Memory{
		buffers: make(map[string]string),
		renders: make(map[string]Rendering),
	}
}

// SetListener registers the function told about every buffer change,
// including patches applied on behalf of the engine. The call is synchronous.
func (m *Memory) SetListener(l Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listener = l
}

// FailPatches makes every following ApplyPatch return err; nil restores
// normal behavior.
func (m *Memory) FailPatches(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.patchErr = err
}

// Open loads text into the document's buffer without notifying the listener.
func (m *Memory) Open(docID, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buffers[docID] = text
}

// Text returns the document's buffer.
func (m *Memory) Text(docID string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buffers[docID]
}

// Edit simulates a user edit of [from, to) and notifies the listener.
func (m *Memory) Edit(docID string, from, to int, text string) {
	m.mu.Lock()
	updated := runes.Splice(m.buffers[docID], from, to, text)
	m.buffers[docID] = updated
	l := m.listener
	m.mu.Unlock()
	if l != nil {
		l(docID, updated)
	}
}

// Replace simulates the user or an agent rewriting the whole buffer.
func (m *Memory) Replace(docID, text string) {
	m.Edit(docID, 0, runes.Len(m.Text(docID)), text)
}

// ApplyPatch implements engine.Bridge.
func (m *Memory) ApplyPatch(docID string, from, to int, text string) error {
	m.mu.Lock()
	if m.patchErr != nil {
		err := m.patchErr
		m.mu.Unlock()
		return err
	}
	buf, ok := m.buffers[docID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("no buffer for %s", docID)
	}
	if from < 0 || to < from || to > runes.Len(buf) {
		m.mu.Unlock()
		return fmt.Errorf("patch [%d,%d) out of range for %s", from, to, docID)
	}
	updated := runes.Splice(buf, from, to, text)
	m.buffers[docID] = updated
	m.patchLogs = append(m.patchLogs, fmt.Sprintf("%s[%d:%d]=%q", docID, from, to, text))
	l := m.listener
	m.mu.Unlock()

	if l != nil {
		l(docID, updated)
	}
	return nil
}

// Render implements engine.Bridge.
func (m *Memory) Render(docID string, spans []model.Span, actions engine.Actions) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.renders[docID]
	m.renders[docID] = Rendering{Spans: spans, Actions: actions, Count: r.Count + 1}
}

// Rendered returns the last rendering of the document.
func (m *Memory) Rendered(docID string) (Rendering, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.renders[docID]
	return r, ok
}

// Patches lists the patches applied so far, formatted as doc[from:to]="text".
func (m *Memory) Patches() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.patchLogs...)
}
