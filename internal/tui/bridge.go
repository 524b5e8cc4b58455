package tui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sokinpui/track.go/internal/bridge"
	"github.com/sokinpui/track.go/internal/engine"
	"github.com/sokinpui/track.go/model"
)

// refreshMsg tells the model the engine published new spans for a document.
type refreshMsg struct{ docID string }

// Bridge keeps the reviewed buffers in memory and wakes the program whenever
// the engine publishes.
type Bridge struct {
	*bridge.Memory

	mu   sync.Mutex
	send func(tea.Msg)
}

var _ engine.Bridge = (*Bridge)(nil)

// NewBridge returns a Bridge with empty buffers.
func NewBridge() *Bridge {
	return &Bridge{Memory: bridge.NewMemory()}
}

// Attach routes refresh notifications to p.
func (b *Bridge) Attach(p *tea.Program) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.send = p.Send
}

// Render implements engine.Bridge. The program is notified asynchronously
// because Render may run inside the program's own Update.
func (b *Bridge) Render(docID string, spans []model.Span, actions engine.Actions) {
	b.Memory.Render(docID, spans, actions)
	b.mu.Lock()
	send := b.send
	b.mu.Unlock()
	if send != nil {
		go send(refreshMsg{docID: docID})
	}
}
