package engine

import "github.com/sokinpui/track.go/model"

// Bridge is the editor side of the engine: it owns the live buffer and draws
// the spans.
type Bridge interface {
	// ApplyPatch replaces the runes in [from, to) of the document's buffer with
	// text as a single undoable edit. A nil error confirms the buffer changed.
	ApplyPatch(docID string, from, to int, text string) error
	// Render replaces whatever the bridge shows for the document with spans.
	// An empty list clears the decorations. Render must not call back into
	// the Engine synchronously; actions are for later user interaction.
	Render(docID string, spans []model.Span, actions Actions)
}

// Actions are the callbacks a bridge invokes when the user resolves a span.
type Actions struct {
	Accept func(spanID string) error
	Revert func(spanID string) error
}
