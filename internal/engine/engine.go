// Package engine keeps a baseline and a working copy per document, publishes
// the merged difference spans between them, and resolves spans by accepting
// them into the baseline or reverting them out of the working copy.
//
// All mutations are serialized. Events from the bridge that arrive while the
// engine is itself patching the buffer are queued and applied before the
// patching operation releases the lock, so the echo of a revert never races
// the revert or a later edit.
package engine

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/sokinpui/track.go/internal/diff"
	"github.com/sokinpui/track.go/internal/merge"
	"github.com/sokinpui/track.go/internal/runes"
	"github.com/sokinpui/track.go/internal/store"
	"github.com/sokinpui/track.go/model"
)

// Engine is the accept/revert engine. It is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	docs     *store.Registry
	bridge   Bridge
	current  string
	computer *diff.Computer
	opts     merge.Options
	log      *zap.Logger

	// applying is set while the bridge applies a patch requested by the engine.
	applying  atomic.Bool
	pendingMu sync.Mutex
	pending   []textEvent

	publishMu sync.Mutex
	published map[string]uint64
}

type textEvent struct {
	docID string
	text  string
}

// publication is a span list captured under the lock and rendered after it.
type publication struct {
	docID   string
	version uint64
	spans   []model.Span
	bridge  Bridge
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithWordSnap toggles widening replacements to whole words. On by default.
func WithWordSnap(on bool) Option {
	return func(e *Engine) { e.opts.WordSnap = on }
}

// WithDiffTimeout bounds diff time for very large documents. Zero (the
// default) always computes the exact diff.
func WithDiffTimeout(d time.Duration) Option {
	return func(e *Engine) { e.computer = diff.New(d) }
}

// New creates an Engine. bridge may be nil and set later with SetBridge.
func New(bridge Bridge, opts ...Option) *Engine {
	e := &Engine{
		docs:      store.NewRegistry(),
		bridge:    bridge,
		computer:  diff.New(0),
		opts:      merge.Options{WordSnap: true},
		log:       zap.NewNop(),
		published: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetBridge registers (or with nil, unregisters) the editor bridge.
func (e *Engine) SetBridge(b Bridge) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.bridge = b
}

// SetCurrent makes docID the document that operations with an empty id target.
// Other documents are not touched.
func (e *Engine) SetCurrent(docID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.current = docID
}

// Current returns the current document id, or "" if there is none.
func (e *Engine) Current() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Documents returns the ids of every known document.
func (e *Engine) Documents() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.docs.IDs()
}

func (e *Engine) resolve(docID string) (string, error) {
	if docID != "" {
		return docID, nil
	}
	if e.current == "" {
		return "", ErrNoCurrentDocument
	}
	return e.current, nil
}

func (e *Engine) compute(baseline, working string) []model.Span {
	raw := e.computer.Compute(baseline, working)
	return merge.Build(raw, baseline, working, e.opts)
}

// recompute refreshes the document's spans and captures them for publication.
func (e *Engine) recompute(doc *store.Document) *publication {
	doc.Recompute(e.compute)
	spans := doc.Spans()
	e.log.Debug("spans recomputed",
		zap.String("doc", doc.ID()),
		zap.Int("spans", len(spans)),
		zap.Uint64("version", doc.Version()))
	return &publication{docID: doc.ID(), version: doc.Version(), spans: spans, bridge: e.bridge}
}

// publish renders p unless a newer list for the same document was already
// rendered.
func (e *Engine) publish(p *publication) {
	if p == nil || p.bridge == nil {
		return
	}
	e.publishMu.Lock()
	defer e.publishMu.Unlock()
	if p.version <= e.published[p.docID] {
		return
	}
	e.published[p.docID] = p.version
	p.bridge.Render(p.docID, p.spans, e.actions(p.docID))
}

func (e *Engine) actions(docID string) Actions {
	return Actions{
		Accept: func(spanID string) error { return e.Accept(docID, spanID) },
		Revert: func(spanID string) error { return e.Revert(docID, spanID) },
	}
}

// OpenTracking enables tracking on the document. A document without a
// baseline snapshots its working text; a retained baseline is reused. The
// first opened document becomes current if none is.
func (e *Engine) OpenTracking(docID string) error {
	pub, err := e.withDoc("open", docID, func(doc *store.Document) (*publication, error) {
		if e.current == "" {
			e.current = doc.ID()
		}
		if !doc.EnableTracking() {
			return nil, nil
		}
		e.log.Info("tracking opened", zap.String("doc", doc.ID()))
		return e.recompute(doc), nil
	})
	e.publish(pub)
	return err
}

// CloseTracking disables tracking and clears the document's published spans.
func (e *Engine) CloseTracking(docID string) error {
	pub, err := e.withDoc("close", docID, func(doc *store.Document) (*publication, error) {
		if !doc.DisableTracking() {
			return nil, nil
		}
		e.log.Info("tracking closed", zap.String("doc", doc.ID()))
		return &publication{docID: doc.ID(), version: doc.Version(), spans: []model.Span{}, bridge: e.bridge}, nil
	})
	e.publish(pub)
	return err
}

// Close forgets the document entirely, clearing its decorations.
func (e *Engine) Close(docID string) error {
	pub, err := e.withDoc("unload", docID, func(doc *store.Document) (*publication, error) {
		wasTracking := doc.DisableTracking()
		e.docs.Remove(doc.ID())
		if e.current == doc.ID() {
			e.current = ""
		}
		if !wasTracking {
			return nil, nil
		}
		return &publication{docID: doc.ID(), version: doc.Version(), spans: []model.Span{}, bridge: e.bridge}, nil
	})
	e.publish(pub)
	e.publishMu.Lock()
	delete(e.published, docID)
	e.publishMu.Unlock()
	return err
}

// OnWorkingTextChanged records the live buffer text reported by the bridge.
func (e *Engine) OnWorkingTextChanged(docID, text string) {
	e.pendingMu.Lock()
	if e.applying.Load() {
		e.pending = append(e.pending, textEvent{docID: docID, text: text})
		e.pendingMu.Unlock()
		return
	}
	// Anything still queued for the document is older than text.
	e.pending = dropEvents(e.pending, docID)
	e.pendingMu.Unlock()
	pub, err := e.withDoc("change", docID, func(doc *store.Document) (*publication, error) {
		if !doc.SetWorkingText(text) {
			return nil, nil
		}
		return e.recompute(doc), nil
	})
	if err != nil {
		e.log.Warn("working text change dropped", zap.String("doc", docID), zap.Error(err))
		return
	}
	e.publish(pub)
}

// dropEvents removes the events for docID from events, in place.
func dropEvents(events []textEvent, docID string) []textEvent {
	kept := events[:0]
	for _, ev := range events {
		if ev.docID != docID {
			kept = append(kept, ev)
		}
	}
	return kept
}

// drain replays change events for other documents queued while a patch was
// being applied.
func (e *Engine) drain() {
	e.pendingMu.Lock()
	events := e.pending
	e.pending = nil
	e.pendingMu.Unlock()
	for _, ev := range events {
		e.OnWorkingTextChanged(ev.docID, ev.text)
	}
}

// SetBaselineText replaces the document's baseline.
func (e *Engine) SetBaselineText(docID, text string) error {
	pub, err := e.withDoc("baseline", docID, func(doc *store.Document) (*publication, error) {
		if !doc.SetBaselineText(text) {
			return nil, nil
		}
		return e.recompute(doc), nil
	})
	e.publish(pub)
	return err
}

// GetDocumentState returns a snapshot of the document. An unknown document
// reads as empty and untracked, and is not registered.
func (e *Engine) GetDocumentState(docID string) (model.DocumentState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, err := e.resolve(docID)
	if err != nil {
		return model.DocumentState{}, &OpError{Op: "state", DocID: docID, Err: err}
	}
	doc, ok := e.docs.Lookup(id)
	if !ok {
		return model.DocumentState{ID: id, Spans: []model.Span{}}, nil
	}
	return doc.State(), nil
}

// Spans returns the document's published spans; empty while tracking is off.
func (e *Engine) Spans(docID string) []model.Span {
	st, err := e.GetDocumentState(docID)
	if err != nil {
		return []model.Span{}
	}
	return st.Spans
}

// SpanAt returns the span covering the working-side offset.
func (e *Engine) SpanAt(docID string, offset int) (model.Span, bool) {
	for _, s := range e.Spans(docID) {
		if s.ContainsWorking(offset) {
			return s, true
		}
	}
	return model.Span{}, false
}

// Accept folds the span's working text into the baseline. The span disappears
// from the next published list.
func (e *Engine) Accept(docID, spanID string) error {
	pub, err := e.withSpan("accept", docID, spanID, func(doc *store.Document, s model.Span) (*publication, error) {
		doc.SetBaselineText(runes.Splice(doc.Baseline(), s.BaselineFrom, s.BaselineTo, s.WorkingText))
		e.log.Info("span accepted", zap.String("doc", doc.ID()), zap.String("span", s.ID), zap.Stringer("kind", s.Kind))
		return e.recompute(doc), nil
	})
	e.publish(pub)
	return err
}

// Revert asks the bridge to put the span's baseline text back into the
// buffer, then updates the working text to match.
func (e *Engine) Revert(docID, spanID string) error {
	pub, err := e.withSpan("revert", docID, spanID, func(doc *store.Document, s model.Span) (*publication, error) {
		if err := e.patch(doc, s.WorkingFrom, s.WorkingTo, s.BaselineText); err != nil {
			return nil, err
		}
		e.log.Info("span reverted", zap.String("doc", doc.ID()), zap.String("span", s.ID), zap.Stringer("kind", s.Kind))
		return e.recompute(doc), nil
	})
	e.publish(pub)
	e.drain()
	return err
}

// ClearAll reverts every pending span at once: the buffer is reset to the
// baseline.
func (e *Engine) ClearAll(docID string) error {
	pub, err := e.withTracked("clear", docID, func(doc *store.Document) (*publication, error) {
		if doc.Working() == doc.Baseline() {
			return nil, nil
		}
		if err := e.patch(doc, 0, runes.Len(doc.Working()), doc.Baseline()); err != nil {
			return nil, err
		}
		e.log.Info("all spans reverted", zap.String("doc", doc.ID()))
		return e.recompute(doc), nil
	})
	e.publish(pub)
	e.drain()
	return err
}

// AcceptAll makes the working text the new baseline.
func (e *Engine) AcceptAll(docID string) error {
	pub, err := e.withTracked("accept-all", docID, func(doc *store.Document) (*publication, error) {
		if !doc.SetBaselineText(doc.Working()) {
			return nil, nil
		}
		e.log.Info("all spans accepted", zap.String("doc", doc.ID()))
		return e.recompute(doc), nil
	})
	e.publish(pub)
	return err
}

// patch applies an edit through the bridge and mirrors it into the working
// text once the bridge confirms. Must be called with e.mu held.
func (e *Engine) patch(doc *store.Document, from, to int, text string) error {
	if e.bridge == nil {
		return ErrBridgeUnavailable
	}
	e.pendingMu.Lock()
	e.applying.Store(true)
	e.pendingMu.Unlock()

	err := e.bridge.ApplyPatch(doc.ID(), from, to, text)

	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	e.applying.Store(false)
	if err != nil {
		return err
	}
	doc.SetWorkingText(runes.Splice(doc.Working(), from, to, text))
	// Edits the bridge reported during the patch follow the echo and are
	// applied before the lock is released.
	for _, ev := range e.pending {
		if ev.docID == doc.ID() {
			doc.SetWorkingText(ev.text)
		}
	}
	e.pending = dropEvents(e.pending, doc.ID())
	return nil
}

func (e *Engine) withDoc(op, docID string, fn func(*store.Document) (*publication, error)) (*publication, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id, err := e.resolve(docID)
	if err != nil {
		return nil, &OpError{Op: op, DocID: docID, Err: err}
	}
	pub, err := fn(e.docs.Get(id))
	if err != nil {
		return nil, &OpError{Op: op, DocID: id, Err: err}
	}
	return pub, nil
}

func (e *Engine) withTracked(op, docID string, fn func(*store.Document) (*publication, error)) (*publication, error) {
	pub, err := e.withDoc(op, docID, func(doc *store.Document) (*publication, error) {
		if !doc.Tracking() {
			return nil, ErrDocumentNotTracked
		}
		return fn(doc)
	})
	e.logFailure(op, docID, "", err)
	return pub, err
}

func (e *Engine) withSpan(op, docID, spanID string, fn func(*store.Document, model.Span) (*publication, error)) (*publication, error) {
	pub, err := e.withDoc(op, docID, func(doc *store.Document) (*publication, error) {
		if !doc.Tracking() {
			return nil, ErrDocumentNotTracked
		}
		s, ok := doc.Span(spanID)
		if !ok {
			return nil, ErrSpanNotFound
		}
		return fn(doc, s)
	})
	var opErr *OpError
	if errors.As(err, &opErr) {
		opErr.SpanID = spanID
	}
	e.logFailure(op, docID, spanID, err)
	return pub, err
}

func (e *Engine) logFailure(op, docID, spanID string, err error) {
	if err == nil {
		return
	}
	e.log.Warn("operation failed",
		zap.String("op", op),
		zap.String("doc", docID),
		zap.String("span", spanID),
		zap.String("code", string(Classify(err))),
		zap.Error(err))
}
