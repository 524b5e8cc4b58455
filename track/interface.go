// Package track reviews edits proposed by coding agents. It keeps the
// original (baseline) and edited (working) text of every document, reports
// their differences as spans, and lets each span be accepted into the
// baseline or reverted out of the working text.
//
// Session is the library entry point and needs no editor. App drives the
// command-line program against Neovim or the terminal review.
package track

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/sokinpui/track.go/cli"
	"github.com/sokinpui/track.go/internal/bridge"
	"github.com/sokinpui/track.go/internal/diff"
	"github.com/sokinpui/track.go/internal/engine"
	"github.com/sokinpui/track.go/internal/merge"
	"github.com/sokinpui/track.go/model"
)

type (
	Span          = model.Span
	Kind          = model.Kind
	DocumentState = model.DocumentState
	OpError       = engine.OpError
)

const (
	KindInsert  = model.KindInsert
	KindDelete  = model.KindDelete
	KindReplace = model.KindReplace
)

var (
	ErrSpanNotFound       = engine.ErrSpanNotFound
	ErrDocumentNotTracked = engine.ErrDocumentNotTracked
	ErrBridgeUnavailable  = engine.ErrBridgeUnavailable
	ErrNoCurrentDocument  = engine.ErrNoCurrentDocument
)

// Options for using track as a library.
type Options struct {
	// Report replacements character by character instead of by whole words.
	NoWordSnap bool
	// Bound diff time for very large documents. Zero computes the exact diff.
	DiffTimeout time.Duration
	// Structured logger; nil discards.
	Logger *zap.Logger
}

func (o Options) engineOptions() []engine.Option {
	opts := []engine.Option{
		engine.WithWordSnap(!o.NoWordSnap),
		engine.WithDiffTimeout(o.DiffTimeout),
	}
	if o.Logger != nil {
		opts = append(opts, engine.WithLogger(o.Logger))
	}
	return opts
}

// Diff returns the spans between baseline and working.
func Diff(baseline, working string, opts Options) []Span {
	raw := diff.New(opts.DiffTimeout).Compute(baseline, working)
	return merge.Build(raw, baseline, working, merge.Options{WordSnap: !opts.NoWordSnap})
}

// Session tracks documents held in memory.
type Session struct {
	engine  *engine.Engine
	buffers *bridge.Memory
}

// NewSession returns an empty Session.
func NewSession(opts Options) *Session {
	buffers := bridge.NewMemory()
	e := engine.New(buffers, opts.engineOptions()...)
	buffers.SetListener(e.OnWorkingTextChanged)
	return &Session{engine: e, buffers: buffers}
}

// Open starts tracking working against baseline under docID. Opening a
// document again replaces both texts.
func (s *Session) Open(docID, baseline, working string) error {
	s.buffers.Open(docID, working)
	s.engine.OnWorkingTextChanged(docID, working)
	if err := s.engine.SetBaselineText(docID, baseline); err != nil {
		return err
	}
	return s.engine.OpenTracking(docID)
}

// Edit replaces the working text, as an editor or agent rewriting the
// document would.
func (s *Session) Edit(docID, working string) {
	s.buffers.Replace(docID, working)
}

// Text returns the working text.
func (s *Session) Text(docID string) string {
	return s.buffers.Text(docID)
}

// State returns a snapshot of the document.
func (s *Session) State(docID string) (DocumentState, error) {
	return s.engine.GetDocumentState(docID)
}

// Spans returns the pending spans of the document.
func (s *Session) Spans(docID string) []Span {
	return s.engine.Spans(docID)
}

// Accept keeps the span's working text.
func (s *Session) Accept(docID, spanID string) error {
	return s.engine.Accept(docID, spanID)
}

// Revert restores the span's baseline text in the working text.
func (s *Session) Revert(docID, spanID string) error {
	return s.engine.Revert(docID, spanID)
}

// AcceptAll keeps every change.
func (s *Session) AcceptAll(docID string) error {
	return s.engine.AcceptAll(docID)
}

// ClearAll reverts every change.
func (s *Session) ClearAll(docID string) error {
	return s.engine.ClearAll(docID)
}

// Close forgets the document.
func (s *Session) Close(docID string) error {
	return s.engine.Close(docID)
}

// Config for parsing agent output as a library.
type Config struct {
	// Filter by extension. Use 'diff' to process only diff blocks (e.g., 'py', 'js', 'diff').
	Extensions []string
	// Directories to resolve file paths against; the working directory when empty.
	LookupDirs []string
}

// Parse returns the content agent output proposes for each file, keyed by
// absolute path. Nothing is written.
func Parse(content string, config Config) (map[string]string, error) {
	cfg := cli.Default()
	cfg.Extensions = append([]string(nil), config.Extensions...)
	cfg.LookupDirs = config.LookupDirs
	cfg.Normalize()

	app, err := New(cfg, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize track app: %w", err)
	}
	return app.Parse(content)
}
