// Package store holds per-document tracking state: the baseline, the working
// text, the tracking flag and the spans last computed from them.
//
// A Registry owns its documents. Nothing here is safe for concurrent use; the
// engine serializes access.
package store

import (
	"sort"

	"github.com/sokinpui/track.go/model"
)

// Recomputer turns a baseline and working pair into published spans.
type Recomputer func(baseline, working string) []model.Span

// Document is the tracking state of one document.
type Document struct {
	id          string
	baseline    string
	working     string
	hasBaseline bool
	tracking    bool
	spans       []model.Span
	version     uint64
}

// ID returns the document id.
func (d *Document) ID() string { return d.id }

// Baseline returns the baseline text.
func (d *Document) Baseline() string { return d.baseline }

// Working returns the working text.
func (d *Document) Working() string { return d.working }

// Tracking reports whether tracking is enabled.
func (d *Document) Tracking() bool { return d.tracking }

// Version increases every time the published span list is replaced.
func (d *Document) Version() uint64 { return d.version }

// SetWorkingText replaces the working text and reports whether the document
// needs a recompute.
func (d *Document) SetWorkingText(text string) bool {
	if text == d.working {
		return false
	}
	d.working = text
	return d.tracking
}

// SetBaselineText replaces the baseline text and reports whether the document
// needs a recompute. An explicitly set baseline is kept across tracking
// sessions.
func (d *Document) SetBaselineText(text string) bool {
	d.hasBaseline = true
	if text == d.baseline {
		return false
	}
	d.baseline = text
	return d.tracking
}

// EnableTracking turns tracking on. A document that has never had a baseline
// snapshots its working text as the baseline; otherwise the retained baseline
// is reused. It reports whether tracking was off before.
func (d *Document) EnableTracking() bool {
	if d.tracking {
		return false
	}
	if !d.hasBaseline {
		d.baseline = d.working
		d.hasBaseline = true
	}
	d.tracking = true
	return true
}

// DisableTracking turns tracking off and clears the published spans at once.
// It reports whether tracking was on before.
func (d *Document) DisableTracking() bool {
	if !d.tracking {
		return false
	}
	d.tracking = false
	d.publish(nil)
	return true
}

// Recompute replaces the span list wholesale. With tracking off the list is
// cleared without calling fn.
func (d *Document) Recompute(fn Recomputer) {
	if !d.tracking {
		d.publish(nil)
		return
	}
	d.publish(fn(d.baseline, d.working))
}

func (d *Document) publish(spans []model.Span) {
	d.spans = spans
	d.version++
}

// Spans returns a copy of the published spans. It is always empty while
// tracking is disabled.
func (d *Document) Spans() []model.Span {
	if !d.tracking || len(d.spans) == 0 {
		return []model.Span{}
	}
	out := make([]model.Span, len(d.spans))
	copy(out, d.spans)
	return out
}

// Span finds a published span by id.
func (d *Document) Span(id string) (model.Span, bool) {
	if !d.tracking {
		return model.Span{}, false
	}
	for _, s := range d.spans {
		if s.ID == id {
			return s, true
		}
	}
	return model.Span{}, false
}

// State returns a snapshot of the document.
func (d *Document) State() model.DocumentState {
	return model.DocumentState{
		ID:           d.id,
		BaselineText: d.baseline,
		WorkingText:  d.working,
		Tracking:     d.tracking,
		Spans:        d.Spans(),
	}
}

// Registry maps document ids to their tracking state.
type Registry struct {
	docs map[string]*Document
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{docs: make(map[string]*Document)}
}

// Get returns the document with the given id, creating it on first reference.
func (r *Registry) Get(id string) *Document {
	d, ok := r.docs[id]
	if !ok {
		d = &Document{id: id}
		r.docs[id] = d
	}
	return d
}

// Lookup returns the document without creating it.
func (r *Registry) Lookup(id string) (*Document, bool) {
	d, ok := r.docs[id]
	return d, ok
}

// Remove forgets a document.
func (r *Registry) Remove(id string) {
	delete(r.docs, id)
}

// IDs returns the known document ids in sorted order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.docs))
	for id := range r.docs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
