// Package diff computes character-level difference spans between a baseline
// and a working text.
//
// Compute walks the edit script produced by diffmatchpatch and emits one raw
// span per inserted or deleted run:
//   - an inserted run becomes a model.KindInsert span (empty baseline range);
//   - a deleted run becomes a model.KindDelete span (empty working range);
//   - an equal run advances both cursors and emits nothing.
//
// Offsets are runes. Raw spans have no ID; internal/merge groups them and
// assigns IDs.
//
// Invalid UTF-8 bytes count as one rune each, as in the runes package, and
// are diffed byte for byte.
//
// Invariant: Apply(baseline, Compute(baseline, working)) == working.
package diff

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/sokinpui/track.go/internal/runes"
	"github.com/sokinpui/track.go/model"
)

// Computer produces raw spans. The zero value is not usable; use New.
type Computer struct {
	dmp *diffmatchpatch.DiffMatchPatch
}

// New returns a Computer. A timeout of zero computes an exact minimal diff;
// a positive timeout lets very large documents fall back to a coarser diff.
func New(timeout time.Duration) *Computer {
	dmp := diffmatchpatch.New()
	dmp.DiffTimeout = timeout
	return &Computer{dmp: dmp}
}

var exact = New(0)

// Compute diffs baseline against working with an exact Computer.
func Compute(baseline, working string) []model.Span {
	return exact.Compute(baseline, working)
}

// Compute returns the ordered raw spans turning baseline into working.
func (c *Computer) Compute(baseline, working string) []model.Span {
	if baseline == working {
		return nil
	}

	unescape := func(s string) string { return s }
	if !utf8.ValidString(baseline) || !utf8.ValidString(working) {
		if containsEscapes(baseline) || containsEscapes(working) {
			return wholeDocument(baseline, working)
		}
		baseline, working = escapeInvalid(baseline), escapeInvalid(working)
		unescape = unescapeInvalid
	}

	var spans []model.Span
	baselinePos, workingPos := 0, 0
	for _, d := range c.dmp.DiffMain(baseline, working, false) {
		n := runes.Len(d.Text)
		if n == 0 {
			continue
		}
		d.Text = unescape(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			baselinePos += n
			workingPos += n
		case diffmatchpatch.DiffDelete:
			spans = append(spans, model.Span{
				Kind:         model.KindDelete,
				BaselineFrom: baselinePos,
				BaselineTo:   baselinePos + n,
				WorkingFrom:  workingPos,
				WorkingTo:    workingPos,
				BaselineText: d.Text,
			})
			baselinePos += n
		case diffmatchpatch.DiffInsert:
			spans = append(spans, model.Span{
				Kind:         model.KindInsert,
				BaselineFrom: baselinePos,
				BaselineTo:   baselinePos,
				WorkingFrom:  workingPos,
				WorkingTo:    workingPos + n,
				WorkingText:  d.Text,
			})
			workingPos += n
		}
	}
	return spans
}

// escapeBase maps invalid byte b to rune escapeBase+b, in the last private
// use plane.
const escapeBase = 0x10FF00

func isEscape(r rune) bool {
	return r >= escapeBase+0x80 && r <= escapeBase+0xFF
}

func containsEscapes(s string) bool {
	return strings.IndexFunc(s, isEscape) >= 0
}

// escapeInvalid replaces every byte that is not part of a valid encoding
// with its escape rune, keeping the rune count unchanged.
func escapeInvalid(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			b.WriteRune(escapeBase + rune(s[i]))
		} else {
			b.WriteString(s[i : i+size])
		}
		i += size
	}
	return b.String()
}

func unescapeInvalid(s string) string {
	if !containsEscapes(s) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if isEscape(r) {
			b.WriteByte(byte(r - escapeBase))
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// wholeDocument deletes all of baseline and inserts all of working.
func wholeDocument(baseline, working string) []model.Span {
	var spans []model.Span
	if n := runes.Len(baseline); n > 0 {
		spans = append(spans, model.Span{Kind: model.KindDelete, BaselineTo: n, BaselineText: baseline})
	}
	if n := runes.Len(working); n > 0 {
		spans = append(spans, model.Span{Kind: model.KindInsert, WorkingTo: n, WorkingText: working})
	}
	return spans
}

// Apply rebuilds the working text from baseline and an ordered span list.
// Spans are applied by their baseline ranges; their working ranges are not
// consulted.
func Apply(baseline string, spans []model.Span) string {
	var b strings.Builder
	pos := 0
	for _, s := range spans {
		b.WriteString(runes.Slice(baseline, pos, s.BaselineFrom))
		b.WriteString(s.WorkingText)
		pos = s.BaselineTo
	}
	b.WriteString(runes.Slice(baseline, pos, runes.Len(baseline)))
	return b.String()
}
