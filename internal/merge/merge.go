// Package merge groups raw difference spans into the edit units that are
// published, reviewed, accepted and reverted.
package merge

import (
	"github.com/sokinpui/track.go/internal/runes"
	"github.com/sokinpui/track.go/model"
)

// Options controls how raw spans become published spans.
type Options struct {
	// WordSnap widens replacements that start or end inside a word to the
	// whole word. See SnapWords.
	WordSnap bool
}

// Build merges raw spans and, if enabled, snaps replacements to words.
func Build(raw []model.Span, baseline, working string, opts Options) []model.Span {
	spans := Merge(raw)
	if opts.WordSnap {
		spans = SnapWords(spans, baseline, working)
	}
	return spans
}

// Merge coalesces position-ordered spans left to right. Two spans merge when
// they are adjacent (the first ends where the second starts on both sides) or
// co-located (they start at the same place on both sides). Spans separated by
// unchanged text are never merged. Every output span carries its ID.
func Merge(raw []model.Span) []model.Span {
	if len(raw) == 0 {
		return nil
	}

	out := make([]model.Span, 0, len(raw))
	cur := raw[0]
	for _, next := range raw[1:] {
		if mergeable(cur, next) {
			cur = combine(cur, next)
			continue
		}
		out = append(out, withID(cur))
		cur = next
	}
	return append(out, withID(cur))
}

func mergeable(cur, next model.Span) bool {
	adjacent := cur.WorkingTo == next.WorkingFrom && cur.BaselineTo == next.BaselineFrom
	colocated := cur.BaselineFrom == next.BaselineFrom && cur.WorkingFrom == next.WorkingFrom
	return adjacent || colocated
}

// combine folds next into cur. Each side's text is the concatenation of the
// two spans' texts on that side, which yields:
//
//	delete + insert   -> replace (delete's baseline side, insert's working side)
//	insert + insert   -> insert
//	delete + delete   -> delete
//	replace + replace -> replace
//	replace + insert  -> replace with the working side extended
//	replace + delete  -> replace with the baseline side extended
//
// and the mirrored orders.
func combine(cur, next model.Span) model.Span {
	baselineText := cur.BaselineText + next.BaselineText
	workingText := cur.WorkingText + next.WorkingText
	return model.Span{
		Kind:         model.KindOf(baselineText, workingText),
		BaselineFrom: cur.BaselineFrom,
		BaselineTo:   cur.BaselineFrom + runes.Len(baselineText),
		WorkingFrom:  cur.WorkingFrom,
		WorkingTo:    cur.WorkingFrom + runes.Len(workingText),
		BaselineText: baselineText,
		WorkingText:  workingText,
	}
}

func withID(s model.Span) model.Span {
	s.Kind = model.KindOf(s.BaselineText, s.WorkingText)
	s.ID = ID(s)
	return s
}
