package merge

import (
	"github.com/sokinpui/track.go/internal/runes"
	"github.com/sokinpui/track.go/model"
)

// SnapWords widens replacements whose edges fall inside a word so they cover
// the whole word on both sides: a character diff of "Hello world" -> "Hi world"
// gives "ello" -> "i", which snaps to "Hello" -> "Hi". Inserts and deletes are
// left alone.
//
// Widening only absorbs unchanged text, which is identical in both documents,
// so the net effect of the list does not change. Spans that end up touching
// are merged again.
func SnapWords(spans []model.Span, baseline, working string) []model.Span {
	if len(spans) == 0 {
		return spans
	}
	bl := []rune(baseline)
	wk := []rune(working)

	out := make([]model.Span, 0, len(spans))
	for i, s := range spans {
		if s.Kind != model.KindReplace {
			out = append(out, s)
			continue
		}

		prevB, prevW := 0, 0
		if len(out) > 0 {
			prevB, prevW = out[len(out)-1].BaselineTo, out[len(out)-1].WorkingTo
		}
		nextB, nextW := len(bl), len(wk)
		if i+1 < len(spans) {
			nextB, nextW = spans[i+1].BaselineFrom, spans[i+1].WorkingFrom
		}

		left := 0
		if startsInWord(s) {
			limit := min(s.BaselineFrom-prevB, s.WorkingFrom-prevW)
			for left < limit && runes.IsWord(bl[s.BaselineFrom-left-1]) {
				left++
			}
		}
		right := 0
		if endsInWord(s) {
			limit := min(nextB-s.BaselineTo, nextW-s.WorkingTo)
			for right < limit && runes.IsWord(bl[s.BaselineTo+right]) {
				right++
			}
		}
		if left == 0 && right == 0 {
			out = append(out, s)
			continue
		}

		s.BaselineFrom -= left
		s.WorkingFrom -= left
		s.BaselineTo += right
		s.WorkingTo += right
		s.BaselineText = string(bl[s.BaselineFrom:s.BaselineTo])
		s.WorkingText = string(wk[s.WorkingFrom:s.WorkingTo])
		out = append(out, s)
	}
	return Merge(out)
}

func startsInWord(s model.Span) bool {
	b, _ := runes.At(s.BaselineText, 0)
	w, _ := runes.At(s.WorkingText, 0)
	return runes.IsWord(b) || runes.IsWord(w)
}

func endsInWord(s model.Span) bool {
	b, _ := runes.At(s.BaselineText, runes.Len(s.BaselineText)-1)
	w, _ := runes.At(s.WorkingText, runes.Len(s.WorkingText)-1)
	return runes.IsWord(b) || runes.IsWord(w)
}
