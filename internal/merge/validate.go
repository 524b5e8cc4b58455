package merge

import (
	"fmt"

	"github.com/sokinpui/track.go/internal/diff"
	"github.com/sokinpui/track.go/internal/runes"
	"github.com/sokinpui/track.go/model"
)

// Validate checks a published span list against the documents it was computed
// from and returns the first violated invariant.
func Validate(spans []model.Span, baseline, working string) error {
	prevB, prevW := 0, 0
	for i, s := range spans {
		if s.BaselineFrom < 0 || s.WorkingFrom < 0 || s.BaselineFrom > s.BaselineTo || s.WorkingFrom > s.WorkingTo {
			return fmt.Errorf("span[%d]: invalid ranges [%d,%d) [%d,%d)", i, s.BaselineFrom, s.BaselineTo, s.WorkingFrom, s.WorkingTo)
		}
		if s.BaselineFrom < prevB || s.WorkingFrom < prevW {
			return fmt.Errorf("span[%d]: overlaps or precedes the previous span", i)
		}
		if s.BaselineText == "" && s.WorkingText == "" {
			return fmt.Errorf("span[%d]: empty span", i)
		}
		if s.Kind != model.KindOf(s.BaselineText, s.WorkingText) {
			return fmt.Errorf("span[%d]: kind %s does not match its texts", i, s.Kind)
		}
		if got := runes.Slice(baseline, s.BaselineFrom, s.BaselineTo); got != s.BaselineText {
			return fmt.Errorf("span[%d]: baseline range holds %q, span has %q", i, got, s.BaselineText)
		}
		if got := runes.Slice(working, s.WorkingFrom, s.WorkingTo); got != s.WorkingText {
			return fmt.Errorf("span[%d]: working range holds %q, span has %q", i, got, s.WorkingText)
		}
		if s.ID != ID(s) {
			return fmt.Errorf("span[%d]: id %q is not derived from its content", i, s.ID)
		}
		prevB, prevW = s.BaselineTo, s.WorkingTo
	}
	if got := diff.Apply(baseline, spans); got != working {
		return fmt.Errorf("spans do not reconstruct the working text")
	}
	return nil
}
