package merge

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/sokinpui/track.go/model"
)

// ID derives a span identifier from the span's kind, ranges and texts. It
// ignores s.ID, so recomputing over unchanged content yields the same ID.
func ID(s model.Span) string {
	d := xxhash.New()
	fmt.Fprintf(d, "%d:%d:%d:%d:%d:%d:", s.Kind, s.BaselineFrom, s.BaselineTo, s.WorkingFrom, s.WorkingTo, len(s.BaselineText))
	_, _ = d.WriteString(s.BaselineText)
	_, _ = d.WriteString(s.WorkingText)
	return fmt.Sprintf("%016x", d.Sum64())
}
