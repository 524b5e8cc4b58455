package model

import "fmt"

// Kind is the shape of a difference span.
type Kind int

const (
	KindInsert Kind = iota
	KindDelete
	KindReplace
)

func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindDelete:
		return "delete"
	case KindReplace:
		return "replace"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// KindOf derives the kind from which sides of a span carry text.
func KindOf(baselineText, workingText string) Kind {
	switch {
	case baselineText == "":
		return KindInsert
	case workingText == "":
		return KindDelete
	default:
		return KindReplace
	}
}

// Span is one difference between a document's baseline and working text.
// Ranges are half-open and counted in runes.
type Span struct {
	ID           string
	Kind         Kind
	BaselineFrom int
	BaselineTo   int
	WorkingFrom  int
	WorkingTo    int
	BaselineText string // removed text; empty for inserts
	WorkingText  string // added text; empty for deletes
}

// ContainsWorking reports whether the working-side offset falls on the span.
// A zero-width span (a pure delete) contains only its own position.
func (s Span) ContainsWorking(offset int) bool {
	if s.WorkingFrom == s.WorkingTo {
		return offset == s.WorkingFrom
	}
	return offset >= s.WorkingFrom && offset < s.WorkingTo
}

// DocumentState is a read-only snapshot of one tracked document.
type DocumentState struct {
	ID           string
	BaselineText string
	WorkingText  string
	Tracking     bool
	Spans        []Span
}

// FileChange represents a single proposed change to a file.
type FileChange struct {
	Path    string
	Content string
	Source  string // "codeblock" or "diff"
}

// DiffBlock represents a raw diff block from the source content.
type DiffBlock struct {
	FilePath   string
	RawContent string
}

// Summary holds the results of a review session for display.
type Summary struct {
	Accepted  []string
	Reverted  []string
	Unchanged []string // proposal already matched the file
	Pending   []string
	Failed    []string
	Message   string
}
