package nvim

import (
	"strings"

	"github.com/sokinpui/track.go/internal/runes"
	"github.com/sokinpui/track.go/model"
)

// Normalize converts file content to the text a Neovim buffer reports for it.
// Buffers do not carry the final end-of-line, so one trailing newline is
// dropped.
func Normalize(text string) string {
	return strings.TrimSuffix(text, "\n")
}

func toLines(text string) [][]byte {
	parts := strings.Split(text, "\n")
	lines := make([][]byte, len(parts))
	for i, p := range parts {
		lines[i] = []byte(p)
	}
	return lines
}

func fromLines(lines [][]byte) string {
	parts := make([]string, len(lines))
	for i, l := range lines {
		parts[i] = string(l)
	}
	return strings.Join(parts, "\n")
}

// Highlights names the highlight groups used to draw spans.
type Highlights struct {
	Added   string
	Changed string
	Deleted string
}

// DefaultHighlights links spans to the built-in diff groups.
var DefaultHighlights = Highlights{
	Added:   "DiffAdd",
	Changed: "DiffChange",
	Deleted: "DiffDelete",
}

// mark is one extmark to place: a zero-based line and byte column plus the
// options passed to nvim_buf_set_extmark.
type mark struct {
	Line int
	Col  int
	Opts map[string]interface{}
}

var signs = map[model.Kind]string{
	model.KindInsert:  "+",
	model.KindDelete:  "-",
	model.KindReplace: "~",
}

// buildMarks lays out the extmarks for spans over the buffer text.
func buildMarks(spans []model.Span, text string, hl Highlights) []mark {
	var marks []mark
	for _, s := range spans {
		start := runes.ToPosition(text, s.WorkingFrom)
		signHL := hl.Changed

		if s.WorkingTo > s.WorkingFrom {
			end := runes.ToPosition(text, s.WorkingTo)
			group := hl.Changed
			if s.Kind == model.KindInsert {
				group = hl.Added
			}
			signHL = group
			marks = append(marks, mark{Line: start.Line, Col: start.Col, Opts: map[string]interface{}{
				"end_row":  end.Line,
				"end_col":  end.Col,
				"hl_group": group,
			}})
		} else {
			signHL = hl.Deleted
		}

		if s.BaselineText != "" {
			marks = append(marks, removedMark(s.BaselineText, start, hl.Deleted))
		}

		marks[len(marks)-1].Opts["sign_text"] = signs[s.Kind]
		marks[len(marks)-1].Opts["sign_hl_group"] = signHL
	}
	return marks
}

// removedMark shows text that is in the baseline but not the buffer. Text
// within one line is drawn inline; longer text as virtual lines above.
func removedMark(text string, at runes.Position, group string) mark {
	if !strings.Contains(text, "\n") {
		return mark{Line: at.Line, Col: at.Col, Opts: map[string]interface{}{
			"virt_text":     [][]string{{text, group}},
			"virt_text_pos": "inline",
		}}
	}
	var lines [][][]string
	for _, l := range strings.Split(strings.TrimSuffix(text, "\n"), "\n") {
		lines = append(lines, [][]string{{l, group}})
	}
	return mark{Line: at.Line, Col: 0, Opts: map[string]interface{}{
		"virt_lines":       lines,
		"virt_lines_above": true,
	}}
}
