package patcher

import (
	"fmt"
	"strings"
)

// hunk is one @@ section of a unified diff. Agent-written diffs often carry
// wrong line numbers, so the header is ignored and the hunk is located by
// its content instead.
type hunk struct {
	lines    []string // body lines, each starting with ' ', '-' or '+'
	oldStart int      // 1-based line in the source where the hunk applies
}

func parseHunks(raw string) []hunk {
	var hunks []hunk
	var current []string

	flush := func() {
		if len(current) > 0 {
			hunks = append(hunks, hunk{lines: current})
		}
		current = nil
	}
	for _, line := range strings.Split(raw, "\n") {
		switch {
		case strings.HasPrefix(line, "---"), strings.HasPrefix(line, "+++"):
		case strings.HasPrefix(line, "@@"):
			flush()
		case strings.HasPrefix(line, "+"), strings.HasPrefix(line, "-"), strings.HasPrefix(line, " "):
			current = append(current, line)
		}
	}
	flush()
	return hunks
}

// targetBlock is the part of the hunk that must already be in the source:
// context and removed lines, skipping blank ones so that whitespace-only
// drift still matches.
func (h hunk) targetBlock() []string {
	var block []string
	for _, line := range h.lines {
		if line[0] == '+' {
			continue
		}
		if strings.TrimSpace(line[1:]) != "" {
			block = append(block, line[1:])
		}
	}
	return block
}

func (h hunk) counts() (oldLines, newLines int) {
	for _, line := range h.lines {
		switch line[0] {
		case '+':
			newLines++
		case '-':
			oldLines++
		default:
			oldLines++
			newLines++
		}
	}
	return oldLines, newLines
}

// normalizeLineForMatching trims a line and collapses internal whitespace.
func normalizeLineForMatching(line string) string {
	return strings.Join(strings.Fields(line), " ")
}

// matchBlock returns the 1-based source line where block begins, looking
// only at or after line from. Blank source lines are skipped and lines are
// compared whitespace-normalized. It returns -1 when there is no match.
func matchBlock(source, block []string, from int) int {
	if len(block) == 0 {
		return -1
	}

	normalizedBlock := make([]string, len(block))
	for i, line := range block {
		normalizedBlock[i] = normalizeLineForMatching(line)
	}

	var filtered []string
	var lineNumbers []int
	for i := from - 1; i < len(source); i++ {
		if i < 0 {
			continue
		}
		if n := normalizeLineForMatching(source[i]); n != "" {
			filtered = append(filtered, n)
			lineNumbers = append(lineNumbers, i+1)
		}
	}

	for i := 0; i <= len(filtered)-len(normalizedBlock); i++ {
		match := true
		for j := range normalizedBlock {
			if filtered[i+j] != normalizedBlock[j] {
				match = false
				break
			}
		}
		if match {
			return lineNumbers[i]
		}
	}
	return -1
}

// locate places every hunk in source, in order and without overlap.
func locate(source []string, hunks []hunk) error {
	next := 1
	for i := range hunks {
		block := hunks[i].targetBlock()
		if len(block) == 0 {
			if !isBlank(source) {
				return fmt.Errorf("hunk %d has no context to place it by", i+1)
			}
			hunks[i].oldStart = 1
			continue
		}
		start := matchBlock(source, block, next)
		if start == -1 {
			return fmt.Errorf("could not find matching block for hunk %d", i+1)
		}
		hunks[i].oldStart = start
		next = start + 1
	}
	return nil
}

func isBlank(lines []string) bool {
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			return false
		}
	}
	return true
}

func splitSource(source string) []string {
	if source == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(source, "\n"), "\n")
}

func buildHunkHeader(oldStart, oldLines, newStart, newLines int) string {
	if oldLines == 0 {
		oldStart--
	}
	return fmt.Sprintf("@@ -%d,%d +%d,%d @@\n", oldStart, oldLines, newStart, newLines)
}

// Correct returns raw with its hunk headers recomputed against source.
func Correct(source, raw, path string) (string, error) {
	hunks := parseHunks(raw)
	if len(hunks) == 0 {
		return "", nil
	}
	if err := locate(splitSource(source), hunks); err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "--- a/%s\n", path)
	fmt.Fprintf(&b, "+++ b/%s\n", path)

	lineDiffOffset := 0
	for _, h := range hunks {
		oldLines, newLines := h.counts()
		b.WriteString(buildHunkHeader(h.oldStart, oldLines, h.oldStart+lineDiffOffset, newLines))
		for _, line := range h.lines {
			b.WriteString(line)
			b.WriteByte('\n')
		}
		lineDiffOffset += newLines - oldLines
	}
	return b.String(), nil
}

// Apply patches source with the hunks of raw. Context and removed lines are
// matched whitespace-insensitively and blank lines may drift; kept lines
// retain the source's exact text.
func Apply(source, raw string) (string, error) {
	hunks := parseHunks(raw)
	if len(hunks) == 0 {
		return "", fmt.Errorf("diff has no hunks")
	}
	src := splitSource(source)
	if err := locate(src, hunks); err != nil {
		return "", err
	}

	var out []string
	cursor := 0
	for i, h := range hunks {
		for cursor < h.oldStart-1 && cursor < len(src) {
			out = append(out, src[cursor])
			cursor++
		}
		for _, line := range h.lines {
			op, text := line[0], line[1:]
			if op == '+' {
				out = append(out, text)
				continue
			}
			if strings.TrimSpace(text) == "" {
				if cursor < len(src) && strings.TrimSpace(src[cursor]) == "" {
					if op == ' ' {
						out = append(out, src[cursor])
					}
					cursor++
				}
				continue
			}
			for cursor < len(src) && strings.TrimSpace(src[cursor]) == "" {
				out = append(out, src[cursor])
				cursor++
			}
			if cursor >= len(src) || normalizeLineForMatching(src[cursor]) != normalizeLineForMatching(text) {
				return "", fmt.Errorf("hunk %d does not apply at line %d", i+1, cursor+1)
			}
			if op == ' ' {
				out = append(out, src[cursor])
			}
			cursor++
		}
	}
	out = append(out, src[cursor:]...)

	result := strings.Join(out, "\n")
	if len(out) > 0 && (source == "" || strings.HasSuffix(source, "\n")) {
		result += "\n"
	}
	return result, nil
}
