// Package runes addresses strings by Unicode scalar value (rune) offsets.
//
// Every position the engine hands out is a rune offset. Editors that speak in
// other units convert at their boundary with ToPosition and FromPosition.
package runes

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Len returns the number of runes in s.
func Len(s string) int {
	return utf8.RuneCountInString(s)
}

// byteOffset returns the byte index of the rune at offset n, clamped to len(s).
func byteOffset(s string, n int) int {
	if n <= 0 {
		return 0
	}
	i := 0
	for b := range s {
		if i == n {
			return b
		}
		i++
	}
	return len(s)
}

// Slice returns the runes of s in [from, to). Out of range bounds are clamped.
func Slice(s string, from, to int) string {
	if to < from {
		to = from
	}
	start := byteOffset(s, from)
	end := start + byteOffset(s[start:], to-from)
	return s[start:end]
}

// Splice replaces the runes of s in [from, to) with text.
func Splice(s string, from, to int, text string) string {
	if to < from {
		to = from
	}
	start := byteOffset(s, from)
	end := start + byteOffset(s[start:], to-from)
	var b strings.Builder
	b.Grow(start + len(text) + len(s) - end)
	b.WriteString(s[:start])
	b.WriteString(text)
	b.WriteString(s[end:])
	return b.String()
}

// At returns the rune at offset n and whether n is in range.
func At(s string, n int) (rune, bool) {
	if n < 0 {
		return 0, false
	}
	i := 0
	for _, r := range s {
		if i == n {
			return r, true
		}
		i++
	}
	return 0, false
}

// IsWord reports whether r is part of a word: a letter, digit or underscore.
func IsWord(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Position is a zero-based line and byte column, the addressing used by Neovim.
type Position struct {
	Line int
	Col  int
}

// ToPosition converts a rune offset in s to a line and byte column.
func ToPosition(s string, offset int) Position {
	b := byteOffset(s, offset)
	prefix := s[:b]
	line := strings.Count(prefix, "\n")
	col := b
	if i := strings.LastIndexByte(prefix, '\n'); i >= 0 {
		col = b - i - 1
	}
	return Position{Line: line, Col: col}
}

// FromPosition converts a line and byte column in s to a rune offset. Columns
// past the end of a line clamp to the line end; lines past the end clamp to
// the end of s.
func FromPosition(s string, pos Position) int {
	lineStart := 0
	for l := 0; l < pos.Line; l++ {
		i := strings.IndexByte(s[lineStart:], '\n')
		if i < 0 {
			return Len(s)
		}
		lineStart += i + 1
	}
	lineEnd := len(s)
	if i := strings.IndexByte(s[lineStart:], '\n'); i >= 0 {
		lineEnd = lineStart + i
	}
	b := lineStart + pos.Col
	if b > lineEnd {
		b = lineEnd
	}
	// Snap a column that lands inside a multi-byte rune back to its start.
	for b > lineStart && b < len(s) && !utf8.RuneStart(s[b]) {
		b--
	}
	return utf8.RuneCountInString(s[:b])
}
