package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/track.go/internal/runes"
	"github.com/sokinpui/track.go/model"
)

func TestCompute_Equal(t *testing.T) {
	assert.Empty(t, Compute("", ""))
	assert.Empty(t, Compute("same text", "same text"))
}

func TestCompute_Insert(t *testing.T) {
	spans := Compute("abc", "abXc")
	require.Len(t, spans, 1)
	assert.Equal(t, model.Span{
		Kind:         model.KindInsert,
		BaselineFrom: 2,
		BaselineTo:   2,
		WorkingFrom:  2,
		WorkingTo:    3,
		WorkingText:  "X",
	}, spans[0])
}

func TestCompute_Delete(t *testing.T) {
	spans := Compute("abXc", "abc")
	require.Len(t, spans, 1)
	assert.Equal(t, model.Span{
		Kind:         model.KindDelete,
		BaselineFrom: 2,
		BaselineTo:   3,
		WorkingFrom:  2,
		WorkingTo:    2,
		BaselineText: "X",
	}, spans[0])
}

func TestCompute_DeleteThenInsert(t *testing.T) {
	spans := Compute("Hello world", "Hi world")
	require.Len(t, spans, 2)

	assert.Equal(t, model.KindDelete, spans[0].Kind)
	assert.Equal(t, "ello", spans[0].BaselineText)
	assert.Equal(t, [2]int{1, 5}, [2]int{spans[0].BaselineFrom, spans[0].BaselineTo})

	assert.Equal(t, model.KindInsert, spans[1].Kind)
	assert.Equal(t, "i", spans[1].WorkingText)
	assert.Equal(t, [2]int{1, 2}, [2]int{spans[1].WorkingFrom, spans[1].WorkingTo})
}

func TestCompute_RuneOffsets(t *testing.T) {
	spans := Compute("naïve café", "naïve cafés")
	require.Len(t, spans, 1)
	assert.Equal(t, 10, spans[0].WorkingFrom)
	assert.Equal(t, 11, spans[0].WorkingTo)
	assert.Equal(t, "s", spans[0].WorkingText)
}

func TestApply_Reconstructs(t *testing.T) {
	pairs := [][2]string{
		{"", "new document"},
		{"old document", ""},
		{"Hello world", "Hi world"},
		{"abc", "abXc"},
		{"Hello world, test", "HELLO WORLD, test"},
		{"the quick brown fox", "a quick red fox jumps"},
		{"line1\nline2\nline3\n", "line1\nline 2\nline3\nline4\n"},
		{"日本語のテキスト", "日本のテキストです"},
	}
	for _, p := range pairs {
		spans := Compute(p[0], p[1])
		assert.Equal(t, p[1], Apply(p[0], spans), "baseline %q working %q", p[0], p[1])
	}
}

func TestCompute_PositionsAreMonotonic(t *testing.T) {
	spans := Compute("the quick brown fox", "a quick red fox jumps")
	for i := 1; i < len(spans); i++ {
		assert.LessOrEqual(t, spans[i-1].BaselineTo, spans[i].BaselineFrom)
		assert.LessOrEqual(t, spans[i-1].WorkingTo, spans[i].WorkingFrom)
	}
}

func TestCompute_InvalidUTF8(t *testing.T) {
	spans := Compute("a\xffb", "a\xfeb")
	require.Len(t, spans, 2)
	assert.Equal(t, model.Span{Kind: model.KindDelete, BaselineFrom: 1, BaselineTo: 2, WorkingFrom: 1, WorkingTo: 1, BaselineText: "\xff"}, spans[0])
	assert.Equal(t, model.Span{Kind: model.KindInsert, BaselineFrom: 2, BaselineTo: 2, WorkingFrom: 1, WorkingTo: 2, WorkingText: "\xfe"}, spans[1])

	pairs := [][2]string{
		{"caf\xe9 latin-1", "café utf-8"},
		{"x\xe2\x82y", "x\xe2\x82\xacy"},
		{"\xff\xfe", ""},
		{"valid", "in\x80valid"},
	}
	for _, p := range pairs {
		assert.Equal(t, p[1], Apply(p[0], Compute(p[0], p[1])), "baseline %q working %q", p[0], p[1])
	}
}

func TestCompute_InvalidUTF8WithEscapeRunes(t *testing.T) {
	baseline, working := "\U0010FFAA\xff", "\U0010FFAA\xfe"
	spans := Compute(baseline, working)
	assert.Equal(t, working, Apply(baseline, spans))
	for _, s := range spans {
		assert.Equal(t, s.BaselineText, runes.Slice(baseline, s.BaselineFrom, s.BaselineTo))
		assert.Equal(t, s.WorkingText, runes.Slice(working, s.WorkingFrom, s.WorkingTo))
	}
}
