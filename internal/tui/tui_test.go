package tui

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/track.go/internal/engine"
	"github.com/sokinpui/track.go/model"
)

func newReview(t *testing.T, baseline, working string, write WriteFunc) (Model, *engine.Engine, *Bridge) {
	t.Helper()
	b := NewBridge()
	e := engine.New(b)
	b.Open("doc", working)
	b.SetListener(e.OnWorkingTextChanged)
	e.OnWorkingTextChanged("doc", working)
	require.NoError(t, e.SetBaselineText("doc", baseline))
	require.NoError(t, e.OpenTracking("doc"))

	m := New(e, "doc", write)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model), e, b
}

func press(t *testing.T, m Model, k string) (Model, tea.Cmd) {
	t.Helper()
	var msg tea.KeyMsg
	switch k {
	case "down":
		msg = tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		msg = tea.KeyMsg{Type: tea.KeyUp}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestReview_AcceptSelected(t *testing.T) {
	m, e, _ := newReview(t, "one two three", "ONE two THREE", nil)
	require.Len(t, m.state.Spans, 2)

	m, _ = press(t, m, "down")
	m, _ = press(t, m, "a")

	st, err := e.GetDocumentState("doc")
	require.NoError(t, err)
	assert.Equal(t, "one two THREE", st.BaselineText)
	require.Len(t, m.state.Spans, 1)
	assert.Equal(t, 0, m.cursor, "cursor clamps to the remaining span")
	assert.Equal(t, []string{`"three" -> "THREE"`}, m.Summary().Accepted)
}

func TestReview_RevertSelected(t *testing.T) {
	m, _, b := newReview(t, "Hello world", "Hi world", nil)

	m, _ = press(t, m, "r")
	assert.Equal(t, "Hello world", b.Text("doc"))
	assert.Empty(t, m.state.Spans)
	assert.Equal(t, []string{`"Hello" -> "Hi"`}, m.Summary().Reverted)

	m, _ = press(t, m, "r")
	assert.Equal(t, "No pending changes.", m.status)
}

func TestReview_ResolveAll(t *testing.T) {
	m, _, b := newReview(t, "one two three", "ONE two THREE", nil)
	m, _ = press(t, m, "R")
	assert.Equal(t, "one two three", b.Text("doc"))
	assert.Len(t, m.Summary().Reverted, 2)

	m, e, _ := newReview(t, "one two three", "ONE two THREE", nil)
	m, _ = press(t, m, "A")
	st, err := e.GetDocumentState("doc")
	require.NoError(t, err)
	assert.Equal(t, "ONE two THREE", st.BaselineText)
	assert.Len(t, m.Summary().Accepted, 2)
}

func TestReview_Write(t *testing.T) {
	var written string
	m, _, _ := newReview(t, "Hello world", "Hi world", func(text string) error {
		written = text
		return nil
	})
	m, _ = press(t, m, "w")
	assert.Equal(t, "Hi world", written)
	assert.Equal(t, "Wrote doc", m.status)

	m, _, _ = newReview(t, "Hello world", "Hi world", func(string) error { return errors.New("disk full") })
	m, _ = press(t, m, "w")
	assert.EqualError(t, m.err, "disk full")
	assert.Equal(t, []string{"disk full"}, m.Summary().Failed)
}

func TestReview_QuitReportsPending(t *testing.T) {
	m, _, _ := newReview(t, "Hello world", "Hi world", nil)
	m, cmd := press(t, m, "q")
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
	assert.Equal(t, []string{`"Hello" -> "Hi"`}, m.Summary().Pending)
	assert.Empty(t, m.Summary().Message)
}

func TestReview_RefreshAfterExternalEdit(t *testing.T) {
	m, _, b := newReview(t, "Hello world", "Hello world", nil)
	assert.Empty(t, m.state.Spans)

	b.Edit("doc", 11, 11, "!")
	next, _ := m.Update(refreshMsg{docID: "doc"})
	m = next.(Model)
	require.Len(t, m.state.Spans, 1)
	assert.Equal(t, model.KindInsert, m.state.Spans[0].Kind)
	assert.Contains(t, m.View(), "1 pending")
}

func TestRenderDocument(t *testing.T) {
	spans := []model.Span{
		{Kind: model.KindReplace, WorkingFrom: 0, WorkingTo: 2, BaselineText: "Hello", WorkingText: "Hi"},
		{Kind: model.KindInsert, WorkingFrom: 8, WorkingTo: 9, WorkingText: "!"},
	}
	out := renderDocument("Hi world!", spans, 1)
	assert.Contains(t, out, "Hello")
	assert.Contains(t, out, "Hi")
	assert.Contains(t, out, " world")
	assert.Contains(t, out, "!")

	assert.Equal(t, "plain", renderDocument("plain", nil, 0))
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, `insert "x"`, describe(model.Span{Kind: model.KindInsert, WorkingText: "x"}))
	assert.Equal(t, `delete "y"`, describe(model.Span{Kind: model.KindDelete, BaselineText: "y"}))
	long := describe(model.Span{Kind: model.KindInsert, WorkingText: "0123456789012345678901234567890123456789"})
	assert.Equal(t, `insert "01234567890123456789012345678901…"`, long)
}
