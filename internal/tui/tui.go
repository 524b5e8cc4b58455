// Package tui is a terminal review of one tracked document: the working text
// with its pending spans highlighted, resolved one at a time from the keyboard.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/sokinpui/track.go/internal/runes"
	"github.com/sokinpui/track.go/model"
)

// --- Styles ---
var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))  // Mauve
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))             // Green
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("197"))            // Red
	addedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("78"))
	removedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("197")).Strikethrough(true)
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	faintStyle    = lipgloss.NewStyle().Faint(true)
)

// Engine is the part of the engine the review drives.
type Engine interface {
	GetDocumentState(docID string) (model.DocumentState, error)
	Accept(docID, spanID string) error
	Revert(docID, spanID string) error
	AcceptAll(docID string) error
	ClearAll(docID string) error
}

// WriteFunc saves the working text.
type WriteFunc func(text string) error

type keyMap struct {
	Up        key.Binding
	Down      key.Binding
	Accept    key.Binding
	Revert    key.Binding
	AcceptAll key.Binding
	RevertAll key.Binding
	Write     key.Binding
	Help      key.Binding
	Quit      key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Accept, k.Revert, k.Write, k.Help, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Accept, k.Revert, k.AcceptAll, k.RevertAll},
		{k.Write, k.Help, k.Quit},
	}
}

var keys = keyMap{
	Up:        key.NewBinding(key.WithKeys("up", "k", "shift+tab"), key.WithHelp("↑/k", "previous change")),
	Down:      key.NewBinding(key.WithKeys("down", "j", "tab"), key.WithHelp("↓/j", "next change")),
	Accept:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "accept")),
	Revert:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "revert")),
	AcceptAll: key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "accept all")),
	RevertAll: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "revert all")),
	Write:     key.NewBinding(key.WithKeys("w"), key.WithHelp("w", "write")),
	Help:      key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:      key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// --- Model ---
type Model struct {
	engine   Engine
	docID    string
	write    WriteFunc
	state    model.DocumentState
	cursor   int
	keys     keyMap
	help     help.Model
	viewport viewport.Model
	ready    bool
	status   string
	err      error
	summary  model.Summary
}

// New returns a review of docID. write may be nil, which disables saving.
func New(e Engine, docID string, write WriteFunc) Model {
	m := Model{
		engine: e,
		docID:  docID,
		write:  write,
		keys:   keys,
		help:   help.New(),
	}
	m.refresh()
	return m
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height - 3
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.viewport = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = height
		}
		m.help.Width = msg.Width
		m.sync()
		return m, nil

	case refreshMsg:
		if msg.docID == m.docID {
			m.refresh()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	var cmd tea.Cmd
	if m.ready {
		m.viewport, cmd = m.viewport.Update(msg)
	}
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.finish()
		return m, tea.Quit
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, m.keys.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.Down):
		if m.cursor < len(m.state.Spans)-1 {
			m.cursor++
		}
	case key.Matches(msg, m.keys.Accept):
		m.resolve("Accepted", m.engine.Accept, &m.summary.Accepted)
	case key.Matches(msg, m.keys.Revert):
		m.resolve("Reverted", m.engine.Revert, &m.summary.Reverted)
	case key.Matches(msg, m.keys.AcceptAll):
		m.resolveAll("Accepted", m.engine.AcceptAll, &m.summary.Accepted)
	case key.Matches(msg, m.keys.RevertAll):
		m.resolveAll("Reverted", m.engine.ClearAll, &m.summary.Reverted)
	case key.Matches(msg, m.keys.Write):
		m.save()
	}
	m.sync()
	return m, nil
}

// resolve applies op to the selected span.
func (m *Model) resolve(verb string, op func(docID, spanID string) error, into *[]string) {
	s, ok := m.selected()
	if !ok {
		m.status = "No pending changes."
		return
	}
	if err := op(m.docID, s.ID); err != nil {
		m.fail(err)
		return
	}
	*into = append(*into, describe(s))
	m.status = fmt.Sprintf("%s %s.", verb, describe(s))
	m.refresh()
}

func (m *Model) resolveAll(verb string, op func(docID string) error, into *[]string) {
	pending := m.state.Spans
	if len(pending) == 0 {
		m.status = "No pending changes."
		return
	}
	if err := op(m.docID); err != nil {
		m.fail(err)
		return
	}
	for _, s := range pending {
		*into = append(*into, describe(s))
	}
	m.status = fmt.Sprintf("%s %d change(s).", verb, len(pending))
	m.refresh()
}

func (m *Model) save() {
	if m.write == nil {
		m.status = "Nothing to write to."
		return
	}
	if err := m.write(m.state.WorkingText); err != nil {
		m.fail(err)
		return
	}
	m.status = "Wrote " + m.docID
}

func (m *Model) fail(err error) {
	m.err = err
	m.summary.Failed = append(m.summary.Failed, err.Error())
	m.refresh()
}

// refresh pulls the latest published state from the engine.
func (m *Model) refresh() {
	st, err := m.engine.GetDocumentState(m.docID)
	if err != nil {
		m.err = err
		return
	}
	m.state = st
	if m.cursor >= len(st.Spans) {
		m.cursor = len(st.Spans) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
	m.sync()
}

// sync redraws the viewport and scrolls the selected span into view.
func (m *Model) sync() {
	if !m.ready {
		return
	}
	m.viewport.SetContent(renderDocument(m.state.WorkingText, m.state.Spans, m.cursor))
	if s, ok := m.selected(); ok {
		line := runes.ToPosition(m.state.WorkingText, s.WorkingFrom).Line
		offset := line - m.viewport.Height/3
		if offset < 0 {
			offset = 0
		}
		m.viewport.SetYOffset(offset)
	}
}

func (m *Model) finish() {
	m.summary.Pending = nil
	for _, s := range m.state.Spans {
		m.summary.Pending = append(m.summary.Pending, describe(s))
	}
	if len(m.state.Spans) == 0 {
		m.summary.Message = "All changes resolved."
	}
}

func (m Model) selected() (model.Span, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.Spans) {
		return model.Span{}, false
	}
	return m.state.Spans[m.cursor], true
}

// Summary reports what was resolved during the review.
func (m Model) Summary() model.Summary {
	return m.summary
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	var b strings.Builder
	b.WriteString(headerStyle.Render(m.docID))
	b.WriteString(faintStyle.Render(fmt.Sprintf("  %d pending", len(m.state.Spans))))
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("Error: " + m.err.Error()))
	case m.status != "":
		b.WriteString(successStyle.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

// renderDocument draws the working text with removed baseline text inline
// before the text that replaced it.
func renderDocument(working string, spans []model.Span, selected int) string {
	var b strings.Builder
	prev := 0
	for i, s := range spans {
		b.WriteString(runes.Slice(working, prev, s.WorkingFrom))
		var seg strings.Builder
		if s.BaselineText != "" {
			seg.WriteString(paint(removedStyle, s.BaselineText))
		}
		if s.WorkingText != "" {
			seg.WriteString(paint(addedStyle, s.WorkingText))
		}
		if i == selected {
			b.WriteString(paint(selectedStyle, seg.String()))
		} else {
			b.WriteString(seg.String())
		}
		prev = s.WorkingTo
	}
	b.WriteString(runes.Slice(working, prev, runes.Len(working)))
	return b.String()
}

// paint styles each line on its own so lipgloss does not pad lines to a
// common width.
func paint(style lipgloss.Style, text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = style.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}

// describe names a span for status lines and summaries.
func describe(s model.Span) string {
	switch s.Kind {
	case model.KindInsert:
		return fmt.Sprintf("insert %q", clip(s.WorkingText))
	case model.KindDelete:
		return fmt.Sprintf("delete %q", clip(s.BaselineText))
	default:
		return fmt.Sprintf("%q -> %q", clip(s.BaselineText), clip(s.WorkingText))
	}
}

func clip(s string) string {
	const limit = 32
	if runes.Len(s) <= limit {
		return s
	}
	return runes.Slice(s, 0, limit) + "…"
}
