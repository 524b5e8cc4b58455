package ui

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"

	"github.com/sokinpui/track.go/model"
)

var (
	HeaderColor  = color.New(color.FgBlue, color.Bold)
	InfoColor    = color.New(color.FgCyan)
	SuccessColor = color.New(color.FgGreen)
	WarningColor = color.New(color.FgYellow)
	ErrorColor   = color.New(color.FgRed)
	PathColor    = color.New(color.FgYellow)
	PromptColor  = color.New(color.FgMagenta)
)

func Header(format string, a ...interface{}) {
	HeaderColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Info(format string, a ...interface{}) {
	InfoColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Success(format string, a ...interface{}) {
	SuccessColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Warning(format string, a ...interface{}) {
	WarningColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Error(format string, a ...interface{}) {
	ErrorColor.Fprintf(os.Stderr, format+"\n", a...)
}

func Path(format string, a ...interface{}) {
	PathColor.Fprintf(os.Stderr, "  "+format+"\n", a...)
}

func Prompt(format string, a ...interface{}) string {
	return PromptColor.Sprintf(format, a...)
}

// --- Summaries ---

func printList(emit func(string, ...interface{}), title string, items []string) {
	if len(items) == 0 {
		return
	}
	emit(title, len(items))
	for _, item := range items {
		fmt.Fprintf(os.Stderr, "  - %s\n", item)
	}
}

// PrintOpenSummary reports which proposed files were loaded for review.
func PrintOpenSummary(opened, failed []string) {
	Header("\n--- Review Session ---")
	if len(opened) == 0 && len(failed) == 0 {
		Info("No files to review.")
		return
	}
	printList(Success, "Tracking changes in %d file(s):", opened)
	printList(Error, "Failed to open %d file(s):", failed)
}

// PrintReviewSummary reports how a review ended.
func PrintReviewSummary(s model.Summary) {
	Header("\n--- Review Summary ---")
	if s.Message != "" {
		Info(s.Message)
	}
	if len(s.Accepted) == 0 && len(s.Reverted) == 0 && len(s.Unchanged) == 0 && len(s.Pending) == 0 && len(s.Failed) == 0 {
		Info("No changes were reviewed.")
		return
	}
	printList(Success, "Accepted %d change(s):", s.Accepted)
	printList(Warning, "Reverted %d change(s):", s.Reverted)
	printList(Info, "%d file(s) already up to date:", s.Unchanged)
	printList(Info, "%d change(s) still pending:", s.Pending)
	printList(Error, "%d operation(s) failed:", s.Failed)
}

var kindColors = map[model.Kind]*color.Color{
	model.KindInsert:  SuccessColor,
	model.KindDelete:  ErrorColor,
	model.KindReplace: WarningColor,
}

// FprintSpans writes one line per span: id, kind, both ranges and texts.
func FprintSpans(w io.Writer, spans []model.Span) {
	for _, s := range spans {
		kind := kindColors[s.Kind].Sprintf("%-7s", s.Kind)
		fmt.Fprintf(w, "%s %s baseline[%d,%d) working[%d,%d) %q -> %q\n",
			s.ID, kind, s.BaselineFrom, s.BaselineTo, s.WorkingFrom, s.WorkingTo, s.BaselineText, s.WorkingText)
	}
}

// --- Progress Bar ---

type ProgressBar struct {
	total   int
	prefix  string
	current int
}

func NewProgressBar(total int, prefix string) *ProgressBar {
	return &ProgressBar{total: total, prefix: prefix}
}

func (p *ProgressBar) Start() {
	p.draw()
}

func (p *ProgressBar) Increment() {
	p.current++
	p.draw()
}

// Set moves the bar to n completed items.
func (p *ProgressBar) Set(n int) {
	p.current = n
	p.draw()
}

func (p *ProgressBar) Finish() {
	fmt.Fprintln(os.Stderr)
}

func (p *ProgressBar) draw() {
	if p.total == 0 {
		return
	}
	const barLength = 40
	percent := float64(p.current) / float64(p.total)
	filledLength := int(percent * barLength)
	bar := strings.Repeat("█", filledLength) + strings.Repeat("-", barLength-filledLength)

	percentStr := fmt.Sprintf("%.1f%%", percent*100)
	countStr := fmt.Sprintf("[%d/%d]", p.current, p.total)

	fmt.Fprintf(os.Stderr, "\r%s |%s| %s %s", p.prefix, bar, countStr, percentStr)
}
