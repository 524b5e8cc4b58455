package track

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/sokinpui/track.go/cli"
	"github.com/sokinpui/track.go/internal/engine"
	"github.com/sokinpui/track.go/internal/fs"
	"github.com/sokinpui/track.go/internal/nvim"
	"github.com/sokinpui/track.go/internal/parser"
	"github.com/sokinpui/track.go/internal/patcher"
	"github.com/sokinpui/track.go/internal/source"
	"github.com/sokinpui/track.go/internal/tui"
	"github.com/sokinpui/track.go/internal/ui"
	"github.com/sokinpui/track.go/internal/watch"
	"github.com/sokinpui/track.go/model"
)

// ProgressUpdate is a callback function to report progress.
type ProgressUpdate func(current, total int)

// App orchestrates the entire application logic.
type App struct {
	cfg              *cli.Config
	log              *zap.Logger
	pathResolver     *fs.PathResolver
	content          func() (string, error)
	stdin            io.Reader
	progressCallback ProgressUpdate
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error {
	return e.Err
}

// New creates a new App instance.
func New(cfg *cli.Config, log *zap.Logger) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pathResolver, err := fs.NewPathResolver(cfg.LookupDirs)
	if err != nil {
		return nil, err
	}
	return &App{
		cfg:          cfg,
		log:          log,
		pathResolver: pathResolver,
		content:      source.New().GetContent,
		stdin:        os.Stdin,
	}, nil
}

// SetSource replaces stdin and the clipboard as the origin of agent output.
func (a *App) SetSource(content func() (string, error)) {
	a.content = content
}

// SetProgressCallback sets a function to be called for progress updates.
func (a *App) SetProgressCallback(cb ProgressUpdate) {
	a.progressCallback = cb
}

func (a *App) engineOptions() []engine.Option {
	return []engine.Option{
		engine.WithLogger(a.log.Named("engine")),
		engine.WithWordSnap(!a.cfg.NoWordSnap),
		engine.WithDiffTimeout(a.cfg.DiffTimeout),
	}
}

// recoverPanic turns a panic into a DetailedError stored in err.
func recoverPanic(err *error) {
	if r := recover(); r != nil {
		*err = &DetailedError{
			Err:   fmt.Errorf("internal panic: %v", r),
			Stack: debug.Stack(),
		}
	}
}

// Parse creates a plan from content and returns a map of file paths to their
// proposed content.
func (a *App) Parse(content string) (map[string]string, error) {
	plan, err := parser.CreatePlan(content, a.pathResolver, a.cfg.Extensions)
	if err != nil {
		return nil, fmt.Errorf("failed to create execution plan: %w", err)
	}
	changes := make(map[string]string, len(plan.Changes))
	for _, change := range plan.Changes {
		changes[change.Path] = change.Content
	}
	return changes, nil
}

// proposals reads agent output from stdin or the clipboard and plans it. A
// nil plan with a nil error means there is nothing to review; the summary
// message says why.
func (a *App) proposals() (*parser.ExecutionPlan, string, error) {
	content, err := a.content()
	if err != nil {
		return nil, "", err
	}
	if content == "" {
		return nil, "Source is empty. Nothing to process.", nil
	}
	plan, err := parser.CreatePlan(content, a.pathResolver, a.cfg.Extensions)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create execution plan: %w", err)
	}
	if len(plan.Changes) == 0 {
		return nil, "No valid changes were generated. Nothing to do.", nil
	}
	if !fs.ConfirmAndCreateDirs(plan.DirsToCreate, a.stdin, a.cfg.Yes) {
		return nil, "Directory creation declined.", nil
	}
	return plan, "", nil
}

// renderSignal wakes the review loop whenever the engine renders.
type renderSignal struct {
	*nvim.Bridge
	rendered chan struct{}
}

func (b *renderSignal) Render(docID string, spans []model.Span, actions engine.Actions) {
	b.Bridge.Render(docID, spans, actions)
	select {
	case b.rendered <- struct{}{}:
	default:
	}
}

// ReviewInNvim loads every proposed file into Neovim with the file on disk
// as baseline, and serves accept/revert commands until :TrackDone, until no
// document has a pending change, or until ctx is done.
func (a *App) ReviewInNvim(ctx context.Context) (summary model.Summary, err error) {
	defer recoverPanic(&err)

	plan, msg, err := a.proposals()
	if err != nil || plan == nil {
		return model.Summary{Message: msg}, err
	}

	manager, err := nvim.New(a.cfg.NvimAddress, a.log.Named("nvim"))
	if err != nil {
		return model.Summary{}, err
	}
	defer manager.Close()

	hl := nvim.Highlights{
		Added:   a.cfg.Highlights.Added,
		Changed: a.cfg.Highlights.Changed,
		Deleted: a.cfg.Highlights.Deleted,
	}
	nb, err := nvim.NewBridge(manager, hl)
	if err != nil {
		return model.Summary{}, err
	}
	defer nb.Close()

	br := &renderSignal{Bridge: nb, rendered: make(chan struct{}, 1)}
	eng := engine.New(br, a.engineOptions()...)
	nb.SetTarget(eng)

	originals := make(map[string]string, len(plan.Changes))
	unchanged := make(map[string]bool)
	open := func(change model.FileChange) error {
		disk, _, err := fs.ReadText(change.Path)
		if err != nil {
			return err
		}
		baseline := nvim.Normalize(disk)
		working, err := nb.Open(change.Path, change.Content)
		if err != nil {
			a.log.Warn("open failed", zap.String("doc", change.Path), zap.Error(err))
			return err
		}
		eng.OnWorkingTextChanged(change.Path, working)
		if err := eng.SetBaselineText(change.Path, baseline); err != nil {
			return err
		}
		originals[change.Path] = baseline
		if err := eng.OpenTracking(change.Path); err != nil {
			return err
		}
		unchanged[change.Path] = len(eng.Spans(change.Path)) == 0
		return nil
	}

	total := len(plan.Changes)
	var progressCb func(int)
	if a.progressCallback != nil {
		a.progressCallback(0, total)
		progressCb = func(current int) { a.progressCallback(current, total) }
	}
	opened, failed := nvim.OpenChanges(plan.Changes, open, progressCb)
	ui.PrintOpenSummary(a.relativize(opened), a.relativize(failed))
	if len(opened) == 0 {
		return model.Summary{Failed: a.relativize(failed)}, nil
	}

	if a.cfg.AcceptAll || !manager.Interactive() {
		for _, docID := range opened {
			if err := eng.AcceptAll(docID); err != nil {
				failed = append(failed, docID)
			}
		}
	} else {
		ui.Info("\nReview in Neovim with :TrackAccept, :TrackRevert, :TrackAcceptAll and :TrackClear. Finish with :TrackDone.")
		a.waitForReview(ctx, eng, nb, br.rendered, opened)
	}

	summary = a.summarize(eng, opened, originals, unchanged)
	summary.Failed = append(summary.Failed, a.relativize(failed)...)

	if a.cfg.Buffer {
		summary.Message = "Buffers left unsaved."
	} else if err := manager.SaveAllBuffers(); err != nil {
		return summary, err
	}
	for _, docID := range opened {
		if err := eng.CloseTracking(docID); err != nil {
			a.log.Debug("close tracking", zap.String("doc", docID), zap.Error(err))
		}
	}
	return summary, nil
}

func (a *App) waitForReview(ctx context.Context, eng *engine.Engine, nb *nvim.Bridge, rendered <-chan struct{}, docs []string) {
	for !allResolved(eng, docs) {
		select {
		case <-ctx.Done():
			return
		case <-nb.Done():
			return
		case <-rendered:
		}
	}
}

func allResolved(eng *engine.Engine, docs []string) bool {
	for _, docID := range docs {
		if len(eng.Spans(docID)) > 0 {
			return false
		}
	}
	return true
}

// summarize classifies every reviewed document by how it ended up. A document
// whose proposal matched the file and that ends with the file's text is
// unchanged.
func (a *App) summarize(eng *engine.Engine, docs []string, originals map[string]string, unchanged map[string]bool) model.Summary {
	var s model.Summary
	for _, docID := range docs {
		st, err := eng.GetDocumentState(docID)
		if err != nil {
			s.Failed = append(s.Failed, a.relativePath(docID))
			continue
		}
		switch {
		case len(st.Spans) > 0:
			s.Pending = append(s.Pending, fmt.Sprintf("%s (%d)", a.relativePath(docID), len(st.Spans)))
		case st.WorkingText != originals[docID]:
			s.Accepted = append(s.Accepted, a.relativePath(docID))
		case unchanged[docID]:
			s.Unchanged = append(s.Unchanged, a.relativePath(docID))
		default:
			s.Reverted = append(s.Reverted, a.relativePath(docID))
		}
	}
	return s
}

// Review runs the terminal review of path. The baseline is the file on disk
// and the working text the agent proposal for it, or with cfg.Baseline set,
// the baseline is that file and the working text is path itself.
func (a *App) Review(ctx context.Context, path string) (summary model.Summary, err error) {
	defer recoverPanic(&err)

	docID := a.pathResolver.Resolve(path)
	disk, exists, err := fs.ReadText(docID)
	if err != nil {
		return model.Summary{}, err
	}

	var baseline, working string
	if a.cfg.Baseline != "" {
		base, ok, err := fs.ReadText(a.cfg.Baseline)
		if err != nil {
			return model.Summary{}, err
		}
		if !ok {
			return model.Summary{}, fmt.Errorf("baseline %s does not exist", a.cfg.Baseline)
		}
		if !exists {
			return model.Summary{}, fmt.Errorf("%s does not exist", path)
		}
		baseline, working = base, disk
	} else {
		plan, msg, err := a.proposals()
		if err != nil || plan == nil {
			return model.Summary{Message: msg}, err
		}
		proposal, ok := proposalFor(plan, docID)
		if !ok {
			return model.Summary{Message: fmt.Sprintf("No proposal for %s.", path)}, nil
		}
		baseline, working = disk, proposal
	}
	tb := tui.NewBridge()
	eng := engine.New(tb, a.engineOptions()...)
	tb.SetListener(eng.OnWorkingTextChanged)
	tb.Open(docID, working)
	eng.OnWorkingTextChanged(docID, working)
	if err := eng.SetBaselineText(docID, baseline); err != nil {
		return model.Summary{}, err
	}
	if err := eng.OpenTracking(docID); err != nil {
		return model.Summary{}, err
	}

	if a.cfg.Watch {
		w, err := watch.New(func(_, text string) { tb.Replace(docID, text) }, a.cfg.WatchDebounce, a.log.Named("watch"))
		if err != nil {
			return model.Summary{}, fmt.Errorf("failed to start watcher: %w", err)
		}
		if err := w.Add(docID, disk); err != nil {
			w.Stop()
			return model.Summary{}, fmt.Errorf("failed to watch %s: %w", path, err)
		}
		w.Start(ctx)
		defer w.Stop()
	}

	write := func(text string) error { return fs.WriteText(docID, text) }
	p := tea.NewProgram(tui.New(eng, docID, write), tea.WithAltScreen(), tea.WithContext(ctx))
	tb.Attach(p)
	final, err := p.Run()
	if err != nil {
		return model.Summary{}, fmt.Errorf("error running review: %w", err)
	}
	if m, ok := final.(tui.Model); ok {
		summary = m.Summary()
	}
	return summary, nil
}

func proposalFor(plan *parser.ExecutionPlan, path string) (string, bool) {
	for _, change := range plan.Changes {
		if change.Path == path {
			return change.Content, true
		}
	}
	return "", false
}

// Diff writes the spans between two files to w.
func (a *App) Diff(baselinePath, workingPath string, w io.Writer) error {
	baseline, _, err := fs.ReadText(baselinePath)
	if err != nil {
		return err
	}
	working, _, err := fs.ReadText(workingPath)
	if err != nil {
		return err
	}
	ui.FprintSpans(w, Diff(baseline, working, Options{
		NoWordSnap:  a.cfg.NoWordSnap,
		DiffTimeout: a.cfg.DiffTimeout,
	}))
	return nil
}

// FixDiffs corrects the hunk headers of every diff in the agent output and
// writes the results to w.
func (a *App) FixDiffs(w io.Writer) (err error) {
	defer recoverPanic(&err)

	content, err := a.content()
	if err != nil {
		return err
	}
	if content == "" {
		return nil
	}
	diffs, err := parser.ExtractDiffBlocks(content)
	if err != nil {
		return err
	}
	for _, diff := range diffs {
		corrected, err := patcher.CorrectDiff(diff, a.pathResolver)
		if err != nil {
			ui.Warning("Skipping diff block for '%s': %v", diff.FilePath, err)
			continue
		}
		fmt.Fprint(w, corrected)
	}
	return nil
}

// relativePath makes an absolute path relative to the working directory for
// display, falling back to the path itself.
func (a *App) relativePath(p string) string {
	wd, err := os.Getwd()
	if err != nil {
		return p
	}
	rel, err := filepath.Rel(wd, p)
	if err != nil {
		return p
	}
	return rel
}

func (a *App) relativize(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = a.relativePath(p)
	}
	sort.Strings(out)
	return out
}
