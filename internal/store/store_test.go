package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/track.go/model"
)

// oneSpan reports a single insert whenever the texts differ.
func oneSpan(calls *int) Recomputer {
	return func(baseline, working string) []model.Span {
		*calls++
		if baseline == working {
			return nil
		}
		return []model.Span{{ID: baseline + "->" + working, Kind: model.KindReplace, BaselineText: baseline, WorkingText: working}}
	}
}

func TestRegistry_LazyCreation(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Lookup("a.txt")
	assert.False(t, ok)

	d := r.Get("a.txt")
	assert.Equal(t, "a.txt", d.ID())
	assert.Same(t, d, r.Get("a.txt"))

	r.Get("b.txt")
	assert.Equal(t, []string{"a.txt", "b.txt"}, r.IDs())

	r.Remove("a.txt")
	assert.Equal(t, []string{"b.txt"}, r.IDs())
}

func TestDocument_EnableSnapshotsWorking(t *testing.T) {
	calls := 0
	d := NewRegistry().Get("doc")
	d.SetWorkingText("draft")

	require.True(t, d.EnableTracking())
	assert.Equal(t, "draft", d.Baseline())
	d.Recompute(oneSpan(&calls))
	assert.Empty(t, d.Spans())

	assert.False(t, d.EnableTracking(), "second enable is a no-op")
}

func TestDocument_EnableKeepsDeliberateBaseline(t *testing.T) {
	calls := 0
	d := NewRegistry().Get("doc")
	d.SetBaselineText("original")
	d.SetWorkingText("proposal")

	d.EnableTracking()
	d.Recompute(oneSpan(&calls))
	assert.Equal(t, "original", d.Baseline())
	require.Len(t, d.Spans(), 1)
}

func TestDocument_ReopenReusesBaseline(t *testing.T) {
	calls := 0
	d := NewRegistry().Get("doc")
	d.SetWorkingText("v1")
	d.EnableTracking()
	d.DisableTracking()

	d.SetWorkingText("v2")
	d.EnableTracking()
	d.Recompute(oneSpan(&calls))
	assert.Equal(t, "v1", d.Baseline())
	require.Len(t, d.Spans(), 1)
}

func TestDocument_DisabledSuppressesSpans(t *testing.T) {
	calls := 0
	d := NewRegistry().Get("doc")
	d.SetBaselineText("a")
	d.SetWorkingText("b")
	d.EnableTracking()
	d.Recompute(oneSpan(&calls))
	require.Len(t, d.Spans(), 1)

	v := d.Version()
	require.True(t, d.DisableTracking())
	assert.Empty(t, d.Spans())
	assert.Greater(t, d.Version(), v)

	_, ok := d.Span("a->b")
	assert.False(t, ok)

	d.Recompute(oneSpan(&calls))
	assert.Empty(t, d.Spans())
	assert.Equal(t, 1, calls, "recompute is skipped while tracking is off")
}

func TestDocument_SetReportsRecompute(t *testing.T) {
	d := NewRegistry().Get("doc")
	assert.False(t, d.SetWorkingText("x"), "tracking off")

	d.EnableTracking()
	assert.True(t, d.SetWorkingText("y"))
	assert.False(t, d.SetWorkingText("y"), "unchanged text")
	assert.True(t, d.SetBaselineText("z"))
	assert.False(t, d.SetBaselineText("z"))
}

func TestDocument_SpansReturnsCopy(t *testing.T) {
	calls := 0
	d := NewRegistry().Get("doc")
	d.SetBaselineText("a")
	d.SetWorkingText("b")
	d.EnableTracking()
	d.Recompute(oneSpan(&calls))

	spans := d.Spans()
	spans[0].ID = "mutated"
	_, ok := d.Span("a->b")
	assert.True(t, ok)

	st := d.State()
	assert.Equal(t, "a", st.BaselineText)
	assert.Equal(t, "b", st.WorkingText)
	assert.True(t, st.Tracking)
	assert.Len(t, st.Spans, 1)
}
