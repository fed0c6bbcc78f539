package overlay

import (
	"fmt"
	"testing"

	"github.com/dayzy/notes/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestOverlay(labels []models.TextLabel) *Overlay {
	o := New(labels)
	n := 0
	o.newId = func() string {
		n++
		return fmt.Sprintf("text_%d", n)
	}
	return o
}

func TestAddLabel_CascadingOffset(t *testing.T) {
	o := newTestOverlay(nil)

	a, ok := o.AddLabel("A", Style{FontSize: 16, Color: "#112233"})
	require.True(t, ok)
	b, ok := o.AddLabel("B", Style{FontSize: 16, Color: "#112233"})
	require.True(t, ok)
	c, ok := o.AddLabel("C", Style{FontSize: 16, Color: "#112233"})
	require.True(t, ok)

	assert.Equal(t, float64(labelOriginX), a.X)
	assert.Equal(t, float64(labelOriginY), a.Y)
	assert.Equal(t, a.X, b.X)
	assert.Equal(t, a.Y+LabelStep, b.Y)
	assert.Equal(t, b.X, c.X)
	assert.Equal(t, b.Y+LabelStep, c.Y)
	assert.Len(t, o.Labels(), 3)
}

func TestAddLabel_EmptyTextIgnored(t *testing.T) {
	o := newTestOverlay(nil)

	_, ok := o.AddLabel("   \t", Style{})
	assert.False(t, ok)
	_, ok = o.AddLabel("", Style{})
	assert.False(t, ok)
	assert.Empty(t, o.Labels())
}

func TestAddLabel_DefaultsAndClamp(t *testing.T) {
	o := newTestOverlay(nil)

	l, ok := o.AddLabel("x", Style{FontSize: 500, Color: "red"})
	require.True(t, ok)
	assert.Equal(t, models.MaxFontSize, l.FontSize)
	assert.Equal(t, models.DefaultColor, l.Color)

	l, ok = o.AddLabel("y", Style{})
	require.True(t, ok)
	assert.Equal(t, models.DefaultFontSize, l.FontSize)
}

func TestDrag_TranslatesByDelta(t *testing.T) {
	o := newTestOverlay(nil)
	l, _ := o.AddLabel("drag me", Style{FontSize: 16})

	require.True(t, o.BeginDrag(l.Id, models.Point{X: 100, Y: 100}))
	assert.Equal(t, l.Id, o.Selected())

	assert.True(t, o.UpdateDrag(models.Point{X: 110, Y: 95}))
	assert.True(t, o.UpdateDrag(models.Point{X: 120, Y: 105}))

	got, _ := o.Label(l.Id)
	assert.Equal(t, l.X+20, got.X)
	assert.Equal(t, l.Y+5, got.Y)
	assert.True(t, o.EndDrag())
	assert.False(t, o.Active())
}

func TestDrag_OnlyOneAtATime(t *testing.T) {
	o := newTestOverlay(nil)
	a, _ := o.AddLabel("a", Style{})
	b, _ := o.AddLabel("b", Style{})

	require.True(t, o.BeginDrag(a.Id, models.Point{}))
	assert.False(t, o.BeginDrag(b.Id, models.Point{}))
	assert.False(t, o.BeginResize(b.Id, models.Point{}))

	id, dragging := o.Dragging()
	assert.True(t, dragging)
	assert.Equal(t, a.Id, id)
}

func TestRelease_ClearsStuckDrag(t *testing.T) {
	o := newTestOverlay(nil)
	a, _ := o.AddLabel("a", Style{})

	require.True(t, o.BeginDrag(a.Id, models.Point{X: 0, Y: 0}))
	o.Update(models.Point{X: 5, Y: 5})

	assert.True(t, o.Release())
	assert.False(t, o.Active())
	assert.False(t, o.Update(models.Point{X: 50, Y: 50}))

	got, _ := o.Label(a.Id)
	assert.Equal(t, a.X+5, got.X)
}

func TestRelease_WithoutChangeReportsFalse(t *testing.T) {
	o := newTestOverlay(nil)
	a, _ := o.AddLabel("a", Style{})

	require.True(t, o.BeginDrag(a.Id, models.Point{X: 3, Y: 3}))
	o.Update(models.Point{X: 3, Y: 3})
	assert.False(t, o.Release())
}

func TestResize_ProportionalToHorizontalDelta(t *testing.T) {
	o := newTestOverlay(nil)
	l, _ := o.AddLabel("size", Style{FontSize: 20})

	require.True(t, o.BeginResize(l.Id, models.Point{X: 100, Y: 100}))
	assert.True(t, o.UpdateResize(models.Point{X: 150, Y: 400}))

	got, _ := o.Label(l.Id)
	assert.Equal(t, 30, got.FontSize)

	// Vertical motion alone does nothing
	assert.False(t, o.UpdateResize(models.Point{X: 150, Y: -300}))
	got, _ = o.Label(l.Id)
	assert.Equal(t, 30, got.FontSize)
	assert.True(t, o.EndResize())
}

func TestResize_Clamped(t *testing.T) {
	deltas := []float64{-100000, -500, -61, -1, 0, 1, 59, 400, 100000}
	for _, d := range deltas {
		o := newTestOverlay(nil)
		l, _ := o.AddLabel("clamp", Style{FontSize: 16})
		require.True(t, o.BeginResize(l.Id, models.Point{}))
		o.UpdateResize(models.Point{X: d})
		got, _ := o.Label(l.Id)
		assert.GreaterOrEqual(t, got.FontSize, models.MinFontSize, "delta %v", d)
		assert.LessOrEqual(t, got.FontSize, models.MaxFontSize, "delta %v", d)
	}
}

func TestToggleStyle(t *testing.T) {
	o := newTestOverlay(nil)
	l, _ := o.AddLabel("style", Style{})

	assert.True(t, o.ToggleStyle(l.Id, StyleToggle{Bold: true}))
	got, _ := o.Label(l.Id)
	assert.True(t, got.Bold)
	assert.False(t, got.Italic)

	assert.True(t, o.ToggleStyle(l.Id, StyleToggle{Bold: true, Italic: true}))
	got, _ = o.Label(l.Id)
	assert.False(t, got.Bold)
	assert.True(t, got.Italic)

	assert.False(t, o.ToggleStyle(l.Id, StyleToggle{}))
	assert.False(t, o.ToggleStyle("missing", StyleToggle{Bold: true}))
}

func TestDeleteLabel_ClearsSelectionAndDrag(t *testing.T) {
	o := newTestOverlay(nil)
	a, _ := o.AddLabel("a", Style{})
	require.True(t, o.BeginDrag(a.Id, models.Point{}))

	assert.True(t, o.DeleteLabel(a.Id))
	assert.Empty(t, o.Selected())
	assert.False(t, o.Active())
	assert.False(t, o.DeleteLabel(a.Id))
}

func TestSetLabels_DropsMissingSelection(t *testing.T) {
	o := newTestOverlay(nil)
	a, _ := o.AddLabel("a", Style{})
	b, _ := o.AddLabel("b", Style{})
	o.Select(b.Id)

	o.SetLabels([]models.TextLabel{a})
	assert.Empty(t, o.Selected())

	o.Select(a.Id)
	o.SetLabels([]models.TextLabel{a})
	assert.Equal(t, a.Id, o.Selected())
}

func TestLabels_ReturnsCopy(t *testing.T) {
	o := newTestOverlay(nil)
	a, _ := o.AddLabel("a", Style{})

	labels := o.Labels()
	labels[0].Text = "changed"

	got, _ := o.Label(a.Id)
	assert.Equal(t, "a", got.Text)
}
