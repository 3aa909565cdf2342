package scene

import (
	"testing"

	"customizer/core"
	"customizer/geometry"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEditor(t *testing.T) (*Editor, *Model) {
	t.Helper()
	m := NewModel()
	views, err := NewViewSwitcher(testViews(t), m)
	require.NoError(t, err)
	return NewEditor(m, views, stageW, stageH), m
}

func TestPointerDownSelectsTopmostUnlocked(t *testing.T) {
	ed, m := newEditor(t)
	below := addImage(t, m, "front", 300, 300, 0)
	above := addImage(t, m, "front", 300, 300, 1)

	id, err := ed.PointerDown(geometry.Point{X: 310, Y: 300})
	require.NoError(t, err)
	assert.Equal(t, above, id)
	assert.Equal(t, StateSelected, ed.State(above))

	locked := true
	require.NoError(t, m.Update(above, Patch{IsLocked: &locked}))
	id, err = ed.PointerDown(geometry.Point{X: 310, Y: 300})
	require.NoError(t, err)
	assert.Equal(t, below, id, "locked element passes the pointer through")
	assert.Equal(t, StateIdle, ed.State(above))

	id, err = ed.PointerDown(geometry.Point{X: 10, Y: 10})
	require.NoError(t, err)
	assert.Empty(t, id)
	_, ok := ed.Selected()
	assert.False(t, ok)
}

func TestLockedElementCannotBeSelected(t *testing.T) {
	ed, m := newEditor(t)
	id, err := m.Add(KindImage, Element{
		ViewID:   "front",
		X:        300,
		Y:        300,
		IsLocked: true,
		Image:    &ImageData{Src: "data:image/png;base64,AA==", Width: 10, Height: 10},
	})
	require.NoError(t, err)

	assert.ErrorIs(t, ed.Select(id), ErrLocked)
	assert.Equal(t, StateIdle, ed.State(id))
}

func TestSelectOnlyOnActiveView(t *testing.T) {
	ed, m := newEditor(t)
	back := addImage(t, m, "back", 300, 300, 0)

	assert.ErrorIs(t, ed.Select(back), ErrNotInView)

	require.NoError(t, ed.SetActiveView("back"))
	require.NoError(t, ed.Select(back))

	require.NoError(t, ed.SetActiveView("front"))
	_, ok := ed.Selected()
	assert.False(t, ok, "switching views clears the selection")

	assert.ErrorIs(t, ed.SetActiveView("sleeve"), ErrUnknownView)
}

func TestSetScaleRespectsBoundary(t *testing.T) {
	ed, m := newEditor(t)
	// chest box is 300px wide on a 600x800 stage; the image is 200px wide.
	id := addImage(t, m, "front", 300, 300, 0)
	require.NoError(t, ed.Select(id))
	el, _ := m.Get(id)

	ok, err := ed.SetScale(1.4)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 1.4, el.Scale, 1e-9)

	ok, err = ed.SetScale(1.6)
	require.NoError(t, err)
	assert.False(t, ok, "320px does not fit the 300px box")
	assert.InDelta(t, 1.4, el.Scale, 1e-9)

	ok, err = ed.SetScale(1.5)
	require.NoError(t, err)
	assert.True(t, ok, "exactly the box width fits")

	ok, err = ed.SetScale(0.53)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDelta(t, 0.5, el.Scale, 1e-9, "snapped to the slider step")

	_, err = ed.SetScale(5.5)
	assert.ErrorIs(t, err, ErrOutOfRange)
	_, err = ed.SetScale(0.01)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestSetScaleWithoutBoxesUsesStage(t *testing.T) {
	ed, m := newEditor(t)
	require.NoError(t, ed.SetActiveView("back"))
	id := addImage(t, m, "back", 300, 400, 0)
	require.NoError(t, ed.Select(id))

	ok, err := ed.SetScale(3)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ed.SetScale(3.1)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetRotation(t *testing.T) {
	ed, m := newEditor(t)
	id := addImage(t, m, "front", 300, 300, 0)

	_, err := ed.SetRotation(10)
	assert.ErrorIs(t, err, ErrNoSelection)

	require.NoError(t, ed.Select(id))
	ok, err := ed.SetRotation(-90)
	require.NoError(t, err)
	assert.True(t, ok)
	el, _ := m.Get(id)
	assert.Equal(t, -90.0, el.Rotation)

	_, err = ed.SetRotation(181)
	assert.ErrorIs(t, err, ErrOutOfRange)
}

func TestDragReleaseOutsideBoxReverts(t *testing.T) {
	ed, m := newEditor(t)
	id := addImage(t, m, "front", 300, 300, 0)
	require.NoError(t, ed.Select(id))
	el, _ := m.Get(id)

	assert.ErrorIs(t, ed.DragBy(5, 5), ErrNotTransforming)

	require.NoError(t, ed.BeginTransform())
	assert.Equal(t, StateTransforming, ed.State(id))
	require.NoError(t, ed.DragBy(400, 0))
	assert.Equal(t, 700.0, el.X)

	accepted, err := ed.Release()
	require.NoError(t, err)
	assert.False(t, accepted)
	assert.Equal(t, 300.0, el.X)
	assert.Equal(t, StateSelected, ed.State(id))

	require.NoError(t, ed.BeginTransform())
	require.NoError(t, ed.DragBy(20, 30))
	require.NoError(t, ed.RotateTo(45))
	accepted, err = ed.Release()
	require.NoError(t, err)
	assert.True(t, accepted)
	assert.Equal(t, 320.0, el.X)
	assert.Equal(t, 330.0, el.Y)
	assert.Equal(t, 45.0, el.Rotation)
}

func TestResizeReleaseTooWideReverts(t *testing.T) {
	ed, m := newEditor(t)
	id := addImage(t, m, "front", 300, 300, 0)
	require.NoError(t, ed.Select(id))
	require.NoError(t, ed.BeginTransform())
	require.NoError(t, ed.ResizeTo(2))

	accepted, err := ed.Release()
	require.NoError(t, err)
	assert.False(t, accepted)
	el, _ := m.Get(id)
	assert.Equal(t, 1.0, el.Scale)
}

func TestDeleteSelected(t *testing.T) {
	ed, m := newEditor(t)
	id := addImage(t, m, "front", 300, 300, 0)

	assert.ErrorIs(t, ed.Delete(), ErrNoSelection)
	require.NoError(t, ed.Select(id))
	require.NoError(t, ed.Delete())
	assert.Equal(t, 0, m.Len())
	assert.Equal(t, StateIdle, ed.State(id))
}

func TestEditorSuspendedWhileStageBusy(t *testing.T) {
	ed, m := newEditor(t)
	id := addImage(t, m, "front", 300, 300, 0)
	stage := NewStage(stageW, stageH, testViews(t), m, nil)
	ed.AttachStage(stage)

	err := stage.Exclusive(func() error {
		assert.ErrorIs(t, ed.Select(id), ErrStageBusy)
		_, err := ed.PointerDown(geometry.Point{X: 300, Y: 300})
		assert.ErrorIs(t, err, ErrStageBusy)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, ed.Select(id))
}

func TestFeeBadgeFollowsActiveView(t *testing.T) {
	ed, _ := newEditor(t)
	views := ed.views

	assert.Equal(t, 8.0, views.FeeBadge(core.TechniqueEmbroidery))
	assert.Equal(t, 5.0, views.FeeBadge(core.TechniquePrint))

	require.NoError(t, ed.SetActiveView("back"))
	assert.Equal(t, 3.0, views.FeeBadge(core.TechniqueEmbroidery))
	assert.Equal(t, 3.0, views.FeeBadge(core.TechniquePrint))
}
