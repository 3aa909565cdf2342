package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCenterAnchoredKeepsCenter(t *testing.T) {
	for _, deg := range []float64{0, 30, 45, 90, -120, 180} {
		m := CenterAnchored(300, 400, 100, 60, 50, 30, deg)
		c := m.Apply(Point{25, 15})
		assert.InDelta(t, 300, c.X, 1e-9, "deg %v", deg)
		assert.InDelta(t, 400, c.Y, 1e-9, "deg %v", deg)

		b := m.Bounds(50, 30)
		assert.InDelta(t, 300, b.Center().X, 1e-9)
		assert.InDelta(t, 400, b.Center().Y, 1e-9)
	}
}

func TestCenterAnchoredFootprint(t *testing.T) {
	m := CenterAnchored(100, 100, 40, 20, 400, 200, 0)
	b := m.Bounds(400, 200)
	assert.InDelta(t, 80, b.X, 1e-9)
	assert.InDelta(t, 90, b.Y, 1e-9)
	assert.InDelta(t, 40, b.Width, 1e-9)
	assert.InDelta(t, 20, b.Height, 1e-9)
}

func TestAffineInverse(t *testing.T) {
	m := Translation(10, -4).Mul(Rotation(33)).Mul(Scale(2, 3))
	inv, ok := m.Inverse()
	assert.True(t, ok)
	p := inv.Apply(m.Apply(Point{7, 9}))
	assert.InDelta(t, 7, p.X, 1e-9)
	assert.InDelta(t, 9, p.Y, 1e-9)

	_, ok = Scale(0, 1).Inverse()
	assert.False(t, ok)
}

func TestRectOverlaps(t *testing.T) {
	r := Rect{X: 0, Y: 0, Width: 10, Height: 10}
	assert.True(t, r.Overlaps(Rect{X: 5, Y: 5, Width: 10, Height: 10}))
	assert.True(t, r.Overlaps(Rect{X: 2, Y: 2, Width: 1, Height: 1}))
	assert.False(t, r.Overlaps(Rect{X: 10, Y: 0, Width: 5, Height: 5}), "touching edges")
	assert.False(t, r.Overlaps(Rect{X: -20, Y: -20, Width: 5, Height: 5}))

	// A 45 degree square reaches past its unrotated box.
	m := CenterAnchored(-5, 5, 10, 10, 10, 10, 45)
	assert.True(t, m.Bounds(10, 10).Overlaps(r))
	assert.False(t, CenterAnchored(-5, 5, 10, 10, 10, 10, 0).Bounds(10, 10).Overlaps(r))
}
