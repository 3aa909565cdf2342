// Package geometry holds the boundary engine and the 2D types shared by the
// scene, the rasterizer and the compositors.
package geometry

import (
	"math"

	"golang.org/x/image/math/f64"
)

// Point is a position in stage pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Rect is an axis-aligned rectangle in pixels.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether p lies inside r, edges included.
func (r Rect) Contains(p Point) bool {
	return p.X >= r.X && p.X <= r.X+r.Width &&
		p.Y >= r.Y && p.Y <= r.Y+r.Height
}

// Overlaps reports whether r and o share interior area.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.Width && o.X < r.X+r.Width &&
		r.Y < o.Y+o.Height && o.Y < r.Y+r.Height
}

func (r Rect) Center() Point {
	return Point{X: r.X + r.Width/2, Y: r.Y + r.Height/2}
}

// Affine is a 2x3 affine matrix.
// [A B TX]
// [C D TY]
type Affine struct {
	A, B, TX float64
	C, D, TY float64
}

func Identity() Affine {
	return Affine{A: 1, D: 1}
}

func Translation(tx, ty float64) Affine {
	return Affine{A: 1, D: 1, TX: tx, TY: ty}
}

// Rotation rotates clockwise on screen (y down) by deg degrees.
func Rotation(deg float64) Affine {
	rad := deg * math.Pi / 180
	cos, sin := math.Cos(rad), math.Sin(rad)
	return Affine{A: cos, B: -sin, C: sin, D: cos}
}

func Scale(sx, sy float64) Affine {
	return Affine{A: sx, D: sy}
}

// Apply maps p through t.
func (t Affine) Apply(p Point) Point {
	return Point{
		X: t.A*p.X + t.B*p.Y + t.TX,
		Y: t.C*p.X + t.D*p.Y + t.TY,
	}
}

// Mul returns t * other, i.e. other is applied first.
func (t Affine) Mul(other Affine) Affine {
	return Affine{
		A:  t.A*other.A + t.B*other.C,
		B:  t.A*other.B + t.B*other.D,
		TX: t.A*other.TX + t.B*other.TY + t.TX,
		C:  t.C*other.A + t.D*other.C,
		D:  t.C*other.B + t.D*other.D,
		TY: t.C*other.TX + t.D*other.TY + t.TY,
	}
}

// Inverse returns the inverse transform, if it exists.
func (t Affine) Inverse() (Affine, bool) {
	det := t.A*t.D - t.B*t.C
	if math.Abs(det) < 1e-12 {
		return Affine{}, false
	}
	inv := 1 / det
	return Affine{
		A:  t.D * inv,
		B:  -t.B * inv,
		TX: (t.B*t.TY - t.D*t.TX) * inv,
		C:  -t.C * inv,
		D:  t.A * inv,
		TY: (t.C*t.TX - t.A*t.TY) * inv,
	}, true
}

// ScaleFactor is the geometric mean of the axis scales.
func (t Affine) ScaleFactor() float64 {
	return math.Sqrt(math.Abs(t.A*t.D - t.B*t.C))
}

// Aff3 converts to the matrix type used by golang.org/x/image/draw.
func (t Affine) Aff3() f64.Aff3 {
	return f64.Aff3{t.A, t.B, t.TX, t.C, t.D, t.TY}
}

// CenterAnchored maps a srcW x srcH raster onto a w x h footprint centered at
// (cx, cy) and rotated by deg degrees about that center. The anchor offset is
// exactly half the target footprint.
func CenterAnchored(cx, cy, w, h, srcW, srcH, deg float64) Affine {
	return Translation(cx, cy).
		Mul(Rotation(deg)).
		Mul(Translation(-w/2, -h/2)).
		Mul(Scale(w/srcW, h/srcH))
}

// Bounds returns the axis-aligned bounding box of a w x h rectangle after t.
func (t Affine) Bounds(w, h float64) Rect {
	corners := [4]Point{
		t.Apply(Point{0, 0}),
		t.Apply(Point{w, 0}),
		t.Apply(Point{0, h}),
		t.Apply(Point{w, h}),
	}
	minX, minY := corners[0].X, corners[0].Y
	maxX, maxY := minX, minY
	for _, c := range corners[1:] {
		minX = math.Min(minX, c.X)
		minY = math.Min(minY, c.Y)
		maxX = math.Max(maxX, c.X)
		maxY = math.Max(maxY, c.Y)
	}
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}
