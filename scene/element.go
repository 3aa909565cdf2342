// Package scene is the in-memory customization document: layered image,
// text and shape elements bound to product views, the interactive editor
// that manipulates them, and the stage used to rasterize them.
package scene

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	"sync"

	"customizer/geometry"
	"customizer/imageio"
)

// Kind tags the element variant.
type Kind string

const (
	KindImage Kind = "image"
	KindText  Kind = "text"
	KindShape Kind = "shape"
)

type ShapeType string

const (
	ShapeRectangle ShapeType = "rectangle"
	ShapeCircle    ShapeType = "circle"
)

var (
	ErrNotFound       = errors.New("element not found")
	ErrInvalidElement = errors.New("invalid element")
	ErrImageNotLoaded = errors.New("image pixels not loaded")
)

// Transform is the mutable placement of an element. X and Y are the center
// of the element in stage pixels; rotation is in degrees about that center.
type Transform struct {
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	Scale    float64 `json:"scale"`
}

type ImageData struct {
	Src           string  `json:"dataUrl"`
	Width         float64 `json:"width"`
	Height        float64 `json:"height"`
	SourceAssetID string  `json:"sourceAssetId,omitempty"`
	Name          string  `json:"name,omitempty"`

	mu     sync.Mutex
	pixels *image.RGBA
}

type TextData struct {
	Content    string  `json:"content"`
	FontFamily string  `json:"fontFamily"`
	FontSize   float64 `json:"fontSize"`
	Color      string  `json:"color"`
}

type ShapeData struct {
	ShapeType   ShapeType `json:"shapeType"`
	Width       float64   `json:"width"`
	Height      float64   `json:"height"`
	Color       string    `json:"color"`
	StrokeColor string    `json:"strokeColor,omitempty"`
	StrokeWidth float64   `json:"strokeWidth,omitempty"`
}

// Element is one user-placed item. Exactly one of Image, Text or Shape is set,
// matching Kind.
type Element struct {
	ID       string  `json:"id"`
	Kind     Kind    `json:"itemType"`
	ViewID   string  `json:"viewId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Rotation float64 `json:"rotation"`
	Scale    float64 `json:"scale"`
	ZIndex   int     `json:"zIndex"`
	IsLocked bool    `json:"isLocked"`

	Image *ImageData `json:"image,omitempty"`
	Text  *TextData  `json:"text,omitempty"`
	Shape *ShapeData `json:"shape,omitempty"`

	seq uint64
}

// Drawable is the capability set the stage and editor need from a node.
type Drawable interface {
	Draw(dst draw.Image, parent geometry.Affine, opacity float64) error
	HitTest(p geometry.Point) bool
	Transform() Transform
	SetTransform(Transform)
}

var _ Drawable = (*Element)(nil)

func (e *Element) validate() error {
	if e.ViewID == "" {
		return fmt.Errorf("%w: view id is required", ErrInvalidElement)
	}
	switch e.Kind {
	case KindImage:
		if e.Image == nil || e.Image.Src == "" {
			return fmt.Errorf("%w: image element needs a source", ErrInvalidElement)
		}
		if e.Image.Width <= 0 || e.Image.Height <= 0 {
			return fmt.Errorf("%w: image element needs intrinsic width and height", ErrInvalidElement)
		}
	case KindText:
		if e.Text == nil {
			return fmt.Errorf("%w: text element needs text data", ErrInvalidElement)
		}
		if e.Text.FontSize <= 0 {
			return fmt.Errorf("%w: font size must be positive", ErrInvalidElement)
		}
	case KindShape:
		if e.Shape == nil {
			return fmt.Errorf("%w: shape element needs shape data", ErrInvalidElement)
		}
		if e.Shape.ShapeType != ShapeRectangle && e.Shape.ShapeType != ShapeCircle {
			return fmt.Errorf("%w: unknown shape type %q", ErrInvalidElement, e.Shape.ShapeType)
		}
		if e.Shape.Width <= 0 || e.Shape.Height <= 0 {
			return fmt.Errorf("%w: shape needs width and height", ErrInvalidElement)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidElement, e.Kind)
	}
	return nil
}

func (e *Element) Transform() Transform {
	return Transform{X: e.X, Y: e.Y, Rotation: e.Rotation, Scale: e.Scale}
}

func (e *Element) SetTransform(t Transform) {
	e.X, e.Y, e.Rotation, e.Scale = t.X, t.Y, t.Rotation, t.Scale
}

// IntrinsicSize is the unscaled size in pixels. Text is measured with its font.
func (e *Element) IntrinsicSize() (float64, float64) {
	switch e.Kind {
	case KindImage:
		return e.Image.Width, e.Image.Height
	case KindShape:
		return e.Shape.Width, e.Shape.Height
	case KindText:
		w, h, err := measureText(e.Text, 1)
		if err != nil {
			return 0, 0
		}
		return w, h
	}
	return 0, 0
}

// Footprint is the on-stage size before rotation.
func (e *Element) Footprint() (float64, float64) {
	w, h := e.IntrinsicSize()
	return w * e.Scale, h * e.Scale
}

// local maps the w x h footprint box (origin top-left) onto the stage.
func (e *Element) local() geometry.Affine {
	fw, fh := e.Footprint()
	return geometry.Translation(e.X, e.Y).
		Mul(geometry.Rotation(e.Rotation)).
		Mul(geometry.Translation(-fw/2, -fh/2))
}

// HitTest reports whether p (stage pixels) falls on the rotated footprint.
func (e *Element) HitTest(p geometry.Point) bool {
	inv, ok := e.local().Inverse()
	if !ok {
		return false
	}
	q := inv.Apply(p)
	fw, fh := e.Footprint()
	return q.X >= 0 && q.X <= fw && q.Y >= 0 && q.Y <= fh
}

// Draw rasterizes the element through parent into dst.
func (e *Element) Draw(dst draw.Image, parent geometry.Affine, opacity float64) error {
	fw, fh := e.Footprint()
	if fw <= 0 || fh <= 0 {
		return nil
	}
	db := dst.Bounds()
	canvas := geometry.Rect{X: float64(db.Min.X), Y: float64(db.Min.Y), Width: float64(db.Dx()), Height: float64(db.Dy())}
	reach := parent.Mul(geometry.CenterAnchored(e.X, e.Y, fw, fh, fw, fh, e.Rotation)).Bounds(fw, fh)
	if !reach.Overlaps(canvas) {
		return nil
	}
	// Text and shapes are rasterized at the output density to stay sharp.
	density := max(1, parent.ScaleFactor()*e.Scale)
	src, err := e.source(density)
	if err != nil {
		return fmt.Errorf("element %s: %w", e.ID, err)
	}
	b := src.Bounds()
	m := parent.Mul(geometry.CenterAnchored(e.X, e.Y, fw, fh, float64(b.Dx()), float64(b.Dy()), e.Rotation))
	imageio.DrawAffine(dst, src, m, opacity)
	return nil
}

// source returns the variant's raster. density is output pixels per
// intrinsic pixel and is ignored for images.
func (e *Element) source(density float64) (image.Image, error) {
	switch e.Kind {
	case KindImage:
		px := e.Image.Pixels()
		if px == nil {
			return nil, ErrImageNotLoaded
		}
		return px, nil
	case KindText:
		return renderText(e.Text, density)
	case KindShape:
		return renderShape(e.Shape, density)
	}
	return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidElement, e.Kind)
}

// Pixels returns the decoded image, or nil when not loaded yet.
func (d *ImageData) Pixels() *image.RGBA {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pixels
}

// Load decodes the image once; later calls are no-ops.
func (d *ImageData) Load(ctx context.Context, loader imageio.Loader) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pixels != nil {
		return nil
	}
	px, err := loader.Load(ctx, d.Src)
	if err != nil {
		return err
	}
	d.pixels = px
	return nil
}

// SetPixels installs already decoded pixels.
func (d *ImageData) SetPixels(px *image.RGBA) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pixels = px
}
