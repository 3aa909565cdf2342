package geometry

import (
	"errors"
	"fmt"

	"customizer/core"
)

// ErrInvalidBox is returned when a boundary box falls outside 0-100%.
var ErrInvalidBox = errors.New("invalid boundary box")

// ErrNoViews is returned for a product without any view.
var ErrNoViews = errors.New("product has no views")

// ToPixelRect converts a percentage box to pixels for a canvas size.
func ToPixelRect(box core.BoundaryBox, canvasWidthPx, canvasHeightPx float64) Rect {
	return Rect{
		X:      box.X / 100 * canvasWidthPx,
		Y:      box.Y / 100 * canvasHeightPx,
		Width:  box.Width / 100 * canvasWidthPx,
		Height: box.Height / 100 * canvasHeightPx,
	}
}

// ContainingBox returns the first box whose pixel rect contains p.
func ContainingBox(p Point, boxes []core.BoundaryBox, canvasWidthPx, canvasHeightPx float64) (core.BoundaryBox, bool) {
	for _, b := range boxes {
		if ToPixelRect(b, canvasWidthPx, canvasHeightPx).Contains(p) {
			return b, true
		}
	}
	return core.BoundaryBox{}, false
}

// FindContainingBox is ContainingBox with the first declared box as the
// fallback, so scaling always has a reference frame. ok is false only when
// boxes is empty.
func FindContainingBox(p Point, boxes []core.BoundaryBox, canvasWidthPx, canvasHeightPx float64) (box core.BoundaryBox, ok bool) {
	if len(boxes) == 0 {
		return core.BoundaryBox{}, false
	}
	if b, found := ContainingBox(p, boxes, canvasWidthPx, canvasHeightPx); found {
		return b, true
	}
	return boxes[0], true
}

// BoundSource says where a resolved Bound came from.
type BoundSource int

const (
	BoundContaining BoundSource = iota // a box containing the point
	BoundFirstBox                      // no box contains the point, first declared box used
	BoundStage                         // view has no boxes, stage rect used
)

func (s BoundSource) String() string {
	switch s {
	case BoundContaining:
		return "containing"
	case BoundFirstBox:
		return "first-box"
	default:
		return "stage"
	}
}

// Bound is the pixel region a footprint is checked against.
type Bound struct {
	Rect   Rect
	Box    core.BoundaryBox
	Source BoundSource
}

// NoBoundaryFallback resolves the reference bound for p: the containing box,
// else the first declared box, else the whole stage when the view has no
// boxes at all.
func NoBoundaryFallback(p Point, boxes []core.BoundaryBox, stageWidthPx, stageHeightPx float64) Bound {
	if len(boxes) == 0 {
		return Bound{
			Rect:   Rect{Width: stageWidthPx, Height: stageHeightPx},
			Source: BoundStage,
		}
	}
	if b, ok := ContainingBox(p, boxes, stageWidthPx, stageHeightPx); ok {
		return Bound{Rect: ToPixelRect(b, stageWidthPx, stageHeightPx), Box: b, Source: BoundContaining}
	}
	return Bound{Rect: ToPixelRect(boxes[0], stageWidthPx, stageHeightPx), Box: boxes[0], Source: BoundFirstBox}
}

// WouldExceed reports whether a candidate footprint width overflows the bound.
// Callers reject the change outright; nothing is clamped.
func WouldExceed(candidateWidthPx float64, bound Rect) bool {
	return candidateWidthPx > bound.Width
}

// ValidateBox checks 0 <= x,y, positive size and x+width, y+height <= 100.
func ValidateBox(b core.BoundaryBox) error {
	switch {
	case b.X < 0 || b.Y < 0:
		return fmt.Errorf("%w %q: x and y must be >= 0", ErrInvalidBox, b.ID)
	case b.Width <= 0 || b.Height <= 0:
		return fmt.Errorf("%w %q: width and height must be > 0", ErrInvalidBox, b.ID)
	case b.X+b.Width > 100:
		return fmt.Errorf("%w %q: x+width exceeds 100", ErrInvalidBox, b.ID)
	case b.Y+b.Height > 100:
		return fmt.Errorf("%w %q: y+height exceeds 100", ErrInvalidBox, b.ID)
	}
	return nil
}

// ValidateViews requires at least one view and validates every box of
// every view.
func ValidateViews(views []core.ProductView) error {
	if len(views) == 0 {
		return ErrNoViews
	}
	for _, v := range views {
		for _, b := range v.BoundaryBoxes {
			if err := ValidateBox(b); err != nil {
				return fmt.Errorf("view %s: %w", v.ID, err)
			}
		}
	}
	return nil
}
