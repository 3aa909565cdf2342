package scene

import (
	"errors"
	"fmt"

	"customizer/core"
	"customizer/geometry"
)

// ErrOutOfBounds is returned for an element wider than the bound around
// its center.
var ErrOutOfBounds = errors.New("element exceeds its boundary")

// fitsBound reports whether a footprint width fits the box containing
// center, falling back to the first box or the whole stage.
func fitsBound(center geometry.Point, footprintW float64, boxes []core.BoundaryBox, width, height float64) (geometry.Bound, bool) {
	bound := geometry.NoBoundaryFallback(center, boxes, width, height)
	return bound, !geometry.WouldExceed(footprintW, bound.Rect)
}

// CheckPlacement holds a whole model to the editor's slider rules: every
// element sits on a known view, scale and rotation are within range, and
// the scaled width fits its bound. Used where a scene arrives already
// edited, such as a saved design.
func CheckPlacement(model *Model, views []core.ProductView, width, height float64) error {
	for _, id := range model.ViewIDs() {
		if _, ok := core.FindView(views, id); !ok {
			return fmt.Errorf("%w: %s", ErrUnknownView, id)
		}
	}
	if model.Len() == 0 {
		return nil
	}

	switcher, err := NewViewSwitcher(views, model)
	if err != nil {
		return err
	}
	for _, v := range views {
		if err := switcher.SetActiveView(v.ID); err != nil {
			return err
		}
		for _, el := range switcher.Visible() {
			if el.Scale < MinScale-1e-9 || el.Scale > MaxScale+1e-9 {
				return fmt.Errorf("%w: element %s scale %v", ErrOutOfRange, el.ID, el.Scale)
			}
			if el.Rotation < MinRotation || el.Rotation > MaxRotation {
				return fmt.Errorf("%w: element %s rotation %v", ErrOutOfRange, el.ID, el.Rotation)
			}
			fw, _ := el.Footprint()
			bound, ok := fitsBound(geometry.Point{X: el.X, Y: el.Y}, fw, v.BoundaryBoxes, width, height)
			if !ok {
				return fmt.Errorf("%w: element %s on view %s is %.0fpx wide, %s bound is %.0fpx",
					ErrOutOfBounds, el.ID, v.ID, fw, bound.Source, bound.Rect.Width)
			}
		}
	}
	return nil
}
