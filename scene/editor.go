package scene

import (
	"errors"
	"fmt"
	"math"

	"customizer/geometry"
)

// State is the interaction state of a single element.
type State int

const (
	StateIdle State = iota
	StateSelected
	StateTransforming
)

func (s State) String() string {
	switch s {
	case StateSelected:
		return "selected"
	case StateTransforming:
		return "transforming"
	default:
		return "idle"
	}
}

const (
	MinScale    = 0.1
	MaxScale    = 5.0
	ScaleStep   = 0.1
	MinRotation = -180.0
	MaxRotation = 180.0
)

var (
	ErrLocked          = errors.New("element is locked")
	ErrNoSelection     = errors.New("no element selected")
	ErrNotTransforming = errors.New("no transform in progress")
	ErrOutOfRange      = errors.New("value out of range")
	ErrNotInView       = errors.New("element is not on the active view")
)

// Editor binds the model to pointer interaction and the transform toolbar.
// At most one element is selected or transforming at a time.
type Editor struct {
	model  *Model
	views  *ViewSwitcher
	stage  *Stage
	width  float64
	height float64

	selected string
	state    State
	original Transform
}

// NewEditor creates an editor for a stage of width x height pixels.
func NewEditor(model *Model, views *ViewSwitcher, width, height float64) *Editor {
	return &Editor{model: model, views: views, width: width, height: height}
}

// AttachStage suspends interaction while the stage is held by an export.
func (e *Editor) AttachStage(s *Stage) {
	e.stage = s
}

func (e *Editor) ready() error {
	if e.stage != nil && e.stage.Busy() {
		return ErrStageBusy
	}
	return nil
}

// State returns the interaction state of the element.
func (e *Editor) State(id string) State {
	if id != "" && id == e.selected {
		return e.state
	}
	return StateIdle
}

// Selected returns the selected element id, if any.
func (e *Editor) Selected() (string, bool) {
	return e.selected, e.selected != ""
}

// PointerDown selects the topmost unlocked element under p on the active
// view. Locked elements are skipped. Tapping empty space clears selection.
func (e *Editor) PointerDown(p geometry.Point) (string, error) {
	if err := e.ready(); err != nil {
		return "", err
	}
	if e.state == StateTransforming {
		if _, err := e.Release(); err != nil {
			return "", err
		}
	}
	visible := e.views.Visible()
	for i := len(visible) - 1; i >= 0; i-- {
		el := visible[i]
		if el.IsLocked || !el.HitTest(p) {
			continue
		}
		e.selected, e.state = el.ID, StateSelected
		return el.ID, nil
	}
	e.Deselect()
	return "", nil
}

// Select selects an element directly, e.g. from a layer list.
func (e *Editor) Select(id string) error {
	if err := e.ready(); err != nil {
		return err
	}
	el, ok := e.model.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if el.IsLocked {
		return ErrLocked
	}
	if el.ViewID != e.views.Active().ID {
		return ErrNotInView
	}
	if e.state == StateTransforming {
		if _, err := e.Release(); err != nil {
			return err
		}
	}
	e.selected, e.state = id, StateSelected
	return nil
}

func (e *Editor) Deselect() {
	e.selected, e.state = "", StateIdle
}

// SetActiveView switches views and clears the selection.
func (e *Editor) SetActiveView(viewID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.state == StateTransforming {
		if _, err := e.Release(); err != nil {
			return err
		}
	}
	if err := e.views.SetActiveView(viewID); err != nil {
		return err
	}
	e.Deselect()
	return nil
}

func (e *Editor) current() (*Element, error) {
	if e.selected == "" {
		return nil, ErrNoSelection
	}
	el, ok := e.model.Get(e.selected)
	if !ok {
		e.Deselect()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, e.selected)
	}
	return el, nil
}

// BeginTransform starts a handle interaction on the selected element.
func (e *Editor) BeginTransform() error {
	if err := e.ready(); err != nil {
		return err
	}
	el, err := e.current()
	if err != nil {
		return err
	}
	if e.state == StateTransforming {
		return nil
	}
	e.original = el.Transform()
	e.state = StateTransforming
	return nil
}

func (e *Editor) live(p Patch) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.state != StateTransforming {
		return ErrNotTransforming
	}
	return e.model.Update(e.selected, p)
}

// DragBy moves the element during a transform.
func (e *Editor) DragBy(dx, dy float64) error {
	el, err := e.current()
	if err != nil {
		return err
	}
	x, y := el.X+dx, el.Y+dy
	return e.live(Patch{X: &x, Y: &y})
}

// ResizeTo sets the pending scale during a transform.
func (e *Editor) ResizeTo(scale float64) error {
	if scale <= 0 {
		return ErrOutOfRange
	}
	return e.live(Patch{Scale: &scale})
}

// RotateTo sets the pending rotation during a transform.
func (e *Editor) RotateTo(deg float64) error {
	return e.live(Patch{Rotation: &deg})
}

// Release ends the transform. The pending values are kept if the placement
// is accepted, otherwise the pre-transform values are restored.
func (e *Editor) Release() (bool, error) {
	if e.state != StateTransforming {
		return false, ErrNotTransforming
	}
	el, err := e.current()
	if err != nil {
		return false, err
	}
	e.state = StateSelected
	if e.accepts(el) {
		return true, nil
	}
	el.SetTransform(e.original)
	return false, nil
}

// accepts checks the element's center lies in a boundary box of the active
// view (the stage when it has none) and its width fits that region.
func (e *Editor) accepts(el *Element) bool {
	center := geometry.Point{X: el.X, Y: el.Y}
	boxes := e.views.Active().BoundaryBoxes
	fw, _ := el.Footprint()

	region := geometry.Rect{Width: e.width, Height: e.height}
	if len(boxes) > 0 {
		box, ok := geometry.ContainingBox(center, boxes, e.width, e.height)
		if !ok {
			return false
		}
		region = geometry.ToPixelRect(box, e.width, e.height)
	}
	return region.Contains(center) && !geometry.WouldExceed(fw, region)
}

// SetScale is the toolbar slider. The value is snapped to the slider step.
// A scale whose footprint would overflow the containing box (or the stage)
// is rejected without error and leaves the element unchanged.
func (e *Editor) SetScale(scale float64) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	el, err := e.current()
	if err != nil {
		return false, err
	}
	scale = math.Round(scale/ScaleStep) / (1 / ScaleStep)
	if scale < MinScale-1e-9 || scale > MaxScale+1e-9 {
		return false, fmt.Errorf("%w: scale %.1f", ErrOutOfRange, scale)
	}

	iw, _ := el.IntrinsicSize()
	if _, ok := fitsBound(geometry.Point{X: el.X, Y: el.Y}, iw*scale, e.views.Active().BoundaryBoxes, e.width, e.height); !ok {
		return false, nil
	}
	if err := e.model.Update(el.ID, Patch{Scale: &scale}); err != nil {
		return false, err
	}
	return true, nil
}

// SetRotation is the toolbar slider; rotation is not bound-checked.
func (e *Editor) SetRotation(deg float64) (bool, error) {
	if err := e.ready(); err != nil {
		return false, err
	}
	el, err := e.current()
	if err != nil {
		return false, err
	}
	if deg < MinRotation || deg > MaxRotation {
		return false, fmt.Errorf("%w: rotation %v", ErrOutOfRange, deg)
	}
	if err := e.model.Update(el.ID, Patch{Rotation: &deg}); err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes the selected element unconditionally.
func (e *Editor) Delete() error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.selected == "" {
		return ErrNoSelection
	}
	id := e.selected
	e.Deselect()
	return e.model.Remove(id)
}
