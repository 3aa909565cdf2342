package scene

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
)

// Model owns every element of one customization session. It is driven from
// a single goroutine; the stage's exclusive access guards batch operations.
type Model struct {
	elements map[string]*Element
	seq      uint64
}

func NewModel() *Model {
	return &Model{elements: make(map[string]*Element)}
}

// Add inserts a new element of the given kind and returns its id. A zero
// scale defaults to 1. The id is generated unless init carries one.
func (m *Model) Add(kind Kind, init Element) (string, error) {
	el := init
	el.Kind = kind
	if el.Scale == 0 {
		el.Scale = 1
	}
	if el.ID == "" {
		el.ID = uuid.NewString()
	}
	if err := el.validate(); err != nil {
		return "", err
	}
	if _, exists := m.elements[el.ID]; exists {
		return "", fmt.Errorf("%w: duplicate id %s", ErrInvalidElement, el.ID)
	}
	m.seq++
	el.seq = m.seq
	m.elements[el.ID] = &el
	return el.ID, nil
}

// Get returns the live element. Mutate it through Update.
func (m *Model) Get(id string) (*Element, bool) {
	el, ok := m.elements[id]
	return el, ok
}

// Patch lists the mutable fields of an element. The owning view cannot be
// changed; moving an element between views means delete and re-add.
type Patch struct {
	X        *float64
	Y        *float64
	Rotation *float64
	Scale    *float64
	ZIndex   *int
	IsLocked *bool

	Content    *string
	FontFamily *string
	FontSize   *float64
	Color      *string

	StrokeColor *string
	StrokeWidth *float64
}

// Update applies patch to the element.
func (m *Model) Update(id string, patch Patch) error {
	el, ok := m.elements[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	next := *el
	if el.Text != nil {
		t := *el.Text
		next.Text = &t
	}
	if el.Shape != nil {
		s := *el.Shape
		next.Shape = &s
	}

	set(&next.X, patch.X)
	set(&next.Y, patch.Y)
	set(&next.Rotation, patch.Rotation)
	set(&next.Scale, patch.Scale)
	set(&next.ZIndex, patch.ZIndex)
	set(&next.IsLocked, patch.IsLocked)

	if next.Text != nil {
		set(&next.Text.Content, patch.Content)
		set(&next.Text.FontFamily, patch.FontFamily)
		set(&next.Text.FontSize, patch.FontSize)
		set(&next.Text.Color, patch.Color)
	}
	if next.Shape != nil {
		set(&next.Shape.Color, patch.Color)
		set(&next.Shape.StrokeColor, patch.StrokeColor)
		set(&next.Shape.StrokeWidth, patch.StrokeWidth)
	}

	if next.Scale <= 0 {
		return fmt.Errorf("%w: scale must be positive", ErrInvalidElement)
	}
	if err := next.validate(); err != nil {
		return err
	}

	// Keep the pointer stable; stage nodes hold it.
	*el = next
	return nil
}

func set[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Remove deletes one element.
func (m *Model) Remove(id string) error {
	if _, ok := m.elements[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(m.elements, id)
	return nil
}

// RemoveView deletes every element owned by the view and returns the count.
func (m *Model) RemoveView(viewID string) int {
	n := 0
	for id, el := range m.elements {
		if el.ViewID == viewID {
			delete(m.elements, id)
			n++
		}
	}
	return n
}

// ForView returns the view's elements in paint order: ascending zIndex,
// ties in insertion order.
func (m *Model) ForView(viewID string) []*Element {
	var out []*Element
	for _, el := range m.elements {
		if el.ViewID == viewID {
			out = append(out, el)
		}
	}
	sortPaintOrder(out)
	return out
}

// All returns every element in insertion order.
func (m *Model) All() []*Element {
	out := make([]*Element, 0, len(m.elements))
	for _, el := range m.elements {
		out = append(out, el)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].seq < out[j].seq })
	return out
}

// ViewIDs returns the ids of views holding at least one element, ordered by
// their first element's insertion.
func (m *Model) ViewIDs() []string {
	seen := map[string]bool{}
	var ids []string
	for _, el := range m.All() {
		if !seen[el.ViewID] {
			seen[el.ViewID] = true
			ids = append(ids, el.ViewID)
		}
	}
	return ids
}

func (m *Model) Len() int {
	return len(m.elements)
}

func sortPaintOrder(els []*Element) {
	sort.SliceStable(els, func(i, j int) bool {
		if els[i].ZIndex != els[j].ZIndex {
			return els[i].ZIndex < els[j].ZIndex
		}
		return els[i].seq < els[j].seq
	})
}
