package scene

import (
	"errors"
	"fmt"

	"customizer/core"
)

var ErrUnknownView = errors.New("unknown view")

// ViewSwitcher tracks the active product view and scopes the model to it.
type ViewSwitcher struct {
	views  []core.ProductView
	active int
	model  *Model
}

// NewViewSwitcher starts on the first view.
func NewViewSwitcher(views []core.ProductView, model *Model) (*ViewSwitcher, error) {
	if len(views) == 0 {
		return nil, fmt.Errorf("%w: product has no views", ErrUnknownView)
	}
	return &ViewSwitcher{views: views, model: model}, nil
}

func (s *ViewSwitcher) SetActiveView(viewID string) error {
	for i, v := range s.views {
		if v.ID == viewID {
			s.active = i
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownView, viewID)
}

func (s *ViewSwitcher) Active() core.ProductView {
	return s.views[s.active]
}

func (s *ViewSwitcher) Views() []core.ProductView {
	return s.views
}

// Visible returns the active view's elements in paint order.
func (s *ViewSwitcher) Visible() []*Element {
	return s.model.ForView(s.Active().ID)
}

// FeeBadge is the additional fee shown for the active view.
func (s *ViewSwitcher) FeeBadge(t core.Technique) float64 {
	return s.Active().AdditionalFee(t)
}

// PruneViews drops elements whose view the product no longer offers and
// returns how many were removed.
func PruneViews(model *Model, views []core.ProductView) int {
	n := 0
	for _, id := range model.ViewIDs() {
		if _, ok := core.FindView(views, id); !ok {
			n += model.RemoveView(id)
		}
	}
	return n
}
