package core

import (
	"context"
	"errors"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

type (
	// BoundaryBox is a placement region on a view. All four fields are
	// percentages (0-100) of the view image dimensions.
	BoundaryBox struct {
		ID     string  `json:"id" yaml:"id"`
		Name   string  `json:"name" yaml:"name"`
		X      float64 `json:"x" yaml:"x"`
		Y      float64 `json:"y" yaml:"y"`
		Width  float64 `json:"width" yaml:"width"`
		Height float64 `json:"height" yaml:"height"`
	}

	// ProductView is one renderable facet of a physical product, e.g. "Front".
	ProductView struct {
		ID                      string        `json:"id" yaml:"id"`
		Name                    string        `json:"name" yaml:"name"`
		ImageURL                string        `json:"imageUrl" yaml:"imageUrl"`
		BoundaryBoxes           []BoundaryBox `json:"boundaryBoxes" yaml:"boundaryBoxes"`
		Price                   float64       `json:"price" yaml:"price"`
		EmbroideryAdditionalFee *float64      `json:"embroideryAdditionalFee,omitempty" yaml:"embroideryAdditionalFee,omitempty"`
		PrintAdditionalFee      *float64      `json:"printAdditionalFee,omitempty" yaml:"printAdditionalFee,omitempty"`
	}

	// ProductStore is the read side of the options-configuration collaborator.
	// The customization core only reads views; SaveViews is used by the
	// merchant-facing options editor.
	ProductStore interface {
		GetViews(ctx context.Context, productID string) ([]ProductView, error)
		SaveViews(ctx context.Context, productID string, views []ProductView) error
	}
)

// Technique is the decoration method a shopper picked for the product.
type Technique string

const (
	TechniqueEmbroidery Technique = "Embroidery"
	TechniquePrint      Technique = "Print"
)

// AdditionalFee returns the per-view fee badge amount for the technique.
// Embroidery uses the embroidery fee, falling back to the base price.
// Anything else uses the larger of the print fee and the base price.
func (v ProductView) AdditionalFee(t Technique) float64 {
	if t == TechniqueEmbroidery {
		if v.EmbroideryAdditionalFee != nil {
			return *v.EmbroideryAdditionalFee
		}
		return v.Price
	}
	var printFee float64
	if v.PrintAdditionalFee != nil {
		printFee = *v.PrintAdditionalFee
	}
	return max(printFee, v.Price)
}

// FindView returns the view with the given id.
func FindView(views []ProductView, id string) (ProductView, bool) {
	for _, v := range views {
		if v.ID == id {
			return v, true
		}
	}
	return ProductView{}, false
}
