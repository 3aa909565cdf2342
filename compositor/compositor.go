// Package compositor flattens a base product image and a list of placed
// overlays into one preview image. Fast renders deterministically in
// process; AI delegates the composite to a vision-capable model.
package compositor

import (
	"errors"
	"fmt"
	"sort"

	"customizer/core"
)

// Stages reported in StageError.
const (
	StageBase     = "base"
	StageOverlay  = "overlay"
	StageEncode   = "encode"
	StageRequest  = "request"
	StageResponse = "response"
)

// DefaultAltText is attached to every fast composite.
const DefaultAltText = "Preview of the customized product"

// DefaultMaxCanvasPx caps each side of the output canvas.
const DefaultMaxCanvasPx = 4096

var (
	ErrInvalidRequest = errors.New("invalid composite request")
	ErrModelDeclined  = errors.New("model declined to generate the composite")
	ErrNoImage        = errors.New("model returned no image")
	ErrNotConfigured  = errors.New("AI compositor is not configured")
)

var (
	_ core.Compositor = (*Fast)(nil)
	_ core.Compositor = (*AI)(nil)
)

// StageError identifies which step of a composite failed. Index is the
// overlay position in the request for overlay failures and -1 otherwise.
type StageError struct {
	Stage string
	Index int
	Err   error
}

func (e *StageError) Error() string {
	if e.Stage == StageOverlay && e.Index >= 0 {
		return fmt.Sprintf("composite %s %d: %v", e.Stage, e.Index, e.Err)
	}
	return fmt.Sprintf("composite %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage string, err error) error {
	return &StageError{Stage: stage, Index: -1, Err: err}
}

// ordered is an overlay together with its position in the request.
type ordered struct {
	index int
	core.ImageTransform
}

// paintOrder sorts overlays by ascending zIndex; equal keys keep request order.
func paintOrder(overlays []core.ImageTransform) []ordered {
	out := make([]ordered, len(overlays))
	for i, o := range overlays {
		out[i] = ordered{index: i, ImageTransform: o}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ZIndex < out[j].ZIndex
	})
	return out
}

func validate(req core.CompositeRequest, maxPx int) error {
	if req.Source() == "" {
		return stageErr(StageBase, fmt.Errorf("%w: base image is required", ErrInvalidRequest))
	}
	if req.BaseImageWidthPx <= 0 || req.BaseImageHeightPx <= 0 {
		return stageErr(StageBase, fmt.Errorf("%w: base image dimensions must be positive, got %dx%d",
			ErrInvalidRequest, req.BaseImageWidthPx, req.BaseImageHeightPx))
	}
	if req.BaseImageWidthPx > maxPx || req.BaseImageHeightPx > maxPx {
		return stageErr(StageBase, fmt.Errorf("%w: base image dimensions %dx%d exceed the %dpx limit",
			ErrInvalidRequest, req.BaseImageWidthPx, req.BaseImageHeightPx, maxPx))
	}
	for i, o := range req.Overlays {
		if o.ImageDataURI == "" {
			return &StageError{Stage: StageOverlay, Index: i, Err: fmt.Errorf("%w: image data is required", ErrInvalidRequest)}
		}
		if o.Width <= 0 || o.Height <= 0 {
			return &StageError{Stage: StageOverlay, Index: i, Err: fmt.Errorf("%w: size must be positive, got %vx%v", ErrInvalidRequest, o.Width, o.Height)}
		}
	}
	return nil
}
