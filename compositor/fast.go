package compositor

import (
	"context"
	"image"

	"customizer/core"
	"customizer/geometry"
	"customizer/imageio"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Fast composites in process. Identical requests yield identical PNG bytes.
type Fast struct {
	loader    imageio.Loader
	logger    logrus.FieldLogger
	maxCanvas int
}

func NewFast(loader imageio.Loader, logger logrus.FieldLogger) *Fast {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Fast{loader: loader, logger: logger, maxCanvas: DefaultMaxCanvasPx}
}

// SetMaxCanvas overrides the largest canvas side accepted. Non-positive
// values restore the default.
func (f *Fast) SetMaxCanvas(px int) {
	if px <= 0 {
		px = DefaultMaxCanvasPx
	}
	f.maxCanvas = px
}

// Composite draws the base image stretched over a canvas of the declared
// size, then each overlay in paint order, rotated about its own center.
// Any load failure aborts the whole composite.
func (f *Fast) Composite(ctx context.Context, req core.CompositeRequest) (*core.CompositeResult, error) {
	if err := validate(req, f.maxCanvas); err != nil {
		return nil, err
	}

	base, err := f.loader.Load(ctx, req.Source())
	if err != nil {
		return nil, stageErr(StageBase, err)
	}

	overlays := paintOrder(req.Overlays)
	images := make([]*image.RGBA, len(overlays))
	g, gctx := errgroup.WithContext(ctx)
	for i, o := range overlays {
		g.Go(func() error {
			img, err := f.loader.Load(gctx, o.ImageDataURI)
			if err != nil {
				return &StageError{Stage: StageOverlay, Index: o.index, Err: err}
			}
			images[i] = img
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	canvas := image.NewRGBA(image.Rect(0, 0, req.BaseImageWidthPx, req.BaseImageHeightPx))
	imageio.ScaleInto(canvas, base)
	for i, o := range overlays {
		b := images[i].Bounds()
		m := geometry.CenterAnchored(o.X, o.Y, o.Width, o.Height, float64(b.Dx()), float64(b.Dy()), o.Rotation)
		imageio.DrawAffine(canvas, images[i], m, 1)
	}

	uri, err := imageio.PNGDataURI(canvas)
	if err != nil {
		return nil, stageErr(StageEncode, err)
	}

	f.logger.WithFields(logrus.Fields{
		"width":    req.BaseImageWidthPx,
		"height":   req.BaseImageHeightPx,
		"overlays": len(overlays),
	}).Debug("fast composite rendered")

	return &core.CompositeResult{CompositeImageURL: uri, AltText: DefaultAltText}, nil
}
