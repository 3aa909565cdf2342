// Package export renders one flattened preview per customized product view.
package export

import (
	"context"
	"errors"
	"fmt"
	"image"

	"customizer/core"
	"customizer/imageio"
	"customizer/scene"

	"github.com/sirupsen/logrus"
)

// Validation selects how a raster is checked for content.
type Validation string

const (
	// ValidateTransparent accepts any raster with a non-transparent pixel.
	ValidateTransparent Validation = "transparent"
	// ValidateNonWhite accepts any raster with a visible non-white pixel.
	ValidateNonWhite Validation = "nonwhite"
)

const (
	DefaultPixelRatio     = 2.0
	DefaultPlaceholderURL = "https://placehold.co/600x800/png?text=Preview+unavailable"
)

var ErrBlankRaster = errors.New("rendered preview is blank")

type Options struct {
	PixelRatio     float64
	Validation     Validation
	PlaceholderURL string
}

// Job is one export run over a stage.
type Job struct {
	Stage   *scene.Stage
	Views   []core.ProductView
	ViewIDs []string
	// UserID owns uploaded assets. Without it previews are returned inline.
	UserID string
	// Progress, when set, is called after each view with its result.
	Progress func(done, total int, preview core.ViewPreview, err error)
}

type Exporter struct {
	assets core.AssetStore
	logger logrus.FieldLogger
	opts   Options
}

// NewExporter returns an exporter uploading to assets, which may be nil.
func NewExporter(assets core.AssetStore, opts Options, logger logrus.FieldLogger) *Exporter {
	if opts.PixelRatio <= 0 {
		opts.PixelRatio = DefaultPixelRatio
	}
	if opts.Validation == "" {
		opts.Validation = ValidateTransparent
	}
	if opts.PlaceholderURL == "" {
		opts.PlaceholderURL = DefaultPlaceholderURL
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Exporter{assets: assets, logger: logger, opts: opts}
}

// CustomizedViews returns, in product order, the ids of views holding at
// least one element.
func CustomizedViews(views []core.ProductView, model *scene.Model) []string {
	var ids []string
	for _, v := range views {
		if len(model.ForView(v.ID)) > 0 {
			ids = append(ids, v.ID)
		}
	}
	return ids
}

// Generate takes exclusive hold of the stage and renders every requested
// view. It returns one entry per requested id, in request order; a view that
// fails gets the placeholder URL. The stage is restored after each view and
// again when the run ends. The only error is scene.ErrStageBusy.
func (e *Exporter) Generate(ctx context.Context, job Job) ([]core.ViewPreview, error) {
	previews := make([]core.ViewPreview, 0, len(job.ViewIDs))
	err := job.Stage.Exclusive(func() error {
		for i, id := range job.ViewIDs {
			p, err := e.generateView(ctx, job, id)
			previews = append(previews, p)
			if job.Progress != nil {
				job.Progress(i+1, len(job.ViewIDs), p, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return previews, nil
}

func (e *Exporter) generateView(ctx context.Context, job Job, viewID string) (preview core.ViewPreview, err error) {
	preview = core.ViewPreview{ViewID: viewID}
	if v, ok := core.FindView(job.Views, viewID); ok {
		preview.ViewName = v.Name
	}
	log := e.logger.WithFields(logrus.Fields{"view_id": viewID})

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("render panicked: %v", r)
		}
		if err != nil {
			log.WithError(err).Warn("preview generation failed, using placeholder")
			preview.URL = e.opts.PlaceholderURL
		}
	}()

	var png []byte
	err = job.Stage.Preserve(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := job.Stage.ShowOnly(viewID); err != nil {
			return err
		}
		if err := job.Stage.WaitForImages(ctx); err != nil {
			return err
		}
		img, err := job.Stage.Rasterize(e.opts.PixelRatio)
		if err != nil {
			return err
		}
		if !hasContent(img, e.opts.Validation) {
			return ErrBlankRaster
		}
		png, err = imageio.EncodePNG(img)
		return err
	})
	if err != nil {
		return preview, err
	}

	preview.URL = e.store(ctx, log, job.UserID, viewID, png)
	log.WithField("inline", !isAssetURL(preview.URL)).Debug("preview generated")
	return preview, nil
}

// store uploads the raster, falling back to an inline data URI.
func (e *Exporter) store(ctx context.Context, log logrus.FieldLogger, userID, viewID string, png []byte) string {
	inline := imageio.DataURI("image/png", png)
	if e.assets == nil || userID == "" {
		return inline
	}
	id, err := e.assets.PutAsset(ctx, &core.Asset{
		UserID:      userID,
		Name:        viewID + "-preview.png",
		ContentType: "image/png",
		Data:        png,
	})
	if err != nil {
		log.WithError(err).Warn("failed to upload preview, returning it inline")
		return inline
	}
	return core.AssetPath(id)
}

func isAssetURL(u string) bool {
	return len(u) > 0 && u[0] == '/'
}

// hasContent scans the raster for a pixel satisfying the validation mode.
func hasContent(img *image.RGBA, mode Validation) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):img.PixOffset(b.Max.X, y)]
		for i := 0; i < len(row); i += 4 {
			r, g, bl, a := row[i], row[i+1], row[i+2], row[i+3]
			if a == 0 {
				continue
			}
			if mode != ValidateNonWhite {
				return true
			}
			if r != 255 || g != 255 || bl != 255 {
				return true
			}
		}
	}
	return false
}
