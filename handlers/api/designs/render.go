package designs

import (
	"errors"
	"net/http"
	"strings"

	"customizer/core"
	"customizer/export"
	"customizer/handlers/api/composite"
	"customizer/imageio"
	"customizer/middleware"
	"customizer/scene"
	"customizer/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// Notifier receives export progress for a design.
type Notifier interface {
	PreviewReady(userID, designID string, done, total int, preview core.ViewPreview, err error)
	ExportFinished(userID, designID string, previews []core.ViewPreview)
}

// Renderer holds what preview and export need beyond the store.
type Renderer struct {
	Store       stores.Store
	Fast        core.Compositor
	AI          core.Compositor
	Loader      imageio.Loader
	Exporter    *export.Exporter
	Notifier    Notifier
	StageWidth  float64
	StageHeight float64
}

type session struct {
	userID string
	design *core.Design
	views  []core.ProductView
	model  *scene.Model
}

// load resolves the caller's design, its product views and its scene. It
// writes the error response itself when it returns false.
func (rd *Renderer) load(w http.ResponseWriter, r *http.Request) (*session, bool) {
	claims, ok := middleware.Claims(r)
	if !ok {
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, map[string]string{"error": "User claims not found"})
		return nil, false
	}

	key := chi.URLParam(r, "key")
	design, err := rd.Store.Get(r.Context(), claims.Subject, key)
	if err != nil {
		writeLookupError(w, r, err, claims.Subject, key)
		return nil, false
	}

	views, err := rd.Store.GetViews(r.Context(), design.ProductID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, core.ErrNotFound) {
			status = http.StatusConflict
		}
		render.Status(r, status)
		render.JSON(w, r, map[string]string{"error": "Product views for this design are unavailable"})
		return nil, false
	}
	if len(views) == 0 {
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, map[string]string{"error": "Product has no views"})
		return nil, false
	}

	model, err := scene.DecodeModel(design.Scene)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"error":     err,
			"design_id": key,
		}).Error("Stored scene is corrupt")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, map[string]string{"error": "Stored scene is corrupt"})
		return nil, false
	}
	if n := scene.PruneViews(model, views); n > 0 {
		logrus.WithFields(logrus.Fields{
			"design_id":  key,
			"product_id": design.ProductID,
			"removed":    n,
		}).Warn("Dropped elements of views the product no longer has")
	}
	return &session{userID: claims.Subject, design: design, views: views, model: model}, true
}

// HandlePreview composites one view of a saved design. The view defaults to
// the first customized one; mode is "fast" (default) or "ai".
func HandlePreview(rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := rd.load(w, r)
		if !ok {
			return
		}

		viewID := r.URL.Query().Get("view")
		if viewID == "" {
			viewID = s.views[0].ID
			if ids := export.CustomizedViews(s.views, s.model); len(ids) > 0 {
				viewID = ids[0]
			}
		}
		view, ok := core.FindView(s.views, viewID)
		if !ok {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Unknown view " + viewID})
			return
		}

		var c core.Compositor
		switch mode := r.URL.Query().Get("mode"); mode {
		case "", "fast":
			c = rd.Fast
		case "ai":
			c = rd.AI
		default:
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "mode must be fast or ai"})
			return
		}
		if c == nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"error": "Compositor is not available"})
			return
		}

		overlays, err := scene.ImageTransforms(s.model.ForView(view.ID))
		if err != nil {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}

		req := core.CompositeRequest{
			BaseImageWidthPx:  int(rd.StageWidth),
			BaseImageHeightPx: int(rd.StageHeight),
			Overlays:          overlays,
		}
		if strings.HasPrefix(view.ImageURL, "data:") {
			req.BaseImageDataURI = view.ImageURL
		} else {
			req.BaseImageURL = view.ImageURL
		}

		result, err := c.Composite(r.Context(), req)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":     err,
				"design_id": s.design.ID,
				"view_id":   view.ID,
			}).Warn("Design preview failed")
			composite.WriteError(w, r, err)
			return
		}
		render.JSON(w, r, result)
	}
}

// HandleExport renders every customized view of a saved design, uploads the
// rasters and returns one ViewPreview per view.
func HandleExport(rd *Renderer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, ok := rd.load(w, r)
		if !ok {
			return
		}

		designID := s.design.ID
		stage := scene.NewStage(rd.StageWidth, rd.StageHeight, s.views, s.model, rd.Loader)
		job := export.Job{
			Stage:   stage,
			Views:   s.views,
			ViewIDs: export.CustomizedViews(s.views, s.model),
			UserID:  s.userID,
		}
		if rd.Notifier != nil {
			job.Progress = func(done, total int, p core.ViewPreview, err error) {
				rd.Notifier.PreviewReady(s.userID, designID, done, total, p, err)
			}
		}

		previews, err := rd.Exporter.Generate(r.Context(), job)
		if errors.Is(err, scene.ErrStageBusy) {
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, map[string]string{"error": "An export is already running"})
			return
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":     err,
				"design_id": designID,
			}).Error("Export failed")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Export failed"})
			return
		}

		if rd.Notifier != nil {
			rd.Notifier.ExportFinished(s.userID, designID, previews)
		}
		logrus.WithFields(logrus.Fields{
			"design_id": designID,
			"views":     len(previews),
		}).Info("Design exported")
		render.JSON(w, r, previews)
	}
}
