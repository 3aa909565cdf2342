package products

import (
	"encoding/json"
	"errors"
	"net/http"

	"customizer/core"
	"customizer/geometry"
	"customizer/scene"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

func HandleGetViews(store core.ProductStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID := chi.URLParam(r, "productId")
		views, err := store.GetViews(r.Context(), productID)
		if errors.Is(err, core.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Product not found"})
			return
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":      err,
				"product_id": productID,
			}).Error("Failed to load product views")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to load product views"})
			return
		}
		render.JSON(w, r, views)
	}
}

// HandleSaveViews replaces a product's views. Boxes that do not fit inside
// their view are rejected here so the boundary engine only sees sane input.
func HandleSaveViews(store core.ProductStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID := chi.URLParam(r, "productId")

		var views []core.ProductView
		if err := json.NewDecoder(r.Body).Decode(&views); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Body must be a list of product views"})
			return
		}
		defer r.Body.Close()

		if err := geometry.ValidateViews(views); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}

		if err := store.SaveViews(r.Context(), productID, views); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":      err,
				"product_id": productID,
			}).Error("Failed to save product views")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to save product views"})
			return
		}
		render.JSON(w, r, views)
	}
}

type feeResponse struct {
	ViewID    string         `json:"viewId"`
	Technique core.Technique `json:"technique"`
	Fee       float64        `json:"fee"`
}

// HandleFee returns the fee badge amount for one view. An absent technique
// is priced like print.
func HandleFee(store core.ProductStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID := chi.URLParam(r, "productId")
		viewID := chi.URLParam(r, "viewId")

		views, err := store.GetViews(r.Context(), productID)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, core.ErrNotFound) {
				status = http.StatusNotFound
			}
			render.Status(r, status)
			render.JSON(w, r, map[string]string{"error": "Product not found"})
			return
		}
		switcher, err := scene.NewViewSwitcher(views, scene.NewModel())
		if err == nil {
			err = switcher.SetActiveView(viewID)
		}
		if err != nil {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "View not found"})
			return
		}

		t := core.Technique(r.URL.Query().Get("technique"))
		render.JSON(w, r, feeResponse{ViewID: viewID, Technique: t, Fee: switcher.FeeBadge(t)})
	}
}
