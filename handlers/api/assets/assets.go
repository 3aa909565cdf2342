package assets

import (
	"errors"
	"net/http"
	"strconv"

	"customizer/core"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// HandleGetAsset streams a stored asset. Asset ids are unguessable ULIDs, so
// the route is public and storefront image tags can use it directly.
func HandleGetAsset(store core.AssetStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		asset, err := store.GetAsset(r.Context(), id)
		if errors.Is(err, core.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, map[string]string{"error": "Asset not found"})
			return
		}
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":    err,
				"asset_id": id,
			}).Error("Failed to load asset")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to load asset"})
			return
		}

		contentType := asset.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Length", strconv.Itoa(len(asset.Data)))
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		w.Write(asset.Data)
	}
}
