// Package designs serves a shopper's saved customization sessions.
package designs

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"customizer/core"
	"customizer/middleware"
	"customizer/scene"
	"customizer/stores"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"
)

const msgpackContentType = "application/msgpack"

type saveRequest struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Thumbnail string          `json:"thumbnail"`
	Scene     json.RawMessage `json:"scene"`
}

type designResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Thumbnail string          `json:"thumbnail,omitempty"`
	Scene     json.RawMessage `json:"scene,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// packedDesign is the msgpack form, with the scene decoded rather than
// carried as an opaque JSON string.
type packedDesign struct {
	ID        string         `json:"id"`
	ProductID string         `json:"productId"`
	Name      string         `json:"name"`
	Thumbnail string         `json:"thumbnail,omitempty"`
	Scene     scene.Document `json:"scene"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

func toResponse(d *core.Design) designResponse {
	return designResponse{
		ID:        d.ID,
		ProductID: d.ProductID,
		Name:      d.Name,
		Thumbnail: d.Thumbnail,
		Scene:     json.RawMessage(d.Scene),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
}

func HandleListDesigns(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		designs, err := store.List(r.Context(), claims.Subject)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":   err,
				"user_id": claims.Subject,
			}).Error("Failed to list designs")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to list designs"})
			return
		}

		out := make([]designResponse, 0, len(designs))
		for _, d := range designs {
			d.Scene = nil
			out = append(out, toResponse(d))
		}
		render.JSON(w, r, out)
	}
}

// HandleGetDesign returns the design with its scene, as JSON or, when the
// client accepts it, msgpack.
func HandleGetDesign(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		key := chi.URLParam(r, "key")
		design, err := store.Get(r.Context(), claims.Subject, key)
		if err != nil {
			writeLookupError(w, r, err, claims.Subject, key)
			return
		}

		if !strings.Contains(r.Header.Get("Accept"), msgpackContentType) {
			render.JSON(w, r, toResponse(design))
			return
		}

		model, err := scene.DecodeModel(design.Scene)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":     err,
				"design_id": key,
			}).Error("Stored scene is corrupt")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Stored scene is corrupt"})
			return
		}

		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		enc.SetCustomStructTag("json")
		err = enc.Encode(packedDesign{
			ID:        design.ID,
			ProductID: design.ProductID,
			Name:      design.Name,
			Thumbnail: design.Thumbnail,
			Scene:     model.Document(),
			CreatedAt: design.CreatedAt,
			UpdatedAt: design.UpdatedAt,
		})
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to encode design"})
			return
		}
		w.Header().Set("Content-Type", msgpackContentType)
		w.Write(buf.Bytes())
	}
}

// HandleSaveDesign creates or replaces a design. The scene must decode and
// every element must sit on a view of the product, sized the way the editor
// allows on a stage of stageWidth x stageHeight.
func HandleSaveDesign(store stores.Store, stageWidth, stageHeight float64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		key := chi.URLParam(r, "key")
		var body saveRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid design body"})
			return
		}
		defer r.Body.Close()

		if body.ProductID == "" {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "productId is required"})
			return
		}
		views, err := store.GetViews(r.Context(), body.ProductID)
		if err != nil {
			status, msg := http.StatusInternalServerError, "Failed to load product views"
			if errors.Is(err, core.ErrNotFound) {
				status, msg = http.StatusBadRequest, "Unknown product"
			}
			render.Status(r, status)
			render.JSON(w, r, map[string]string{"error": msg})
			return
		}

		model, err := scene.DecodeModel(body.Scene)
		if err == nil {
			err = scene.CheckPlacement(model, views, stageWidth, stageHeight)
		}
		if err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}
		encoded, err := scene.EncodeModel(model)
		if err != nil {
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to encode scene"})
			return
		}

		name := body.Name
		if name == "" {
			name = key
		}
		design := &core.Design{
			ID:        key,
			UserID:    claims.Subject,
			ProductID: body.ProductID,
			Name:      name,
			Thumbnail: body.Thumbnail,
			Scene:     encoded,
		}
		if err := store.Save(r.Context(), design); err != nil {
			logrus.WithFields(logrus.Fields{
				"error":   err,
				"user_id": claims.Subject,
				"key":     key,
			}).Error("Failed to save design")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to save design"})
			return
		}

		design.Scene = nil
		render.JSON(w, r, toResponse(design))
	}
}

func HandleDeleteDesign(store stores.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := middleware.Claims(r)
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, map[string]string{"error": "User claims not found"})
			return
		}

		key := chi.URLParam(r, "key")
		if err := store.Delete(r.Context(), claims.Subject, key); err != nil {
			if errors.Is(err, core.ErrNotFound) {
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, map[string]string{"error": "Design not found"})
				return
			}
			logrus.WithFields(logrus.Fields{
				"error":   err,
				"user_id": claims.Subject,
				"key":     key,
			}).Error("Failed to delete design")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to delete design"})
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func writeLookupError(w http.ResponseWriter, r *http.Request, err error, userID, key string) {
	if errors.Is(err, core.ErrNotFound) {
		render.Status(r, http.StatusNotFound)
		render.JSON(w, r, map[string]string{"error": "Design not found"})
		return
	}
	logrus.WithFields(logrus.Fields{
		"error":   err,
		"user_id": userID,
		"key":     key,
	}).Error("Failed to get design")
	render.Status(r, http.StatusInternalServerError)
	render.JSON(w, r, map[string]string{"error": "Failed to get design"})
}
