// Package composite serves the fast and AI compositors over HTTP.
package composite

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"customizer/compositor"
	"customizer/core"

	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

// maxRequestBytes bounds a request body. Overlays travel as data URIs.
const maxRequestBytes = 32 << 20

// HandleComposite decodes a CompositeRequest and runs it through c.
func HandleComposite(c core.Compositor, mode string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if c == nil {
			render.Status(r, http.StatusServiceUnavailable)
			render.JSON(w, r, map[string]string{"error": mode + " compositor is not available"})
			return
		}

		var req core.CompositeRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid composite request body"})
			return
		}
		defer r.Body.Close()

		result, err := c.Composite(r.Context(), req)
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"error":    err,
				"mode":     mode,
				"overlays": len(req.Overlays),
			}).Warn("Composite failed")
			WriteError(w, r, err)
			return
		}
		render.JSON(w, r, result)
	}
}

// WriteError maps a compositor error onto a status code and error body.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	render.Status(r, StatusFor(err))
	render.JSON(w, r, map[string]string{"error": err.Error()})
}

func StatusFor(err error) int {
	var se *compositor.StageError
	switch {
	case errors.Is(err, compositor.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, compositor.ErrInvalidRequest):
		return http.StatusBadRequest
	case errors.Is(err, compositor.ErrModelDeclined):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &se) && (se.Stage == compositor.StageBase || se.Stage == compositor.StageOverlay):
		return http.StatusUnprocessableEntity
	case errors.Is(err, compositor.ErrNoImage), errors.As(err, &se):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
