package composite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"customizer/compositor"
	"customizer/core"
	"customizer/imageio"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(t *testing.T, w, h int, c color.RGBA) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	uri, err := imageio.PNGDataURI(img)
	require.NoError(t, err)
	return uri
}

func post(t *testing.T, h http.Handler, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v2/composite/fast", &buf))
	return rec
}

func TestHandleCompositeFast(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	fast := compositor.NewFast(imageio.NewHTTPLoader(nil, time.Second), logger)
	h := HandleComposite(fast, "fast")

	rec := post(t, h, core.CompositeRequest{
		BaseImageDataURI:  solid(t, 40, 40, color.RGBA{255, 255, 255, 255}),
		BaseImageWidthPx:  40,
		BaseImageHeightPx: 40,
		Overlays: []core.ImageTransform{{
			ImageDataURI: solid(t, 4, 4, color.RGBA{255, 0, 0, 255}),
			X:            20, Y: 20, Width: 10, Height: 10,
		}},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res core.CompositeResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Contains(t, res.CompositeImageURL, "data:image/png;base64,")
	assert.Equal(t, compositor.DefaultAltText, res.AltText)

	rec = post(t, h, core.CompositeRequest{BaseImageWidthPx: 40, BaseImageHeightPx: 40})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = post(t, h, core.CompositeRequest{
		BaseImageDataURI:  solid(t, 4, 4, color.RGBA{255, 255, 255, 255}),
		BaseImageWidthPx:  1 << 30,
		BaseImageHeightPx: 1 << 30,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "exceed")

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type failing struct{ err error }

func (f failing) Composite(context.Context, core.CompositeRequest) (*core.CompositeResult, error) {
	return nil, f.err
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{compositor.ErrNotConfigured, http.StatusServiceUnavailable},
		{&compositor.StageError{Stage: compositor.StageOverlay, Index: 1, Err: compositor.ErrInvalidRequest}, http.StatusBadRequest},
		{&compositor.StageError{Stage: compositor.StageBase, Index: -1, Err: fmt.Errorf("404")}, http.StatusUnprocessableEntity},
		{&compositor.StageError{Stage: compositor.StageResponse, Index: -1, Err: compositor.ErrModelDeclined}, http.StatusUnprocessableEntity},
		{&compositor.StageError{Stage: compositor.StageResponse, Index: -1, Err: compositor.ErrNoImage}, http.StatusBadGateway},
		{&compositor.StageError{Stage: compositor.StageRequest, Index: -1, Err: fmt.Errorf("dial")}, http.StatusBadGateway},
		{fmt.Errorf("wrapped: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StatusFor(tt.err), tt.err.Error())
	}
}

func TestHandleCompositeErrors(t *testing.T) {
	rec := post(t, HandleComposite(failing{compositor.ErrNotConfigured}, "ai"), core.CompositeRequest{})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "not configured")

	rec = post(t, HandleComposite(nil, "ai"), core.CompositeRequest{})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
