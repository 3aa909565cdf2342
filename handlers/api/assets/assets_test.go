package assets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"customizer/core"
	"customizer/stores/memory"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleGetAsset(t *testing.T) {
	store := memory.NewStore()
	id, err := store.PutAsset(context.Background(), &core.Asset{
		UserID:      "u1",
		Name:        "front.png",
		ContentType: "image/png",
		Data:        []byte{0x89, 'P', 'N', 'G'},
	})
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Get("/api/v2/assets/{id}", HandleGetAsset(store))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, core.AssetPath(id), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, []byte{0x89, 'P', 'N', 'G'}, rec.Body.Bytes())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, core.AssetPath("missing"), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
