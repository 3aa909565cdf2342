package imageio

import (
	"context"
	"encoding/binary"
	"hash/crc32"
	"image"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func TestDataURIRoundTrip(t *testing.T) {
	uri, err := PNGDataURI(solid(4, 3, color.RGBA{255, 0, 0, 255}))
	require.NoError(t, err)
	assert.Contains(t, uri, "data:image/png;base64,")

	img, err := NewHTTPLoader(nil, time.Second).Load(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, 4, img.Bounds().Dx())
	assert.Equal(t, color.RGBA{255, 0, 0, 255}, img.RGBAAt(2, 1))
}

func TestDecodeDataURIErrors(t *testing.T) {
	_, _, err := DecodeDataURI("data:image/png,abc")
	assert.Error(t, err)

	_, _, err = DecodeDataURI("data:image/png;base64")
	assert.Error(t, err)

	_, _, err = DecodeDataURI("data:image/png;base64,***")
	assert.Error(t, err)
}

func TestLoadRemote(t *testing.T) {
	data, err := EncodePNG(solid(2, 2, color.RGBA{0, 0, 255, 255}))
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer srv.Close()

	l := NewHTTPLoader(srv.Client(), 0)
	img, err := l.Load(context.Background(), srv.URL+"/ok.png")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0, 0, 255, 255}, img.RGBAAt(1, 1))

	_, err = l.Load(context.Background(), srv.URL+"/missing.png")
	assert.ErrorContains(t, err, "status 404")
}

func TestLoadUnsupported(t *testing.T) {
	_, err := NewHTTPLoader(nil, time.Second).Load(context.Background(), "ftp://x/y.png")
	assert.ErrorIs(t, err, ErrUnsupportedSource)
}

func TestToRGBAOffsetOrigin(t *testing.T) {
	src := image.NewRGBA(image.Rect(5, 5, 8, 9))
	src.SetRGBA(5, 5, color.RGBA{1, 2, 3, 255})
	out := ToRGBA(src)
	assert.Equal(t, image.Rect(0, 0, 3, 4), out.Bounds())
	assert.Equal(t, color.RGBA{1, 2, 3, 255}, out.RGBAAt(0, 0))
}

// withDimensions rewrites the IHDR chunk of a PNG to declare w x h.
func withDimensions(t *testing.T, data []byte, w, h uint32) []byte {
	t.Helper()
	require.Equal(t, "IHDR", string(data[12:16]))
	out := append([]byte(nil), data...)
	binary.BigEndian.PutUint32(out[16:20], w)
	binary.BigEndian.PutUint32(out[20:24], h)
	binary.BigEndian.PutUint32(out[29:33], crc32.ChecksumIEEE(out[12:29]))
	return out
}

func TestDecodeRejectsHugeDimensions(t *testing.T) {
	data, err := EncodePNG(solid(2, 2, color.RGBA{0, 0, 255, 255}))
	require.NoError(t, err)

	huge := withDimensions(t, data, 100000, 100000)
	_, err = Decode(huge)
	assert.ErrorIs(t, err, ErrImageTooLarge)

	_, err = DecodeLimited(data, 3)
	assert.ErrorIs(t, err, ErrImageTooLarge)

	img, err := DecodeLimited(data, 4)
	require.NoError(t, err)
	assert.Equal(t, 2, img.Bounds().Dx())
}

func TestLoaderPixelBudget(t *testing.T) {
	uri, err := PNGDataURI(solid(4, 4, color.RGBA{255, 0, 0, 255}))
	require.NoError(t, err)

	l := NewHTTPLoader(nil, time.Second)
	_, err = l.Load(context.Background(), uri)
	require.NoError(t, err)

	l.SetMaxPixels(15)
	_, err = l.Load(context.Background(), uri)
	assert.ErrorIs(t, err, ErrImageTooLarge)
}
