// Package imageio loads images from data URIs and remote URLs and encodes
// rasters back to PNG data URIs.
package imageio

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"
	"io"
	"net/http"
	"strings"
	"time"

	_ "golang.org/x/image/webp"
)

// ErrUnsupportedSource is returned for image references that are neither
// data URIs nor http(s) URLs.
var ErrUnsupportedSource = errors.New("unsupported image source")

// ErrImageTooLarge is returned when an image header declares more pixels
// than the decoder accepts.
var ErrImageTooLarge = errors.New("image dimensions too large")

// DefaultMaxPixels is the pixel budget used by Decode and new loaders.
const DefaultMaxPixels = 1 << 25

// Loader resolves an image reference to decoded pixels.
type Loader interface {
	Load(ctx context.Context, src string) (*image.RGBA, error)
}

// HTTPLoader loads data URIs in-process and fetches http(s) URLs.
type HTTPLoader struct {
	client    *http.Client
	maxBytes  int64
	maxPixels int
}

const defaultMaxBytes = 32 << 20

// NewHTTPLoader returns a loader using client, or a client with timeout when
// client is nil.
func NewHTTPLoader(client *http.Client, timeout time.Duration) *HTTPLoader {
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPLoader{client: client, maxBytes: defaultMaxBytes, maxPixels: DefaultMaxPixels}
}

// SetMaxPixels overrides the decode pixel budget. Non-positive values
// restore the default.
func (l *HTTPLoader) SetMaxPixels(n int) {
	if n <= 0 {
		n = DefaultMaxPixels
	}
	l.maxPixels = n
}

// Load fetches and decodes src.
func (l *HTTPLoader) Load(ctx context.Context, src string) (*image.RGBA, error) {
	data, _, err := l.Fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	return DecodeLimited(data, l.maxPixels)
}

// Fetch returns the raw bytes and content type behind src.
func (l *HTTPLoader) Fetch(ctx context.Context, src string) ([]byte, string, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		return DecodeDataURI(src)
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return l.fetchRemote(ctx, src)
	default:
		return nil, "", fmt.Errorf("%w: %.32q", ErrUnsupportedSource, src)
	}
}

func (l *HTTPLoader) fetchRemote(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create image request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch image %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to fetch image %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, l.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image %s: %w", url, err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, "", fmt.Errorf("image %s exceeds %d bytes", url, l.maxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

// DecodeDataURI splits a base64 data URI into payload and media type.
func DecodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("%w: not a data URI", ErrUnsupportedSource)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URI: missing comma")
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return nil, "", fmt.Errorf("malformed data URI: only base64 payloads are supported")
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("malformed data URI payload: %w", err)
	}
	if mediaType == "" {
		mediaType = http.DetectContentType(data)
	}
	return data, mediaType, nil
}

// Decode decodes any registered format into a zero-origin RGBA.
func Decode(data []byte) (*image.RGBA, error) {
	return DecodeLimited(data, DefaultMaxPixels)
}

// DecodeLimited reads the image header first and refuses to allocate
// rasters larger than maxPixels.
func DecodeLimited(data []byte, maxPixels int) (*image.RGBA, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	if cfg.Width > 0 && cfg.Height > 0 && cfg.Width > maxPixels/cfg.Height {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return ToRGBA(img), nil
}

// ToRGBA copies img into a new RGBA whose bounds start at (0, 0).
func ToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	out := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(out, out.Bounds(), img, b.Min, draw.Src)
	return out
}

// EncodePNG encodes img losslessly. Output is deterministic for equal input.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURI builds a base64 data URI.
func DataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// PNGDataURI encodes img as a PNG data URI.
func PNGDataURI(img image.Image) (string, error) {
	data, err := EncodePNG(img)
	if err != nil {
		return "", err
	}
	return DataURI("image/png", data), nil
}
