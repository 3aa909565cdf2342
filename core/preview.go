package core

import (
	"context"
	"time"
)

type (
	// ImageTransform places one overlay on the base image. X and Y are the
	// pixel-space center of the overlay; Width and Height are its target
	// footprint, not the intrinsic asset size.
	ImageTransform struct {
		ImageDataURI string  `json:"imageDataUri"`
		X            float64 `json:"x"`
		Y            float64 `json:"y"`
		Width        float64 `json:"width"`
		Height       float64 `json:"height"`
		Rotation     float64 `json:"rotation"`
		ZIndex       int     `json:"zIndex"`
	}

	// CompositeRequest is shared by both compositors. The fast path reads the
	// base image from BaseImageURL, the AI path from BaseImageDataURI; either
	// compositor accepts whichever one is set.
	CompositeRequest struct {
		BaseImageURL      string           `json:"baseImageUrl,omitempty"`
		BaseImageDataURI  string           `json:"baseImageDataUri,omitempty"`
		BaseImageWidthPx  int              `json:"baseImageWidthPx"`
		BaseImageHeightPx int              `json:"baseImageHeightPx"`
		Overlays          []ImageTransform `json:"overlays"`
	}

	CompositeResult struct {
		CompositeImageURL string `json:"compositeImageUrl"`
		AltText           string `json:"altText"`
	}

	// Compositor flattens a base image and overlays into one image.
	Compositor interface {
		Composite(ctx context.Context, req CompositeRequest) (*CompositeResult, error)
	}

	// ViewPreview is the exported image for one customized view. URL is a
	// storage URL or an inline data URI.
	ViewPreview struct {
		ViewID   string `json:"viewId"`
		ViewName string `json:"viewName"`
		URL      string `json:"url"`
	}

	// Asset is a stored binary, e.g. an exported view raster.
	Asset struct {
		ID          string    `json:"id"`
		UserID      string    `json:"-"`
		Name        string    `json:"name"`
		ContentType string    `json:"contentType"`
		Data        []byte    `json:"-"`
		CreatedAt   time.Time `json:"createdAt"`
	}

	// AssetStore is durable storage for exported previews.
	AssetStore interface {
		// PutAsset stores the asset and returns its id.
		PutAsset(ctx context.Context, asset *Asset) (string, error)
		GetAsset(ctx context.Context, id string) (*Asset, error)
	}
)

// Source returns whichever base image reference is set, preferring the URL.
func (r CompositeRequest) Source() string {
	if r.BaseImageURL != "" {
		return r.BaseImageURL
	}
	return r.BaseImageDataURI
}

// AssetPath is the public path an asset is served from.
func AssetPath(id string) string {
	return "/api/v2/assets/" + id
}
