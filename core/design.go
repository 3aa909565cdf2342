package core

import (
	"context"
	"time"
)

type (
	// Design is a shopper's saved customization session for one product.
	Design struct {
		ID        string    `json:"id"`
		UserID    string    `json:"-"` // Not exposed in JSON responses, used internally.
		ProductID string    `json:"productId"`
		Name      string    `json:"name"`
		Thumbnail string    `json:"thumbnail,omitempty"`
		Scene     []byte    `json:"scene,omitempty"` // Serialized scene document, omitted from list views.
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// DesignStore persists designs. All operations are scoped to a user.
	DesignStore interface {
		// List returns metadata for all designs owned by a user, without Scene.
		List(ctx context.Context, userID string) ([]*Design, error)

		Get(ctx context.Context, userID, id string) (*Design, error)

		// Save creates or updates a design, preserving CreatedAt on update.
		Save(ctx context.Context, design *Design) error

		Delete(ctx context.Context, userID, id string) error
	}
)
