package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"customizer/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// memStore implements DesignStore, ProductStore and AssetStore in memory.
type memStore struct {
	mu sync.RWMutex
	// designs is keyed by userID, then design id.
	designs map[string]map[string]*core.Design
	views   map[string][]core.ProductView
	assets  map[string]*core.Asset
}

// NewStore creates a new in-memory store.
func NewStore() *memStore {
	return &memStore{
		designs: make(map[string]map[string]*core.Design),
		views:   make(map[string][]core.ProductView),
		assets:  make(map[string]*core.Asset),
	}
}

// List returns metadata for all designs owned by a user. Part of the DesignStore interface.
func (s *memStore) List(ctx context.Context, userID string) ([]*core.Design, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userDesigns := s.designs[userID]
	designs := make([]*core.Design, 0, len(userDesigns))
	for _, d := range userDesigns {
		// The list view leaves out the scene.
		designs = append(designs, &core.Design{
			ID:        d.ID,
			UserID:    d.UserID,
			ProductID: d.ProductID,
			Name:      d.Name,
			Thumbnail: d.Thumbnail,
			CreatedAt: d.CreatedAt,
			UpdatedAt: d.UpdatedAt,
		})
	}

	logrus.WithField("user_id", userID).Debugf("Listed %d designs", len(designs))
	return designs, nil
}

// Get returns a single design, ensuring it belongs to the user.
func (s *memStore) Get(ctx context.Context, userID, id string) (*core.Design, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	d, ok := s.designs[userID][id]
	if !ok {
		logrus.WithFields(logrus.Fields{"user_id": userID, "design_id": id}).Warn("Design not found for user")
		return nil, fmt.Errorf("design %s: %w", id, core.ErrNotFound)
	}
	cp := *d
	return &cp, nil
}

// Save creates or updates a design for a user.
func (s *memStore) Save(ctx context.Context, design *core.Design) error {
	if design.UserID == "" {
		return fmt.Errorf("UserID cannot be empty")
	}
	if design.ID == "" {
		return fmt.Errorf("Design ID cannot be empty for save operation")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	userDesigns, ok := s.designs[design.UserID]
	if !ok {
		userDesigns = make(map[string]*core.Design)
		s.designs[design.UserID] = userDesigns
	}

	now := time.Now()
	if existing, exists := userDesigns[design.ID]; exists {
		design.CreatedAt = existing.CreatedAt
	} else {
		design.CreatedAt = now
	}
	design.UpdatedAt = now

	cp := *design
	userDesigns[design.ID] = &cp
	logrus.WithFields(logrus.Fields{"user_id": design.UserID, "design_id": design.ID}).Info("Design saved successfully")
	return nil
}

// Delete removes a design, ensuring it belongs to the user.
func (s *memStore) Delete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.designs[userID][id]; !ok {
		return fmt.Errorf("design %s: %w", id, core.ErrNotFound)
	}
	delete(s.designs[userID], id)
	logrus.WithFields(logrus.Fields{"user_id": userID, "design_id": id}).Info("Design deleted successfully")
	return nil
}

// GetViews returns the product's views. Part of the ProductStore interface.
func (s *memStore) GetViews(ctx context.Context, productID string) ([]core.ProductView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	views, ok := s.views[productID]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", productID, core.ErrNotFound)
	}
	return append([]core.ProductView(nil), views...), nil
}

// SaveViews replaces the product's views.
func (s *memStore) SaveViews(ctx context.Context, productID string, views []core.ProductView) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.views[productID] = append([]core.ProductView(nil), views...)
	logrus.WithFields(logrus.Fields{"product_id": productID, "views": len(views)}).Info("Product views saved")
	return nil
}

// PutAsset stores a binary asset. Part of the AssetStore interface.
func (s *memStore) PutAsset(ctx context.Context, asset *core.Asset) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := ulid.Make().String()
	cp := *asset
	cp.ID = id
	cp.CreatedAt = time.Now()
	s.assets[id] = &cp
	logrus.WithFields(logrus.Fields{"asset_id": id, "data_length": len(asset.Data)}).Info("Asset stored")
	return id, nil
}

func (s *memStore) GetAsset(ctx context.Context, id string) (*core.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.assets[id]
	if !ok {
		return nil, fmt.Errorf("asset %s: %w", id, core.ErrNotFound)
	}
	cp := *a
	return &cp, nil
}
