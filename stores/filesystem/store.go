package filesystem

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"customizer/core"

	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// fsStore keeps everything under basePath:
//
//	designs/<user>/<id>.json
//	products/<product>.json
//	assets/<id>.json and assets/<id>.bin
type fsStore struct {
	basePath string
}

// NewStore creates a new filesystem-based store.
func NewStore(basePath string) *fsStore {
	for _, dir := range []string{"designs", "products", "assets"} {
		if err := os.MkdirAll(filepath.Join(basePath, dir), 0755); err != nil {
			log.Fatalf("failed to create storage directory: %v", err)
		}
	}
	return &fsStore{basePath: basePath}
}

// path joins name segments below basePath, rejecting anything that would
// escape its parent directory.
func (s *fsStore) path(dir string, names ...string) (string, error) {
	parts := []string{s.basePath, dir}
	for _, n := range names {
		if n == "" || n == "." || n == ".." || strings.ContainsAny(n, `/\`) {
			return "", fmt.Errorf("invalid path: access denied")
		}
		parts = append(parts, n)
	}
	return filepath.Join(parts...), nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return core.ErrNotFound
		}
		return err
	}
	return json.Unmarshal(data, v)
}

func writeJSON(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// storedDesign keeps the owner, which Design leaves out of its JSON.
type storedDesign struct {
	UserID string `json:"userId"`
	*core.Design
}

func (s *fsStore) List(ctx context.Context, userID string) ([]*core.Design, error) {
	userPath, err := s.path("designs", userID)
	if err != nil {
		return nil, err
	}
	log := logrus.WithField("user_id", userID).WithField("path", userPath)

	files, err := os.ReadDir(userPath)
	if err != nil {
		if os.IsNotExist(err) {
			return []*core.Design{}, nil
		}
		log.WithError(err).Error("Failed to read user directory")
		return nil, err
	}

	designs := make([]*core.Design, 0, len(files))
	for _, file := range files {
		if file.IsDir() || filepath.Ext(file.Name()) != ".json" {
			continue
		}
		stored := storedDesign{Design: &core.Design{}}
		if err := readJSON(filepath.Join(userPath, file.Name()), &stored); err != nil {
			log.WithError(err).Warnf("Failed to read design file %s, skipping", file.Name())
			continue
		}
		stored.Design.UserID = userID
		stored.Design.Scene = nil
		designs = append(designs, stored.Design)
	}

	log.Debugf("Listed %d designs", len(designs))
	return designs, nil
}

func (s *fsStore) Get(ctx context.Context, userID, id string) (*core.Design, error) {
	filePath, err := s.path("designs", userID, id+".json")
	if err != nil {
		return nil, err
	}
	stored := storedDesign{Design: &core.Design{}}
	if err := readJSON(filePath, &stored); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("design %s: %w", id, core.ErrNotFound)
		}
		logrus.WithError(err).WithField("path", filePath).Error("Failed to read design file")
		return nil, err
	}
	stored.Design.UserID = userID
	return stored.Design, nil
}

func (s *fsStore) Save(ctx context.Context, design *core.Design) error {
	if design.UserID == "" || design.ID == "" {
		return fmt.Errorf("design needs a user and an id")
	}
	filePath, err := s.path("designs", design.UserID, design.ID+".json")
	if err != nil {
		return err
	}
	log := logrus.WithFields(logrus.Fields{"user_id": design.UserID, "design_id": design.ID})

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		log.WithError(err).Error("Failed to create user directory")
		return err
	}

	now := time.Now()
	existing := storedDesign{Design: &core.Design{}}
	switch err := readJSON(filePath, &existing); {
	case err == nil:
		design.CreatedAt = existing.CreatedAt
	case errors.Is(err, core.ErrNotFound):
		design.CreatedAt = now
	default:
		return err
	}
	design.UpdatedAt = now

	if err := writeJSON(filePath, storedDesign{UserID: design.UserID, Design: design}); err != nil {
		log.WithError(err).Error("Failed to write design file")
		return err
	}
	log.Info("Design saved successfully")
	return nil
}

func (s *fsStore) Delete(ctx context.Context, userID, id string) error {
	filePath, err := s.path("designs", userID, id+".json")
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("design %s: %w", id, core.ErrNotFound)
		}
		return err
	}
	logrus.WithFields(logrus.Fields{"user_id": userID, "design_id": id}).Info("Design deleted successfully")
	return nil
}

func (s *fsStore) GetViews(ctx context.Context, productID string) ([]core.ProductView, error) {
	filePath, err := s.path("products", productID+".json")
	if err != nil {
		return nil, err
	}
	var views []core.ProductView
	if err := readJSON(filePath, &views); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("product %s: %w", productID, core.ErrNotFound)
		}
		return nil, err
	}
	return views, nil
}

func (s *fsStore) SaveViews(ctx context.Context, productID string, views []core.ProductView) error {
	filePath, err := s.path("products", productID+".json")
	if err != nil {
		return err
	}
	if err := writeJSON(filePath, views); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"product_id": productID, "views": len(views)}).Info("Product views saved")
	return nil
}

// storedAsset is the metadata written next to the asset bytes.
type storedAsset struct {
	UserID string `json:"userId"`
	*core.Asset
}

func (s *fsStore) PutAsset(ctx context.Context, asset *core.Asset) (string, error) {
	id := ulid.Make().String()
	metaPath, _ := s.path("assets", id+".json")
	dataPath, _ := s.path("assets", id+".bin")

	meta := *asset
	meta.ID = id
	meta.CreatedAt = time.Now()
	if err := os.WriteFile(dataPath, asset.Data, 0644); err != nil {
		return "", err
	}
	if err := writeJSON(metaPath, storedAsset{UserID: asset.UserID, Asset: &meta}); err != nil {
		return "", err
	}
	logrus.WithFields(logrus.Fields{"asset_id": id, "data_length": len(asset.Data)}).Info("Asset stored")
	return id, nil
}

func (s *fsStore) GetAsset(ctx context.Context, id string) (*core.Asset, error) {
	metaPath, err := s.path("assets", id+".json")
	if err != nil {
		return nil, err
	}
	stored := storedAsset{Asset: &core.Asset{}}
	if err := readJSON(metaPath, &stored); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("asset %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	dataPath, _ := s.path("assets", id+".bin")
	data, err := os.ReadFile(dataPath)
	if err != nil {
		return nil, err
	}
	stored.Asset.UserID = stored.UserID
	stored.Asset.Data = data
	return stored.Asset, nil
}
