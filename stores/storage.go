package stores

import (
	"context"
	"fmt"
	"os"

	"customizer/config"
	"customizer/core"
	"customizer/geometry"
	"customizer/stores/aws"
	"customizer/stores/filesystem"
	"customizer/stores/memory"
	"customizer/stores/postgres"
	"customizer/stores/sqlite"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Store is a union interface that includes all store types.
type Store interface {
	core.DesignStore
	core.ProductStore
	core.AssetStore
}

func GetStore(cfg config.Config) Store {
	var store Store

	storageField := logrus.Fields{
		"storageType": cfg.StorageType,
	}

	switch cfg.StorageType {
	case "filesystem":
		storageField["basePath"] = cfg.LocalStoragePath
		store = filesystem.NewStore(cfg.LocalStoragePath)
	case "sqlite":
		storageField["dataSourceName"] = cfg.DataSourceName
		store = sqlite.NewStore(cfg.DataSourceName)
	case "postgres":
		if cfg.DatabaseURL == "" {
			logrus.Fatal("DATABASE_URL environment variable must be set for postgres storage type")
		}
		store = postgres.NewStore(cfg.DatabaseURL)
	case "s3":
		if cfg.S3BucketName == "" {
			logrus.Fatal("S3_BUCKET_NAME environment variable must be set for s3 storage type")
		}
		storageField["bucketName"] = cfg.S3BucketName
		store = aws.NewStore(cfg.S3BucketName)
	default:
		store = memory.NewStore()
		storageField["storageType"] = "in-memory"
	}
	logrus.WithFields(storageField).Info("Use storage")
	return store
}

// Catalog is the seed file layout: product id to its views.
type Catalog struct {
	Products map[string][]core.ProductView `yaml:"products"`
}

// LoadCatalog reads and validates a YAML catalog.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}
	for id, views := range c.Products {
		if err := geometry.ValidateViews(views); err != nil {
			return nil, fmt.Errorf("product %s: %w", id, err)
		}
	}
	return &c, nil
}

// Seed writes every catalog product into the store.
func Seed(ctx context.Context, store core.ProductStore, c *Catalog) error {
	for id, views := range c.Products {
		if err := store.SaveViews(ctx, id, views); err != nil {
			return fmt.Errorf("failed to seed product %s: %w", id, err)
		}
	}
	logrus.WithField("products", len(c.Products)).Info("Catalog seeded")
	return nil
}
