// Package config gathers the server's environment configuration.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type Config struct {
	StorageType      string
	LocalStoragePath string
	DataSourceName   string
	DatabaseURL      string
	S3BucketName     string
	CatalogSeedFile  string

	OpenAIAPIKey   string
	OpenAIBaseURL  string
	CompositeModel string
	AITimeout      time.Duration

	ImageFetchTimeout time.Duration
	MaxCanvasPx       int
	MaxImagePixels    int

	ExportPixelRatio     float64
	ExportValidation     string
	ExportPlaceholderURL string

	StageWidth  float64
	StageHeight float64
}

// Load reads .env when present, then the environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		logrus.Info("No .env file found")
	}
	return FromEnv()
}

// FromEnv reads the environment only.
func FromEnv() Config {
	return Config{
		StorageType:      strings.ToLower(env("STORAGE_TYPE", "memory")),
		LocalStoragePath: env("LOCAL_STORAGE_PATH", "./data"),
		DataSourceName:   env("DATA_SOURCE_NAME", "customizer.db"),
		DatabaseURL:      env("DATABASE_URL", ""),
		S3BucketName:     env("S3_BUCKET_NAME", ""),
		CatalogSeedFile:  env("CATALOG_SEED_FILE", ""),

		OpenAIAPIKey:   env("OPENAI_API_KEY", ""),
		OpenAIBaseURL:  env("OPENAI_BASE_URL", "https://api.openai.com"),
		CompositeModel: env("COMPOSITE_MODEL", "gpt-image-1"),
		AITimeout:      durationEnv("AI_TIMEOUT", 5*time.Minute),

		ImageFetchTimeout: durationEnv("IMAGE_FETCH_TIMEOUT", 30*time.Second),
		MaxCanvasPx:       intEnv("MAX_CANVAS_PX", 4096),
		MaxImagePixels:    intEnv("MAX_IMAGE_PIXELS", 1<<25),

		ExportPixelRatio:     floatEnv("EXPORT_PIXEL_RATIO", 2),
		ExportValidation:     env("EXPORT_VALIDATION", "transparent"),
		ExportPlaceholderURL: env("EXPORT_PLACEHOLDER_URL", ""),

		StageWidth:  floatEnv("STAGE_WIDTH", 600),
		StageHeight: floatEnv("STAGE_HEIGHT", 800),
	}
}

func env(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func floatEnv(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || f <= 0 {
		logrus.WithField("key", key).Warnf("ignoring invalid value %q", raw)
		return def
	}
	return f
}

func intEnv(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		logrus.WithField("key", key).Warnf("ignoring invalid value %q", raw)
		return def
	}
	return n
}

func durationEnv(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		logrus.WithField("key", key).Warnf("ignoring invalid duration %q", raw)
		return def
	}
	return d
}
