package aws

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"path"
	"strings"
	"time"

	"customizer/core"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

// s3API is the part of *s3.Client the store uses.
type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// s3Store lays out objects as designs/<user>/<id>.json,
// products/<product>.json and assets/<id>.
type s3Store struct {
	s3Client s3API
	bucket   string
}

// NewStore creates a new S3-based store.
func NewStore(bucketName string) *s3Store {
	cfg, err := config.LoadDefaultConfig(context.TODO())
	if err != nil {
		log.Fatalf("unable to load SDK config, %v", err)
	}
	return newStore(s3.NewFromConfig(cfg), bucketName)
}

func newStore(client s3API, bucket string) *s3Store {
	return &s3Store{s3Client: client, bucket: bucket}
}

// key joins segments, rejecting any that is a path itself.
func key(prefix string, names ...string) (string, error) {
	parts := []string{prefix}
	for _, n := range names {
		if n == "" || n == "." || n == ".." || path.Base(n) != n {
			return "", fmt.Errorf("invalid id %q: must not be a path", n)
		}
		parts = append(parts, n)
	}
	return path.Join(parts...), nil
}

func (s *s3Store) get(ctx context.Context, k string) (*s3.GetObjectOutput, []byte, error) {
	resp, err := s.s3Client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		var nsk *s3types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, nil, core.ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to get %s: %w", k, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read %s: %w", k, err)
	}
	return resp, data, nil
}

func (s *s3Store) putJSON(ctx context.Context, k string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(k),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put %s: %w", k, err)
	}
	return nil
}

// storedDesign keeps the owner, which Design leaves out of its JSON.
type storedDesign struct {
	UserID string `json:"userId"`
	*core.Design
}

func (s *s3Store) List(ctx context.Context, userID string) ([]*core.Design, error) {
	prefix, err := key("designs", userID)
	if err != nil {
		return nil, err
	}
	log := logrus.WithField("user_id", userID)

	designs := []*core.Design{}
	pages := s3.NewListObjectsV2Paginator(s.s3Client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix + "/"),
	})
	for pages.HasMorePages() {
		page, err := pages.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list designs for user %s: %w", userID, err)
		}
		for _, object := range page.Contents {
			k := aws.ToString(object.Key)
			if !strings.HasSuffix(k, ".json") {
				continue
			}
			_, data, err := s.get(ctx, k)
			if err != nil {
				log.WithError(err).Warnf("Failed to get design object %s, skipping", k)
				continue
			}
			stored := storedDesign{Design: &core.Design{}}
			if err := json.Unmarshal(data, &stored); err != nil {
				log.WithError(err).Warnf("Failed to unmarshal design %s, skipping", k)
				continue
			}
			stored.Design.UserID = userID
			stored.Design.Scene = nil
			designs = append(designs, stored.Design)
		}
	}
	return designs, nil
}

func (s *s3Store) Get(ctx context.Context, userID, id string) (*core.Design, error) {
	k, err := key("designs", userID, id+".json")
	if err != nil {
		return nil, err
	}
	_, data, err := s.get(ctx, k)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("design %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	stored := storedDesign{Design: &core.Design{}}
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal design data: %w", err)
	}
	stored.Design.UserID = userID
	return stored.Design, nil
}

func (s *s3Store) Save(ctx context.Context, design *core.Design) error {
	k, err := key("designs", design.UserID, design.ID+".json")
	if err != nil {
		return err
	}

	now := time.Now()
	existing, err := s.Get(ctx, design.UserID, design.ID)
	switch {
	case err == nil:
		design.CreatedAt = existing.CreatedAt
	case errors.Is(err, core.ErrNotFound):
		design.CreatedAt = now
	default:
		return err
	}
	design.UpdatedAt = now

	if err := s.putJSON(ctx, k, storedDesign{UserID: design.UserID, Design: design}); err != nil {
		return err
	}
	logrus.WithFields(logrus.Fields{"user_id": design.UserID, "design_id": design.ID}).Info("Design saved successfully")
	return nil
}

func (s *s3Store) Delete(ctx context.Context, userID, id string) error {
	k, err := key("designs", userID, id+".json")
	if err != nil {
		return err
	}
	_, err = s.s3Client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(k),
	})
	if err != nil {
		return fmt.Errorf("failed to delete design %s: %w", id, err)
	}
	return nil
}

func (s *s3Store) GetViews(ctx context.Context, productID string) ([]core.ProductView, error) {
	k, err := key("products", productID+".json")
	if err != nil {
		return nil, err
	}
	_, data, err := s.get(ctx, k)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("product %s: %w", productID, core.ErrNotFound)
		}
		return nil, err
	}
	var views []core.ProductView
	if err := json.Unmarshal(data, &views); err != nil {
		return nil, fmt.Errorf("product %s: corrupt views: %w", productID, err)
	}
	return views, nil
}

func (s *s3Store) SaveViews(ctx context.Context, productID string, views []core.ProductView) error {
	k, err := key("products", productID+".json")
	if err != nil {
		return err
	}
	return s.putJSON(ctx, k, views)
}

const (
	metaUserID = "user-id"
	metaName   = "name"
)

func (s *s3Store) PutAsset(ctx context.Context, asset *core.Asset) (string, error) {
	id := ulid.Make().String()
	k, _ := key("assets", id)
	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(k),
		Body:        bytes.NewReader(asset.Data),
		ContentType: aws.String(asset.ContentType),
		Metadata:    map[string]string{metaUserID: asset.UserID, metaName: asset.Name},
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload asset: %w", err)
	}
	logrus.WithFields(logrus.Fields{"asset_id": id, "data_length": len(asset.Data)}).Info("Asset stored")
	return id, nil
}

func (s *s3Store) GetAsset(ctx context.Context, id string) (*core.Asset, error) {
	k, err := key("assets", id)
	if err != nil {
		return nil, err
	}
	resp, data, err := s.get(ctx, k)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, fmt.Errorf("asset %s: %w", id, core.ErrNotFound)
		}
		return nil, err
	}
	return &core.Asset{
		ID:          id,
		UserID:      resp.Metadata[metaUserID],
		Name:        resp.Metadata[metaName],
		ContentType: aws.ToString(resp.ContentType),
		Data:        data,
		CreatedAt:   aws.ToTime(resp.LastModified),
	}, nil
}
