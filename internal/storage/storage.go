package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/linearcast/playout/internal/config"
)

// Storage provides asset store operations. Stores map to buckets; each
// channel namespace is one store.
type Storage struct {
	client     *minio.Client
	publicBase *url.URL
}

// New creates a new storage client
func New(cfg config.StorageConfig) (*Storage, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}

	base := client.EndpointURL()
	if cfg.PublicBaseURL != "" {
		base, err = url.Parse(cfg.PublicBaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse public base URL: %w", err)
		}
	}

	return &Storage{
		client:     client,
		publicBase: base,
	}, nil
}

// PublicURL returns the publicly fetchable URL for a stored key. Each
// key segment is percent-encoded before concatenation.
func (s *Storage) PublicURL(store, key string) string {
	segments := strings.Split(strings.TrimPrefix(key, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}

	base := strings.TrimSuffix(s.publicBase.String(), "/")
	return base + "/" + url.PathEscape(store) + "/" + strings.Join(segments, "/")
}

// EnsureStore creates the bucket backing a store if it does not exist
func (s *Storage) EnsureStore(ctx context.Context, store string) error {
	exists, err := s.client.BucketExists(ctx, store)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	if !exists {
		err = s.client.MakeBucket(ctx, store, minio.MakeBucketOptions{})
		if err != nil {
			return fmt.Errorf("failed to create bucket: %w", err)
		}
	}

	return nil
}

// StandbyExists checks that the standby asset is present in a namespace
func (s *Storage) StandbyExists(ctx context.Context, namespace, standbyKey string) (bool, error) {
	_, err := s.client.StatObject(ctx, namespace, standbyKey, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" || resp.Code == "NoSuchBucket" {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat standby asset: %w", err)
	}

	return true, nil
}

// Health checks connectivity to the asset store
func (s *Storage) Health(ctx context.Context) error {
	if _, err := s.client.ListBuckets(ctx); err != nil {
		return fmt.Errorf("asset store unreachable: %w", err)
	}
	return nil
}
