// Package storage abstracts the object store that holds cover images.
// Drivers: S3 via aws-sdk-go-v2, MinIO via minio-go and an in-process map.
package storage

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/bookshelf/internal/common"
	"github.com/dmitrijs2005/bookshelf/internal/server/config"
	"github.com/dmitrijs2005/bookshelf/internal/server/models"
)

const (
	DriverAWS    = "aws"
	DriverMinio  = "minio"
	DriverMemory = config.MemoryBackend
)

// ObjectStorage is a flat key/value blob store. Implementations return raw
// backend errors; callers decide how to classify them.
type ObjectStorage interface {
	Put(ctx context.Context, key string, content []byte, contentType string) error
	// Get returns an error matching common.ErrorNotFound when key is absent.
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete succeeds when key is already absent.
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)
	List(ctx context.Context, prefix string) ([]models.ObjectInfo, error)
}

// New builds the driver selected by c.S3Driver.
func New(ctx context.Context, c *config.Config) (ObjectStorage, error) {
	switch c.S3Driver {
	case DriverAWS, "":
		return NewS3Storage(ctx, S3Config{
			Region:    c.S3Region,
			Endpoint:  c.S3BaseEndpoint,
			Bucket:    c.S3Bucket,
			AccessKey: c.S3RootUser,
			SecretKey: c.S3RootPassword,
		})
	case DriverMinio:
		s, err := NewMinioStorage(MinioConfig{
			Endpoint:  c.S3BaseEndpoint,
			Region:    c.S3Region,
			Bucket:    c.S3Bucket,
			AccessKey: c.S3RootUser,
			SecretKey: c.S3RootPassword,
		})
		if err != nil {
			return nil, err
		}
		if err := s.EnsureBucket(ctx); err != nil {
			return nil, err
		}
		return s, nil
	case DriverMemory:
		return NewMemoryStorage(), nil
	default:
		return nil, fmt.Errorf("%w: storage driver %q", common.ErrUnsupported, c.S3Driver)
	}
}

func notFound(key string) error {
	return fmt.Errorf("object %q: %w", key, common.ErrorNotFound)
}
