package storage

import (
	"context"
	"io"
	"time"
)

// ObjectStore is a remote copy of the storage directory. It is optional;
// the gateway works from the local directory alone.
type ObjectStore interface {
	BucketName() string
	Upload(ctx context.Context, key string, data io.Reader, size int64, contentType string) error
	Exists(ctx context.Context, key string) (bool, error)
	GeneratePresignedURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}
