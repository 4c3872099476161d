package storage

import (
	"fmt"

	"github.com/denisAlshanov/mediafetch/internal/config"
)

// NewObjectStore creates the S3 mirror, or returns nil when it is disabled.
func NewObjectStore(cfg *config.S3Config) (ObjectStore, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	store, err := NewS3Storage(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 storage: %w", err)
	}

	return store, nil
}
