package store

import (
	"context"
	"fmt"

	"xb-go/internal/config"
	"xb-go/internal/xb"
)

// NewStoreFromConfig creates an ArchiveStore based on the store config type.
func NewStoreFromConfig(ctx context.Context, cfg config.StoreConfig) (xb.ArchiveStore, error) {
	switch cfg.Type {
	case "memory":
		return NewMemoryStore(), nil
	case "s3":
		return NewS3Store(ctx, cfg)
	case "filesystem":
		if cfg.Root == "" {
			return nil, &config.ConfigMissingError{Key: "store.root"}
		}
		return NewFileSystemStore(cfg.Root)
	default:
		return nil, fmt.Errorf("unknown store type: %s", cfg.Type)
	}
}
