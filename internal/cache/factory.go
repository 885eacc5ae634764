package cache

import (
	"context"
	"fmt"
	"log/slog"

	"fridgefeast/internal/config"
)

// MakeCache picks blob storage when an account is configured and a local
// directory otherwise.
func MakeCache(ctx context.Context, cfg config.StorageConfig) (Cache, error) {
	if cfg.UsesBlobStorage() {
		bc, err := NewBlobCache(cfg.AccountName, cfg.AccountKey, cfg.Container)
		if err != nil {
			return nil, err
		}
		if err := bc.Ready(ctx); err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "using Azure Blob Storage for cache", "store", bc.String())
		return bc, nil
	}

	if cfg.Dir == "" {
		return nil, fmt.Errorf("cache directory is required")
	}
	slog.InfoContext(ctx, "using local directory for cache", "dir", cfg.Dir)
	return NewFileCache(cfg.Dir), nil
}
