package control

import (
	"context"
	"fmt"

	"github.com/vietddude/framehash/internal/core/config"
	"github.com/vietddude/framehash/internal/infra/retry"
	"github.com/vietddude/framehash/internal/infra/storage"
	"github.com/vietddude/framehash/internal/infra/storage/file"
	"github.com/vietddude/framehash/internal/infra/storage/memory"
	"github.com/vietddude/framehash/internal/infra/storage/s3"
)

// newObjectStore selects the object store named by cfg.Type.
func newObjectStore(
	ctx context.Context,
	cfg config.StorageConfig,
	strategy *retry.Strategy,
	mem *memory.MemoryStorage,
) (storage.ObjectStore, error) {
	switch cfg.Type {
	case config.StorageS3, "":
		store, err := s3.New(ctx, s3.Config{Region: cfg.Region, Endpoint: cfg.Endpoint}, strategy)
		if err != nil {
			return nil, fmt.Errorf("failed to init s3 store: %w", err)
		}
		return store, nil
	case config.StorageFile:
		return file.New(cfg.Root), nil
	case config.StorageMemory:
		return memory.NewObjectStore(mem), nil
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
}
