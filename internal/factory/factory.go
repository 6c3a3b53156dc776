package factory

import (
	"context"
	"fmt"

	"split-the-g/internal/config"
	"split-the-g/internal/storage"
)

// StorageType represents different types of storage backends
type StorageType string

const (
	// AzureStorage for Azure blob storage
	AzureStorage StorageType = config.StorageBackendAzure
	// LocalStorage for local file system
	LocalStorage StorageType = config.StorageBackendLocal
)

type containerEnsurer interface {
	EnsureContainer(ctx context.Context) error
}

// NewImageStore creates the image store selected by cfg.Storage.Backend.
// Blob containers are created on first use.
func NewImageStore(ctx context.Context, cfg *config.Config) (storage.ImageStore, error) {
	switch StorageType(cfg.Storage.Backend) {
	case AzureStorage:
		store, err := storage.NewAzureStorage(
			cfg.Storage.AzureAccount,
			cfg.Storage.AzureKey,
			cfg.Storage.AzureContainer,
			cfg.Storage.AzureServiceURL,
		)
		if err != nil {
			return nil, err
		}
		if ensurer, ok := store.(containerEnsurer); ok {
			if err := ensurer.EnsureContainer(ctx); err != nil {
				return nil, err
			}
		}
		return store, nil
	case LocalStorage:
		return storage.NewLocalStorage(cfg.Storage.LocalDir, cfg.PublicBaseURL)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Backend)
	}
}
