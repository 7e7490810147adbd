package urlstrategy

import (
	"fmt"
)

// BlobStore interface for URL generation (to avoid circular imports)
type BlobStore interface {
	PublicURL(key string) string
}

// StorageDelegatedStrategy delegates URL generation to the storage backends
type StorageDelegatedStrategy struct {
	BlobStores map[string]BlobStore
}

// NewStorageDelegatedStrategy creates a new storage-delegated URL strategy
func NewStorageDelegatedStrategy(blobStores map[string]BlobStore) *StorageDelegatedStrategy {
	return &StorageDelegatedStrategy{
		BlobStores: blobStores,
	}
}

// PublicURL delegates to the storage backend's PublicURL method
func (s *StorageDelegatedStrategy) PublicURL(namespace, key string) (string, error) {
	backend, exists := s.BlobStores[namespace]
	if !exists {
		return "", fmt.Errorf("storage backend %s not found", namespace)
	}
	return backend.PublicURL(key), nil
}

// KeyFromURL uses the backend's URL for the empty key as the namespace prefix
func (s *StorageDelegatedStrategy) KeyFromURL(namespace, rawURL string) (string, bool) {
	backend, exists := s.BlobStores[namespace]
	if !exists {
		return "", false
	}
	return keyAfterPrefix(backend.PublicURL(""), rawURL)
}
