package newsletter

import (
	"context"
)

// Service defines the main interface for the newsletter library
type Service interface {
	// Public listings
	ListActive(ctx context.Context, lang *Language) ([]*Newsletter, error)
	ListLatest(ctx context.Context, limit int) ([]*Newsletter, error)

	// Admin listings
	ListAdmin(ctx context.Context, page, pageSize int, search string) ([]*Newsletter, int64, error)
	GetByID(ctx context.Context, id int64) (*Newsletter, error)
	ListAll(ctx context.Context) ([]*Newsletter, error)

	// Mutations
	Create(ctx context.Context, req CreateRequest) (*Newsletter, error)
	Update(ctx context.Context, id int64, patch Patch) (*Newsletter, error)
	Delete(ctx context.Context, id int64) (bool, error)

	// Asset operations
	AssetManager

	// CheckSetup verifies the store and both asset namespaces are reachable
	CheckSetup(ctx context.Context) error
}
