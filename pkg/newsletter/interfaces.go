package newsletter

import (
	"context"
	"io"
	"time"
)

// Repository defines persistence for newsletter records
type Repository interface {
	// Insert stores n and returns the persisted record with its assigned ID
	Insert(ctx context.Context, n *Newsletter) (*Newsletter, error)

	// Get returns ErrNotFound when no record has the given ID
	Get(ctx context.Context, id int64) (*Newsletter, error)

	// Update applies the supplied patch fields only and returns the updated record
	Update(ctx context.Context, id int64, patch Patch, updatedAt time.Time) (*Newsletter, error)

	// Delete returns ErrNotFound when no record has the given ID
	Delete(ctx context.Context, id int64) error

	// List returns records ordered by published_date DESC, id DESC.
	// A Limit <= 0 means no limit.
	List(ctx context.Context, params ListParams) ([]*Newsletter, error)

	// Count returns the number of records matching params, ignoring Limit and Offset
	Count(ctx context.Context, params ListParams) (int64, error)
}

// BlobStore defines one object-store namespace
type BlobStore interface {
	// Upload stores the reader's content under key
	Upload(ctx context.Context, key string, reader io.Reader, opts UploadOptions) error

	// PublicURL returns the publicly resolvable URL of key
	PublicURL(key string) string

	// Delete removes key
	Delete(ctx context.Context, key string) error

	// List returns objects whose key starts with prefix
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Downloader is implemented by blob stores that can read objects back
type Downloader interface {
	Download(ctx context.Context, key string) (io.ReadCloser, error)
}

// KeyGenerator produces collision-resistant storage keys
type KeyGenerator interface {
	GenerateKey(originalName string) string
}

// URLStrategy maps storage keys to public URLs and back
type URLStrategy interface {
	PublicURL(namespace, key string) (string, error)
	KeyFromURL(namespace, rawURL string) (string, bool)
}

// CoverRenderer synthesizes a default cover image
type CoverRenderer interface {
	Render(title string, lang Language) ([]byte, error)
}

// AssetManager uploads and removes newsletter assets
type AssetManager interface {
	UploadAsset(ctx context.Context, class AssetClass, data []byte, originalName, contentType string) (*Asset, error)
	DeleteAsset(ctx context.Context, class AssetClass, key string) error
	ListAssets(ctx context.Context, class AssetClass) ([]ObjectInfo, error)
	KeyFromURL(class AssetClass, rawURL string) (string, bool)
}
