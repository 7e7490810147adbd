package newsletter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tendant/simple-newsletter/pkg/newsletter/objectkey"
	"github.com/tendant/simple-newsletter/pkg/newsletter/urlstrategy"
)

// DefaultRowCap bounds unpaginated listings.
const DefaultRowCap = 1000

// DefaultCacheControl is sent with every asset upload.
const DefaultCacheControl = "max-age=3600"

// service implements the Service interface
type service struct {
	repository  Repository
	blobStores  map[AssetClass]BlobStore
	keys        KeyGenerator
	urlStrategy URLStrategy
	logger      *slog.Logger
	now         func() time.Time
	rowCap      int
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore registers the storage backend for an asset class
func WithBlobStore(class AssetClass, store BlobStore) Option {
	return func(s *service) {
		if s.blobStores == nil {
			s.blobStores = make(map[AssetClass]BlobStore)
		}
		s.blobStores[class] = store
	}
}

// WithKeyGenerator overrides the storage key generator
func WithKeyGenerator(gen KeyGenerator) Option {
	return func(s *service) {
		s.keys = gen
	}
}

// WithURLStrategy overrides how public URLs are derived from keys
func WithURLStrategy(strategy URLStrategy) Option {
	return func(s *service) {
		s.urlStrategy = strategy
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *service) {
		s.logger = logger
	}
}

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *service) {
		s.now = now
	}
}

// WithRowCap overrides DefaultRowCap
func WithRowCap(n int) Option {
	return func(s *service) {
		s.rowCap = n
	}
}

// New creates a new service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		blobStores: make(map[AssetClass]BlobStore),
		now:        func() time.Time { return time.Now().UTC() },
		rowCap:     DefaultRowCap,
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.keys == nil {
		s.keys = objectkey.NewTimestampGenerator()
	}
	if s.urlStrategy == nil {
		stores := make(map[string]urlstrategy.BlobStore, len(s.blobStores))
		for class, store := range s.blobStores {
			stores[string(class)] = store
		}
		s.urlStrategy = urlstrategy.NewStorageDelegatedStrategy(stores)
	}

	return s, nil
}

// Query operations

func (s *service) ListActive(ctx context.Context, lang *Language) ([]*Newsletter, error) {
	if lang != nil && !lang.IsValid() {
		return []*Newsletter{}, &ValidationError{Field: "language", Message: "must be 'ko' or 'en'"}
	}

	items, err := s.repository.List(ctx, ListParams{
		ActiveOnly: true,
		Language:   lang,
		Limit:      s.rowCap,
	})
	if err != nil {
		s.logger.Error("Error fetching newsletters", "error", err)
		return []*Newsletter{}, &StoreError{Op: "list_active", Err: err}
	}
	return nonNil(items), nil
}

func (s *service) ListLatest(ctx context.Context, limit int) ([]*Newsletter, error) {
	if limit < 1 {
		return []*Newsletter{}, &ValidationError{Field: "limit", Message: "must be a positive integer"}
	}

	items, err := s.repository.List(ctx, ListParams{
		ActiveOnly: true,
		Limit:      limit,
	})
	if err != nil {
		s.logger.Error("Error fetching latest newsletters", "error", err)
		return []*Newsletter{}, &StoreError{Op: "list_latest", Err: err}
	}
	return nonNil(items), nil
}

func (s *service) ListAdmin(ctx context.Context, page, pageSize int, search string) ([]*Newsletter, int64, error) {
	if page < 1 {
		return []*Newsletter{}, 0, &ValidationError{Field: "page", Message: "must be >= 1"}
	}
	if pageSize < 1 {
		return []*Newsletter{}, 0, &ValidationError{Field: "page_size", Message: "must be >= 1"}
	}
	if page-1 > math.MaxInt/pageSize {
		return []*Newsletter{}, 0, &ValidationError{Field: "page", Message: "is out of range"}
	}

	params := ListParams{
		Search: strings.TrimSpace(search),
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	}

	total, err := s.repository.Count(ctx, params)
	if err != nil {
		s.logger.Error("Error counting admin newsletters", "error", err)
		return []*Newsletter{}, 0, &StoreError{Op: "list_admin", Err: err}
	}

	items, err := s.repository.List(ctx, params)
	if err != nil {
		s.logger.Error("Error fetching admin newsletters", "error", err)
		return []*Newsletter{}, 0, &StoreError{Op: "list_admin", Err: err}
	}

	return nonNil(items), total, nil
}

func (s *service) GetByID(ctx context.Context, id int64) (*Newsletter, error) {
	if id < 1 {
		return nil, &ValidationError{Field: "id", Message: "must be a positive integer"}
	}

	n, err := s.repository.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("Error fetching newsletter", "id", id, "error", err)
		}
		return nil, &StoreError{Op: "get", ID: id, Err: err}
	}
	return n, nil
}

func (s *service) ListAll(ctx context.Context) ([]*Newsletter, error) {
	items, err := s.repository.List(ctx, ListParams{})
	if err != nil {
		return nil, &StoreError{Op: "list_all", Err: err}
	}
	return nonNil(items), nil
}

// Mutation operations

func (s *service) Create(ctx context.Context, req CreateRequest) (*Newsletter, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	n, err := s.repository.Insert(ctx, req.newsletter(s.now()))
	if err != nil {
		s.logger.Error("Error creating newsletter", "error", err)
		return nil, &StoreError{Op: "create", Err: err}
	}

	s.logger.Info("Newsletter created", "id", n.ID, "language", n.Language)
	return n, nil
}

func (s *service) Update(ctx context.Context, id int64, patch Patch) (*Newsletter, error) {
	if id < 1 {
		return nil, &ValidationError{Field: "id", Message: "must be a positive integer"}
	}
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	if patch.IsEmpty() {
		return s.GetByID(ctx, id)
	}

	n, err := s.repository.Update(ctx, id, patch, s.now())
	if err != nil {
		s.logger.Error("Error updating newsletter", "id", id, "error", err)
		return nil, &StoreError{Op: "update", ID: id, Err: err}
	}
	return n, nil
}

func (s *service) Delete(ctx context.Context, id int64) (bool, error) {
	if id < 1 {
		return false, &ValidationError{Field: "id", Message: "must be a positive integer"}
	}

	if err := s.repository.Delete(ctx, id); err != nil {
		s.logger.Error("Error deleting newsletter", "id", id, "error", err)
		return false, &StoreError{Op: "delete", ID: id, Err: err}
	}

	s.logger.Info("Newsletter deleted", "id", id)
	return true, nil
}

// Asset operations

func (s *service) UploadAsset(ctx context.Context, class AssetClass, data []byte, originalName, contentType string) (*Asset, error) {
	backend, err := s.backend(class)
	if err != nil {
		return nil, &AssetUploadError{Class: class, Key: originalName, Err: err}
	}

	key := s.keys.GenerateKey(originalName)
	opts := UploadOptions{
		ContentType:  contentType,
		CacheControl: DefaultCacheControl,
		NoOverwrite:  true,
	}
	if err := backend.Upload(ctx, key, bytes.NewReader(data), opts); err != nil {
		s.logger.Error("Error uploading asset", "class", class, "key", key, "error", err)
		return nil, &AssetUploadError{Class: class, Key: key, Err: err}
	}

	publicURL, err := s.urlStrategy.PublicURL(string(class), key)
	if err != nil {
		return nil, &AssetUploadError{Class: class, Key: key, Err: err}
	}

	return &Asset{
		Class:     class,
		Key:       key,
		PublicURL: publicURL,
		Size:      int64(len(data)),
	}, nil
}

func (s *service) DeleteAsset(ctx context.Context, class AssetClass, key string) error {
	backend, err := s.backend(class)
	if err != nil {
		return &AssetDeleteError{Class: class, Key: key, Err: err}
	}

	if err := backend.Delete(ctx, key); err != nil {
		s.logger.Warn("Error deleting asset", "class", class, "key", key, "error", err)
		return &AssetDeleteError{Class: class, Key: key, Err: err}
	}
	return nil
}

func (s *service) ListAssets(ctx context.Context, class AssetClass) ([]ObjectInfo, error) {
	backend, err := s.backend(class)
	if err != nil {
		return nil, err
	}
	return backend.List(ctx, "")
}

func (s *service) KeyFromURL(class AssetClass, rawURL string) (string, bool) {
	if rawURL == "" {
		return "", false
	}
	return s.urlStrategy.KeyFromURL(string(class), rawURL)
}

// CheckSetup

func (s *service) CheckSetup(ctx context.Context) error {
	if _, err := s.repository.Count(ctx, ListParams{}); err != nil {
		return &StoreError{Op: "check_setup", Err: err}
	}

	for _, class := range []AssetClass{AssetDocument, AssetCover} {
		if _, err := s.ListAssets(ctx, class); err != nil {
			return fmt.Errorf("%s namespace not accessible: %w", class, err)
		}
	}

	sample := []byte("test content")
	asset, err := s.UploadAsset(ctx, AssetDocument, sample, "setup_check_"+uuid.NewString()+".txt", "text/plain")
	if err != nil {
		return err
	}
	// Leftover setup check objects are unreferenced and get removed by the orphan sweep.
	defer func() { _ = s.DeleteAsset(ctx, AssetDocument, asset.Key) }()

	backend, _ := s.backend(AssetDocument)
	if downloader, ok := backend.(Downloader); ok {
		if err := readBack(ctx, downloader, asset.Key, sample); err != nil {
			return fmt.Errorf("%s namespace not readable: %w", AssetDocument, err)
		}
	}

	return nil
}

// readBack checks that key holds want.
func readBack(ctx context.Context, d Downloader, key string, want []byte) error {
	rc, err := d.Download(ctx, key)
	if err != nil {
		return err
	}
	defer rc.Close()

	got, err := io.ReadAll(io.LimitReader(rc, int64(len(want))+1))
	if err != nil {
		return err
	}
	if !bytes.Equal(got, want) {
		return errors.New("setup check object content mismatch")
	}
	return nil
}

// Helper methods

func (s *service) backend(class AssetClass) (BlobStore, error) {
	backend, exists := s.blobStores[class]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrStorageBackendNotFound, class)
	}
	return backend, nil
}

func nonNil(items []*Newsletter) []*Newsletter {
	if items == nil {
		return []*Newsletter{}
	}
	return items
}
