package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/tendant/simple-newsletter/pkg/newsletter"
	"github.com/tendant/simple-newsletter/pkg/newsletter/cover"
	"github.com/tendant/simple-newsletter/pkg/newsletter/repo/memory"
	repopg "github.com/tendant/simple-newsletter/pkg/newsletter/repo/postgres"
	fsstorage "github.com/tendant/simple-newsletter/pkg/newsletter/storage/fs"
	memorystorage "github.com/tendant/simple-newsletter/pkg/newsletter/storage/memory"
	s3storage "github.com/tendant/simple-newsletter/pkg/newsletter/storage/s3"
	"github.com/tendant/simple-newsletter/pkg/newsletter/urlstrategy"
)

const (
	DefaultMaxDocumentBytes int64 = 50 << 20
	DefaultMaxCoverBytes    int64 = 5 << 20
)

// Option applies configuration to a ServerConfig instance.
type Option func(*ServerConfig) error

// Load constructs a ServerConfig by applying the supplied options on top of library defaults.
func Load(opts ...Option) (*ServerConfig, error) {
	cfg := defaults()

	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func defaults() ServerConfig {
	return ServerConfig{
		Port:             "8080",
		Environment:      "development",
		DatabaseType:     "memory",
		PublicBaseURL:    "http://localhost:8080",
		StorageBackends:  memoryBackends(),
		URLStrategy:      string(urlstrategy.StrategyTypeStorageDelegated),
		MaxDocumentBytes: DefaultMaxDocumentBytes,
		MaxCoverBytes:    DefaultMaxCoverBytes,
		GenerateCovers:   true,
	}
}

// ServerConfig represents server configuration for the newsletter service
type ServerConfig struct {
	Port        string
	Environment string // development, production, testing

	// Database configuration
	DatabaseURL   string
	DatabaseType  string // "memory", "postgres"
	RunMigrations bool

	// Storage configuration, one backend per asset class
	StorageBackends []StorageBackendConfig

	// PublicBaseURL is where this server is reachable; filesystem and
	// memory assets are served below {PublicBaseURL}/files/{namespace}/
	PublicBaseURL string

	// URL strategy: "storage-delegated" (default) or "cdn"
	URLStrategy string
	CDNBaseURL  string

	// Upload limits enforced by the HTTP layer
	MaxDocumentBytes int64
	MaxCoverBytes    int64

	// Default cover generation
	GenerateCovers bool
	CoverFontFile  string
}

// StorageBackendConfig represents configuration for a storage backend
type StorageBackendConfig struct {
	Name   string // asset class namespace
	Type   string // "memory", "fs", "s3"
	Config map[string]interface{}
}

var namespaces = []newsletter.AssetClass{newsletter.AssetDocument, newsletter.AssetCover}

func memoryBackends() []StorageBackendConfig {
	var backends []StorageBackendConfig
	for _, ns := range namespaces {
		backends = append(backends, StorageBackendConfig{
			Name:   string(ns),
			Type:   "memory",
			Config: map[string]interface{}{},
		})
	}
	return backends
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}

	if c.DatabaseType != "memory" && c.DatabaseType != "postgres" {
		return errors.New("database_type must be 'memory' or 'postgres'")
	}

	if c.DatabaseType == "postgres" && c.DatabaseURL == "" {
		return errors.New("database_url is required when using postgres")
	}

	for _, ns := range namespaces {
		if _, ok := c.backendConfig(ns); !ok {
			return fmt.Errorf("storage backend for namespace '%s' is not configured", ns)
		}
	}

	switch urlstrategy.URLStrategyType(c.URLStrategy) {
	case urlstrategy.StrategyTypeStorageDelegated, "":
	case urlstrategy.StrategyTypeCDN:
		if c.CDNBaseURL == "" {
			return errors.New("cdn_base_url is required for the cdn url strategy")
		}
	default:
		return fmt.Errorf("unknown url strategy: %s", c.URLStrategy)
	}

	if c.MaxDocumentBytes <= 0 || c.MaxCoverBytes <= 0 {
		return errors.New("upload size limits must be positive")
	}

	return nil
}

func (c *ServerConfig) backendConfig(ns newsletter.AssetClass) (StorageBackendConfig, bool) {
	for _, b := range c.StorageBackends {
		if b.Name == string(ns) {
			return b, true
		}
	}
	return StorageBackendConfig{}, false
}

// Components are the wired pieces a server or job needs.
type Components struct {
	Service    newsletter.Service
	Publisher  *newsletter.Publisher
	BlobStores map[newsletter.AssetClass]newsletter.BlobStore

	pool *pgxpool.Pool
}

// Close releases the database pool, if any
func (c *Components) Close() {
	if c.pool != nil {
		c.pool.Close()
	}
}

// BuildService creates a Service instance from the server configuration
func (c *ServerConfig) BuildService() (newsletter.Service, error) {
	components, err := c.Build(context.Background(), slog.Default())
	if err != nil {
		return nil, err
	}
	return components.Service, nil
}

// Build wires the repository, blob stores, service and publisher.
func (c *ServerConfig) Build(ctx context.Context, logger *slog.Logger, publisherOpts ...newsletter.PublisherOption) (*Components, error) {
	components := &Components{BlobStores: make(map[newsletter.AssetClass]newsletter.BlobStore)}
	options := []newsletter.Option{newsletter.WithLogger(logger)}

	repo, pool, err := c.buildRepository(ctx, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to build repository: %w", err)
	}
	components.pool = pool
	options = append(options, newsletter.WithRepository(repo))

	for _, ns := range namespaces {
		backendConfig, _ := c.backendConfig(ns)
		store, err := c.buildStorageBackend(backendConfig)
		if err != nil {
			components.Close()
			return nil, fmt.Errorf("failed to build storage backend %s: %w", backendConfig.Name, err)
		}
		components.BlobStores[ns] = store
		options = append(options, newsletter.WithBlobStore(ns, store))
	}

	if urlstrategy.URLStrategyType(c.URLStrategy) == urlstrategy.StrategyTypeCDN {
		strategy, err := urlstrategy.NewURLStrategy(urlstrategy.Config{
			Type:       urlstrategy.StrategyTypeCDN,
			CDNBaseURL: c.CDNBaseURL,
		})
		if err != nil {
			components.Close()
			return nil, err
		}
		options = append(options, newsletter.WithURLStrategy(strategy))
	}

	svc, err := newsletter.New(options...)
	if err != nil {
		components.Close()
		return nil, err
	}
	components.Service = svc

	pubOpts := []newsletter.PublisherOption{newsletter.WithPublisherLogger(logger)}
	if c.GenerateCovers {
		renderer, err := c.BuildRenderer()
		if err != nil {
			components.Close()
			return nil, err
		}
		pubOpts = append(pubOpts, newsletter.WithCoverRenderer(renderer))
		if c.CoverFontFile == "" {
			logger.Warn("No COVER_FONT_FILE configured; the built-in font has no Hangul, so Korean cover captions render as missing glyphs")
		}
	}
	publisher, err := newsletter.NewPublisher(svc, append(pubOpts, publisherOpts...)...)
	if err != nil {
		components.Close()
		return nil, err
	}
	components.Publisher = publisher

	return components, nil
}

// BuildRenderer creates the default cover renderer
func (c *ServerConfig) BuildRenderer() (*cover.Renderer, error) {
	var opts []cover.Option
	if c.CoverFontFile != "" {
		opts = append(opts, cover.WithFontFile(c.CoverFontFile))
	}
	renderer, err := cover.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build cover renderer: %w", err)
	}
	return renderer, nil
}

// buildRepository creates a Repository based on the configuration
func (c *ServerConfig) buildRepository(ctx context.Context, logger *slog.Logger) (newsletter.Repository, *pgxpool.Pool, error) {
	switch c.DatabaseType {
	case "memory":
		return memory.New(), nil, nil
	case "postgres":
		if c.DatabaseURL == "" {
			return nil, nil, errors.New("database_url is required for postgres")
		}
		if c.RunMigrations {
			if err := repopg.Migrate(c.DatabaseURL, logger); err != nil {
				return nil, nil, err
			}
		}
		pool, err := repopg.Connect(ctx, c.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return repopg.NewWithPool(pool), pool, nil
	default:
		return nil, nil, fmt.Errorf("unsupported database type: %s", c.DatabaseType)
	}
}

// FilesURL is the public URL prefix of a namespace served by this server
func (c *ServerConfig) FilesURL(ns newsletter.AssetClass) string {
	return strings.TrimRight(c.PublicBaseURL, "/") + "/files/" + string(ns)
}

// buildStorageBackend creates a BlobStore based on the backend configuration
func (c *ServerConfig) buildStorageBackend(config StorageBackendConfig) (newsletter.BlobStore, error) {
	ns := newsletter.AssetClass(config.Name)

	switch config.Type {
	case "memory":
		return memorystorage.New(c.FilesURL(ns)), nil

	case "fs":
		return fsstorage.New(fsstorage.Config{
			BaseDir:   getString(config.Config, "base_dir", "./data/storage/"+config.Name),
			URLPrefix: getString(config.Config, "url_prefix", c.FilesURL(ns)),
		})

	case "s3":
		return s3storage.New(s3storage.Config{
			Region:                 getString(config.Config, "region", "us-east-1"),
			Bucket:                 getString(config.Config, "bucket", config.Name),
			AccessKeyID:            getString(config.Config, "access_key_id", ""),
			SecretAccessKey:        getString(config.Config, "secret_access_key", ""),
			Endpoint:               getString(config.Config, "endpoint", ""),
			UsePathStyle:           getBool(config.Config, "use_path_style", false),
			PublicBaseURL:          getString(config.Config, "public_base_url", ""),
			EnableSSE:              getBool(config.Config, "enable_sse", false),
			SSEAlgorithm:           getString(config.Config, "sse_algorithm", "AES256"),
			SSEKMSKeyID:            getString(config.Config, "sse_kms_key_id", ""),
			CreateBucketIfNotExist: getBool(config.Config, "create_bucket_if_not_exist", false),
		})

	default:
		return nil, fmt.Errorf("unsupported storage backend type: %s", config.Type)
	}
}

func getString(config map[string]interface{}, key string, defaultValue string) string {
	if value, exists := config[key]; exists {
		if str, ok := value.(string); ok && str != "" {
			return str
		}
	}
	return defaultValue
}

func getBool(config map[string]interface{}, key string, defaultValue bool) bool {
	if value, exists := config[key]; exists {
		if b, ok := value.(bool); ok {
			return b
		}
	}
	return defaultValue
}
