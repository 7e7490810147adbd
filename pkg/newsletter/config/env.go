package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tendant/simple-newsletter/pkg/newsletter"
)

// WithEnv applies environment variable overrides using the provided prefix.
//
// Server:
//   PORT - Server port (default: "8080")
//   ENVIRONMENT - Runtime environment (default: "development")
//   PUBLIC_BASE_URL - Externally reachable base URL (default: "http://localhost:8080")
//
// Database:
//   DATABASE_URL - "memory" (default) or "postgres://..." / "postgresql://..."
//   RUN_MIGRATIONS - Apply embedded migrations on startup
//
// Storage, one backend per namespace ("newsletters", "newsletter-covers"):
//   STORAGE_URL - one of:
//                 - "memory://" - In-memory storage (default)
//                 - "file:///path/to/data" - one subdirectory per namespace
//                 - "s3://prefix?region=us-east-1&endpoint=...&path_style=true"
//                   buckets are "{prefix}-{namespace}", or the bare namespace
//                   when prefix is empty; documents_bucket and covers_bucket
//                   override either name
//   CDN_BASE_URL - Switches public URLs to the cdn strategy
//
// Publishing:
//   MAX_DOCUMENT_BYTES, MAX_COVER_BYTES - Upload limits
//   GENERATE_COVERS - Render a default cover when none is uploaded (default: true)
//   COVER_FONT_FILE - TrueType/OpenType font for rendered covers
func WithEnv(prefix string) Option {
	return func(c *ServerConfig) error {
		if v, ok := lookupEnv(prefix, "PORT"); ok && v != "" {
			c.Port = v
		}
		if v, ok := lookupEnv(prefix, "ENVIRONMENT"); ok && v != "" {
			c.Environment = v
		}
		if v, ok := lookupEnv(prefix, "PUBLIC_BASE_URL"); ok && v != "" {
			c.PublicBaseURL = strings.TrimRight(v, "/")
		}

		if err := applyDatabaseEnv(prefix, c); err != nil {
			return err
		}

		if err := applyStorageEnv(prefix, c); err != nil {
			return err
		}

		if v, ok := lookupEnv(prefix, "CDN_BASE_URL"); ok && v != "" {
			c.URLStrategy = "cdn"
			c.CDNBaseURL = v
		}

		return applyPublishingEnv(prefix, c)
	}
}

// applyDatabaseEnv applies database configuration from environment
func applyDatabaseEnv(prefix string, c *ServerConfig) error {
	dbURL, hasURL := lookupEnv(prefix, "DATABASE_URL")

	if !hasURL || dbURL == "" || dbURL == "memory" {
		c.DatabaseType = "memory"
		c.DatabaseURL = ""
	} else if strings.HasPrefix(dbURL, "postgresql://") || strings.HasPrefix(dbURL, "postgres://") {
		c.DatabaseType = "postgres"
		c.DatabaseURL = dbURL
	} else {
		return fmt.Errorf("unsupported DATABASE_URL format: %s (use 'memory' or 'postgresql://...')", dbURL)
	}

	runMigrations, ok, err := parseBoolEnv(prefix, "RUN_MIGRATIONS")
	if err != nil {
		return err
	}
	if ok {
		c.RunMigrations = runMigrations
	}
	return nil
}

// applyStorageEnv applies storage configuration from environment
func applyStorageEnv(prefix string, c *ServerConfig) error {
	storageURL, hasURL := lookupEnv(prefix, "STORAGE_URL")

	if !hasURL || storageURL == "" || storageURL == "memory" || storageURL == "memory://" {
		for _, ns := range namespaces {
			c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
				Name: string(ns),
				Type: "memory",
			})
		}
		return nil
	}

	if strings.HasPrefix(storageURL, "file://") {
		return applyFilesystemStorage(storageURL, c)
	} else if strings.HasPrefix(storageURL, "s3://") {
		return applyS3Storage(storageURL, c)
	}

	return fmt.Errorf("unsupported STORAGE_URL format: %s (use 'memory://', 'file://...', or 's3://...')", storageURL)
}

// applyFilesystemStorage configures filesystem storage from URL
// Format: file:///path/to/data
func applyFilesystemStorage(rawURL string, c *ServerConfig) error {
	path := strings.TrimPrefix(rawURL, "file://")
	if path == "" {
		return fmt.Errorf("filesystem path cannot be empty in STORAGE_URL")
	}

	for _, ns := range namespaces {
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name: string(ns),
			Type: "fs",
			Config: map[string]interface{}{
				"base_dir": filepath.Join(path, string(ns)),
			},
		})
	}
	return nil
}

// applyS3Storage configures S3 storage from URL
// Format: s3://prefix?region=us-east-1&endpoint=http://localhost:9000
func applyS3Storage(rawURL string, c *ServerConfig) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid STORAGE_URL: %w", err)
	}
	q := u.Query()

	shared := map[string]interface{}{
		"region": "us-east-1",
	}
	if v := q.Get("region"); v != "" {
		shared["region"] = v
	}
	if v := q.Get("endpoint"); v != "" {
		shared["endpoint"] = v
	}
	for param, key := range map[string]string{
		"path_style":    "use_path_style",
		"create_bucket": "create_bucket_if_not_exist",
		"sse":           "enable_sse",
	} {
		if v := q.Get(param); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid boolean for STORAGE_URL %s: %w", param, err)
			}
			shared[key] = b
		}
	}

	if accessKey, ok := os.LookupEnv("AWS_ACCESS_KEY_ID"); ok && accessKey != "" {
		shared["access_key_id"] = accessKey
	}
	if secretKey, ok := os.LookupEnv("AWS_SECRET_ACCESS_KEY"); ok && secretKey != "" {
		shared["secret_access_key"] = secretKey
	}
	if region, ok := os.LookupEnv("AWS_REGION"); ok && region != "" {
		shared["region"] = region
	}

	overrides := map[newsletter.AssetClass]string{
		newsletter.AssetDocument: q.Get("documents_bucket"),
		newsletter.AssetCover:    q.Get("covers_bucket"),
	}

	for _, ns := range namespaces {
		cfg := make(map[string]interface{}, len(shared)+1)
		for k, v := range shared {
			cfg[k] = v
		}
		cfg["bucket"] = bucketName(u.Host, ns, overrides[ns])

		c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
			Name:   string(ns),
			Type:   "s3",
			Config: cfg,
		})
	}
	return nil
}

func bucketName(prefix string, ns newsletter.AssetClass, override string) string {
	if override != "" {
		return override
	}
	if prefix == "" {
		return string(ns)
	}
	return prefix + "-" + string(ns)
}

// applyPublishingEnv applies upload limits and cover settings
func applyPublishingEnv(prefix string, c *ServerConfig) error {
	if v, ok, err := parseIntEnv(prefix, "MAX_DOCUMENT_BYTES"); err != nil {
		return err
	} else if ok {
		c.MaxDocumentBytes = int64(v)
	}
	if v, ok, err := parseIntEnv(prefix, "MAX_COVER_BYTES"); err != nil {
		return err
	} else if ok {
		c.MaxCoverBytes = int64(v)
	}
	if v, ok, err := parseBoolEnv(prefix, "GENERATE_COVERS"); err != nil {
		return err
	} else if ok {
		c.GenerateCovers = v
	}
	if v, ok := lookupEnv(prefix, "COVER_FONT_FILE"); ok && v != "" {
		c.CoverFontFile = v
	}
	return nil
}

func lookupEnv(prefix, key string) (string, bool) {
	return os.LookupEnv(prefix + key)
}

func parseBoolEnv(prefix, key string) (bool, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return false, false, nil
	}
	parsed, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false, fmt.Errorf("invalid boolean for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}

func parseIntEnv(prefix, key string) (int, bool, error) {
	raw, ok := lookupEnv(prefix, key)
	if !ok || raw == "" {
		return 0, false, nil
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid integer for %s%s: %w", prefix, key, err)
	}
	return parsed, true, nil
}

func upsertStorageBackend(backends []StorageBackendConfig, backend StorageBackendConfig) []StorageBackendConfig {
	if backend.Config == nil {
		backend.Config = map[string]interface{}{}
	}
	for i := range backends {
		if backends[i].Name == backend.Name {
			backends[i] = backend
			return backends
		}
	}
	return append(backends, backend)
}
