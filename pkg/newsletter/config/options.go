package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

// WithPort sets the server port
func WithPort(port string) Option {
	return func(c *ServerConfig) error {
		if port == "" {
			return fmt.Errorf("port cannot be empty")
		}
		c.Port = port
		return nil
	}
}

// WithEnvironment sets the environment (development, production, testing)
func WithEnvironment(env string) Option {
	return func(c *ServerConfig) error {
		if env == "" {
			return fmt.Errorf("environment cannot be empty")
		}
		c.Environment = env
		return nil
	}
}

// WithDatabase configures the database backend
func WithDatabase(dbType, url string) Option {
	return func(c *ServerConfig) error {
		if dbType != "memory" && dbType != "postgres" {
			return fmt.Errorf("database type must be 'memory' or 'postgres', got: %s", dbType)
		}
		if dbType == "postgres" && url == "" {
			return fmt.Errorf("database URL is required for postgres")
		}
		c.DatabaseType = dbType
		c.DatabaseURL = url
		return nil
	}
}

// WithMigrations toggles applying the embedded migrations on startup
func WithMigrations(run bool) Option {
	return func(c *ServerConfig) error {
		c.RunMigrations = run
		return nil
	}
}

// WithPublicBaseURL sets the URL this server is reachable at
func WithPublicBaseURL(baseURL string) Option {
	return func(c *ServerConfig) error {
		if baseURL == "" {
			return fmt.Errorf("public base URL cannot be empty")
		}
		c.PublicBaseURL = strings.TrimRight(baseURL, "/")
		return nil
	}
}

// WithMemoryStorage stores both namespaces in memory
func WithMemoryStorage() Option {
	return func(c *ServerConfig) error {
		for _, ns := range namespaces {
			c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
				Name: string(ns),
				Type: "memory",
			})
		}
		return nil
	}
}

// WithFilesystemStorage stores each namespace in a subdirectory of baseDir
func WithFilesystemStorage(baseDir string) Option {
	return func(c *ServerConfig) error {
		if baseDir == "" {
			return fmt.Errorf("filesystem base directory cannot be empty")
		}
		for _, ns := range namespaces {
			c.StorageBackends = upsertStorageBackend(c.StorageBackends, StorageBackendConfig{
				Name: string(ns),
				Type: "fs",
				Config: map[string]interface{}{
					"base_dir": filepath.Join(baseDir, string(ns)),
				},
			})
		}
		return nil
	}
}

// WithStorageBackend replaces the backend of a single namespace
func WithStorageBackend(backend StorageBackendConfig) Option {
	return func(c *ServerConfig) error {
		if backend.Name == "" {
			return fmt.Errorf("storage backend name cannot be empty")
		}
		switch backend.Type {
		case "memory", "fs", "s3":
		default:
			return fmt.Errorf("unsupported storage backend type: %s", backend.Type)
		}
		c.StorageBackends = upsertStorageBackend(c.StorageBackends, backend)
		return nil
	}
}

// WithCDN switches public URLs to the cdn strategy
func WithCDN(baseURL string) Option {
	return func(c *ServerConfig) error {
		if baseURL == "" {
			return fmt.Errorf("CDN base URL cannot be empty")
		}
		c.URLStrategy = "cdn"
		c.CDNBaseURL = baseURL
		return nil
	}
}

// WithUploadLimits sets the maximum document and cover sizes in bytes
func WithUploadLimits(maxDocument, maxCover int64) Option {
	return func(c *ServerConfig) error {
		if maxDocument <= 0 || maxCover <= 0 {
			return fmt.Errorf("upload limits must be positive")
		}
		c.MaxDocumentBytes = maxDocument
		c.MaxCoverBytes = maxCover
		return nil
	}
}

// WithCoverGeneration toggles default covers and optionally sets their font
func WithCoverGeneration(enabled bool, fontFile string) Option {
	return func(c *ServerConfig) error {
		c.GenerateCovers = enabled
		c.CoverFontFile = fontFile
		return nil
	}
}
