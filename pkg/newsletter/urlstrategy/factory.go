package urlstrategy

import (
	"fmt"
)

// URLStrategyType represents the type of URL strategy
type URLStrategyType string

const (
	// CDN strategy for direct CDN URLs
	StrategyTypeCDN URLStrategyType = "cdn"

	// Storage-delegated strategy asks each backend for its public URL
	StrategyTypeStorageDelegated URLStrategyType = "storage-delegated"
)

// Config holds configuration for URL strategy creation
type Config struct {
	Type       URLStrategyType
	CDNBaseURL string               // For CDN strategy
	BlobStores map[string]BlobStore // For storage-delegated strategy
}

// NewURLStrategy creates a URL strategy based on the configuration
func NewURLStrategy(config Config) (URLStrategy, error) {
	switch config.Type {
	case StrategyTypeCDN:
		if config.CDNBaseURL == "" {
			return nil, fmt.Errorf("CDN base URL is required for CDN strategy")
		}
		return NewCDNStrategy(config.CDNBaseURL), nil

	case StrategyTypeStorageDelegated, "":
		if len(config.BlobStores) == 0 {
			return nil, fmt.Errorf("blob stores are required for storage-delegated strategy")
		}
		return NewStorageDelegatedStrategy(config.BlobStores), nil

	default:
		return nil, fmt.Errorf("unknown URL strategy type: %s", config.Type)
	}
}
