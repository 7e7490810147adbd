package urlstrategy

import (
	"fmt"
	"strings"
)

// CDNStrategy generates URLs that point directly to a CDN.
// Layout: {CDNBaseURL}/{namespace}/{key}
type CDNStrategy struct {
	CDNBaseURL string // e.g., "https://cdn.example.com"
}

// NewCDNStrategy creates a new CDN URL strategy
func NewCDNStrategy(cdnBaseURL string) *CDNStrategy {
	return &CDNStrategy{
		CDNBaseURL: strings.TrimSuffix(cdnBaseURL, "/"),
	}
}

// PublicURL creates a direct CDN URL for an object
func (s *CDNStrategy) PublicURL(namespace, key string) (string, error) {
	if s.CDNBaseURL == "" {
		return "", fmt.Errorf("CDN base URL not configured")
	}
	return fmt.Sprintf("%s/%s/%s", s.CDNBaseURL, namespace, EscapeKey(key)), nil
}

// KeyFromURL strips the CDN namespace prefix
func (s *CDNStrategy) KeyFromURL(namespace, rawURL string) (string, bool) {
	if s.CDNBaseURL == "" {
		return "", false
	}
	return keyAfterPrefix(fmt.Sprintf("%s/%s/", s.CDNBaseURL, namespace), rawURL)
}
