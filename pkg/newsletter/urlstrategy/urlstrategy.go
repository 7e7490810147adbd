package urlstrategy

import (
	"net/url"
	"strings"
)

// URLStrategy defines the interface for public URL generation strategies
type URLStrategy interface {
	// PublicURL creates the public URL of an object in a namespace
	PublicURL(namespace, key string) (string, error)

	// KeyFromURL recovers the object key from a URL produced by PublicURL.
	// It returns false when the URL does not belong to the namespace.
	KeyFromURL(namespace, rawURL string) (string, bool)
}

// EscapeKey path-escapes each segment of an object key
func EscapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// keyAfterPrefix strips prefix from rawURL and unescapes the remainder
func keyAfterPrefix(prefix, rawURL string) (string, bool) {
	if prefix == "" || !strings.HasPrefix(rawURL, prefix) {
		return "", false
	}
	rest := rawURL[len(prefix):]
	if i := strings.IndexAny(rest, "?#"); i >= 0 {
		rest = rest[:i]
	}
	key, err := url.PathUnescape(rest)
	if err != nil || key == "" {
		return "", false
	}
	return key, true
}
