package memory

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-newsletter/pkg/newsletter"
	"github.com/tendant/simple-newsletter/pkg/newsletter/urlstrategy"
)

type object struct {
	data         []byte
	contentType  string
	cacheControl string
	modified     time.Time
}

// Backend is an in-memory implementation of the newsletter.BlobStore interface
type Backend struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]object
}

// New creates a new in-memory storage backend. Public URLs are baseURL + "/" + key.
func New(baseURL string) *Backend {
	return &Backend{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]object),
	}
}

// Upload stores content under objectKey
func (b *Backend) Upload(ctx context.Context, objectKey string, reader io.Reader, opts newsletter.UploadOptions) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; exists && opts.NoOverwrite {
		return newsletter.ErrAssetExists
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	b.objects[objectKey] = object{
		data:         data,
		contentType:  contentType,
		cacheControl: opts.CacheControl,
		modified:     time.Now(),
	}
	return nil
}

// PublicURL returns the URL an object would be served from
func (b *Backend) PublicURL(objectKey string) string {
	return b.baseURL + "/" + urlstrategy.EscapeKey(objectKey)
}

// Download returns a stored object's content
func (b *Backend) Download(ctx context.Context, objectKey string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	if !exists {
		return nil, newsletter.ErrAssetNotFound
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// ContentType returns the content type recorded at upload, for inspecting uploads in tests
func (b *Backend) ContentType(objectKey string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	obj, exists := b.objects[objectKey]
	return obj.contentType, exists
}

// Delete deletes content
func (b *Backend) Delete(ctx context.Context, objectKey string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.objects[objectKey]; !exists {
		return newsletter.ErrAssetNotFound
	}

	delete(b.objects, objectKey)
	return nil
}

// List returns objects whose key starts with prefix, sorted by key
func (b *Backend) List(ctx context.Context, prefix string) ([]newsletter.ObjectInfo, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var result []newsletter.ObjectInfo
	for key, obj := range b.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		result = append(result, newsletter.ObjectInfo{
			Key:          key,
			Size:         int64(len(obj.data)),
			LastModified: obj.modified,
		})
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result, nil
}

// Handler serves stored objects read-only, keyed by the request path
func (b *Backend) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}

		b.mu.RLock()
		obj, exists := b.objects[strings.TrimPrefix(r.URL.Path, "/")]
		b.mu.RUnlock()
		if !exists {
			http.NotFound(w, r)
			return
		}

		w.Header().Set("Content-Type", obj.contentType)
		if obj.cacheControl != "" {
			w.Header().Set("Cache-Control", obj.cacheControl)
		}
		http.ServeContent(w, r, "", obj.modified, bytes.NewReader(obj.data))
	})
}

// Len returns the number of stored objects, for tests
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
