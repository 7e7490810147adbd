package memory_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-newsletter/pkg/newsletter"
	memorystorage "github.com/tendant/simple-newsletter/pkg/newsletter/storage/memory"
)

func TestMemoryBackend(t *testing.T) {
	backend := memorystorage.New("http://cdn.local/newsletters/")
	ctx := context.Background()
	testKey := "1751328000000_report.pdf"
	testData := "%PDF-1.4 test data"

	t.Run("Upload", func(t *testing.T) {
		err := backend.Upload(ctx, testKey, strings.NewReader(testData), newsletter.UploadOptions{
			ContentType: "application/pdf",
			NoOverwrite: true,
		})
		assert.NoError(t, err)

		contentType, ok := backend.ContentType(testKey)
		assert.True(t, ok)
		assert.Equal(t, "application/pdf", contentType)
	})

	t.Run("Upload_NoOverwrite", func(t *testing.T) {
		err := backend.Upload(ctx, testKey, strings.NewReader("other"), newsletter.UploadOptions{NoOverwrite: true})
		assert.ErrorIs(t, err, newsletter.ErrAssetExists)

		reader, err := backend.Download(ctx, testKey)
		require.NoError(t, err)
		data, _ := io.ReadAll(reader)
		assert.Equal(t, testData, string(data))
	})

	t.Run("PublicURL", func(t *testing.T) {
		assert.Equal(t, "http://cdn.local/newsletters/"+testKey, backend.PublicURL(testKey))
	})

	t.Run("List", func(t *testing.T) {
		require.NoError(t, backend.Upload(ctx, "other.txt", strings.NewReader("x"), newsletter.UploadOptions{}))

		all, err := backend.List(ctx, "")
		require.NoError(t, err)
		assert.Len(t, all, 2)

		prefixed, err := backend.List(ctx, "1751")
		require.NoError(t, err)
		require.Len(t, prefixed, 1)
		assert.Equal(t, testKey, prefixed[0].Key)
		assert.Equal(t, int64(len(testData)), prefixed[0].Size)
		assert.False(t, prefixed[0].LastModified.IsZero())
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, testKey))
		assert.ErrorIs(t, backend.Delete(ctx, testKey), newsletter.ErrAssetNotFound)

		_, err := backend.Download(ctx, testKey)
		assert.ErrorIs(t, err, newsletter.ErrAssetNotFound)
		assert.Equal(t, 1, backend.Len())
	})
}

func TestMemoryBackendHandler(t *testing.T) {
	backend := memorystorage.New("http://localhost:8080/files/newsletter-covers")
	err := backend.Upload(context.Background(), "1751328000000_표지.jpg", strings.NewReader("jpeg"), newsletter.UploadOptions{
		ContentType:  "image/jpeg",
		CacheControl: "max-age=3600",
	})
	require.NoError(t, err)

	handler := http.StripPrefix("/files/newsletter-covers", backend.Handler())

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, backend.PublicURL("1751328000000_표지.jpg"), nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, "max-age=3600", w.Header().Get("Cache-Control"))
	assert.Equal(t, "jpeg", w.Body.String())

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/files/newsletter-covers/missing.jpg", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/files/newsletter-covers/x", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
