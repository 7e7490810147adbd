package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"testing"
	"time"

	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-newsletter/pkg/newsletter"
)

func TestS3Backend_BasicConfiguration(t *testing.T) {
	t.Run("EmptyBucket", func(t *testing.T) {
		_, err := New(Config{Region: "us-east-1"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "bucket name is required")
	})

	t.Run("DefaultRegion", func(t *testing.T) {
		backend, err := New(Config{
			Bucket:          "newsletters",
			AccessKeyID:     "test-key",
			SecretAccessKey: "test-secret",
		})
		require.NoError(t, err)
		assert.Equal(t, "us-east-1", backend.config.Region)
		assert.Equal(t, "https://newsletters.s3.us-east-1.amazonaws.com/a.pdf", backend.PublicURL("a.pdf"))
	})
}

func TestPublicBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected string
	}{
		{
			name:     "explicit public base",
			config:   Config{Bucket: "newsletters", PublicBaseURL: "https://cdn.example.com/newsletters/"},
			expected: "https://cdn.example.com/newsletters",
		},
		{
			name:     "path style endpoint",
			config:   Config{Bucket: "newsletter-covers", Endpoint: "http://localhost:9000", UsePathStyle: true},
			expected: "http://localhost:9000/newsletter-covers",
		},
		{
			name:     "virtual host endpoint",
			config:   Config{Bucket: "newsletters", Endpoint: "https://objects.example.com"},
			expected: "https://newsletters.objects.example.com",
		},
		{
			name:     "aws default",
			config:   Config{Bucket: "newsletters", Region: "ap-northeast-2"},
			expected: "https://newsletters.s3.ap-northeast-2.amazonaws.com",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, publicBaseURL(tt.config))
		})
	}
}

func TestS3Backend_PublicURLEscapesKey(t *testing.T) {
	backend, err := New(Config{
		Bucket:          "newsletters",
		AccessKeyID:     "test-key",
		SecretAccessKey: "test-secret",
		Endpoint:        "http://localhost:9000",
		UsePathStyle:    true,
	})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:9000/newsletters/1700000000000_%EB%89%B4%EC%8A%A4.pdf",
		backend.PublicURL("1700000000000_뉴스.pdf"))
}

func TestIsPreconditionFailed(t *testing.T) {
	assert.True(t, isPreconditionFailed(&smithy.GenericAPIError{Code: "PreconditionFailed"}))
	assert.True(t, isPreconditionFailed(fmt.Errorf("wrapped: %w", &smithy.GenericAPIError{Code: "ConditionalRequestConflict"})))
	assert.False(t, isPreconditionFailed(&smithy.GenericAPIError{Code: "AccessDenied"}))
	assert.False(t, isPreconditionFailed(errors.New("boom")))
}

// TestS3Backend_Integration requires a running MinIO instance or S3 credentials
func TestS3Backend_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	endpoint := os.Getenv("AWS_S3_ENDPOINT")
	accessKey := os.Getenv("AWS_ACCESS_KEY_ID")
	secretKey := os.Getenv("AWS_SECRET_ACCESS_KEY")
	bucket := os.Getenv("AWS_S3_BUCKET")

	if endpoint == "" || accessKey == "" || secretKey == "" || bucket == "" {
		t.Skip("Skipping integration test: S3/MinIO environment variables not set")
	}

	backend, err := New(Config{
		Bucket:                 bucket,
		Region:                 "us-east-1",
		AccessKeyID:            accessKey,
		SecretAccessKey:        secretKey,
		Endpoint:               endpoint,
		UsePathStyle:           true,
		CreateBucketIfNotExist: true,
	})
	require.NoError(t, err)

	ctx := context.Background()
	objectKey := fmt.Sprintf("%d_integration.txt", time.Now().UnixMilli())
	testData := []byte("Hello from S3 integration test!")
	opts := newsletter.UploadOptions{ContentType: "text/plain", CacheControl: "max-age=3600", NoOverwrite: true}

	t.Run("UploadAndDownload", func(t *testing.T) {
		require.NoError(t, backend.Upload(ctx, objectKey, bytes.NewReader(testData), opts))

		reader, err := backend.Download(ctx, objectKey)
		require.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, testData, data)
	})

	t.Run("NoOverwrite", func(t *testing.T) {
		err := backend.Upload(ctx, objectKey, bytes.NewReader([]byte("other")), opts)
		assert.ErrorIs(t, err, newsletter.ErrAssetExists)
	})

	t.Run("List", func(t *testing.T) {
		objects, err := backend.List(ctx, objectKey)
		require.NoError(t, err)
		require.Len(t, objects, 1)
		assert.Equal(t, int64(len(testData)), objects[0].Size)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, backend.Delete(ctx, objectKey))
		_, err := backend.Download(ctx, objectKey)
		assert.ErrorIs(t, err, newsletter.ErrAssetNotFound)
	})
}
