package newsletter_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-newsletter/pkg/newsletter"
	"github.com/tendant/simple-newsletter/pkg/newsletter/repo/memory"
	memorystorage "github.com/tendant/simple-newsletter/pkg/newsletter/storage/memory"
)

var errBoom = errors.New("boom")

// flakyStore fails uploads or deletes on demand.
type flakyStore struct {
	newsletter.BlobStore
	uploadErr   error
	deleteErr   error
	listErr     error
	downloadErr error
	corrupt     bool
}

func (f *flakyStore) Upload(ctx context.Context, key string, r io.Reader, opts newsletter.UploadOptions) error {
	if f.uploadErr != nil {
		return f.uploadErr
	}
	return f.BlobStore.Upload(ctx, key, r, opts)
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	return f.BlobStore.Delete(ctx, key)
}

func (f *flakyStore) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	if f.corrupt {
		return io.NopCloser(strings.NewReader("garbage")), nil
	}
	return f.BlobStore.(newsletter.Downloader).Download(ctx, key)
}

func (f *flakyStore) List(ctx context.Context, prefix string) ([]newsletter.ObjectInfo, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.BlobStore.List(ctx, prefix)
}

// brokenRepo fails selected repository calls.
type brokenRepo struct {
	*memory.Repository
	insertErr error
	updateErr error
	listErr   error
}

func (b *brokenRepo) Insert(ctx context.Context, n *newsletter.Newsletter) (*newsletter.Newsletter, error) {
	if b.insertErr != nil {
		return nil, b.insertErr
	}
	return b.Repository.Insert(ctx, n)
}

func (b *brokenRepo) Update(ctx context.Context, id int64, p newsletter.Patch, at time.Time) (*newsletter.Newsletter, error) {
	if b.updateErr != nil {
		return nil, b.updateErr
	}
	return b.Repository.Update(ctx, id, p, at)
}

func (b *brokenRepo) List(ctx context.Context, params newsletter.ListParams) ([]*newsletter.Newsletter, error) {
	if b.listErr != nil {
		return nil, b.listErr
	}
	return b.Repository.List(ctx, params)
}

func (b *brokenRepo) Count(ctx context.Context, params newsletter.ListParams) (int64, error) {
	if b.listErr != nil {
		return 0, b.listErr
	}
	return b.Repository.Count(ctx, params)
}

// stubRenderer returns fixed bytes or an error.
type stubRenderer struct {
	err    error
	calls  int
	titles []string
}

func (s *stubRenderer) Render(title string, lang newsletter.Language) ([]byte, error) {
	s.calls++
	s.titles = append(s.titles, title)
	if s.err != nil {
		return nil, s.err
	}
	return []byte("jpeg:" + title + ":" + string(lang)), nil
}

type fixture struct {
	svc    newsletter.Service
	repo   *brokenRepo
	docs   *flakyStore
	covers *flakyStore

	docBackend   *memorystorage.Backend
	coverBackend *memorystorage.Backend
}

func newFixture(t *testing.T, opts ...newsletter.Option) *fixture {
	t.Helper()

	docBackend := memorystorage.New("http://storage.local/newsletters")
	coverBackend := memorystorage.New("http://storage.local/newsletter-covers")
	f := &fixture{
		repo:         &brokenRepo{Repository: memory.New()},
		docs:         &flakyStore{BlobStore: docBackend},
		covers:       &flakyStore{BlobStore: coverBackend},
		docBackend:   docBackend,
		coverBackend: coverBackend,
	}

	all := append([]newsletter.Option{
		newsletter.WithRepository(f.repo),
		newsletter.WithBlobStore(newsletter.AssetDocument, f.docs),
		newsletter.WithBlobStore(newsletter.AssetCover, f.covers),
	}, opts...)

	svc, err := newsletter.New(all...)
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) create(t *testing.T, title, date string, lang newsletter.Language, active bool) *newsletter.Newsletter {
	t.Helper()
	n, err := f.svc.Create(context.Background(), newsletter.CreateRequest{
		Title:         title,
		FileURL:       "http://storage.local/newsletters/" + title + ".pdf",
		Language:      lang,
		PublishedDate: date,
		IsActive:      newsletter.Ptr(active),
	})
	require.NoError(t, err)
	return n
}
