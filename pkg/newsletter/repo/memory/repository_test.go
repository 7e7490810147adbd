package memory_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-newsletter/pkg/newsletter"
	"github.com/tendant/simple-newsletter/pkg/newsletter/repo/memory"
)

func newRecord(title, date string, lang newsletter.Language, active bool) *newsletter.Newsletter {
	now := time.Now().UTC()
	return &newsletter.Newsletter{
		Title:         title,
		FileURL:       "http://files/" + title + ".pdf",
		Language:      lang,
		PublishedDate: date,
		IsActive:      active,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestMemoryRepository_CRUD(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	t.Run("Insert assigns increasing IDs", func(t *testing.T) {
		a, err := repo.Insert(ctx, newRecord("a", "2025-01-01", newsletter.LanguageKorean, true))
		require.NoError(t, err)
		b, err := repo.Insert(ctx, newRecord("b", "2025-01-02", newsletter.LanguageKorean, true))
		require.NoError(t, err)
		assert.Greater(t, b.ID, a.ID)
	})

	t.Run("Get_NotFound", func(t *testing.T) {
		n, err := repo.Get(ctx, 9999)
		assert.Nil(t, n)
		assert.ErrorIs(t, err, newsletter.ErrNotFound)
	})

	t.Run("Update applies only supplied fields", func(t *testing.T) {
		desc := "original description"
		rec := newRecord("patch me", "2025-02-01", newsletter.LanguageEnglish, true)
		rec.Description = &desc
		created, err := repo.Insert(ctx, rec)
		require.NoError(t, err)

		later := created.UpdatedAt.Add(time.Hour)
		updated, err := repo.Update(ctx, created.ID, newsletter.Patch{IsActive: newsletter.Ptr(false)}, later)
		require.NoError(t, err)

		assert.False(t, updated.IsActive)
		assert.Equal(t, created.Title, updated.Title)
		assert.Equal(t, created.FileURL, updated.FileURL)
		assert.Equal(t, desc, *updated.Description)
		assert.Equal(t, later, updated.UpdatedAt)
		assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	})

	t.Run("Update_NotFound", func(t *testing.T) {
		_, err := repo.Update(ctx, 9999, newsletter.Patch{Title: newsletter.Ptr("x")}, time.Now())
		assert.ErrorIs(t, err, newsletter.ErrNotFound)
	})

	t.Run("Delete and IDs are not reused", func(t *testing.T) {
		created, err := repo.Insert(ctx, newRecord("delete me", "2025-03-01", newsletter.LanguageKorean, true))
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, created.ID))
		_, err = repo.Get(ctx, created.ID)
		assert.ErrorIs(t, err, newsletter.ErrNotFound)

		assert.ErrorIs(t, repo.Delete(ctx, created.ID), newsletter.ErrNotFound)

		next, err := repo.Insert(ctx, newRecord("next", "2025-03-02", newsletter.LanguageKorean, true))
		require.NoError(t, err)
		assert.Greater(t, next.ID, created.ID)
	})

	t.Run("Returned records are copies", func(t *testing.T) {
		created, err := repo.Insert(ctx, newRecord("copy", "2025-04-01", newsletter.LanguageKorean, true))
		require.NoError(t, err)
		created.Title = "mutated"

		fetched, err := repo.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, "copy", fetched.Title)
	})
}

func TestMemoryRepository_List(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	dates := []string{"2025-01-05", "2025-03-01", "2025-02-10", "2024-12-31", "2025-03-01"}
	for i, d := range dates {
		lang := newsletter.LanguageKorean
		if i%2 == 1 {
			lang = newsletter.LanguageEnglish
		}
		_, err := repo.Insert(ctx, newRecord(fmt.Sprintf("Issue %d", i), d, lang, i != 2))
		require.NoError(t, err)
	}

	t.Run("sorted by published_date desc then id desc", func(t *testing.T) {
		items, err := repo.List(ctx, newsletter.ListParams{})
		require.NoError(t, err)
		require.Len(t, items, 5)
		assert.Equal(t, "Issue 4", items[0].Title)
		assert.Equal(t, "Issue 1", items[1].Title)
		assert.Equal(t, "Issue 2", items[2].Title)
		assert.Equal(t, "Issue 0", items[3].Title)
		assert.Equal(t, "Issue 3", items[4].Title)
	})

	t.Run("active only and language", func(t *testing.T) {
		ko := newsletter.LanguageKorean
		items, err := repo.List(ctx, newsletter.ListParams{ActiveOnly: true, Language: &ko})
		require.NoError(t, err)
		for _, n := range items {
			assert.True(t, n.IsActive)
			assert.Equal(t, ko, n.Language)
		}
		assert.Len(t, items, 2)
	})

	t.Run("offset past end", func(t *testing.T) {
		items, err := repo.List(ctx, newsletter.ListParams{Offset: 10, Limit: 5})
		require.NoError(t, err)
		assert.Empty(t, items)
	})

	t.Run("count ignores pagination", func(t *testing.T) {
		count, err := repo.Count(ctx, newsletter.ListParams{Limit: 1, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, int64(5), count)
	})
}

func TestMemoryRepository_Search(t *testing.T) {
	repo := memory.New()
	ctx := context.Background()

	withDesc := newRecord("Quarterly Update", "2025-01-01", newsletter.LanguageEnglish, true)
	withDesc.Description = newsletter.Ptr("Changes to the minimum WAGE act")
	_, err := repo.Insert(ctx, withDesc)
	require.NoError(t, err)
	_, err = repo.Insert(ctx, newRecord("Minimum wage guide", "2025-01-02", newsletter.LanguageKorean, false))
	require.NoError(t, err)
	_, err = repo.Insert(ctx, newRecord("Holiday notice", "2025-01-03", newsletter.LanguageKorean, true))
	require.NoError(t, err)

	for _, q := range []string{"wage", "WAGE", "Wage", "age"} {
		t.Run(q, func(t *testing.T) {
			items, err := repo.List(ctx, newsletter.ListParams{Search: q})
			require.NoError(t, err)
			assert.Len(t, items, 2)
		})
	}

	items, err := repo.List(ctx, newsletter.ListParams{Search: "holiday notice"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
}
