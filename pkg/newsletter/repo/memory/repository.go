package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tendant/simple-newsletter/pkg/newsletter"
)

// Repository implements newsletter.Repository using in-memory storage
type Repository struct {
	mu          sync.RWMutex
	newsletters map[int64]*newsletter.Newsletter
	nextID      int64
}

// New creates a new in-memory repository
func New() *Repository {
	return &Repository{
		newsletters: make(map[int64]*newsletter.Newsletter),
	}
}

func (r *Repository) Insert(ctx context.Context, n *newsletter.Newsletter) (*newsletter.Newsletter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// IDs are never reused, even after deletes
	r.nextID++
	stored := n.Clone()
	stored.ID = r.nextID
	r.newsletters[stored.ID] = stored

	return stored.Clone(), nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*newsletter.Newsletter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, exists := r.newsletters[id]
	if !exists {
		return nil, newsletter.ErrNotFound
	}
	return n.Clone(), nil
}

func (r *Repository) Update(ctx context.Context, id int64, patch newsletter.Patch, updatedAt time.Time) (*newsletter.Newsletter, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, exists := r.newsletters[id]
	if !exists {
		return nil, newsletter.ErrNotFound
	}

	updated := n.Clone()
	patch.Apply(updated)
	updated.UpdatedAt = updatedAt
	r.newsletters[id] = updated

	return updated.Clone(), nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.newsletters[id]; !exists {
		return newsletter.ErrNotFound
	}
	delete(r.newsletters, id)
	return nil
}

func (r *Repository) List(ctx context.Context, params newsletter.ListParams) ([]*newsletter.Newsletter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	matched := r.filter(params)

	// Sort by published_date descending, newest id first on ties
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].PublishedDate != matched[j].PublishedDate {
			return matched[i].PublishedDate > matched[j].PublishedDate
		}
		return matched[i].ID > matched[j].ID
	})

	if params.Offset > 0 {
		if params.Offset >= len(matched) {
			return []*newsletter.Newsletter{}, nil
		}
		matched = matched[params.Offset:]
	}
	if params.Limit > 0 && len(matched) > params.Limit {
		matched = matched[:params.Limit]
	}

	result := make([]*newsletter.Newsletter, 0, len(matched))
	for _, n := range matched {
		result = append(result, n.Clone())
	}
	return result, nil
}

func (r *Repository) Count(ctx context.Context, params newsletter.ListParams) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.filter(params))), nil
}

// filter must be called with the lock held
func (r *Repository) filter(params newsletter.ListParams) []*newsletter.Newsletter {
	search := strings.ToLower(params.Search)

	var matched []*newsletter.Newsletter
	for _, n := range r.newsletters {
		if params.ActiveOnly && !n.IsActive {
			continue
		}
		if params.Language != nil && n.Language != *params.Language {
			continue
		}
		if search != "" && !matchesSearch(n, search) {
			continue
		}
		matched = append(matched, n)
	}
	return matched
}

func matchesSearch(n *newsletter.Newsletter, lowered string) bool {
	if strings.Contains(strings.ToLower(n.Title), lowered) {
		return true
	}
	return n.Description != nil && strings.Contains(strings.ToLower(*n.Description), lowered)
}
