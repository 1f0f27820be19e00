package quotelog

import (
	"context"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository, used when
// no database is configured and in tests.
type InMemoryRepository struct {
	mu      sync.RWMutex
	entries []*Entry
	byID    map[string]int
}

// NewInMemoryRepository creates a new in-memory quote log.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byID: make(map[string]int),
	}
}

// Create appends an entry.
func (r *InMemoryRepository) Create(_ context.Context, e *Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *e
	r.byID[e.ID] = len(r.entries)
	r.entries = append(r.entries, &cpy)
	return nil
}

// Get retrieves an entry by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.byID[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	cpy := *r.entries[i]
	return &cpy, nil
}

// List retrieves entries newest first.
func (r *InMemoryRepository) List(_ context.Context, opts ListOptions) (*ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}

	start := len(r.entries) - 1
	if opts.Cursor != "" {
		i, ok := r.byID[opts.Cursor]
		if !ok {
			return nil, ErrEntryNotFound
		}
		start = i - 1
	}

	result := &ListResult{}
	for i := start; i >= 0; i-- {
		e := r.entries[i]
		if opts.Status != "" && e.Status != opts.Status {
			continue
		}
		if len(result.Items) == limit {
			result.NextCursor = result.Items[limit-1].ID
			break
		}
		cpy := *e
		result.Items = append(result.Items, &cpy)
	}
	return result, nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
