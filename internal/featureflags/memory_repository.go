package featureflags

import (
	"context"
	"maps"
	"sync"
	"time"
)

// InMemoryRepository keeps overrides in a map. It backs the service when
// DB_ENABLED is false, so overrides are lost on restart.
type InMemoryRepository struct {
	mu    sync.RWMutex
	flags map[string]Flag
}

// NewInMemoryRepository returns a repository seeded with DefaultFlags.
func NewInMemoryRepository() *InMemoryRepository {
	return NewInMemoryRepositoryWithFlags(DefaultFlags())
}

// NewInMemoryRepositoryWithFlags returns a repository seeded with flags.
func NewInMemoryRepositoryWithFlags(flags map[string]*Flag) *InMemoryRepository {
	repo := &InMemoryRepository{flags: make(map[string]Flag, len(flags))}
	for k, v := range flags {
		repo.flags[k] = *v
	}
	return repo
}

// GetFlag returns a copy of the stored flag or ErrFlagNotFound.
func (r *InMemoryRepository) GetFlag(_ context.Context, key string) (*Flag, error) {
	r.mu.RLock()
	flag, ok := r.flags[key]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrFlagNotFound
	}
	return &flag, nil
}

func (r *InMemoryRepository) GetAllFlags(_ context.Context) (map[string]*Flag, error) {
	r.mu.RLock()
	snapshot := maps.Clone(r.flags)
	r.mu.RUnlock()

	result := make(map[string]*Flag, len(snapshot))
	for k, v := range snapshot {
		result[k] = &v
	}
	return result, nil
}

func (r *InMemoryRepository) SetFlag(ctx context.Context, flag *Flag) error {
	return r.SetFlags(ctx, []*Flag{flag})
}

// SetFlags stores all flags under one lock with a shared UpdatedAt.
func (r *InMemoryRepository) SetFlags(_ context.Context, flags []*Flag) error {
	now := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, flag := range flags {
		stored := *flag
		stored.UpdatedAt = now
		r.flags[flag.Key] = stored
	}
	return nil
}

// DeleteFlag drops an override. Deleting an absent key is not an error.
func (r *InMemoryRepository) DeleteFlag(_ context.Context, key string) error {
	r.mu.Lock()
	delete(r.flags, key)
	r.mu.Unlock()
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
