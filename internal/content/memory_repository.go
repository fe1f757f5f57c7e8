package content

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

type inMemoryRepository struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]Entry
}

// NewInMemoryRepository returns an empty content store.
func NewInMemoryRepository() Repository {
	return &inMemoryRepository{entries: make(map[uuid.UUID]Entry)}
}

func (m *inMemoryRepository) Create(ctx context.Context, entry Entry) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[entry.ID] = entry
	return entry, nil
}

func (m *inMemoryRepository) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return entry, nil
}

func (m *inMemoryRepository) Update(ctx context.Context, entry Entry) (Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[entry.ID]; !ok {
		return Entry{}, ErrNotFound
	}
	m.entries[entry.ID] = entry
	return entry, nil
}

func (m *inMemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return ErrNotFound
	}
	delete(m.entries, id)
	return nil
}

func (m *inMemoryRepository) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Entry, 0, len(m.entries))
	for _, entry := range m.entries {
		if opts.Kind != "" && entry.Kind != opts.Kind {
			continue
		}
		if !opts.IncludeUnpublished && !entry.Published {
			continue
		}
		if opts.AuthorID != nil && entry.AuthorID != *opts.AuthorID {
			continue
		}
		out = append(out, entry)
	}

	slices.SortFunc(out, func(a, b Entry) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}
