package notify

import (
	"context"
	"slices"
	"sync"
)

type inMemoryLogRepository struct {
	mu      sync.RWMutex
	entries []EmailLog
}

// NewInMemoryLogRepository returns an empty audit log.
func NewInMemoryLogRepository() LogRepository {
	return &inMemoryLogRepository{}
}

func (m *inMemoryLogRepository) Append(ctx context.Context, entry EmailLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, entry)
	return nil
}

// List returns matching records newest first.
func (m *inMemoryLogRepository) List(ctx context.Context, filter LogFilter) ([]EmailLog, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]EmailLog, 0, len(m.entries))
	for _, entry := range slices.Backward(m.entries) {
		if filter.Status != nil && entry.Status != *filter.Status {
			continue
		}
		if filter.EventID != "" && entry.EventID != filter.EventID {
			continue
		}
		if filter.Recipient != "" && entry.Recipient != filter.Recipient {
			continue
		}
		out = append(out, entry)
		if filter.Limit > 0 && len(out) == filter.Limit {
			break
		}
	}
	return out, nil
}
