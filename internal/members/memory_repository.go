package members

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type inMemoryRepository struct {
	mu       sync.RWMutex
	profiles map[uuid.UUID]Profile
}

// NewInMemoryRepository returns an empty profile store.
func NewInMemoryRepository() Repository {
	return &inMemoryRepository{profiles: make(map[uuid.UUID]Profile)}
}

func (m *inMemoryRepository) Get(ctx context.Context, id uuid.UUID) (Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	profile, ok := m.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	return cloneProfile(profile), nil
}

func (m *inMemoryRepository) Set(ctx context.Context, profile Profile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.profiles[profile.ID] = cloneProfile(profile)
	return nil
}

func (m *inMemoryRepository) SetIfAbsent(ctx context.Context, profile Profile) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[profile.ID]; ok {
		return false, nil
	}
	m.profiles[profile.ID] = cloneProfile(profile)
	return true, nil
}

func (m *inMemoryRepository) Update(ctx context.Context, id uuid.UUID, fields ProfileFields, now time.Time) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, ok := m.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	fields.Apply(&profile)
	profile.UpdatedAt = now
	m.profiles[id] = profile
	return cloneProfile(profile), nil
}

func (m *inMemoryRepository) UpdateStanding(ctx context.Context, id uuid.UUID, standing Standing, now time.Time) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, ok := m.profiles[id]
	if !ok {
		return Profile{}, ErrNotFound
	}
	standing.Apply(&profile)
	profile.UpdatedAt = now
	m.profiles[id] = profile
	return cloneProfile(profile), nil
}

func (m *inMemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[id]; !ok {
		return ErrNotFound
	}
	delete(m.profiles, id)
	for key, profile := range m.profiles {
		if profile.HasConnection(id) {
			profile.Connections = slices.DeleteFunc(slices.Clone(profile.Connections), func(c uuid.UUID) bool { return c == id })
			m.profiles[key] = profile
		}
	}
	return nil
}

func (m *inMemoryRepository) List(ctx context.Context, opts ListOptions) ([]Profile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(opts.Query))
	var out []Profile
	for _, profile := range m.profiles {
		if opts.Approved != nil && profile.Approved != *opts.Approved {
			continue
		}
		if opts.Role != nil && profile.Role != *opts.Role {
			continue
		}
		if opts.GraduationYear != nil && (profile.GraduationYear == nil || *profile.GraduationYear != *opts.GraduationYear) {
			continue
		}
		if query != "" && !matchesQuery(profile, query) {
			continue
		}
		out = append(out, cloneProfile(profile))
	}

	slices.SortFunc(out, compareProfilesByName)
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *inMemoryRepository) AddConnection(ctx context.Context, id, other uuid.UUID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, ok := m.profiles[id]
	if !ok {
		return ErrNotFound
	}
	if profile.HasConnection(other) {
		return nil
	}
	profile.Connections = append(slices.Clone(profile.Connections), other)
	profile.UpdatedAt = now
	m.profiles[id] = profile
	return nil
}

func (m *inMemoryRepository) RemoveConnection(ctx context.Context, id, other uuid.UUID, now time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	profile, ok := m.profiles[id]
	if !ok {
		return ErrNotFound
	}
	profile.Connections = slices.DeleteFunc(slices.Clone(profile.Connections), func(c uuid.UUID) bool { return c == other })
	profile.UpdatedAt = now
	m.profiles[id] = profile
	return nil
}

func matchesQuery(p Profile, query string) bool {
	for _, field := range []string{p.FirstName, p.LastName, p.Company, p.Occupation, p.City, p.Department} {
		if strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func compareProfilesByName(a, b Profile) int {
	if c := strings.Compare(strings.ToLower(a.LastName), strings.ToLower(b.LastName)); c != 0 {
		return c
	}
	if c := strings.Compare(strings.ToLower(a.FirstName), strings.ToLower(b.FirstName)); c != 0 {
		return c
	}
	return strings.Compare(a.Email, b.Email)
}

func cloneProfile(p Profile) Profile {
	p.Connections = slices.Clone(p.Connections)
	if p.Connections == nil {
		p.Connections = []uuid.UUID{}
	}
	if p.GraduationYear != nil {
		year := *p.GraduationYear
		p.GraduationYear = &year
	}
	return p
}

type inMemoryAuditRepository struct {
	mu      sync.RWMutex
	entries []AuditEntry
}

// NewInMemoryAuditRepository returns an empty audit log.
func NewInMemoryAuditRepository() AuditRepository {
	return &inMemoryAuditRepository{}
}

func (m *inMemoryAuditRepository) Append(ctx context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = append(m.entries, entry)
	return nil
}

func (m *inMemoryAuditRepository) List(ctx context.Context, limit int) ([]AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]AuditEntry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0; i-- {
		out = append(out, m.entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
