package identity

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"
)

type inMemoryRepository struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]Account
}

// NewInMemoryRepository returns an empty account repository.
func NewInMemoryRepository() AccountRepository {
	return &inMemoryRepository{accounts: make(map[uuid.UUID]Account)}
}

func (r *inMemoryRepository) Create(ctx context.Context, account Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.accounts {
		if strings.EqualFold(existing.Email, account.Email) {
			return ErrEmailInUse
		}
	}
	r.accounts[account.ID] = account
	return nil
}

func (r *inMemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[id]
	if !ok {
		return Account{}, ErrAccountNotFound
	}
	return account, nil
}

func (r *inMemoryRepository) GetByEmail(ctx context.Context, email string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, account := range r.accounts {
		if strings.EqualFold(account.Email, email) {
			return account, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (r *inMemoryRepository) GetByGoogleSubject(ctx context.Context, subject string) (Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if subject == "" {
		return Account{}, ErrAccountNotFound
	}
	for _, account := range r.accounts {
		if account.GoogleSubject == subject {
			return account, nil
		}
	}
	return Account{}, ErrAccountNotFound
}

func (r *inMemoryRepository) Update(ctx context.Context, account Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[account.ID]; !ok {
		return ErrAccountNotFound
	}
	r.accounts[account.ID] = account
	return nil
}

func (r *inMemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[id]; !ok {
		return ErrAccountNotFound
	}
	delete(r.accounts, id)
	return nil
}
