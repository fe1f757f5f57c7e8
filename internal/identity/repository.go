package identity

import (
	"context"

	"github.com/google/uuid"
)

// AccountRepository defines persistence for credential records.
type AccountRepository interface {
	Create(ctx context.Context, account Account) error
	GetByID(ctx context.Context, id uuid.UUID) (Account, error)
	GetByEmail(ctx context.Context, email string) (Account, error)
	GetByGoogleSubject(ctx context.Context, subject string) (Account, error)
	Update(ctx context.Context, account Account) error
	Delete(ctx context.Context, id uuid.UUID) error
}
