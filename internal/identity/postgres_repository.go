package identity

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// PostgresRepository implements AccountRepository using PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const accountColumns = `id, email, password_hash, google_subject, created_at, updated_at, last_sign_in_at`

func (r *PostgresRepository) Create(ctx context.Context, account Account) error {
	const query = `
		INSERT INTO accounts (id, email, password_hash, google_subject, created_at, updated_at, last_sign_in_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.GoogleSubject,
		account.CreatedAt,
		account.UpdatedAt,
		account.LastSignInAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrEmailInUse
	}
	return err
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (Account, error) {
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE LOWER(email) = LOWER($1)`, email)
}

func (r *PostgresRepository) GetByGoogleSubject(ctx context.Context, subject string) (Account, error) {
	if subject == "" {
		return Account{}, ErrAccountNotFound
	}
	return r.getOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE google_subject = $1`, subject)
}

func (r *PostgresRepository) Update(ctx context.Context, account Account) error {
	const query = `
		UPDATE accounts
		SET email = $2, password_hash = $3, google_subject = $4, updated_at = $5, last_sign_in_at = $6
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query,
		account.ID,
		account.Email,
		account.PasswordHash,
		account.GoogleSubject,
		account.UpdatedAt,
		account.LastSignInAt,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *PostgresRepository) getOne(ctx context.Context, query string, arg any) (Account, error) {
	var row accountRow
	if err := r.db.GetContext(ctx, &row, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return row.toAccount(), nil
}

func requireAffected(result sql.Result) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrAccountNotFound
	}
	return nil
}

// accountRow is a database row representation of Account.
type accountRow struct {
	ID            uuid.UUID    `db:"id"`
	Email         string       `db:"email"`
	PasswordHash  string       `db:"password_hash"`
	GoogleSubject string       `db:"google_subject"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
	LastSignInAt  sql.NullTime `db:"last_sign_in_at"`
}

func (r accountRow) toAccount() Account {
	account := Account{
		ID:            r.ID,
		Email:         r.Email,
		PasswordHash:  r.PasswordHash,
		GoogleSubject: r.GoogleSubject,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
	if r.LastSignInAt.Valid {
		t := r.LastSignInAt.Time
		account.LastSignInAt = &t
	}
	return account
}
