package members

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresRepository persists profiles to Postgres.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository constructs a profile repository backed by sqlx.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const profileSelect = `
SELECT
    id,
    email,
    role,
    approved,
    first_name,
    last_name,
    phone,
    graduation_year,
    department,
    occupation,
    company,
    city,
    bio,
    photo_url,
    connections,
    created_at,
    updated_at
FROM profiles
`

type profileRow struct {
	ID             uuid.UUID      `db:"id"`
	Email          string         `db:"email"`
	Role           Role           `db:"role"`
	Approved       bool           `db:"approved"`
	FirstName      string         `db:"first_name"`
	LastName       string         `db:"last_name"`
	Phone          string         `db:"phone"`
	GraduationYear sql.NullInt64  `db:"graduation_year"`
	Department     string         `db:"department"`
	Occupation     string         `db:"occupation"`
	Company        string         `db:"company"`
	City           string         `db:"city"`
	Bio            string         `db:"bio"`
	PhotoURL       string         `db:"photo_url"`
	Connections    pq.StringArray `db:"connections"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
}

func (r profileRow) toProfile() Profile {
	profile := Profile{
		ID:          r.ID,
		Email:       r.Email,
		Role:        r.Role,
		Approved:    r.Approved,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		Phone:       r.Phone,
		Department:  r.Department,
		Occupation:  r.Occupation,
		Company:     r.Company,
		City:        r.City,
		Bio:         r.Bio,
		PhotoURL:    r.PhotoURL,
		Connections: make([]uuid.UUID, 0, len(r.Connections)),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
	if r.GraduationYear.Valid {
		year := int(r.GraduationYear.Int64)
		profile.GraduationYear = &year
	}
	for _, raw := range r.Connections {
		if id, err := uuid.Parse(raw); err == nil {
			profile.Connections = append(profile.Connections, id)
		}
	}
	return profile
}

func connectionArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Profile, error) {
	var row profileRow
	if err := r.db.GetContext(ctx, &row, profileSelect+` WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return row.toProfile(), nil
}

func (r *PostgresRepository) Set(ctx context.Context, p Profile) error {
	const query = `
		INSERT INTO profiles (
			id, email, role, approved, first_name, last_name, phone, graduation_year, department,
			occupation, company, city, bio, photo_url, connections, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			role = EXCLUDED.role,
			approved = EXCLUDED.approved,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			phone = EXCLUDED.phone,
			graduation_year = EXCLUDED.graduation_year,
			department = EXCLUDED.department,
			occupation = EXCLUDED.occupation,
			company = EXCLUDED.company,
			city = EXCLUDED.city,
			bio = EXCLUDED.bio,
			photo_url = EXCLUDED.photo_url,
			connections = EXCLUDED.connections,
			updated_at = EXCLUDED.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		p.ID, p.Email, p.Role, p.Approved, p.FirstName, p.LastName, p.Phone, p.GraduationYear, p.Department,
		p.Occupation, p.Company, p.City, p.Bio, p.PhotoURL, connectionArray(p.Connections), p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("set profile: %w", err)
	}
	return nil
}

func (r *PostgresRepository) SetIfAbsent(ctx context.Context, p Profile) (bool, error) {
	const query = `
		INSERT INTO profiles (id, email, role, approved, connections, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	result, err := r.db.ExecContext(ctx, query, p.ID, p.Email, p.Role, p.Approved, connectionArray(p.Connections), p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("insert profile: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return rows == 1, nil
}

// Update applies fields under a row lock so concurrent writers see whole-call last-write-wins.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, fields ProfileFields, now time.Time) (Profile, error) {
	return r.mutate(ctx, id, now, fields.Apply, nil)
}

func (r *PostgresRepository) UpdateStanding(ctx context.Context, id uuid.UUID, standing Standing, now time.Time) (Profile, error) {
	return r.mutate(ctx, id, now, standing.Apply, nil)
}

// UpdateStandingAudited commits the standing change only together with its audit row.
func (r *PostgresRepository) UpdateStandingAudited(ctx context.Context, id uuid.UUID, standing Standing, now time.Time, entry AuditEntry) (Profile, error) {
	return r.mutate(ctx, id, now, standing.Apply, func(tx *sqlx.Tx) error {
		return insertAuditEntry(ctx, tx, entry)
	})
}

func (r *PostgresRepository) mutate(ctx context.Context, id uuid.UUID, now time.Time, apply func(*Profile), inTx func(*sqlx.Tx) error) (Profile, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return Profile{}, fmt.Errorf("begin profile update: %w", err)
	}
	defer tx.Rollback()

	var row profileRow
	if err := tx.GetContext(ctx, &row, profileSelect+` WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, ErrNotFound
		}
		return Profile{}, fmt.Errorf("lock profile: %w", err)
	}

	profile := row.toProfile()
	apply(&profile)
	profile.UpdatedAt = now

	const query = `
		UPDATE profiles SET
			role = $2, approved = $3, first_name = $4, last_name = $5, phone = $6, graduation_year = $7,
			department = $8, occupation = $9, company = $10, city = $11, bio = $12, photo_url = $13, updated_at = $14
		WHERE id = $1
	`
	if _, err := tx.ExecContext(ctx, query,
		profile.ID, profile.Role, profile.Approved, profile.FirstName, profile.LastName, profile.Phone,
		profile.GraduationYear, profile.Department, profile.Occupation, profile.Company, profile.City,
		profile.Bio, profile.PhotoURL, profile.UpdatedAt,
	); err != nil {
		return Profile{}, fmt.Errorf("update profile: %w", err)
	}
	if inTx != nil {
		if err := inTx(tx); err != nil {
			return Profile{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Profile{}, fmt.Errorf("commit profile update: %w", err)
	}
	return profile, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin profile delete: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE profiles SET connections = array_remove(connections, $1::text) WHERE $1::text = ANY(connections)`,
		id.String(),
	); err != nil {
		return fmt.Errorf("remove dangling connections: %w", err)
	}
	return tx.Commit()
}

func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) ([]Profile, error) {
	query := profileSelect
	clauses := []string{}
	args := []any{}

	if opts.Approved != nil {
		clauses = append(clauses, fmt.Sprintf("approved = $%d", len(args)+1))
		args = append(args, *opts.Approved)
	}
	if opts.Role != nil {
		clauses = append(clauses, fmt.Sprintf("role = $%d", len(args)+1))
		args = append(args, *opts.Role)
	}
	if opts.GraduationYear != nil {
		clauses = append(clauses, fmt.Sprintf("graduation_year = $%d", len(args)+1))
		args = append(args, *opts.GraduationYear)
	}
	if search := strings.TrimSpace(opts.Query); search != "" {
		n := len(args) + 1
		clauses = append(clauses, fmt.Sprintf(
			"(first_name ILIKE $%[1]d OR last_name ILIKE $%[1]d OR company ILIKE $%[1]d OR occupation ILIKE $%[1]d OR city ILIKE $%[1]d OR department ILIKE $%[1]d)", n))
		args = append(args, "%"+search+"%")
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY LOWER(last_name), LOWER(first_name), email"
	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows := []profileRow{}
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}

	out := make([]Profile, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toProfile())
	}
	return out, nil
}

func (r *PostgresRepository) AddConnection(ctx context.Context, id, other uuid.UUID, now time.Time) error {
	const query = `
		UPDATE profiles
		SET connections = CASE WHEN $2::text = ANY(connections) THEN connections ELSE array_append(connections, $2::text) END,
		    updated_at = $3
		WHERE id = $1
	`
	return r.execOne(ctx, query, id, other.String(), now)
}

func (r *PostgresRepository) RemoveConnection(ctx context.Context, id, other uuid.UUID, now time.Time) error {
	const query = `UPDATE profiles SET connections = array_remove(connections, $2::text), updated_at = $3 WHERE id = $1`
	return r.execOne(ctx, query, id, other.String(), now)
}

func (r *PostgresRepository) execOne(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update connections: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// PostgresAuditRepository persists audit entries to Postgres.
type PostgresAuditRepository struct {
	db *sqlx.DB
}

// NewPostgresAuditRepository constructs an audit repository backed by sqlx.
func NewPostgresAuditRepository(db *sqlx.DB) *PostgresAuditRepository {
	return &PostgresAuditRepository{db: db}
}

func (r *PostgresAuditRepository) Append(ctx context.Context, entry AuditEntry) error {
	return insertAuditEntry(ctx, r.db, entry)
}

func insertAuditEntry(ctx context.Context, db sqlx.ExecerContext, entry AuditEntry) error {
	const query = `
		INSERT INTO audit_log (id, actor, action, subject_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	if _, err := db.ExecContext(ctx, query, entry.ID, entry.Actor, entry.Action, entry.SubjectID, entry.Detail, entry.CreatedAt); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

func (r *PostgresAuditRepository) List(ctx context.Context, limit int) ([]AuditEntry, error) {
	query := `SELECT id, actor, action, subject_id, detail, created_at FROM audit_log ORDER BY created_at DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows := []struct {
		ID        uuid.UUID `db:"id"`
		Actor     string    `db:"actor"`
		Action    string    `db:"action"`
		SubjectID uuid.UUID `db:"subject_id"`
		Detail    string    `db:"detail"`
		CreatedAt time.Time `db:"created_at"`
	}{}
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}

	out := make([]AuditEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, AuditEntry(row))
	}
	return out, nil
}
