package content

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// PostgresRepository persists content entries to Postgres.
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository constructs a repository backed by sqlx.
func NewPostgresRepository(db *sqlx.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectEntries = `
SELECT id, kind, title, summary, body, image_url, link_url, category, class_year, author_id, published, created_at, updated_at
FROM content_entries`

// Create inserts a new entry.
func (r *PostgresRepository) Create(ctx context.Context, entry Entry) (Entry, error) {
	insert := `INSERT INTO content_entries (id, kind, title, summary, body, image_url, link_url, category, class_year, author_id, published, created_at, updated_at)
VALUES (:id, :kind, :title, :summary, :body, :image_url, :link_url, :category, :class_year, :author_id, :published, :created_at, :updated_at)`

	if _, err := r.db.NamedExecContext(ctx, insert, entry); err != nil {
		return Entry{}, fmt.Errorf("insert content entry: %w", err)
	}
	return r.Get(ctx, entry.ID)
}

// Get retrieves one entry by id.
func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (Entry, error) {
	var entry Entry
	if err := r.db.GetContext(ctx, &entry, selectEntries+" WHERE id = $1", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, fmt.Errorf("get content entry: %w", err)
	}
	return entry, nil
}

// Update rewrites the editable columns of an entry.
func (r *PostgresRepository) Update(ctx context.Context, entry Entry) (Entry, error) {
	query := `UPDATE content_entries
SET title = :title,
    summary = :summary,
    body = :body,
    image_url = :image_url,
    link_url = :link_url,
    category = :category,
    class_year = :class_year,
    published = :published,
    updated_at = :updated_at
WHERE id = :id`

	res, err := r.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		return Entry{}, fmt.Errorf("update content entry: %w", err)
	}
	if rows, err := res.RowsAffected(); err == nil && rows == 0 {
		return Entry{}, ErrNotFound
	}
	return r.Get(ctx, entry.ID)
}

// Delete removes an entry.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM content_entries WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete content entry: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete content entry rows: %w", err)
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns entries newest first.
func (r *PostgresRepository) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	query := selectEntries
	clauses := []string{}
	args := []any{}

	if opts.Kind != "" {
		clauses = append(clauses, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, opts.Kind)
	}
	if !opts.IncludeUnpublished {
		clauses = append(clauses, "published = TRUE")
	}
	if opts.AuthorID != nil {
		clauses = append(clauses, fmt.Sprintf("author_id = $%d", len(args)+1))
		args = append(args, *opts.AuthorID)
	}

	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if opts.Limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, opts.Limit)
	}

	entries := []Entry{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list content entries: %w", err)
	}
	return entries, nil
}
