package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// PostgresLogRepository stores email audit records in Postgres.
type PostgresLogRepository struct {
	db *sqlx.DB
}

// NewPostgresLogRepository constructs a repository backed by sqlx.
func NewPostgresLogRepository(db *sqlx.DB) *PostgresLogRepository {
	return &PostgresLogRepository{db: db}
}

// Append inserts one audit record.
func (r *PostgresLogRepository) Append(ctx context.Context, entry EmailLog) error {
	insert := `INSERT INTO email_logs (id, recipient, event_id, event_name, kind, status, error, requested_by, created_at)
VALUES (:id, :recipient, :event_id, :event_name, :kind, :status, :error, :requested_by, :created_at)`

	if _, err := r.db.NamedExecContext(ctx, insert, entry); err != nil {
		return fmt.Errorf("insert email log: %w", err)
	}
	return nil
}

// List returns matching records newest first.
func (r *PostgresLogRepository) List(ctx context.Context, filter LogFilter) ([]EmailLog, error) {
	query := `SELECT id, recipient, event_id, event_name, kind, status, error, requested_by, created_at FROM email_logs`
	clauses := []string{}
	args := []any{}

	if filter.Status != nil {
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.EventID != "" {
		clauses = append(clauses, fmt.Sprintf("event_id = $%d", len(args)+1))
		args = append(args, filter.EventID)
	}
	if filter.Recipient != "" {
		clauses = append(clauses, fmt.Sprintf("recipient = $%d", len(args)+1))
		args = append(args, filter.Recipient)
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, filter.Limit)
	}

	entries := []EmailLog{}
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	return entries, nil
}
