package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEntry is one row of a user's audit trail.
type AuditEntry struct {
	ID        uuid.UUID `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	FileName  string    `json:"file_name,omitempty"`
	DocType   string    `json:"doc_type,omitempty"`
	Status    string    `json:"status"`
	Details   string    `json:"details,omitempty"`
}

// AuditRepo appends to and reads the audit trail.
type AuditRepo struct {
	pool *pgxpool.Pool
}

func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Add stores e, assigning an ID and timestamp when missing.
func (r *AuditRepo) Add(ctx context.Context, e *AuditEntry) error {
	if r.pool == nil {
		return ErrNotInitialized
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO audit_trail (audit_id, user_id, session_id, timestamp, action, file_name, doc_type, status, details)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		e.ID, e.UserID, e.SessionID, e.Timestamp, e.Action, e.FileName, e.DocType, e.Status, e.Details)
	if err != nil {
		return fmt.Errorf("failed to add audit entry: %w", err)
	}
	return nil
}

// List returns the newest entries for userID first.
func (r *AuditRepo) List(ctx context.Context, userID string, limit int) ([]AuditEntry, error) {
	if r.pool == nil {
		return nil, ErrNotInitialized
	}

	rows, err := r.pool.Query(ctx, `
		SELECT audit_id, user_id, COALESCE(session_id, ''), timestamp, action,
		       COALESCE(file_name, ''), COALESCE(doc_type, ''), COALESCE(status, ''), COALESCE(details, '')
		FROM audit_trail
		WHERE user_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`, userID, clampLimit(limit, 100))
	if err != nil {
		return nil, fmt.Errorf("failed to query audit trail: %w", err)
	}
	defer rows.Close()

	entries := []AuditEntry{}
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.Timestamp, &e.Action,
			&e.FileName, &e.DocType, &e.Status, &e.Details); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
