package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

// Start opens a session for userID and returns its ID.
func (r *SessionRepo) Start(ctx context.Context, userID string) (uuid.UUID, error) {
	if r.pool == nil {
		return uuid.Nil, ErrNotInitialized
	}
	id := uuid.New()
	if _, err := r.pool.Exec(ctx,
		`INSERT INTO user_sessions (session_id, user_id) VALUES ($1, $2)`, id, userID); err != nil {
		return uuid.Nil, fmt.Errorf("failed to start session: %w", err)
	}
	return id, nil
}

// End closes the session and records how many documents it processed.
func (r *SessionRepo) End(ctx context.Context, sessionID uuid.UUID, documentsProcessed int) error {
	if r.pool == nil {
		return ErrNotInitialized
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE user_sessions SET session_end = NOW(), documents_processed = $2
		WHERE session_id = $1 AND session_end IS NULL`, sessionID, documentsProcessed)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %s not found or already ended", sessionID)
	}
	return nil
}
