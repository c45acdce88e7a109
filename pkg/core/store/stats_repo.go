package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// StatsDelta is added to a user's running totals.
type StatsDelta struct {
	Processed  int
	Matched    int
	Flagged    int
	Invoices   int
	POs        int
	Statements int
}

// UserStats are a user's running totals.
type UserStats struct {
	UserID          string    `json:"user_id"`
	TotalProcessed  int       `json:"total_processed"`
	TotalMatched    int       `json:"total_matched"`
	TotalFlagged    int       `json:"total_flagged"`
	TotalInvoices   int       `json:"total_invoices"`
	TotalPOs        int       `json:"total_pos"`
	TotalStatements int       `json:"total_statements"`
	LastUpdated     time.Time `json:"last_updated"`
}

type StatsRepo struct {
	pool *pgxpool.Pool
}

func NewStatsRepo(pool *pgxpool.Pool) *StatsRepo {
	return &StatsRepo{pool: pool}
}

// Increment upserts the user's row and adds d.
func (r *StatsRepo) Increment(ctx context.Context, userID string, d StatsDelta) error {
	if r.pool == nil {
		return ErrNotInitialized
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO user_stats (user_id, total_processed, total_matched, total_flagged,
		                        total_invoices, total_pos, total_statements, last_updated)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (user_id)
		DO UPDATE SET
			total_processed  = user_stats.total_processed + EXCLUDED.total_processed,
			total_matched    = user_stats.total_matched + EXCLUDED.total_matched,
			total_flagged    = user_stats.total_flagged + EXCLUDED.total_flagged,
			total_invoices   = user_stats.total_invoices + EXCLUDED.total_invoices,
			total_pos        = user_stats.total_pos + EXCLUDED.total_pos,
			total_statements = user_stats.total_statements + EXCLUDED.total_statements,
			last_updated     = NOW()`,
		userID, d.Processed, d.Matched, d.Flagged, d.Invoices, d.POs, d.Statements)
	if err != nil {
		return fmt.Errorf("failed to update user stats: %w", err)
	}
	return nil
}

// Get returns the user's totals; an unknown user has all zeros.
func (r *StatsRepo) Get(ctx context.Context, userID string) (*UserStats, error) {
	if r.pool == nil {
		return nil, ErrNotInitialized
	}

	s := &UserStats{UserID: userID}
	err := r.pool.QueryRow(ctx, `
		SELECT total_processed, total_matched, total_flagged, total_invoices, total_pos, total_statements, last_updated
		FROM user_stats WHERE user_id = $1`, userID).
		Scan(&s.TotalProcessed, &s.TotalMatched, &s.TotalFlagged, &s.TotalInvoices, &s.TotalPOs, &s.TotalStatements, &s.LastUpdated)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to load user stats: %w", err)
	}
	return s, nil
}
