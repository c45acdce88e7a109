package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ProcessedDocument is an extraction kept for later review.
type ProcessedDocument struct {
	ID            uuid.UUID       `json:"id"`
	UserID        string          `json:"user_id"`
	SessionID     string          `json:"session_id,omitempty"`
	FileName      string          `json:"file_name"`
	DocType       string          `json:"doc_type"`
	ProcessedAt   time.Time       `json:"processed_at"`
	ExtractedData json.RawMessage `json:"extracted_data"`
	Metadata      json.RawMessage `json:"metadata"`
	Status        string          `json:"status"`
}

type DocumentRepo struct {
	pool *pgxpool.Pool
}

func NewDocumentRepo(pool *pgxpool.Pool) *DocumentRepo {
	return &DocumentRepo{pool: pool}
}

func (r *DocumentRepo) Save(ctx context.Context, d *ProcessedDocument) error {
	if r.pool == nil {
		return ErrNotInitialized
	}
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	if d.ProcessedAt.IsZero() {
		d.ProcessedAt = time.Now().UTC()
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO processed_documents (doc_id, user_id, session_id, file_name, doc_type, processed_at, extracted_data, metadata, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		d.ID, d.UserID, d.SessionID, d.FileName, d.DocType, d.ProcessedAt,
		jsonOrNull(d.ExtractedData), jsonOrNull(d.Metadata), d.Status)
	if err != nil {
		return fmt.Errorf("failed to save processed document: %w", err)
	}
	return nil
}

// List returns userID's documents, newest first. docType filters when set.
func (r *DocumentRepo) List(ctx context.Context, userID, docType string, limit int) ([]ProcessedDocument, error) {
	if r.pool == nil {
		return nil, ErrNotInitialized
	}

	rows, err := r.pool.Query(ctx, `
		SELECT doc_id, user_id, COALESCE(session_id, ''), file_name, doc_type, processed_at,
		       COALESCE(extracted_data, 'null'::jsonb), COALESCE(metadata, 'null'::jsonb), COALESCE(status, '')
		FROM processed_documents
		WHERE user_id = $1 AND ($2 = '' OR doc_type = $2)
		ORDER BY processed_at DESC
		LIMIT $3`, userID, docType, clampLimit(limit, 50))
	if err != nil {
		return nil, fmt.Errorf("failed to query processed documents: %w", err)
	}
	defer rows.Close()

	docs := []ProcessedDocument{}
	for rows.Next() {
		var d ProcessedDocument
		var data, meta []byte
		if err := rows.Scan(&d.ID, &d.UserID, &d.SessionID, &d.FileName, &d.DocType, &d.ProcessedAt,
			&data, &meta, &d.Status); err != nil {
			return nil, fmt.Errorf("failed to scan processed document: %w", err)
		}
		d.ExtractedData, d.Metadata = data, meta
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

func jsonOrNull(raw json.RawMessage) []byte {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
