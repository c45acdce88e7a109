package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"docsamajh/pkg/core/reconcile"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

// ReconciliationRecord is a stored comparison outcome.
type ReconciliationRecord struct {
	ID              uuid.UUID           `json:"id"`
	UserID          string              `json:"user_id"`
	SessionID       string              `json:"session_id,omitempty"`
	InvoiceFile     string              `json:"invoice_file"`
	POFile          string              `json:"po_file"`
	ReconciledAt    time.Time           `json:"reconciled_at"`
	RiskLevel       reconcile.RiskLevel `json:"risk_level"`
	Matched         bool                `json:"matched"`
	VarianceAmount  decimal.Decimal     `json:"variance_amount"`
	VariancePct     decimal.Decimal     `json:"variance_percentage"`
	ComplianceScore int                 `json:"compliance_score"`
	Discrepancies   []string            `json:"discrepancies"`
	Report          *reconcile.Report   `json:"report,omitempty"`
}

// NewReconciliationRecord fills the summary columns from report.
func NewReconciliationRecord(userID, sessionID, invoiceFile, poFile string, report reconcile.Report) *ReconciliationRecord {
	return &ReconciliationRecord{
		UserID:          userID,
		SessionID:       sessionID,
		InvoiceFile:     invoiceFile,
		POFile:          poFile,
		RiskLevel:       report.RiskLevel,
		Matched:         report.Matched,
		VarianceAmount:  report.AmountVariance,
		VariancePct:     report.AmountVariancePct,
		ComplianceScore: report.ComplianceScore,
		Discrepancies:   report.Discrepancies,
		Report:          &report,
	}
}

type ReconciliationRepo struct {
	pool *pgxpool.Pool
}

func NewReconciliationRepo(pool *pgxpool.Pool) *ReconciliationRepo {
	return &ReconciliationRepo{pool: pool}
}

func (r *ReconciliationRepo) Save(ctx context.Context, rec *ReconciliationRecord) error {
	if r.pool == nil {
		return ErrNotInitialized
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.ReconciledAt.IsZero() {
		rec.ReconciledAt = time.Now().UTC()
	}

	discrepancies, err := json.Marshal(rec.Discrepancies)
	if err != nil {
		return fmt.Errorf("failed to marshal discrepancies: %w", err)
	}
	var report []byte
	if rec.Report != nil {
		if report, err = json.Marshal(rec.Report); err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO reconciliation_history (
			recon_id, user_id, session_id, invoice_file, po_file, reconciled_at,
			risk_level, matched, variance_amount, variance_percentage, compliance_score,
			discrepancies, report
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		rec.ID, rec.UserID, rec.SessionID, rec.InvoiceFile, rec.POFile, rec.ReconciledAt,
		string(rec.RiskLevel), rec.Matched, rec.VarianceAmount.String(), rec.VariancePct.String(), rec.ComplianceScore,
		discrepancies, report)
	if err != nil {
		return fmt.Errorf("failed to save reconciliation: %w", err)
	}
	return nil
}

// List returns userID's reconciliations, newest first. The full report is
// not loaded.
func (r *ReconciliationRepo) List(ctx context.Context, userID string, limit int) ([]ReconciliationRecord, error) {
	if r.pool == nil {
		return nil, ErrNotInitialized
	}

	rows, err := r.pool.Query(ctx, `
		SELECT recon_id, user_id, COALESCE(session_id, ''), COALESCE(invoice_file, ''), COALESCE(po_file, ''),
		       reconciled_at, risk_level, matched, variance_amount::text, variance_percentage::text,
		       compliance_score, discrepancies
		FROM reconciliation_history
		WHERE user_id = $1
		ORDER BY reconciled_at DESC
		LIMIT $2`, userID, clampLimit(limit, 50))
	if err != nil {
		return nil, fmt.Errorf("failed to query reconciliations: %w", err)
	}
	defer rows.Close()

	out := []ReconciliationRecord{}
	for rows.Next() {
		var rec ReconciliationRecord
		var risk, variance, pct string
		var discrepancies []byte
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.SessionID, &rec.InvoiceFile, &rec.POFile,
			&rec.ReconciledAt, &risk, &rec.Matched, &variance, &pct,
			&rec.ComplianceScore, &discrepancies); err != nil {
			return nil, fmt.Errorf("failed to scan reconciliation: %w", err)
		}
		rec.RiskLevel = reconcile.RiskLevel(risk)
		rec.VarianceAmount, _ = decimal.NewFromString(variance)
		rec.VariancePct, _ = decimal.NewFromString(pct)
		if err := json.Unmarshal(discrepancies, &rec.Discrepancies); err != nil {
			return nil, fmt.Errorf("failed to decode discrepancies: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
