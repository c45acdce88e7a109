package store

import (
	"context"
	"errors"
	"strings"
	"testing"

	"docsamajh/pkg/core/reconcile"
	"docsamajh/pkg/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReposWithoutPool(t *testing.T) {
	ctx := context.Background()

	assert.ErrorIs(t, NewAuditRepo(nil).Add(ctx, &AuditEntry{UserID: "u"}), ErrNotInitialized)
	_, err := NewAuditRepo(nil).List(ctx, "u", 10)
	assert.ErrorIs(t, err, ErrNotInitialized)

	assert.ErrorIs(t, NewDocumentRepo(nil).Save(ctx, &ProcessedDocument{}), ErrNotInitialized)
	_, err = NewDocumentRepo(nil).List(ctx, "u", "", 10)
	assert.ErrorIs(t, err, ErrNotInitialized)

	assert.ErrorIs(t, NewReconciliationRepo(nil).Save(ctx, &ReconciliationRecord{}), ErrNotInitialized)
	_, err = NewReconciliationRepo(nil).List(ctx, "u", 10)
	assert.ErrorIs(t, err, ErrNotInitialized)

	assert.ErrorIs(t, NewStatsRepo(nil).Increment(ctx, "u", StatsDelta{Processed: 1}), ErrNotInitialized)
	_, err = NewStatsRepo(nil).Get(ctx, "u")
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = NewSessionRepo(nil).Start(ctx, "u")
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.True(t, errors.Is(NewSessionRepo(nil).End(ctx, uuid.New(), 1), ErrNotInitialized))

	assert.ErrorIs(t, Migrate(ctx, nil), ErrNotInitialized)
}

func TestSchemaEmbedded(t *testing.T) {
	for _, table := range []string{"audit_trail", "processed_documents", "user_stats", "reconciliation_history", "user_sessions"} {
		assert.True(t, strings.Contains(schemaSQL, "CREATE TABLE IF NOT EXISTS "+table), table)
	}
}

func TestSchemaVarianceColumnsUnbounded(t *testing.T) {
	assert.NotContains(t, schemaSQL, "NUMERIC(")
	assert.Contains(t, schemaSQL, "variance_percentage NUMERIC NOT NULL")
	assert.Contains(t, schemaSQL, "ALTER COLUMN variance_percentage TYPE NUMERIC")
}

func TestNewReconciliationRecord_HugeVariancePct(t *testing.T) {
	inv := models.DocumentRecord{VendorName: "Acme", TotalAmount: decimal.NewFromInt(1000000)}
	po := models.DocumentRecord{VendorName: "Acme", TotalAmount: decimal.RequireFromString("0.01")}

	rec := NewReconciliationRecord("alice", "s1", "inv.pdf", "po.pdf", reconcile.Reconcile(inv, po))
	assert.True(t, rec.VariancePct.GreaterThan(decimal.NewFromInt(1000000)), "pct %s", rec.VariancePct)
}

func TestNewReconciliationRecord(t *testing.T) {
	inv := models.DocumentRecord{VendorName: "Acme", DocumentNumber: "INV-1", TotalAmount: decimal.NewFromInt(110)}
	po := models.DocumentRecord{VendorName: "Acme", DocumentNumber: "PO-1", TotalAmount: decimal.NewFromInt(100)}
	report := reconcile.Reconcile(inv, po)

	rec := NewReconciliationRecord("alice", "s1", "inv.pdf", "po.pdf", report)
	require.NotNil(t, rec.Report)
	assert.Equal(t, reconcile.RiskHigh, rec.RiskLevel)
	assert.False(t, rec.Matched)
	assert.True(t, rec.VarianceAmount.Equal(decimal.NewFromInt(10)))
	assert.Equal(t, report.Discrepancies, rec.Discrepancies)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 100, clampLimit(0, 100))
	assert.Equal(t, 5, clampLimit(5, 100))
	assert.Equal(t, 1000, clampLimit(5000, 100))
}
