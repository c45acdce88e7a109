package compliance

import (
	"testing"

	"docsamajh/pkg/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func invoice(number, vendor, date, subtotal, tax, total string) models.DocumentRecord {
	return models.DocumentRecord{
		Kind:           models.KindInvoice,
		DocumentNumber: number,
		VendorName:     vendor,
		Date:           date,
		Subtotal:       decimal.RequireFromString(subtotal),
		TaxAmount:      decimal.RequireFromString(tax),
		TotalAmount:    decimal.RequireFromString(total),
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		in       models.DocumentRecord
		status   Status
		score    int
		issues   []string
		warnings []string
		approval bool
	}{
		{
			name:     "clean invoice",
			in:       invoice("INV-1", "Acme", "2024-03-01", "1000", "80", "1080"),
			status:   StatusPass,
			score:    100,
			issues:   []string{},
			warnings: []string{},
		},
		{
			name:   "missing fields and total",
			in:     invoice("", "", "", "0", "0", "0"),
			status: StatusFail,
			score:  0,
			issues: []string{
				"Missing required field: invoice_number",
				"Missing required field: vendor_name",
				"Missing required field: invoice_date",
				"Missing required field: total_amount",
				"Total amount must be positive",
			},
			warnings: []string{},
			approval: true,
		},
		{
			name:     "tax arithmetic off",
			in:       invoice("INV-2", "Acme", "2024-03-01", "1000", "80", "1100"),
			status:   StatusFail,
			score:    80,
			issues:   []string{"Tax calculation error: 1000.00 + 80.00 ≠ 1100.00"},
			warnings: []string{},
			approval: true,
		},
		{
			name:     "high tax rate and large amount",
			in:       invoice("INV-3", "Acme", "2024-03-01", "1000000", "250000", "1250000"),
			status:   StatusPass,
			score:    90,
			issues:   []string{},
			warnings: []string{"Unusually high tax rate: 25.0%", "Large invoice amount - requires additional approval"},
			approval: true,
		},
		{
			name:     "negative tax",
			in:       invoice("INV-4", "Acme", "2024-03-01", "100", "-5", "95"),
			status:   StatusFail,
			score:    80,
			issues:   []string{"Negative tax amount"},
			warnings: []string{},
			approval: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Check(tt.in)
			assert.Equal(t, tt.status, got.Status)
			assert.Equal(t, tt.score, got.Score)
			assert.Equal(t, tt.issues, got.CriticalIssues)
			assert.Equal(t, tt.warnings, got.Warnings)
			assert.Equal(t, tt.approval, got.RequiresApproval)
		})
	}
}
