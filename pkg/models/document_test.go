package models

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmountString(t *testing.T) {
	tests := []struct {
		in   string
		want string
		ok   bool
	}{
		{"1250", "1250", true},
		{"$1,250.00", "1250", true},
		{"USD 1250.50", "1250.5", true},
		{"1 250.50 EUR", "1250.5", true},
		{"1,250", "1250", true},
		{"1.5e3", "1500", true},
		{"$-100", "-100", true},
		{"-$100", "-100", true},
		{"1 250,00", "0", false}, // ambiguous grouping
		{"1.234,56", "0", false},
		{"5-10", "0", false},
		{"Qty 12 of 20", "0", false},
		{"--5", "0", false},
		{"(100.00)", "-100", true},
		{"-42.10", "-42.1", true},
		{"€ 99", "99", true},
		{"", "0", true},
		{"N/A", "0", false},
		{"twelve", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseAmountString(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestDocumentRecord_UnmarshalInvoice(t *testing.T) {
	payload := `{
		"invoice_number": "INV-2024-001",
		"po_number": "PO-77",
		"vendor_name": " Acme Supplies ",
		"invoice_date": "03/14/2024",
		"subtotal": 1000,
		"tax_amount": "$80.00",
		"total_amount": "1,080.00",
		"currency": "USD",
		"vendor_tax_id": "12-3456789",
		"line_items": [
			{"description": "USB-C Cables", "quantity": 100, "unit_price": 10, "amount": 1000},
			{"description": null, "quantity": null, "unit_price": "n/a", "amount": 0}
		]
	}`

	var rec DocumentRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &rec))

	assert.Equal(t, "Acme Supplies", rec.VendorName)
	assert.Equal(t, "INV-2024-001", rec.DocumentNumber)
	assert.Equal(t, "PO-77", rec.POReference)
	assert.Equal(t, "03/14/2024", rec.Date)
	assert.True(t, rec.TotalAmount.Equal(decimal.NewFromInt(1080)))
	assert.True(t, rec.TaxAmount.Equal(decimal.NewFromInt(80)))
	require.Len(t, rec.LineItems, 2)
	assert.Equal(t, "USB-C Cables", rec.LineItems[0].Description)
	assert.True(t, rec.LineItems[0].Quantity.Equal(decimal.NewFromInt(100)))

	assert.Equal(t, []string{"vendor_tax_id"}, rec.ExtraKeys())
	assert.Equal(t, []UnreadableField{{Field: "line_items[1].unit_price", Raw: `"n/a"`}}, rec.AllUnreadable())
}

func TestDocumentRecord_UnmarshalPurchaseOrder(t *testing.T) {
	var rec DocumentRecord
	require.NoError(t, json.Unmarshal([]byte(`{"po_number": 4411, "vendor_name": "Acme", "order_date": "2024-01-02", "total_amount": 500}`), &rec))

	assert.Equal(t, "4411", rec.DocumentNumber)
	assert.Empty(t, rec.POReference)
	assert.Equal(t, "2024-01-02", rec.Date)
	assert.Nil(t, rec.LineItems)
	assert.Empty(t, rec.AllUnreadable())
}

func TestDocumentRecord_SparsePayloadNeverFails(t *testing.T) {
	var rec DocumentRecord
	require.NoError(t, json.Unmarshal([]byte(`{}`), &rec))
	assert.True(t, rec.TotalAmount.IsZero())
	assert.Empty(t, rec.VendorName)

	require.NoError(t, json.Unmarshal([]byte(`{"total_amount": {"value": 3}, "line_items": "none"}`), &rec))
	assert.True(t, rec.TotalAmount.IsZero())
	assert.Len(t, rec.AllUnreadable(), 2)

	assert.Error(t, json.Unmarshal([]byte(`[1,2]`), &rec))
}

func TestDocumentRecord_RangeAmountIsUnreadable(t *testing.T) {
	var rec DocumentRecord
	require.NoError(t, json.Unmarshal([]byte(`{"total_amount": "5-10", "line_items": [{"description": "Bolts", "quantity": "Qty 12 of 20"}]}`), &rec))

	assert.True(t, rec.TotalAmount.IsZero())
	assert.Equal(t, []UnreadableField{
		{Field: "total_amount", Raw: `"5-10"`},
		{Field: "line_items[0].quantity", Raw: `"Qty 12 of 20"`},
	}, rec.AllUnreadable())
}

func TestDocumentRecord_MarshalKeepsPassthrough(t *testing.T) {
	var rec DocumentRecord
	require.NoError(t, json.Unmarshal([]byte(`{"vendor_name":"Acme","total_amount":10,"payment_terms":"Net 30"}`), &rec))

	out, err := json.Marshal(rec)
	require.NoError(t, err)

	var back map[string]interface{}
	require.NoError(t, json.Unmarshal(out, &back))
	assert.Equal(t, "Net 30", back["payment_terms"])
	assert.Equal(t, "Acme", back["vendor_name"])
	assert.Equal(t, []interface{}{}, back["line_items"])
}

func TestParseDocumentKind(t *testing.T) {
	for in, want := range map[string]DocumentKind{
		"invoice":        KindInvoice,
		"Purchase Order": KindPurchaseOrder,
		"po":             KindPurchaseOrder,
		"Bank Statement": KindBankStatement,
	} {
		got, err := ParseDocumentKind(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	_, err := ParseDocumentKind("receipt")
	assert.Error(t, err)
}
