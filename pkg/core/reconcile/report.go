package reconcile

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// RiskLevel is the triage bucket for a reconciled pair.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

const (
	RecommendApprove = "APPROVE - Documents match"
	RecommendReview  = "REVIEW - Minor discrepancies found"
	RecommendHold    = "HOLD - Significant discrepancies require investigation"
)

// RecommendationFor maps a risk level to its fixed recommendation text.
func RecommendationFor(level RiskLevel) string {
	switch level {
	case RiskLow:
		return RecommendApprove
	case RiskMedium:
		return RecommendReview
	default:
		return RecommendHold
	}
}

// Report is the outcome of one comparison. It is built once by
// ReconcileWithPolicy and not modified afterwards.
type Report struct {
	InvoiceNumber string          `json:"invoice_number"`
	PONumber      string          `json:"po_number"`
	InvoiceVendor string          `json:"invoice_vendor"`
	POVendor      string          `json:"po_vendor"`
	Currency      string          `json:"currency,omitempty"`
	InvoiceTotal  decimal.Decimal `json:"invoice_total"`
	POTotal       decimal.Decimal `json:"po_total"`

	Matched           bool            `json:"matched"`
	VendorMatched     bool            `json:"vendor_matched"`
	AmountVariance    decimal.Decimal `json:"amount_variance"`
	AmountVariancePct decimal.Decimal `json:"amount_variance_pct"`
	MatchedLineItems  int             `json:"matched_line_items"`
	TotalLineItems    int             `json:"total_line_items"`
	LineItemsMatched  string          `json:"line_items_matched"` // "matched/total"
	Discrepancies     []string        `json:"discrepancies"`
	RiskLevel         RiskLevel       `json:"risk_level"`
	ComplianceScore   int             `json:"compliance_score"`
	Recommendation    string          `json:"recommendation"`
}

// Flagged reports whether the pair needs investigation.
func (r Report) Flagged() bool {
	return r.RiskLevel == RiskHigh
}

// Vendor returns the vendor name for display, preferring the invoice side.
func (r Report) Vendor() string {
	if r.InvoiceVendor != "" {
		return r.InvoiceVendor
	}
	return r.POVendor
}

// CSVHeader is the column list matching CSVRecord.
func CSVHeader() []string {
	return []string{
		"invoice_number", "po_number", "vendor", "invoice_total", "po_total",
		"amount_variance", "amount_variance_pct", "line_items_matched",
		"risk_level", "compliance_score", "matched", "recommendation", "discrepancies",
	}
}

// CSVRecord renders the report as one export row.
func (r Report) CSVRecord() []string {
	return []string{
		r.InvoiceNumber,
		r.PONumber,
		r.Vendor(),
		r.InvoiceTotal.StringFixed(2),
		r.POTotal.StringFixed(2),
		r.AmountVariance.StringFixed(2),
		r.AmountVariancePct.StringFixed(2),
		r.LineItemsMatched,
		string(r.RiskLevel),
		strconv.Itoa(r.ComplianceScore),
		strconv.FormatBool(r.Matched),
		r.Recommendation,
		strings.Join(r.Discrepancies, "; "),
	}
}
