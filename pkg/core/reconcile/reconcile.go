// Package reconcile compares an invoice against its purchase order and grades
// the pair. Everything here is pure: no I/O, no shared state, no errors.
package reconcile

import (
	"fmt"
	"strings"

	"docsamajh/pkg/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

type discrepancyKind int

const (
	kindVendor discrepancyKind = iota
	kindAmount
	kindZeroBaseline
	kindMissing
	kindQuantity
	kindPrice
	kindData
)

type finding struct {
	kind    discrepancyKind
	message string
}

type findings []finding

func (f *findings) add(kind discrepancyKind, format string, args ...interface{}) {
	*f = append(*f, finding{kind: kind, message: fmt.Sprintf(format, args...)})
}

func (f findings) count(kinds ...discrepancyKind) int {
	n := 0
	for _, x := range f {
		for _, k := range kinds {
			if x.kind == k {
				n++
			}
		}
	}
	return n
}

func (f findings) messages() []string {
	out := make([]string, len(f))
	for i, x := range f {
		out[i] = x.message
	}
	return out
}

// Pair is one invoice/PO pair for Batch.
type Pair struct {
	Invoice       models.DocumentRecord
	PurchaseOrder models.DocumentRecord
}

// Reconcile grades invoice against po using DefaultPolicy.
func Reconcile(invoice, po models.DocumentRecord) Report {
	return ReconcileWithPolicy(invoice, po, DefaultPolicy())
}

// Batch reconciles each pair independently, preserving input order.
func Batch(pairs []Pair, policy Policy) []Report {
	out := make([]Report, len(pairs))
	for i, p := range pairs {
		out[i] = ReconcileWithPolicy(p.Invoice, p.PurchaseOrder, policy)
	}
	return out
}

// ReconcileWithPolicy grades invoice against po.
//
// Discrepancies are reported in a fixed order: vendor, amount, line items
// (PO order first, then invoice-only items in invoice order, then items
// with no description), then unreadable fields.
func ReconcileWithPolicy(invoice, po models.DocumentRecord, policy Policy) Report {
	var found findings

	// 1. Vendor
	vendorMatched := normalize(invoice.VendorName) == normalize(po.VendorName)
	if !vendorMatched {
		found.add(kindVendor, "Vendor mismatch: vendor name differs (PO: '%s', Invoice: '%s')", po.VendorName, invoice.VendorName)
	}

	// 2. Amount variance
	currency := invoice.Currency
	if currency == "" {
		currency = po.Currency
	}
	variance := invoice.TotalAmount.Sub(po.TotalAmount).Abs()
	// Risk and score use the exact percentage; only the report is rounded.
	variancePct := decimal.Zero
	if !po.TotalAmount.IsZero() {
		variancePct = variance.Div(po.TotalAmount.Abs()).Mul(hundred)
	}
	if variance.IsPositive() {
		if po.TotalAmount.IsZero() {
			found.add(kindZeroBaseline, "Amount variance: %s against a zero purchase order total", money(variance, currency))
		} else {
			found.add(kindAmount, "Amount variance: %s (%s%%)", money(variance, currency), variancePct.StringFixed(1))
		}
	}

	// 3. Line items
	matched, total := compareLineItems(invoice.LineItems, po.LineItems, policy.priceTolerance(), &found)

	// Unreadable numeric fields
	for _, u := range invoice.AllUnreadable() {
		found.add(kindData, "Invoice field '%s' unreadable (%s); treated as 0", u.Field, u.Raw)
	}
	for _, u := range po.AllUnreadable() {
		found.add(kindData, "Purchase order field '%s' unreadable (%s); treated as 0", u.Field, u.Raw)
	}

	// 4. Risk
	risk := RiskLow
	switch {
	case found.count(kindVendor, kindMissing, kindZeroBaseline) > 0,
		variancePct.GreaterThan(policy.highVariance()):
		risk = RiskHigh
	case variancePct.IsPositive(),
		found.count(kindAmount, kindQuantity, kindPrice, kindData) > 0:
		risk = RiskMedium
	}

	// 5. Compliance score
	score := 100
	if !vendorMatched {
		score -= policy.VendorPenalty
	}
	score -= found.count(kindMissing, kindQuantity, kindPrice) * policy.LineItemPenalty
	score -= found.count(kindData) * policy.DataPenalty
	score -= found.count(kindZeroBaseline) * policy.ZeroBaselinePenalty
	if variancePct.GreaterThan(policy.varianceFree()) {
		points := variancePct.Sub(policy.varianceFree()).Floor().IntPart()
		score -= int(points) * policy.VariancePointPenalty
	}
	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}

	discrepancies := found.messages()
	return Report{
		InvoiceNumber:     invoice.DocumentNumber,
		PONumber:          po.DocumentNumber,
		InvoiceVendor:     invoice.VendorName,
		POVendor:          po.VendorName,
		Currency:          currency,
		InvoiceTotal:      invoice.TotalAmount,
		POTotal:           po.TotalAmount,
		Matched:           risk == RiskLow && len(discrepancies) == 0,
		VendorMatched:     vendorMatched,
		AmountVariance:    variance,
		AmountVariancePct: variancePct.Round(4),
		MatchedLineItems:  matched,
		TotalLineItems:    total,
		LineItemsMatched:  fmt.Sprintf("%d/%d", matched, total),
		Discrepancies:     discrepancies,
		RiskLevel:         risk,
		ComplianceScore:   score,
		Recommendation:    RecommendationFor(risk),
	}
}

// compareLineItems matches items by normalized description and returns the
// number of clean matches and the number of distinct descriptions seen.
func compareLineItems(invoiceItems, poItems []models.LineItem, tolerance decimal.Decimal, found *findings) (int, int) {
	inv, invOrder, invBlank := indexItems(invoiceItems)
	po, poOrder, poBlank := indexItems(poItems)

	keys := append([]string(nil), poOrder...)
	for _, k := range invOrder {
		if _, ok := po[k]; !ok {
			keys = append(keys, k)
		}
	}

	matched := 0
	for _, k := range keys {
		p, inPO := po[k]
		i, inInvoice := inv[k]

		switch {
		case !inInvoice:
			found.add(kindMissing, "Line item '%s' missing on invoice", p.Description)
		case !inPO:
			found.add(kindMissing, "Line item '%s' missing on purchase order", i.Description)
		case !i.Quantity.Equal(p.Quantity):
			found.add(kindQuantity, "Quantity mismatch for '%s' (PO: %s, Invoice: %s)", p.Description, p.Quantity.String(), i.Quantity.String())
		case i.UnitPrice.Sub(p.UnitPrice).Abs().GreaterThan(tolerance):
			found.add(kindPrice, "Unit price mismatch for '%s' (PO: %s, Invoice: %s)", p.Description, p.UnitPrice.StringFixed(2), i.UnitPrice.StringFixed(2))
		default:
			matched++
		}
	}
	for _, n := range poBlank {
		found.add(kindData, "Purchase order line item %d has no description; not compared", n)
	}
	for _, n := range invBlank {
		found.add(kindData, "Invoice line item %d has no description; not compared", n)
	}
	return matched, len(keys)
}

// indexItems keys items by normalized description. Items without a
// description cannot be keyed; their 1-based positions are returned in blank.
// Repeated descriptions are folded into the first occurrence: quantities and
// amounts add up, the first unit price is kept.
func indexItems(items []models.LineItem) (byKey map[string]models.LineItem, order []string, blank []int) {
	byKey = make(map[string]models.LineItem, len(items))
	for n, item := range items {
		key := normalize(item.Description)
		if key == "" {
			blank = append(blank, n+1)
			continue
		}
		if prev, ok := byKey[key]; ok {
			prev.Quantity = prev.Quantity.Add(item.Quantity)
			prev.Amount = prev.Amount.Add(item.Amount)
			byKey[key] = prev
			continue
		}
		item.Description = strings.TrimSpace(item.Description)
		byKey[key] = item
		order = append(order, key)
	}
	return byKey, order, blank
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func money(d decimal.Decimal, currency string) string {
	if currency == "" || strings.EqualFold(currency, "USD") {
		return "$" + d.StringFixed(2)
	}
	return d.StringFixed(2) + " " + strings.ToUpper(currency)
}
