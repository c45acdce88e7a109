package ade

import (
	"strings"
	"unicode/utf8"

	"docsamajh/pkg/models"
)

var kindKeywords = []struct {
	kind     models.DocumentKind
	keywords []string
}{
	{models.KindInvoice, []string{"invoice", "bill to", "invoice number", "invoice no", "invoice date"}},
	{models.KindPurchaseOrder, []string{"purchase order", "po number", "p.o. number", "order date", "delivery date"}},
	{models.KindBankStatement, []string{"bank statement", "account statement", "opening balance", "closing balance", "transaction", "statement period"}},
}

// DetectKind classifies parsed markdown by keyword. Kinds are tried in
// order (invoice, purchase order, bank statement); the first with a hit
// wins and invoice is the fallback.
func DetectKind(markdown string) models.DocumentKind {
	lower := strings.ToLower(markdown)
	for _, k := range kindKeywords {
		for _, kw := range k.keywords {
			if strings.Contains(lower, kw) {
				return k.kind
			}
		}
	}
	return models.KindInvoice
}

// Preview returns the first n runes of markdown with tables flattened.
func Preview(markdown string, n int) string {
	s := FlattenTables(markdown)
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
