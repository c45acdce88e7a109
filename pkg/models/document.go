package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DocumentKind identifies which extraction schema produced a record.
type DocumentKind string

const (
	KindInvoice       DocumentKind = "invoice"
	KindPurchaseOrder DocumentKind = "purchase_order"
	KindBankStatement DocumentKind = "bank_statement"
)

// ParseDocumentKind accepts the API/CLI spellings ("invoice", "po",
// "Purchase Order", ...) and returns the canonical kind.
func ParseDocumentKind(s string) (DocumentKind, error) {
	switch strings.ToLower(strings.TrimSpace(strings.ReplaceAll(s, " ", "_"))) {
	case "invoice":
		return KindInvoice, nil
	case "purchase_order", "po", "purchaseorder":
		return KindPurchaseOrder, nil
	case "bank_statement", "statement", "bankstatement":
		return KindBankStatement, nil
	}
	return "", fmt.Errorf("unknown document type %q", s)
}

// Label is the human-readable name used in audit rows and exports.
func (k DocumentKind) Label() string {
	switch k {
	case KindInvoice:
		return "Invoice"
	case KindPurchaseOrder:
		return "Purchase Order"
	case KindBankStatement:
		return "Bank Statement"
	default:
		return string(k)
	}
}

// UnreadableField records a value that could not be coerced into a number.
// The field is treated as zero wherever it is used.
type UnreadableField struct {
	Field string `json:"field"`
	Raw   string `json:"raw"`
}

// LineItem is one row of an invoice or purchase order.
type LineItem struct {
	ItemNumber  string          `json:"item_number,omitempty"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`

	Unreadable []UnreadableField `json:"-"`
}

// DocumentRecord is the typed view of an extracted invoice or purchase order.
// Fields the comparator reads are explicit; every other key the extractor
// returned is kept verbatim in Extra.
type DocumentRecord struct {
	Kind           DocumentKind    `json:"-"`
	VendorName     string          `json:"vendor_name"`
	DocumentNumber string          `json:"document_number"`
	POReference    string          `json:"po_reference,omitempty"`
	Date           string          `json:"date,omitempty"`
	DueDate        string          `json:"due_date,omitempty"`
	Currency       string          `json:"currency,omitempty"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	LineItems      []LineItem      `json:"line_items"`

	Extra      map[string]json.RawMessage `json:"-"`
	Unreadable []UnreadableField          `json:"-"`
}

// Keys consumed by DocumentRecord.UnmarshalJSON. Anything else lands in Extra.
var documentKeys = map[string]bool{
	"vendor_name": true, "document_number": true, "invoice_number": true,
	"po_number": true, "po_reference": true, "date": true, "invoice_date": true,
	"order_date": true, "due_date": true, "currency": true, "subtotal": true,
	"tax_amount": true, "total_amount": true, "line_items": true,
}

// UnmarshalJSON decodes an extractor payload leniently. Absent and null
// values become zero values; malformed numbers become zero and are listed in
// Unreadable. Decoding only fails when the payload is not a JSON object.
func (d *DocumentRecord) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("document record must be a JSON object: %w", err)
	}

	kind := d.Kind
	*d = DocumentRecord{Kind: kind}

	d.VendorName = stringField(raw["vendor_name"])
	d.DocumentNumber = firstString(raw, "document_number", "invoice_number", "po_number")
	d.POReference = stringField(raw["po_reference"])
	if d.POReference == "" && stringField(raw["invoice_number"]) != "" {
		d.POReference = stringField(raw["po_number"])
	}
	d.Date = firstString(raw, "date", "invoice_date", "order_date")
	d.DueDate = stringField(raw["due_date"])
	d.Currency = stringField(raw["currency"])

	d.Subtotal = d.amount(raw, "subtotal")
	d.TaxAmount = d.amount(raw, "tax_amount")
	d.TotalAmount = d.amount(raw, "total_amount")

	if items, ok := raw["line_items"]; ok && !isNull(items) {
		var rows []json.RawMessage
		if err := json.Unmarshal(items, &rows); err != nil {
			d.Unreadable = append(d.Unreadable, UnreadableField{Field: "line_items", Raw: truncate(string(items), 80)})
		}
		for _, row := range rows {
			var item LineItem
			if err := json.Unmarshal(row, &item); err != nil {
				d.Unreadable = append(d.Unreadable, UnreadableField{Field: "line_items", Raw: truncate(string(row), 80)})
				continue
			}
			d.LineItems = append(d.LineItems, item)
		}
	}

	for k, v := range raw {
		if documentKeys[k] {
			continue
		}
		if d.Extra == nil {
			d.Extra = make(map[string]json.RawMessage)
		}
		d.Extra[k] = v
	}
	return nil
}

// MarshalJSON emits the typed fields plus any passthrough keys.
func (d DocumentRecord) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(d.Extra)+12)
	for k, v := range d.Extra {
		out[k] = v
	}
	out["vendor_name"] = d.VendorName
	out["document_number"] = d.DocumentNumber
	if d.POReference != "" {
		out["po_reference"] = d.POReference
	}
	if d.Date != "" {
		out["date"] = d.Date
	}
	if d.DueDate != "" {
		out["due_date"] = d.DueDate
	}
	if d.Currency != "" {
		out["currency"] = d.Currency
	}
	out["subtotal"] = d.Subtotal
	out["tax_amount"] = d.TaxAmount
	out["total_amount"] = d.TotalAmount
	items := d.LineItems
	if items == nil {
		items = []LineItem{}
	}
	out["line_items"] = items
	return json.Marshal(out)
}

// AllUnreadable returns the record's unreadable fields followed by those of
// its line items, prefixed with the line position.
func (d DocumentRecord) AllUnreadable() []UnreadableField {
	out := append([]UnreadableField(nil), d.Unreadable...)
	for i, item := range d.LineItems {
		for _, u := range item.Unreadable {
			out = append(out, UnreadableField{Field: fmt.Sprintf("line_items[%d].%s", i, u.Field), Raw: u.Raw})
		}
	}
	return out
}

// ExtraKeys lists passthrough keys in sorted order.
func (d DocumentRecord) ExtraKeys() []string {
	keys := make([]string, 0, len(d.Extra))
	for k := range d.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (d *DocumentRecord) amount(raw map[string]json.RawMessage, key string) decimal.Decimal {
	v, ok := ParseAmount(raw[key])
	if !ok {
		d.Unreadable = append(d.Unreadable, UnreadableField{Field: key, Raw: truncate(string(raw[key]), 80)})
	}
	return v
}

// UnmarshalJSON decodes a line item with the same leniency as DocumentRecord.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("line item must be a JSON object: %w", err)
	}
	*li = LineItem{
		ItemNumber:  stringField(raw["item_number"]),
		Description: stringField(raw["description"]),
	}
	for _, f := range []struct {
		key string
		dst *decimal.Decimal
	}{
		{"quantity", &li.Quantity},
		{"unit_price", &li.UnitPrice},
		{"amount", &li.Amount},
	} {
		v, ok := ParseAmount(raw[f.key])
		if !ok {
			li.Unreadable = append(li.Unreadable, UnreadableField{Field: f.key, Raw: truncate(string(raw[f.key]), 80)})
		}
		*f.dst = v
	}
	return nil
}

func firstString(raw map[string]json.RawMessage, keys ...string) string {
	for _, k := range keys {
		if s := stringField(raw[k]); s != "" {
			return s
		}
	}
	return ""
}

// stringField reads a JSON string, tolerating numbers (e.g. invoice numbers
// extracted as 10023) and null.
func stringField(raw json.RawMessage) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func isNull(raw json.RawMessage) bool {
	t := bytes.TrimSpace(raw)
	return len(t) == 0 || bytes.Equal(t, []byte("null"))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
