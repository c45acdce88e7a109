package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"docsamajh/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const invoiceJSON = `{"vendor_name": "Acme Corp", "invoice_number": "INV-1", "invoice_date": "2024-01-15",
  "total_amount": "$1,000.00",
  "line_items": [{"description": "Widget", "quantity": 10, "unit_price": 100, "amount": 1000}]}`

const poJSON = `{"vendor_name": "ACME CORP", "po_number": "PO-1", "total_amount": 1000,
  "line_items": [{"description": "widget", "quantity": 10, "unit_price": 100, "amount": 1000}]}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCommand()
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "absent.yaml")))
	err := root.Execute()
	return out.String(), err
}

func TestReconcileCommand_JSON(t *testing.T) {
	dir := t.TempDir()
	inv := writeFile(t, dir, "inv.json", invoiceJSON)
	po := writeFile(t, dir, "po.json", poJSON)

	out, err := run(t, "reconcile", inv, po)
	require.NoError(t, err)

	var report map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, true, report["matched"])
	assert.Equal(t, "LOW", report["risk_level"])
	assert.Equal(t, float64(100), report["compliance_score"])
}

func TestReconcileCommand_CSVAndFailOnHigh(t *testing.T) {
	dir := t.TempDir()
	inv := writeFile(t, dir, "inv.json", strings.Replace(invoiceJSON, "$1,000.00", "1200", 1))
	po := writeFile(t, dir, "po.json", poJSON)

	out, err := run(t, "reconcile", inv, po, "--format", "csv", "--fail-on-high")
	assert.ErrorIs(t, err, errFlagged)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "invoice_number,po_number"))
	assert.Contains(t, lines[1], "HIGH")
}

func TestReconcileCommand_RepairsBrokenJSON(t *testing.T) {
	dir := t.TempDir()
	inv := writeFile(t, dir, "inv.json", "```json\n{\"vendor_name\": \"Acme\", \"invoice_number\": \"INV-1\", \"total_amount\": 10,}\n```")
	po := writeFile(t, dir, "po.json", `{"vendor_name": "Acme", "po_number": "PO-1", "total_amount": 10}`)

	_, err := run(t, "reconcile", inv, po)
	assert.NoError(t, err)
}

func TestReconcileCommand_BadFormat(t *testing.T) {
	dir := t.TempDir()
	inv := writeFile(t, dir, "inv.json", invoiceJSON)
	po := writeFile(t, dir, "po.json", poJSON)

	_, err := run(t, "reconcile", inv, po, "--format", "xml")
	assert.Error(t, err)
}

func TestComplianceCommand(t *testing.T) {
	dir := t.TempDir()
	inv := writeFile(t, dir, "inv.json", `{"vendor_name": "Acme", "total_amount": 50}`)

	out, err := run(t, "compliance", inv)
	require.NoError(t, err)

	var result map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, "FAIL", result["status"])
	assert.Contains(t, out, "invoice_number")
}

func TestBatchCommand_EmptyDirectory(t *testing.T) {
	_, err := run(t, "batch", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no PDF files")
}

func TestBatchCommand_RejectsOutExtension(t *testing.T) {
	_, err := run(t, "batch", t.TempDir(), "--out", "summary.pdf")
	assert.Error(t, err)
}

func TestPDFsIn(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.PDF", "%PDF")
	writeFile(t, dir, "a.pdf", "%PDF")
	writeFile(t, dir, "notes.txt", "x")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0755))

	files, err := pdfsIn(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.pdf"), filepath.Join(dir, "b.PDF")}, files)
}

func TestKindFlag(t *testing.T) {
	k, err := kindFlag("auto", models.KindInvoice)
	require.NoError(t, err)
	assert.Equal(t, models.DocumentKind(""), k)

	k, err = kindFlag("", models.KindInvoice)
	require.NoError(t, err)
	assert.Equal(t, models.KindInvoice, k)

	_, err = kindFlag("receipt", "")
	assert.Error(t, err)
}

func TestReconcileCommand_Pairs(t *testing.T) {
	dir := t.TempDir()
	pairs := writeFile(t, dir, "pairs.json", `[
	  {"invoice": `+invoiceJSON+`, "purchase_order": `+poJSON+`},
	  {"invoice": {"vendor_name": "Beta", "invoice_number": "INV-2", "total_amount": 500},
	   "purchase_order": {"vendor_name": "Gamma", "po_number": "PO-2", "total_amount": 500}}
	]`)

	out, err := run(t, "reconcile", "--pairs", pairs)
	require.NoError(t, err)

	var reports []map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, "INV-1", reports[0]["invoice_number"])
	assert.Equal(t, "LOW", reports[0]["risk_level"])
	assert.Equal(t, "HIGH", reports[1]["risk_level"], "vendor mismatch")
}

func TestReconcileCommand_PairsRejectsPositionalArgs(t *testing.T) {
	dir := t.TempDir()
	pairs := writeFile(t, dir, "pairs.json", `[]`)
	_, err := run(t, "reconcile", "--pairs", pairs, "extra.json")
	assert.Error(t, err)
}
