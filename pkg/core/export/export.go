// Package export renders reconciliation reports, batch results and the
// audit trail as CSV or XLSX downloads.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"docsamajh/pkg/core/pipeline"
	"docsamajh/pkg/core/reconcile"
	"docsamajh/pkg/core/store"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	ContentTypeCSV  = "text/csv"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// table is the format-neutral shape every export goes through. Cells are
// strings, numbers or bools so that XLSX keeps numeric columns numeric.
type table struct {
	sheet  string
	header []string
	rows   [][]interface{}
}

func reportsTable(reports []reconcile.Report) table {
	t := table{sheet: "Reconciliations", header: reconcile.CSVHeader()}
	for _, r := range reports {
		rec := r.CSVRecord()
		row := make([]interface{}, len(rec))
		for i, v := range rec {
			row[i] = v
		}
		// numeric columns: invoice_total .. amount_variance_pct, compliance_score
		for _, i := range []int{3, 4, 5, 6} {
			row[i] = money(rec[i])
		}
		row[9] = r.ComplianceScore
		row[10] = r.Matched
		t.rows = append(t.rows, row)
	}
	return t
}

func batchTable(b *pipeline.BatchResult) table {
	t := table{
		sheet:  "Batch",
		header: []string{"filename", "document_type", "document_number", "vendor", "date", "currency", "total", "status", "error"},
	}
	for _, it := range b.Items {
		t.rows = append(t.rows, []interface{}{
			it.Filename, string(it.DocumentType), it.DocumentNumber, it.VendorName, it.Date,
			it.Currency, money(it.TotalAmount.StringFixed(2)), it.Status, it.Error,
		})
	}
	return t
}

func auditTable(entries []store.AuditEntry) table {
	t := table{
		sheet:  "Audit",
		header: []string{"timestamp", "action", "file_name", "doc_type", "status", "details", "session_id"},
	}
	for _, e := range entries {
		t.rows = append(t.rows, []interface{}{
			e.Timestamp.UTC().Format(time.RFC3339), e.Action, e.FileName, e.DocType, e.Status, e.Details, e.SessionID,
		})
	}
	return t
}

func money(s string) interface{} {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return s
	}
	f, _ := d.Float64()
	return f
}

func WriteReportsCSV(w io.Writer, reports []reconcile.Report) error {
	return writeCSV(w, reportsTable(reports))
}

func WriteBatchCSV(w io.Writer, b *pipeline.BatchResult) error {
	return writeCSV(w, batchTable(b))
}

func WriteAuditCSV(w io.Writer, entries []store.AuditEntry) error {
	return writeCSV(w, auditTable(entries))
}

func WriteReportsXLSX(w io.Writer, reports []reconcile.Report) error {
	return writeXLSX(w, reportsTable(reports))
}

func WriteBatchXLSX(w io.Writer, b *pipeline.BatchResult) error {
	return writeXLSX(w, batchTable(b))
}

func writeCSV(w io.Writer, t table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.header); err != nil {
		return err
	}
	for _, row := range t.rows {
		rec := make([]string, len(row))
		for i, v := range row {
			rec[i] = csvCell(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvCell(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', 2, 64)
	case int:
		return strconv.Itoa(x)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

func writeXLSX(w io.Writer, t table) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", t.sheet); err != nil {
		return err
	}

	header := make([]interface{}, len(t.header))
	for i, h := range t.header {
		header[i] = h
	}
	if err := f.SetSheetRow(t.sheet, "A1", &header); err != nil {
		return err
	}
	for i, row := range t.rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		r := row
		if err := f.SetSheetRow(t.sheet, cell, &r); err != nil {
			return err
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err == nil && len(t.header) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(t.header), 1)
		_ = f.SetCellStyle(t.sheet, "A1", last, bold)
	}

	_, err = f.WriteTo(w)
	return err
}
