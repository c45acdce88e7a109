// Package compliance runs the invoice-level audit checks that accompany a
// reconciliation: required fields, tax arithmetic and amount thresholds.
package compliance

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	"docsamajh/pkg/models"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPass Status = "PASS"
	StatusFail Status = "FAIL"
)

var (
	taxTolerance      = decimal.RequireFromString("0.02")
	maxTaxRatePct     = decimal.NewFromInt(20)
	largeInvoice      = decimal.NewFromInt(1000000)
	approvalThreshold = decimal.NewFromInt(10000)
	hundred           = decimal.NewFromInt(100)
	issuePenalty      = 20
	warningPenalty    = 5
)

// Result is the outcome of Check.
type Result struct {
	Status           Status   `json:"status"`
	Score            int      `json:"compliance_score"`
	CriticalIssues   []string `json:"critical_issues"`
	Warnings         []string `json:"warnings"`
	RequiresApproval bool     `json:"requires_approval"`
}

// requiredFields mirrors the fields an invoice must carry to be payable.
type requiredFields struct {
	InvoiceNumber string  `json:"invoice_number" validate:"required"`
	VendorName    string  `json:"vendor_name" validate:"required"`
	InvoiceDate   string  `json:"invoice_date" validate:"required"`
	TotalAmount   float64 `json:"total_amount" validate:"required"`
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Check audits an extracted invoice. It never fails; missing data shows up
// as issues and a lower score.
func Check(invoice models.DocumentRecord) Result {
	var issues, warnings []string

	total, _ := invoice.TotalAmount.Float64()
	req := requiredFields{
		InvoiceNumber: invoice.DocumentNumber,
		VendorName:    invoice.VendorName,
		InvoiceDate:   invoice.Date,
		TotalAmount:   total,
	}
	if err := getValidator().Struct(req); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			for _, fe := range verrs {
				issues = append(issues, "Missing required field: "+fe.Field())
			}
		} else {
			issues = append(issues, fmt.Sprintf("Required field check failed: %v", err))
		}
	}

	subtotal := invoice.Subtotal
	tax := invoice.TaxAmount
	amount := invoice.TotalAmount

	if subtotal.IsPositive() && tax.IsPositive() {
		expected := subtotal.Add(tax)
		if amount.Sub(expected).Abs().GreaterThan(taxTolerance) {
			issues = append(issues, fmt.Sprintf("Tax calculation error: %s + %s ≠ %s",
				subtotal.StringFixed(2), tax.StringFixed(2), amount.StringFixed(2)))
		}
		rate := tax.Div(subtotal).Mul(hundred)
		if rate.GreaterThan(maxTaxRatePct) {
			warnings = append(warnings, fmt.Sprintf("Unusually high tax rate: %s%%", rate.StringFixed(1)))
		}
	}

	if tax.IsNegative() {
		issues = append(issues, "Negative tax amount")
	}
	if !amount.IsPositive() {
		issues = append(issues, "Total amount must be positive")
	}
	if amount.GreaterThan(largeInvoice) {
		warnings = append(warnings, "Large invoice amount - requires additional approval")
	}

	score := 100 - len(issues)*issuePenalty - len(warnings)*warningPenalty
	if score < 0 {
		score = 0
	}

	status := StatusPass
	if len(issues) > 0 {
		status = StatusFail
	}
	if issues == nil {
		issues = []string{}
	}
	if warnings == nil {
		warnings = []string{}
	}

	return Result{
		Status:           status,
		Score:            score,
		CriticalIssues:   issues,
		Warnings:         warnings,
		RequiresApproval: len(issues) > 0 || amount.GreaterThan(approvalThreshold),
	}
}
