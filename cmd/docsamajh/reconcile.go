package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"docsamajh/pkg/core/export"
	"docsamajh/pkg/core/reconcile"
	"docsamajh/pkg/models"

	"github.com/spf13/cobra"
)

// errFlagged makes the process exit non-zero for HIGH risk pairs.
var errFlagged = errors.New("reconciliation flagged HIGH risk")

type pairFile struct {
	Invoice       models.DocumentRecord `json:"invoice"`
	PurchaseOrder models.DocumentRecord `json:"purchase_order"`
}

// readPairs loads a JSON array of {"invoice": ..., "purchase_order": ...}.
func readPairs(path string) ([]reconcile.Pair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	var raw []pairFile
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%s must be a JSON array of pairs: %w", path, err)
	}
	pairs := make([]reconcile.Pair, len(raw))
	for i, p := range raw {
		p.Invoice.Kind, p.PurchaseOrder.Kind = models.KindInvoice, models.KindPurchaseOrder
		pairs[i] = reconcile.Pair{Invoice: p.Invoice, PurchaseOrder: p.PurchaseOrder}
	}
	return pairs, nil
}

func newReconcileCommand(flags *globalFlags) *cobra.Command {
	var (
		format     string
		pairsPath  string
		failOnHigh bool
	)
	cmd := &cobra.Command{
		Use:   "reconcile [<invoice.json> <po.json>]",
		Short: "Compare extracted invoices with their purchase orders",
		Long: `Compare an extracted invoice with its purchase order and print the
reconciliation report. With --pairs, every pair in the file is compared.
Thresholds come from the reconciliation section of the config file.`,
		Example: `  docsamajh reconcile invoice.json po.json
  docsamajh reconcile --pairs pairs.json --format csv > report.csv`,
		Args: func(cmd *cobra.Command, args []string) error {
			if pairsPath != "" {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.ExactArgs(2)(cmd, args)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "csv" {
				return fmt.Errorf("unsupported format %q (want json or csv)", format)
			}
			policy, err := policyFor(flags)
			if err != nil {
				return err
			}

			var pairs []reconcile.Pair
			if pairsPath != "" {
				if pairs, err = readPairs(pairsPath); err != nil {
					return err
				}
			} else {
				invoice, err := readRecord(args[0], models.KindInvoice)
				if err != nil {
					return err
				}
				po, err := readRecord(args[1], models.KindPurchaseOrder)
				if err != nil {
					return err
				}
				pairs = []reconcile.Pair{{Invoice: invoice, PurchaseOrder: po}}
			}

			reports := reconcile.Batch(pairs, policy)
			switch {
			case format == "csv":
				err = export.WriteReportsCSV(cmd.OutOrStdout(), reports)
			case pairsPath == "":
				err = printJSON(cmd.OutOrStdout(), reports[0])
			default:
				err = printJSON(cmd.OutOrStdout(), reports)
			}
			if err != nil {
				return err
			}

			if failOnHigh {
				for _, r := range reports {
					if r.Flagged() {
						return errFlagged
					}
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "output format: json or csv")
	cmd.Flags().StringVar(&pairsPath, "pairs", "", "JSON file holding an array of {invoice, purchase_order} pairs")
	cmd.Flags().BoolVar(&failOnHigh, "fail-on-high", false, "exit non-zero when any pair is HIGH risk")
	return cmd
}
