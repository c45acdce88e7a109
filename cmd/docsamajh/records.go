package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"docsamajh/pkg/core/compliance"
	"docsamajh/pkg/core/config"
	"docsamajh/pkg/core/reconcile"
	"docsamajh/pkg/core/utils"
	"docsamajh/pkg/models"

	"github.com/spf13/cobra"
)

// readRecord loads an extracted record from a JSON file. Slightly broken
// JSON (as produced by hand edits or models) is repaired first.
func readRecord(path string, kind models.DocumentKind) (models.DocumentRecord, error) {
	rec := models.DocumentRecord{Kind: kind}
	data, err := os.ReadFile(path)
	if err != nil {
		return rec, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, &rec); err == nil {
		return rec, nil
	}
	repaired, err := utils.RepairJSON(utils.StripCodeFence(string(data)))
	if err != nil {
		return rec, fmt.Errorf("%s is not valid JSON: %w", path, err)
	}
	if err := json.Unmarshal([]byte(repaired), &rec); err != nil {
		return rec, fmt.Errorf("%s is not a JSON object: %w", path, err)
	}
	return rec, nil
}

// policyFor reads only the reconciliation section of the config file so the
// offline commands need no credentials.
func policyFor(flags *globalFlags) (reconcile.Policy, error) {
	path := flags.configPath
	if path == "" {
		path = config.GetEnv("CONFIG_FILE", config.DefaultConfigFile)
	}
	fc, err := config.ReadFile(path)
	if err != nil {
		return reconcile.Policy{}, err
	}
	return fc.Policy(), nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newComplianceCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "compliance <invoice.json>",
		Short:   "Check an extracted invoice for required fields and consistency",
		Args:    cobra.ExactArgs(1),
		Example: `  docsamajh compliance testdata/invoice.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			invoice, err := readRecord(args[0], models.KindInvoice)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), compliance.Check(invoice))
		},
	}
}
