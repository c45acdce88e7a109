package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docsamajh/pkg/app"
	"docsamajh/pkg/core/config"
	"docsamajh/pkg/core/export"
	"docsamajh/pkg/core/pipeline"
	"docsamajh/pkg/models"

	"github.com/spf13/cobra"
)

var cliActor = pipeline.Actor{UserID: "cli"}

func buildApp(ctx context.Context, flags *globalFlags, strict bool) (*app.App, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, app.Options{Strict: strict}), nil
}

func kindFlag(raw string, def models.DocumentKind) (models.DocumentKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return def, nil
	case "auto":
		return "", nil
	}
	return models.ParseDocumentKind(raw)
}

func newExtractCommand(flags *globalFlags) *cobra.Command {
	var (
		docType string
		strict  bool
	)
	cmd := &cobra.Command{
		Use:   "extract <file.pdf>",
		Short: "Parse and extract one PDF with LandingAI ADE",
		Args:  cobra.ExactArgs(1),
		Example: `  docsamajh extract invoice.pdf --type invoice
  docsamajh extract scan.pdf            # detect the document type`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindFlag(docType, "")
			if err != nil {
				return err
			}
			content, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}

			a, err := buildApp(cmd.Context(), flags, strict)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Service.ProcessDocument(cmd.Context(), cliActor,
				pipeline.Upload{Filename: filepath.Base(args[0]), Content: content}, kind)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&docType, "type", "t", "auto", "invoice, purchase_order, bank_statement or auto")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail on partial extractions")
	return cmd
}

// pdfsIn lists the PDFs directly inside dir, sorted by name.
func pdfsIn(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}

func newBatchCommand(flags *globalFlags) *cobra.Command {
	var (
		docType string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "batch <dir>",
		Short: "Extract every PDF in a directory",
		Args:  cobra.ExactArgs(1),
		Example: `  docsamajh batch ./invoices --out summary.xlsx
  docsamajh batch ./statements --type bank_statement --out summary.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := kindFlag(docType, models.KindInvoice)
			if err != nil {
				return err
			}
			ext := strings.ToLower(filepath.Ext(out))
			if out != "" && ext != ".csv" && ext != ".xlsx" {
				return fmt.Errorf("--out must end in .csv or .xlsx")
			}
			files, err := pdfsIn(args[0])
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return fmt.Errorf("no PDF files in %s", args[0])
			}

			uploads := make([]pipeline.Upload, 0, len(files))
			for _, f := range files {
				content, err := os.ReadFile(f)
				if err != nil {
					return fmt.Errorf("failed to read %s: %w", f, err)
				}
				uploads = append(uploads, pipeline.Upload{Filename: filepath.Base(f), Content: content})
			}

			a, err := buildApp(cmd.Context(), flags, false)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.Service.ProcessBatch(cmd.Context(), cliActor, uploads, kind)
			if err != nil {
				return err
			}
			if out == "" {
				return printJSON(cmd.OutOrStdout(), res)
			}

			f, err := os.Create(out)
			if err != nil {
				return err
			}
			defer f.Close()
			if ext == ".xlsx" {
				err = export.WriteBatchXLSX(f, res)
			} else {
				err = export.WriteBatchCSV(f, res)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d processed, %d failed, total %s -> %s\n",
				res.Successful, res.Failed, res.TotalAmount.StringFixed(2), out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&docType, "type", "t", "invoice", "invoice, purchase_order, bank_statement or auto")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write a .csv or .xlsx summary instead of JSON")
	return cmd
}
