// Command docsamajh reconciles invoices against purchase orders from the
// command line.
package main

import (
	"fmt"
	"os"

	"docsamajh/pkg/core/logging"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	flags := &globalFlags{}
	root := &cobra.Command{
		Use:   "docsamajh",
		Short: "Invoice to purchase order reconciliation",
		Long: `docsamajh extracts invoices, purchase orders and bank statements with
LandingAI ADE and reconciles invoices against their purchase orders.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.SetOutput(cmd.ErrOrStderr())
			logging.SetLevel(flags.logLevel)
		},
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to models.yaml (default $CONFIG_FILE or config/models.yaml)")
	root.PersistentFlags().StringVar(&flags.logLevel, "log-level", "warn", "log level")

	root.AddCommand(newReconcileCommand(flags))
	root.AddCommand(newComplianceCommand(flags))
	root.AddCommand(newExtractCommand(flags))
	root.AddCommand(newBatchCommand(flags))
	return root
}

func main() {
	godotenv.Load()

	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
