package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/procurement-sim/internal/config"
)

var cfg *config.Config

var (
	ledgerPath        string
	ledgerSheet       string
	contributionsPath string
)

var rootCmd = &cobra.Command{
	Use:   "procurement-sim",
	Short: "Procurement cost mitigation simulator",
	Long:  "Loads a public procurement contract ledger and simulates cost savings under efficiency benchmarks, risk mitigation and what-if scenarios.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return eris.Wrap(err, "load config")
		}
		if ledgerPath != "" {
			c.Ledger.Path = ledgerPath
		}
		if ledgerSheet != "" {
			c.Ledger.Sheet = ledgerSheet
		}
		if contributionsPath != "" {
			c.Ledger.Contributions = contributionsPath
		}
		cfg = c

		mode := "cli"
		if cmd.Name() == "serve" {
			mode = "serve"
		}
		if err := cfg.Validate(mode); err != nil {
			return err
		}

		if err := config.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&ledgerPath, "ledger", "", "contract ledger file, .csv or .xlsx (default from config)")
	rootCmd.PersistentFlags().StringVar(&ledgerSheet, "sheet", "", "worksheet name for .xlsx ledgers")
	rootCmd.PersistentFlags().StringVar(&contributionsPath, "contributions", "", "per-contract variable contributions, .csv or .xlsx (default from config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
