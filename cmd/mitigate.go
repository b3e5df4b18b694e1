package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/procurement-sim/internal/report"
	"github.com/sells-group/procurement-sim/internal/session"
)

var mitigateCmd = &cobra.Command{
	Use:   "mitigate",
	Short: "Replace high-risk contracts with the safe reference price",
	Long: "Flags contracts whose risk probability reaches the threshold and reprices them at the mean " +
		"price of the safe contracts. Missing probabilities are scored with the configured scorer.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		save, _ := cmd.Flags().GetBool("save")

		env, err := initSession(ctx, save)
		if err != nil {
			return err
		}
		defer env.Close()

		top, _ := cmd.Flags().GetInt("top")
		asJSON, _ := cmd.Flags().GetBool("json")
		req := session.MitigationRequest{
			Filter:      filterFromFlags(cmd),
			Top:         top,
			Save:        save,
			IncludeRows: asJSON,
		}
		if cmd.Flags().Changed("threshold") {
			t, _ := cmd.Flags().GetFloat64("threshold")
			req.Threshold = &t
		}

		rep, err := env.Session.Mitigation(ctx, req)
		if err != nil {
			return err
		}
		if err := exportCSV(cmd, rep.Outcomes); err != nil {
			return err
		}
		if asJSON {
			return writeJSON(os.Stdout, rep)
		}
		formatMitigation(os.Stdout, rep)
		return nil
	},
}

func formatMitigation(w io.Writer, rep *session.MitigationReport) {
	fmt.Fprintf(w, "Risk threshold %.3f: %d of %d contracts at risk (%s)\n",
		rep.Threshold, rep.Stats.Flagged, rep.Stats.Contracts, report.FormatPct(rep.Stats.AtRiskPct))
	if rep.Stats.ObservedIncreasePct != nil {
		fmt.Fprintf(w, "Observed cost increase: %s of contracts\n", report.FormatPct(*rep.Stats.ObservedIncreasePct))
	}
	fmt.Fprintf(w, "Safe reference price: %s\n", report.FormatEuro(decimalFromFloat(rep.ReferencePrice)))
	fmt.Fprintf(w, "Non-positive price (kept as is): %d\n", rep.Stats.NonPositivePrice)
	if rep.ScoredOnDemand > 0 {
		fmt.Fprintf(w, "Scored on demand: %d\n", rep.ScoredOnDemand)
	}
	fmt.Fprintln(w)
	formatSummary(w, rep.Summary)

	if len(rep.Top) > 0 {
		fmt.Fprintln(w)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "CONTRACT\tRISK\tPRICE\tSIMULATED")
		for _, r := range rep.Top {
			fmt.Fprintf(tw, "%s\t%.3f\t%s\t%s\n", r.Contract.ID, r.RiskProbability,
				report.FormatEuro(decimalFromFloat(r.Contract.EffectiveTotalPrice)),
				report.FormatEuro(decimalFromFloat(r.SimulatedPrice)))
		}
		tw.Flush() //nolint:errcheck
	}
	if rep.RunID != "" {
		fmt.Fprintf(w, "\nSaved run %s\n", rep.RunID)
	}
}

func init() {
	mitigateCmd.Flags().Float64("threshold", 0, "risk threshold (default from config)")
	mitigateCmd.Flags().Int("top", 10, "list the riskiest flagged contracts")
	mitigateCmd.Flags().Bool("save", false, "persist the run summary")
	addFilterFlags(mitigateCmd)
	addOutputFlags(mitigateCmd)
	rootCmd.AddCommand(mitigateCmd)
}
