package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/session"
)

var importanceCmd = &cobra.Command{
	Use:   "importance",
	Short: "Rank model variables by their mean contribution to predicted risk",
	Long: "Reads the per-contract variable contributions given by --contributions or ledger.contributions " +
		"and ranks variables by the absolute value of their mean contribution.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		env, err := initSession(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer env.Close()

		top, _ := cmd.Flags().GetInt("top")
		rep, err := env.Session.Importance(top)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, rep)
		}
		formatImportance(os.Stdout, rep)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Count contracts above and below the benchmark by a contract attribute",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initSession(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		by, _ := cmd.Flags().GetString("by")
		label, _ := cmd.Flags().GetString("benchmark")
		rep, err := env.Session.Status(ctx, session.StatusRequest{By: by, Benchmark: label, Filter: filterFromFlags(cmd)})
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, rep)
		}
		formatStatus(os.Stdout, rep)
		return nil
	},
}

func formatImportance(w io.Writer, rep *session.ImportanceReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VARIABLE\tOBSERVATIONS\tMEAN\tIMPORTANCE")
	for _, d := range rep.Drivers {
		fmt.Fprintf(tw, "%s\t%d\t%.3f\t%.3f\n", d.Variable, d.Observations, d.Mean, d.Importance)
	}
	tw.Flush() //nolint:errcheck

	fmt.Fprintf(w, "\nTop %d drivers\n", len(rep.Top))
	for _, d := range rep.Top {
		fmt.Fprintf(w, "- %s → %.3f\n", d.Variable, d.Importance)
	}
}

func formatStatus(w io.Writer, rep *session.StatusReport) {
	fmt.Fprintf(w, "Benchmark %s: efficiency threshold %.3f\n\n", rep.Benchmark, rep.Threshold)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tABOVE\tBELOW\tON TARGET\tUNSCORED\n", rep.Label)
	for _, g := range rep.Groups {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\n", g.Label, g.Above, g.Below, g.OnTarget, g.Unscored)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	importanceCmd.Flags().Int("top", 3, "number of headline drivers")
	importanceCmd.Flags().Bool("json", false, "print the report as JSON")
	rootCmd.AddCommand(importanceCmd)

	statusCmd.Flags().String("by", model.AttrLocation.Key(), "grouping attribute, e.g. loc, category, bidders, base_price, nipcs")
	statusCmd.Flags().String("benchmark", "", "benchmark percentile (default from config)")
	statusCmd.Flags().Bool("json", false, "print the report as JSON")
	addFilterFlags(statusCmd)
	rootCmd.AddCommand(statusCmd)
}
