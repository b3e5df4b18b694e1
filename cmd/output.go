package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/report"
)

// addOutputFlags registers --json and --csv.
func addOutputFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("json", false, "print the full report as JSON")
	cmd.Flags().String("csv", "", "write the annotated table to this CSV file")
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// exportCSV writes outcomes to path when --csv is set.
func exportCSV(cmd *cobra.Command, outcomes []model.Outcome) error {
	path, _ := cmd.Flags().GetString("csv")
	if path == "" {
		return nil
	}
	f, err := os.Create(path) //nolint:gosec
	if err != nil {
		return eris.Wrap(err, "create csv export")
	}
	if err := report.WriteCSV(f, outcomes); err != nil {
		f.Close() //nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "close csv export")
	}
	fmt.Fprintf(os.Stderr, "Annotated table written to %s\n", path)
	return nil
}

// formatSummary prints the savings headline.
func formatSummary(w io.Writer, s report.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Contracts\t%d\n", s.Contracts)
	if s.Scored != s.Contracts {
		fmt.Fprintf(tw, "Unscored\t%d\n", s.Contracts-s.Scored)
	}
	if s.AtRisk > 0 {
		fmt.Fprintf(tw, "At risk\t%d\n", s.AtRisk)
	}
	fmt.Fprintf(tw, "Real cost\t%s\n", report.FormatEuro(s.RealCost))
	fmt.Fprintf(tw, "Simulated cost\t%s\n", report.FormatEuro(s.SimulatedCost))
	fmt.Fprintf(tw, "Estimated savings\t%s\n", report.FormatEuro(s.Savings))
	if pct := s.SavingsPct(); pct != nil {
		fmt.Fprintf(tw, "Savings share\t%s\n", report.FormatPct(*pct))
	}
	tw.Flush() //nolint:errcheck
}

// formatGroups prints grouped summaries as a table.
func formatGroups(w io.Writer, label string, groups []report.Group) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tCONTRACTS\tMEAN EFF\tMEAN RISK\tAT RISK\tREAL\tSIMULATED\tSAVINGS\n", label)
	for _, g := range groups {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			g.Label, g.Count, optFloat(g.MeanEfficiency), optFloat(g.MeanRisk), g.AtRisk,
			report.FormatEuro(g.RealCost), report.FormatEuro(g.SimulatedCost), report.FormatEuro(g.Savings))
	}
	tw.Flush() //nolint:errcheck
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.3f", *v)
}

// formatRunsList prints run history as a table.
func formatRunsList(w io.Writer, runs []model.Run) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tENGINE\tLEDGER\tCREATED")
	for _, r := range runs {
		id := r.ID
		if len(id) > 8 {
			id = id[:8]
		}
		fp := r.Fingerprint
		if len(fp) > 12 {
			fp = fp[:12]
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, r.Engine, fp, r.CreatedAt.Format("2006-01-02 15:04"))
	}
	tw.Flush() //nolint:errcheck
}

func decimalFromFloat(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v)
}
