package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/procurement-sim/internal/report"
	"github.com/sells-group/procurement-sim/internal/scenario"
	"github.com/sells-group/procurement-sim/internal/session"
)

var whatifCmd = &cobra.Command{
	Use:   "whatif",
	Short: "Simulate hypothetical contracts and their expected cost",
	Long: "Builds one synthetic contract per combination of the given locations, categories, act types, " +
		"bidder counts and years, scores each and prices it at the safe reference price when at risk.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		save, _ := cmd.Flags().GetBool("save")

		env, err := initSession(ctx, save)
		if err != nil {
			return err
		}
		defer env.Close()

		if domainOnly, _ := cmd.Flags().GetBool("domain"); domainOnly {
			return writeJSON(os.Stdout, env.Session.Domain(filterFromFlags(cmd)))
		}

		req := session.WhatIfRequest{
			Request: scenarioRequestFromFlags(cmd),
			Filter:  filterFromFlags(cmd),
			Save:    save,
		}
		if cmd.Flags().Changed("threshold") {
			v, _ := cmd.Flags().GetFloat64("threshold")
			req.Threshold = &v
		}
		if cmd.Flags().Changed("baseline-cost") {
			v, _ := cmd.Flags().GetFloat64("baseline-cost")
			req.BaselineCost = &v
		}

		rep, err := env.Session.WhatIf(ctx, req)
		if err != nil {
			return err
		}
		if err := exportCSV(cmd, rep.Outcomes); err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, rep)
		}
		formatWhatIf(os.Stdout, rep)
		return nil
	},
}

func formatWhatIf(w io.Writer, rep *session.WhatIfReport) {
	fmt.Fprintf(w, "Risk threshold %.3f, safe reference price %s, baseline cost %s\n\n",
		rep.Params.Threshold,
		report.FormatEuro(decimalFromFloat(rep.Params.ReferencePrice)),
		report.FormatEuro(decimalFromFloat(rep.Params.BaselineCost)))

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LOCATION\tCATEGORY\tACT TYPE\tBIDDERS\tYEAR\tRISK\tCLASS\tEXPECTED COST")
	for _, r := range rep.Rows {
		c := r.Contract
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.3f\t%s\t%s\n",
			c.Location, c.Category, c.ActType, *c.Bidders, *c.ContractYear,
			r.Probability, r.Class(), report.FormatEuro(decimalFromFloat(r.ExpectedCost)))
	}
	tw.Flush() //nolint:errcheck
	fmt.Fprintln(w)
	formatSummary(w, rep.Summary)
	if rep.RunID != "" {
		fmt.Fprintf(w, "\nSaved run %s\n", rep.RunID)
	}
}

// addScenarioFlags registers the feature values a what-if simulation combines.
func addScenarioFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSlice("location", nil, "locations to simulate (NUTS II)")
	f.StringSlice("category", nil, "CPV groups to simulate")
	f.StringSlice("act-type", nil, "act types to simulate")
	f.IntSlice("bidders", nil, "bidder counts to simulate")
	f.IntSlice("year", nil, "contract years to simulate")
	f.Float64("eff-min", 0, "efficiency range minimum")
	f.Float64("eff-max", 1, "efficiency range maximum")
	f.Float64("base-price", 0, "base price of the simulated contracts (default from config)")
	f.Bool("environmental", true, "contracts carry environmental criteria")
	f.Bool("execution", false, "execution dummy")
}

func scenarioRequestFromFlags(cmd *cobra.Command) scenario.Request {
	var req scenario.Request
	req.Locations, _ = cmd.Flags().GetStringSlice("location")
	req.Categories, _ = cmd.Flags().GetStringSlice("category")
	req.ActTypes, _ = cmd.Flags().GetStringSlice("act-type")
	req.Bidders, _ = cmd.Flags().GetIntSlice("bidders")
	req.Years, _ = cmd.Flags().GetIntSlice("year")
	req.BasePrice, _ = cmd.Flags().GetFloat64("base-price")

	if cmd.Flags().Changed("eff-min") || cmd.Flags().Changed("eff-max") {
		lo, _ := cmd.Flags().GetFloat64("eff-min")
		hi, _ := cmd.Flags().GetFloat64("eff-max")
		req.Efficiency = &scenario.EfficiencyRange{Min: lo, Max: hi}
	}
	if cmd.Flags().Changed("environmental") {
		v, _ := cmd.Flags().GetBool("environmental")
		req.Environmental = &v
	}
	if cmd.Flags().Changed("execution") {
		v, _ := cmd.Flags().GetBool("execution")
		req.Execution = &v
	}
	return req
}

func init() {
	addScenarioFlags(whatifCmd)
	f := whatifCmd.Flags()
	f.Float64("threshold", 0, "risk threshold (default from config)")
	f.Float64("baseline-cost", 0, "expected cost of a contract not at risk (default from config)")
	f.Bool("domain", false, "print the observed value domain and exit")
	f.Bool("save", false, "persist the run summary")
	addFilterFlags(whatifCmd)
	addOutputFlags(whatifCmd)
	rootCmd.AddCommand(whatifCmd)
}
