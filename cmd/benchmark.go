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

var benchmarkCmd = &cobra.Command{
	Use:   "benchmark",
	Short: "Price contracts at a benchmark efficiency and estimate savings",
	Long: "Computes the efficiency threshold at the chosen percentile, rescales each contract's price " +
		"to that threshold and reports the gap and estimated savings.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		save, _ := cmd.Flags().GetBool("save")

		env, err := initSession(ctx, save)
		if err != nil {
			return err
		}
		defer env.Close()

		label, _ := cmd.Flags().GetString("benchmark")
		rule, _ := cmd.Flags().GetString("rule")
		compare, _ := cmd.Flags().GetStringSlice("compare")
		asJSON, _ := cmd.Flags().GetBool("json")
		f := filterFromFlags(cmd)

		if len(compare) > 0 {
			reps, err := env.Session.Scenarios(ctx, compare, rule, f)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(os.Stdout, reps)
			}
			formatScenarios(os.Stdout, reps)
			return nil
		}

		rep, err := env.Session.Benchmark(ctx, session.BenchmarkRequest{
			Benchmark:   label,
			Rule:        rule,
			Filter:      f,
			Save:        save,
			IncludeRows: asJSON,
		})
		if err != nil {
			return err
		}
		if err := exportCSV(cmd, rep.Outcomes); err != nil {
			return err
		}
		if asJSON {
			return writeJSON(os.Stdout, rep)
		}
		formatBenchmark(os.Stdout, rep)
		return nil
	},
}

func formatBenchmark(w io.Writer, rep *session.BenchmarkReport) {
	fmt.Fprintf(w, "Benchmark %s: efficiency threshold %.3f (%s rule)\n", rep.Label, rep.Threshold, rep.Rule)
	fmt.Fprintf(w, "Above target: %d  Below target: %d  On target: %d\n", rep.Stats.Above, rep.Stats.Below, rep.Stats.OnTarget)
	if rep.Stats.AvgOverspendPct != nil {
		fmt.Fprintf(w, "Average overspending: %s\n", report.FormatPct(*rep.Stats.AvgOverspendPct))
	}
	fmt.Fprintf(w, "Unscored contracts: %d (non-positive price %d, missing efficiency %d, efficiency out of range %d)\n",
		rep.Quality.Unscored(), rep.Quality.NonPositivePrice, rep.Quality.MissingEfficiency, rep.Quality.EfficiencyOutOfRange)
	fmt.Fprintln(w)
	formatSummary(w, rep.Summary)
	if rep.RunID != "" {
		fmt.Fprintf(w, "\nSaved run %s\n", rep.RunID)
	}
}

func formatScenarios(w io.Writer, reps []*session.BenchmarkReport) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "BENCHMARK\tTHRESHOLD\tBELOW\tSIMULATED\tSAVINGS")
	for _, r := range reps {
		fmt.Fprintf(tw, "%s\t%.3f\t%d\t%s\t%s\n", r.Label, r.Threshold, r.Stats.Below,
			report.FormatEuro(r.Summary.SimulatedCost), report.FormatEuro(r.Summary.Savings))
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	benchmarkCmd.Flags().String("benchmark", "", "benchmark percentile, e.g. p75 or 0.6 (default from config)")
	benchmarkCmd.Flags().String("rule", "", "substitution rule: always or below_threshold (default from config)")
	benchmarkCmd.Flags().StringSlice("compare", nil, "compare several benchmarks side by side, e.g. p50,p75,p90")
	benchmarkCmd.Flags().Bool("save", false, "persist the run summary")
	addFilterFlags(benchmarkCmd)
	addOutputFlags(benchmarkCmd)
	rootCmd.AddCommand(benchmarkCmd)
}
