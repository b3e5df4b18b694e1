package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/session"
)

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "Summarize an engine's results by a contract attribute",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initSession(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		engine, _ := cmd.Flags().GetString("engine")
		by, _ := cmd.Flags().GetString("by")
		metric, _ := cmd.Flags().GetString("metric")
		label, _ := cmd.Flags().GetString("benchmark")
		rule, _ := cmd.Flags().GetString("rule")

		req := session.GroupsRequest{
			Engine:    model.Engine(engine),
			By:        by,
			Metric:    metric,
			Benchmark: label,
			Rule:      rule,
			Filter:    filterFromFlags(cmd),
		}
		if cmd.Flags().Changed("threshold") {
			t, _ := cmd.Flags().GetFloat64("threshold")
			req.Threshold = &t
		}
		if strings.EqualFold(engine, string(model.EngineScenario)) {
			sr := scenarioRequestFromFlags(cmd)
			req.WhatIf = &sr
		}

		rep, err := env.Session.Groups(ctx, req)
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, rep)
		}
		formatGroups(os.Stdout, rep.Label, rep.Groups)
		if rep.Alert != "" {
			fmt.Fprintf(os.Stdout, "\n%s\n", rep.Alert)
		}
		return nil
	},
}

var gapsCmd = &cobra.Command{
	Use:   "gaps",
	Short: "Mean efficiency gap per contract attribute against each benchmark",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initSession(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		labels, _ := cmd.Flags().GetStringSlice("benchmarks")
		rep, err := env.Session.Gaps(ctx, labels, filterFromFlags(cmd))
		if err != nil {
			return err
		}
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			return writeJSON(os.Stdout, rep)
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprint(tw, "VARIABLE\tGROUPS")
		for _, b := range rep.Benchmarks {
			fmt.Fprintf(tw, "\tGAP %s", b)
		}
		fmt.Fprintln(tw)
		for _, v := range rep.Variables {
			fmt.Fprintf(tw, "%s\t%d", v.Label, v.Groups)
			for _, g := range v.Gaps {
				fmt.Fprintf(tw, "\t%.3f", g)
			}
			fmt.Fprintln(tw)
		}
		return tw.Flush()
	},
}

func init() {
	groupsCmd.Flags().String("engine", "benchmark", "engine whose results are grouped: benchmark, mitigation or scenario")
	groupsCmd.Flags().String("by", "loc", "grouping attribute, e.g. loc, category, bidders, base_price")
	groupsCmd.Flags().String("metric", "efficiency", "ranking metric: efficiency, risk, at_risk, savings or count")
	groupsCmd.Flags().String("benchmark", "", "benchmark percentile for the benchmark engine")
	groupsCmd.Flags().String("rule", "", "substitution rule for the benchmark engine")
	groupsCmd.Flags().Float64("threshold", 0, "risk threshold for the mitigation and scenario engines")
	groupsCmd.Flags().Bool("json", false, "print the report as JSON")
	addScenarioFlags(groupsCmd)
	addFilterFlags(groupsCmd)
	rootCmd.AddCommand(groupsCmd)

	gapsCmd.Flags().StringSlice("benchmarks", []string{"p50", "p75", "p90"}, "benchmark percentiles")
	gapsCmd.Flags().Bool("json", false, "print the report as JSON")
	addFilterFlags(gapsCmd)
	rootCmd.AddCommand(gapsCmd)
}
