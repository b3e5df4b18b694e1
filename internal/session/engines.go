package session

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/procurement-sim/internal/benchmark"
	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/report"
	"github.com/sells-group/procurement-sim/internal/risk"
	"github.com/sells-group/procurement-sim/internal/scenario"
)

// BenchmarkRequest parameterizes a benchmark gap run.
type BenchmarkRequest struct {
	// Benchmark is a label such as "p75" or a fraction; empty uses the
	// configured default.
	Benchmark   string       `json:"benchmark,omitempty"`
	Rule        string       `json:"rule,omitempty"`
	Filter      model.Filter `json:"filter"`
	Save        bool         `json:"save,omitempty"`
	IncludeRows bool         `json:"include_rows,omitempty"`
}

// BenchmarkReport is the outcome of a benchmark gap run.
type BenchmarkReport struct {
	RunID     string            `json:"run_id,omitempty"`
	Label     string            `json:"benchmark"`
	Quantile  float64           `json:"quantile"`
	Threshold float64           `json:"threshold"`
	Rule      benchmark.Rule    `json:"rule"`
	Stats     benchmark.Stats   `json:"stats"`
	Quality   benchmark.Quality `json:"quality"`
	Summary   report.Summary    `json:"summary"`
	Cached    bool              `json:"cached"`
	Rows      []benchmark.Row   `json:"rows,omitempty"`

	Outcomes []model.Outcome `json:"-"`
}

// Benchmark applies the benchmark gap engine and totals savings under the
// requested substitution rule.
func (s *Session) Benchmark(ctx context.Context, req BenchmarkRequest) (*BenchmarkReport, error) {
	label := req.Benchmark
	if label == "" {
		label = s.cfg.DefaultBenchmark
	}
	q, err := benchmark.ParseQuantile(label)
	if err != nil {
		return nil, invalid(err)
	}
	ruleName := req.Rule
	if ruleName == "" {
		ruleName = s.cfg.SavingsRule
	}
	rule, err := benchmark.ParseRule(ruleName)
	if err != nil {
		return nil, invalid(err)
	}

	ledger := s.subset(req.Filter)
	res, hit, err := s.benchmark(ledger, q)
	if err != nil {
		return nil, err
	}
	outcomes := res.Outcomes(rule)
	summary, err := report.Summarize(outcomes)
	if err != nil {
		return nil, err
	}

	out := &BenchmarkReport{
		Label:     benchmark.QuantileLabel(q),
		Quantile:  q,
		Threshold: res.Threshold,
		Rule:      rule,
		Stats:     res.Stats(),
		Quality:   res.Quality,
		Summary:   summary,
		Cached:    hit,
		Outcomes:  outcomes,
	}
	if req.IncludeRows {
		out.Rows = res.Rows
	}
	if req.Save {
		params := map[string]any{"quantile": q, "rule": rule, "filter": req.Filter}
		runSummary := map[string]any{"threshold": res.Threshold, "stats": out.Stats, "quality": out.Quality, "summary": summary}
		if out.RunID, err = s.save(ctx, model.EngineBenchmark, ledger.Fingerprint(), params, runSummary); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MitigationRequest parameterizes a risk mitigation run.
type MitigationRequest struct {
	Threshold   *float64     `json:"threshold,omitempty"`
	Filter      model.Filter `json:"filter"`
	Top         int          `json:"top,omitempty"`
	Save        bool         `json:"save,omitempty"`
	IncludeRows bool         `json:"include_rows,omitempty"`
}

// MitigationReport is the outcome of a risk mitigation run.
type MitigationReport struct {
	RunID          string         `json:"run_id,omitempty"`
	Threshold      float64        `json:"threshold"`
	ReferencePrice float64        `json:"reference_price"`
	ScoredOnDemand int            `json:"scored_on_demand"`
	Stats          risk.Stats     `json:"stats"`
	Summary        report.Summary `json:"summary"`
	Top            []risk.Row     `json:"top,omitempty"`
	Cached         bool           `json:"cached"`
	Rows           []risk.Row     `json:"rows,omitempty"`

	Outcomes []model.Outcome `json:"-"`
}

// Mitigation applies the risk mitigation engine.
func (s *Session) Mitigation(ctx context.Context, req MitigationRequest) (*MitigationReport, error) {
	threshold := s.threshold(req.Threshold)
	if err := risk.ValidateThreshold(threshold); err != nil {
		return nil, invalid(err)
	}
	ledger := s.subset(req.Filter)
	res, hit, err := s.mitigation(ctx, ledger, threshold)
	if err != nil {
		return nil, err
	}
	outcomes := res.Outcomes()
	summary, err := report.Summarize(outcomes)
	if err != nil {
		return nil, err
	}

	out := &MitigationReport{
		Threshold:      res.Threshold,
		ReferencePrice: res.ReferencePrice,
		ScoredOnDemand: res.ScoredOnDemand,
		Stats:          res.Stats(),
		Summary:        summary,
		Cached:         hit,
		Outcomes:       outcomes,
	}
	if req.Top > 0 {
		out.Top = res.Top(req.Top)
	}
	if req.IncludeRows {
		out.Rows = res.Rows
	}
	if req.Save {
		params := map[string]any{"threshold": threshold, "filter": req.Filter}
		runSummary := map[string]any{"reference_price": res.ReferencePrice, "stats": out.Stats, "summary": summary}
		if out.RunID, err = s.save(ctx, model.EngineMitigation, ledger.Fingerprint(), params, runSummary); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// WhatIfRequest parameterizes a scenario simulation. The embedded request
// lists the feature values to combine.
type WhatIfRequest struct {
	scenario.Request
	Threshold    *float64     `json:"threshold,omitempty"`
	BaselineCost *float64     `json:"baseline_cost,omitempty"`
	Filter       model.Filter `json:"filter"`
	Save         bool         `json:"save,omitempty"`
}

// WhatIfReport is the outcome of a scenario simulation.
type WhatIfReport struct {
	RunID   string          `json:"run_id,omitempty"`
	Params  scenario.Params `json:"params"`
	Summary report.Summary  `json:"summary"`
	Rows    []scenario.Row  `json:"rows"`

	Outcomes []model.Outcome `json:"-"`
}

// WhatIf simulates the requested feature combinations. The reference price
// comes from safe ledger contracts at or above the configured efficiency
// floor.
func (s *Session) WhatIf(ctx context.Context, req WhatIfRequest) (*WhatIfReport, error) {
	threshold := s.threshold(req.Threshold)
	if err := risk.ValidateThreshold(threshold); err != nil {
		return nil, invalid(err)
	}
	if req.BaselineCost != nil && !(*req.BaselineCost > 0) {
		return nil, invalid(eris.Errorf("session: baseline cost %g must be > 0", *req.BaselineCost))
	}
	ledger := s.subset(req.Filter)
	ref, err := scenario.ReferenceFromLedger(ctx, ledger, s.scorer, threshold, s.cfg.Scenario.SafeEfficiencyFloor)
	if err != nil {
		return nil, err
	}
	p := scenario.Params{
		Threshold:        threshold,
		ReferencePrice:   ref,
		BaselineCost:     s.cfg.Scenario.BaselineCost,
		DefaultBasePrice: s.cfg.Scenario.BasePrice,
	}
	if req.BaselineCost != nil {
		p.BaselineCost = *req.BaselineCost
	}

	res, err := scenario.Simulate(ctx, scenario.DomainOf(ledger), req.Request, s.scorer, p)
	if err != nil {
		return nil, err
	}
	outcomes := res.Outcomes()
	summary, err := report.Summarize(outcomes)
	if err != nil {
		return nil, err
	}

	out := &WhatIfReport{Params: p, Summary: summary, Rows: res.Rows, Outcomes: outcomes}
	if req.Save {
		params := map[string]any{"request": req.Request, "params": p, "filter": req.Filter}
		if out.RunID, err = s.save(ctx, model.EngineScenario, ledger.Fingerprint(), params, summary); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GroupsRequest selects an engine's annotated table and how to group it.
type GroupsRequest struct {
	Engine    model.Engine `json:"engine"`
	By        string       `json:"by"`
	Metric    string       `json:"metric"`
	Benchmark string       `json:"benchmark,omitempty"`
	Rule      string       `json:"rule,omitempty"`
	Threshold *float64     `json:"threshold,omitempty"`
	Filter    model.Filter `json:"filter"`
	// WhatIf lists the feature values to simulate for the scenario engine.
	WhatIf *scenario.Request `json:"whatif,omitempty"`
}

// GroupsReport holds grouped summaries and the efficiency alert.
type GroupsReport struct {
	Attribute string         `json:"attribute"`
	Label     string         `json:"label"`
	Metric    report.Metric  `json:"metric"`
	Groups    []report.Group `json:"groups"`
	Alert     string         `json:"alert,omitempty"`
}

// Groups summarizes an engine's annotated table by one attribute.
func (s *Session) Groups(ctx context.Context, req GroupsRequest) (*GroupsReport, error) {
	attr, err := model.ParseAttribute(req.By)
	if err != nil {
		return nil, invalid(err)
	}
	metricName := req.Metric
	if metricName == "" {
		metricName = string(report.MetricEfficiency)
	}
	metric, err := report.ParseMetric(metricName)
	if err != nil {
		return nil, invalid(err)
	}

	var outcomes []model.Outcome
	switch model.Engine(strings.ToLower(string(req.Engine))) {
	case model.EngineBenchmark, "":
		rep, err := s.Benchmark(ctx, BenchmarkRequest{Benchmark: req.Benchmark, Rule: req.Rule, Filter: req.Filter})
		if err != nil {
			return nil, err
		}
		outcomes = rep.Outcomes
	case model.EngineMitigation:
		rep, err := s.Mitigation(ctx, MitigationRequest{Threshold: req.Threshold, Filter: req.Filter})
		if err != nil {
			return nil, err
		}
		outcomes = rep.Outcomes
	case model.EngineScenario:
		if req.WhatIf == nil {
			return nil, invalid(eris.New("session: scenario grouping needs feature values to simulate"))
		}
		rep, err := s.WhatIf(ctx, WhatIfRequest{Request: *req.WhatIf, Threshold: req.Threshold, Filter: req.Filter})
		if err != nil {
			return nil, err
		}
		outcomes = rep.Outcomes
	default:
		return nil, invalid(eris.Errorf("session: engine %q cannot be grouped", req.Engine))
	}

	groups, err := report.GroupSummaries(outcomes, attr, metric)
	if err != nil {
		return nil, err
	}
	out := &GroupsReport{Attribute: attr.Key(), Label: attr.Label(), Metric: metric, Groups: groups}
	if alert, err := report.NewAlert(attr, metric, groups); err == nil {
		out.Alert = alert.String()
	}
	return out, nil
}

// StatusRequest selects the benchmark and attribute for status counts.
type StatusRequest struct {
	By        string       `json:"by"`
	Benchmark string       `json:"benchmark,omitempty"`
	Filter    model.Filter `json:"filter"`
}

// StatusReport counts contracts above, below and on the benchmark per
// attribute group.
type StatusReport struct {
	Attribute string               `json:"attribute"`
	Label     string               `json:"label"`
	Benchmark string               `json:"benchmark"`
	Threshold float64              `json:"threshold"`
	Groups    []report.StatusCount `json:"groups"`
}

// Status counts benchmark statuses by one attribute.
func (s *Session) Status(ctx context.Context, req StatusRequest) (*StatusReport, error) {
	attr, err := model.ParseAttribute(req.By)
	if err != nil {
		return nil, invalid(err)
	}
	rep, err := s.Benchmark(ctx, BenchmarkRequest{Benchmark: req.Benchmark, Filter: req.Filter, IncludeRows: true})
	if err != nil {
		return nil, err
	}
	groups, err := report.StatusCounts(rep.Rows, attr)
	if err != nil {
		return nil, err
	}
	return &StatusReport{
		Attribute: attr.Key(),
		Label:     attr.Label(),
		Benchmark: rep.Label,
		Threshold: rep.Threshold,
		Groups:    groups,
	}, nil
}

// ImportanceReport ranks model variables by mean contribution to risk.
type ImportanceReport struct {
	Drivers []report.Driver `json:"drivers"`
	Top     []report.Driver `json:"top"`
}

// Importance ranks the loaded variable contributions. top bounds the
// headline drivers; 0 means three.
func (s *Session) Importance(top int) (*ImportanceReport, error) {
	if top < 0 {
		return nil, invalid(eris.Errorf("session: top %d must be >= 0", top))
	}
	if top == 0 {
		top = 3
	}
	drivers, err := report.Importance(s.contributions)
	if err != nil {
		return nil, err
	}
	return &ImportanceReport{Drivers: drivers, Top: report.TopDrivers(drivers, top)}, nil
}

// GapsReport is the per-variable efficiency gap table.
type GapsReport struct {
	Benchmarks []string                `json:"benchmarks"`
	Variables  []benchmark.VariableGap `json:"variables"`
}

// Gaps computes mean efficiency gaps per grouping attribute for each
// benchmark label. No labels means P50, P75 and P90.
func (s *Session) Gaps(_ context.Context, labels []string, f model.Filter) (*GapsReport, error) {
	quantiles := benchmark.DefaultQuantiles
	if len(labels) > 0 {
		quantiles = make([]float64, 0, len(labels))
		for _, l := range labels {
			q, err := benchmark.ParseQuantile(l)
			if err != nil {
				return nil, invalid(err)
			}
			quantiles = append(quantiles, q)
		}
	}
	gaps, err := benchmark.VariableGaps(s.subset(f), model.Attributes, quantiles)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(quantiles))
	for i, q := range quantiles {
		names[i] = benchmark.QuantileLabel(q)
	}
	return &GapsReport{Benchmarks: names, Variables: gaps}, nil
}

// Scenarios runs several benchmarks concurrently over the same subset.
func (s *Session) Scenarios(ctx context.Context, labels []string, rule string, f model.Filter) ([]*BenchmarkReport, error) {
	if len(labels) == 0 {
		labels = []string{"p50", "p75", "p90"}
	}
	quantiles := make([]float64, len(labels))
	for i, l := range labels {
		q, err := benchmark.ParseQuantile(l)
		if err != nil {
			return nil, invalid(err)
		}
		quantiles[i] = q
	}
	if rule == "" {
		rule = s.cfg.SavingsRule
	}
	r, err := benchmark.ParseRule(rule)
	if err != nil {
		return nil, invalid(err)
	}

	results, err := benchmark.RunScenarios(ctx, s.subset(f), quantiles)
	if err != nil {
		return nil, err
	}
	out := make([]*BenchmarkReport, len(results))
	for i, res := range results {
		outcomes := res.Outcomes(r)
		summary, err := report.Summarize(outcomes)
		if err != nil {
			return nil, err
		}
		out[i] = &BenchmarkReport{
			Label:     benchmark.QuantileLabel(res.Quantile),
			Quantile:  res.Quantile,
			Threshold: res.Threshold,
			Rule:      r,
			Stats:     res.Stats(),
			Quality:   res.Quality,
			Summary:   summary,
			Outcomes:  outcomes,
		}
	}
	return out, nil
}
