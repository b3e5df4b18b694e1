// Package report aggregates annotated tables into portfolio totals and
// grouped summaries.
package report

import (
	"cmp"
	"math"
	"slices"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/simerr"
)

// Summary holds the portfolio totals. RealCost − SimulatedCost == Savings
// holds exactly.
type Summary struct {
	Contracts     int             `json:"contracts"`
	Scored        int             `json:"scored"`
	AtRisk        int             `json:"at_risk"`
	RealCost      decimal.Decimal `json:"real_cost"`
	SimulatedCost decimal.Decimal `json:"simulated_cost"`
	Savings       decimal.Decimal `json:"savings"`
}

// SavingsPct is savings as a share of real cost, or nil when real cost is 0.
func (s Summary) SavingsPct() *float64 {
	if s.RealCost.IsZero() {
		return nil
	}
	pct, _ := s.Savings.Div(s.RealCost).Mul(decimal.NewFromInt(100)).Float64()
	return &pct
}

// checkFinite rejects outcomes whose real or simulated price cannot be
// totalled exactly.
func checkFinite(outcomes []model.Outcome) error {
	for _, o := range outcomes {
		for _, v := range []float64{o.RealPrice(), o.SimulatedPrice} {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return eris.Errorf("report: contract %s has non-finite price %v", o.Contract.ID, v)
			}
		}
	}
	return nil
}

// Summarize totals an annotated table. Empty input and non-finite prices
// are errors.
func Summarize(outcomes []model.Outcome) (Summary, error) {
	if len(outcomes) == 0 {
		return Summary{}, simerr.EmptyInput("annotated table")
	}
	if err := checkFinite(outcomes); err != nil {
		return Summary{}, err
	}
	s := Summary{Contracts: len(outcomes)}
	for _, o := range outcomes {
		s.RealCost = s.RealCost.Add(decimal.NewFromFloat(o.RealPrice()))
		s.SimulatedCost = s.SimulatedCost.Add(decimal.NewFromFloat(o.SimulatedPrice))
		if o.Scored {
			s.Scored++
		}
		if o.AtRisk {
			s.AtRisk++
		}
	}
	s.Savings = s.RealCost.Sub(s.SimulatedCost)
	return s, nil
}

// Metric selects the value groups are ranked by.
type Metric string

const (
	MetricEfficiency Metric = "efficiency"
	MetricRisk       Metric = "risk"
	MetricAtRisk     Metric = "at_risk"
	MetricSavings    Metric = "savings"
	MetricCount      Metric = "count"
)

// ParseMetric validates a metric name.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(s); m {
	case MetricEfficiency, MetricRisk, MetricAtRisk, MetricSavings, MetricCount:
		return m, nil
	}
	return "", eris.Errorf("report: unknown metric %q", s)
}

// Group is the summary of one attribute value.
type Group struct {
	Label          string          `json:"label"`
	Count          int             `json:"count"`
	MeanEfficiency *float64        `json:"mean_efficiency,omitempty"`
	MeanRisk       *float64        `json:"mean_risk,omitempty"`
	AtRisk         int             `json:"at_risk"`
	RealCost       decimal.Decimal `json:"real_cost"`
	SimulatedCost  decimal.Decimal `json:"simulated_cost"`
	Savings        decimal.Decimal `json:"savings"`
}

// Value returns the group's value for m, false when undefined (for example
// mean efficiency of a group without valid scores).
func (g Group) Value(m Metric) (float64, bool) {
	switch m {
	case MetricEfficiency:
		if g.MeanEfficiency == nil {
			return 0, false
		}
		return *g.MeanEfficiency, true
	case MetricRisk:
		if g.MeanRisk == nil {
			return 0, false
		}
		return *g.MeanRisk, true
	case MetricAtRisk:
		return float64(g.AtRisk), true
	case MetricSavings:
		v, _ := g.Savings.Float64()
		return v, true
	case MetricCount:
		return float64(g.Count), true
	}
	return 0, false
}

type accum struct {
	g               Group
	effSum, riskSum float64
	effN, riskN     int
}

// GroupSummaries groups outcomes by attr and sorts the groups by metric
// descending, ties broken by label ascending. Groups whose metric is
// undefined come last. Outcomes without a value for attr are not grouped.
func GroupSummaries(outcomes []model.Outcome, attr model.Attribute, metric Metric) ([]Group, error) {
	if len(outcomes) == 0 {
		return nil, simerr.EmptyInput("annotated table")
	}
	if _, err := ParseMetric(string(metric)); err != nil {
		return nil, err
	}
	if err := checkFinite(outcomes); err != nil {
		return nil, err
	}

	byLabel := map[string]*accum{}
	for _, o := range outcomes {
		label, ok := attr.Group(o.Contract)
		if !ok {
			continue
		}
		a := byLabel[label]
		if a == nil {
			a = &accum{g: Group{Label: label}}
			byLabel[label] = a
		}
		a.g.Count++
		a.g.RealCost = a.g.RealCost.Add(decimal.NewFromFloat(o.RealPrice()))
		a.g.SimulatedCost = a.g.SimulatedCost.Add(decimal.NewFromFloat(o.SimulatedPrice))
		if o.Contract.ValidEfficiency() {
			a.effSum += *o.Contract.Efficiency
			a.effN++
		}
		if o.RiskProbability != nil {
			a.riskSum += *o.RiskProbability
			a.riskN++
		}
		if o.AtRisk {
			a.g.AtRisk++
		}
	}

	groups := make([]Group, 0, len(byLabel))
	for _, a := range byLabel {
		g := a.g
		g.Savings = g.RealCost.Sub(g.SimulatedCost)
		if a.effN > 0 {
			v := a.effSum / float64(a.effN)
			g.MeanEfficiency = &v
		}
		if a.riskN > 0 {
			v := a.riskSum / float64(a.riskN)
			g.MeanRisk = &v
		}
		groups = append(groups, g)
	}

	slices.SortFunc(groups, func(a, b Group) int {
		av, aok := a.Value(metric)
		bv, bok := b.Value(metric)
		switch {
		case aok && !bok:
			return -1
		case !aok && bok:
			return 1
		case aok && bok:
			if c := cmp.Compare(bv, av); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return groups, nil
}
