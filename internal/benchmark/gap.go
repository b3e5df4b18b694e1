package benchmark

import (
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/simerr"
)

// Rule selects which counterfactual price feeds the savings figures.
type Rule string

const (
	// RuleAlways rescales every scored contract to the benchmark, so
	// contracts already above it get a higher simulated price.
	RuleAlways Rule = "always"
	// RuleBelowThreshold rescales only contracts below the benchmark and
	// leaves efficient contracts at their real price.
	RuleBelowThreshold Rule = "below_threshold"
)

// ParseRule resolves a substitution rule name.
func ParseRule(s string) (Rule, error) {
	switch Rule(strings.ToLower(strings.TrimSpace(s))) {
	case RuleAlways:
		return RuleAlways, nil
	case RuleBelowThreshold, "below":
		return RuleBelowThreshold, nil
	}
	return "", eris.Errorf("benchmark: unknown substitution rule %q", s)
}

// Row is one annotated contract.
type Row struct {
	Contract model.Contract `json:"contract"`
	// Scored is false when the price is not positive or the efficiency
	// score is missing or outside (0,1]; such rows are excluded from the
	// quantile and the gap and keep their real price under both rules.
	Scored bool `json:"scored"`
	// SimulatedPrice applies price × efficiency / threshold unconditionally.
	SimulatedPrice float64 `json:"simulated_price"`
	// PolicyPrice applies the rescaling only below the threshold.
	PolicyPrice float64  `json:"policy_price"`
	Gap         float64  `json:"gap"`
	GapPct      *float64 `json:"gap_pct,omitempty"`
	GapSign     int      `json:"gap_sign"`
}

// Price returns the simulated price under rule.
func (r Row) Price(rule Rule) float64 {
	if rule == RuleBelowThreshold {
		return r.PolicyPrice
	}
	return r.SimulatedPrice
}

// Quality counts the data-quality edge cases seen in the ledger. Each
// unscored row is counted once, price problems first. Flagged rows are
// reported, never dropped.
type Quality struct {
	NonPositivePrice     int `json:"non_positive_price"`
	MissingEfficiency    int `json:"missing_efficiency"`
	EfficiencyOutOfRange int `json:"efficiency_out_of_range"`
}

// Unscored returns the number of rows excluded from the gap computation.
func (q Quality) Unscored() int {
	return q.NonPositivePrice + q.MissingEfficiency + q.EfficiencyOutOfRange
}

func (q *Quality) observe(c model.Contract) {
	switch {
	case !c.ValidPrice():
		q.NonPositivePrice++
	case c.Efficiency == nil:
		q.MissingEfficiency++
	case !c.ValidEfficiency():
		q.EfficiencyOutOfRange++
	}
}

// scorable reports whether c takes part in the quantile and the gap.
func scorable(c model.Contract) bool {
	return c.ValidPrice() && c.ValidEfficiency()
}

// Result is the annotated copy of a ledger under one benchmark scenario.
type Result struct {
	Quantile  float64 `json:"quantile"`
	Threshold float64 `json:"threshold"`
	Rows      []Row   `json:"rows"`
	Quality   Quality `json:"quality"`
}

// Apply benchmarks every contract against the q-th quantile of the
// efficiency distribution. It is a pure function of (ledger, q).
func Apply(ledger *model.Ledger, q float64) (*Result, error) {
	if !(q > 0 && q < 1) {
		return nil, simerr.InvalidQuantile(q)
	}
	if ledger.Len() == 0 {
		return nil, simerr.EmptyLedger()
	}
	for _, col := range []model.Column{model.ColumnEffectiveTotalPrice, model.ColumnEfficiency} {
		if !ledger.Has(col) {
			return nil, simerr.MissingColumn(string(col))
		}
	}

	contracts := ledger.Contracts()
	var quality Quality
	effs := make([]float64, 0, len(contracts))
	for _, c := range contracts {
		quality.observe(c)
		if scorable(c) {
			effs = append(effs, *c.Efficiency)
		}
	}
	if len(effs) == 0 {
		if quality.NonPositivePrice == len(contracts) {
			return nil, eris.Wrap(simerr.EmptyLedger(), "benchmark: no contract has a positive price")
		}
		return nil, eris.Wrap(simerr.MissingColumn(string(model.ColumnEfficiency)), "benchmark: no contract has a usable efficiency score")
	}

	threshold, err := Quantile(effs, q)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, len(contracts))
	for i, c := range contracts {
		rows[i] = annotate(c, threshold)
	}

	zap.L().Info("benchmark: applied",
		zap.String("scenario", QuantileLabel(q)),
		zap.Float64("threshold", threshold),
		zap.Int("contracts", len(contracts)),
		zap.Int("unscored", quality.Unscored()),
	)

	return &Result{Quantile: q, Threshold: threshold, Rows: rows, Quality: quality}, nil
}

func annotate(c model.Contract, threshold float64) Row {
	price := c.EffectiveTotalPrice
	row := Row{Contract: c, SimulatedPrice: price, PolicyPrice: price}
	if !scorable(c) {
		return row
	}

	eff := *c.Efficiency
	row.Scored = true
	row.SimulatedPrice = price * (eff / threshold)
	if eff < threshold {
		row.PolicyPrice = row.SimulatedPrice
	}
	row.Gap = price - row.SimulatedPrice
	row.GapSign = sign(row.Gap)
	pct := row.Gap / price * 100
	row.GapPct = &pct
	return row
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// Outcomes converts the result into aggregation input under rule.
func (r *Result) Outcomes(rule Rule) []model.Outcome {
	out := make([]model.Outcome, len(r.Rows))
	for i, row := range r.Rows {
		out[i] = model.Outcome{
			Contract:        row.Contract,
			SimulatedPrice:  row.Price(rule),
			RiskProbability: row.Contract.RiskProbability,
			Scored:          row.Scored,
		}
	}
	return out
}

// Stats are the headline benchmark indicators.
type Stats struct {
	Above int `json:"above"`
	Below int `json:"below"`
	// OnTarget counts scored contracts exactly at the benchmark.
	OnTarget int `json:"on_target"`
	// AvgOverspendPct is the mean gap % over contracts above the benchmark,
	// nil when there are none.
	AvgOverspendPct *float64 `json:"avg_overspend_pct,omitempty"`
}

// Stats summarizes gap signs.
func (r *Result) Stats() Stats {
	var s Stats
	var sum float64
	var n int
	for _, row := range r.Rows {
		if !row.Scored {
			continue
		}
		switch row.GapSign {
		case 1:
			s.Above++
			if row.GapPct != nil && !math.IsNaN(*row.GapPct) {
				sum += *row.GapPct
				n++
			}
		case -1:
			s.Below++
		default:
			s.OnTarget++
		}
	}
	if n > 0 {
		avg := sum / float64(n)
		s.AvgOverspendPct = &avg
	}
	return s
}

// Benchmark status labels.
const (
	StatusAbove    = "Above"
	StatusBelow    = "Below"
	StatusOnTarget = "On Target"
	StatusUnscored = "Unscored"
)

// Status renders the gap sign the way the dashboard labels it.
func (r Row) Status() string {
	switch {
	case !r.Scored:
		return StatusUnscored
	case r.GapSign > 0:
		return StatusAbove
	case r.GapSign < 0:
		return StatusBelow
	}
	return StatusOnTarget
}
