package scenario

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/risk"
	"github.com/sells-group/procurement-sim/internal/simerr"
)

// EfficiencyRange is a slider selection; its midpoint becomes the synthetic
// contract's efficiency estimate.
type EfficiencyRange struct {
	Min float64 `json:"min" mapstructure:"min"`
	Max float64 `json:"max" mapstructure:"max"`
}

// Midpoint of the range.
func (e EfficiencyRange) Midpoint() float64 { return (e.Min + e.Max) / 2 }

// Request holds the feature overrides. One synthetic contract is built per
// element of Locations × Categories × ActTypes × Bidders × Years.
type Request struct {
	Locations  []string         `json:"locations"`
	Categories []string         `json:"categories"`
	ActTypes   []string         `json:"act_types"`
	Bidders    []int            `json:"bidders"`
	Years      []int            `json:"years"`
	Efficiency *EfficiencyRange `json:"efficiency,omitempty"`
	// BasePrice feeds the model's log base price; zero selects the
	// configured default.
	BasePrice     float64 `json:"base_price,omitempty"`
	Environmental *bool   `json:"environmental,omitempty"`
	Execution     *bool   `json:"execution,omitempty"`
}

// Combinations is the number of synthetic rows req expands to.
func (r Request) Combinations() int {
	return len(r.Locations) * len(r.Categories) * len(r.ActTypes) * len(r.Bidders) * len(r.Years)
}

// Params are the pricing inputs shared by every synthetic row.
type Params struct {
	Threshold      float64 `json:"threshold"`
	ReferencePrice float64 `json:"reference_price"`
	BaselineCost   float64 `json:"baseline_cost"`
	// DefaultBasePrice applies when the request leaves BasePrice at zero.
	DefaultBasePrice float64 `json:"default_base_price"`
}

func (p Params) validate() error {
	if err := risk.ValidateThreshold(p.Threshold); err != nil {
		return err
	}
	if !(p.ReferencePrice > 0) || math.IsInf(p.ReferencePrice, 0) {
		return eris.Errorf("scenario: reference price %g must be positive", p.ReferencePrice)
	}
	if !(p.BaselineCost > 0) || math.IsInf(p.BaselineCost, 0) {
		return eris.Errorf("scenario: baseline cost %g must be positive", p.BaselineCost)
	}
	return nil
}

// Row is one priced synthetic contract.
type Row struct {
	Contract     model.Contract `json:"contract"`
	Probability  float64        `json:"probability"`
	AtRisk       bool           `json:"at_risk"`
	ExpectedCost float64        `json:"expected_cost"`
}

// Class renders the risk class label.
func (r Row) Class() string {
	if r.AtRisk {
		return "At Risk"
	}
	return "No Risk"
}

// Result is the scenario table, one row per requested combination in
// request order.
type Result struct {
	Params Params `json:"params"`
	Rows   []Row  `json:"rows"`
}

// Simulate validates req against domain, builds the synthetic contracts,
// scores them in one batch and prices each: the reference price if at risk,
// the baseline cost otherwise.
func Simulate(ctx context.Context, domain Domain, req Request, scorer risk.Scorer, p Params) (*Result, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := domain.Validate(req); err != nil {
		return nil, err
	}

	contracts := build(req, p)
	feats := make([]risk.Features, len(contracts))
	ids := make([]string, len(contracts))
	for i, c := range contracts {
		ids[i] = c.ID
		f, missing := risk.FeaturesOf(c)
		if len(missing) > 0 {
			return nil, simerr.ScoringFailed([]string{c.ID}, eris.Errorf("missing features %v", missing))
		}
		feats[i] = f
	}

	if scorer == nil {
		return nil, simerr.ScoringFailed(ids, eris.New("no scorer configured"))
	}
	probs, err := scorer.Score(ctx, feats)
	if err != nil {
		var rowErr *risk.RowError
		if errors.As(err, &rowErr) {
			blamed := make([]string, 0, len(rowErr.Rows))
			for _, j := range rowErr.Rows {
				if j >= 0 && j < len(ids) {
					blamed = append(blamed, ids[j])
				}
			}
			return nil, simerr.ScoringFailed(blamed, err)
		}
		return nil, simerr.ScoringFailed(ids, err)
	}
	if len(probs) != len(contracts) {
		return nil, simerr.ScoringFailed(ids, eris.Errorf("scorer returned %d probabilities for %d rows", len(probs), len(contracts)))
	}

	rows := make([]Row, len(contracts))
	var atRisk int
	for i, c := range contracts {
		prob := probs[i]
		if math.IsNaN(prob) || prob < 0 || prob > 1 {
			return nil, simerr.ScoringFailed([]string{c.ID}, eris.Errorf("probability %g outside [0,1]", prob))
		}
		row := Row{Contract: c, Probability: prob, AtRisk: prob >= p.Threshold, ExpectedCost: p.BaselineCost}
		if row.AtRisk {
			row.ExpectedCost = p.ReferencePrice
			atRisk++
		}
		rows[i] = row
	}

	zap.L().Info("scenario: simulated",
		zap.Int("combinations", len(rows)),
		zap.Int("at_risk", atRisk),
		zap.Float64("threshold", p.Threshold),
	)
	return &Result{Params: p, Rows: rows}, nil
}

// build expands the cartesian product, nested in field order.
func build(req Request, p Params) []model.Contract {
	base := req.BasePrice
	if base == 0 {
		base = p.DefaultBasePrice
	}
	env := true
	if req.Environmental != nil {
		env = *req.Environmental
	}
	exec := false
	if req.Execution != nil {
		exec = *req.Execution
	}
	var eff *float64
	if req.Efficiency != nil {
		eff = model.Float64(req.Efficiency.Midpoint())
	}

	out := make([]model.Contract, 0, req.Combinations())
	for _, loc := range req.Locations {
		for _, cat := range req.Categories {
			for _, act := range req.ActTypes {
				for _, bidders := range req.Bidders {
					for _, year := range req.Years {
						out = append(out, model.Contract{
							ID:                  fmt.Sprintf("scenario-%d", len(out)+1),
							EffectiveTotalPrice: p.BaselineCost,
							BasePrice:           model.Float64(base),
							Efficiency:          eff,
							Location:            loc,
							ContractYear:        model.Int(year),
							ActType:             act,
							Category:            cat,
							Bidders:             model.Int(bidders),
							Environmental:       model.Bool(env),
							Pandemic:            model.Bool(year >= risk.PandemicStartYear),
							Execution:           model.Bool(exec),
						})
					}
				}
			}
		}
	}
	return out
}

// Outcomes converts the scenario table into aggregation input. The baseline
// cost stands in for the real price.
func (r *Result) Outcomes() []model.Outcome {
	out := make([]model.Outcome, len(r.Rows))
	for i, row := range r.Rows {
		p := row.Probability
		out[i] = model.Outcome{
			Contract:        row.Contract,
			SimulatedPrice:  row.ExpectedCost,
			RiskProbability: &p,
			AtRisk:          row.AtRisk,
			Scored:          true,
		}
	}
	return out
}

// ReferenceFromLedger prices at-risk scenarios from history: the mean price
// of safe ledger contracts whose efficiency reaches floor.
func ReferenceFromLedger(ctx context.Context, ledger *model.Ledger, scorer risk.Scorer, threshold, floor float64) (float64, error) {
	res, err := risk.Apply(ctx, ledger, scorer, threshold)
	if err != nil {
		return 0, err
	}
	return risk.ReferencePrice(res.Rows, threshold, floor)
}
