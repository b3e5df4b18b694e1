package risk

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/simerr"
)

// Row is one contract annotated by the mitigation policy.
type Row struct {
	Contract        model.Contract `json:"contract"`
	RiskProbability float64        `json:"risk_probability"`
	// Flagged holds iff RiskProbability >= threshold.
	Flagged        bool    `json:"flagged"`
	SimulatedPrice float64 `json:"simulated_price"`
	// Precomputed is true when the probability came from the ledger rather
	// than from the scorer.
	Precomputed bool `json:"precomputed"`
	// NonPositivePrice rows are left out of the reference price and keep
	// their real price even when flagged.
	NonPositivePrice bool `json:"non_positive_price,omitempty"`
}

// Class renders the risk class label.
func (r Row) Class() string {
	if r.Flagged {
		return "High Risk"
	}
	return "Low Risk"
}

// Result is the annotated copy of a ledger under the mitigation policy.
type Result struct {
	Threshold      float64 `json:"threshold"`
	ReferencePrice float64 `json:"reference_price"`
	Rows           []Row   `json:"rows"`
	ScoredOnDemand int     `json:"scored_on_demand"`
}

// ValidateThreshold rejects thresholds outside [0,1].
func ValidateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return eris.Errorf("risk: threshold %g outside [0,1]", threshold)
	}
	return nil
}

// Apply scores contracts lacking a probability, partitions the ledger at
// threshold and prices flagged contracts at the mean price of the safe ones.
// Safe contracts keep their real price.
func Apply(ctx context.Context, ledger *model.Ledger, scorer Scorer, threshold float64) (*Result, error) {
	if err := ValidateThreshold(threshold); err != nil {
		return nil, err
	}
	if ledger.Len() == 0 {
		return nil, simerr.EmptyLedger()
	}
	if !ledger.Has(model.ColumnEffectiveTotalPrice) {
		return nil, simerr.MissingColumn(string(model.ColumnEffectiveTotalPrice))
	}

	contracts := ledger.Contracts()
	probs, onDemand, err := probabilities(ctx, contracts, scorer)
	if err != nil {
		return nil, err
	}

	rows := make([]Row, len(contracts))
	for i, c := range contracts {
		rows[i] = Row{
			Contract:         c,
			RiskProbability:  probs[i],
			Flagged:          probs[i] >= threshold,
			Precomputed:      c.RiskProbability != nil,
			NonPositivePrice: !c.ValidPrice(),
		}
	}

	ref, err := ReferencePrice(rows, threshold, 0)
	if err != nil {
		return nil, err
	}

	var flagged, badPrice int
	for i := range rows {
		if rows[i].Flagged {
			flagged++
		}
		if rows[i].NonPositivePrice {
			badPrice++
		}
		if rows[i].Flagged && !rows[i].NonPositivePrice {
			rows[i].SimulatedPrice = ref
		} else {
			rows[i].SimulatedPrice = rows[i].Contract.EffectiveTotalPrice
		}
	}

	zap.L().Info("risk: mitigation applied",
		zap.Float64("threshold", threshold),
		zap.Int("contracts", len(rows)),
		zap.Int("flagged", flagged),
		zap.Int("scored_on_demand", onDemand),
		zap.Int("non_positive_price", badPrice),
		zap.Float64("reference_price", ref),
	)

	return &Result{Threshold: threshold, ReferencePrice: ref, Rows: rows, ScoredOnDemand: onDemand}, nil
}

// probabilities returns one probability per contract, invoking the scorer
// only for contracts without a precomputed value.
func probabilities(ctx context.Context, contracts []model.Contract, scorer Scorer) ([]float64, int, error) {
	probs := make([]float64, len(contracts))
	var pending []int
	var badIDs []string
	for i, c := range contracts {
		if c.RiskProbability == nil {
			pending = append(pending, i)
			continue
		}
		p := *c.RiskProbability
		if math.IsNaN(p) || p < 0 || p > 1 {
			badIDs = append(badIDs, c.ID)
			continue
		}
		probs[i] = p
	}
	if len(badIDs) > 0 {
		return nil, 0, simerr.ScoringFailed(badIDs, eris.New("precomputed probability outside [0,1]"))
	}
	if len(pending) == 0 {
		return probs, 0, nil
	}

	ids := make([]string, len(pending))
	for j, i := range pending {
		ids[j] = contracts[i].ID
	}
	if scorer == nil {
		return nil, 0, simerr.ScoringFailed(ids, eris.New("no scorer configured"))
	}

	feats := make([]Features, len(pending))
	missing := &missingFeaturesError{byContract: map[string][]string{}}
	for j, i := range pending {
		f, miss := FeaturesOf(contracts[i])
		if len(miss) > 0 {
			missing.byContract[contracts[i].ID] = miss
			missing.order = append(missing.order, contracts[i].ID)
		}
		feats[j] = f
	}
	if len(missing.order) > 0 {
		return nil, 0, simerr.ScoringFailed(missing.order, missing)
	}

	scores, err := scorer.Score(ctx, feats)
	if err != nil {
		var rowErr *RowError
		if errors.As(err, &rowErr) {
			blamed := make([]string, 0, len(rowErr.Rows))
			for _, j := range rowErr.Rows {
				if j >= 0 && j < len(ids) {
					blamed = append(blamed, ids[j])
				}
			}
			return nil, 0, simerr.ScoringFailed(blamed, err)
		}
		return nil, 0, simerr.ScoringFailed(ids, err)
	}
	if len(scores) != len(pending) {
		return nil, 0, simerr.ScoringFailed(ids, eris.Errorf("scorer returned %d probabilities for %d rows", len(scores), len(pending)))
	}
	for j, i := range pending {
		p := scores[j]
		if math.IsNaN(p) || p < 0 || p > 1 {
			badIDs = append(badIDs, ids[j])
			continue
		}
		probs[i] = p
	}
	if len(badIDs) > 0 {
		return nil, 0, simerr.ScoringFailed(badIDs, eris.New("scorer returned probability outside [0,1]"))
	}
	return probs, len(pending), nil
}

// ReferencePrice is the mean real price of safe contracts (probability below
// threshold) with a positive price. When minEfficiency > 0 only safe
// contracts with at least that efficiency count. It fails with
// NoSafeContracts rather than returning 0.
func ReferencePrice(rows []Row, threshold, minEfficiency float64) (float64, error) {
	var sum float64
	var n int
	for _, r := range rows {
		if r.RiskProbability >= threshold || !r.Contract.ValidPrice() {
			continue
		}
		if minEfficiency > 0 {
			if r.Contract.Efficiency == nil || *r.Contract.Efficiency < minEfficiency {
				continue
			}
		}
		sum += r.Contract.EffectiveTotalPrice
		n++
	}
	if n == 0 {
		return 0, simerr.NoSafeContracts(threshold)
	}
	return sum / float64(n), nil
}

// Outcomes converts the result into aggregation input.
func (r *Result) Outcomes() []model.Outcome {
	out := make([]model.Outcome, len(r.Rows))
	for i, row := range r.Rows {
		p := row.RiskProbability
		out[i] = model.Outcome{
			Contract:        row.Contract,
			SimulatedPrice:  row.SimulatedPrice,
			RiskProbability: &p,
			AtRisk:          row.Flagged,
			Scored:          !row.NonPositivePrice,
		}
	}
	return out
}

// Stats are the headline mitigation indicators.
type Stats struct {
	Contracts int     `json:"contracts"`
	Flagged   int     `json:"flagged"`
	AtRiskPct float64 `json:"at_risk_pct"`
	// ObservedIncreasePct is the share of contracts whose final price
	// exceeded the base price, over contracts where that is known.
	ObservedIncreasePct *float64 `json:"observed_increase_pct,omitempty"`
	// NonPositivePrice counts contracts excluded from the reference price.
	NonPositivePrice int `json:"non_positive_price"`
}

// Stats computes the at-risk and observed-increase shares.
func (r *Result) Stats() Stats {
	s := Stats{Contracts: len(r.Rows)}
	var known, increased int
	for _, row := range r.Rows {
		if row.Flagged {
			s.Flagged++
		}
		if row.NonPositivePrice {
			s.NonPositivePrice++
		}
		if inc, ok := row.Contract.ObservedIncrease(); ok {
			known++
			if inc {
				increased++
			}
		}
	}
	if s.Contracts > 0 {
		s.AtRiskPct = float64(s.Flagged) / float64(s.Contracts) * 100
	}
	if known > 0 {
		pct := float64(increased) / float64(known) * 100
		s.ObservedIncreasePct = &pct
	}
	return s
}

// Top returns up to n flagged contracts by probability descending, ties
// broken by contract id ascending.
func (r *Result) Top(n int) []Row {
	var flagged []Row
	for _, row := range r.Rows {
		if row.Flagged {
			flagged = append(flagged, row)
		}
	}
	slices.SortStableFunc(flagged, func(a, b Row) int {
		if c := cmp.Compare(b.RiskProbability, a.RiskProbability); c != 0 {
			return c
		}
		return cmp.Compare(a.Contract.ID, b.Contract.ID)
	})
	if n > 0 && len(flagged) > n {
		flagged = flagged[:n]
	}
	return flagged
}
