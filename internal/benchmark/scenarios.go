package benchmark

import (
	"context"
	"math"
	"slices"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/simerr"
)

// DefaultQuantiles are the dashboard's benchmark scenarios.
var DefaultQuantiles = []float64{P50, P75, P90}

// RunScenarios applies each quantile to the same ledger concurrently.
// Results are returned in the order of quantiles, only after every
// scenario has completed; the first failure cancels the rest.
func RunScenarios(ctx context.Context, ledger *model.Ledger, quantiles []float64) ([]*Result, error) {
	results := make([]*Result, len(quantiles))
	g, gctx := errgroup.WithContext(ctx)
	for i, q := range quantiles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := Apply(ledger, q)
			if err != nil {
				return eris.Wrapf(err, "benchmark: scenario %s", QuantileLabel(q))
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// VariableGap is the mean efficiency gap of one grouping attribute against
// each benchmark quantile.
type VariableGap struct {
	Attribute model.Attribute `json:"-"`
	Key       string          `json:"variable"`
	Label     string          `json:"label"`
	Groups    int             `json:"groups"`
	// Gaps is aligned with the requested quantiles.
	Gaps []float64 `json:"gaps"`
}

// VariableGaps computes, for each attribute and quantile, the average over
// the attribute's groups of (group mean efficiency - benchmark threshold).
// Attributes with no groupable contract are skipped.
func VariableGaps(ledger *model.Ledger, attrs []model.Attribute, quantiles []float64) ([]VariableGap, error) {
	if ledger.Len() == 0 {
		return nil, simerr.EmptyLedger()
	}
	if !ledger.Has(model.ColumnEfficiency) {
		return nil, simerr.MissingColumn(string(model.ColumnEfficiency))
	}

	contracts := ledger.Contracts()
	effs := make([]float64, 0, len(contracts))
	for _, c := range contracts {
		if scorable(c) {
			effs = append(effs, *c.Efficiency)
		}
	}
	thresholds := make([]float64, len(quantiles))
	for i, q := range quantiles {
		t, err := Quantile(effs, q)
		if err != nil {
			return nil, err
		}
		thresholds[i] = t
	}

	var out []VariableGap
	for _, attr := range attrs {
		means := groupMeanEfficiency(contracts, attr)
		if len(means) == 0 {
			continue
		}
		// Sum in label order so the result does not depend on map iteration.
		labels := make([]string, 0, len(means))
		for l := range means {
			labels = append(labels, l)
		}
		slices.Sort(labels)

		vg := VariableGap{
			Attribute: attr,
			Key:       attr.Key(),
			Label:     attr.Label(),
			Groups:    len(labels),
			Gaps:      make([]float64, len(thresholds)),
		}
		for i, t := range thresholds {
			var sum float64
			for _, l := range labels {
				sum += means[l] - t
			}
			vg.Gaps[i] = round3(sum / float64(len(labels)))
		}
		out = append(out, vg)
	}
	return out, nil
}

func groupMeanEfficiency(contracts []model.Contract, attr model.Attribute) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)
	for _, c := range contracts {
		if !scorable(c) {
			continue
		}
		label, ok := attr.Group(c)
		if !ok {
			continue
		}
		sums[label] += *c.Efficiency
		counts[label]++
	}
	means := make(map[string]float64, len(sums))
	for l, s := range sums {
		means[l] = s / float64(counts[l])
	}
	return means
}

// round3 rounds to three decimals, the precision the gap table is reported at.
func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
