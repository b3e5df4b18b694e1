package benchmark

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/sells-group/procurement-sim/internal/model"
)

func ledgerFrom(effs, prices []float64) *model.Ledger {
	n := min(len(effs), len(prices))
	cs := make([]model.Contract, n)
	for i := range n {
		cs[i] = model.Contract{
			ID:                  fmt.Sprintf("c%d", i),
			EffectiveTotalPrice: prices[i],
			Efficiency:          model.Float64(effs[i]),
		}
	}
	l, _ := model.NewLedger(cs)
	return l
}

func TestApplyProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	effGen := gen.SliceOf(gen.Float64Range(0.01, 1))
	priceGen := gen.SliceOf(gen.Float64Range(1, 5_000_000))
	qGen := gen.Float64Range(0.05, 0.95)

	properties.Property("threshold and prices are deterministic", prop.ForAll(
		func(effs, prices []float64, q float64) bool {
			l := ledgerFrom(effs, prices)
			if l.Len() == 0 {
				return true
			}
			r1, err1 := Apply(l, q)
			r2, err2 := Apply(l, q)
			if err1 != nil || err2 != nil {
				return false
			}
			if r1.Threshold != r2.Threshold {
				return false
			}
			for i := range r1.Rows {
				if r1.Rows[i].SimulatedPrice != r2.Rows[i].SimulatedPrice ||
					r1.Rows[i].PolicyPrice != r2.Rows[i].PolicyPrice {
					return false
				}
			}
			return true
		},
		effGen, priceGen, qGen,
	))

	properties.Property("gap sign matches sign of price minus simulated price", prop.ForAll(
		func(effs, prices []float64, q float64) bool {
			l := ledgerFrom(effs, prices)
			if l.Len() == 0 {
				return true
			}
			r, err := Apply(l, q)
			if err != nil {
				return false
			}
			for _, row := range r.Rows {
				if sign(row.Contract.EffectiveTotalPrice-row.SimulatedPrice) != row.GapSign {
					return false
				}
			}
			return true
		},
		effGen, priceGen, qGen,
	))

	properties.Property("simulated prices are non-negative", prop.ForAll(
		func(effs, prices []float64, q float64) bool {
			l := ledgerFrom(effs, prices)
			if l.Len() == 0 {
				return true
			}
			r, err := Apply(l, q)
			if err != nil {
				return false
			}
			for _, row := range r.Rows {
				if row.SimulatedPrice < 0 || row.PolicyPrice < 0 {
					return false
				}
			}
			return true
		},
		effGen, priceGen, qGen,
	))

	properties.Property("policy price never exceeds the real price", prop.ForAll(
		func(effs, prices []float64, q float64) bool {
			l := ledgerFrom(effs, prices)
			if l.Len() == 0 {
				return true
			}
			r, err := Apply(l, q)
			if err != nil {
				return false
			}
			for _, row := range r.Rows {
				if row.PolicyPrice > row.Contract.EffectiveTotalPrice {
					return false
				}
			}
			return true
		},
		effGen, priceGen, qGen,
	))

	properties.TestingRun(t)
}
