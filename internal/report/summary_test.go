package report

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/simerr"
)

func outcome(id, loc string, real, sim float64, eff *float64, prob *float64, atRisk bool) model.Outcome {
	return model.Outcome{
		Contract:        model.Contract{ID: id, Location: loc, EffectiveTotalPrice: real, Efficiency: eff},
		SimulatedPrice:  sim,
		RiskProbability: prob,
		AtRisk:          atRisk,
		Scored:          true,
	}
}

func TestSummarize_MitigationExample(t *testing.T) {
	s, err := Summarize([]model.Outcome{
		outcome("1", "", 1000, 1000, nil, model.Float64(0.02), false),
		outcome("2", "", 3000, 1000, nil, model.Float64(0.10), true),
	})
	require.NoError(t, err)
	assert.True(t, s.RealCost.Equal(decimal.NewFromInt(4000)))
	assert.True(t, s.SimulatedCost.Equal(decimal.NewFromInt(2000)))
	assert.True(t, s.Savings.Equal(decimal.NewFromInt(2000)))
	assert.Equal(t, 1, s.AtRisk)
	assert.Equal(t, 2, s.Scored)
	require.NotNil(t, s.SavingsPct())
	assert.InDelta(t, 50, *s.SavingsPct(), 1e-9)
}

func TestSummarize_EmptyInput(t *testing.T) {
	_, err := Summarize(nil)
	assert.True(t, simerr.Is(err, simerr.KindEmptyInput))

	_, err = GroupSummaries(nil, model.AttrLocation, MetricEfficiency)
	assert.True(t, simerr.Is(err, simerr.KindEmptyInput))
}

func TestSummarize_NonFinitePrice(t *testing.T) {
	tests := []struct {
		name string
		out  model.Outcome
	}{
		{name: "NaN real price", out: outcome("a", "Norte", math.NaN(), 10, nil, nil, false)},
		{name: "infinite real price", out: outcome("a", "Norte", math.Inf(1), 10, nil, nil, false)},
		{name: "NaN simulated price", out: outcome("a", "Norte", 10, math.NaN(), nil, nil, false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			outs := []model.Outcome{outcome("ok", "Norte", 100, 80, nil, nil, false), tt.out}
			require.NotPanics(t, func() {
				_, err := Summarize(outs)
				require.Error(t, err)
				assert.Contains(t, err.Error(), "contract a")

				_, err = GroupSummaries(outs, model.AttrLocation, MetricSavings)
				require.Error(t, err)
			})
		})
	}
}

func TestSummarize_IdentityIsExact(t *testing.T) {
	outs := []model.Outcome{
		outcome("1", "", 0.1, 0.3, nil, nil, false),
		outcome("2", "", 0.2, 0.0, nil, nil, false),
		outcome("3", "", 1234567.89, 1000000.01, nil, nil, false),
	}
	s, err := Summarize(outs)
	require.NoError(t, err)
	assert.True(t, s.RealCost.Sub(s.SimulatedCost).Equal(s.Savings))
	assert.Equal(t, "234567.88", s.RealCost.Sub(s.SimulatedCost).String())
}

func TestGroupSummaries_SortedByMetric(t *testing.T) {
	outs := []model.Outcome{
		outcome("1", "A", 10, 10, model.Float64(0.2), model.Float64(0.5), true),
		outcome("2", "A", 10, 5, model.Float64(0.4), model.Float64(0.1), true),
		outcome("3", "B", 10, 10, model.Float64(0.6), model.Float64(0.01), false),
		outcome("4", "", 10, 10, model.Float64(0.9), nil, false),
	}

	groups, err := GroupSummaries(outs, model.AttrLocation, MetricEfficiency)
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, "B", groups[0].Label)
	assert.Equal(t, "A", groups[1].Label)
	assert.InDelta(t, 0.3, *groups[1].MeanEfficiency, 1e-12)
	assert.Equal(t, 2, groups[1].Count)
	assert.Equal(t, 2, groups[1].AtRisk)
	assert.True(t, groups[1].Savings.Equal(decimal.NewFromInt(5)))

	byRisk, err := GroupSummaries(outs, model.AttrLocation, MetricRisk)
	require.NoError(t, err)
	assert.Equal(t, "A", byRisk[0].Label)

	alert, err := NewAlert(model.AttrLocation, MetricEfficiency, groups)
	require.NoError(t, err)
	assert.Equal(t, "B", alert.Highest.Label)
	assert.Equal(t, "A", alert.Lowest.Label)
	assert.Contains(t, alert.String(), "lowest efficiency is A (0.300)")
}

func TestGroupSummaries_TiesByLabel(t *testing.T) {
	outs := []model.Outcome{
		outcome("1", "Porto", 1, 1, model.Float64(0.5), nil, false),
		outcome("2", "Braga", 1, 1, model.Float64(0.5), nil, false),
		outcome("3", "Lisboa", 1, 1, nil, nil, false),
		outcome("4", "Aveiro", 1, 1, model.Float64(0.5), nil, false),
	}
	groups, err := GroupSummaries(outs, model.AttrLocation, MetricEfficiency)
	require.NoError(t, err)

	labels := make([]string, len(groups))
	for i, g := range groups {
		labels[i] = g.Label
	}
	assert.Equal(t, []string{"Aveiro", "Braga", "Porto", "Lisboa"}, labels)

	_, err = GroupSummaries(outs, model.AttrLocation, Metric("median"))
	require.Error(t, err)
}

func TestNewAlert_NoDefinedGroups(t *testing.T) {
	_, err := NewAlert(model.AttrLocation, MetricRisk, []Group{{Label: "A", Count: 1}})
	require.Error(t, err)
}

func TestFormatEuro(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234567", "€ 1 234 567"},
		{"999.4", "€ 999"},
		{"1000.5", "€ 1 001"},
		{"0", "€ 0"},
		{"-25000", "€ -25 000"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, FormatEuro(decimal.RequireFromString(tt.in)))
		})
	}
	assert.Equal(t, "12.5%", FormatPct(12.46))
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	err := WriteCSV(&buf, []model.Outcome{
		outcome("1", "Lisboa", 3000, 1000, model.Float64(0.5), model.Float64(0.1), true),
		outcome("2", "", 1000, 1000, nil, nil, false),
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "id,loc,category,act_type,contract_year,efficiency,risk_probability,at_risk,scored,effective_total_price,simulated_price,savings", lines[0])
	assert.Equal(t, "1,Lisboa,,,,0.5,0.1,true,true,3000,1000,2000", lines[1])
	assert.Equal(t, "2,,,,,,,false,true,1000,1000,0", lines[2])
}

func TestSummarizeProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	priceGen := gen.SliceOf(gen.Float64Range(0, 10_000_000))

	properties.Property("real minus simulated equals savings exactly", prop.ForAll(
		func(real, sim []float64) bool {
			n := min(len(real), len(sim))
			if n == 0 {
				return true
			}
			outs := make([]model.Outcome, n)
			for i := range n {
				outs[i] = outcome(fmt.Sprintf("c%d", i), "", real[i], sim[i], nil, nil, false)
			}
			s, err := Summarize(outs)
			if err != nil {
				return false
			}
			return s.RealCost.Sub(s.SimulatedCost).Equal(s.Savings)
		},
		priceGen, priceGen,
	))

	properties.Property("group totals add up to the portfolio totals", prop.ForAll(
		func(real []float64) bool {
			if len(real) == 0 {
				return true
			}
			outs := make([]model.Outcome, len(real))
			for i, p := range real {
				outs[i] = outcome(fmt.Sprintf("c%d", i), []string{"A", "B", "C"}[i%3], p, p/2, nil, nil, false)
			}
			s, err := Summarize(outs)
			if err != nil {
				return false
			}
			groups, err := GroupSummaries(outs, model.AttrLocation, MetricCount)
			if err != nil {
				return false
			}
			total := decimal.Zero
			for _, g := range groups {
				total = total.Add(g.Savings)
			}
			return total.Equal(s.Savings)
		},
		priceGen,
	))

	properties.TestingRun(t)
}
