// Package model holds the contract ledger and the annotated rows the
// simulation engines produce from it.
package model

import "math"

// Column names a ledger column an engine may require.
type Column string

const (
	ColumnID                  Column = "id"
	ColumnEffectiveTotalPrice Column = "effective_total_price"
	ColumnBasePrice           Column = "base_price"
	ColumnEfficiency          Column = "efficiency"
	ColumnRiskProbability     Column = "risk_probability"
	ColumnLocation            Column = "loc"
	ColumnContractYear        Column = "contract_year"
	ColumnActType             Column = "act_type"
	ColumnCategory            Column = "category"
	ColumnBidders             Column = "bidders"
	ColumnEnvironmental       Column = "environmental"
	ColumnPandemic            Column = "covid_pandemic"
	ColumnExecution           Column = "execution_dummy"
	ColumnCostIncreased       Column = "cost_increase"
	ColumnBuyer               Column = "nipcs"
)

// Contract is one row of the ledger. Nullable inputs are pointers.
type Contract struct {
	ID                  string   `json:"id"`
	EffectiveTotalPrice float64  `json:"effective_total_price"`
	BasePrice           *float64 `json:"base_price,omitempty"`
	Efficiency          *float64 `json:"efficiency,omitempty"`
	RiskProbability     *float64 `json:"risk_probability,omitempty"`

	Location     string `json:"loc,omitempty"`
	ContractYear *int   `json:"contract_year,omitempty"`
	ActType      string `json:"act_type,omitempty"`
	// Buyer is the contracting entity's tax number. It repeats across
	// contracts and never identifies one.
	Buyer         string `json:"nipcs,omitempty"`
	Category      string `json:"category,omitempty"`
	Bidders       *int   `json:"bidders,omitempty"`
	Environmental *bool  `json:"environmental,omitempty"`
	Pandemic      *bool  `json:"covid_pandemic,omitempty"`
	Execution     *bool  `json:"execution_dummy,omitempty"`

	// CostIncreased is the observed outcome label, when the source carries one.
	CostIncreased *bool `json:"cost_increase,omitempty"`
}

// LogBasePrice returns ln(base_price), or false when the base price is
// missing or not positive.
func (c Contract) LogBasePrice() (float64, bool) {
	if c.BasePrice == nil || *c.BasePrice <= 0 {
		return 0, false
	}
	return math.Log(*c.BasePrice), true
}

// ObservedIncrease reports whether the final price exceeded the base price.
// An explicit outcome label takes precedence over the price comparison.
func (c Contract) ObservedIncrease() (bool, bool) {
	if c.CostIncreased != nil {
		return *c.CostIncreased, true
	}
	if c.BasePrice == nil {
		return false, false
	}
	return c.EffectiveTotalPrice > *c.BasePrice, true
}

// ValidEfficiency reports whether the efficiency score is present and in (0,1].
func (c Contract) ValidEfficiency() bool {
	if c.Efficiency == nil {
		return false
	}
	e := *c.Efficiency
	return e > 0 && e <= 1 && !math.IsNaN(e)
}

// ValidPrice reports whether the final price is finite and positive.
func (c Contract) ValidPrice() bool {
	p := c.EffectiveTotalPrice
	return p > 0 && !math.IsInf(p, 0)
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Bool returns a pointer to v.
func Bool(v bool) *bool { return &v }
