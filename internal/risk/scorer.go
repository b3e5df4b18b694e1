// Package risk applies a risk-based mitigation policy: contracts whose
// predicted probability of a cost increase reaches the threshold are priced
// at the mean of the safe contracts.
package risk

import (
	"context"
	"fmt"
	"strings"

	"github.com/sells-group/procurement-sim/internal/model"
)

// PandemicStartYear is the first contract year treated as pandemic period
// when the ledger carries no explicit flag.
const PandemicStartYear = 2020

// Features is the exact feature set a Scorer receives. Categorical values
// are passed raw; encoding them is the scorer's concern.
type Features struct {
	Location      string  `json:"loc" yaml:"loc"`
	Bidders       int     `json:"bidders" yaml:"bidders"`
	ContractYear  int     `json:"contract_year" yaml:"contract_year"`
	LogBasePrice  float64 `json:"ln_base_price" yaml:"ln_base_price"`
	ActType       string  `json:"act_type" yaml:"act_type"`
	Environmental bool    `json:"environmental" yaml:"environmental"`
	Execution     bool    `json:"execution_dummy" yaml:"execution_dummy"`
	Pandemic      bool    `json:"covid_pandemic" yaml:"covid_pandemic"`
	Category      string  `json:"CPV_agrupado" yaml:"CPV_agrupado"`
}

// Scorer returns one probability in [0,1] per feature row, in order. Any
// model family may implement it.
type Scorer interface {
	Score(ctx context.Context, rows []Features) ([]float64, error)
}

// ScorerFunc adapts a function to the Scorer interface.
type ScorerFunc func(ctx context.Context, rows []Features) ([]float64, error)

// Score calls f.
func (f ScorerFunc) Score(ctx context.Context, rows []Features) ([]float64, error) {
	return f(ctx, rows)
}

// RowError lets a scorer blame specific input rows (indices into the slice
// it was given) instead of failing the whole batch anonymously.
type RowError struct {
	Rows   []int
	Reason string
}

func (e *RowError) Error() string {
	return fmt.Sprintf("rows %v: %s", e.Rows, e.Reason)
}

// FeaturesOf builds the scorer input for a contract. It returns the names of
// the features the contract cannot supply.
func FeaturesOf(c model.Contract) (Features, []string) {
	var f Features
	var missing []string

	f.Location = c.Location
	if c.Location == "" {
		missing = append(missing, string(model.ColumnLocation))
	}
	if c.Bidders != nil {
		f.Bidders = *c.Bidders
	} else {
		missing = append(missing, string(model.ColumnBidders))
	}
	if c.ContractYear != nil {
		f.ContractYear = *c.ContractYear
	} else {
		missing = append(missing, string(model.ColumnContractYear))
	}
	if lbp, ok := c.LogBasePrice(); ok {
		f.LogBasePrice = lbp
	} else {
		missing = append(missing, "ln_base_price")
	}
	f.ActType = c.ActType
	if c.ActType == "" {
		missing = append(missing, string(model.ColumnActType))
	}
	if c.Environmental != nil {
		f.Environmental = *c.Environmental
	} else {
		missing = append(missing, string(model.ColumnEnvironmental))
	}
	if c.Execution != nil {
		f.Execution = *c.Execution
	} else {
		missing = append(missing, string(model.ColumnExecution))
	}
	switch {
	case c.Pandemic != nil:
		f.Pandemic = *c.Pandemic
	case c.ContractYear != nil:
		f.Pandemic = *c.ContractYear >= PandemicStartYear
	default:
		missing = append(missing, string(model.ColumnPandemic))
	}
	f.Category = c.Category
	if c.Category == "" {
		missing = append(missing, string(model.ColumnCategory))
	}
	return f, missing
}

// missingFeaturesError names the contracts that cannot be scored.
type missingFeaturesError struct {
	byContract map[string][]string
	order      []string
}

func (e *missingFeaturesError) Error() string {
	parts := make([]string, 0, len(e.order))
	for _, id := range e.order {
		parts = append(parts, id+": "+strings.Join(e.byContract[id], ","))
	}
	if len(parts) > 5 {
		parts = append(parts[:5], fmt.Sprintf("... %d more", len(e.order)-5))
	}
	return "missing features (" + strings.Join(parts, "; ") + ")"
}
