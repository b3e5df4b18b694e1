package model

// Outcome is the engine-neutral annotated row consumed by aggregation: the
// original contract plus the price it would have under the active policy.
type Outcome struct {
	Contract        Contract `json:"contract"`
	SimulatedPrice  float64  `json:"simulated_price"`
	RiskProbability *float64 `json:"risk_probability,omitempty"`
	AtRisk          bool     `json:"at_risk"`
	// Scored is false for rows the engine could not evaluate (for example a
	// missing efficiency score). Unscored rows keep their real price.
	Scored bool `json:"scored"`
}

// RealPrice returns the contract's actual price.
func (o Outcome) RealPrice() float64 {
	return o.Contract.EffectiveTotalPrice
}
