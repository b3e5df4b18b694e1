package model

// Contribution is one variable's additive share of a single contract's
// predicted risk, as exported by a model explainer.
type Contribution struct {
	Variable string  `json:"variable"`
	Value    string  `json:"value,omitempty"`
	Amount   float64 `json:"contribution"`
}
