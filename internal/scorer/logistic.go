// Package scorer provides risk.Scorer implementations: a local logistic
// model and a client for a remote scoring service.
package scorer

import (
	"context"
	"math"
	"os"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/procurement-sim/internal/risk"
)

// LogisticModel is a fitted logistic regression over risk.Features.
// Categorical levels missing from the coefficient tables contribute 0.
type LogisticModel struct {
	Name      string  `yaml:"name"`
	Intercept float64 `yaml:"intercept"`
	// Numeric coefficients keyed by bidders, contract_year, ln_base_price.
	Numeric map[string]float64 `yaml:"numeric"`
	// Flags keyed by environmental, execution_dummy, covid_pandemic; applied
	// when the flag is true.
	Flags map[string]float64 `yaml:"flags"`
	// Categorical maps a feature (loc, act_type, CPV_agrupado) to per-level
	// coefficients.
	Categorical map[string]map[string]float64 `yaml:"categorical"`
}

// LoadLogisticModel reads a model file.
func LoadLogisticModel(path string) (*LogisticModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: read model %s", path)
	}
	m, err := ParseLogisticModel(data)
	if err != nil {
		return nil, eris.Wrapf(err, "scorer: model %s", path)
	}
	zap.L().Debug("scorer: loaded logistic model",
		zap.String("path", path),
		zap.String("name", m.Name),
		zap.Int("categorical_features", len(m.Categorical)),
	)
	return m, nil
}

var knownTerms = map[string]map[string]bool{
	"numeric":     {"bidders": true, "contract_year": true, "ln_base_price": true},
	"flags":       {"environmental": true, "execution_dummy": true, "covid_pandemic": true},
	"categorical": {"loc": true, "act_type": true, "CPV_agrupado": true},
}

// ParseLogisticModel decodes and validates a YAML model.
func ParseLogisticModel(data []byte) (*LogisticModel, error) {
	var m LogisticModel
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "scorer: decode model")
	}
	for name := range m.Numeric {
		if !knownTerms["numeric"][name] {
			return nil, eris.Errorf("scorer: unknown numeric term %q", name)
		}
	}
	for name := range m.Flags {
		if !knownTerms["flags"][name] {
			return nil, eris.Errorf("scorer: unknown flag term %q", name)
		}
	}
	for name := range m.Categorical {
		if !knownTerms["categorical"][name] {
			return nil, eris.Errorf("scorer: unknown categorical term %q", name)
		}
	}
	return &m, nil
}

// Score implements risk.Scorer. Rows with a non-finite log base price or an
// empty categorical value are reported together in a *risk.RowError.
func (m *LogisticModel) Score(ctx context.Context, rows []risk.Features) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]float64, len(rows))
	var bad []int
	for i, f := range rows {
		if math.IsNaN(f.LogBasePrice) || math.IsInf(f.LogBasePrice, 0) ||
			f.Location == "" || f.ActType == "" || f.Category == "" {
			bad = append(bad, i)
			continue
		}
		out[i] = sigmoid(m.linear(f))
	}
	if len(bad) > 0 {
		return nil, &risk.RowError{Rows: bad, Reason: "incomplete features"}
	}
	return out, nil
}

func (m *LogisticModel) linear(f risk.Features) float64 {
	z := m.Intercept
	z += m.Numeric["bidders"] * float64(f.Bidders)
	z += m.Numeric["contract_year"] * float64(f.ContractYear)
	z += m.Numeric["ln_base_price"] * f.LogBasePrice
	if f.Environmental {
		z += m.Flags["environmental"]
	}
	if f.Execution {
		z += m.Flags["execution_dummy"]
	}
	if f.Pandemic {
		z += m.Flags["covid_pandemic"]
	}
	z += m.Categorical["loc"][f.Location]
	z += m.Categorical["act_type"][f.ActType]
	z += m.Categorical["CPV_agrupado"][f.Category]
	return z
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}
