package report

import (
	"encoding/csv"
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/procurement-sim/internal/model"
)

type csvRow struct {
	ID              string   `csv:"id"`
	Location        string   `csv:"loc,omitempty"`
	Category        string   `csv:"category,omitempty"`
	ActType         string   `csv:"act_type,omitempty"`
	ContractYear    *int     `csv:"contract_year,omitempty"`
	Efficiency      *float64 `csv:"efficiency,omitempty"`
	RiskProbability *float64 `csv:"risk_probability,omitempty"`
	AtRisk          bool     `csv:"at_risk"`
	Scored          bool     `csv:"scored"`
	RealPrice       float64  `csv:"effective_total_price"`
	SimulatedPrice  float64  `csv:"simulated_price"`
	Savings         float64  `csv:"savings"`
}

// WriteCSV exports an annotated table, one line per outcome.
func WriteCSV(w io.Writer, outcomes []model.Outcome) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)
	if err := enc.EncodeHeader(csvRow{}); err != nil {
		return eris.Wrap(err, "report: write csv header")
	}
	for _, o := range outcomes {
		c := o.Contract
		row := csvRow{
			ID:              c.ID,
			Location:        c.Location,
			Category:        c.Category,
			ActType:         c.ActType,
			ContractYear:    c.ContractYear,
			Efficiency:      c.Efficiency,
			RiskProbability: o.RiskProbability,
			AtRisk:          o.AtRisk,
			Scored:          o.Scored,
			RealPrice:       o.RealPrice(),
			SimulatedPrice:  o.SimulatedPrice,
			Savings:         o.RealPrice() - o.SimulatedPrice,
		}
		if err := enc.Encode(row); err != nil {
			return eris.Wrapf(err, "report: write csv row %s", c.ID)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "report: flush csv")
}
