package report

import (
	"cmp"
	"math"
	"slices"

	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/simerr"
)

// Driver is one variable's aggregate contribution to predicted risk.
type Driver struct {
	Variable     string  `json:"variable"`
	Observations int     `json:"observations"`
	Mean         float64 `json:"mean_contribution"`
	// Importance is |Mean|. Contributions of opposite sign cancel before
	// the absolute value is taken.
	Importance float64 `json:"importance"`
}

// Importance averages contributions per variable and ranks variables by the
// absolute mean, largest first. Ties rank by name.
func Importance(contributions []model.Contribution) ([]Driver, error) {
	if len(contributions) == 0 {
		return nil, simerr.EmptyInput("variable contributions")
	}
	type acc struct {
		sum float64
		n   int
	}
	byVar := map[string]*acc{}
	for _, c := range contributions {
		a := byVar[c.Variable]
		if a == nil {
			a = &acc{}
			byVar[c.Variable] = a
		}
		a.sum += c.Amount
		a.n++
	}

	drivers := make([]Driver, 0, len(byVar))
	for v, a := range byVar {
		mean := a.sum / float64(a.n)
		drivers = append(drivers, Driver{Variable: v, Observations: a.n, Mean: mean, Importance: math.Abs(mean)})
	}
	slices.SortFunc(drivers, func(a, b Driver) int {
		if c := cmp.Compare(b.Importance, a.Importance); c != 0 {
			return c
		}
		return cmp.Compare(a.Variable, b.Variable)
	})
	return drivers, nil
}

// TopDrivers returns the first n ranked drivers, or all of them when there
// are fewer.
func TopDrivers(drivers []Driver, n int) []Driver {
	if n < 0 {
		n = 0
	}
	return drivers[:min(n, len(drivers))]
}
