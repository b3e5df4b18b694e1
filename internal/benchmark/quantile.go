// Package benchmark computes percentile-based counterfactual prices and
// efficiency gaps for a contract ledger.
package benchmark

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/procurement-sim/internal/simerr"
)

// Named benchmark scenarios.
const (
	P50 = 0.50
	P75 = 0.75
	P90 = 0.90
)

// Quantile returns the q-th quantile of values using linear interpolation
// between closest ranks (h = (n-1)q). values is not modified.
func Quantile(values []float64, q float64) (float64, error) {
	if !(q > 0 && q < 1) {
		return 0, simerr.InvalidQuantile(q)
	}
	if len(values) == 0 {
		return 0, simerr.EmptyLedger()
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)

	h := float64(len(sorted)-1) * q
	lo := math.Floor(h)
	i := int(lo)
	if i+1 >= len(sorted) {
		return sorted[len(sorted)-1], nil
	}
	return sorted[i] + (h-lo)*(sorted[i+1]-sorted[i]), nil
}

// ParseQuantile accepts "p50"/"P75" labels or a bare fraction like "0.6".
func ParseQuantile(s string) (float64, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if rest, ok := strings.CutPrefix(s, "p"); ok {
		n, err := strconv.Atoi(rest)
		if err != nil {
			return 0, eris.Errorf("benchmark: invalid benchmark label %q", s)
		}
		q := float64(n) / 100
		if !(q > 0 && q < 1) {
			return 0, simerr.InvalidQuantile(q)
		}
		return q, nil
	}
	q, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Errorf("benchmark: invalid quantile %q", s)
	}
	if !(q > 0 && q < 1) {
		return 0, simerr.InvalidQuantile(q)
	}
	return q, nil
}

// QuantileLabel renders q as "P75" when it is a whole percentile.
func QuantileLabel(q float64) string {
	pct := q * 100
	if math.Abs(pct-math.Round(pct)) < 1e-9 {
		return "P" + strconv.Itoa(int(math.Round(pct)))
	}
	return "Q" + strconv.FormatFloat(q, 'g', -1, 64)
}
