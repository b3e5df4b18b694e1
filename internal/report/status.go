package report

import (
	"cmp"
	"slices"

	"github.com/sells-group/procurement-sim/internal/benchmark"
	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/simerr"
)

// StatusCount tallies benchmark statuses within one attribute group.
type StatusCount struct {
	Label    string `json:"label"`
	Above    int    `json:"above"`
	Below    int    `json:"below"`
	OnTarget int    `json:"on_target"`
	Unscored int    `json:"unscored"`
}

// Total is the number of contracts in the group.
func (s StatusCount) Total() int { return s.Above + s.Below + s.OnTarget + s.Unscored }

// StatusCounts counts benchmark rows per attribute group and status. Rows
// without a value for attr are left out. Groups are ordered by size, then
// label.
func StatusCounts(rows []benchmark.Row, attr model.Attribute) ([]StatusCount, error) {
	if len(rows) == 0 {
		return nil, simerr.EmptyInput("benchmark table")
	}
	byLabel := map[string]*StatusCount{}
	for _, r := range rows {
		label, ok := attr.Group(r.Contract)
		if !ok {
			continue
		}
		sc := byLabel[label]
		if sc == nil {
			sc = &StatusCount{Label: label}
			byLabel[label] = sc
		}
		switch r.Status() {
		case benchmark.StatusAbove:
			sc.Above++
		case benchmark.StatusBelow:
			sc.Below++
		case benchmark.StatusOnTarget:
			sc.OnTarget++
		default:
			sc.Unscored++
		}
	}

	out := make([]StatusCount, 0, len(byLabel))
	for _, sc := range byLabel {
		out = append(out, *sc)
	}
	slices.SortFunc(out, func(a, b StatusCount) int {
		if c := cmp.Compare(b.Total(), a.Total()); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return out, nil
}
