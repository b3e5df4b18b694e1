// Package scenario builds synthetic contracts from user-chosen feature values
// and prices them under the risk policy.
package scenario

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/simerr"
)

// IntRange is an observed closed interval. Valid is false when the ledger
// carries no value for the feature.
type IntRange struct {
	Min   int  `json:"min"`
	Max   int  `json:"max"`
	Valid bool `json:"valid"`
}

// Contains reports whether v lies in the observed range.
func (r IntRange) Contains(v int) bool {
	return r.Valid && v >= r.Min && v <= r.Max
}

func (r *IntRange) observe(v int) {
	if !r.Valid {
		*r = IntRange{Min: v, Max: v, Valid: true}
		return
	}
	r.Min = min(r.Min, v)
	r.Max = max(r.Max, v)
}

// FloatRange is the float counterpart of IntRange.
type FloatRange struct {
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Valid bool    `json:"valid"`
}

// Contains reports whether v lies in the observed range.
func (r FloatRange) Contains(v float64) bool {
	return r.Valid && v >= r.Min && v <= r.Max
}

func (r *FloatRange) observe(v float64) {
	if !r.Valid {
		*r = FloatRange{Min: v, Max: v, Valid: true}
		return
	}
	r.Min = min(r.Min, v)
	r.Max = max(r.Max, v)
}

// Domain is the set of values a ledger actually contains. Scenario overrides
// must stay inside it.
type Domain struct {
	Locations  []string   `json:"locations"`
	Categories []string   `json:"categories"`
	ActTypes   []string   `json:"act_types"`
	Bidders    IntRange   `json:"bidders"`
	Years      IntRange   `json:"years"`
	Efficiency FloatRange `json:"efficiency"`
}

// DomainOf captures the observed categorical sets (sorted) and numeric
// ranges of a ledger. Efficiency outside (0,1] is ignored.
func DomainOf(ledger *model.Ledger) Domain {
	var d Domain
	locs := map[string]bool{}
	cats := map[string]bool{}
	acts := map[string]bool{}
	for _, c := range ledger.Contracts() {
		if c.Location != "" {
			locs[c.Location] = true
		}
		if c.Category != "" {
			cats[c.Category] = true
		}
		if c.ActType != "" {
			acts[c.ActType] = true
		}
		if c.Bidders != nil {
			d.Bidders.observe(*c.Bidders)
		}
		if c.ContractYear != nil {
			d.Years.observe(*c.ContractYear)
		}
		if c.ValidEfficiency() {
			d.Efficiency.observe(*c.Efficiency)
		}
	}
	d.Locations = sortedKeys(locs)
	d.Categories = sortedKeys(cats)
	d.ActTypes = sortedKeys(acts)
	return d
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Validate checks every override of req against the domain.
func (d Domain) Validate(req Request) error {
	if err := checkMembers(model.ColumnLocation, req.Locations, d.Locations); err != nil {
		return err
	}
	if err := checkMembers(model.ColumnCategory, req.Categories, d.Categories); err != nil {
		return err
	}
	if err := checkMembers(model.ColumnActType, req.ActTypes, d.ActTypes); err != nil {
		return err
	}
	if err := checkInts(model.ColumnBidders, req.Bidders, d.Bidders); err != nil {
		return err
	}
	if err := checkInts(model.ColumnContractYear, req.Years, d.Years); err != nil {
		return err
	}
	if e := req.Efficiency; e != nil {
		col := string(model.ColumnEfficiency)
		if e.Min > e.Max {
			return simerr.OutOfDomainValue(col, fmt.Sprintf("%g-%g", e.Min, e.Max), "range minimum exceeds maximum")
		}
		for _, v := range []float64{e.Min, e.Max} {
			if !d.Efficiency.Contains(v) {
				return simerr.OutOfDomainValue(col, strconv.FormatFloat(v, 'g', -1, 64), rangeDetail(d.Efficiency.Valid, d.Efficiency.Min, d.Efficiency.Max))
			}
		}
	}
	if req.BasePrice < 0 {
		return simerr.OutOfDomainValue(string(model.ColumnBasePrice), strconv.FormatFloat(req.BasePrice, 'g', -1, 64), "base price must be positive")
	}
	return nil
}

func checkMembers(col model.Column, values, observed []string) error {
	if len(values) == 0 {
		return simerr.OutOfDomainValue(string(col), "", "no value selected")
	}
	for _, v := range values {
		if _, found := slices.BinarySearch(observed, v); !found {
			return simerr.OutOfDomainValue(string(col), v, fmt.Sprintf("not among %d observed values", len(observed)))
		}
	}
	return nil
}

func checkInts(col model.Column, values []int, r IntRange) error {
	if len(values) == 0 {
		return simerr.OutOfDomainValue(string(col), "", "no value selected")
	}
	for _, v := range values {
		if !r.Contains(v) {
			return simerr.OutOfDomainValue(string(col), strconv.Itoa(v), rangeDetail(r.Valid, float64(r.Min), float64(r.Max)))
		}
	}
	return nil
}

func rangeDetail(valid bool, lo, hi float64) string {
	if !valid {
		return "no observed values"
	}
	return fmt.Sprintf("observed range [%g, %g]", lo, hi)
}
