package model

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Attribute is one of the closed set of grouping attributes. Each carries
// its own display label and binning rule.
type Attribute int

const (
	AttrLocation Attribute = iota + 1
	AttrContractYear
	AttrActType
	AttrCategory
	AttrBidders
	AttrEnvironmental
	AttrPandemic
	AttrExecution
	AttrBasePriceRange
	AttrBuyer
)

// Attributes lists the attributes of the per-variable gap table in display
// order. AttrBuyer is groupable but too fine-grained for that table.
var Attributes = []Attribute{
	AttrBidders,
	AttrPandemic,
	AttrExecution,
	AttrActType,
	AttrCategory,
	AttrLocation,
	AttrContractYear,
	AttrBasePriceRange,
	AttrEnvironmental,
}

var attributeKeys = map[Attribute]string{
	AttrLocation:       "loc",
	AttrContractYear:   "contract_year",
	AttrActType:        "act_type",
	AttrCategory:       "category",
	AttrBidders:        "bidders",
	AttrEnvironmental:  "environmental",
	AttrPandemic:       "covid_pandemic",
	AttrExecution:      "execution_dummy",
	AttrBasePriceRange: "base_price",
	AttrBuyer:          "nipcs",
}

var attributeLabels = map[Attribute]string{
	AttrLocation:       "Location NUTSII",
	AttrContractYear:   "Contract Year",
	AttrActType:        "Type of Act",
	AttrCategory:       "CPV Group",
	AttrBidders:        "Number of Bidders",
	AttrEnvironmental:  "Environmental Criteria",
	AttrPandemic:       "Pandemic Period",
	AttrExecution:      "Execution Rate",
	AttrBasePriceRange: "Base Price",
	AttrBuyer:          "Buyer NIPC",
}

// aliases accepted by ParseAttribute besides the canonical key.
var attributeAliases = map[string]Attribute{
	"location":     AttrLocation,
	"year":         AttrContractYear,
	"cpv_agrupado": AttrCategory,
	"cpv":          AttrCategory,
	"pandemic":     AttrPandemic,
	"execution":    AttrExecution,
	"base_price":   AttrBasePriceRange,
	"price_range":  AttrBasePriceRange,
	"buyer":        AttrBuyer,
}

// Key returns the machine name of the attribute.
func (a Attribute) Key() string {
	if k, ok := attributeKeys[a]; ok {
		return k
	}
	return "unknown"
}

// Label returns the display name of the attribute.
func (a Attribute) Label() string {
	if l, ok := attributeLabels[a]; ok {
		return l
	}
	return "Unknown"
}

func (a Attribute) String() string { return a.Key() }

// ParseAttribute resolves an attribute by key or alias, case-insensitively.
func ParseAttribute(s string) (Attribute, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for a, k := range attributeKeys {
		if k == s {
			return a, nil
		}
	}
	if a, ok := attributeAliases[s]; ok {
		return a, nil
	}
	return 0, eris.Errorf("model: unknown grouping attribute %q", s)
}

// basePriceBins are upper bounds (inclusive) for the base price buckets.
var basePriceBins = []struct {
	upper float64
	label string
}{
	{10_000, "<10K"},
	{50_000, "10K-50K"},
	{100_000, "50K-100K"},
	{500_000, "100K-500K"},
	{1_000_000, "500K-1M"},
	{5_000_000, "1M-5M"},
	{10_000_000, "5M-10M"},
}

// Group returns the group label of c under this attribute, or false when c
// has no value for it.
func (a Attribute) Group(c Contract) (string, bool) {
	switch a {
	case AttrLocation:
		return c.Location, c.Location != ""
	case AttrActType:
		return c.ActType, c.ActType != ""
	case AttrCategory:
		return c.Category, c.Category != ""
	case AttrBuyer:
		return c.Buyer, c.Buyer != ""
	case AttrContractYear:
		if c.ContractYear == nil {
			return "", false
		}
		return strconv.Itoa(*c.ContractYear), true
	case AttrBidders:
		if c.Bidders == nil {
			return "", false
		}
		return strconv.Itoa(*c.Bidders), true
	case AttrEnvironmental:
		return flagLabel(c.Environmental, "Environmental Criteria Applied", "No Environmental Criteria")
	case AttrPandemic:
		return flagLabel(c.Pandemic, "Pandemic Period", "Non-pandemic Period")
	case AttrExecution:
		return flagLabel(c.Execution, "Execution Met", "Execution Not Met")
	case AttrBasePriceRange:
		if c.BasePrice == nil || *c.BasePrice <= 0 {
			return "", false
		}
		for _, b := range basePriceBins {
			if *c.BasePrice <= b.upper {
				return b.label, true
			}
		}
		return ">10M", true
	}
	return "", false
}

func flagLabel(v *bool, yes, no string) (string, bool) {
	if v == nil {
		return "", false
	}
	if *v {
		return yes, true
	}
	return no, true
}
