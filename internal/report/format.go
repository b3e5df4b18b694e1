package report

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/sells-group/procurement-sim/internal/model"
)

var printer = message.NewPrinter(language.English)

// FormatEuro renders v rounded to whole euros with space digit grouping,
// e.g. "€ 1 234 567".
func FormatEuro(v decimal.Decimal) string {
	n := v.Round(0).IntPart()
	return "€ " + strings.ReplaceAll(printer.Sprintf("%d", n), ",", " ")
}

// FormatPct renders a percentage with one decimal.
func FormatPct(v float64) string {
	return printer.Sprintf("%.1f%%", v)
}

// Alert names the lowest and highest ranked groups.
type Alert struct {
	Attribute model.Attribute `json:"-"`
	Metric    Metric          `json:"metric"`
	Highest   Group           `json:"highest"`
	Lowest    Group           `json:"lowest"`
}

// NewAlert picks the ends of groups, which must already be sorted by
// GroupSummaries. Groups whose metric is undefined are never picked.
func NewAlert(attr model.Attribute, metric Metric, groups []Group) (Alert, error) {
	var defined []Group
	for _, g := range groups {
		if _, ok := g.Value(metric); ok {
			defined = append(defined, g)
		}
	}
	if len(defined) == 0 {
		return Alert{}, eris.Errorf("report: no %s groups with a defined %s", attr.Label(), metric)
	}
	return Alert{Attribute: attr, Metric: metric, Highest: defined[0], Lowest: defined[len(defined)-1]}, nil
}

// String renders the alert line shown under grouped summaries.
func (a Alert) String() string {
	hi, _ := a.Highest.Value(a.Metric)
	lo, _ := a.Lowest.Value(a.Metric)
	return fmt.Sprintf("%s: lowest %s is %s (%s), highest is %s (%s)",
		a.Attribute.Label(), a.Metric, a.Lowest.Label, formatMetric(a.Metric, lo),
		a.Highest.Label, formatMetric(a.Metric, hi))
}

func formatMetric(m Metric, v float64) string {
	switch m {
	case MetricEfficiency, MetricRisk:
		return fmt.Sprintf("%.3f", v)
	case MetricSavings:
		return FormatEuro(decimal.NewFromFloat(v))
	default:
		return fmt.Sprintf("%.0f", v)
	}
}
