// Package ingest loads a contract ledger from CSV or XLSX files.
package ingest

import (
	"errors"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/simerr"
)

// Options configures LoadLedger.
type Options struct {
	// Sheet selects the XLSX worksheet by name. Empty means the first sheet.
	Sheet string
}

// aliases maps normalized source headers to ledger columns.
var aliases = map[string]model.Column{
	"id":                    model.ColumnID,
	"contract_id":           model.ColumnID,
	"nipcs":                 model.ColumnBuyer,
	"buyer":                 model.ColumnBuyer,
	"effective_total_price": model.ColumnEffectiveTotalPrice,
	"base_price":            model.ColumnBasePrice,
	"efficiency":            model.ColumnEfficiency,
	"risk_prob":             model.ColumnRiskProbability,
	"risk_probability":      model.ColumnRiskProbability,
	"loc":                   model.ColumnLocation,
	"contract_year":         model.ColumnContractYear,
	"act_type":              model.ColumnActType,
	"cpv_agrupado":          model.ColumnCategory,
	"category":              model.ColumnCategory,
	"bidders":               model.ColumnBidders,
	"environmental":         model.ColumnEnvironmental,
	"covid_pandemic":        model.ColumnPandemic,
	"execution_dummy":       model.ColumnExecution,
	"custo_aumentou":        model.ColumnCostIncreased,
	"cost_increase":         model.ColumnCostIncreased,
}

// record is one decoded ledger row. Empty cells decode to nil.
type record struct {
	ID            string   `csv:"id"`
	Price         *float64 `csv:"effective_total_price"`
	BasePrice     *float64 `csv:"base_price"`
	Efficiency    *float64 `csv:"efficiency"`
	Risk          *float64 `csv:"risk_probability"`
	Location      string   `csv:"loc"`
	Year          *count   `csv:"contract_year"`
	ActType       string   `csv:"act_type"`
	Buyer         string   `csv:"nipcs"`
	Category      string   `csv:"category"`
	Bidders       *count   `csv:"bidders"`
	Environmental *flag    `csv:"environmental"`
	Pandemic      *flag    `csv:"covid_pandemic"`
	Execution     *flag    `csv:"execution_dummy"`
	CostIncreased *flag    `csv:"cost_increase"`
}

func (r record) contract(row int) (model.Contract, error) {
	if r.Price == nil {
		return model.Contract{}, eris.Errorf("ingest: row %d: empty %s", row, model.ColumnEffectiveTotalPrice)
	}
	for _, cell := range []struct {
		col model.Column
		v   *float64
	}{
		{model.ColumnEffectiveTotalPrice, r.Price},
		{model.ColumnBasePrice, r.BasePrice},
		{model.ColumnEfficiency, r.Efficiency},
		{model.ColumnRiskProbability, r.Risk},
	} {
		if cell.v != nil && (math.IsNaN(*cell.v) || math.IsInf(*cell.v, 0)) {
			return model.Contract{}, eris.Errorf("ingest: row %d: non-finite %s %v", row, cell.col, *cell.v)
		}
	}
	c := model.Contract{
		ID:                  strings.TrimSpace(r.ID),
		EffectiveTotalPrice: *r.Price,
		BasePrice:           r.BasePrice,
		Efficiency:          r.Efficiency,
		RiskProbability:     r.Risk,
		Location:            strings.TrimSpace(r.Location),
		ActType:             strings.TrimSpace(r.ActType),
		Buyer:               strings.TrimSpace(r.Buyer),
		Category:            strings.TrimSpace(r.Category),
		ContractYear:        r.Year.ptr(),
		Bidders:             r.Bidders.ptr(),
		Environmental:       r.Environmental.ptr(),
		Pandemic:            r.Pandemic.ptr(),
		Execution:           r.Execution.ptr(),
		CostIncreased:       r.CostIncreased.ptr(),
	}
	if c.ID == "" {
		c.ID = strconv.Itoa(row)
	}
	return c, nil
}

// count is an integer cell that tolerates a float rendering such as "3.0".
type count int

func (c *count) UnmarshalText(b []byte) error {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(b)), 64)
	if err != nil || f != math.Trunc(f) {
		return eris.Errorf("ingest: %q is not an integer", b)
	}
	*c = count(f)
	return nil
}

func (c *count) ptr() *int {
	if c == nil {
		return nil
	}
	return model.Int(int(*c))
}

// flag is a boolean cell: 1/0, true/false, yes/no, sim/não.
type flag bool

func (f *flag) UnmarshalText(b []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(b))) {
	case "1", "1.0", "true", "t", "yes", "y", "sim":
		*f = true
	case "0", "0.0", "false", "f", "no", "n", "não", "nao":
		*f = false
	default:
		return eris.Errorf("ingest: %q is not a boolean", b)
	}
	return nil
}

func (f *flag) ptr() *bool {
	if f == nil {
		return nil
	}
	return model.Bool(bool(*f))
}

// LoadLedger reads the ledger at path, choosing the parser by extension.
func LoadLedger(path string, opts Options) (*model.Ledger, error) {
	var (
		ledger *model.Ledger
		err    error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		ledger, err = LoadCSVFile(path)
	case ".xlsx":
		ledger, err = LoadXLSX(path, opts.Sheet)
	default:
		return nil, eris.Errorf("ingest: unsupported ledger format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	zap.L().Info("ingest: loaded ledger",
		zap.String("path", path),
		zap.Int("contracts", ledger.Len()),
		zap.Int("columns", len(ledger.Columns())),
	)
	return ledger, nil
}

// rowReader is the row source shared by the CSV and XLSX paths.
type rowReader interface {
	Read() ([]string, error)
}

// decode maps the header row onto ledger columns and decodes every
// remaining row. Unknown headers are ignored.
func decode(r rowReader) (*model.Ledger, error) {
	raw, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, simerr.MissingColumn(string(model.ColumnEffectiveTotalPrice))
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read header")
	}

	header, columns := normalizeHeader(raw)
	hasPrice := false
	for _, c := range columns {
		if c == model.ColumnEffectiveTotalPrice {
			hasPrice = true
		}
	}
	if !hasPrice {
		return nil, simerr.MissingColumn(string(model.ColumnEffectiveTotalPrice))
	}

	dec, err := csvutil.NewDecoder(r, header...)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: build decoder")
	}

	var contracts []model.Contract
	for row := 1; ; row++ {
		var rec record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: row %d", row)
		}
		c, err := rec.contract(row)
		if err != nil {
			return nil, err
		}
		contracts = append(contracts, c)
	}
	return model.NewLedgerWithColumns(contracts, columns)
}

// normalizeHeader rewrites recognized headers to their column names and
// blanks out the rest. A column seen twice keeps its first position.
func normalizeHeader(raw []string) ([]string, []model.Column) {
	header := make([]string, len(raw))
	seen := make(map[model.Column]bool)
	var columns []model.Column
	for i, h := range raw {
		col, ok := aliases[headerKey(h)]
		if !ok || seen[col] {
			header[i] = "-" + strconv.Itoa(i)
			continue
		}
		seen[col] = true
		header[i] = string(col)
		columns = append(columns, col)
	}
	return header, columns
}

func headerKey(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}
