package ingest

import (
	"encoding/csv"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/simerr"
)

// contributionRecord is one row of a long-format attribution table, one row
// per contract and variable. variable_name wins over variable when both are
// present.
type contributionRecord struct {
	Variable     string   `csv:"variable"`
	VariableName string   `csv:"variable_name"`
	Value        string   `csv:"variable_value"`
	Amount       *float64 `csv:"contribution"`
}

var contributionHeaders = map[string]bool{
	"variable":       true,
	"variable_name":  true,
	"variable_value": true,
	"contribution":   true,
}

// LoadContributions reads a variable contribution table, choosing the parser
// by extension. sheet selects the XLSX worksheet; empty means the first one.
func LoadContributions(path, sheet string) ([]model.Contribution, error) {
	var (
		out []model.Contribution
		err error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		f, openErr := os.Open(path) //nolint:gosec
		if openErr != nil {
			return nil, eris.Wrap(openErr, "ingest: open contributions")
		}
		defer f.Close() //nolint:errcheck
		out, err = ReadContributions(f)
	case ".xlsx":
		wb, openErr := xlsx.OpenFile(path)
		if openErr != nil {
			return nil, eris.Wrap(openErr, "ingest: open contributions")
		}
		s, sheetErr := pickSheet(wb, sheet)
		if sheetErr != nil {
			return nil, sheetErr
		}
		out, err = decodeContributions(&sheetReader{sheet: s})
	default:
		return nil, eris.Errorf("ingest: unsupported contributions format %q", filepath.Ext(path))
	}
	if err != nil {
		return nil, err
	}
	zap.L().Info("ingest: loaded contributions",
		zap.String("path", path),
		zap.Int("rows", len(out)),
	)
	return out, nil
}

// ReadContributions decodes a contribution table from CSV with a header row.
func ReadContributions(r io.Reader) ([]model.Contribution, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	return decodeContributions(reader)
}

func decodeContributions(r rowReader) ([]model.Contribution, error) {
	raw, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, simerr.MissingColumn("contribution")
	}
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read contributions header")
	}

	header := make([]string, len(raw))
	seen := make(map[string]bool)
	for i, h := range raw {
		key := headerKey(h)
		if !contributionHeaders[key] || seen[key] {
			header[i] = "-" + strconv.Itoa(i)
			continue
		}
		seen[key] = true
		header[i] = key
	}
	if !seen["contribution"] {
		return nil, simerr.MissingColumn("contribution")
	}
	if !seen["variable_name"] && !seen["variable"] {
		return nil, simerr.MissingColumn("variable_name")
	}

	dec, err := csvutil.NewDecoder(r, header...)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: build contributions decoder")
	}

	var out []model.Contribution
	for row := 1; ; row++ {
		var rec contributionRecord
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "ingest: contributions row %d", row)
		}
		name := strings.TrimSpace(rec.VariableName)
		if name == "" {
			name = strings.TrimSpace(rec.Variable)
		}
		switch {
		case name == "":
			return nil, eris.Errorf("ingest: contributions row %d: empty variable", row)
		case rec.Amount == nil:
			return nil, eris.Errorf("ingest: contributions row %d: empty contribution", row)
		case math.IsNaN(*rec.Amount) || math.IsInf(*rec.Amount, 0):
			return nil, eris.Errorf("ingest: contributions row %d: non-finite contribution %v", row, *rec.Amount)
		}
		out = append(out, model.Contribution{
			Variable: name,
			Value:    strings.TrimSpace(rec.Value),
			Amount:   *rec.Amount,
		})
	}
	return out, nil
}
