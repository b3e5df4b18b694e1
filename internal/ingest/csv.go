package ingest

import (
	"encoding/csv"
	"io"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/procurement-sim/internal/model"
)

// LoadCSVFile reads a comma separated ledger file.
func LoadCSVFile(path string) (*model.Ledger, error) {
	f, err := os.Open(path) //nolint:gosec
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open csv")
	}
	defer f.Close() //nolint:errcheck
	return ReadCSV(f)
}

// ReadCSV decodes a ledger from CSV with a header row.
func ReadCSV(r io.Reader) (*model.Ledger, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	return decode(reader)
}
