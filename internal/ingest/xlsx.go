package ingest

import (
	"io"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/procurement-sim/internal/model"
)

// LoadXLSX reads a ledger from the named worksheet, or the first one when
// sheet is empty.
func LoadXLSX(path, sheet string) (*model.Ledger, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}
	s, err := pickSheet(f, sheet)
	if err != nil {
		return nil, err
	}
	return decode(&sheetReader{sheet: s})
}

func pickSheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	if name != "" {
		s, ok := f.Sheet[name]
		if !ok {
			return nil, eris.Errorf("ingest: sheet %q not found", name)
		}
		return s, nil
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: workbook has no sheets")
	}
	return f.Sheets[0], nil
}

// sheetReader yields worksheet rows as strings, skipping blank rows. Rows
// are padded to the header width since trailing empty cells are not stored.
type sheetReader struct {
	sheet *xlsx.Sheet
	next  int
	width int
}

func (r *sheetReader) Read() ([]string, error) {
	for r.next < len(r.sheet.Rows) {
		row := r.sheet.Rows[r.next]
		r.next++
		if row == nil {
			continue
		}
		cells := make([]string, len(row.Cells))
		blank := true
		for i, cell := range row.Cells {
			cells[i] = cell.String()
			if strings.TrimSpace(cells[i]) != "" {
				blank = false
			}
		}
		if blank {
			continue
		}
		if r.width == 0 {
			r.width = len(cells)
		}
		for len(cells) < r.width {
			cells = append(cells, "")
		}
		cells = cells[:r.width]
		return cells, nil
	}
	return nil, io.EOF
}
