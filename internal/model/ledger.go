package model

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"math"
	"slices"

	"github.com/rotisserie/eris"
)

// Ledger is the read-only contract table for an analysis session. Engines
// never mutate it; Filter and Contracts hand out copies.
type Ledger struct {
	contracts []Contract
	columns   map[Column]bool
}

// NewLedger builds a ledger and infers the present columns from the data: a
// nullable column counts as present when at least one contract carries it.
func NewLedger(contracts []Contract) (*Ledger, error) {
	cols := map[Column]bool{
		ColumnID:                  true,
		ColumnEffectiveTotalPrice: true,
	}
	for _, c := range contracts {
		if c.BasePrice != nil {
			cols[ColumnBasePrice] = true
		}
		if c.Efficiency != nil {
			cols[ColumnEfficiency] = true
		}
		if c.RiskProbability != nil {
			cols[ColumnRiskProbability] = true
		}
		if c.Location != "" {
			cols[ColumnLocation] = true
		}
		if c.ContractYear != nil {
			cols[ColumnContractYear] = true
		}
		if c.ActType != "" {
			cols[ColumnActType] = true
		}
		if c.Buyer != "" {
			cols[ColumnBuyer] = true
		}
		if c.Category != "" {
			cols[ColumnCategory] = true
		}
		if c.Bidders != nil {
			cols[ColumnBidders] = true
		}
		if c.Environmental != nil {
			cols[ColumnEnvironmental] = true
		}
		if c.Pandemic != nil {
			cols[ColumnPandemic] = true
		}
		if c.Execution != nil {
			cols[ColumnExecution] = true
		}
		if c.CostIncreased != nil {
			cols[ColumnCostIncreased] = true
		}
	}
	return newLedger(contracts, cols)
}

// NewLedgerWithColumns builds a ledger whose present columns are exactly the
// given set, as read from a source header.
func NewLedgerWithColumns(contracts []Contract, columns []Column) (*Ledger, error) {
	cols := make(map[Column]bool, len(columns))
	for _, c := range columns {
		cols[c] = true
	}
	cols[ColumnID] = true
	return newLedger(contracts, cols)
}

func newLedger(contracts []Contract, cols map[Column]bool) (*Ledger, error) {
	seen := make(map[string]struct{}, len(contracts))
	for i, c := range contracts {
		if c.ID == "" {
			return nil, eris.Errorf("ledger: contract at row %d has no id", i+1)
		}
		if _, dup := seen[c.ID]; dup {
			return nil, eris.Errorf("ledger: duplicate contract id %q", c.ID)
		}
		seen[c.ID] = struct{}{}
	}
	return &Ledger{contracts: slices.Clone(contracts), columns: cols}, nil
}

// Len returns the number of contracts.
func (l *Ledger) Len() int {
	if l == nil {
		return 0
	}
	return len(l.contracts)
}

// Contracts returns a copy of the contract rows.
func (l *Ledger) Contracts() []Contract {
	if l == nil {
		return nil
	}
	return slices.Clone(l.contracts)
}

// Has reports whether the column is present in the ledger.
func (l *Ledger) Has(c Column) bool {
	return l != nil && l.columns[c]
}

// Columns returns the present columns in a stable order.
func (l *Ledger) Columns() []Column {
	if l == nil {
		return nil
	}
	out := make([]Column, 0, len(l.columns))
	for c := range l.columns {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Filter selects contracts by location and contract year.
type Filter struct {
	Locations []string `json:"locations,omitempty"`
	YearFrom  int      `json:"year_from,omitempty"`
	YearTo    int      `json:"year_to,omitempty"`
}

// IsZero reports whether the filter selects everything.
func (f Filter) IsZero() bool {
	return len(f.Locations) == 0 && f.YearFrom == 0 && f.YearTo == 0
}

func (f Filter) match(c Contract) bool {
	if len(f.Locations) > 0 && !slices.Contains(f.Locations, c.Location) {
		return false
	}
	if f.YearFrom != 0 || f.YearTo != 0 {
		if c.ContractYear == nil {
			return false
		}
		y := *c.ContractYear
		if f.YearFrom != 0 && y < f.YearFrom {
			return false
		}
		if f.YearTo != 0 && y > f.YearTo {
			return false
		}
	}
	return true
}

// Filter returns a new ledger holding the matching contracts. The column set
// is carried over unchanged.
func (l *Ledger) Filter(f Filter) *Ledger {
	out := &Ledger{columns: l.columns}
	for _, c := range l.contracts {
		if f.match(c) {
			out.contracts = append(out.contracts, c)
		}
	}
	return out
}

// Fingerprint identifies the ledger contents for cache keys. Two ledgers
// with the same rows in the same order share a fingerprint.
func (l *Ledger) Fingerprint() string {
	h := sha256.New()
	var buf [8]byte
	putFloat := func(p *float64) {
		if p == nil {
			h.Write([]byte{0})
			return
		}
		h.Write([]byte{1})
		binary.LittleEndian.PutUint64(buf[:], math.Float64bits(*p))
		h.Write(buf[:])
	}
	for _, c := range l.contracts {
		h.Write([]byte(c.ID))
		h.Write([]byte{0})
		price := c.EffectiveTotalPrice
		putFloat(&price)
		putFloat(c.BasePrice)
		putFloat(c.Efficiency)
		putFloat(c.RiskProbability)
	}
	return hex.EncodeToString(h.Sum(nil))
}
