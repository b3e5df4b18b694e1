package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleContracts() []Contract {
	return []Contract{
		{ID: "a", EffectiveTotalPrice: 100, Efficiency: Float64(0.5), Location: "PT17", ContractYear: Int(2019)},
		{ID: "b", EffectiveTotalPrice: 200, Efficiency: Float64(0.8), Location: "PT11", ContractYear: Int(2021)},
		{ID: "c", EffectiveTotalPrice: 300, Efficiency: Float64(0.2), Location: "PT17", ContractYear: Int(2023)},
	}
}

func TestNewLedger_InfersColumns(t *testing.T) {
	l, err := NewLedger(sampleContracts())
	require.NoError(t, err)

	assert.Equal(t, 3, l.Len())
	assert.True(t, l.Has(ColumnEffectiveTotalPrice))
	assert.True(t, l.Has(ColumnEfficiency))
	assert.True(t, l.Has(ColumnLocation))
	assert.False(t, l.Has(ColumnRiskProbability))
	assert.False(t, l.Has(ColumnBasePrice))
}

func TestNewLedger_DuplicateID(t *testing.T) {
	cs := sampleContracts()
	cs[2].ID = "a"
	_, err := NewLedger(cs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate contract id")
}

func TestNewLedger_MissingID(t *testing.T) {
	cs := sampleContracts()
	cs[1].ID = ""
	_, err := NewLedger(cs)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "row 2")
}

func TestNewLedgerWithColumns(t *testing.T) {
	l, err := NewLedgerWithColumns(sampleContracts(), []Column{ColumnEffectiveTotalPrice})
	require.NoError(t, err)
	assert.False(t, l.Has(ColumnEfficiency))
	assert.True(t, l.Has(ColumnID))
}

func TestLedger_ContractsIsACopy(t *testing.T) {
	l, err := NewLedger(sampleContracts())
	require.NoError(t, err)

	cs := l.Contracts()
	cs[0].EffectiveTotalPrice = 999

	assert.InDelta(t, 100, l.Contracts()[0].EffectiveTotalPrice, 0)
}

func TestLedger_Filter(t *testing.T) {
	l, err := NewLedger(sampleContracts())
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"zero filter keeps all", Filter{}, []string{"a", "b", "c"}},
		{"location", Filter{Locations: []string{"PT17"}}, []string{"a", "c"}},
		{"year range", Filter{YearFrom: 2020, YearTo: 2022}, []string{"b"}},
		{"location and year", Filter{Locations: []string{"PT17"}, YearFrom: 2020}, []string{"c"}},
		{"no match", Filter{Locations: []string{"PT30"}}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got []string
			for _, c := range l.Filter(tt.filter).Contracts() {
				got = append(got, c.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, 3, l.Len(), "filter must not mutate the source ledger")
}

func TestLedger_Fingerprint(t *testing.T) {
	l1, err := NewLedger(sampleContracts())
	require.NoError(t, err)
	l2, err := NewLedger(sampleContracts())
	require.NoError(t, err)
	assert.Equal(t, l1.Fingerprint(), l2.Fingerprint())

	cs := sampleContracts()
	cs[1].Efficiency = Float64(0.81)
	l3, err := NewLedger(cs)
	require.NoError(t, err)
	assert.NotEqual(t, l1.Fingerprint(), l3.Fingerprint())

	sub := l1.Filter(Filter{Locations: []string{"PT17"}})
	assert.NotEqual(t, l1.Fingerprint(), sub.Fingerprint())
}

func TestContract_ObservedIncrease(t *testing.T) {
	c := Contract{EffectiveTotalPrice: 120, BasePrice: Float64(100)}
	inc, ok := c.ObservedIncrease()
	assert.True(t, ok)
	assert.True(t, inc)

	c.CostIncreased = Bool(false)
	inc, ok = c.ObservedIncrease()
	assert.True(t, ok)
	assert.False(t, inc)

	_, ok = Contract{EffectiveTotalPrice: 1}.ObservedIncrease()
	assert.False(t, ok)
}

func TestContract_ValidEfficiency(t *testing.T) {
	assert.True(t, Contract{Efficiency: Float64(1)}.ValidEfficiency())
	assert.True(t, Contract{Efficiency: Float64(0.01)}.ValidEfficiency())
	assert.False(t, Contract{Efficiency: Float64(0)}.ValidEfficiency())
	assert.False(t, Contract{Efficiency: Float64(1.2)}.ValidEfficiency())
	assert.False(t, Contract{}.ValidEfficiency())
}
