package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAttribute(t *testing.T) {
	tests := []struct {
		in   string
		want Attribute
	}{
		{"loc", AttrLocation},
		{"Location", AttrLocation},
		{"CPV_agrupado", AttrCategory},
		{"base_price", AttrBasePriceRange},
		{" contract_year ", AttrContractYear},
		{"execution_dummy", AttrExecution},
		{"NIPCS", AttrBuyer},
		{"buyer", AttrBuyer},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAttribute(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseAttribute("supplier")
	require.Error(t, err)
}

func TestAttribute_KeysAndLabels(t *testing.T) {
	for _, a := range Attributes {
		assert.NotEqual(t, "unknown", a.Key())
		assert.NotEqual(t, "Unknown", a.Label())
		back, err := ParseAttribute(a.Key())
		require.NoError(t, err)
		assert.Equal(t, a, back)
	}
}

func TestAttribute_Group(t *testing.T) {
	c := Contract{
		Location:      "PT17",
		ContractYear:  Int(2021),
		Bidders:       Int(3),
		Environmental: Bool(true),
		Execution:     Bool(false),
		BasePrice:     Float64(50_000),
		Buyer:         "509540716",
	}

	tests := []struct {
		attr   Attribute
		want   string
		wantOK bool
	}{
		{AttrLocation, "PT17", true},
		{AttrContractYear, "2021", true},
		{AttrBidders, "3", true},
		{AttrEnvironmental, "Environmental Criteria Applied", true},
		{AttrExecution, "Execution Not Met", true},
		{AttrPandemic, "", false},
		{AttrActType, "", false},
		{AttrBasePriceRange, "10K-50K", true},
		{AttrBuyer, "509540716", true},
	}
	for _, tt := range tests {
		t.Run(tt.attr.Key(), func(t *testing.T) {
			got, ok := tt.attr.Group(c)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAttribute_BasePriceBins(t *testing.T) {
	tests := []struct {
		price float64
		want  string
	}{
		{5_000, "<10K"},
		{10_000, "<10K"},
		{10_001, "10K-50K"},
		{750_000, "500K-1M"},
		{12_000_000, ">10M"},
	}
	for _, tt := range tests {
		got, ok := AttrBasePriceRange.Group(Contract{BasePrice: Float64(tt.price)})
		assert.True(t, ok)
		assert.Equal(t, tt.want, got, "price %v", tt.price)
	}

	_, ok := AttrBasePriceRange.Group(Contract{BasePrice: Float64(0)})
	assert.False(t, ok)
}

func TestAttributes_ExcludeBuyer(t *testing.T) {
	assert.NotContains(t, Attributes, AttrBuyer)
	assert.Equal(t, "Buyer NIPC", AttrBuyer.Label())
}
