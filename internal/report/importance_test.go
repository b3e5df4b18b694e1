package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/procurement-sim/internal/model"
	"github.com/sells-group/procurement-sim/internal/simerr"
)

func TestImportance(t *testing.T) {
	contribs := []model.Contribution{
		{Variable: "bidders", Amount: 0.30},
		{Variable: "bidders", Amount: 0.10},
		{Variable: "loc", Amount: -0.25},
		{Variable: "loc", Amount: -0.15},
		{Variable: "act_type", Amount: 0.05},
		{Variable: "act_type", Amount: -0.05},
		{Variable: "contract_year", Amount: 0.01},
		{Variable: "execution_dummy", Amount: 0.20},
	}

	drivers, err := Importance(contribs)
	require.NoError(t, err)
	require.Len(t, drivers, 5)

	tests := []struct {
		variable   string
		n          int
		mean       float64
		importance float64
	}{
		{"bidders", 2, 0.20, 0.20},
		{"loc", 2, -0.20, 0.20},
		{"execution_dummy", 1, 0.20, 0.20},
		{"contract_year", 1, 0.01, 0.01},
		{"act_type", 2, 0, 0},
	}
	for i, tt := range tests {
		assert.Equal(t, tt.n, drivers[i].Observations, tt.variable)
		assert.InDelta(t, tt.mean, drivers[i].Mean, 1e-12, tt.variable)
		assert.InDelta(t, tt.importance, drivers[i].Importance, 1e-12, tt.variable)
	}
	for i := 1; i < len(drivers); i++ {
		assert.GreaterOrEqual(t, drivers[i-1].Importance, drivers[i].Importance)
	}

	top := TopDrivers(drivers, 3)
	require.Len(t, top, 3)
	assert.NotContains(t, []string{top[0].Variable, top[1].Variable, top[2].Variable}, "contract_year")
}

func TestImportance_Empty(t *testing.T) {
	_, err := Importance(nil)
	assert.True(t, simerr.Is(err, simerr.KindEmptyInput))
}

func TestTopDrivers(t *testing.T) {
	drivers := []Driver{{Variable: "a"}, {Variable: "b"}}
	tests := []struct {
		n    int
		want int
	}{
		{n: 3, want: 2},
		{n: 1, want: 1},
		{n: 0, want: 0},
		{n: -1, want: 0},
	}
	for _, tt := range tests {
		assert.Len(t, TopDrivers(drivers, tt.n), tt.want)
	}
}
