package benchmark

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/procurement-sim/internal/simerr"
)

func TestQuantile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		q      float64
		want   float64
	}{
		{"median odd", []float64{0.8, 0.2, 0.5}, 0.5, 0.5},
		{"median even", []float64{1, 2, 3, 4}, 0.5, 2.5},
		{"p75 interpolated", []float64{1, 2, 3, 4}, 0.75, 3.25},
		{"p90", []float64{10, 20, 30, 40, 50}, 0.9, 46},
		{"single value", []float64{0.3}, 0.9, 0.3},
		{"duplicates", []float64{0.4, 0.4, 0.4}, 0.75, 0.4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Quantile(tt.values, tt.q)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestQuantile_DoesNotSortInput(t *testing.T) {
	in := []float64{3, 1, 2}
	_, err := Quantile(in, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, in)
}

func TestQuantile_Errors(t *testing.T) {
	_, err := Quantile([]float64{1}, 0)
	assert.True(t, simerr.Is(err, simerr.KindInvalidQuantile))

	_, err = Quantile(nil, 0.5)
	assert.True(t, simerr.Is(err, simerr.KindEmptyLedger))
}

func TestParseQuantile(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"p50", 0.5, false},
		{"P75", 0.75, false},
		{"p90", 0.9, false},
		{"0.6", 0.6, false},
		{"p100", 0, true},
		{"p0", 0, true},
		{"1.2", 0, true},
		{"px", 0, true},
		{"median", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseQuantile(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestQuantileLabel(t *testing.T) {
	assert.Equal(t, "P50", QuantileLabel(0.5))
	assert.Equal(t, "P75", QuantileLabel(0.75))
	assert.Equal(t, "P90", QuantileLabel(0.9))
	assert.Equal(t, "Q0.625", QuantileLabel(0.625))
}
