package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSMAWindowBoundary(t *testing.T) {
	out := SMA([]float64{1, 2, 3, 4, 5}, 3)
	require.Len(t, out, 5)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-12)
	assert.InDelta(t, 3.0, out[3], 1e-12)
	assert.InDelta(t, 4.0, out[4], 1e-12)
}

func TestSMAMasksNaNInWindow(t *testing.T) {
	out := SMA([]float64{1, math.NaN(), 3, 4, 5}, 3)
	assert.True(t, math.IsNaN(out[2]))
	assert.True(t, math.IsNaN(out[3]))
	// The NaN has left the window by the last bar.
	assert.InDelta(t, 4.0, out[4], 1e-12)
}

func TestEMASeedAndMask(t *testing.T) {
	// n=3: alpha=0.5, seeded at the first value, masked for the first two bars.
	out := EMA([]float64{1, 2, 3, 4}, 3)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.25, out[2], 1e-12)
	assert.InDelta(t, 3.125, out[3], 1e-12)
}

func TestTrueRangeFirstBarUndefined(t *testing.T) {
	high := []float64{10, 12}
	low := []float64{9, 10}
	closes := []float64{9.5, 11}
	out := TrueRange(high, low, closes)
	assert.True(t, math.IsNaN(out[0]))
	// max(|12-10|, |12-9.5|, |10-9.5|) = 2.5
	assert.InDelta(t, 2.5, out[1], 1e-12)
}

func TestATRIsRollingMeanOfTrueRange(t *testing.T) {
	high := []float64{10, 12, 13, 14}
	low := []float64{9, 10, 11, 12}
	closes := []float64{9.5, 11, 12, 13}
	tr := TrueRange(high, low, closes)
	atr := ATR(high, low, closes, 2)
	// The first bar's TR is NaN, so the first two windows are undefined.
	assert.True(t, math.IsNaN(atr[0]))
	assert.True(t, math.IsNaN(atr[1]))
	assert.InDelta(t, (tr[1]+tr[2])/2, atr[2], 1e-12)
	assert.InDelta(t, (tr[2]+tr[3])/2, atr[3], 1e-12)
}

func TestVolRatioUndefinedOnZeroATR(t *testing.T) {
	out := VolRatio([]float64{10, 10}, []float64{9, 9}, []float64{0, 2})
	assert.True(t, math.IsNaN(out[0]))
	assert.InDelta(t, 0.5, out[1], 1e-12)
}

func TestRollingStdSample(t *testing.T) {
	out := RollingStd([]float64{1, 2, 3, 4}, 3)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 1.0, out[2], 1e-12)
	assert.InDelta(t, 1.0, out[3], 1e-12)
}

func TestBBWidthPctFlatSeriesIsZero(t *testing.T) {
	out := BBWidthPct([]float64{10, 10, 10}, 3, 2.0)
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 0.0, out[2], 1e-12)
}

func TestFast3WidthPct(t *testing.T) {
	n := math.NaN()

	t.Run("spread over baseline", func(t *testing.T) {
		out := Fast3WidthPct([]float64{110}, []float64{105}, []float64{100}, []float64{100})
		assert.InDelta(t, 10.0, out[0], 1e-12)
	})

	t.Run("undefined baseline", func(t *testing.T) {
		out := Fast3WidthPct([]float64{110}, []float64{105}, []float64{100}, []float64{n})
		assert.True(t, math.IsNaN(out[0]))
	})

	t.Run("nonpositive baseline", func(t *testing.T) {
		out := Fast3WidthPct([]float64{110}, []float64{105}, []float64{100}, []float64{0})
		assert.True(t, math.IsNaN(out[0]))
	})

	t.Run("fewer than two defined values", func(t *testing.T) {
		out := Fast3WidthPct([]float64{110}, []float64{n}, []float64{n}, []float64{100})
		assert.True(t, math.IsNaN(out[0]))
	})

	t.Run("two defined values suffice", func(t *testing.T) {
		out := Fast3WidthPct([]float64{110}, []float64{n}, []float64{100}, []float64{100})
		assert.InDelta(t, 10.0, out[0], 1e-12)
	})
}

func TestSlopeBPS(t *testing.T) {
	out := SlopeBPS([]float64{100, 101, 102}, 2)
	assert.True(t, math.IsNaN(out[0]))
	assert.True(t, math.IsNaN(out[1]))
	assert.InDelta(t, 2.0, out[2], 1e-12)
}

func TestSlopeAt(t *testing.T) {
	assert.InDelta(t, 2.0, SlopeAt([]float64{100, 101, 102}, 2), 1e-12)
	assert.True(t, math.IsNaN(SlopeAt([]float64{100, 101}, 2)))
	assert.True(t, math.IsNaN(SlopeAt([]float64{0, 101, 102}, 2)))
	assert.True(t, math.IsNaN(SlopeAt([]float64{math.NaN(), 101, 102}, 2)))
	assert.True(t, math.IsNaN(SlopeAt(nil, 2)))
}

func TestTrailingRunLength(t *testing.T) {
	assert.Equal(t, 0, TrailingRunLength(nil))
	assert.Equal(t, 0, TrailingRunLength([]bool{true, false}))
	assert.Equal(t, 2, TrailingRunLength([]bool{false, true, true}))
	assert.Equal(t, 3, TrailingRunLength([]bool{true, true, true}))
}
