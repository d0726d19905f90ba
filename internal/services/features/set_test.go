package features

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CoilScan/internal/domain/models"
	"CoilScan/internal/domain/repository"
	"CoilScan/pkg/config"
)

func TestEffectiveSlopeLookback(t *testing.T) {
	// Long requests substitute the per-timeframe horizon.
	assert.Equal(t, 72, EffectiveSlopeLookback(repository.TF1h, 100))
	assert.Equal(t, 20, EffectiveSlopeLookback(repository.TF4h, 100))
	assert.Equal(t, 20, EffectiveSlopeLookback(repository.TF1d, 150))
	assert.Equal(t, 20, EffectiveSlopeLookback(repository.Timeframe("15m"), 100))
	// Short requests are honored as given.
	assert.Equal(t, 99, EffectiveSlopeLookback(repository.TF1h, 99))
	assert.Equal(t, 5, EffectiveSlopeLookback(repository.TF4h, 5))
}

func testSeries(symbol string, tf repository.Timeframe, closes []float64) *models.Series {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	s := &models.Series{Symbol: symbol, Timeframe: string(tf)}
	for i, c := range closes {
		s.Candles = append(s.Candles, models.Candle{
			Symbol:    symbol,
			Timeframe: string(tf),
			Timestamp: base.Add(time.Duration(i) * tf.Duration()),
			Open:      c,
			High:      c * 1.01,
			Low:       c * 0.99,
			Close:     c,
			Volume:    100,
		})
	}
	return s
}

func TestComputeColumns(t *testing.T) {
	cfg := config.MAConfig{
		EMAFast: 2, EMAMid: 3, SMAMid: 3, SMABase: 4,
		BBWindow: 3, BBK: 2.0, ATRWindow: 2, SlopeWindow: 2,
	}
	closes := []float64{100, 101, 102, 103, 104, 105}
	set := Compute(testSeries("BTCUSDT", repository.TF1h, closes), cfg)

	require.Equal(t, len(closes), set.Len())
	assert.Equal(t, "BTCUSDT", set.Symbol)
	assert.Equal(t, repository.TF1h, set.Timeframe)

	for _, col := range [][]float64{
		set.EMAFast, set.EMAMid, set.SMAMid, set.SMABase,
		set.ATR, set.VolRatio, set.BBWidthPct, set.WidthPct,
	} {
		assert.Len(t, col, len(closes))
	}

	// Window boundaries: each column is undefined until its window fills.
	assert.True(t, math.IsNaN(set.SMABase[2]))
	assert.False(t, math.IsNaN(set.SMABase[3]))
	assert.True(t, math.IsNaN(set.EMAFast[0]))
	assert.False(t, math.IsNaN(set.EMAFast[1]))

	// The composite width needs the baseline, so it follows the slow window.
	assert.True(t, math.IsNaN(set.WidthPct[2]))
	assert.False(t, math.IsNaN(set.WidthPct[3]))
}

func TestSetSlopes(t *testing.T) {
	cfg := config.MAConfig{
		EMAFast: 2, EMAMid: 3, SMAMid: 3, SMABase: 4,
		BBWindow: 3, BBK: 2.0, ATRWindow: 2,
	}
	closes := []float64{100, 101, 102, 103, 104, 105, 106, 107}
	set := Compute(testSeries("ETHUSDT", repository.TF1h, closes), cfg)

	// A rising series produces a positive slope for any honored lookback.
	fast := set.FastSlope(2)
	require.False(t, math.IsNaN(fast))
	assert.Greater(t, fast, 0.0)

	base := set.BaseSlope(2)
	require.False(t, math.IsNaN(base))
	assert.Greater(t, base, 0.0)

	// A substituted lookback of 72 exceeds this history, failing closed.
	assert.True(t, math.IsNaN(set.FastSlope(100)))
}
