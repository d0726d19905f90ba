package features

import (
	"CoilScan/internal/domain/models"
	"CoilScan/internal/domain/repository"
	"CoilScan/pkg/config"
)

// Long slope lookbacks are swapped for a per-timeframe horizon so that the
// slope spans roughly comparable wall-clock windows across timeframes.
var slopeLookbackByTF = map[repository.Timeframe]int{
	repository.TF1h: 72,
	repository.TF4h: 20,
	repository.TF1d: 20,
}

const (
	slopeSubstitutionFloor = 100
	slopeFallbackLookback  = 20
)

// EffectiveSlopeLookback resolves the slope lookback for a timeframe. A
// requested lookback at or above the substitution floor is replaced by the
// per-timeframe horizon; shorter requests are honored as given.
func EffectiveSlopeLookback(tf repository.Timeframe, requested int) int {
	if requested < slopeSubstitutionFloor {
		return requested
	}
	if lb, ok := slopeLookbackByTF[tf]; ok {
		return lb
	}
	return slopeFallbackLookback
}

// Set holds the full indicator columns computed from one symbol's series on
// one timeframe. All columns are parallel to the candle series.
type Set struct {
	Symbol    string
	Timeframe repository.Timeframe

	Close  []float64
	High   []float64
	Low    []float64
	Volume []float64

	EMAFast []float64
	EMAMid  []float64
	SMAMid  []float64
	SMABase []float64

	ATR        []float64
	VolRatio   []float64
	BBWidthPct []float64
	WidthPct   []float64
}

// Len reports the number of bars in the set.
func (s *Set) Len() int { return len(s.Close) }

// Compute builds the indicator set for a series under the given moving
// average configuration.
func Compute(series *models.Series, cfg config.MAConfig) *Set {
	n := series.Len()
	s := &Set{
		Symbol:    series.Symbol,
		Timeframe: repository.Timeframe(series.Timeframe),
		Close:     make([]float64, n),
		High:      make([]float64, n),
		Low:       make([]float64, n),
		Volume:    make([]float64, n),
	}
	for i, c := range series.Candles {
		s.Close[i] = c.Close
		s.High[i] = c.High
		s.Low[i] = c.Low
		s.Volume[i] = c.Volume
	}

	s.EMAFast = EMA(s.Close, cfg.EMAFast)
	s.EMAMid = EMA(s.Close, cfg.EMAMid)
	s.SMAMid = SMA(s.Close, cfg.SMAMid)
	s.SMABase = SMA(s.Close, cfg.SMABase)

	s.ATR = ATR(s.High, s.Low, s.Close, cfg.ATRWindow)
	s.VolRatio = VolRatio(s.High, s.Low, s.ATR)
	s.BBWidthPct = BBWidthPct(s.Close, cfg.BBWindow, cfg.BBK)
	s.WidthPct = Fast3WidthPct(s.EMAFast, s.EMAMid, s.SMAMid, s.SMABase)
	return s
}

// FastSlope returns the last-bar slope of the fast EMA using the effective
// lookback for this set's timeframe.
func (s *Set) FastSlope(requested int) float64 {
	return SlopeAt(s.EMAFast, EffectiveSlopeLookback(s.Timeframe, requested))
}

// BaseSlope returns the last-bar slope of the slow baseline using the
// effective lookback for this set's timeframe.
func (s *Set) BaseSlope(requested int) float64 {
	return SlopeAt(s.SMABase, EffectiveSlopeLookback(s.Timeframe, requested))
}
