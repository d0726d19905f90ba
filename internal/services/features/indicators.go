package features

import "math"

// Indicators are columnar passes over parallel float64 arrays. Undefined
// values are NaN: every indicator stays NaN until its window is fully
// populated, with no partial-window approximation. Inputs are never mutated.

var nan = math.NaN()

// Defined reports whether v carries a real number.
func Defined(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

// Last returns the final element of a series, or NaN when empty.
func Last(values []float64) float64 {
	if len(values) == 0 {
		return nan
	}
	return values[len(values)-1]
}

// SMA computes the simple moving average over window n.
func SMA(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	if n <= 0 || len(values) == 0 {
		for i := range out {
			out[i] = nan
		}
		return out
	}
	sum := 0.0
	bad := 0 // NaN count inside the current window
	for i, v := range values {
		if math.IsNaN(v) {
			bad++
		} else {
			sum += v
		}
		if i >= n {
			old := values[i-n]
			if math.IsNaN(old) {
				bad--
			} else {
				sum -= old
			}
		}
		if i < n-1 || bad > 0 {
			out[i] = nan
			continue
		}
		out[i] = sum / float64(n)
	}
	return out
}

// EMA computes the exponential moving average with alpha = 2/(n+1), seeded
// at the first value and masked until n bars have been seen.
func EMA(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	if n <= 0 || len(values) == 0 {
		for i := range out {
			out[i] = nan
		}
		return out
	}
	alpha := 2.0 / (float64(n) + 1.0)
	prev := nan
	for i, v := range values {
		if math.IsNaN(v) {
			out[i] = nan
			continue
		}
		if math.IsNaN(prev) {
			prev = v
		} else {
			prev = alpha*v + (1-alpha)*prev
		}
		if i < n-1 {
			out[i] = nan
			continue
		}
		out[i] = prev
	}
	return out
}

// TrueRange computes per-bar true range:
// max(|high-low|, |high-prevClose|, |low-prevClose|). The first bar has no
// previous close and is NaN.
func TrueRange(high, low, closes []float64) []float64 {
	out := make([]float64, len(closes))
	for i := range closes {
		if i == 0 {
			out[i] = nan
			continue
		}
		pc := closes[i-1]
		hl := math.Abs(high[i] - low[i])
		hc := math.Abs(high[i] - pc)
		lc := math.Abs(low[i] - pc)
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATR is the rolling mean of true range over window n.
func ATR(high, low, closes []float64, n int) []float64 {
	return SMA(TrueRange(high, low, closes), n)
}

// VolRatio divides each bar's |high-low| range by its ATR value.
func VolRatio(high, low, atr []float64) []float64 {
	out := make([]float64, len(atr))
	for i := range atr {
		if !Defined(atr[i]) || atr[i] == 0 {
			out[i] = nan
			continue
		}
		out[i] = math.Abs(high[i]-low[i]) / atr[i]
	}
	return out
}

// RollingStd computes the rolling sample standard deviation over window n.
func RollingStd(values []float64, n int) []float64 {
	out := make([]float64, len(values))
	if n <= 1 {
		for i := range out {
			out[i] = nan
		}
		return out
	}
	for i := range values {
		if i < n-1 {
			out[i] = nan
			continue
		}
		sum, sum2 := 0.0, 0.0
		ok := true
		for j := i - n + 1; j <= i; j++ {
			v := values[j]
			if math.IsNaN(v) {
				ok = false
				break
			}
			sum += v
			sum2 += v * v
		}
		if !ok {
			out[i] = nan
			continue
		}
		fn := float64(n)
		mean := sum / fn
		variance := (sum2 - fn*mean*mean) / (fn - 1)
		if variance < 0 {
			variance = 0
		}
		out[i] = math.Sqrt(variance)
	}
	return out
}

// BBWidthPct computes Bollinger band width (upper−lower = 2·k·σ) as a
// percentage of the current close.
func BBWidthPct(closes []float64, n int, k float64) []float64 {
	sd := RollingStd(closes, n)
	out := make([]float64, len(closes))
	for i := range closes {
		if !Defined(sd[i]) || closes[i] <= 0 {
			out[i] = nan
			continue
		}
		out[i] = 2 * k * sd[i] / closes[i] * 100.0
	}
	return out
}

// Fast3WidthPct computes the composite spread of the fast moving-average
// triplet relative to the slow baseline: 100 × (max−min) / baseline.
// Undefined when the baseline is undefined or ≤0, or when fewer than two
// triplet values are defined at that bar.
func Fast3WidthPct(emaFast, emaMid, smaMid, smaBase []float64) []float64 {
	out := make([]float64, len(smaBase))
	for i := range smaBase {
		base := smaBase[i]
		if !Defined(base) || base <= 0 {
			out[i] = nan
			continue
		}
		mx, mn := nan, nan
		defined := 0
		for _, v := range [3]float64{emaFast[i], emaMid[i], smaMid[i]} {
			if !Defined(v) {
				continue
			}
			defined++
			if math.IsNaN(mx) || v > mx {
				mx = v
			}
			if math.IsNaN(mn) || v < mn {
				mn = v
			}
		}
		if defined < 2 {
			out[i] = nan
			continue
		}
		out[i] = 100.0 * (mx - mn) / base
	}
	return out
}

// SlopeBPS computes the percentage change of a series against the bar
// `lookback` positions earlier: 100 × (current/past − 1). Undefined when
// history is insufficient, either endpoint is undefined, or past is zero.
func SlopeBPS(values []float64, lookback int) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if lookback <= 0 || i < lookback {
			out[i] = nan
			continue
		}
		cur, past := values[i], values[i-lookback]
		if !Defined(cur) || !Defined(past) || past == 0 {
			out[i] = nan
			continue
		}
		out[i] = 100.0 * (cur/past - 1.0)
	}
	return out
}

// SlopeAt is the last-bar value of SlopeBPS without materializing the series.
func SlopeAt(values []float64, lookback int) float64 {
	n := len(values)
	if lookback <= 0 || n <= lookback {
		return nan
	}
	cur, past := values[n-1], values[n-1-lookback]
	if !Defined(cur) || !Defined(past) || past == 0 {
		return nan
	}
	return 100.0 * (cur/past - 1.0)
}

// TrailingRunLength counts the consecutive true values ending at the most
// recent element (0 when the most recent element is false or the input is
// empty).
func TrailingRunLength(flags []bool) int {
	n := 0
	for i := len(flags) - 1; i >= 0; i-- {
		if !flags[i] {
			break
		}
		n++
	}
	return n
}
