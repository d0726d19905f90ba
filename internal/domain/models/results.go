package models

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Float is a float64 that marshals NaN as JSON null. Undefined indicator
// values travel through results as NaN internally.
type Float float64

// MarshalJSON renders NaN/Inf as null.
func (f Float) MarshalJSON() ([]byte, error) {
	v := float64(f)
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return []byte("null"), nil
	}
	return strconv.AppendFloat(nil, v, 'g', -1, 64), nil
}

// UnmarshalJSON accepts null as NaN.
func (f *Float) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = Float(math.NaN())
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// Defined reports whether the value carries a real number.
func (f Float) Defined() bool {
	v := float64(f)
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Direction labels a moving-average stack orientation.
type Direction string

const (
	DirectionBullish Direction = "bullish"
	DirectionBearish Direction = "bearish"
	DirectionMixed   Direction = "mixed"
	DirectionNeutral Direction = "neutral"
)

// StageDiagnostics carries the last-bar values that produced a stage verdict.
type StageDiagnostics struct {
	BarsInCoil  int   `json:"bars_in_coil"`
	WidthPct    Float `json:"width_pct"`
	VolRatio    Float `json:"vol_ratio"`
	FastSlope   Float `json:"fast_slope_pct"`
	SMAMidSlope Float `json:"sma_mid_slope_pct"`
	BaseSlope   Float `json:"base_slope_pct"`
}

// StageResult is the per-instrument verdict of the staged gate for one run.
type StageResult struct {
	Symbol      string           `json:"symbol"`
	CoilPass    bool             `json:"coil_pass"`
	ConfirmPass bool             `json:"confirm_pass"`
	TrendPass   bool             `json:"trend_pass"`
	Overall     bool             `json:"overall"`
	Coil        StageDiagnostics `json:"coil"`
	Confirm     StageDiagnostics `json:"confirm"`
	Trend       StageDiagnostics `json:"trend"`
}

// TimeframeScore is the per-timeframe MTFA breakdown.
type TimeframeScore struct {
	Timeframe string    `json:"timeframe"`
	RawScore  float64   `json:"raw_score"`
	Direction Direction `json:"direction"`
	Weight    float64   `json:"weight"`
	Weighted  float64   `json:"weighted_score"`
}

// MTFAResult scores how consistently the moving-average stack agrees
// across timeframes for one instrument.
type MTFAResult struct {
	Symbol    string           `json:"symbol"`
	Score     float64          `json:"score"` // [0,1]
	Direction Direction        `json:"direction"`
	Strength  string           `json:"strength"` // strong|moderate|weak|none
	Breakdown []TimeframeScore `json:"breakdown"`
}

// ScanReport joins the stage and MTFA verdicts for one instrument in one run.
type ScanReport struct {
	Symbol    string      `json:"symbol"`
	ScanID    string      `json:"scan_id"`
	Timestamp time.Time   `json:"ts"`
	Stages    StageResult `json:"stages"`
	MTFA      *MTFAResult `json:"mtfa,omitempty"`
}

// RunSummary aggregates one scan cycle for logging and metrics.
type RunSummary struct {
	ScanID        string        `json:"scan_id"`
	StartedAt     time.Time     `json:"started_at"`
	Duration      time.Duration `json:"duration"`
	Universe      int           `json:"universe"`
	FetchFailures int           `json:"fetch_failures"`
	CoilPasses    int           `json:"coil_passes"`
	OverallPasses int           `json:"overall_passes"`
}
