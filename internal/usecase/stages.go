package usecase

import (
	"math"

	"CoilScan/internal/domain/models"
	drepo "CoilScan/internal/domain/repository"
	"CoilScan/internal/services/features"
	"CoilScan/pkg/config"
)

// Combinator joins the present sub-conditions of a stage.
type Combinator int

const (
	CombineEither Combinator = iota
	CombineAnd
)

// ParseCombinator maps the config mode string to a Combinator.
func ParseCombinator(mode string) Combinator {
	if mode == "and" {
		return CombineAnd
	}
	return CombineEither
}

// combine folds sub-condition results. An empty list is vacuously true:
// a stage with no sub-conditions configured does not gate anything.
func combine(mode Combinator, results []bool) bool {
	if len(results) == 0 {
		return true
	}
	if mode == CombineAnd {
		for _, r := range results {
			if !r {
				return false
			}
		}
		return true
	}
	for _, r := range results {
		if r {
			return true
		}
	}
	return false
}

// StageEvaluator runs the staged gate for one symbol. Every threshold check
// fails closed: an undefined indicator value never passes.
type StageEvaluator struct {
	cfg     config.PipelineConfig
	metrics drepo.Metrics

	enabled map[string]bool
}

// NewStageEvaluator creates a new StageEvaluator instance.
func NewStageEvaluator(cfg config.PipelineConfig, metrics drepo.Metrics) *StageEvaluator {
	enabled := make(map[string]bool, len(cfg.EnabledStages))
	for _, s := range cfg.EnabledStages {
		enabled[s] = true
	}
	return &StageEvaluator{cfg: cfg, metrics: metrics, enabled: enabled}
}

// Evaluate runs the enabled stages against per-timeframe feature sets.
// A stage whose timeframe has no data fails; a disabled stage contributes
// nothing to the overall verdict.
func (e *StageEvaluator) Evaluate(symbol string, sets map[drepo.Timeframe]*features.Set) *models.StageResult {
	res := &models.StageResult{Symbol: symbol, Overall: true}

	if e.enabled["coil"] {
		res.CoilPass, res.Coil = e.evalCoil(sets[drepo.Timeframe(e.cfg.Coil.Timeframe)])
		res.Overall = res.Overall && res.CoilPass
		if res.CoilPass {
			e.metrics.RecordStagePass("coil")
		}
	}
	if e.enabled["confirm"] {
		res.ConfirmPass, res.Confirm = e.evalConfirm(sets[drepo.Timeframe(e.cfg.Confirm.Timeframe)])
		res.Overall = res.Overall && res.ConfirmPass
		if res.ConfirmPass {
			e.metrics.RecordStagePass("confirm")
		}
	}
	if e.enabled["trend"] {
		res.TrendPass, res.Trend = e.evalTrend(sets[drepo.Timeframe(e.cfg.Trend.Timeframe)])
		res.Overall = res.Overall && res.TrendPass
		if res.TrendPass {
			e.metrics.RecordStagePass("trend")
		}
	}
	if res.Overall {
		e.metrics.RecordStagePass("overall")
	}
	return res
}

func (e *StageEvaluator) evalCoil(set *features.Set) (bool, models.StageDiagnostics) {
	cfg := e.cfg.Coil
	diag := emptyDiagnostics()
	if set == nil || set.Len() == 0 {
		return false, diag
	}

	bars := coiledRun(set, cfg.MaxWidthPct, cfg.MaxVolRatio)
	fastSlope := set.FastSlope(cfg.SlopeWindow)

	diag.BarsInCoil = bars
	diag.WidthPct = models.Float(features.Last(set.WidthPct))
	diag.VolRatio = models.Float(features.Last(set.VolRatio))
	diag.FastSlope = models.Float(fastSlope)

	pass := bars >= cfg.MinBars
	if cfg.MinFastSlopePct != nil {
		pass = pass && features.Defined(fastSlope) && fastSlope >= *cfg.MinFastSlopePct
	}
	return pass, diag
}

func (e *StageEvaluator) evalConfirm(set *features.Set) (bool, models.StageDiagnostics) {
	cfg := e.cfg.Confirm
	diag := emptyDiagnostics()
	if set == nil || set.Len() == 0 {
		return false, diag
	}

	fastSlope := set.FastSlope(cfg.SlopeWindow)
	midSlope := features.SlopeAt(set.SMAMid, features.EffectiveSlopeLookback(set.Timeframe, cfg.SlopeWindow))

	diag.WidthPct = models.Float(features.Last(set.WidthPct))
	diag.VolRatio = models.Float(features.Last(set.VolRatio))
	diag.FastSlope = models.Float(fastSlope)
	diag.SMAMidSlope = models.Float(midSlope)

	var subs []bool
	if cfg.Coil != nil {
		bars := coiledRun(set, cfg.Coil.MaxWidthPct, cfg.Coil.MaxVolRatio)
		diag.BarsInCoil = bars
		subs = append(subs, bars >= cfg.Coil.MinBars)
	}
	if cfg.Align != nil {
		aligned := features.Defined(fastSlope) && fastSlope >= cfg.Align.MinFastSlopePct &&
			features.Defined(midSlope) && midSlope >= cfg.Align.MinSMAMidSlopePct
		subs = append(subs, aligned)
	}
	return combine(ParseCombinator(cfg.Mode), subs), diag
}

func (e *StageEvaluator) evalTrend(set *features.Set) (bool, models.StageDiagnostics) {
	cfg := e.cfg.Trend
	diag := emptyDiagnostics()
	if set == nil || set.Len() == 0 {
		return false, diag
	}

	baseSlope := set.BaseSlope(cfg.SlopeWindow)
	diag.BaseSlope = models.Float(baseSlope)

	pass := features.Defined(baseSlope) && baseSlope >= cfg.MinBaseSlopePct-cfg.TolerancePct
	return pass, diag
}

// coiledRun counts the trailing bars where both the composite width and the
// volatility ratio are defined and inside their caps.
func coiledRun(set *features.Set, maxWidthPct, maxVolRatio float64) int {
	flags := make([]bool, set.Len())
	for i := range flags {
		w, v := set.WidthPct[i], set.VolRatio[i]
		flags[i] = features.Defined(w) && w <= maxWidthPct &&
			features.Defined(v) && v <= maxVolRatio
	}
	return features.TrailingRunLength(flags)
}

func emptyDiagnostics() models.StageDiagnostics {
	nan := models.Float(math.NaN())
	return models.StageDiagnostics{
		WidthPct:    nan,
		VolRatio:    nan,
		FastSlope:   nan,
		SMAMidSlope: nan,
		BaseSlope:   nan,
	}
}
