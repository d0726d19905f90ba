package usecase

import (
	"sort"

	"CoilScan/internal/domain/models"
	drepo "CoilScan/internal/domain/repository"
	"CoilScan/internal/services/features"
	"CoilScan/pkg/config"
)

// MTFAAggregator scores how consistently the moving-average stack points the
// same way across timeframes. Each timeframe contributes its configured
// weight when its ladder is perfectly stacked and nothing otherwise.
type MTFAAggregator struct {
	cfg config.MTFAConfig
}

// NewMTFAAggregator creates a new MTFAAggregator instance.
func NewMTFAAggregator(cfg config.MTFAConfig) *MTFAAggregator {
	return &MTFAAggregator{cfg: cfg}
}

// Aggregate computes the cross-timeframe agreement result for one symbol.
// Timeframes present in the weight map stay in the breakdown even when they
// have too little history to score; with no scorable timeframe at all the
// result is a neutral zero.
func (a *MTFAAggregator) Aggregate(symbol string, closes map[drepo.Timeframe][]float64) *models.MTFAResult {
	type tfVote struct {
		tf        drepo.Timeframe
		direction models.Direction
		score     float64
		weight    float64
	}

	var votes []tfVote
	for tf, series := range closes {
		weight, ok := a.cfg.Weights[string(tf)]
		if !ok || weight <= 0 {
			continue
		}
		direction, score := a.stackScore(series)
		votes = append(votes, tfVote{tf: tf, direction: direction, score: score, weight: weight})
	}
	sort.Slice(votes, func(i, j int) bool {
		return votes[i].tf.Duration() < votes[j].tf.Duration()
	})

	var score float64
	var bulls, bears int
	breakdown := make([]models.TimeframeScore, 0, len(votes))
	for _, v := range votes {
		weighted := v.weight * v.score
		score += weighted
		switch v.direction {
		case models.DirectionBullish:
			bulls++
		case models.DirectionBearish:
			bears++
		}
		breakdown = append(breakdown, models.TimeframeScore{
			Timeframe: string(v.tf),
			RawScore:  v.score,
			Direction: v.direction,
			Weight:    v.weight,
			Weighted:  weighted,
		})
	}

	// Majority vote by timeframe count, ties are neutral.
	overall := models.DirectionNeutral
	switch {
	case bulls > bears:
		overall = models.DirectionBullish
	case bears > bulls:
		overall = models.DirectionBearish
	}

	return &models.MTFAResult{
		Symbol:    symbol,
		Score:     score,
		Direction: overall,
		Strength:  a.classify(score),
		Breakdown: breakdown,
	}
}

// Enhance applies the agreement result to a base signal strength whose sign
// carries its direction. A matching overall direction scales the base by the
// agreement score; a mismatch (including neutral or mixed) scales it by the
// dampening constant.
func (a *MTFAAggregator) Enhance(base float64, res *models.MTFAResult) float64 {
	baseDir := models.DirectionBearish
	if base > 0 {
		baseDir = models.DirectionBullish
	}
	if res != nil && res.Direction == baseDir {
		return base * res.Score
	}
	return base * a.cfg.MismatchDampen
}

// stackScore evaluates the EMA ladder of one close series at the last bar.
// Strictly descending values (short above long) are a bullish stack,
// strictly ascending a bearish one, each scoring 1.0. Any break in the
// order, or fewer than two defined values, scores 0.0 as mixed.
func (a *MTFAAggregator) stackScore(closes []float64) (models.Direction, float64) {
	var ladder []float64
	for _, period := range a.cfg.Periods {
		v := features.Last(features.EMA(closes, period))
		if features.Defined(v) {
			ladder = append(ladder, v)
		}
	}
	if len(ladder) < 2 {
		return models.DirectionMixed, 0
	}

	bullish, bearish := true, true
	for i := 0; i+1 < len(ladder); i++ {
		if ladder[i] <= ladder[i+1] {
			bullish = false
		}
		if ladder[i] >= ladder[i+1] {
			bearish = false
		}
	}
	switch {
	case bullish:
		return models.DirectionBullish, 1
	case bearish:
		return models.DirectionBearish, 1
	default:
		return models.DirectionMixed, 0
	}
}

func (a *MTFAAggregator) classify(score float64) string {
	t := a.cfg.Thresholds
	switch {
	case score >= t.Strong:
		return "strong"
	case score >= t.Moderate:
		return "moderate"
	case score >= t.Weak:
		return "weak"
	default:
		return "none"
	}
}
