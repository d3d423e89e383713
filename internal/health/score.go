// Package health derives a 0-100 health score from a sensor reading.
//
// Each factor deducts from a starting score of 100 according to the band the
// measurement falls in. Bands for one factor are not cumulative: a value in
// the outer band takes only the outer deduction. Nutrients deduct a flat
// amount when any of N, P or K is below the viability minimum.
package health

import "plotwatch/internal/types"

const (
	maxScore = 100

	// Thresholds for the Good and Moderate bands.
	goodThreshold     = 80
	moderateThreshold = 50

	// MinNutrient is the viability minimum for each of N, P and K.
	MinNutrient       = 10.0
	nutrientDeduction = 20
)

// band is a two-level deduction table for one factor. A value outside
// [OuterLow, OuterHigh] deducts OuterPenalty; otherwise a value outside
// [InnerLow, InnerHigh] deducts InnerPenalty.
type band struct {
	InnerLow, InnerHigh float64
	OuterLow, OuterHigh float64
	InnerPenalty        int
	OuterPenalty        int
}

func (b band) deduction(v float64) int {
	switch {
	case v < b.OuterLow || v > b.OuterHigh:
		return b.OuterPenalty
	case v < b.InnerLow || v > b.InnerHigh:
		return b.InnerPenalty
	default:
		return 0
	}
}

var (
	moistureBand    = band{InnerLow: 40, InnerHigh: 80, OuterLow: 30, OuterHigh: 90, InnerPenalty: 15, OuterPenalty: 30}
	temperatureBand = band{InnerLow: 15, InnerHigh: 32, OuterLow: 5, OuterHigh: 38, InnerPenalty: 10, OuterPenalty: 20}
	phBand          = band{InnerLow: 6.0, InnerHigh: 7.0, OuterLow: 5.0, OuterHigh: 8.0, InnerPenalty: 10, OuterPenalty: 20}
)

// Score computes the health result for a reading. It is a pure function of
// the reading's measurements. Absent measurements are treated as zero, so
// callers validate readings first.
func Score(r types.SensorReading) types.HealthResult {
	score := maxScore
	score -= moistureBand.deduction(types.Value(r.SoilMoisture))
	score -= temperatureBand.deduction(types.Value(r.Temperature))
	score -= phBand.deduction(types.Value(r.SoilPH))

	if types.Value(r.NutrientN) < MinNutrient ||
		types.Value(r.NutrientP) < MinNutrient ||
		types.Value(r.NutrientK) < MinNutrient {
		score -= nutrientDeduction
	}

	score = clamp(score)
	status := Classify(score)
	return types.HealthResult{
		Score:  score,
		Status: status,
		Color:  status.Color(),
		Code:   status.Code(),
	}
}

// Classify maps a score to its band.
func Classify(score int) types.HealthStatus {
	switch {
	case score >= goodThreshold:
		return types.HealthGood
	case score >= moderateThreshold:
		return types.HealthModerate
	default:
		return types.HealthCritical
	}
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > maxScore {
		return maxScore
	}
	return score
}
