package rules

import (
	"strings"

	"plotwatch/internal/types"
)

const (
	riceMoisture = 40.0
	dryMoisture  = 35.0

	RecRiceIrrigate  = "Recommendation: Rice requires high moisture. Irrigate within next 6 hours."
	RecScheduleWater = "Recommendation: Soil is dry. Schedule watering for tomorrow morning."
)

// Recommend returns a crop-aware watering recommendation for the plot's
// species, or "" when none applies. Species matching is case-insensitive.
func Recommend(species string, r types.SensorReading) string {
	if r.SoilMoisture == nil {
		return ""
	}
	moisture := *r.SoilMoisture

	if strings.EqualFold(strings.TrimSpace(species), "rice") && moisture < riceMoisture {
		return RecRiceIrrigate
	}
	if moisture < dryMoisture {
		return RecScheduleWater
	}
	return ""
}
