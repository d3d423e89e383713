package db

import (
	"context"

	"plotwatch/internal/types"
)

// ReadingRepository appends sensor readings to plant_health_logs. Readings
// are immutable; there is no update path.
type ReadingRepository struct {
	db DBTX
}

// NewReadingRepository creates a new ReadingRepository.
func NewReadingRepository(db DBTX) *ReadingRepository {
	return &ReadingRepository{db: db}
}

// Insert stores the reading with its derived health score and returns the
// log id.
func (r *ReadingRepository) Insert(ctx context.Context, reading types.SensorReading, score int) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO plant_health_logs (
		   plant_id, log_date, soil_moisture, soil_ph, temperature, humidity, sunlight_lux,
		   nutrient_n, nutrient_p, nutrient_k, growth_height_cm, disease_risk, health_score)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING log_id`,
		reading.PlotID,
		reading.RecordedAt,
		reading.SoilMoisture,
		reading.SoilPH,
		reading.Temperature,
		reading.Humidity,
		reading.SunlightLux,
		reading.NutrientN,
		reading.NutrientP,
		reading.NutrientK,
		reading.GrowthHeightCM,
		reading.DiseaseRisk,
		score,
	).Scan(&id)
	if err != nil {
		return 0, types.NewAppError(types.ErrCodeInternalDB, "failed to insert reading", err)
	}
	return id, nil
}
