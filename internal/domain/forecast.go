package domain

import "time"

// ForecastRow is one hourly wind reading for a spot as reported by the
// forecast provider. Rows are keyed by (Spot, Timestamp) when syncing.
type ForecastRow struct {
	ID           int64
	Spot         string
	Timestamp    time.Time
	WindSpeedMS  float64
	GustMS       float64
	DirectionDeg float64
	Source       string
	FetchedAt    time.Time
}
