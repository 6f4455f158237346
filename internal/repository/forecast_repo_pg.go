package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vetrodar/cabinbooking/internal/domain"
)

const forecastInsertBatchSize = 50

type ForecastRepository interface {
	ListBySpot(ctx context.Context, spot string) ([]domain.ForecastRow, error)
	BatchInsert(ctx context.Context, rows []domain.ForecastRow) error
	DeleteBefore(ctx context.Context, spot string, cutoff time.Time) (int64, error)
}

type PGForecastRepository struct {
	db *pgxpool.Pool
}

func NewForecastRepository(db *pgxpool.Pool) ForecastRepository {
	return &PGForecastRepository{db: db}
}

func (r *PGForecastRepository) ListBySpot(ctx context.Context, spot string) ([]domain.ForecastRow, error) {
	rows, err := r.db.Query(ctx, `SELECT id, spot, ts, wind_speed_ms, gust_ms, direction_deg, source, fetched_at FROM forecasts WHERE spot=$1 ORDER BY ts`, spot)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	forecasts := make([]domain.ForecastRow, 0)
	for rows.Next() {
		var f domain.ForecastRow
		if err := rows.Scan(&f.ID, &f.Spot, &f.Timestamp, &f.WindSpeedMS, &f.GustMS, &f.DirectionDeg, &f.Source, &f.FetchedAt); err != nil {
			return nil, err
		}
		forecasts = append(forecasts, f)
	}
	return forecasts, rows.Err()
}

// BatchInsert writes rows in chunks through a pgx batch so a large provider
// response does not turn into hundreds of round trips.
func (r *PGForecastRepository) BatchInsert(ctx context.Context, rows []domain.ForecastRow) error {
	for start := 0; start < len(rows); start += forecastInsertBatchSize {
		end := start + forecastInsertBatchSize
		if end > len(rows) {
			end = len(rows)
		}

		batch := &pgx.Batch{}
		for _, f := range rows[start:end] {
			batch.Queue(`INSERT INTO forecasts (spot, ts, wind_speed_ms, gust_ms, direction_deg, source, fetched_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (spot, ts) DO NOTHING`, f.Spot, f.Timestamp, f.WindSpeedMS, f.GustMS, f.DirectionDeg, f.Source, f.FetchedAt)
		}

		results := r.db.SendBatch(ctx, batch)
		if err := results.Close(); err != nil {
			return err
		}
	}
	return nil
}

func (r *PGForecastRepository) DeleteBefore(ctx context.Context, spot string, cutoff time.Time) (int64, error) {
	res, err := r.db.Exec(ctx, `DELETE FROM forecasts WHERE spot=$1 AND ts < $2`, spot, cutoff)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected(), nil
}

var _ ForecastRepository = (*PGForecastRepository)(nil)
