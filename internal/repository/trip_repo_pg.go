package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vetrodar/cabinbooking/internal/domain"
)

// ErrNotEnoughSpots means a concurrent booking took the capacity between the
// client's quote and this reservation. Retryable conflict, not a bug.
var ErrNotEnoughSpots = errors.New("not enough spots left")

type TripRepository interface {
	List(ctx context.Context) ([]domain.Trip, error)
	GetByID(ctx context.Context, id int64) (*domain.Trip, error)
	ReleaseCabins(ctx context.Context, tripID int64, cabins int) error
}

type PGTripRepository struct {
	db *pgxpool.Pool
}

func NewTripRepository(db *pgxpool.Pool) TripRepository {
	return &PGTripRepository{db: db}
}

func (r *PGTripRepository) List(ctx context.Context) ([]domain.Trip, error) {
	rows, err := r.db.Query(ctx, `SELECT id, destination, start_date, end_date, cabins_total, spots_left, price_cabin_cents, discount_percent, active, created_at, updated_at FROM trips WHERE active ORDER BY start_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	trips := make([]domain.Trip, 0)
	for rows.Next() {
		var t domain.Trip
		if err := rows.Scan(&t.ID, &t.Destination, &t.StartDate, &t.EndDate, &t.CabinsTotal, &t.SpotsLeft, &t.PriceCabinCents, &t.DiscountPercent, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		trips = append(trips, t)
	}
	return trips, rows.Err()
}

func (r *PGTripRepository) GetByID(ctx context.Context, id int64) (*domain.Trip, error) {
	row := r.db.QueryRow(ctx, `SELECT id, destination, start_date, end_date, cabins_total, spots_left, price_cabin_cents, discount_percent, active, created_at, updated_at FROM trips WHERE id=$1`, id)
	var t domain.Trip
	if err := row.Scan(&t.ID, &t.Destination, &t.StartDate, &t.EndDate, &t.CabinsTotal, &t.SpotsLeft, &t.PriceCabinCents, &t.DiscountPercent, &t.Active, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *PGTripRepository) ReleaseCabins(ctx context.Context, tripID int64, cabins int) error {
	_, err := r.db.Exec(ctx, `UPDATE trips SET spots_left = spots_left + $2, updated_at = now() WHERE id=$1`, tripID, cabins*2)
	return err
}

var _ TripRepository = (*PGTripRepository)(nil)
