package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vetrodar/cabinbooking/internal/domain"
)

type BookingRepository interface {
	CreatePending(ctx context.Context, booking *domain.Booking) error
	GetByToken(ctx context.Context, token string) (*domain.Booking, error)
	UpdateStatus(ctx context.Context, token string, status domain.BookingStatus) (*domain.Booking, error)
	ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error)
}

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

// CreatePending reserves the trip capacity and inserts the booking in one
// transaction. The conditional decrement is the only thing standing between
// two concurrent checkouts and an oversold vessel.
func (r *PGBookingRepository) CreatePending(ctx context.Context, booking *domain.Booking) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	spots := booking.Cabins * 2
	res, err := tx.Exec(ctx, `UPDATE trips SET spots_left = spots_left - $2, updated_at = now() WHERE id=$1 AND spots_left >= $2`, booking.TripID, spots)
	if err != nil {
		return err
	}
	if res.RowsAffected() == 0 {
		return ErrNotEnoughSpots
	}

	booking.Status = domain.BookingStatusPending
	if err := tx.QueryRow(ctx, `INSERT INTO bookings (trip_id, guests, cabins, total_cents, token, status, expires_at, email)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at, updated_at`, booking.TripID, booking.Guests, booking.Cabins, booking.TotalCents, booking.Token, booking.Status, booking.ExpiresAt, booking.Email).
		Scan(&booking.ID, &booking.CreatedAt, &booking.UpdatedAt); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *PGBookingRepository) GetByToken(ctx context.Context, token string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT id, trip_id, guests, cabins, total_cents, token, status, expires_at, email, created_at, updated_at FROM bookings WHERE token=$1`, token)
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.TripID, &b.Guests, &b.Cabins, &b.TotalCents, &b.Token, &b.Status, &b.ExpiresAt, &b.Email, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PGBookingRepository) UpdateStatus(ctx context.Context, token string, status domain.BookingStatus) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `UPDATE bookings SET status=$1, updated_at=now() WHERE token=$2 RETURNING id, trip_id, guests, cabins, total_cents, token, status, expires_at, email, created_at, updated_at`, status, token)
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.TripID, &b.Guests, &b.Cabins, &b.TotalCents, &b.Token, &b.Status, &b.ExpiresAt, &b.Email, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PGBookingRepository) ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `UPDATE bookings SET status=$1, updated_at=now() WHERE status=$2 AND expires_at <= $3 RETURNING id, trip_id, guests, cabins, total_cents, token, status, expires_at, email, created_at, updated_at`, domain.BookingStatusExpired, domain.BookingStatusPending, deadline)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.Booking
	for rows.Next() {
		var b domain.Booking
		if err := rows.Scan(&b.ID, &b.TripID, &b.Guests, &b.Cabins, &b.TotalCents, &b.Token, &b.Status, &b.ExpiresAt, &b.Email, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, err
		}
		expired = append(expired, b)
	}
	return expired, rows.Err()
}

var _ BookingRepository = (*PGBookingRepository)(nil)
