package booking

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/vetrodar/cabinbooking/internal/domain"
	"github.com/vetrodar/cabinbooking/internal/kafka"
	"github.com/vetrodar/cabinbooking/internal/payment"
	"github.com/vetrodar/cabinbooking/internal/pricing"
	"github.com/vetrodar/cabinbooking/internal/repository"
)

var (
	ErrTripNotFound    = errors.New("trip not found")
	ErrEmailRequired   = errors.New("email is required")
	ErrGroupTooSmall   = errors.New("group size must be at least 1")
	ErrNotEnoughCabins = errors.New("not enough cabins available")
	ErrPriceMismatch   = errors.New("price mismatch, refresh and retry")
)

type BookingUseCase interface {
	Quote(ctx context.Context, tripID int64, guests int) (*Quote, error)
	Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error)
	ConfirmBooking(ctx context.Context, token string) (*domain.Booking, error)
	CancelBooking(ctx context.Context, token string) (*domain.Booking, error)
	ExpirePendingBookings(ctx context.Context) ([]domain.Booking, error)
}

type Cache interface {
	GetTrips(ctx context.Context) ([]domain.Trip, error)
	SetTrips(ctx context.Context, trips []domain.Trip) error
}

type Producer interface {
	Publish(ctx context.Context, topic, key string, value interface{}) error
}

type BookingService struct {
	bookings           repository.BookingRepository
	trips              repository.TripRepository
	cache              Cache
	gateway            payment.Gateway
	producer           Producer
	bookingTopic       string
	notificationsTopic string
	holdTTL            time.Duration
}

type CheckoutInput struct {
	TripID     int64  `json:"trip_id"`
	Guests     int    `json:"guests"`
	Email      string `json:"email"`
	TotalCents int64  `json:"total_cents"`
}

type CheckoutResult struct {
	Booking    *domain.Booking
	PaymentRef string
}

// Quote is the advisory price shown while the user adjusts group size. It may
// be computed from a cached trip snapshot; the authoritative recomputation
// happens again inside Checkout before any money moves.
type Quote struct {
	TripID          int64          `json:"trip_id"`
	Guests          int            `json:"guests"`
	Valid           bool           `json:"valid"`
	Reason          pricing.Reason `json:"reason,omitempty"`
	Message         string         `json:"message,omitempty"`
	CabinsRequired  int            `json:"cabins_required"`
	CabinsAvailable int            `json:"cabins_available"`
	TotalCents      int64          `json:"total_cents"`
	DiscountCents   int64          `json:"discount_cents"`
	FinalCents      int64          `json:"final_cents"`
	PerPersonCents  int64          `json:"per_person_cents"`
}

type BookingServiceOption func(*BookingService)

func WithNotificationsTopic(topic string) BookingServiceOption {
	return func(s *BookingService) {
		s.notificationsTopic = topic
	}
}

func NewBookingService(
	bookings repository.BookingRepository,
	trips repository.TripRepository,
	cache Cache,
	gateway payment.Gateway,
	producer Producer,
	bookingTopic string,
	holdTTL time.Duration,
	opts ...BookingServiceOption,
) *BookingService {
	service := &BookingService{
		bookings:     bookings,
		trips:        trips,
		cache:        cache,
		gateway:      gateway,
		producer:     producer,
		bookingTopic: bookingTopic,
		holdTTL:      holdTTL,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

func (s *BookingService) Quote(ctx context.Context, tripID int64, guests int) (*Quote, error) {
	trip, err := s.snapshotTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	return s.buildQuote(trip, guests), nil
}

// Checkout re-fetches the authoritative trip record, recomputes the price and
// rejects the request when the client-submitted total disagrees beyond a cent.
// Capacity is taken by a conditional decrement inside CreatePending, so a
// losing racer gets ErrNotEnoughCabins instead of an oversold trip.
func (s *BookingService) Checkout(ctx context.Context, input CheckoutInput) (*CheckoutResult, error) {
	if input.Email == "" {
		return nil, ErrEmailRequired
	}

	trip, err := s.trips.GetByID(ctx, input.TripID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	// Deactivated trips never show up in the listing, so they are not
	// bookable either.
	if !trip.Active {
		return nil, ErrTripNotFound
	}

	res := pricing.Calculate(pricing.Request{
		PriceCabinCents: trip.PriceCabinCents,
		Guests:          input.Guests,
		SpotsLeft:       trip.SpotsLeft,
		CabinsTotal:     trip.CabinsTotal,
	})
	if !res.Valid {
		return nil, errFromReason(res.Reason)
	}

	final := pricing.ApplyDiscount(res.TotalCents, trip.DiscountPercent)
	if !pricing.VerifyQuote(final, input.TotalCents) {
		return nil, ErrPriceMismatch
	}

	booking := &domain.Booking{
		TripID:     trip.ID,
		Guests:     input.Guests,
		Cabins:     res.CabinsRequired,
		TotalCents: final,
		Token:      uuid.NewString(),
		ExpiresAt:  time.Now().Add(s.holdTTL),
		Email:      input.Email,
	}

	if err := s.bookings.CreatePending(ctx, booking); err != nil {
		if errors.Is(err, repository.ErrNotEnoughSpots) {
			return nil, ErrNotEnoughCabins
		}
		return nil, err
	}
	booking.Status = domain.BookingStatusPending

	ref, err := s.gateway.CreateSession(ctx, payment.Session{
		BookingToken: booking.Token,
		AmountCents:  booking.TotalCents,
		Currency:     "EUR",
		Email:        booking.Email,
	})
	if err != nil {
		// Return the capacity before surfacing the failure, otherwise the
		// cabins stay blocked until the expiry sweep. Release only after the
		// row left PENDING, or the sweep would hand the same cabins back a
		// second time.
		if _, cancelErr := s.bookings.UpdateStatus(ctx, booking.Token, domain.BookingStatusCancelled); cancelErr != nil {
			log.Printf("WARNING: failed to cancel booking %s after payment failure: %v", booking.Token, cancelErr)
		} else {
			_ = s.trips.ReleaseCabins(ctx, booking.TripID, booking.Cabins)
		}
		return nil, err
	}

	if err := s.publish(ctx, "booking_created", booking); err != nil {
		log.Printf("WARNING: failed to publish booking_created event for booking %s: %v", booking.Token, err)
	}

	return &CheckoutResult{Booking: booking, PaymentRef: ref}, nil
}

func (s *BookingService) ConfirmBooking(ctx context.Context, token string) (*domain.Booking, error) {
	current, err := s.bookings.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if current.Status != domain.BookingStatusPending {
		return nil, errors.New("booking is not pending")
	}

	updated, err := s.bookings.UpdateStatus(ctx, token, domain.BookingStatusConfirmed)
	if err != nil {
		return nil, err
	}
	_ = s.publish(ctx, "booking_confirmed", updated)
	return updated, nil
}

func (s *BookingService) CancelBooking(ctx context.Context, token string) (*domain.Booking, error) {
	current, err := s.bookings.GetByToken(ctx, token)
	if err != nil {
		return nil, err
	}
	if current.Status == domain.BookingStatusCancelled || current.Status == domain.BookingStatusExpired {
		return current, nil
	}

	updated, err := s.bookings.UpdateStatus(ctx, token, domain.BookingStatusCancelled)
	if err != nil {
		return nil, err
	}
	_ = s.trips.ReleaseCabins(ctx, updated.TripID, updated.Cabins)
	_ = s.publish(ctx, "booking_cancelled", updated)
	return updated, nil
}

func (s *BookingService) ExpirePendingBookings(ctx context.Context) ([]domain.Booking, error) {
	deadline := time.Now()
	expired, err := s.bookings.ExpirePendingBefore(ctx, deadline)
	if err != nil {
		return nil, err
	}
	for _, b := range expired {
		_ = s.trips.ReleaseCabins(ctx, b.TripID, b.Cabins)
		_ = s.publish(ctx, "booking_expired", &b)
	}
	return expired, nil
}

func (s *BookingService) buildQuote(trip *domain.Trip, guests int) *Quote {
	res := pricing.Calculate(pricing.Request{
		PriceCabinCents: trip.PriceCabinCents,
		Guests:          guests,
		SpotsLeft:       trip.SpotsLeft,
		CabinsTotal:     trip.CabinsTotal,
	})

	q := &Quote{
		TripID:          trip.ID,
		Guests:          guests,
		Valid:           res.Valid,
		Reason:          res.Reason,
		Message:         res.Message,
		CabinsRequired:  res.CabinsRequired,
		CabinsAvailable: res.CabinsAvailable,
	}
	if !res.Valid {
		return q
	}

	q.TotalCents = res.TotalCents
	q.FinalCents = pricing.ApplyDiscount(res.TotalCents, trip.DiscountPercent)
	q.DiscountCents = q.TotalCents - q.FinalCents
	q.PerPersonCents = res.PerPersonCents
	return q
}

// snapshotTrip prefers the cached trip list; staleness is acceptable for an
// advisory quote.
func (s *BookingService) snapshotTrip(ctx context.Context, tripID int64) (*domain.Trip, error) {
	if s.cache != nil {
		if cached, err := s.cache.GetTrips(ctx); err == nil {
			for i := range cached {
				if cached[i].ID == tripID {
					return &cached[i], nil
				}
			}
		}
	}

	trip, err := s.trips.GetByID(ctx, tripID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	if !trip.Active {
		return nil, ErrTripNotFound
	}
	return trip, nil
}

func errFromReason(reason pricing.Reason) error {
	switch reason {
	case pricing.ReasonGroupTooSmall:
		return ErrGroupTooSmall
	case pricing.ReasonNotEnoughCabins:
		return ErrNotEnoughCabins
	default:
		return errors.New("invalid booking request")
	}
}

func (s *BookingService) publish(ctx context.Context, eventType string, booking *domain.Booking) error {
	if s.producer == nil || s.bookingTopic == "" {
		return nil
	}
	event := kafka.BookingEvent{
		Type:       eventType,
		Token:      booking.Token,
		TripID:     booking.TripID,
		Guests:     booking.Guests,
		Cabins:     booking.Cabins,
		TotalCents: booking.TotalCents,
		Email:      booking.Email,
		Status:     string(booking.Status),
		ExpiresAt:  booking.ExpiresAt,
	}
	if err := s.producer.Publish(ctx, s.bookingTopic, booking.Token, event); err != nil {
		return err
	}
	if s.notificationsTopic != "" {
		return s.producer.Publish(ctx, s.notificationsTopic, booking.Token, event)
	}
	return nil
}

var _ BookingUseCase = (*BookingService)(nil)
