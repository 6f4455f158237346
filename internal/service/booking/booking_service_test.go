package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/vetrodar/cabinbooking/internal/domain"
	"github.com/vetrodar/cabinbooking/internal/payment"
	"github.com/vetrodar/cabinbooking/internal/repository"
)

type MockBookingRepository struct {
	mock.Mock
}

func (m *MockBookingRepository) CreatePending(ctx context.Context, booking *domain.Booking) error {
	args := m.Called(ctx, booking)
	return args.Error(0)
}

func (m *MockBookingRepository) GetByToken(ctx context.Context, token string) (*domain.Booking, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) UpdateStatus(ctx context.Context, token string, status domain.BookingStatus) (*domain.Booking, error) {
	args := m.Called(ctx, token, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *MockBookingRepository) ExpirePendingBefore(ctx context.Context, deadline time.Time) ([]domain.Booking, error) {
	args := m.Called(ctx, deadline)
	return args.Get(0).([]domain.Booking), args.Error(1)
}

type MockTripRepository struct {
	mock.Mock
}

func (m *MockTripRepository) List(ctx context.Context) ([]domain.Trip, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Trip), args.Error(1)
}

func (m *MockTripRepository) GetByID(ctx context.Context, id int64) (*domain.Trip, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Trip), args.Error(1)
}

func (m *MockTripRepository) ReleaseCabins(ctx context.Context, tripID int64, cabins int) error {
	args := m.Called(ctx, tripID, cabins)
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) GetTrips(ctx context.Context) ([]domain.Trip, error) {
	args := m.Called(ctx)
	return args.Get(0).([]domain.Trip), args.Error(1)
}

func (m *MockCache) SetTrips(ctx context.Context, trips []domain.Trip) error {
	args := m.Called(ctx, trips)
	return args.Error(0)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateSession(ctx context.Context, session payment.Session) (string, error) {
	args := m.Called(ctx, session)
	return args.String(0), args.Error(1)
}

type MockProducer struct {
	mock.Mock
}

func (m *MockProducer) Publish(ctx context.Context, topic, key string, value interface{}) error {
	args := m.Called(ctx, topic, key, value)
	return args.Error(0)
}

func testTrip() *domain.Trip {
	return &domain.Trip{
		ID:              7,
		Destination:     "Bol, Brac",
		CabinsTotal:     3,
		SpotsLeft:       6,
		PriceCabinCents: 100000,
		Active:          true,
	}
}

func newTestService(bookings *MockBookingRepository, trips *MockTripRepository, cache *MockCache, gateway *MockGateway, producer *MockProducer) *BookingService {
	return &BookingService{
		bookings:     bookings,
		trips:        trips,
		cache:        cache,
		gateway:      gateway,
		producer:     producer,
		bookingTopic: "booking_topic",
		holdTTL:      30 * time.Minute,
	}
}

func TestBookingService_Checkout_Success(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockTripRepo := &MockTripRepository{}
	mockGateway := &MockGateway{}
	mockProducer := &MockProducer{}

	service := newTestService(mockBookingRepo, mockTripRepo, &MockCache{}, mockGateway, mockProducer)

	ctx := context.Background()
	input := CheckoutInput{TripID: 7, Guests: 5, Email: "rider@example.com", TotalCents: 300000}

	mockTripRepo.On("GetByID", ctx, int64(7)).Return(testTrip(), nil).Once()
	mockBookingRepo.On("CreatePending", ctx, mock.AnythingOfType("*domain.Booking")).Return(nil).Once()
	mockGateway.On("CreateSession", ctx, mock.MatchedBy(func(s payment.Session) bool {
		return s.AmountCents == 300000 && s.Currency == "EUR" && s.Email == "rider@example.com"
	})).Return("sess_abc", nil).Once()
	mockProducer.On("Publish", ctx, "booking_topic", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := service.Checkout(ctx, input)

	assert.NoError(t, err)
	assert.NotNil(t, result)
	assert.Equal(t, "sess_abc", result.PaymentRef)
	assert.Equal(t, domain.BookingStatusPending, result.Booking.Status)
	assert.Equal(t, 3, result.Booking.Cabins)
	assert.Equal(t, int64(300000), result.Booking.TotalCents)
	assert.NotEmpty(t, result.Booking.Token)

	mockTripRepo.AssertExpectations(t)
	mockBookingRepo.AssertExpectations(t)
	mockGateway.AssertExpectations(t)
	mockProducer.AssertExpectations(t)
}

func TestBookingService_Checkout_DiscountedTotalIsCompared(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockTripRepo := &MockTripRepository{}
	mockGateway := &MockGateway{}
	mockProducer := &MockProducer{}

	service := newTestService(mockBookingRepo, mockTripRepo, &MockCache{}, mockGateway, mockProducer)

	ctx := context.Background()
	trip := testTrip()
	trip.DiscountPercent = 10

	// Base total for 6 guests is 300000; the client must submit the
	// discounted 270000, not the base figure.
	mockTripRepo.On("GetByID", ctx, int64(7)).Return(trip, nil)

	_, err := service.Checkout(ctx, CheckoutInput{TripID: 7, Guests: 6, Email: "a@b.c", TotalCents: 300000})
	assert.ErrorIs(t, err, ErrPriceMismatch)

	mockBookingRepo.On("CreatePending", ctx, mock.MatchedBy(func(b *domain.Booking) bool {
		return b.TotalCents == 270000
	})).Return(nil).Once()
	mockGateway.On("CreateSession", ctx, mock.Anything).Return("sess_1", nil).Once()
	mockProducer.On("Publish", ctx, "booking_topic", mock.Anything, mock.Anything).Return(nil).Once()

	result, err := service.Checkout(ctx, CheckoutInput{TripID: 7, Guests: 6, Email: "a@b.c", TotalCents: 270000})
	assert.NoError(t, err)
	assert.Equal(t, int64(270000), result.Booking.TotalCents)

	mockBookingRepo.AssertExpectations(t)
}

func TestBookingService_Checkout_ValidationErrors(t *testing.T) {
	mockTripRepo := &MockTripRepository{}
	service := newTestService(&MockBookingRepository{}, mockTripRepo, &MockCache{}, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	mockTripRepo.On("GetByID", ctx, int64(7)).Return(testTrip(), nil)

	testCases := []struct {
		name        string
		input       CheckoutInput
		expectedErr error
	}{
		{
			name:        "empty email",
			input:       CheckoutInput{TripID: 7, Guests: 2, Email: "", TotalCents: 100000},
			expectedErr: ErrEmailRequired,
		},
		{
			name:        "zero guests",
			input:       CheckoutInput{TripID: 7, Guests: 0, Email: "a@b.c", TotalCents: 0},
			expectedErr: ErrGroupTooSmall,
		},
		{
			name:        "negative guests",
			input:       CheckoutInput{TripID: 7, Guests: -2, Email: "a@b.c", TotalCents: 0},
			expectedErr: ErrGroupTooSmall,
		},
		{
			name:        "group larger than the vessel",
			input:       CheckoutInput{TripID: 7, Guests: 8, Email: "a@b.c", TotalCents: 400000},
			expectedErr: ErrNotEnoughCabins,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			result, err := service.Checkout(ctx, tc.input)
			assert.Nil(t, result)
			assert.ErrorIs(t, err, tc.expectedErr)
		})
	}
}

func TestBookingService_Checkout_TripNotFound(t *testing.T) {
	mockTripRepo := &MockTripRepository{}
	service := newTestService(&MockBookingRepository{}, mockTripRepo, &MockCache{}, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	mockTripRepo.On("GetByID", ctx, int64(99)).Return(nil, pgx.ErrNoRows).Once()

	result, err := service.Checkout(ctx, CheckoutInput{TripID: 99, Guests: 2, Email: "a@b.c", TotalCents: 100000})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrTripNotFound)
	mockTripRepo.AssertExpectations(t)
}

func TestBookingService_Checkout_PriceMismatch(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockTripRepo := &MockTripRepository{}
	service := newTestService(mockBookingRepo, mockTripRepo, &MockCache{}, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	mockTripRepo.On("GetByID", ctx, int64(7)).Return(testTrip(), nil)

	// One cent off is tolerated, two cents is a mismatch.
	result, err := service.Checkout(ctx, CheckoutInput{TripID: 7, Guests: 2, Email: "a@b.c", TotalCents: 99998})
	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrPriceMismatch)
	mockBookingRepo.AssertNotCalled(t, "CreatePending")
}

func TestBookingService_Checkout_LostInventoryRace(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockTripRepo := &MockTripRepository{}
	service := newTestService(mockBookingRepo, mockTripRepo, &MockCache{}, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	mockTripRepo.On("GetByID", ctx, int64(7)).Return(testTrip(), nil).Once()
	mockBookingRepo.On("CreatePending", ctx, mock.Anything).Return(repository.ErrNotEnoughSpots).Once()

	result, err := service.Checkout(ctx, CheckoutInput{TripID: 7, Guests: 2, Email: "a@b.c", TotalCents: 100000})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrNotEnoughCabins)
	mockBookingRepo.AssertExpectations(t)
}

func TestBookingService_Checkout_GatewayFailureReleasesCabins(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockTripRepo := &MockTripRepository{}
	mockGateway := &MockGateway{}
	service := newTestService(mockBookingRepo, mockTripRepo, &MockCache{}, mockGateway, &MockProducer{})

	ctx := context.Background()
	expectedErr := errors.New("gateway unavailable")

	mockTripRepo.On("GetByID", ctx, int64(7)).Return(testTrip(), nil).Once()
	mockBookingRepo.On("CreatePending", ctx, mock.Anything).Return(nil).Once()
	mockGateway.On("CreateSession", ctx, mock.Anything).Return("", expectedErr).Once()
	mockBookingRepo.On("UpdateStatus", ctx, mock.Anything, domain.BookingStatusCancelled).Return((*domain.Booking)(nil), nil).Once()
	mockTripRepo.On("ReleaseCabins", ctx, int64(7), 1).Return(nil).Once()

	result, err := service.Checkout(ctx, CheckoutInput{TripID: 7, Guests: 2, Email: "a@b.c", TotalCents: 100000})

	assert.Nil(t, result)
	assert.Equal(t, expectedErr, err)
	mockTripRepo.AssertExpectations(t)
	mockBookingRepo.AssertExpectations(t)
}

// When the cancel transition itself fails the row stays PENDING and the
// expiry sweep owns the release. Releasing here as well would hand the same
// cabins back twice and oversell the trip.
func TestBookingService_Checkout_GatewayFailureCancelFails_NoDoubleRelease(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockTripRepo := &MockTripRepository{}
	mockGateway := &MockGateway{}
	mockProducer := &MockProducer{}
	service := newTestService(mockBookingRepo, mockTripRepo, &MockCache{}, mockGateway, mockProducer)

	ctx := context.Background()

	mockTripRepo.On("GetByID", ctx, int64(7)).Return(testTrip(), nil).Once()
	mockBookingRepo.On("CreatePending", ctx, mock.Anything).Return(nil).Once()
	mockGateway.On("CreateSession", ctx, mock.Anything).Return("", errors.New("gateway unavailable")).Once()
	mockBookingRepo.On("UpdateStatus", ctx, mock.Anything, domain.BookingStatusCancelled).
		Return((*domain.Booking)(nil), errors.New("database unavailable")).Once()

	result, err := service.Checkout(ctx, CheckoutInput{TripID: 7, Guests: 2, Email: "a@b.c", TotalCents: 100000})
	assert.Nil(t, result)
	assert.Error(t, err)
	mockTripRepo.AssertNotCalled(t, "ReleaseCabins")

	// The sweep later expires the still-PENDING row: one release in total.
	expired := []domain.Booking{{Token: "tok", TripID: 7, Cabins: 1, Status: domain.BookingStatusExpired}}
	mockBookingRepo.On("ExpirePendingBefore", ctx, mock.AnythingOfType("time.Time")).Return(expired, nil).Once()
	mockTripRepo.On("ReleaseCabins", ctx, int64(7), 1).Return(nil).Once()
	mockProducer.On("Publish", ctx, "booking_topic", mock.Anything, mock.Anything).Return(nil).Once()

	_, err = service.ExpirePendingBookings(ctx)
	assert.NoError(t, err)
	mockTripRepo.AssertNumberOfCalls(t, "ReleaseCabins", 1)
}

func TestBookingService_Checkout_InactiveTrip(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockTripRepo := &MockTripRepository{}
	service := newTestService(mockBookingRepo, mockTripRepo, &MockCache{}, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	trip := testTrip()
	trip.Active = false

	mockTripRepo.On("GetByID", ctx, int64(7)).Return(trip, nil).Once()

	result, err := service.Checkout(ctx, CheckoutInput{TripID: 7, Guests: 2, Email: "a@b.c", TotalCents: 100000})

	assert.Nil(t, result)
	assert.ErrorIs(t, err, ErrTripNotFound)
	mockBookingRepo.AssertNotCalled(t, "CreatePending")
}

func TestBookingService_Quote_InactiveTrip(t *testing.T) {
	mockTripRepo := &MockTripRepository{}
	mockCache := &MockCache{}
	service := newTestService(&MockBookingRepository{}, mockTripRepo, mockCache, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	trip := testTrip()
	trip.Active = false

	mockCache.On("GetTrips", ctx).Return(([]domain.Trip)(nil), nil).Once()
	mockTripRepo.On("GetByID", ctx, int64(7)).Return(trip, nil).Once()

	quote, err := service.Quote(ctx, 7, 2)

	assert.Nil(t, quote)
	assert.ErrorIs(t, err, ErrTripNotFound)
}

func TestBookingService_Quote_Success(t *testing.T) {
	mockTripRepo := &MockTripRepository{}
	mockCache := &MockCache{}
	service := newTestService(&MockBookingRepository{}, mockTripRepo, mockCache, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	trip := testTrip()
	trip.DiscountPercent = 10

	mockCache.On("GetTrips", ctx).Return(([]domain.Trip)(nil), nil).Once()
	mockTripRepo.On("GetByID", ctx, int64(7)).Return(trip, nil).Once()

	quote, err := service.Quote(ctx, 7, 5)

	assert.NoError(t, err)
	assert.True(t, quote.Valid)
	assert.Equal(t, 3, quote.CabinsRequired)
	assert.Equal(t, 3, quote.CabinsAvailable)
	assert.Equal(t, int64(300000), quote.TotalCents)
	assert.Equal(t, int64(30000), quote.DiscountCents)
	assert.Equal(t, int64(270000), quote.FinalCents)
	assert.Equal(t, int64(60000), quote.PerPersonCents)
}

func TestBookingService_Quote_UsesCachedSnapshot(t *testing.T) {
	mockTripRepo := &MockTripRepository{}
	mockCache := &MockCache{}
	service := newTestService(&MockBookingRepository{}, mockTripRepo, mockCache, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	mockCache.On("GetTrips", ctx).Return([]domain.Trip{*testTrip()}, nil).Once()

	quote, err := service.Quote(ctx, 7, 2)

	assert.NoError(t, err)
	assert.True(t, quote.Valid)
	assert.Equal(t, int64(100000), quote.TotalCents)
	mockTripRepo.AssertNotCalled(t, "GetByID")
}

func TestBookingService_Quote_NotEnoughCabins(t *testing.T) {
	mockTripRepo := &MockTripRepository{}
	mockCache := &MockCache{}
	service := newTestService(&MockBookingRepository{}, mockTripRepo, mockCache, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	trip := testTrip()
	trip.SpotsLeft = 2

	mockCache.On("GetTrips", ctx).Return(([]domain.Trip)(nil), nil).Once()
	mockTripRepo.On("GetByID", ctx, int64(7)).Return(trip, nil).Once()

	quote, err := service.Quote(ctx, 7, 6)

	assert.NoError(t, err)
	assert.False(t, quote.Valid)
	assert.Equal(t, 3, quote.CabinsRequired)
	assert.Equal(t, 1, quote.CabinsAvailable)
	assert.Zero(t, quote.TotalCents)
}

func TestBookingService_ConfirmBooking_Success(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockProducer := &MockProducer{}
	service := newTestService(mockBookingRepo, &MockTripRepository{}, &MockCache{}, &MockGateway{}, mockProducer)

	ctx := context.Background()
	pending := &domain.Booking{Token: "tok", TripID: 7, Cabins: 2, Status: domain.BookingStatusPending}
	confirmed := &domain.Booking{Token: "tok", TripID: 7, Cabins: 2, Status: domain.BookingStatusConfirmed}

	mockBookingRepo.On("GetByToken", ctx, "tok").Return(pending, nil).Once()
	mockBookingRepo.On("UpdateStatus", ctx, "tok", domain.BookingStatusConfirmed).Return(confirmed, nil).Once()
	mockProducer.On("Publish", ctx, "booking_topic", "tok", mock.Anything).Return(nil).Once()

	updated, err := service.ConfirmBooking(ctx, "tok")

	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, updated.Status)
	mockBookingRepo.AssertExpectations(t)
}

func TestBookingService_ConfirmBooking_NotPending(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	service := newTestService(mockBookingRepo, &MockTripRepository{}, &MockCache{}, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	cancelled := &domain.Booking{Token: "tok", Status: domain.BookingStatusCancelled}

	mockBookingRepo.On("GetByToken", ctx, "tok").Return(cancelled, nil).Once()

	updated, err := service.ConfirmBooking(ctx, "tok")

	assert.Nil(t, updated)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "not pending")
	mockBookingRepo.AssertNotCalled(t, "UpdateStatus")
}

func TestBookingService_CancelBooking_ReleasesCabins(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockTripRepo := &MockTripRepository{}
	mockProducer := &MockProducer{}
	service := newTestService(mockBookingRepo, mockTripRepo, &MockCache{}, &MockGateway{}, mockProducer)

	ctx := context.Background()
	pending := &domain.Booking{Token: "tok", TripID: 7, Cabins: 2, Status: domain.BookingStatusPending}
	cancelled := &domain.Booking{Token: "tok", TripID: 7, Cabins: 2, Status: domain.BookingStatusCancelled}

	mockBookingRepo.On("GetByToken", ctx, "tok").Return(pending, nil).Once()
	mockBookingRepo.On("UpdateStatus", ctx, "tok", domain.BookingStatusCancelled).Return(cancelled, nil).Once()
	mockTripRepo.On("ReleaseCabins", ctx, int64(7), 2).Return(nil).Once()
	mockProducer.On("Publish", ctx, "booking_topic", "tok", mock.Anything).Return(nil).Once()

	updated, err := service.CancelBooking(ctx, "tok")

	assert.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, updated.Status)
	mockTripRepo.AssertExpectations(t)
}

func TestBookingService_CancelBooking_AlreadyCancelled(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockTripRepo := &MockTripRepository{}
	service := newTestService(mockBookingRepo, mockTripRepo, &MockCache{}, &MockGateway{}, &MockProducer{})

	ctx := context.Background()
	cancelled := &domain.Booking{Token: "tok", TripID: 7, Cabins: 2, Status: domain.BookingStatusCancelled}

	mockBookingRepo.On("GetByToken", ctx, "tok").Return(cancelled, nil).Once()

	updated, err := service.CancelBooking(ctx, "tok")

	assert.NoError(t, err)
	assert.Equal(t, cancelled, updated)
	mockBookingRepo.AssertNotCalled(t, "UpdateStatus")
	mockTripRepo.AssertNotCalled(t, "ReleaseCabins")
}

func TestBookingService_ExpirePendingBookings(t *testing.T) {
	mockBookingRepo := &MockBookingRepository{}
	mockTripRepo := &MockTripRepository{}
	mockProducer := &MockProducer{}
	service := newTestService(mockBookingRepo, mockTripRepo, &MockCache{}, &MockGateway{}, mockProducer)

	ctx := context.Background()
	expired := []domain.Booking{
		{Token: "tok1", TripID: 7, Cabins: 1, Status: domain.BookingStatusExpired},
		{Token: "tok2", TripID: 8, Cabins: 3, Status: domain.BookingStatusExpired},
	}

	mockBookingRepo.On("ExpirePendingBefore", ctx, mock.AnythingOfType("time.Time")).Return(expired, nil).Once()
	mockTripRepo.On("ReleaseCabins", ctx, int64(7), 1).Return(nil).Once()
	mockTripRepo.On("ReleaseCabins", ctx, int64(8), 3).Return(nil).Once()
	mockProducer.On("Publish", ctx, "booking_topic", mock.Anything, mock.Anything).Return(nil).Times(2)

	result, err := service.ExpirePendingBookings(ctx)

	assert.NoError(t, err)
	assert.Len(t, result, 2)
	mockTripRepo.AssertExpectations(t)
	mockProducer.AssertExpectations(t)
}
