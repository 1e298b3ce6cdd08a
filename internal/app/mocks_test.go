package app

import (
	"context"

	"github.com/metinatakli/cinema-booking-core/internal/booking"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
	"github.com/stretchr/testify/mock"
)

type mockBookingConfirmer struct {
	mock.Mock
}

func (m *mockBookingConfirmer) Confirm(ctx context.Context, req booking.ConfirmRequest) (*domain.Booking, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

type mockBookingLedger struct {
	mock.Mock
}

func (m *mockBookingLedger) ByCode(ctx context.Context, code string) (*domain.Booking, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

func (m *mockBookingLedger) ByUser(
	ctx context.Context,
	userID int,
	pagination domain.Pagination) ([]domain.Booking, *domain.Metadata, error) {

	args := m.Called(ctx, userID, pagination)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]domain.Booking), args.Get(1).(*domain.Metadata), args.Error(2)
}

func (m *mockBookingLedger) ByShowtime(
	ctx context.Context,
	showtimeID int,
	pagination domain.Pagination) ([]domain.Booking, *domain.Metadata, error) {

	args := m.Called(ctx, showtimeID, pagination)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).([]domain.Booking), args.Get(1).(*domain.Metadata), args.Error(2)
}

func (m *mockBookingLedger) MarkPaid(ctx context.Context, code string) (*domain.Booking, error) {
	return m.transition(m.Called(ctx, code))
}

func (m *mockBookingLedger) MarkFailed(ctx context.Context, code string) (*domain.Booking, error) {
	return m.transition(m.Called(ctx, code))
}

func (m *mockBookingLedger) Cancel(ctx context.Context, code string) (*domain.Booking, error) {
	return m.transition(m.Called(ctx, code))
}

func (m *mockBookingLedger) transition(args mock.Arguments) (*domain.Booking, error) {
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Booking), args.Error(1)
}

type mockVenueHistory struct {
	mock.Mock
}

func (m *mockVenueHistory) ListByTheater(ctx context.Context, theaterID, limit int) ([]domain.BookingRef, error) {
	args := m.Called(ctx, theaterID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BookingRef), args.Error(1)
}
