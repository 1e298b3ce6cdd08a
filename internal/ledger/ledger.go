// Package ledger stores confirmed bookings and moves them through their payment and
// booking lifecycles.
package ledger

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/metinatakli/cinema-booking-core/internal/clock"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
)

// SeatReleaser returns sold seats to the inventory.
type SeatReleaser interface {
	Release(ctx context.Context, showtimeID int, seatNumbers []string) error
}

type Ledger struct {
	repo   domain.BookingRepository
	seats  SeatReleaser
	clock  clock.Clock
	logger *slog.Logger
}

type Option func(*Ledger)

func WithClock(c clock.Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) { l.logger = logger }
}

func New(repo domain.BookingRepository, seats SeatReleaser, opts ...Option) *Ledger {
	l := &Ledger{
		repo:   repo,
		seats:  seats,
		clock:  clock.NewSystem(),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Record appends a new booking. A code collision is returned as
// domain.ErrDuplicateBookingCode so the caller can retry with another code.
func (l *Ledger) Record(ctx context.Context, booking *domain.Booking) error {
	err := l.repo.Create(ctx, booking)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateBookingCode) {
			return err
		}
		return domain.NewPersistenceError("save booking", err)
	}

	return nil
}

func (l *Ledger) ByCode(ctx context.Context, code string) (*domain.Booking, error) {
	booking, err := l.repo.GetByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("booking")
		}
		return nil, domain.NewPersistenceError("load booking", err)
	}

	return booking, nil
}

func (l *Ledger) ByUser(ctx context.Context, userID int, pagination domain.Pagination) ([]domain.Booking, *domain.Metadata, error) {
	bookings, metadata, err := l.repo.ListByUser(ctx, userID, pagination)
	if err != nil {
		return nil, nil, domain.NewPersistenceError("list bookings", err)
	}

	return bookings, metadata, nil
}

func (l *Ledger) ByShowtime(ctx context.Context, showtimeID int, pagination domain.Pagination) ([]domain.Booking, *domain.Metadata, error) {
	bookings, metadata, err := l.repo.ListByShowtime(ctx, showtimeID, pagination)
	if err != nil {
		return nil, nil, domain.NewPersistenceError("list bookings", err)
	}

	return bookings, metadata, nil
}

// MarkPaid records a successful external payment for a pending booking.
func (l *Ledger) MarkPaid(ctx context.Context, code string) (*domain.Booking, error) {
	return l.transition(ctx, code, domain.PaymentStatusPaid, domain.BookingConfirmed)
}

// MarkFailed records a failed external payment. The booking is cancelled and its
// seats go back on sale.
func (l *Ledger) MarkFailed(ctx context.Context, code string) (*domain.Booking, error) {
	return l.transition(ctx, code, domain.PaymentStatusFailed, domain.BookingCancelled)
}

// Cancel cancels a booking and releases its seats.
func (l *Ledger) Cancel(ctx context.Context, code string) (*domain.Booking, error) {
	return l.transition(ctx, code, domain.PaymentStatusCancelled, domain.BookingCancelled)
}

// Expire closes a booking whose payment never arrived and releases its seats.
func (l *Ledger) Expire(ctx context.Context, code string) (*domain.Booking, error) {
	booking, err := l.ByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	if booking.PaymentStatus != domain.PaymentStatusPending {
		return nil, domain.NewTransitionError("payment", booking.PaymentStatus, domain.PaymentStatusCancelled)
	}

	return l.apply(ctx, booking, domain.PaymentStatusCancelled, domain.BookingExpired)
}

func (l *Ledger) transition(
	ctx context.Context,
	code string,
	payment domain.PaymentStatus,
	status domain.BookingStatus) (*domain.Booking, error) {

	booking, err := l.ByCode(ctx, code)
	if err != nil {
		return nil, err
	}

	return l.apply(ctx, booking, payment, status)
}

func (l *Ledger) apply(
	ctx context.Context,
	booking *domain.Booking,
	payment domain.PaymentStatus,
	status domain.BookingStatus) (*domain.Booking, error) {

	if !booking.PaymentStatus.CanTransitionTo(payment) {
		return nil, domain.NewTransitionError("payment", booking.PaymentStatus, payment)
	}

	if status != booking.Status && !booking.Status.CanTransitionTo(status) {
		return nil, domain.NewTransitionError("booking", booking.Status, status)
	}

	change := domain.StatusChange{
		FromPayment: booking.PaymentStatus,
		FromStatus:  booking.Status,
		Payment:     payment,
		Status:      status,
		At:          l.clock.Now(),
	}

	updated, err := l.repo.UpdateStatus(ctx, booking.Code, change)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEditConflict):
			return nil, domain.NewEditConflictError("booking")
		case errors.Is(err, domain.ErrRecordNotFound):
			return nil, domain.NewNotFoundError("booking")
		default:
			return nil, domain.NewPersistenceError("update booking status", err)
		}
	}

	l.logger.Info("booking status changed",
		"booking_code", updated.Code,
		"payment_status", updated.PaymentStatus,
		"status", updated.Status)

	if status == domain.BookingConfirmed {
		return updated, nil
	}

	if err := l.releaseSeats(ctx, updated); err != nil {
		return nil, err
	}

	return updated, nil
}

func (l *Ledger) releaseSeats(ctx context.Context, booking *domain.Booking) error {
	seats := booking.SeatNumbers()
	if len(seats) == 0 {
		return nil
	}

	err := l.seats.Release(context.WithoutCancel(ctx), booking.ShowtimeID, seats)
	if err != nil {
		l.logger.Error("booking closed but seats are still sold, manual reconciliation required",
			"booking_code", booking.Code,
			"showtime_id", booking.ShowtimeID,
			"seats", seats,
			"error", err)

		return domain.NewInconsistencyError("booking was closed but its seats could not be released", err)
	}

	return nil
}

// StalePending returns pending-payment bookings created before the cutoff whose payment
// method expires when unpaid.
func (l *Ledger) StalePending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Booking, error) {
	bookings, err := l.repo.ListStalePending(ctx, createdBefore, limit)
	if err != nil {
		return nil, domain.NewPersistenceError("list pending bookings", err)
	}

	stale := bookings[:0]
	for _, b := range bookings {
		if b.PaymentMethod.ExpiresUnpaid() {
			stale = append(stale, b)
		}
	}

	return stale, nil
}
