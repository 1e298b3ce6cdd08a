// Package seatmap is the authoritative seat inventory of each showtime.
package seatmap

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/metinatakli/cinema-booking-core/internal/domain"
)

// LockLister exposes the live leases of a showtime.
type LockLister interface {
	ActiveLocks(ctx context.Context, showtimeID int) ([]domain.SeatLock, error)
}

type SeatMap struct {
	repo   domain.SeatRepository
	locks  LockLister
	logger *slog.Logger
}

func New(repo domain.SeatRepository, logger *slog.Logger) *SeatMap {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &SeatMap{
		repo:   repo,
		logger: logger,
	}
}

// TrackLocks wires the lease source used by ListSeats. The lock manager depends on
// the seat map, so it can only be attached after both exist.
func (m *SeatMap) TrackLocks(locks LockLister) {
	m.locks = locks
}

// Inventory returns the stored seats of a showtime. Stored status is either
// available or sold.
func (m *SeatMap) Inventory(ctx context.Context, showtimeID int) (*domain.ShowtimeSeats, error) {
	seats, err := m.repo.GetSeatsByShowtime(ctx, showtimeID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("showtime")
		}
		return nil, domain.NewPersistenceError("load seats", err)
	}

	return seats, nil
}

// ListSeats returns the seats of a showtime with live lock presence merged in. A
// sold seat is reported as sold even if a stale lease still covers it.
func (m *SeatMap) ListSeats(ctx context.Context, showtimeID int, viewerID string) (*domain.ShowtimeSeats, error) {
	seats, err := m.Inventory(ctx, showtimeID)
	if err != nil {
		return nil, err
	}

	if m.locks == nil {
		return seats, nil
	}

	locks, err := m.locks.ActiveLocks(ctx, showtimeID)
	if err != nil {
		return nil, err
	}

	holders := make(map[string]string)
	for _, lock := range locks {
		for _, n := range lock.SeatNumbers {
			holders[n] = lock.HolderID
		}
	}

	for i := range seats.Seats {
		seat := &seats.Seats[i]
		if seat.Status == domain.SeatSold {
			continue
		}

		holder, held := holders[seat.Number]
		if !held {
			seat.Status = domain.SeatAvailable
			continue
		}

		seat.Status = domain.SeatHeld
		seat.LockedByOther = holder != viewerID
	}

	return seats, nil
}

// CommitSale sells every seat or none. Seats that are already sold are returned in
// a conflict error and nothing changes.
func (m *SeatMap) CommitSale(ctx context.Context, showtimeID int, seatNumbers []string) error {
	if err := validateNumbers(seatNumbers); err != nil {
		return err
	}

	err := m.repo.MarkSold(ctx, showtimeID, seatNumbers)
	if err != nil {
		var derr *domain.Error
		switch {
		case errors.As(err, &derr):
			if derr.Kind == domain.KindConflict {
				m.logger.Warn("seat sale rejected, seats already sold", "showtime_id", showtimeID, "seats", derr.Seats)
			}
			return err
		case errors.Is(err, domain.ErrRecordNotFound):
			return domain.NewNotFoundError("showtime")
		default:
			return domain.NewPersistenceError("commit seat sale", err)
		}
	}

	m.logger.Info("seats sold", "showtime_id", showtimeID, "seats", seatNumbers)

	return nil
}

// Release returns seats to the available pool. It is the administrative path used by
// cancellations and compensating rollbacks.
func (m *SeatMap) Release(ctx context.Context, showtimeID int, seatNumbers []string) error {
	if err := validateNumbers(seatNumbers); err != nil {
		return err
	}

	err := m.repo.MarkAvailable(ctx, showtimeID, seatNumbers)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.NewNotFoundError("showtime")
		}
		return domain.NewPersistenceError("release seats", err)
	}

	m.logger.Info("seats released", "showtime_id", showtimeID, "seats", seatNumbers)

	return nil
}

func validateNumbers(seatNumbers []string) error {
	if len(seatNumbers) == 0 {
		return domain.NewValidationError("at least one seat number is required")
	}

	seen := make(map[string]struct{}, len(seatNumbers))
	for _, n := range seatNumbers {
		if _, dup := seen[n]; dup {
			return domain.NewValidationError("duplicate seat number %s", n)
		}
		seen[n] = struct{}{}
	}

	return nil
}
