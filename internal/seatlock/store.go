package seatlock

import (
	"context"

	"github.com/metinatakli/cinema-booking-core/internal/domain"
)

// Store owns the lock table. Implementations must treat an expired lock as absent on
// every read, even before its scheduled eviction runs.
type Store interface {
	// Insert stores lock only if none of its seats is covered by another live lock.
	// Otherwise nothing is written and the conflicting seat numbers are returned.
	Insert(ctx context.Context, lock domain.SeatLock) ([]string, error)
	// Conflicts returns the seats among numbers covered by a live lock.
	Conflicts(ctx context.Context, showtimeID int, numbers []string) ([]string, error)
	// Get returns domain.ErrRecordNotFound for unknown, released or expired locks.
	Get(ctx context.Context, id string) (*domain.SeatLock, error)
	// Deactivate frees the lock's seats and reports whether this call did it.
	Deactivate(ctx context.Context, id string) (bool, error)
	ListActive(ctx context.Context, showtimeID int) ([]domain.SeatLock, error)
	Close() error
}
