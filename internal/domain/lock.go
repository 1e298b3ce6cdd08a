package domain

import "time"

// SeatLock is a time-bounded exclusive claim on a set of seats of one showtime.
type SeatLock struct {
	ID          string
	ShowtimeID  int
	SeatNumbers []string
	HolderID    string
	CreatedAt   time.Time
	ExpiresAt   time.Time
	Active      bool
}

// LiveAt reports whether the lock still holds its seats at the given instant.
func (l SeatLock) LiveAt(now time.Time) bool {
	return l.Active && now.Before(l.ExpiresAt)
}

// Covers reports whether every seat in numbers belongs to the lock.
func (l SeatLock) Covers(numbers []string) bool {
	held := make(map[string]struct{}, len(l.SeatNumbers))
	for _, n := range l.SeatNumbers {
		held[n] = struct{}{}
	}

	for _, n := range numbers {
		if _, ok := held[n]; !ok {
			return false
		}
	}

	return true
}
