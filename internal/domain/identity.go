package domain

import (
	"context"
	"strconv"
	"time"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Identity is the authenticated caller as supplied by the identity service.
type Identity struct {
	UserID int
	Role   Role
}

func (i Identity) HolderID() string {
	return strconv.Itoa(i.UserID)
}

func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// BookingRef is the denormalized row appended to a venue's booking history.
type BookingRef struct {
	BookingID  int
	Code       string
	TheaterID  int
	ShowtimeID int
	CreatedAt  time.Time
}

// HistoryRecorder receives confirmed bookings after they are durable. Failures are
// logged by the caller and never undo the booking.
type HistoryRecorder interface {
	Record(ctx context.Context, booking Booking) error
}
