package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
	BookingExpired   BookingStatus = "expired"
)

func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
	return s == BookingConfirmed && (next == BookingCancelled || next == BookingExpired)
}

type Booking struct {
	ID            int
	Code          string
	UserID        int
	ShowtimeID    int
	TheaterID     int
	MovieTitle    string
	TheaterName   string
	HallName      string
	StartsAt      time.Time
	Seats         []BookingSeat
	Combos        []BookingCombo
	Total         decimal.Decimal
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	Status        BookingStatus
	Contact       Contact
	CreatedAt     time.Time
	UpdatedAt     time.Time
	PaidAt        *time.Time
	CancelledAt   *time.Time
	ExpiredAt     *time.Time
}

// BookingSeat is the price snapshot of one seat taken at confirmation time.
type BookingSeat struct {
	Number string
	Type   SeatType
	Price  decimal.Decimal
}

type BookingCombo struct {
	ComboID   int
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

type Contact struct {
	Name  string
	Email string
	Phone string
}

func (b *Booking) SeatNumbers() []string {
	numbers := make([]string, len(b.Seats))
	for i, s := range b.Seats {
		numbers[i] = s.Number
	}

	return numbers
}

// ComputeTotal sums seat prices and combo unit prices times quantity.
func ComputeTotal(seats []BookingSeat, combos []BookingCombo) decimal.Decimal {
	total := decimal.Zero

	for _, s := range seats {
		total = total.Add(s.Price)
	}

	for _, c := range combos {
		total = total.Add(c.UnitPrice.Mul(decimal.NewFromInt(int64(c.Quantity))))
	}

	return total
}

// StatusChange is a compare-and-set on both statuses of a booking. The change is only
// applied while the stored statuses still equal the From values.
type StatusChange struct {
	FromPayment PaymentStatus
	FromStatus  BookingStatus
	Payment     PaymentStatus
	Status      BookingStatus
	At          time.Time
}

type BookingRepository interface {
	Create(ctx context.Context, booking *Booking) error
	GetByCode(ctx context.Context, code string) (*Booking, error)
	ListByUser(ctx context.Context, userID int, pagination Pagination) ([]Booking, *Metadata, error)
	ListByShowtime(ctx context.Context, showtimeID int, pagination Pagination) ([]Booking, *Metadata, error)
	UpdateStatus(ctx context.Context, code string, change StatusChange) (*Booking, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]Booking, error)
}
