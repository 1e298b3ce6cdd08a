package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type SeatStatus string

const (
	SeatAvailable SeatStatus = "available"
	SeatHeld      SeatStatus = "held"
	SeatSold      SeatStatus = "sold"
)

type SeatType string

const (
	SeatRegular SeatType = "regular"
	SeatVIP     SeatType = "vip"
)

type ShowtimeSeats struct {
	ShowtimeID     int
	MovieTitle     string
	TheaterID      int
	TheaterName    string
	HallName       string
	StartsAt       time.Time
	AvailableSeats int
	Seats          []Seat
}

type Seat struct {
	Number        string
	Row           string
	Type          SeatType
	UnitPrice     decimal.Decimal
	Status        SeatStatus
	LockedByOther bool
}

// Index maps seat numbers to their position in Seats.
func (s *ShowtimeSeats) Index() map[string]int {
	idx := make(map[string]int, len(s.Seats))
	for i, seat := range s.Seats {
		idx[seat.Number] = i
	}

	return idx
}

// Sold returns the subset of numbers that are already sold, in the given order.
func (s *ShowtimeSeats) Sold(numbers []string) []string {
	idx := s.Index()

	var sold []string
	for _, n := range numbers {
		if i, ok := idx[n]; ok && s.Seats[i].Status == SeatSold {
			sold = append(sold, n)
		}
	}

	return sold
}

// Unknown returns the subset of numbers that do not exist in this showtime.
func (s *ShowtimeSeats) Unknown(numbers []string) []string {
	idx := s.Index()

	var unknown []string
	for _, n := range numbers {
		if _, ok := idx[n]; !ok {
			unknown = append(unknown, n)
		}
	}

	return unknown
}

type SeatRepository interface {
	GetSeatsByShowtime(ctx context.Context, showtimeID int) (*ShowtimeSeats, error)
	// MarkSold sells every seat or none. It returns a conflict *Error listing the seats
	// that were already sold.
	MarkSold(ctx context.Context, showtimeID int, seatNumbers []string) error
	MarkAvailable(ctx context.Context, showtimeID int, seatNumbers []string) error
}
