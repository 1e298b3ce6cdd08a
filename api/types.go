// Package api holds the JSON request and response bodies of the booking HTTP API.
package api

import (
	"encoding/json"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"
)

type ErrorResponse struct {
	Message   string    `json:"message"`
	RequestId string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
}

// ConflictErrorResponse lists the seats that made a hold or a booking fail.
type ConflictErrorResponse struct {
	Message   string    `json:"message"`
	RequestId string    `json:"requestId"`
	Timestamp time.Time `json:"timestamp"`
	Seats     []string  `json:"seats"`
	Retryable bool      `json:"retryable"`
}

type ValidationError struct {
	Field string `json:"field"`
	Issue string `json:"issue"`
}

type ValidationErrorResponse struct {
	Message          string            `json:"message"`
	RequestId        string            `json:"requestId"`
	Timestamp        time.Time         `json:"timestamp"`
	ValidationErrors []ValidationError `json:"validationErrors"`
}

type SystemInfo struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
}

type HealthcheckResponse struct {
	Status     string     `json:"status"`
	SystemInfo SystemInfo `json:"systemInfo"`
}

type Metadata struct {
	CurrentPage  int `json:"currentPage"`
	FirstPage    int `json:"firstPage"`
	LastPage     int `json:"lastPage"`
	PageSize     int `json:"pageSize"`
	TotalRecords int `json:"totalRecords"`
}

type HoldRequest struct {
	SeatNumbers []string `json:"seatNumbers" validate:"required,min=1,max=10,unique,dive,seatnumber"`
	TtlSeconds  *int     `json:"ttlSeconds,omitempty" validate:"omitempty,min=1,max=86400"`
}

type HoldResponse struct {
	LeaseId     string    `json:"leaseId"`
	ShowtimeId  int       `json:"showtimeId"`
	SeatNumbers []string  `json:"seatNumbers"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

// ActiveHold is a live lease as seen by someone browsing the showtime. LeaseId is only
// filled in for the viewer's own holds.
type ActiveHold struct {
	LeaseId     *string   `json:"leaseId,omitempty"`
	SeatNumbers []string  `json:"seatNumbers"`
	ExpiresAt   time.Time `json:"expiresAt"`
	Mine        bool      `json:"mine"`
}

type ActiveHoldsResponse struct {
	ShowtimeId int          `json:"showtimeId"`
	Holds      []ActiveHold `json:"holds"`
}

type Seat struct {
	Number          string          `json:"number"`
	Row             string          `json:"row"`
	Type            string          `json:"type"`
	Price           decimal.Decimal `json:"price"`
	Status          string          `json:"status"`
	IsLockedByOther bool            `json:"isLockedByOther"`
}

type SeatsResponse struct {
	ShowtimeId     int       `json:"showtimeId"`
	MovieTitle     string    `json:"movieTitle"`
	TheaterId      int       `json:"theaterId"`
	TheaterName    string    `json:"theaterName"`
	HallName       string    `json:"hallName"`
	StartsAt       time.Time `json:"startsAt"`
	AvailableSeats int       `json:"availableSeats"`
	Seats          []Seat    `json:"seats"`
}

type ComboItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

type Combo struct {
	Id    int             `json:"id"`
	Name  string          `json:"name"`
	Items []ComboItem     `json:"items"`
	Price decimal.Decimal `json:"price"`
}

type CombosResponse struct {
	Combos []Combo `json:"combos"`
}

type Contact struct {
	Name  string              `json:"name" validate:"required,max=100"`
	Email openapi_types.Email `json:"email" validate:"required,email"`
	Phone string              `json:"phone" validate:"required,min=8,max=20"`
}

// BookingRequest confirms either a lease by id or the caller's hold on the given
// seats. Combos accepts both {"<comboId>": quantity} and [{"comboId", "quantity"}].
type BookingRequest struct {
	LeaseId       *string          `json:"leaseId,omitempty" validate:"required_without=SeatNumbers,omitempty,uuid"`
	ShowtimeId    *int             `json:"showtimeId,omitempty" validate:"required_with=SeatNumbers,omitempty,min=1"`
	SeatNumbers   []string         `json:"seatNumbers,omitempty" validate:"omitempty,max=10,unique,dive,seatnumber"`
	Combos        json.RawMessage  `json:"combos,omitempty"`
	ExpectedTotal *decimal.Decimal `json:"expectedTotal,omitempty"`
	PaymentMethod string           `json:"paymentMethod" validate:"required,payment_method"`
	PaymentStatus *string          `json:"paymentStatus,omitempty" validate:"omitempty,oneof=pending paid"`
	Contact       Contact          `json:"contact"`
}

type BookingSeat struct {
	Number string          `json:"number"`
	Type   string          `json:"type"`
	Price  decimal.Decimal `json:"price"`
}

type BookingCombo struct {
	ComboId   int             `json:"comboId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type BookingResponse struct {
	BookingCode   string          `json:"bookingCode"`
	ShowtimeId    int             `json:"showtimeId"`
	MovieTitle    string          `json:"movieTitle"`
	TheaterName   string          `json:"theaterName"`
	HallName      string          `json:"hallName"`
	StartsAt      time.Time       `json:"startsAt"`
	Seats         []BookingSeat   `json:"seats"`
	Combos        []BookingCombo  `json:"combos"`
	Total         decimal.Decimal `json:"total"`
	PaymentMethod string          `json:"paymentMethod"`
	PaymentStatus string          `json:"paymentStatus"`
	Status        string          `json:"status"`
	Contact       Contact         `json:"contact"`
	CreatedAt     time.Time       `json:"createdAt"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	CancelledAt   *time.Time      `json:"cancelledAt,omitempty"`
	ExpiredAt     *time.Time      `json:"expiredAt,omitempty"`
}

type BookingsResponse struct {
	Bookings []BookingResponse `json:"bookings"`
	Metadata Metadata          `json:"metadata"`
}

// PaymentOutcomeRequest is reported by the payment collaborator once a pending
// booking is settled.
type PaymentOutcomeRequest struct {
	Status string `json:"status" validate:"required,payment_outcome"`
}

type TheaterBooking struct {
	BookingId   int       `json:"bookingId"`
	BookingCode string    `json:"bookingCode"`
	ShowtimeId  int       `json:"showtimeId"`
	CreatedAt   time.Time `json:"createdAt"`
}

type TheaterBookingsResponse struct {
	TheaterId int              `json:"theaterId"`
	Bookings  []TheaterBooking `json:"bookings"`
}
