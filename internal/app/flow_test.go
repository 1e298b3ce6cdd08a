package app

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/metinatakli/cinema-booking-core/api"
	"github.com/metinatakli/cinema-booking-core/internal/booking"
	"github.com/metinatakli/cinema-booking-core/internal/combo"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
	"github.com/metinatakli/cinema-booking-core/internal/ledger"
	"github.com/metinatakli/cinema-booking-core/internal/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// TestHoldConfirmFlow drives a hold, a confirmation and a second attempt on the same
// seats through the real lock manager, seat map and coordinator.
func TestHoldConfirmFlow(t *testing.T) {
	stack := newTestStack()
	defer stack.close()

	comboRepo := new(mocks.MockComboRepo)
	comboRepo.On("GetByID", mock.Anything, 3).Return(&domain.Combo{
		ID:        3,
		Name:      "Popcorn Combo",
		UnitPrice: decimal.NewFromInt(65000),
		Active:    true,
	}, nil)

	bookingRepo := new(mocks.MockBookingRepo)
	bookingRepo.On("Create", mock.Anything, mock.AnythingOfType("*domain.Booking")).
		Run(func(args mock.Arguments) {
			args.Get(1).(*domain.Booking).ID = 1
		}).
		Return(nil).
		Once()

	resolver := combo.NewResolver(comboRepo)
	bookingLedger := ledger.New(bookingRepo, stack.seats, ledger.WithClock(stack.clock))

	app := newTestApplication(func(a *Application) {
		a.holds = stack.locks
		a.seats = stack.seats
		a.combos = resolver
		a.ledger = bookingLedger
		a.bookings = booking.NewCoordinator(stack.locks, stack.seats, resolver, bookingLedger,
			booking.WithClock(stack.clock))
	})

	// hold
	w, r := executeRequest(t, http.MethodPost, "/showtimes/1/holds", api.HoldRequest{SeatNumbers: []string{"A1", "A2"}})
	r = setupTestSession(t, app, r, 1, domain.RoleUser)
	app.Routes().ServeHTTP(w, r)
	require.Equal(t, http.StatusCreated, w.Code)

	var hold api.HoldResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&hold))

	// another user cannot hold the same seats
	w, r = executeRequest(t, http.MethodPost, "/showtimes/1/holds", api.HoldRequest{SeatNumbers: []string{"A2", "A3"}})
	r = setupTestSession(t, app, r, 2, domain.RoleUser)
	app.Routes().ServeHTTP(w, r)
	require.Equal(t, http.StatusConflict, w.Code)

	// another user cannot confirm the hold
	req := validBookingRequest()
	req.LeaseId = &hold.LeaseId

	w, r = executeRequest(t, http.MethodPost, "/bookings", req)
	r = setupTestSession(t, app, r, 2, domain.RoleUser)
	app.Routes().ServeHTTP(w, r)
	require.Equal(t, http.StatusForbidden, w.Code)

	// a stale expected total is rejected and the hold survives
	req.ExpectedTotal = ptr(decimal.NewFromInt(1))

	w, r = executeRequest(t, http.MethodPost, "/bookings", req)
	r = setupTestSession(t, app, r, 1, domain.RoleUser)
	app.Routes().ServeHTTP(w, r)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// the holder confirms
	req.ExpectedTotal = ptr(decimal.NewFromInt(370000))

	w, r = executeRequest(t, http.MethodPost, "/bookings", req)
	r = setupTestSession(t, app, r, 1, domain.RoleUser)
	app.Routes().ServeHTTP(w, r)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var confirmed api.BookingResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&confirmed))
	require.True(t, decimal.NewFromInt(370000).Equal(confirmed.Total))
	require.Equal(t, "paid", confirmed.PaymentStatus)
	require.Len(t, confirmed.Combos, 1)
	require.True(t, decimal.NewFromInt(130000).Equal(confirmed.Combos[0].LineTotal))

	// the lease is spent
	w, r = executeRequest(t, http.MethodPost, "/bookings", req)
	r = setupTestSession(t, app, r, 1, domain.RoleUser)
	app.Routes().ServeHTTP(w, r)
	require.Equal(t, http.StatusNotFound, w.Code)

	// the seats show as sold and no hold remains
	w, r = executeRequest(t, http.MethodGet, "/showtimes/1/seats", nil)
	app.Routes().ServeHTTP(w, r)
	require.Equal(t, http.StatusOK, w.Code)

	var seats api.SeatsResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&seats))

	status := make(map[string]string)
	for _, seat := range seats.Seats {
		status[seat.Number] = seat.Status
	}
	require.Equal(t, "sold", status["A1"])
	require.Equal(t, "sold", status["A2"])
	require.Equal(t, "available", status["A3"])
	require.Equal(t, 3, seats.AvailableSeats)

	holds, err := stack.locks.ActiveLocks(t.Context(), testShowtimeID)
	require.NoError(t, err)
	require.Empty(t, holds)

	bookingRepo.AssertExpectations(t)
}
