package app

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/metinatakli/cinema-booking-core/api"
	"github.com/metinatakli/cinema-booking-core/internal/booking"
	"github.com/metinatakli/cinema-booking-core/internal/combo"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
	openapi_types "github.com/oapi-codegen/runtime/types"
	"github.com/shopspring/decimal"
)

const (
	defaultTheaterHistoryLimit = 50
	maxTheaterHistoryLimit     = 200
)

func (app *Application) ConfirmBooking(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	var input api.BookingRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	selections, err := combo.ParseSelections(input.Combos)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	req := booking.ConfirmRequest{
		Identity:      app.contextGetIdentity(r),
		SeatNumbers:   input.SeatNumbers,
		Combos:        selections,
		ExpectedTotal: input.ExpectedTotal,
		PaymentMethod: domain.PaymentMethod(input.PaymentMethod),
		Contact: domain.Contact{
			Name:  input.Contact.Name,
			Email: string(input.Contact.Email),
			Phone: input.Contact.Phone,
		},
	}
	if input.LeaseId != nil {
		req.LeaseID = *input.LeaseId
	}
	if input.ShowtimeId != nil {
		req.ShowtimeID = *input.ShowtimeId
	}
	if input.PaymentStatus != nil {
		req.PaymentStatus = domain.PaymentStatus(*input.PaymentStatus)
	}

	b, err := app.bookings.Confirm(r.Context(), req)
	app.metrics.confirmations.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		logger.Info("booking confirmation failed", "lease_id", req.LeaseID, "error", err)
		app.domainErrorResponse(w, r, err)
		return
	}

	app.metrics.soldSeats.Add(float64(len(b.Seats)))

	headers := http.Header{"Location": []string{"/bookings/" + b.Code}}

	err = app.writeJSON(w, http.StatusCreated, toBookingResponse(b), headers)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetBooking(w http.ResponseWriter, r *http.Request) {
	b, ok := app.visibleBooking(w, r)
	if !ok {
		return
	}

	err := app.writeJSON(w, http.StatusOK, toBookingResponse(b), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) ListMyBookings(w http.ResponseWriter, r *http.Request) {
	identity := app.contextGetIdentity(r)

	bookings, metadata, err := app.ledger.ByUser(r.Context(), identity.UserID, app.readPagination(r))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, toBookingsResponse(bookings, metadata), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) ListShowtimeBookings(w http.ResponseWriter, r *http.Request) {
	showtimeID, err := app.readIDParam(r, "showtimeId", "showtime ID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	bookings, metadata, err := app.ledger.ByShowtime(r.Context(), showtimeID, app.readPagination(r))
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, toBookingsResponse(bookings, metadata), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// ReportPayment settles a pending booking with the outcome reported by the payment
// provider or the box office. Buyers cannot report their own payments, so the route is
// admin only. A failed payment cancels the booking and puts its seats back on sale.
func (app *Application) ReportPayment(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	var input api.PaymentOutcomeRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	b, ok := app.visibleBooking(w, r)
	if !ok {
		return
	}

	settle := app.ledger.MarkPaid
	if domain.PaymentStatus(input.Status) == domain.PaymentStatusFailed {
		settle = app.ledger.MarkFailed
	}

	updated, err := settle(r.Context(), b.Code)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	app.metrics.transitions.WithLabelValues(string(updated.PaymentStatus)).Inc()
	logger.Info("payment outcome recorded",
		"booking_code", updated.Code,
		"payment_status", updated.PaymentStatus,
		"status", updated.Status)

	err = app.writeJSON(w, http.StatusOK, toBookingResponse(updated), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) CancelBooking(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)
	code := chi.URLParam(r, "bookingCode")

	cancelled, err := app.ledger.Cancel(r.Context(), code)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	app.metrics.transitions.WithLabelValues(string(cancelled.Status)).Inc()
	logger.Info("booking cancelled", "booking_code", code, "seats_released", len(cancelled.Seats))

	err = app.writeJSON(w, http.StatusOK, toBookingResponse(cancelled), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) ListTheaterBookings(w http.ResponseWriter, r *http.Request) {
	theaterID, err := app.readIDParam(r, "theaterId", "theater ID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	limit := defaultTheaterHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = min(n, maxTheaterHistoryLimit)
		}
	}

	refs, err := app.venues.ListByTheater(r.Context(), theaterID, limit)
	if err != nil {
		app.serverErrorResponse(w, r, err)
		return
	}

	resp := api.TheaterBookingsResponse{
		TheaterId: theaterID,
		Bookings:  make([]api.TheaterBooking, 0, len(refs)),
	}
	for _, ref := range refs {
		resp.Bookings = append(resp.Bookings, api.TheaterBooking{
			BookingId:   ref.BookingID,
			BookingCode: ref.Code,
			ShowtimeId:  ref.ShowtimeID,
			CreatedAt:   ref.CreatedAt,
		})
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// visibleBooking loads the booking named in the URL if the caller owns it or is an
// admin. Other callers get the same 404 as for a missing code, so codes cannot be
// probed.
func (app *Application) visibleBooking(w http.ResponseWriter, r *http.Request) (*domain.Booking, bool) {
	code := chi.URLParam(r, "bookingCode")
	identity := app.contextGetIdentity(r)

	b, err := app.ledger.ByCode(r.Context(), code)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return nil, false
	}

	if !canView(identity, b) {
		app.contextGetLogger(r).Warn("booking requested by non-owner", "booking_code", code)
		app.domainErrorResponse(w, r, domain.NewNotFoundError("booking"))
		return nil, false
	}

	return b, true
}

func canView(identity domain.Identity, b *domain.Booking) bool {
	return identity.IsAdmin() || b.UserID == identity.UserID
}

func toBookingResponse(b *domain.Booking) api.BookingResponse {
	resp := api.BookingResponse{
		BookingCode:   b.Code,
		ShowtimeId:    b.ShowtimeID,
		MovieTitle:    b.MovieTitle,
		TheaterName:   b.TheaterName,
		HallName:      b.HallName,
		StartsAt:      b.StartsAt,
		Seats:         make([]api.BookingSeat, 0, len(b.Seats)),
		Combos:        make([]api.BookingCombo, 0, len(b.Combos)),
		Total:         b.Total,
		PaymentMethod: string(b.PaymentMethod),
		PaymentStatus: string(b.PaymentStatus),
		Status:        string(b.Status),
		Contact: api.Contact{
			Name:  b.Contact.Name,
			Email: openapi_types.Email(b.Contact.Email),
			Phone: b.Contact.Phone,
		},
		CreatedAt:   b.CreatedAt,
		PaidAt:      b.PaidAt,
		CancelledAt: b.CancelledAt,
		ExpiredAt:   b.ExpiredAt,
	}

	for _, s := range b.Seats {
		resp.Seats = append(resp.Seats, api.BookingSeat{
			Number: s.Number,
			Type:   string(s.Type),
			Price:  s.Price,
		})
	}

	for _, c := range b.Combos {
		resp.Combos = append(resp.Combos, api.BookingCombo{
			ComboId:   c.ComboID,
			Name:      c.Name,
			UnitPrice: c.UnitPrice,
			Quantity:  c.Quantity,
			LineTotal: c.UnitPrice.Mul(decimal.NewFromInt(int64(c.Quantity))),
		})
	}

	return resp
}

func toBookingsResponse(bookings []domain.Booking, metadata *domain.Metadata) api.BookingsResponse {
	resp := api.BookingsResponse{
		Bookings: make([]api.BookingResponse, 0, len(bookings)),
		Metadata: toMetadata(metadata),
	}

	for i := range bookings {
		resp.Bookings = append(resp.Bookings, toBookingResponse(&bookings[i]))
	}

	return resp
}
