package app

import (
	"net/http"

	"github.com/metinatakli/cinema-booking-core/api"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
)

// GetSeats lists every seat of a showtime with its live status. Seats held by the
// caller are reported as held but not locked by another.
func (app *Application) GetSeats(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	showtimeID, err := app.readIDParam(r, "showtimeId", "showtime ID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var viewer string
	if identity, ok := app.contextLookupIdentity(r); ok {
		viewer = identity.HolderID()
	}

	showtimeSeats, err := app.seats.ListSeats(r.Context(), showtimeID, viewer)
	if err != nil {
		if domain.IsKind(err, domain.KindNotFound) {
			logger.Warn("seats requested for unknown showtime", "showtime_id", showtimeID)
		}
		app.domainErrorResponse(w, r, err)
		return
	}

	err = app.writeJSON(w, http.StatusOK, toSeatsResponse(showtimeSeats), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func toSeatsResponse(showtimeSeats *domain.ShowtimeSeats) api.SeatsResponse {
	resp := api.SeatsResponse{
		ShowtimeId:     showtimeSeats.ShowtimeID,
		MovieTitle:     showtimeSeats.MovieTitle,
		TheaterId:      showtimeSeats.TheaterID,
		TheaterName:    showtimeSeats.TheaterName,
		HallName:       showtimeSeats.HallName,
		StartsAt:       showtimeSeats.StartsAt,
		AvailableSeats: showtimeSeats.AvailableSeats,
		Seats:          make([]api.Seat, 0, len(showtimeSeats.Seats)),
	}

	for _, seat := range showtimeSeats.Seats {
		resp.Seats = append(resp.Seats, api.Seat{
			Number:          seat.Number,
			Row:             seat.Row,
			Type:            string(seat.Type),
			Price:           seat.UnitPrice,
			Status:          string(seat.Status),
			IsLockedByOther: seat.LockedByOther,
		})
	}

	return resp
}
