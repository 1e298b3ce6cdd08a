package app

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/metinatakli/cinema-booking-core/api"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
	"github.com/metinatakli/cinema-booking-core/internal/seatlock"
)

func (app *Application) HoldSeats(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	showtimeID, err := app.readIDParam(r, "showtimeId", "showtime ID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	var input api.HoldRequest

	err = app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	identity := app.contextGetIdentity(r)

	req := seatlock.AcquireRequest{
		ShowtimeID:  showtimeID,
		SeatNumbers: input.SeatNumbers,
		HolderID:    identity.HolderID(),
	}
	if input.TtlSeconds != nil {
		req.TTL = time.Duration(*input.TtlSeconds) * time.Second
	}

	lock, err := app.holds.Acquire(r.Context(), req)
	app.metrics.holds.WithLabelValues(outcome(err)).Inc()
	if err != nil {
		if domain.IsKind(err, domain.KindConflict) {
			logger.Info("seat hold rejected", "showtime_id", showtimeID, "error", err)
		}
		app.domainErrorResponse(w, r, err)
		return
	}

	app.metrics.heldSeats.Add(float64(len(lock.SeatNumbers)))

	resp := api.HoldResponse{
		LeaseId:     lock.ID,
		ShowtimeId:  lock.ShowtimeID,
		SeatNumbers: lock.SeatNumbers,
		ExpiresAt:   lock.ExpiresAt,
	}

	err = app.writeJSON(w, http.StatusCreated, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// ReleaseHold answers 204 whether or not the hold still existed.
func (app *Application) ReleaseHold(w http.ResponseWriter, r *http.Request) {
	leaseID := chi.URLParam(r, "leaseId")
	identity := app.contextGetIdentity(r)

	err := app.holds.Release(r.Context(), leaseID, identity.HolderID())
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListHolds shows which seats are on hold and until when. Lease ids are only shown to
// their holder.
func (app *Application) ListHolds(w http.ResponseWriter, r *http.Request) {
	showtimeID, err := app.readIDParam(r, "showtimeId", "showtime ID")
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	locks, err := app.holds.ActiveLocks(r.Context(), showtimeID)
	if err != nil {
		app.domainErrorResponse(w, r, err)
		return
	}

	var viewer string
	if identity, ok := app.contextLookupIdentity(r); ok {
		viewer = identity.HolderID()
	}

	resp := api.ActiveHoldsResponse{
		ShowtimeId: showtimeID,
		Holds:      make([]api.ActiveHold, 0, len(locks)),
	}

	for _, lock := range locks {
		hold := api.ActiveHold{
			SeatNumbers: lock.SeatNumbers,
			ExpiresAt:   lock.ExpiresAt,
			Mine:        viewer != "" && lock.HolderID == viewer,
		}
		if hold.Mine {
			hold.LeaseId = &lock.ID
		}

		resp.Holds = append(resp.Holds, hold)
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
