package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
)

func (app *Application) Routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(app.notFoundResponse)
	r.MethodNotAllowed(app.methodNotAllowedResponse)

	r.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(r)))
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(app.requestLogger)
	r.Use(app.recoverPanic)
	r.Use(app.sessionManager.LoadAndSave)
	r.Use(app.loadIdentity)

	r.Get("/healthcheck", app.GetHealth)
	r.Method(http.MethodGet, "/metrics", app.metrics.handler())

	r.Get("/combos", app.ListCombos)

	r.Route("/showtimes/{showtimeId}", func(r chi.Router) {
		r.Get("/seats", app.GetSeats)
		r.Get("/holds", app.ListHolds)
		r.With(app.requireAuthentication).Post("/holds", app.HoldSeats)
		r.With(app.requireAdmin).Get("/bookings", app.ListShowtimeBookings)
	})

	r.With(app.requireAuthentication).Delete("/holds/{leaseId}", app.ReleaseHold)

	r.Route("/bookings", func(r chi.Router) {
		r.Use(app.requireAuthentication)

		r.Post("/", app.ConfirmBooking)
		r.Get("/{bookingCode}", app.GetBooking)
		r.With(app.requireAdmin).Post("/{bookingCode}/payment", app.ReportPayment)
		r.With(app.requireAdmin).Post("/{bookingCode}/cancel", app.CancelBooking)
	})

	r.With(app.requireAuthentication).Get("/users/me/bookings", app.ListMyBookings)

	r.With(app.requireAdmin).Get("/theaters/{theaterId}/bookings", app.ListTheaterBookings)

	return r
}
