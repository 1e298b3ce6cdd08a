package app

import (
	"net/http"

	"github.com/metinatakli/cinema-booking-core/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metrics struct {
	registry *prometheus.Registry

	holds         *prometheus.CounterVec
	confirmations *prometheus.CounterVec
	transitions   *prometheus.CounterVec
	heldSeats     prometheus.Counter
	soldSeats     prometheus.Counter
}

// newMetrics uses its own registry so several applications can live in one process,
// as they do in tests.
func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	factory := promauto.With(reg)

	return &metrics{
		registry: reg,
		holds: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "seat_holds_total",
			Help: "Seat hold attempts by outcome.",
		}, []string{"outcome"}),
		confirmations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_confirmations_total",
			Help: "Booking confirmations by outcome.",
		}, []string{"outcome"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Booking status changes by target status.",
		}, []string{"status"}),
		heldSeats: factory.NewCounter(prometheus.CounterOpts{
			Name: "seats_held_total",
			Help: "Seats placed on hold.",
		}),
		soldSeats: factory.NewCounter(prometheus.CounterOpts{
			Name: "seats_sold_total",
			Help: "Seats sold through confirmed bookings.",
		}),
	}
}

func (m *metrics) handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// outcome labels an operation result by the kind of error it failed with.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}

	if kind := domain.KindOf(err); kind != "" {
		return string(kind)
	}

	return "error"
}
