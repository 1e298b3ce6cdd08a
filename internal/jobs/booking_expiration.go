package jobs

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/metinatakli/cinema-booking-core/internal/clock"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
)

const (
	DefaultPendingPaymentTTL  = 15 * time.Minute
	DefaultExpirationInterval = 30 * time.Second
	expirationBatchSize       = 100
)

// BookingExpirer is the part of the ledger the job needs.
type BookingExpirer interface {
	StalePending(ctx context.Context, createdBefore time.Time, limit int) ([]domain.Booking, error)
	Expire(ctx context.Context, code string) (*domain.Booking, error)
}

// BookingExpirationJob expires bookings whose payment stayed pending for too long and
// puts their seats back on sale.
type BookingExpirationJob struct {
	ledger   BookingExpirer
	clock    clock.Clock
	logger   *slog.Logger
	ttl      time.Duration
	interval time.Duration

	stopOnce sync.Once
	done     chan struct{}
	wg       sync.WaitGroup
}

func NewBookingExpirationJob(
	ledger BookingExpirer,
	ttl, interval time.Duration,
	c clock.Clock,
	logger *slog.Logger) *BookingExpirationJob {

	if ttl <= 0 {
		ttl = DefaultPendingPaymentTTL
	}
	if interval <= 0 {
		interval = DefaultExpirationInterval
	}
	if c == nil {
		c = clock.NewSystem()
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &BookingExpirationJob{
		ledger:   ledger,
		clock:    c,
		logger:   logger,
		ttl:      ttl,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start runs one check immediately and then one per interval until Stop is called or
// ctx is done.
func (j *BookingExpirationJob) Start(ctx context.Context) {
	j.logger.Info("starting booking expiration job", "check_interval", j.interval, "timeout", j.ttl)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		j.RunOnce(ctx)

		for {
			select {
			case <-ticker.C:
				j.RunOnce(ctx)
			case <-ctx.Done():
				return
			case <-j.done:
				j.logger.Info("booking expiration job stopped")
				return
			}
		}
	}()
}

// Stop waits for an in-flight check to finish.
func (j *BookingExpirationJob) Stop() {
	j.stopOnce.Do(func() { close(j.done) })
	j.wg.Wait()
}

// RunOnce expires every stale pending booking and returns how many were expired.
func (j *BookingExpirationJob) RunOnce(ctx context.Context) int {
	cutoff := j.clock.Now().Add(-j.ttl)
	expired := 0

	for {
		bookings, err := j.ledger.StalePending(ctx, cutoff, expirationBatchSize)
		if err != nil {
			j.logger.Error("failed to get expired bookings", "error", err)
			return expired
		}

		if len(bookings) == 0 {
			return expired
		}

		progressed := false
		for _, booking := range bookings {
			if _, err := j.ledger.Expire(ctx, booking.Code); err != nil {
				j.logger.Error("failed to expire booking",
					"error", err,
					"booking_code", booking.Code,
					"showtime_id", booking.ShowtimeID,
					"created_at", booking.CreatedAt)
				continue
			}

			progressed = true
			expired++

			j.logger.Info("booking expired",
				"booking_code", booking.Code,
				"showtime_id", booking.ShowtimeID,
				"seats_released", len(booking.Seats))
		}

		// a batch that only failed would be returned again
		if !progressed || len(bookings) < expirationBatchSize {
			return expired
		}
	}
}
