// Package booking turns a seat hold into a durable, priced booking.
package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/metinatakli/cinema-booking-core/internal/clock"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	maxCodeAttempts       = 5
	DefaultHistoryTimeout = 2 * time.Second
)

type SeatLocks interface {
	Lookup(ctx context.Context, leaseID string) (domain.SeatLock, error)
	FindHeld(ctx context.Context, showtimeID int, holderID string, numbers []string) (domain.SeatLock, error)
	Exclusive(ctx context.Context, showtimeID int, fn func(ctx context.Context) error) error
	Consume(ctx context.Context, leaseID string) error
}

type SeatMap interface {
	Inventory(ctx context.Context, showtimeID int) (*domain.ShowtimeSeats, error)
	CommitSale(ctx context.Context, showtimeID int, seatNumbers []string) error
	Release(ctx context.Context, showtimeID int, seatNumbers []string) error
}

type ComboResolver interface {
	ResolveAll(ctx context.Context, selections []domain.ComboSelection) ([]domain.ComboLine, error)
}

type Ledger interface {
	Record(ctx context.Context, booking *domain.Booking) error
}

type Coordinator struct {
	locks         SeatLocks
	seats         SeatMap
	combos        ComboResolver
	ledger        Ledger
	history       []domain.HistoryRecorder
	historyWait   time.Duration
	newCode       CodeGenerator
	clock         clock.Clock
	logger        *slog.Logger
	requireHolder bool
}

type Option func(*Coordinator)

// WithHolderCheck controls whether only the holder of a lease may confirm it.
func WithHolderCheck(enabled bool) Option {
	return func(c *Coordinator) { c.requireHolder = enabled }
}

// WithHistory adds recorders that are told about every confirmed booking.
func WithHistory(recorders ...domain.HistoryRecorder) Option {
	return func(c *Coordinator) { c.history = append(c.history, recorders...) }
}

// WithHistoryTimeout bounds how long Confirm waits for the history recorders. Recorders
// still running after that keep going in the background with the same deadline.
func WithHistoryTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.historyWait = d
		}
	}
}

func WithCodeGenerator(gen CodeGenerator) Option {
	return func(c *Coordinator) { c.newCode = gen }
}

func WithClock(cl clock.Clock) Option {
	return func(c *Coordinator) { c.clock = cl }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = l }
}

func NewCoordinator(locks SeatLocks, seats SeatMap, combos ComboResolver, ledger Ledger, opts ...Option) *Coordinator {
	c := &Coordinator{
		locks:         locks,
		seats:         seats,
		combos:        combos,
		ledger:        ledger,
		historyWait:   DefaultHistoryTimeout,
		newCode:       NewCode,
		clock:         clock.NewSystem(),
		logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		requireHolder: true,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// ConfirmRequest identifies the seats to buy either by lease ID or by showtime and
// seat numbers held by the caller.
type ConfirmRequest struct {
	Identity      domain.Identity
	LeaseID       string
	ShowtimeID    int
	SeatNumbers   []string
	Combos        []domain.ComboSelection
	ExpectedTotal *decimal.Decimal
	PaymentMethod domain.PaymentMethod
	PaymentStatus domain.PaymentStatus
	Contact       domain.Contact
}

func (r ConfirmRequest) validate() error {
	if !r.PaymentMethod.Valid() {
		return domain.NewValidationError("unsupported payment method %q", r.PaymentMethod)
	}

	switch r.PaymentStatus {
	case "", domain.PaymentStatusPending, domain.PaymentStatusPaid:
	default:
		return domain.NewValidationError("payment status must be pending or paid")
	}

	if r.LeaseID == "" && (r.ShowtimeID < 1 || len(r.SeatNumbers) == 0) {
		return domain.NewValidationError("either a lease ID or a showtime with seat numbers is required")
	}

	seen := make(map[string]struct{}, len(r.SeatNumbers))
	for _, n := range r.SeatNumbers {
		if _, dup := seen[n]; dup {
			return domain.NewValidationError("duplicate seat number %s", n)
		}
		seen[n] = struct{}{}
	}

	for _, sel := range r.Combos {
		if sel.Quantity <= 0 {
			return domain.NewValidationError("quantity of combo %d must be positive", sel.ComboID)
		}
	}

	return nil
}

func (r ConfirmRequest) paymentStatus() domain.PaymentStatus {
	if r.PaymentStatus != "" {
		return r.PaymentStatus
	}

	return r.PaymentMethod.DefaultPaymentStatus()
}

// Confirm validates the hold, prices seats and combos, sells the seats and records the
// booking. Nothing is mutated until every check has passed. If the booking cannot be
// saved the seat sale is rolled back and the lease stays usable.
func (c *Coordinator) Confirm(ctx context.Context, req ConfirmRequest) (*domain.Booking, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	showtimeID := req.ShowtimeID
	if req.LeaseID != "" {
		lock, err := c.locks.Lookup(ctx, req.LeaseID)
		if err != nil {
			return nil, err
		}
		showtimeID = lock.ShowtimeID
	}

	var booking *domain.Booking

	err := c.locks.Exclusive(ctx, showtimeID, func(ctx context.Context) error {
		lock, err := c.resolveLease(ctx, req, showtimeID)
		if err != nil {
			return err
		}

		pending, err := c.price(ctx, req, lock)
		if err != nil {
			return err
		}

		if err := c.seats.CommitSale(ctx, lock.ShowtimeID, lock.SeatNumbers); err != nil {
			return err
		}

		if err := c.persist(ctx, pending); err != nil {
			return c.rollback(ctx, pending, err)
		}

		if err := c.locks.Consume(ctx, lock.ID); err != nil {
			c.logger.Warn("booking saved but seat lock could not be consumed, it will expire",
				"lease_id", lock.ID,
				"booking_code", pending.Code,
				"error", err)
		}

		booking = pending

		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("booking confirmed",
		"booking_code", booking.Code,
		"showtime_id", booking.ShowtimeID,
		"seats", booking.SeatNumbers(),
		"total", booking.Total.String())

	c.recordHistory(ctx, booking)

	return booking, nil
}

// resolveLease re-reads the lease inside the critical section so expiry and release
// cannot race with the sale.
func (c *Coordinator) resolveLease(ctx context.Context, req ConfirmRequest, showtimeID int) (domain.SeatLock, error) {
	holderID := req.Identity.HolderID()

	var (
		lock domain.SeatLock
		err  error
	)

	if req.LeaseID == "" {
		lock, err = c.locks.FindHeld(ctx, showtimeID, holderID, req.SeatNumbers)
	} else {
		lock, err = c.locks.Lookup(ctx, req.LeaseID)
	}
	if err != nil {
		return domain.SeatLock{}, err
	}

	if c.requireHolder && lock.HolderID != holderID {
		return domain.SeatLock{}, domain.NewAuthorizationError("seat lock belongs to another holder")
	}

	if len(req.SeatNumbers) > 0 && (len(req.SeatNumbers) != len(lock.SeatNumbers) || !lock.Covers(req.SeatNumbers)) {
		return domain.SeatLock{}, domain.NewValidationError("seat numbers do not match the held seats")
	}

	if req.ShowtimeID != 0 && req.ShowtimeID != lock.ShowtimeID {
		return domain.SeatLock{}, domain.NewValidationError("seat lock belongs to another showtime")
	}

	return lock, nil
}

// price builds the unsaved booking from seat and combo snapshots.
func (c *Coordinator) price(ctx context.Context, req ConfirmRequest, lock domain.SeatLock) (*domain.Booking, error) {
	inv, err := c.seats.Inventory(ctx, lock.ShowtimeID)
	if err != nil {
		return nil, err
	}

	if sold := inv.Sold(lock.SeatNumbers); len(sold) > 0 {
		return nil, domain.NewConflictError(sold)
	}

	if unknown := inv.Unknown(lock.SeatNumbers); len(unknown) > 0 {
		return nil, domain.NewValidationError("unknown seat numbers for showtime %d: %v", lock.ShowtimeID, unknown)
	}

	lines, err := c.combos.ResolveAll(ctx, req.Combos)
	if err != nil {
		return nil, err
	}

	idx := inv.Index()
	seats := make([]domain.BookingSeat, 0, len(lock.SeatNumbers))
	for _, n := range lock.SeatNumbers {
		seat := inv.Seats[idx[n]]
		seats = append(seats, domain.BookingSeat{Number: seat.Number, Type: seat.Type, Price: seat.UnitPrice})
	}

	combos := make([]domain.BookingCombo, 0, len(lines))
	for _, line := range lines {
		combos = append(combos, domain.BookingCombo{
			ComboID:   line.ComboID,
			Name:      line.Name,
			UnitPrice: line.UnitPrice,
			Quantity:  line.Quantity,
		})
	}

	total := domain.ComputeTotal(seats, combos)
	if req.ExpectedTotal != nil && !req.ExpectedTotal.Equal(total) {
		return nil, domain.NewValidationError("expected total %s does not match the current total %s",
			req.ExpectedTotal.String(), total.String())
	}

	now := c.clock.Now()
	booking := &domain.Booking{
		UserID:        req.Identity.UserID,
		ShowtimeID:    lock.ShowtimeID,
		TheaterID:     inv.TheaterID,
		MovieTitle:    inv.MovieTitle,
		TheaterName:   inv.TheaterName,
		HallName:      inv.HallName,
		StartsAt:      inv.StartsAt,
		Seats:         seats,
		Combos:        combos,
		Total:         total,
		PaymentMethod: req.PaymentMethod,
		PaymentStatus: req.paymentStatus(),
		Status:        domain.BookingConfirmed,
		Contact:       req.Contact,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if booking.PaymentStatus == domain.PaymentStatusPaid {
		booking.PaidAt = &now
	}

	return booking, nil
}

// persist saves the booking under a fresh code, drawing a new one on collision.
func (c *Coordinator) persist(ctx context.Context, booking *domain.Booking) error {
	var err error

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		booking.Code = c.newCode(booking.CreatedAt)

		err = c.ledger.Record(ctx, booking)
		if !errors.Is(err, domain.ErrDuplicateBookingCode) {
			return err
		}

		c.logger.Warn("booking code collision, retrying", "booking_code", booking.Code, "attempt", attempt)
	}

	return domain.NewPersistenceError("generate a unique booking code", err)
}

// rollback undoes the seat sale after a failed save. It runs even if the request
// context is already cancelled.
func (c *Coordinator) rollback(ctx context.Context, booking *domain.Booking, cause error) error {
	seats := booking.SeatNumbers()

	err := c.seats.Release(context.WithoutCancel(ctx), booking.ShowtimeID, seats)
	if err != nil {
		c.logger.Error("seats sold without a booking, manual reconciliation required",
			"showtime_id", booking.ShowtimeID,
			"seats", seats,
			"persist_error", cause,
			"rollback_error", err)

		return domain.NewInconsistencyError("booking could not be saved and the seat sale could not be undone",
			errors.Join(cause, err))
	}

	c.logger.Warn("booking could not be saved, seat sale rolled back",
		"showtime_id", booking.ShowtimeID,
		"seats", seats,
		"error", cause)

	var derr *domain.Error
	if errors.As(cause, &derr) {
		return cause
	}

	return domain.NewPersistenceError("save booking", cause)
}

func (c *Coordinator) recordHistory(ctx context.Context, booking *domain.Booking) {
	if len(c.history) == 0 {
		return
	}

	// the booking is durable; a client disconnect must not cut the recorders short
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.historyWait)

	snapshot := *booking

	var wg sync.WaitGroup
	for _, recorder := range c.history {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := recorder.Record(ctx, snapshot); err != nil {
				c.logger.Error("failed to record booking history",
					"booking_code", snapshot.Code,
					"error", err)
			}
		}()
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
		cancel()
	}()

	select {
	case <-done:
	case <-time.After(c.historyWait):
		c.logger.Warn("booking history not recorded in time",
			"booking_code", snapshot.Code,
			"timeout", c.historyWait.String())
	}
}
