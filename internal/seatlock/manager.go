// Package seatlock issues and revokes time-bounded leases over the seats of a showtime.
package seatlock

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/metinatakli/cinema-booking-core/internal/clock"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
	"github.com/metinatakli/cinema-booking-core/internal/keymutex"
)

const (
	DefaultTTL      = 10 * time.Minute
	DefaultMaxTTL   = 30 * time.Minute
	DefaultLockWait = 2 * time.Second
)

// Inventory is the source of truth for which seats exist and which are sold.
type Inventory interface {
	Inventory(ctx context.Context, showtimeID int) (*domain.ShowtimeSeats, error)
}

type Manager struct {
	store         Store
	inventory     Inventory
	guard         *keymutex.KeyMutex
	clock         clock.Clock
	logger        *slog.Logger
	ttl           time.Duration
	maxTTL        time.Duration
	lockWait      time.Duration
	strictRelease bool
}

type Option func(*Manager)

func WithTTL(d time.Duration) Option {
	return func(m *Manager) { m.ttl = d }
}

func WithMaxTTL(d time.Duration) Option {
	return func(m *Manager) { m.maxTTL = d }
}

func WithLockWait(d time.Duration) Option {
	return func(m *Manager) { m.lockWait = d }
}

// WithStrictRelease makes Release fail with an authorization error when the caller
// is not the holder instead of silently succeeding.
func WithStrictRelease(strict bool) Option {
	return func(m *Manager) { m.strictRelease = strict }
}

func WithClock(c clock.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

func NewManager(store Store, inventory Inventory, guard *keymutex.KeyMutex, opts ...Option) *Manager {
	m := &Manager{
		store:     store,
		inventory: inventory,
		guard:     guard,
		clock:     clock.NewSystem(),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
		ttl:       DefaultTTL,
		maxTTL:    DefaultMaxTTL,
		lockWait:  DefaultLockWait,
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

type AcquireRequest struct {
	ShowtimeID  int
	SeatNumbers []string
	HolderID    string
	TTL         time.Duration
}

func (r AcquireRequest) validate(maxTTL time.Duration) error {
	if r.ShowtimeID < 1 {
		return domain.NewValidationError("showtime ID must be greater than zero")
	}

	if r.HolderID == "" {
		return domain.NewValidationError("holder ID is required")
	}

	if len(r.SeatNumbers) == 0 {
		return domain.NewValidationError("at least one seat number is required")
	}

	seen := make(map[string]struct{}, len(r.SeatNumbers))
	for _, n := range r.SeatNumbers {
		if n == "" {
			return domain.NewValidationError("seat numbers must not be empty")
		}
		if _, dup := seen[n]; dup {
			return domain.NewValidationError("duplicate seat number %s", n)
		}
		seen[n] = struct{}{}
	}

	if r.TTL > maxTTL {
		return domain.NewValidationError("hold time must be at most %s", maxTTL)
	}

	return nil
}

// Acquire holds every requested seat under one new lease, or none of them. On
// conflict the returned error lists every requested seat that is sold or held by
// another lease.
func (m *Manager) Acquire(ctx context.Context, req AcquireRequest) (domain.SeatLock, error) {
	if err := req.validate(m.maxTTL); err != nil {
		return domain.SeatLock{}, err
	}

	ttl := req.TTL
	if ttl <= 0 {
		ttl = m.ttl
	}

	var lock domain.SeatLock

	err := m.Exclusive(ctx, req.ShowtimeID, func(ctx context.Context) error {
		inv, err := m.inventory.Inventory(ctx, req.ShowtimeID)
		if err != nil {
			return err
		}

		if unknown := inv.Unknown(req.SeatNumbers); len(unknown) > 0 {
			return domain.NewValidationError("unknown seat numbers for showtime %d: %v", req.ShowtimeID, unknown)
		}

		sold := inv.Sold(req.SeatNumbers)
		if len(sold) > 0 {
			held, err := m.store.Conflicts(ctx, req.ShowtimeID, req.SeatNumbers)
			if err != nil {
				return domain.NewPersistenceError("check seat locks", err)
			}
			return domain.NewConflictError(orderedUnion(req.SeatNumbers, sold, held))
		}

		now := m.clock.Now()
		candidate := domain.SeatLock{
			ID:          uuid.New().String(),
			ShowtimeID:  req.ShowtimeID,
			SeatNumbers: req.SeatNumbers,
			HolderID:    req.HolderID,
			CreatedAt:   now,
			ExpiresAt:   now.Add(ttl),
			Active:      true,
		}

		held, err := m.store.Insert(ctx, candidate)
		if err != nil {
			return domain.NewPersistenceError("store seat lock", err)
		}

		if len(held) > 0 {
			return domain.NewConflictError(orderedUnion(req.SeatNumbers, held))
		}

		lock = candidate

		return nil
	})
	if err != nil {
		return domain.SeatLock{}, err
	}

	m.logger.Debug("seat lock acquired",
		"lease_id", lock.ID,
		"showtime_id", lock.ShowtimeID,
		"seats", lock.SeatNumbers,
		"expires_at", lock.ExpiresAt)

	return lock, nil
}

// Release frees the lease's seats. Unknown, expired and already released leases are
// acknowledged without error.
func (m *Manager) Release(ctx context.Context, leaseID, holderID string) error {
	lock, err := m.store.Get(ctx, leaseID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil
		}
		return domain.NewPersistenceError("load seat lock", err)
	}

	if lock.HolderID != holderID {
		if m.strictRelease {
			return domain.NewAuthorizationError("seat lock belongs to another holder")
		}

		m.logger.Warn("ignoring release of seat lock held by another holder", "lease_id", leaseID)

		return nil
	}

	return m.Exclusive(ctx, lock.ShowtimeID, func(ctx context.Context) error {
		released, err := m.store.Deactivate(ctx, leaseID)
		if err != nil {
			return domain.NewPersistenceError("release seat lock", err)
		}

		if released {
			m.logger.Debug("seat lock released", "lease_id", leaseID, "showtime_id", lock.ShowtimeID)
		}

		return nil
	})
}

// Lookup returns a live lease or a not-found error.
func (m *Manager) Lookup(ctx context.Context, leaseID string) (domain.SeatLock, error) {
	if leaseID == "" {
		return domain.SeatLock{}, domain.NewValidationError("lease ID is required")
	}

	lock, err := m.store.Get(ctx, leaseID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.SeatLock{}, domain.NewNotFoundError("seat lock")
		}
		return domain.SeatLock{}, domain.NewPersistenceError("load seat lock", err)
	}

	return *lock, nil
}

func (m *Manager) ActiveLocks(ctx context.Context, showtimeID int) ([]domain.SeatLock, error) {
	locks, err := m.store.ListActive(ctx, showtimeID)
	if err != nil {
		return nil, domain.NewPersistenceError("list seat locks", err)
	}

	return locks, nil
}

// FindHeld returns the holder's live lease that covers every seat in numbers.
func (m *Manager) FindHeld(ctx context.Context, showtimeID int, holderID string, numbers []string) (domain.SeatLock, error) {
	locks, err := m.ActiveLocks(ctx, showtimeID)
	if err != nil {
		return domain.SeatLock{}, err
	}

	for _, lock := range locks {
		if lock.HolderID == holderID && lock.Covers(numbers) {
			return lock, nil
		}
	}

	return domain.SeatLock{}, domain.NewNotFoundError("seat lock")
}

// Exclusive runs fn while holding the showtime's critical section. fn must not call
// Acquire or Release for the same showtime.
func (m *Manager) Exclusive(ctx context.Context, showtimeID int, fn func(ctx context.Context) error) error {
	unlock, err := m.guard.Lock(ctx, showtimeID, m.lockWait)
	if err != nil {
		if errors.Is(err, keymutex.ErrTimeout) {
			m.logger.Warn("timed out waiting for showtime lock", "showtime_id", showtimeID, "wait", m.lockWait)
			return domain.NewBusyError(err)
		}
		return err
	}
	defer unlock()

	return fn(ctx)
}

// Consume invalidates a lease that was turned into a booking. It is meant to be
// called from inside Exclusive.
func (m *Manager) Consume(ctx context.Context, leaseID string) error {
	_, err := m.store.Deactivate(ctx, leaseID)
	if err != nil {
		return fmt.Errorf("failed to consume seat lock %s: %w", leaseID, err)
	}

	return nil
}

// Close cancels pending expirations and drops the lock table.
func (m *Manager) Close() error {
	return m.store.Close()
}

// orderedUnion returns the members of sets in the order they appear in order.
func orderedUnion(order []string, sets ...[]string) []string {
	members := make(map[string]struct{})
	for _, set := range sets {
		for _, n := range set {
			members[n] = struct{}{}
		}
	}

	union := make([]string, 0, len(members))
	for _, n := range order {
		if _, ok := members[n]; ok {
			union = append(union, n)
		}
	}

	return union
}
