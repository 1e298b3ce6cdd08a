package seatlock

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/metinatakli/cinema-booking-core/internal/clock"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
)

// MemoryStore keeps locks in process. Every lock gets a timer that evicts it at
// expiresAt; reads also drop expired locks they come across.
type MemoryStore struct {
	mu     sync.Mutex
	clock  clock.Clock
	locks  map[string]*entry
	seats  map[int]map[string]string
	closed bool
}

type entry struct {
	lock  domain.SeatLock
	timer *time.Timer
}

func NewMemoryStore(c clock.Clock) *MemoryStore {
	if c == nil {
		c = clock.NewSystem()
	}

	return &MemoryStore{
		clock: c,
		locks: make(map[string]*entry),
		seats: make(map[int]map[string]string),
	}
}

func (s *MemoryStore) Insert(_ context.Context, lock domain.SeatLock) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.ErrStoreClosed
	}

	now := s.clock.Now()

	conflicts := s.conflictsLocked(lock.ShowtimeID, lock.SeatNumbers, now)
	if len(conflicts) > 0 {
		return conflicts, nil
	}

	lock.Active = true
	lock.SeatNumbers = append([]string(nil), lock.SeatNumbers...)

	e := &entry{lock: lock}
	s.locks[lock.ID] = e

	bySeat, ok := s.seats[lock.ShowtimeID]
	if !ok {
		bySeat = make(map[string]string)
		s.seats[lock.ShowtimeID] = bySeat
	}
	for _, n := range lock.SeatNumbers {
		bySeat[n] = lock.ID
	}

	id := lock.ID
	e.timer = time.AfterFunc(lock.ExpiresAt.Sub(now), func() {
		s.evict(id)
	})

	return nil, nil
}

func (s *MemoryStore) Conflicts(_ context.Context, showtimeID int, numbers []string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.ErrStoreClosed
	}

	return s.conflictsLocked(showtimeID, numbers, s.clock.Now()), nil
}

func (s *MemoryStore) conflictsLocked(showtimeID int, numbers []string, now time.Time) []string {
	bySeat := s.seats[showtimeID]

	var conflicts []string
	for _, n := range numbers {
		id, ok := bySeat[n]
		if !ok {
			continue
		}

		if e, ok := s.locks[id]; ok && e.lock.LiveAt(now) {
			conflicts = append(conflicts, n)
			continue
		}

		s.deactivateLocked(id)
	}

	return conflicts
}

func (s *MemoryStore) Get(_ context.Context, id string) (*domain.SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.ErrStoreClosed
	}

	e, ok := s.locks[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	if !e.lock.LiveAt(s.clock.Now()) {
		s.deactivateLocked(id)
		return nil, domain.ErrRecordNotFound
	}

	lock := e.lock
	lock.SeatNumbers = append([]string(nil), e.lock.SeatNumbers...)

	return &lock, nil
}

func (s *MemoryStore) Deactivate(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return false, domain.ErrStoreClosed
	}

	return s.deactivateLocked(id), nil
}

func (s *MemoryStore) ListActive(_ context.Context, showtimeID int) ([]domain.SeatLock, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, domain.ErrStoreClosed
	}

	now := s.clock.Now()

	seen := make(map[string]struct{})
	var locks []domain.SeatLock

	for _, id := range s.seats[showtimeID] {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}

		e, ok := s.locks[id]
		if !ok {
			continue
		}

		if !e.lock.LiveAt(now) {
			s.deactivateLocked(id)
			continue
		}

		lock := e.lock
		lock.SeatNumbers = append([]string(nil), e.lock.SeatNumbers...)
		locks = append(locks, lock)
	}

	sort.Slice(locks, func(i, j int) bool {
		return locks[i].CreatedAt.Before(locks[j].CreatedAt)
	})

	return locks, nil
}

// Close stops every pending eviction and empties the table.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	for _, e := range s.locks {
		e.timer.Stop()
	}

	s.locks = make(map[string]*entry)
	s.seats = make(map[int]map[string]string)
	s.closed = true

	return nil
}

// Len returns the number of locks still in the table.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.locks)
}

func (s *MemoryStore) evict(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	s.deactivateLocked(id)
}

func (s *MemoryStore) deactivateLocked(id string) bool {
	e, ok := s.locks[id]
	if !ok {
		return false
	}

	if e.timer != nil {
		e.timer.Stop()
	}

	if bySeat, ok := s.seats[e.lock.ShowtimeID]; ok {
		for _, n := range e.lock.SeatNumbers {
			if bySeat[n] == id {
				delete(bySeat, n)
			}
		}

		if len(bySeat) == 0 {
			delete(s.seats, e.lock.ShowtimeID)
		}
	}

	delete(s.locks, id)

	return true
}
