package seatlock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/metinatakli/cinema-booking-core/internal/clock"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
	"github.com/redis/go-redis/v9"
)

// Sets every seat key and the lease body only if no seat key exists yet.
// Returns the 1-based indexes of the seat keys that were already taken.
var insertLockScript = redis.NewScript(`
	-- KEYS = seat lock keys..., lease key, showtime lease set key
	-- ARGV = [leaseID, ttlMillis, leaseJSON]

	local seatCount = #KEYS - 2
	local taken = {}

	for i=1, seatCount do
		if redis.call("EXISTS", KEYS[i]) == 1 then
			table.insert(taken, i)
		end
	end

	if #taken > 0 then
		return taken
	end

	for i=1, seatCount do
		redis.call("SET", KEYS[i], ARGV[1], "PX", ARGV[2])
	end

	redis.call("SET", KEYS[seatCount + 1], ARGV[3], "PX", ARGV[2])
	redis.call("SADD", KEYS[seatCount + 2], ARGV[1])

	return taken
`)

// Deletes the lease and only those seat keys that still point at it.
var deactivateLockScript = redis.NewScript(`
	-- KEYS = [lease key, showtime lease set key]
	-- ARGV = [leaseID, seat key prefix]

	local raw = redis.call("GET", KEYS[1])
	if not raw then
		redis.call("SREM", KEYS[2], ARGV[1])
		return 0
	end

	local lease = cjson.decode(raw)
	for _, seat in ipairs(lease.seatNumbers) do
		local seatKey = ARGV[2] .. seat
		if redis.call("GET", seatKey) == ARGV[1] then
			redis.call("DEL", seatKey)
		end
	end

	redis.call("DEL", KEYS[1])
	redis.call("SREM", KEYS[2], ARGV[1])

	return 1
`)

// Cleans up lease ids whose body has expired and returns the live lease bodies.
var listActiveLocksScript = redis.NewScript(`
	-- KEYS = [showtime lease set key]
	-- ARGV = [lease key prefix]

	local ids = redis.call("SMEMBERS", KEYS[1])
	local live = {}
	local stale = {}

	for _, id in ipairs(ids) do
		local raw = redis.call("GET", ARGV[1] .. id)
		if raw then
			table.insert(live, raw)
		else
			table.insert(stale, id)
		end
	end

	if #stale > 0 then
		redis.call("SREM", KEYS[1], unpack(stale))
	end

	return live
`)

// RedisStore shares the lock table between instances. Redis key expiry evicts
// leases; reads still compare expiresAt against the clock.
type RedisStore struct {
	client redis.UniversalClient
	clock  clock.Clock
}

type leaseRecord struct {
	ID          string    `json:"id"`
	ShowtimeID  int       `json:"showtimeId"`
	SeatNumbers []string  `json:"seatNumbers"`
	HolderID    string    `json:"holderId"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
}

func NewRedisStore(client redis.UniversalClient, c clock.Clock) *RedisStore {
	if c == nil {
		c = clock.NewSystem()
	}

	return &RedisStore{
		client: client,
		clock:  c,
	}
}

func (s *RedisStore) Insert(ctx context.Context, lock domain.SeatLock) ([]string, error) {
	ttl := lock.ExpiresAt.Sub(s.clock.Now())
	if ttl <= 0 {
		return nil, fmt.Errorf("lease %s is already expired", lock.ID)
	}

	body, err := json.Marshal(toLeaseRecord(lock))
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(lock.SeatNumbers)+2)
	for _, n := range lock.SeatNumbers {
		keys = append(keys, seatLockKey(lock.ShowtimeID, n))
	}
	keys = append(keys, leaseKey(lock.ID), leaseSetKey(lock.ShowtimeID))

	taken, err := insertLockScript.Run(ctx, s.client, keys, lock.ID, ttl.Milliseconds(), body).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("failed to run insertLockScript: %w", err)
	}

	conflicts := make([]string, 0, len(taken))
	for _, i := range taken {
		conflicts = append(conflicts, lock.SeatNumbers[i-1])
	}

	return conflicts, nil
}

func (s *RedisStore) Conflicts(ctx context.Context, showtimeID int, numbers []string) ([]string, error) {
	if len(numbers) == 0 {
		return nil, nil
	}

	keys := make([]string, len(numbers))
	for i, n := range numbers {
		keys[i] = seatLockKey(showtimeID, n)
	}

	holders, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var conflicts []string
	for i, holder := range holders {
		leaseID, ok := holder.(string)
		if !ok {
			continue
		}

		// the seat key may outlive a lease whose expiresAt has already passed
		if _, err := s.Get(ctx, leaseID); err != nil {
			if errors.Is(err, domain.ErrRecordNotFound) {
				continue
			}
			return nil, err
		}

		conflicts = append(conflicts, numbers[i])
	}

	return conflicts, nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (*domain.SeatLock, error) {
	lock, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if !lock.LiveAt(s.clock.Now()) {
		if _, err := s.deactivate(ctx, lock); err != nil {
			return nil, err
		}
		return nil, domain.ErrRecordNotFound
	}

	return lock, nil
}

func (s *RedisStore) Deactivate(ctx context.Context, id string) (bool, error) {
	lock, err := s.load(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}

	return s.deactivate(ctx, lock)
}

func (s *RedisStore) ListActive(ctx context.Context, showtimeID int) ([]domain.SeatLock, error) {
	bodies, err := listActiveLocksScript.Run(ctx, s.client, []string{leaseSetKey(showtimeID)}, leaseKeyPrefix).StringSlice()
	if err != nil {
		return nil, fmt.Errorf("failed to run listActiveLocksScript: %w", err)
	}

	now := s.clock.Now()
	locks := make([]domain.SeatLock, 0, len(bodies))

	for _, body := range bodies {
		var rec leaseRecord
		if err := json.Unmarshal([]byte(body), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal lease: %w", err)
		}

		lock := rec.toSeatLock()
		if !lock.LiveAt(now) {
			if _, err := s.deactivate(ctx, &lock); err != nil {
				return nil, err
			}
			continue
		}

		locks = append(locks, lock)
	}

	return locks, nil
}

// Close is a no-op; the client belongs to the caller.
func (s *RedisStore) Close() error {
	return nil
}

func (s *RedisStore) load(ctx context.Context, id string) (*domain.SeatLock, error) {
	body, err := s.client.Get(ctx, leaseKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}

	var rec leaseRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal lease %s: %w", id, err)
	}

	lock := rec.toSeatLock()

	return &lock, nil
}

func (s *RedisStore) deactivate(ctx context.Context, lock *domain.SeatLock) (bool, error) {
	keys := []string{leaseKey(lock.ID), leaseSetKey(lock.ShowtimeID)}

	n, err := deactivateLockScript.Run(ctx, s.client, keys, lock.ID, seatLockKeyPrefix(lock.ShowtimeID)).Int()
	if err != nil {
		return false, fmt.Errorf("failed to run deactivateLockScript: %w", err)
	}

	return n == 1, nil
}

func toLeaseRecord(lock domain.SeatLock) leaseRecord {
	return leaseRecord{
		ID:          lock.ID,
		ShowtimeID:  lock.ShowtimeID,
		SeatNumbers: lock.SeatNumbers,
		HolderID:    lock.HolderID,
		CreatedAt:   lock.CreatedAt,
		ExpiresAt:   lock.ExpiresAt,
	}
}

func (r leaseRecord) toSeatLock() domain.SeatLock {
	return domain.SeatLock{
		ID:          r.ID,
		ShowtimeID:  r.ShowtimeID,
		SeatNumbers: r.SeatNumbers,
		HolderID:    r.HolderID,
		CreatedAt:   r.CreatedAt,
		ExpiresAt:   r.ExpiresAt,
		Active:      true,
	}
}

const leaseKeyPrefix = "lease:"

func leaseKey(leaseID string) string {
	return leaseKeyPrefix + leaseID
}

func seatLockKeyPrefix(showtimeID int) string {
	return fmt.Sprintf("seat_lock:%d:", showtimeID)
}

func seatLockKey(showtimeID int, seatNumber string) string {
	return seatLockKeyPrefix(showtimeID) + seatNumber
}

func leaseSetKey(showtimeID int) string {
	return fmt.Sprintf("seat_locks:%d", showtimeID)
}
