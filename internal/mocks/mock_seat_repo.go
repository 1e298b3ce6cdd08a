package mocks

import (
	"context"
	"sync"

	"github.com/metinatakli/cinema-booking-core/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockSeatRepo struct {
	mock.Mock
	domain.SeatRepository
}

func (m *MockSeatRepo) GetSeatsByShowtime(ctx context.Context, showtimeID int) (*domain.ShowtimeSeats, error) {
	args := m.Called(ctx, showtimeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShowtimeSeats), args.Error(1)
}

func (m *MockSeatRepo) MarkSold(ctx context.Context, showtimeID int, seatNumbers []string) error {
	args := m.Called(ctx, showtimeID, seatNumbers)
	return args.Error(0)
}

func (m *MockSeatRepo) MarkAvailable(ctx context.Context, showtimeID int, seatNumbers []string) error {
	args := m.Called(ctx, showtimeID, seatNumbers)
	return args.Error(0)
}

// InMemorySeatRepo is a thread-safe SeatRepository with the same all-or-nothing
// semantics as the Postgres one.
type InMemorySeatRepo struct {
	mu        sync.Mutex
	showtimes map[int]*domain.ShowtimeSeats
}

func NewInMemorySeatRepo() *InMemorySeatRepo {
	return &InMemorySeatRepo{showtimes: make(map[int]*domain.ShowtimeSeats)}
}

// AddShowtime registers seats priced at price, all available.
func (r *InMemorySeatRepo) AddShowtime(showtimeID int, price decimal.Decimal, numbers ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := &domain.ShowtimeSeats{
		ShowtimeID:     showtimeID,
		MovieTitle:     "Test Movie",
		TheaterID:      1,
		TheaterName:    "Test Theater",
		HallName:       "Hall 1",
		AvailableSeats: len(numbers),
	}

	for _, n := range numbers {
		st.Seats = append(st.Seats, domain.Seat{
			Number:    n,
			Row:       n[:1],
			Type:      domain.SeatRegular,
			UnitPrice: price,
			Status:    domain.SeatAvailable,
		})
	}

	r.showtimes[showtimeID] = st
}

func (r *InMemorySeatRepo) GetSeatsByShowtime(_ context.Context, showtimeID int) (*domain.ShowtimeSeats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.showtimes[showtimeID]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	cp := *st
	cp.Seats = append([]domain.Seat(nil), st.Seats...)

	return &cp, nil
}

func (r *InMemorySeatRepo) MarkSold(_ context.Context, showtimeID int, seatNumbers []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.showtimes[showtimeID]
	if !ok {
		return domain.ErrRecordNotFound
	}

	if sold := st.Sold(seatNumbers); len(sold) > 0 {
		return domain.NewConflictError(sold)
	}

	idx := st.Index()
	for _, n := range seatNumbers {
		if i, ok := idx[n]; ok {
			st.Seats[i].Status = domain.SeatSold
		}
	}

	st.AvailableSeats = max(st.AvailableSeats-len(seatNumbers), 0)

	return nil
}

func (r *InMemorySeatRepo) MarkAvailable(_ context.Context, showtimeID int, seatNumbers []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	st, ok := r.showtimes[showtimeID]
	if !ok {
		return domain.ErrRecordNotFound
	}

	idx := st.Index()
	for _, n := range seatNumbers {
		if i, ok := idx[n]; ok && st.Seats[i].Status == domain.SeatSold {
			st.Seats[i].Status = domain.SeatAvailable
			st.AvailableSeats = min(st.AvailableSeats+1, len(st.Seats))
		}
	}

	return nil
}
