package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/metinatakli/cinema-booking-core/internal/clock"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
	"github.com/metinatakli/cinema-booking-core/internal/mocks"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
)

type releaseCall struct {
	showtimeID int
	seats      []string
}

type fakeReleaser struct {
	calls []releaseCall
	err   error
}

func (f *fakeReleaser) Release(_ context.Context, showtimeID int, seats []string) error {
	f.calls = append(f.calls, releaseCall{showtimeID: showtimeID, seats: seats})
	return f.err
}

type LedgerTestSuite struct {
	suite.Suite
	repo     *mocks.MockBookingRepo
	releaser *fakeReleaser
	clock    *clock.Manual
	ledger   *Ledger
}

func (s *LedgerTestSuite) SetupTest() {
	s.repo = new(mocks.MockBookingRepo)
	s.releaser = &fakeReleaser{}
	s.clock = clock.NewManual(time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC))
	s.ledger = New(s.repo, s.releaser, WithClock(s.clock))
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func booking(payment domain.PaymentStatus, status domain.BookingStatus) *domain.Booking {
	return &domain.Booking{
		ID:         1,
		Code:       "BK1740852000000ABCDEF",
		UserID:     7,
		ShowtimeID: 3,
		Seats: []domain.BookingSeat{
			{Number: "A1", Type: domain.SeatRegular, Price: decimal.NewFromInt(90000)},
			{Number: "A2", Type: domain.SeatRegular, Price: decimal.NewFromInt(90000)},
		},
		Total:         decimal.NewFromInt(180000),
		PaymentMethod: domain.PaymentMethodCOD,
		PaymentStatus: payment,
		Status:        status,
	}
}

func (s *LedgerTestSuite) TestRecord() {
	tests := []struct {
		name     string
		repoErr  error
		wantErr  error
		wantKind domain.ErrorKind
	}{
		{name: "should persist booking"},
		{name: "should surface duplicate code untouched", repoErr: domain.ErrDuplicateBookingCode, wantErr: domain.ErrDuplicateBookingCode},
		{name: "should wrap other storage errors", repoErr: errors.New("disk full"), wantKind: domain.KindPersistence},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			b := booking(domain.PaymentStatusPaid, domain.BookingConfirmed)
			s.repo.On("Create", mock.Anything, b).Return(tt.repoErr).Once()

			err := s.ledger.Record(context.Background(), b)

			switch {
			case tt.wantErr != nil:
				s.ErrorIs(err, tt.wantErr)
				s.Empty(domain.KindOf(err))
			case tt.wantKind != "":
				s.Equal(tt.wantKind, domain.KindOf(err))
			default:
				s.NoError(err)
			}
		})
	}
}

func (s *LedgerTestSuite) TestByCodeNotFound() {
	s.repo.On("GetByCode", mock.Anything, "BKX").Return(nil, domain.ErrRecordNotFound).Once()

	_, err := s.ledger.ByCode(context.Background(), "BKX")

	s.Equal(domain.KindNotFound, domain.KindOf(err))
}

func (s *LedgerTestSuite) TestTransitions() {
	at := time.Date(2025, 3, 1, 18, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		current      *domain.Booking
		action       func(ctx context.Context, code string) (*domain.Booking, error)
		wantChange   *domain.StatusChange
		updateErr    error
		releaseErr   error
		wantKind     domain.ErrorKind
		wantRelease  bool
		wantRetrying bool
	}{
		{
			name:    "mark paid moves pending to paid and keeps seats sold",
			current: booking(domain.PaymentStatusPending, domain.BookingConfirmed),
			action:  func(ctx context.Context, code string) (*domain.Booking, error) { return s.ledger.MarkPaid(ctx, code) },
			wantChange: &domain.StatusChange{
				FromPayment: domain.PaymentStatusPending,
				FromStatus:  domain.BookingConfirmed,
				Payment:     domain.PaymentStatusPaid,
				Status:      domain.BookingConfirmed,
				At:          at,
			},
		},
		{
			name:     "mark paid twice is rejected",
			current:  booking(domain.PaymentStatusPaid, domain.BookingConfirmed),
			action:   func(ctx context.Context, code string) (*domain.Booking, error) { return s.ledger.MarkPaid(ctx, code) },
			wantKind: domain.KindConflict,
		},
		{
			name:    "mark failed cancels and releases seats",
			current: booking(domain.PaymentStatusPending, domain.BookingConfirmed),
			action:  func(ctx context.Context, code string) (*domain.Booking, error) { return s.ledger.MarkFailed(ctx, code) },
			wantChange: &domain.StatusChange{
				FromPayment: domain.PaymentStatusPending,
				FromStatus:  domain.BookingConfirmed,
				Payment:     domain.PaymentStatusFailed,
				Status:      domain.BookingCancelled,
				At:          at,
			},
			wantRelease: true,
		},
		{
			name:    "cancel of a paid booking releases seats",
			current: booking(domain.PaymentStatusPaid, domain.BookingConfirmed),
			action:  func(ctx context.Context, code string) (*domain.Booking, error) { return s.ledger.Cancel(ctx, code) },
			wantChange: &domain.StatusChange{
				FromPayment: domain.PaymentStatusPaid,
				FromStatus:  domain.BookingConfirmed,
				Payment:     domain.PaymentStatusCancelled,
				Status:      domain.BookingCancelled,
				At:          at,
			},
			wantRelease: true,
		},
		{
			name:     "cancel of a cancelled booking is rejected",
			current:  booking(domain.PaymentStatusCancelled, domain.BookingCancelled),
			action:   func(ctx context.Context, code string) (*domain.Booking, error) { return s.ledger.Cancel(ctx, code) },
			wantKind: domain.KindConflict,
		},
		{
			name:     "expire requires a pending payment",
			current:  booking(domain.PaymentStatusPaid, domain.BookingConfirmed),
			action:   func(ctx context.Context, code string) (*domain.Booking, error) { return s.ledger.Expire(ctx, code) },
			wantKind: domain.KindConflict,
		},
		{
			name:    "expire closes a pending booking",
			current: booking(domain.PaymentStatusPending, domain.BookingConfirmed),
			action:  func(ctx context.Context, code string) (*domain.Booking, error) { return s.ledger.Expire(ctx, code) },
			wantChange: &domain.StatusChange{
				FromPayment: domain.PaymentStatusPending,
				FromStatus:  domain.BookingConfirmed,
				Payment:     domain.PaymentStatusCancelled,
				Status:      domain.BookingExpired,
				At:          at,
			},
			wantRelease: true,
		},
		{
			name:    "concurrent modification is a retryable conflict",
			current: booking(domain.PaymentStatusPending, domain.BookingConfirmed),
			action:  func(ctx context.Context, code string) (*domain.Booking, error) { return s.ledger.Cancel(ctx, code) },
			wantChange: &domain.StatusChange{
				FromPayment: domain.PaymentStatusPending,
				FromStatus:  domain.BookingConfirmed,
				Payment:     domain.PaymentStatusCancelled,
				Status:      domain.BookingCancelled,
				At:          at,
			},
			updateErr:    domain.ErrEditConflict,
			wantKind:     domain.KindConflict,
			wantRetrying: true,
		},
		{
			name:    "failed seat release is an inconsistency",
			current: booking(domain.PaymentStatusPaid, domain.BookingConfirmed),
			action:  func(ctx context.Context, code string) (*domain.Booking, error) { return s.ledger.Cancel(ctx, code) },
			wantChange: &domain.StatusChange{
				FromPayment: domain.PaymentStatusPaid,
				FromStatus:  domain.BookingConfirmed,
				Payment:     domain.PaymentStatusCancelled,
				Status:      domain.BookingCancelled,
				At:          at,
			},
			releaseErr:  errors.New("connection refused"),
			wantKind:    domain.KindInconsistency,
			wantRelease: true,
		},
	}

	for _, tt := range tests {
		s.Run(tt.name, func() {
			s.SetupTest()
			s.releaser.err = tt.releaseErr

			code := tt.current.Code
			s.repo.On("GetByCode", mock.Anything, code).Return(tt.current, nil).Once()

			if tt.wantChange != nil {
				if tt.updateErr != nil {
					s.repo.On("UpdateStatus", mock.Anything, code, *tt.wantChange).Return(nil, tt.updateErr).Once()
				} else {
					updated := *tt.current
					updated.PaymentStatus = tt.wantChange.Payment
					updated.Status = tt.wantChange.Status
					s.repo.On("UpdateStatus", mock.Anything, code, *tt.wantChange).Return(&updated, nil).Once()
				}
			}
			defer s.repo.AssertExpectations(s.T())

			got, err := tt.action(context.Background(), code)

			if tt.wantRelease {
				s.Require().Len(s.releaser.calls, 1)
				s.Equal(3, s.releaser.calls[0].showtimeID)
				s.Equal([]string{"A1", "A2"}, s.releaser.calls[0].seats)
			} else {
				s.Empty(s.releaser.calls)
			}

			if tt.wantKind != "" {
				var derr *domain.Error
				s.Require().ErrorAs(err, &derr)
				s.Equal(tt.wantKind, derr.Kind)
				s.Equal(tt.wantRetrying, derr.Retryable)
				return
			}

			s.Require().NoError(err)
			s.Equal(tt.wantChange.Payment, got.PaymentStatus)
			s.Equal(tt.wantChange.Status, got.Status)
		})
	}
}

func (s *LedgerTestSuite) TestStalePendingKeepsCashOnDelivery() {
	cutoff := s.clock.Now().Add(-15 * time.Minute)

	cash := *booking(domain.PaymentStatusPending, domain.BookingConfirmed)
	card := *booking(domain.PaymentStatusPending, domain.BookingConfirmed)
	card.Code = "BK1740852000000FEDCBA"
	card.PaymentMethod = domain.PaymentMethodVisa

	s.repo.On("ListStalePending", mock.Anything, cutoff, 10).Return([]domain.Booking{cash, card}, nil).Once()
	defer s.repo.AssertExpectations(s.T())

	got, err := s.ledger.StalePending(context.Background(), cutoff, 10)
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(card.Code, got[0].Code)
}
