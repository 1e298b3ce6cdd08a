package mocks

import (
	"context"

	"github.com/metinatakli/cinema-booking-core/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockComboRepo struct {
	mock.Mock
	domain.ComboRepository
}

func (m *MockComboRepo) GetByID(ctx context.Context, id int) (*domain.Combo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Combo), args.Error(1)
}

func (m *MockComboRepo) ListActive(ctx context.Context) ([]domain.Combo, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Combo), args.Error(1)
}
