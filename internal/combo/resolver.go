// Package combo prices concession bundles attached to a booking.
package combo

import (
	"context"
	"errors"

	"github.com/metinatakli/cinema-booking-core/internal/domain"
	"github.com/shopspring/decimal"
)

// Resolver is a stateless lookup of priced combos. The catalog is read-only here.
type Resolver struct {
	repo domain.ComboRepository
}

func NewResolver(repo domain.ComboRepository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve prices quantity units of one combo.
func (r *Resolver) Resolve(ctx context.Context, comboID, quantity int) (domain.ComboLine, error) {
	if quantity <= 0 {
		return domain.ComboLine{}, domain.NewValidationError("quantity of combo %d must be positive", comboID)
	}

	combo, err := r.repo.GetByID(ctx, comboID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return domain.ComboLine{}, domain.NewNotFoundError("combo")
		}
		return domain.ComboLine{}, domain.NewPersistenceError("load combo", err)
	}

	if !combo.Active {
		return domain.ComboLine{}, domain.NewInactiveError("combo")
	}

	return domain.ComboLine{
		ComboID:   combo.ID,
		Name:      combo.Name,
		UnitPrice: combo.UnitPrice,
		Quantity:  quantity,
		LineTotal: combo.UnitPrice.Mul(decimal.NewFromInt(int64(quantity))),
	}, nil
}

// ResolveAll prices every selection in order and stops at the first failure, so a
// single bad combo rejects the whole list.
func (r *Resolver) ResolveAll(ctx context.Context, selections []domain.ComboSelection) ([]domain.ComboLine, error) {
	lines := make([]domain.ComboLine, 0, len(selections))

	for _, sel := range selections {
		line, err := r.Resolve(ctx, sel.ComboID, sel.Quantity)
		if err != nil {
			return nil, err
		}

		lines = append(lines, line)
	}

	return lines, nil
}

// List returns the combos that can currently be ordered.
func (r *Resolver) List(ctx context.Context) ([]domain.Combo, error) {
	combos, err := r.repo.ListActive(ctx)
	if err != nil {
		return nil, domain.NewPersistenceError("list combos", err)
	}

	return combos, nil
}
