package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
)

type PostgresComboRepository struct {
	db *pgxpool.Pool
}

func NewPostgresComboRepository(db *pgxpool.Pool) *PostgresComboRepository {
	return &PostgresComboRepository{
		db: db,
	}
}

func (p *PostgresComboRepository) GetByID(ctx context.Context, id int) (*domain.Combo, error) {
	query := `
		SELECT id, name, items, unit_price, is_active
		FROM combos
		WHERE id = $1
	`

	var combo domain.Combo

	err := p.db.QueryRow(ctx, query, id).Scan(
		&combo.ID,
		&combo.Name,
		&combo.Items,
		&combo.UnitPrice,
		&combo.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}

	return &combo, nil
}

func (p *PostgresComboRepository) ListActive(ctx context.Context) ([]domain.Combo, error) {
	query := `
		SELECT id, name, items, unit_price, is_active
		FROM combos
		WHERE is_active
		ORDER BY id
	`

	rows, err := p.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	combos := make([]domain.Combo, 0)

	for rows.Next() {
		var combo domain.Combo

		err = rows.Scan(
			&combo.ID,
			&combo.Name,
			&combo.Items,
			&combo.UnitPrice,
			&combo.Active,
		)
		if err != nil {
			return nil, err
		}

		combos = append(combos, combo)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return combos, nil
}
