package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
)

// PostgresVenueHistory appends confirmed bookings to the per-theater history used for
// fast listing by venue.
type PostgresVenueHistory struct {
	db *pgxpool.Pool
}

func NewPostgresVenueHistory(db *pgxpool.Pool) *PostgresVenueHistory {
	return &PostgresVenueHistory{
		db: db,
	}
}

func (p *PostgresVenueHistory) Record(ctx context.Context, booking domain.Booking) error {
	query := `
		INSERT INTO theater_booking_refs (theater_id, booking_id, booking_code, showtime_id, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT DO NOTHING
	`

	_, err := p.db.Exec(
		ctx,
		query,
		booking.TheaterID,
		booking.ID,
		booking.Code,
		booking.ShowtimeID,
		booking.CreatedAt)

	return err
}

func (p *PostgresVenueHistory) ListByTheater(ctx context.Context, theaterID, limit int) ([]domain.BookingRef, error) {
	query := `
		SELECT booking_id, booking_code, theater_id, showtime_id, created_at
		FROM theater_booking_refs
		WHERE theater_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := p.db.Query(ctx, query, theaterID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make([]domain.BookingRef, 0)

	for rows.Next() {
		var ref domain.BookingRef

		err = rows.Scan(&ref.BookingID, &ref.Code, &ref.TheaterID, &ref.ShowtimeID, &ref.CreatedAt)
		if err != nil {
			return nil, err
		}

		refs = append(refs, ref)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return refs, nil
}
