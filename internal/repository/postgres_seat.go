package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
)

type PostgresSeatRepository struct {
	db *pgxpool.Pool
}

func NewPostgresSeatRepository(db *pgxpool.Pool) *PostgresSeatRepository {
	return &PostgresSeatRepository{
		db: db,
	}
}

func (p *PostgresSeatRepository) GetSeatsByShowtime(ctx context.Context, showtimeID int) (*domain.ShowtimeSeats, error) {
	query := `
		SELECT
			sh.id,
			m.title,
			t.id,
			t.name,
			h.name,
			sh.starts_at,
			sh.available_seats
		FROM showtimes sh
		JOIN movies m ON sh.movie_id = m.id
		JOIN halls h ON sh.hall_id = h.id
		JOIN theaters t ON h.theater_id = t.id
		WHERE sh.id = $1
	`

	var showtimeSeats domain.ShowtimeSeats

	err := p.db.QueryRow(ctx, query, showtimeID).Scan(
		&showtimeSeats.ShowtimeID,
		&showtimeSeats.MovieTitle,
		&showtimeSeats.TheaterID,
		&showtimeSeats.TheaterName,
		&showtimeSeats.HallName,
		&showtimeSeats.StartsAt,
		&showtimeSeats.AvailableSeats,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}

	query = `
		SELECT seat_number, seat_row, seat_type, unit_price, status
		FROM showtime_seats
		WHERE showtime_id = $1
		ORDER BY seat_row, length(seat_number), seat_number
	`

	rows, err := p.db.Query(ctx, query, showtimeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seat domain.Seat

		err = rows.Scan(
			&seat.Number,
			&seat.Row,
			&seat.Type,
			&seat.UnitPrice,
			&seat.Status,
		)
		if err != nil {
			return nil, err
		}

		showtimeSeats.Seats = append(showtimeSeats.Seats, seat)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return &showtimeSeats, nil
}

// MarkSold runs check and update under a row lock on the showtime, so concurrent
// sales of the same showtime are serialized even across instances.
func (p *PostgresSeatRepository) MarkSold(ctx context.Context, showtimeID int, seatNumbers []string) error {
	return runInTx(ctx, p.db, func(tx pgx.Tx) error {
		if err := lockShowtime(ctx, tx, showtimeID); err != nil {
			return err
		}

		query := `
			SELECT seat_number
			FROM showtime_seats
			WHERE showtime_id = $1 AND seat_number = ANY($2) AND status = 'sold'
		`

		rows, err := tx.Query(ctx, query, showtimeID, seatNumbers)
		if err != nil {
			return err
		}

		taken, err := pgx.CollectRows(rows, pgx.RowTo[string])
		if err != nil {
			return err
		}

		if len(taken) > 0 {
			return domain.NewConflictError(inRequestOrder(seatNumbers, taken))
		}

		query = `
			UPDATE showtime_seats
			SET status = 'sold', updated_at = NOW()
			WHERE showtime_id = $1 AND seat_number = ANY($2) AND status = 'available'
		`

		tag, err := tx.Exec(ctx, query, showtimeID, seatNumbers)
		if err != nil {
			return err
		}

		if int(tag.RowsAffected()) != len(seatNumbers) {
			return domain.NewValidationError("some seat numbers do not exist for showtime %d", showtimeID)
		}

		query = `
			UPDATE showtimes
			SET available_seats = GREATEST(available_seats - $2, 0)
			WHERE id = $1
		`

		_, err = tx.Exec(ctx, query, showtimeID, len(seatNumbers))

		return err
	})
}

func (p *PostgresSeatRepository) MarkAvailable(ctx context.Context, showtimeID int, seatNumbers []string) error {
	return runInTx(ctx, p.db, func(tx pgx.Tx) error {
		if err := lockShowtime(ctx, tx, showtimeID); err != nil {
			return err
		}

		query := `
			UPDATE showtime_seats
			SET status = 'available', updated_at = NOW()
			WHERE showtime_id = $1 AND seat_number = ANY($2) AND status = 'sold'
		`

		tag, err := tx.Exec(ctx, query, showtimeID, seatNumbers)
		if err != nil {
			return err
		}

		if tag.RowsAffected() == 0 {
			return nil
		}

		query = `
			UPDATE showtimes
			SET available_seats = LEAST(available_seats + $2, total_seats)
			WHERE id = $1
		`

		_, err = tx.Exec(ctx, query, showtimeID, tag.RowsAffected())

		return err
	})
}

func lockShowtime(ctx context.Context, tx pgx.Tx, showtimeID int) error {
	var id int

	err := tx.QueryRow(ctx, `SELECT id FROM showtimes WHERE id = $1 FOR UPDATE`, showtimeID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrRecordNotFound
	}

	return err
}

func inRequestOrder(order, subset []string) []string {
	members := make(map[string]struct{}, len(subset))
	for _, n := range subset {
		members[n] = struct{}{}
	}

	ordered := make([]string, 0, len(subset))
	for _, n := range order {
		if _, ok := members[n]; ok {
			ordered = append(ordered, n)
		}
	}

	return ordered
}
