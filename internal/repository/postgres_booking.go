package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/cinema-booking-core/internal/domain"
)

const bookingCodeConstraint = "bookings_booking_code_key"

const bookingColumns = `
	b.id,
	b.booking_code,
	b.user_id,
	b.showtime_id,
	b.theater_id,
	b.movie_title,
	b.theater_name,
	b.hall_name,
	b.starts_at,
	b.total,
	b.payment_method,
	b.payment_status,
	b.status,
	b.contact_name,
	b.contact_email,
	b.contact_phone,
	b.created_at,
	b.updated_at,
	b.paid_at,
	b.cancelled_at,
	b.expired_at
`

type PostgresBookingRepository struct {
	db *pgxpool.Pool
}

func NewPostgresBookingRepository(db *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{
		db: db,
	}
}

func (p *PostgresBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	return runInTx(ctx, p.db, func(tx pgx.Tx) error {
		query := `
			INSERT INTO bookings (
				booking_code, user_id, showtime_id, theater_id, movie_title, theater_name, hall_name,
				starts_at, total, payment_method, payment_status, status,
				contact_name, contact_email, contact_phone, created_at, updated_at, paid_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			RETURNING id
		`

		err := tx.QueryRow(
			ctx,
			query,
			booking.Code,
			booking.UserID,
			booking.ShowtimeID,
			booking.TheaterID,
			booking.MovieTitle,
			booking.TheaterName,
			booking.HallName,
			booking.StartsAt,
			booking.Total,
			booking.PaymentMethod,
			booking.PaymentStatus,
			booking.Status,
			booking.Contact.Name,
			booking.Contact.Email,
			booking.Contact.Phone,
			booking.CreatedAt,
			booking.UpdatedAt,
			booking.PaidAt).Scan(&booking.ID)

		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) &&
				pgErr.Code == pgerrcode.UniqueViolation &&
				pgErr.ConstraintName == bookingCodeConstraint {
				return domain.ErrDuplicateBookingCode
			}

			return err
		}

		batch := &pgx.Batch{}

		for i, seat := range booking.Seats {
			batch.Queue(
				`INSERT INTO booking_seats (booking_id, seat_number, seat_type, price, position)
				VALUES ($1, $2, $3, $4, $5)`,
				booking.ID, seat.Number, string(seat.Type), seat.Price, i)
		}

		for i, combo := range booking.Combos {
			batch.Queue(
				`INSERT INTO booking_combos (booking_id, combo_id, name, unit_price, quantity, position)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				booking.ID, combo.ComboID, combo.Name, combo.UnitPrice, combo.Quantity, i)
		}

		return tx.SendBatch(ctx, batch).Close()
	})
}

func (p *PostgresBookingRepository) GetByCode(ctx context.Context, code string) (*domain.Booking, error) {
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.booking_code = $1`

	booking, err := scanBooking(p.db.QueryRow(ctx, query, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		return nil, err
	}

	bookings := []domain.Booking{*booking}
	if err := p.loadItems(ctx, bookings); err != nil {
		return nil, err
	}

	return &bookings[0], nil
}

func (p *PostgresBookingRepository) ListByUser(
	ctx context.Context,
	userID int,
	pagination domain.Pagination) ([]domain.Booking, *domain.Metadata, error) {

	return p.listPage(ctx, "b.user_id = $1", userID, pagination)
}

func (p *PostgresBookingRepository) ListByShowtime(
	ctx context.Context,
	showtimeID int,
	pagination domain.Pagination) ([]domain.Booking, *domain.Metadata, error) {

	return p.listPage(ctx, "b.showtime_id = $1", showtimeID, pagination)
}

func (p *PostgresBookingRepository) listPage(
	ctx context.Context,
	filter string,
	arg int,
	pagination domain.Pagination) ([]domain.Booking, *domain.Metadata, error) {

	query := `
		SELECT COUNT(*) OVER(), ` + bookingColumns + `
		FROM bookings b
		WHERE ` + filter + `
		ORDER BY b.created_at DESC, b.id DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := p.db.Query(ctx, query, arg, pagination.Limit(), pagination.Offset())
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	totalRecords := 0

	for rows.Next() {
		var booking domain.Booking

		dest := append([]any{&totalRecords}, bookingDest(&booking)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, err
		}

		bookings = append(bookings, booking)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, err
	}

	if err := p.loadItems(ctx, bookings); err != nil {
		return nil, nil, err
	}

	return bookings, domain.NewMetadata(totalRecords, pagination), nil
}

// UpdateStatus applies change only while the stored statuses still match its From
// values. A lost race returns domain.ErrEditConflict.
func (p *PostgresBookingRepository) UpdateStatus(
	ctx context.Context,
	code string,
	change domain.StatusChange) (*domain.Booking, error) {

	query := `
		UPDATE bookings
		SET
			payment_status = $2,
			status = $3,
			updated_at = $4,
			paid_at = CASE WHEN $2 = 'paid' THEN $4 ELSE paid_at END,
			cancelled_at = CASE WHEN $3 = 'cancelled' THEN $4 ELSE cancelled_at END,
			expired_at = CASE WHEN $3 = 'expired' THEN $4 ELSE expired_at END
		WHERE booking_code = $1 AND payment_status = $5 AND status = $6
	`

	tag, err := p.db.Exec(
		ctx,
		query,
		code,
		string(change.Payment),
		string(change.Status),
		change.At,
		string(change.FromPayment),
		string(change.FromStatus))

	if err != nil {
		return nil, err
	}

	if tag.RowsAffected() == 0 {
		var exists bool

		err = p.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bookings WHERE booking_code = $1)`, code).Scan(&exists)
		if err != nil {
			return nil, err
		}

		if !exists {
			return nil, domain.ErrRecordNotFound
		}

		return nil, domain.ErrEditConflict
	}

	return p.GetByCode(ctx, code)
}

func (p *PostgresBookingRepository) ListStalePending(
	ctx context.Context,
	createdBefore time.Time,
	limit int) ([]domain.Booking, error) {

	query := `
		SELECT ` + bookingColumns + `
		FROM bookings b
		WHERE b.payment_status = 'pending' AND b.status = 'confirmed' AND b.created_at < $1
			AND b.payment_method <> 'cod'
		ORDER BY b.created_at
		LIMIT $2
	`

	rows, err := p.db.Query(ctx, query, createdBefore, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)

	for rows.Next() {
		var booking domain.Booking

		if err := rows.Scan(bookingDest(&booking)...); err != nil {
			return nil, err
		}

		bookings = append(bookings, booking)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	if err := p.loadItems(ctx, bookings); err != nil {
		return nil, err
	}

	return bookings, nil
}

// loadItems fills the seat and combo snapshots of bookings in place.
func (p *PostgresBookingRepository) loadItems(ctx context.Context, bookings []domain.Booking) error {
	if len(bookings) == 0 {
		return nil
	}

	ids := make([]int, len(bookings))
	byID := make(map[int]*domain.Booking, len(bookings))
	for i := range bookings {
		ids[i] = bookings[i].ID
		byID[bookings[i].ID] = &bookings[i]
	}

	query := `
		SELECT booking_id, seat_number, seat_type, price
		FROM booking_seats
		WHERE booking_id = ANY($1)
		ORDER BY booking_id, position
	`

	rows, err := p.db.Query(ctx, query, ids)
	if err != nil {
		return err
	}

	for rows.Next() {
		var (
			bookingID int
			seat      domain.BookingSeat
		)

		if err := rows.Scan(&bookingID, &seat.Number, &seat.Type, &seat.Price); err != nil {
			rows.Close()
			return err
		}

		b := byID[bookingID]
		b.Seats = append(b.Seats, seat)
	}
	rows.Close()

	if err := rows.Err(); err != nil {
		return err
	}

	query = `
		SELECT booking_id, combo_id, name, unit_price, quantity
		FROM booking_combos
		WHERE booking_id = ANY($1)
		ORDER BY booking_id, position
	`

	rows, err = p.db.Query(ctx, query, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			bookingID int
			combo     domain.BookingCombo
		)

		if err := rows.Scan(&bookingID, &combo.ComboID, &combo.Name, &combo.UnitPrice, &combo.Quantity); err != nil {
			return err
		}

		b := byID[bookingID]
		b.Combos = append(b.Combos, combo)
	}

	return rows.Err()
}

func bookingDest(b *domain.Booking) []any {
	return []any{
		&b.ID,
		&b.Code,
		&b.UserID,
		&b.ShowtimeID,
		&b.TheaterID,
		&b.MovieTitle,
		&b.TheaterName,
		&b.HallName,
		&b.StartsAt,
		&b.Total,
		&b.PaymentMethod,
		&b.PaymentStatus,
		&b.Status,
		&b.Contact.Name,
		&b.Contact.Email,
		&b.Contact.Phone,
		&b.CreatedAt,
		&b.UpdatedAt,
		&b.PaidAt,
		&b.CancelledAt,
		&b.ExpiredAt,
	}
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var booking domain.Booking

	if err := row.Scan(bookingDest(&booking)...); err != nil {
		return nil, err
	}

	return &booking, nil
}
