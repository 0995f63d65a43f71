package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/staybooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingColumns = `id, user_id, destination, start_date, end_date, room_type, travelers, total_price, status, payment_status, payment_intent_id, refunded_amount, version, created_at, updated_at`

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) BookingRepository {
	return &PGBookingRepository{db: db}
}

func (r *PGBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	err := r.db.QueryRow(ctx, `INSERT INTO bookings (id, user_id, destination, start_date, end_date, room_type, travelers, total_price, status, payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING version, created_at, updated_at`,
		booking.ID, booking.UserID, booking.Destination, booking.StartDate, booking.EndDate, string(booking.RoomType),
		booking.Travelers, booking.TotalPrice, string(booking.Status), string(booking.PaymentStatus)).
		Scan(&booking.Version, &booking.CreatedAt, &booking.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.NewValidationError("id", "booking already exists")
		}
		return err
	}
	return nil
}

func (r *PGBookingRepository) Get(ctx context.Context, id string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id=$1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewNotFoundError("booking", id)
	}
	return b, err
}

// Update applies the patch in one conditional statement. Zero matched rows
// mean either an unknown id or a lost version race.
func (r *PGBookingRepository) Update(ctx context.Context, id string, patch BookingPatch) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `UPDATE bookings SET
			status = COALESCE($3, status),
			payment_status = COALESCE($4, payment_status),
			payment_intent_id = COALESCE($5, payment_intent_id),
			refunded_amount = COALESCE($6, refunded_amount),
			version = version + 1,
			updated_at = now()
		WHERE id=$1 AND version=$2
		RETURNING `+bookingColumns,
		id, patch.ExpectedVersion, nullableString(patch.Status), nullableString(patch.PaymentStatus), patch.PaymentIntentID, patch.RefundedAmount)
	b, err := scanBooking(row)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bookings WHERE id=$1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, domain.NewNotFoundError("booking", id)
	}
	return nil, ErrVersionConflict
}

func (r *PGBookingRepository) ListByUser(ctx context.Context, userID string) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *PGBookingRepository) ListByPaymentStatus(ctx context.Context, status domain.PaymentStatus, limit int) ([]domain.Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE payment_status=$1 ORDER BY created_at DESC LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *PGBookingRepository) ListByStatus(ctx context.Context, status domain.BookingStatus, limit int) ([]domain.Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE ($1 = '' OR status=$1) ORDER BY created_at DESC LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, err
	}
	return collectBookings(rows)
}

func (r *PGBookingRepository) Stats(ctx context.Context) (*domain.BookingStats, error) {
	var stats domain.BookingStats
	err := r.db.QueryRow(ctx, `SELECT
			count(*),
			count(*) FILTER (WHERE status = 'PENDING'),
			count(*) FILTER (WHERE status = 'CONFIRMED'),
			count(*) FILTER (WHERE status = 'CANCELLED'),
			count(*) FILTER (WHERE payment_status = 'COMPLETED'),
			count(*) FILTER (WHERE payment_status = 'PENDING'),
			count(*) FILTER (WHERE payment_status = 'FAILED'),
			COALESCE(sum(total_price) FILTER (WHERE payment_status = 'COMPLETED'), 0),
			COALESCE(sum(refunded_amount), 0),
			COALESCE(sum(total_price) FILTER (WHERE status = 'PENDING'), 0)
		FROM bookings`).
		Scan(&stats.Total, &stats.Pending, &stats.Confirmed, &stats.Cancelled,
			&stats.PaymentsCompleted, &stats.PaymentsPending, &stats.PaymentsFailed,
			&stats.Revenue, &stats.RefundedAmount, &stats.PendingAmount)
	if err != nil {
		return nil, err
	}
	stats.Revenue = domain.RoundMajor(stats.Revenue)
	stats.RefundedAmount = domain.RoundMajor(stats.RefundedAmount)
	stats.PendingAmount = domain.RoundMajor(stats.PendingAmount)
	return &stats, nil
}

func collectBookings(rows pgx.Rows) ([]domain.Booking, error) {
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b             domain.Booking
		roomType      string
		status        string
		paymentStatus string
	)
	if err := row.Scan(&b.ID, &b.UserID, &b.Destination, &b.StartDate, &b.EndDate, &roomType, &b.Travelers,
		&b.TotalPrice, &status, &paymentStatus, &b.PaymentIntentID, &b.RefundedAmount, &b.Version, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	b.RoomType = domain.RoomType(roomType)
	b.Status = domain.BookingStatus(status)
	b.PaymentStatus = domain.PaymentStatus(paymentStatus)
	return &b, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
