package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Domenick1991/staybooking/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newPGRepository connects to STAYBOOKING_TEST_DATABASE_DSN, applies the
// migrations and empties the bookings table. The database is wiped, so point
// it at a scratch instance.
func newPGRepository(t *testing.T) (BookingRepository, *pgxpool.Pool) {
	t.Helper()
	dsn := os.Getenv("STAYBOOKING_TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("STAYBOOKING_TEST_DATABASE_DSN is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	migrations, err := filepath.Glob(filepath.Join("..", "..", "migrations", "*.sql"))
	require.NoError(t, err)
	require.NotEmpty(t, migrations)
	for _, path := range migrations {
		sql, err := os.ReadFile(path)
		require.NoError(t, err)
		_, err = pool.Exec(ctx, string(sql))
		require.NoError(t, err, path)
	}
	_, err = pool.Exec(ctx, `TRUNCATE bookings`)
	require.NoError(t, err)

	return NewBookingRepository(pool), pool
}

func TestPGBookingRepository_CreateAndGet(t *testing.T) {
	repo, _ := newPGRepository(t)
	ctx := context.Background()

	booking := newTestBooking("b-1", "u-1")
	require.NoError(t, repo.Create(ctx, booking))
	assert.Equal(t, int64(1), booking.Version)
	assert.False(t, booking.CreatedAt.IsZero())

	got, err := repo.Get(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, "u-1", got.UserID)
	assert.Equal(t, domain.RoomTypeSuite, got.RoomType)
	assert.Equal(t, 1500.0, got.TotalPrice)
	assert.Equal(t, domain.BookingStatusPending, got.Status)
	assert.Equal(t, domain.PaymentStatusPending, got.PaymentStatus)
	assert.Empty(t, got.PaymentIntentID)

	err = repo.Create(ctx, newTestBooking("b-1", "u-1"))
	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr)

	_, err = repo.Get(ctx, "missing")
	assert.True(t, domain.IsNotFound(err))
}

func TestPGBookingRepository_Update(t *testing.T) {
	repo, _ := newPGRepository(t)
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newTestBooking("b-1", "u-1")))

	failed := domain.PaymentStatusFailed
	intentID := "pi_1"
	updated, err := repo.Update(ctx, "b-1", BookingPatch{ExpectedVersion: 1, PaymentStatus: &failed, PaymentIntentID: &intentID})
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, domain.PaymentStatusFailed, updated.PaymentStatus)
	assert.Equal(t, "pi_1", updated.PaymentIntentID)
	assert.Equal(t, domain.BookingStatusPending, updated.Status)

	confirmed := domain.BookingStatusConfirmed
	completed := domain.PaymentStatusCompleted
	_, err = repo.Update(ctx, "b-1", BookingPatch{ExpectedVersion: 1, Status: &confirmed, PaymentStatus: &completed})
	assert.ErrorIs(t, err, ErrVersionConflict)

	stored, err := repo.Get(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), stored.Version)
	assert.Equal(t, domain.PaymentStatusFailed, stored.PaymentStatus)

	_, err = repo.Update(ctx, "missing", BookingPatch{ExpectedVersion: 1, Status: &confirmed})
	assert.True(t, domain.IsNotFound(err))

	// Nil fields keep their stored values.
	refunded := 100.5
	updated, err = repo.Update(ctx, "b-1", BookingPatch{ExpectedVersion: 2, Status: &confirmed, PaymentStatus: &completed})
	require.NoError(t, err)
	updated, err = repo.Update(ctx, "b-1", BookingPatch{ExpectedVersion: updated.Version, RefundedAmount: &refunded})
	require.NoError(t, err)
	assert.Equal(t, int64(4), updated.Version)
	assert.Equal(t, "pi_1", updated.PaymentIntentID)
	assert.Equal(t, domain.BookingStatusConfirmed, updated.Status)
	assert.Equal(t, 100.5, updated.RefundedAmount)
}

func TestPGBookingRepository_Lists(t *testing.T) {
	repo, pool := newPGRepository(t)
	ctx := context.Background()
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"b-1", "b-2", "b-3"} {
		b := newTestBooking(id, "u-1")
		require.NoError(t, repo.Create(ctx, b))
		_, err := pool.Exec(ctx, `UPDATE bookings SET created_at=$2 WHERE id=$1`, id, base.Add(time.Duration(i)*time.Hour))
		require.NoError(t, err)
	}
	require.NoError(t, repo.Create(ctx, newTestBooking("b-4", "u-2")))

	cancelled := domain.BookingStatusCancelled
	_, err := repo.Update(ctx, "b-1", BookingPatch{ExpectedVersion: 1, Status: &cancelled})
	require.NoError(t, err)
	failed := domain.PaymentStatusFailed
	_, err = repo.Update(ctx, "b-2", BookingPatch{ExpectedVersion: 1, PaymentStatus: &failed})
	require.NoError(t, err)

	byUser, err := repo.ListByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, byUser, 3)
	assert.Equal(t, "b-3", byUser[0].ID)

	byPayment, err := repo.ListByPaymentStatus(ctx, domain.PaymentStatusFailed, 10)
	require.NoError(t, err)
	require.Len(t, byPayment, 1)
	assert.Equal(t, "b-2", byPayment[0].ID)

	pending, err := repo.ListByStatus(ctx, domain.BookingStatusPending, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 3)

	all, err := repo.ListByStatus(ctx, "", 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPGBookingRepository_Stats(t *testing.T) {
	repo, _ := newPGRepository(t)
	ctx := context.Background()

	empty, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStats{}, *empty)

	for _, id := range []string{"paid", "failed", "open"} {
		require.NoError(t, repo.Create(ctx, newTestBooking(id, "u-1")))
	}
	confirmed := domain.BookingStatusConfirmed
	completed := domain.PaymentStatusCompleted
	failed := domain.PaymentStatusFailed
	_, err = repo.Update(ctx, "paid", BookingPatch{ExpectedVersion: 1, Status: &confirmed, PaymentStatus: &completed})
	require.NoError(t, err)
	_, err = repo.Update(ctx, "failed", BookingPatch{ExpectedVersion: 1, PaymentStatus: &failed})
	require.NoError(t, err)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Pending)
	assert.Equal(t, int64(1), stats.Confirmed)
	assert.Equal(t, int64(1), stats.PaymentsCompleted)
	assert.Equal(t, int64(1), stats.PaymentsFailed)
	assert.Equal(t, 1500.0, stats.Revenue)
	assert.Equal(t, 3000.0, stats.PendingAmount)
}
