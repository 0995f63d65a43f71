package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Domenick1991/staybooking/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBooking(id, userID string) *domain.Booking {
	return &domain.Booking{
		ID:            id,
		UserID:        userID,
		Destination:   "Paris",
		StartDate:     time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC),
		EndDate:       time.Date(2025, time.June, 4, 0, 0, 0, 0, time.UTC),
		RoomType:      domain.RoomTypeSuite,
		Travelers:     2,
		TotalPrice:    1500,
		Status:        domain.BookingStatusPending,
		PaymentStatus: domain.PaymentStatusPending,
	}
}

func TestMemoryBookingRepository_CreateAndGet(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()

	booking := newTestBooking("b-1", "u-1")
	require.NoError(t, repo.Create(ctx, booking))
	assert.Equal(t, int64(1), booking.Version)
	assert.False(t, booking.CreatedAt.IsZero())

	got, err := repo.Get(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, *booking, *got)

	err = repo.Create(ctx, newTestBooking("b-1", "u-1"))
	var vErr *domain.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestMemoryBookingRepository_GetNotFound(t *testing.T) {
	repo := NewMemoryBookingRepository()

	got, err := repo.Get(context.Background(), "missing")

	assert.Nil(t, got)
	assert.True(t, domain.IsNotFound(err))
}

func TestMemoryBookingRepository_Update(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newTestBooking("b-1", "u-1")))

	status := domain.BookingStatusConfirmed
	paid := domain.PaymentStatusCompleted
	intentID := "pi_1"
	updated, err := repo.Update(ctx, "b-1", BookingPatch{ExpectedVersion: 1, Status: &status, PaymentStatus: &paid, PaymentIntentID: &intentID})
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, updated.Status)
	assert.Equal(t, domain.PaymentStatusCompleted, updated.PaymentStatus)
	assert.Equal(t, "pi_1", updated.PaymentIntentID)
	assert.Equal(t, int64(2), updated.Version)
	assert.Equal(t, 1500.0, updated.TotalPrice)

	_, err = repo.Update(ctx, "b-1", BookingPatch{ExpectedVersion: 1, Status: &status})
	assert.ErrorIs(t, err, ErrVersionConflict)

	_, err = repo.Update(ctx, "missing", BookingPatch{ExpectedVersion: 1})
	assert.True(t, domain.IsNotFound(err))
}

func TestMemoryBookingRepository_ConcurrentUpdatesHaveOneWinner(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newTestBooking("b-1", "u-1")))

	status := domain.BookingStatusCancelled
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.Update(ctx, "b-1", BookingPatch{ExpectedVersion: 1, Status: &status}); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
}

func TestMemoryBookingRepository_Lists(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"b-1", "b-2", "b-3"} {
		b := newTestBooking(id, "u-1")
		b.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Create(ctx, b))
	}
	require.NoError(t, repo.Create(ctx, newTestBooking("b-4", "u-2")))

	failed := domain.PaymentStatusFailed
	_, err := repo.Update(ctx, "b-2", BookingPatch{ExpectedVersion: 1, PaymentStatus: &failed})
	require.NoError(t, err)

	byUser, err := repo.ListByUser(ctx, "u-1")
	require.NoError(t, err)
	require.Len(t, byUser, 3)
	assert.Equal(t, "b-3", byUser[0].ID)
	assert.Equal(t, "b-1", byUser[2].ID)

	byStatus, err := repo.ListByPaymentStatus(ctx, domain.PaymentStatusFailed, 10)
	require.NoError(t, err)
	require.Len(t, byStatus, 1)
	assert.Equal(t, "b-2", byStatus[0].ID)

	limited, err := repo.ListByPaymentStatus(ctx, domain.PaymentStatusPending, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	empty, err := repo.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestMemoryBookingRepository_ListByStatus(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()
	base := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"b-1", "b-2", "b-3"} {
		b := newTestBooking(id, "u-1")
		b.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		require.NoError(t, repo.Create(ctx, b))
	}
	cancelled := domain.BookingStatusCancelled
	_, err := repo.Update(ctx, "b-1", BookingPatch{ExpectedVersion: 1, Status: &cancelled})
	require.NoError(t, err)

	pending, err := repo.ListByStatus(ctx, domain.BookingStatusPending, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "b-3", pending[0].ID)
	assert.Equal(t, "b-2", pending[1].ID)

	all, err := repo.ListByStatus(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	limited, err := repo.ListByStatus(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, "b-3", limited[0].ID)

	confirmed, err := repo.ListByStatus(ctx, domain.BookingStatusConfirmed, 10)
	require.NoError(t, err)
	assert.Empty(t, confirmed)
}

func TestMemoryBookingRepository_Stats(t *testing.T) {
	repo := NewMemoryBookingRepository()
	ctx := context.Background()

	empty, err := repo.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStats{}, *empty)

	for _, id := range []string{"paid", "refunded", "failed", "open", "cancelled"} {
		require.NoError(t, repo.Create(ctx, newTestBooking(id, "u-1")))
	}
	confirmed := domain.BookingStatusConfirmed
	cancelled := domain.BookingStatusCancelled
	completed := domain.PaymentStatusCompleted
	failed := domain.PaymentStatusFailed
	refunded := 200.25

	_, err = repo.Update(ctx, "paid", BookingPatch{ExpectedVersion: 1, Status: &confirmed, PaymentStatus: &completed})
	require.NoError(t, err)
	_, err = repo.Update(ctx, "refunded", BookingPatch{ExpectedVersion: 1, Status: &cancelled, PaymentStatus: &completed, RefundedAmount: &refunded})
	require.NoError(t, err)
	_, err = repo.Update(ctx, "failed", BookingPatch{ExpectedVersion: 1, PaymentStatus: &failed})
	require.NoError(t, err)
	_, err = repo.Update(ctx, "cancelled", BookingPatch{ExpectedVersion: 1, Status: &cancelled})
	require.NoError(t, err)

	stats, err := repo.Stats(ctx)
	require.NoError(t, err)

	assert.Equal(t, domain.BookingStats{
		Total:             5,
		Pending:           2,
		Confirmed:         1,
		Cancelled:         2,
		PaymentsCompleted: 2,
		PaymentsPending:   2,
		PaymentsFailed:    1,
		Revenue:           3000,
		RefundedAmount:    200.25,
		PendingAmount:     3000,
	}, *stats)
}
